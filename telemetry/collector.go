// Package telemetry exposes engine health counters to scraping hosts.
// The engine itself only bumps in-memory counters; the adapter here
// turns them into prometheus metrics without the core importing any
// metrics library.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineStats is the read-only counter surface the engine provides.
type EngineStats interface {
	NumericalFaults() uint64
	InfeasibleQP() uint64
	Time() float64
	Len() int
}

// EngineCollector adapts EngineStats to a prometheus.Collector.
type EngineCollector struct {
	stats EngineStats

	faults     *prometheus.Desc
	infeasible *prometheus.Desc
	simTime    *prometheus.Desc
	agents     *prometheus.Desc
}

// NewEngineCollector wraps an engine for scraping.
func NewEngineCollector(stats EngineStats) *EngineCollector {
	return &EngineCollector{
		stats: stats,
		faults: prometheus.NewDesc(
			"swarm_numerical_faults_total",
			"Non-finite values sanitized to zero during integration.",
			nil, nil,
		),
		infeasible: prometheus.NewDesc(
			"swarm_qp_infeasible_total",
			"Per-agent QP solves that fell back to the box-clipped nominal.",
			nil, nil,
		),
		simTime: prometheus.NewDesc(
			"swarm_sim_time_seconds",
			"Accumulated simulation time.",
			nil, nil,
		),
		agents: prometheus.NewDesc(
			"swarm_agents",
			"Agent count of the running simulation.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.faults
	ch <- c.infeasible
	ch <- c.simTime
	ch <- c.agents
}

// Collect implements prometheus.Collector.
func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.faults, prometheus.CounterValue, float64(c.stats.NumericalFaults()))
	ch <- prometheus.MustNewConstMetric(c.infeasible, prometheus.CounterValue, float64(c.stats.InfeasibleQP()))
	ch <- prometheus.MustNewConstMetric(c.simTime, prometheus.GaugeValue, c.stats.Time())
	ch <- prometheus.MustNewConstMetric(c.agents, prometheus.GaugeValue, float64(c.stats.Len()))
}
