// Command record runs a simulation headless and writes the trajectory
// file (and optionally a CSV flattening) for playback tooling.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/sim"
	"github.com/pthm-cable/swarm/telemetry"
	"github.com/pthm-cable/swarm/trajectory"
)

var (
	configPath  = flag.String("config", "", "Engine config YAML (empty = embedded defaults)")
	ticks       = flag.Int("ticks", 600, "Number of ticks to run")
	stride      = flag.Int("stride", 1, "Record every Nth tick")
	maxFrames   = flag.Int("max-frames", 0, "Stop recording after N frames (0 = unbounded)")
	outPath     = flag.String("output", "trajectory.bin", "Trajectory output file")
	csvPath     = flag.String("csv", "", "Also write a CSV flattening to this path")
	metricsAddr = flag.String("metrics", "", "Serve prometheus metrics on this address while running")
)

func main() {
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	s, err := sim.NewFromConfig(cfg)
	if err != nil {
		log.Fatal("engine construction failed", zap.Error(err))
	}

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(telemetry.NewEngineCollector(s))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	rec := trajectory.NewRecorder(s, *stride, *maxFrames)
	for i := 0; i < *ticks; i++ {
		s.Tick()
		rec.Capture()
	}

	data := rec.Encode()
	if err := os.WriteFile(*outPath, data, 0644); err != nil {
		log.Fatal("trajectory write failed", zap.Error(err))
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatal("csv create failed", zap.Error(err))
		}
		defer f.Close()
		if err := trajectory.ExportCSV(rec.Trajectory(), f); err != nil {
			log.Fatal("csv export failed", zap.Error(err))
		}
	}

	log.Info("recording complete",
		zap.String("output", *outPath),
		zap.Int("frames", rec.Frames()),
		zap.Int("bytes", len(data)),
		zap.Float64("sim_time", s.Time()),
		zap.Uint64("numerical_faults", s.NumericalFaults()),
		zap.Uint64("infeasible_qp", s.InfeasibleQP()),
	)
}
