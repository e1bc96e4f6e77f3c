// Package config provides configuration loading and cluster specs for
// the simulator.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/swarm/vmath"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EngineConfig describes a simulation: timestep, algorithm selection,
// and the agent clusters to spawn.
type EngineConfig struct {
	DT        float64   `yaml:"dt" json:"dt"`
	Algorithm string    `yaml:"algorithm" json:"algorithm"`
	Plane2D   bool      `yaml:"plane2d" json:"plane2d"`
	Clusters  []Cluster `yaml:"clusters" json:"clusters"`
}

// Cluster is one sphere-distributed spawn group.
type Cluster struct {
	Shape       string     `yaml:"shape" json:"shape"`
	Count       int        `yaml:"count" json:"count"`
	Center      [3]float64 `yaml:"center" json:"center"`
	Radius      float64    `yaml:"radius" json:"radius"`
	Velocity    [3]float64 `yaml:"velocity" json:"velocity"`
	RadialSpeed float64    `yaml:"radialSpeed" json:"radialSpeed"`
	Drag        float64    `yaml:"drag" json:"drag"`
	Group       uint32     `yaml:"group" json:"group"`
}

// Validate checks the config without mutating anything. Only the
// "sphere" cluster shape is recognized.
func (c *EngineConfig) Validate() error {
	if c.DT < 0 || !finite(c.DT) {
		return fmt.Errorf("dt %v out of range", c.DT)
	}
	if len(c.Clusters) == 0 {
		return fmt.Errorf("no clusters")
	}
	for i, cl := range c.Clusters {
		if cl.Shape != "sphere" {
			return fmt.Errorf("cluster %d: unrecognized shape %q", i, cl.Shape)
		}
		if cl.Count < 0 {
			return fmt.Errorf("cluster %d: count %d < 0", i, cl.Count)
		}
		if cl.Radius < 0 {
			return fmt.Errorf("cluster %d: radius %v < 0", i, cl.Radius)
		}
		if cl.Drag < 0 {
			return fmt.Errorf("cluster %d: drag %v < 0", i, cl.Drag)
		}
	}
	return nil
}

// Count returns the total agent count across clusters.
func (c *EngineConfig) Count() int {
	n := 0
	for _, cl := range c.Clusters {
		n += cl.Count
	}
	return n
}

// Spawn holds one spawned agent's initial state.
type Spawn struct {
	Pos, Vel vmath.Vec3
	Drag     float64
	Group    uint32
}

// Spawns expands the clusters into per-agent initial states.
// Sampling is deterministic: each cluster draws from a PRNG seeded by
// its index, so a config always produces the same fleet.
func (c *EngineConfig) Spawns() []Spawn {
	out := make([]Spawn, 0, c.Count())
	for ci, cl := range c.Clusters {
		rng := rand.New(rand.NewSource(int64(ci)*7919 + 1))
		center := vmath.Vec3{X: cl.Center[0], Y: cl.Center[1], Z: cl.Center[2]}
		vel := vmath.Vec3{X: cl.Velocity[0], Y: cl.Velocity[1], Z: cl.Velocity[2]}
		for k := 0; k < cl.Count; k++ {
			dir := sphereDir(rng)
			r := cl.Radius * math.Cbrt(rng.Float64())
			out = append(out, Spawn{
				Pos:   center.Add(dir.Scale(r)),
				Vel:   vel.Add(dir.Scale(cl.RadialSpeed)),
				Drag:  cl.Drag,
				Group: cl.Group,
			})
		}
	}
	return out
}

// sphereDir draws a uniform direction on the unit sphere.
func sphereDir(rng *rand.Rand) vmath.Vec3 {
	for {
		v := vmath.Vec3{
			X: rng.NormFloat64(),
			Y: rng.NormFloat64(),
			Z: rng.NormFloat64(),
		}
		if n := v.Norm(); n > 1e-12 {
			return v.Scale(1 / n)
		}
	}
}

// Load reads an engine config from a YAML file, merging over the
// embedded defaults. An empty path returns the defaults alone.
func Load(path string) (*EngineConfig, error) {
	cfg := &EngineConfig{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Clusters from the file replace the default fleet outright.
		cfg.Clusters = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteYAML saves the config to a file.
func (c *EngineConfig) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
