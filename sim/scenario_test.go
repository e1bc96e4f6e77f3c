package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/vmath"
)

func agentPos(s *Sim, i int) vmath.Vec3 {
	p := s.Positions()
	return vmath.Vec3{
		X: float64(p[i*3]),
		Y: float64(p[i*3+1]),
		Z: float64(p[i*3+2]),
	}
}

// Two agents spawned inside the separation radius must be pushed apart.
func TestTwoParticleSeparation(t *testing.T) {
	s := fleet(t, AlgoFlock, 2)
	require.NoError(t, s.SetPositionAndVelocity(0, 0, 0, 0, 0, 0, 0))
	require.NoError(t, s.SetPositionAndVelocity(1, 0.2, 0, 0, 0, 0, 0))

	for i := 0; i < 60; i++ {
		s.Tick()
	}

	dist := agentPos(s, 1).Sub(agentPos(s, 0)).Norm()
	assert.Greater(t, dist, 0.9, "agents must clear the separation radius")
}

// A small alpha-lattice fleet settles near the desired spacing.
func TestAlphaLatticeStabilizes(t *testing.T) {
	cfg := &config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: AlgoAlpha,
		Clusters:  []config.Cluster{{Shape: "sphere", Count: 16, Radius: 3}},
	}
	s, err := NewFromConfig(cfg)
	require.NoError(t, err)

	for i := 0; i < 600; i++ {
		s.Tick()
	}

	p := FlockAlphaDefaults()
	within, good := 0, 0
	for i := 0; i < s.Len(); i++ {
		for j := i + 1; j < s.Len(); j++ {
			d := agentPos(s, i).Sub(agentPos(s, j)).Norm()
			if d <= p.NeighborRadius {
				within++
				if math.Abs(d-p.DesiredDistance) < 0.25 {
					good++
				}
			}
		}
	}
	require.Greater(t, within, 0, "lattice should keep neighbors in range")
	frac := float64(good) / float64(within)
	assert.GreaterOrEqual(t, frac, 0.8,
		"%d/%d interacting pairs near lattice spacing", good, within)
}

// ECBF keeps agents out of the obstacle sphere. The fleet spawns inside
// the keep-out region, so the barrier first expels each agent; once an
// agent reaches the safe set it must never re-enter.
func TestECBFObstacleAvoidance(t *testing.T) {
	obCenter := vmath.Vec3{X: 47, Y: 86, Z: 10}
	cfg := &config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: AlgoFormation,
		Clusters: []config.Cluster{{
			Shape:  "sphere",
			Count:  4,
			Center: [3]float64{47, 86, 12},
			Radius: 3,
		}},
	}
	s, err := NewFromConfig(cfg,
		WithObstacles([]components.Obstacle{components.StaticObstacle(obCenter, 5)}),
		WithLeader(components.StaticLeader(vmath.Vec3{X: 47, Y: 86, Z: 20})),
	)
	require.NoError(t, err)

	exited := make([]bool, s.Len())
	minAfterExit := make([]float64, s.Len())
	for i := range minAfterExit {
		minAfterExit[i] = math.Inf(1)
	}

	for tick := 0; tick < 2000; tick++ {
		s.Tick()
		for i := 0; i < s.Len(); i++ {
			d := agentPos(s, i).Sub(obCenter).Norm()
			if !exited[i] {
				if d >= 5 {
					exited[i] = true
				}
				continue
			}
			if d < minAfterExit[i] {
				minAfterExit[i] = d
			}
		}
	}

	for i := 0; i < s.Len(); i++ {
		require.True(t, exited[i], "agent %d never escaped the keep-out region", i)
		assert.GreaterOrEqual(t, minAfterExit[i], 5.0-1e-3,
			"agent %d re-entered the obstacle sphere", i)
	}
}

// Inter-agent barriers hold the pairwise safety distance.
func TestSafeFlockingPairwiseDistance(t *testing.T) {
	s := fleet(t, AlgoSafeFlock, 8)
	for i := 0; i < 8; i++ {
		require.NoError(t, s.SetPositionAndVelocity(i, float64(i)*2, 0, 0, 0, 0, 0))
	}

	minDist := math.Inf(1)
	for tick := 0; tick < 1000; tick++ {
		s.Tick()
		for i := 0; i < s.Len(); i++ {
			pi := agentPos(s, i)
			for j := i + 1; j < s.Len(); j++ {
				if d := pi.Sub(agentPos(s, j)).Norm(); d < minDist {
					minDist = d
				}
			}
		}
	}
	assert.GreaterOrEqual(t, minDist, 0.9-1e-3)
}

// After enabling 2D mode every subsequent frame has exact zero z.
func TestPlane2DProjectionExact(t *testing.T) {
	cfg := &config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: AlgoFlock,
		Clusters:  []config.Cluster{{Shape: "sphere", Count: 8, Radius: 3}},
	}
	s, err := NewFromConfig(cfg)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		s.Tick()
	}
	s.SetPlane2D(true)

	for i := 0; i < 20; i++ {
		s.Tick()
		states := s.States()
		for a := 0; a < s.Len(); a++ {
			assert.Zero(t, states[a*6+2], "x.z after projection")
			assert.Zero(t, states[a*6+5], "v.z after projection")
		}
	}
}

// An obstacle far outside the activation radius never binds: the
// applied control equals the nominal.
func TestFarObstacleLeavesNominal(t *testing.T) {
	cfg := &config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: AlgoFormation,
		Clusters:  []config.Cluster{{Shape: "sphere", Count: 2, Radius: 1}},
	}
	s, err := NewFromConfig(cfg,
		WithObstacles([]components.Obstacle{
			components.StaticObstacle(vmath.Vec3{X: 1e6}, 5),
		}),
		WithLeader(components.StaticLeader(vmath.Vec3{})),
	)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		s.Tick()
		d := s.DebugStates()
		for a := 0; a < s.Len(); a++ {
			row := d[a*components.ExtendedFieldCount:]
			assert.Equal(t, row[6], row[9], "unom.x == u.x")
			assert.Equal(t, row[7], row[10], "unom.y == u.y")
			assert.Equal(t, row[8], row[11], "unom.z == u.z")
			assert.Zero(t, row[13], "no active constraints")
		}
	}
}

// A single formation agent converges to the leader plus its offset and
// holds there.
func TestSingleAgentFormationHolds(t *testing.T) {
	target := vmath.Vec3{X: 5, Y: 5, Z: 5}
	cfg := &config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: AlgoFormation,
		Clusters:  []config.Cluster{{Shape: "sphere", Count: 1, Radius: 0}},
	}
	s, err := NewFromConfig(cfg, WithLeader(components.StaticLeader(target)))
	require.NoError(t, err)

	for i := 0; i < 3000; i++ {
		s.Tick()
	}
	// Auto offsets for a single agent are zero, so the hold point is
	// the leader itself.
	for i := 0; i < 100; i++ {
		s.Tick()
		assert.Less(t, agentPos(s, 0).Sub(target).Norm(), 0.3)
	}
}
