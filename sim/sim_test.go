package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/vmath"
)

// fleet builds a sim with count agents at deterministic spots.
func fleet(t *testing.T, algo string, count int) *Sim {
	t.Helper()
	cfg := &config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: algo,
		Clusters: []config.Cluster{
			{Shape: "sphere", Count: count, Radius: 0},
		},
	}
	s, err := NewFromConfig(cfg)
	require.NoError(t, err)
	return s
}

func TestCatalogDiscovery(t *testing.T) {
	models := AvailableModels()
	require.Len(t, models, 2)
	algos := AvailableAlgorithms()
	require.Len(t, algos, 4)

	pointAlgos, err := AlgorithmsForModel(ModelPoint)
	require.NoError(t, err)
	assert.Len(t, pointAlgos, 4)

	quadAlgos, err := AlgorithmsForModel(ModelQuad)
	require.NoError(t, err)
	require.Len(t, quadAlgos, 1)
	assert.Equal(t, AlgoFormation, quadAlgos[0].ID)

	_, err = AlgorithmsForModel("hovercraft")
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestNewWithIDsErrors(t *testing.T) {
	_, err := NewWithIDs("hovercraft", AlgoFlock)
	assert.ErrorIs(t, err, ErrUnknownID)

	_, err = NewWithIDs(ModelPoint, "warp")
	assert.ErrorIs(t, err, ErrUnknownID)

	_, err = NewWithIDs(ModelQuad, AlgoFlock)
	assert.ErrorIs(t, err, ErrIncompatibleAlgorithm)
}

func TestNewFromConfigErrors(t *testing.T) {
	_, err := NewFromConfig(&config.EngineConfig{
		DT:       DefaultDT,
		Clusters: []config.Cluster{{Shape: "cube", Count: 4}},
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewFromConfig(&config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: "warp",
		Clusters:  []config.Cluster{{Shape: "sphere", Count: 4}},
	})
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestNewDemo(t *testing.T) {
	s := NewDemo()
	assert.Equal(t, ModelPoint, s.ModelID())
	assert.Equal(t, AlgoFlock, s.AlgorithmID())
	assert.Greater(t, s.Len(), 0)
	assert.Equal(t, DefaultDT, s.DT())
}

func TestSetPositionAndVelocityRoundTrip(t *testing.T) {
	s := fleet(t, AlgoFlock, 3)
	require.NoError(t, s.SetPositionAndVelocity(1, 1.5, -2.5, 3.25, 0.5, 0, -1))

	pos := s.Positions()
	assert.Equal(t, float32(1.5), pos[3])
	assert.Equal(t, float32(-2.5), pos[4])
	assert.Equal(t, float32(3.25), pos[5])

	states := s.States()
	assert.Equal(t, float32(0.5), states[1*6+3])
	assert.Equal(t, float32(0), states[1*6+4])
	assert.Equal(t, float32(-1), states[1*6+5])
}

func TestSetPositionAndVelocityRejectsBadInput(t *testing.T) {
	s := fleet(t, AlgoFlock, 2)
	assert.ErrorIs(t, s.SetPositionAndVelocity(5, 0, 0, 0, 0, 0, 0), ErrInvalidParameter)
	assert.ErrorIs(t, s.SetPositionAndVelocity(0, math.NaN(), 0, 0, 0, 0, 0), ErrInvalidParameter)
}

func TestReaderInvalidation(t *testing.T) {
	s := fleet(t, AlgoFlock, 2)
	before := append([]float32(nil), s.Positions()...)

	require.NoError(t, s.SetPositionAndVelocity(0, 9, 9, 9, 0, 0, 0))
	after := s.Positions()
	assert.NotEqual(t, before[0], after[0])
	assert.Equal(t, float32(9), after[0])
}

func TestSetAlgorithmIdempotent(t *testing.T) {
	s := fleet(t, AlgoFlock, 4)
	require.NoError(t, s.SetAlgorithm(AlgoAlpha))
	stateAfterFirst := append([]float32(nil), s.States()...)

	require.NoError(t, s.SetAlgorithm(AlgoAlpha))
	assert.Equal(t, stateAfterFirst, s.States())
	assert.Equal(t, AlgoAlpha, s.AlgorithmID())
}

func TestSetAlgorithmErrors(t *testing.T) {
	s := fleet(t, AlgoFlock, 2)
	assert.ErrorIs(t, s.SetAlgorithm("warp"), ErrUnknownID)
	assert.Equal(t, AlgoFlock, s.AlgorithmID(), "failed switch leaves state intact")

	q, err := NewWithIDs(ModelQuad, AlgoFormation)
	require.NoError(t, err)
	assert.ErrorIs(t, q.SetAlgorithm(AlgoFlock), ErrIncompatibleAlgorithm)
	assert.Equal(t, AlgoFormation, q.AlgorithmID())
}

func TestParamSettersValidateBeforeMutating(t *testing.T) {
	s := fleet(t, AlgoFlock, 2)

	bad := FlockDefaults()
	bad.SeparationRadius = bad.NeighborRadius + 1
	assert.ErrorIs(t, s.SetFlockParams(bad), ErrInvalidParameter)
	assert.Equal(t, FlockDefaults(), s.flockParams, "rejected record leaves prior params intact")

	good := FlockDefaults()
	good.SeparationWeight = 3
	require.NoError(t, s.SetFlockParams(good))

	badAlpha := FlockAlphaDefaults()
	badAlpha.Epsilon = -1
	assert.ErrorIs(t, s.SetFlockAlphaParams(badAlpha), ErrInvalidParameter)

	badForm := FormationECBFDefaults()
	badForm.QPIters = 0
	assert.ErrorIs(t, s.SetFormationECBFParams(badForm), ErrInvalidParameter)

	badSafe := SafeFlockingAlphaDefaults()
	badSafe.SlackMax = -1
	assert.ErrorIs(t, s.SetSafeFlockingAlphaParams(badSafe), ErrInvalidParameter)
}

func TestDefaultsMatchDocumentedValues(t *testing.T) {
	f := FlockDefaults()
	assert.Equal(t, 2.6, f.NeighborRadius)
	assert.Equal(t, 0.9, f.SeparationRadius)
	assert.Equal(t, 10.35, f.SeparationWeight)

	a := FlockAlphaDefaults()
	assert.Equal(t, 1.4, a.DesiredDistance)
	assert.Equal(t, 2.6, a.NeighborRadius)

	fo := FormationECBFDefaults()
	assert.Equal(t, 14, fo.QPIters)
	assert.True(t, fo.AutoOffsets)

	sf := SafeFlockingAlphaDefaults()
	assert.Equal(t, 0.9, sf.DSafe)
	assert.True(t, sf.UseAgentCBF)
}

func TestEmptyFleet(t *testing.T) {
	for _, algo := range []string{AlgoFlock, AlgoAlpha, AlgoFormation, AlgoSafeFlock} {
		t.Run(algo, func(t *testing.T) {
			s := fleet(t, algo, 0)
			assert.Zero(t, s.Len())
			s.Tick()
			assert.Empty(t, s.Positions())
			assert.Empty(t, s.States())
			assert.Empty(t, s.Groups())
		})
	}
}

func TestZeroDTFreezesState(t *testing.T) {
	cfg := &config.EngineConfig{
		Algorithm: AlgoFlock,
		Clusters:  []config.Cluster{{Shape: "sphere", Count: 4, Radius: 2}},
	}
	s, err := NewFromConfig(cfg, WithDT(0))
	require.NoError(t, err)

	before := append([]float32(nil), s.States()...)
	s.Tick()
	assert.Equal(t, before, s.States())
	assert.Zero(t, s.Time())
}

func TestDeterminism(t *testing.T) {
	run := func() []float32 {
		cfg := &config.EngineConfig{
			DT:        DefaultDT,
			Algorithm: AlgoAlpha,
			Clusters:  []config.Cluster{{Shape: "sphere", Count: 16, Radius: 3}},
		}
		s, err := NewFromConfig(cfg)
		require.NoError(t, err)
		for i := 0; i < 50; i++ {
			s.Tick()
		}
		return append([]float32(nil), s.States()...)
	}
	assert.Equal(t, run(), run(), "same config and tick count must be bitwise identical")
}

func TestStateLayouts(t *testing.T) {
	base := fleet(t, AlgoFlock, 2)
	assert.Len(t, base.States(), 2*components.BaseFieldCount)
	assert.Len(t, base.DebugStates(), 2*components.ExtendedFieldCount)

	safe := fleet(t, AlgoSafeFlock, 2)
	assert.Len(t, safe.States(), 2*components.ExtendedFieldCount)
	assert.Len(t, safe.StateFields(), components.ExtendedFieldCount)
}

func TestGroupsView(t *testing.T) {
	cfg := &config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: AlgoFlock,
		Clusters: []config.Cluster{
			{Shape: "sphere", Count: 2, Group: 0},
			{Shape: "sphere", Count: 3, Group: 7},
		},
	}
	s, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 0, 7, 7, 7}, s.Groups())
}

func TestMaxSpeedInvariant(t *testing.T) {
	cfg := &config.EngineConfig{
		DT:        DefaultDT,
		Algorithm: AlgoFlock,
		Clusters:  []config.Cluster{{Shape: "sphere", Count: 16, Radius: 1, RadialSpeed: 50}},
	}
	s, err := NewFromConfig(cfg)
	require.NoError(t, err)

	maxSpeed := FlockDefaults().MaxSpeed
	for i := 0; i < 100; i++ {
		s.Tick()
		states := s.States()
		for a := 0; a < s.Len(); a++ {
			v := vmath.Vec3{
				X: float64(states[a*6+3]),
				Y: float64(states[a*6+4]),
				Z: float64(states[a*6+5]),
			}
			assert.LessOrEqual(t, v.Norm(), maxSpeed*(1+1e-5))
		}
	}
}

func TestWrappedErrorsExposeKind(t *testing.T) {
	_, err := NewWithIDs("nope", AlgoFlock)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownID))
	assert.Contains(t, err.Error(), "nope")
}
