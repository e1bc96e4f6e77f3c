package sim

import (
	"fmt"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/systems"
	"github.com/pthm-cable/swarm/vmath"
)

// DefaultDT is the engine timestep when no config overrides it.
const DefaultDT = 1.0 / 60.0

// state is the engine lifecycle phase. Tick is only valid in Running;
// SetAlgorithm passes through Configured when the auxiliary state
// layout changes, atomically from the caller's view.
type state int

const (
	stateConfigured state = iota
	stateRunning
)

// Sim is one engine instance. It exclusively owns the backing storage;
// reader methods return views into it that stay valid until the next
// mutating call. Callers are single-threaded by contract.
type Sim struct {
	agents *components.Agents
	grid   *systems.SpatialGrid
	integ  systems.Integrator
	u      []vmath.Vec3

	modelID string
	algoID  string
	dt      float64
	time    float64
	phase   state

	// Parameter records persist across algorithm switches.
	flockParams     systems.FlockParams
	alphaParams     systems.AlphaParams
	formationParams systems.FormationParams
	safeParams      systems.SafeFlockParams

	leader    components.Leader
	obstacles []components.Obstacle

	// Active algorithm variant; exactly one is non-nil.
	flock     *systems.Reynolds
	alpha     *systems.AlphaLattice
	formation *systems.FormationECBF
	safe      *systems.SafeFlock

	faults uint64
}

// Option adjusts construction.
type Option func(*Sim)

// WithObstacles sets the global obstacle set. Obstacles are immutable
// for the run.
func WithObstacles(obs []components.Obstacle) Option {
	return func(s *Sim) { s.obstacles = obs }
}

// WithLeader sets the leader trajectory used by formation control.
func WithLeader(l components.Leader) Option {
	return func(s *Sim) { s.leader = l }
}

// WithDT overrides the timestep.
func WithDT(dt float64) Option {
	return func(s *Sim) { s.dt = dt }
}

// NewDemo creates the default demo: 64 point agents under Reynolds
// flocking.
func NewDemo() *Sim {
	s, err := NewWithIDs(ModelPoint, AlgoFlock)
	if err != nil {
		// The demo pair is always cataloged.
		panic(err)
	}
	return s
}

// NewWithIDs creates a simulation from a cataloged model/algorithm
// pair, spawning the model's default fleet.
func NewWithIDs(modelID, algoID string, opts ...Option) (*Sim, error) {
	if _, ok := modelEntry(modelID); !ok {
		return nil, fmt.Errorf("%w: model %q", ErrUnknownID, modelID)
	}
	if !algorithmKnown(algoID) {
		return nil, fmt.Errorf("%w: algorithm %q", ErrUnknownID, algoID)
	}
	if !algorithmAllowed(modelID, algoID) {
		return nil, fmt.Errorf("%w: %q on model %q", ErrIncompatibleAlgorithm, algoID, modelID)
	}

	cfg := defaultFleet(algoID)
	s := newFromSpawns(cfg.Spawns(), modelID, algoID, DefaultDT, false)
	s.leader = defaultLeader(algoID)
	for _, opt := range opts {
		opt(s)
	}
	s.initAlgorithm()
	return s, nil
}

// NewFromConfig creates a simulation from an explicit cluster spec.
// The model is the point model; the algorithm comes from the config.
func NewFromConfig(cfg *config.EngineConfig, opts ...Option) (*Sim, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	algoID := cfg.Algorithm
	if algoID == "" {
		algoID = AlgoFlock
	}
	if !algorithmKnown(algoID) {
		return nil, fmt.Errorf("%w: algorithm %q", ErrUnknownID, algoID)
	}
	dt := cfg.DT
	if dt == 0 {
		dt = DefaultDT
	}
	s := newFromSpawns(cfg.Spawns(), ModelPoint, algoID, dt, cfg.Plane2D)
	s.leader = defaultLeader(algoID)
	for _, opt := range opts {
		opt(s)
	}
	s.initAlgorithm()
	return s, nil
}

func newFromSpawns(spawns []config.Spawn, modelID, algoID string, dt float64, plane2D bool) *Sim {
	n := len(spawns)
	agents := components.NewAgents(n)
	for i, sp := range spawns {
		agents.Pos[i] = sp.Pos
		agents.Vel[i] = sp.Vel
		agents.Drag[i] = sp.Drag
		agents.Group[i] = sp.Group
	}
	return &Sim{
		agents:          agents,
		grid:            systems.NewSpatialGrid(1),
		integ:           systems.Integrator{Plane2D: plane2D},
		u:               make([]vmath.Vec3, n),
		modelID:         modelID,
		algoID:          algoID,
		dt:              dt,
		phase:           stateConfigured,
		flockParams:     systems.DefaultFlockParams(),
		alphaParams:     systems.DefaultAlphaParams(),
		formationParams: systems.DefaultFormationParams(),
		safeParams:      systems.DefaultSafeFlockParams(),
	}
}

// defaultFleet picks the stock spawn for an algorithm.
func defaultFleet(algoID string) *config.EngineConfig {
	cl := config.Cluster{Shape: "sphere", Count: 64, Radius: 8}
	switch algoID {
	case AlgoAlpha, AlgoSafeFlock:
		cl.Count, cl.Radius = 16, 3
	case AlgoFormation:
		cl.Count, cl.Radius = 6, 3
		cl.Center = [3]float64{80, 60, 0}
	}
	return &config.EngineConfig{DT: DefaultDT, Clusters: []config.Cluster{cl}}
}

func defaultLeader(algoID string) components.Leader {
	if algoID == AlgoFormation {
		return components.PaperLeader()
	}
	return components.StaticLeader(vmath.Vec3{})
}

// initAlgorithm builds the active algorithm variant from the stored
// parameter records, resetting auxiliary state. Transitions the engine
// into Running.
func (s *Sim) initAlgorithm() {
	n := s.agents.Len()
	s.flock, s.alpha, s.formation, s.safe = nil, nil, nil, nil

	switch s.algoID {
	case AlgoFlock:
		s.flock = &systems.Reynolds{Params: s.flockParams}
	case AlgoAlpha:
		s.alpha = &systems.AlphaLattice{Params: s.alphaParams}
	case AlgoFormation:
		f := systems.NewFormationECBF(n, s.formationParams, s.leader, s.obstacles)
		if s.formationParams.AutoOffsets {
			f.Form.AutoOffsets(s.agents.Pos)
		}
		s.formation = f
	case AlgoSafeFlock:
		s.safe = systems.NewSafeFlock(n, s.safeParams, s.obstacles)
	}
	s.phase = stateRunning
}

// Len returns the agent count.
func (s *Sim) Len() int { return s.agents.Len() }

// DT returns the timestep.
func (s *Sim) DT() float64 { return s.dt }

// Time returns the accumulated simulation time.
func (s *Sim) Time() float64 { return s.time }

// ModelID returns the active model id.
func (s *Sim) ModelID() string { return s.modelID }

// AlgorithmID returns the active algorithm id.
func (s *Sim) AlgorithmID() string { return s.algoID }

// Plane2D reports whether 2D projection is active.
func (s *Sim) Plane2D() bool { return s.integ.Plane2D }

// NumericalFaults returns the count of sanitized non-finite values.
func (s *Sim) NumericalFaults() uint64 { return s.faults }

// InfeasibleQP returns the count of per-agent solves that fell back to
// the box-clipped nominal.
func (s *Sim) InfeasibleQP() uint64 {
	switch {
	case s.formation != nil:
		return s.formation.InfeasibleCount()
	case s.safe != nil:
		return s.safe.InfeasibleCount()
	}
	return 0
}

// Tick advances the simulation one step. It never fails: numerical
// faults are sanitized and counted, infeasible solves fall back.
func (s *Sim) Tick() {
	if s.phase != stateRunning || s.agents.Len() == 0 {
		return
	}
	if s.dt == 0 {
		return
	}

	s.integ.MaxSpeed = s.activeMaxSpeed()

	switch {
	case s.flock != nil:
		s.rebuildGrid(s.flock.Radius())
		s.flock.Step(s.agents, s.grid, s.u)
	case s.alpha != nil:
		s.rebuildGrid(s.alpha.Radius())
		s.alpha.Step(s.agents, s.grid, s.u)
	case s.formation != nil:
		s.formation.Step(s.agents, s.time, s.dt, s.u)
	case s.safe != nil:
		s.rebuildGrid(s.safe.Radius())
		s.safe.Step(s.agents, s.grid, s.time, s.u)
	}

	s.faults += uint64(s.integ.Step(s.agents, s.u, s.dt))

	if s.safe != nil && s.safe.Params.TwoPass {
		s.rebuildGrid(s.safe.Radius())
		s.safe.SecondPass(s.agents, s.grid, s.time+s.dt, s.dt)
		s.clampAfterCorrection()
	}

	s.time += s.dt
}

func (s *Sim) rebuildGrid(radius float64) {
	s.grid.SetCellSize(radius)
	s.grid.Rebuild(s.agents.Pos)
}

// clampAfterCorrection re-applies the speed cap and plane projection
// after a second-pass velocity correction.
func (s *Sim) clampAfterCorrection() {
	maxSpeed := s.integ.MaxSpeed
	for i := range s.agents.Vel {
		v := s.agents.Vel[i].ClampNorm(maxSpeed)
		if s.integ.Plane2D {
			v.Z = 0
		}
		s.agents.Vel[i] = v
	}
}

func (s *Sim) activeMaxSpeed() float64 {
	switch {
	case s.flock != nil:
		return s.flock.Params.MaxSpeed
	case s.alpha != nil:
		return s.alpha.Params.MaxSpeed
	case s.safe != nil:
		return s.safe.Params.Alpha.MaxSpeed
	}
	return 0
}

// Positions returns the flat [N*3] float32 position view. Valid until
// the next mutating call.
func (s *Sim) Positions() []float32 {
	return s.agents.PosView()
}

// States returns the flat [N*F] float32 state view: F=6 for the base
// algorithms, extended for safe flocking.
func (s *Sim) States() []float32 {
	if s.safe != nil {
		return s.agents.StateView(s.safe.Diag)
	}
	return s.agents.StateView(nil)
}

// DebugStates returns the state view in the extended layout regardless
// of algorithm; algorithms without a safety filter report zero
// diagnostics.
func (s *Sim) DebugStates() []float32 {
	switch {
	case s.safe != nil:
		return s.agents.StateView(s.safe.Diag)
	case s.formation != nil:
		return s.agents.StateView(s.formation.Diag)
	}
	return s.agents.StateView(components.NewFilterDiagnostics(s.agents.Len()))
}

// StateFields returns the field names of the States layout.
func (s *Sim) StateFields() []string {
	return components.FieldNames(s.safe != nil)
}

// Groups returns the per-agent group id view.
func (s *Sim) Groups() []uint32 {
	return s.agents.Group
}

// SetPositionAndVelocity teleports agent i, for interactive dragging.
func (s *Sim) SetPositionAndVelocity(i int, x, y, z, vx, vy, vz float64) error {
	if i < 0 || i >= s.agents.Len() {
		return fmt.Errorf("%w: agent index %d out of range", ErrInvalidParameter, i)
	}
	p := vmath.Vec3{X: x, Y: y, Z: z}
	v := vmath.Vec3{X: vx, Y: vy, Z: vz}
	if !p.IsFinite() || !v.IsFinite() {
		return fmt.Errorf("%w: non-finite state", ErrInvalidParameter)
	}
	if s.integ.Plane2D {
		p.Z, v.Z = 0, 0
	}
	s.agents.Pos[i] = p
	s.agents.Vel[i] = v
	return nil
}

// Reset rebuilds the active algorithm's auxiliary state (filters,
// diagnostics, formation offsets) without touching agent state.
func (s *Sim) Reset() {
	s.phase = stateConfigured
	s.initAlgorithm()
}

// SetPlane2D toggles projection onto the z=0 plane. Projection applies
// after the next integration step.
func (s *Sim) SetPlane2D(on bool) {
	s.integ.Plane2D = on
}

// SetAlgorithm switches the active algorithm. Switching to the current
// algorithm is a no-op. When the auxiliary state layout differs the
// engine re-initializes it atomically.
func (s *Sim) SetAlgorithm(algoID string) error {
	if algoID == s.algoID {
		return nil
	}
	if !algorithmKnown(algoID) {
		return fmt.Errorf("%w: algorithm %q", ErrUnknownID, algoID)
	}
	if !algorithmAllowed(s.modelID, algoID) {
		return fmt.Errorf("%w: %q on model %q", ErrIncompatibleAlgorithm, algoID, s.modelID)
	}
	s.phase = stateConfigured
	s.algoID = algoID
	s.initAlgorithm()
	return nil
}

// SetFlockParams replaces the Reynolds parameters after validation.
func (s *Sim) SetFlockParams(p systems.FlockParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	s.flockParams = p
	if s.flock != nil {
		s.flock.Params = p
	}
	return nil
}

// SetFlockAlphaParams replaces the alpha-lattice parameters after
// validation.
func (s *Sim) SetFlockAlphaParams(p systems.AlphaParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	s.alphaParams = p
	if s.alpha != nil {
		s.alpha.Params = p
	}
	return nil
}

// SetFormationECBFParams replaces the formation/ECBF parameters after
// validation.
func (s *Sim) SetFormationECBFParams(p systems.FormationParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	s.formationParams = p
	if s.formation != nil {
		s.formation.Params = p
	}
	return nil
}

// SetSafeFlockingAlphaParams replaces the safe-flocking parameters
// after validation.
func (s *Sim) SetSafeFlockingAlphaParams(p systems.SafeFlockParams) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	s.safeParams = p
	if s.safe != nil {
		s.safe.Params = p
	}
	return nil
}

// FlockDefaults returns the stock Reynolds parameters.
func FlockDefaults() systems.FlockParams { return systems.DefaultFlockParams() }

// FlockAlphaDefaults returns the stock alpha-lattice parameters.
func FlockAlphaDefaults() systems.AlphaParams { return systems.DefaultAlphaParams() }

// FormationECBFDefaults returns the stock formation/ECBF parameters.
func FormationECBFDefaults() systems.FormationParams { return systems.DefaultFormationParams() }

// SafeFlockingAlphaDefaults returns the stock safe-flocking parameters.
func SafeFlockingAlphaDefaults() systems.SafeFlockParams { return systems.DefaultSafeFlockParams() }
