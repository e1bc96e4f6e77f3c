package systems

import (
	"fmt"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/vmath"
)

// SafeFlockParams tunes the safe-flocking composite: an alpha-lattice
// nominal controller filtered through a CBF-QP with obstacle and
// optional inter-agent barriers.
type SafeFlockParams struct {
	Alpha AlphaParams `yaml:"alpha"`

	DSafe             float64 `yaml:"d_safe"`
	CBFNeighborRadius float64 `yaml:"cbf_neighbor_radius"`
	// KappaA/KappaB are the pole pair of the relative-degree-2 barrier:
	// hdd + (KappaA+KappaB)*hd + KappaA*KappaB*h >= 0.
	KappaA float64 `yaml:"kappa_a"`
	KappaB float64 `yaml:"kappa_b"`

	SlackWeight float64 `yaml:"slack_weight"`
	SlackMax    float64 `yaml:"slack_max"`
	QPIters     int     `yaml:"qp_iters"`

	UMin vmath.Vec3 `yaml:"u_min"`
	UMax vmath.Vec3 `yaml:"u_max"`

	UseAgentCBF    bool `yaml:"use_agent_cbf"`
	UseObstacleCBF bool `yaml:"use_obstacle_cbf"`
	TwoPass        bool `yaml:"two_pass"`
}

// DefaultSafeFlockParams returns the stock safe-flocking tuning.
func DefaultSafeFlockParams() SafeFlockParams {
	return SafeFlockParams{
		Alpha:             DefaultAlphaParams(),
		DSafe:             0.9,
		CBFNeighborRadius: 2.0,
		KappaA:            1.0,
		KappaB:            2.0,
		SlackWeight:       50,
		SlackMax:          5,
		QPIters:           14,
		UMin:              vmath.Vec3{X: -30, Y: -30, Z: -30},
		UMax:              vmath.Vec3{X: 30, Y: 30, Z: 30},
		UseAgentCBF:       true,
		UseObstacleCBF:    true,
	}
}

// Validate checks range invariants without mutating anything.
func (p SafeFlockParams) Validate() error {
	if err := p.Alpha.Validate(); err != nil {
		return err
	}
	switch {
	case p.DSafe < 0:
		return fmt.Errorf("d_safe %v < 0", p.DSafe)
	case p.CBFNeighborRadius < 0:
		return fmt.Errorf("cbf_neighbor_radius %v < 0", p.CBFNeighborRadius)
	case p.UseAgentCBF && p.DSafe > p.CBFNeighborRadius:
		return fmt.Errorf("d_safe %v > cbf_neighbor_radius %v", p.DSafe, p.CBFNeighborRadius)
	case p.QPIters < 1:
		return fmt.Errorf("qp_iters %v < 1", p.QPIters)
	case p.SlackWeight < 0:
		return fmt.Errorf("slack_weight %v < 0", p.SlackWeight)
	case p.SlackMax < 0:
		return fmt.Errorf("slack_max %v < 0", p.SlackMax)
	}
	if p.UMin.X > p.UMax.X || p.UMin.Y > p.UMax.Y || p.UMin.Z > p.UMax.Z {
		return fmt.Errorf("u_min %v exceeds u_max %v", p.UMin, p.UMax)
	}
	return nil
}

// SafeFlock runs alpha-lattice flocking through a CBF-QP safety filter.
type SafeFlock struct {
	Params    SafeFlockParams
	Obstacles []components.Obstacle
	Diag      *components.FilterDiagnostics

	lattice    AlphaLattice
	uNom       []vmath.Vec3
	infeasible uint64
	qp         QPProblem
}

// NewSafeFlock builds the composite for n agents.
func NewSafeFlock(n int, params SafeFlockParams, obstacles []components.Obstacle) *SafeFlock {
	return &SafeFlock{
		Params:    params,
		Obstacles: obstacles,
		Diag:      components.NewFilterDiagnostics(n),
		lattice:   AlphaLattice{Params: params.Alpha},
		uNom:      make([]vmath.Vec3, n),
	}
}

// Radius returns the largest neighbor radius the system queries with,
// covering both the lattice and the inter-agent barriers.
func (s *SafeFlock) Radius() float64 {
	r := s.Params.Alpha.NeighborRadius
	if s.Params.UseAgentCBF && s.Params.CBFNeighborRadius > r {
		r = s.Params.CBFNeighborRadius
	}
	return r
}

// InfeasibleCount returns how many per-agent solves fell back to the
// box-clipped nominal since construction.
func (s *SafeFlock) InfeasibleCount() uint64 {
	return s.infeasible
}

// Step computes the lattice nominal for every agent, then projects each
// onto the barrier-safe set.
func (s *SafeFlock) Step(agents *components.Agents, grid *SpatialGrid, t float64, u []vmath.Vec3) {
	s.lattice.Params = s.Params.Alpha
	s.lattice.Step(agents, grid, s.uNom)

	for i := range agents.Pos {
		res := s.filterOne(agents, grid, i, s.uNom[i], t, s.Params.SlackMax)
		u[i] = res.U

		s.Diag.UNom[i] = s.uNom[i]
		s.Diag.U[i] = res.U
		s.Diag.Slack[i] = res.Slack
		s.Diag.Active[i] = res.Active
	}
}

// SecondPass re-verifies the barriers against the just-integrated state
// and applies a velocity correction for any residual violation. The
// second-pass slack is clamped to SlackMax. Called by the engine only
// when TwoPass is enabled.
func (s *SafeFlock) SecondPass(agents *components.Agents, grid *SpatialGrid, t, dt float64) {
	if dt <= 0 {
		return
	}
	for i := range agents.Pos {
		res := s.filterOne(agents, grid, i, vmath.Vec3{}, t, s.Params.SlackMax)
		if res.U.NormSq() == 0 {
			continue
		}
		agents.Vel[i] = agents.Vel[i].Add(res.U.Scale(dt))
		s.Diag.U[i] = s.Diag.U[i].Add(res.U)
		s.Diag.Slack[i] = res.Slack
		s.Diag.Active[i] += res.Active
	}
}

// filterOne assembles and solves the CBF-QP for one agent.
func (s *SafeFlock) filterOne(agents *components.Agents, grid *SpatialGrid, i int, uNom vmath.Vec3, t float64, slackMax float64) QPResult {
	p := s.Params
	xi := agents.Pos[i]
	vi := agents.Vel[i]
	kSum := p.KappaA + p.KappaB
	kProd := p.KappaA * p.KappaB

	s.qp.Reset()
	s.qp.UNom = uNom
	s.qp.UMin, s.qp.UMax = p.UMin, p.UMax
	s.qp.UseSlack = p.SlackWeight > 0 && slackMax > 0
	s.qp.SlackWeight = p.SlackWeight
	s.qp.SlackMax = slackMax
	s.qp.Iters = p.QPIters

	if p.UseObstacleCBF {
		for _, ob := range s.Obstacles {
			op := ob.PositionAt(t)
			delta := xi.Sub(op)
			relV := vi.Sub(ob.VelocityAt(t))
			h := delta.NormSq() - ob.D*ob.D
			hd := 2 * delta.Dot(relV)
			b := 2*relV.NormSq() - 2*delta.Dot(ob.AccelAt()) + kSum*hd + kProd*h
			s.qp.AddRow(delta.Scale(-2), b, true)
		}
	}

	if p.UseAgentCBF {
		// Each agent owns its row of the pairwise barrier; the
		// neighbor's control is not modeled here, its own solve covers
		// the symmetric half.
		grid.ForEachNeighbor(xi, p.CBFNeighborRadius, i, func(n Neighbor) {
			delta := n.Delta.Scale(-1) // x_i - x_j
			relV := vi.Sub(agents.Vel[n.J])
			h := n.DistSq - p.DSafe*p.DSafe
			hd := 2 * delta.Dot(relV)
			b := 2*relV.NormSq() + kSum*hd + kProd*h
			s.qp.AddRow(delta.Scale(-2), b, true)
		})
	}

	res := s.qp.Solve()
	if res.Infeasible {
		s.infeasible++
	}
	return res
}
