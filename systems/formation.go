package systems

import (
	"fmt"
	"math"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/vmath"
)

// gravityAccel is standard gravity along -z for the second-order model.
const gravityAccel = 9.81

// FormationParams tunes fixed-time formation tracking with ECBF
// obstacle constraints.
type FormationParams struct {
	// Fixed-time consensus gains. M1 < 1 < M2 gives finite-time
	// convergence of the two error terms.
	K1        float64 `yaml:"k1"`
	K2        float64 `yaml:"k2"`
	Gamma1    float64 `yaml:"gamma1"`
	Gamma2    float64 `yaml:"gamma2"`
	M1        float64 `yaml:"m1"`
	M2        float64 `yaml:"m2"`
	SmoothEps float64 `yaml:"smooth_eps"`

	// ECBF gains: hdd + Kappa3*hd + (Kappa1*Kappa2 + Kappa2*Kappa3)*h >= -margin.
	Kappa1 float64 `yaml:"kappa1"`
	Kappa2 float64 `yaml:"kappa2"`
	Kappa3 float64 `yaml:"kappa3"`

	// Robustness terms. Lambda1, Lambda2*DeltaTheta and Delta2Star
	// tighten the barrier right-hand side; RobustnessMargin relaxes it
	// (the -margin above).
	Lambda1          float64 `yaml:"lambda1"`
	Lambda2          float64 `yaml:"lambda2"`
	DeltaTheta       float64 `yaml:"delta_theta"`
	Delta2Star       float64 `yaml:"delta2_star"`
	RobustnessMargin float64 `yaml:"robustness_margin"`

	// Actuation box and QP budget.
	UMin    vmath.Vec3 `yaml:"u_min"`
	UMax    vmath.Vec3 `yaml:"u_max"`
	QPIters int        `yaml:"qp_iters"`

	UseSlack    bool    `yaml:"use_slack"`
	SlackWeight float64 `yaml:"slack_weight"`
	SlackMax    float64 `yaml:"slack_max"`

	UseGravity             bool    `yaml:"use_gravity"`
	UseMovingObstacleTerms bool    `yaml:"use_moving_obstacle_terms"`
	ActivationRadius       float64 `yaml:"activation_radius"`
	AutoOffsets            bool    `yaml:"auto_offsets"`

	MuDotFilter    float64 `yaml:"mu_dot_filter"`
	AlphaDotFilter float64 `yaml:"alpha_dot_filter"`
}

// DefaultFormationParams returns the stock formation/ECBF tuning.
func DefaultFormationParams() FormationParams {
	return FormationParams{
		K1:        2.0,
		K2:        2.5,
		Gamma1:    1.0,
		Gamma2:    1.0,
		M1:        0.6,
		M2:        1.4,
		SmoothEps: 1e-3,

		Kappa1: 1.2,
		Kappa2: 1.2,
		Kappa3: 2.4,

		Lambda1:    0.5,
		Lambda2:    0.5,
		DeltaTheta: 0.1,

		UMin:    vmath.Vec3{X: -30, Y: -30, Z: -30},
		UMax:    vmath.Vec3{X: 30, Y: 30, Z: 30},
		QPIters: 14,

		SlackWeight: 50,
		SlackMax:    5,

		UseMovingObstacleTerms: true,
		ActivationRadius:       30,
		AutoOffsets:            true,

		MuDotFilter:    0.9,
		AlphaDotFilter: 0.9,
	}
}

// Validate checks range invariants without mutating anything.
func (p FormationParams) Validate() error {
	switch {
	case p.M1 <= 0 || p.M1 >= 1:
		return fmt.Errorf("m1 %v outside (0,1)", p.M1)
	case p.M2 <= 1:
		return fmt.Errorf("m2 %v must be > 1", p.M2)
	case p.SmoothEps <= 0:
		return fmt.Errorf("smooth_eps %v <= 0", p.SmoothEps)
	case p.QPIters < 1:
		return fmt.Errorf("qp_iters %v < 1", p.QPIters)
	case p.ActivationRadius < 0:
		return fmt.Errorf("activation_radius %v < 0", p.ActivationRadius)
	case p.MuDotFilter < 0 || p.MuDotFilter >= 1:
		return fmt.Errorf("mu_dot_filter %v outside [0,1)", p.MuDotFilter)
	case p.AlphaDotFilter < 0 || p.AlphaDotFilter >= 1:
		return fmt.Errorf("alpha_dot_filter %v outside [0,1)", p.AlphaDotFilter)
	}
	if p.UMin.X > p.UMax.X || p.UMin.Y > p.UMax.Y || p.UMin.Z > p.UMax.Z {
		return fmt.Errorf("u_min %v exceeds u_max %v", p.UMin, p.UMax)
	}
	return nil
}

// FormationECBF is the fixed-time formation tracker with per-agent
// ECBF-QP obstacle avoidance.
type FormationECBF struct {
	Params    FormationParams
	Form      *components.Formation
	Leader    components.Leader
	Obstacles []components.Obstacle

	// Aux carries the filtered derivative estimates and the attitude
	// state. NewFormationECBF always allocates it and Step updates it
	// for every model; it must not be nil.
	Aux *components.QuadAux

	Diag *components.FilterDiagnostics

	infeasible uint64
	qp         QPProblem
}

// NewFormationECBF builds the system for n agents with a fully
// connected formation and the given leader and obstacles.
func NewFormationECBF(n int, params FormationParams, leader components.Leader, obstacles []components.Obstacle) *FormationECBF {
	return &FormationECBF{
		Params:    params,
		Form:      components.NewFormation(n),
		Leader:    leader,
		Obstacles: obstacles,
		Aux:       components.NewQuadAux(n),
		Diag:      components.NewFilterDiagnostics(n),
	}
}

// InfeasibleCount returns how many per-agent solves fell back to the
// box-clipped nominal since construction.
func (f *FormationECBF) InfeasibleCount() uint64 {
	return f.infeasible
}

// Step writes one control vector per agent into u at simulation time t.
func (f *FormationECBF) Step(agents *components.Agents, t, dt float64, u []vmath.Vec3) {
	p := f.Params
	n := agents.Len()
	pL, vL, aL := f.Leader.Eval(t)
	kHigh := p.Kappa1*p.Kappa2 + p.Kappa2*p.Kappa3

	for i := 0; i < n; i++ {
		e, ed := f.errors(agents, i, pL, vL)
		uNom := vmath.Sig(e, p.M1, p.SmoothEps).Scale(-p.K1 * p.Gamma1).
			Add(vmath.Sig(ed, p.M2, p.SmoothEps).Scale(-p.K2 * p.Gamma2)).
			Add(aL)

		f.qp.Reset()
		f.qp.UNom = uNom
		f.qp.UMin, f.qp.UMax = p.UMin, p.UMax
		f.qp.UseSlack = p.UseSlack
		f.qp.SlackWeight = p.SlackWeight
		f.qp.SlackMax = p.SlackMax
		f.qp.Iters = p.QPIters

		xi := agents.Pos[i]
		vi := agents.Vel[i]
		for _, ob := range f.Obstacles {
			a, b, ok := f.obstacleRow(xi, vi, ob, t, kHigh, i)
			if ok {
				f.qp.AddRow(a, b, true)
			}
		}

		res := f.qp.Solve()
		if res.Infeasible {
			f.infeasible++
		}
		u[i] = res.U

		f.Diag.UNom[i] = uNom
		f.Diag.U[i] = res.U
		f.Diag.Slack[i] = res.Slack
		f.Diag.Active[i] = res.Active

		f.updateAux(i, res.U, dt)
	}
}

// errors computes the formation and velocity consensus errors for
// agent i against the adjacency, offsets, and leader link.
func (f *FormationECBF) errors(agents *components.Agents, i int, pL, vL vmath.Vec3) (e, ed vmath.Vec3) {
	xi := agents.Pos[i]
	vi := agents.Vel[i]
	di := f.Form.Delta[i]
	n := agents.Len()

	for j := 0; j < n; j++ {
		if j == i {
			continue
		}
		aij := f.Form.Adjacency.At(i, j)
		if aij == 0 {
			continue
		}
		rel := xi.Sub(agents.Pos[j]).Sub(di.Sub(f.Form.Delta[j]))
		e = e.Add(rel.Scale(aij))
		ed = ed.Add(vi.Sub(agents.Vel[j]).Scale(aij))
	}
	if li := f.Form.LeaderLink[i]; li != 0 {
		e = e.Add(xi.Sub(pL).Sub(di).Scale(li))
		ed = ed.Add(vi.Sub(vL).Scale(li))
	}
	return e, ed
}

// obstacleRow linearizes the ECBF condition for one obstacle into
// a.u <= b. ok is false when the obstacle is outside the activation
// radius and the row would never bind.
func (f *FormationECBF) obstacleRow(x, v vmath.Vec3, ob components.Obstacle, t, kHigh float64, i int) (a vmath.Vec3, b float64, ok bool) {
	p := f.Params
	op := ob.PositionAt(t)
	delta := x.Sub(op)
	dist := delta.Norm()
	if p.ActivationRadius > 0 && dist > ob.D+p.ActivationRadius {
		return vmath.Vec3{}, 0, false
	}

	ov := ob.VelocityAt(t)
	relV := v.Sub(ov)

	h := delta.NormSq() - ob.D*ob.D
	hd := 2 * delta.Dot(relV)

	// hdd = 2*||relV||^2 + 2*delta.(u - g*zhat - pdd); control terms stay
	// on the left, the rest moves into b.
	b = 2*relV.NormSq() + p.Kappa3*hd + kHigh*h + p.RobustnessMargin
	if p.UseGravity {
		b -= 2 * delta.Dot(vmath.Vec3{Z: gravityAccel})
	}
	if p.UseMovingObstacleTerms {
		b -= 2 * delta.Dot(ob.AccelAt())
	}

	// Robustness: filtered derivative uncertainty and attitude error
	// tighten the right-hand side.
	robust := p.Lambda1*f.Aux.MuDot[i].Norm() + p.Lambda2*p.DeltaTheta + p.Delta2Star
	b -= robust

	return delta.Scale(-2), b, true
}

// updateAux advances the low-pass filtered derivative estimates and the
// attitude state of the second-order model.
func (f *FormationECBF) updateAux(i int, u vmath.Vec3, dt float64) {
	if dt <= 0 {
		return
	}
	p := f.Params
	aux := f.Aux

	rate := u.Sub(aux.LastU[i]).Scale(1 / dt)
	aux.MuDot[i] = aux.MuDot[i].Scale(p.MuDotFilter).Add(rate.Scale(1 - p.MuDotFilter))
	aux.LastU[i] = u

	// Attitude follows the desired thrust direction: the quadrotor tilts
	// into the commanded acceleration with gravity compensation.
	thrust := u.Add(vmath.Vec3{Z: gravityAccel})
	tn := thrust.Norm()
	if tn > 1e-9 {
		roll := math.Asin(vmath.Clamp(-thrust.Y/tn, -1, 1))
		pitch := math.Atan2(thrust.X, thrust.Z)
		prev := vmath.Vec3{X: aux.Roll[i], Y: aux.Pitch[i], Z: aux.Yaw[i]}
		next := vmath.Vec3{X: roll, Y: pitch, Z: aux.Yaw[i]}
		rate := next.Sub(prev).Scale(1 / dt)
		aux.AlphaDot[i] = aux.AlphaDot[i].Scale(p.AlphaDotFilter).Add(rate.Scale(1 - p.AlphaDotFilter))
		aux.Roll[i] = roll
		aux.Pitch[i] = pitch
		aux.ThrustTrim[i] = tn
	}
}
