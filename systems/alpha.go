package systems

import (
	"fmt"
	"math"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/vmath"
)

// AlphaParams tunes Olfati-Saber alpha-lattice flocking.
type AlphaParams struct {
	DesiredDistance float64 `yaml:"desired_distance"`
	NeighborRadius  float64 `yaml:"neighbor_radius"`
	Epsilon         float64 `yaml:"epsilon"`
	A               float64 `yaml:"a"`
	B               float64 `yaml:"b"`
	H               float64 `yaml:"h"`
	GradientGain    float64 `yaml:"gradient_gain"`
	AlignmentGain   float64 `yaml:"alignment_gain"`
	MaxSpeed        float64 `yaml:"max_speed"`
	MaxForce        float64 `yaml:"max_force"`
	BoundaryRadius  float64 `yaml:"boundary_radius"`
	BoundaryGain    float64 `yaml:"boundary_gain"`
	SpeedDamp       float64 `yaml:"speed_damp"`
}

// DefaultAlphaParams returns the stock alpha-lattice tuning.
func DefaultAlphaParams() AlphaParams {
	return AlphaParams{
		DesiredDistance: 1.4,
		NeighborRadius:  2.6,
		Epsilon:         0.1,
		A:               5.0,
		B:               5.0,
		H:               0.2,
		GradientGain:    1.0,
		AlignmentGain:   1.0,
		MaxSpeed:        3.0,
		MaxForce:        4.0,
		BoundaryRadius:  50.0,
		BoundaryGain:    0.6,
		SpeedDamp:       0.4,
	}
}

// Validate checks range invariants without mutating anything.
func (p AlphaParams) Validate() error {
	switch {
	case p.DesiredDistance < 0:
		return fmt.Errorf("desired_distance %v < 0", p.DesiredDistance)
	case p.NeighborRadius < 0:
		return fmt.Errorf("neighbor_radius %v < 0", p.NeighborRadius)
	case p.DesiredDistance > p.NeighborRadius:
		return fmt.Errorf("desired_distance %v > neighbor_radius %v", p.DesiredDistance, p.NeighborRadius)
	case p.Epsilon <= 0:
		return fmt.Errorf("epsilon %v <= 0", p.Epsilon)
	case p.A <= 0 || p.B <= 0:
		return fmt.Errorf("action gains a=%v b=%v must be > 0", p.A, p.B)
	case p.B < p.A:
		return fmt.Errorf("action gains need b >= a, got a=%v b=%v", p.A, p.B)
	case p.H < 0 || p.H >= 1:
		return fmt.Errorf("bump h %v outside [0,1)", p.H)
	}
	return nil
}

// SigmaNorm is the smooth norm surrogate (1/eps)(sqrt(1+eps*||z||^2)-1).
func SigmaNorm(z vmath.Vec3, eps float64) float64 {
	return (math.Sqrt(1+eps*z.NormSq()) - 1) / eps
}

// SigmaGrad is the gradient of the sigma-norm, z/sqrt(1+eps*||z||^2).
func SigmaGrad(z vmath.Vec3, eps float64) vmath.Vec3 {
	return z.Scale(1 / math.Sqrt(1+eps*z.NormSq()))
}

// Bump is the C1 cut-off rho_h: 1 on [0,h], cosine ramp down to 0 at 1.
func Bump(s, h float64) float64 {
	switch {
	case s < 0 || s > 1:
		return 0
	case s <= h:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(s-h)/(1-h)))
	}
}

// sigma1 is the scalar smoothing z/sqrt(1+z^2).
func sigma1(z float64) float64 {
	return z / math.Sqrt(1+z*z)
}

// actionPhi is phi(z) = 0.5*((a+b)*sigma1(z+c) + (a-b)) with
// c = (a-b)/sqrt(4ab), so phi(0) = a-b (zero when a = b) and phi
// saturates at a and -b.
func actionPhi(z, a, b float64) float64 {
	c := (a - b) / math.Sqrt(4*a*b)
	return 0.5 * ((a+b)*sigma1(z+c) + (a - b))
}

// PhiAlpha is the lattice action function
// phi_alpha(s) = rho_h(s/rAlpha) * phi(s - dAlpha).
func PhiAlpha(s, rAlpha, dAlpha, h, a, b float64) float64 {
	return Bump(s/rAlpha, h) * actionPhi(s-dAlpha, a, b)
}

// AlphaLattice is the Olfati-Saber gradient flocking system.
type AlphaLattice struct {
	Params AlphaParams
}

// Radius returns the largest neighbor radius the system queries with.
func (al *AlphaLattice) Radius() float64 {
	return al.Params.NeighborRadius
}

// Step writes one control vector per agent into u. The gradient term
// attracts toward (repels from) lattice distance, the consensus term
// aligns velocities with bump-weighted neighbors.
func (al *AlphaLattice) Step(agents *components.Agents, grid *SpatialGrid, u []vmath.Vec3) {
	p := al.Params
	rAlpha := sigmaNormScalar(p.NeighborRadius, p.Epsilon)
	dAlpha := sigmaNormScalar(p.DesiredDistance, p.Epsilon)

	for i := range agents.Pos {
		xi := agents.Pos[i]
		vi := agents.Vel[i]

		var grad, align vmath.Vec3
		grid.ForEachNeighbor(xi, p.NeighborRadius, i, func(n Neighbor) {
			s := SigmaNorm(n.Delta, p.Epsilon)
			phi := PhiAlpha(s, rAlpha, dAlpha, p.H, p.A, p.B)
			grad = grad.Add(SigmaGrad(n.Delta, p.Epsilon).Scale(phi))

			aij := Bump(s/rAlpha, p.H)
			align = align.Add(agents.Vel[n.J].Sub(vi).Scale(aij))
		})

		force := grad.Scale(p.GradientGain).
			Add(align.Scale(p.AlignmentGain)).
			Add(boundaryForce(xi, p.BoundaryRadius, p.BoundaryGain))

		lim := vmath.Vec3{X: p.MaxForce, Y: p.MaxForce, Z: p.MaxForce}
		force = force.ClampBox(lim.Scale(-1), lim)
		if p.MaxSpeed > 0 && vi.NormSq() > p.MaxSpeed*p.MaxSpeed {
			force = force.Sub(vi.Scale(p.SpeedDamp))
		}
		u[i] = force
	}
}

// sigmaNormScalar is the sigma-norm of a scalar distance.
func sigmaNormScalar(d, eps float64) float64 {
	return (math.Sqrt(1+eps*d*d) - 1) / eps
}
