package systems

import (
	"fmt"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/vmath"
)

// FlockParams tunes classic Reynolds flocking.
type FlockParams struct {
	NeighborRadius   float64 `yaml:"neighbor_radius"`
	SeparationRadius float64 `yaml:"separation_radius"`
	CohesionWeight   float64 `yaml:"cohesion_weight"`
	AlignmentWeight  float64 `yaml:"alignment_weight"`
	SeparationWeight float64 `yaml:"separation_weight"`
	MaxSpeed         float64 `yaml:"max_speed"`
	MaxForce         float64 `yaml:"max_force"`
	BoundaryRadius   float64 `yaml:"boundary_radius"`
	BoundaryGain     float64 `yaml:"boundary_gain"`
	SpeedDamp        float64 `yaml:"speed_damp"`
}

// DefaultFlockParams returns the stock Reynolds tuning.
func DefaultFlockParams() FlockParams {
	return FlockParams{
		NeighborRadius:   2.6,
		SeparationRadius: 0.9,
		CohesionWeight:   1.0,
		AlignmentWeight:  1.0,
		SeparationWeight: 10.35,
		MaxSpeed:         3.0,
		MaxForce:         4.0,
		BoundaryRadius:   50.0,
		BoundaryGain:     0.6,
		SpeedDamp:        0.4,
	}
}

// Validate checks range invariants without mutating anything.
func (p FlockParams) Validate() error {
	switch {
	case p.NeighborRadius < 0:
		return fmt.Errorf("neighbor_radius %v < 0", p.NeighborRadius)
	case p.SeparationRadius < 0:
		return fmt.Errorf("separation_radius %v < 0", p.SeparationRadius)
	case p.SeparationRadius > p.NeighborRadius:
		return fmt.Errorf("separation_radius %v > neighbor_radius %v", p.SeparationRadius, p.NeighborRadius)
	case p.BoundaryRadius < 0:
		return fmt.Errorf("boundary_radius %v < 0", p.BoundaryRadius)
	}
	return nil
}

// Reynolds is the classic cohesion/alignment/separation flocking system.
type Reynolds struct {
	Params FlockParams
}

// Radius returns the largest neighbor radius the system queries with.
func (r *Reynolds) Radius() float64 {
	return r.Params.NeighborRadius
}

// Step writes one control vector per agent into u.
func (r *Reynolds) Step(agents *components.Agents, grid *SpatialGrid, u []vmath.Vec3) {
	p := r.Params
	sepSq := p.SeparationRadius * p.SeparationRadius

	for i := range agents.Pos {
		xi := agents.Pos[i]
		vi := agents.Vel[i]

		var centroid, meanVel, sep vmath.Vec3
		count := 0

		grid.ForEachNeighbor(xi, p.NeighborRadius, i, func(n Neighbor) {
			centroid = centroid.Add(agents.Pos[n.J])
			meanVel = meanVel.Add(agents.Vel[n.J])
			count++
			if n.DistSq <= sepSq && n.DistSq > 0 {
				// Repulsion (x_i - x_j)/d^2: magnitude falls off as 1/d.
				sep = sep.Add(n.Delta.Scale(-1 / n.DistSq))
			}
		})

		var force vmath.Vec3
		if count > 0 {
			inv := 1 / float64(count)
			cohesion := steerToward(centroid.Scale(inv).Sub(xi), vi, p.MaxSpeed)
			alignment := steerToward(meanVel.Scale(inv), vi, p.MaxSpeed)
			force = force.
				Add(cohesion.Scale(p.CohesionWeight)).
				Add(alignment.Scale(p.AlignmentWeight)).
				Add(sep.Scale(p.SeparationWeight))
		}
		force = force.Add(boundaryForce(xi, p.BoundaryRadius, p.BoundaryGain))

		// Componentwise force clamp, then damping above max speed.
		lim := vmath.Vec3{X: p.MaxForce, Y: p.MaxForce, Z: p.MaxForce}
		force = force.ClampBox(lim.Scale(-1), lim)
		if p.MaxSpeed > 0 && vi.NormSq() > p.MaxSpeed*p.MaxSpeed {
			force = force.Sub(vi.Scale(p.SpeedDamp))
		}
		u[i] = force
	}
}

// steerToward produces the steering acceleration toward the desired
// direction at max speed, relative to the current velocity.
func steerToward(desired, vel vmath.Vec3, maxSpeed float64) vmath.Vec3 {
	if desired.NormSq() == 0 {
		return vmath.Vec3{}
	}
	return desired.Normalize().Scale(maxSpeed).Sub(vel)
}

// boundaryForce pulls an agent back inside the soft spherical boundary
// proportionally to how far it has strayed.
func boundaryForce(x vmath.Vec3, radius, gain float64) vmath.Vec3 {
	if radius <= 0 || gain <= 0 {
		return vmath.Vec3{}
	}
	d := x.Norm()
	if d <= radius {
		return vmath.Vec3{}
	}
	return x.Normalize().Scale(-gain * (d - radius))
}
