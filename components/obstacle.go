package components

import "github.com/pthm-cable/swarm/vmath"

// Obstacle is a spherical keep-out region moving on a quadratic path
// p(t) = A2*t^2 + A1*t + A0. Obstacles are global and immutable for the
// lifetime of a run.
type Obstacle struct {
	A0, A1, A2 vmath.Vec3
	D          float64 // safety radius, > 0
}

// PositionAt evaluates the obstacle center at time t.
func (o Obstacle) PositionAt(t float64) vmath.Vec3 {
	return o.A0.Add(o.A1.Scale(t)).Add(o.A2.Scale(t * t))
}

// VelocityAt evaluates the obstacle velocity at time t.
func (o Obstacle) VelocityAt(t float64) vmath.Vec3 {
	return o.A1.Add(o.A2.Scale(2 * t))
}

// AccelAt returns the (constant) obstacle acceleration.
func (o Obstacle) AccelAt() vmath.Vec3 {
	return o.A2.Scale(2)
}

// StaticObstacle builds a non-moving obstacle at p with radius d.
func StaticObstacle(p vmath.Vec3, d float64) Obstacle {
	return Obstacle{A0: p, D: d}
}
