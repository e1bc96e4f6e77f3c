package systems

import (
	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/vmath"
)

// Integrator advances agent state with a semi-implicit Euler step:
// force updates velocity first, the updated velocity moves the position.
// The scheme is symplectic for the second-order model.
type Integrator struct {
	// MaxSpeed caps ||v|| after the velocity update; <= 0 disables.
	MaxSpeed float64
	// Plane2D forces z components of u, v, x to zero after the step.
	Plane2D bool
}

// Step applies u as an acceleration over dt to every agent:
//
//	v <- clamp((v + u*dt) * max(1 - c_i*dt, 0), MaxSpeed)
//	x <- x + v*dt
//
// Non-finite inputs are sanitized to zero; the returned count is the
// number of sanitized values for the fault counter.
func (it *Integrator) Step(agents *components.Agents, u []vmath.Vec3, dt float64) int {
	faults := 0
	for i := range agents.Pos {
		ui := u[i]
		if it.Plane2D {
			ui.Z = 0
		}
		if s, bad := ui.Sanitize(); bad {
			ui = s
			faults++
		}

		drag := 1 - agents.Drag[i]*dt
		if drag < 0 {
			drag = 0
		}
		v := agents.Vel[i].Add(ui.Scale(dt)).Scale(drag).ClampNorm(it.MaxSpeed)
		if s, bad := v.Sanitize(); bad {
			v = s
			faults++
		}

		x := agents.Pos[i].Add(v.Scale(dt))
		if s, bad := x.Sanitize(); bad {
			x = s
			faults++
		}

		if it.Plane2D {
			v.Z = 0
			x.Z = 0
		}
		agents.Vel[i] = v
		agents.Pos[i] = x
	}
	return faults
}
