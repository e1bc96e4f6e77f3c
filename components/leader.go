package components

import (
	"math"

	"github.com/pthm-cable/swarm/vmath"
)

// LeaderKind selects the leader trajectory family.
type LeaderKind int

const (
	// LeaderStatic holds a fixed position.
	LeaderStatic LeaderKind = iota
	// LeaderCircle orbits a center at constant angular rate.
	LeaderCircle
	// LeaderPoly follows a quadratic p(t) = A2*t^2 + A1*t + A0.
	LeaderPoly
	// LeaderPaper reproduces the demo trajectory from the formation
	// control paper: a slow spiral climbing at 0.5 m/s.
	LeaderPaper
	// LeaderCustom is an extension hook. Unrecognized custom leaders
	// fall back to LeaderPaper.
	LeaderCustom
)

// Paper trajectory constants, kept exact for parity with recorded runs.
const (
	paperOmega   = -0.06
	paperOffsetX = 60.0
	paperOffsetY = 60.0
	paperRadius  = 20.0
	paperClimb   = 0.5
)

// Leader is the tagged leader trajectory. Eval produces position,
// velocity, and acceleration at simulation time t. When Paused is set
// the clock freezes at the pause instant; TimeScale stretches or
// compresses the clock (1 = real time).
type Leader struct {
	Kind      LeaderKind
	Static    vmath.Vec3
	Center    vmath.Vec3
	Radius    float64
	Omega     float64
	A0, A1, A2 vmath.Vec3
	Paused    bool
	PausedAt  float64
	TimeScale float64
}

// StaticLeader builds a leader fixed at p.
func StaticLeader(p vmath.Vec3) Leader {
	return Leader{Kind: LeaderStatic, Static: p, TimeScale: 1}
}

// CircleLeader builds a leader orbiting center at radius r with angular
// rate omega.
func CircleLeader(center vmath.Vec3, r, omega float64) Leader {
	return Leader{Kind: LeaderCircle, Center: center, Radius: r, Omega: omega, TimeScale: 1}
}

// PolyLeader builds a leader on the quadratic a2*t^2 + a1*t + a0.
func PolyLeader(a0, a1, a2 vmath.Vec3) Leader {
	return Leader{Kind: LeaderPoly, A0: a0, A1: a1, A2: a2, TimeScale: 1}
}

// PaperLeader builds the demo spiral leader.
func PaperLeader() Leader {
	return Leader{Kind: LeaderPaper, TimeScale: 1}
}

// Eval returns the leader position, velocity, and acceleration at
// simulation time t.
func (l Leader) Eval(t float64) (p, v, a vmath.Vec3) {
	scale := l.TimeScale
	if scale == 0 {
		scale = 1
	}
	if l.Paused {
		t = l.PausedAt
	}
	t *= scale

	switch l.Kind {
	case LeaderStatic:
		return l.Static, vmath.Vec3{}, vmath.Vec3{}
	case LeaderCircle:
		s, c := math.Sincos(l.Omega * t)
		p = l.Center.Add(vmath.Vec3{X: l.Radius * c, Y: l.Radius * s})
		v = vmath.Vec3{X: -l.Radius * l.Omega * s, Y: l.Radius * l.Omega * c}
		if l.Paused {
			v = vmath.Vec3{}
		} else {
			v = v.Scale(scale)
		}
		a = p.Sub(l.Center).Scale(-l.Omega * l.Omega * scale * scale)
		if l.Paused {
			a = vmath.Vec3{}
		}
		return p, v, a
	case LeaderPoly:
		p = l.A0.Add(l.A1.Scale(t)).Add(l.A2.Scale(t * t))
		if l.Paused {
			return p, vmath.Vec3{}, vmath.Vec3{}
		}
		v = l.A1.Add(l.A2.Scale(2 * t)).Scale(scale)
		a = l.A2.Scale(2 * scale * scale)
		return p, v, a
	default:
		// LeaderPaper, and LeaderCustom falling back to it.
		s, c := math.Sincos(paperOmega * t)
		p = vmath.Vec3{
			X: paperOffsetX + paperRadius*c,
			Y: paperOffsetY + paperRadius*s,
			Z: paperClimb * t,
		}
		if l.Paused {
			return p, vmath.Vec3{}, vmath.Vec3{}
		}
		v = vmath.Vec3{
			X: -paperRadius * paperOmega * s,
			Y: paperRadius * paperOmega * c,
			Z: paperClimb,
		}.Scale(scale)
		a = vmath.Vec3{
			X: -paperRadius * paperOmega * paperOmega * c,
			Y: -paperRadius * paperOmega * paperOmega * s,
		}.Scale(scale * scale)
		return p, v, a
	}
}

// Pause freezes the leader clock at time t; Resume releases it.
func (l *Leader) Pause(t float64) {
	l.Paused = true
	l.PausedAt = t
}

// Resume releases a paused leader.
func (l *Leader) Resume() {
	l.Paused = false
}
