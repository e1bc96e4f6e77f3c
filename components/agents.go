// Package components holds the simulation data records: the
// structure-of-arrays agent store, obstacles, leader trajectories, and
// the formation graph. Systems operate on these; they carry no behavior
// of their own beyond evaluation helpers.
package components

import "github.com/pthm-cable/swarm/vmath"

// Agents is the structure-of-arrays agent store. Slices are indexed by
// agent id; ids are stable for the lifetime of a simulation. The flat
// float32 view buffers back the zero-copy reader API and are refreshed
// on demand, not per tick.
type Agents struct {
	Pos   []vmath.Vec3
	Vel   []vmath.Vec3
	Group []uint32
	Drag  []float64

	posView   []float32 // len N*3, refreshed by PosView
	stateView []float32 // len N*F, refreshed by StateView
}

// NewAgents creates a store for n agents with zeroed state.
func NewAgents(n int) *Agents {
	return &Agents{
		Pos:   make([]vmath.Vec3, n),
		Vel:   make([]vmath.Vec3, n),
		Group: make([]uint32, n),
		Drag:  make([]float64, n),
	}
}

// Len returns the agent count.
func (a *Agents) Len() int {
	return len(a.Pos)
}

// PosView refreshes and returns the flat [N*3] float32 position view.
// The slice aliases internal storage and is valid until the next
// mutating call on the owning engine.
func (a *Agents) PosView() []float32 {
	n := a.Len()
	if cap(a.posView) < n*3 {
		a.posView = make([]float32, n*3)
	}
	a.posView = a.posView[:n*3]
	for i, p := range a.Pos {
		a.posView[i*3+0] = float32(p.X)
		a.posView[i*3+1] = float32(p.Y)
		a.posView[i*3+2] = float32(p.Z)
	}
	return a.posView
}

// BaseFieldCount is the per-agent field count of the base state layout.
const BaseFieldCount = 6

// ExtendedFieldCount is the per-agent field count of the extended layout
// carrying the safety-filter diagnostics: nominal control, applied
// control, slack, active-constraint count.
const ExtendedFieldCount = 14

// StateView refreshes and returns the flat [N*F] float32 state view.
// The base layout is [x y z vx vy vz]. When diag is non-nil the extended
// layout appends [unom.x unom.y unom.z u.x u.y u.z slack active].
func (a *Agents) StateView(diag *FilterDiagnostics) []float32 {
	n := a.Len()
	fields := BaseFieldCount
	if diag != nil {
		fields = ExtendedFieldCount
	}
	if cap(a.stateView) < n*fields {
		a.stateView = make([]float32, n*fields)
	}
	a.stateView = a.stateView[:n*fields]
	for i := 0; i < n; i++ {
		row := a.stateView[i*fields:]
		p, v := a.Pos[i], a.Vel[i]
		row[0], row[1], row[2] = float32(p.X), float32(p.Y), float32(p.Z)
		row[3], row[4], row[5] = float32(v.X), float32(v.Y), float32(v.Z)
		if diag != nil {
			un := diag.UNom[i]
			u := diag.U[i]
			row[6], row[7], row[8] = float32(un.X), float32(un.Y), float32(un.Z)
			row[9], row[10], row[11] = float32(u.X), float32(u.Y), float32(u.Z)
			row[12] = float32(diag.Slack[i])
			row[13] = float32(diag.Active[i])
		}
	}
	return a.stateView
}

// FieldNames returns the per-agent field names of the given layout.
func FieldNames(extended bool) []string {
	if extended {
		return []string{
			"x", "y", "z", "vx", "vy", "vz",
			"unomX", "unomY", "unomZ", "ux", "uy", "uz",
			"slack", "active",
		}
	}
	return []string{"x", "y", "z", "vx", "vy", "vz"}
}

// FilterDiagnostics carries per-agent safety-filter outputs for the
// extended state layout: the nominal control, the applied control, the
// slack used, and the number of active constraints.
type FilterDiagnostics struct {
	UNom   []vmath.Vec3
	U      []vmath.Vec3
	Slack  []float64
	Active []int
}

// NewFilterDiagnostics creates zeroed diagnostics for n agents.
func NewFilterDiagnostics(n int) *FilterDiagnostics {
	return &FilterDiagnostics{
		UNom:   make([]vmath.Vec3, n),
		U:      make([]vmath.Vec3, n),
		Slack:  make([]float64, n),
		Active: make([]int, n),
	}
}

// Reset zeroes all diagnostics in place.
func (d *FilterDiagnostics) Reset() {
	for i := range d.UNom {
		d.UNom[i] = vmath.Vec3{}
		d.U[i] = vmath.Vec3{}
		d.Slack[i] = 0
		d.Active[i] = 0
	}
}

// QuadAux is the auxiliary state block for second-order quadrotor-like
// models: attitude angles, thrust trim, filtered derivative estimates,
// and the last applied acceleration.
type QuadAux struct {
	Roll, Pitch, Yaw []float64
	ThrustTrim       []float64
	MuDot            []vmath.Vec3
	AlphaDot         []vmath.Vec3
	LastU            []vmath.Vec3
}

// NewQuadAux creates a zeroed auxiliary block for n agents.
func NewQuadAux(n int) *QuadAux {
	return &QuadAux{
		Roll:       make([]float64, n),
		Pitch:      make([]float64, n),
		Yaw:        make([]float64, n),
		ThrustTrim: make([]float64, n),
		MuDot:      make([]vmath.Vec3, n),
		AlphaDot:   make([]vmath.Vec3, n),
		LastU:      make([]vmath.Vec3, n),
	}
}

// Reset zeroes the filtered state; attitudes are left alone.
func (q *QuadAux) Reset() {
	for i := range q.MuDot {
		q.MuDot[i] = vmath.Vec3{}
		q.AlphaDot[i] = vmath.Vec3{}
		q.LastU[i] = vmath.Vec3{}
	}
}
