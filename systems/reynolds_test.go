package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/vmath"
)

func stepOnce(agents *components.Agents, r *Reynolds) []vmath.Vec3 {
	g := NewSpatialGrid(r.Radius())
	g.Rebuild(agents.Pos)
	u := make([]vmath.Vec3, agents.Len())
	r.Step(agents, g, u)
	return u
}

func TestReynoldsSeparationPushesApart(t *testing.T) {
	agents := components.NewAgents(2)
	agents.Pos[1] = vmath.Vec3{X: 0.2}
	r := &Reynolds{Params: DefaultFlockParams()}

	u := stepOnce(agents, r)
	if u[0].X >= 0 {
		t.Errorf("agent 0 pushed toward neighbor: %v", u[0])
	}
	if u[1].X <= 0 {
		t.Errorf("agent 1 pushed toward neighbor: %v", u[1])
	}
}

func TestReynoldsCohesionPullsTogether(t *testing.T) {
	// Outside the separation radius but within neighbor range the pair
	// attracts.
	agents := components.NewAgents(2)
	agents.Pos[1] = vmath.Vec3{X: 2}
	r := &Reynolds{Params: DefaultFlockParams()}

	u := stepOnce(agents, r)
	if u[0].X <= 0 {
		t.Errorf("agent 0 not attracted: %v", u[0])
	}
	if u[1].X >= 0 {
		t.Errorf("agent 1 not attracted: %v", u[1])
	}
}

func TestReynoldsIsolatedAgentOnlyBoundary(t *testing.T) {
	p := DefaultFlockParams()
	agents := components.NewAgents(1)
	agents.Pos[0] = vmath.Vec3{X: p.BoundaryRadius + 10}
	r := &Reynolds{Params: p}

	u := stepOnce(agents, r)
	if u[0].X >= 0 {
		t.Errorf("boundary must pull inward: %v", u[0])
	}

	agents.Pos[0] = vmath.Vec3{X: 1}
	u = stepOnce(agents, r)
	if u[0] != (vmath.Vec3{}) {
		t.Errorf("isolated agent inside boundary got force %v", u[0])
	}
}

func TestReynoldsForceClamp(t *testing.T) {
	p := DefaultFlockParams()
	agents := components.NewAgents(2)
	agents.Pos[1] = vmath.Vec3{X: 0.01} // nearly coincident, huge separation term
	r := &Reynolds{Params: p}

	u := stepOnce(agents, r)
	for i, f := range u {
		for _, c := range []float64{f.X, f.Y, f.Z} {
			if math.Abs(c) > p.MaxForce+1e-12 {
				t.Errorf("agent %d force %v exceeds clamp", i, f)
			}
		}
	}
}

func TestFlockParamsValidate(t *testing.T) {
	p := DefaultFlockParams()
	if err := p.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	p.SeparationRadius = p.NeighborRadius + 1
	if err := p.Validate(); err == nil {
		t.Error("separation beyond neighbor radius accepted")
	}
	p = DefaultFlockParams()
	p.NeighborRadius = -1
	if err := p.Validate(); err == nil {
		t.Error("negative radius accepted")
	}
}
