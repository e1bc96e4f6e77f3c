package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/vmath"
)

func TestFormationParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FormationParams)
		ok     bool
	}{
		{"defaults", func(p *FormationParams) {}, true},
		{"m1 at one", func(p *FormationParams) { p.M1 = 1 }, false},
		{"m2 below one", func(p *FormationParams) { p.M2 = 0.9 }, false},
		{"zero qp iters", func(p *FormationParams) { p.QPIters = 0 }, false},
		{"inverted box", func(p *FormationParams) { p.UMin.X = 40 }, false},
		{"filter out of range", func(p *FormationParams) { p.MuDotFilter = 1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultFormationParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestObstacleRowSkipsFarObstacle(t *testing.T) {
	f := NewFormationECBF(1, DefaultFormationParams(),
		components.StaticLeader(vmath.Vec3{}), nil)

	ob := components.StaticObstacle(vmath.Vec3{X: 1e9}, 5)
	_, _, ok := f.obstacleRow(vmath.Vec3{}, vmath.Vec3{}, ob, 0, 1, 0)
	assert.False(t, ok, "obstacle beyond activation radius must not produce a row")
}

func TestObstacleRowEncodesBarrierCondition(t *testing.T) {
	p := DefaultFormationParams()
	p.Lambda1, p.Lambda2, p.Delta2Star, p.RobustnessMargin = 0, 0, 0, 0
	f := NewFormationECBF(1, p, components.StaticLeader(vmath.Vec3{}), nil)

	x := vmath.Vec3{X: 3}
	v := vmath.Vec3{X: -1, Y: 0.5}
	ob := components.StaticObstacle(vmath.Vec3{}, 2)
	kHigh := p.Kappa1*p.Kappa2 + p.Kappa2*p.Kappa3

	a, b, ok := f.obstacleRow(x, v, ob, 0, kHigh, 0)
	require.True(t, ok)

	// At any u with a.u = b the ECBF condition holds with equality:
	// hdd + kappa3*hd + kHigh*h = 0.
	u := a.Scale(b / a.NormSq())
	delta := x
	h := delta.NormSq() - 4
	hd := 2 * delta.Dot(v)
	hdd := 2*v.NormSq() + 2*delta.Dot(u)
	assert.InDelta(t, 0, hdd+p.Kappa3*hd+kHigh*h, 1e-9)
}

func TestFormationErrorsAgainstLeader(t *testing.T) {
	p := DefaultFormationParams()
	f := NewFormationECBF(1, p, components.StaticLeader(vmath.Vec3{X: 5}), nil)

	agents := components.NewAgents(1)
	agents.Pos[0] = vmath.Vec3{X: 7}
	agents.Vel[0] = vmath.Vec3{Y: 2}

	pL, vL, _ := f.Leader.Eval(0)
	e, ed := f.errors(agents, 0, pL, vL)
	assert.Equal(t, vmath.Vec3{X: 2}, e)
	assert.Equal(t, vmath.Vec3{Y: 2}, ed)
}

func TestFormationNominalPointsTowardTarget(t *testing.T) {
	p := DefaultFormationParams()
	f := NewFormationECBF(1, p, components.StaticLeader(vmath.Vec3{}), nil)

	agents := components.NewAgents(1)
	agents.Pos[0] = vmath.Vec3{X: 4}
	u := make([]vmath.Vec3, 1)
	f.Step(agents, 0, 1.0/60, u)

	assert.Less(t, u[0].X, 0.0, "control must accelerate toward the leader")
	assert.InDelta(t, 0, u[0].Y, 1e-9)
	assert.InDelta(t, 0, u[0].Z, 1e-9)
	assert.Equal(t, u[0], f.Diag.U[0])
}

func TestMuDotFilterConverges(t *testing.T) {
	p := DefaultFormationParams()
	f := NewFormationECBF(1, p, components.StaticLeader(vmath.Vec3{}), nil)

	dt := 1.0 / 60
	// Constant control: the filtered rate must decay toward zero after
	// the first-step transient.
	u := vmath.Vec3{X: 1}
	for i := 0; i < 200; i++ {
		f.updateAux(0, u, dt)
	}
	assert.Less(t, f.Aux.MuDot[0].Norm(), 1e-3)
}

func TestAutoOffsetsCentered(t *testing.T) {
	form := components.NewFormation(3)
	pos := []vmath.Vec3{{X: 0}, {X: 2}, {X: 4}}
	form.AutoOffsets(pos)

	var sum vmath.Vec3
	for _, d := range form.Delta {
		sum = sum.Add(d)
	}
	assert.InDelta(t, 0, sum.Norm(), 1e-12)
	assert.InDelta(t, -2, form.Delta[0].X, 1e-12)
	assert.InDelta(t, 2, form.Delta[2].X, 1e-12)
}

func TestSafeFlockParamsValidate(t *testing.T) {
	p := DefaultSafeFlockParams()
	require.NoError(t, p.Validate())

	p.DSafe = 3 // beyond cbf_neighbor_radius
	assert.Error(t, p.Validate())

	p = DefaultSafeFlockParams()
	p.QPIters = 0
	assert.Error(t, p.Validate())

	p = DefaultSafeFlockParams()
	p.Alpha.DesiredDistance = -1
	assert.Error(t, p.Validate(), "embedded lattice params are validated too")
}
