package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/swarm/vmath"
)

func TestSigmaNorm(t *testing.T) {
	eps := 0.1

	if got := SigmaNorm(vmath.Vec3{}, eps); got != 0 {
		t.Errorf("sigma norm of zero = %v", got)
	}

	// Monotone in ||z||. For eps in (0,1) the sigma norm lies below the
	// Euclidean norm for ||z|| < 2/(1-eps) and above it beyond.
	cross := 2 / (1 - eps)
	prev := 0.0
	for _, d := range []float64{0.5, 1, 2, 5, 20} {
		s := SigmaNorm(vmath.Vec3{X: d}, eps)
		if s <= prev {
			t.Errorf("sigma norm not increasing at %v", d)
		}
		if d < cross && s >= d {
			t.Errorf("sigma norm %v not below euclidean %v", s, d)
		}
		if d > cross && s <= d {
			t.Errorf("sigma norm %v not above euclidean %v", s, d)
		}
		prev = s
	}
}

func TestSigmaGradBounded(t *testing.T) {
	eps := 0.1
	// ||grad|| = ||z||/sqrt(1+eps||z||^2) stays below 1/sqrt(eps).
	bound := 1 / math.Sqrt(eps)
	for _, d := range []float64{0.1, 1, 10, 1000} {
		g := SigmaGrad(vmath.Vec3{X: d}, eps).Norm()
		if g > bound {
			t.Errorf("grad %v exceeds bound %v at d=%v", g, bound, d)
		}
	}
}

func TestBump(t *testing.T) {
	h := 0.2
	tests := []struct {
		s    float64
		want float64
	}{
		{-0.1, 0},
		{0, 1},
		{0.1, 1},
		{0.2, 1},
		{1, 0},
		{1.5, 0},
	}
	for _, tt := range tests {
		if got := Bump(tt.s, h); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Bump(%v) = %v, want %v", tt.s, got, tt.want)
		}
	}

	// C1 ramp stays within [0,1] and decreases across (h, 1).
	prev := 1.0
	for s := h + 0.01; s < 1; s += 0.05 {
		b := Bump(s, h)
		if b < 0 || b > 1 || b > prev {
			t.Errorf("ramp not monotone in [h,1] at s=%v: %v", s, b)
		}
		prev = b
	}
}

func TestPhiAlphaZeroAtLatticeDistance(t *testing.T) {
	p := DefaultAlphaParams()
	rAlpha := sigmaNormScalar(p.NeighborRadius, p.Epsilon)
	dAlpha := sigmaNormScalar(p.DesiredDistance, p.Epsilon)

	// At the lattice spacing the action vanishes (a = b makes c = 0).
	if got := PhiAlpha(dAlpha, rAlpha, dAlpha, p.H, p.A, p.B); math.Abs(got) > 1e-12 {
		t.Errorf("phi_alpha at d_alpha = %v, want 0", got)
	}

	// Closer than the lattice spacing repels, farther attracts.
	if got := PhiAlpha(dAlpha*0.5, rAlpha, dAlpha, p.H, p.A, p.B); got >= 0 {
		t.Errorf("phi_alpha inside spacing = %v, want < 0", got)
	}
	if got := PhiAlpha(dAlpha*1.3, rAlpha, dAlpha, p.H, p.A, p.B); got <= 0 {
		t.Errorf("phi_alpha outside spacing = %v, want > 0", got)
	}

	// Beyond the interaction range the bump kills the action.
	if got := PhiAlpha(rAlpha*1.01, rAlpha, dAlpha, p.H, p.A, p.B); got != 0 {
		t.Errorf("phi_alpha beyond range = %v, want 0", got)
	}
}

func TestAlphaParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AlphaParams)
		ok     bool
	}{
		{"defaults", func(p *AlphaParams) {}, true},
		{"negative distance", func(p *AlphaParams) { p.DesiredDistance = -1 }, false},
		{"distance beyond radius", func(p *AlphaParams) { p.DesiredDistance = 3 }, false},
		{"zero epsilon", func(p *AlphaParams) { p.Epsilon = 0 }, false},
		{"bump h at one", func(p *AlphaParams) { p.H = 1 }, false},
		{"b below a", func(p *AlphaParams) { p.B = p.A - 1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultAlphaParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
