// Package vmath provides the small fixed-size linear algebra used by the
// steering algorithms: 3-vectors, a 3x3 matrix, and scalar helpers.
package vmath

import "math"

// Vec3 is a 3D vector with float64 components.
// Engine math runs in float64; readers downconvert to float32 views.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of v and w.
func (v Vec3) Dot(w Vec3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Cross returns the cross product of v and w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v.Y*w.Z - v.Z*w.Y,
		v.Z*w.X - v.X*w.Z,
		v.X*w.Y - v.Y*w.X,
	}
}

// NormSq returns the squared Euclidean norm.
func (v Vec3) NormSq() float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Norm returns the Euclidean norm.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.NormSq())
}

// Normalize returns v scaled to unit length, or the zero vector when
// v has zero length.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	inv := 1 / n
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}

// ClampNorm limits the magnitude of v to maxNorm. maxNorm <= 0 disables
// the clamp.
func (v Vec3) ClampNorm(maxNorm float64) Vec3 {
	if maxNorm <= 0 {
		return v
	}
	nsq := v.NormSq()
	if nsq <= maxNorm*maxNorm {
		return v
	}
	return v.Scale(maxNorm / math.Sqrt(nsq))
}

// ClampBox clamps each component of v into [lo, hi] componentwise.
func (v Vec3) ClampBox(lo, hi Vec3) Vec3 {
	return Vec3{
		Clamp(v.X, lo.X, hi.X),
		Clamp(v.Y, lo.Y, hi.Y),
		Clamp(v.Z, lo.Z, hi.Z),
	}
}

// Min returns the componentwise minimum of v and w.
func (v Vec3) Min(w Vec3) Vec3 {
	return Vec3{math.Min(v.X, w.X), math.Min(v.Y, w.Y), math.Min(v.Z, w.Z)}
}

// Max returns the componentwise maximum of v and w.
func (v Vec3) Max(w Vec3) Vec3 {
	return Vec3{math.Max(v.X, w.X), math.Max(v.Y, w.Y), math.Max(v.Z, w.Z)}
}

// Lerp returns v + t*(w-v).
func (v Vec3) Lerp(w Vec3, t float64) Vec3 {
	return Vec3{
		v.X + t*(w.X-v.X),
		v.Y + t*(w.Y-v.Y),
		v.Z + t*(w.Z-v.Z),
	}
}

// IsFinite reports whether all components are finite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Sanitize replaces non-finite components with zero. It returns the
// sanitized vector and whether any component was replaced.
func (v Vec3) Sanitize() (Vec3, bool) {
	if v.IsFinite() {
		return v, false
	}
	out := v
	if !isFinite(out.X) {
		out.X = 0
	}
	if !isFinite(out.Y) {
		out.Y = 0
	}
	if !isFinite(out.Z) {
		out.Z = 0
	}
	return out, true
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Clamp limits x into [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Sig is the signed power function sig(x, m) = |x|^(m-1) * x applied to
// the vector norm: sig(v, m) = ||v||^(m-1) * v. The norm is floored at
// eps so the exponent stays well-defined near zero for m < 1.
func Sig(v Vec3, m, eps float64) Vec3 {
	n := v.Norm()
	if n < eps {
		n = eps
	}
	return v.Scale(math.Pow(n, m-1))
}
