package geom

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestRotationRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		o := Euler{
			Z: rapid.Float64Range(-math.Pi, math.Pi).Draw(t, "z"),
			Y: rapid.Float64Range(-math.Pi, math.Pi).Draw(t, "y"),
			X: rapid.Float64Range(-math.Pi, math.Pi).Draw(t, "x"),
		}
		p := Vec3{
			X: rapid.Float64Range(-100, 100).Draw(t, "px"),
			Y: rapid.Float64Range(-100, 100).Draw(t, "py"),
			Z: rapid.Float64Range(-100, 100).Draw(t, "pz"),
		}
		back := o.Unrotate(o.Rotate(p))
		d := back.Sub(p).Norm()
		ref := math.Max(1.0, p.Norm())
		if d/ref > 1e-6 {
			t.Fatalf("round trip error %g for %+v / %+v", d, o, p)
		}
	})
}

func TestRotationPreservesNorm(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		o := Euler{
			Z: rapid.Float64Range(-10, 10).Draw(t, "z"),
			Y: rapid.Float64Range(-10, 10).Draw(t, "y"),
			X: rapid.Float64Range(-10, 10).Draw(t, "x"),
		}
		p := Vec3{
			X: rapid.Float64Range(-10, 10).Draw(t, "px"),
			Y: rapid.Float64Range(-10, 10).Draw(t, "py"),
			Z: rapid.Float64Range(-10, 10).Draw(t, "pz"),
		}
		if math.Abs(o.Rotate(p).Norm()-p.Norm()) > 1e-9*math.Max(1, p.Norm()) {
			t.Fatalf("rotation changed the norm")
		}
	})
}

func TestEulerZRotation(t *testing.T) {
	o := Euler{Z: math.Pi / 2}
	r := o.Rotate(Vec3{X: 1})
	if math.Abs(r.X) > 1e-12 || math.Abs(r.Y-1) > 1e-12 {
		t.Fatalf("90 degree z rotation of +x gave %+v", r)
	}
}

func TestNormalizedZeroVector(t *testing.T) {
	z := Vec3{}
	if z.Normalized() != z {
		t.Fatalf("zero vector must normalize to itself")
	}
}

func TestSphericalRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		az := rapid.Float64Range(-math.Pi+1e-6, math.Pi-1e-6).Draw(t, "az")
		el := rapid.Float64Range(-math.Pi/2+1e-6, math.Pi/2-1e-6).Draw(t, "el")
		r := rapid.Float64Range(0.1, 100).Draw(t, "r")
		v := SphericalToCartesian(az, el, r)
		az2, el2, r2 := v.ToSpherical()
		if math.Abs(az2-az) > 1e-9 || math.Abs(el2-el) > 1e-9 || math.Abs(r2-r) > 1e-9 {
			t.Fatalf("spherical round trip (%g %g %g) -> (%g %g %g)", az, el, r, az2, el2, r2)
		}
	})
}
