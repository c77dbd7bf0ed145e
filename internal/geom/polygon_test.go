package geom

import (
	"math"
	"testing"
)

func unitSquare() *Polygon {
	p := &Polygon{
		Local: []Vec3{
			{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1},
		},
	}
	p.Update()
	return p
}

func TestPolygonNormalAndArea(t *testing.T) {
	p := unitSquare()
	if math.Abs(p.Normal().Z-1) > 1e-12 {
		t.Fatalf("expected +z normal, got %+v", p.Normal())
	}
	if math.Abs(p.Area()-4) > 1e-12 {
		t.Fatalf("expected area 4, got %g", p.Area())
	}
	wantAp := 2 * math.Sqrt(4/math.Pi)
	if math.Abs(p.Aperture()-wantAp) > 1e-12 {
		t.Fatalf("expected aperture %g, got %g", wantAp, p.Aperture())
	}
}

func TestPolygonNearest(t *testing.T) {
	p := unitSquare()

	var outside, onEdge bool
	n := p.Nearest(Vec3{X: 0.2, Y: 0.3, Z: 5}, &outside, &onEdge)
	if outside || onEdge {
		t.Fatalf("interior projection misreported outside=%v edge=%v", outside, onEdge)
	}
	if n.Sub(Vec3{X: 0.2, Y: 0.3}).Norm() > 1e-12 {
		t.Fatalf("unexpected nearest point %+v", n)
	}

	n = p.Nearest(Vec3{X: 3, Y: 0, Z: 1}, &outside, &onEdge)
	if !outside || !onEdge {
		t.Fatalf("exterior point misreported outside=%v edge=%v", outside, onEdge)
	}
	if n.Sub(Vec3{X: 1, Y: 0}).Norm() > 1e-12 {
		t.Fatalf("expected clip to edge point (1,0,0), got %+v", n)
	}
}

func TestPolygonIntersection(t *testing.T) {
	p := unitSquare()

	pt, w, ok := p.Intersection(Vec3{Z: 1}, Vec3{Z: -1})
	if !ok || math.Abs(w-0.5) > 1e-12 || pt.Norm() > 1e-12 {
		t.Fatalf("expected mid-segment hit at origin, got %+v w=%g ok=%v", pt, w, ok)
	}

	_, w, ok = p.Intersection(Vec3{Z: 2}, Vec3{Z: 1})
	if ok || w < 1 {
		t.Fatalf("segment ending above the plane must not intersect (w=%g ok=%v)", w, ok)
	}
}

func TestIsInfront(t *testing.T) {
	p := unitSquare()
	if !p.IsInfront(Vec3{Z: 1}) {
		t.Fatalf("+z must be in front of a +z-normal face")
	}
	if p.IsInfront(Vec3{Z: -1}) {
		t.Fatalf("-z must be behind a +z-normal face")
	}
}
