package geom

import "math"

// Polygon is an ordered sequence of >=3 vertices in a local frame plus a
// rigid placement. Vertices are assumed coplanar by construction; a
// non-planar input only degrades the normal estimate.
type Polygon struct {
	Local    []Vec3
	Position Vec3
	Orient   Euler

	world   []Vec3
	edges   []Vec3
	normal  Vec3
	edgeN   []Vec3 // per-edge outward normal, in the face plane
	area    float64
	aperture float64
}

// Update recomputes all derived world-frame quantities; called once per
// block after the placement changes.
func (p *Polygon) Update() {
	n := len(p.Local)
	if cap(p.world) < n {
		p.world = make([]Vec3, n)
		p.edges = make([]Vec3, n)
		p.edgeN = make([]Vec3, n)
	}
	p.world = p.world[:n]
	p.edges = p.edges[:n]
	p.edgeN = p.edgeN[:n]

	for i, lv := range p.Local {
		p.world[i] = p.Position.Add(p.Orient.Rotate(lv))
	}

	var normal Vec3
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		p.edges[i] = p.world[j].Sub(p.world[i])
		normal = normal.Add(p.world[i].Cross(p.world[j]))
	}
	p.normal = normal.Normalized()

	p.area = 0.5 * normal.Norm()
	p.aperture = 2 * math.Sqrt(p.area/math.Pi)

	for i := 0; i < n; i++ {
		p.edgeN[i] = p.edges[i].Cross(p.normal).Normalized()
	}
}

func (p *Polygon) World() []Vec3   { return p.world }
func (p *Polygon) Normal() Vec3    { return p.normal }
func (p *Polygon) Area() float64   { return p.area }
func (p *Polygon) Aperture() float64 { return p.aperture }

// NearestOnPlane projects q onto the infinite plane through the polygon.
func (p *Polygon) NearestOnPlane(q Vec3) Vec3 {
	if len(p.world) == 0 {
		return q
	}
	d := q.Sub(p.world[0]).Dot(p.normal)
	return q.Sub(p.normal.Scale(d))
}

// IsInfront reports whether q is on the side the normal points to.
func (p *Polygon) IsInfront(q Vec3) bool {
	return q.Sub(p.NearestOnPlane(q)).Dot(p.normal) > 0
}

// NearestOnEdge returns the nearest point on the polygon boundary to q.
func (p *Polygon) NearestOnEdge(q Vec3) Vec3 {
	best := p.world[0]
	bestD := math.Inf(1)
	n := len(p.world)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		c := nearestOnSegment(p.world[i], p.world[j], q)
		d := c.Sub(q).Norm()
		if d < bestD {
			bestD = d
			best = c
		}
	}
	return best
}

func nearestOnSegment(a, b, q Vec3) Vec3 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return a
	}
	w := clamp(q.Sub(a).Dot(ab)/l2, 0, 1)
	return a.Add(ab.Scale(w))
}

// Nearest returns the nearest point to q either inside the face (on the
// plane) or on the boundary, reporting whether q was outside the polygon
// and whether the nearest point landed on an edge.
func (p *Polygon) Nearest(q Vec3, isOutside, onEdge *bool) Vec3 {
	planar := p.NearestOnPlane(q)
	inside := p.containsPoint(planar)
	if isOutside != nil {
		*isOutside = !inside
	}
	if inside {
		if onEdge != nil {
			*onEdge = false
		}
		return planar
	}
	edge := p.NearestOnEdge(q)
	if onEdge != nil {
		*onEdge = true
	}
	return edge
}

// containsPoint tests whether a point known to lie on the polygon's plane
// is inside the polygon boundary, via the standard winding/crossing test
// projected onto the dominant plane axes.
func (p *Polygon) containsPoint(q Vec3) bool {
	n := len(p.world)
	if n < 3 {
		return false
	}
	// project onto the plane using two axes orthogonal to the normal
	u, v := planeBasis(p.normal)
	qx, qy := q.Dot(u), q.Dot(v)
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := p.world[i].Dot(u), p.world[i].Dot(v)
		xj, yj := p.world[j].Dot(u), p.world[j].Dot(v)
		if ((yi > qy) != (yj > qy)) &&
			(qx < (xj-xi)*(qy-yi)/(yj-yi)+xi) {
			inside = !inside
		}
	}
	return inside
}

func planeBasis(n Vec3) (u, v Vec3) {
	ref := Vec3{1, 0, 0}
	if math.Abs(n.X) > 0.9 {
		ref = Vec3{0, 1, 0}
	}
	u = n.Cross(ref).Normalized()
	v = n.Cross(u).Normalized()
	return
}

// Intersection intersects the infinite plane with segment p0->p1,
// returning the point and parametric w (w outside [0,1] => no hit on
// the segment itself).
func (p *Polygon) Intersection(p0, p1 Vec3) (pt Vec3, w float64, ok bool) {
	dir := p1.Sub(p0)
	denom := dir.Dot(p.normal)
	if denom == 0 {
		return Vec3{}, 0, false
	}
	w = p.world[0].Sub(p0).Dot(p.normal) / denom
	pt = p0.Add(dir.Scale(w))
	return pt, w, w >= 0 && w <= 1
}
