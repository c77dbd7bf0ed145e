package receiver

import (
	"math"
	"sort"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/geom"
)

// VBAP2D pans into a horizontal speaker ring by pairwise amplitude
// panning between the two neighbors enclosing the source azimuth.
type VBAP2D struct {
	L *Layout

	order []int // speaker indices sorted by azimuth
}

// NewVBAP2D builds the panner for a ring layout.
func NewVBAP2D(l *Layout) *VBAP2D {
	v := &VBAP2D{L: l, order: make([]int, len(l.Speakers))}
	for i := range v.order {
		v.order[i] = i
	}
	sort.Slice(v.order, func(a, b int) bool {
		return l.Speakers[v.order[a]].Az < l.Speakers[v.order[b]].Az
	})
	return v
}

func (v *VBAP2D) Channels() int   { return len(v.L.Speakers) }
func (v *VBAP2D) Layout() *Layout { return v.L }

// Gains computes the two-speaker panning gains for an azimuth.
func (v *VBAP2D) Gains(az float64, g []float64) {
	for i := range g {
		g[i] = 0
	}
	n := len(v.order)
	if n == 0 {
		return
	}
	if n == 1 {
		g[v.order[0]] = 1
		return
	}
	for i := 0; i < n; i++ {
		a := v.L.Speakers[v.order[i]].Az
		b := v.L.Speakers[v.order[(i+1)%n]].Az
		span := angleDiff(b, a)
		off := angleDiff(az, a)
		if span <= 0 {
			span += 2 * math.Pi
		}
		if off < 0 {
			off += 2 * math.Pi
		}
		if off <= span {
			w := off / span
			g1 := math.Cos(w * math.Pi / 2)
			g2 := math.Sin(w * math.Pi / 2)
			g[v.order[i]] = g1
			g[v.order[(i+1)%n]] = g2
			return
		}
	}
	g[v.order[0]] = 1
}

func (v *VBAP2D) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	az := math.Atan2(prel.Y, prel.X)
	g := make([]float64, len(v.L.Speakers))
	v.Gains(az, g)
	for k, gv := range g {
		if gv != 0 {
			out[k].AddScaled(chunk, float32(gv))
		}
	}
}

func (v *VBAP2D) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	decodeDiffuseBasic(v.L, foa, out)
}

func angleDiff(a, b float64) float64 {
	d := math.Mod(a-b+math.Pi, 2*math.Pi) - math.Pi
	if d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// hullTri is one simplex of the speaker hull with its inverted basis
// for barycentric gain lookup.
type hullTri struct {
	a, b, c int
	inv     [3][3]float64
}

// VBAP3D pans by barycentric weights within the simplex of the
// convex hull of the speaker unit vectors.
type VBAP3D struct {
	L    *Layout
	tris []hullTri
}

// NewVBAP3D triangulates the speaker set via its convex hull.
func NewVBAP3D(l *Layout) *VBAP3D {
	v := &VBAP3D{L: l}
	dirs := make([]geom.Vec3, len(l.Speakers))
	for i, s := range l.Speakers {
		dirs[i] = s.dir
	}
	for _, t := range convexHullTriangles(dirs) {
		m := [3][3]float64{
			{dirs[t[0]].X, dirs[t[1]].X, dirs[t[2]].X},
			{dirs[t[0]].Y, dirs[t[1]].Y, dirs[t[2]].Y},
			{dirs[t[0]].Z, dirs[t[1]].Z, dirs[t[2]].Z},
		}
		inv, ok := invert3(m)
		if !ok {
			continue
		}
		v.tris = append(v.tris, hullTri{a: t[0], b: t[1], c: t[2], inv: inv})
	}
	return v
}

func (v *VBAP3D) Channels() int   { return len(v.L.Speakers) }
func (v *VBAP3D) Layout() *Layout { return v.L }

// Gains finds the simplex whose three barycentric gains are all
// non-negative and returns the normalized gains with their speaker
// indices.
func (v *VBAP3D) Gains(dir geom.Vec3) (idx [3]int, g [3]float64, ok bool) {
	const tol = -1e-9
	bestMin := math.Inf(-1)
	for _, t := range v.tris {
		g0 := t.inv[0][0]*dir.X + t.inv[0][1]*dir.Y + t.inv[0][2]*dir.Z
		g1 := t.inv[1][0]*dir.X + t.inv[1][1]*dir.Y + t.inv[1][2]*dir.Z
		g2 := t.inv[2][0]*dir.X + t.inv[2][1]*dir.Y + t.inv[2][2]*dir.Z
		m := math.Min(g0, math.Min(g1, g2))
		if m > bestMin {
			bestMin = m
			idx = [3]int{t.a, t.b, t.c}
			g = [3]float64{g0, g1, g2}
		}
		if m >= tol {
			break
		}
	}
	if len(v.tris) == 0 {
		return idx, g, false
	}
	for i := range g {
		if g[i] < 0 {
			g[i] = 0
		}
	}
	norm := math.Sqrt(g[0]*g[0] + g[1]*g[1] + g[2]*g[2])
	if norm <= 0 {
		return idx, g, false
	}
	for i := range g {
		g[i] /= norm
	}
	return idx, g, true
}

func (v *VBAP3D) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	idx, g, ok := v.Gains(prel)
	if !ok {
		return
	}
	for i := 0; i < 3; i++ {
		if g[i] > 0 {
			out[idx[i]].AddScaled(chunk, float32(g[i]))
		}
	}
}

func (v *VBAP3D) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	decodeDiffuseBasic(v.L, foa, out)
}

// convexHullTriangles computes the triangles of the convex hull of a
// point set via incremental insertion (QuickHull-style outside-point
// expansion over visible faces).
func convexHullTriangles(pts []geom.Vec3) [][3]int {
	n := len(pts)
	if n < 4 {
		if n == 3 {
			return [][3]int{{0, 1, 2}}
		}
		return nil
	}

	// initial non-degenerate tetrahedron
	i0, i1, i2, i3, ok := initialTetra(pts)
	if !ok {
		return nil
	}
	type face struct {
		v    [3]int
		dead bool
	}
	var faces []face
	addFace := func(a, b, c, inside int) {
		nrm := pts[b].Sub(pts[a]).Cross(pts[c].Sub(pts[a]))
		if nrm.Dot(pts[inside].Sub(pts[a])) > 0 {
			b, c = c, b
		}
		faces = append(faces, face{v: [3]int{a, b, c}})
	}
	addFace(i0, i1, i2, i3)
	addFace(i0, i1, i3, i2)
	addFace(i0, i2, i3, i1)
	addFace(i1, i2, i3, i0)

	inHull := map[int]bool{i0: true, i1: true, i2: true, i3: true}
	for p := 0; p < n; p++ {
		if inHull[p] {
			continue
		}
		// collect faces visible from p
		type edge struct{ a, b int }
		edgeCount := map[edge]int{}
		visible := false
		for fi := range faces {
			f := &faces[fi]
			if f.dead {
				continue
			}
			nrm := pts[f.v[1]].Sub(pts[f.v[0]]).Cross(pts[f.v[2]].Sub(pts[f.v[0]]))
			if nrm.Dot(pts[p].Sub(pts[f.v[0]])) > 1e-12 {
				f.dead = true
				visible = true
				for e := 0; e < 3; e++ {
					a, b := f.v[e], f.v[(e+1)%3]
					if a > b {
						a, b = b, a
					}
					edgeCount[edge{a, b}]++
				}
			}
		}
		if !visible {
			continue
		}
		// horizon edges appear exactly once among dead faces
		centroid := hullCentroid(pts, inHull)
		for e, c := range edgeCount {
			if c != 1 {
				continue
			}
			f := face{v: [3]int{e.a, e.b, p}}
			fn := pts[f.v[1]].Sub(pts[f.v[0]]).Cross(pts[f.v[2]].Sub(pts[f.v[0]]))
			if fn.Dot(pts[f.v[0]].Sub(centroid)) < 0 {
				f.v[1], f.v[2] = f.v[2], f.v[1]
			}
			faces = append(faces, f)
		}
		inHull[p] = true
	}

	var out [][3]int
	for _, f := range faces {
		if !f.dead {
			out = append(out, f.v)
		}
	}
	return out
}

func hullCentroid(pts []geom.Vec3, in map[int]bool) geom.Vec3 {
	var c geom.Vec3
	var n float64
	for i := range in {
		c = c.Add(pts[i])
		n++
	}
	if n > 0 {
		c = c.Scale(1 / n)
	}
	return c
}

func initialTetra(pts []geom.Vec3) (int, int, int, int, bool) {
	n := len(pts)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				nrm := pts[b].Sub(pts[a]).Cross(pts[c].Sub(pts[a]))
				if nrm.Norm() < 1e-9 {
					continue
				}
				for d := 0; d < n; d++ {
					if d == a || d == b || d == c {
						continue
					}
					if math.Abs(nrm.Dot(pts[d].Sub(pts[a]))) > 1e-9 {
						return a, b, c, d, true
					}
				}
			}
		}
	}
	return 0, 0, 0, 0, false
}

func invert3(m [3][3]float64) ([3][3]float64, bool) {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if math.Abs(det) < 1e-12 {
		return [3][3]float64{}, false
	}
	inv := [3][3]float64{
		{m[1][1]*m[2][2] - m[1][2]*m[2][1], m[0][2]*m[2][1] - m[0][1]*m[2][2], m[0][1]*m[1][2] - m[0][2]*m[1][1]},
		{m[1][2]*m[2][0] - m[1][0]*m[2][2], m[0][0]*m[2][2] - m[0][2]*m[2][0], m[0][2]*m[1][0] - m[0][0]*m[1][2]},
		{m[1][0]*m[2][1] - m[1][1]*m[2][0], m[0][1]*m[2][0] - m[0][0]*m[2][1], m[0][0]*m[1][1] - m[0][1]*m[1][0]},
	}
	for i := range inv {
		for j := range inv[i] {
			inv[i][j] /= det
		}
	}
	return inv, true
}

// ITU50 returns the ITU-R BS.775 5.0 ring layout.
func ITU50() *Layout {
	return NewLayout("itu50", []*Speaker{
		NewSpeaker(30, 0, 2),
		NewSpeaker(-30, 0, 2),
		NewSpeaker(0, 0, 2),
		NewSpeaker(110, 0, 2),
		NewSpeaker(-110, 0, 2),
	}, nil)
}

// ITU714 returns the 7.1+4 layout: seven mains, four heights; the LFE
// is realized by the subwoofer split of the post-stage.
func ITU714() *Layout {
	l := NewLayout("itu714", []*Speaker{
		NewSpeaker(30, 0, 2),
		NewSpeaker(-30, 0, 2),
		NewSpeaker(0, 0, 2),
		NewSpeaker(90, 0, 2),
		NewSpeaker(-90, 0, 2),
		NewSpeaker(135, 0, 2),
		NewSpeaker(-135, 0, 2),
		NewSpeaker(45, 45, 2),
		NewSpeaker(-45, 45, 2),
		NewSpeaker(135, 45, 2),
		NewSpeaker(-135, 45, 2),
	}, []*Speaker{NewSpeaker(0, -10, 2)})
	l.SubCutoff = 80
	return l
}
