package receiver

import (
	"math"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/geom"
)

// DecoderMod selects the per-order weighting of an Ambisonic decoder.
type DecoderMod int

const (
	// ModBasic is the identity weighting.
	ModBasic DecoderMod = iota
	// ModMaxRE weights each order by P_m(rE) where rE is the largest
	// root of P_{N+1}.
	ModMaxRE
	// ModInPhase uses the factorial in-phase weights.
	ModInPhase
)

// legendre evaluates the Legendre polynomial P_n(x) by recurrence.
func legendre(n int, x float64) float64 {
	if n == 0 {
		return 1
	}
	if n == 1 {
		return x
	}
	p0, p1 := 1.0, x
	for k := 2; k <= n; k++ {
		p0, p1 = p1, (float64(2*k-1)*x*p1-float64(k-1)*p0)/float64(k)
	}
	return p1
}

// maxRERoot finds the largest root of P_{N+1} by bisection. The lower
// bracket cos(j01/(n+0.5)) sits just below the root (j01 is the first
// Bessel zero), so the sign change against P(1)=1 is guaranteed.
func maxRERoot(order int) float64 {
	n := order + 1
	lo := math.Cos(2.4048 / (float64(n) + 0.5))
	hi := 1.0
	for i := 0; i < 80; i++ {
		mid := 0.5 * (lo + hi)
		if legendre(n, mid)*legendre(n, lo) <= 0 {
			hi = mid
		} else {
			lo = mid
		}
	}
	return 0.5 * (lo + hi)
}

// orderWeights returns the per-order decoder weights for the
// given modifier; weights multiply all (2m+1) channels of order m.
func orderWeights(order int, mod DecoderMod) []float64 {
	w := make([]float64, order+1)
	switch mod {
	case ModMaxRE:
		rE := maxRERoot(order)
		for m := 0; m <= order; m++ {
			w[m] = legendre(m, rE)
		}
	case ModInPhase:
		nf := factorial(order)
		nf1 := factorial(order + 1)
		for m := 0; m <= order; m++ {
			w[m] = nf * nf1 / (factorial(order+m+1) * factorial(order-m))
		}
	default:
		for m := 0; m <= order; m++ {
			w[m] = 1
		}
	}
	return w
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// shChannels is the channel count of a 3-D spherical-harmonic set.
func shChannels(order int) int { return (order + 1) * (order + 1) }

// realSH evaluates the real spherical harmonics up to the given order
// at a unit direction, in ACN order with N3D-like normalization built
// from the associated Legendre recurrence.
func realSH(order int, dir geom.Vec3, out []float64) {
	az := math.Atan2(dir.Y, dir.X)
	z := geom.Clamp(dir.Z, -1, 1)

	// associated Legendre P_l^m(z) by recurrence, m >= 0, without the
	// Condon-Shortley phase (ambisonic convention)
	lmax := order
	plm := make([][]float64, lmax+1)
	for l := range plm {
		plm[l] = make([]float64, l+1)
	}
	plm[0][0] = 1
	somx2 := math.Sqrt(math.Max(0, 1-z*z))
	for m := 1; m <= lmax; m++ {
		plm[m][m] = float64(2*m-1) * somx2 * plm[m-1][m-1]
	}
	for m := 0; m < lmax; m++ {
		plm[m+1][m] = z * float64(2*m+1) * plm[m][m]
	}
	for l := 2; l <= lmax; l++ {
		for m := 0; m <= l-2; m++ {
			plm[l][m] = (z*float64(2*l-1)*plm[l-1][m] - float64(l+m-1)*plm[l-2][m]) / float64(l-m)
		}
	}

	for l := 0; l <= order; l++ {
		for m := -l; m <= l; m++ {
			acn := l*l + l + m
			am := m
			if am < 0 {
				am = -am
			}
			norm := math.Sqrt(float64(2*l+1) * factorial(l-am) / factorial(l+am))
			if am != 0 {
				norm *= math.Sqrt2
			}
			v := norm * plm[l][am]
			if m < 0 {
				v *= math.Sin(float64(am) * az)
			} else if m > 0 {
				v *= math.Cos(float64(am) * az)
			}
			out[acn] = v
		}
	}
}

// HOA3D is the ALLRAD-decoded higher-order receiver: sources
// are encoded into spherical harmonics and decoded through the
// precomputed ALLRAD matrix of its layout.
type HOA3D struct {
	L     *Layout
	Order int
	Mod   DecoderMod

	dec [][]float64 // [speaker][acn]
	enc []float64
}

// NewHOA3D builds the decoder matrix at construction.
func NewHOA3D(l *Layout, order int, mod DecoderMod) *HOA3D {
	h := &HOA3D{L: l, Order: order, Mod: mod}
	h.dec = AllRAD(l, order, mod)
	h.enc = make([]float64, shChannels(order))
	return h
}

func (h *HOA3D) Channels() int   { return len(h.L.Speakers) }
func (h *HOA3D) Layout() *Layout { return h.L }

func (h *HOA3D) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	realSH(h.Order, prel, h.enc)
	for k := range h.dec {
		var g float64
		for a, e := range h.enc {
			g += h.dec[k][a] * e
		}
		if g != 0 {
			out[k].AddScaled(chunk, float32(g))
		}
	}
}

func (h *HOA3D) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	decodeDiffuseBasic(h.L, foa, out)
}

// Gains decodes a direction into per-speaker gains (for diagnostics).
func (h *HOA3D) Gains(dir geom.Vec3, g []float64) {
	realSH(h.Order, dir, h.enc)
	for k := range h.dec {
		var acc float64
		for a, e := range h.enc {
			acc += h.dec[k][a] * e
		}
		g[k] = acc
	}
}

// AllRAD builds the all-round Ambisonic decoding matrix:
// subdivide an icosahedron to a dense virtual speaker set, build the
// pseudo-inverse decoder for the virtual set, compose with the VBAP
// encoding of each virtual speaker into the real set, and normalize by
// the mean loudness of a horizontal ring sweep.
func AllRAD(l *Layout, order int, mod DecoderMod) [][]float64 {
	nch := shChannels(order)
	virt := Icosphere(3 * (order + 1) * (order + 1))
	nv := len(virt)

	// pseudo-inverse decoder for the virtual set: D = pinv(Y) with
	// Y[a][v] the SH at virtual speaker v. For a near-uniform set
	// pinv(Y) approximates Y^T scaled by (number of channels / points).
	Y := make([][]float64, nv)
	sh := make([]float64, nch)
	for v, d := range virt {
		realSH(order, d, sh)
		Y[v] = append([]float64(nil), sh...)
	}
	// normal-equation pseudo-inverse: D = Y (Y^T Y)^-1, nv x nch
	yty := matSquare(Y, nch)
	inv, ok := invertN(yty)
	if !ok {
		return make([][]float64, len(l.Speakers))
	}
	D := make([][]float64, nv)
	for v := 0; v < nv; v++ {
		D[v] = make([]float64, nch)
		for a := 0; a < nch; a++ {
			var acc float64
			for b := 0; b < nch; b++ {
				acc += Y[v][b] * inv[b][a]
			}
			D[v][a] = acc
		}
	}

	// order-weight modifiers
	w := orderWeights(order, mod)
	for v := 0; v < nv; v++ {
		for lIdx := 0; lIdx <= order; lIdx++ {
			for m := -lIdx; m <= lIdx; m++ {
				D[v][lIdx*lIdx+lIdx+m] *= w[lIdx]
			}
		}
	}

	// compose with the 3-D VBAP encoding of every virtual speaker
	vb := NewVBAP3D(l)
	ns := len(l.Speakers)
	M := make([][]float64, ns)
	for k := range M {
		M[k] = make([]float64, nch)
	}
	for v := 0; v < nv; v++ {
		idx, g, ok := vb.Gains(virt[v])
		if !ok {
			continue
		}
		for i := 0; i < 3; i++ {
			for a := 0; a < nch; a++ {
				M[idx[i]][a] += g[i] * D[v][a]
			}
		}
	}

	normalizeRingLoudness(M, order, ns, nch)
	return M
}

// normalizeRingLoudness scales the matrix so a 360-direction horizontal
// ring sweep has unit mean amplitude gain.
func normalizeRingLoudness(M [][]float64, order, ns, nch int) {
	sh := make([]float64, nch)
	var sum float64
	const steps = 360
	for i := 0; i < steps; i++ {
		az := 2 * math.Pi * float64(i) / steps
		realSH(order, geom.Vec3{X: math.Cos(az), Y: math.Sin(az)}, sh)
		var e float64
		for k := 0; k < ns; k++ {
			var g float64
			for a := 0; a < nch; a++ {
				g += M[k][a] * sh[a]
			}
			e += g * g
		}
		sum += math.Sqrt(e)
	}
	mean := sum / steps
	if mean <= 0 {
		return
	}
	scale := 1 / mean
	for k := range M {
		for a := range M[k] {
			M[k][a] *= scale
		}
	}
}

func matSquare(Y [][]float64, nch int) [][]float64 {
	out := make([][]float64, nch)
	for a := range out {
		out[a] = make([]float64, nch)
		for b := 0; b < nch; b++ {
			var acc float64
			for v := range Y {
				acc += Y[v][a] * Y[v][b]
			}
			out[a][b] = acc
		}
	}
	return out
}

// invertN inverts a small dense matrix by Gauss-Jordan elimination with
// partial pivoting.
func invertN(m [][]float64) ([][]float64, bool) {
	n := len(m)
	a := make([][]float64, n)
	inv := make([][]float64, n)
	for i := range a {
		a[i] = append([]float64(nil), m[i]...)
		inv[i] = make([]float64, n)
		inv[i][i] = 1
	}
	for col := 0; col < n; col++ {
		piv := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[piv][col]) {
				piv = r
			}
		}
		if math.Abs(a[piv][col]) < 1e-12 {
			return nil, false
		}
		a[col], a[piv] = a[piv], a[col]
		inv[col], inv[piv] = inv[piv], inv[col]
		p := a[col][col]
		for j := 0; j < n; j++ {
			a[col][j] /= p
			inv[col][j] /= p
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := a[r][col]
			if f == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				a[r][j] -= f * a[col][j]
				inv[r][j] -= f * inv[col][j]
			}
		}
	}
	return inv, true
}

// Icosphere subdivides an icosahedron and normalizes until at least
// minPoints vertices exist, returning unit directions.
func Icosphere(minPoints int) []geom.Vec3 {
	phi := (1 + math.Sqrt(5)) / 2
	verts := []geom.Vec3{
		{X: -1, Y: phi}, {X: 1, Y: phi}, {X: -1, Y: -phi}, {X: 1, Y: -phi},
		{Y: -1, Z: phi}, {Y: 1, Z: phi}, {Y: -1, Z: -phi}, {Y: 1, Z: -phi},
		{X: phi, Z: -1}, {X: phi, Z: 1}, {X: -phi, Z: -1}, {X: -phi, Z: 1},
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	for i := range verts {
		verts[i] = verts[i].Normalized()
	}
	for len(verts) < minPoints {
		midCache := map[[2]int]int{}
		midpoint := func(a, b int) int {
			k := [2]int{a, b}
			if a > b {
				k = [2]int{b, a}
			}
			if idx, ok := midCache[k]; ok {
				return idx
			}
			m := verts[a].Add(verts[b]).Scale(0.5).Normalized()
			verts = append(verts, m)
			midCache[k] = len(verts) - 1
			return len(verts) - 1
		}
		var next [][3]int
		for _, f := range faces {
			ab := midpoint(f[0], f[1])
			bc := midpoint(f[1], f[2])
			ca := midpoint(f[2], f[0])
			next = append(next,
				[3]int{f[0], ab, ca}, [3]int{f[1], bc, ab},
				[3]int{f[2], ca, bc}, [3]int{ab, bc, ca})
		}
		faces = next
	}
	return verts
}

// HOA2D is the circular-harmonic receiver: 2N+1 channels of horizontal
// harmonics in the order (0, -1, +1, ..., -N, +N).
type HOA2D struct {
	Order int
}

func (h *HOA2D) Channels() int { return 2*h.Order + 1 }

func (h *HOA2D) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	az := math.Atan2(prel.Y, prel.X)
	out[0].AddScaled(chunk, float32(sqrtHalf))
	for m := 1; m <= h.Order; m++ {
		out[2*m-1].AddScaled(chunk, float32(math.Sin(float64(m)*az)))
		out[2*m].AddScaled(chunk, float32(math.Cos(float64(m)*az)))
	}
}

func (h *HOA2D) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	out[0].Add(foa.Ch[audiobuf.W])
	if h.Order >= 1 {
		out[1].Add(foa.Ch[audiobuf.Y])
		out[2].Add(foa.Ch[audiobuf.X])
	}
}

// Amb3H3V is the third-order 3-D Ambisonic receiver: 16 channels in
// ACN order.
type Amb3H3V struct {
	enc [16]float64
}

func (a *Amb3H3V) Channels() int { return 16 }

func (a *Amb3H3V) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	realSH(3, prel, a.enc[:])
	for k := 0; k < 16; k++ {
		if a.enc[k] != 0 {
			out[k].AddScaled(chunk, float32(a.enc[k]))
		}
	}
}

func (a *Amb3H3V) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	out[0].Add(foa.Ch[audiobuf.W])
	out[1].Add(foa.Ch[audiobuf.Y])
	out[2].Add(foa.Ch[audiobuf.Z])
	out[3].Add(foa.Ch[audiobuf.X])
}
