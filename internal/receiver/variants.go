package receiver

import (
	"math"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/geom"
)

const sqrtHalf = math.Sqrt2 / 2

// Omni is the single-channel pressure receiver.
type Omni struct{}

func (Omni) Channels() int { return 1 }

func (Omni) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	out[0].Add(chunk)
}

func (Omni) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	// Pressure pickup of the diffuse field: W scaled back to pressure.
	out[0].AddScaled(foa.Ch[audiobuf.W], float32(math.Sqrt2))
}

// Cardioid is a single first-order microphone looking along +x.
type Cardioid struct{}

func (Cardioid) Channels() int { return 1 }

func (Cardioid) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	g := 0.5 * (1 + prel.X)
	out[0].AddScaled(chunk, float32(g))
}

func (Cardioid) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	n := out[0].Len()
	w := foa.Ch[audiobuf.W].Data
	x := foa.Ch[audiobuf.X].Data
	d := out[0].Data
	for i := 0; i < n; i++ {
		d[i] += float32(0.5 * (float64(w[i])*math.Sqrt2 + float64(x[i])))
	}
}

// DebugPos writes the source direction (x, y, z of the unit vector the
// receiver passes in; distance is not carried) into three channels; a
// development aid carried as a regular variant.
type DebugPos struct{}

func (DebugPos) Channels() int { return 3 }

func (DebugPos) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	for i := range out[0].Data {
		out[0].Data[i] = float32(prel.X)
		out[1].Data[i] = float32(prel.Y)
		out[2].Data[i] = float32(prel.Z)
	}
}

func (DebugPos) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {}

// Amb1H1V is the full first-order Ambisonic receiver: 4 channels in
// ACN(W,Y,Z,X) order with the same panning law as the FOA buffer.
type Amb1H1V struct{}

func (Amb1H1V) Channels() int { return 4 }

func (Amb1H1V) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	n := chunk.Len()
	for i := 0; i < n; i++ {
		s := chunk.Data[i]
		out[0].Data[i] += s * float32(sqrtHalf)
		out[1].Data[i] += s * float32(prel.Y)
		out[2].Data[i] += s * float32(prel.Z)
		out[3].Data[i] += s * float32(prel.X)
	}
}

func (Amb1H1V) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	out[0].Add(foa.Ch[audiobuf.W])
	out[1].Add(foa.Ch[audiobuf.Y])
	out[2].Add(foa.Ch[audiobuf.Z])
	out[3].Add(foa.Ch[audiobuf.X])
}

// Amb1H0V is the horizontal-only first-order receiver (W, Y, X).
type Amb1H0V struct{}

func (Amb1H0V) Channels() int { return 3 }

func (Amb1H0V) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	az := math.Atan2(prel.Y, prel.X)
	n := chunk.Len()
	sy, cx := math.Sin(az), math.Cos(az)
	for i := 0; i < n; i++ {
		s := chunk.Data[i]
		out[0].Data[i] += s * float32(sqrtHalf)
		out[1].Data[i] += s * float32(sy)
		out[2].Data[i] += s * float32(cx)
	}
}

func (Amb1H0V) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	out[0].Add(foa.Ch[audiobuf.W])
	out[1].Add(foa.Ch[audiobuf.Y])
	out[2].Add(foa.Ch[audiobuf.X])
}

// FakeBF synthesizes a B-format-looking 4-channel signal from the mono
// input without true spherical-harmonic weighting; kept for legacy
// session compatibility.
type FakeBF struct{}

func (FakeBF) Channels() int { return 4 }

func (FakeBF) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	out[0].AddScaled(chunk, float32(sqrtHalf))
	out[1].AddScaled(chunk, float32(prel.Y*0.5))
	out[2].AddScaled(chunk, float32(prel.Z*0.5))
	out[3].AddScaled(chunk, float32(prel.X*0.5))
}

func (FakeBF) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	for i, ch := range []audiobuf.FOAChannel{audiobuf.W, audiobuf.Y, audiobuf.Z, audiobuf.X} {
		out[i].Add(foa.Ch[ch])
	}
}

// IntensityVector outputs the pressure and the three instantaneous
// intensity-vector components, a diagnostic variant.
type IntensityVector struct{}

func (IntensityVector) Channels() int { return 4 }

func (IntensityVector) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	n := chunk.Len()
	for i := 0; i < n; i++ {
		s := chunk.Data[i]
		p := s * s
		out[0].Data[i] += s
		out[1].Data[i] += p * float32(prel.X)
		out[2].Data[i] += p * float32(prel.Y)
		out[3].Data[i] += p * float32(prel.Z)
	}
}

func (IntensityVector) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	out[0].AddScaled(foa.Ch[audiobuf.W], float32(math.Sqrt2))
}

// NSP pans each source to the nearest speaker of its layout.
type NSP struct {
	L *Layout
}

func (n *NSP) Channels() int   { return len(n.L.Speakers) }
func (n *NSP) Layout() *Layout { return n.L }

func (n *NSP) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	best := 0
	bestDot := math.Inf(-1)
	for k, s := range n.L.Speakers {
		if d := s.dir.Dot(prel); d > bestDot {
			bestDot = d
			best = k
		}
	}
	out[best].Add(chunk)
}

func (n *NSP) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	decodeDiffuseBasic(n.L, foa, out)
}

// ORTF is a near-coincident stereo pair: two outward-angled first-order
// microphones 17 cm apart; the level part of the technique is modeled
// by the microphone directivity. Both channels carry the same static
// layout delay, so no interchannel time difference is rendered.
type ORTF struct {
	L *Layout
}

// NewORTF builds the standard 110 degree / 17 cm pair.
func NewORTF() *ORTF {
	left := NewSpeaker(55, 0, 1)
	right := NewSpeaker(-55, 0, 1)
	left.Delay = 0.085 / 340
	right.Delay = 0.085 / 340
	return &ORTF{L: NewLayout("ortf", []*Speaker{left, right}, nil)}
}

func (o *ORTF) Channels() int   { return 2 }
func (o *ORTF) Layout() *Layout { return o.L }

func (o *ORTF) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	for k, s := range o.L.Speakers {
		g := 0.5 * (1 + s.dir.Dot(prel))
		out[k].AddScaled(chunk, float32(g))
	}
}

func (o *ORTF) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	decodeDiffuseBasic(o.L, foa, out)
}

// decodeDiffuseBasic is the shared speaker-set diffuse decode:
// out_k += dw*(sqrt(2)*W + x*X + y*Y + z*Z), an unweighted first-order
// projection onto the speaker direction (x,y,z), where dw is the
// speaker's density weight divided by the speaker count.
func decodeDiffuseBasic(l *Layout, foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	n := foa.Len()
	norm := 1.0 / math.Max(1, float64(len(l.Speakers)))
	w := foa.Ch[audiobuf.W].Data
	y := foa.Ch[audiobuf.Y].Data
	z := foa.Ch[audiobuf.Z].Data
	x := foa.Ch[audiobuf.X].Data
	for k, s := range l.Speakers {
		if k >= len(out) {
			break
		}
		dw := s.DensityWeight() * norm
		d := s.dir
		o := out[k].Data
		for i := 0; i < n; i++ {
			o[i] += float32(dw * (sqrtHalf*float64(w[i])*2 +
				d.X*float64(x[i]) + d.Y*float64(y[i]) + d.Z*float64(z[i])))
		}
	}
}
