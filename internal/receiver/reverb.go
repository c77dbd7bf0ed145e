package receiver

import (
	"math"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/dsp"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/scene"
)

// SimpleFDN is the feedback-delay-network reverb receiver: sources mix
// into a mono bus that feeds an 8-line FDN with a Householder feedback
// matrix; the output is one channel per delay line group folded to 4
// (W,Y,Z,X-shaped) so it can be routed back into non-reverb receivers
// as a first-order bed.
type SimpleFDN struct {
	RT60 float64 // seconds

	fs    float64
	lines [8]*dsp.VarDelay
	lens  [8]float64
	gains [8]float64
	lp    [8]float64 // one-pole damping state
	Damp  float64

	bus *audiobuf.Buffer
}

// NewSimpleFDN returns a 2 s reverb with mild damping.
func NewSimpleFDN() *SimpleFDN {
	return &SimpleFDN{RT60: 2, Damp: 0.3}
}

func (f *SimpleFDN) Channels() int { return 4 }

// Configure sizes the delay lines from eight fixed, distinct lengths
// between 29.7 ms and 79.7 ms, scaled to the sample rate.
func (f *SimpleFDN) Configure(cfg scene.AudioConfig) error {
	f.fs = cfg.SampleRate
	primes := []float64{0.0297, 0.0371, 0.0411, 0.0437, 0.0533, 0.0623, 0.0727, 0.0797}
	for i := range f.lines {
		f.lens[i] = primes[i] * cfg.SampleRate
		f.lines[i] = dsp.NewVarDelay(int(f.lens[i])+16, 0)
		f.gains[i] = math.Pow(10, -3*primes[i]/math.Max(0.01, f.RT60))
	}
	f.bus = audiobuf.New(cfg.Fragment)
	return nil
}

// PostPrepare has no cross-wiring.
func (f *SimpleFDN) PostPrepare() error { return nil }

// Release drops the delay lines.
func (f *SimpleFDN) Release() {
	f.lines = [8]*dsp.VarDelay{}
	f.bus = nil
}

func (f *SimpleFDN) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	if f.bus != nil {
		f.bus.Add(chunk)
	}
}

func (f *SimpleFDN) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	if f.bus != nil {
		f.bus.AddScaled(foa.Ch[audiobuf.W], float32(math.Sqrt2))
	}
}

// Postproc runs the FDN over the accumulated bus and writes the 4
// output channels.
func (f *SimpleFDN) Postproc(out []*audiobuf.Buffer) {
	if f.bus == nil {
		return
	}
	n := f.bus.Len()
	var tap [8]float64
	for i := 0; i < n; i++ {
		x := float64(f.bus.Data[i])
		var sum float64
		for k := range f.lines {
			tap[k] = f.lines[k].Read(f.lens[k])
			// one-pole damping in the loop
			f.lp[k] = f.lp[k]*f.Damp + tap[k]*(1-f.Damp)
			tap[k] = f.lp[k]
			sum += tap[k]
		}
		// Householder feedback: y_k = g_k*(tap_k - 2/N * sum) + x
		h := 2.0 / 8.0 * sum
		for k := range f.lines {
			f.lines[k].Push(f.gains[k]*(tap[k]-h) + x)
		}
		out[0].Data[i] += float32(0.25 * (tap[0] + tap[1] + tap[2] + tap[3]))
		out[1].Data[i] += float32(0.25 * (tap[4] - tap[5]))
		out[2].Data[i] += float32(0.25 * (tap[6] - tap[7]))
		out[3].Data[i] += float32(0.25 * (tap[1] - tap[2]))
	}
	f.bus.Clear()
}

// FOAReverb is the first-order Ambisonic reverb receiver: four
// independently decorrelated FDN taps encoded as a diffuse FOA bed.
type FOAReverb struct {
	fdn *SimpleFDN
}

// NewFOAReverb wraps a SimpleFDN with FOA output shaping.
func NewFOAReverb(rt60 float64) *FOAReverb {
	f := NewSimpleFDN()
	f.RT60 = rt60
	return &FOAReverb{fdn: f}
}

func (r *FOAReverb) Channels() int { return 4 }

func (r *FOAReverb) Configure(cfg scene.AudioConfig) error { return r.fdn.Configure(cfg) }
func (r *FOAReverb) PostPrepare() error                    { return nil }
func (r *FOAReverb) Release()                              { r.fdn.Release() }

func (r *FOAReverb) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	r.fdn.AddPointSource(prel, width, chunk, out)
}

func (r *FOAReverb) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	r.fdn.AddDiffuse(foa, out)
}

func (r *FOAReverb) Postproc(out []*audiobuf.Buffer) { r.fdn.Postproc(out) }
