package receiver

import (
	"math"
	"math/rand"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/dsp"
	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/scene"
)

// PostStage is the output chain of a speaker-based receiver:
// decorrelation filterbank, subwoofer crossover, per-channel
// delay/gain/FIR calibration and the optional external MIMO FIR.
type PostStage struct {
	layout *Layout
	cfg    scene.AudioConfig

	decorr []*dsp.Partitioned

	calibDelays  []*dsp.VarDelay
	delaySamples []float64
	calibFIR     []*dsp.Partitioned

	subWeights [][]float64 // [sub][main]
	subLP      []*dsp.Biquad
	mainHP     []*dsp.Biquad
	mainAP     []*dsp.Biquad
	SubOut     []*audiobuf.Buffer

	// External MIMO FIR: conv[i][k] convolves input k
	// into output i.
	extFIR      [][]*dsp.Partitioned
	extBefore   bool
	extScratch  []float64
	blockInput  []float64
	blockOutput [][]float64
}

// NewPostStage builds the full post chain for a layout at the given
// audio geometry.
func NewPostStage(l *Layout, cfg scene.AudioConfig) (*PostStage, error) {
	if l == nil {
		return nil, engineerr.NewResourceError("poststage", engineerr.ErrLayoutUnreachable)
	}
	n := len(l.Speakers)
	p := &PostStage{
		layout:     l,
		cfg:        cfg,
		extBefore:  l.ConvolveBeforeCalib,
		blockInput: make([]float64, cfg.Fragment),
	}

	if l.DecorrLen > 0 {
		irLen := int(l.DecorrLen * cfg.SampleRate)
		if irLen < 2 {
			irLen = 2
		}
		p.decorr = make([]*dsp.Partitioned, n)
		for k := 0; k < n; k++ {
			ir := decorrIR(irLen, int64(k)+1)
			p.decorr[k] = dsp.NewPartitioned(ir, cfg.Fragment)
		}
	}

	rMax := l.MaxRadius()
	c := cfg.C()
	p.calibDelays = make([]*dsp.VarDelay, n)
	p.delaySamples = make([]float64, n)
	p.calibFIR = make([]*dsp.Partitioned, n)
	for k, s := range l.Speakers {
		d := ((rMax-s.Radius)/c + s.Delay) * cfg.SampleRate
		if d < 0 {
			d = 0
		}
		p.delaySamples[k] = d
		p.calibDelays[k] = dsp.NewVarDelay(int(d)+16, 3)
		if len(s.EQ) > 0 {
			p.calibFIR[k] = dsp.NewPartitioned(dsp.MinPhase(s.EQ), cfg.Fragment)
		}
	}

	if len(l.Subs) > 0 && l.SubCutoff > 0 {
		p.buildSubStage(cfg)
	}
	return p, nil
}

// decorrIR builds a random-phase impulse response from a unit-magnitude
// spectrum, truncated to irLen, Hann windowed and normalized to unit
// energy; after truncation and windowing the magnitude is flat only on
// average across frequencies. Seeded per channel so the bank is
// deterministic across runs.
func decorrIR(irLen int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	fftLen := dsp.NextPow2(irLen)
	spec := make([]complex128, fftLen)
	spec[0] = 1
	for i := 1; i <= fftLen/2; i++ {
		phi := rng.Float64() * 2 * math.Pi
		v := complex(math.Cos(phi), math.Sin(phi))
		spec[i] = v
		if i < fftLen/2 {
			spec[fftLen-i] = complex(real(v), -imag(v))
		}
	}
	td := dsp.Inverse(spec)
	ir := make([]float64, irLen)
	for i := range ir {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(irLen-1)))
		ir[i] = real(td[i]) * w
	}
	var energy float64
	for _, v := range ir {
		energy += v * v
	}
	if energy > 0 {
		norm := 1 / math.Sqrt(energy)
		for i := range ir {
			ir[i] *= norm
		}
	}
	return ir
}

// buildSubStage precomputes the sub mixing weights and crossover
// filters: w_{s,k} proportional to 1/(eps+d^2), normalized per main
// channel; subs lowpassed at fc, mains highpassed then allpassed at
// sqrt(1/2)*fc.
func (p *PostStage) buildSubStage(cfg scene.AudioConfig) {
	l := p.layout
	nMain := len(l.Speakers)
	nSub := len(l.Subs)
	const eps = 1e-3

	p.subWeights = make([][]float64, nSub)
	for s := range p.subWeights {
		p.subWeights[s] = make([]float64, nMain)
	}
	for k, main := range l.Speakers {
		var sum float64
		for s, sub := range l.Subs {
			d := main.dir.Sub(sub.dir).Norm()
			w := 1 / (eps + d*d)
			p.subWeights[s][k] = w
			sum += w
		}
		for s := range l.Subs {
			p.subWeights[s][k] /= sum
		}
	}

	fc := l.SubCutoff
	q := math.Sqrt2 / 2
	p.subLP = make([]*dsp.Biquad, nSub)
	p.SubOut = make([]*audiobuf.Buffer, nSub)
	for s := 0; s < nSub; s++ {
		p.subLP[s] = dsp.NewLowpass(fc, q, cfg.SampleRate)
		p.SubOut[s] = audiobuf.New(cfg.Fragment)
	}
	fcMain := fc * math.Sqrt2 / 2
	p.mainHP = make([]*dsp.Biquad, nMain)
	p.mainAP = make([]*dsp.Biquad, nMain)
	for k := 0; k < nMain; k++ {
		p.mainHP[k] = dsp.NewHighpass(fc, q, cfg.SampleRate)
		p.mainAP[k] = dsp.NewAllpass(fcMain, q, cfg.SampleRate)
	}
}

// SetExternalFIR installs the optional MIMO convolution: irs[i][k] is
// the impulse response from input channel k to output channel i. A nil
// entry contributes nothing.
func (p *PostStage) SetExternalFIR(irs [][][]float64, beforeCalib bool) {
	n := len(p.layout.Speakers)
	p.extFIR = make([][]*dsp.Partitioned, n)
	p.extScratch = make([]float64, p.cfg.Fragment)
	p.blockOutput = make([][]float64, n)
	for i := 0; i < n; i++ {
		p.extFIR[i] = make([]*dsp.Partitioned, n)
		p.blockOutput[i] = make([]float64, p.cfg.Fragment)
		for k := 0; k < n && i < len(irs); k++ {
			if k < len(irs[i]) && len(irs[i][k]) > 0 {
				p.extFIR[i][k] = dsp.NewPartitioned(irs[i][k], p.cfg.Fragment)
			}
		}
	}
	p.extBefore = beforeCalib
}

// Decorrelate runs the filterbank stage; called after the diffuse
// render and before the variant postproc.
func (p *PostStage) Decorrelate(out []*audiobuf.Buffer) {
	if p.decorr != nil {
		p.runDecorrelation(out)
	}
}

// Finish runs the remaining chain: subwoofer split, calibration and
// the external FIR in its configured slot.
func (p *PostStage) Finish(out []*audiobuf.Buffer) {
	if p.extFIR != nil && p.extBefore {
		p.runExternalFIR(out)
	}
	if p.subLP != nil {
		p.runSubCrossover(out)
	}
	p.runCalibration(out)
	if p.extFIR != nil && !p.extBefore {
		p.runExternalFIR(out)
	}
}

// Process runs the full post chain in place on the main outputs.
func (p *PostStage) Process(out []*audiobuf.Buffer) {
	p.Decorrelate(out)
	p.Finish(out)
}

func (p *PostStage) runDecorrelation(out []*audiobuf.Buffer) {
	for k, conv := range p.decorr {
		if k >= len(out) {
			break
		}
		toF64(p.blockInput, out[k].Data)
		y := conv.Process(p.blockInput)
		toF32(out[k].Data, y)
	}
}

func (p *PostStage) runSubCrossover(out []*audiobuf.Buffer) {
	n := p.cfg.Fragment
	for s := range p.subLP {
		sub := p.SubOut[s].Data
		for i := 0; i < n; i++ {
			var acc float64
			for k, o := range out {
				acc += p.subWeights[s][k] * float64(o.Data[i])
			}
			sub[i] = float32(p.subLP[s].Process(acc))
		}
	}
	for k, o := range out {
		hp := p.mainHP[k]
		ap := p.mainAP[k]
		for i := 0; i < n; i++ {
			o.Data[i] = float32(ap.Process(hp.Process(float64(o.Data[i]))))
		}
	}
}

func (p *PostStage) runCalibration(out []*audiobuf.Buffer) {
	for k, o := range out {
		if k >= len(p.calibDelays) {
			break
		}
		gain := p.layout.Speakers[k].Gain
		dl := p.calibDelays[k]
		d := p.delaySamples[k]
		for i := range o.Data {
			dl.Push(float64(o.Data[i]))
			o.Data[i] = float32(dl.Read(d) * gain)
		}
		if fir := p.calibFIR[k]; fir != nil {
			toF64(p.blockInput, o.Data)
			toF32(o.Data, fir.Process(p.blockInput))
		}
	}
}

func (p *PostStage) runExternalFIR(out []*audiobuf.Buffer) {
	n := len(out)
	for i := 0; i < n; i++ {
		for j := range p.blockOutput[i] {
			p.blockOutput[i][j] = 0
		}
	}
	for k := 0; k < n; k++ {
		toF64(p.blockInput, out[k].Data)
		for i := 0; i < n; i++ {
			if conv := p.extFIR[i][k]; conv != nil {
				y := conv.Process(p.blockInput)
				for j := range y {
					p.blockOutput[i][j] += y[j]
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		toF32(out[i].Data, p.blockOutput[i])
	}
}

func toF64(dst []float64, src []float32) {
	for i := range dst {
		if i < len(src) {
			dst[i] = float64(src[i])
		} else {
			dst[i] = 0
		}
	}
}

func toF32(dst []float32, src []float64) {
	for i := range dst {
		if i < len(src) {
			v := src[i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			dst[i] = float32(v)
		}
	}
}
