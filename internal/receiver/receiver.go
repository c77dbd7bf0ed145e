// Package receiver implements the polymorphic receiver of the rendering
// engine: the variant contract (omni, Ambisonic, VBAP, HRTF, ITU
// layouts, reverb), the per-receiver accumulators and the post-stage
// with decorrelation, subwoofer crossover, calibration and convolution.
package receiver

import (
	"math"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/scene"
)

// Variant is the receiver-kind contract: panning a point source
// into the output channels and decoding a diffuse FOA frame. Variants
// declare their channel count; speaker-based variants also expose their
// layout for the post-stage.
type Variant interface {
	Channels() int
	// AddPointSource pans chunk at unit-normalized prel into out.
	AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer)
	// AddDiffuse decodes one FOA frame (already in the receiver frame).
	AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer)
}

// SpeakerVariant is implemented by variants with a physical layout.
type SpeakerVariant interface {
	Variant
	Layout() *Layout
}

// PostProcessor is implemented by variants with their own output stage
// (reverb variants, parametric HRTF).
type PostProcessor interface {
	Postproc(out []*audiobuf.Buffer)
}

// MaskPlugin returns a scalar gain per direction for point sources and
// a 4x4 FOA gain matrix for diffuse rendering.
type MaskPlugin interface {
	Gain(prel geom.Vec3) float64
	FOAMatrix() [4][4]float64
}

// Receiver is a dynamic object plus a variant and the per-receiver
// render state: layer masks, ISM bounds, fades, bounding box,
// accumulators and the post-stage.
type Receiver struct {
	scene.DynObject

	Type    string
	Variant Variant

	Layers        uint32
	ISMMin        int
	ISMMax        int
	RenderPoint   bool
	RenderImage   bool
	RenderDiffuse bool
	IsReverb      bool

	// Volumetric is the receiver box size; a nonzero box marks the
	// receiver volumetric and enables the diffuse read.
	Volumetric geom.Vec3
	AvgDist    float64

	// Bounding box with falloff: outside the box the receiver's input
	// gain fades to zero over BoxFalloff meters.
	BoxCenter  geom.Vec3
	BoxSize    geom.Vec3
	BoxFalloff float64

	GlobalMask bool
	Mask       MaskPlugin

	Gain         float64 // external linear gain
	DiffuseGain  float64
	CalibLevel   float64
	DelayComp    float64 // seconds, subtracted from every path delay
	RecDelayComp float64
	LayerFadeLen float64
	MuteOnStop   bool

	// Fade state: half-cosine ramp from Previous to Target over
	// FadeLen seconds, starting at FadeStartSample.
	fadeCurrent     float64
	fadePrevious    float64
	fadeTarget      float64
	fadeTimer       int
	fadeLenSamples  int
	fadeStartSample uint64

	// Per-block gains computed by the scheduler pass 2.
	ExternalGain float64 // mask * bounding-box product, ramped per block
	prevExtGain  float64

	Out     []*audiobuf.Buffer
	Scatter *audiobuf.FOABuffer // scattering accumulator
	Diffuse *audiobuf.FOABuffer // diffuse input accumulated by diffuse paths

	post   *PostStage
	meters []*audiobuf.LevelMeter

	cfg        scene.AudioConfig
	configured bool
}

// New returns a receiver wrapping the given variant with all render
// flags on, a full layer mask and unit gains.
func New(name, typ string, v Variant) *Receiver {
	return &Receiver{
		DynObject:     scene.NewDynObject(name),
		Type:          typ,
		Variant:       v,
		Layers:        0xffffffff,
		ISMMax:        -1,
		RenderPoint:   true,
		RenderImage:   true,
		RenderDiffuse: true,
		Gain:          1,
		DiffuseGain:   1,
		LayerFadeLen:  1,
		fadeCurrent:   1,
		fadePrevious:  1,
		fadeTarget:    1,
		ExternalGain:  1,
		prevExtGain:   1,
	}
}

// Configure allocates output buffers, accumulators and the post-stage,
// succeed-or-rollback.
func (r *Receiver) Configure(cfg scene.AudioConfig) error {
	if r.configured {
		return nil
	}
	if r.Variant == nil {
		return engineerr.NewConfigError(r.Name, engineerr.ErrMissingAttribute)
	}
	n := r.Variant.Channels()
	if n <= 0 || cfg.Fragment <= 0 {
		return engineerr.NewResourceError(r.Name, engineerr.ErrAllocation)
	}
	r.cfg = cfg
	r.Out = make([]*audiobuf.Buffer, n)
	r.meters = make([]*audiobuf.LevelMeter, n)
	for i := range r.Out {
		r.Out[i] = audiobuf.New(cfg.Fragment)
		r.meters[i] = audiobuf.NewLevelMeter(int(cfg.SampleRate))
	}
	r.Scatter = audiobuf.NewFOA(cfg.Fragment)
	r.Diffuse = audiobuf.NewFOA(cfg.Fragment)

	if cv, ok := r.Variant.(scene.AudioState); ok {
		if err := cv.Configure(cfg); err != nil {
			r.Release()
			return err
		}
	}
	if sv, ok := r.Variant.(SpeakerVariant); ok {
		post, err := NewPostStage(sv.Layout(), cfg)
		if err != nil {
			r.Release()
			return err
		}
		r.post = post
	}
	r.configured = true
	return nil
}

// PostPrepare wires the variant's cross-component state.
func (r *Receiver) PostPrepare() error {
	if cv, ok := r.Variant.(scene.AudioState); ok {
		return cv.PostPrepare()
	}
	return nil
}

// Release tears down sample-rate state; idempotent.
func (r *Receiver) Release() {
	if cv, ok := r.Variant.(scene.AudioState); ok {
		cv.Release()
	}
	r.Out = nil
	r.Scatter = nil
	r.Diffuse = nil
	r.post = nil
	r.meters = nil
	r.configured = false
}

// ClearBlock zeroes all per-block accumulators.
func (r *Receiver) ClearBlock() {
	for _, o := range r.Out {
		o.Clear()
	}
	r.Scatter.Clear()
	r.Diffuse.Clear()
}

// OrderInRange checks an image-source order against the receiver bounds.
func (r *Receiver) OrderInRange(order int) bool {
	if order < r.ISMMin {
		return false
	}
	return r.ISMMax < 0 || order <= r.ISMMax
}

// IsVolumetric reports whether the receiver owns a nonzero box.
func (r *Receiver) IsVolumetric() bool {
	return r.Volumetric.X != 0 || r.Volumetric.Y != 0 || r.Volumetric.Z != 0
}

// RelPos maps a world position into the receiver frame, returning the
// relative position and its distance.
func (r *Receiver) RelPos(world geom.Vec3) (prel geom.Vec3, dist float64) {
	pose := r.Pose()
	prel = pose.Orient.Unrotate(world.Sub(pose.Position))
	return prel, prel.Norm()
}

// PointGain evaluates the distance law for a path feeding this
// receiver; volumetric receivers saturate the 1/r law at the average
// distance of the box.
func (r *Receiver) PointGain(dist float64, model scene.GainModel) float64 {
	if model == scene.GainUnity {
		return 1
	}
	floor := 0.1
	if r.IsVolumetric() && r.AvgDist > floor {
		floor = r.AvgDist
	}
	return 1 / math.Max(floor, dist)
}

// AddPointSourceWithScattering pans chunk into the output channels and
// accumulates the scattering share into the FOA scatter accumulator.
func (r *Receiver) AddPointSourceWithScattering(prel geom.Vec3, width, scattering float64, chunk *audiobuf.Buffer) {
	dir := prel.Normalized()
	if scattering > 0 {
		r.Scatter.AddPanned(dir.X, dir.Y, dir.Z, chunk, scattering)
	}
	r.Variant.AddPointSource(dir, width, chunk, r.Out)
}

// SetFade schedules a fade to target gain over d seconds, starting not
// before startSample of the transport.
func (r *Receiver) SetFade(target, d float64, startSample uint64) {
	r.fadePrevious = r.fadeCurrent
	r.fadeTarget = target
	r.fadeLenSamples = int(d * r.cfg.SampleRate)
	if r.fadeLenSamples < 1 {
		r.fadeLenSamples = 1
	}
	r.fadeTimer = r.fadeLenSamples
	r.fadeStartSample = startSample
}

// FadeGain returns the current fade gain (for diagnostics).
func (r *Receiver) FadeGain() float64 { return r.fadeCurrent }

// applyFade advances the fade envelope over one block starting at the
// given transport sample and multiplies it into every output channel.
func (r *Receiver) applyFade(blockStart uint64) {
	if r.fadeTimer <= 0 && r.fadeCurrent == 1 && r.ExternalGain == r.prevExtGain && r.ExternalGain == 1 {
		return
	}
	n := r.cfg.Fragment
	extStep := (r.ExternalGain - r.prevExtGain) / float64(n)
	ext := r.prevExtGain
	for i := 0; i < n; i++ {
		s := blockStart + uint64(i)
		if r.fadeTimer > 0 && s >= r.fadeStartSample {
			r.fadeTimer--
			w := 1 - float64(r.fadeTimer)/float64(r.fadeLenSamples)
			ramp := 1 - geom.HalfCosineRamp(w)
			r.fadeCurrent = r.fadePrevious + (r.fadeTarget-r.fadePrevious)*ramp
		}
		ext += extStep
		g := float32(r.fadeCurrent * ext)
		for _, o := range r.Out {
			o.Data[i] *= g
		}
	}
	r.prevExtGain = r.ExternalGain
}

// Meters returns the per-channel level meters.
func (r *Receiver) Meters() []*audiobuf.LevelMeter { return r.meters }

// Post returns the speaker post-stage, nil for non-speaker variants.
func (r *Receiver) Post() *PostStage { return r.post }

// RenderPost runs the receiver post-stage for one block:
// scatter accumulation, diffuse decode (with the mask FOA matrix and
// the diffuse gain), decorrelation, variant postproc and the fade
// envelope, then crossover/calibration/convolution and the meters.
func (r *Receiver) RenderPost(blockStart uint64) {
	if !r.configured {
		return
	}
	// 1. scatter feeds the diffuse input with unit rotation
	r.Diffuse.Add(r.Scatter)

	// 2. diffuse render
	if r.RenderDiffuse {
		if r.Mask != nil {
			applyFOAMatrix(r.Diffuse, r.Mask.FOAMatrix())
		}
		if r.DiffuseGain != 1 {
			r.Diffuse.Scale(float32(r.DiffuseGain))
		}
		r.Variant.AddDiffuse(r.Diffuse, r.Out)
	}

	// 3. decorrelation
	if r.post != nil {
		r.post.Decorrelate(r.Out)
	}

	// 4. variant postproc and fade envelope
	if pp, ok := r.Variant.(PostProcessor); ok {
		pp.Postproc(r.Out)
	}
	r.applyFade(blockStart)

	// 5. crossover, calibration, external FIR
	if r.post != nil {
		r.post.Finish(r.Out)
	}

	// 6. level meters
	for i, m := range r.meters {
		m.Process(r.Out[i])
	}
}

// applyFOAMatrix multiplies the 4x4 mask matrix into the FOA frame,
// with channels taken in W,Y,Z,X buffer order.
func applyFOAMatrix(f *audiobuf.FOABuffer, m [4][4]float64) {
	n := f.Len()
	for i := 0; i < n; i++ {
		var in, out [4]float64
		for c := 0; c < 4; c++ {
			in[c] = float64(f.Ch[c].Data[i])
		}
		for row := 0; row < 4; row++ {
			for col := 0; col < 4; col++ {
				out[row] += m[row][col] * in[col]
			}
		}
		for c := 0; c < 4; c++ {
			f.Ch[c].Data[i] = float32(out[c])
		}
	}
}
