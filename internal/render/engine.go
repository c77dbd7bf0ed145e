package render

import (
	"math"
	"time"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/config"
	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/receiver"
	"github.com/san-kum/vacoustic/internal/scene"
)

// Engine is the block-synchronous scene scheduler: per block
// it advances the geometry of every object, computes mask and
// bounding-box gains per receiver, walks each receiver's acoustic and
// diffuse path lists and runs the receiver post-stages, reverb
// receivers first.
type Engine struct {
	ctx   *RenderContext
	scene *Scene
	cfg   scene.AudioConfig

	Params *scene.ParamBus

	arenas  map[*receiver.Receiver]*pathArena
	diffuse []*diffusePath
	modules []Module
	verts   []*scene.SoundVertex

	chunk      *audiobuf.Buffer
	diffRamp   []float64
	c          float64
	airDivisor float64
	soloActive bool

	configured bool
}

// NewEngine binds a scene to a render context.
func NewEngine(ctx *RenderContext, s *Scene) *Engine {
	return &Engine{
		ctx:        ctx,
		scene:      s,
		Params:     scene.NewParamBus(1024),
		arenas:     make(map[*receiver.Receiver]*pathArena),
		airDivisor: config.AirAbsorptionDivisor,
	}
}

// AddModule attaches a scene-level extension module.
func (e *Engine) AddModule(m Module) { e.modules = append(e.modules, m) }

// Configure validates the scene and allocates all sample-rate state,
// succeed-or-rollback.
func (e *Engine) Configure(cfg scene.AudioConfig) error {
	if e.configured {
		return nil
	}
	if err := e.scene.Validate(); err != nil {
		return err
	}
	if e.scene.C > 0 {
		cfg.SpeedOfSound = e.scene.C
	}
	e.cfg = cfg
	e.c = cfg.C()
	e.chunk = audiobuf.New(cfg.Fragment)
	e.diffRamp = make([]float64, len(e.scene.Obstacles))

	var done []scene.AudioState
	rollback := func(err error) error {
		for i := len(done) - 1; i >= 0; i-- {
			done[i].Release()
		}
		return err
	}
	components := make([]scene.AudioState, 0)
	for _, s := range e.scene.Sources {
		components = append(components, s)
	}
	for _, d := range e.scene.Diffuse {
		components = append(components, d)
	}
	for _, r := range e.scene.Reflectors {
		components = append(components, r)
	}
	for _, o := range e.scene.Obstacles {
		components = append(components, o)
	}
	for _, m := range e.scene.Masks {
		components = append(components, m)
	}
	for _, r := range e.scene.Receivers {
		components = append(components, r)
	}
	for _, m := range e.modules {
		components = append(components, m)
	}
	for _, c := range components {
		if err := c.Configure(cfg); err != nil {
			return rollback(err)
		}
		done = append(done, c)
	}

	// material fits at the running sample rate
	for _, r := range e.scene.Reflectors {
		if err := e.scene.Materials.ApplyTo(r, cfg.SampleRate); err != nil {
			return rollback(err)
		}
	}

	// calibration freshness of every speaker layout
	now := time.Now()
	for _, r := range e.scene.Receivers {
		if sv, ok := r.Variant.(receiver.SpeakerVariant); ok {
			rec := r
			sv.Layout().CheckCalibration(rec.Type, e.ctx.Config.CalibMaxAge, now,
				func(format string, args ...any) {
					e.ctx.Warnings.Add(rec.Name, format, args...)
				})
		}
	}

	// freeze geometry once so arena construction sees valid faces
	e.geometryPass(0)

	e.verts = e.scene.vertices()
	vertices := e.verts
	for _, rec := range e.scene.Receivers {
		maxOrder := rec.ISMMax
		if maxOrder < 0 {
			maxOrder = e.ctx.Config.DefaultISMOrder
		}
		if len(e.scene.Reflectors) == 0 {
			maxOrder = 0
		}
		e.arenas[rec] = buildArena(vertices, e.scene.Reflectors, e.scene.Obstacles, maxOrder, cfg)
		for _, f := range e.scene.Diffuse {
			e.diffuse = append(e.diffuse, newDiffusePath(f, rec, cfg.Fragment))
		}
	}

	if err := scene.PostPrepareAll(components...); err != nil {
		return rollback(err)
	}
	e.configured = true
	return nil
}

// Release tears down all sample-rate state; idempotent.
func (e *Engine) Release() {
	for _, s := range e.scene.Sources {
		s.Release()
	}
	for _, d := range e.scene.Diffuse {
		d.Release()
	}
	for _, r := range e.scene.Receivers {
		r.Release()
	}
	for _, m := range e.modules {
		m.Release()
	}
	e.arenas = make(map[*receiver.Receiver]*pathArena)
	e.diffuse = nil
	e.configured = false
}

// Process renders one block: the two-pass scene update followed by the
// per-receiver path walks and post-stages. Runs in the audio context:
// no allocation, no locks, no I/O.
func (e *Engine) Process(tp Transport) {
	if !e.configured {
		return
	}
	e.Params.Drain()
	t := tp.Time()

	// pass 1: geometry of every object
	e.geometryPass(t)
	for _, m := range e.modules {
		m.Update(tp)
	}

	// pass 2: receiver-wide mask and bounding-box gains, solo state
	e.soloActive = false
	for _, v := range e.verts {
		if v.Solo {
			e.soloActive = true
			break
		}
	}
	for _, rec := range e.scene.Receivers {
		rec.ExternalGain = rec.Gain * e.receiverMaskGain(rec)
		rec.ClearBlock()
		e.arenas[rec].updatePositions(rec.Pose().Position)
	}

	// pass 3+4: paths, diffuse and post-stage; reverb receivers finish
	// first so their output can be routed back this same block
	for _, rec := range e.scene.Receivers {
		if rec.IsReverb {
			e.renderReceiver(rec, tp)
		}
	}
	for _, rec := range e.scene.Receivers {
		if !rec.IsReverb {
			e.renderReceiver(rec, tp)
		}
	}
}

// renderReceiver walks one receiver's acoustic-path tree in order
// (primary paths first), then its diffuse paths, then the
// post-stage.
func (e *Engine) renderReceiver(rec *receiver.Receiver, tp Transport) {
	a := e.arenas[rec]
	if !rec.IsActive(tp.Time()) {
		// keep the propagation timeline moving while the receiver is
		// gated
		for i := range a.paths {
			e.silentAdvance(&a.paths[i])
		}
		return
	}
	for i := range a.paths {
		e.renderPath(a, i, rec, tp)
	}
	for _, d := range e.diffuse {
		if d.rec == rec {
			d.render(tp)
		}
	}
	rec.RenderPost(tp.Sample)
}

// geometryPass advances every dynamic object to transport time t.
func (e *Engine) geometryPass(t float64) {
	for _, s := range e.scene.Sources {
		s.GeometryUpdate(t)
	}
	for _, d := range e.scene.Diffuse {
		d.GeometryUpdate(t)
	}
	for _, r := range e.scene.Reflectors {
		r.GeometryUpdate(t)
	}
	for _, o := range e.scene.Obstacles {
		o.GeometryUpdate(t)
	}
	for _, m := range e.scene.Masks {
		m.GeometryUpdate(t)
	}
	for _, r := range e.scene.Receivers {
		r.GeometryUpdate(t)
	}
}

// receiverMaskGain multiplies the global masks (for opt-in receivers)
// with the receiver's own bounding box falloff.
func (e *Engine) receiverMaskGain(rec *receiver.Receiver) float64 {
	g := 1.0
	pos := rec.Pose().Position
	if rec.GlobalMask {
		for _, m := range e.scene.Masks {
			g *= m.Gain(pos)
		}
	}
	if rec.BoxSize.X != 0 || rec.BoxSize.Y != 0 || rec.BoxSize.Z != 0 {
		g *= boxGain(pos, rec.BoxCenter, rec.BoxSize, rec.BoxFalloff)
	}
	if math.IsNaN(g) || math.IsInf(g, 0) {
		g = 0
		e.ctx.NonFiniteCount++
	}
	return g
}

// boxGain is the inner-box falloff shared by receiver bounding boxes.
func boxGain(p, center, size geom.Vec3, falloff float64) float64 {
	local := p.Sub(center)
	half := size.Scale(0.5)
	dx := math.Max(0, math.Abs(local.X)-half.X)
	dy := math.Max(0, math.Abs(local.Y)-half.Y)
	dz := math.Max(0, math.Abs(local.Z)-half.Z)
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if dist <= 0 {
		return 1
	}
	if falloff <= 0 {
		return 0
	}
	return geom.HalfCosineRamp(math.Min(1, dist/falloff))
}

// PathCount returns the size of a receiver's acoustic-path arena.
func (e *Engine) PathCount(rec *receiver.Receiver) int {
	a := e.arenas[rec]
	if a == nil {
		return 0
	}
	return len(a.paths)
}

// EachPath visits every path of a receiver with its order, its parent's
// order and whether it repeats its parent's immediate reflector; used
// by the tree-invariant tests and diagnostics.
func (e *Engine) EachPath(rec *receiver.Receiver, fn func(order, parentOrder int, duplicate bool)) {
	a := e.arenas[rec]
	if a == nil {
		return
	}
	for i := range a.paths {
		p := &a.paths[i]
		parent := &a.paths[p.Parent]
		dup := p.Reflector != nil && p.Reflector == parent.Reflector
		fn(p.Order, parent.Order, dup)
	}
}

// LevelReport is one receiver channel's meter snapshot.
type LevelReport struct {
	Receiver    string
	Channel     int
	RMS         float64
	Peak        float64
	Percentiles map[int]float64
}

// LevelReports collects the meter state of every receiver channel in
// dB-SPL.
func (e *Engine) LevelReports() []LevelReport {
	var out []LevelReport
	for _, rec := range e.scene.Receivers {
		for ch, m := range rec.Meters() {
			rms, peak, pct := m.Report(2e-5)
			out = append(out, LevelReport{
				Receiver:    rec.Name,
				Channel:     ch,
				RMS:         rms,
				Peak:        peak,
				Percentiles: pct,
			})
		}
	}
	return out
}

// Warnings surfaces the accumulated scene-semantic warnings.
func (e *Engine) Warnings() []engineerr.Warning { return e.ctx.Warnings.Items() }
