package render_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/vacoustic/internal/config"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/receiver"
	"github.com/san-kum/vacoustic/internal/render"
	"github.com/san-kum/vacoustic/internal/scene"
	"github.com/san-kum/vacoustic/internal/spectrum"
)

const (
	fs    = 48000.0
	block = 1024
	c     = 340.0
)

type rig struct {
	scene  *render.Scene
	engine *render.Engine
	vertex *scene.SoundVertex
	rec    *receiver.Receiver
}

// buildRig assembles a one-source one-omni-receiver scene; the caller
// mutates it before configure.
func buildRig(mutate func(r *rig)) *rig {
	s := render.NewScene("test")
	src := scene.NewSource("src")
	v := scene.NewSoundVertex("src.0")
	v.AirAbsorption = false
	src.Vertices = append(src.Vertices, v)
	s.Sources = append(s.Sources, src)

	rec := receiver.New("out", "omni", receiver.Omni{})
	s.Receivers = append(s.Receivers, rec)

	r := &rig{scene: s, vertex: v, rec: rec}
	if mutate != nil {
		mutate(r)
	}

	cfg := config.DefaultConfig()
	cfg.SampleRate = int(fs)
	cfg.Fragment = block
	ctx := render.NewRenderContext(cfg, nil)
	r.engine = render.NewEngine(ctx, s)
	Expect(r.engine.Configure(scene.AudioConfig{SampleRate: fs, Fragment: block})).To(Succeed())
	return r
}

// renderBlocks drives n blocks with the vertex input filled by gen.
func (r *rig) renderBlocks(n int, gen func(blockIdx int, data []float32)) []float64 {
	out := make([]float64, 0, n*block)
	for b := 0; b < n; b++ {
		for i := range r.vertex.Input.Data {
			r.vertex.Input.Data[i] = 0
		}
		if gen != nil {
			gen(b, r.vertex.Input.Data)
		}
		r.engine.Process(render.Transport{
			Rolling:    true,
			Sample:     uint64(b * block),
			SampleRate: fs,
		})
		for _, v := range r.rec.Out[0].Data {
			out = append(out, float64(v))
		}
	}
	return out
}

var _ = Describe("acoustic path rendering", func() {
	It("renders a direct path with the exact propagation delay and 1/r gain", func() {
		r := buildRig(func(r *rig) {
			r.vertex.LocalPos = geom.Vec3{X: 1}
		})
		defer r.engine.Release()

		out := r.renderBlocks(1, func(b int, data []float32) {
			if b == 0 {
				data[0] = 1
			}
		})

		want := int(math.Round(1 * fs / c)) // 141
		Expect(out[want]).To(BeNumerically("~", 1.0, 0.02))
		for i, v := range out {
			if i < want-1 || i > want+1 {
				Expect(math.Abs(v)).To(BeNumerically("<", 0.01), "sample %d", i)
			}
		}
	})

	It("renders a single reflection at the image distance", func() {
		r := buildRig(func(r *rig) {
			r.vertex.LocalPos = geom.Vec3{X: 2}
			r.vertex.ISMMin = 1
			r.vertex.ISMMax = 1
			r.rec.DeltaLocation = geom.Vec3{X: 3}
			r.rec.ISMMin = 1
			r.rec.ISMMax = 1

			wall, err := scene.NewReflector("wall", []geom.Vec3{
				{Y: -50, Z: -50}, {Y: 50, Z: -50}, {Y: 50, Z: 50}, {Y: -50, Z: 50},
			})
			Expect(err).NotTo(HaveOccurred())
			wall.Reflectivity = 1
			wall.Damping = 0
			r.scene.Reflectors = append(r.scene.Reflectors, wall)
		})
		defer r.engine.Release()

		out := r.renderBlocks(1, func(b int, data []float32) {
			if b == 0 {
				data[0] = 1
			}
		})

		// image of x=+2 across the x=0 wall sits at x=-2; distance to
		// the receiver at x=+3 is 5 m
		want := int(math.Round(5 * fs / c))
		Expect(out[want]).To(BeNumerically("~", 0.2, 0.02))
		for i, v := range out {
			if i < want-1 || i > want+1 {
				Expect(math.Abs(v)).To(BeNumerically("<", 0.01), "sample %d", i)
			}
		}
	})

	It("attenuates high frequencies through air absorption", func() {
		r := buildRig(func(r *rig) {
			r.vertex.LocalPos = geom.Vec3{X: 10}
			r.vertex.AirAbsorption = true
		})
		defer r.engine.Release()

		out := r.renderBlocks(4, func(b int, data []float32) {
			if b == 0 {
				data[0] = 1
			}
		})

		ps := spectrum.PowerSpectrum(out)
		low := spectrum.MagnitudeAt(ps, 100, fs)
		ny := spectrum.MagnitudeAt(ps, fs/2-1, fs)
		Expect(20 * math.Log10(low/ny)).To(BeNumerically(">", 19))
	})

	It("gates a receiver continuously through a global mask", func() {
		var mask *scene.Mask
		r := buildRig(func(r *rig) {
			r.vertex.LocalPos = geom.Vec3{X: 1}
			r.rec.GlobalMask = true
			mask = scene.NewMask("zone")
			mask.Size = geom.Vec3{X: 0.5, Y: 0.5, Z: 0.5}
			mask.Falloff = 0.1
			mask.DeltaLocation = geom.Vec3{X: 1}
			r.scene.Masks = append(r.scene.Masks, mask)
			r.rec.DeltaLocation = geom.Vec3{X: 1} // inside the mask
		})
		defer r.engine.Release()

		sine := func(b int, data []float32) {
			for i := range data {
				data[i] = float32(0.5 * math.Sin(2*math.Pi*500*float64(b*block+i)/fs))
			}
		}

		levels := make([]float64, 0)
		offsets := []float64{0, 0.26, 0.29, 0.32, 0.40}
		for _, off := range offsets {
			r.rec.DeltaLocation = geom.Vec3{X: 1 + off}
			// settle the per-block gain ramp, then measure
			r.renderBlocks(2, sine)
			out := r.renderBlocks(1, sine)
			var sum float64
			for _, v := range out {
				sum += v * v
			}
			levels = append(levels, math.Sqrt(sum/float64(len(out))))
		}

		Expect(levels[0]).To(BeNumerically(">", 0))
		for i := 1; i < len(levels); i++ {
			Expect(levels[i]).To(BeNumerically("<=", levels[i-1]+1e-9))
		}
		Expect(levels[len(levels)-1]).To(BeNumerically("<", 1e-6))
	})
})

var _ = Describe("diffuse field rendering", func() {
	It("fades all four FOA channels to zero at the falloff distance", func() {
		cfg := config.DefaultConfig()
		cfg.SampleRate = int(fs)
		cfg.Fragment = block
		ctx := render.NewRenderContext(cfg, nil)

		s := render.NewScene("diffuse")
		field := scene.NewDiffuseField("amb")
		field.Size = geom.Vec3{X: 2, Y: 2, Z: 2}
		field.Falloff = 1
		s.Diffuse = append(s.Diffuse, field)

		rec := receiver.New("out", "amb1h1v", receiver.Amb1H1V{})
		s.Receivers = append(s.Receivers, rec)

		engine := render.NewEngine(ctx, s)
		Expect(engine.Configure(scene.AudioConfig{SampleRate: fs, Fragment: block})).To(Succeed())
		defer engine.Release()

		drive := func(pos geom.Vec3, blocks int) float64 {
			rec.DeltaLocation = pos
			var rms float64
			for b := 0; b < blocks; b++ {
				for ch := 0; ch < 4; ch++ {
					for i := range field.Input.Ch[ch].Data {
						field.Input.Ch[ch].Data[i] = float32(0.2 * math.Sin(2*math.Pi*300*float64(i)/fs))
					}
				}
				engine.Process(render.Transport{Rolling: true, Sample: uint64(b * block), SampleRate: fs})
				if b == blocks-1 {
					var sum float64
					for ch := 0; ch < 4; ch++ {
						for _, v := range rec.Out[ch].Data {
							sum += float64(v) * float64(v)
						}
					}
					rms = math.Sqrt(sum)
				}
			}
			return rms
		}

		inside := drive(geom.Vec3{}, 3)
		Expect(inside).To(BeNumerically(">", 0))

		prev := math.Inf(1)
		for _, x := range []float64{1.0, 1.3, 1.6, 1.9} {
			lvl := drive(geom.Vec3{X: x}, 3)
			Expect(lvl).To(BeNumerically("<=", prev+1e-9), "x=%g", x)
			prev = lvl
		}
		atFalloff := drive(geom.Vec3{X: 2.0}, 3)
		Expect(atFalloff).To(BeNumerically("<", 1e-6))
	})
})

var _ = Describe("layer gating", func() {
	It("fades a disjoint layer to zero within the configured time", func() {
		r := buildRig(func(r *rig) {
			r.vertex.LocalPos = geom.Vec3{X: 1}
			r.rec.LayerFadeLen = 0.1
		})
		defer r.engine.Release()

		sine := func(b int, data []float32) {
			for i := range data {
				data[i] = float32(0.5 * math.Sin(2*math.Pi*500*float64(i)/fs))
			}
		}
		r.renderBlocks(2, sine)

		// split the layers: fade out must be monotone and complete
		// within ceil(T*fs/block) blocks
		r.vertex.Layers = 0x1
		r.rec.Layers = 0x2
		needed := int(math.Ceil(0.1 * fs / block))
		prev := math.Inf(1)
		var last float64
		for b := 0; b < needed+1; b++ {
			out := r.renderBlocks(1, sine)
			var sum float64
			for _, v := range out {
				sum += v * v
			}
			last = math.Sqrt(sum / float64(len(out)))
			Expect(last).To(BeNumerically("<=", prev+1e-9), "block %d", b)
			prev = last
		}
		Expect(last).To(BeNumerically("<", 1e-4))
	})
})

var _ = Describe("image source tree", func() {
	It("suppresses immediate duplicate reflectors and tracks orders", func() {
		s := render.NewScene("room")
		src := scene.NewSource("src")
		v := scene.NewSoundVertex("src.0")
		v.ISMMax = 2
		src.Vertices = append(src.Vertices, v)
		s.Sources = append(s.Sources, src)

		faces := scene.Shoebox("box", geom.Vec3{X: 4, Y: 4, Z: 4})
		for _, f := range faces {
			s.Reflectors = append(s.Reflectors, f)
		}

		rec := receiver.New("out", "omni", receiver.Omni{})
		rec.ISMMax = 2
		s.Receivers = append(s.Receivers, rec)

		cfg := config.DefaultConfig()
		cfg.SampleRate = int(fs)
		cfg.Fragment = block
		ctx := render.NewRenderContext(cfg, nil)
		engine := render.NewEngine(ctx, s)
		Expect(engine.Configure(scene.AudioConfig{SampleRate: fs, Fragment: block})).To(Succeed())
		defer engine.Release()

		// 1 direct + 6 first order + 6*5 second order
		Expect(engine.PathCount(rec)).To(Equal(1 + 6 + 30))
		engine.EachPath(rec, func(order, parentOrder int, duplicate bool) {
			if order > 0 {
				Expect(order).To(Equal(parentOrder + 1))
				Expect(duplicate).To(BeFalse())
			}
		})
	})
})
