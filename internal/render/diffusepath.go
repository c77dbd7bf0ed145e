package render

import (
	"math"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/receiver"
	"github.com/san-kum/vacoustic/internal/scene"
)

// diffusePath is the per-(field, receiver) render state: a
// rotator for the receiver-frame rotation of the stored FOA signal and
// the ramped gain of the previous block.
type diffusePath struct {
	field *scene.DiffuseField
	rec   *receiver.Receiver

	rotator  *audiobuf.Rotator
	scratch  *audiobuf.FOABuffer
	prevGain float64
	primed   bool
}

func newDiffusePath(f *scene.DiffuseField, r *receiver.Receiver, fragment int) *diffusePath {
	return &diffusePath{
		field:   f,
		rec:     r,
		rotator: audiobuf.NewRotator(),
		scratch: audiobuf.NewFOA(fragment),
	}
}

// render adds one block of the field into the receiver's diffuse input.
func (d *diffusePath) render(tp Transport) {
	f := d.field
	r := d.rec
	t := tp.Time()

	gain := 0.0
	if f.IsActive(t) && f.Input != nil && r.RenderDiffuse && f.Layers&r.Layers != 0 {
		// 1. receiver offset and 1/r gain, modulated by the box falloff
		// evaluated in the field frame
		_, dist := r.RelPos(f.Pose().Position)
		gain = r.PointGain(dist, scene.GainPointSource)
		fieldPose := f.Pose()
		local := fieldPose.Orient.Unrotate(r.Pose().Position.Sub(fieldPose.Position))
		gain *= f.BoxGain(local)
		gain *= f.Gain
		if math.IsNaN(gain) || math.IsInf(gain, 0) {
			gain = 0
		}
	}
	if !d.primed {
		d.prevGain = gain
		d.primed = true
	}
	if gain == 0 && d.prevGain == 0 {
		return
	}

	// 2. rotate the stored FOA signal into the receiver frame
	recOrient := r.Pose().Orient
	fieldOrient := f.Pose().Orient
	rel := geom.Euler{
		Z: fieldOrient.Z - recOrient.Z,
		Y: fieldOrient.Y - recOrient.Y,
		X: fieldOrient.X - recOrient.X,
	}
	d.rotator.Rotate(d.scratch, f.Input, rel)
	d.scratch.Ch[audiobuf.W].CopyFrom(f.Input.Ch[audiobuf.W])

	// 3. per-sample gain ramp into the receiver's diffuse accumulator
	n := d.scratch.Len()
	g := d.prevGain
	dg := (gain - d.prevGain) / float64(n)
	for c := 0; c < 4; c++ {
		src := d.scratch.Ch[c].Data
		dst := r.Diffuse.Ch[c].Data
		gc := g
		for i := 0; i < n; i++ {
			gc += dg
			dst[i] += src[i] * float32(gc)
		}
	}
	d.prevGain = gain
}
