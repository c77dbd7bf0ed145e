package scene

import (
	"math"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/geom"
)

// DiffuseField is a first-order Ambisonic sound field bound to a box
// volume with a boundary falloff. Its FOA signal is consumed in
// the receiver frame, so use sites rotate it by the receiver's inverse
// orientation.
type DiffuseField struct {
	DynObject

	Size       geom.Vec3
	Falloff    float64
	Layers     uint32
	Gain       float64 // linear
	CalibLevel float64 // dB-SPL

	// Input is the FOA block (W,Y,Z,X) for the current cycle, written
	// by the external audio collaborator.
	Input *audiobuf.FOABuffer

	NoPostPrepare
}

// NewDiffuseField returns a field with unit gain and full layer mask.
func NewDiffuseField(name string) *DiffuseField {
	return &DiffuseField{
		DynObject: NewDynObject(name),
		Falloff:   1,
		Layers:    0xffffffff,
		Gain:      1,
	}
}

// Configure allocates the FOA input block.
func (d *DiffuseField) Configure(cfg AudioConfig) error {
	if cfg.Fragment <= 0 {
		return engineerr.NewConfigError(d.Name, engineerr.ErrAllocation)
	}
	d.Input = audiobuf.NewFOA(cfg.Fragment)
	return nil
}

// Release drops sample-rate-dependent state.
func (d *DiffuseField) Release() { d.Input = nil }

// BoxGain evaluates the boundary falloff at a point given in the field
// frame: distance d to the nearest box point maps to
// 0.5*(1+cos(pi*min(1, d/falloff))).
func (d *DiffuseField) BoxGain(pLocal geom.Vec3) float64 {
	half := d.Size.Scale(0.5)
	dx := math.Max(0, math.Abs(pLocal.X)-half.X)
	dy := math.Max(0, math.Abs(pLocal.Y)-half.Y)
	dz := math.Max(0, math.Abs(pLocal.Z)-half.Z)
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if dist <= 0 {
		return 1
	}
	if d.Falloff <= 0 {
		return 0
	}
	return geom.HalfCosineRamp(math.Min(1, dist/d.Falloff))
}
