package scene

import (
	"math"

	"github.com/san-kum/vacoustic/internal/geom"
)

// Mask is a box-shaped gain region independent of any receiver:
// inner mode passes full gain inside the box and fades to zero over the
// falloff distance outside; outer mode is the complement.
type Mask struct {
	DynObject

	Size    geom.Vec3
	Falloff float64
	Inside  bool

	NoPostPrepare
}

// NewMask returns an inner-mode mask.
func NewMask(name string) *Mask {
	return &Mask{DynObject: NewDynObject(name), Inside: true, Falloff: 1}
}

// Configure has no sample-rate state.
func (m *Mask) Configure(cfg AudioConfig) error { return nil }

// Release has no sample-rate state.
func (m *Mask) Release() {}

// Gain evaluates the mask at a world point.
func (m *Mask) Gain(p geom.Vec3) float64 {
	pose := m.Pose()
	local := pose.Orient.Unrotate(p.Sub(pose.Position))
	half := m.Size.Scale(0.5)
	dx := math.Max(0, math.Abs(local.X)-half.X)
	dy := math.Max(0, math.Abs(local.Y)-half.Y)
	dz := math.Max(0, math.Abs(local.Z)-half.Z)
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

	var inner float64
	switch {
	case dist <= 0:
		inner = 1
	case m.Falloff <= 0:
		inner = 0
	default:
		inner = geom.HalfCosineRamp(math.Min(1, dist/m.Falloff))
	}
	if m.Inside {
		return inner
	}
	return 1 - inner
}
