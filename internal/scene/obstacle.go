package scene

import (
	"math"

	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/geom"
)

// Obstacle is a diffracting/transmitting polygon: a solid plate
// ("inside") or an opening in an infinite baffle ("hole"), with a
// transmission coefficient mixing the direct and diffracted signal.
type Obstacle struct {
	DynObject
	Face geom.Polygon

	Transmission float64 // [0,1]: 1 = fully transparent
	Hole         bool
	// Aperture overrides the face's equivalent-circular aperture when > 0.
	Aperture float64

	NoPostPrepare
}

// NewObstacle builds an obstacle from local-frame vertices.
func NewObstacle(name string, vertices []geom.Vec3) (*Obstacle, error) {
	if len(vertices) < 3 {
		return nil, engineerr.NewConfigError(name, engineerr.ErrNonPlanarFace)
	}
	o := &Obstacle{DynObject: NewDynObject(name)}
	o.Face.Local = vertices
	return o, nil
}

// Configure validates the face.
func (o *Obstacle) Configure(cfg AudioConfig) error {
	if len(o.Face.Local) < 3 {
		return engineerr.NewConfigError(o.Name, engineerr.ErrNonPlanarFace)
	}
	return nil
}

// Release has no sample-rate state to drop.
func (o *Obstacle) Release() {}

// GeometryUpdate moves the face with the object pose.
func (o *Obstacle) GeometryUpdate(t float64) {
	o.DynObject.GeometryUpdate(t)
	p := o.Pose()
	o.Face.Position = p.Position
	o.Face.Orient = p.Orient
	o.Face.Update()
}

// EffectiveAperture returns the manual override or the face aperture.
func (o *Obstacle) EffectiveAperture() float64 {
	if o.Aperture > 0 {
		return o.Aperture
	}
	return o.Face.Aperture()
}

// DiffractionState is the per-path filter state of one obstacle: a
// first-order lowpass with coefficient A1 interpolated linearly over
// the block, mixed dry/wet by the transmission coefficient.
type DiffractionState struct {
	A1     float64 // current coefficient, ramped per sample
	a1Next float64
	z      float64
	// Blocked reports whether the segment hit the obstacle this block.
	Blocked bool
}

// Update runs the geometric stage of the diffraction state machine for
// the segment src -> rec: it decides whether the obstacle blocks the
// segment, derives the lowpass coefficient from the Airy first-zero
// frequency, and returns the effective source position (moved to the
// grazing point for a solid obstacle).
func (s *DiffractionState) Update(o *Obstacle, src, rec geom.Vec3, c, fs float64) geom.Vec3 {
	pIs, w, onSegment := o.Face.Intersection(src, rec)
	if !onSegment || w <= 0 || w >= 1 {
		s.Blocked = false
		s.a1Next = 0
		return src
	}
	var outside bool
	grazing := o.Face.Nearest(pIs, &outside, nil)
	blocked := !outside
	if o.Hole {
		blocked = !blocked
	}
	if !blocked {
		s.Blocked = false
		s.a1Next = 0
		return src
	}
	s.Blocked = true

	in := grazing.Sub(src).Normalized()
	out := rec.Sub(grazing).Normalized()
	cosTheta := geom.Clamp(in.Dot(out), -1, 1)
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	aperture := math.Max(1e-3, o.EffectiveAperture())
	f0 := 3.8317 * c / (2 * math.Pi * aperture * math.Max(1e-3, sinTheta))
	s.a1Next = math.Exp(-math.Pi * f0 / fs)
	if s.a1Next < 0 {
		s.a1Next = 0
	}

	if !o.Hole {
		return grazing
	}
	return src
}

// Process filters one sample with the current coefficient A1; the
// caller ramps A1 by RampStep between samples. transmission mixes the direct signal (1) against the lowpassed wet
// path (0).
func (s *DiffractionState) Process(x, transmission float64) float64 {
	if !s.Blocked {
		return x
	}
	s.z = s.A1*s.z + (1-s.A1)*x
	if math.IsNaN(s.z) || math.IsInf(s.z, 0) {
		s.z = 0
	}
	return transmission*x + (1-transmission)*s.z
}

// RampStep returns the per-sample coefficient increment for a block of
// n samples.
func (s *DiffractionState) RampStep(n int) float64 {
	if n <= 0 {
		return 0
	}
	return (s.a1Next - s.A1) / float64(n)
}

// Commit fixes the end-of-block coefficient as the new start value.
func (s *DiffractionState) Commit() { s.A1 = s.a1Next }
