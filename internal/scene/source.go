package scene

import (
	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/geom"
)

// GainModel selects the distance law of a sound vertex.
type GainModel int

const (
	// GainPointSource is the 1/r law.
	GainPointSource GainModel = iota
	// GainUnity keeps unit gain regardless of distance.
	GainUnity
)

// SourceModel is the pluggable per-vertex directivity: given the
// receiver direction in the vertex frame it may rotate or reshape the
// input, or return the same mono signal.
type SourceModel interface {
	// Read fills out with the vertex signal for the given unit direction.
	Read(out *audiobuf.Buffer, in *audiobuf.Buffer, dir geom.Vec3)
}

// SoundVertex is one child position of a source, owning one mono input
// channel and its per-path rendering parameters.
type SoundVertex struct {
	DynObject

	// ChainDist places the vertex along the parent's x axis ("d"
	// attribute); LocalPos of the embedded DynObject holds x/y/z.
	ChainDist float64

	Gain       float64 // linear input gain
	CalibLevel float64 // dB-SPL reference
	Layers     uint32
	ISMMin     int
	ISMMax     int
	Size       float64
	Mute       bool
	Solo       bool

	GainModel     GainModel
	MaxDist       float64
	MinLevel      float64
	SincOrder     int
	AirAbsorption bool
	DelayLine     bool

	Model SourceModel

	// Input is the mono block for the current cycle, written by the
	// external audio collaborator before each render call.
	Input *audiobuf.Buffer

	NoPostPrepare
}

// NewSoundVertex returns a vertex with the usual defaults: 1/r gain,
// air absorption and delay line enabled, unbounded ISM order.
func NewSoundVertex(name string) *SoundVertex {
	return &SoundVertex{
		DynObject:     NewDynObject(name),
		Gain:          1,
		Layers:        0xffffffff,
		ISMMax:        -1,
		MaxDist:       3700,
		GainModel:     GainPointSource,
		AirAbsorption: true,
		DelayLine:     true,
	}
}

// Configure allocates the per-block input buffer.
func (v *SoundVertex) Configure(cfg AudioConfig) error {
	if cfg.Fragment <= 0 {
		return engineerr.NewConfigError(v.Name, engineerr.ErrAllocation)
	}
	v.Input = audiobuf.New(cfg.Fragment)
	return nil
}

// Release drops sample-rate-dependent state.
func (v *SoundVertex) Release() { v.Input = nil }

// OrderInRange checks an image-source order against the vertex bounds.
func (v *SoundVertex) OrderInRange(order int) bool {
	if order < v.ISMMin {
		return false
	}
	return v.ISMMax < 0 || order <= v.ISMMax
}

// ReadDirective fills out with the vertex signal for the given unit
// direction, through the source model if one is attached.
func (v *SoundVertex) ReadDirective(out *audiobuf.Buffer, dir geom.Vec3) {
	if v.Input == nil {
		out.Clear()
		return
	}
	if v.Model != nil {
		v.Model.Read(out, v.Input, dir)
		return
	}
	out.CopyFrom(v.Input)
}

// Source is a dynamic object carrying an ordered set of sound
// vertices. The vertex poses follow the source pose with their chain
// distance and local offset.
type Source struct {
	DynObject

	Vertices []*SoundVertex

	NoPostPrepare
}

// NewSource returns an empty source.
func NewSource(name string) *Source {
	return &Source{DynObject: NewDynObject(name)}
}

// Configure configures all vertices succeed-or-rollback.
func (s *Source) Configure(cfg AudioConfig) error {
	for i, v := range s.Vertices {
		if err := v.Configure(cfg); err != nil {
			for j := i - 1; j >= 0; j-- {
				s.Vertices[j].Release()
			}
			return err
		}
	}
	return nil
}

// Release releases all vertices.
func (s *Source) Release() {
	for _, v := range s.Vertices {
		v.Release()
	}
}

// GeometryUpdate updates the source pose and chains the vertex poses
// off it: each vertex sits ChainDist along the source's x axis plus its
// own local offset, rotated by the source orientation.
func (s *Source) GeometryUpdate(t float64) {
	s.DynObject.GeometryUpdate(t)
	pose := s.Pose()
	var chain float64
	for _, v := range s.Vertices {
		chain += v.ChainDist
		v.DeltaLocation = pose.Position.Add(pose.Orient.Rotate(geom.Vec3{X: chain}))
		v.DeltaOrientation = pose.Orient
		v.GeometryUpdate(t)
	}
}
