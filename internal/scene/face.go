package scene

import (
	"math"

	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/geom"
)

// Reflector is a reflecting face: a polygon with the first-order
// reflection-filter parameters. Reflectivity and damping may come
// directly from attributes or from a material fit at configure time.
type Reflector struct {
	DynObject
	Face geom.Polygon

	Reflectivity   float64 // [0,1]
	Damping        float64 // [0,1)
	Scattering     float64 // [0,1]
	EdgeReflection bool
	MaterialName   string

	NoPostPrepare
}

// NewReflector builds a face from local-frame vertices.
func NewReflector(name string, vertices []geom.Vec3) (*Reflector, error) {
	if len(vertices) < 3 {
		return nil, engineerr.NewConfigError(name, engineerr.ErrNonPlanarFace)
	}
	r := &Reflector{
		DynObject:      NewDynObject(name),
		Reflectivity:   1,
		EdgeReflection: true,
	}
	r.Face.Local = vertices
	return r, nil
}

// Shoebox returns the six faces of an axis-aligned box of the given
// size, outward normals, named name.0 .. name.5.
func Shoebox(name string, size geom.Vec3) []*Reflector {
	h := size.Scale(0.5)
	quads := [][]geom.Vec3{
		{{X: h.X, Y: -h.Y, Z: -h.Z}, {X: h.X, Y: h.Y, Z: -h.Z}, {X: h.X, Y: h.Y, Z: h.Z}, {X: h.X, Y: -h.Y, Z: h.Z}},
		{{X: -h.X, Y: h.Y, Z: -h.Z}, {X: -h.X, Y: -h.Y, Z: -h.Z}, {X: -h.X, Y: -h.Y, Z: h.Z}, {X: -h.X, Y: h.Y, Z: h.Z}},
		{{X: h.X, Y: h.Y, Z: -h.Z}, {X: -h.X, Y: h.Y, Z: -h.Z}, {X: -h.X, Y: h.Y, Z: h.Z}, {X: h.X, Y: h.Y, Z: h.Z}},
		{{X: -h.X, Y: -h.Y, Z: -h.Z}, {X: h.X, Y: -h.Y, Z: -h.Z}, {X: h.X, Y: -h.Y, Z: h.Z}, {X: -h.X, Y: -h.Y, Z: h.Z}},
		{{X: -h.X, Y: -h.Y, Z: h.Z}, {X: h.X, Y: -h.Y, Z: h.Z}, {X: h.X, Y: h.Y, Z: h.Z}, {X: -h.X, Y: h.Y, Z: h.Z}},
		{{X: h.X, Y: -h.Y, Z: -h.Z}, {X: -h.X, Y: -h.Y, Z: -h.Z}, {X: -h.X, Y: h.Y, Z: -h.Z}, {X: h.X, Y: h.Y, Z: -h.Z}},
	}
	faces := make([]*Reflector, 0, 6)
	for i, q := range quads {
		r, _ := NewReflector(name+"."+string(rune('0'+i)), q)
		faces = append(faces, r)
	}
	return faces
}

// Configure is a no-op beyond validation; filter states live per path.
func (r *Reflector) Configure(cfg AudioConfig) error {
	if len(r.Face.Local) < 3 {
		return engineerr.NewConfigError(r.Name, engineerr.ErrNonPlanarFace)
	}
	return nil
}

// Release has no sample-rate state to drop.
func (r *Reflector) Release() {}

// GeometryUpdate moves the face with the object pose.
func (r *Reflector) GeometryUpdate(t float64) {
	r.DynObject.GeometryUpdate(t)
	p := r.Pose()
	r.Face.Position = p.Position
	r.Face.Orient = p.Orient
	r.Face.Update()
}

// FilterCoef returns the 1-pole reflection coefficient
// reflectivity*(1-damping).
func (r *Reflector) FilterCoef() float64 {
	return r.Reflectivity * (1 - r.Damping)
}

// Mirror reflects p across the face plane.
func (r *Reflector) Mirror(p geom.Vec3) geom.Vec3 {
	onPlane := r.Face.NearestOnPlane(p)
	return p.Add(onPlane.Sub(p).Scale(2))
}

// ReflectionFilter is the per-path 1-pole state of one reflection:
// z <- z*damping + x*coef, output z.
type ReflectionFilter struct {
	Coef    float64
	Damping float64
	z       float64
}

// Process runs one sample through the filter.
func (f *ReflectionFilter) Process(x float64) float64 {
	f.z = f.z*f.Damping + x*f.Coef
	if math.IsNaN(f.z) || math.IsInf(f.z, 0) {
		f.z = 0
	}
	return f.z
}

// Update pulls the current reflector parameters into the filter.
func (f *ReflectionFilter) Update(r *Reflector) {
	f.Coef = r.FilterCoef()
	f.Damping = r.Damping
}
