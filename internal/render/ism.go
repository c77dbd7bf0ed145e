package render

import (
	"math"

	"github.com/san-kum/vacoustic/internal/dsp"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/scene"
)

// AcousticPath is one edge of the per-receiver source tree: the DSP
// state realizing delay, gain and filters for a single
// (image-source, obstacle-set) pair. Parent links are
// indices into the owning arena.
type AcousticPath struct {
	// Parent is the arena index of the parent path; Self for primaries.
	Parent int
	Self   int

	Vertex    *scene.SoundVertex
	Reflector *scene.Reflector // nil for primary paths
	Order     int

	// chain is the reflector sequence from the primary outward; one
	// filter per reflection.
	chain       []*scene.Reflector
	reflFilters []scene.ReflectionFilter
	diffStates  []scene.DiffractionState

	delay    *dsp.VarDelay
	airState float64

	// block-rate interpolated parameters: previous block end vs new
	curDist, nextDist   float64
	curGain, nextGain   float64
	curAir, nextAir     float64
	layerGain           float64
	layerTarget         float64
	primed              bool

	// geometry of this block
	imgPos  geom.Vec3 // mirrored source position
	effPos  geom.Vec3 // after reflector clipping and obstacle walk
	reflGain float64  // reflector directivity gain
	visible bool
}

// reflectorChain walks the parent links collecting the reflectors from
// the primary outward.
func (a *pathArena) reflectorChain(idx int) []*scene.Reflector {
	var chain []*scene.Reflector
	for i := idx; ; i = a.paths[i].Parent {
		p := &a.paths[i]
		if p.Reflector != nil {
			chain = append([]*scene.Reflector{p.Reflector}, chain...)
		}
		if p.Parent == p.Self {
			break
		}
	}
	return chain
}

// pathArena owns the flat sequence of paths of one receiver.
type pathArena struct {
	paths []AcousticPath
}

// buildArena expands the image-source tree for one receiver: direct
// paths at order 0, then for each order k every (path at k-1, reflector)
// pair except the path's own immediate reflector.
func buildArena(vertices []*scene.SoundVertex, reflectors []*scene.Reflector, obstacles []*scene.Obstacle, maxOrder int, cfg scene.AudioConfig) *pathArena {
	a := &pathArena{}
	for _, v := range vertices {
		idx := len(a.paths)
		a.paths = append(a.paths, AcousticPath{
			Parent: idx,
			Self:   idx,
			Vertex: v,
			Order:  0,
		})
	}
	lo := 0
	for order := 1; order <= maxOrder; order++ {
		hi := len(a.paths)
		for pi := lo; pi < hi; pi++ {
			for _, r := range reflectors {
				if a.paths[pi].Reflector == r {
					continue
				}
				idx := len(a.paths)
				a.paths = append(a.paths, AcousticPath{
					Parent:    pi,
					Self:      idx,
					Vertex:    a.paths[pi].Vertex,
					Reflector: r,
					Order:     order,
				})
			}
		}
		lo = hi
	}

	c := cfg.C()
	for i := range a.paths {
		p := &a.paths[i]
		maxDelay := int(p.Vertex.MaxDist*cfg.SampleRate/c) + 2
		p.delay = dsp.NewVarDelay(maxDelay, p.Vertex.SincOrder)
		p.chain = a.reflectorChain(i)
		p.reflFilters = make([]scene.ReflectionFilter, len(p.chain))
		p.diffStates = make([]scene.DiffractionState, len(obstacles))
		p.layerGain = 1
		p.layerTarget = 1
		p.reflGain = 1
	}
	return a
}

// updatePositions recomputes the mirrored position and visibility of
// every path for the current block, in tree order so a
// parent's image is fresh when its children mirror it.
func (a *pathArena) updatePositions(recPos geom.Vec3) {
	for i := range a.paths {
		p := &a.paths[i]
		if p.Reflector == nil {
			p.imgPos = p.Vertex.Pose().Position
			p.effPos = p.imgPos
			p.reflGain = 1
			p.visible = true
			continue
		}
		parent := &a.paths[p.Parent]
		p.imgPos = p.Reflector.Mirror(parent.imgPos)
		// a mirrored position in front of the plane means the parent
		// sits behind the reflector: silent this block
		p.visible = parent.visible && !p.Reflector.Face.IsInfront(p.imgPos)
		if p.visible {
			p.effPos, p.reflGain = reflectorEffective(p.Reflector, recPos, p.imgPos)
		} else {
			p.effPos = p.imgPos
			p.reflGain = 0
		}
	}
}

// reflectorEffective implements the effective-position rule:
// receiver behind the plane kills the path; otherwise the
// (receiver, image) segment is intersected with the plane, clipped to
// the polygon, and the incident/reflected alignment at the clip point
// is raised to the 2.7 directivity exponent. Edge-clipped intersections
// with edge reflection enabled move the image around the edge point.
func reflectorEffective(r *scene.Reflector, recPos, imgPos geom.Vec3) (geom.Vec3, float64) {
	if !r.Face.IsInfront(recPos) {
		return imgPos, 0
	}
	pIs, _, _ := r.Face.Intersection(recPos, imgPos)
	var outside, onEdge bool
	clipped := r.Face.Nearest(pIs, &outside, &onEdge)

	incident := clipped.Sub(imgPos).Normalized()
	reflected := recPos.Sub(clipped).Normalized()
	d := geom.Clamp(incident.Dot(reflected), 0, 1)
	gain := math.Pow(d, 2.7)

	if outside && onEdge && r.EdgeReflection {
		// image sources hidden from the receiver stay audible via edge
		// diffraction: reflect the image around the clip point
		return clipped.Sub(imgPos.Sub(clipped)), gain
	}
	return imgPos, gain
}

// chainActive reports whether every reflector in the chain is active
// at transport time t.
func (a *pathArena) chainActive(idx int, t float64) bool {
	for i := idx; ; i = a.paths[i].Parent {
		p := &a.paths[i]
		if p.Reflector != nil && !p.Reflector.IsActive(t) {
			return false
		}
		if p.Parent == p.Self {
			return true
		}
	}
}
