package scene

import (
	"math"

	"github.com/google/uuid"
	"github.com/san-kum/vacoustic/internal/geom"
)

// Pose is a 6-DoF placement.
type Pose struct {
	Position geom.Vec3
	Orient   geom.Euler
}

// DynObject is the shared base of every placed scene element: identity,
// an active window, location/orientation trajectories, deltas, optional
// sampled orientation and an optional navigation mesh. The
// effective pose is recomputed from transport time each block; the
// previous pose is retained for interpolation over the block.
type DynObject struct {
	ID    uuid.UUID
	Name  string
	Color string

	Start float64
	End   float64

	Location    Track
	Orientation EulerTrack

	DeltaLocation    geom.Vec3
	DeltaOrientation geom.Euler

	// LocalPos is the object-frame offset added after rotation.
	LocalPos geom.Vec3

	// SampledOrientation, when nonzero, derives the orientation from the
	// local tangent of the location track; the sign reverses the tangent.
	SampledOrientation float64

	// NavMesh, when non-empty, snaps the object to the nearest mesh
	// point within MaxStep of vertical travel.
	NavMesh []*geom.Polygon
	MaxStep float64

	cur        Pose
	prev       Pose
	navDelta   geom.Vec3
	hasPrev    bool
	lastOrient geom.Euler
}

// NewDynObject creates a named object active for all time.
func NewDynObject(name string) DynObject {
	return DynObject{
		ID:   uuid.New(),
		Name: name,
		End:  math.Inf(1),
	}
}

// IsActive reports whether transport time t falls in the active window.
func (o *DynObject) IsActive(t float64) bool {
	return t >= o.Start && (o.End <= o.Start || t <= o.End)
}

// Pose returns the pose computed by the last GeometryUpdate.
func (o *DynObject) Pose() Pose { return o.cur }

// PrevPose returns the pose of the previous block, for interpolation.
func (o *DynObject) PrevPose() Pose {
	if !o.hasPrev {
		return o.cur
	}
	return o.prev
}

// NavDelta returns the navmesh-induced displacement of the last update.
func (o *DynObject) NavDelta() geom.Vec3 { return o.navDelta }

// GeometryUpdate recomputes the 6-DoF pose at transport time t.
func (o *DynObject) GeometryUpdate(t float64) {
	if o.hasPrev {
		o.prev = o.cur
	}
	tObj := t - o.Start

	p := o.Location.Interp(tObj)
	var orient geom.Euler
	if o.SampledOrientation != 0 {
		orient = o.tangentOrientation(tObj)
	} else {
		orient = o.Orientation.Interp(tObj)
	}

	if len(o.NavMesh) > 0 {
		snapped, ok := o.snapToMesh(p)
		if ok {
			o.navDelta = snapped.Sub(p)
			p = snapped
		} else {
			o.navDelta = geom.Vec3{}
		}
	}

	p = p.Add(o.DeltaLocation)
	orient = orient.Add(o.DeltaOrientation)
	p = p.Add(orient.Rotate(o.LocalPos))

	o.cur = Pose{Position: p.Friendly(), Orient: orient}
	if !o.hasPrev {
		o.prev = o.cur
		o.hasPrev = true
	}
}

// tangentOrientation derives azimuth/elevation from the local tangent
// loc(t) - loc(t - dt), where dt is the track time spanning the
// along-curve distance |SampledOrientation|; a negative length reverses
// the tangent. A near-zero tangent keeps the last known orientation so
// a sign flip mid-session cannot derail the heading.
func (o *DynObject) tangentOrientation(tObj float64) geom.Euler {
	d := math.Abs(o.SampledOrientation)
	dt := o.Location.TimeAtDistance(d) - o.Location.TimeAtDistance(0)
	if dt <= 0 {
		dt = 1e-3
	}
	tangent := o.Location.Interp(tObj).Sub(o.Location.Interp(tObj - dt))
	if o.SampledOrientation < 0 {
		tangent = tangent.Scale(-1)
	}
	if tangent.Norm() < 1e-9 {
		return o.lastOrient
	}
	az, el, _ := tangent.ToSpherical()
	o.lastOrient = geom.Euler{Z: az, Y: -el}
	return o.lastOrient
}

// snapToMesh returns the nearest point on any mesh polygon whose
// vertical offset from p stays within MaxStep.
func (o *DynObject) snapToMesh(p geom.Vec3) (geom.Vec3, bool) {
	best := p
	bestD := math.Inf(1)
	found := false
	for _, poly := range o.NavMesh {
		c := poly.Nearest(p, nil, nil)
		if math.Abs(c.Z-p.Z) > o.MaxStep {
			continue
		}
		if d := c.Sub(p).Norm(); d < bestD {
			bestD = d
			best = c
			found = true
		}
	}
	return best, found
}
