package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/san-kum/vacoustic/internal/geom"
)

func line(t *testing.T) *Track {
	t.Helper()
	tr := &Track{}
	tr.Append(0, geom.Vec3{})
	tr.Append(10, geom.Vec3{X: 10})
	return tr
}

func TestTrackInterp(t *testing.T) {
	tr := line(t)
	assert.Equal(t, geom.Vec3{}, tr.Interp(-1))
	assert.Equal(t, geom.Vec3{X: 10}, tr.Interp(20))
	p := tr.Interp(2.5)
	assert.InDelta(t, 2.5, p.X, 1e-12)
}

func TestTrackLoop(t *testing.T) {
	tr := line(t)
	tr.Loop = 10
	p := tr.Interp(12.5)
	assert.InDelta(t, 2.5, p.X, 1e-12)
}

func TestTrackAppendKeepsOrder(t *testing.T) {
	tr := &Track{}
	tr.Append(5, geom.Vec3{X: 5})
	tr.Append(1, geom.Vec3{X: 1})
	tr.Append(3, geom.Vec3{X: 3})
	assert.Equal(t, []float64{1, 3, 5}, tr.Times)
	assert.InDelta(t, 2.0, tr.Interp(2).X, 1e-12)
}

func TestSetConstantVelocity(t *testing.T) {
	tr := &Track{}
	tr.Append(0, geom.Vec3{})
	tr.Append(1, geom.Vec3{X: 4})
	tr.Append(2, geom.Vec3{X: 6})
	tr.SetConstantVelocity(2)
	assert.InDelta(t, 2.0, tr.Times[1], 1e-12)
	assert.InDelta(t, 3.0, tr.Times[2], 1e-12)
	assert.InDelta(t, 6.0, tr.Length(), 1e-12)
}

func TestTrackResample(t *testing.T) {
	tr := line(t)
	tr.Resample(1)
	assert.Equal(t, 11, len(tr.Times))
	assert.InDelta(t, 3.0, tr.Points[3].X, 1e-9)
}

func TestSphericalInterpolation(t *testing.T) {
	tr := &Track{Mode: InterpSpherical}
	tr.Append(0, geom.Vec3{X: 1})
	tr.Append(1, geom.Vec3{Y: 1})
	mid := tr.Interp(0.5)
	// the great-circle midpoint keeps unit radius, a Cartesian lerp
	// would pass through r=sqrt(0.5)
	assert.InDelta(t, 1.0, mid.Norm(), 1e-9)
	assert.InDelta(t, math.Pi/4, math.Atan2(mid.Y, mid.X), 1e-9)
}

func TestDynObjectSampledOrientation(t *testing.T) {
	o := NewDynObject("walker")
	o.Location.Append(0, geom.Vec3{})
	o.Location.Append(10, geom.Vec3{Y: 10})
	o.SampledOrientation = 1

	o.GeometryUpdate(5)
	// moving along +y means looking at azimuth +pi/2
	assert.InDelta(t, math.Pi/2, o.Pose().Orient.Z, 1e-6)

	o.SampledOrientation = -1
	o.GeometryUpdate(5.1)
	assert.InDelta(t, -math.Pi/2, o.Pose().Orient.Z, 1e-6)
}

func TestDynObjectNavMesh(t *testing.T) {
	floor := &geom.Polygon{Local: []geom.Vec3{
		{X: -5, Y: -5}, {X: 5, Y: -5}, {X: 5, Y: 5}, {X: -5, Y: 5},
	}}
	floor.Update()

	o := NewDynObject("npc")
	o.Location.Append(0, geom.Vec3{X: 1, Y: 1, Z: 0.2})
	o.NavMesh = []*geom.Polygon{floor}
	o.MaxStep = 0.5
	o.GeometryUpdate(0)
	assert.InDelta(t, 0.0, o.Pose().Position.Z, 1e-9)
	assert.InDelta(t, -0.2, o.NavDelta().Z, 1e-9)

	// beyond the step height the object stays put
	o.Location.Points[0].Z = 2
	o.GeometryUpdate(1)
	assert.InDelta(t, 2.0, o.Pose().Position.Z, 1e-9)
}

func TestPrevPoseLagsOneBlock(t *testing.T) {
	o := NewDynObject("mover")
	o.Location.Append(0, geom.Vec3{})
	o.Location.Append(10, geom.Vec3{X: 10})

	o.GeometryUpdate(1)
	assert.InDelta(t, 1.0, o.PrevPose().Position.X, 1e-9)
	o.GeometryUpdate(2)
	assert.InDelta(t, 1.0, o.PrevPose().Position.X, 1e-9)
	assert.InDelta(t, 2.0, o.Pose().Position.X, 1e-9)
}

func TestActiveWindow(t *testing.T) {
	o := NewDynObject("gate")
	o.Start = 1
	o.End = 3
	assert.False(t, o.IsActive(0.5))
	assert.True(t, o.IsActive(2))
	assert.False(t, o.IsActive(4))
}
