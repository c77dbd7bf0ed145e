// Package scene holds the typed scene description the engine renders:
// dynamic objects with trajectories, sources and their sound vertices,
// diffuse sound fields, reflecting faces, obstacles, masks and the
// material database. The config loader (external) produces these
// structures; the render scheduler consumes them block by block.
package scene

import (
	"math"
	"sort"

	"github.com/san-kum/vacoustic/internal/geom"
)

// InterpMode selects how a track interpolates between adjacent samples.
type InterpMode int

const (
	// InterpCartesian interpolates linearly in x/y/z.
	InterpCartesian InterpMode = iota
	// InterpSpherical interpolates in (az, el, r); used for paths that
	// wrap around a center.
	InterpSpherical
)

// Track is a time-keyed position trajectory. Samples are kept sorted by
// time; Loop > 0 wraps the query time modulo the loop period.
type Track struct {
	Times  []float64
	Points []geom.Vec3
	Mode   InterpMode
	Loop   float64
}

// Append adds a (time, point) sample, keeping the track sorted.
func (t *Track) Append(time float64, p geom.Vec3) {
	i := sort.SearchFloat64s(t.Times, time)
	t.Times = append(t.Times, 0)
	t.Points = append(t.Points, geom.Vec3{})
	copy(t.Times[i+1:], t.Times[i:])
	copy(t.Points[i+1:], t.Points[i:])
	t.Times[i] = time
	t.Points[i] = p
}

// Empty reports whether the track carries no samples.
func (t *Track) Empty() bool { return len(t.Times) == 0 }

// Interp samples the track at time. Before the first sample the first
// point is held; after the last, the last point.
func (t *Track) Interp(time float64) geom.Vec3 {
	n := len(t.Times)
	if n == 0 {
		return geom.Vec3{}
	}
	if t.Loop > 0 {
		time = math.Mod(time, t.Loop)
		if time < 0 {
			time += t.Loop
		}
	}
	if time <= t.Times[0] {
		return t.Points[0]
	}
	if time >= t.Times[n-1] {
		return t.Points[n-1]
	}
	i := sort.SearchFloat64s(t.Times, time)
	t0, t1 := t.Times[i-1], t.Times[i]
	w := 0.0
	if t1 > t0 {
		w = (time - t0) / (t1 - t0)
	}
	if t.Mode == InterpSpherical {
		return geom.LerpSpherical(t.Points[i-1], t.Points[i], w)
	}
	return geom.Lerp(t.Points[i-1], t.Points[i], w)
}

// Length returns the along-curve arc length of the track.
func (t *Track) Length() float64 {
	var l float64
	for i := 1; i < len(t.Points); i++ {
		l += t.Points[i].Sub(t.Points[i-1]).Norm()
	}
	return l
}

// TimeAtDistance walks the track from its start until the along-curve
// distance reaches d, returning the interpolated time.
func (t *Track) TimeAtDistance(d float64) float64 {
	if len(t.Times) == 0 {
		return 0
	}
	if d <= 0 {
		return t.Times[0]
	}
	var acc float64
	for i := 1; i < len(t.Points); i++ {
		seg := t.Points[i].Sub(t.Points[i-1]).Norm()
		if acc+seg >= d {
			w := 0.0
			if seg > 0 {
				w = (d - acc) / seg
			}
			return t.Times[i-1] + w*(t.Times[i]-t.Times[i-1])
		}
		acc += seg
	}
	return t.Times[len(t.Times)-1]
}

// Shift adds dt to every sample time (construction-time edit).
func (t *Track) Shift(dt float64) {
	for i := range t.Times {
		t.Times[i] += dt
	}
}

// Trim drops samples outside [t0, t1].
func (t *Track) Trim(t0, t1 float64) {
	times := t.Times[:0]
	points := t.Points[:0]
	for i, tt := range t.Times {
		if tt >= t0 && tt <= t1 {
			times = append(times, tt)
			points = append(points, t.Points[i])
		}
	}
	t.Times = times
	t.Points = points
}

// Resample rebuilds the track at a constant sample interval dt.
func (t *Track) Resample(dt float64) {
	if len(t.Times) < 2 || dt <= 0 {
		return
	}
	t0, t1 := t.Times[0], t.Times[len(t.Times)-1]
	var times []float64
	var points []geom.Vec3
	for tt := t0; tt <= t1+dt/2; tt += dt {
		times = append(times, tt)
		points = append(points, t.Interp(tt))
	}
	t.Times = times
	t.Points = points
}

// Smooth convolves the positions with a Hann window of the given odd
// length (construction-time edit).
func (t *Track) Smooth(window int) {
	n := len(t.Points)
	if window < 3 || n < 3 {
		return
	}
	if window%2 == 0 {
		window++
	}
	half := window / 2
	w := make([]float64, window)
	var wsum float64
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i+1)/float64(window+1)))
		wsum += w[i]
	}
	out := make([]geom.Vec3, n)
	for i := 0; i < n; i++ {
		var acc geom.Vec3
		for k := -half; k <= half; k++ {
			j := i + k
			if j < 0 {
				j = 0
			}
			if j >= n {
				j = n - 1
			}
			acc = acc.Add(t.Points[j].Scale(w[k+half]))
		}
		out[i] = acc.Scale(1 / wsum)
	}
	t.Points = out
}

// SetConstantVelocity reparameterizes sample times so the object moves
// at speed v along the unchanged geometry, starting at the current
// first sample time.
func (t *Track) SetConstantVelocity(v float64) {
	if v <= 0 || len(t.Times) < 2 {
		return
	}
	tt := t.Times[0]
	for i := 1; i < len(t.Times); i++ {
		tt += t.Points[i].Sub(t.Points[i-1]).Norm() / v
		t.Times[i] = tt
	}
}

// EulerTrack is a time-keyed orientation trajectory with linear
// interpolation per Euler component.
type EulerTrack struct {
	Times  []float64
	Angles []geom.Euler
	Loop   float64
}

// Append adds a (time, orientation) sample, keeping the track sorted.
func (t *EulerTrack) Append(time float64, e geom.Euler) {
	i := sort.SearchFloat64s(t.Times, time)
	t.Times = append(t.Times, 0)
	t.Angles = append(t.Angles, geom.Euler{})
	copy(t.Times[i+1:], t.Times[i:])
	copy(t.Angles[i+1:], t.Angles[i:])
	t.Times[i] = time
	t.Angles[i] = e
}

// Interp samples the orientation track at time.
func (t *EulerTrack) Interp(time float64) geom.Euler {
	n := len(t.Times)
	if n == 0 {
		return geom.Euler{}
	}
	if t.Loop > 0 {
		time = math.Mod(time, t.Loop)
		if time < 0 {
			time += t.Loop
		}
	}
	if time <= t.Times[0] {
		return t.Angles[0]
	}
	if time >= t.Times[n-1] {
		return t.Angles[n-1]
	}
	i := sort.SearchFloat64s(t.Times, time)
	t0, t1 := t.Times[i-1], t.Times[i]
	w := 0.0
	if t1 > t0 {
		w = (time - t0) / (t1 - t0)
	}
	a, b := t.Angles[i-1], t.Angles[i]
	return geom.Euler{
		Z: a.Z + (b.Z-a.Z)*w,
		Y: a.Y + (b.Y-a.Y)*w,
		X: a.X + (b.X-a.X)*w,
	}
}
