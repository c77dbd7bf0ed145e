package audiobuf

import "github.com/san-kum/vacoustic/internal/geom"

// Rotator applies a first-order FOA rotation by Euler angles to
// (X,Y,Z), interpolating the three angles linearly per sample; W is
// copied unchanged.
type Rotator struct {
	prev geom.Euler
}

func NewRotator() *Rotator { return &Rotator{} }

// Rotate writes the rotation of src by target (interpolating from the
// rotator's previous orientation across the block) into dst. dst may
// alias src.
func (r *Rotator) Rotate(dst, src *FOABuffer, target geom.Euler) {
	n := src.Len()
	prev := r.prev
	for i := 0; i < n; i++ {
		w := float64(i) / float64(max(n-1, 1))
		e := geom.Euler{
			Z: prev.Z + (target.Z-prev.Z)*w,
			Y: prev.Y + (target.Y-prev.Y)*w,
			X: prev.X + (target.X-prev.X)*w,
		}
		x := float64(src.Ch[X].Data[i])
		y := float64(src.Ch[Y].Data[i])
		z := float64(src.Ch[Z].Data[i])
		rv := e.Rotate(geom.Vec3{X: x, Y: y, Z: z})
		dst.Ch[X].Data[i] = float32(rv.X)
		dst.Ch[Y].Data[i] = float32(rv.Y)
		dst.Ch[Z].Data[i] = float32(rv.Z)
	}
	if dst != src {
		dst.Ch[W].CopyFrom(src.Ch[W])
	}
	r.prev = target
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
