package geom

import "math"

// Euler is a z-then-y-then-x intrinsic rotation, all angles in radians,
// composed and applied right-handed.
type Euler struct {
	Z, Y, X float64
}

func (e Euler) Add(o Euler) Euler {
	return Euler{Z: e.Z + o.Z, Y: e.Y + o.Y, X: e.X + o.X}
}

// Matrix returns the 3x3 rotation matrix R = Rz * Ry * Rx, row-major.
func (e Euler) Matrix() [3][3]float64 {
	sz, cz := math.Sin(e.Z), math.Cos(e.Z)
	sy, cy := math.Sin(e.Y), math.Cos(e.Y)
	sx, cx := math.Sin(e.X), math.Cos(e.X)

	rz := [3][3]float64{{cz, -sz, 0}, {sz, cz, 0}, {0, 0, 1}}
	ry := [3][3]float64{{cy, 0, sy}, {0, 1, 0}, {-sy, 0, cy}}
	rx := [3][3]float64{{1, 0, 0}, {0, cx, -sx}, {0, sx, cx}}

	return matMul(matMul(rz, ry), rx)
}

func matMul(a, b [3][3]float64) [3][3]float64 {
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return r
}

func matVec(m [3][3]float64, v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

func matTranspose(m [3][3]float64) [3][3]float64 {
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[j][i]
		}
	}
	return r
}

// Rotate applies the rotation to v (local-to-world).
func (e Euler) Rotate(v Vec3) Vec3 { return matVec(e.Matrix(), v) }

// Unrotate applies the inverse rotation (world-to-local); the rotation
// matrix is orthonormal so the inverse is the transpose.
func (e Euler) Unrotate(v Vec3) Vec3 { return matVec(matTranspose(e.Matrix()), v) }
