/*package geom contains routines for reasoning about the periodic geometry of
simulation boxes: vectors, axis-aligned bounds, triclinic boxes, and the
periodic image vectors needed for wrap-aware proximity searches.
*/
package geom

import (
	"math"
)

// Vec is a three dimensional vector. (Duh!)
type Vec [3]float64

// Add returns v + u.
func (v Vec) Add(u Vec) Vec {
	return Vec{v[0] + u[0], v[1] + u[1], v[2] + u[2]}
}

// Sub returns v - u.
func (v Vec) Sub(u Vec) Vec {
	return Vec{v[0] - u[0], v[1] - u[1], v[2] - u[2]}
}

// Scale returns a*v.
func (v Vec) Scale(a float64) Vec {
	return Vec{a * v[0], a * v[1], a * v[2]}
}

func (v Vec) Dot(u Vec) float64 {
	return v[0]*u[0] + v[1]*u[1] + v[2]*u[2]
}

// Cross returns the cross product v x u.
func (v Vec) Cross(u Vec) Vec {
	return Vec{
		v[1]*u[2] - v[2]*u[1],
		v[2]*u[0] - v[0]*u[2],
		v[0]*u[1] - v[1]*u[0],
	}
}

// Norm2 returns the squared length of v.
func (v Vec) Norm2() float64 { return v.Dot(v) }

func (v Vec) Norm() float64 { return math.Sqrt(v.Norm2()) }

// Dist2 returns the squared distance between v and u. No wrapping is done.
func Dist2(v, u *Vec) float64 {
	dx, dy, dz := v[0]-u[0], v[1]-u[1], v[2]-u[2]
	return dx*dx + dy*dy + dz*dz
}
