package geom

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBadBox is returned for boxes which do not describe a volume.
	ErrBadBox = errors.New("invalid simulation box")
	// ErrCutoff is returned when a cutoff radius cannot be used with a box.
	ErrCutoff = errors.New("cutoff radius incompatible with box")
)

// Box is a (possibly triclinic) simulation domain. The box is the
// parallelepiped spanned by the three lattice vectors
//
//     a1 = (Lx, 0, 0)
//     a2 = (XY*Ly, Ly, 0)
//     a3 = (XZ*Lz, YZ*Lz, Lz)
//
// anchored at Lo, where L = Hi - Lo. Periodic flags apply along the lattice
// vectors. In a two dimensional box, z is never periodic and is never padded.
type Box struct {
	Lo, Hi Vec
	XY, XZ, YZ float64
	Periodic [3]bool
	Dimensions int
}

// NewBox returns an orthorhombic, fully periodic, three dimensional box
// spanning [lo, hi).
func NewBox(lo, hi Vec) Box {
	return Box{
		Lo: lo, Hi: hi,
		Periodic: [3]bool{true, true, true},
		Dimensions: 3,
	}
}

// NewCubicBox returns a fully periodic cube of width L with its lower corner at
// the origin.
func NewCubicBox(L float64) Box {
	return NewBox(Vec{0, 0, 0}, Vec{L, L, L})
}

// L returns the edge lengths of the box.
func (b *Box) L() Vec { return b.Hi.Sub(b.Lo) }

// Check returns an error if the box does not describe a usable volume.
func (b *Box) Check() error {
	if b.Dimensions != 2 && b.Dimensions != 3 {
		return fmt.Errorf(
			"%w: Dimensions must be 2 or 3, but is %d",
			ErrBadBox, b.Dimensions,
		)
	}
	L := b.L()
	for i := 0; i < b.Dimensions; i++ {
		if !(L[i] > 0) || math.IsInf(L[i], 0) {
			return fmt.Errorf(
				"%w: edge %d has length %g", ErrBadBox, i, L[i],
			)
		}
	}
	return nil
}

// periodic returns true if the box wraps along axis i.
func (b *Box) periodic(i int) bool {
	if i == 2 && b.Dimensions == 2 { return false }
	return b.Periodic[i]
}

// LatticeVectors returns the three vectors spanning the box.
func (b *Box) LatticeVectors() (a1, a2, a3 Vec) {
	L := b.L()
	a1 = Vec{L[0], 0, 0}
	a2 = Vec{b.XY * L[1], L[1], 0}
	a3 = Vec{b.XZ * L[2], b.YZ * L[2], L[2]}
	return a1, a2, a3
}

// Fraction returns the fractional coordinates of r, i.e. the coefficients of
// the lattice vectors which reach r from Lo.
func (b *Box) Fraction(r Vec) Vec {
	L := b.L()
	d := r.Sub(b.Lo)
	s2 := 0.0
	if b.Dimensions == 2 {
		d[2] = 0
	} else {
		s2 = d[2] / L[2]
	}
	s1 := (d[1] - b.YZ*d[2]) / L[1]
	s0 := (d[0] - b.XY*d[1] + (b.XY*b.YZ-b.XZ)*d[2]) / L[0]
	return Vec{s0, s1, s2}
}

// FromFraction is the inverse of Fraction.
func (b *Box) FromFraction(s Vec) Vec {
	a1, a2, a3 := b.LatticeVectors()
	r := b.Lo.Add(a1.Scale(s[0])).Add(a2.Scale(s[1]))
	if b.Dimensions == 2 {
		r[2] = b.Lo[2]
		return r
	}
	return r.Add(a3.Scale(s[2]))
}

// Wrap maps r back into the box along every periodic axis.
func (b *Box) Wrap(r Vec) Vec {
	z := r[2]
	s := b.Fraction(r)
	for i := 0; i < 3; i++ {
		if b.periodic(i) { s[i] -= math.Floor(s[i]) }
	}
	out := b.FromFraction(s)
	if b.Dimensions == 2 { out[2] = z }
	return out
}

// PlaneDistance returns the distance between opposite faces of the box along
// each lattice direction. For an orthorhombic box this is just L. In two
// dimensions the z entry is +Inf.
func (b *Box) PlaneDistance() Vec {
	a1, a2, a3 := b.LatticeVectors()
	if b.Dimensions == 2 {
		area := a1.Cross(a2).Norm()
		return Vec{area / a2.Norm(), area / a1.Norm(), math.Inf(+1)}
	}
	vol := math.Abs(a1.Dot(a2.Cross(a3)))
	return Vec{
		vol / a2.Cross(a3).Norm(),
		vol / a3.Cross(a1).Norm(),
		vol / a1.Cross(a2).Norm(),
	}
}

// Padded returns a copy of the box whose non-periodic axes have been grown by
// ghost on both sides. This is the domain which has to be covered when ghost
// particles from neighboring ranks may sit outside the local box.
func (b *Box) Padded(ghost float64) Box {
	out := *b
	for i := 0; i < 3; i++ {
		if i == 2 && b.Dimensions == 2 { continue }
		if !b.Periodic[i] {
			out.Lo[i] -= ghost
			out.Hi[i] += ghost
		}
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the (possibly sheared) box.
// In two dimensions the z extent is the single plane Lo[2].
func (b *Box) Bounds() Bounds {
	a1, a2, a3 := b.LatticeVectors()
	if b.Dimensions == 2 { a3 = Vec{} }

	bd := EmptyBounds()
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				c := b.Lo.Add(a1.Scale(float64(i))).
					Add(a2.Scale(float64(j))).
					Add(a3.Scale(float64(k)))
				bd.Extend(c)
			}
		}
	}
	return bd
}

// CheckCutoff returns an error if rcut is too large for the minimum image
// convention, i.e. if it exceeds half the plane spacing along any periodic
// axis.
func (b *Box) CheckCutoff(rcut float64) error {
	if rcut < 0 || math.IsNaN(rcut) {
		return fmt.Errorf("%w: rcut = %g is negative", ErrCutoff, rcut)
	}
	d := b.PlaneDistance()
	for i := 0; i < 3; i++ {
		if !b.periodic(i) { continue }
		if 2*rcut > d[i] {
			return fmt.Errorf(
				"%w: rcut = %g is larger than half the plane spacing " +
					"%g along axis %d", ErrCutoff, rcut, d[i], i,
			)
		}
	}
	return nil
}
