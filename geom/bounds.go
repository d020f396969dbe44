package geom

import (
	"math"
)

// Bounds is an axis-aligned bounding box. Both ends are inclusive.
type Bounds struct {
	Min, Max Vec
}

// EmptyBounds returns a Bounds instance which contains nothing and which
// becomes a single point after the first call to Extend.
func EmptyBounds() Bounds {
	inf := math.Inf(+1)
	return Bounds{
		Min: Vec{inf, inf, inf},
		Max: Vec{-inf, -inf, -inf},
	}
}

// PointBounds returns the degenerate bounds around a single point.
func PointBounds(p Vec) Bounds { return Bounds{p, p} }

// Empty returns true if b contains no points.
func (b *Bounds) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Extend grows b so that it contains p.
func (b *Bounds) Extend(p Vec) {
	for i := 0; i < 3; i++ {
		b.Min[i], b.Max[i] = fMinMax(b.Min[i], b.Max[i], p[i])
	}
}

// Union returns the smallest bounds containing both b1 and b2.
func Union(b1, b2 *Bounds) Bounds {
	out := Bounds{}
	for i := 0; i < 3; i++ {
		out.Min[i] = math.Min(b1.Min[i], b2.Min[i])
		out.Max[i] = math.Max(b1.Max[i], b2.Max[i])
	}
	return out
}

// Expand returns a copy of b grown by r in every direction.
func (b Bounds) Expand(r float64) Bounds {
	for i := 0; i < 3; i++ {
		b.Min[i] -= r
		b.Max[i] += r
	}
	return b
}

// Width returns the extent of b along each axis.
func (b *Bounds) Width() Vec { return b.Max.Sub(b.Min) }

// Contains returns true if p is inside b, including its surface.
func (b *Bounds) Contains(p Vec) bool {
	return (b.Min[0] <= p[0] && b.Min[1] <= p[1] && b.Min[2] <= p[2]) &&
		(p[0] <= b.Max[0] && p[1] <= b.Max[1] && p[2] <= b.Max[2])
}

// Dist2 returns the squared distance from p to the closest point in b. Points
// inside b are at distance zero.
func (b *Bounds) Dist2(p Vec) float64 {
	sum := 0.0
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			d := b.Min[i] - p[i]
			sum += d * d
		} else if p[i] > b.Max[i] {
			d := p[i] - b.Max[i]
			sum += d * d
		}
	}
	return sum
}

// Intersect returns true if the two bounding boxes overlap and false
// otherwise. Touching boxes overlap.
func (b *Bounds) Intersect(b2 *Bounds) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < b2.Min[i] || b2.Max[i] < b.Min[i] { return false }
	}
	return true
}

func fMinMax(min, max, x float64) (float64, float64) {
	if x < min {
		min = x
	}
	if x > max {
		max = x
	}
	return min, max
}
