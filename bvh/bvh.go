/*package bvh implements a linear bounding volume hierarchy (LBVH) over point
primitives.

The tree is built following Karras, 2012: primitives are sorted along a
30-bit Morton curve and the binary radix tree over the sorted codes is emitted
one internal node at a time, independently, so that every internal node can
be built in parallel. Node bounds are then fitted bottom-up, with the second
child to arrive at a parent responsible for that parent's bounds.

Trees are meant to be rebuilt from scratch whenever the points move. There is
no support for refitting.
*/
package bvh

import (
	"math/bits"
	"sort"
	"sync/atomic"

	"github.com/dgravesa/go-parallel/parallel"

	"github.com/phil-mansfield/dynbond/geom"
)

const (
	// mortonBits is the number of bits used per dimension.
	mortonBits = 10
	mortonCells = 1 << mortonBits
)

// Tree is a linear bounding volume hierarchy. Internal nodes are numbered
// [0, n-1) and leaves are numbered [n-1, 2n-1). The root is always node 0.
//
// A Tree holds on to the points passed to Build, so they should not be
// modified until the next call to Build.
type Tree struct {
	n int
	points []geom.Vec

	codes []uint32
	order []int32 // order[k] is the primitive stored in leaf k.
	sorted []uint32

	left, right, parent []int32
	bounds []geom.Bounds
	flags []int32
}

// New returns an empty Tree.
func New() *Tree { return &Tree{} }

// Len returns the number of primitives in the tree.
func (t *Tree) Len() int { return t.n }

// Nodes returns the total number of nodes in the tree.
func (t *Tree) Nodes() int {
	if t.n == 0 { return 0 }
	return 2*t.n - 1
}

// Bounds returns the bounds of the root node.
func (t *Tree) Bounds() geom.Bounds {
	if t.n == 0 { return geom.EmptyBounds() }
	return t.bounds[0]
}

// Build constructs the hierarchy over points. Morton codes are computed
// relative to domain; points outside of it are clamped onto its surface,
// which costs query performance but not correctness. Build does not return
// until the tree is complete.
func (t *Tree) Build(points []geom.Vec, domain geom.Bounds, workers int) {
	if workers < 1 { workers = 1 }
	t.resize(len(points))
	t.points = points
	if t.n == 0 { return }

	n := t.n
	exec := parallel.WithNumGoroutines(workers)

	width := domain.Width()
	exec.For(n, func(i, _ int) {
		t.codes[i] = morton(&points[i], &domain.Min, &width)
		t.order[i] = int32(i)
	})

	sort.Slice(t.order, func(a, b int) bool {
		ca, cb := t.codes[t.order[a]], t.codes[t.order[b]]
		if ca != cb { return ca < cb }
		return t.order[a] < t.order[b]
	})

	exec.For(n, func(k, _ int) {
		t.sorted[k] = t.codes[t.order[k]]
	})

	t.parent[0] = -1
	exec.For(n-1, func(i, _ int) {
		t.emit(i)
		t.flags[i] = 0
	})

	exec.For(n, func(k, _ int) {
		node := n - 1 + k
		t.bounds[node] = geom.PointBounds(points[t.order[k]])

		for p := t.parent[node]; p >= 0; p = t.parent[p] {
			// The first child to arrive leaves the work to its sibling.
			if atomic.AddInt32(&t.flags[p], 1) == 1 { return }
			t.bounds[p] = geom.Union(&t.bounds[t.left[p]], &t.bounds[t.right[p]])
		}
	})
}

func (t *Tree) resize(n int) {
	t.n = n
	if n == 0 { return }
	if cap(t.codes) < n {
		t.codes = make([]uint32, n)
		t.order = make([]int32, n)
		t.sorted = make([]uint32, n)
		t.left = make([]int32, n)
		t.right = make([]int32, n)
		t.flags = make([]int32, n)
		t.parent = make([]int32, 2*n)
		t.bounds = make([]geom.Bounds, 2*n)
	}
	t.codes, t.order, t.sorted = t.codes[:n], t.order[:n], t.sorted[:n]
	t.left, t.right, t.flags = t.left[:n-1], t.right[:n-1], t.flags[:n-1]
	t.parent, t.bounds = t.parent[:2*n-1], t.bounds[:2*n-1]
}

// delta is the length of the longest common prefix of the codes in leaves i
// and j, or -1 if j is out of range. Duplicate codes are distinguished by
// their leaf indices.
func (t *Tree) delta(i, j int) int {
	if j < 0 || j >= t.n { return -1 }
	a, b := t.sorted[i], t.sorted[j]
	if a == b {
		return 32 + bits.LeadingZeros32(uint32(i^j))
	}
	return bits.LeadingZeros32(a ^ b)
}

// emit finds the leaf range covered by internal node i, splits it, and links
// the node to its children.
func (t *Tree) emit(i int) {
	d := 1
	if t.delta(i, i+1) < t.delta(i, i-1) { d = -1 }

	// Upper bound on the length of the range, then a binary search for the
	// other end.
	dMin := t.delta(i, i-d)
	lMax := 2
	for t.delta(i, i+lMax*d) > dMin { lMax *= 2 }
	l := 0
	for step := lMax / 2; step >= 1; step /= 2 {
		if t.delta(i, i+(l+step)*d) > dMin { l += step }
	}
	j := i + l*d

	// Binary search for the split position.
	dNode := t.delta(i, j)
	s, step := 0, l
	for {
		step = (step + 1) / 2
		if t.delta(i, i+(s+step)*d) > dNode { s += step }
		if step <= 1 { break }
	}
	gamma := i + s*d + min(d, 0)

	leafOffset := t.n - 1
	left, right := gamma, gamma+1
	if min(i, j) == gamma { left += leafOffset }
	if max(i, j) == gamma+1 { right += leafOffset }

	t.left[i], t.right[i] = int32(left), int32(right)
	t.parent[left], t.parent[right] = int32(i), int32(i)
}

// Sphere calls visit on the index of every primitive within distance r of c,
// including primitives at exactly distance r. Traversal stops early if visit
// returns false. Sphere may be called concurrently.
func (t *Tree) Sphere(c geom.Vec, r float64, visit func(prim int) bool) {
	if t.n == 0 { return }

	r2 := r * r
	leafOffset := int32(t.n - 1)

	var buf [64]int32
	stack := append(buf[:0], 0)

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.bounds[node].Dist2(c) > r2 { continue }

		if node >= leafOffset {
			prim := int(t.order[node-leafOffset])
			if geom.Dist2(&t.points[prim], &c) <= r2 {
				if !visit(prim) { return }
			}
			continue
		}

		stack = append(stack, t.right[node], t.left[node])
	}
}

// morton returns the 30-bit Morton code of p inside the box starting at lo
// with the given width.
func morton(p, lo, width *geom.Vec) uint32 {
	var code uint32
	for dim := 0; dim < 3; dim++ {
		x := 0.0
		if width[dim] > 0 { x = (p[dim] - lo[dim]) / width[dim] }
		q := int(x * mortonCells)
		if q < 0 { q = 0 }
		if q >= mortonCells { q = mortonCells - 1 }
		code |= spread(uint32(q)) << uint(2-dim)
	}
	return code
}

// spread inserts two zero bits between each of the lower ten bits of x.
func spread(x uint32) uint32 {
	x = (x * 0x00010001) & 0xFF0000FF
	x = (x * 0x00000101) & 0x0F00F00F
	x = (x * 0x00000011) & 0xC30C30C3
	x = (x * 0x00000005) & 0x49249249
	return x
}
