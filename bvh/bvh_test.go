package bvh

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/dynbond/geom"
)

func randomPoints(gen *rand.Rand, n int, L float64) []geom.Vec {
	xs := make([]geom.Vec, n)
	for i := range xs {
		for k := 0; k < 3; k++ { xs[i][k] = gen.Float64() * L }
	}
	return xs
}

func sphereSorted(t *Tree, c geom.Vec, r float64) []int {
	out := []int{}
	t.Sphere(c, r, func(prim int) bool {
		out = append(out, prim)
		return true
	})
	sort.Ints(out)
	return out
}

func bruteSphere(xs []geom.Vec, c geom.Vec, r float64) []int {
	out := []int{}
	for i := range xs {
		if geom.Dist2(&xs[i], &c) <= r*r { out = append(out, i) }
	}
	return out
}

func TestSphereMatchesBruteForce(t *testing.T) {
	gen := rand.New(rand.NewSource(1337))
	L := 10.0
	domain := geom.Bounds{Max: geom.Vec{L, L, L}}

	for _, n := range []int{1, 2, 3, 17, 500} {
		for _, workers := range []int{1, 4} {
			xs := randomPoints(gen, n, L)
			tree := New()
			tree.Build(xs, domain, workers)
			require.Equal(t, n, tree.Len())
			require.Equal(t, 2*n-1, tree.Nodes())

			for q := 0; q < 50; q++ {
				c := randomPoints(gen, 1, L)[0]
				r := gen.Float64() * 3
				assert.Equal(
					t, bruteSphere(xs, c, r), sphereSorted(tree, c, r),
					"n = %d, workers = %d, query %d", n, workers, q,
				)
			}
		}
	}
}

func TestRootBounds(t *testing.T) {
	gen := rand.New(rand.NewSource(7))
	xs := randomPoints(gen, 100, 5)
	tree := New()
	tree.Build(xs, geom.Bounds{Max: geom.Vec{5, 5, 5}}, 3)

	exp := geom.EmptyBounds()
	for _, x := range xs { exp.Extend(x) }
	assert.Equal(t, exp, tree.Bounds())
}

func TestEveryLeafReachable(t *testing.T) {
	gen := rand.New(rand.NewSource(11))
	xs := randomPoints(gen, 257, 1)
	tree := New()
	tree.Build(xs, geom.Bounds{Max: geom.Vec{1, 1, 1}}, 2)

	// A sphere covering the whole domain must report each point exactly once.
	got := sphereSorted(tree, geom.Vec{0.5, 0.5, 0.5}, 2)
	require.Len(t, got, len(xs))
	for i := range got { assert.Equal(t, i, got[i]) }
}

func TestDuplicatePoints(t *testing.T) {
	xs := make([]geom.Vec, 33)
	for i := range xs { xs[i] = geom.Vec{1, 1, 1} }
	xs[10] = geom.Vec{3, 3, 3}

	tree := New()
	tree.Build(xs, geom.Bounds{Max: geom.Vec{4, 4, 4}}, 4)

	got := sphereSorted(tree, geom.Vec{1, 1, 1}, 0.1)
	assert.Len(t, got, 32)
	assert.NotContains(t, got, 10)
}

func TestSphereInclusive(t *testing.T) {
	xs := []geom.Vec{{0, 0, 0}, {0, 0, 1}, {0, 0, 1.5}}
	tree := New()
	tree.Build(xs, geom.Bounds{Max: geom.Vec{2, 2, 2}}, 1)

	assert.Equal(t, []int{0, 1}, sphereSorted(tree, geom.Vec{0, 0, 0}, 1))
}

func TestSphereEarlyExit(t *testing.T) {
	gen := rand.New(rand.NewSource(3))
	xs := randomPoints(gen, 64, 1)
	tree := New()
	tree.Build(xs, geom.Bounds{Max: geom.Vec{1, 1, 1}}, 1)

	calls := 0
	tree.Sphere(geom.Vec{0.5, 0.5, 0.5}, 10, func(int) bool {
		calls++
		return calls < 5
	})
	assert.Equal(t, 5, calls)
}

func TestPointsOutsideDomain(t *testing.T) {
	// Replicated periodic images routinely sit outside the domain used for
	// the Morton codes.
	xs := []geom.Vec{{-3, 0.5, 0.5}, {0.5, 0.5, 0.5}, {4, 4, 4}, {0.6, 0.5, 0.5}}
	tree := New()
	tree.Build(xs, geom.Bounds{Max: geom.Vec{1, 1, 1}}, 2)

	assert.Equal(t, []int{0}, sphereSorted(tree, geom.Vec{-3, 0.5, 0.5}, 0.5))
	assert.Equal(t, []int{1, 3}, sphereSorted(tree, geom.Vec{0.5, 0.5, 0.5}, 0.2))
	assert.Equal(t, []int{2}, sphereSorted(tree, geom.Vec{4, 4, 4}, 0))
}

func TestRebuild(t *testing.T) {
	gen := rand.New(rand.NewSource(5))
	tree := New()
	domain := geom.Bounds{Max: geom.Vec{1, 1, 1}}

	big := randomPoints(gen, 200, 1)
	tree.Build(big, domain, 2)
	small := randomPoints(gen, 10, 1)
	tree.Build(small, domain, 2)
	assert.Equal(t, 10, tree.Len())
	assert.Len(t, sphereSorted(tree, geom.Vec{0.5, 0.5, 0.5}, 1), 10)

	tree.Build(nil, domain, 2)
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, sphereSorted(tree, geom.Vec{}, 1))
}

func TestSpread(t *testing.T) {
	assert.Equal(t, uint32(0), spread(0))
	assert.Equal(t, uint32(1), spread(1))
	assert.Equal(t, uint32(0x9), spread(0x3))
	assert.Equal(t, uint32(0x09249249), spread(0x3ff))
}

func BenchmarkBuild(b *testing.B) {
	gen := rand.New(rand.NewSource(1))
	xs := randomPoints(gen, 100000, 1)
	tree := New()
	domain := geom.Bounds{Max: geom.Vec{1, 1, 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree.Build(xs, domain, 4)
	}
}
