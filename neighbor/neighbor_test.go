package neighbor

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/dynbond/bond"
	"github.com/phil-mansfield/dynbond/geom"
)

func particles(pos ...geom.Vec) Particles {
	p := Particles{ Pos: pos, Tags: make([]bond.Tag, len(pos)) }
	for i := range p.Tags { p.Tags[i] = bond.Tag(i) }
	return p
}

func withTags(first bond.Tag, pos ...geom.Vec) Particles {
	p := particles(pos...)
	for i := range p.Tags { p.Tags[i] += first }
	return p
}

func search(
	t *testing.T, b Backend, box geom.Box, ghost, rcut float64,
	g1, g2 Particles, workers int,
) *Candidates {
	require.NoError(t, b.Build(box, ghost, rcut, g2, workers))
	cands, err := b.Traverse(g1, rcut, 1000, workers)
	require.NoError(t, err)
	return cands
}

func sortedPairs(pairs []bond.Pair) []bond.Pair {
	out := append([]bond.Pair{}, pairs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A { return out[i].A < out[j].A }
		return out[i].B < out[j].B
	})
	return out
}

func backends() map[string]Backend {
	return map[string]Backend{ "lbvh": NewLBVH(), "brute": &Brute{} }
}

func TestPeriodicScenarios(t *testing.T) {
	box := geom.NewCubicBox(10)
	a := geom.Vec{0, 0, 0}

	table := []struct{
		name string
		b geom.Vec
		found bool
	} {
		{"direct", geom.Vec{0, 0, 0.9}, true},
		{"through z wall", geom.Vec{0, 0, 9.5}, true},
		{"through corner", geom.Vec{9.6, 9.6, 9.6}, true},
		{"exactly at cutoff", geom.Vec{0, 1, 0}, true},
		{"exactly at cutoff through wall", geom.Vec{9, 0, 0}, true},
		{"just outside", geom.Vec{0, 0, 1.001}, false},
		{"far", geom.Vec{5, 5, 5}, false},
	}

	for name, b := range backends() {
		for _, test := range table {
			cands := search(t, b, box, 0, 1,
				withTags(1, a), withTags(2, test.b), 2)
			if test.found {
				assert.Equal(t, []bond.Pair{{1, 2}}, cands.Pairs,
					"%s: %s", name, test.name)
			} else {
				assert.Empty(t, cands.Pairs, "%s: %s", name, test.name)
			}
			assert.Equal(t, []int{0}, cands.Offsets)
		}
	}
}

func TestOpenBox(t *testing.T) {
	box := geom.NewCubicBox(10)
	box.Periodic = [3]bool{true, true, false}
	g1 := withTags(1, geom.Vec{0, 0, 0})

	for name, b := range backends() {
		cands := search(t, b, box, 2, 1, g1, withTags(2, geom.Vec{0, 0, 9.5}), 1)
		assert.Empty(t, cands.Pairs, name)

		// Ghost particles sitting outside the box along the open axis.
		cands = search(t, b, box, 2, 1, g1, withTags(2, geom.Vec{0, 0, -0.5}), 1)
		assert.Equal(t, []bond.Pair{{1, 2}}, cands.Pairs, name)
	}
}

func TestSelfPairsSkipped(t *testing.T) {
	box := geom.NewCubicBox(10)
	g := particles(geom.Vec{1, 1, 1}, geom.Vec{1, 1, 1.5})

	for name, b := range backends() {
		cands := search(t, b, box, 0, 1, g, g, 1)
		assert.Equal(t, []bond.Pair{{0, 1}, {1, 0}}, cands.Pairs, name)
		assert.Equal(t, []int{1, 1}, cands.Counts, name)
		assert.Equal(t, []int{0, 1}, cands.Offsets, name)
	}
}

func TestEmptyGroups(t *testing.T) {
	box := geom.NewCubicBox(10)
	g := particles(geom.Vec{1, 1, 1})

	for name, b := range backends() {
		cands := search(t, b, box, 0, 1, g, Particles{}, 1)
		assert.Equal(t, 0, cands.Len(), name)
		assert.Equal(t, []int{0}, cands.Counts, name)

		cands = search(t, b, box, 0, 1, Particles{}, g, 1)
		assert.Equal(t, 0, cands.Len(), name)
		assert.Empty(t, cands.Counts, name)
	}
}

func TestTraverseCapacity(t *testing.T) {
	box := geom.NewCubicBox(10)
	g1 := withTags(0, geom.Vec{5, 5, 5}, geom.Vec{1, 1, 1})
	g2 := withTags(10,
		geom.Vec{5, 5, 5.1}, geom.Vec{5, 5.1, 5}, geom.Vec{5.1, 5, 5},
		geom.Vec{1, 1, 1.1},
	)

	for name, b := range backends() {
		require.NoError(t, b.Build(box, 0, 1, g2, 2))

		_, err := b.Traverse(g1, 1, 2, 2)
		capErr := &bond.CapacityError{}
		require.True(t, errors.As(err, &capErr), name)
		assert.Equal(t, "traverse", capErr.Stage, name)
		assert.Equal(t, 2, capErr.Capacity, name)
		assert.Equal(t, 3, capErr.Needed, name)

		cands, err := b.Traverse(g1, 1, capErr.Needed, 2)
		require.NoError(t, err, name)
		assert.Equal(t, []int{3, 1}, cands.Counts, name)
		assert.Equal(t, []int{0, 3}, cands.Offsets, name)
		assert.Equal(t, []bond.Pair{{1, 13}}, cands.Of(1), name)
		assert.Equal(t, []bond.Pair{{0, 10}, {0, 11}, {0, 12}},
			sortedPairs(cands.Of(0)), name)
	}
}

func TestReplicas(t *testing.T) {
	box := geom.NewCubicBox(10)
	g := particles(geom.Vec{5, 5, 5}, geom.Vec{0.5, 5, 5})

	l := NewLBVH()
	require.NoError(t, l.Build(box, 0, 1, g, 1))
	// Only the particle near the x = 0 wall is copied, to x = 10.5.
	assert.Equal(t, 3, l.Replicas())

	br := &Brute{}
	require.NoError(t, br.Build(box, 0, 1, g, 1))
	assert.Equal(t, 3, br.Replicas())
}

func TestBuildErrors(t *testing.T) {
	box := geom.NewCubicBox(10)
	g := particles(geom.Vec{5, 5, 5})

	for name, b := range backends() {
		err := b.Build(box, 0, 6, g, 1)
		assert.True(t, errors.Is(err, geom.ErrCutoff), name)

		bad := box
		bad.Hi[1] = bad.Lo[1]
		err = b.Build(bad, 0, 1, g, 1)
		assert.True(t, errors.Is(err, geom.ErrBadBox), name)
	}
}

func randomBox(gen *rand.Rand) geom.Box {
	box := geom.NewBox(
		geom.Vec{-5, -4, -6},
		geom.Vec{5 + gen.Float64(), 4 + gen.Float64(), 6 + gen.Float64()},
	)
	box.XY = gen.Float64() - 0.5
	box.XZ = gen.Float64() - 0.5
	box.YZ = gen.Float64() - 0.5
	for i := range box.Periodic { box.Periodic[i] = gen.Intn(3) != 0 }
	if gen.Intn(3) == 0 {
		box.Dimensions = 2
		box.XZ, box.YZ = 0, 0
	}
	return box
}

func randomParticles(
	gen *rand.Rand, box geom.Box, ghost float64, n int, first bond.Tag,
) Particles {
	pad := box.Padded(ghost)
	p := Particles{ make([]bond.Tag, n), make([]geom.Vec, n) }
	for i := range p.Pos {
		s := geom.Vec{gen.Float64(), gen.Float64(), gen.Float64()}
		p.Pos[i] = pad.FromFraction(s)
		// 2D particles live in the z = 0 plane, which isn't the box's lower
		// z edge.
		if box.Dimensions == 2 { p.Pos[i][2] = 0 }
		p.Tags[i] = first + bond.Tag(i)
	}
	return p
}

func TestLBVHMatchesBrute(t *testing.T) {
	gen := rand.New(rand.NewSource(7))

	for trial := 0; trial < 40; trial++ {
		box := randomBox(gen)
		ghost := gen.Float64()
		rcut := 0.3 + 2*gen.Float64()

		g2 := randomParticles(gen, box, ghost, 300, 0)
		var g1 Particles
		if trial % 2 == 0 {
			g1 = randomParticles(gen, box, ghost, 200, 1000)
		} else {
			// Overlapping groups.
			g1 = Particles{ g2.Tags[:150], g2.Pos[:150] }
		}

		ref := search(t, &Brute{}, box, ghost, rcut, g1, g2, 1)
		for _, workers := range []int{1, 4} {
			cands := search(t, NewLBVH(), box, ghost, rcut, g1, g2, workers)
			require.Equal(t, ref.Counts, cands.Counts, "trial %d", trial)
			require.Equal(t, ref.Offsets, cands.Offsets, "trial %d", trial)
			for i := 0; i < g1.Len(); i++ {
				assert.Equal(t, sortedPairs(ref.Of(i)), sortedPairs(cands.Of(i)),
					"trial %d, particle %d", trial, i)
			}
		}
	}
}

func TestMinImageAgreement(t *testing.T) {
	// In a fully periodic box every in-range pair is also within rcut under
	// the minimum image convention.
	gen := rand.New(rand.NewSource(11))
	box := geom.NewCubicBox(8)
	box.XY = 0.2
	g1 := randomParticles(gen, box, 0, 100, 0)
	g2 := randomParticles(gen, box, 0, 100, 100)
	rcut := 1.5

	assertMinImagePairs(t, box, rcut, g1, g2)
}

// minImage returns the periodic image of the displacement d with the smallest
// fractional coordinates along every periodic axis of box.
func minImage(box geom.Box, d geom.Vec) geom.Vec {
	a1, a2, a3 := box.LatticeVectors()
	L := box.L()
	a := [3]geom.Vec{a1, a2, a3}
	for i := 2; i >= 0; i-- {
		if !box.Periodic[i] || (i == 2 && box.Dimensions == 2) { continue }
		if n := math.Round(d[i] / L[i]); n != 0 { d = d.Sub(a[i].Scale(n)) }
	}
	return d
}

func TestMinImage(t *testing.T) {
	box := geom.NewCubicBox(10)
	assert.InDeltaSlice(t, []float64{0, 0, -0.5},
		vecSlice(minImage(box, geom.Vec{0, 0, 9.5})), 1e-12)
	assert.InDeltaSlice(t, []float64{1, -1, 0},
		vecSlice(minImage(box, geom.Vec{-9, 9, 10})), 1e-12)

	// Crossing the y boundary of a sheared box also shifts x by XY*Ly.
	box.XY = 0.3
	assert.InDeltaSlice(t, []float64{-3, -1, 0},
		vecSlice(minImage(box, geom.Vec{0, 9, 0})), 1e-12)
}

func vecSlice(v geom.Vec) []float64 { return v[:] }

// assertMinImagePairs checks that both backends find exactly the pairs which
// are within rcut under the minimum image convention.
func assertMinImagePairs(
	t *testing.T, box geom.Box, rcut float64, g1, g2 Particles,
) {
	for name, b := range backends() {
		cands := search(t, b, box, 0, rcut, g1, g2, 3)
		found := map[bond.Pair]bool{}
		for _, p := range cands.Pairs { found[p] = true }

		n := 0
		for i := range g1.Pos {
			for j := range g2.Pos {
				d := minImage(box, g2.Pos[j].Sub(g1.Pos[i]))
				if d.Norm2() > rcut*rcut { continue }
				n++
				assert.True(t, found[bond.Pair{g1.Tags[i], g2.Tags[j]}],
					"%s: pair (%d, %d) missed", name, i, j)
			}
		}
		assert.Equal(t, n, len(found), name)
	}
}

func TestTwoDimensionsOffsetPlane(t *testing.T) {
	// The box spans z in [-0.5, 0.5) while particles sit at z = 0.
	box := geom.NewBox(geom.Vec{-5, -5, -0.5}, geom.Vec{5, 5, 0.5})
	box.Dimensions = 2

	for name, b := range backends() {
		cands := search(t, b, box, 0, 0.45,
			withTags(1, geom.Vec{-4.8, 0, 0}), withTags(2, geom.Vec{4.8, 0, 0}), 2)
		assert.Equal(t, []bond.Pair{{1, 2}}, cands.Pairs, name)
	}

	gen := rand.New(rand.NewSource(13))
	tilted := geom.NewBox(geom.Vec{-4, -4, -3}, geom.Vec{4, 4, 3})
	tilted.Dimensions = 2
	tilted.XY = 0.3
	g1 := randomParticles(gen, tilted, 0, 100, 0)
	g2 := randomParticles(gen, tilted, 0, 100, 100)
	assertMinImagePairs(t, tilted, 1.2, g1, g2)
}

func BenchmarkLBVH(b *testing.B) {
	gen := rand.New(rand.NewSource(1))
	box := geom.NewCubicBox(30)
	g1 := randomParticles(gen, box, 0, 20000, 0)
	g2 := randomParticles(gen, box, 0, 20000, 20000)
	l := NewLBVH()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Build(box, 0, 1.2, g2, 4)
		l.Traverse(g1, 1.2, 64, 4)
	}
}
