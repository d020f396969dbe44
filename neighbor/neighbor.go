/*package neighbor finds every (group 1, group 2) pair of particles closer than
a cutoff radius in a periodic box.

A Backend is built once per update over the group 2 particles and then
queried with every group 1 particle. Two backends are provided: LBVH, which
replicates group 2 across periodic images and searches a bounding volume
hierarchy, and Brute, which compares every pair and is used as a reference.
*/
package neighbor

import (
	"github.com/dgravesa/go-parallel/parallel"

	"github.com/phil-mansfield/dynbond/bond"
	"github.com/phil-mansfield/dynbond/geom"
)

// Particles is a set of particles given in structure-of-arrays form.
// Tags[i] is the tag of the particle at Pos[i].
type Particles struct {
	Tags []bond.Tag
	Pos []geom.Vec
}

// Len returns the number of particles.
func (p Particles) Len() int { return len(p.Tags) }

// Candidates is the list of candidate pairs found by a traversal. The pairs
// found by group 1 particle i are
// Pairs[Offsets[i]: Offsets[i] + Counts[i]], and every pair is oriented as
// (group 1 tag, group 2 tag).
type Candidates struct {
	Pairs []bond.Pair
	Counts, Offsets []int
}

// Of returns the candidate pairs found for group 1 particle i.
func (c *Candidates) Of(i int) []bond.Pair {
	return c.Pairs[c.Offsets[i]: c.Offsets[i] + c.Counts[i]]
}

// Len returns the total number of candidate pairs.
func (c *Candidates) Len() int { return len(c.Pairs) }

// Backend is a spatial query structure over the group 2 particles.
type Backend interface {
	// Build prepares the backend for queries with cutoff radius rcut. ghost is
	// the ghost layer width along non-periodic axes.
	Build(box geom.Box, ghost, rcut float64, group2 Particles, workers int) error
	// Traverse finds every group 2 particle within rcut of each group 1
	// particle, inclusive, excluding pairs of a particle with itself. At
	// most maxNeighbors pairs are stored per group 1 particle. If any
	// particle has more than that, a *bond.CapacityError is returned whose
	// Needed field is the largest number of neighbors of any particle.
	Traverse(
		group1 Particles, rcut float64, maxNeighbors, workers int,
	) (*Candidates, error)
	// Replicas returns the number of group 2 points, including periodic
	// replicas, searched by the last call to Traverse.
	Replicas() int
}

// replicas are group 2 particles translated by the box's image vectors.
type replicas struct {
	tags []bond.Tag
	pos []geom.Vec
	domain geom.Bounds
}

// replicate translates group 2 by every image vector of the box, keeping a
// replica only if it lies within rcut of the padded box. Untranslated
// particles are always kept. Replicas are ordered by image and then by their
// order in group2.
func (rep *replicas) replicate(
	box geom.Box, ghost, rcut float64, group2 Particles, workers int,
) error {
	images, err := geom.ImageVectors(box, rcut, ghost)
	if err != nil { return err }

	padded := box.Padded(ghost)
	rep.domain = padded.Bounds().Expand(rcut)
	if box.Dimensions == 2 {
		// Images never move particles along z in 2D, so the domain only
		// needs to cover whichever plane the particles sit in.
		rep.domain.Min[2], rep.domain.Max[2] = zRange(group2.Pos)
	}

	// Each image is filtered separately and the results are concatenated in
	// image order.
	keep := make([][]int32, len(images))
	exec := parallel.WithNumGoroutines(atLeastOne(workers))
	exec.For(len(images), func(k, _ int) {
		if k == 0 { return }
		for i := range group2.Pos {
			r := group2.Pos[i].Add(images[k])
			if rep.domain.Contains(r) { keep[k] = append(keep[k], int32(i)) }
		}
	})

	n := group2.Len()
	for k := 1; k < len(keep); k++ { n += len(keep[k]) }
	rep.tags = resizeTags(rep.tags, n)
	rep.pos = resizeVecs(rep.pos, n)

	copy(rep.tags, group2.Tags)
	copy(rep.pos, group2.Pos)
	j := group2.Len()
	for k := 1; k < len(keep); k++ {
		for _, i := range keep[k] {
			rep.tags[j] = group2.Tags[i]
			rep.pos[j] = group2.Pos[i].Add(images[k])
			j++
		}
	}

	return nil
}

// gather runs search for every group 1 particle and compacts the results.
// search calls emit once per neighbor.
func gather(
	group1 Particles, maxNeighbors, workers int,
	search func(i int, emit func(bond.Tag)),
) (*Candidates, error) {
	n := group1.Len()
	if maxNeighbors < 0 { maxNeighbors = 0 }
	buf := make([]bond.Pair, n*maxNeighbors)
	counts := make([]int, n)

	exec := parallel.WithNumGoroutines(atLeastOne(workers))
	exec.For(n, func(i, _ int) {
		a := group1.Tags[i]
		out := buf[i*maxNeighbors: (i+1)*maxNeighbors]
		k := 0
		search(i, func(b bond.Tag) {
			if k < len(out) { out[k] = bond.Pair{A: a, B: b} }
			k++
		})
		counts[i] = k
	})

	needed := 0
	for _, k := range counts {
		if k > needed { needed = k }
	}
	if needed > maxNeighbors {
		return nil, &bond.CapacityError{
			Stage: "traverse", Capacity: maxNeighbors, Needed: needed,
		}
	}

	offsets := make([]int, n)
	total := 0
	for i, k := range counts {
		offsets[i] = total
		total += k
	}

	cands := &Candidates{
		Pairs: make([]bond.Pair, total), Counts: counts, Offsets: offsets,
	}
	exec.For(n, func(i, _ int) {
		copy(cands.Of(i), buf[i*maxNeighbors: i*maxNeighbors + counts[i]])
	})

	return cands, nil
}

// zRange returns the smallest and largest z coordinates in pos.
func zRange(pos []geom.Vec) (lo, hi float64) {
	if len(pos) == 0 { return 0, 0 }
	lo, hi = pos[0][2], pos[0][2]
	for i := range pos {
		if pos[i][2] < lo { lo = pos[i][2] }
		if pos[i][2] > hi { hi = pos[i][2] }
	}
	return lo, hi
}

func atLeastOne(workers int) int {
	if workers < 1 { return 1 }
	return workers
}

func resizeTags(x []bond.Tag, n int) []bond.Tag {
	if cap(x) >= n { return x[:n] }
	return make([]bond.Tag, n)
}

func resizeVecs(x []geom.Vec, n int) []geom.Vec {
	if cap(x) >= n { return x[:n] }
	return make([]geom.Vec, n)
}
