package neighbor

import (
	"github.com/phil-mansfield/dynbond/bond"
	"github.com/phil-mansfield/dynbond/geom"
)

// Brute is a Backend which compares every group 1 particle against every
// replica of every group 2 particle. It is quadratic and only meant for
// checking other backends and for very small systems.
type Brute struct {
	rep replicas
}

func (b *Brute) Build(
	box geom.Box, ghost, rcut float64, group2 Particles, workers int,
) error {
	return b.rep.replicate(box, ghost, rcut, group2, workers)
}

func (b *Brute) Traverse(
	group1 Particles, rcut float64, maxNeighbors, workers int,
) (*Candidates, error) {
	r2 := rcut * rcut
	return gather(group1, maxNeighbors, workers,
		func(i int, emit func(bond.Tag)) {
			a, p := group1.Tags[i], group1.Pos[i]
			for j := range b.rep.pos {
				if b.rep.tags[j] == a { continue }
				if geom.Dist2(&p, &b.rep.pos[j]) <= r2 { emit(b.rep.tags[j]) }
			}
		})
}

func (b *Brute) Replicas() int { return len(b.rep.pos) }
