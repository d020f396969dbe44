package neighbor

import (
	"github.com/phil-mansfield/dynbond/bond"
	"github.com/phil-mansfield/dynbond/bvh"
	"github.com/phil-mansfield/dynbond/geom"
)

// LBVH is a Backend which searches a linear bounding volume hierarchy built
// over periodic replicas of group 2. Buffers are reused between updates.
type LBVH struct {
	rep replicas
	tree *bvh.Tree
}

// NewLBVH returns an empty LBVH backend.
func NewLBVH() *LBVH { return &LBVH{ tree: bvh.New() } }

func (l *LBVH) Build(
	box geom.Box, ghost, rcut float64, group2 Particles, workers int,
) error {
	err := l.rep.replicate(box, ghost, rcut, group2, workers)
	if err != nil { return err }
	l.tree.Build(l.rep.pos, l.rep.domain, workers)
	return nil
}

func (l *LBVH) Traverse(
	group1 Particles, rcut float64, maxNeighbors, workers int,
) (*Candidates, error) {
	return gather(group1, maxNeighbors, workers,
		func(i int, emit func(bond.Tag)) {
			a := group1.Tags[i]
			l.tree.Sphere(group1.Pos[i], rcut, func(prim int) bool {
				if b := l.rep.tags[prim]; b != a { emit(b) }
				return true
			})
		})
}

func (l *LBVH) Replicas() int { return l.tree.Len() }
