package dynbond

import (
	"fmt"

	"github.com/phil-mansfield/dynbond/bond"
	"github.com/phil-mansfield/dynbond/geom"
)

// System is the particle system an Updater forms bonds in.
type System interface {
	// Box returns the current simulation box.
	Box() geom.Box
	// GhostLayerWidth returns the width of the ghost layer along
	// non-periodic axes.
	GhostLayerWidth() float64
	// Positions writes the current position of each particle in tags to
	// out, which has the same length as tags.
	Positions(tags []bond.Tag, out []geom.Vec) error
	// HasTag returns true if the system has a particle with the given tag.
	HasTag(tag bond.Tag) bool
	// Bonds returns every existing bond. The slice must not be modified.
	Bonds() []bond.Bond
	// NumBondTypes returns the number of registered bond types.
	NumBondTypes() int
	// AddBonds adds new bonds to the system.
	AddBonds(bonds []bond.Bond) error
}

// MemorySystem is a System held entirely in memory.
type MemorySystem struct {
	box geom.Box
	ghost float64
	index map[bond.Tag]int
	tags []bond.Tag
	pos []geom.Vec
	types []uint32
	bonds []bond.Bond
	bondTypes int
}

// NewMemorySystem creates a system from a list of particles and their existing
// bonds. Tags must be unique.
func NewMemorySystem(
	box geom.Box, tags []bond.Tag, pos []geom.Vec, bondTypes int,
) (*MemorySystem, error) {
	if len(tags) != len(pos) {
		return nil, fmt.Errorf(
			"%d tags given, but %d positions", len(tags), len(pos),
		)
	} else if bondTypes < 1 {
		return nil, fmt.Errorf("%d bond types, need at least one", bondTypes)
	}

	sys := &MemorySystem{
		box: box, bondTypes: bondTypes,
		index: make(map[bond.Tag]int, len(tags)),
		tags: append([]bond.Tag{}, tags...),
		pos: append([]geom.Vec{}, pos...),
		types: make([]uint32, len(tags)),
	}
	for i, tag := range tags {
		if _, ok := sys.index[tag]; ok {
			return nil, fmt.Errorf("particle tag %d appears twice", tag)
		}
		sys.index[tag] = i
	}
	return sys, nil
}

func (sys *MemorySystem) Box() geom.Box { return sys.box }
func (sys *MemorySystem) SetBox(box geom.Box) { sys.box = box }
func (sys *MemorySystem) GhostLayerWidth() float64 { return sys.ghost }
func (sys *MemorySystem) SetGhostLayerWidth(w float64) { sys.ghost = w }
func (sys *MemorySystem) NumBondTypes() int { return sys.bondTypes }
func (sys *MemorySystem) Bonds() []bond.Bond { return sys.bonds }
func (sys *MemorySystem) Len() int { return len(sys.tags) }

func (sys *MemorySystem) HasTag(tag bond.Tag) bool {
	_, ok := sys.index[tag]
	return ok
}

func (sys *MemorySystem) Positions(tags []bond.Tag, out []geom.Vec) error {
	if len(tags) != len(out) {
		return fmt.Errorf(
			"%d tags requested, but output has length %d", len(tags), len(out),
		)
	}
	for i, tag := range tags {
		j, ok := sys.index[tag]
		if !ok { return fmt.Errorf("no particle with tag %d", tag) }
		out[i] = sys.pos[j]
	}
	return nil
}

// Move sets the position of the particle with the given tag. The position is
// wrapped back into the box along its periodic axes.
func (sys *MemorySystem) Move(tag bond.Tag, pos geom.Vec) error {
	j, ok := sys.index[tag]
	if !ok { return fmt.Errorf("no particle with tag %d", tag) }
	sys.pos[j] = sys.box.Wrap(pos)
	return nil
}

// SetTypes sets the particle type of every particle, in the order the
// particles were given to NewMemorySystem.
func (sys *MemorySystem) SetTypes(types []uint32) error {
	if len(types) != len(sys.tags) {
		return fmt.Errorf(
			"%d types given for %d particles", len(types), len(sys.tags),
		)
	}
	copy(sys.types, types)
	return nil
}

// TagsOfType returns the tags of every particle whose type is in types, in
// the order the particles were given to NewMemorySystem.
func (sys *MemorySystem) TagsOfType(types ...uint32) []bond.Tag {
	out := []bond.Tag{}
	for i, tag := range sys.tags {
		for _, typ := range types {
			if sys.types[i] == typ {
				out = append(out, tag)
				break
			}
		}
	}
	return out
}

// AddBonds appends bonds to the system. Bonds between unknown particles or of
// unregistered types are rejected and nothing is added.
func (sys *MemorySystem) AddBonds(bonds []bond.Bond) error {
	for _, b := range bonds {
		if !sys.HasTag(b.A) || !sys.HasTag(b.B) {
			return fmt.Errorf("bond %v refers to an unknown particle", b)
		} else if b.A == b.B {
			return fmt.Errorf("bond %v joins a particle to itself", b)
		} else if int(b.Type) >= sys.bondTypes {
			return fmt.Errorf(
				"bond %v has type %d, but there are only %d bond types",
				b, b.Type, sys.bondTypes,
			)
		}
	}
	sys.bonds = append(sys.bonds, bonds...)
	return nil
}
