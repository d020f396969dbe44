/*package bond contains the types describing bonds between particles and the
filter which decides which candidate pairs become new bonds.
*/
package bond

import (
	"fmt"
)

// Tag is the stable identity of a particle. Unlike particle indices, tags
// survive reordering.
type Tag uint32

// Pair is a candidate pair of particles. In candidate lists A is the group 1
// particle and B is the group 2 particle.
type Pair struct {
	A, B Tag
}

// Key is a canonical pair key: the smaller tag in the upper 32 bits and the
// larger tag in the lower 32 bits. (a, b) and (b, a) share a Key, and sorting
// Keys sorts pairs lexicographically by (smaller tag, larger tag).
type Key uint64

// noKey marks pairs which have been discarded. It is the key of the self-pair
// (MaxUint32, MaxUint32), which can never be a bond anyway.
const noKey = ^Key(0)

// Canonical returns the canonical key of the pair (a, b).
func Canonical(a, b Tag) Key {
	if a > b { a, b = b, a }
	return Key(a)<<32 | Key(b)
}

// Key returns the canonical key of p.
func (p Pair) Key() Key { return Canonical(p.A, p.B) }

// Tags returns the two tags of k, smaller first.
func (k Key) Tags() (lo, hi Tag) {
	return Tag(k >> 32), Tag(k & 0xffffffff)
}

func (k Key) String() string {
	lo, hi := k.Tags()
	return fmt.Sprintf("(%d, %d)", lo, hi)
}

// Bond is a bond of a given type between two particles.
type Bond struct {
	A, B Tag
	Type uint32
}

// Key returns the canonical key of the bonded pair.
func (b Bond) Key() Key { return Canonical(b.A, b.B) }

// CapacityError is returned by a stage whose preallocated output buffer was
// too small. The stage can be rerun with a buffer of at least Needed elements.
type CapacityError struct {
	Stage string
	Capacity, Needed int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"%s: output capacity %d too small, %d required",
		e.Stage, e.Capacity, e.Needed,
	)
}
