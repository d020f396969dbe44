package bond

// Topology is an immutable snapshot of the bonds which exist at the start of an
// update. It is safe for concurrent reads.
type Topology struct {
	keys map[Key]struct{}
	counts map[Tag]int
	n int
}

// NewTopology creates a snapshot of bonds. Bonds of every type are recorded,
// and (a, b) and (b, a) are the same bond.
func NewTopology(bonds []Bond) *Topology {
	topo := &Topology{
		keys: make(map[Key]struct{}, len(bonds)),
		counts: make(map[Tag]int),
		n: len(bonds),
	}
	for _, b := range bonds {
		topo.keys[b.Key()] = struct{}{}
		topo.counts[b.A]++
		topo.counts[b.B]++
	}
	return topo
}

// Has returns true if a and b are bonded, in either order.
func (topo *Topology) Has(a, b Tag) bool {
	return topo.HasKey(Canonical(a, b))
}

// HasKey returns true if the pair with key k is bonded.
func (topo *Topology) HasKey(k Key) bool {
	_, ok := topo.keys[k]
	return ok
}

// Count returns the number of existing bonds involving tag.
func (topo *Topology) Count(tag Tag) int { return topo.counts[tag] }

// Len returns the number of bonds in the snapshot.
func (topo *Topology) Len() int { return topo.n }
