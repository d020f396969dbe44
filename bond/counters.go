package bond

import (
	"math"
	"sync/atomic"
)

// CapFunc returns the maximum number of bonds a particle may take part in.
type CapFunc func(Tag) int

// Counters tracks per-particle bond counts against per-particle caps. Counts
// start at the number of existing bonds. All updates are atomic, so Counters
// may be shared between goroutines.
type Counters struct {
	index map[Tag]int32
	tags []Tag
	n, max []int32
}

// NewCounters creates counters for the given tags. Duplicate tags share a
// counter.
func NewCounters(tags []Tag, topo *Topology, caps CapFunc) *Counters {
	c := &Counters{ index: make(map[Tag]int32, len(tags)) }
	for _, tag := range tags {
		if _, ok := c.index[tag]; ok { continue }
		c.index[tag] = int32(len(c.tags))
		c.tags = append(c.tags, tag)
		c.n = append(c.n, int32(topo.Count(tag)))
		limit := caps(tag)
		if limit > math.MaxInt32/2 { limit = math.MaxInt32/2 }
		c.max = append(c.max, int32(limit))
	}
	return c
}

// Len returns the number of particles being tracked.
func (c *Counters) Len() int { return len(c.tags) }

// Index returns the counter index of tag and false if tag is not tracked.
func (c *Counters) Index(tag Tag) (int, bool) {
	i, ok := c.index[tag]
	return int(i), ok
}

// Count returns the current bond count of counter i.
func (c *Counters) Count(i int) int { return int(atomic.LoadInt32(&c.n[i])) }

// Room returns the number of additional bonds counter i can accept. It is
// negative if the particle already has more bonds than its cap.
func (c *Counters) Room(i int) int {
	return int(c.max[i] - atomic.LoadInt32(&c.n[i]))
}

// TryAcquire increments both counters i and j, undoing both increments and
// returning false if either would exceed its cap.
func (c *Counters) TryAcquire(i, j int) bool {
	if atomic.AddInt32(&c.n[i], 1) > c.max[i] {
		atomic.AddInt32(&c.n[i], -1)
		return false
	}
	if atomic.AddInt32(&c.n[j], 1) > c.max[j] {
		atomic.AddInt32(&c.n[j], -1)
		atomic.AddInt32(&c.n[i], -1)
		return false
	}
	return true
}
