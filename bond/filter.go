package bond

import (
	"sort"

	"github.com/dgravesa/go-parallel/parallel"
)

// Filter decides which candidate pairs become new bonds.
//
// Candidates are canonicalized and deduplicated, pairs which are already
// bonded are dropped, each remaining pair survives a keyed random draw with
// the given probability, and finally pairs are accepted greedily in ascending
// key order so long as neither particle would go over its cap. The output is
// identical for any number of workers.
type Filter struct {
	Probability float64
	Type uint32
	Seed uint32
	// Workers is the number of goroutines used. Values below 2 select the
	// sequential cap pass.
	Workers int
}

// FilterStats counts what happened to the candidates of a single Apply call.
type FilterStats struct {
	Candidates int // raw candidate pairs, including duplicates
	Unique int // distinct non-self pairs
	Existing int // pairs which were already bonded
	Rejected int // pairs which lost the random draw
	CapRejected int // pairs which would have exceeded a cap
	Accepted int
}

type pairStatus int32

const (
	pending pairStatus = iota
	accepted
	rejected
	existing
)

// Apply filters the candidate pairs found at the given timestep and writes the
// accepted bonds, in ascending key order, to out. It returns the number of
// bonds written.
//
// If out is too small, a *CapacityError is returned with the number of
// accepted bonds. Nothing is partially applied: calling Apply again with a
// large enough buffer and the same arguments gives the full result.
func (f *Filter) Apply(
	step uint64, pairs []Pair, topo *Topology, caps CapFunc, out []Bond,
) (int, FilterStats, error) {
	workers := f.Workers
	if workers < 1 { workers = 1 }
	exec := parallel.WithNumGoroutines(workers)
	stats := FilterStats{ Candidates: len(pairs) }

	keys := make([]Key, len(pairs))
	exec.For(len(pairs), func(i, _ int) {
		if pairs[i].A == pairs[i].B {
			keys[i] = noKey
		} else {
			keys[i] = pairs[i].Key()
		}
	})
	keys = uniqueKeys(keys)
	stats.Unique = len(keys)

	status := make([]pairStatus, len(keys))
	exec.For(len(keys), func(i, _ int) {
		switch {
		case topo.HasKey(keys[i]):
			status[i] = existing
		case Uniform(f.Seed, step, keys[i]) >= f.Probability:
			status[i] = rejected
		}
	})

	eligible := make([]Key, 0, len(keys))
	for i, s := range status {
		switch s {
		case existing:
			stats.Existing++
		case rejected:
			stats.Rejected++
		default:
			eligible = append(eligible, keys[i])
		}
	}

	ctr := newPairCounters(eligible, topo, caps)
	var ok []bool
	if workers == 1 {
		ok = settleSequential(eligible, ctr)
	} else {
		ok = settleParallel(eligible, ctr, workers)
	}

	n := 0
	for i := range eligible {
		if !ok[i] { continue }
		if n < len(out) {
			a, b := eligible[i].Tags()
			out[n] = Bond{a, b, f.Type}
		}
		n++
	}
	stats.Accepted = n
	stats.CapRejected = len(eligible) - n

	if n > len(out) {
		return len(out), stats, &CapacityError{"filter", len(out), n}
	}
	return n, stats, nil
}

// uniqueKeys sorts keys and removes duplicates and discarded pairs, in place.
func uniqueKeys(keys []Key) []Key {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := keys[:0]
	for i, k := range keys {
		if k == noKey { break }
		if i > 0 && k == keys[i-1] { continue }
		out = append(out, k)
	}
	return out
}

// pairCounters are the Counters of every particle in a list of pairs along
// with the counter indices of each pair's two ends.
type pairCounters struct {
	*Counters
	ends [][2]int
}

func newPairCounters(keys []Key, topo *Topology, caps CapFunc) *pairCounters {
	tags := make([]Tag, 0, 2*len(keys))
	for _, k := range keys {
		a, b := k.Tags()
		tags = append(tags, a, b)
	}

	pc := &pairCounters{
		Counters: NewCounters(tags, topo, caps),
		ends: make([][2]int, len(keys)),
	}
	for i := range keys {
		ia, _ := pc.Index(tags[2*i])
		ib, _ := pc.Index(tags[2*i+1])
		pc.ends[i] = [2]int{ia, ib}
	}
	return pc
}

// settleSequential accepts pairs in key order.
func settleSequential(keys []Key, ctr *pairCounters) []bool {
	ok := make([]bool, len(keys))
	for i := range keys {
		ok[i] = ctr.TryAcquire(ctr.ends[i][0], ctr.ends[i][1])
	}
	return ok
}

// settleParallel gives the same result as settleSequential, but settles pairs
// concurrently over a series of rounds.
//
// In a round, a pending pair is accepted if, at each of its particles, the
// number of pending pairs with smaller keys is less than the room left at that
// particle: every earlier pair could be accepted and there would still be
// space for it, which is exactly when the sequential pass accepts it. A pair is
// rejected once either particle is full. Everything else waits for the next
// round. The smallest pending key is always settled, so every round makes
// progress.
func settleParallel(keys []Key, ctr *pairCounters, workers int) []bool {
	m := len(keys)
	exec := parallel.WithNumGoroutines(workers)

	// Pairs touching each particle, in ascending key order.
	start := make([]int, ctr.Len()+1)
	for _, e := range ctr.ends {
		start[e[0]+1]++
		start[e[1]+1]++
	}
	for i := 1; i < len(start); i++ { start[i] += start[i-1] }
	incident := make([]int32, start[len(start)-1])
	fill := append([]int(nil), start[:len(start)-1]...)
	for i, e := range ctr.ends {
		incident[fill[e[0]]] = int32(i)
		fill[e[0]]++
		incident[fill[e[1]]] = int32(i)
		fill[e[1]]++
	}

	status := make([]pairStatus, m)
	decision := make([]pairStatus, m)
	queue := make([]int32, m)
	for i := range queue { queue[i] = int32(i) }

	decide := func(p int32) pairStatus {
		e := ctr.ends[p]
		for _, u := range e {
			if ctr.Room(u) <= 0 { return rejected }
		}
		for _, u := range e {
			rank := 0
			for _, q := range incident[start[u]:start[u+1]] {
				if q == p { break }
				if status[q] == pending { rank++ }
			}
			if rank >= ctr.Room(u) { return pending }
		}
		return accepted
	}

	for len(queue) > 0 {
		exec.For(len(queue), func(i, _ int) {
			decision[queue[i]] = decide(queue[i])
		})
		exec.For(len(queue), func(i, _ int) {
			p := queue[i]
			switch decision[p] {
			case accepted:
				if !ctr.TryAcquire(ctr.ends[p][0], ctr.ends[p][1]) {
					panic("Impossible: bond cap oversubscribed in a round.")
				}
				status[p] = accepted
			case rejected:
				status[p] = rejected
			}
		})

		next := queue[:0]
		for _, p := range queue {
			if status[p] == pending { next = append(next, p) }
		}
		queue = next
	}

	ok := make([]bool, m)
	for i := range ok { ok[i] = status[i] == accepted }
	return ok
}
