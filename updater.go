/*package dynbond forms bonds between nearby particles of a simulation on a
fixed timestep schedule.

Every Period timesteps, an Updater finds every pair made of one group 1
particle and one group 2 particle which are within the cutoff radius of one
another, periodic images included. Pairs which are not already bonded are
accepted with a fixed probability, subject to a per-particle cap on the total
number of bonds, and the accepted bonds are added to the System. Results
depend only on the system state, the seed and the timestep, never on the
number of goroutines used.
*/
package dynbond

import (
	"errors"
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phil-mansfield/dynbond/bond"
	"github.com/phil-mansfield/dynbond/geom"
	"github.com/phil-mansfield/dynbond/neighbor"
	"github.com/phil-mansfield/dynbond/tune"
)

const (
	// MaxRetries is the number of times a stage is rerun with a larger
	// buffer before an update fails.
	MaxRetries = 3

	defaultNeighborHint = 16
	defaultBondHint = 64

	tunerSamples = 5
	defaultTunerPeriod = 100
)

const (
	buildTuner = iota
	traverseTuner
	filterTuner
	tunerCount
)

var tunerNames = [tunerCount]string{"build", "traverse", "filter"}

// Params are the parameters of an Updater.
type Params struct {
	// RCut is the cutoff radius. Pairs at exactly RCut are in range.
	RCut float64
	// Probability is the chance that an eligible pair becomes a bond.
	Probability float64
	// BondType is the type given to new bonds.
	BondType uint32
	// MaxBondsGroup1 and MaxBondsGroup2 cap the total number of bonds,
	// existing ones included, that particles in each group may have. A
	// particle in both groups has the smaller cap.
	MaxBondsGroup1, MaxBondsGroup2 int
	Seed uint32
	// Period is the number of timesteps between updates.
	Period uint64
}

// Report summarizes a single update.
type Report struct {
	Timestep uint64
	// Candidates is the number of candidate pairs found by the neighbor
	// search, duplicates included.
	Candidates int
	Accepted int
	// TraverseRetries and FilterRetries are the number of times each stage
	// was rerun after its output buffer overflowed.
	TraverseRetries, FilterRetries int
	Overflowed bool
	// Bonds are the new bonds, sorted by pair key.
	Bonds []bond.Bond
	Stats bond.FilterStats
}

// Updater periodically forms new bonds in a System.
type Updater struct {
	sys System
	params Params
	group1, group2 neighbor.Particles
	caps map[bond.Tag]int
	backend neighbor.Backend

	mu sync.Mutex
	state int32

	// Buffer sizes are kept between updates.
	maxNeighbors int
	bonds []bond.Bond

	topo *bond.Topology
	images int

	tuners [tunerCount]*tune.Tuner
	stageTimes [tunerCount]time.Duration
	autotune bool
	tunerPeriod int

	log bool
	ms runtime.MemStats
}

// NewUpdater creates an Updater which forms bonds between the particles in
// group1 and group2 of sys. The groups may overlap. Invalid parameters result
// in a *ConfigurationError.
func NewUpdater(
	sys System, group1, group2 []bond.Tag, p Params,
) (*Updater, error) {
	if err := p.check(sys); err != nil { return nil, err }
	for gi, group := range [][]bond.Tag{group1, group2} {
		for _, tag := range group {
			if !sys.HasTag(tag) {
				return nil, configErrorf(
					"group %d contains tag %d, which is not in the system",
					gi + 1, tag,
				)
			}
		}
	}
	box := sys.Box()
	if _, err := countImages(&box, p.RCut, sys.GhostLayerWidth()); err != nil {
		return nil, err
	}

	u := &Updater{
		sys: sys, params: p,
		group1: newParticles(group1),
		group2: newParticles(group2),
		caps: make(map[bond.Tag]int, len(group1) + len(group2)),
		backend: neighbor.NewLBVH(),
		maxNeighbors: defaultNeighborHint,
		bonds: make([]bond.Bond, defaultBondHint),
		autotune: true, tunerPeriod: defaultTunerPeriod,
	}

	for _, tag := range group1 { u.caps[tag] = p.MaxBondsGroup1 }
	for _, tag := range group2 {
		c, ok := u.caps[tag]
		if !ok || p.MaxBondsGroup2 < c { u.caps[tag] = p.MaxBondsGroup2 }
	}

	if err := u.resetTuners(runtime.GOMAXPROCS(0)); err != nil {
		return nil, err
	}

	return u, nil
}

func (p *Params) check(sys System) error {
	switch {
	case !(p.RCut > 0) || math.IsInf(p.RCut, 0):
		return configErrorf("cutoff radius must be positive, but is %g", p.RCut)
	case !(p.Probability >= 0 && p.Probability <= 1):
		return configErrorf(
			"probability must be in [0, 1], but is %g", p.Probability,
		)
	case p.MaxBondsGroup1 < 0:
		return configErrorf(
			"MaxBondsGroup1 must be non-negative, but is %d", p.MaxBondsGroup1,
		)
	case p.MaxBondsGroup2 < 0:
		return configErrorf(
			"MaxBondsGroup2 must be non-negative, but is %d", p.MaxBondsGroup2,
		)
	case p.Period == 0:
		return configErrorf("period must be at least one timestep")
	case int64(p.BondType) >= int64(sys.NumBondTypes()):
		return configErrorf(
			"bond type %d requested, but there are only %d bond types",
			p.BondType, sys.NumBondTypes(),
		)
	}
	return nil
}

// countImages returns the number of periodic images of box which need to be
// searched.
func countImages(box *geom.Box, rcut, ghost float64) (int, error) {
	if ghost < 0 || math.IsNaN(ghost) {
		return 0, configErrorf("ghost layer width is %g", ghost)
	}
	vecs, err := geom.ImageVectors(*box, rcut, ghost)
	if errors.Is(err, geom.ErrBadBox) {
		return 0, &ConfigurationError{"invalid simulation box", err}
	} else if err != nil {
		return 0, &ConfigurationError{"cutoff radius incompatible with box", err}
	}
	return len(vecs), nil
}

func newParticles(tags []bond.Tag) neighbor.Particles {
	return neighbor.Particles{
		Tags: append([]bond.Tag{}, tags...),
		Pos: make([]geom.Vec, len(tags)),
	}
}

// resetTuners creates a tuner for each stage which chooses between 1 and
// maxWorkers goroutines.
func (u *Updater) resetTuners(maxWorkers int) error {
	workers := tune.WorkerParams(maxWorkers)
	for i := range u.tuners {
		t, err := tune.NewTuner(
			tunerNames[i], workers, tunerSamples, u.tunerPeriod,
		)
		if err != nil { return err }
		t.SetEnabled(u.autotune)
		t.Log = u.log
		u.tuners[i] = t
	}
	return nil
}

// Log turns logging on or off.
func (u *Updater) Log(flag bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.log = flag
	for _, t := range u.tuners { t.Log = flag }
}

// State returns the stage the Updater is currently in. It may be called while
// an update is in flight.
func (u *Updater) State() State { return State(atomic.LoadInt32(&u.state)) }

func (u *Updater) setState(s State) { atomic.StoreInt32(&u.state, int32(s)) }

// Params returns the parameters of the Updater.
func (u *Updater) Params() Params { return u.params }

// SetBackend replaces the neighbor search used by future updates.
func (u *Updater) SetBackend(b neighbor.Backend) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.backend = b
}

// SetAutotunerParams turns the timing of alternative worker counts on or off
// and sets how many updates pass between tuning rounds.
func (u *Updater) SetAutotunerParams(enable bool, period int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if period < 1 { period = 1 }
	u.autotune, u.tunerPeriod = enable, period
	for _, t := range u.tuners {
		t.SetEnabled(enable)
		t.SetPeriod(period)
	}
}

// SetMaxWorkers sets the largest number of goroutines any stage may use. An
// Updater which isn't autotuning uses exactly this many.
func (u *Updater) SetMaxWorkers(n int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.resetTuners(n)
}

// Update runs an update at the given timestep if it is a multiple of the
// period and returns a summary of it. Otherwise nothing happens and a nil
// Report is returned.
//
// If a stage's buffer overflows it is grown and the stage is rerun, up to
// MaxRetries times. No bonds are added to the system unless Update succeeds.
func (u *Updater) Update(timestep uint64) (*Report, error) {
	if !u.mu.TryLock() { return nil, ErrBusy }
	defer u.mu.Unlock()

	if timestep % u.params.Period != 0 { return nil, nil }
	defer u.setState(StateIdle)
	defer func() { u.topo = nil }()

	rep := &Report{ Timestep: timestep }

	u.setState(StateGeometryRefresh)
	box, ghost, err := u.refresh()
	if err != nil { return nil, err }

	u.setState(StateTreeBuild)
	err = u.timed(buildTuner, func(workers int) error {
		return u.backend.Build(box, ghost, u.params.RCut, u.group2, workers)
	})
	if err != nil { return nil, fmt.Errorf("building neighbor search: %w", err) }

	u.setState(StateTraverse)
	cands, err := u.traverse(rep)
	if err != nil { return nil, err }
	rep.Candidates = cands.Len()

	u.setState(StateFilter)
	n, err := u.filter(timestep, cands.Pairs, rep)
	if err != nil { return nil, err }

	u.setState(StatePublish)
	rep.Accepted = n
	rep.Bonds = append([]bond.Bond{}, u.bonds[:n]...)
	if err := u.sys.AddBonds(rep.Bonds); err != nil {
		return nil, fmt.Errorf("publishing bonds: %w", err)
	}

	if u.log { u.logReport(rep) }

	return rep, nil
}

// refresh reads the current state of the system.
func (u *Updater) refresh() (geom.Box, float64, error) {
	box, ghost := u.sys.Box(), u.sys.GhostLayerWidth()
	n, err := countImages(&box, u.params.RCut, ghost)
	if err != nil { return box, ghost, err }
	u.images = n

	if err := u.sys.Positions(u.group1.Tags, u.group1.Pos); err != nil {
		return box, ghost, fmt.Errorf("reading group 1 positions: %w", err)
	}
	if err := u.sys.Positions(u.group2.Tags, u.group2.Pos); err != nil {
		return box, ghost, fmt.Errorf("reading group 2 positions: %w", err)
	}
	u.topo = bond.NewTopology(u.sys.Bonds())

	return box, ghost, nil
}

// timed runs f with the worker count chosen by a stage's tuner.
func (u *Updater) timed(stage int, f func(workers int) error) error {
	t := u.tuners[stage]
	start := time.Now()
	t.Begin()
	err := f(t.Param())
	t.End()
	u.stageTimes[stage] += time.Since(start)
	return err
}

func (u *Updater) traverse(rep *Report) (*neighbor.Candidates, error) {
	for retry := 0; ; retry++ {
		var cands *neighbor.Candidates
		err := u.timed(traverseTuner, func(workers int) error {
			var err error
			cands, err = u.backend.Traverse(
				u.group1, u.params.RCut, u.maxNeighbors, workers,
			)
			return err
		})

		var capErr *CapacityError
		if !errors.As(err, &capErr) {
			if err != nil {
				return nil, fmt.Errorf("traversing neighbor search: %w", err)
			}
			return cands, nil
		}

		rep.Overflowed = true
		if retry == MaxRetries {
			return nil, fmt.Errorf("%w: %w", ErrRetriesExhausted, capErr)
		}
		rep.TraverseRetries++
		u.maxNeighbors = grow(u.maxNeighbors, capErr.Needed)
	}
}

func (u *Updater) filter(
	step uint64, pairs []bond.Pair, rep *Report,
) (int, error) {
	for retry := 0; ; retry++ {
		var n int
		err := u.timed(filterTuner, func(workers int) error {
			f := &bond.Filter{
				Probability: u.params.Probability,
				Type: u.params.BondType,
				Seed: u.params.Seed,
				Workers: workers,
			}
			var err error
			n, rep.Stats, err = f.Apply(step, pairs, u.topo, u.capOf, u.bonds)
			return err
		})

		var capErr *CapacityError
		if !errors.As(err, &capErr) {
			if err != nil { return 0, fmt.Errorf("filtering bonds: %w", err) }
			return n, nil
		}

		rep.Overflowed = true
		if retry == MaxRetries {
			return 0, fmt.Errorf("%w: %w", ErrRetriesExhausted, capErr)
		}
		rep.FilterRetries++
		u.bonds = make([]bond.Bond, grow(len(u.bonds), capErr.Needed))
	}
}

func (u *Updater) capOf(tag bond.Tag) int { return u.caps[tag] }

// grow returns the new size of a buffer of size old which needed to hold
// needed elements.
func grow(old, needed int) int {
	if 2*old > needed { return 2*old }
	return needed
}

func (u *Updater) logReport(rep *Report) {
	log.Printf(
		"Timestep %d: %d images, %d replicas, %d candidates, %d new bonds.",
		rep.Timestep, u.images, u.backend.Replicas(),
		rep.Candidates, rep.Accepted,
	)
	log.Printf(
		"Existing: %d, rejected: %d, over cap: %d. " +
			"Retries: %d traverse, %d filter.",
		rep.Stats.Existing, rep.Stats.Rejected, rep.Stats.CapRejected,
		rep.TraverseRetries, rep.FilterRetries,
	)
	log.Printf(
		"Total stage times: build %s, traverse %s, filter %s.",
		u.stageTimes[buildTuner], u.stageTimes[traverseTuner],
		u.stageTimes[filterTuner],
	)

	for _, t := range u.tuners {
		log.Printf("Tuner '%s' is using %d goroutines.", t.Name(), t.Param())
	}

	runtime.ReadMemStats(&u.ms)
	log.Printf(
		"Alloc: %5d MB, Sys: %5d MB",
		u.ms.Alloc >> 20, u.ms.Sys >> 20,
	)
}
