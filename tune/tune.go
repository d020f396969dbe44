/*package tune chooses launch parameters, such as worker counts, by timing
repeated calls with each candidate value.

A Tuner cycles through its candidate parameters, timing each one several
times, and then settles on the candidate with the smallest median time. After
a fixed number of further calls it starts over, so that it can follow changes
in the workload. The choice of parameter never affects results, only speed.
*/
package tune

import (
	"fmt"
	"log"
	"sort"
	"time"
)

// Tuner times calls bracketed by Begin and End and picks the fastest of a list
// of parameters. A Tuner is not safe for concurrent use.
type Tuner struct {
	name string
	params []int
	samples, period int

	enabled bool
	tuning bool
	idx, sample int
	times [][]time.Duration
	best int
	calls int

	started bool
	start time.Time
	now func() time.Time

	// Log toggles logging of each tuning decision.
	Log bool
}

// NewTuner creates a tuner which chooses between params. Each parameter is
// timed samples times, and the tuner retunes after period calls with its
// chosen parameter.
func NewTuner(name string, params []int, samples, period int) (*Tuner, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("tuner '%s' has no parameters", name)
	} else if samples < 1 {
		return nil, fmt.Errorf(
			"tuner '%s' has %d samples, but needs at least one", name, samples,
		)
	} else if period < 1 {
		return nil, fmt.Errorf(
			"tuner '%s' has a period of %d, but needs at least one",
			name, period,
		)
	}

	t := &Tuner{
		name: name, params: append([]int{}, params...),
		samples: samples, period: period,
		enabled: true, tuning: true,
		times: make([][]time.Duration, len(params)),
		now: time.Now,
	}
	for i := range t.times { t.times[i] = make([]time.Duration, 0, samples) }
	return t, nil
}

// WorkerParams returns the worker counts max, and then every power of two
// below max in decreasing order. An untuned Tuner uses all max workers.
func WorkerParams(max int) []int {
	if max < 1 { max = 1 }
	params := []int{max}
	w := 1
	for 2*w < max { w *= 2 }
	for ; w >= 1; w /= 2 {
		if w < max { params = append(params, w) }
	}
	return params
}

// Name returns the name of the tuner.
func (t *Tuner) Name() string { return t.name }

// Param returns the parameter to use for the next call.
func (t *Tuner) Param() int {
	if t.enabled && t.tuning { return t.params[t.idx] }
	return t.params[t.best]
}

// Begin marks the start of a timed call.
func (t *Tuner) Begin() {
	t.started = true
	t.start = t.now()
}

// End marks the end of a timed call begun with Begin. Calls to End without a
// matching Begin are ignored.
func (t *Tuner) End() {
	if !t.started { return }
	t.started = false
	if !t.enabled { return }

	if !t.tuning {
		t.calls++
		if t.calls >= t.period { t.restart() }
		return
	}

	t.times[t.idx] = append(t.times[t.idx], t.now().Sub(t.start))
	t.sample++
	if t.sample < t.samples { return }

	t.sample = 0
	t.idx++
	if t.idx < len(t.params) { return }

	t.best = t.fastest()
	t.tuning = false
	t.calls = 0
	if t.Log {
		log.Printf(
			"Tuner '%s' chose %d (median %s).", t.name,
			t.params[t.best], median(t.times[t.best]),
		)
	}
}

// Tuning returns true if the tuner is still sampling parameters.
func (t *Tuner) Tuning() bool { return t.enabled && t.tuning }

// SetEnabled turns tuning on or off. A disabled tuner always returns the best
// parameter it has found so far, and a re-enabled tuner starts a new tuning
// pass.
func (t *Tuner) SetEnabled(enabled bool) {
	if enabled && !t.enabled { t.restart() }
	t.enabled = enabled
}

// SetPeriod sets the number of calls between tuning passes.
func (t *Tuner) SetPeriod(period int) {
	if period < 1 { period = 1 }
	t.period = period
}

func (t *Tuner) restart() {
	t.tuning = true
	t.idx, t.sample, t.calls = 0, 0, 0
	for i := range t.times { t.times[i] = t.times[i][:0] }
}

// fastest returns the index of the parameter with the smallest median time.
// Ties go to the earlier parameter.
func (t *Tuner) fastest() int {
	best := 0
	for i := 1; i < len(t.times); i++ {
		if median(t.times[i]) < median(t.times[best]) { best = i }
	}
	return best
}

func median(ts []time.Duration) time.Duration {
	if len(ts) == 0 { return 0 }
	sorted := append([]time.Duration{}, ts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[(len(sorted)-1)/2]
}
