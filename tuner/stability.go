package tuner

import (
	"math"
	"sync"
	"time"

	"github.com/pitchfolk/tonic/algorithms/chroma"
	"github.com/pitchfolk/tonic/algorithms/common"
)

// TrackerState describes how settled the classic path currently is.
type TrackerState int

const (
	StateSilent      TrackerState = iota // no recent estimates
	StateTentative                       // first sighting of a note
	StateStabilizing                     // note agreed on, pitch still wobbling
	StateStable                          // note confirmed and holding
)

func (s TrackerState) String() string {
	switch s {
	case StateSilent:
		return "silent"
	case StateTentative:
		return "tentative"
	case StateStabilizing:
		return "stabilizing"
	case StateStable:
		return "stable"
	default:
		return "unknown"
	}
}

// StabilityTracker applies temporal hysteresis to mapped note estimates so
// the displayed note does not flicker between neighbors. It keeps a short
// ring of recent estimates, requires repeated agreement before calling a note
// stable, and requires stronger agreement before switching away from an
// accepted note. A silence timer resets the tracker when no estimate arrives
// within the configured timeout.
//
// Observe, Current, Reset and Stop may be called from different goroutines.
type StabilityTracker struct {
	mu      sync.Mutex
	params  StabilityParams
	history *common.Ring[chroma.NotePitch]
	state   TrackerState

	accepted string           // accepted note name, "" while silent
	current  chroma.NotePitch // last estimate matching the accepted note
	counter  int              // consecutive ring majorities for the accepted note

	timer *time.Timer
	gen   uint64 // invalidates timers armed before a reset or Stop

	onSilence func()

	freqs, cents, weights []float64
}

// NewStabilityTracker creates a tracker with the given hysteresis settings.
// Non-positive fields fall back to the defaults. onSilence, if non-nil, runs
// on the timer goroutine when the silence timeout resets the tracker.
func NewStabilityTracker(params StabilityParams, onSilence func()) *StabilityTracker {
	defaults := DefaultStabilityParams()
	if params.HistorySize <= 0 {
		params.HistorySize = defaults.HistorySize
	}
	if params.StableCount <= 0 {
		params.StableCount = defaults.StableCount
	}
	if params.StableMaxCents <= 0 {
		params.StableMaxCents = defaults.StableMaxCents
	}
	if params.SwitchCount <= 0 {
		params.SwitchCount = defaults.SwitchCount
	}
	if params.SwitchMaxCents <= 0 {
		params.SwitchMaxCents = defaults.SwitchMaxCents
	}
	if params.SilenceTimeoutMS <= 0 {
		params.SilenceTimeoutMS = defaults.SilenceTimeoutMS
	}

	return &StabilityTracker{
		params:    params,
		history:   common.NewRing[chroma.NotePitch](params.HistorySize),
		onSilence: onSilence,
		freqs:     make([]float64, 0, params.HistorySize),
		cents:     make([]float64, 0, params.HistorySize),
		weights:   make([]float64, 0, params.HistorySize),
	}
}

// Observe feeds one mapped estimate and returns the note the tracker stands
// behind along with its stability. The returned pitch carries recency
// weighted averages of frequency and cents over the retained history, so the
// display moves smoothly even when raw estimates jitter.
func (st *StabilityTracker) Observe(np chroma.NotePitch) (chroma.NotePitch, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.history.Push(np)
	st.rearmLocked()

	avgFreq, avgCents := st.averagesLocked()
	candidate, occurrences := st.majorityLocked()

	switch {
	case st.accepted == "":
		st.accepted = np.Note
		st.current = np
		st.counter = 1
		st.state = StateTentative

	case candidate == st.accepted:
		st.counter++
		if np.Note == st.accepted {
			st.current = np
		}
		if st.counter >= st.params.StableCount {
			if math.Abs(avgCents) < st.params.StableMaxCents {
				st.state = StateStable
			} else {
				st.state = StateStabilizing
			}
		}

	default:
		st.counter = 0
		if occurrences >= st.params.SwitchCount && math.Abs(avgCents) < st.params.SwitchMaxCents {
			st.accepted = candidate
			st.counter = occurrences
			st.current = st.latestLocked(candidate)
			st.state = StateStable
		} else if st.state == StateStable {
			st.state = StateStabilizing
		}
	}

	display := st.current
	display.FrequencyHz = avgFreq
	display.Cents = avgCents
	return display, st.state == StateStable
}

// Current returns the accepted note and whether it is stable. ok is false
// while the tracker is silent. Unlike Observe, the returned pitch carries the
// raw values of the last matching estimate.
func (st *StabilityTracker) Current() (np chroma.NotePitch, stable, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.accepted == "" {
		return chroma.NotePitch{}, false, false
	}
	return st.current, st.state == StateStable, true
}

// State returns the current tracker state.
func (st *StabilityTracker) State() TrackerState {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Reset clears the history and returns the tracker to silent without firing
// the silence callback.
func (st *StabilityTracker) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.gen++
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.resetLocked()
}

// Stop cancels the silence timer and invalidates any pending fire. The
// tracker can be reused after Stop; a new Observe re-arms the timer.
func (st *StabilityTracker) Stop() {
	st.Reset()
}

func (st *StabilityTracker) rearmLocked() {
	if st.timer != nil {
		st.timer.Stop()
	}
	st.gen++
	gen := st.gen
	st.timer = time.AfterFunc(st.params.SilenceTimeout(), func() { st.silence(gen) })
}

// silence runs on the timer goroutine. Stale fires lose the generation check
// and return without touching state.
func (st *StabilityTracker) silence(gen uint64) {
	st.mu.Lock()
	if gen != st.gen || st.state == StateSilent {
		st.mu.Unlock()
		return
	}
	st.resetLocked()
	cb := st.onSilence
	st.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (st *StabilityTracker) resetLocked() {
	st.history.Clear()
	st.accepted = ""
	st.current = chroma.NotePitch{}
	st.counter = 0
	st.state = StateSilent
}

// averagesLocked computes recency weighted means over the history, the
// newest entry carrying the highest weight.
func (st *StabilityTracker) averagesLocked() (freq, cents float64) {
	n := st.history.Len()
	st.freqs = st.freqs[:0]
	st.cents = st.cents[:0]
	st.weights = st.weights[:0]
	for i := 0; i < n; i++ {
		e := st.history.At(i)
		st.freqs = append(st.freqs, e.FrequencyHz)
		st.cents = append(st.cents, e.Cents)
		st.weights = append(st.weights, float64(i+1))
	}
	return common.WeightedMean(st.freqs, st.weights), common.WeightedMean(st.cents, st.weights)
}

// majorityLocked returns the most frequent note in the history and its
// count. Ties go to the most recently observed of the tied notes.
func (st *StabilityTracker) majorityLocked() (string, int) {
	best, bestCount := "", 0
	for i := st.history.Len() - 1; i >= 0; i-- {
		name := st.history.At(i).Note
		count := 0
		for j := 0; j < st.history.Len(); j++ {
			if st.history.At(j).Note == name {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = name, count
		}
	}
	return best, bestCount
}

// latestLocked returns the newest history entry carrying the given note.
func (st *StabilityTracker) latestLocked(name string) chroma.NotePitch {
	for i := st.history.Len() - 1; i >= 0; i-- {
		if e := st.history.At(i); e.Note == name {
			return e
		}
	}
	return chroma.NotePitch{Note: name}
}
