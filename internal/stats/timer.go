// Package stats accumulates per-stage elapsed time and unit counts for a
// pipeline run and turns them into averages once the run is over.
package stats

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Stage names one phase of the pipeline.
type Stage string

const (
	Preprocess  Stage = "preprocess"  // counted per document
	Extract     Stage = "extract"     // counted per page
	Postprocess Stage = "postprocess" // counted per page
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{Preprocess, Extract, Postprocess}

var (
	// ErrNoData is reported for a stage that never completed a unit.
	ErrNoData = errors.New("no data")
	// ErrNotStarted is returned by Stop without a matching Start.
	ErrNotStarted = errors.New("stage not started")
	// ErrFinalized is returned when recording into a finalized timer.
	ErrFinalized = errors.New("timer finalized")
)

// Timer accumulates elapsed time per stage. All methods are safe for
// concurrent use so that preprocessing workers can share one timer.
type Timer struct {
	mu        sync.Mutex
	now       func() time.Time
	open      map[Stage]time.Time
	totals    map[Stage]time.Duration
	counts    map[Stage]int
	finalized *Snapshot
}

// NewTimer returns an empty timer using the wall clock.
func NewTimer() *Timer {
	return NewTimerWithClock(time.Now)
}

// NewTimerWithClock returns an empty timer reading time from now.
func NewTimerWithClock(now func() time.Time) *Timer {
	return &Timer{
		now:    now,
		open:   make(map[Stage]time.Time),
		totals: make(map[Stage]time.Duration),
		counts: make(map[Stage]int),
	}
}

// Start opens a measurement window for stage, replacing any open window.
func (t *Timer) Start(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[stage] = t.now()
}

// Stop closes the open window for stage, adds its elapsed time to the
// stage total and counts one unit.
func (t *Timer) Stop(stage Stage) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalized != nil {
		return 0, ErrFinalized
	}
	started, ok := t.open[stage]
	if !ok {
		return 0, fmt.Errorf("%s: %w", stage, ErrNotStarted)
	}
	delete(t.open, stage)

	elapsed := t.now().Sub(started)
	if elapsed < 0 {
		elapsed = 0
	}
	t.totals[stage] += elapsed
	t.counts[stage]++
	return elapsed, nil
}

// Discard closes the open window for stage without counting it.
func (t *Timer) Discard(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.open, stage)
}

// Record adds one unit measured elsewhere, e.g. by a concurrent worker.
func (t *Timer) Record(stage Stage, elapsed time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalized != nil {
		return ErrFinalized
	}
	if elapsed < 0 {
		return fmt.Errorf("%s: negative duration %v", stage, elapsed)
	}
	t.totals[stage] += elapsed
	t.counts[stage]++
	return nil
}

// Count returns the units recorded so far for stage.
func (t *Timer) Count(stage Stage) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[stage]
}

// Finalize freezes the timer and returns its snapshot. Later calls return
// the same snapshot; recording afterwards fails with ErrFinalized.
func (t *Timer) Finalize() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalized != nil {
		return *t.finalized
	}

	stages := make(map[Stage]StageStats, len(t.counts))
	for stage, count := range t.counts {
		stages[stage] = StageStats{Stage: stage, Count: count, Total: t.totals[stage]}
	}
	t.open = make(map[Stage]time.Time)
	t.finalized = &Snapshot{stages: stages}
	return *t.finalized
}

// StageStats holds the accumulated figures of one stage.
type StageStats struct {
	Stage Stage
	Count int
	Total time.Duration
}

// Average divides the accumulated time by the unit count.
func (s StageStats) Average() (time.Duration, error) {
	if s.Count <= 0 {
		return 0, fmt.Errorf("%s: %w", s.Stage, ErrNoData)
	}
	return s.Total / time.Duration(s.Count), nil
}

// Snapshot is the immutable result of Timer.Finalize.
type Snapshot struct {
	stages map[Stage]StageStats
}

// Stats returns the figures for stage; a stage without data has Count 0.
func (s Snapshot) Stats(stage Stage) StageStats {
	if st, ok := s.stages[stage]; ok {
		return st
	}
	return StageStats{Stage: stage}
}

// Count returns the number of completed units of stage.
func (s Snapshot) Count(stage Stage) int {
	return s.Stats(stage).Count
}

// Total returns the accumulated time of stage.
func (s Snapshot) Total(stage Stage) time.Duration {
	return s.Stats(stage).Total
}

// HasData reports whether stage completed at least one unit.
func (s Snapshot) HasData(stage Stage) bool {
	return s.Stats(stage).Count > 0
}

// Average returns the mean duration per unit of stage, or ErrNoData.
func (s Snapshot) Average(stage Stage) (time.Duration, error) {
	return s.Stats(stage).Average()
}

// Averages maps every stage with data to its mean duration.
func (s Snapshot) Averages() map[Stage]time.Duration {
	out := make(map[Stage]time.Duration, len(s.stages))
	for stage, st := range s.stages {
		if avg, err := st.Average(); err == nil {
			out[stage] = avg
		}
	}
	return out
}

// All returns the figures of the standard stages in execution order.
func (s Snapshot) All() []StageStats {
	out := make([]StageStats, 0, len(Stages))
	for _, stage := range Stages {
		out = append(out, s.Stats(stage))
	}
	return out
}
