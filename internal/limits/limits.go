// Package limits implements the shared tracker that measures
// {iterations, durationSeconds, progressSteps, budgetDollars} during an
// agent turn and raises LimitExceeded on breach (spec §4.8). It has no
// dependency on internal/agentruntime so the runtime can depend on it
// (not the other way around) to enforce caps mid-turn.
package limits

import (
	"fmt"
	"sync"
	"time"
)

// Kind names which cap a breach belongs to.
type Kind string

const (
	KindIterations    Kind = "iterations"
	KindDuration      Kind = "duration_seconds"
	KindProgressSteps Kind = "progress_steps"
	KindBudgetDollars Kind = "budget_dollars"
)

// Exceeded is raised when a unit of work would push a tracked value
// past its configured cap (spec §4.8).
type Exceeded struct {
	Kind        Kind
	LimitValue  float64
	ActualValue float64
}

func (e *Exceeded) Error() string {
	return fmt.Sprintf("limit exceeded: %s capped at %g, actual %g", e.Kind, e.LimitValue, e.ActualValue)
}

// Caps mirrors agentruntime.Limits' shape without importing it, so this
// package stays a leaf dependency. Zero Iterations/DurationSecs/
// ProgressSteps are replaced with the spec §4.8 defaults by New;
// BudgetDollars nil means unbounded.
type Caps struct {
	Iterations    int
	DurationSecs  int
	ProgressSteps int
	BudgetDollars *float64
}

// DefaultCaps matches spec §4.8's stated defaults.
func DefaultCaps() Caps {
	return Caps{Iterations: 100, DurationSecs: 3600, ProgressSteps: 1000}
}

// Tracker measures one agent turn's consumption against its configured
// caps. The zero value is not usable; build one with New.
type Tracker struct {
	caps  Caps
	start time.Time

	mu            sync.Mutex
	iterations    int
	progressSteps int
	spentDollars  float64
}

// New builds a Tracker seeded with caps, falling back to DefaultCaps
// for any unset iteration/duration/progress-step field.
func New(c Caps) *Tracker {
	d := DefaultCaps()
	if c.Iterations <= 0 {
		c.Iterations = d.Iterations
	}
	if c.DurationSecs <= 0 {
		c.DurationSecs = d.DurationSecs
	}
	if c.ProgressSteps <= 0 {
		c.ProgressSteps = d.ProgressSteps
	}
	return &Tracker{caps: c, start: time.Now()}
}

// CheckIteration records one loop iteration and evaluates the
// iteration and duration caps (spec §4.8: "before each unit of work").
func (t *Tracker) CheckIteration() error {
	t.mu.Lock()
	t.iterations++
	n := t.iterations
	t.mu.Unlock()

	if n > t.caps.Iterations {
		return &Exceeded{Kind: KindIterations, LimitValue: float64(t.caps.Iterations), ActualValue: float64(n)}
	}
	return t.checkDuration()
}

// CheckProgressStep records one tool call / progress step and
// evaluates the progress-step and duration caps.
func (t *Tracker) CheckProgressStep() error {
	t.mu.Lock()
	t.progressSteps++
	n := t.progressSteps
	t.mu.Unlock()

	if n > t.caps.ProgressSteps {
		return &Exceeded{Kind: KindProgressSteps, LimitValue: float64(t.caps.ProgressSteps), ActualValue: float64(n)}
	}
	return t.checkDuration()
}

// CheckSpend records a dollar amount spent and evaluates the optional
// budget cap.
func (t *Tracker) CheckSpend(dollars float64) error {
	t.mu.Lock()
	t.spentDollars += dollars
	spent := t.spentDollars
	t.mu.Unlock()

	if t.caps.BudgetDollars != nil && spent > *t.caps.BudgetDollars {
		return &Exceeded{Kind: KindBudgetDollars, LimitValue: *t.caps.BudgetDollars, ActualValue: spent}
	}
	return t.checkDuration()
}

func (t *Tracker) checkDuration() error {
	elapsed := time.Since(t.start).Seconds()
	if elapsed > float64(t.caps.DurationSecs) {
		return &Exceeded{Kind: KindDuration, LimitValue: float64(t.caps.DurationSecs), ActualValue: elapsed}
	}
	return nil
}

// Snapshot is a point-in-time read of a Tracker's counters, useful for
// reporting in AgentResult.
type Snapshot struct {
	Iterations    int
	DurationSecs  float64
	ProgressSteps int
	SpentDollars  float64
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Iterations:    t.iterations,
		DurationSecs:  time.Since(t.start).Seconds(),
		ProgressSteps: t.progressSteps,
		SpentDollars:  t.spentDollars,
	}
}
