package limits

import (
	"errors"
	"testing"
)

func TestCheckIteration_BreachesAtCap(t *testing.T) {
	tr := New(Caps{Iterations: 2, DurationSecs: 9999, ProgressSteps: 9999})
	if err := tr.CheckIteration(); err != nil {
		t.Fatalf("expected the first iteration to pass, got %v", err)
	}
	if err := tr.CheckIteration(); err != nil {
		t.Fatalf("expected the second iteration to pass, got %v", err)
	}
	err := tr.CheckIteration()
	var exceeded *Exceeded
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected the third iteration to raise Exceeded, got %v", err)
	}
	if exceeded.Kind != KindIterations {
		t.Fatalf("expected KindIterations, got %s", exceeded.Kind)
	}
	if exceeded.LimitValue != 2 || exceeded.ActualValue != 3 {
		t.Fatalf("unexpected limit/actual: %v/%v", exceeded.LimitValue, exceeded.ActualValue)
	}
}

func TestCheckProgressStep_BreachesAtCap(t *testing.T) {
	tr := New(Caps{Iterations: 9999, DurationSecs: 9999, ProgressSteps: 1})
	if err := tr.CheckProgressStep(); err != nil {
		t.Fatalf("expected the first progress step to pass, got %v", err)
	}
	err := tr.CheckProgressStep()
	var exceeded *Exceeded
	if !errors.As(err, &exceeded) || exceeded.Kind != KindProgressSteps {
		t.Fatalf("expected a progress-step Exceeded, got %v", err)
	}
}

func TestCheckSpend_NoCapIsUnbounded(t *testing.T) {
	tr := New(Caps{Iterations: 9999, DurationSecs: 9999, ProgressSteps: 9999})
	if err := tr.CheckSpend(1_000_000); err != nil {
		t.Fatalf("expected an unbounded budget to never breach, got %v", err)
	}
}

func TestCheckSpend_BreachesConfiguredBudget(t *testing.T) {
	budget := 1.0
	tr := New(Caps{Iterations: 9999, DurationSecs: 9999, ProgressSteps: 9999, BudgetDollars: &budget})
	if err := tr.CheckSpend(0.5); err != nil {
		t.Fatalf("expected 0.5 to stay under budget, got %v", err)
	}
	err := tr.CheckSpend(0.6)
	var exceeded *Exceeded
	if !errors.As(err, &exceeded) || exceeded.Kind != KindBudgetDollars {
		t.Fatalf("expected a budget Exceeded, got %v", err)
	}
}

func TestNew_FillsDefaultsForUnsetFields(t *testing.T) {
	tr := New(Caps{})
	if tr.caps.Iterations != DefaultCaps().Iterations {
		t.Fatalf("expected default iterations cap, got %d", tr.caps.Iterations)
	}
	if tr.caps.DurationSecs != DefaultCaps().DurationSecs {
		t.Fatalf("expected default duration cap, got %d", tr.caps.DurationSecs)
	}
	if tr.caps.ProgressSteps != DefaultCaps().ProgressSteps {
		t.Fatalf("expected default progress-step cap, got %d", tr.caps.ProgressSteps)
	}
}

func TestSnapshot_ReflectsCounters(t *testing.T) {
	tr := New(DefaultCaps())
	tr.CheckIteration()
	tr.CheckIteration()
	tr.CheckProgressStep()
	snap := tr.Snapshot()
	if snap.Iterations != 2 || snap.ProgressSteps != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
