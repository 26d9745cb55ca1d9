package workflow

import "testing"

func TestDelayForAttempt_GrowsExponentially(t *testing.T) {
	cfg := DefaultBackoffConfig()
	d1 := DelayForAttempt(1, cfg, "")
	d2 := DelayForAttempt(2, cfg, "")
	d3 := DelayForAttempt(3, cfg, "")
	if !(d1 < d2 && d2 < d3) {
		t.Fatalf("expected strictly increasing delays, got %v %v %v", d1, d2, d3)
	}
}

func TestDelayForAttempt_CapsAtMaxDelay(t *testing.T) {
	cfg := BackoffConfig{InitialDelayMS: 1000, BackoffFactor: 10, MaxDelayMS: 5000}
	d := DelayForAttempt(10, cfg, "")
	if d.Milliseconds() > 5000 {
		t.Fatalf("expected delay capped at 5000ms, got %dms", d.Milliseconds())
	}
}

func TestDelayForAttempt_JitterIsDeterministicForSameSeed(t *testing.T) {
	cfg := DefaultBackoffConfig()
	cfg.Jitter = true
	d1 := DelayForAttempt(3, cfg, "item-1:research:3")
	d2 := DelayForAttempt(3, cfg, "item-1:research:3")
	if d1 != d2 {
		t.Fatalf("expected identical delay for identical seed: %v vs %v", d1, d2)
	}
}

func TestDelayForAttempt_DifferentSeedsDiffer(t *testing.T) {
	cfg := DefaultBackoffConfig()
	cfg.Jitter = true
	d1 := DelayForAttempt(3, cfg, "item-1:research:3")
	d2 := DelayForAttempt(3, cfg, "item-2:research:3")
	if d1 == d2 {
		t.Fatalf("expected different delays for different seeds (flaky but astronomically unlikely)")
	}
}

func TestRetrySeed_IsStable(t *testing.T) {
	if RetrySeed("item-1", "research", 2) != RetrySeed("item-1", "research", 2) {
		t.Fatalf("expected RetrySeed to be deterministic")
	}
}
