package model

import "os"

// BatchProgress is the durable record of one orchestrator run, written
// to .wreckit/batch-progress.json and reloaded across crashes (spec §3,
// §4.6).
type BatchProgress struct {
	SessionID    string   `json:"session_id"`
	PID          int      `json:"pid"`
	StartedAt    string   `json:"started_at"`
	UpdatedAt    string   `json:"updated_at"`
	Parallel     int      `json:"parallel"`
	QueuedItems  []string `json:"queued_items"`
	CurrentItem  []string `json:"current_item"`
	Completed    []string `json:"completed"`
	Failed       []string `json:"failed"`
	Skipped      []string `json:"skipped"`

	// Healing counters track Doctor auto-repair activity attributed to
	// this session (SUPPLEMENTED: circuit-breaker bookkeeping).
	HealAttempts int `json:"heal_attempts,omitempty"`
	HealFixed    int `json:"heal_fixed,omitempty"`
}

// NewBatchProgress starts a fresh session record for the given queue.
func NewBatchProgress(parallel int, queued []string) *BatchProgress {
	now := NowRFC3339()
	return &BatchProgress{
		SessionID:   NewID(),
		PID:         os.Getpid(),
		StartedAt:   now,
		UpdatedAt:   now,
		Parallel:    parallel,
		QueuedItems: queued,
	}
}

// Touch refreshes UpdatedAt; called after every mutation before persist.
func (b *BatchProgress) Touch() { b.UpdatedAt = NowRFC3339() }

// RunManifest is the per-orchestrator-session summary written alongside
// batch-progress.json once a run terminates (SUPPLEMENTED FEATURES).
type RunManifest struct {
	SessionID   string   `json:"session_id"`
	StartedAt   string   `json:"started_at"`
	FinishedAt  string   `json:"finished_at"`
	Completed   []string `json:"completed"`
	Failed      []string `json:"failed"`
	Skipped     []string `json:"skipped"`
	Warnings    []string `json:"warnings,omitempty"`
}
