package orchestrator

import (
	"github.com/mhostetler/wreckit/internal/model"
	"github.com/mhostetler/wreckit/internal/procutil"
)

// IsStale reports whether bp belongs to a process that is no longer
// running, the signal used to decide whether a prior session's claims
// and queued items may be reclaimed on resume (spec §4.6.3).
func IsStale(bp *model.BatchProgress) bool {
	return !procutil.PIDAlive(bp.PID)
}

// ReclaimQueue returns the subset of a stale session's queued items
// that are not yet completed, failed, or skipped — the work a resumed
// run should re-offer to the scheduler.
func ReclaimQueue(bp *model.BatchProgress) []string {
	done := map[string]bool{}
	for _, id := range bp.Completed {
		done[id] = true
	}
	for _, id := range bp.Failed {
		done[id] = true
	}
	for _, id := range bp.Skipped {
		done[id] = true
	}
	var out []string
	for _, id := range bp.QueuedItems {
		if !done[id] {
			out = append(out, id)
		}
	}
	return out
}
