// Package orchestrator implements the Orchestrator (spec §4.6): a
// worker pool that advances the set of non-done items through as many
// phase transitions as possible, honoring dependencies, per-item
// claims, and failure policy.
package orchestrator

import (
	"sort"

	"github.com/mhostetler/wreckit/internal/model"
)

// Runnable reports whether entry can be picked up by a worker: not
// done, every dependency present and done, and not already claimed
// (spec §4.6.1).
func Runnable(entry model.IndexEntry, doneSet map[string]bool, present map[string]bool, claimed map[string]bool) bool {
	if entry.State == model.StateDone {
		return false
	}
	if claimed[entry.ID] {
		return false
	}
	for _, dep := range entry.DependsOn {
		if !present[dep] || !doneSet[dep] {
			return false
		}
	}
	return true
}

// SelectNextRunnable returns the lowest-id runnable entry not in
// skip, or "", false if none qualify (spec §4.6.2 "ascending by id").
func SelectNextRunnable(entries []model.IndexEntry, claimed map[string]bool, skip map[string]bool) (string, bool) {
	doneSet := map[string]bool{}
	present := map[string]bool{}
	for _, e := range entries {
		present[e.ID] = true
		if e.State == model.StateDone {
			doneSet[e.ID] = true
		}
	}
	sorted := append([]model.IndexEntry{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, e := range sorted {
		if skip[e.ID] {
			continue
		}
		if Runnable(e, doneSet, present, claimed) {
			return e.ID, true
		}
	}
	return "", false
}

// BlockedDependents returns the ids whose dependency chain includes
// failedID, directly or transitively — surfaced to the session as
// "blocked" once failedID fails (spec §4.6.3).
func BlockedDependents(entries []model.IndexEntry, failedID string) []string {
	blocked := map[string]bool{failedID: true}
	changed := true
	for changed {
		changed = false
		for _, e := range entries {
			if blocked[e.ID] {
				continue
			}
			for _, dep := range e.DependsOn {
				if blocked[dep] {
					blocked[e.ID] = true
					changed = true
					break
				}
			}
		}
	}
	delete(blocked, failedID)
	out := make([]string, 0, len(blocked))
	for id := range blocked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
