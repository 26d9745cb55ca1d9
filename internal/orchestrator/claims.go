package orchestrator

import "sync"

// claimRegistry is the in-process mutex-keyed-by-item-id lock spec
// §4.6.2 describes: only one worker goroutine may hold an item's claim
// at a time. Cross-process safety is a separate concern, covered by the
// Artifact Store's index write lock during the claim/release commit
// step.
type claimRegistry struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func newClaimRegistry() *claimRegistry {
	return &claimRegistry{claimed: map[string]bool{}}
}

// TryClaim attempts to take ownership of id; returns false if another
// worker already holds it.
func (r *claimRegistry) TryClaim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed[id] {
		return false
	}
	r.claimed[id] = true
	return true
}

// Release relinquishes ownership of id.
func (r *claimRegistry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, id)
}

// Snapshot returns a copy of the current claim set, safe to read
// concurrently with further Try/Release calls.
func (r *claimRegistry) Snapshot() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.claimed))
	for id := range r.claimed {
		out[id] = true
	}
	return out
}
