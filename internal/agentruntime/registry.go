package agentruntime

import (
	"sync"

	"github.com/mhostetler/wreckit/internal/model"
)

// Handle is one cancellation token registered for the lifetime of a
// single agent turn (spec §9 "cancellation registry").
type Handle struct {
	ID     string
	cancel func()
}

// Cancel invokes the underlying cancel function. Safe to call multiple
// times.
func (h *Handle) Cancel() {
	if h.cancel != nil {
		h.cancel()
	}
}

// Registry is a process-global, mutex-guarded set of cancellation
// handles. Every agent or VM launch registers a handle on entry and
// unregisters it on exit via a scoped-release primitive (spec §4.3.4,
// §9).
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

var global = &Registry{handles: map[string]*Handle{}}

// Global returns the process-wide registry that the CLI's SIGINT
// handler walks.
func Global() *Registry { return global }

// Register adds a handle and returns a release function the caller
// must invoke (typically via defer) once the turn ends, even on panic.
func (r *Registry) Register(cancel func()) (handle *Handle, release func()) {
	h := &Handle{ID: model.NewID(), cancel: cancel}
	r.mu.Lock()
	r.handles[h.ID] = h
	r.mu.Unlock()
	return h, func() {
		r.mu.Lock()
		delete(r.handles, h.ID)
		r.mu.Unlock()
	}
}

// CancelAll walks every registered handle and cancels it; used by the
// CLI's SIGINT handler.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

// Len reports the number of currently registered handles, used by
// tests and the doctor's orphan-detection heuristics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
