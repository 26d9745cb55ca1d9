package orchestrator

import (
	"context"
	"sync"

	"github.com/mhostetler/wreckit/internal/doctor"
)

// AutoRepairMode gates which Doctor fixes the Orchestrator may run
// unattended after a phase failure (spec §4.7.3).
type AutoRepairMode string

const (
	AutoRepairDisabled AutoRepairMode = "false"
	AutoRepairSafeOnly AutoRepairMode = "safe-only"
	AutoRepairFull     AutoRepairMode = "true"
)

// Healer invokes the Doctor after a phase failure matching a known
// healable diagnostic, bounded by MaxRetries per item per session
// (spec §4.7.3).
type Healer struct {
	Scanner    *doctor.Scanner
	Fixer      *doctor.Fixer
	Mode       AutoRepairMode
	MaxRetries int

	mu       sync.Mutex
	attempts map[string]int
}

// NewHealer builds a Healer; maxRetries <= 0 defaults to 1.
func NewHealer(scanner *doctor.Scanner, fixer *doctor.Fixer, mode AutoRepairMode, maxRetries int) *Healer {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &Healer{
		Scanner:    scanner,
		Fixer:      fixer,
		Mode:       mode,
		MaxRetries: maxRetries,
		attempts:   map[string]int{},
	}
}

// Heal scans for diagnostics scoped to itemID and applies the ones the
// configured mode permits. attempted reports whether a heal was even
// tried (false once MaxRetries or a disabled mode short-circuits it);
// fixed reports whether at least one repair succeeded.
func (h *Healer) Heal(ctx context.Context, itemID string) (attempted, fixed bool) {
	if h == nil || h.Mode == AutoRepairDisabled || h.Mode == "" {
		return false, false
	}

	h.mu.Lock()
	if h.attempts[itemID] >= h.MaxRetries {
		h.mu.Unlock()
		return false, false
	}
	h.attempts[itemID]++
	h.mu.Unlock()

	diags, err := h.Scanner.Diagnose(ctx)
	if err != nil {
		return true, false
	}

	var eligible []doctor.Diagnostic
	for _, d := range diags {
		if d.ItemID != itemID || !doctor.Fixable(d.Code) {
			continue
		}
		if h.Mode == AutoRepairSafeOnly && !doctor.Safe(d.Code) {
			continue
		}
		eligible = append(eligible, d)
	}
	if len(eligible) == 0 {
		return true, false
	}

	_, results := h.Fixer.Fix(ctx, eligible)
	for _, r := range results {
		if r.Fixed {
			fixed = true
		}
	}
	return true, fixed
}
