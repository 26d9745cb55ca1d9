package workflow

import (
	"fmt"

	"github.com/mhostetler/wreckit/internal/model"
)

// WrongState is returned when a phase is invoked against an item whose
// current state doesn't match the phase's required input state (spec
// §4.5.3 step 1).
type WrongState struct {
	ItemID   string
	Expected model.State
	Actual   model.State
}

func (e *WrongState) Error() string {
	return fmt.Sprintf("item %s: expected state %s, got %s", e.ItemID, e.Expected, e.Actual)
}

// WriteViolation records that a phase touched a path outside its
// declared write roots (spec §4.5.3 step 7).
type WriteViolation struct {
	ItemID string
	Phase  string
	Paths  []string
}

func (e *WriteViolation) Error() string {
	return fmt.Sprintf("item %s phase %s wrote outside its allowed roots: %v", e.ItemID, e.Phase, e.Paths)
}
