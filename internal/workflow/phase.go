package workflow

import (
	"strings"

	"github.com/mhostetler/wreckit/internal/model"
)

// Phase names the five agent-driven phases of an item's lifecycle
// (spec GLOSSARY "Phase").
type Phase string

const (
	PhaseResearch  Phase = "research"
	PhasePlan      Phase = "plan"
	PhaseImplement Phase = "implement"
	PhaseCritique  Phase = "critique"
	PhasePR        Phase = "pr"
)

// InputState is the item state a phase expects to run against (spec
// §4.5.3 step 1).
func (p Phase) InputState() model.State {
	switch p {
	case PhaseResearch:
		return model.StateRaw
	case PhasePlan:
		return model.StateResearched
	case PhaseImplement:
		return model.StatePlanned
	case PhaseCritique:
		return model.StateImplementing
	case PhasePR:
		return model.StateCritique
	}
	return ""
}

// WriteRoots returns the path prefixes a phase may write under, or nil
// for unrestricted (implement may write anywhere, spec §4.5.3 step 7).
func (p Phase) WriteRoots(itemID string) []string {
	itemDir := "items/" + itemID
	switch p {
	case PhaseResearch, PhasePlan:
		return []string{itemDir}
	case PhaseImplement:
		return nil // may write anywhere
	case PhaseCritique, PhasePR:
		return []string{itemDir}
	}
	return []string{"media/"}
}

// violatesWriteRoots reports which changed paths fall outside roots.
// A nil roots slice means unrestricted (never violated).
func violatesWriteRoots(roots []string, changed []string) []string {
	if roots == nil {
		return nil
	}
	var bad []string
	for _, path := range changed {
		allowed := false
		for _, root := range roots {
			if strings.HasPrefix(path, root) {
				allowed = true
				break
			}
		}
		if !allowed {
			bad = append(bad, path)
		}
	}
	return bad
}
