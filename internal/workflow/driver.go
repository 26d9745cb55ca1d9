package workflow

import (
	"context"
	"fmt"

	"github.com/mhostetler/wreckit/internal/agentruntime"
	"github.com/mhostetler/wreckit/internal/model"
)

// phaseForState maps an item's current state to the phase that advances
// it, or "" for states with no associated phase (in_pr, the terminal
// done).
func phaseForState(s model.State) Phase {
	switch s {
	case model.StateRaw:
		return PhaseResearch
	case model.StateResearched:
		return PhasePlan
	case model.StatePlanned:
		return PhaseImplement
	case model.StateImplementing:
		return PhaseCritique
	}
	return ""
}

// AdvanceOne runs exactly one step of an item's workflow — the phase
// that corresponds to its current state — and returns the outcome. This
// is the unit of work the Orchestrator (C6) repeatedly invokes per
// worker iteration (spec §4.6.2 "processes exactly one phase of it,
// advancing one state step").
func (e *Executor) AdvanceOne(ctx context.Context, itemID string, cfg agentruntime.AgentConfig, limits *agentruntime.Limits, mergeCfg PRChecksConfig, driver MergeDriver) (*PhaseResult, error) {
	item, err := e.Store.ReadItem(itemID)
	if err != nil {
		return nil, err
	}

	switch item.State {
	case model.StateCritique:
		return e.RunCritique(ctx, itemID, cfg, limits)
	case model.StateInPR:
		return e.RunMerge(ctx, itemID, mergeCfg, driver)
	case model.StateDone:
		return &PhaseResult{Item: item, Advanced: false, Reason: "item already done"}, nil
	}

	phase := phaseForState(item.State)
	if phase == "" {
		return nil, fmt.Errorf("item %s: no phase defined for state %s", itemID, item.State)
	}
	return e.RunPhase(ctx, itemID, phase, cfg, limits)
}
