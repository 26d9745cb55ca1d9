// Package workflow implements the Workflow Engine (spec §4.5): the
// per-item state machine, its transition validator, and the phase
// executor that drives one phase of one item to completion.
package workflow

import "github.com/mhostetler/wreckit/internal/model"

// ValidationContext carries the on-disk facts a transition precondition
// checks against (spec §4.5.2).
type ValidationContext struct {
	HasResearchMd bool
	HasPlanMd     bool
	Prd           *model.PRD
	HasPr         bool
	PrMerged      bool
}

// TransitionResult is what ValidateTransition returns.
type TransitionResult struct {
	Valid  bool
	Reason string
}

// ValidateTransition checks whether current -> target satisfies its
// precondition (spec §4.5.2 table). It never mutates anything.
func ValidateTransition(current, target model.State, ctx ValidationContext) TransitionResult {
	next, ok := current.Next()
	if !ok || next != target {
		return TransitionResult{Reason: "not the next state in the chain"}
	}
	switch target {
	case model.StateResearched:
		if !ctx.HasResearchMd {
			return TransitionResult{Reason: "research.md does not exist"}
		}
	case model.StatePlanned:
		if !ctx.HasPlanMd {
			return TransitionResult{Reason: "plan.md does not exist"}
		}
		if ctx.Prd == nil || len(ctx.Prd.UserStories) == 0 {
			return TransitionResult{Reason: "prd does not parse or has zero stories"}
		}
	case model.StateImplementing:
		if ctx.Prd == nil || len(ctx.Prd.UserStories) == 0 {
			return TransitionResult{Reason: "prd has zero stories"}
		}
		if !anyStoryPending(ctx.Prd) {
			return TransitionResult{Reason: "no story is pending"}
		}
	case model.StateCritique:
		if ctx.Prd == nil || !ctx.Prd.AllStoriesDone() {
			return TransitionResult{Reason: "not all stories are done"}
		}
		if !ctx.HasPr {
			return TransitionResult{Reason: "no pr open"}
		}
	case model.StateInPR:
		// Entering in_pr requires critique approval; that gate is
		// evaluated by the critique loop (§4.5.4), not here.
	case model.StateDone:
		if !ctx.PrMerged {
			return TransitionResult{Reason: "pr not merged and no direct-merge sha recorded"}
		}
	}
	return TransitionResult{Valid: true}
}

func anyStoryPending(p *model.PRD) bool {
	for _, s := range p.UserStories {
		if s.Status == model.StoryPending {
			return true
		}
	}
	return false
}

// ApplyStateTransition is pure: given the current item and context, it
// returns either the next item (copy, not mutated in place) or a
// reason the transition cannot happen (spec §4.5.2
// applyStateTransition).
func ApplyStateTransition(item *model.Item, ctx ValidationContext) (nextItem *model.Item, reason string) {
	next, ok := item.State.Next()
	if !ok {
		return nil, "item is already in a terminal state"
	}
	result := ValidateTransition(item.State, next, ctx)
	if !result.Valid {
		return nil, result.Reason
	}
	cp := *item
	cp.State = next
	return &cp, ""
}
