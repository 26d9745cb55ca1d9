package workflow

import (
	"context"
	"fmt"

	"github.com/mhostetler/wreckit/internal/agentruntime"
	"github.com/mhostetler/wreckit/internal/model"
)

// RunCritique drives the critique phase (spec §4.5.4). Unlike the other
// phases it does not follow the generic chain-advance of
// ApplyStateTransition: an approved verdict advances to in_pr, a
// rejected verdict regresses the item back to planned, and a malformed
// verdict is a failure with no state change at all.
func (e *Executor) RunCritique(ctx context.Context, itemID string, cfg agentruntime.AgentConfig, limits *agentruntime.Limits) (*PhaseResult, error) {
	store := e.Store
	if store == nil {
		return nil, fmt.Errorf("executor has no store configured")
	}

	item, err := store.ReadItem(itemID)
	if err != nil {
		return nil, err
	}
	if item.State != model.StateCritique {
		return nil, &WrongState{ItemID: itemID, Expected: model.StateCritique, Actual: item.State}
	}

	prompt, skillTools, err := e.Render(PhaseCritique, item)
	if err != nil {
		return nil, fmt.Errorf("render critique prompt for %s: %w", itemID, err)
	}
	allowlist := agentruntime.EffectiveAllowlist(string(PhaseCritique), nil, skillTools)

	opts := &agentruntime.RunOptions{
		Config:       cfg,
		Cwd:          e.RepoDir,
		Prompt:       prompt,
		AllowedTools: allowlist,
		Limits:       limits,
	}
	result := e.runAgent(ctx, opts)
	if !result.Success {
		msg := agentErrorMessage(result)
		item.LastError = &msg
		item.UpdatedAt = model.NowRFC3339()
		if werr := store.WriteItem(item); werr != nil {
			return nil, werr
		}
		_ = store.Append(itemID, fmt.Sprintf("phase=critique result=failure error=%s", msg))
		return &PhaseResult{Item: item, Advanced: false, Reason: msg, AgentOut: result}, nil
	}

	verdict, verr := ParseCritiqueVerdict(result.Output)
	if verr != nil {
		msg := verr.Error()
		item.LastError = &msg
		item.UpdatedAt = model.NowRFC3339()
		if werr := store.WriteItem(item); werr != nil {
			return nil, werr
		}
		_ = store.Append(itemID, fmt.Sprintf("phase=critique result=malformed_verdict raw=%q", result.Output))
		return &PhaseResult{Item: item, Advanced: false, Reason: msg, AgentOut: result}, nil
	}

	cp := *item
	if verdict.Approved() {
		cp.State = model.StateInPR
		cp.LastError = nil
	} else {
		cp.State = model.StatePlanned
		cp.LastError = nil
	}
	cp.UpdatedAt = model.NowRFC3339()
	if err := store.WriteItem(&cp); err != nil {
		return nil, err
	}
	_ = store.Append(itemID, fmt.Sprintf("phase=critique result=%s reason=%q critique=%q", verdict.Status, verdict.Reason, verdict.Critique))
	return &PhaseResult{
		Item:      &cp,
		Advanced:  verdict.Approved(),
		Reason:    verdict.Reason,
		AgentOut:  result,
		Regressed: !verdict.Approved(),
	}, nil
}
