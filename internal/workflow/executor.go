package workflow

import (
	"context"
	"fmt"

	"github.com/mhostetler/wreckit/internal/agentruntime"
	"github.com/mhostetler/wreckit/internal/gitintegration"
	"github.com/mhostetler/wreckit/internal/model"
)

// PromptRenderer loads and renders a phase's prompt template against an
// item; it is injected so prompt sourcing (templates on disk, JIT skill
// context) stays outside this package's concern.
type PromptRenderer func(phase Phase, item *model.Item) (prompt string, skillTools []string, err error)

// Executor drives a single phase of a single item to completion (spec
// §4.5.3), wiring together the Artifact Store, Git Integration, and
// Agent Runtime components.
type Executor struct {
	Store   StoreLike
	RepoDir string
	Render  PromptRenderer

	// RunAgent defaults to agentruntime.RunAgent; overridable for tests.
	RunAgent func(ctx context.Context, opts *agentruntime.RunOptions) *agentruntime.AgentResult
}

// StoreLike is the subset of *store.Root the executor needs, kept as an
// interface so tests can stub it without a real filesystem.
type StoreLike interface {
	ReadItem(id string) (*model.Item, error)
	WriteItem(it *model.Item) error
	ReadPrd(id string) (*model.PRD, error)
	HasResearchMd(id string) bool
	HasPlanMd(id string) bool
	Append(id, text string) error
}

// NewExecutor wires an Executor with the real agentruntime.RunAgent.
func NewExecutor(store StoreLike, repoDir string, render PromptRenderer) *Executor {
	return &Executor{
		Store:   store,
		RepoDir: repoDir,
		Render:  render,
	}
}

// PhaseResult is what RunPhase returns.
type PhaseResult struct {
	Item     *model.Item
	Advanced bool
	Reason   string
	AgentOut *agentruntime.AgentResult
	// Regressed is set when the item was deliberately moved backward in
	// the state chain rather than failed outright — a rejected critique
	// verdict sending the item from critique back to planned (spec
	// §4.5.4). A regressed item is healthy and stays eligible for
	// re-selection; it must not be treated the same as a phase failure.
	Regressed  bool
	Violations []string
}

// RunPhase executes one phase of one item through the full spec §4.5.3
// sequence: validate state, render prompt, derive allowlist, snapshot
// git, invoke the agent, check write roots, and — on success — apply
// the state transition and persist.
func (e *Executor) RunPhase(ctx context.Context, itemID string, phase Phase, cfg agentruntime.AgentConfig, limits *agentruntime.Limits) (*PhaseResult, error) {
	store := e.Store
	if store == nil {
		return nil, fmt.Errorf("executor has no store configured")
	}

	item, err := store.ReadItem(itemID)
	if err != nil {
		return nil, err
	}

	// Step 1: validate current state matches the phase's input state.
	if item.State != phase.InputState() {
		return nil, &WrongState{ItemID: itemID, Expected: phase.InputState(), Actual: item.State}
	}

	// Step 2: render the phase prompt (plus JIT skill context).
	prompt, skillTools, err := e.Render(phase, item)
	if err != nil {
		return nil, fmt.Errorf("render prompt for %s/%s: %w", itemID, phase, err)
	}

	// Step 3: derive the allowlist — union with skill tools, intersected
	// with the phase default, never a superset.
	allowlist := agentruntime.EffectiveAllowlist(string(phase), nil, skillTools)

	// Step 4: snapshot git status for post-hoc write-root enforcement.
	var before *gitintegration.StatusSnapshot
	if gitintegration.IsRepo(e.RepoDir) {
		before, err = gitintegration.SnapshotStatus(e.RepoDir)
		if err != nil {
			return nil, fmt.Errorf("snapshot git status: %w", err)
		}
	}

	// Step 5: invoke the agent.
	opts := &agentruntime.RunOptions{
		Config:       cfg,
		Cwd:          e.RepoDir,
		Prompt:       prompt,
		AllowedTools: allowlist,
		Limits:       limits,
	}
	result := e.runAgent(ctx, opts)

	// Step 6: on non-success, record last_error, do not advance state.
	if !result.Success {
		msg := agentErrorMessage(result)
		item.LastError = &msg
		item.UpdatedAt = model.NowRFC3339()
		if werr := store.WriteItem(item); werr != nil {
			return nil, werr
		}
		_ = store.Append(itemID, fmt.Sprintf("phase=%s result=failure error=%s", phase, msg))
		return &PhaseResult{Item: item, Advanced: false, Reason: msg, AgentOut: result}, nil
	}

	// Step 7: diff git status; flag writes outside the phase's declared
	// write roots.
	var violations []string
	if before != nil {
		changed, derr := gitintegration.DiffStatus(e.RepoDir, before)
		if derr != nil {
			return nil, fmt.Errorf("diff git status: %w", derr)
		}
		violations = violatesWriteRoots(phase.WriteRoots(itemID), changed)
	}
	if len(violations) > 0 {
		msg := (&WriteViolation{ItemID: itemID, Phase: string(phase), Paths: violations}).Error()
		item.LastError = &msg
		item.UpdatedAt = model.NowRFC3339()
		if werr := store.WriteItem(item); werr != nil {
			return nil, werr
		}
		_ = store.Append(itemID, fmt.Sprintf("phase=%s result=write_violation paths=%v", phase, violations))
		return &PhaseResult{Item: item, Advanced: false, Reason: msg, AgentOut: result, Violations: violations}, nil
	}

	// Step 8: build ValidationContext from on-disk artifacts, apply the
	// transition, persist, append a progress-log entry.
	vctx := ValidationContext{
		HasResearchMd: store.HasResearchMd(itemID),
		HasPlanMd:     store.HasPlanMd(itemID),
	}
	if prd, perr := store.ReadPrd(itemID); perr == nil {
		vctx.Prd = prd
	}
	vctx.HasPr = item.PRURL != nil && *item.PRURL != ""
	vctx.PrMerged = (item.MergeCommitSHA != nil && *item.MergeCommitSHA != "") ||
		(item.RollbackSHA != nil && *item.RollbackSHA != "")

	next, reason := ApplyStateTransition(item, vctx)
	if next == nil {
		item.LastError = &reason
		item.UpdatedAt = model.NowRFC3339()
		if werr := store.WriteItem(item); werr != nil {
			return nil, werr
		}
		_ = store.Append(itemID, fmt.Sprintf("phase=%s result=transition_blocked reason=%s", phase, reason))
		return &PhaseResult{Item: item, Advanced: false, Reason: reason, AgentOut: result}, nil
	}
	next.LastError = nil
	if err := store.WriteItem(next); err != nil {
		return nil, err
	}
	_ = store.Append(itemID, fmt.Sprintf("phase=%s result=success new_state=%s", phase, next.State))
	return &PhaseResult{Item: next, Advanced: true, AgentOut: result}, nil
}

func (e *Executor) runAgent(ctx context.Context, opts *agentruntime.RunOptions) *agentruntime.AgentResult {
	if e.RunAgent != nil {
		return e.RunAgent(ctx, opts)
	}
	return agentruntime.RunAgent(ctx, opts)
}

func agentErrorMessage(r *agentruntime.AgentResult) string {
	if r.Error != nil {
		return r.Error.Error()
	}
	if r.TimedOut {
		return "agent turn timed out"
	}
	return "agent turn failed"
}
