package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mhostetler/wreckit/internal/gitintegration"
	"github.com/mhostetler/wreckit/internal/model"
)

// PRChecksConfig configures the PR-check policy run before a merge
// (spec §4.2 "PR-check policy").
type PRChecksConfig struct {
	Commands               []string
	PerCommandTimeout      time.Duration
	SecretScan             bool
	RequireAllStoriesDone  bool
	AllowUnsafeDirectMerge bool
	DirectMerge            bool
	BaseBranch             string
	MergeMode              gitintegration.MergeMode
}

func (c PRChecksConfig) timeout() time.Duration {
	if c.PerCommandTimeout <= 0 {
		return 5 * time.Minute
	}
	return c.PerCommandTimeout
}

// MergeDriver is the subset of *gitintegration.Driver RunMerge needs,
// kept as an interface so it can be stubbed in tests.
type MergeDriver interface {
	OpenPR(ctx context.Context, head, base, title, body string) (*gitintegration.PRResult, error)
	MergePR(ctx context.Context, number int, mode gitintegration.MergeMode) (*gitintegration.MergeResult, error)
	CleanupBranch(ctx context.Context, dir, branch string, deleteRemote bool) error
}

// RunMerge drives entering in_pr through to done (spec §4.5.5): it runs
// the configured PR checks, then either opens a PR or performs a direct
// merge, and advances the item to done on success.
func (e *Executor) RunMerge(ctx context.Context, itemID string, cfg PRChecksConfig, driver MergeDriver) (*PhaseResult, error) {
	store := e.Store
	if store == nil {
		return nil, fmt.Errorf("executor has no store configured")
	}
	item, err := store.ReadItem(itemID)
	if err != nil {
		return nil, err
	}
	if item.State != model.StateInPR {
		return nil, &WrongState{ItemID: itemID, Expected: model.StateInPR, Actual: item.State}
	}

	if cfg.RequireAllStoriesDone {
		prd, perr := store.ReadPrd(itemID)
		if perr != nil || !prd.AllStoriesDone() {
			return e.failMerge(store, item, "not all prd stories are done")
		}
	}

	if len(cfg.Commands) > 0 {
		if _, cerr := gitintegration.RunChecks(ctx, e.RepoDir, cfg.Commands, cfg.timeout()); cerr != nil {
			return e.failMerge(store, item, fmt.Sprintf("pr checks failed: %v", cerr))
		}
	}

	if cfg.SecretScan {
		branch := ""
		if item.Branch != nil {
			branch = *item.Branch
		}
		if branch != "" {
			diff, derr := e.diffAgainstBase(cfg.BaseBranch, branch)
			if derr == nil {
				if hits := gitintegration.SecretScan(diff); len(hits) > 0 {
					return e.failMerge(store, item, fmt.Sprintf("secret scan found %d candidate(s)", len(hits)))
				}
			}
		}
	}

	checksPassed := true
	cp := *item
	cp.ChecksPassed = &checksPassed
	now := model.NowRFC3339()

	if cfg.DirectMerge {
		if !cfg.AllowUnsafeDirectMerge {
			return e.failMerge(store, item, "direct merge requested but allow_unsafe_direct_merge is false")
		}
		branch := ""
		if item.Branch != nil {
			branch = *item.Branch
		}
		rollbackSha, mergeSha, merr := gitintegration.DirectMerge(e.RepoDir, cfg.BaseBranch, branch)
		if merr != nil {
			return e.failMerge(store, item, fmt.Sprintf("direct merge failed: %v", merr))
		}
		cp.RollbackSHA = &rollbackSha
		cp.MergeCommitSHA = &mergeSha
		cp.MergedAt = &now
	} else {
		branch := ""
		if item.Branch != nil {
			branch = *item.Branch
		}
		pr, perr := driver.OpenPR(ctx, branch, cfg.BaseBranch, item.Title, item.Overview)
		if perr != nil {
			return e.failMerge(store, item, fmt.Sprintf("open pr failed: %v", perr))
		}
		cp.PRURL = &pr.URL
		cp.PRNumber = &pr.Number

		merged, merr := driver.MergePR(ctx, pr.Number, cfg.MergeMode)
		if merr != nil {
			return e.failMerge(store, &cp, fmt.Sprintf("merge pr failed: %v", merr))
		}
		cp.MergeCommitSHA = &merged.SHA
		cp.MergedAt = &now

		if branch != "" {
			if cerr := driver.CleanupBranch(ctx, e.RepoDir, branch, false); cerr != nil {
				_ = store.Append(itemID, fmt.Sprintf("phase=pr result=cleanup_branch_failed branch=%s error=%v", branch, cerr))
			}
		}
	}

	vctx := ValidationContext{
		PrMerged: (cp.MergeCommitSHA != nil && *cp.MergeCommitSHA != "") ||
			(cp.RollbackSHA != nil && *cp.RollbackSHA != ""),
	}
	next, reason := ApplyStateTransition(&cp, vctx)
	if next == nil {
		cp.LastError = &reason
		cp.UpdatedAt = now
		if werr := store.WriteItem(&cp); werr != nil {
			return nil, werr
		}
		_ = store.Append(itemID, fmt.Sprintf("phase=pr result=transition_blocked reason=%s", reason))
		return &PhaseResult{Item: &cp, Advanced: false, Reason: reason}, nil
	}
	next.CompletedAt = &now
	next.LastError = nil
	next.UpdatedAt = now
	if err := store.WriteItem(next); err != nil {
		return nil, err
	}
	_ = store.Append(itemID, fmt.Sprintf("phase=pr result=success direct_merge=%v", cfg.DirectMerge))
	return &PhaseResult{Item: next, Advanced: true}, nil
}

func (e *Executor) failMerge(store StoreLike, item *model.Item, reason string) (*PhaseResult, error) {
	item.LastError = &reason
	item.UpdatedAt = model.NowRFC3339()
	if err := store.WriteItem(item); err != nil {
		return nil, err
	}
	_ = store.Append(item.ID, fmt.Sprintf("phase=pr result=failure error=%s", reason))
	return &PhaseResult{Item: item, Advanced: false, Reason: reason}, nil
}

func (e *Executor) diffAgainstBase(base, branch string) (string, error) {
	if base == "" || branch == "" {
		return "", fmt.Errorf("missing base or branch")
	}
	return gitintegration.Diff(e.RepoDir, base)
}
