package doctor

import (
	"context"
	"testing"

	"github.com/mhostetler/wreckit/internal/model"
)

func (f *fakeStore) WriteItem(it *model.Item) error {
	f.items[it.ID] = it
	return nil
}

func (f *fakeStore) WritePrd(id string, p *model.PRD) error {
	f.prds[id] = p
	return nil
}

func (f *fakeStore) RebuildIndex() (*model.Index, error) {
	entries, _ := f.ScanItems()
	f.index = &model.Index{Items: entries}
	return f.index, nil
}

type fakeVMKiller struct {
	killed []string
}

func (k *fakeVMKiller) KillVM(ctx context.Context, name string) error {
	k.killed = append(k.killed, name)
	return nil
}

func TestFix_IndexStale_RebuildsIndex(t *testing.T) {
	fs := newFakeStore()
	it := model.NewItem("item-1", "t", "")
	fs.items["item-1"] = it
	fs.index = &model.Index{} // stale: empty, disagrees with scan

	f := &Fixer{Store: fs, RepoDir: t.TempDir()}
	manifest, results := f.Fix(context.Background(), []Diagnostic{
		{Code: CodeIndexStale, Severity: SeverityWarning, Fixable: true},
	})
	if len(results) != 1 || !results[0].Fixed {
		t.Fatalf("expected the index-stale fix to succeed, got %+v", results)
	}
	if len(fs.index.Items) != 1 {
		t.Fatalf("expected the index to be rebuilt with 1 item, got %d", len(fs.index.Items))
	}
	_ = manifest
}

func TestFix_StateFileMismatch_DowngradesToHighestSatisfiedState(t *testing.T) {
	fs := newFakeStore()
	it := model.NewItem("item-1", "t", "")
	it.State = model.StatePlanned
	fs.items["item-1"] = it
	fs.hasResearch["item-1"] = true
	fs.hasPlan["item-1"] = false // planned but no plan.md

	f := &Fixer{Store: fs, RepoDir: t.TempDir()}
	_, results := f.Fix(context.Background(), []Diagnostic{
		{Code: CodeStateFileMismatch, ItemID: "item-1", Fixable: true},
	})
	if len(results) != 1 || !results[0].Fixed {
		t.Fatalf("expected the state-file-mismatch fix to succeed, got %+v", results)
	}
	if fs.items["item-1"].State != model.StateResearched {
		t.Fatalf("expected item to be downgraded to researched, got %s", fs.items["item-1"].State)
	}
}

func TestFix_PrdMissingBranchName_SetsConventionalBranch(t *testing.T) {
	fs := newFakeStore()
	fs.prds["item-1"] = &model.PRD{ID: "item-1"}

	f := &Fixer{Store: fs, RepoDir: t.TempDir()}
	_, results := f.Fix(context.Background(), []Diagnostic{
		{Code: CodePrdMissingBranchName, ItemID: "item-1", Fixable: true},
	})
	if len(results) != 1 || !results[0].Fixed {
		t.Fatalf("expected the fix to succeed, got %+v", results)
	}
	if fs.prds["item-1"].BranchName != "wreckit/item-1" {
		t.Fatalf("unexpected branch name: %q", fs.prds["item-1"].BranchName)
	}
}

func TestFix_PrdInvalidPriority_Clamps(t *testing.T) {
	fs := newFakeStore()
	fs.prds["item-1"] = &model.PRD{
		ID:          "item-1",
		UserStories: []model.UserStory{{ID: "US-1", Priority: 99}, {ID: "US-2", Priority: -3}},
	}

	f := &Fixer{Store: fs, RepoDir: t.TempDir()}
	_, results := f.Fix(context.Background(), []Diagnostic{
		{Code: CodePrdInvalidPriority, ItemID: "item-1", Fixable: true},
	})
	if len(results) != 1 || !results[0].Fixed {
		t.Fatalf("expected the fix to succeed, got %+v", results)
	}
	got := fs.prds["item-1"].UserStories
	if got[0].Priority != 4 || got[1].Priority != 1 {
		t.Fatalf("expected priorities clamped to [1,4], got %+v", got)
	}
}

func TestFix_OrphanedVM_KillsNamedVM(t *testing.T) {
	fs := newFakeStore()
	killer := &fakeVMKiller{}
	f := &Fixer{Store: fs, RepoDir: t.TempDir(), Sandbox: killer}

	_, results := f.Fix(context.Background(), []Diagnostic{
		{Code: CodeOrphanedVM, Message: "vm wreckit-sandbox-item-1-1000 is older than 1h0m0s", Fixable: true},
	})
	if len(results) != 1 || !results[0].Fixed {
		t.Fatalf("expected the fix to succeed, got %+v", results)
	}
	if len(killer.killed) != 1 || killer.killed[0] != "wreckit-sandbox-item-1-1000" {
		t.Fatalf("expected the named vm to be killed, got %v", killer.killed)
	}
}

func TestFix_BackupWrittenBeforeMutation(t *testing.T) {
	fs := newFakeStore()
	fs.prds["item-1"] = &model.PRD{ID: "item-1"}
	dir := t.TempDir()

	f := &Fixer{Store: fs, RepoDir: dir}
	manifest, results := f.Fix(context.Background(), []Diagnostic{
		{Code: CodePrdMissingBranchName, ItemID: "item-1", Fixable: true},
	})
	if !results[0].Fixed {
		t.Fatalf("expected fix to succeed")
	}
	if len(manifest.Entries) != 0 {
		t.Fatalf("expected no backup entry since prd.json did not yet exist on disk, got %+v", manifest.Entries)
	}
}

func TestFix_UnfixableDiagnostic_Skipped(t *testing.T) {
	fs := newFakeStore()
	f := &Fixer{Store: fs, RepoDir: t.TempDir()}
	_, results := f.Fix(context.Background(), []Diagnostic{
		{Code: CodeDependencyCycle, ItemID: "item-1", Fixable: false},
	})
	if len(results) != 0 {
		t.Fatalf("expected non-fixable diagnostics to be skipped, got %+v", results)
	}
}
