package doctor

import (
	"context"
	"strconv"
	"testing"

	"github.com/mhostetler/wreckit/internal/model"
)

type notFoundErr struct{ id string }

func (e *notFoundErr) Error() string { return "not found: " + e.id }

type fakeStore struct {
	items        map[string]*model.Item
	prds         map[string]*model.PRD
	hasResearch  map[string]bool
	hasPlan      map[string]bool
	index        *model.Index
	indexErr     error
	batch        *model.BatchProgress
	batchErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:       map[string]*model.Item{},
		prds:        map[string]*model.PRD{},
		hasResearch: map[string]bool{},
		hasPlan:     map[string]bool{},
	}
}

func (f *fakeStore) ScanItems() ([]model.IndexEntry, error) {
	var out []model.IndexEntry
	for _, it := range f.items {
		out = append(out, it.ToIndexEntry())
	}
	return out, nil
}

func (f *fakeStore) ReadIndex() (*model.Index, error) {
	if f.indexErr != nil {
		return nil, f.indexErr
	}
	if f.index == nil {
		return &model.Index{}, nil
	}
	return f.index, nil
}

func (f *fakeStore) ReadItem(id string) (*model.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, &notFoundErr{id: id}
	}
	return it, nil
}

func (f *fakeStore) ReadPrd(id string) (*model.PRD, error) {
	p, ok := f.prds[id]
	if !ok {
		return nil, &notFoundErr{id: id}
	}
	return p, nil
}

func (f *fakeStore) HasResearchMd(id string) bool { return f.hasResearch[id] }
func (f *fakeStore) HasPlanMd(id string) bool      { return f.hasPlan[id] }

func (f *fakeStore) ReadBatchProgress() (*model.BatchProgress, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	if f.batch == nil {
		return nil, &notFoundErr{id: "batch-progress"}
	}
	return f.batch, nil
}

func TestDiagnose_StateFileMismatch_MissingPlanMd(t *testing.T) {
	fs := newFakeStore()
	it := model.NewItem("item-1", "t", "")
	it.State = model.StatePlanned
	fs.items["item-1"] = it
	fs.hasResearch["item-1"] = true
	fs.hasPlan["item-1"] = false
	fs.index = &model.Index{Items: []model.IndexEntry{it.ToIndexEntry()}}

	sc := &Scanner{Store: fs}
	diags, err := sc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Code == CodeStateFileMismatch && d.ItemID == "item-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a STATE_FILE_MISMATCH diagnostic, got %+v", diags)
	}
}

func TestDiagnose_PrdMissingBranchNameAndInvalidPriority(t *testing.T) {
	fs := newFakeStore()
	it := model.NewItem("item-1", "t", "")
	it.State = model.StatePlanned
	fs.items["item-1"] = it
	fs.hasResearch["item-1"] = true
	fs.hasPlan["item-1"] = true
	fs.prds["item-1"] = &model.PRD{
		ID: "item-1",
		UserStories: []model.UserStory{
			{ID: "US-1", Priority: 9},
		},
	}
	fs.index = &model.Index{Items: []model.IndexEntry{it.ToIndexEntry()}}

	sc := &Scanner{Store: fs}
	diags, err := sc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	var gotBranch, gotPriority bool
	for _, d := range diags {
		if d.Code == CodePrdMissingBranchName {
			gotBranch = true
		}
		if d.Code == CodePrdInvalidPriority {
			gotPriority = true
		}
	}
	if !gotBranch || !gotPriority {
		t.Fatalf("expected missing-branch and invalid-priority diagnostics, got %+v", diags)
	}
}

func TestDiagnose_DanglingDependency(t *testing.T) {
	fs := newFakeStore()
	it := model.NewItem("item-1", "t", "")
	it.DependsOn = []string{"item-404"}
	fs.items["item-1"] = it
	fs.index = &model.Index{Items: []model.IndexEntry{it.ToIndexEntry()}}

	sc := &Scanner{Store: fs}
	diags, err := sc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Code == CodeDanglingDependency && d.ItemID == "item-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a DANGLING_DEPENDENCY diagnostic, got %+v", diags)
	}
}

func TestDiagnose_DependencyCycle(t *testing.T) {
	fs := newFakeStore()
	a := model.NewItem("item-a", "a", "")
	a.DependsOn = []string{"item-b"}
	b := model.NewItem("item-b", "b", "")
	b.DependsOn = []string{"item-a"}
	fs.items["item-a"] = a
	fs.items["item-b"] = b
	fs.index = &model.Index{Items: []model.IndexEntry{a.ToIndexEntry(), b.ToIndexEntry()}}

	sc := &Scanner{Store: fs}
	diags, err := sc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Code == CodeDependencyCycle {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a DEPENDENCY_CYCLE diagnostic, got %+v", diags)
	}
}

func TestDiagnose_OrphanedBatchProgress_DeadPID(t *testing.T) {
	fs := newFakeStore()
	fs.index = &model.Index{}
	fs.batch = &model.BatchProgress{PID: 999999999}

	sc := &Scanner{Store: fs}
	diags, err := sc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Code == CodeOrphanedBatchProgress {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an ORPHANED_BATCH_PROGRESS diagnostic, got %+v", diags)
	}
}

func TestDiagnose_MissingPromptTemplate(t *testing.T) {
	fs := newFakeStore()
	fs.index = &model.Index{}
	dir := t.TempDir()
	missing := dir + "/does-not-exist.md"

	sc := &Scanner{Store: fs, PromptTemplatePaths: []string{missing}}
	diags, err := sc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Code == CodeMissingPromptTemplate {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a MISSING_PROMPT_TEMPLATE diagnostic, got %+v", diags)
	}
}

type fakeVMLister struct {
	names []string
}

func (f *fakeVMLister) ListVMs(ctx context.Context) ([]string, error) { return f.names, nil }

func TestDiagnose_OrphanedVM_OlderThanThreshold(t *testing.T) {
	fs := newFakeStore()
	fs.index = &model.Index{}

	oldEpochMs := int64(1000) // 1970, guaranteed far older than 1h
	name := "wreckit-sandbox-item-1-" + strconv.FormatInt(oldEpochMs, 10)

	sc := &Scanner{Store: fs, VMs: &fakeVMLister{names: []string{name}}}
	diags, err := sc.Diagnose(context.Background())
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Code == CodeOrphanedVM {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an ORPHANED_VM_DETECTED diagnostic, got %+v", diags)
	}
}

