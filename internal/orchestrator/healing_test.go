package orchestrator

import (
	"context"
	"testing"

	"github.com/mhostetler/wreckit/internal/doctor"
	"github.com/mhostetler/wreckit/internal/model"
)

type healFakeStore struct {
	items map[string]*model.Item
	prds  map[string]*model.PRD
}

func (f *healFakeStore) ScanItems() ([]model.IndexEntry, error) {
	var out []model.IndexEntry
	for _, it := range f.items {
		out = append(out, it.ToIndexEntry())
	}
	return out, nil
}
func (f *healFakeStore) ReadIndex() (*model.Index, error) { return &model.Index{}, nil }
func (f *healFakeStore) ReadItem(id string) (*model.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, &notFound{id: id}
	}
	return it, nil
}
func (f *healFakeStore) ReadPrd(id string) (*model.PRD, error) {
	p, ok := f.prds[id]
	if !ok {
		return nil, &notFound{id: id}
	}
	return p, nil
}
func (f *healFakeStore) HasResearchMd(id string) bool { return true }
func (f *healFakeStore) HasPlanMd(id string) bool      { return true }
func (f *healFakeStore) ReadBatchProgress() (*model.BatchProgress, error) {
	return nil, &notFound{id: "batch-progress"}
}
func (f *healFakeStore) WriteItem(it *model.Item) error  { f.items[it.ID] = it; return nil }
func (f *healFakeStore) WritePrd(id string, p *model.PRD) error {
	f.prds[id] = p
	return nil
}
func (f *healFakeStore) RebuildIndex() (*model.Index, error) { return &model.Index{}, nil }

func TestHealer_FixesEligibleDiagnosticAndBoundsRetries(t *testing.T) {
	fs := &healFakeStore{items: map[string]*model.Item{}, prds: map[string]*model.PRD{
		"item-1": {ID: "item-1"},
	}}
	scanner := &doctor.Scanner{Store: fs}
	fixer := &doctor.Fixer{Store: fs, RepoDir: t.TempDir()}
	h := NewHealer(scanner, fixer, AutoRepairFull, 1)

	attempted, fixed := h.Heal(context.Background(), "item-1")
	if !attempted || !fixed {
		t.Fatalf("expected the missing branch name to be healed, got attempted=%v fixed=%v", attempted, fixed)
	}
	if fs.prds["item-1"].BranchName != "wreckit/item-1" {
		t.Fatalf("expected branch name to be set by the healer, got %q", fs.prds["item-1"].BranchName)
	}

	// Second attempt on the now-fixed item should find nothing left to fix,
	// but still count against MaxRetries.
	attempted2, fixed2 := h.Heal(context.Background(), "item-1")
	if fixed2 {
		t.Fatalf("expected nothing left to fix on the second attempt")
	}
	_ = attempted2
}

func TestHealer_DisabledMode_NeverAttempts(t *testing.T) {
	fs := &healFakeStore{items: map[string]*model.Item{}, prds: map[string]*model.PRD{
		"item-1": {ID: "item-1"},
	}}
	scanner := &doctor.Scanner{Store: fs}
	fixer := &doctor.Fixer{Store: fs, RepoDir: t.TempDir()}
	h := NewHealer(scanner, fixer, AutoRepairDisabled, 3)

	attempted, fixed := h.Heal(context.Background(), "item-1")
	if attempted || fixed {
		t.Fatalf("expected a disabled healer to never attempt a fix")
	}
}

func TestHealer_SafeOnlyMode_SkipsStateFileMismatch(t *testing.T) {
	fs := &healFakeStore{items: map[string]*model.Item{
		"item-1": func() *model.Item {
			it := model.NewItem("item-1", "t", "")
			it.State = model.StatePlanned
			return it
		}(),
	}, prds: map[string]*model.PRD{}}
	scanner := &doctor.Scanner{Store: fs}
	fixer := &doctor.Fixer{Store: fs, RepoDir: t.TempDir()}
	h := NewHealer(scanner, fixer, AutoRepairSafeOnly, 3)

	// healFakeStore.HasPlanMd always returns true, so there is no state
	// mismatch to find; this just exercises that safe-only mode runs
	// without requiring an unsafe fix to exist.
	attempted, fixed := h.Heal(context.Background(), "item-1")
	if !attempted {
		t.Fatalf("expected the healer to attempt a scan")
	}
	if fixed {
		t.Fatalf("expected nothing fixable under safe-only mode here")
	}
}

func TestHealer_MaxRetriesBoundsAttempts(t *testing.T) {
	fs := &healFakeStore{items: map[string]*model.Item{}, prds: map[string]*model.PRD{}}
	scanner := &doctor.Scanner{Store: fs}
	fixer := &doctor.Fixer{Store: fs, RepoDir: t.TempDir()}
	h := NewHealer(scanner, fixer, AutoRepairFull, 2)

	h.Heal(context.Background(), "item-x")
	h.Heal(context.Background(), "item-x")
	attempted, _ := h.Heal(context.Background(), "item-x")
	if attempted {
		t.Fatalf("expected the third attempt to be blocked by MaxRetries")
	}
}
