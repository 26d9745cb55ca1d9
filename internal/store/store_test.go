package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mhostetler/wreckit/internal/model"
)

func mustWriteRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestWriteItem_ThenReadItem_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	it := model.NewItem("001-foo", "Foo", "an overview")
	if err := r.WriteItem(it); err != nil {
		t.Fatalf("WriteItem: %v", err)
	}
	got, err := r.ReadItem("001-foo")
	if err != nil {
		t.Fatalf("ReadItem: %v", err)
	}
	if got.ID != "001-foo" || got.Title != "Foo" || got.State != model.StateRaw {
		t.Fatalf("got %+v", got)
	}
}

func TestReadItem_MissingFile_ReturnsInvalidArtifact(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.ReadItem("001-foo")
	if _, ok := err.(*InvalidArtifact); !ok {
		t.Fatalf("want *InvalidArtifact, got %T: %v", err, err)
	}
}

func TestReadItem_MalformedJSON_ReturnsInvalidArtifact(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	p := filepath.Join(dir, ".wreckit", "items", "001-foo", "item.json")
	mustWriteRaw(t, p, `{not valid json`)
	_, err := r.ReadItem("001-foo")
	if _, ok := err.(*InvalidArtifact); !ok {
		t.Fatalf("want *InvalidArtifact, got %T: %v", err, err)
	}
}

func TestReadItem_FailsSchema_MissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	p := filepath.Join(dir, ".wreckit", "items", "001-foo", "item.json")
	mustWriteRaw(t, p, `{"id":"001-foo"}`)
	_, err := r.ReadItem("001-foo")
	if _, ok := err.(*InvalidArtifact); !ok {
		t.Fatalf("want *InvalidArtifact for missing required fields, got %T: %v", err, err)
	}
}

func TestScanItems_SortsByIDAscending(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	for _, id := range []string{"003-third", "001-first", "002-second"} {
		if err := r.WriteItem(model.NewItem(id, id, "x")); err != nil {
			t.Fatalf("WriteItem %s: %v", id, err)
		}
	}
	entries, err := r.ScanItems()
	if err != nil {
		t.Fatalf("ScanItems: %v", err)
	}
	want := []string{"001-first", "002-second", "003-third"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].ID != w {
			t.Fatalf("entries[%d].ID = %q, want %q", i, entries[i].ID, w)
		}
	}
}

func TestScanItems_SkipsInvalidArtifacts(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	if err := r.WriteItem(model.NewItem("001-good", "Good", "x")); err != nil {
		t.Fatalf("WriteItem: %v", err)
	}
	mustWriteRaw(t, filepath.Join(dir, ".wreckit", "items", "002-bad", "item.json"), `{broken`)
	entries, err := r.ScanItems()
	if err != nil {
		t.Fatalf("ScanItems: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "001-good" {
		t.Fatalf("got %+v", entries)
	}
}

func TestResolveID_FullID(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	mustItem(t, r, "036-create-thing")
	got, err := r.ResolveID("036-create-thing")
	if err != nil {
		t.Fatalf("ResolveID: %v", err)
	}
	if got != "036-create-thing" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveID_NumericPrefix_Unique(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	mustItem(t, r, "036-create-thing")
	mustItem(t, r, "037-other-thing")
	got, err := r.ResolveID("36")
	if err != nil {
		t.Fatalf("ResolveID: %v", err)
	}
	if got != "036-create-thing" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveID_Substring_Ambiguous(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	mustItem(t, r, "036-create-thing-a")
	mustItem(t, r, "037-create-thing-b")
	_, err := r.ResolveID("thing")
	if _, ok := err.(*AmbiguousID); !ok {
		t.Fatalf("want *AmbiguousID, got %T: %v", err, err)
	}
}

func TestResolveID_NotFound(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.ResolveID("999")
	if _, ok := err.(*NotFound); !ok {
		t.Fatalf("want *NotFound, got %T: %v", err, err)
	}
}

func TestWriteIndex_HoldsLock_SecondAcquireConflicts(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	var innerErr error
	outerErr := r.WithIndexLock(func() error {
		innerErr = r.WriteIndex(model.NewIndex(nil))
		return nil
	})
	if outerErr != nil {
		t.Fatalf("WithIndexLock: %v", outerErr)
	}
	if _, ok := innerErr.(*Conflict); !ok {
		t.Fatalf("want *Conflict while outer lock held, got %T: %v", innerErr, innerErr)
	}
}

func TestRebuildIndex_EmptyRepo_WritesEmptyItems(t *testing.T) {
	dir := t.TempDir()
	r := New(dir)
	idx, err := r.RebuildIndex()
	if err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if len(idx.Items) != 0 {
		t.Fatalf("want 0 items, got %d", len(idx.Items))
	}
	got, err := r.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("want 0 items on reload, got %d", len(got.Items))
	}
}

func mustItem(t *testing.T, r *Root, id string) {
	t.Helper()
	if err := r.WriteItem(model.NewItem(id, id, "x")); err != nil {
		t.Fatalf("WriteItem %s: %v", id, err)
	}
}
