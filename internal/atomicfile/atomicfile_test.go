package atomicfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteJSON_CreatesNestedFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a", "b", "item.json")
	if err := WriteJSON(p, map[string]any{"id": "001-foo", "state": "raw"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["id"] != "001-foo" {
		t.Fatalf("id=%v", got["id"])
	}
}

func TestWriteJSON_NoLeftoverTempFiles(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "item.json")
	if err := WriteJSON(p, map[string]any{"x": 1}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}

func TestWriteJSON_Overwrites(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "item.json")
	if err := WriteJSON(p, map[string]any{"x": 1}); err != nil {
		t.Fatalf("WriteJSON first: %v", err)
	}
	if err := WriteJSON(p, map[string]any{"x": 2}); err != nil {
		t.Fatalf("WriteJSON second: %v", err)
	}
	b, _ := os.ReadFile(p)
	var got map[string]any
	_ = json.Unmarshal(b, &got)
	if got["x"].(float64) != 2 {
		t.Fatalf("x=%v", got["x"])
	}
}

func TestAppendLine_AppendsMultiple(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "progress.log")
	if err := AppendLine(p, []byte(`{"event":"a"}`)); err != nil {
		t.Fatalf("AppendLine 1: %v", err)
	}
	if err := AppendLine(p, []byte(`{"event":"b"}`)); err != nil {
		t.Fatalf("AppendLine 2: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %q", len(lines), string(b))
	}
}
