package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mhostetler/wreckit/internal/model"
	"github.com/mhostetler/wreckit/internal/workflow"
)

func TestRender_UsesBuiltinDefaultWhenNoOverride(t *testing.T) {
	root := t.TempDir()
	item := model.NewItem("001-foo", "Foo the thing", "Make foo happen")
	rendered, tools, err := Render(root, workflow.PhaseResearch, item)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if tools != nil {
		t.Fatalf("expected no skill tools from the built-in default, got %v", tools)
	}
	if !strings.Contains(rendered, "001-foo") || !strings.Contains(rendered, "Foo the thing") {
		t.Fatalf("expected the item's id and title in the rendered prompt, got %q", rendered)
	}
}

func TestRender_PrefersOnDiskOverride(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(Dir(root), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	override := "custom research prompt for %s (%s): %s"
	if err := os.WriteFile(filepath.Join(Dir(root), "research.md"), []byte(override), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	item := model.NewItem("002-bar", "Bar", "overview text")
	rendered, _, err := Render(root, workflow.PhaseResearch, item)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(rendered, "custom research prompt for 002-bar") {
		t.Fatalf("expected the on-disk override to win, got %q", rendered)
	}
}

func TestPaths_ReturnsOnePerPhase(t *testing.T) {
	paths := Paths("/repo")
	if len(paths) != 5 {
		t.Fatalf("expected 5 phase template paths, got %d", len(paths))
	}
}
