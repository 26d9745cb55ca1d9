package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVMName_PinnedReused(t *testing.T) {
	name, ephemeral := VMName("my-vm", "001-foo", 12345)
	if name != "my-vm" || ephemeral {
		t.Fatalf("got name=%q ephemeral=%v", name, ephemeral)
	}
}

func TestVMName_EphemeralGenerated(t *testing.T) {
	name, ephemeral := VMName("", "001-foo", 12345)
	want := "wreckit-sandbox-001-foo-12345"
	if name != want || !ephemeral {
		t.Fatalf("got name=%q ephemeral=%v, want %q", name, ephemeral, want)
	}
}

func TestApplySandboxMode_Idempotent(t *testing.T) {
	cfg := Config{Kind: "process", VMName: "pinned"}
	once := ApplySandboxMode(cfg)
	twice := ApplySandboxMode(once)
	if once != twice {
		t.Fatalf("not idempotent: once=%+v twice=%+v", once, twice)
	}
	if once.Kind != "sprite" || !once.SyncEnabled || !once.SyncOnSuccess || once.VMName != "" {
		t.Fatalf("got %+v", once)
	}
}

func TestSyncer_Excluded_MatchesGitDir(t *testing.T) {
	s := &Syncer{}
	if !s.excluded(".git/objects/ab/cd") {
		t.Fatalf("expected .git/** to match")
	}
	if s.excluded("src/main.go") {
		t.Fatalf("did not expect src/main.go to be excluded")
	}
}

func TestTarDirThenUntar_RoundTrips(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(src, ".git"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := &Syncer{}
	archive, hash, err := s.tarDir(src)
	if err != nil {
		t.Fatalf("tarDir: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty content hash")
	}

	dst := t.TempDir()
	if err := s.untarInto(dst, archive); err != nil {
		t.Fatalf("untarInto: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
	if _, err := os.Stat(filepath.Join(dst, ".git")); err == nil {
		t.Fatalf("expected .git to be excluded from the archive")
	}
}
