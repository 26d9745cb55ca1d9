package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mhostetler/wreckit/internal/model"
)

// FixStore is the subset of *store.Root the fix pass needs, on top of
// the read-only Store used for diagnosis.
type FixStore interface {
	Store
	WriteItem(it *model.Item) error
	WritePrd(id string, p *model.PRD) error
	RebuildIndex() (*model.Index, error)
}

// VMKiller is the subset of *sandbox.CLI needed to reap an orphaned VM.
type VMKiller interface {
	KillVM(ctx context.Context, name string) error
}

// Fixer applies the deterministic repairs (spec §4.7.2).
type Fixer struct {
	Store   FixStore
	RepoDir string
	Sandbox VMKiller
}

// FixResult records the outcome of attempting to repair one Diagnostic.
type FixResult struct {
	Diagnostic Diagnostic
	Fixed      bool
	Err        error
}

// itemFilePath mirrors the Artifact Store's on-disk layout (spec §6):
// .wreckit/items/<id>/<file>. The store package keeps this unexported,
// so the fix pass reconstructs it here to back files up before writing.
func (f *Fixer) itemFilePath(id, file string) string {
	return filepath.Join(f.RepoDir, ".wreckit", "items", id, file)
}

func (f *Fixer) indexPath() string {
	return filepath.Join(f.RepoDir, ".wreckit", "index.json")
}

// backupFile copies src into manifest's backup directory before any
// mutation, recording the entry. A fix is only applied once its backup
// has succeeded (spec §4.7.2: "the repair is safe iff the backup
// succeeds first"). Returns nil (no-op) if src does not exist yet.
func (f *Fixer) backupFile(manifest *model.BackupManifest, src string, code Code, itemID string) error {
	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s for backup: %w", src, err)
	}
	backupDir := filepath.Join(f.RepoDir, ".wreckit", "backups", manifest.SessionID)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	dst := filepath.Join(backupDir, filepath.Base(src)+"."+itemID+"."+string(code))
	if itemID == "" {
		dst = filepath.Join(backupDir, filepath.Base(src)+"."+string(code))
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write backup %s: %w", dst, err)
	}
	manifest.Add(model.BackupEntry{
		OriginalPath:   src,
		BackupPath:     dst,
		Operation:      model.BackupModified,
		DiagnosticCode: string(code),
		ItemID:         itemID,
	})
	return nil
}

// Fix runs the fix pass over diagnostics, applying every deterministic
// repair independently: a failed fix does not roll back prior ones
// (spec §4.7.2).
func (f *Fixer) Fix(ctx context.Context, diagnostics []Diagnostic) (*model.BackupManifest, []FixResult) {
	manifest := model.NewBackupManifest()
	var results []FixResult
	for _, d := range diagnostics {
		if !Fixable(d.Code) {
			continue
		}
		var err error
		switch d.Code {
		case CodeIndexStale:
			err = f.fixIndexStale(manifest)
		case CodeStateFileMismatch:
			err = f.fixStateFileMismatch(manifest, d.ItemID)
		case CodePrdMissingID:
			err = f.fixPrdMissingID(manifest, d.ItemID)
		case CodePrdMissingBranchName:
			err = f.fixPrdMissingBranchName(manifest, d.ItemID)
		case CodePrdInvalidPriority:
			err = f.fixPrdInvalidPriority(manifest, d.ItemID)
		case CodeOrphanedVM:
			err = f.fixOrphanedVM(ctx, d)
		default:
			continue
		}
		results = append(results, FixResult{Diagnostic: d, Fixed: err == nil, Err: err})
	}
	return manifest, results
}

func (f *Fixer) fixIndexStale(manifest *model.BackupManifest) error {
	if err := f.backupFile(manifest, f.indexPath(), CodeIndexStale, ""); err != nil {
		return err
	}
	_, err := f.Store.RebuildIndex()
	return err
}

// fixStateFileMismatch downgrades an item to the highest state whose
// required artifact is actually present on disk.
func (f *Fixer) fixStateFileMismatch(manifest *model.BackupManifest, id string) error {
	item, err := f.Store.ReadItem(id)
	if err != nil {
		return fmt.Errorf("read item %s: %w", id, err)
	}
	if err := f.backupFile(manifest, f.itemFilePath(id, "item.json"), CodeStateFileMismatch, id); err != nil {
		return err
	}

	hasResearch := f.Store.HasResearchMd(id)
	hasPlan := f.Store.HasPlanMd(id)
	_, prdErr := f.Store.ReadPrd(id)

	corrected := item.State
	if corrected.Index() >= model.StatePlanned.Index() && (!hasPlan || prdErr != nil) {
		corrected = model.StateResearched
	}
	if corrected.Index() >= model.StateResearched.Index() && !hasResearch {
		corrected = model.StateRaw
	}
	if corrected == item.State {
		return nil // nothing left to downgrade; the mismatch must be elsewhere
	}
	item.State = corrected
	return f.Store.WriteItem(item)
}

func (f *Fixer) fixPrdMissingID(manifest *model.BackupManifest, id string) error {
	prd, err := f.Store.ReadPrd(id)
	if err != nil {
		return fmt.Errorf("read prd %s: %w", id, err)
	}
	if err := f.backupFile(manifest, f.itemFilePath(id, "prd.json"), CodePrdMissingID, id); err != nil {
		return err
	}
	prd.ID = id
	return f.Store.WritePrd(id, prd)
}

func (f *Fixer) fixPrdMissingBranchName(manifest *model.BackupManifest, id string) error {
	prd, err := f.Store.ReadPrd(id)
	if err != nil {
		return fmt.Errorf("read prd %s: %w", id, err)
	}
	if err := f.backupFile(manifest, f.itemFilePath(id, "prd.json"), CodePrdMissingBranchName, id); err != nil {
		return err
	}
	prd.BranchName = "wreckit/" + id
	return f.Store.WritePrd(id, prd)
}

func (f *Fixer) fixPrdInvalidPriority(manifest *model.BackupManifest, id string) error {
	prd, err := f.Store.ReadPrd(id)
	if err != nil {
		return fmt.Errorf("read prd %s: %w", id, err)
	}
	changed := false
	for i := range prd.UserStories {
		p := prd.UserStories[i].Priority
		switch {
		case p < 1:
			prd.UserStories[i].Priority = 1
			changed = true
		case p > 4:
			prd.UserStories[i].Priority = 4
			changed = true
		}
	}
	if !changed {
		return nil
	}
	if err := f.backupFile(manifest, f.itemFilePath(id, "prd.json"), CodePrdInvalidPriority, id); err != nil {
		return err
	}
	return f.Store.WritePrd(id, prd)
}

// fixOrphanedVM kills the stale VM; no backup applies since nothing on
// disk is mutated.
func (f *Fixer) fixOrphanedVM(ctx context.Context, d Diagnostic) error {
	if f.Sandbox == nil {
		return fmt.Errorf("no sandbox CLI configured to kill orphaned vm")
	}
	name := vmNameFromMessage(d.Message)
	if name == "" {
		return fmt.Errorf("could not parse vm name from diagnostic message")
	}
	return f.Sandbox.KillVM(ctx, name)
}

func vmNameFromMessage(msg string) string {
	rest, ok := strings.CutPrefix(msg, "vm ")
	if !ok {
		return ""
	}
	name, _, ok := strings.Cut(rest, " is older than")
	if !ok {
		return ""
	}
	return name
}
