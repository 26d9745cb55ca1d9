package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/mhostetler/wreckit/internal/atomicfile"
	"github.com/mhostetler/wreckit/internal/model"
)

// Root is the Artifact Store rooted at a repository's .wreckit
// directory (spec §4.1, §6 Repository layout).
type Root struct {
	// Dir is the repository root (the directory containing .wreckit/).
	Dir string
}

func New(dir string) *Root { return &Root{Dir: dir} }

func (r *Root) wreckitDir() string   { return filepath.Join(r.Dir, ".wreckit") }
func (r *Root) itemsDir() string     { return filepath.Join(r.wreckitDir(), "items") }
func (r *Root) itemDir(id string) string { return filepath.Join(r.itemsDir(), id) }
func (r *Root) indexPath() string    { return filepath.Join(r.wreckitDir(), "index.json") }
func (r *Root) indexLockPath() string { return r.indexPath() + ".lock" }

func decodeAndValidate(path string, data []byte, schema interface{ Validate(any) error }, out any) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return &InvalidArtifact{Path: path, Err: err}
	}
	if err := schema.Validate(raw); err != nil {
		return &InvalidArtifact{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &InvalidArtifact{Path: path, Err: err}
	}
	return nil
}

// ReadItem loads and validates items/<id>/item.json.
func (r *Root) ReadItem(id string) (*model.Item, error) {
	if err := schemas(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.itemDir(id), "item.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidArtifact{Path: path, Err: err}
	}
	var it model.Item
	if err := decodeAndValidate(path, data, itemSchema, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// WriteItem atomically persists it, refreshing updated_at.
func (r *Root) WriteItem(it *model.Item) error {
	it.UpdatedAt = model.NowRFC3339()
	path := filepath.Join(r.itemDir(it.ID), "item.json")
	return atomicfile.WriteJSON(path, it)
}

// ReadPrd loads and validates items/<id>/prd.json.
func (r *Root) ReadPrd(id string) (*model.PRD, error) {
	if err := schemas(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.itemDir(id), "prd.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidArtifact{Path: path, Err: err}
	}
	var p model.PRD
	if err := decodeAndValidate(path, data, prdSchema, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// WritePrd atomically persists a PRD.
func (r *Root) WritePrd(id string, p *model.PRD) error {
	path := filepath.Join(r.itemDir(id), "prd.json")
	return atomicfile.WriteJSON(path, p)
}

// HasResearchMd reports whether items/<id>/research.md exists.
func (r *Root) HasResearchMd(id string) bool {
	return fileExists(filepath.Join(r.itemDir(id), "research.md"))
}

// HasPlanMd reports whether items/<id>/plan.md exists.
func (r *Root) HasPlanMd(id string) bool {
	return fileExists(filepath.Join(r.itemDir(id), "plan.md"))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadIndex loads and validates index.json.
func (r *Root) ReadIndex() (*model.Index, error) {
	if err := schemas(); err != nil {
		return nil, err
	}
	path := r.indexPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidArtifact{Path: path, Err: err}
	}
	var idx model.Index
	if err := decodeAndValidate(path, data, indexSchema, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// WriteIndex persists idx under the index write lock (spec I4: at most
// one process holds the index write lock at a time). Callers performing
// a read-modify-write cycle should use WithIndexLock instead so the
// whole cycle is covered by a single lock acquisition.
func (r *Root) WriteIndex(idx *model.Index) error {
	return r.WithIndexLock(func() error {
		return atomicfile.WriteJSON(r.indexPath(), idx)
	})
}

// WithIndexLock runs fn while holding an exclusive filesystem advisory
// lock on the index. Returns Conflict if the lock is already held by
// another process and cannot be acquired promptly.
func (r *Root) WithIndexLock(fn func() error) error {
	if err := os.MkdirAll(r.wreckitDir(), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", r.wreckitDir(), err)
	}
	fl := flock.New(r.indexLockPath())
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return &Conflict{Path: r.indexLockPath()}
	}
	defer fl.Unlock()
	return fn()
}

// ScanItems enumerates the items directory, reading each item's
// minimal projection, sorted ascending by id (spec §4.1).
func (r *Root) ScanItems() ([]model.IndexEntry, error) {
	entries, err := os.ReadDir(r.itemsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []model.IndexEntry{}, nil
		}
		return nil, fmt.Errorf("read items dir: %w", err)
	}
	var out []model.IndexEntry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		it, err := r.ReadItem(e.Name())
		if err != nil {
			var inv *InvalidArtifact
			if errors.As(err, &inv) {
				continue // Doctor's job to flag; scan is best-effort
			}
			return nil, err
		}
		out = append(out, it.ToIndexEntry())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RebuildIndex regenerates and persists index.json from scanItems.
func (r *Root) RebuildIndex() (*model.Index, error) {
	entries, err := r.ScanItems()
	if err != nil {
		return nil, err
	}
	idx := model.NewIndex(entries)
	if err := r.WriteIndex(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (r *Root) batchProgressPath() string {
	return filepath.Join(r.wreckitDir(), "batch-progress.json")
}

// ReadBatchProgress loads and validates batch-progress.json.
func (r *Root) ReadBatchProgress() (*model.BatchProgress, error) {
	if err := schemas(); err != nil {
		return nil, err
	}
	path := r.batchProgressPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidArtifact{Path: path, Err: err}
	}
	var bp model.BatchProgress
	if err := decodeAndValidate(path, data, batchProgressSchema, &bp); err != nil {
		return nil, err
	}
	return &bp, nil
}

// WriteBatchProgress atomically persists bp, refreshing updated_at.
func (r *Root) WriteBatchProgress(bp *model.BatchProgress) error {
	bp.Touch()
	return atomicfile.WriteJSON(r.batchProgressPath(), bp)
}

// Append writes one line to items/<id>/progress.log.
func (r *Root) Append(id, text string) error {
	path := filepath.Join(r.itemDir(id), "progress.log")
	return atomicfile.AppendLine(path, []byte(text))
}

// ResolveID resolves a caller-supplied id to a full item id. It accepts
// a full id, a numeric prefix ("36"), or a unique substring; ambiguous
// or absent matches are reported as typed errors (spec §4.1).
func (r *Root) ResolveID(partial string) (string, error) {
	entries, err := r.ScanItems()
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.ID == partial {
			return e.ID, nil
		}
	}
	var matches []string
	numPrefix := isAllDigits(partial)
	for _, e := range entries {
		if numPrefix && model.NumericPrefix(e.ID) == partial {
			matches = append(matches, e.ID)
			continue
		}
		if !numPrefix && strings.Contains(e.ID, partial) {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", &NotFound{ID: partial}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousID{ID: partial, Matches: matches}
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
