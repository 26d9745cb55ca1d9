package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mhostetler/wreckit/internal/agentruntime"
	"github.com/mhostetler/wreckit/internal/model"
	"github.com/mhostetler/wreckit/internal/workflow"
)

// Store is the subset of *store.Root the Orchestrator needs.
type Store interface {
	ScanItems() ([]model.IndexEntry, error)
	ReadBatchProgress() (*model.BatchProgress, error)
	WriteBatchProgress(bp *model.BatchProgress) error
}

// Scheduler supervises N worker goroutines advancing non-done items
// through their phase transitions (spec §4.6.2).
type Scheduler struct {
	Store       Store
	Executor    *workflow.Executor
	Parallel    int
	AgentConfig agentruntime.AgentConfig
	Limits      *agentruntime.Limits
	MergeCfg    workflow.PRChecksConfig
	Driver      workflow.MergeDriver
	Healer      *Healer

	// pollInterval bounds how long a worker waits before re-checking for
	// newly runnable work when the queue looks momentarily exhausted
	// (another worker may be about to release a claim).
	pollInterval time.Duration

	claims *claimRegistry

	mu sync.Mutex // guards bp below
	bp *model.BatchProgress
}

// New constructs a Scheduler; parallel <= 0 is treated as 1 (sequential,
// the spec's default).
func New(store Store, exec *workflow.Executor) *Scheduler {
	return &Scheduler{
		Store:        store,
		Executor:     exec,
		Parallel:     1,
		claims:       newClaimRegistry(),
		pollInterval: 20 * time.Millisecond,
	}
}

// Run advances as many items as possible, honoring dependencies and the
// configured parallelism, until no further item is runnable or ctx is
// cancelled (spec §4.6.2 scheduling model). It returns the final
// BatchProgress, persisted throughout.
func (s *Scheduler) Run(ctx context.Context) (*model.BatchProgress, error) {
	entries, err := s.Store.ScanItems()
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	queued := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.State != model.StateDone {
			queued = append(queued, e.ID)
		}
	}
	sort.Strings(queued)

	parallel := s.Parallel
	if parallel <= 0 {
		parallel = 1
	}

	s.bp = model.NewBatchProgress(parallel, queued)
	if err := s.Store.WriteBatchProgress(s.bp); err != nil {
		return nil, fmt.Errorf("write initial batch progress: %w", err)
	}

	skip := map[string]bool{} // items that failed this session; not retried
	var skipMu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(workerIdx int) {
			defer wg.Done()
			s.workerLoop(ctx, workerIdx, &skipMu, skip)
		}(i)
	}
	wg.Wait()

	s.mu.Lock()
	s.bp.Touch()
	final := *s.bp
	s.mu.Unlock()
	if err := s.Store.WriteBatchProgress(&final); err != nil {
		return &final, err
	}
	return &final, nil
}

func (s *Scheduler) workerLoop(ctx context.Context, workerIdx int, skipMu *sync.Mutex, skip map[string]bool) {
	idleRounds := 0
	const maxIdleRounds = 25 // ~0.5s of no progress at the default poll interval
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entries, err := s.Store.ScanItems()
		if err != nil {
			return
		}

		skipMu.Lock()
		skipSnapshot := make(map[string]bool, len(skip))
		for k := range skip {
			skipSnapshot[k] = true
		}
		skipMu.Unlock()

		id, ok := SelectNextRunnable(entries, s.claims.Snapshot(), skipSnapshot)
		if !ok {
			if len(s.claims.Snapshot()) == 0 {
				idleRounds++
				if idleRounds >= maxIdleRounds {
					return // nothing left runnable and no in-flight work: done
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.pollInterval):
			}
			continue
		}
		idleRounds = 0

		if !s.claims.TryClaim(id) {
			continue // lost the race to another worker; retry
		}

		s.setCurrentItem(workerIdx, id)
		result, rerr := s.Executor.AdvanceOne(ctx, id, s.AgentConfig, s.Limits, s.MergeCfg, s.Driver)
		s.claims.Release(id)
		s.clearCurrentItem(workerIdx)

		if result != nil && result.Regressed {
			// A rejected critique sent the item back to planned (spec
			// §4.5.4): it is healthy, not failed, and stays eligible
			// for re-selection next round.
			continue
		}

		if rerr != nil || (result != nil && !result.Advanced && result.Reason != "") {
			if s.Healer != nil {
				attempted, fixed := s.Healer.Heal(ctx, id)
				if attempted {
					s.recordHeal(fixed)
				}
				if fixed {
					continue // retry the item next round instead of skipping it
				}
			}
			skipMu.Lock()
			skip[id] = true
			skipMu.Unlock()
			s.recordFailed(id)
			continue
		}
		if result != nil && result.Advanced {
			s.recordCompleted(id, result.Item)
		}
	}
}

func (s *Scheduler) setCurrentItem(workerIdx int, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.bp.CurrentItem) <= workerIdx {
		s.bp.CurrentItem = append(s.bp.CurrentItem, "")
	}
	s.bp.CurrentItem[workerIdx] = id
	s.bp.Touch()
}

func (s *Scheduler) clearCurrentItem(workerIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if workerIdx < len(s.bp.CurrentItem) {
		s.bp.CurrentItem[workerIdx] = ""
	}
	s.bp.Touch()
	_ = s.Store.WriteBatchProgress(s.bp)
}

func (s *Scheduler) recordCompleted(id string, item *model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item != nil && item.State == model.StateDone {
		s.bp.Completed = append(s.bp.Completed, id)
	}
	s.bp.Touch()
	_ = s.Store.WriteBatchProgress(s.bp)
}

func (s *Scheduler) recordHeal(fixed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bp.HealAttempts++
	if fixed {
		s.bp.HealFixed++
	}
	s.bp.Touch()
	_ = s.Store.WriteBatchProgress(s.bp)
}

func (s *Scheduler) recordFailed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bp.Failed = append(s.bp.Failed, id)
	s.bp.Touch()
	_ = s.Store.WriteBatchProgress(s.bp)
}
