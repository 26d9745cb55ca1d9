package doctor

import (
	"context"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mhostetler/wreckit/internal/model"
	"github.com/mhostetler/wreckit/internal/procutil"
)

// Store is the subset of *store.Root the Doctor needs.
type Store interface {
	ScanItems() ([]model.IndexEntry, error)
	ReadIndex() (*model.Index, error)
	ReadItem(id string) (*model.Item, error)
	ReadPrd(id string) (*model.PRD, error)
	HasResearchMd(id string) bool
	HasPlanMd(id string) bool
	ReadBatchProgress() (*model.BatchProgress, error)
}

// VMLister is the subset of *sandbox.CLI the Doctor needs to find
// orphaned VMs.
type VMLister interface {
	ListVMs(ctx context.Context) ([]string, error)
}

// Scanner runs the diagnostic pass (spec §4.7.1).
type Scanner struct {
	Store               Store
	PromptTemplatePaths []string // paths expected to exist on disk
	VMs                 VMLister
	SandboxCLIPresent   func() bool
	SandboxTokenPresent func() bool
	VMStaleAfter        time.Duration // default 1h
}

func (s *Scanner) vmStaleAfter() time.Duration {
	if s.VMStaleAfter <= 0 {
		return time.Hour
	}
	return s.VMStaleAfter
}

// Diagnose runs every check and returns the combined findings.
func (s *Scanner) Diagnose(ctx context.Context) ([]Diagnostic, error) {
	var out []Diagnostic

	entries, err := s.Store.ScanItems()
	if err != nil {
		return nil, err
	}

	out = append(out, s.checkIndex(entries)...)
	out = append(out, s.checkPromptTemplates()...)
	out = append(out, checkDuplicateIDs(entries)...)
	out = append(out, checkDanglingDependencies(entries)...)
	out = append(out, checkDependencyCycles(entries)...)

	for _, e := range entries {
		out = append(out, s.checkItem(e.ID)...)
	}

	out = append(out, s.checkBatchProgress()...)
	out = append(out, s.checkSandbox(ctx)...)

	return out, nil
}

func (s *Scanner) checkIndex(scanned []model.IndexEntry) []Diagnostic {
	idx, err := s.Store.ReadIndex()
	if err != nil {
		return []Diagnostic{{Severity: SeverityError, Code: CodeIndexCorrupt, Message: "index.json is missing or fails to parse: " + err.Error(), Fixable: Fixable(CodeIndexStale)}}
	}
	if len(idx.Items) != len(scanned) {
		return []Diagnostic{{Severity: SeverityWarning, Code: CodeIndexStale, Message: "index.json item count disagrees with a fresh scan", Fixable: Fixable(CodeIndexStale)}}
	}
	for i, e := range scanned {
		if idx.Items[i].ID != e.ID || idx.Items[i].State != e.State {
			return []Diagnostic{{Severity: SeverityWarning, Code: CodeIndexStale, Message: "index.json disagrees with a fresh scan", Fixable: Fixable(CodeIndexStale)}}
		}
	}
	return nil
}

func (s *Scanner) checkPromptTemplates() []Diagnostic {
	var out []Diagnostic
	for _, p := range s.PromptTemplatePaths {
		if _, err := os.Stat(p); err != nil {
			out = append(out, Diagnostic{
				Severity: SeverityError,
				Code:     CodeMissingPromptTemplate,
				Message:  "prompt template missing: " + p,
				Fixable:  false,
			})
		}
	}
	return out
}

func (s *Scanner) checkItem(id string) []Diagnostic {
	var out []Diagnostic
	item, err := s.Store.ReadItem(id)
	if err != nil {
		return nil // invalid artifacts are surfaced by ScanItems' caller, not duplicated here
	}

	// state vs on-disk artifacts
	if item.State.Index() >= model.StateResearched.Index() && !s.Store.HasResearchMd(id) {
		out = append(out, Diagnostic{ItemID: id, Severity: SeverityError, Code: CodeStateFileMismatch,
			Message: "state is " + string(item.State) + " but research.md is missing", Fixable: true})
	}
	if item.State.Index() >= model.StatePlanned.Index() && !s.Store.HasPlanMd(id) {
		out = append(out, Diagnostic{ItemID: id, Severity: SeverityError, Code: CodeStateFileMismatch,
			Message: "state is " + string(item.State) + " but plan.md is missing", Fixable: true})
	}

	prd, perr := s.Store.ReadPrd(id)
	if perr != nil {
		if item.State.Index() >= model.StatePlanned.Index() {
			out = append(out, Diagnostic{ItemID: id, Severity: SeverityError, Code: CodeStateFileMismatch,
				Message: "state is " + string(item.State) + " but prd.json is missing or invalid", Fixable: true})
		}
		return out
	}
	if prd.ID == "" {
		out = append(out, Diagnostic{ItemID: id, Severity: SeverityWarning, Code: CodePrdMissingID, Message: "prd.json has no id", Fixable: true})
	}
	if prd.BranchName == "" {
		out = append(out, Diagnostic{ItemID: id, Severity: SeverityWarning, Code: CodePrdMissingBranchName, Message: "prd.json has no branch_name", Fixable: true})
	}
	for _, story := range prd.UserStories {
		if story.Priority < 1 || story.Priority > 4 {
			out = append(out, Diagnostic{ItemID: id, Severity: SeverityWarning, Code: CodePrdInvalidPriority,
				Message: "story " + story.ID + " has priority outside [1,4]: " + strconv.Itoa(story.Priority), Fixable: true})
		}
		if !storyIDPattern.MatchString(story.ID) {
			out = append(out, Diagnostic{ItemID: id, Severity: SeverityWarning, Code: CodePrdInvalidStoryID,
				Message: "story id does not match the required pattern: " + story.ID, Fixable: false})
		}
	}
	return out
}

var storyIDPattern = regexp.MustCompile(`^US-(?:\d+|\d{3}-\d+)$`)

func checkDuplicateIDs(entries []model.IndexEntry) []Diagnostic {
	seen := map[string]int{}
	for _, e := range entries {
		seen[e.ID]++
	}
	var out []Diagnostic
	ids := make([]string, 0, len(seen))
	for id, n := range seen {
		if n > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, Diagnostic{ItemID: id, Severity: SeverityError, Code: CodeDuplicateItemID, Message: "duplicate item id", Fixable: false})
	}
	return out
}

func checkDanglingDependencies(entries []model.IndexEntry) []Diagnostic {
	present := map[string]bool{}
	for _, e := range entries {
		present[e.ID] = true
	}
	var out []Diagnostic
	for _, e := range entries {
		for _, dep := range e.DependsOn {
			if !present[dep] {
				out = append(out, Diagnostic{ItemID: e.ID, Severity: SeverityError, Code: CodeDanglingDependency,
					Message: "depends_on references unknown id: " + dep, Fixable: false})
			}
		}
	}
	return out
}

func checkDependencyCycles(entries []model.IndexEntry) []Diagnostic {
	graph := map[string][]string{}
	for _, e := range entries {
		graph[e.ID] = e.DependsOn
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var cyclic []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range graph[id] {
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	ids := make([]string, 0, len(graph))
	for id := range graph {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white && visit(id) {
			cyclic = append(cyclic, id)
		}
	}
	var out []Diagnostic
	for _, id := range cyclic {
		out = append(out, Diagnostic{ItemID: id, Severity: SeverityError, Code: CodeDependencyCycle, Message: "item participates in a dependency cycle", Fixable: false})
	}
	return out
}

func (s *Scanner) checkBatchProgress() []Diagnostic {
	bp, err := s.Store.ReadBatchProgress()
	if err != nil {
		return nil // absent batch progress is not a finding
	}
	if !procutil.PIDAlive(bp.PID) {
		return []Diagnostic{{Severity: SeverityWarning, Code: CodeOrphanedBatchProgress,
			Message: "batch-progress.json belongs to a dead process (pid " + strconv.Itoa(bp.PID) + ")", Fixable: false}}
	}
	return nil
}

var vmEpochSuffix = regexp.MustCompile(`^wreckit-sandbox-.+-(\d+)$`)

func (s *Scanner) checkSandbox(ctx context.Context) []Diagnostic {
	var out []Diagnostic
	if s.SandboxCLIPresent != nil && !s.SandboxCLIPresent() {
		out = append(out, Diagnostic{Severity: SeverityWarning, Code: CodeSandboxCLIMissing, Message: "sandbox CLI binary not found on PATH", Fixable: false})
	}
	if s.SandboxTokenPresent != nil && !s.SandboxTokenPresent() {
		out = append(out, Diagnostic{Severity: SeverityWarning, Code: CodeSandboxTokenMissing, Message: "sandbox token not configured", Fixable: false})
	}
	if s.VMs == nil {
		return out
	}
	names, err := s.VMs.ListVMs(ctx)
	if err != nil {
		return out
	}
	now := time.Now()
	for _, name := range names {
		if !strings.HasPrefix(name, "wreckit-sandbox-") {
			continue
		}
		m := vmEpochSuffix.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		epochMs, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		age := now.Sub(time.UnixMilli(epochMs))
		if age > s.vmStaleAfter() {
			out = append(out, Diagnostic{Severity: SeverityWarning, Code: CodeOrphanedVM,
				Message: "vm " + name + " is older than " + s.vmStaleAfter().String(), Fixable: true})
		}
	}
	return out
}
