package model

import "strings"

// State is an item's position in the fixed workflow chain (spec §4.5.1).
type State string

const (
	StateRaw           State = "raw"
	StateResearched    State = "researched"
	StatePlanned       State = "planned"
	StateImplementing  State = "implementing"
	StateCritique      State = "critique"
	StateInPR          State = "in_pr"
	StateDone          State = "done"
)

// stateOrder is the monotonic chain an item advances along (I1).
var stateOrder = []State{
	StateRaw, StateResearched, StatePlanned, StateImplementing,
	StateCritique, StateInPR, StateDone,
}

// Index returns the position of s in the chain, or -1 if s is not a
// recognized state.
func (s State) Index() int {
	for i, st := range stateOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the seven canonical states.
func (s State) Valid() bool { return s.Index() >= 0 }

// Next returns the state that immediately follows s in the chain, or ""
// with ok=false if s is Done (terminal) or invalid.
func (s State) Next() (State, bool) {
	i := s.Index()
	if i < 0 || i >= len(stateOrder)-1 {
		return "", false
	}
	return stateOrder[i+1], true
}

// Terminal reports whether s is the absorbing Done state.
func (s State) Terminal() bool { return s == StateDone }

// Item is the durable unit of autonomous work (spec §3).
type Item struct {
	SchemaVersion int    `json:"schema_version"`
	ID            string `json:"id"`
	Title         string `json:"title"`
	Section       string `json:"section,omitempty"`
	State         State  `json:"state"`
	Overview      string `json:"overview"`

	// Optional structured context.
	ProblemStatement     string   `json:"problem_statement,omitempty"`
	Motivation           string   `json:"motivation,omitempty"`
	SuccessCriteria      []string `json:"success_criteria,omitempty"`
	TechnicalConstraints []string `json:"technical_constraints,omitempty"`
	ScopeIn              []string `json:"scope_in,omitempty"`
	ScopeOut             []string `json:"scope_out,omitempty"`
	PriorityHint         string   `json:"priority_hint,omitempty"`
	UrgencyHint          string   `json:"urgency_hint,omitempty"`

	// Git context.
	Branch         *string `json:"branch"`
	PRURL          *string `json:"pr_url"`
	PRNumber       *int    `json:"pr_number"`
	RollbackSHA    *string `json:"rollback_sha,omitempty"`
	MergeCommitSHA *string `json:"merge_commit_sha,omitempty"`

	// Completion metadata.
	CompletedAt  *string `json:"completed_at,omitempty"`
	MergedAt     *string `json:"merged_at,omitempty"`
	ChecksPassed *bool   `json:"checks_passed,omitempty"`

	// Relations.
	DependsOn []string `json:"depends_on,omitempty"`
	Campaign  string   `json:"campaign,omitempty"`

	LastError *string `json:"last_error"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NewItem constructs a raw item ready to be persisted, filling in
// required defaults (spec §6: required fields include schema_version,
// created_at/updated_at, nullable branch/pr_url/pr_number/last_error).
func NewItem(id, title, overview string) *Item {
	now := NowRFC3339()
	return &Item{
		SchemaVersion: 1,
		ID:            id,
		Title:         title,
		State:         StateRaw,
		Overview:      overview,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IndexEntry is the derived, cheap-to-scan projection of an Item (spec
// §3 Index).
type IndexEntry struct {
	ID        string   `json:"id"`
	State     State    `json:"state"`
	Title     string   `json:"title"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// ToIndexEntry projects an Item down to its Index row.
func (it *Item) ToIndexEntry() IndexEntry {
	return IndexEntry{ID: it.ID, State: it.State, Title: it.Title, DependsOn: it.DependsOn}
}

// Index is the cached scan of all items (spec §3).
type Index struct {
	SchemaVersion int          `json:"schema_version"`
	GeneratedAt   string       `json:"generated_at"`
	Items         []IndexEntry `json:"items"`
}

// NewIndex builds an Index from a slice of entries, sorted ascending by
// id as scanItems guarantees (spec §4.1).
func NewIndex(entries []IndexEntry) *Index {
	sorted := append([]IndexEntry{}, entries...)
	sortIndexEntries(sorted)
	return &Index{SchemaVersion: 1, GeneratedAt: NowRFC3339(), Items: sorted}
}

func sortIndexEntries(e []IndexEntry) {
	for i := 1; i < len(e); i++ {
		j := i
		for j > 0 && strings.Compare(e[j-1].ID, e[j].ID) > 0 {
			e[j-1], e[j] = e[j], e[j-1]
			j--
		}
	}
}
