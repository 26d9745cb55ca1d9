// Package doctor implements the Doctor (spec §4.7): a diagnostic pass
// that detects inconsistencies between the Artifact Store, Git, process
// state, and sandbox state, and an optional fix pass that repairs the
// deterministically-fixable ones.
package doctor

// Severity classifies how serious a Diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code names a specific diagnostic check (spec §4.7.1/§4.7.2).
type Code string

const (
	CodeIndexStale            Code = "INDEX_STALE"
	CodeIndexCorrupt          Code = "INDEX_CORRUPT"
	CodeMissingPromptTemplate Code = "MISSING_PROMPT_TEMPLATE"
	CodeStateFileMismatch     Code = "STATE_FILE_MISMATCH"
	CodePrdMissingID          Code = "PRD_MISSING_ID"
	CodePrdMissingBranchName  Code = "PRD_MISSING_BRANCH_NAME"
	CodePrdInvalidPriority    Code = "PRD_INVALID_PRIORITY"
	CodePrdInvalidStoryID     Code = "PRD_INVALID_STORY_ID"
	CodeDependencyCycle       Code = "DEPENDENCY_CYCLE"
	CodeDanglingDependency    Code = "DANGLING_DEPENDENCY"
	CodeDuplicateItemID       Code = "DUPLICATE_ITEM_ID"
	CodeOrphanedBatchProgress Code = "ORPHANED_BATCH_PROGRESS"
	CodeSandboxCLIMissing     Code = "SANDBOX_CLI_MISSING"
	CodeSandboxTokenMissing   Code = "SANDBOX_TOKEN_MISSING"
	CodeOrphanedVM            Code = "ORPHANED_VM_DETECTED"
)

// Diagnostic is one finding from a diagnostic pass (spec §4.7.1).
type Diagnostic struct {
	ItemID   string   `json:"item_id,omitempty"`
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Fixable  bool     `json:"fixable"`
}

// fixableCodes enumerates the diagnostics the fix pass knows how to
// deterministically repair (spec §4.7.2); everything else is reported
// non-fixable even if Diagnostic.Fixable happens to be computed true
// elsewhere — this set is the single source of truth checked by Fix.
var fixableCodes = map[Code]bool{
	CodeIndexStale:            true,
	CodeStateFileMismatch:     true,
	CodePrdMissingID:          true,
	CodePrdMissingBranchName:  true,
	CodePrdInvalidPriority:    true,
	CodeOrphanedVM:            true,
}

// Fixable reports whether code has a deterministic repair.
func Fixable(code Code) bool { return fixableCodes[code] }

// safeCodes are the fixes an "auto_repair: safe-only" policy may run
// unattended (spec §4.7.3): anything that only touches metadata or
// reaps an external resource. STATE_FILE_MISMATCH is excluded because
// its repair silently regresses an item's recorded state, which an
// operator may want to review before it happens automatically.
var safeCodes = map[Code]bool{
	CodeIndexStale:           true,
	CodePrdMissingID:         true,
	CodePrdMissingBranchName: true,
	CodePrdInvalidPriority:   true,
	CodeOrphanedVM:           true,
}

// Safe reports whether code is eligible under the "safe-only" auto
// repair policy.
func Safe(code Code) bool { return safeCodes[code] }
