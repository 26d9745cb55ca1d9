// Package gitintegration implements branch and PR operations as
// idempotent primitives (spec §4.2). Local operations shell out to the
// git binary; remote PR operations go through go-github.
package gitintegration

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// CommandError wraps a failed git invocation with its captured output.
type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

func runGit(dir string, args ...string) (string, string, error) {
	// Disable git's background auto-maintenance so repeated checkpoint
	// commits stay deterministic and don't spawn gc helper processes.
	base := []string{
		"-C", dir,
		"-c", "maintenance.auto=0",
		"-c", "gc.auto=0",
	}
	cmd := exec.Command("git", append(base, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	outStr := stdout.String()
	errStr := stderr.String()
	if err != nil {
		return outStr, errStr, &CommandError{Args: args, Stdout: outStr, Stderr: errStr, Err: err}
	}
	return outStr, errStr, nil
}

// IsRepo reports whether dir is inside a git working tree.
func IsRepo(dir string) bool {
	out, _, err := runGit(dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// HeadSha returns the current HEAD commit sha.
func HeadSha(dir string) (string, error) {
	out, _, err := runGit(dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name.
func CurrentBranch(dir string) (string, error) {
	out, _, err := runGit(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// StatusPorcelain returns the raw `git status --porcelain` output.
func StatusPorcelain(dir string) (string, error) {
	out, _, err := runGit(dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	return out, nil
}

// WorkingTreeClean reports whether dir has no staged or unstaged changes.
func WorkingTreeClean(dir string) (bool, error) {
	out, err := StatusPorcelain(dir)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// branchExists reports whether a local branch with the given name exists.
func branchExists(dir, branch string) bool {
	_, _, err := runGit(dir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// EnsureBranch switches to branch if it already exists locally;
// otherwise it creates branch from base and switches to it (spec §4.2).
func EnsureBranch(dir, branch, base string) error {
	if branchExists(dir, branch) {
		_, _, err := runGit(dir, "switch", branch)
		return err
	}
	_, _, err := runGit(dir, "switch", "-c", branch, base)
	return err
}

// CreateBranchFrom creates branch from base, failing if branch already
// exists (spec §4.2 — distinct from the switch-or-create EnsureBranch).
func CreateBranchFrom(dir, branch, base string) error {
	if branchExists(dir, branch) {
		return &CommandError{Args: []string{"branch", branch}, Err: fmt.Errorf("branch %q already exists", branch)}
	}
	_, _, err := runGit(dir, "branch", branch, base)
	return err
}

// CreateBranchAt force-creates or resets branch to point at baseSHA.
func CreateBranchAt(dir, branch, baseSHA string) error {
	_, _, err := runGit(dir, "branch", "--force", branch, baseSHA)
	return err
}

func AddWorktree(repoDir, worktreeDir, branch string) error {
	_, _, err := runGit(repoDir, "worktree", "add", worktreeDir, branch)
	return err
}

func RemoveWorktree(repoDir, worktreeDir string) error {
	_, _, err := runGit(repoDir, "worktree", "remove", "--force", worktreeDir)
	return err
}

func CheckoutBranch(worktreeDir, branch string) error {
	_, _, err := runGit(worktreeDir, "switch", branch)
	return err
}

func ResetHard(worktreeDir, sha string) error {
	_, _, err := runGit(worktreeDir, "reset", "--hard", sha)
	return err
}

func AddAll(worktreeDir string) error {
	_, _, err := runGit(worktreeDir, "add", "-A")
	return err
}

// CommitAll stages and commits all tracked changes with message; it is
// a no-op (returns the current HEAD sha, no error) if the tree is
// already clean (spec §4.2 commitAll).
func CommitAll(dir, message string) (string, error) {
	clean, err := WorkingTreeClean(dir)
	if err != nil {
		return "", err
	}
	if clean {
		return HeadSha(dir)
	}
	if err := AddAll(dir); err != nil {
		return "", err
	}
	if _, _, err := runGit(dir, "commit", "-m", message); err != nil {
		if isMissingIdentity(err) {
			if _, _, err := runGit(dir,
				"-c", "user.name=wreckit",
				"-c", "user.email=wreckit@local",
				"commit", "-m", message,
			); err != nil {
				return "", err
			}
		} else {
			return "", err
		}
	}
	return HeadSha(dir)
}

// CommitAllowEmpty behaves like CommitAll but always creates a commit,
// even when the tree is clean (used for workflow checkpoints).
func CommitAllowEmpty(worktreeDir, message string) (string, error) {
	if err := AddAll(worktreeDir); err != nil {
		return "", err
	}
	_, _, err := runGit(worktreeDir, "commit", "--allow-empty", "-m", message)
	if err != nil {
		if isMissingIdentity(err) {
			_, _, err = runGit(
				worktreeDir,
				"-c", "user.name=wreckit",
				"-c", "user.email=wreckit@local",
				"commit", "--allow-empty", "-m", message,
			)
		}
		if err != nil {
			return "", err
		}
	}
	return HeadSha(worktreeDir)
}

func isMissingIdentity(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Author identity unknown") ||
		strings.Contains(msg, "Please tell me who you are") ||
		strings.Contains(msg, "unable to auto-detect email address")
}

// PushBranch pushes branch to remote. Best-effort: failures are
// returned but should not by themselves abort a run.
func PushBranch(repoDir, remote, branch string) error {
	_, _, err := runGit(repoDir, "push", remote, branch)
	return err
}

func MergeFastForwardOnly(worktreeDir, otherRef string) error {
	_, _, err := runGit(worktreeDir, "merge", "--ff-only", otherRef)
	return err
}

// Diff returns the full unified diff between baseRef and HEAD, used by
// SecretScan to sweep changed content (spec §4.2 optional secret_scan).
func Diff(dir, baseRef string) (string, error) {
	out, _, err := runGit(dir, "diff", baseRef)
	if err != nil {
		return "", err
	}
	return out, nil
}

// DiffNameOnly returns file paths changed between baseRef and HEAD.
func DiffNameOnly(dir, baseRef string) ([]string, error) {
	out, _, err := runGit(dir, "diff", "--name-only", baseRef)
	if err != nil {
		return nil, err
	}
	return splitNonEmptyLines(out), nil
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// StatusSnapshot is a point-in-time capture of working-tree state used
// to validate that a phase touched only its declared write roots (spec
// §4.2 snapshotStatus/diffStatus).
type StatusSnapshot struct {
	HeadSHA string
	Dirty   []string
}

// SnapshotStatus captures HEAD and the current set of dirty paths.
func SnapshotStatus(dir string) (*StatusSnapshot, error) {
	sha, err := HeadSha(dir)
	if err != nil {
		return nil, err
	}
	porcelain, err := StatusPorcelain(dir)
	if err != nil {
		return nil, err
	}
	return &StatusSnapshot{HeadSHA: sha, Dirty: parsePorcelainPaths(porcelain)}, nil
}

// DiffStatus returns the set of paths changed (created, modified, or
// deleted) between a prior snapshot and the current working tree.
func DiffStatus(dir string, before *StatusSnapshot) ([]string, error) {
	porcelain, err := StatusPorcelain(dir)
	if err != nil {
		return nil, err
	}
	after := parsePorcelainPaths(porcelain)
	seen := map[string]bool{}
	for _, p := range before.Dirty {
		seen[p] = true
	}
	var changed []string
	for _, p := range after {
		if !seen[p] {
			changed = append(changed, p)
		}
	}
	return changed, nil
}

func parsePorcelainPaths(porcelain string) []string {
	var paths []string
	for _, line := range strings.Split(porcelain, "\n") {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		if arrow := strings.Index(path, " -> "); arrow >= 0 {
			path = path[arrow+4:]
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

func ensureUserIdentity(worktreeDir string) error {
	name, _, _ := runGit(worktreeDir, "config", "--get", "user.name")
	email, _, _ := runGit(worktreeDir, "config", "--get", "user.email")
	if strings.TrimSpace(name) == "" {
		_, _, _ = runGit(worktreeDir, "config", "user.name", "wreckit")
	}
	if strings.TrimSpace(email) == "" {
		_, _, _ = runGit(worktreeDir, "config", "user.email", "wreckit@local")
	}
	return nil
}
