package gitintegration

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// MergeMode selects how OpenPR's counterpart merges a pull request.
type MergeMode string

const (
	MergeSquash MergeMode = "squash"
	MergeMerge  MergeMode = "merge"
	MergeRebase MergeMode = "rebase"
)

// PRResult is what openPr returns (spec §4.2).
type PRResult struct {
	URL    string
	Number int
}

// MergeResult is what mergePr returns.
type MergeResult struct {
	SHA string
}

// Driver talks to the remote git host's pull-request API. It wraps
// go-github; a token is resolved by the caller's config layer
// (GITHUB_TOKEN / GITHUB_*, spec §6 Environment).
type Driver struct {
	client *github.Client
	owner  string
	repo   string
}

// NewDriver constructs a Driver authenticated with token, targeting
// owner/repo.
func NewDriver(ctx context.Context, token, owner, repo string) *Driver {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &Driver{client: github.NewClient(tc), owner: owner, repo: repo}
}

// OpenPR opens a pull request from head into base (spec §4.2 openPr).
func (d *Driver) OpenPR(ctx context.Context, head, base, title, body string) (*PRResult, error) {
	pr, _, err := d.client.PullRequests.Create(ctx, d.owner, d.repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
		Body:  github.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("open pr %s -> %s: %w", head, base, err)
	}
	return &PRResult{URL: pr.GetHTMLURL(), Number: pr.GetNumber()}, nil
}

// MergePR merges an open pull request using the given merge mode (spec
// §4.2 mergePr).
func (d *Driver) MergePR(ctx context.Context, number int, mode MergeMode) (*MergeResult, error) {
	result, _, err := d.client.PullRequests.Merge(ctx, d.owner, d.repo, number, "", &github.PullRequestOptions{
		MergeMethod: string(mode),
	})
	if err != nil {
		return nil, fmt.Errorf("merge pr #%d: %w", number, err)
	}
	return &MergeResult{SHA: result.GetSHA()}, nil
}

// CleanupBranch deletes a local branch and, optionally, its remote
// tracking branch (spec §4.2 cleanupBranch).
func (d *Driver) CleanupBranch(ctx context.Context, dir, branch string, deleteRemote bool) error {
	if deleteRemote {
		_, err := d.client.Git.DeleteRef(ctx, d.owner, d.repo, "heads/"+branch)
		if err != nil {
			return fmt.Errorf("delete remote branch %s: %w", branch, err)
		}
	}
	_, _, err := runGit(dir, "branch", "-D", branch)
	return err
}

// DirectMerge merges itemBranch into baseBranch without going through
// a PR, recording the pre-merge base HEAD as the rollback point (spec
// §4.2 direct-merge mode). The caller persists the returned sha as the
// item's rollback_sha.
func DirectMerge(dir, baseBranch, itemBranch string) (rollbackSha string, mergeCommitSha string, err error) {
	if _, _, err := runGit(dir, "switch", baseBranch); err != nil {
		return "", "", err
	}
	rollbackSha, err = HeadSha(dir)
	if err != nil {
		return "", "", err
	}
	if _, _, err := runGit(dir, "merge", "--no-ff", itemBranch); err != nil {
		return "", "", err
	}
	mergeCommitSha, err = HeadSha(dir)
	if err != nil {
		return "", "", err
	}
	return rollbackSha, mergeCommitSha, nil
}

// CheckResult is the outcome of one pr_checks.commands entry.
type CheckResult struct {
	Command string
	Output  string
	Err     error
}

// RunChecks executes each command in order with a bounded timeout,
// stopping at the first failure (spec §4.2 PR-check policy).
func RunChecks(ctx context.Context, dir string, commands []string, perCommandTimeout time.Duration) ([]CheckResult, error) {
	var results []CheckResult
	for _, c := range commands {
		cctx, cancel := context.WithTimeout(ctx, perCommandTimeout)
		out, err := runShell(cctx, dir, c)
		cancel()
		results = append(results, CheckResult{Command: c, Output: out, Err: err})
		if err != nil {
			return results, fmt.Errorf("check %q: %w", c, err)
		}
	}
	return results, nil
}

func runShell(ctx context.Context, dir, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// secretPatterns is a static sweep for common credential shapes,
// applied to a diff by SecretScan (spec §4.2 optional secret_scan).
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)aws_secret_access_key\s*=\s*\S+`),
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)\bsk-[a-zA-Z0-9]{20,}\b`),
	regexp.MustCompile(`(?i)\bghp_[a-zA-Z0-9]{30,}\b`),
}

// SecretScan sweeps diff for patterns that look like leaked credentials.
func SecretScan(diff string) []string {
	var hits []string
	for _, p := range secretPatterns {
		for _, m := range p.FindAllString(diff, -1) {
			hits = append(hits, strings.TrimSpace(m))
		}
	}
	return hits
}
