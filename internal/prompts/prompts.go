// Package prompts renders the per-phase prompt templates the Workflow
// Engine feeds to the Agent Runtime (spec §4.5.3 step 2). Templates are
// plain Markdown files under .wreckit/prompts/<phase>.md; a built-in
// default is used when the file is absent, matching the Doctor's
// MISSING_PROMPT_TEMPLATE diagnostic (a missing file is a warning, not
// a hard failure: the run still proceeds on the built-in).
package prompts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mhostetler/wreckit/internal/model"
	"github.com/mhostetler/wreckit/internal/workflow"
)

// Dir returns the directory phase prompt overrides live under.
func Dir(root string) string {
	return filepath.Join(root, ".wreckit", "prompts")
}

// Path returns the on-disk path for phase's template under root,
// matching the naming doctor.Scanner.PromptTemplatePaths expects.
func Path(root string, phase workflow.Phase) string {
	return filepath.Join(Dir(root), string(phase)+".md")
}

// Paths returns every phase's template path under root, for wiring into
// doctor.Scanner.PromptTemplatePaths.
func Paths(root string) []string {
	phases := []workflow.Phase{
		workflow.PhaseResearch, workflow.PhasePlan, workflow.PhaseImplement,
		workflow.PhaseCritique, workflow.PhasePR,
	}
	out := make([]string, 0, len(phases))
	for _, p := range phases {
		out = append(out, Path(root, p))
	}
	return out
}

// Every default template takes exactly three verbs, in order: item id,
// item title, item overview.
var defaults = map[workflow.Phase]string{
	workflow.PhaseResearch: "Research item %s: %s\n\n%s\n\nWrite your findings to research.md in the item directory.",
	workflow.PhasePlan: "Plan item %s: %s\n\n%s\n\nRead research.md, then write plan.md and prd.json with at least " +
		"one user story.",
	workflow.PhaseImplement: "Implement item %s: %s\n\n%s\n\nRead plan.md and prd.json. Implement the pending user " +
		"stories, marking each done in prd.json as you complete it.",
	workflow.PhaseCritique: "Critique item %s: %s\n\n%s\n\nRead plan.md and prd.json and the diff against the base " +
		"branch. Respond with a final JSON object {\"status\":\"approved\"|\"rejected\",\"reason\":...,\"critique\":...}.",
	workflow.PhasePR: "Prepare item %s for PR: %s\n\n%s\n\nWrite a PR title and description summarizing the change.",
}

// Render loads phase's template (falling back to the built-in default
// when no override file exists) and renders it against item. No
// separate template engine is introduced: the teacher builds prompts
// with plain string formatting, and phase prompts here have no
// looping/conditional structure that would justify text/template.
func Render(root string, phase workflow.Phase, item *model.Item) (string, []string, error) {
	tmpl, err := loadTemplate(root, phase)
	if err != nil {
		return "", nil, err
	}
	rendered := fmt.Sprintf(tmpl, item.ID, item.Title, item.Overview)
	return rendered, nil, nil
}

func loadTemplate(root string, phase workflow.Phase) (string, error) {
	b, err := os.ReadFile(Path(root, phase))
	if err == nil {
		return string(b), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	tmpl, ok := defaults[phase]
	if !ok {
		return "", fmt.Errorf("no prompt template for phase %q", phase)
	}
	return tmpl, nil
}
