package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mhostetler/wreckit/internal/agentruntime"
	"github.com/mhostetler/wreckit/internal/config"
	"github.com/mhostetler/wreckit/internal/doctor"
	"github.com/mhostetler/wreckit/internal/gitintegration"
	"github.com/mhostetler/wreckit/internal/model"
	"github.com/mhostetler/wreckit/internal/orchestrator"
	"github.com/mhostetler/wreckit/internal/prompts"
	"github.com/mhostetler/wreckit/internal/sandbox"
	"github.com/mhostetler/wreckit/internal/store"
	"github.com/mhostetler/wreckit/internal/version"
	"github.com/mhostetler/wreckit/internal/workflow"
)

// globalFlags carries the handful of flags every subcommand accepts
// (spec §6 "Global flags").
type globalFlags struct {
	sandbox bool
	agent   string
	dryRun  bool
	verbose bool
	cwd     string
}

func signalCancelContext() (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigCh := make(chan os.Signal, 1)
	stopCh := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				cancel(fmt.Errorf("stopped by signal %s", sig.String()))
				agentruntime.Global().CancelAll()
			case <-stopCh:
				return
			}
		}
	}()
	cleanup := func() {
		signal.Stop(sigCh)
		close(stopCh)
		cancel(nil)
	}
	return ctx, cleanup
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Printf("wreckit %s\n", version.Version)
		os.Exit(0)
	}

	flags, rest := parseGlobalFlags(os.Args[1:])
	if len(rest) < 1 {
		usage()
		os.Exit(1)
	}

	wired, err := wireUp(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch rest[0] {
	case "idea":
		cmdIdea(wired, rest[1:])
	case "research":
		cmdPhase(wired, workflow.PhaseResearch, rest[1:])
	case "plan":
		cmdPhase(wired, workflow.PhasePlan, rest[1:])
	case "implement":
		cmdPhase(wired, workflow.PhaseImplement, rest[1:])
	case "critique":
		cmdCritique(wired, rest[1:])
	case "pr":
		cmdPR(wired, rest[1:])
	case "run":
		cmdRunOne(wired, rest[1:])
	case "orchestrate":
		cmdOrchestrate(wired, rest[1:])
	case "status":
		cmdStatus(wired, rest[1:])
	case "show":
		cmdShow(wired, rest[1:])
	case "doctor":
		cmdDoctor(wired, rest[1:])
	case "sprite":
		cmdSprite(wired, rest[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  wreckit --version")
	fmt.Fprintln(os.Stderr, "  wreckit [--sandbox] [--agent <kind>] [--dry-run] [--verbose] [--cwd <path>] <command> [args]")
	fmt.Fprintln(os.Stderr, "  commands: idea | research | plan | implement | critique | pr | run | orchestrate | status | show | doctor [--fix] | sprite {start|list|kill|attach|exec|pull|status|resume|destroy}")
}

func parseGlobalFlags(args []string) (globalFlags, []string) {
	var f globalFlags
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--sandbox":
			f.sandbox = true
		case "--dry-run":
			f.dryRun = true
		case "--verbose":
			f.verbose = true
		case "--agent":
			i++
			if i < len(args) {
				f.agent = args[i]
			}
		case "--cwd":
			i++
			if i < len(args) {
				f.cwd = args[i]
			}
		default:
			rest = append(rest, args[i])
		}
	}
	if f.cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			f.cwd = wd
		}
	}
	return f, rest
}

// wiring bundles the subsystems a subcommand needs, assembled once per
// invocation from .wreckit/config.json's resolved settings.
type wiring struct {
	flags    globalFlags
	cfg      *config.Config
	env      map[string]string
	root     *store.Root
	executor *workflow.Executor
}

func wireUp(flags globalFlags) (*wiring, error) {
	cfg, env, err := config.Load(flags.cwd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	root := store.New(flags.cwd)
	render := func(phase workflow.Phase, item *model.Item) (string, []string, error) {
		return prompts.Render(flags.cwd, phase, item)
	}
	exec := workflow.NewExecutor(root, flags.cwd, render)

	sandboxCLI := &sandbox.CLI{BinaryPath: cfg.Sandbox.BinaryPath}
	mgr := &sandbox.Manager{CLI: sandboxCLI, Syncer: &sandbox.Syncer{CLI: sandboxCLI}}
	agentruntime.RegisterSpriteRunner(mgr.Run)

	return &wiring{flags: flags, cfg: cfg, env: env, root: root, executor: exec}, nil
}

func (w *wiring) agentConfig() agentruntime.AgentConfig {
	kind := agentruntime.Kind(w.cfg.Agent.Kind)
	if w.flags.agent != "" {
		kind = agentruntime.Kind(w.flags.agent)
	}
	if w.flags.sandbox {
		kind = agentruntime.KindSprite
		return agentruntime.AgentConfig{
			Kind:     kind,
			MemoryMB: w.cfg.Sandbox.MemoryMB,
			CPUs:     w.cfg.Sandbox.CPUs,
			Token:    firstNonEmpty(w.cfg.Sandbox.Token, w.env["SPRITES_TOKEN"]),
		}
	}
	return agentruntime.AgentConfig{
		Kind:         kind,
		Command:      w.cfg.Agent.Command,
		Args:         w.cfg.Agent.Args,
		Model:        w.cfg.Agent.Model,
		MaxTokens:    w.cfg.Agent.MaxTokens,
		ProviderOpts: w.cfg.Agent.ProviderOpts,
	}
}

func (w *wiring) limits() *agentruntime.Limits {
	lim := agentruntime.Limits{
		Iterations:    w.cfg.Limits.Iterations,
		DurationSecs:  w.cfg.Limits.DurationSecs,
		ProgressSteps: w.cfg.Limits.ProgressSteps,
		BudgetDollars: w.cfg.Limits.BudgetDollars,
	}
	return &lim
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func requireArg(args []string, i int, flag string) string {
	if i >= len(args) {
		fmt.Fprintf(os.Stderr, "%s requires a value\n", flag)
		os.Exit(1)
	}
	return args[i]
}

// --- idea -------------------------------------------------------------

func cmdIdea(w *wiring, args []string) {
	var title, overview string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--title":
			i++
			title = requireArg(args, i, "--title")
		case "--overview":
			i++
			overview = requireArg(args, i, "--overview")
		default:
			if title == "" {
				title = args[i]
			}
		}
	}
	if title == "" {
		fmt.Fprintln(os.Stderr, "idea requires --title")
		os.Exit(1)
	}
	entries, err := w.root.ScanItems()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	id := nextItemID(entries, title)
	item := model.NewItem(id, title, overview)
	if w.flags.dryRun {
		fmt.Printf("dry-run: would create item %s\n", id)
		return
	}
	if err := w.root.WriteItem(item); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := w.root.RebuildIndex(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("created item %s\n", id)
}

func nextItemID(entries []model.IndexEntry, title string) string {
	max := 0
	for _, e := range entries {
		prefix := model.NumericPrefix(e.ID)
		n := 0
		for _, c := range prefix {
			n = n*10 + int(c-'0')
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%03d-%s", max+1, slugify(title))
}

func slugify(s string) string {
	out := make([]byte, 0, len(s))
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, byte(r))
			lastDash = false
		case r >= 'A' && r <= 'Z':
			out = append(out, byte(r-'A'+'a'))
			lastDash = false
		default:
			if !lastDash && len(out) > 0 {
				out = append(out, '-')
				lastDash = true
			}
		}
	}
	for len(out) > 0 && out[len(out)-1] == '-' {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return "untitled"
	}
	return string(out)
}

// --- research / plan / implement --------------------------------------

func cmdPhase(w *wiring, phase workflow.Phase, args []string) {
	id := resolveIDArg(w, args)
	ctx, cleanup := signalCancelContext()
	defer cleanup()
	result, err := w.executor.RunPhase(ctx, id, phase, w.agentConfig(), w.limits())
	reportPhaseResult(result, err)
}

func resolveIDArg(w *wiring, args []string) string {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "an item id is required")
		os.Exit(1)
	}
	id, err := w.root.ResolveID(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return id
}

func reportPhaseResult(result *workflow.PhaseResult, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if result.Item != nil {
		fmt.Printf("item=%s state=%s advanced=%v\n", result.Item.ID, result.Item.State, result.Advanced)
	}
	if !result.Advanced {
		if result.Reason != "" {
			fmt.Fprintln(os.Stderr, result.Reason)
		}
		os.Exit(1)
	}
}

// --- critique -----------------------------------------------------------

func cmdCritique(w *wiring, args []string) {
	id := resolveIDArg(w, args)
	ctx, cleanup := signalCancelContext()
	defer cleanup()
	result, err := w.executor.RunCritique(ctx, id, w.agentConfig(), w.limits())
	reportPhaseResult(result, err)
}

// --- pr -------------------------------------------------------------------

func cmdPR(w *wiring, args []string) {
	id := resolveIDArg(w, args)
	ctx, cleanup := signalCancelContext()
	defer cleanup()

	mergeCfg := prChecksConfig(w.cfg)
	var driver workflow.MergeDriver
	if !mergeCfg.DirectMerge {
		token := firstNonEmpty(w.cfg.Git.GitHubToken, w.env["GITHUB_TOKEN"])
		driver = gitintegration.NewDriver(ctx, token, w.cfg.Git.GitHubOwner, w.cfg.Git.GitHubRepo)
	}
	result, err := w.executor.RunMerge(ctx, id, mergeCfg, driver)
	reportPhaseResult(result, err)
}

func prChecksConfig(cfg *config.Config) workflow.PRChecksConfig {
	return workflow.PRChecksConfig{
		RequireAllStoriesDone: true,
		SecretScan:            true,
		BaseBranch:            "main",
		MergeMode:             gitintegration.MergeSquash,
	}
}

// --- run (advance one item one phase) --------------------------------------

func cmdRunOne(w *wiring, args []string) {
	id := resolveIDArg(w, args)
	ctx, cleanup := signalCancelContext()
	defer cleanup()
	mergeCfg := prChecksConfig(w.cfg)
	var driver workflow.MergeDriver
	if !mergeCfg.DirectMerge {
		token := firstNonEmpty(w.cfg.Git.GitHubToken, w.env["GITHUB_TOKEN"])
		driver = gitintegration.NewDriver(ctx, token, w.cfg.Git.GitHubOwner, w.cfg.Git.GitHubRepo)
	}
	result, err := w.executor.AdvanceOne(ctx, id, w.agentConfig(), w.limits(), mergeCfg, driver)
	reportPhaseResult(result, err)
}

// --- orchestrate ------------------------------------------------------------

func cmdOrchestrate(w *wiring, args []string) {
	parallel := w.cfg.Orchestrator.Parallelism
	for i := 0; i < len(args); i++ {
		if args[i] == "--parallel" {
			i++
			val := requireArg(args, i, "--parallel")
			fmt.Sscanf(val, "%d", &parallel)
		}
	}

	sched := orchestrator.New(w.root, w.executor)
	sched.Parallel = parallel
	sched.AgentConfig = w.agentConfig()
	sched.Limits = w.limits()
	sched.MergeCfg = prChecksConfig(w.cfg)
	if !sched.MergeCfg.DirectMerge {
		ctx := context.Background()
		token := firstNonEmpty(w.cfg.Git.GitHubToken, w.env["GITHUB_TOKEN"])
		sched.Driver = gitintegration.NewDriver(ctx, token, w.cfg.Git.GitHubOwner, w.cfg.Git.GitHubRepo)
	}

	mode := orchestrator.AutoRepairMode(w.cfg.Orchestrator.AutoRepair)
	if mode != orchestrator.AutoRepairDisabled {
		scanner, fixer := wireDoctor(w)
		sched.Healer = orchestrator.NewHealer(scanner, fixer, mode, w.cfg.Orchestrator.HealMaxRetries)
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()
	bp, err := sched.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("completed=%d failed=%d skipped=%d\n", len(bp.Completed), len(bp.Failed), len(bp.Skipped))
	if len(bp.Failed) > 0 {
		os.Exit(1)
	}
}

// --- status / show ----------------------------------------------------------

func cmdStatus(w *wiring, args []string) {
	asJSON := false
	for _, a := range args {
		if a == "--json" {
			asJSON = true
		}
	}
	idx, err := w.root.ReadIndex()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(idx)
		return
	}
	for _, e := range idx.Items {
		fmt.Printf("%-28s %-14s %s\n", e.ID, e.State, e.Title)
	}
}

func cmdShow(w *wiring, args []string) {
	id := resolveIDArg(w, args)
	item, err := w.root.ReadItem(id)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(item)
}

// --- doctor -------------------------------------------------------------

func wireDoctor(w *wiring) (*doctor.Scanner, *doctor.Fixer) {
	cli := &sandbox.CLI{BinaryPath: w.cfg.Sandbox.BinaryPath}
	token := firstNonEmpty(w.cfg.Sandbox.Token, w.env["SPRITES_TOKEN"])
	scanner := &doctor.Scanner{
		Store:               w.root,
		PromptTemplatePaths: prompts.Paths(w.flags.cwd),
		VMs:                 cli,
		SandboxCLIPresent:   func() bool { return w.cfg.Sandbox.BinaryPath != "" },
		SandboxTokenPresent: func() bool { return token != "" },
	}
	fixer := &doctor.Fixer{Store: w.root, RepoDir: w.flags.cwd, Sandbox: cli}
	return scanner, fixer
}

func cmdDoctor(w *wiring, args []string) {
	fix := false
	for _, a := range args {
		if a == "--fix" {
			fix = true
		}
	}
	scanner, fixer := wireDoctor(w)
	ctx, cleanup := signalCancelContext()
	defer cleanup()
	diags, err := scanner.Diagnose(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, d := range diags {
		fmt.Printf("%s %s %s: %s\n", d.Severity, d.ItemID, d.Code, d.Message)
	}
	if !fix {
		if len(diags) > 0 {
			os.Exit(1)
		}
		return
	}
	manifest, results := fixer.Fix(ctx, diags)
	for _, r := range results {
		status := "fixed"
		if !r.Fixed {
			status = fmt.Sprintf("failed: %v", r.Err)
		}
		fmt.Printf("fix %s %s: %s\n", r.Diagnostic.ItemID, r.Diagnostic.Code, status)
	}
	if len(manifest.Entries) > 0 {
		fmt.Printf("backup_session=%s entries=%d\n", manifest.SessionID, len(manifest.Entries))
	}
}

// --- sprite ---------------------------------------------------------------

func cmdSprite(w *wiring, args []string) {
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	cli := &sandbox.CLI{BinaryPath: w.cfg.Sandbox.BinaryPath}
	token := firstNonEmpty(w.cfg.Sandbox.Token, w.env["SPRITES_TOKEN"])
	ctx, cleanup := signalCancelContext()
	defer cleanup()

	switch args[0] {
	case "start":
		name := requireArg(args, 1, "sprite start <name>")
		if err := cli.StartVM(ctx, name, w.cfg.Sandbox.MemoryMB, w.cfg.Sandbox.CPUs, token); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("started %s\n", name)
	case "list":
		names, err := cli.ListVMs(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case "kill", "destroy":
		name := requireArg(args, 1, "sprite "+args[0]+" <name>")
		if err := cli.KillVM(ctx, name); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "exec":
		name := requireArg(args, 1, "sprite exec <name> -- <cmd...>")
		out, err := cli.ExecInVM(ctx, name, args[2:], nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Print(out.Out)
		os.Exit(out.ExitCode)
	case "status", "attach", "pull", "resume":
		sessions := &sandbox.SessionStore{Dir: w.flags.cwd}
		list, err := sessions.List(sandbox.ListFilter{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, s := range list {
			fmt.Printf("%s %s %s started=%s\n", s.SessionID, s.ItemID, s.State, s.StartedAt)
		}
	default:
		usage()
		os.Exit(1)
	}
}
