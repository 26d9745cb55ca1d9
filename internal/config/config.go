// Package config loads .wreckit/config.json (or config.local.json) the
// way engine.LoadRunConfigFile loads run.yaml: YAML by default, JSON
// when the extension is .json, strict decoding, defaults applied
// post-decode, then validated (spec §6).
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SandboxConfig configures the sprite VM backend (spec §4.4).
type SandboxConfig struct {
	BinaryPath string `json:"binary_path,omitempty" yaml:"binary_path,omitempty"`
	Token      string `json:"token,omitempty" yaml:"token,omitempty"`
	MemoryMB   int    `json:"memory_mb,omitempty" yaml:"memory_mb,omitempty"`
	CPUs       int    `json:"cpus,omitempty" yaml:"cpus,omitempty"`
}

// GitConfig configures the Git Integration component (spec §4.2).
type GitConfig struct {
	RequireClean *bool  `json:"require_clean,omitempty" yaml:"require_clean,omitempty"`
	BranchPrefix string `json:"branch_prefix,omitempty" yaml:"branch_prefix,omitempty"`
	PushRemote   string `json:"push_remote,omitempty" yaml:"push_remote,omitempty"`
	GitHubToken  string `json:"github_token,omitempty" yaml:"github_token,omitempty"`
	GitHubOwner  string `json:"github_owner,omitempty" yaml:"github_owner,omitempty"`
	GitHubRepo   string `json:"github_repo,omitempty" yaml:"github_repo,omitempty"`
}

// OrchestratorConfig configures the Orchestrator's scheduling and
// Doctor-driven healing policy (spec §4.6, §4.7.3).
type OrchestratorConfig struct {
	Parallelism    int    `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`
	AutoRepair     string `json:"auto_repair,omitempty" yaml:"auto_repair,omitempty"` // false|safe-only|true
	HealMaxRetries int    `json:"heal_max_retries,omitempty" yaml:"heal_max_retries,omitempty"`
}

// LimitsConfig mirrors agentruntime.Limits/limits.Caps' shape (spec
// §4.8) so it can be loaded from config without an import cycle.
type LimitsConfig struct {
	Iterations    int      `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	DurationSecs  int      `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	ProgressSteps int      `json:"progress_steps,omitempty" yaml:"progress_steps,omitempty"`
	BudgetDollars *float64 `json:"budget_dollars,omitempty" yaml:"budget_dollars,omitempty"`
}

// AgentConfig configures the default agent variant (spec §4.3.1, §6
// "tagged union on kind").
type AgentConfig struct {
	Kind         string         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Command      string         `json:"command,omitempty" yaml:"command,omitempty"`
	Args         []string       `json:"args,omitempty" yaml:"args,omitempty"`
	Model        string         `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens    int            `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	ProviderOpts map[string]any `json:"provider_opts,omitempty" yaml:"provider_opts,omitempty"`
	AllowedTools []string       `json:"allowed_tools,omitempty" yaml:"allowed_tools,omitempty"`
}

// Config is the decoded shape of .wreckit/config.json /
// config.local.json (spec §6).
type Config struct {
	Version      int                `json:"version" yaml:"version"`
	Sandbox      SandboxConfig      `json:"sandbox,omitempty" yaml:"sandbox,omitempty"`
	Git          GitConfig          `json:"git,omitempty" yaml:"git,omitempty"`
	Orchestrator OrchestratorConfig `json:"orchestrator,omitempty" yaml:"orchestrator,omitempty"`
	Limits       LimitsConfig       `json:"limits,omitempty" yaml:"limits,omitempty"`
	Agent        AgentConfig        `json:"agent,omitempty" yaml:"agent,omitempty"`
	Env          map[string]string  `json:"env,omitempty" yaml:"env,omitempty"`
}

// passthroughPrefixes are the environment variable prefixes passed
// through to whichever agent variant needs them (spec §6).
var passthroughPrefixes = []string{
	"ANTHROPIC_", "CLAUDE_CODE_", "OPENAI_", "GOOGLE_", "ZAI_",
	"SPRITES_", "GITHUB_", "API_TIMEOUT",
}

// Load reads .wreckit/config.local.json (or .yaml) and .wreckit/config.json
// under root, merges them with process-environment passthrough
// (spec §6 precedence: config.local.json → config.json → process env →
// user settings file), and returns the resolved Config plus the
// resolved passthrough environment map.
func Load(root string) (*Config, map[string]string, error) {
	base, err := loadLayer(root, "config")
	if err != nil {
		return nil, nil, err
	}
	local, err := loadLayer(root, "config.local")
	if err != nil {
		return nil, nil, err
	}
	merged := merge(base, local)
	applyDefaults(merged)
	if err := validate(merged); err != nil {
		return nil, nil, err
	}
	env := passthroughEnv(os.Environ())
	for k, v := range merged.Env {
		env[k] = v
	}
	return merged, env, nil
}

// loadLayer looks for <root>/.wreckit/<name>.json, then <name>.yaml,
// then <name>.yml. A missing layer is not an error: it returns a zero
// Config so the merge treats it as "nothing to override".
func loadLayer(root, name string) (*Config, error) {
	dir := filepath.Join(root, ".wreckit")
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		path := filepath.Join(dir, name+ext)
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		cfg := &Config{}
		if strings.ToLower(ext) == ".json" {
			if err := decodeJSONStrict(b, cfg); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		} else {
			if err := decodeYAMLStrict(b, cfg); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		return cfg, nil
	}
	return &Config{}, nil
}

func decodeJSONStrict(b []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("json: multiple top-level values are not allowed")
		}
		return err
	}
	return nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

// merge overlays local on top of base: a zero-valued field in local
// leaves base's value untouched (spec §6 precedence, config.local.json
// wins over config.json field-by-field).
func merge(base, local *Config) *Config {
	out := *base
	if local.Version != 0 {
		out.Version = local.Version
	}
	out.Sandbox = mergeSandbox(base.Sandbox, local.Sandbox)
	out.Git = mergeGit(base.Git, local.Git)
	out.Orchestrator = mergeOrchestrator(base.Orchestrator, local.Orchestrator)
	out.Limits = mergeLimits(base.Limits, local.Limits)
	out.Agent = mergeAgent(base.Agent, local.Agent)
	out.Env = mergeEnv(base.Env, local.Env)
	return &out
}

func mergeSandbox(base, local SandboxConfig) SandboxConfig {
	out := base
	if local.BinaryPath != "" {
		out.BinaryPath = local.BinaryPath
	}
	if local.Token != "" {
		out.Token = local.Token
	}
	if local.MemoryMB != 0 {
		out.MemoryMB = local.MemoryMB
	}
	if local.CPUs != 0 {
		out.CPUs = local.CPUs
	}
	return out
}

func mergeGit(base, local GitConfig) GitConfig {
	out := base
	if local.RequireClean != nil {
		out.RequireClean = local.RequireClean
	}
	if local.BranchPrefix != "" {
		out.BranchPrefix = local.BranchPrefix
	}
	if local.PushRemote != "" {
		out.PushRemote = local.PushRemote
	}
	if local.GitHubToken != "" {
		out.GitHubToken = local.GitHubToken
	}
	if local.GitHubOwner != "" {
		out.GitHubOwner = local.GitHubOwner
	}
	if local.GitHubRepo != "" {
		out.GitHubRepo = local.GitHubRepo
	}
	return out
}

func mergeOrchestrator(base, local OrchestratorConfig) OrchestratorConfig {
	out := base
	if local.Parallelism != 0 {
		out.Parallelism = local.Parallelism
	}
	if local.AutoRepair != "" {
		out.AutoRepair = local.AutoRepair
	}
	if local.HealMaxRetries != 0 {
		out.HealMaxRetries = local.HealMaxRetries
	}
	return out
}

func mergeLimits(base, local LimitsConfig) LimitsConfig {
	out := base
	if local.Iterations != 0 {
		out.Iterations = local.Iterations
	}
	if local.DurationSecs != 0 {
		out.DurationSecs = local.DurationSecs
	}
	if local.ProgressSteps != 0 {
		out.ProgressSteps = local.ProgressSteps
	}
	if local.BudgetDollars != nil {
		out.BudgetDollars = local.BudgetDollars
	}
	return out
}

func mergeAgent(base, local AgentConfig) AgentConfig {
	out := base
	if local.Kind != "" {
		out.Kind = local.Kind
	}
	if local.Command != "" {
		out.Command = local.Command
	}
	if len(local.Args) > 0 {
		out.Args = local.Args
	}
	if local.Model != "" {
		out.Model = local.Model
	}
	if local.MaxTokens != 0 {
		out.MaxTokens = local.MaxTokens
	}
	if len(local.ProviderOpts) > 0 {
		out.ProviderOpts = local.ProviderOpts
	}
	if len(local.AllowedTools) > 0 {
		out.AllowedTools = local.AllowedTools
	}
	return out
}

func mergeEnv(base, local map[string]string) map[string]string {
	if len(base) == 0 && len(local) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(local))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

// applyDefaults fills unset fields the way engine.applyConfigDefaults
// does: explicit defaults, not zero values left to propagate silently.
func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Git.RequireClean == nil {
		t := true
		cfg.Git.RequireClean = &t
	}
	if cfg.Git.BranchPrefix == "" {
		cfg.Git.BranchPrefix = "wreckit"
	}
	if cfg.Orchestrator.Parallelism == 0 {
		cfg.Orchestrator.Parallelism = 1
	}
	if cfg.Orchestrator.AutoRepair == "" {
		cfg.Orchestrator.AutoRepair = "false"
	}
	if cfg.Orchestrator.HealMaxRetries == 0 {
		cfg.Orchestrator.HealMaxRetries = 1
	}
	if cfg.Limits.Iterations == 0 {
		cfg.Limits.Iterations = 100
	}
	if cfg.Limits.DurationSecs == 0 {
		cfg.Limits.DurationSecs = 3600
	}
	if cfg.Limits.ProgressSteps == 0 {
		cfg.Limits.ProgressSteps = 1000
	}
	if cfg.Sandbox.MemoryMB == 0 {
		cfg.Sandbox.MemoryMB = 2048
	}
	if cfg.Sandbox.CPUs == 0 {
		cfg.Sandbox.CPUs = 2
	}
	if cfg.Agent.Kind == "" {
		cfg.Agent.Kind = "process"
	}
}

// validate mirrors engine.validateConfig's flat, early-return style.
func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", cfg.Version)
	}
	switch cfg.Orchestrator.AutoRepair {
	case "false", "safe-only", "true":
	default:
		return fmt.Errorf("invalid orchestrator.auto_repair: %q (want false|safe-only|true)", cfg.Orchestrator.AutoRepair)
	}
	if cfg.Orchestrator.Parallelism < 1 {
		return fmt.Errorf("orchestrator.parallelism must be >= 1")
	}
	if cfg.Orchestrator.HealMaxRetries < 0 {
		return fmt.Errorf("orchestrator.heal_max_retries must be >= 0")
	}
	if cfg.Limits.Iterations < 0 || cfg.Limits.DurationSecs < 0 || cfg.Limits.ProgressSteps < 0 {
		return fmt.Errorf("limits fields must be >= 0")
	}
	if cfg.Limits.BudgetDollars != nil && *cfg.Limits.BudgetDollars < 0 {
		return fmt.Errorf("limits.budget_dollars must be >= 0")
	}
	if cfg.Sandbox.MemoryMB < 0 || cfg.Sandbox.CPUs < 0 {
		return fmt.Errorf("sandbox.memory_mb and sandbox.cpus must be >= 0")
	}
	return nil
}

// passthroughEnv filters environ (the "KEY=VALUE" form os.Environ
// returns) down to the prefixes spec §6 names for passthrough to the
// agent variant that needs them.
func passthroughEnv(environ []string) map[string]string {
	out := map[string]string{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, p := range passthroughPrefixes {
			if strings.HasPrefix(k, p) {
				out[k] = v
				break
			}
		}
	}
	return out
}
