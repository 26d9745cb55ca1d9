// Package agentruntime implements the Agent Runtime (spec §4.3): one
// uniform contract, runAgent(opts) -> AgentResult, over a tagged
// enumeration of execution variants (local subprocess, in-process SDK,
// sandboxed VM).
package agentruntime

import (
	"time"

	"github.com/mhostetler/wreckit/internal/limits"
)

// Kind is the tagged variant discriminator for AgentConfig (spec
// §4.3.1, §6 "tagged union on kind").
type Kind string

const (
	KindProcess     Kind = "process"
	KindClaudeSDK   Kind = "claude_sdk"
	KindAmpSDK      Kind = "amp_sdk"
	KindCodexSDK    Kind = "codex_sdk"
	KindOpencodeSDK Kind = "opencode_sdk"
	KindRLM         Kind = "rlm"
	KindSprite      Kind = "sprite"
)

// AgentConfig is a closed, tagged enumeration of agent variants; each
// variant carries only the fields it needs (spec §9 "tagged agent
// configuration over inheritance").
type AgentConfig struct {
	Kind Kind

	// process
	Command          string
	Args             []string
	CompletionSignal string

	// SDK variants (claude_sdk/amp_sdk/codex_sdk/opencode_sdk/rlm)
	Model         string
	MaxTokens     int
	ProviderOpts  map[string]any

	// sprite (sandbox)
	VMName   string
	MemoryMB int
	CPUs     int
	Token    string
}

// LegacyModeConfig is the pre-tagged `{mode, command, args,
// completion_signal}` shape accepted as an alias for kind=process (spec
// §6).
type LegacyModeConfig struct {
	Mode             string   `json:"mode"`
	Command          string   `json:"command"`
	Args             []string `json:"args"`
	CompletionSignal string   `json:"completion_signal"`
}

// ToAgentConfig converts the legacy shape into the tagged form.
func (l LegacyModeConfig) ToAgentConfig() AgentConfig {
	return AgentConfig{
		Kind:             KindProcess,
		Command:          l.Command,
		Args:             l.Args,
		CompletionSignal: l.CompletionSignal,
	}
}

// Limits bounds a single agent turn (spec §4.8).
type Limits struct {
	Iterations     int
	DurationSecs   int
	ProgressSteps  int
	BudgetDollars  *float64
}

// DefaultLimits matches spec §4.8 defaults.
func DefaultLimits() Limits {
	return Limits{Iterations: 100, DurationSecs: 3600, ProgressSteps: 1000}
}

// caps converts to the internal/limits package's dependency-free shape
// so the runtime can enforce caps mid-turn without a cycle.
func (l Limits) caps() limits.Caps {
	return limits.Caps{
		Iterations:    l.Iterations,
		DurationSecs:  l.DurationSecs,
		ProgressSteps: l.ProgressSteps,
		BudgetDollars: l.BudgetDollars,
	}
}

// RunOptions is the input to RunAgent (spec §4.3.1).
type RunOptions struct {
	Config         AgentConfig
	Cwd            string
	Prompt         string
	AllowedTools   []string
	MCPServers     []string
	TimeoutSeconds int
	Limits         *Limits
	DryRun         bool
	MockAgent      bool

	OnStdoutChunk func(chunk string)
	OnStderrChunk func(chunk string)
	OnAgentEvent  func(ev AgentEvent)
}

// effectiveLimits returns o.Limits if set, else the spec §4.8 defaults.
func (o *RunOptions) effectiveLimits() Limits {
	if o.Limits != nil {
		return *o.Limits
	}
	return DefaultLimits()
}

func (o *RunOptions) timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

func (o *RunOptions) emitStdout(s string) {
	if o.OnStdoutChunk != nil && s != "" {
		o.OnStdoutChunk(s)
	}
}

func (o *RunOptions) emitStderr(s string) {
	if o.OnStderrChunk != nil && s != "" {
		o.OnStderrChunk(s)
	}
}

func (o *RunOptions) emitEvent(ev AgentEvent) {
	if o.OnAgentEvent != nil {
		o.OnAgentEvent(ev)
	}
}

// AgentEvent is a structured event translated from a variant's native
// stream (spec §4.3.2 "translated to structured AgentEvents").
type AgentEvent struct {
	Type    string // tool_use, tool_result, message, error
	Tool    string
	Payload any
}
