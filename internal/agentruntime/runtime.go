package agentruntime

import "context"

// spriteRunner is the seam internal/sandbox plugs into; wired by
// cmd/wreckit at startup (sandbox depends on agentruntime's types, so
// agentruntime cannot import sandbox directly without a cycle).
var spriteRunner func(ctx context.Context, opts *RunOptions) *AgentResult

// RegisterSpriteRunner installs the sandbox backend's executor for the
// "sprite" variant (spec §4.4).
func RegisterSpriteRunner(fn func(ctx context.Context, opts *RunOptions) *AgentResult) {
	spriteRunner = fn
}

// RunAgent is the Agent Runtime's single public operation (spec
// §4.3.1): one function, dispatching on the tagged AgentConfig.Kind.
func RunAgent(ctx context.Context, opts *RunOptions) *AgentResult {
	if opts.DryRun {
		return dryRunResult(opts)
	}
	if opts.MockAgent {
		return mockResult(opts)
	}

	switch opts.Config.Kind {
	case KindProcess:
		return runProcess(ctx, opts)
	case KindClaudeSDK, KindAmpSDK, KindCodexSDK, KindOpencodeSDK, KindRLM:
		return runSDK(ctx, opts)
	case KindSprite:
		if spriteRunner == nil {
			return failureResult(ErrorUnknown, "sandbox backend not registered")
		}
		return spriteRunner(ctx, opts)
	default:
		return failureResult(ErrorUnknown, "unknown agent kind %q", opts.Config.Kind)
	}
}

// dryRunResult short-circuits every side effect, logging the would-be
// tool allowlist in its output (spec §4.3.5).
func dryRunResult(opts *RunOptions) *AgentResult {
	allowlist := "unrestricted"
	if opts.AllowedTools != nil {
		allowlist = joinTools(opts.AllowedTools)
	}
	return &AgentResult{
		Success:            true,
		CompletionDetected: true,
		Output:             "[dry-run] would invoke " + string(opts.Config.Kind) + " with allowlist: " + allowlist,
	}
}

// mockResult returns a deterministic fake output, bypassing all side
// effects including sandbox and git (spec §4.3.5).
func mockResult(opts *RunOptions) *AgentResult {
	return &AgentResult{
		Success:            true,
		CompletionDetected: true,
		Output:             "[mock] " + string(opts.Config.Kind) + " completed",
	}
}

func joinTools(tools []string) string {
	out := ""
	for i, t := range tools {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}
