package agentruntime

import (
	"context"
	"fmt"
	"time"

	"github.com/mhostetler/wreckit/internal/limits"
)

// sdkMessage is the minimal shape every in-process SDK client yields,
// regardless of vendor (spec §4.3.2: "each yielded message is formatted
// to text for the output sinks and translated to structured
// AgentEvents"). Concrete SDK clients are external collaborators (spec
// §1 Out-of-scope); sdkClient is the seam they plug into.
type sdkMessage struct {
	Role     string // "assistant", "tool", "system"
	Text     string
	ToolName string
	ToolArgs map[string]any
	IsFinal  bool
	Err      error
}

// sdkClient is implemented per vendor (claude, amp, codex, opencode,
// rlm); wreckit ships no concrete client — it is supplied by the
// caller's config, matching the teacher's provider-runtime injection
// seam in codergen_router.go (ProviderRuntime).
type sdkClient interface {
	Stream(ctx context.Context, prompt string, opts *RunOptions) (<-chan sdkMessage, error)
}

// sdkRegistry maps each SDK Kind to its concrete client constructor.
// Populated by config wiring at process startup; nil entries fall back
// to a not-configured failure.
var sdkRegistry = map[Kind]func(cfg AgentConfig) (sdkClient, error){}

// RegisterSDKClient installs the client constructor for kind. Called
// once at startup by cmd/wreckit wiring.
func RegisterSDKClient(kind Kind, ctor func(cfg AgentConfig) (sdkClient, error)) {
	sdkRegistry[kind] = ctor
}

// runSDK implements the "in-process SDK" variant shared by
// claude_sdk/amp_sdk/codex_sdk/opencode_sdk/rlm (spec §4.3.2). The run
// is bound to a cancellation token registered in the process-global
// registry so a single interrupt can stop every in-flight SDK turn.
func runSDK(ctx context.Context, opts *RunOptions) *AgentResult {
	ctor, ok := sdkRegistry[opts.Config.Kind]
	if !ok {
		return failureResult(ErrorUnknown, "no sdk client registered for kind %q", opts.Config.Kind)
	}
	client, err := ctor(opts.Config)
	if err != nil {
		return failureResult(classifyError(err.Error()), "construct %s client: %v", opts.Config.Kind, err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	_, release := Global().Register(cancel)
	defer release()
	defer cancel()

	msgs, err := client.Stream(ctx, opts.Prompt, opts)
	if err != nil {
		return failureResult(classifyError(err.Error()), "%s stream: %v", opts.Config.Kind, err)
	}

	var output, lastErrText string
	var iterations int
	completion := false
	toolDenied := false
	allowlist := opts.AllowedTools

	tracker := limits.New(opts.effectiveLimits().caps())
	var breach *limits.Exceeded

msgLoop:
	for msg := range msgs {
		iterations++
		if err := tracker.CheckIteration(); err != nil {
			breach = err.(*limits.Exceeded)
			cancel()
			break msgLoop
		}
		if msg.Err != nil {
			lastErrText = msg.Err.Error()
			opts.emitEvent(AgentEvent{Type: "error", Payload: lastErrText})
			continue
		}
		switch msg.Role {
		case "tool":
			if ToolDenied(allowlist, msg.ToolName) {
				toolDenied = true
				opts.emitEvent(AgentEvent{Type: "tool_result", Tool: msg.ToolName, Payload: "denied"})
				continue
			}
			opts.emitEvent(AgentEvent{Type: "tool_use", Tool: msg.ToolName, Payload: msg.ToolArgs})
			if err := tracker.CheckProgressStep(); err != nil {
				breach = err.(*limits.Exceeded)
				cancel()
				break msgLoop
			}
		default:
			opts.emitStdout(msg.Text)
			output += msg.Text
			opts.emitEvent(AgentEvent{Type: "message", Payload: msg.Text})
		}
		if msg.IsFinal {
			completion = true
		}
	}

	duration := time.Since(start).Seconds()
	if breach != nil {
		return &AgentResult{
			Success: false, Duration: duration, Output: output, Iterations: iterations,
			Error: &AgentError{Kind: ErrorLimitExceeded, Message: breach.Error()},
		}
	}
	if ctx.Err() == context.DeadlineExceeded {
		return &AgentResult{Success: false, TimedOut: true, Duration: duration, Output: output, Iterations: iterations}
	}
	if toolDenied {
		return &AgentResult{
			Success: false, Duration: duration, Output: output, Iterations: iterations,
			Error: &AgentError{Kind: ErrorToolDenied, Message: "a tool call was denied by the effective allowlist"},
		}
	}
	if lastErrText != "" {
		return &AgentResult{
			Success: false, Duration: duration, Output: output, Iterations: iterations,
			Error: &AgentError{Kind: classifyError(lastErrText), Message: lastErrText},
		}
	}
	if !completion {
		return &AgentResult{
			Success: false, Duration: duration, Output: output, Iterations: iterations,
			Error: &AgentError{Kind: ErrorAgentNoRespond, Message: fmt.Sprintf("%s stream ended without a final message", opts.Config.Kind)},
		}
	}
	return &AgentResult{
		Success: true, CompletionDetected: true, Duration: duration,
		Output: output, Iterations: iterations,
	}
}
