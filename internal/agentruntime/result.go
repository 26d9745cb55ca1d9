package agentruntime

import "fmt"

// ErrorKind classifies a failed agent turn (spec §4.3.1, §7
// AgentFailed{...}).
type ErrorKind string

const (
	ErrorAuth           ErrorKind = "auth"
	ErrorRateLimit      ErrorKind = "rate_limit"
	ErrorContextLimit   ErrorKind = "context_limit"
	ErrorNetwork        ErrorKind = "network"
	ErrorLimitExceeded  ErrorKind = "limit_exceeded"
	ErrorToolDenied     ErrorKind = "tool_denied"
	ErrorAgentNoRespond ErrorKind = "agent_nonresponse"
	ErrorUnknown        ErrorKind = "unknown"
)

// AgentError is the structured error carried on a failed AgentResult.
type AgentError struct {
	Kind    ErrorKind
	Message string
}

func (e *AgentError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// AgentResult is the output of RunAgent (spec §4.3.1).
type AgentResult struct {
	Success            bool
	CompletionDetected bool
	ExitCode           *int
	TimedOut           bool
	Iterations         int
	Duration           float64 // seconds
	FilesModified      []string
	Output             string
	SessionID          string
	Error              *AgentError
}

func failureResult(kind ErrorKind, format string, args ...any) *AgentResult {
	return &AgentResult{
		Success: false,
		Error:   &AgentError{Kind: kind, Message: fmt.Sprintf(format, args...)},
	}
}
