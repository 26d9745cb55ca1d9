package agentruntime

import "strings"

// classifyError pattern-matches a stderr/err string into an ErrorKind,
// the same shape as the teacher's classifyProviderCLIError: a small
// ordered set of substring checks against known vendor error text
// rather than a typed error hierarchy per vendor.
func classifyError(text string) ErrorKind {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "unauthorized", "invalid api key", "authentication failed", "401"):
		return ErrorAuth
	case containsAny(lower, "rate limit", "429", "too many requests"):
		return ErrorRateLimit
	case containsAny(lower, "context length", "context_length_exceeded", "maximum context", "too many tokens"):
		return ErrorContextLimit
	case containsAny(lower, "no such host", "connection refused", "dns", "timeout", "i/o timeout", "network is unreachable"):
		return ErrorNetwork
	default:
		return ErrorUnknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
