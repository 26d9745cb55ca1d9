package agentruntime

import (
	"context"
	"testing"
)

type fakeSDKClient struct {
	messages []sdkMessage
}

func (c *fakeSDKClient) Stream(ctx context.Context, prompt string, opts *RunOptions) (<-chan sdkMessage, error) {
	ch := make(chan sdkMessage, len(c.messages))
	for _, m := range c.messages {
		ch <- m
	}
	close(ch)
	return ch, nil
}

func TestRunSDK_CompletesSuccessfully(t *testing.T) {
	RegisterSDKClient(KindClaudeSDK, func(cfg AgentConfig) (sdkClient, error) {
		return &fakeSDKClient{messages: []sdkMessage{
			{Role: "assistant", Text: "hello", IsFinal: true},
		}}, nil
	})

	result := RunAgent(context.Background(), &RunOptions{
		Config: AgentConfig{Kind: KindClaudeSDK},
	})
	if !result.Success || !result.CompletionDetected {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestRunSDK_IterationLimitExceeded_FailsCleanly(t *testing.T) {
	var msgs []sdkMessage
	for i := 0; i < 5; i++ {
		msgs = append(msgs, sdkMessage{Role: "assistant", Text: "x"})
	}
	msgs = append(msgs, sdkMessage{Role: "assistant", Text: "done", IsFinal: true})

	RegisterSDKClient(KindAmpSDK, func(cfg AgentConfig) (sdkClient, error) {
		return &fakeSDKClient{messages: msgs}, nil
	})

	lim := Limits{Iterations: 2, DurationSecs: 9999, ProgressSteps: 9999}
	result := RunAgent(context.Background(), &RunOptions{
		Config: AgentConfig{Kind: KindAmpSDK},
		Limits: &lim,
	})
	if result.Success {
		t.Fatalf("expected the iteration cap to fail the turn, got %+v", result)
	}
	if result.Error == nil || result.Error.Kind != ErrorLimitExceeded {
		t.Fatalf("expected a limit_exceeded error, got %+v", result.Error)
	}
}

func TestRunSDK_ProgressStepLimitExceeded_FailsCleanly(t *testing.T) {
	msgs := []sdkMessage{
		{Role: "tool", ToolName: "read_file"},
		{Role: "tool", ToolName: "write_file"},
		{Role: "assistant", Text: "done", IsFinal: true},
	}
	RegisterSDKClient(KindCodexSDK, func(cfg AgentConfig) (sdkClient, error) {
		return &fakeSDKClient{messages: msgs}, nil
	})

	lim := Limits{Iterations: 9999, DurationSecs: 9999, ProgressSteps: 1}
	result := RunAgent(context.Background(), &RunOptions{
		Config:       AgentConfig{Kind: KindCodexSDK},
		AllowedTools: []string{"read_file", "write_file"},
		Limits:       &lim,
	})
	if result.Success {
		t.Fatalf("expected the progress-step cap to fail the turn, got %+v", result)
	}
	if result.Error == nil || result.Error.Kind != ErrorLimitExceeded {
		t.Fatalf("expected a limit_exceeded error, got %+v", result.Error)
	}
}
