package agentruntime

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// runProcess implements the "local process" variant (spec §4.3.2):
// spawn command args with stdin=prompt, stream stdout/stderr via the
// sinks, watch the combined stream for completion_signal. Success
// requires both a zero exit code and completion-signal detection. A
// timeout sends SIGTERM, then SIGKILL after 5 seconds.
func runProcess(ctx context.Context, opts *RunOptions) *AgentResult {
	cfg := opts.Config
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	_, release := Global().Register(cancel)
	defer release()
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = opts.Cwd
	cmd.Stdin = strings.NewReader(opts.Prompt)
	// SIGTERM first, SIGKILL after 5s if the process ignores it (spec §4.3.2).
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return failureResult(ErrorUnknown, "stdout pipe: %v", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return failureResult(ErrorUnknown, "stderr pipe: %v", err)
	}

	if err := cmd.Start(); err != nil {
		return failureResult(classifyError(err.Error()), "start %s: %v", cfg.Command, err)
	}

	var mu sync.Mutex
	var combined strings.Builder
	detected := false

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(stdoutPipe, &wg, func(line string) {
		opts.emitStdout(line)
		mu.Lock()
		combined.WriteString(line)
		combined.WriteString("\n")
		if cfg.CompletionSignal != "" && strings.Contains(line, cfg.CompletionSignal) {
			detected = true
		}
		mu.Unlock()
	})
	go streamLines(stderrPipe, &wg, func(line string) {
		opts.emitStderr(line)
		mu.Lock()
		combined.WriteString(line)
		combined.WriteString("\n")
		if cfg.CompletionSignal != "" && strings.Contains(line, cfg.CompletionSignal) {
			detected = true
		}
		mu.Unlock()
	})
	wg.Wait()

	waitErr := cmd.Wait()
	duration := time.Since(start).Seconds()

	timedOut := ctx.Err() == context.DeadlineExceeded
	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	mu.Lock()
	output := combined.String()
	ok := detected
	mu.Unlock()

	if timedOut {
		return &AgentResult{
			Success:  false,
			TimedOut: true,
			ExitCode: &exitCode,
			Duration: duration,
			Output:   output,
			Error:    &AgentError{Kind: ErrorAgentNoRespond, Message: "timed out waiting for completion signal"},
		}
	}
	if waitErr != nil && !ok {
		return &AgentResult{
			Success:  false,
			ExitCode: &exitCode,
			Duration: duration,
			Output:   output,
			Error:    &AgentError{Kind: classifyError(waitErr.Error()), Message: waitErr.Error()},
		}
	}

	success := waitErr == nil && ok
	result := &AgentResult{
		Success:            success,
		CompletionDetected: ok,
		ExitCode:           &exitCode,
		Duration:           duration,
		Output:             output,
	}
	if !success {
		result.Error = &AgentError{Kind: ErrorAgentNoRespond, Message: "process exited cleanly but no completion signal observed"}
	}
	return result
}

func streamLines(r io.Reader, wg *sync.WaitGroup, onLine func(string)) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
}
