package sandbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mhostetler/wreckit/internal/agentruntime"
)

// Manager owns the "currently-owned ephemeral VM" pointer for one
// sandbox runner, guarded by its own mutex per spec §5 "Shared
// resources".
type Manager struct {
	CLI    *CLI
	Syncer *Syncer

	owned string // name of the ephemeral VM this manager currently owns, if any
}

// Run executes one sprite agent turn: resolve name, ensure VM, push,
// run the turn via runInVM, optionally pull on success, and always tear
// down (spec §4.4 Lifecycle of one sprite run). It is registered as the
// agentruntime "sprite" variant executor.
func (m *Manager) Run(ctx context.Context, opts *agentruntime.RunOptions) *agentruntime.AgentResult {
	cfg := opts.Config
	name, ephemeral := VMName(cfg.VMName, itemIDFromCwd(opts.Cwd), time.Now().UnixMilli())

	if ephemeral {
		m.owned = name
	}
	defer m.teardown(ctx, name, ephemeral)

	_, cancel := agentruntime.Global().Register(func() {
		_ = m.CLI.KillVM(context.Background(), name)
	})
	defer cancel()

	if !m.vmExists(ctx, name) {
		if err := m.CLI.StartVM(ctx, name, cfg.MemoryMB, cfg.CPUs, cfg.Token); err != nil {
			return &agentruntime.AgentResult{
				Success: false,
				Error:   &agentruntime.AgentError{Kind: agentruntime.ErrorNetwork, Message: err.Error()},
			}
		}
	}

	if _, err := m.Syncer.Push(ctx, name, opts.Cwd); err != nil {
		return &agentruntime.AgentResult{
			Success: false,
			Error:   &agentruntime.AgentError{Kind: agentruntime.ErrorNetwork, Message: err.Error()},
		}
	}

	result := m.runTurn(ctx, name, opts)

	if result.Success {
		if err := m.Syncer.Pull(ctx, name, opts.Cwd); err != nil {
			// A pull failure after a successful turn is a warning, not a
			// failure: the agent's work is already recorded on the VM
			// (spec §4.4 Failure semantics).
			result.Output += fmt.Sprintf("\n[warning] sync pull failed: %v", err)
		}
	}
	return result
}

func (m *Manager) vmExists(ctx context.Context, name string) bool {
	names, err := m.CLI.ListVMs(ctx)
	if err != nil {
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func (m *Manager) teardown(ctx context.Context, name string, ephemeral bool) {
	if ephemeral {
		_ = m.CLI.KillVM(ctx, name) // teardown errors are logged, never raised (spec §4.4)
		m.owned = ""
	}
}

// runTurn dispatches tool calls into the VM via execInVM, rooted at
// /home/user/project (spec §4.4 step 4). The tool protocol itself is an
// external collaborator's concern; runTurn only translates the handful
// of primitives the spec names.
func (m *Manager) runTurn(ctx context.Context, vmName string, opts *agentruntime.RunOptions) *agentruntime.AgentResult {
	start := time.Now()
	res, err := m.CLI.ExecInVM(ctx, vmName, []string{"wreckit-agent-turn", "--prompt-stdin"}, []byte(opts.Prompt))
	duration := time.Since(start).Seconds()
	if err != nil {
		return &agentruntime.AgentResult{
			Success:  false,
			Duration: duration,
			Error:    &agentruntime.AgentError{Kind: agentruntime.ErrorUnknown, Message: err.Error()},
		}
	}
	success := res.ExitCode == 0
	return &agentruntime.AgentResult{
		Success:            success,
		CompletionDetected: success,
		Duration:           duration,
		Output:             res.Out,
		SessionID:          vmName,
	}
}

// ReadFile translates the Read tool into a VM exec command (spec §4.4
// step 4: `Read` -> `cat | base64`).
func (m *Manager) ReadFile(ctx context.Context, vmName, path string) ([]byte, error) {
	res, err := m.CLI.ExecInVM(ctx, vmName, []string{"sh", "-c", fmt.Sprintf("cat %q | base64", path)}, nil)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(res.Out)
}

// WriteFile translates the Write tool into a VM exec command (spec
// §4.4 step 4: `Write` -> `echo | base64 -d >`).
func (m *Manager) WriteFile(ctx context.Context, vmName, path string, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	_, err := m.CLI.ExecInVM(ctx, vmName, []string{"sh", "-c", fmt.Sprintf("base64 -d > %q", path)}, []byte(encoded))
	return err
}

func itemIDFromCwd(cwd string) string {
	// The item id is the final path component of the item's worktree.
	for i := len(cwd) - 1; i >= 0; i-- {
		if cwd[i] == '/' {
			return cwd[i+1:]
		}
	}
	return cwd
}
