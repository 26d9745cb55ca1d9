package sandbox

import "fmt"

// defaultExcludes enumerate transient/binary paths skipped when
// pushing a project into a VM (spec §4.4 step 3). doublestar patterns
// so "**/node_modules/**"-style globs work, unlike the teacher's
// go.mod-declared-but-unused doublestar dependency.
var defaultExcludes = []string{
	".git/**",
	".wreckit/sessions/**",
	".wreckit/backups/**",
	"node_modules/**",
	"**/*.tmp-*",
	"vendor/**",
}

// VMName resolves the VM name for one sprite run: the pinned config
// name if set, else a generated ephemeral name (spec §4.4 step 1).
func VMName(pinned, itemID string, epochMs int64) (name string, ephemeral bool) {
	if pinned != "" {
		return pinned, false
	}
	return fmt.Sprintf("wreckit-sandbox-%s-%d", itemID, epochMs), true
}

// Config is the sandbox-relevant subset of agent config (spec §4.4
// "Sandbox mode is a pure config transformation").
type Config struct {
	Kind          string
	VMName        string
	SyncEnabled   bool
	SyncOnSuccess bool
	MemoryMB      int
	CPUs          int
}

const (
	defaultMemoryMB = 2048
	defaultCPUs     = 2
)

// ApplySandboxMode forces agent.kind=sprite, enables sync, clears
// vmName (ephemeral), and applies default memory/CPUs. Idempotent:
// ApplySandboxMode(ApplySandboxMode(cfg)) == ApplySandboxMode(cfg)
// (spec §8 round-trip law).
func ApplySandboxMode(cfg Config) Config {
	cfg.Kind = "sprite"
	cfg.SyncEnabled = true
	cfg.SyncOnSuccess = true
	cfg.VMName = ""
	if cfg.MemoryMB == 0 {
		cfg.MemoryMB = defaultMemoryMB
	}
	if cfg.CPUs == 0 {
		cfg.CPUs = defaultCPUs
	}
	return cfg
}
