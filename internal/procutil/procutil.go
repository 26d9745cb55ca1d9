// Package procutil reports whether a recorded owning process is still
// alive, the liveness check the Orchestrator uses to decide a batch
// session is stale (spec §4.6.3) and the Doctor uses to flag an
// orphaned batch-progress file (spec §4.7.1) — both key off the same
// "is this PID a live, non-zombie process" question.
package procutil

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// procFSAvailable reports whether /proc is mounted and readable, so
// PIDAlive can fall back to `ps` on platforms (or sandboxes) without it.
func procFSAvailable() bool {
	_, err := os.Stat("/proc/self/stat")
	return err == nil
}

// PIDAlive reports whether pid names a live, non-zombie process —
// the test behind a session's staleness (orchestrator.IsStale) and a
// batch-progress file's orphaned diagnostic (doctor's
// ORPHANED_BATCH_PROGRESS).
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if PIDZombie(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	// EPERM means the PID exists but belongs to another user — still
	// alive as far as the caller is concerned.
	return errors.Is(err, syscall.EPERM)
}

// PIDZombie reports whether pid is in a zombie or dead state, in which
// case PIDAlive treats it as not alive even though the kernel has not
// yet reaped it.
func PIDZombie(pid int) bool {
	if !procFSAvailable() {
		return zombieViaPS(pid)
	}
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}
	return zombieFromStatLine(string(stat))
}

// zombieFromStatLine extracts the process state character from a
// /proc/<pid>/stat line. The command name field can itself contain
// spaces and parens, so the state is found by scanning back from the
// last ')' rather than splitting on whitespace.
func zombieFromStatLine(line string) bool {
	closeParen := strings.LastIndexByte(line, ')')
	if closeParen < 0 || closeParen+2 >= len(line) {
		return false
	}
	state := line[closeParen+2]
	return state == 'Z' || state == 'X'
}

func zombieViaPS(pid int) bool {
	out, err := exec.Command("ps", "-o", "state=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return false
	}
	state := strings.TrimSpace(string(out))
	if state == "" {
		return false
	}
	return state[0] == 'Z' || state[0] == 'X'
}
