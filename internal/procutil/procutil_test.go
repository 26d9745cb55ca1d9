package procutil

import (
	"os"
	"testing"
)

func TestPIDAlive_CurrentProcessIsAlive(t *testing.T) {
	if !PIDAlive(os.Getpid()) {
		t.Fatalf("expected the current process to be alive")
	}
}

func TestPIDAlive_NonPositivePIDIsNotAlive(t *testing.T) {
	if PIDAlive(0) || PIDAlive(-1) {
		t.Fatalf("expected non-positive pids to never be alive")
	}
}

func TestZombieFromStatLine(t *testing.T) {
	cases := []struct {
		name string
		line string
		want bool
	}{
		{"running", "1234 (wreckit) R 1 1234 1234 0 -1 4194304", false},
		{"zombie", "1234 (wreckit) Z 1 1234 1234 0 -1 4194304", true},
		{"dead", "1234 (wreckit) X 1 1234 1234 0 -1 4194304", true},
		{"name with parens and spaces", "1234 (my (odd) proc) S 1 1234 1234 0 -1 4194304", false},
		{"malformed, no close paren", "1234 wreckit R", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := zombieFromStatLine(tc.line); got != tc.want {
				t.Fatalf("zombieFromStatLine(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}
