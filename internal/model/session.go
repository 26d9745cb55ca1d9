package model

// SessionState is the lifecycle state of a sandbox VM session (spec
// §4.4, §4.8).
type SessionState string

const (
	SessionRunning   SessionState = "running"
	SessionPaused    SessionState = "paused"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
)

// Session is a sandbox VM lease, persisted under .wreckit/sessions/ so
// orphaned VMs can be recovered or reaped after a crash (spec §4.4,
// §4.8 Limits & Sessions).
type Session struct {
	SessionID  string       `json:"session_id"`
	VMName     string       `json:"vm_name"`
	ItemID     string       `json:"item_id,omitempty"`
	StartedAt  string       `json:"started_at"`
	EndedAt    *string      `json:"ended_at,omitempty"`
	State      SessionState `json:"state"`
	Checkpoint *string      `json:"checkpoint,omitempty"`
	Error      *string      `json:"error,omitempty"`
}

// NewSession starts a running session record for vmName.
func NewSession(vmName, itemID string) *Session {
	return &Session{
		SessionID: NewID(),
		VMName:    vmName,
		ItemID:    itemID,
		StartedAt: NowRFC3339(),
		State:     SessionRunning,
	}
}

// MarkEnded transitions the session to a terminal state and stamps
// EndedAt. Pass a non-empty errMsg to record a failure.
func (s *Session) MarkEnded(errMsg string) {
	now := NowRFC3339()
	s.EndedAt = &now
	if errMsg != "" {
		s.State = SessionFailed
		s.Error = &errMsg
		return
	}
	s.State = SessionCompleted
}
