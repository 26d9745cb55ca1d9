package sandbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/mhostetler/wreckit/internal/atomicfile"
	"github.com/mhostetler/wreckit/internal/model"
)

// SessionStore persists sandbox Sessions under .wreckit/sessions/
// (spec §4.8: "Sessions persist under the sandbox subsystem").
type SessionStore struct {
	Dir string // repository root; sessions live under Dir/.wreckit/sessions
}

func (s *SessionStore) sessionsDir() string {
	return filepath.Join(s.Dir, ".wreckit", "sessions")
}

func (s *SessionStore) sessionPath(id string) string {
	return filepath.Join(s.sessionsDir(), id+".json")
}

// Save atomically writes sess to its session file.
func (s *SessionStore) Save(sess *model.Session) error {
	return atomicfile.WriteJSON(s.sessionPath(sess.SessionID), sess)
}

// Load returns the session, or (nil, nil) on a miss (spec §4.8
// "load(id) returns null on miss").
func (s *SessionStore) Load(id string) (*model.Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListFilter narrows List's results.
type ListFilter struct {
	State  model.SessionState // zero value means "any"
	ItemID string             // empty means "any"
}

// List enumerates every persisted session matching filter, sorted by
// StartedAt descending (spec §4.8).
func (s *SessionStore) List(filter ListFilter) ([]*model.Session, error) {
	entries, err := os.ReadDir(s.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []*model.Session
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := e.Name()
		if ext := filepath.Ext(id); ext == ".json" {
			id = id[:len(id)-len(ext)]
		}
		sess, err := s.Load(id)
		if err != nil || sess == nil {
			continue
		}
		if filter.State != "" && sess.State != filter.State {
			continue
		}
		if filter.ItemID != "" && sess.ItemID != filter.ItemID {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	return out, nil
}

// UpdatePatch is applied inside UpdateState's read-modify-write cycle.
type UpdatePatch struct {
	Checkpoint *string
	Error      *string
}

// UpdateState reads the session, applies newState and an optional
// patch, stamps EndedAt if newState is terminal, and persists the
// result (spec §4.8 "updateState").
func (s *SessionStore) UpdateState(id string, newState model.SessionState, patch *UpdatePatch) (*model.Session, error) {
	sess, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &NotFoundError{ID: id}
	}
	sess.State = newState
	if patch != nil {
		if patch.Checkpoint != nil {
			sess.Checkpoint = patch.Checkpoint
		}
		if patch.Error != nil {
			sess.Error = patch.Error
		}
	}
	if newState == model.SessionCompleted || newState == model.SessionFailed {
		now := model.NowRFC3339()
		sess.EndedAt = &now
	}
	if err := s.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// NotFoundError reports a session id with no persisted record.
type NotFoundError struct{ ID string }

func (e *NotFoundError) Error() string { return "session not found: " + e.ID }
