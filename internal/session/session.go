// internal/session/session.go
package session

import "time"

// Session is the ephemeral per-user conversation state. It exists only
// while an intake is in progress and is destroyed on completion, explicit
// cancellation, or after the inactivity TTL.
type Session struct {
	UserID       string            `json:"userId"`
	Step         string            `json:"step"`
	Fields       map[string]string `json:"fields"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastActivity time.Time         `json:"lastActivity"`
}

// New creates a fresh session positioned at the given step.
func New(userID, step string) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:       userID,
		Step:         step,
		Fields:       make(map[string]string),
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.LastActivity = time.Now().UTC()
}
