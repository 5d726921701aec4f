package models

import "time"

// SessionKind distinguishes read-only template blueprints from user sessions.
type SessionKind string

const (
	KindTemplate  SessionKind = "template"
	KindUserOwned SessionKind = "user"
)

// Session is one persistent conversation. MessageLog order is the
// conversation order. InstructionProfile is fixed at creation time.
type Session struct {
	ID                 string             `json:"id"`
	DisplayTitle       string             `json:"title"`
	OwnerLabel         string             `json:"clientName"`
	TopicLabel         string             `json:"topic"`
	CreatedAt          time.Time          `json:"createdAt"`
	LastActivityAt     time.Time          `json:"lastActivity"`
	MessageLog         []PersistedMessage `json:"messages"`
	InstructionProfile string             `json:"systemInstruction"`
	Kind               SessionKind        `json:"type"`
}

// Clone returns a deep copy. MessageLog entries hold their own citation
// slices, so those are copied as well.
func (s *Session) Clone() *Session {
	cp := *s
	cp.MessageLog = make([]PersistedMessage, len(s.MessageLog))
	for i, m := range s.MessageLog {
		cp.MessageLog[i] = m.clone()
	}
	return &cp
}

// Touch bumps the last-activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.LastActivityAt = now
}
