package models

import "time"

// Role of one persisted turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Citation is one grounding source attached to a model turn.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// PersistedMessage is one committed turn of a session's MessageLog. Text may
// carry internal markers (attachment marker, reference-links block) that are
// stripped before the turn is replayed to the completion API.
type PersistedMessage struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (m PersistedMessage) clone() PersistedMessage {
	cp := m
	if m.Citations != nil {
		cp.Citations = make([]Citation, len(m.Citations))
		copy(cp.Citations, m.Citations)
	}
	return cp
}
