package models

import "time"

// Sender of a transient UI message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
	SenderError  Sender = "error"
)

// AttachmentDisplay is the user-visible rendering of an attachment marker.
type AttachmentDisplay struct {
	Name      string `json:"name"`
	IconGlyph string `json:"iconGlyph"`
}

// ImageLink is one entry parsed out of a reference-links block.
type ImageLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// UIMessage is rendering-only state: rebuilt from the MessageLog on session
// load, appended live while a response streams, and discarded on switch.
// It is never persisted.
type UIMessage struct {
	ID         string             `json:"id"`
	Sender     Sender             `json:"sender"`
	Text       string             `json:"text"`
	Timestamp  time.Time          `json:"timestamp"`
	Attachment *AttachmentDisplay `json:"attachment,omitempty"`
	ImageLinks []ImageLink        `json:"imageLinks,omitempty"`
	Citations  []Citation         `json:"citations,omitempty"`
}
