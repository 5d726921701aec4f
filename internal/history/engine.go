package history

import (
	"fmt"
	"time"

	"github.com/jisilva10/ALAIN2.0/internal/attachment"
	"github.com/jisilva10/ALAIN2.0/internal/models"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// ComposeUserText builds the persisted text for a user turn. The attachment
// marker goes after the typed text, separated by a blank line, or stands
// alone when nothing was typed.
func ComposeUserText(text, attachmentName string) string {
	if attachmentName == "" {
		return text
	}
	marker := AttachmentMarker(attachmentName)
	if text == "" {
		return marker
	}
	return text + "\n\n" + marker
}

// ToWireHistory converts the persisted log into request contents for the
// completion API. Every turn is cleaned of internal markers; turns that end
// up empty (marker-only user turns, blank model turns) are dropped entirely
// rather than sent as empty parts.
func ToWireHistory(log []models.PersistedMessage) []*genai.Content {
	out := make([]*genai.Content, 0, len(log))
	for _, m := range log {
		text := Clean(m.Text)
		if text == "" {
			continue
		}
		role := genai.RoleUser
		if m.Role == models.RoleModel {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}
	return out
}

// AppendUserTurn commits a user turn to the session log and returns it.
func AppendUserTurn(se *models.Session, text, attachmentName string, now time.Time) models.PersistedMessage {
	msg := models.PersistedMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Text:      ComposeUserText(text, attachmentName),
		CreatedAt: now,
	}
	se.MessageLog = append(se.MessageLog, msg)
	se.Touch(now)
	return msg
}

// AppendModelTurn commits a completed model turn, citations included.
func AppendModelTurn(se *models.Session, text string, citations []models.Citation, now time.Time) models.PersistedMessage {
	msg := models.PersistedMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleModel,
		Text:      text,
		Citations: citations,
		CreatedAt: now,
	}
	se.MessageLog = append(se.MessageLog, msg)
	se.Touch(now)
	return msg
}

// TruncateFromLastUserTurn removes the most recent user turn and everything
// after it from the session log, returning the removed user turn so the
// caller can resend its content. ErrNotFound when the log holds no user turn.
func TruncateFromLastUserTurn(se *models.Session) (models.PersistedMessage, error) {
	for i := len(se.MessageLog) - 1; i >= 0; i-- {
		if se.MessageLog[i].Role == models.RoleUser {
			removed := se.MessageLog[i]
			se.MessageLog = se.MessageLog[:i]
			return removed, nil
		}
	}
	return models.PersistedMessage{}, fmt.Errorf("%w: no user turn to edit", models.ErrNotFound)
}

// TruncateUIFromLastUserTurn applies the same cut to the transient message
// list so the two views stay in lock step.
func TruncateUIFromLastUserTurn(msgs []models.UIMessage) ([]models.UIMessage, error) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == models.SenderUser {
			return msgs[:i], nil
		}
	}
	return nil, fmt.Errorf("%w: no user message to edit", models.ErrNotFound)
}

// RebuildUIMessages reconstructs the transient display list from a persisted
// log. User turns get their attachment marker parsed back into a display
// chip; model turns get the reference-links block parsed into ImageLinks.
func RebuildUIMessages(log []models.PersistedMessage) []models.UIMessage {
	out := make([]models.UIMessage, 0, len(log))
	for _, m := range log {
		seg := ExtractSegments(m.Text)
		ui := models.UIMessage{
			ID:        uuid.NewString(),
			Text:      seg.CleanText,
			Timestamp: m.CreatedAt,
		}
		switch m.Role {
		case models.RoleUser:
			ui.Sender = models.SenderUser
			if seg.AttachmentName != "" {
				ui.Attachment = attachment.Display(seg.AttachmentName)
			}
		default:
			ui.Sender = models.SenderAI
			ui.ImageLinks = seg.ImageLinks
			if len(m.Citations) > 0 {
				ui.Citations = append([]models.Citation(nil), m.Citations...)
			}
		}
		out = append(out, ui)
	}
	return out
}
