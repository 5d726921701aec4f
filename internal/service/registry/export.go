package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jisilva10/ALAIN2.0/internal/models"
)

// Export serializes one session to its portable JSON form and suggests a
// download filename derived from the display title.
func (r *Registry) Export(id string) ([]byte, string, error) {
	se, err := r.Get(id)
	if err != nil {
		return nil, "", err
	}
	blob, err := json.MarshalIndent(se, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode session %s: %w", id, err)
	}
	return blob, exportFilename(se.DisplayTitle), nil
}

func exportFilename(title string) string {
	name := strings.TrimSpace(title)
	if name == "" {
		name = "sesion"
	}
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	return replacer.Replace(name) + ExportExtension
}

// Import validates and installs a previously exported session. A blob that
// lacks an id, a title, or a messages array is rejected as ErrInvalidFormat.
// An id collision without overwrite is reported as ErrDuplicateID so the
// caller can ask for confirmation. Imported sessions always become
// user-owned, whatever their exported kind claimed.
func (r *Registry) Import(ctx context.Context, blob []byte, overwrite bool) (*models.Session, error) {
	var shape struct {
		ID       string          `json:"id"`
		Title    string          `json:"title"`
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(blob, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidFormat, err)
	}
	if shape.ID == "" {
		return nil, fmt.Errorf("%w: missing id", models.ErrInvalidFormat)
	}
	if shape.Title == "" {
		return nil, fmt.Errorf("%w: missing title", models.ErrInvalidFormat)
	}
	msgs := strings.TrimSpace(string(shape.Messages))
	if !strings.HasPrefix(msgs, "[") {
		return nil, fmt.Errorf("%w: messages is not an array", models.ErrInvalidFormat)
	}

	var se models.Session
	if err := json.Unmarshal(blob, &se); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidFormat, err)
	}
	se.Kind = models.KindUserOwned
	if se.MessageLog == nil {
		se.MessageLog = []models.PersistedMessage{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.sessions[se.ID]
	if existed && !overwrite {
		return nil, fmt.Errorf("%w: session %s already exists", models.ErrDuplicateID, se.ID)
	}
	r.sessions[se.ID] = &se
	if err := r.saveLocked(ctx); err != nil {
		if existed {
			r.sessions[se.ID] = prev
		} else {
			delete(r.sessions, se.ID)
		}
		return nil, err
	}
	return se.Clone(), nil
}
