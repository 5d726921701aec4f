package attachment

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jisilva10/ALAIN2.0/internal/models"

	"google.golang.org/genai"
)

// Incoming is one file the user attached to a turn, already decoded from its
// transport encoding.
type Incoming struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Accepted MIME prefixes. Everything else is rejected before any state
// changes or API calls happen.
var allowedPrefixes = []string{
	"image/",
	"video/",
	"audio/",
	"text/",
	"application/pdf",
	"application/json",
	"application/xml",
	"application/rtf",
}

// Validate checks the MIME type against the allow-list. An empty type is
// rejected; there is no sniffing fallback.
func Validate(in Incoming) error {
	if in.MIMEType == "" {
		return fmt.Errorf("%w: missing content type for %q", models.ErrUnsupportedAttachment, in.Name)
	}
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(in.MIMEType, prefix) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", models.ErrUnsupportedAttachment, in.MIMEType)
}

// ToPart converts a validated attachment into an inline-data request part.
func ToPart(in Incoming) (*genai.Part, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	return &genai.Part{InlineData: &genai.Blob{
		MIMEType: in.MIMEType,
		Data:     in.Data,
	}}, nil
}

// IconGlyph maps a MIME type to the glyph shown beside the file name. When
// mime is empty (rebuilding from a stored marker, where only the name
// survives) the extension decides.
func IconGlyph(mime, name string) string {
	if mime == "" {
		mime = mimeFromName(name)
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "fa-file-image"
	case strings.HasPrefix(mime, "video/"):
		return "fa-file-video"
	case strings.HasPrefix(mime, "audio/"):
		return "fa-file-audio"
	case mime == "application/pdf":
		return "fa-file-pdf"
	case mime == "text/csv":
		return "fa-file-csv"
	case strings.HasPrefix(mime, "text/"), mime == "application/json", mime == "application/xml", mime == "application/rtf":
		return "fa-file-alt"
	case mime == "application/zip", mime == "application/x-rar-compressed":
		return "fa-file-archive"
	default:
		return "fa-file"
	}
}

func mimeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg":
		return "image/png"
	case ".mp4", ".mov", ".avi", ".webm", ".mkv":
		return "video/mp4"
	case ".mp3", ".wav", ".ogg", ".m4a", ".flac":
		return "audio/mpeg"
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	case ".txt", ".md", ".log":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".rtf":
		return "application/rtf"
	case ".zip":
		return "application/zip"
	case ".rar":
		return "application/x-rar-compressed"
	default:
		return ""
	}
}

// Display builds the UI rendering for an attachment known only by name.
func Display(name string) *models.AttachmentDisplay {
	return &models.AttachmentDisplay{Name: name, IconGlyph: IconGlyph("", name)}
}
