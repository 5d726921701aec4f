package ai

import (
	"context"

	"github.com/jisilva10/ALAIN2.0/internal/models"

	"google.golang.org/genai"
)

// TurnRequest carries everything one exchange needs: the session the reply
// belongs to, the instruction profile, the cleaned prior history and the
// parts of the new turn.
type TurnRequest struct {
	SessionID   string
	Instruction string
	History     []*genai.Content
	Parts       []*genai.Part
}

// Delta is one streamed text fragment, tagged with the session it belongs to
// so consumers can drop fragments that arrive after a session switch.
type Delta struct {
	SessionID string
	Text      string
}

// TurnResult is the committed outcome of a finished stream.
type TurnResult struct {
	// FinalText is the full reply as received, markers included. This is
	// what gets persisted.
	FinalText string
	// Citations are grounding sources, deduplicated by URI.
	Citations []models.Citation
	// ImageLinks are parsed out of the reply's reference-links block.
	ImageLinks []models.ImageLink
	// ActivatedMode is the working-mode name the reply announced, if any.
	ActivatedMode string
}

// Streamer runs one model exchange end to end. A failed exchange is terminal
// for that attempt; nothing partial is returned.
type Streamer interface {
	StreamTurn(ctx context.Context, req TurnRequest, emit func(Delta) error) (*TurnResult, error)
	GenerateTitle(ctx context.Context, conversation string) (string, error)
}

// Backend is the raw model transport underneath the coordinator. onChunk is
// called once per streamed response chunk with its text and any grounding
// sources attached to it.
type Backend interface {
	Stream(ctx context.Context, req TurnRequest, onChunk func(text string, citations []models.Citation) error) error
	GenerateText(ctx context.Context, prompt string) (string, error)
}
