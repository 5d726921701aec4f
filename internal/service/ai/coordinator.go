package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/jisilva10/ALAIN2.0/internal/history"
	"github.com/jisilva10/ALAIN2.0/internal/models"
)

// Coordinator drives one streaming exchange over a Backend: accumulates
// deltas in arrival order, keeps the first grounding metadata seen, and on
// stream end parses the reply's markers and mode activation. Any backend
// error is terminal for the attempt; the caller gets no partial result.
type Coordinator struct {
	backend Backend
}

func NewCoordinator(backend Backend) *Coordinator {
	return &Coordinator{backend: backend}
}

var _ Streamer = (*Coordinator)(nil)

// StreamTurn implements Streamer.
func (c *Coordinator) StreamTurn(ctx context.Context, req TurnRequest, emit func(Delta) error) (*TurnResult, error) {
	var (
		full      strings.Builder
		citations []models.Citation
	)

	err := c.backend.Stream(ctx, req, func(text string, chunkCitations []models.Citation) error {
		if len(chunkCitations) > 0 && citations == nil {
			citations = dedupeCitations(chunkCitations)
		}
		if text == "" {
			return nil
		}
		full.WriteString(text)
		if emit == nil {
			return nil
		}
		return emit(Delta{SessionID: req.SessionID, Text: text})
	})
	if err != nil {
		return nil, fmt.Errorf("stream turn: %w", err)
	}

	finalText := full.String()
	seg := history.ExtractSegments(finalText)
	return &TurnResult{
		FinalText:     finalText,
		Citations:     citations,
		ImageLinks:    seg.ImageLinks,
		ActivatedMode: DetectMode(finalText),
	}, nil
}

// GenerateTitle asks for a short conversation title in one non-streaming
// call and strips any quoting the model wrapped around it.
func (c *Coordinator) GenerateTitle(ctx context.Context, conversation string) (string, error) {
	prompt := "Genera un título de máximo 3 palabras para la siguiente conversación. " +
		"Responde únicamente con el título, sin comillas ni puntuación adicional.\n\n" +
		conversation
	title, err := c.backend.GenerateText(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate title: %w", err)
	}
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"'“”`)
	return strings.TrimSpace(title), nil
}

func dedupeCitations(in []models.Citation) []models.Citation {
	seen := make(map[string]bool, len(in))
	out := make([]models.Citation, 0, len(in))
	for _, c := range in {
		if c.URI == "" || seen[c.URI] {
			continue
		}
		seen[c.URI] = true
		out = append(out, c)
	}
	return out
}
