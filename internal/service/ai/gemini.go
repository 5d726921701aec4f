package ai

import (
	"context"
	"fmt"

	"github.com/jisilva10/ALAIN2.0/internal/models"

	"google.golang.org/genai"
)

// Gemini is the production Backend over the genai SDK. Every chat is created
// with the web-search tool attached so replies can carry grounding sources.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

var _ Backend = (*Gemini)(nil)

// Stream implements Backend.
func (g *Gemini) Stream(ctx context.Context, req TurnRequest, onChunk func(string, []models.Citation) error) error {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	if req.Instruction != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.Instruction}},
		}
	}

	chat, err := g.client.Chats.Create(ctx, g.model, cfg, req.History)
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}

	parts := make([]genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, *p)
	}

	for resp, err := range chat.SendMessageStream(ctx, parts...) {
		if err != nil {
			return err
		}
		if err := onChunk(resp.Text(), groundingCitations(resp)); err != nil {
			return err
		}
	}
	return nil
}

// GenerateText implements Backend with a single non-streaming call.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func groundingCitations(resp *genai.GenerateContentResponse) []models.Citation {
	if len(resp.Candidates) == 0 {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}
	var out []models.Citation
	for _, chunk := range meta.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		out = append(out, models.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}
