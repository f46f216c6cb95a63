package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiGenerator asks Google Gemini for a JSON array of questions.
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
	opts   Options
	logger *slog.Logger
}

func NewGeminiGenerator(ctx context.Context, apiKey string, opts Options, logger *slog.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	opts = opts.withDefaults(DefaultGeminiModel)

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)
	model.SetTemperature(float32(opts.Temperature))
	model.SetMaxOutputTokens(int32(opts.MaxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	return &GeminiGenerator{
		client: client,
		model:  model,
		opts:   opts,
		logger: logger,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, roleDescription string) ([]json.RawMessage, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(userPrompt(roleDescription, g.opts.QuestionCount)))
	if err != nil {
		return nil, fmt.Errorf("gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyCompletion
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	candidates, err := ExtractCandidates(sb.String())
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Gemini returned question candidates", "model", g.opts.Model, "count", len(candidates))
	return candidates, nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
