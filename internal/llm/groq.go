package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "mixtral-8x7b-32768"
)

// contentGenerator is the part of llms.Model the generator needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// GroqGenerator calls Groq's OpenAI-compatible chat completions endpoint.
type GroqGenerator struct {
	model  contentGenerator
	opts   Options
	logger *slog.Logger
}

func NewGroqGenerator(apiKey, baseURL string, opts Options, logger *slog.Logger) (*GroqGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("groq api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultGroqBaseURL
	}
	opts = opts.withDefaults(DefaultGroqModel)

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithModel(opts.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating groq client: %w", err)
	}

	return newGroqGenerator(client, opts, logger), nil
}

func newGroqGenerator(model contentGenerator, opts Options, logger *slog.Logger) *GroqGenerator {
	return &GroqGenerator{
		model:  model,
		opts:   opts.withDefaults(DefaultGroqModel),
		logger: logger,
	}
}

func (g *GroqGenerator) Generate(ctx context.Context, roleDescription string) ([]json.RawMessage, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userPrompt(roleDescription, g.opts.QuestionCount)),
	}

	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithTemperature(g.opts.Temperature),
		llms.WithMaxTokens(g.opts.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("groq completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	candidates, err := ExtractCandidates(resp.Choices[0].Content)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("Groq returned question candidates", "model", g.opts.Model, "count", len(candidates))
	return candidates, nil
}
