// Package gemini turns a closed day's standup responses into a leadership
// summary through the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"standupbot/internal/standup"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// generator is the slice of the genai client the summarizer needs.
type generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g genaiGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Client implements standup.Summarizer.
type Client struct {
	gen     generator
	model   string
	timeout time.Duration
	logger  *zerolog.Logger
}

var _ standup.Summarizer = (*Client)(nil)

func New(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zerolog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating gemini client: %w", err)
	}
	return newClient(genaiGenerator{client: client}, model, timeout, logger), nil
}

func newClient(gen generator, model string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "gemini").Logger()
	return &Client{gen: gen, model: model, timeout: timeout, logger: &l}
}

// Summarize sends the day's responses to the model and returns the posted
// summary text, header included.
func (c *Client) Summarize(ctx context.Context, in standup.SummaryInput) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.gen.Generate(ctx, c.model, BuildPrompt(in))
	if err != nil {
		c.logger.Error().Err(err).Str("day", in.Day.Key).Msg("summary generation failed")
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("gemini returned an empty summary")
	}

	c.logger.Info().
		Str("day", in.Day.Key).
		Int("responses", len(in.Responses)).
		Dur("elapsed", time.Since(start)).
		Msg("summary generated")

	return fmt.Sprintf("📅 **Daily Standup Summary - %s**\n\n%s", in.Day.Key, text), nil
}
