// Package gemini adapts the Google GenAI SDK to the orchestrator's ModelService.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"claridoc/internal/logging"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// ErrMissingAPIKey is returned by NewClient without an API key.
var ErrMissingAPIKey = errors.New("gemini API key is required (set GEMINI_API_KEY or llm.api_key)")

// Config holds client settings.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Usage   Recorder // optional
}

// Recorder receives token counts for each successful call.
type Recorder interface {
	Record(ctx context.Context, model string, input, output int)
}

// Generator is the subset of the SDK's Models service the client uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client calls a fixed Gemini model.
type Client struct {
	models  Generator
	model   string
	timeout time.Duration
	usage   Recorder
}

// NewClient creates a client backed by the Gemini API.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewWithGenerator(sdk.Models, cfg), nil
}

// NewWithGenerator wraps an existing generator, e.g. a test double.
func NewWithGenerator(g Generator, cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: g, model: model, timeout: cfg.Timeout, usage: cfg.Usage}
}

// Model returns the model name.
func (c *Client) Model() string { return c.model }

// GenerateContent implements orchestrator.ModelService.
func (c *Client) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	timer := logging.StartTimer(logging.CategoryAPI, "GenerateContent "+c.model)
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	elapsed := timer.Stop()
	if err != nil {
		logging.APIWarn("GenerateContent %s failed after %v: %v", c.model, elapsed, err)
		return nil, fmt.Errorf("gemini %s: %w", c.model, err)
	}

	if resp.UsageMetadata != nil {
		logging.APIDebug("GenerateContent %s: %d prompt tokens, %d response tokens",
			c.model, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount)
		if c.usage != nil {
			c.usage.Record(ctx, c.model,
				int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
		}
	}
	return resp, nil
}
