// Package openaicompat mines candidates from any OpenAI-compatible chat completions API
// (OpenAI, Groq, OpenRouter)
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethanbaker/riskwatch/internal/sources"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// Default settings target Groq, which the first factory runs used
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1/"
	DefaultModel   = "llama-3.3-70b-versatile"
	DefaultTimeout = 60 * time.Second
)

// Config holds the settings for an OpenAI-compatible source
type Config struct {
	Name         string
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
	Temperature  float64
}

// Source requests candidate lists through chat completions in JSON mode
type Source struct {
	client openai.Client
	cfg    Config
}

// New creates a source. An API key is required
func New(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openaicompat: API key is required")
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = sources.DefaultSystemPrompt
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(cfg.Timeout),
		// Retries are the miner's decision, not the client's
		option.WithMaxRetries(0),
	)

	return &Source{client: client, cfg: cfg}, nil
}

// Name identifies the source in logs and on stored entries
func (s *Source) Name() string {
	return s.cfg.Name
}

// Mine issues one chat completion for the request's topic and parses the returned records
func (s *Source) Mine(ctx context.Context, req sources.Request) ([]sources.Record, error) {
	prompt := sources.MiningPrompt(req.Topic, req.Count, req.Today, req.KnownTerms)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(s.cfg.SystemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(s.cfg.Temperature),
	})
	if err != nil {
		return nil, s.classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no completion returned", sources.ErrMalformedPayload)
	}

	return sources.ParseRecords(resp.Choices[0].Message.Content)
}

// classify maps client errors onto the shared source error taxonomy
func (s *Source) classify(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s request failed: %w", s.cfg.Name, err)
	}

	if apiErr.StatusCode == http.StatusTooManyRequests {
		rl := &sources.RateLimitError{Provider: s.cfg.Name}
		if apiErr.Response != nil {
			rl.RetryAfter = sources.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return rl
	}

	return &sources.StatusError{
		Provider:   s.cfg.Name,
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Message,
	}
}
