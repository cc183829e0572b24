// Package gemini mines candidates from Google's Gemini API
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethanbaker/riskwatch/internal/sources"
	"google.golang.org/genai"
)

const (
	DefaultModel   = "gemini-2.0-flash"
	DefaultTimeout = 60 * time.Second
)

// Config holds the settings for a Gemini source
type Config struct {
	APIKey       string
	Model        string
	BaseURL      string // optional, for proxies and tests
	SystemPrompt string
	Temperature  float32
	Timeout      time.Duration // per request
}

// Source requests candidate lists from Gemini with a JSON response type
type Source struct {
	client *genai.Client
	cfg    Config
}

// New creates a Gemini source
func New(ctx context.Context, cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = sources.DefaultSystemPrompt
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// The request deadline comes from HTTPOptions.Timeout, not the HTTP client's own timeout
	clientCfg := &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL, Timeout: genai.Ptr(cfg.Timeout)},
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Source{client: client, cfg: cfg}, nil
}

func (s *Source) Name() string {
	return "gemini"
}

// Mine issues one generate call for the request's topic and parses the returned records
func (s *Source) Mine(ctx context.Context, req sources.Request) ([]sources.Record, error) {
	prompt := sources.MiningPrompt(req.Topic, req.Count, req.Today, req.KnownTerms)

	resp, err := s.client.Models.GenerateContent(ctx,
		s.cfg.Model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(s.cfg.SystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr(s.cfg.Temperature),
		},
	)
	if err != nil {
		return nil, classify(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty gemini response", sources.ErrMalformedPayload)
	}

	return sources.ParseRecords(text)
}

// classify maps Gemini failures onto the shared error taxonomy. The API reports quota
// exhaustion as 429 RESOURCE_EXHAUSTED
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return &sources.RateLimitError{Provider: "gemini"}
		}
		return &sources.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
	}

	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(strings.ToLower(msg), "rate limit") {
		return &sources.RateLimitError{Provider: "gemini"}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
