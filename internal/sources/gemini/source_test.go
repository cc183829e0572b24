package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethanbaker/riskwatch/internal/planner"
	"github.com/ethanbaker/riskwatch/internal/sources"
	"github.com/ethanbaker/riskwatch/pkg/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestMine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		assert.Contains(t, r.URL.Path, DefaultModel)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"items\": [{\"term\": \"Skibidi\"}]}"}]}}]}`)
	}))
	defer srv.Close()

	s, err := New(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	records, err := s.Mine(context.Background(), sources.Request{
		Topic: planner.Topic{Category: "Gen Z Slang", Group: entry.GroupLanguage, Market: "UK"},
		Count: 3,
		Today: entry.MustParseDate("2026-01-13"),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Skibidi", records[0]["term"])
}

func TestMine_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	s, err := New(context.Background(), Config{APIKey: "k", BaseURL: srv.URL, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = s.Mine(context.Background(), sources.Request{
		Topic: planner.Topic{Category: "Gen Z Slang", Group: entry.GroupLanguage, Market: "UK"},
		Count: 3,
		Today: entry.MustParseDate("2026-01-13"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, sources.IsRateLimited(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNew_DefaultTimeout(t *testing.T) {
	s, err := New(context.Background(), Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, s.cfg.Timeout)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		rateLimited bool
	}{
		{"api 429", genai.APIError{Code: 429, Message: "quota"}, true},
		{"api status", fmt.Errorf("wrapped: %w", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}), true},
		{"api other", genai.APIError{Code: 500, Message: "internal"}, false},
		{"status name", errors.New("RESOURCE_EXHAUSTED: try later"), true},
		{"phrase", errors.New("Rate limit hit"), true},
		{"network", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rateLimited, sources.IsRateLimited(classify(tt.err)))
		})
	}
}

func TestMine_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	s, err := New(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Mine(context.Background(), sources.Request{
		Topic: planner.Topic{Category: "Gen Z Slang", Group: entry.GroupLanguage, Market: "UK"},
		Count: 3,
		Today: entry.MustParseDate("2026-01-13"),
	})
	assert.True(t, sources.IsRateLimited(err))
}
