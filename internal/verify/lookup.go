package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable marks lookups that failed for reasons unrelated to the term: network errors,
// timeouts and non-2xx responses
var ErrUnavailable = errors.New("reference lookup unavailable")

// Definition is one candidate definition returned by a reference lexicon
type Definition struct {
	Text        string
	Endorsement int
}

// Lookuper queries a reference lexicon for a term. An empty result with a nil error means the
// lexicon has no entry for the term
type Lookuper interface {
	Lookup(ctx context.Context, term string) ([]Definition, error)
}

// Urban Dictionary defaults
const (
	DefaultURL     = "https://api.urbandictionary.com/v0"
	DefaultTimeout = 10 * time.Second
)

// Limit how much of a response body is read
const maxResponseBytes = 1 << 20

// UrbanDictionary looks terms up through the Urban Dictionary define endpoint
type UrbanDictionary struct {
	baseURL    string
	httpClient *http.Client
}

// udResponse represents the define endpoint payload
type udResponse struct {
	List []struct {
		Definition string `json:"definition"`
		ThumbsUp   int    `json:"thumbs_up"`
	} `json:"list"`
}

// NewUrbanDictionary creates a lookuper. An empty baseURL uses DefaultURL
func NewUrbanDictionary(baseURL string, timeout time.Duration) *UrbanDictionary {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &UrbanDictionary{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Lookup returns the definitions listed for term, in response order
func (u *UrbanDictionary) Lookup(ctx context.Context, term string) ([]Definition, error) {
	lookupURL := fmt.Sprintf("%s/define?term=%s", u.baseURL, url.QueryEscape(term))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: lookup failed with status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	var parsed udResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrUnavailable, err)
	}

	defs := make([]Definition, 0, len(parsed.List))
	for _, item := range parsed.List {
		if strings.TrimSpace(item.Definition) == "" {
			continue
		}
		defs = append(defs, Definition{Text: item.Definition, Endorsement: item.ThumbsUp})
	}
	return defs, nil
}

// Best returns the definition with the highest endorsement. Ties keep the earliest one
func Best(defs []Definition) (Definition, bool) {
	if len(defs) == 0 {
		return Definition{}, false
	}

	best := defs[0]
	for _, d := range defs[1:] {
		if d.Endorsement > best.Endorsement {
			best = d
		}
	}
	return best, true
}
