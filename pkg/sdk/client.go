package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNoRuns is returned when the daemon has not finished a run yet
var ErrNoRuns = errors.New("no run has finished yet")

// ResponseError is a non-2xx answer from the API
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("[SDK]: '%s %s' failed: %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client wraps calls to the riskwatch status API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Health checks that the API is up
func (c *Client) Health(ctx context.Context) error {
	var out ApiResponse[any]
	return c.doJSON(ctx, http.MethodGet, "/api/health", nil, &out)
}

// LatestRun fetches the summary of the most recent finished run
func (c *Client) LatestRun(ctx context.Context) (*Run, error) {
	var out ApiResponse[Run]
	err := c.doJSON(ctx, http.MethodGet, "/api/runs/latest", nil, &out)

	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, err
	}

	return &out.Data, nil
}

// Schedule lists the daemon's cron tasks
func (c *Client) Schedule(ctx context.Context) ([]ScheduledTask, error) {
	var out ApiResponse[[]ScheduledTask]
	if err := c.doJSON(ctx, http.MethodGet, "/api/runs/schedule", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// doJSON is a helper to perform JSON requests to the API
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	// Create request body if input is provided
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ResponseError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(b)}
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
