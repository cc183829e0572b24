package miner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethanbaker/riskwatch/internal/planner"
	"github.com/ethanbaker/riskwatch/internal/sources"
	"github.com/ethanbaker/riskwatch/pkg/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource replays a scripted list of responses, one per call
type fakeSource struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	records []sources.Record
	err     error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Mine(ctx context.Context, req sources.Request) ([]sources.Record, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		return nil, errors.New("unexpected call")
	}
	return f.responses[i].records, f.responses[i].err
}

var today = entry.MustParseDate("2026-01-13")

func slangRequest() sources.Request {
	return sources.Request{
		Topic: planner.Topic{Category: "Gen Z Slang", Group: entry.GroupLanguage, Market: "US"},
		Count: 5,
		Today: today,
	}
}

func fastConfig() Config {
	return Config{InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestMine_NormalizesDrafts(t *testing.T) {
	src := &fakeSource{responses: []fakeResponse{{records: []sources.Record{
		{
			"term":        " Foo ",
			"group":       "slang",
			"country":     "us, uk",
			"risk_level":  "high",
			"trend_score": json.Number("140"),
			"context":     "A coded insult.",
		},
	}}}}

	drafts, stats, err := New(src, fastConfig(), nil).Mine(context.Background(), slangRequest())
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, "Foo", d.Term)
	assert.Equal(t, entry.GroupLanguage, d.Group)
	assert.Equal(t, []string{"UK", "US"}, d.Country)
	assert.Equal(t, "Gen Z Slang", d.Category)
	assert.Equal(t, entry.RiskHigh, d.RiskLevel)
	assert.Equal(t, 100, d.TrendScore)
	assert.Equal(t, entry.StatusActive, d.Status)
	assert.Equal(t, today, d.FirstDetected)
	assert.Equal(t, today, d.LastUpdated)
	assert.Equal(t, map[string]string{"en": "A coded insult."}, d.Context)
	assert.Equal(t, "", d.ImageURL)
	assert.Equal(t, "fake", d.Source)

	assert.Equal(t, MineStats{Raw: 1, Accepted: 1}, stats)
}

func TestMine_RejectionGate(t *testing.T) {
	src := &fakeSource{responses: []fakeResponse{{records: []sources.Record{
		{"term": "Good", "risk_level": "Low"},
		{"term": "Famous Person", "group": "public figure", "risk_level": "Low"},
		{"term": "", "risk_level": "Low"},
		{"term": "Bad Risk", "risk_level": "extreme"},
		{"term": "Future", "risk_level": "Low", "first_detected": "2027-01-01"},
		{"term": "Bad Date", "risk_level": "Low", "first_detected": "last week"},
		{"term": "Old", "risk_level": "Low", "first_detected": "2025-06-01"},
	}}}}

	drafts, stats, err := New(src, fastConfig(), nil).Mine(context.Background(), slangRequest())
	require.NoError(t, err)

	var terms []string
	for _, d := range drafts {
		terms = append(terms, d.Term)
	}
	assert.Equal(t, []string{"Good", "Old"}, terms)
	assert.Equal(t, entry.MustParseDate("2025-06-01"), drafts[1].FirstDetected)

	assert.Equal(t, 7, stats.Raw)
	assert.Equal(t, 2, stats.Accepted)
	assert.Equal(t, 1, stats.OffTaxonomy)
	assert.Equal(t, 4, stats.Invalid)
}

func TestMine_RetriesOnceOnRateLimit(t *testing.T) {
	src := &fakeSource{responses: []fakeResponse{
		{err: &sources.RateLimitError{Provider: "fake"}},
		{records: []sources.Record{{"term": "Foo", "risk_level": "Low"}}},
	}}

	drafts, stats, err := New(src, fastConfig(), nil).Mine(context.Background(), slangRequest())
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
	assert.True(t, stats.Retried)
	assert.Equal(t, 2, src.calls)
}

func TestMine_GivesUpAfterOneRetry(t *testing.T) {
	src := &fakeSource{responses: []fakeResponse{
		{err: &sources.RateLimitError{Provider: "fake"}},
		{err: &sources.RateLimitError{Provider: "fake"}},
		{records: []sources.Record{{"term": "Never"}}},
	}}

	_, _, err := New(src, fastConfig(), nil).Mine(context.Background(), slangRequest())
	require.ErrorIs(t, err, ErrTopicFailed)
	assert.True(t, sources.IsRateLimited(err))
	assert.Equal(t, 2, src.calls)
}

func TestMine_OtherErrorsAreNotRetried(t *testing.T) {
	cause := &sources.StatusError{Provider: "fake", StatusCode: 500, Message: "boom"}
	src := &fakeSource{responses: []fakeResponse{{err: cause}}}

	_, _, err := New(src, fastConfig(), nil).Mine(context.Background(), slangRequest())
	require.ErrorIs(t, err, ErrTopicFailed)

	var se *sources.StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, 1, src.calls)
}

func TestRetryAfterBackOff(t *testing.T) {
	b := &retryAfterBackOff{BackOff: &constantBackOff{d: time.Second}, limit: 10 * time.Second}
	assert.Equal(t, time.Second, b.NextBackOff())

	b.hint = 4 * time.Second
	assert.Equal(t, 4*time.Second, b.NextBackOff())

	b.hint = time.Minute
	assert.Equal(t, 10*time.Second, b.NextBackOff())
}

type constantBackOff struct{ d time.Duration }

func (c *constantBackOff) NextBackOff() time.Duration { return c.d }
func (c *constantBackOff) Reset()                     {}

func TestStatsAdd(t *testing.T) {
	var total MineStats
	total.Add(MineStats{Raw: 3, Accepted: 1, OffTaxonomy: 1, Invalid: 1})
	total.Add(MineStats{Raw: 2, Accepted: 2})
	assert.Equal(t, MineStats{Raw: 5, Accepted: 3, OffTaxonomy: 1, Invalid: 1}, total)
}
