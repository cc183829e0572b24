package sqlstore

import (
	"context"
	"os"
	"testing"

	"github.com/ethanbaker/riskwatch/pkg/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(term string) entry.Entry {
	return entry.Entry{
		ID:            entry.IDFor(term),
		Term:          term,
		Group:         entry.GroupPerson,
		Country:       []string{"AU", "NZ"},
		Category:      "Controversial Influencers",
		RiskLevel:     entry.RiskHigh,
		TrendScore:    80,
		Status:        entry.StatusArchived,
		FirstDetected: entry.MustParseDate("2025-09-01"),
		LastUpdated:   entry.MustParseDate("2026-01-13"),
		Context:       map[string]string{"en": "Known for stunts.", "ko": "스턴트"},
		Verification:  entry.VerificationDegraded,
		Source:        "groq",
	}
}

func TestRecordRoundTrip(t *testing.T) {
	in := sample("Some Streamer")

	r, err := toRecord(in, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, r.Position)
	assert.Equal(t, "some streamer", r.TermKey)
	assert.Equal(t, "AU,NZ", r.Country)

	out, err := r.toEntry()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRecord_EmptyFields(t *testing.T) {
	in := entry.Entry{Term: "Bare"}

	r, err := toRecord(in, 1)
	require.NoError(t, err)
	assert.Equal(t, "{}", r.Context)

	out, err := r.toEntry()
	require.NoError(t, err)
	assert.Nil(t, out.Country)
	assert.Nil(t, out.Context)
	assert.True(t, out.FirstDetected.IsZero())
}

func TestRecord_BadDate(t *testing.T) {
	_, err := Record{Term: "x", FirstDetected: "yesterday"}.toEntry()
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s, err := New(dsn, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	in := []entry.Entry{sample("Zeta"), sample("Alpha")}
	require.NoError(t, s.Save(ctx, in))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, s.Save(ctx, in[:1]))
	out, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
