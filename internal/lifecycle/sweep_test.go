package lifecycle

import (
	"testing"

	"github.com/ethanbaker/riskwatch/pkg/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stored(term, first string, status entry.Status) entry.Entry {
	e := entry.Entry{
		Term:      term,
		Group:     entry.GroupTrend,
		Country:   []string{"AU"},
		Category:  "Dangerous Challenge",
		RiskLevel: entry.RiskHigh,
		Status:    status,
		Context:   map[string]string{entry.ContextEnglish: "x"},
	}
	if first != "" {
		e.FirstDetected = entry.MustParseDate(first)
		e.LastUpdated = entry.MustParseDate(first)
	}
	return e
}

func TestSweep(t *testing.T) {
	// old is 95 days, edge exactly 90, fresh 36
	today := entry.MustParseDate("2026-04-06")

	c, _ := entry.NewCollection([]entry.Entry{
		stored("old", "2026-01-01", entry.StatusActive),
		stored("edge", "2026-01-06", entry.StatusActive),
		stored("fresh", "2026-03-01", entry.StatusActive),
		stored("undated", "", entry.StatusActive),
		stored("gone", "2025-01-01", entry.StatusArchived),
	})
	before := c.Entries()

	m := NewManager(0, nil)
	archived := m.Sweep(c, today)
	assert.Equal(t, 1, archived)

	want := map[string]entry.Status{
		"old":     entry.StatusArchived,
		"edge":    entry.StatusActive,
		"fresh":   entry.StatusActive,
		"undated": entry.StatusActive,
		"gone":    entry.StatusArchived,
	}
	for term, status := range want {
		got, ok := c.Get(term)
		require.True(t, ok)
		assert.Equal(t, status, got.Status, term)
	}

	// Only status changes
	after := c.Entries()
	for i := range before {
		before[i].Status = after[i].Status
		assert.Equal(t, before[i], after[i])
	}
}

func TestSweep_IsMonotonic(t *testing.T) {
	c, _ := entry.NewCollection([]entry.Entry{stored("old", "2026-01-01", entry.StatusActive)})
	m := NewManager(90, nil)

	assert.Equal(t, 1, m.Sweep(c, entry.MustParseDate("2026-04-06")))
	assert.Equal(t, 0, m.Sweep(c, entry.MustParseDate("2026-04-06")))

	// An earlier clock never un-archives
	assert.Equal(t, 0, m.Sweep(c, entry.MustParseDate("2026-01-02")))
	got, _ := c.Get("old")
	assert.Equal(t, entry.StatusArchived, got.Status)
}

func TestSweep_CustomWindow(t *testing.T) {
	c, _ := entry.NewCollection([]entry.Entry{stored("a", "2026-03-01", entry.StatusActive)})
	m := NewManager(30, nil)
	assert.Equal(t, 30, m.Window())
	assert.Equal(t, 1, m.Sweep(c, entry.MustParseDate("2026-04-06")))
}
