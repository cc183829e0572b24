package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(term string, first string) Entry {
	return Entry{
		Term:          term,
		Group:         GroupLanguage,
		Country:       []string{"US"},
		Category:      "Gen Z Slang",
		RiskLevel:     RiskMedium,
		TrendScore:    60,
		Status:        StatusActive,
		FirstDetected: MustParseDate(first),
		LastUpdated:   MustParseDate(first),
		Context:       map[string]string{ContextEnglish: "A slang term."},
		Verification:  VerificationVerified,
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "foo", Key("  Foo "))
	assert.Equal(t, "foo bar", Key("FOO BAR"))
	assert.Equal(t, "", Key("   "))
}

func TestIDFor(t *testing.T) {
	assert.Equal(t, IDFor("Foo"), IDFor(" foo "))
	assert.NotEqual(t, IDFor("foo"), IDFor("bar"))
}

func TestNewCollection_DropsDuplicates(t *testing.T) {
	c, dropped := NewCollection([]Entry{
		draft("Foo", "2026-01-01"),
		draft("foo ", "2026-02-01"),
		draft("Bar", "2026-01-01"),
		{Term: "  "},
	})

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"foo ", "  "}, dropped)

	got, ok := c.Get("FOO")
	require.True(t, ok)
	assert.Equal(t, "2026-01-01", got.FirstDetected.String())
}

func TestMerge_Insert(t *testing.T) {
	c, _ := NewCollection(nil)
	today := MustParseDate("2026-01-01")

	outcome, err := c.Merge(draft("Foo", "2026-01-01"), today)
	require.NoError(t, err)
	assert.Equal(t, Inserted, outcome)

	got, ok := c.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "Foo", got.Term)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, IDFor("Foo"), got.ID)
	assert.Equal(t, today, got.LastUpdated)
}

func TestMerge_RejectsInvalidDraft(t *testing.T) {
	c, _ := NewCollection(nil)
	today := MustParseDate("2026-01-01")

	bad := draft("Foo", "2026-01-01")
	bad.RiskLevel = "Extreme"

	_, err := c.Merge(bad, today)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, 0, c.Len())
}

func TestMerge_RefreshActive(t *testing.T) {
	c, _ := NewCollection([]Entry{draft("Foo", "2026-01-01")})
	c.Update("foo", func(e *Entry) { e.Context["ko"] = "설명" })
	today := MustParseDate("2026-02-10")

	again := draft("FOO", "2026-02-10")
	again.TrendScore = 90
	again.Context = map[string]string{ContextEnglish: "Updated explanation."}
	again.Verification = VerificationDegraded

	outcome, err := c.Merge(again, today)
	require.NoError(t, err)
	assert.Equal(t, Refreshed, outcome)
	assert.Equal(t, 1, c.Len())

	got, _ := c.Get("foo")
	assert.Equal(t, "Foo", got.Term)
	assert.Equal(t, "2026-01-01", got.FirstDetected.String())
	assert.Equal(t, today, got.LastUpdated)
	assert.Equal(t, 90, got.TrendScore)
	assert.Equal(t, "Updated explanation.", got.Context[ContextEnglish])
	assert.Equal(t, "설명", got.Context["ko"])
	assert.Equal(t, VerificationVerified, got.Verification, "verification is never downgraded")
}

func TestMerge_ReviveArchived(t *testing.T) {
	archived := draft("Foo", "2026-01-01")
	archived.Status = StatusArchived
	c, _ := NewCollection([]Entry{archived})
	today := MustParseDate("2026-04-06")

	outcome, err := c.Merge(draft("foo", "2026-04-06"), today)
	require.NoError(t, err)
	assert.Equal(t, Revived, outcome)

	got, _ := c.Get("Foo")
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, today, got.LastUpdated)
	assert.Equal(t, "2026-01-01", got.FirstDetected.String())
}

func TestMerge_Idempotent(t *testing.T) {
	today := MustParseDate("2026-03-01")

	tests := []struct {
		name    string
		initial []Entry
	}{
		{name: "empty store", initial: nil},
		{name: "active match", initial: []Entry{draft("Foo", "2026-01-01")}},
		{name: "archived match", initial: func() []Entry {
			e := draft("Foo", "2026-01-01")
			e.Status = StatusArchived
			return []Entry{e}
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := NewCollection(tt.initial)
			d := draft("foo", "2026-03-01")

			_, err := c.Merge(d, today)
			require.NoError(t, err)
			once := c.Entries()

			_, err = c.Merge(d, today)
			require.NoError(t, err)
			assert.Equal(t, once, c.Entries())
		})
	}
}

func TestMerge_UniquenessAcrossManyDrafts(t *testing.T) {
	c, _ := NewCollection(nil)
	today := MustParseDate("2026-03-01")

	for _, term := range []string{"Foo", "foo", " FOO", "Bar", "bar ", "Baz"} {
		_, err := c.Merge(draft(term, "2026-03-01"), today)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for _, e := range c.Entries() {
		assert.False(t, seen[e.Key()], "duplicate identity %q", e.Key())
		seen[e.Key()] = true
	}
	assert.Len(t, seen, 3)
}

func TestCollection_EntriesAreCopies(t *testing.T) {
	c, _ := NewCollection([]Entry{draft("Foo", "2026-01-01")})

	entries := c.Entries()
	entries[0].Context[ContextEnglish] = "mutated"
	entries[0].Country[0] = "UK"

	got, _ := c.Get("foo")
	assert.Equal(t, "A slang term.", got.Context[ContextEnglish])
	assert.Equal(t, []string{"US"}, got.Country)
}

func TestCollection_Count(t *testing.T) {
	archived := draft("Bar", "2026-01-01")
	archived.Status = StatusArchived
	c, _ := NewCollection([]Entry{draft("Foo", "2026-01-01"), archived})

	assert.Equal(t, 1, c.Count(StatusActive))
	assert.Equal(t, 1, c.Count(StatusArchived))
}
