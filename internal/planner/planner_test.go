package planner

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ethanbaker/riskwatch/pkg/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() PlanConfig {
	return PlanConfig{
		Markets: []string{"US", "UK"},
		Categories: []Category{
			{Name: "Gen Z Slang", Group: entry.GroupLanguage, Chunked: true},
			{Name: "Influencers", Group: entry.GroupPerson},
			{Name: "Influencers", Group: entry.GroupPerson}, // duplicate theme
			{Name: "Challenges", Group: entry.GroupTrend, Markets: []string{"au"}},
		},
		AlphabetRanges: []string{"A-M", "N-Z"},
		MaxBatches:     100,
		PerTopic:       7,
	}
}

func topicStrings(topics []Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.String()
	}
	return out
}

func TestEnumerate(t *testing.T) {
	topics := Enumerate(testConfig())

	assert.Equal(t, []string{
		"Gen Z Slang [US] A-M",
		"Gen Z Slang [US] N-Z",
		"Gen Z Slang [UK] A-M",
		"Gen Z Slang [UK] N-Z",
		"Influencers [US]",
		"Influencers [UK]",
		"Challenges [AU]",
	}, topicStrings(topics))

	for _, topic := range topics {
		assert.Equal(t, 7, topic.Count)
	}
	assert.Equal(t, entry.GroupTrend, topics[6].Group)
}

func TestPlan_DeterministicForSeed(t *testing.T) {
	cfg := testConfig()

	a, err := Plan(cfg, 42)
	require.NoError(t, err)
	b, err := Plan(cfg, 42)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlan_ContentIndependentOfSeed(t *testing.T) {
	cfg := testConfig()

	a, err := Plan(cfg, 1)
	require.NoError(t, err)
	b, err := Plan(cfg, 2)
	require.NoError(t, err)

	as, bs := topicStrings(a), topicStrings(b)
	sort.Strings(as)
	sort.Strings(bs)
	assert.Equal(t, as, bs)
}

func TestPlan_CapsAtMaxBatches(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBatches = 3

	topics, err := Plan(cfg, 7)
	require.NoError(t, err)
	assert.Len(t, topics, 3)

	all := topicStrings(Enumerate(cfg))
	for _, s := range topicStrings(topics) {
		assert.Contains(t, all, s)
	}
}

func TestPlan_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *PlanConfig)
	}{
		{name: "no batches", mutate: func(c *PlanConfig) { c.MaxBatches = 0 }},
		{name: "no categories", mutate: func(c *PlanConfig) { c.Categories = nil }},
		{name: "unknown group", mutate: func(c *PlanConfig) { c.Categories[0].Group = "meme" }},
		{name: "blank name", mutate: func(c *PlanConfig) { c.Categories[0].Name = " " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := Plan(cfg, 1)
			assert.Error(t, err)
		})
	}
}

func TestLoadPlanConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")

	content := `
max_batches: 4
per_topic: 40
categories:
  - name: Gen Z Internet Slang
    group: Language
    chunked: true
  - name: Controversial Influencers
    group: person
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadPlanConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultMarkets, cfg.Markets)
	assert.Equal(t, DefaultAlphabetRanges, cfg.AlphabetRanges)
	assert.Equal(t, MaxPerTopic, cfg.PerTopic)
	assert.Equal(t, 4, cfg.MaxBatches)
	assert.Equal(t, entry.GroupLanguage, cfg.Categories[0].Group)

	t.Run("missing max_batches is an error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("categories:\n  - name: x\n    group: trend\n"), 0644))
		_, err := LoadPlanConfig(bad)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPlanConfig(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestDefaultPlanConfig(t *testing.T) {
	cfg := DefaultPlanConfig()
	require.NoError(t, cfg.Validate())

	topics, err := Plan(cfg, 99)
	require.NoError(t, err)
	assert.Len(t, topics, DefaultMaxBatches)
}
