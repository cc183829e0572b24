package planner

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethanbaker/riskwatch/pkg/entry"
	"gopkg.in/yaml.v3"
)

// Category is a mining theme and the taxonomy group its results must belong to
type Category struct {
	Name    string      `yaml:"name"`
	Group   entry.Group `yaml:"group"`
	Chunked bool        `yaml:"chunked"` // split by alphabet range (high-cardinality themes like slang)
	Markets []string    `yaml:"markets"` // optional override of the global market list
}

// PlanConfig enumerates what a run may mine
type PlanConfig struct {
	Markets        []string   `yaml:"markets"`
	Categories     []Category `yaml:"categories"`
	AlphabetRanges []string   `yaml:"alphabet_ranges"`
	MaxBatches     int        `yaml:"max_batches"` // hard cap on topics attempted per run
	PerTopic       int        `yaml:"per_topic"`   // candidates requested per topic
}

// Default values for a plan
var (
	DefaultMarkets        = []string{"US", "UK", "AU", "CA", "NZ"}
	DefaultAlphabetRanges = []string{"A-E", "F-J", "K-O", "P-T", "U-Z"}
)

const (
	DefaultMaxBatches = 10
	DefaultPerTopic   = 5
	MaxPerTopic       = 15
)

// DefaultPlanConfig mirrors the themes the curation team started with
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		Markets: DefaultMarkets,
		Categories: []Category{
			{Name: "Gen Z Internet Slang", Group: entry.GroupLanguage, Chunked: true},
			{Name: "Algospeak words used on TikTok", Group: entry.GroupLanguage, Chunked: true},
			{Name: "Online Hate Symbols and Dog Whistles", Group: entry.GroupLanguage},
			{Name: "Controversial Influencers", Group: entry.GroupPerson},
			{Name: "Extremist or Dangerous Groups", Group: entry.GroupGroup},
			{Name: "Dangerous Social Media Challenges", Group: entry.GroupTrend},
		},
		AlphabetRanges: DefaultAlphabetRanges,
		MaxBatches:     DefaultMaxBatches,
		PerTopic:       DefaultPerTopic,
	}
}

// LoadPlanConfig reads a YAML plan file, filling unset fields with defaults
func LoadPlanConfig(path string) (PlanConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PlanConfig{}, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}

	var cfg PlanConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return PlanConfig{}, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return PlanConfig{}, err
	}

	return cfg, nil
}

func (c *PlanConfig) applyDefaults() {
	if len(c.Markets) == 0 {
		c.Markets = DefaultMarkets
	}
	if len(c.AlphabetRanges) == 0 {
		c.AlphabetRanges = DefaultAlphabetRanges
	}
	if c.PerTopic <= 0 {
		c.PerTopic = DefaultPerTopic
	}
	if c.PerTopic > MaxPerTopic {
		c.PerTopic = MaxPerTopic
	}
	for i := range c.Categories {
		c.Categories[i].Group = entry.Group(strings.ToLower(strings.TrimSpace(string(c.Categories[i].Group))))
	}
}

// Validate checks the plan is usable. max_batches has no default in a plan file: the per-run
// budget has to be chosen explicitly
func (c PlanConfig) Validate() error {
	if c.MaxBatches <= 0 {
		return errors.New("plan: max_batches must be greater than zero")
	}
	if len(c.Categories) == 0 {
		return errors.New("plan: at least one category is required")
	}
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return errors.New("plan: category name cannot be empty")
		}
		if !cat.Group.Valid() {
			return fmt.Errorf("plan: category %q has unknown group %q", cat.Name, cat.Group)
		}
	}
	return nil
}
