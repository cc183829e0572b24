// Package planner produces the per-run worklist of mining topics
package planner

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/ethanbaker/riskwatch/pkg/entry"
)

// Topic is one unit of mining work: a single Candidate Source request
type Topic struct {
	Category string      `json:"category"`
	Group    entry.Group `json:"group"`
	Market   string      `json:"market"`
	Range    string      `json:"range,omitempty"` // alphabet range, empty when the category is not chunked
	Count    int         `json:"count"`
}

// String renders the topic identity, also used to deduplicate the plan
func (t Topic) String() string {
	if t.Range == "" {
		return fmt.Sprintf("%s [%s]", t.Category, t.Market)
	}
	return fmt.Sprintf("%s [%s] %s", t.Category, t.Market, t.Range)
}

// Enumerate returns every topic the configuration describes, deduplicated, in a stable order
func Enumerate(cfg PlanConfig) []Topic {
	seen := make(map[string]bool)
	var topics []Topic

	add := func(t Topic) {
		key := strings.ToLower(t.String())
		if seen[key] {
			return
		}
		seen[key] = true
		topics = append(topics, t)
	}

	for _, cat := range cfg.Categories {
		markets := cfg.Markets
		if len(cat.Markets) > 0 {
			markets = cat.Markets
		}

		for _, market := range markets {
			market = strings.ToUpper(strings.TrimSpace(market))
			if market == "" {
				continue
			}

			base := Topic{
				Category: strings.TrimSpace(cat.Name),
				Group:    cat.Group,
				Market:   market,
				Count:    cfg.PerTopic,
			}
			if !cat.Chunked {
				add(base)
				continue
			}
			for _, r := range cfg.AlphabetRanges {
				t := base
				t.Range = strings.ToUpper(strings.TrimSpace(r))
				add(t)
			}
		}
	}

	return topics
}

// Plan enumerates the configuration, shuffles the topics with the given seed, and caps the
// result at max_batches. The same configuration and seed always produce the same plan
func Plan(cfg PlanConfig, seed uint64) ([]Topic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.PerTopic <= 0 {
		cfg.PerTopic = DefaultPerTopic
	}

	topics := Enumerate(cfg)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(topics), func(i, j int) {
		topics[i], topics[j] = topics[j], topics[i]
	})

	if len(topics) > cfg.MaxBatches {
		topics = topics[:cfg.MaxBatches]
	}

	return topics, nil
}
