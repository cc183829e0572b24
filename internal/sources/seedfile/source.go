// Package seedfile serves curated candidates from a local YAML file. It runs the pipeline
// without any provider credentials and seeds a fresh knowledge base
package seedfile

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethanbaker/riskwatch/internal/sources"
	"gopkg.in/yaml.v3"
)

// Source returns records from a seed file that match the requested topic
type Source struct {
	path    string
	records []sources.Record
}

type seedFile struct {
	Items []map[string]any `yaml:"items"`
}

// Load reads a seed file: a YAML document with an "items" list of records
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: seed file %s: %v", sources.ErrMalformedPayload, path, err)
	}

	s := &Source{path: path}
	for _, item := range f.Items {
		s.records = append(s.records, sources.Record(item))
	}
	return s, nil
}

func (s *Source) Name() string {
	return "seedfile"
}

// Len reports how many records the file holds
func (s *Source) Len() int {
	return len(s.records)
}

// Mine returns up to req.Count records whose category and market match the topic.
// Records without a category or country match any topic
func (s *Source) Mine(ctx context.Context, req sources.Request) ([]sources.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(req.KnownTerms))
	for _, term := range req.KnownTerms {
		known[strings.ToLower(term)] = true
	}

	var out []sources.Record
	for _, rec := range s.records {
		if req.Count > 0 && len(out) >= req.Count {
			break
		}
		if !matchesCategory(rec, req.Topic.Category) || !matchesMarket(rec, req.Topic.Market) {
			continue
		}
		if term, _ := rec["term"].(string); known[strings.ToLower(term)] {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

func matchesCategory(rec sources.Record, category string) bool {
	v, ok := rec["category"].(string)
	if !ok || v == "" {
		return true
	}
	return strings.EqualFold(v, category)
}

func matchesMarket(rec sources.Record, market string) bool {
	switch v := rec["country"].(type) {
	case nil:
		return true
	case string:
		return strings.EqualFold(v, market)
	case []any:
		for _, c := range v {
			if s, ok := c.(string); ok && strings.EqualFold(s, market) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// copyRecord returns a shallow copy so callers cannot mutate the loaded seed
func copyRecord(rec sources.Record) sources.Record {
	out := make(sources.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
