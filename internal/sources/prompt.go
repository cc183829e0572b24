package sources

import (
	"fmt"
	"strings"

	"github.com/ethanbaker/riskwatch/internal/planner"
	"github.com/ethanbaker/riskwatch/pkg/entry"
)

// DefaultSystemPrompt is used when no prompt file overrides it
const DefaultSystemPrompt = `You are a Global Brand Safety & Culture Intelligence Expert and a database generator.
You only report terms, people, groups and trends that verifiably exist.
ALL content MUST be in English. Output JSON only, with no commentary.`

// maxKnownTerms bounds how many existing terms are listed in a prompt
const maxKnownTerms = 20

// PromptBuilder assembles a mining prompt from a base instruction, facts and context lines
type PromptBuilder struct {
	base    string
	facts   [][2]string
	context []string
}

// NewPromptBuilder creates a builder with a base instruction
func NewPromptBuilder(base string) *PromptBuilder {
	return &PromptBuilder{base: base}
}

// AddFact adds a key-value fact. Facts keep insertion order
func (pb *PromptBuilder) AddFact(key, value string) *PromptBuilder {
	pb.facts = append(pb.facts, [2]string{key, value})
	return pb
}

// AddContext adds a free-form context line
func (pb *PromptBuilder) AddContext(line string) *PromptBuilder {
	pb.context = append(pb.context, line)
	return pb
}

// Build renders the prompt
func (pb *PromptBuilder) Build() string {
	parts := []string{pb.base}

	if len(pb.facts) > 0 {
		parts = append(parts, "\n## Key Facts:")
		for _, f := range pb.facts {
			parts = append(parts, fmt.Sprintf("- %s: %s", f[0], f[1]))
		}
	}

	if len(pb.context) > 0 {
		parts = append(parts, "\n## Context:")
		for _, line := range pb.context {
			parts = append(parts, fmt.Sprintf("- %s", line))
		}
	}

	return strings.Join(parts, "\n")
}

// MiningPrompt renders the user prompt for one topic. knownTerms are listed so the model
// avoids proposing entries the store already holds
func MiningPrompt(topic planner.Topic, count int, today entry.Date, knownTerms []string) string {
	subject := fmt.Sprintf("%q relevant in the %s market", topic.Category, topic.Market)
	if topic.Range != "" {
		subject += fmt.Sprintf(", limited to terms starting with letters %s", topic.Range)
	}

	base := fmt.Sprintf(`Generate a list of %d distinct real-world examples of %s.
Focus on items relevant in the last 24 months as of %s.

Output MUST be a valid JSON object containing a key "items" which is a list of objects.
Schema for each object:
{
    "term": "Term Name",
    "group": "%s",
    "country": ["%s"],
    "category": "Short Category",
    "risk_level": "High/Medium/Low",
    "trend_score": (Integer 0-100),
    "first_detected": "YYYY-MM-DD",
    "context": {
        "en": "Explanation in English of why this is a brand-safety risk."
    }
}`, count, subject, today, topic.Group, topic.Market)

	pb := NewPromptBuilder(base).
		AddFact("Group", string(topic.Group)).
		AddFact("Market", topic.Market).
		AddFact("Today", today.String())

	if len(knownTerms) > maxKnownTerms {
		knownTerms = knownTerms[len(knownTerms)-maxKnownTerms:]
	}
	if len(knownTerms) > 0 {
		pb.AddContext("Already known, do not repeat: " + strings.Join(knownTerms, ", "))
	}

	return pb.Build()
}
