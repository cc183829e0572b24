package miner

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ethanbaker/riskwatch/internal/planner"
	"github.com/ethanbaker/riskwatch/internal/sources"
	"github.com/ethanbaker/riskwatch/pkg/entry"
)

// groupAliases maps the group hints sources actually emit onto the taxonomy
var groupAliases = map[string]entry.Group{
	"language":      entry.GroupLanguage,
	"slang":         entry.GroupLanguage,
	"algospeak":     entry.GroupLanguage,
	"term":          entry.GroupLanguage,
	"word":          entry.GroupLanguage,
	"dog whistle":   entry.GroupLanguage,
	"person":        entry.GroupPerson,
	"people":        entry.GroupPerson,
	"public figure": entry.GroupPerson,
	"influencer":    entry.GroupPerson,
	"celebrity":     entry.GroupPerson,
	"group":         entry.GroupGroup,
	"organization":  entry.GroupGroup,
	"organisation":  entry.GroupGroup,
	"movement":      entry.GroupGroup,
	"trend":         entry.GroupTrend,
	"challenge":     entry.GroupTrend,
	"meme":          entry.GroupTrend,
}

// NormalizeGroup maps a group hint onto the taxonomy. Unknown hints are returned lowercased
// so the caller can discard them as off-taxonomy
func NormalizeGroup(hint string) entry.Group {
	h := strings.ToLower(strings.TrimSpace(hint))
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	if g, ok := groupAliases[h]; ok {
		return g
	}
	return entry.Group(h)
}

// normalize turns a raw record into a draft entry. It is the only place defaults are applied;
// the result still has to pass strict validation
func normalize(rec sources.Record, topic planner.Topic, today entry.Date, source string) (entry.Entry, error) {
	e := entry.Entry{
		Term:       strings.TrimSpace(pickStr(rec, "term", "name", "title")),
		Category:   strings.TrimSpace(pickStr(rec, "category")),
		RiskLevel:  normalizeRisk(pickStr(rec, "risk_level", "risk", "severity")),
		TrendScore: clampScore(rec["trend_score"]),
		Status:     entry.StatusActive,
		ImageURL:   "",
		Source:     source,
		Context:    normalizeContext(pick(rec, "context", "explanation", "description")),
	}

	if hint := pickStr(rec, "group", "type"); hint != "" {
		e.Group = NormalizeGroup(hint)
	} else {
		e.Group = topic.Group
	}

	if e.Category == "" {
		e.Category = topic.Category
	}

	e.Country = normalizeCountry(rec["country"])
	if len(e.Country) == 0 && topic.Market != "" {
		e.Country = []string{strings.ToUpper(topic.Market)}
	}

	e.LastUpdated = today
	e.FirstDetected = today
	if raw := pickStr(rec, "first_detected"); raw != "" {
		d, err := entry.ParseDate(raw)
		if err != nil {
			return e, fmt.Errorf("%w: first_detected: %v", entry.ErrInvalid, err)
		}
		if d.After(today) {
			return e, fmt.Errorf("%w: first_detected %s is in the future", entry.ErrInvalid, d)
		}
		if !d.IsZero() {
			e.FirstDetected = d
		}
	}

	return e, nil
}

func pick(rec sources.Record, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func pickStr(rec sources.Record, keys ...string) string {
	for _, k := range keys {
		if s := toString(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func normalizeRisk(raw string) entry.RiskLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return entry.RiskLow
	case "medium", "moderate":
		return entry.RiskMedium
	case "high":
		return entry.RiskHigh
	default:
		return entry.RiskLevel(strings.TrimSpace(raw))
	}
}

// clampScore reads a trend score from any numeric shape and clamps it to [0,100].
// Missing or unreadable scores are 0
func clampScore(v any) int {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}

// normalizeCountry accepts a code, a separated list of codes, or an array, and returns
// uppercase, deduplicated, sorted codes
func normalizeCountry(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.FieldsFunc(t, func(r rune) bool {
			return r == ',' || r == '/' || r == ';' || r == ' '
		})
	case []any:
		for _, item := range t {
			raw = append(raw, toString(item))
		}
	case []string:
		raw = t
	}

	seen := make(map[string]bool, len(raw))
	var out []string
	for _, c := range raw {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// normalizeContext turns a bare description into {"en": text} and keeps per-locale maps
func normalizeContext(v any) map[string]string {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return map[string]string{entry.ContextEnglish: strings.TrimSpace(t)}
	case map[string]any:
		out := make(map[string]string, len(t))
		for locale, text := range t {
			s := strings.TrimSpace(toString(text))
			if s == "" {
				continue
			}
			out[strings.ToLower(strings.TrimSpace(locale))] = s
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
