package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// listKeys are the object keys model output has been seen to wrap its list in
var listKeys = []string{"items", "entries", "results", "data", "terms"}

// ParseRecords extracts candidate records from model text. Accepted shapes: a bare JSON array,
// an object wrapping the array under a known key, or a single object; any of them optionally
// inside a Markdown code fence or surrounded by prose
func ParseRecords(text string) ([]Record, error) {
	body := extractJSON(text)
	if body == "" {
		return nil, fmt.Errorf("%w: no JSON found in response", ErrMalformedPayload)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch v := raw.(type) {
	case []any:
		return toRecords(v)
	case map[string]any:
		for _, key := range listKeys {
			if list, ok := v[key].([]any); ok {
				return toRecords(list)
			}
		}
		if _, ok := v["term"]; ok {
			return []Record{Record(v)}, nil
		}
		return nil, fmt.Errorf("%w: object has no candidate list", ErrMalformedPayload)
	default:
		return nil, fmt.Errorf("%w: unexpected JSON %T", ErrMalformedPayload, raw)
	}
}

// toRecords keeps the object elements of a list; scalars are not candidates
func toRecords(list []any) ([]Record, error) {
	out := make([]Record, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out, nil
}

// extractJSON strips code fences and prose around the first JSON value in text
func extractJSON(text string) string {
	s := strings.TrimSpace(text)

	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		// Drop the info string (```json)
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "[{") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	closer := byte(']')
	if s[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}

	return s[start : end+1]
}
