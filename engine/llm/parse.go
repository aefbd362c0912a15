package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
	jsonArrayRe  = regexp.MustCompile(`\[[\s\S]*\]`)
)

// parseFacts tolerantly decodes a facts object from model output. Models
// wrap JSON in prose or code fences often enough that strict decoding of
// the raw response is a losing game; any parse failure falls back to the
// empty shape.
func parseFacts(text string) Facts {
	payload := text
	if m := jsonObjectRe.FindString(text); m != "" {
		payload = m
	}
	var facts Facts
	if err := json.Unmarshal([]byte(payload), &facts); err != nil {
		return EmptyFacts()
	}
	if facts == nil {
		return EmptyFacts()
	}
	return facts
}

// parseQueries extracts a JSON string array from model output, dropping
// blank entries and capping at max. Unparseable output yields nil.
func parseQueries(text string, max int) []string {
	payload := text
	if m := jsonArrayRe.FindString(text); m != "" {
		payload = m
	}
	var raw []any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil
	}
	queries := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		queries = append(queries, s)
		if max > 0 && len(queries) >= max {
			break
		}
	}
	return queries
}
