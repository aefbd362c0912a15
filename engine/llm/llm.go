package llm

import (
	"context"

	"github.com/consentforge/consentforge/engine/retrieval"
)

// Facts holds structured procedure facts extracted from snippets. Shape
// follows the extraction prompt: n_participants, duration, visit_count,
// arms, key_procedures, citations.
type Facts map[string]any

// EmptyFacts is the fallback when extraction output cannot be parsed.
func EmptyFacts() Facts {
	return Facts{
		"n_participants": nil,
		"duration":       nil,
		"visit_count":    nil,
		"arms":           []string{},
		"key_procedures": []string{},
		"citations":      map[string]any{},
	}
}

// Writer drafts one consent-form section from retrieved snippets.
type Writer interface {
	WriteSection(ctx context.Context, section string, hits []retrieval.Hit, facts Facts) (string, error)
}

// FactExtractor pulls structured procedure facts out of snippets.
type FactExtractor interface {
	ExtractProcedureFacts(ctx context.Context, hits []retrieval.Hit) (Facts, error)
}

// QueryProposer suggests follow-up retrieval queries for a drafted section.
type QueryProposer interface {
	ProposeQueries(ctx context.Context, section, text string, max int) ([]string, error)
}
