package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFacts(t *testing.T) {
	t.Run("Should parse a clean JSON object", func(t *testing.T) {
		facts := parseFacts(`{"n_participants": 40, "arms": ["placebo", "drug"]}`)
		assert.EqualValues(t, 40, facts["n_participants"])
	})
	t.Run("Should extract JSON wrapped in prose", func(t *testing.T) {
		facts := parseFacts("Here are the facts:\n```json\n{\"visit_count\": 6}\n```")
		assert.EqualValues(t, 6, facts["visit_count"])
	})
	t.Run("Should fall back to the empty shape on garbage", func(t *testing.T) {
		facts := parseFacts("the protocol does not describe procedures")
		assert.Equal(t, EmptyFacts(), facts)
		assert.Nil(t, facts["n_participants"])
	})
	t.Run("Should fall back on a JSON null", func(t *testing.T) {
		assert.Equal(t, EmptyFacts(), parseFacts("null"))
	})
}

func TestParseQueries(t *testing.T) {
	t.Run("Should parse a plain array", func(t *testing.T) {
		qs := parseQueries(`["risks of treatment", "side effect monitoring"]`, 3)
		assert.Equal(t, []string{"risks of treatment", "side effect monitoring"}, qs)
	})
	t.Run("Should extract the array from surrounding text", func(t *testing.T) {
		qs := parseQueries("Sure! [\"study duration\"] is what I suggest.", 3)
		assert.Equal(t, []string{"study duration"}, qs)
	})
	t.Run("Should cap at max and drop blanks", func(t *testing.T) {
		qs := parseQueries(`["a", "  ", "b", "c", "d"]`, 3)
		assert.Equal(t, []string{"a", "b", "c"}, qs)
	})
	t.Run("Should skip non-string entries", func(t *testing.T) {
		qs := parseQueries(`[1, "real query", {"q": "x"}]`, 3)
		assert.Equal(t, []string{"real query"}, qs)
	})
	t.Run("Should return nil for unparseable output", func(t *testing.T) {
		assert.Nil(t, parseQueries("no queries needed", 3))
	})
}

func TestJoinSnippetsAndTemplates(t *testing.T) {
	t.Run("Should fall back to the Purpose template for unknown sections", func(t *testing.T) {
		assert.Contains(t, writerTemplate("Confidentiality"), "You are the Purpose section writer")
		assert.Contains(t, writerTemplate("Risks"), "You are the Risks section writer")
	})
}
