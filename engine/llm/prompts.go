package llm

import (
	"fmt"
	"strings"

	"github.com/consentforge/consentforge/engine/retrieval"
)

// Snippet context is capped so the writer prompt stays inside the model's
// context window even with the refined 18-hit pool.
const maxSnippetChars = 15000

const commonInstructions = "Write in 8th-grade language. Define medical terms on first use. " +
	"Avoid guarantees (use may/might). Use ONLY the provided snippets. " +
	"Use ONLY the provided snippets and facts. End each factual sentence with " +
	"[[p. X | Section: <section_path>]] citation. Do not include the section name in the " +
	"citation, only the number. When determining the section that fits best for the " +
	"citation, look for the section in the text itself, then fall back to the section " +
	"path provided. If info is missing, write 'not described in the protocol.' " +
	"Feel free to use bullet points or numbered lists where appropriate, but ultimately " +
	"follow what is considered best practice for that section in a typical informed " +
	"consent form.\n\n" +
	"Format strictly as Markdown:\n" +
	"- Use **text** for bold and *text* for italics.\n" +
	"- Do NOT use headings, tables, footnotes, HTML, or code fences.\n" +
	"- Separate paragraphs with exactly ONE blank line.\n" +
	"- Begin lists at the start of the line, with one blank line before the list.\n" +
	"- Bullet lists use '* ' and numbered lists use '1.' for every item.\n" +
	"- Place citations immediately before the final period of the sentence, like: ... [[p. 10 | Section: 3]].\n" +
	"- Keep the tense consistent with the snippets so planned actions stay in future tense."

// writerTemplate returns the system prompt for a section writer. Unknown
// sections fall back to the Purpose template.
func writerTemplate(section string) string {
	name := section
	switch strings.ToLower(section) {
	case "purpose", "procedures", "risks", "benefits":
	default:
		name = "Purpose"
	}
	return fmt.Sprintf(
		"You are the %s section writer for an Informed Consent Form. %s",
		name, commonInstructions,
	)
}

func writerRequest(section, snippets, factsJSON string) string {
	return fmt.Sprintf(
		"Write the %s section.\n\nSnippets:\n%s\n\nFacts (JSON):\n%s\n\n"+
			"Return only the section text with citations inline. The section in each "+
			"citation must be the number only, never the name.",
		section, snippets, factsJSON,
	)
}

func factsPrompt(snippets string) string {
	return "You are extracting structured facts about study procedures from the provided snippets.\n" +
		"Use ONLY the text in the snippets. If a fact is absent, return null.\n" +
		"Return strict JSON with keys: n_participants (int|null), duration (object|null) with " +
		"{value:number, unit:'weeks|months|years'},\n" +
		"visit_count (int|null), arms (string[]), key_procedures (string[]), and citations (object)\n" +
		"with per-field citations arrays containing objects {chunk_id, page}.\n\n" +
		"Snippets:\n" + snippets + "\n\nReturn JSON only."
}

func proposeQueriesPrompt(section, text string, max int) string {
	return fmt.Sprintf(
		"You are reviewing a drafted Informed Consent Form (ICF) section.\n"+
			"Identify important missing information needed for this section, and propose up to %d broad,\n"+
			"library-search style queries that could retrieve relevant passages from a vector database.\n"+
			"Keep them general (no patient-specific details). Return ONLY a compact JSON array of strings.\n\n"+
			"Section: %s\n\nText to review:\n%s\n\nJSON array only:",
		max, section, text,
	)
}

// joinSnippets renders hits as labeled blocks, stopping before the
// character cap rather than truncating mid-block.
func joinSnippets(hits []retrieval.Hit) string {
	var parts []string
	used := 0
	for _, h := range hits {
		block := fmt.Sprintf(
			"[chunk_id=%s page=%d section=%s]\n%s",
			h.ChunkID, h.Page, h.SectionPath, h.Text,
		)
		if used+len(block) > maxSnippetChars {
			break
		}
		parts = append(parts, block)
		used += len(block)
	}
	return strings.Join(parts, "\n\n")
}
