package retrieval

import "strings"

// sectionAllowedHeadings maps each consent-form section to the document
// headings allowed to source its snippets. Matching is bidirectional
// substring, so "potential risks and discomforts" passes the Risks list.
var sectionAllowedHeadings = map[string][]string{
	"Purpose": {
		"objectives",
		"primary objective",
		"secondary objectives",
		"background",
		"rationale",
	},
	"Procedures": {
		"study design",
		"study procedures",
		"treatment plan",
		"schedule of assessments",
		"sample size",
		"enrollment",
		"duration",
		"follow-up",
	},
	"Risks": {
		"risks",
		"potential risks",
		"safety",
		"adverse events",
		"warnings",
	},
	"Benefits": {
		"benefits",
		"potential benefits",
	},
}

// allowedHeading reports whether a chunk heading may feed the section.
// Empty sections and empty headings always pass: the filter only prunes
// when both sides carry information.
func allowedHeading(section, heading string) bool {
	if section == "" {
		return true
	}
	hn := strings.ToLower(strings.TrimSpace(heading))
	if hn == "" {
		return true
	}
	for _, a := range sectionAllowedHeadings[section] {
		if strings.Contains(hn, a) || strings.Contains(a, hn) {
			return true
		}
	}
	return false
}
