package generate

// sectionQueries holds the canned retrieval queries per section. Each list
// mixes one long keyword-dense query for sparse recall with shorter broad
// phrasings that behave better under embedding search.
var sectionQueries = map[string][]string{
	"Purpose": {
		"primary objective secondary objectives endpoints rationale hypothesis study aims goals " +
			"purpose why conducting background justification unmet medical need therapeutic rationale " +
			"scientific basis",
		"research purpose aims objectives rationale hypothesis justification study background",
		"purpose of study research study aims",
		"objectives rationale goals background",
	},
	"Procedures": {
		"study visits visit schedule screening baseline randomization assessments procedures tests " +
			"examinations blood draw imaging sample size enrollment participants subjects duration weeks " +
			"months treatment period follow-up washout run-in study design arms dosing administration " +
			"route frequency study schema timeline eligibility inclusion exclusion criteria consent process",
		"procedures assessments evaluations imaging laboratory tests dosing administration frequency " +
			"schedule of events",
		"study procedures tests schedule",
		"design arms visits treatment plan",
	},
	"Risks": {
		"adverse events side effects risks safety toxicity contraindications serious adverse events SAE " +
			"grade severity common uncommon rare warnings precautions discontinuation stopping rules " +
			"monitoring known risks potential risks discomfort complications reactions",
		"safety risks possible adverse events warnings cautions precautions toxicities monitoring",
		"risks side effects safety concerns",
		"warnings adverse events complications",
	},
	"Benefits": {
		"benefits potential benefits expected outcomes efficacy improvement therapeutic benefit clinical " +
			"benefit quality of life symptom relief disease control remission response rate progression " +
			"free survival may help might improve possible advantages",
		"potential therapeutic benefit symptom improvement outcomes response rates survival benefits",
		"study benefits possible advantages",
		"improvement quality of life outcomes",
	},
}

// queriesFor returns the canned queries for a section; unknown sections get
// the section name itself as a single query.
func queriesFor(section string) []string {
	if qs, ok := sectionQueries[section]; ok {
		return qs
	}
	return []string{section}
}
