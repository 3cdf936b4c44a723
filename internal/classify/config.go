package classify

import "unicode/utf8"

// Config holds the keyword and indicator lists the rule-based paths score
// against, plus the character budget for model prompts.
type Config struct {
	// PrivilegeKeywords each add 1 to the privilege score when found in a
	// document's filename or text.
	PrivilegeKeywords []string

	// AttorneyIndicators add 2 to the privilege score when any is present.
	AttorneyIndicators []string

	// WorkProductIndicators add 1 more when they co-occur with an attorney
	// indicator.
	WorkProductIndicators []string

	// DisclosureIndicators flag a potential privilege waiver.
	DisclosureIndicators []string

	// RiskKeywords are matched as case-insensitive patterns by the
	// hot-document rule path; every match adds 1 to the risk score.
	RiskKeywords []string

	// MaxTextChars bounds the document excerpt sent to the model gateway.
	MaxTextChars int
}

// DefaultConfig returns the keyword lists used when a task supplies none.
func DefaultConfig() Config {
	return Config{
		PrivilegeKeywords: []string{
			"privileged",
			"attorney-client",
			"attorney client",
			"work product",
			"legal advice",
			"legal opinion",
			"privileged and confidential",
			"prepared in anticipation of litigation",
		},
		AttorneyIndicators: []string{
			"esq",
			"attorney",
			"counsel",
			"law firm",
			"lawfirm",
			"legal department",
			"@law",
		},
		WorkProductIndicators: []string{
			"work product",
			"litigation strategy",
			"prepared in anticipation",
			"case assessment",
			"draft brief",
		},
		DisclosureIndicators: []string{
			"forwarded",
			"fwd:",
			"cc:",
			"third party",
			"external",
		},
		RiskKeywords: []string{
			"destroy",
			"delete",
			"shred",
			"hide",
			"cover up",
			"fraud",
			"illegal",
			"liability",
			"lawsuit",
			"off the books",
			"don't put this in writing",
		},
		MaxTextChars: 8000,
	}
}

// truncate bounds text to the configured character budget, cutting on a rune
// boundary so the prompt never carries a split multi-byte character.
func (c Config) truncate(text string) string {
	limit := c.MaxTextChars
	if limit <= 0 {
		limit = 8000
	}
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
