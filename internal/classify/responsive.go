package classify

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// minKeywordLen is the shortest request token kept as a match keyword.
const minKeywordLen = 4

// stopWords are dropped when extracting keywords from discovery requests.
var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "all": {}, "also": {}, "and": {}, "any": {},
	"been": {}, "before": {}, "being": {}, "between": {}, "both": {},
	"concerning": {}, "could": {}, "documents": {}, "during": {}, "each": {},
	"every": {}, "from": {}, "have": {}, "including": {}, "into": {},
	"other": {}, "over": {}, "pertaining": {}, "produce": {}, "regarding": {},
	"related": {}, "relating": {}, "request": {}, "should": {}, "some": {},
	"such": {}, "than": {}, "that": {}, "their": {}, "them": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "this": {}, "those": {},
	"under": {}, "were": {}, "which": {}, "will": {}, "with": {},
	"would": {}, "your": {},
}

// ResponsivenessClassifier matches documents against discovery requests.
// It is deterministic by design: responsiveness is keyword-anchored by
// construction, not judgment-anchored, so there is no model path.
type ResponsivenessClassifier struct {
	requests []model.DiscoveryRequest
	keywords map[string][]string // request ID -> extracted keywords
}

// NewResponsivenessClassifier extracts keywords from each discovery request
// up front so per-document classification is a pure lookup.
func NewResponsivenessClassifier(requests []model.DiscoveryRequest) *ResponsivenessClassifier {
	keywords := make(map[string][]string, len(requests))
	for _, req := range requests {
		keywords[req.ID] = ExtractKeywords(req.Text)
	}
	return &ResponsivenessClassifier{requests: requests, keywords: keywords}
}

// ExtractKeywords tokenizes request text and keeps lowercase tokens longer
// than three characters that are not stop words. Duplicates are removed,
// order of first appearance is preserved.
func ExtractKeywords(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(tokens))
	var keywords []string
	for _, tok := range tokens {
		if len(tok) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

// Classify produces exactly one responsiveness verdict for the document:
// responsive iff the summed match count across all requests is positive.
func (c *ResponsivenessClassifier) Classify(doc *model.Document) ResponsivenessVerdict {
	haystack := strings.ToLower(doc.Text)

	var (
		matches []RequestMatch
		total   int
	)
	for _, req := range c.requests {
		var terms []string
		for _, kw := range c.keywords[req.ID] {
			if strings.Contains(haystack, kw) {
				terms = append(terms, kw)
			}
		}
		if len(terms) == 0 {
			continue
		}
		sort.Strings(terms)
		matches = append(matches, RequestMatch{RequestID: req.ID, Terms: terms, Score: len(terms)})
		total += len(terms)
	}

	verdict := ResponsivenessVerdict{
		DocumentID:      doc.ID,
		IsResponsive:    total > 0,
		MatchedRequests: matches,
		TotalMatches:    total,
		Confidence:      clampConfidence(float64(total) * 20),
		Provenance:      ProvenanceRule,
	}
	for _, m := range matches {
		verdict.Basis = append(verdict.Basis,
			fmt.Sprintf("request %s matched terms: %s", m.RequestID, strings.Join(m.Terms, ", ")))
	}
	return verdict
}
