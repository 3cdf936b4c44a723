package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "drops short tokens and stop words",
			text: "financial records of Q3 losses",
			want: []string{"financial", "records", "losses"},
		},
		{
			name: "deduplicates",
			text: "invoices, invoices and more invoices",
			want: []string{"invoices", "more"},
		},
		{
			name: "empty request",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeywords(tt.text))
		})
	}
}

func TestResponsiveness_MatchedTerms(t *testing.T) {
	c := NewResponsivenessClassifier([]model.DiscoveryRequest{
		{ID: "rfp-1", Text: "financial records of Q3 losses"},
	})

	doc := &model.Document{
		ID:   "doc-1",
		Text: "The financial team compiled records showing significant losses.",
	}
	verdict := c.Classify(doc)

	assert.True(t, verdict.IsResponsive)
	assert.Equal(t, 3, verdict.TotalMatches)
	require.Len(t, verdict.MatchedRequests, 1)
	assert.Equal(t, "rfp-1", verdict.MatchedRequests[0].RequestID)
	assert.ElementsMatch(t, []string{"financial", "records", "losses"}, verdict.MatchedRequests[0].Terms)
	assert.Equal(t, ProvenanceRule, verdict.Provenance)
}

func TestResponsiveness_NoMatch(t *testing.T) {
	c := NewResponsivenessClassifier([]model.DiscoveryRequest{
		{ID: "rfp-1", Text: "financial records of Q3 losses"},
	})

	verdict := c.Classify(&model.Document{ID: "doc-2", Text: "Lunch menu for the office party."})

	assert.False(t, verdict.IsResponsive)
	assert.Zero(t, verdict.TotalMatches)
	assert.Empty(t, verdict.MatchedRequests)
}

func TestResponsiveness_MultipleRequests(t *testing.T) {
	c := NewResponsivenessClassifier([]model.DiscoveryRequest{
		{ID: "rfp-1", Text: "financial records"},
		{ID: "rfp-2", Text: "communications concerning merger negotiations"},
	})

	doc := &model.Document{
		ID:   "doc-3",
		Text: "Records of the merger negotiations and related financial projections.",
	}
	verdict := c.Classify(doc)

	assert.True(t, verdict.IsResponsive)
	require.Len(t, verdict.MatchedRequests, 2)
	assert.Equal(t, verdict.TotalMatches,
		verdict.MatchedRequests[0].Score+verdict.MatchedRequests[1].Score)
}

func TestResponsiveness_ConfidenceBounds(t *testing.T) {
	c := NewResponsivenessClassifier([]model.DiscoveryRequest{
		{ID: "rfp-1", Text: "alpha bravo charlie delta echo foxtrot golf hotel india juliet"},
	})

	doc := &model.Document{
		ID:   "doc-4",
		Text: "alpha bravo charlie delta echo foxtrot golf hotel india juliet",
	}
	verdict := c.Classify(doc)

	assert.True(t, verdict.IsResponsive)
	assert.LessOrEqual(t, verdict.Confidence, 100.0)
	assert.GreaterOrEqual(t, verdict.Confidence, 0.0)
}
