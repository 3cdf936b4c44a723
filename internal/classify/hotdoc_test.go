package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

func TestHotDocRulePath_DestructionEmail(t *testing.T) {
	c := NewHotDocClassifier(nil, DefaultConfig(), nil)

	doc := &model.Document{
		ID:       "doc-1",
		Filename: "re-files.eml",
		Text: "From: cfo@acme.com\nSubject: those files\n" +
			"We should destroy the backup copies and delete the originals before Friday.",
	}
	verdict := c.Classify(context.Background(), doc)

	assert.True(t, verdict.IsHot)
	assert.Equal(t, RiskHigh, verdict.RiskLevel)
	assert.Equal(t, ProvenanceRule, verdict.Provenance)
	assert.Contains(t, verdict.Categories, "evidence-destruction")
	assert.NotEmpty(t, verdict.RecommendedActions)
}

func TestHotDocRulePath_UrgentEmailBonus(t *testing.T) {
	c := NewHotDocClassifier(nil, DefaultConfig(), nil)

	doc := &model.Document{
		ID:      "doc-2",
		DocType: "email",
		Text:    "From: ceo@acme.com\nSubject: lawsuit\nURGENT: the lawsuit exposure is growing.",
	}
	verdict := c.Classify(context.Background(), doc)

	// "lawsuit" twice plus the urgency bonus puts this at medium.
	assert.True(t, verdict.IsHot)
	assert.Equal(t, RiskMedium, verdict.RiskLevel)
	assert.Contains(t, verdict.Categories, "urgency")
}

func TestHotDocRulePath_Cold(t *testing.T) {
	c := NewHotDocClassifier(nil, DefaultConfig(), nil)

	verdict := c.Classify(context.Background(), &model.Document{
		ID:   "doc-3",
		Text: "Minutes of the quarterly facilities committee meeting.",
	})

	assert.False(t, verdict.IsHot)
	assert.Equal(t, RiskLow, verdict.RiskLevel)
	assert.Zero(t, verdict.RiskScore)
}

func TestHotDocRulePath_ScoreBounds(t *testing.T) {
	c := NewHotDocClassifier(nil, DefaultConfig(), nil)

	doc := &model.Document{
		ID:   "doc-4",
		Text: "destroy destroy destroy delete delete shred fraud illegal lawsuit liability hide cover up",
	}
	verdict := c.Classify(context.Background(), doc)

	assert.True(t, verdict.IsHot)
	assert.Equal(t, RiskHigh, verdict.RiskLevel)
	assert.LessOrEqual(t, verdict.RiskScore, 100.0)
}

func TestHotDocModelPath(t *testing.T) {
	chat := &fakeChat{response: `{
		"is_hot": true,
		"risk_level": "critical",
		"risk_score": 95,
		"categories": ["fraud"],
		"excerpts": ["cook the books"],
		"recommended_actions": ["escalate immediately"]
	}`}
	c := NewHotDocClassifier(chat, DefaultConfig(), nil)

	verdict := c.Classify(context.Background(), &model.Document{ID: "doc-5", Text: "x"})

	assert.Equal(t, ProvenanceModel, verdict.Provenance)
	assert.True(t, verdict.IsHot)
	assert.Equal(t, RiskCritical, verdict.RiskLevel)
	assert.Equal(t, 95.0, verdict.RiskScore)
	assert.Equal(t, []string{"cook the books"}, verdict.Excerpts)
}

func TestHotDocFallback_IsExclusive(t *testing.T) {
	tests := []struct {
		name string
		chat *fakeChat
	}{
		{"call fails", &fakeChat{err: errors.New("timeout")}},
		{"unparsable", &fakeChat{response: "risk level looks high to me"}},
		{"unknown risk level", &fakeChat{response: `{"is_hot": true, "risk_level": "extreme", "risk_score": 80}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewHotDocClassifier(tt.chat, DefaultConfig(), nil)
			doc := &model.Document{
				ID:   "doc-6",
				Text: "From: a@b.com\nSubject: x\nPlease destroy and delete everything.",
			}

			verdict := c.Classify(context.Background(), doc)

			require.Equal(t, ProvenanceRule, verdict.Provenance)
			assert.True(t, verdict.IsHot)
			assert.Equal(t, RiskHigh, verdict.RiskLevel)
		})
	}
}

func TestHotDocModelPath_ScoreClamped(t *testing.T) {
	chat := &fakeChat{response: `{"is_hot": false, "risk_level": "low", "risk_score": -12}`}
	c := NewHotDocClassifier(chat, DefaultConfig(), nil)

	verdict := c.Classify(context.Background(), &model.Document{ID: "doc-7", Text: "x"})

	assert.Equal(t, 0.0, verdict.RiskScore)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("{\"a\":1}"))
	assert.Equal(t, "", stripFences("   "))
}
