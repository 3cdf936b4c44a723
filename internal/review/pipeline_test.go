package review

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/reviewd/internal/classify"
	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// stubDocs is an in-memory store.DocumentStore for pipeline tests.
type stubDocs struct {
	docs []*model.Document
	err  error
}

func (s *stubDocs) PutDocument(_ context.Context, doc *model.Document) error {
	s.docs = append(s.docs, doc)
	return nil
}

func (s *stubDocs) GetDocumentsByIDs(_ context.Context, ids []string) ([]*model.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []*model.Document
	for _, d := range s.docs {
		if _, ok := want[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubDocs) ListDocumentsByMatter(_ context.Context, matterID string) ([]*model.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*model.Document
	for _, d := range s.docs {
		if d.MatterID == matterID {
			out = append(out, d)
		}
	}
	return out, nil
}

func reviewCorpus() *stubDocs {
	return &stubDocs{docs: []*model.Document{
		{
			ID: "doc-priv", MatterID: "matter-1", Filename: "advice.txt",
			Text:      "Attorney-client privileged legal advice from counsel regarding the merger.",
			CreatedAt: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			ID: "doc-resp", MatterID: "matter-1", Filename: "ledger.xlsx",
			Text: "Financial records of the merger transaction.",
		},
		{
			ID: "doc-hot", MatterID: "matter-1", Filename: "note.eml",
			Text: "Please destroy these files and delete the backups before the lawsuit.",
		},
		{
			ID: "doc-cold", MatterID: "matter-1", Filename: "menu.txt",
			Text: "Office party lunch menu.",
		},
	}}
}

func reviewInput() model.TaskInput {
	return model.TaskInput{
		Query:    "review for production",
		MatterID: "matter-1",
		DiscoveryRequests: []model.DiscoveryRequest{
			{ID: "rfp-1", Text: "merger financial records"},
		},
	}
}

func TestPipelineExecute(t *testing.T) {
	a := NewPipelineAgent(reviewCorpus(), nil, classify.DefaultConfig(), nil)

	result := a.Execute(context.Background(), reviewInput(), nil)
	require.True(t, result.Success, result.Error)
	require.NotEmpty(t, result.Output)

	var out Output
	require.NoError(t, json.Unmarshal(result.Output, &out))

	// Production set is the responsive set minus the privileged set: doc-priv
	// is responsive to rfp-1 but withheld as privileged.
	assert.Equal(t, []string{"doc-resp"}, out.ProductionSet)

	require.Len(t, out.PrivilegeLog, 1)
	assert.Equal(t, "doc-priv", out.PrivilegeLog[0].DocumentID)
	assert.Equal(t, classify.PrivilegeAttorneyClient, out.PrivilegeLog[0].PrivilegeType)

	require.Len(t, out.HotDocuments, 1)
	assert.Equal(t, "doc-hot", out.HotDocuments[0].DocumentID)
	assert.Equal(t, classify.RiskHigh, out.HotDocuments[0].RiskLevel)

	assert.Equal(t, 4, out.Stats.TotalDocuments)
	assert.Equal(t, 1, out.Stats.Privileged)
	assert.Equal(t, 2, out.Stats.Responsive)
	assert.Equal(t, 1, out.Stats.ProductionSet)
	assert.Zero(t, out.Stats.ModelVerdicts)
	assert.NotEmpty(t, out.Recommendations)
}

func TestPipelinePrivilegeLogAndReport(t *testing.T) {
	a := NewPipelineAgent(reviewCorpus(), nil, classify.DefaultConfig(), nil)

	result := a.Execute(context.Background(), reviewInput(), nil)
	require.True(t, result.Success, result.Error)

	var out Output
	require.NoError(t, json.Unmarshal(result.Output, &out))

	require.Len(t, out.PrivilegeLog, 1)
	entry := out.PrivilegeLog[0]
	assert.Equal(t, 1, entry.LogNumber)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), entry.DocumentDate)

	require.NotEmpty(t, out.Report)
	assert.Contains(t, out.Report, "DISCOVERY REVIEW REPORT")
	assert.Contains(t, out.Report, "Matter: matter-1")
	assert.Contains(t, out.Report, "PRIVILEGE LOG")
	assert.Contains(t, out.Report, "advice.txt")
	assert.Contains(t, out.Report, "2024-03-15")
	assert.Contains(t, out.Report, "HOT DOCUMENTS")
	assert.Contains(t, out.Report, "RECOMMENDATIONS")
	// Withheld documents are described, never quoted.
	assert.NotContains(t, out.Report, "legal advice from counsel")
}

func TestPipelineProgressIsMonotonic(t *testing.T) {
	a := NewPipelineAgent(reviewCorpus(), nil, classify.DefaultConfig(), nil)

	var percents []int
	result := a.Execute(context.Background(), reviewInput(), func(percent int, step string) {
		percents = append(percents, percent)
		assert.NotEmpty(t, step)
	})
	require.True(t, result.Success)

	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1],
			"progress went backwards at update %d", i)
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestPipelineCancellation(t *testing.T) {
	a := NewPipelineAgent(reviewCorpus(), nil, classify.DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	result := a.Execute(ctx, reviewInput(), func(percent int, step string) {
		// Cancel as soon as the corpus is loaded; the next per-document
		// checkpoint must observe it.
		cancel()
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "review interrupted")
	assert.Empty(t, result.Output)
}

func TestPipelineEmptyMatter(t *testing.T) {
	a := NewPipelineAgent(&stubDocs{}, nil, classify.DefaultConfig(), nil)

	result := a.Execute(context.Background(), reviewInput(), nil)
	require.True(t, result.Success)

	var out Output
	require.NoError(t, json.Unmarshal(result.Output, &out))
	assert.Zero(t, out.Stats.TotalDocuments)
	assert.Empty(t, out.ProductionSet)
}

func TestPipelineLoadFailure(t *testing.T) {
	a := NewPipelineAgent(&stubDocs{err: errors.New("disk gone")}, nil, classify.DefaultConfig(), nil)

	result := a.Execute(context.Background(), reviewInput(), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "loading documents")
}

func TestPipelineRestrictsToDocumentIDs(t *testing.T) {
	a := NewPipelineAgent(reviewCorpus(), nil, classify.DefaultConfig(), nil)

	input := reviewInput()
	input.DocumentIDs = []string{"doc-resp"}
	result := a.Execute(context.Background(), input, nil)
	require.True(t, result.Success)

	var out Output
	require.NoError(t, json.Unmarshal(result.Output, &out))
	assert.Equal(t, 1, out.Stats.TotalDocuments)
}

func TestPipelineHotDocsSortedByRisk(t *testing.T) {
	docs := &stubDocs{docs: []*model.Document{
		{ID: "mild", MatterID: "matter-1", Text: "possible liability exposure"},
		{ID: "severe", MatterID: "matter-1", Text: "destroy and shred everything, this fraud is a huge liability"},
	}}
	a := NewPipelineAgent(docs, nil, classify.DefaultConfig(), nil)

	result := a.Execute(context.Background(), reviewInput(), nil)
	require.True(t, result.Success)

	var out Output
	require.NoError(t, json.Unmarshal(result.Output, &out))
	require.Len(t, out.HotDocuments, 2)
	assert.Equal(t, "severe", out.HotDocuments[0].DocumentID)
	assert.GreaterOrEqual(t, out.HotDocuments[0].RiskScore, out.HotDocuments[1].RiskScore)
}

func TestPipelineValidateInput(t *testing.T) {
	a := NewPipelineAgent(&stubDocs{}, nil, classify.DefaultConfig(), nil)

	assert.True(t, a.ValidateInput(model.TaskInput{MatterID: "matter-1"}))
	assert.False(t, a.ValidateInput(model.TaskInput{}))
}
