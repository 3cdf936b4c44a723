package review

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/agent"
	"github.com/fyrsmithlabs/reviewd/internal/classify"
	"github.com/fyrsmithlabs/reviewd/internal/gateway"
	"github.com/fyrsmithlabs/reviewd/internal/model"
	"github.com/fyrsmithlabs/reviewd/internal/store"
)

// Progress checkpoints for the pipeline phases.
const (
	progressLoaded         = 10
	progressPrivilege      = 30
	progressResponsiveness = 50
	progressHotDocs        = 70
	progressAssembled      = 85
	progressReport         = 95
	progressDone           = 100
)

// perDocumentEstimate feeds the duration heuristic.
const perDocumentEstimate = 2 * time.Second

// PipelineAgent runs the discovery review pipeline over a matter's corpus.
// It implements agent.Agent and is registered under model.AgentDiscovery.
type PipelineAgent struct {
	docs   store.DocumentStore
	chat   gateway.ChatModel // nil forces the rule path in every classifier
	config classify.Config
	logger *zap.Logger
}

// NewPipelineAgent creates the discovery review agent. A nil chat model
// disables the classifiers' model paths.
func NewPipelineAgent(docs store.DocumentStore, chat gateway.ChatModel, cfg classify.Config, logger *zap.Logger) *PipelineAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineAgent{docs: docs, chat: chat, config: cfg, logger: logger}
}

// ID implements agent.Agent.
func (a *PipelineAgent) ID() string { return "discovery-review" }

// Type implements agent.Agent.
func (a *PipelineAgent) Type() model.AgentType { return model.AgentDiscovery }

// Capabilities implements agent.Agent.
func (a *PipelineAgent) Capabilities() []agent.Capability {
	return []agent.Capability{
		{
			Name:              "privilege-review",
			Accepts:           []string{"documents"},
			Produces:          []string{"privilege-log"},
			EstimatedDuration: perDocumentEstimate,
		},
		{
			Name:              "responsiveness-review",
			Accepts:           []string{"documents", "discovery-requests"},
			Produces:          []string{"production-set"},
			EstimatedDuration: perDocumentEstimate,
		},
		{
			Name:              "hot-document-review",
			Accepts:           []string{"documents"},
			Produces:          []string{"hot-document-list"},
			EstimatedDuration: perDocumentEstimate,
		},
	}
}

// RequiredContext implements agent.Agent.
func (a *PipelineAgent) RequiredContext() []string {
	return []string{"matter", "documents"}
}

// ValidateInput implements agent.Agent. A review needs a matter to scope the
// corpus; everything else has a workable default.
func (a *PipelineAgent) ValidateInput(input model.TaskInput) bool {
	return input.MatterID != ""
}

// EstimateDuration implements agent.Agent.
func (a *PipelineAgent) EstimateDuration(input model.TaskInput) time.Duration {
	n := len(input.DocumentIDs)
	if n == 0 {
		n = 25
	}
	return time.Duration(n) * perDocumentEstimate
}

// Execute implements agent.Agent. Cancellation is checked between documents;
// a cancelled run returns a failed Result carrying the context error so the
// task layer can record the cancellation.
func (a *PipelineAgent) Execute(ctx context.Context, input model.TaskInput, progress agent.ProgressFunc) agent.Result {
	start := time.Now()
	if progress == nil {
		progress = func(int, string) {}
	}

	docs, err := a.loadDocuments(ctx, input)
	if err != nil {
		return agent.Failure(fmt.Sprintf("loading documents: %v", err), time.Since(start))
	}
	progress(progressLoaded, fmt.Sprintf("loaded %d documents", len(docs)))

	a.logger.Info("starting discovery review",
		zap.String("matter_id", input.MatterID),
		zap.Int("documents", len(docs)),
		zap.Int("discovery_requests", len(input.DiscoveryRequests)),
		zap.Bool("model_path", a.chat != nil),
	)

	matter := classify.MatterContext{MatterName: input.MatterName, ClientName: input.ClientName}
	privilege := classify.NewPrivilegeClassifier(a.chat, a.config, matter, a.logger)
	responsiveness := classify.NewResponsivenessClassifier(input.DiscoveryRequests)
	hotdoc := classify.NewHotDocClassifier(a.chat, a.config, a.logger)

	results := make([]DocumentResult, len(docs))
	for i, doc := range docs {
		results[i] = DocumentResult{DocumentID: doc.ID, Filename: doc.Filename, Date: doc.CreatedAt}
	}

	// Privilege pass.
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return a.cancelled(err, start)
		}
		results[i].Privilege = privilege.Classify(ctx, doc)
		progress(interpolate(progressLoaded, progressPrivilege, i+1, len(docs)), "reviewing privilege")
	}
	progress(progressPrivilege, "privilege review complete")

	// Responsiveness pass. Deterministic and cheap, but still cancellable
	// per document for large corpora.
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return a.cancelled(err, start)
		}
		results[i].Responsiveness = responsiveness.Classify(doc)
		progress(interpolate(progressPrivilege, progressResponsiveness, i+1, len(docs)), "matching discovery requests")
	}
	progress(progressResponsiveness, "responsiveness review complete")

	// Hot-document pass.
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return a.cancelled(err, start)
		}
		results[i].HotDoc = hotdoc.Classify(ctx, doc)
		progress(interpolate(progressResponsiveness, progressHotDocs, i+1, len(docs)), "assessing litigation risk")
	}
	progress(progressHotDocs, "hot-document review complete")

	output := a.assemble(input, results)
	progress(progressAssembled, "production set assembled")

	output.Stats = a.tally(results, output)
	output.Recommendations = recommendations(output)
	output.Report = renderReport(output)
	progress(progressReport, "report generated")

	payload, err := json.Marshal(output)
	if err != nil {
		return agent.Failure(fmt.Sprintf("encoding review output: %v", err), time.Since(start))
	}
	progress(progressDone, "review complete")

	a.logger.Info("discovery review finished",
		zap.String("matter_id", input.MatterID),
		zap.Int("production_set", len(output.ProductionSet)),
		zap.Int("privileged", output.Stats.Privileged),
		zap.Int("hot", output.Stats.Hot),
		zap.Duration("elapsed", time.Since(start)),
	)

	return agent.Result{
		Success: true,
		Output:  payload,
		Metadata: map[string]any{
			"documents":      len(docs),
			"production_set": len(output.ProductionSet),
			"privileged":     output.Stats.Privileged,
			"hot":            output.Stats.Hot,
		},
		Elapsed: time.Since(start),
	}
}

func (a *PipelineAgent) loadDocuments(ctx context.Context, input model.TaskInput) ([]*model.Document, error) {
	if len(input.DocumentIDs) > 0 {
		return a.docs.GetDocumentsByIDs(ctx, input.DocumentIDs)
	}
	return a.docs.ListDocumentsByMatter(ctx, input.MatterID)
}

func (a *PipelineAgent) cancelled(err error, start time.Time) agent.Result {
	return agent.Failure(fmt.Sprintf("review interrupted: %v", err), time.Since(start))
}

// assemble builds the production artifacts from the per-document verdicts.
// The production set is the responsive set minus the privileged set, always.
func (a *PipelineAgent) assemble(input model.TaskInput, results []DocumentResult) Output {
	out := Output{
		MatterID:      input.MatterID,
		Query:         input.Query,
		Documents:     results,
		ProductionSet: []string{},
		PrivilegeLog:  []PrivilegeLogEntry{},
		HotDocuments:  []HotDocEntry{},
	}

	for _, r := range results {
		if r.Privilege.IsPrivileged {
			out.PrivilegeLog = append(out.PrivilegeLog, PrivilegeLogEntry{
				LogNumber:     len(out.PrivilegeLog) + 1,
				DocumentID:    r.DocumentID,
				Filename:      r.Filename,
				DocumentDate:  r.Date,
				PrivilegeType: r.Privilege.PrivilegeType,
				Basis:         r.Privilege.Basis,
				Confidence:    r.Privilege.Confidence,
				Provenance:    r.Privilege.Provenance,
			})
			if r.Privilege.PotentialWaiver {
				out.WaiverCandidates = append(out.WaiverCandidates, r.DocumentID)
			}
		} else if r.Responsiveness.IsResponsive {
			out.ProductionSet = append(out.ProductionSet, r.DocumentID)
		}

		if r.HotDoc.IsHot {
			out.HotDocuments = append(out.HotDocuments, HotDocEntry{
				DocumentID: r.DocumentID,
				Filename:   r.Filename,
				RiskScore:  r.HotDoc.RiskScore,
				RiskLevel:  r.HotDoc.RiskLevel,
				Categories: r.HotDoc.Categories,
			})
		}
	}

	sort.SliceStable(out.HotDocuments, func(i, j int) bool {
		return out.HotDocuments[i].RiskScore > out.HotDocuments[j].RiskScore
	})
	return out
}

func (a *PipelineAgent) tally(results []DocumentResult, out Output) Stats {
	stats := Stats{
		TotalDocuments: len(results),
		ProductionSet:  len(out.ProductionSet),
		Hot:            len(out.HotDocuments),
		WaiverFlags:    len(out.WaiverCandidates),
	}
	for _, r := range results {
		if r.Privilege.IsPrivileged {
			stats.Privileged++
		}
		if r.Responsiveness.IsResponsive {
			stats.Responsive++
		}
		for _, p := range []classify.Provenance{r.Privilege.Provenance, r.HotDoc.Provenance} {
			switch p {
			case classify.ProvenanceModel:
				stats.ModelVerdicts++
			case classify.ProvenanceRule:
				stats.RuleVerdicts++
			}
		}
	}
	return stats
}

// recommendations derives the report's next-step guidance from the findings.
func recommendations(out Output) []string {
	recs := []string{
		"have a supervising attorney confirm all privilege calls before production",
	}
	if len(out.HotDocuments) > 0 {
		recs = append(recs, fmt.Sprintf("escalate %d hot document(s) for immediate attorney review", len(out.HotDocuments)))
	}
	if len(out.WaiverCandidates) > 0 {
		recs = append(recs, fmt.Sprintf("assess waiver exposure on %d privileged document(s) with disclosure indicators", len(out.WaiverCandidates)))
	}
	if out.Stats.RuleVerdicts > 0 && out.Stats.ModelVerdicts == 0 {
		recs = append(recs, "all verdicts came from the rule-based path; consider re-running with the model gateway available")
	}
	return recs
}

// renderReport formats the review summary for attorney consumption. Withheld
// documents appear by filename and privilege type only; document text never
// enters the report.
func renderReport(out Output) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DISCOVERY REVIEW REPORT\n")
	fmt.Fprintf(&b, "Matter: %s\n", out.MatterID)
	fmt.Fprintf(&b, "Query:  %s\n\n", out.Query)

	fmt.Fprintf(&b, "Documents reviewed:    %d\n", out.Stats.TotalDocuments)
	fmt.Fprintf(&b, "Responsive:            %d\n", out.Stats.Responsive)
	fmt.Fprintf(&b, "Privileged (withheld): %d\n", out.Stats.Privileged)
	fmt.Fprintf(&b, "Production set:        %d\n", out.Stats.ProductionSet)
	fmt.Fprintf(&b, "Hot documents:         %d\n", out.Stats.Hot)
	fmt.Fprintf(&b, "Waiver flags:          %d\n", out.Stats.WaiverFlags)
	fmt.Fprintf(&b, "Verdict provenance:    %d model, %d rule-based\n",
		out.Stats.ModelVerdicts, out.Stats.RuleVerdicts)

	if len(out.PrivilegeLog) > 0 {
		fmt.Fprintf(&b, "\nPRIVILEGE LOG\n")
		for _, e := range out.PrivilegeLog {
			fmt.Fprintf(&b, "%3d. %s (%s) dated %s, confidence %.0f [%s]\n",
				e.LogNumber, e.Filename, e.PrivilegeType,
				e.DocumentDate.Format("2006-01-02"), e.Confidence, e.Provenance)
		}
	}

	if len(out.HotDocuments) > 0 {
		fmt.Fprintf(&b, "\nHOT DOCUMENTS\n")
		for _, h := range out.HotDocuments {
			fmt.Fprintf(&b, "  %s [%s] risk %.1f", h.Filename, h.RiskLevel, h.RiskScore)
			if len(h.Categories) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(h.Categories, ", "))
			}
			fmt.Fprintf(&b, "\n")
		}
	}

	fmt.Fprintf(&b, "\nRECOMMENDATIONS\n")
	for _, r := range out.Recommendations {
		fmt.Fprintf(&b, "  - %s\n", r)
	}
	return b.String()
}

// interpolate maps item i of n onto the [from, to] progress range.
func interpolate(from, to, i, n int) int {
	if n <= 0 {
		return to
	}
	return from + (to-from)*i/n
}
