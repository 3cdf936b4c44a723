package classify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/gateway"
	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// privilegeScoreCeiling is the score at which rule-based confidence saturates.
const privilegeScoreCeiling = 5

// privilegeThreshold is the minimum rule score for a privileged verdict.
const privilegeThreshold = 2

// PrivilegeClassifier judges whether a document is protected by legal
// privilege. The model path asks the gateway for a structured verdict; the
// rule path scores privilege keywords and attorney indicators.
type PrivilegeClassifier struct {
	chat   gateway.ChatModel // nil disables the model path
	config Config
	matter MatterContext
	logger *zap.Logger
}

// NewPrivilegeClassifier creates a privilege classifier. A nil chat model
// makes every verdict take the rule-based path.
func NewPrivilegeClassifier(chat gateway.ChatModel, cfg Config, matter MatterContext, logger *zap.Logger) *PrivilegeClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrivilegeClassifier{chat: chat, config: cfg, matter: matter, logger: logger}
}

// privilegeWire is the JSON shape the model path must return.
type privilegeWire struct {
	IsPrivileged    bool     `json:"is_privileged"`
	PrivilegeType   string   `json:"privilege_type"`
	Confidence      float64  `json:"confidence"`
	Basis           []string `json:"basis"`
	PotentialWaiver bool     `json:"potential_waiver"`
	WaiverRisk      string   `json:"waiver_risk"`
}

// Classify produces exactly one privilege verdict for the document. It never
// fails: a broken model path degrades to the rule path for this document and
// the verdict's provenance records which path ran.
func (c *PrivilegeClassifier) Classify(ctx context.Context, doc *model.Document) PrivilegeVerdict {
	if c.chat != nil {
		verdict, err := c.classifyWithModel(ctx, doc)
		if err == nil {
			return verdict
		}
		c.logger.Debug("privilege model path failed, using rules",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}
	return c.classifyWithRules(doc)
}

func (c *PrivilegeClassifier) classifyWithModel(ctx context.Context, doc *model.Document) (PrivilegeVerdict, error) {
	prompt := fmt.Sprintf(privilegePromptTemplate,
		c.matter.MatterName, c.matter.ClientName,
		doc.Filename, c.config.truncate(doc.Text))

	raw, err := c.chat.Complete(ctx, prompt)
	if err != nil {
		return PrivilegeVerdict{}, err
	}

	var wire privilegeWire
	if err := decodeVerdict(raw, &wire); err != nil {
		return PrivilegeVerdict{}, err
	}

	ptype := PrivilegeType(wire.PrivilegeType)
	switch ptype {
	case PrivilegeAttorneyClient, PrivilegeWorkProduct, PrivilegeNone:
	default:
		return PrivilegeVerdict{}, errUnparsable
	}

	verdict := PrivilegeVerdict{
		DocumentID:      doc.ID,
		IsPrivileged:    wire.IsPrivileged,
		PrivilegeType:   ptype,
		Confidence:      clampConfidence(wire.Confidence),
		Basis:           wire.Basis,
		PotentialWaiver: wire.PotentialWaiver,
		Provenance:      ProvenanceModel,
	}
	if wire.PotentialWaiver {
		switch WaiverRisk(wire.WaiverRisk) {
		case WaiverRiskLow, WaiverRiskMedium, WaiverRiskHigh:
			verdict.WaiverRisk = WaiverRisk(wire.WaiverRisk)
		default:
			verdict.WaiverRisk = WaiverRiskMedium
		}
	}
	return verdict, nil
}

func (c *PrivilegeClassifier) classifyWithRules(doc *model.Document) PrivilegeVerdict {
	haystack := strings.ToLower(doc.Filename + "\n" + doc.Text)

	score := 0
	var basis []string

	for _, kw := range c.config.PrivilegeKeywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			score++
			basis = append(basis, fmt.Sprintf("matched keyword %q", kw))
		}
	}

	attorney := containsAny(haystack, c.config.AttorneyIndicators)
	if attorney != "" {
		score += 2
		basis = append(basis, fmt.Sprintf("attorney participant detected (%q)", attorney))
	}

	workProduct := containsAny(haystack, c.config.WorkProductIndicators)
	if attorney != "" && workProduct != "" {
		score++
		basis = append(basis, fmt.Sprintf("work-product indicator %q alongside attorney participant", workProduct))
	}

	confidence := float64(score) / privilegeScoreCeiling
	if confidence > 1 {
		confidence = 1
	}

	verdict := PrivilegeVerdict{
		DocumentID:   doc.ID,
		IsPrivileged: score >= privilegeThreshold,
		Confidence:   clampConfidence(confidence * 100),
		Basis:        basis,
		Provenance:   ProvenanceRule,
	}

	switch {
	case !verdict.IsPrivileged:
		verdict.PrivilegeType = PrivilegeNone
	case workProduct != "" && attorney == "":
		verdict.PrivilegeType = PrivilegeWorkProduct
	default:
		verdict.PrivilegeType = PrivilegeAttorneyClient
	}

	if disclosure := containsAny(haystack, c.config.DisclosureIndicators); disclosure != "" {
		verdict.PotentialWaiver = true
		verdict.WaiverRisk = WaiverRiskMedium
		verdict.Basis = append(verdict.Basis, fmt.Sprintf("external disclosure indicator %q", disclosure))
	}

	return verdict
}

// containsAny returns the first needle found in the haystack, or "".
func containsAny(haystack string, needles []string) string {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return n
		}
	}
	return ""
}
