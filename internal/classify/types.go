// Package classify implements the document classifier core: privilege,
// responsiveness, and hot-document risk.
//
// Each classifier produces exactly one verdict per document per run. The
// privilege and hot-document classifiers have a model path and a rule-based
// fallback; the two paths are mutually exclusive per document and never
// merged. If the model call fails or returns unparsable output, the whole
// verdict comes from the rule path and is tagged accordingly. The
// responsiveness classifier is deterministic by design: responsiveness is
// keyword-anchored by construction, not judgment-anchored.
package classify

// Provenance tags which path produced a verdict.
type Provenance string

const (
	// ProvenanceModel marks verdicts produced by the model gateway.
	ProvenanceModel Provenance = "model"

	// ProvenanceRule marks verdicts produced by the deterministic rules.
	ProvenanceRule Provenance = "rule-based"
)

// PrivilegeType categorizes a privilege claim.
type PrivilegeType string

const (
	PrivilegeAttorneyClient PrivilegeType = "attorney-client"
	PrivilegeWorkProduct    PrivilegeType = "work-product"
	PrivilegeNone           PrivilegeType = "none"
)

// WaiverRisk tiers a potential privilege waiver.
type WaiverRisk string

const (
	WaiverRiskLow    WaiverRisk = "low"
	WaiverRiskMedium WaiverRisk = "medium"
	WaiverRiskHigh   WaiverRisk = "high"
)

// RiskLevel tiers litigation risk for hot documents.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// PrivilegeVerdict is the privilege classifier's judgment on one document.
type PrivilegeVerdict struct {
	DocumentID      string        `json:"document_id"`
	IsPrivileged    bool          `json:"is_privileged"`
	PrivilegeType   PrivilegeType `json:"privilege_type"`
	Confidence      float64       `json:"confidence"`
	Basis           []string      `json:"basis"`
	PotentialWaiver bool          `json:"potential_waiver"`
	WaiverRisk      WaiverRisk    `json:"waiver_risk,omitempty"`
	Provenance      Provenance    `json:"provenance"`
}

// RequestMatch records how one discovery request matched a document.
type RequestMatch struct {
	RequestID string   `json:"request_id"`
	Terms     []string `json:"terms"`
	Score     int      `json:"score"`
}

// ResponsivenessVerdict is the responsiveness classifier's judgment on one
// document.
type ResponsivenessVerdict struct {
	DocumentID      string         `json:"document_id"`
	IsResponsive    bool           `json:"is_responsive"`
	MatchedRequests []RequestMatch `json:"matched_requests,omitempty"`
	TotalMatches    int            `json:"total_matches"`
	Confidence      float64        `json:"confidence"`
	Basis           []string       `json:"basis"`
	Provenance      Provenance     `json:"provenance"`
}

// HotDocVerdict is the hot-document classifier's judgment on one document.
type HotDocVerdict struct {
	DocumentID         string     `json:"document_id"`
	IsHot              bool       `json:"is_hot"`
	RiskScore          float64    `json:"risk_score"`
	RiskLevel          RiskLevel  `json:"risk_level"`
	Categories         []string   `json:"categories,omitempty"`
	Excerpts           []string   `json:"excerpts,omitempty"`
	RecommendedActions []string   `json:"recommended_actions,omitempty"`
	Basis              []string   `json:"basis"`
	Provenance         Provenance `json:"provenance"`
}

// MatterContext carries matter and client names into the model path so the
// model can judge privilege relative to the engagement.
type MatterContext struct {
	MatterName string
	ClientName string
}

// clampConfidence bounds a confidence or score to [0, 100].
func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
