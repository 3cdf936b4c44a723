// Package review implements the discovery review pipeline: load a matter's
// corpus, run the privilege, responsiveness, and hot-document classifiers
// over every document, and assemble the production artifacts.
package review

import (
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/classify"
)

// DocumentResult bundles the three verdicts for one document.
type DocumentResult struct {
	DocumentID     string                         `json:"document_id"`
	Filename       string                         `json:"filename"`
	Date           time.Time                      `json:"date"`
	Privilege      classify.PrivilegeVerdict      `json:"privilege"`
	Responsiveness classify.ResponsivenessVerdict `json:"responsiveness"`
	HotDoc         classify.HotDocVerdict         `json:"hot_doc"`
}

// PrivilegeLogEntry is one row of the privilege log produced for opposing
// counsel. Withheld documents are described, never quoted.
type PrivilegeLogEntry struct {
	// LogNumber is the 1-based position within this run's privilege log.
	LogNumber     int                    `json:"log_number"`
	DocumentID    string                 `json:"document_id"`
	Filename      string                 `json:"filename"`
	DocumentDate  time.Time              `json:"document_date"`
	PrivilegeType classify.PrivilegeType `json:"privilege_type"`
	Basis         []string               `json:"basis"`
	Confidence    float64                `json:"confidence"`
	Provenance    classify.Provenance    `json:"provenance"`
}

// HotDocEntry is one row of the hot-document list, kept sorted by risk.
type HotDocEntry struct {
	DocumentID string             `json:"document_id"`
	Filename   string             `json:"filename"`
	RiskScore  float64            `json:"risk_score"`
	RiskLevel  classify.RiskLevel `json:"risk_level"`
	Categories []string           `json:"categories,omitempty"`
}

// Stats aggregates counts over one review run.
type Stats struct {
	TotalDocuments int `json:"total_documents"`
	Privileged     int `json:"privileged"`
	Responsive     int `json:"responsive"`
	Hot            int `json:"hot"`
	ProductionSet  int `json:"production_set"`
	WaiverFlags    int `json:"waiver_flags"`

	// ModelVerdicts and RuleVerdicts count privilege and hot-document
	// verdicts by provenance. Responsiveness verdicts are always rule-based
	// and are not counted here.
	ModelVerdicts int `json:"model_verdicts"`
	RuleVerdicts  int `json:"rule_verdicts"`
}

// Output is the full artifact of a review run, serialized into the task's
// output column.
type Output struct {
	MatterID string `json:"matter_id"`
	Query    string `json:"query"`

	Stats     Stats            `json:"stats"`
	Documents []DocumentResult `json:"documents"`

	// ProductionSet is the responsive set minus the privileged set.
	ProductionSet []string `json:"production_set"`

	// PrivilegeLog has one entry per withheld (privileged) document.
	PrivilegeLog []PrivilegeLogEntry `json:"privilege_log"`

	// HotDocuments is sorted by risk score, highest first.
	HotDocuments []HotDocEntry `json:"hot_documents"`

	// WaiverCandidates lists privileged documents with a potential waiver.
	WaiverCandidates []string `json:"waiver_candidates,omitempty"`

	Recommendations []string `json:"recommendations"`

	// Report is the human-readable summary: stats, privilege log, hot list,
	// and recommendations rendered as text for attorney review.
	Report string `json:"report"`
}
