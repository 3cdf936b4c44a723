package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/gateway"
	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// Rule-path thresholds on the raw keyword score.
const (
	hotScoreHigh   = 5
	hotScoreMedium = 2
)

var (
	urgencyPattern     = regexp.MustCompile(`(?i)\b(urgent|asap|immediately|right away|time.sensitive)\b`)
	destructionPattern = regexp.MustCompile(`(?i)\b(destroy|delete|shred|purge|wipe)\b|get rid of`)
	emailSubjectHint   = regexp.MustCompile(`(?i)\b(subject|from|to):`)
)

// HotDocClassifier rates litigation risk. The model path asks the gateway
// for a structured risk rating; the rule path counts risk keyword matches
// with bonuses for urgent email language and destruction-of-evidence
// language.
type HotDocClassifier struct {
	chat     gateway.ChatModel // nil disables the model path
	config   Config
	patterns []*regexp.Regexp
	logger   *zap.Logger
}

// NewHotDocClassifier compiles the configured risk keywords into
// case-insensitive patterns. A nil chat model makes every verdict take the
// rule-based path.
func NewHotDocClassifier(chat gateway.ChatModel, cfg Config, logger *zap.Logger) *HotDocClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := make([]*regexp.Regexp, 0, len(cfg.RiskKeywords))
	for _, kw := range cfg.RiskKeywords {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(kw)))
	}
	return &HotDocClassifier{chat: chat, config: cfg, patterns: patterns, logger: logger}
}

// hotDocWire is the JSON shape the model path must return.
type hotDocWire struct {
	IsHot              bool     `json:"is_hot"`
	RiskLevel          string   `json:"risk_level"`
	RiskScore          float64  `json:"risk_score"`
	Categories         []string `json:"categories"`
	Excerpts           []string `json:"excerpts"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Classify produces exactly one hot-document verdict for the document,
// degrading to the rule path when the model path fails.
func (c *HotDocClassifier) Classify(ctx context.Context, doc *model.Document) HotDocVerdict {
	if c.chat != nil {
		verdict, err := c.classifyWithModel(ctx, doc)
		if err == nil {
			return verdict
		}
		c.logger.Debug("hot-document model path failed, using rules",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}
	return c.classifyWithRules(doc)
}

func (c *HotDocClassifier) classifyWithModel(ctx context.Context, doc *model.Document) (HotDocVerdict, error) {
	prompt := fmt.Sprintf(hotDocPromptTemplate, doc.Filename, c.config.truncate(doc.Text))

	raw, err := c.chat.Complete(ctx, prompt)
	if err != nil {
		return HotDocVerdict{}, err
	}

	var wire hotDocWire
	if err := decodeVerdict(raw, &wire); err != nil {
		return HotDocVerdict{}, err
	}

	level := RiskLevel(wire.RiskLevel)
	switch level {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
	default:
		return HotDocVerdict{}, errUnparsable
	}

	return HotDocVerdict{
		DocumentID:         doc.ID,
		IsHot:              wire.IsHot,
		RiskScore:          clampConfidence(wire.RiskScore),
		RiskLevel:          level,
		Categories:         wire.Categories,
		Excerpts:           wire.Excerpts,
		RecommendedActions: wire.RecommendedActions,
		Basis:              []string{"model risk assessment"},
		Provenance:         ProvenanceModel,
	}, nil
}

func (c *HotDocClassifier) classifyWithRules(doc *model.Document) HotDocVerdict {
	haystack := doc.Filename + "\n" + doc.Text

	score := 0
	var (
		basis      []string
		categories []string
	)

	for i, pattern := range c.patterns {
		n := len(pattern.FindAllStringIndex(haystack, -1))
		if n == 0 {
			continue
		}
		score += n
		basis = append(basis, fmt.Sprintf("risk keyword %q matched %d time(s)", c.config.RiskKeywords[i], n))
	}
	if score > 0 {
		categories = append(categories, "risk-language")
	}

	if looksLikeEmail(doc) && urgencyPattern.MatchString(haystack) {
		score += 2
		basis = append(basis, "urgent language in email")
		categories = append(categories, "urgency")
	}

	if destructionPattern.MatchString(haystack) {
		score += 3
		basis = append(basis, "destruction-of-evidence language")
		categories = append(categories, "evidence-destruction")
	}

	verdict := HotDocVerdict{
		DocumentID: doc.ID,
		IsHot:      score > 0,
		RiskScore:  clampConfidence(float64(score) * 10),
		Categories: categories,
		Basis:      basis,
		Provenance: ProvenanceRule,
	}

	switch {
	case score >= hotScoreHigh:
		verdict.RiskLevel = RiskHigh
	case score >= hotScoreMedium:
		verdict.RiskLevel = RiskMedium
	default:
		verdict.RiskLevel = RiskLow
	}

	if verdict.IsHot {
		verdict.RecommendedActions = []string{
			"escalate to supervising attorney for manual review",
		}
	}
	return verdict
}

// looksLikeEmail applies a cheap heuristic: an address marker plus a header
// line, or an email document type.
func looksLikeEmail(doc *model.Document) bool {
	if strings.EqualFold(doc.DocType, "email") {
		return true
	}
	return strings.Contains(doc.Text, "@") && emailSubjectHint.MatchString(doc.Text)
}
