package extraction

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"go.uber.org/zap"
)

var (
	productRe   = regexp.MustCompile(`(?is)<xProd>\s*(.*?)\s*</xProd>`)
	operationRe = regexp.MustCompile(`(?is)<natOp>\s*(.*?)\s*</natOp>`)
)

// maxProducts bounds the product descriptions considered per invoice.
const maxProducts = 20

// HeuristicExtractor implements Extractor with weighted regex rules.
type HeuristicExtractor struct {
	rules     []*compiledRule
	minWeight float64
	segments  *SegmentMatcher
	logger    *zap.Logger
}

type compiledRule struct {
	Rule
	regex *regexp.Regexp
}

// NewHeuristicExtractor compiles the configured rules. Invalid rules are
// skipped with a warning; a configuration without any valid rule fails.
func NewHeuristicExtractor(cfg Config, logger *zap.Logger) (*HeuristicExtractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := cfg.Rules
	if len(rules) == 0 {
		rules = DefaultRules()
	}

	compiled := make([]*compiledRule, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Category) == "" {
			logger.Warn("skipping extraction rule without category", zap.String("rule", r.Name))
			continue
		}
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			logger.Warn("skipping invalid extraction rule", zap.String("rule", r.Name), zap.Error(err))
			continue
		}
		compiled = append(compiled, &compiledRule{Rule: r, regex: re})
	}
	if len(compiled) == 0 {
		return nil, fmt.Errorf("extraction: no valid heuristic rules")
	}

	return &HeuristicExtractor{
		rules:     compiled,
		minWeight: cfg.MinWeight,
		segments:  NewSegmentMatcher(cfg.Segments),
		logger:    logger,
	}, nil
}

// Extract classifies the invoice by its best matching rule. An invoice no
// rule matches still yields a general context when product descriptions
// are present; otherwise ErrNoCategory is returned.
func (h *HeuristicExtractor) Extract(ctx context.Context, invoice []byte) (fiscal.Context, error) {
	if err := ctx.Err(); err != nil {
		return fiscal.Context{}, err
	}
	text := string(invoice)
	if strings.TrimSpace(text) == "" {
		return fiscal.Context{}, ErrEmptyInvoice
	}

	products := productDescriptions(text)
	segments := h.segments.Match(products)
	product := shortProduct(products)

	match := h.findBestMatch(text)
	if match == nil {
		if product == "" {
			return fiscal.Context{}, ErrNoCategory
		}
		fc := fiscal.Context{
			Category:   fiscal.CategoryGeneral,
			ShortTerms: []string{product},
			LongTerms:  longTerms("tributação", product, segments, operation(text)),
		}
		return fc.Normalize(), nil
	}

	short := append([]string{}, match.ShortTerms...)
	if len(short) == 0 {
		short = []string{match.Category}
	}
	if product != "" {
		short = append(short, product)
	}
	topic := match.Topic
	if topic == "" {
		topic = match.Category
	}

	fc := fiscal.Context{
		Category:   fiscal.NormalizeCategory(match.Category),
		ShortTerms: short,
		LongTerms:  longTerms(topic, product, segments, operation(text)),
	}.Normalize()

	h.logger.Debug("heuristic extraction",
		zap.String("rule", match.Name),
		zap.Float64("weight", match.Weight),
		zap.String("category", fc.Category),
		zap.Int("products", len(products)),
		zap.Strings("segments", segments),
	)
	return fc, nil
}

// findBestMatch returns the matching rule with the highest weight; the
// earlier rule wins a tie.
func (h *HeuristicExtractor) findBestMatch(text string) *compiledRule {
	var best *compiledRule
	for _, r := range h.rules {
		if r.Weight < h.minWeight {
			continue
		}
		if best != nil && r.Weight <= best.Weight {
			continue
		}
		if r.regex.MatchString(text) {
			best = r
		}
	}
	return best
}

// longTerms builds descriptive phrases in the style of
// "Legislação sobre ICMS-ST de produtos alimentícios".
func longTerms(topic, product string, segments []string, op string) []string {
	var out []string
	for i, seg := range segments {
		if i == 2 {
			break
		}
		out = append(out, fmt.Sprintf("Legislação sobre %s de %s", topic, seg))
	}
	if product != "" {
		out = append(out, fmt.Sprintf("Legislação sobre %s na operação com %s", topic, product))
	}
	if op != "" {
		out = append(out, fmt.Sprintf("%s %s", topic, strings.ToLower(op)))
	}
	if len(out) == 0 {
		out = append(out, "Legislação sobre "+topic)
	}
	return out
}

func productDescriptions(text string) []string {
	matches := productRe.FindAllStringSubmatch(text, maxProducts)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if d := strings.Join(strings.Fields(html.UnescapeString(m[1])), " "); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// shortProduct returns up to three words of the first product description.
func shortProduct(products []string) string {
	if len(products) == 0 {
		return ""
	}
	words := strings.Fields(products[0])
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.ToLower(strings.Join(words, " "))
}

func operation(text string) string {
	m := operationRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(m[1])), " ")
}

var _ Extractor = (*HeuristicExtractor)(nil)
