package extraction

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
)

var (
	// ErrEmptyInvoice is returned for an empty or blank invoice.
	ErrEmptyInvoice = errors.New("extraction: empty invoice")

	// ErrNoCategory is returned when no category could be determined.
	ErrNoCategory = errors.New("extraction: no fiscal category found")

	// ErrMalformedReply is returned when a model reply holds no usable JSON.
	ErrMalformedReply = errors.New("extraction: malformed model reply")

	// ErrNoClient is returned when a model-backed extractor is configured
	// without a model client.
	ErrNoClient = errors.New("extraction: model client required")
)

// Extractor derives the fiscal context of one invoice.
type Extractor interface {
	Extract(ctx context.Context, invoice []byte) (fiscal.Context, error)
}

// Rule is one weighted heuristic. A rule matching the invoice proposes its
// category; the highest weight among matching rules wins.
type Rule struct {
	Name     string  `json:"name" yaml:"name"`
	Category string  `json:"category" yaml:"category"`
	Regex    string  `json:"regex" yaml:"regex"`
	Weight   float64 `json:"weight" yaml:"weight"`
	// ShortTerms are concise search terms for the category.
	ShortTerms []string `json:"short_terms,omitempty" yaml:"short_terms,omitempty"`
	// Topic is the phrase long terms are built from, e.g.
	// "substituição tributária do ICMS".
	Topic string `json:"topic,omitempty" yaml:"topic,omitempty"`
}

// Extractor providers.
const (
	ProviderAuto      = "auto"
	ProviderHeuristic = "heuristic"
	ProviderLLM       = "llm"
)

// Config configures extraction.
type Config struct {
	// Provider is auto, heuristic or llm. Auto uses the model when a client
	// is available.
	Provider string `json:"provider" yaml:"provider"`
	// Fallback runs the heuristic extractor when the model fails.
	Fallback bool `json:"fallback" yaml:"fallback"`
	// MaxInvoiceBytes caps the invoice content sent to the model.
	MaxInvoiceBytes int `json:"max_invoice_bytes" yaml:"max_invoice_bytes"`
	// MinWeight discards heuristic matches below this weight.
	MinWeight float64 `json:"min_weight" yaml:"min_weight"`
	// Rules replaces the default heuristic rules when non-empty.
	Rules []Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// Segments replaces the default product segment keywords when non-empty.
	Segments map[string][]string `json:"segments,omitempty" yaml:"segments,omitempty"`
}

// DefaultMaxInvoiceBytes bounds the prompt size for large invoices.
const DefaultMaxInvoiceBytes = 64 * 1024

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() Config {
	return Config{
		Provider:        ProviderAuto,
		Fallback:        true,
		MaxInvoiceBytes: DefaultMaxInvoiceBytes,
		MinWeight:       0.3,
		Rules:           DefaultRules(),
	}
}

// positive matches a decimal amount greater than zero.
const positive = `\s*(?:0*[1-9]|0*[.,]\d*[1-9])`

// DefaultRules returns rules for NF-e XML and free invoice text. Tags that
// every NF-e carries (PIS and COFINS groups) weigh less than tags that only
// appear when the tax is actually charged.
func DefaultRules() []Rule {
	return []Rule{
		// Substituição tributária
		{Name: "icms_st_amount", Category: fiscal.CategoryICMSST, Regex: `(?i)<vICMSST>` + positive, Weight: 1.0,
			ShortTerms: []string{"ICMS-ST", "substituição tributária"}, Topic: "substituição tributária do ICMS"},
		{Name: "icms_st_cst", Category: fiscal.CategoryICMSST, Regex: `(?i)<ICMS(?:10|30|60|70|201|202|203|500)>`, Weight: 0.95,
			ShortTerms: []string{"ICMS-ST", "substituição tributária"}, Topic: "substituição tributária do ICMS"},
		{Name: "icms_st_text", Category: fiscal.CategoryICMSST, Regex: `(?i)\bICMS[- ]?ST\b|substitui[cç][aã]o tribut[aá]ria`, Weight: 0.9,
			ShortTerms: []string{"ICMS-ST", "substituição tributária"}, Topic: "substituição tributária do ICMS"},

		// Services
		{Name: "issqn_group", Category: fiscal.CategoryISS, Regex: `(?i)<ISSQN>|<vISS>` + positive, Weight: 0.9,
			ShortTerms: []string{"ISS", "ISSQN"}, Topic: "ISS sobre serviços"},
		{Name: "iss_text", Category: fiscal.CategoryISS, Regex: `(?i)\bISSQN?\b|imposto sobre servi[cç]os`, Weight: 0.7,
			ShortTerms: []string{"ISS", "ISSQN"}, Topic: "ISS sobre serviços"},

		// Industrialized products
		{Name: "ipi_amount", Category: fiscal.CategoryIPI, Regex: `(?i)<vIPI>` + positive, Weight: 0.8,
			ShortTerms: []string{"IPI"}, Topic: "IPI sobre produtos industrializados"},
		{Name: "ipi_text", Category: fiscal.CategoryIPI, Regex: `(?i)\bIPI\b|produtos? industrializados?`, Weight: 0.55,
			ShortTerms: []string{"IPI"}, Topic: "IPI sobre produtos industrializados"},

		// ICMS proper
		{Name: "icms_group", Category: fiscal.CategoryICMS, Regex: `(?i)<ICMS(?:00|02|15|20|40|41|45|50|51|53|61|90|SN\d{3})>`, Weight: 0.6,
			ShortTerms: []string{"ICMS"}, Topic: "ICMS"},
		{Name: "icms_text", Category: fiscal.CategoryICMS, Regex: `(?i)\bICMS\b`, Weight: 0.5,
			ShortTerms: []string{"ICMS"}, Topic: "ICMS"},

		// Federal contributions
		{Name: "pis_group", Category: fiscal.CategoryPIS, Regex: `(?i)<PIS(?:Aliq|Qtde|Outr)>`, Weight: 0.4,
			ShortTerms: []string{"PIS"}, Topic: "contribuição para o PIS/Pasep"},
		{Name: "cofins_group", Category: fiscal.CategoryCOFINS, Regex: `(?i)<COFINS(?:Aliq|Qtde|Outr)>`, Weight: 0.35,
			ShortTerms: []string{"COFINS"}, Topic: "COFINS"},
		{Name: "pis_text", Category: fiscal.CategoryPIS, Regex: `(?i)\bPIS(?:/PASEP)?\b`, Weight: 0.35,
			ShortTerms: []string{"PIS"}, Topic: "contribuição para o PIS/Pasep"},
		{Name: "cofins_text", Category: fiscal.CategoryCOFINS, Regex: `(?i)\bCOFINS\b`, Weight: 0.3,
			ShortTerms: []string{"COFINS"}, Topic: "COFINS"},
	}
}
