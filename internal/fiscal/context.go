// Package fiscal defines the per-invoice fiscal descriptor that drives
// corpus filtering and query construction.
package fiscal

import (
	"strings"
)

// Known fiscal categories. Categories are plain labels; the corpus may carry
// any tag, these are the ones the extractors know how to produce.
const (
	CategoryICMS   = "ICMS"
	CategoryICMSST = "ICMS-ST"
	CategoryISS    = "ISS"
	CategoryIPI    = "IPI"
	CategoryPIS    = "PIS"
	CategoryCOFINS = "COFINS"

	// CategoryGeneral tags segments that apply regardless of category.
	CategoryGeneral = "general"
)

// Context describes the fiscal classification of one invoice and the
// search phrases derived from it. It lives for a single analysis run.
type Context struct {
	Category   string   `json:"category"`
	ShortTerms []string `json:"short_terms,omitempty"`
	LongTerms  []string `json:"long_terms,omitempty"`
}

// Normalize trims the category and drops blank or repeated terms while
// keeping the original order.
func (c Context) Normalize() Context {
	return Context{
		Category:   strings.TrimSpace(c.Category),
		ShortTerms: cleanTerms(c.ShortTerms),
		LongTerms:  cleanTerms(c.LongTerms),
	}
}

// HasTerms reports whether at least one non-blank term is present.
func (c Context) HasTerms() bool {
	return len(cleanTerms(c.ShortTerms)) > 0 || len(cleanTerms(c.LongTerms)) > 0
}

// NormalizeCategory maps free-form category labels (as produced by a model
// or a user) onto the canonical spelling of a known category. Unknown labels
// are returned trimmed and otherwise untouched.
func NormalizeCategory(label string) string {
	trimmed := strings.TrimSpace(label)
	key := strings.ToUpper(strings.NewReplacer(" ", "", "_", "-", "/", "-").Replace(trimmed))
	switch key {
	case "ICMS":
		return CategoryICMS
	case "ICMS-ST", "ICMSST":
		return CategoryICMSST
	case "ISS", "ISSQN":
		return CategoryISS
	case "IPI":
		return CategoryIPI
	case "PIS", "PIS-PASEP", "PISPASEP":
		return CategoryPIS
	case "COFINS":
		return CategoryCOFINS
	case "GENERAL", "GERAL":
		return CategoryGeneral
	}
	return trimmed
}

func cleanTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
