package insight

import (
	"context"
	"fmt"
	"strings"
)

// excerptRunes bounds the key excerpt quoted by ExtractiveGenerator.
const excerptRunes = 600

// ExtractiveGenerator writes a report from the passages alone, without a
// model. It backs offline runs and deployments without an API key.
type ExtractiveGenerator struct{}

// Generate implements Generator.
func (ExtractiveGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Passages) == 0 {
		return "", ErrNoPassages
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Análise Fiscal: %s\n\n", req.Context.Category)

	b.WriteString("## Resumo da NF-e\n\n")
	fmt.Fprintf(&b, "- **Categoria fiscal:** %s\n", req.Context.Category)
	if len(req.Context.ShortTerms) > 0 {
		fmt.Fprintf(&b, "- **Termos de busca:** %s\n", strings.Join(req.Context.ShortTerms, ", "))
	}
	if len(req.Context.LongTerms) > 0 {
		fmt.Fprintf(&b, "- **Consultas:** %s\n", strings.Join(req.Context.LongTerms, "; "))
	}

	b.WriteString("\n## Relevância Legal\n\n")
	for _, p := range req.Passages {
		if p.Segment == nil {
			continue
		}
		fmt.Fprintf(&b, "%d. %s (distância %.4f)\n", p.Rank, p.Segment.Citation, p.Distance)
	}

	if top := req.Passages[0].Segment; top != nil {
		b.WriteString("\n## Trecho de Lei Chave\n\n")
		for _, line := range strings.Split(excerpt(top.Text, excerptRunes), "\n") {
			b.WriteString("> " + line + "\n")
		}
		fmt.Fprintf(&b, "\nFonte: %s\n", top.Citation)
	}

	b.WriteString("\n## Oportunidade de Economia/Benefício\n\n")
	b.WriteString("Estimativa de economia indisponível: relatório gerado sem modelo generativo. Consulte os trechos acima.\n")
	return b.String(), nil
}

func excerpt(text string, n int) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

var _ Generator = ExtractiveGenerator{}
