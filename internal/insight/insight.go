// Package insight writes the markdown savings report for an analyzed
// invoice from the retrieved legislation passages.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
)

// ErrNoPassages is returned when a report is requested without passages.
var ErrNoPassages = errors.New("insight: no passages to analyze")

// Request is the input of one report.
type Request struct {
	Invoice  []byte
	Context  fiscal.Context
	Passages []retrieval.Passage
}

// Generator writes a markdown report.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// FormatPassages renders passages as ranked document blocks.
func FormatPassages(passages []retrieval.Passage) string {
	var b strings.Builder
	for _, p := range passages {
		citation := "N/A"
		text := ""
		if p.Segment != nil {
			if p.Segment.Citation != "" {
				citation = p.Segment.Citation
			}
			text = p.Segment.Text
		}
		fmt.Fprintf(&b, "--- DOCUMENTO RANK %d ---\n", p.Rank)
		fmt.Fprintf(&b, "URL/Fonte: %s\n", citation)
		fmt.Fprintf(&b, "Distância (Similaridade): %.4f\n", p.Distance)
		fmt.Fprintf(&b, "Conteúdo:\n%s\n\n", text)
	}
	return b.String()
}

// FailedReportTitle starts every report produced by FailedReport.
const FailedReportTitle = "# Erro de Análise"

// FailedReport is the report returned when generation fails.
func FailedReport() string {
	return FailedReportTitle + "\nAnálise final não pôde ser concluída."
}

// IsFailedReport reports whether markdown came from FailedReport.
func IsFailedReport(markdown string) bool {
	return strings.HasPrefix(markdown, FailedReportTitle)
}

// DegradedReportTitle starts every report produced by DegradedReport.
const DegradedReportTitle = "# Análise Fiscal sem Base Legal"

// DegradedReport is the report for an invoice no statutory basis could be
// matched to. reason is shown to the reader.
func DegradedReport(fc fiscal.Context, reason string) string {
	var b strings.Builder
	b.WriteString(DegradedReportTitle + "\n\n")
	b.WriteString("Não foi possível associar a nota fiscal a trechos da legislação.\n\n")
	if fc.Category != "" {
		fmt.Fprintf(&b, "- **Categoria fiscal:** %s\n", fc.Category)
	}
	if len(fc.ShortTerms) > 0 {
		fmt.Fprintf(&b, "- **Termos de busca:** %s\n", strings.Join(fc.ShortTerms, ", "))
	}
	if len(fc.LongTerms) > 0 {
		fmt.Fprintf(&b, "- **Consultas:** %s\n", strings.Join(fc.LongTerms, "; "))
	}
	if reason != "" {
		fmt.Fprintf(&b, "- **Motivo:** %s\n", reason)
	}
	b.WriteString("\nNenhuma oportunidade de economia foi estimada. Revise o corpus de legislação da categoria ou a configuração do provedor de embeddings.\n")
	return b.String()
}
