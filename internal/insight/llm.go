package insight

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/legisrag/internal/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("legisrag.insight")

// reportPrompt is the system instruction for the savings report.
const reportPrompt = `Você é um consultor tributário brasileiro. Abaixo estão o conteúdo BRUTO de uma Nota Fiscal Eletrônica e trechos de leis relevantes encontrados por busca de similaridade.

Gere uma análise detalhada ESTRITAMENTE no formato MARKDOWN, começando com um título de nível 1 e usando subtítulos (##) e listas:

1. **Resumo da NF-e:** breve resumo do que a nota fiscal trata.
2. **Relevância Legal:** indique se os trechos de lei parecem relevantes ou aplicáveis à NF-e, citando a fonte.
3. **Trecho de Lei Chave:** cite o trecho considerado mais importante ou aplicável.
4. **Oportunidade de Economia/Benefício:** dicas de aplicação da lei para reduzir o recolhimento ou obter benefício legal, estimando a economia em R$ quando possível.

Baseie-se somente nos trechos fornecidos. Não invente dispositivos legais.`

// DefaultMaxInvoiceBytes bounds the invoice content sent to the model.
const DefaultMaxInvoiceBytes = 64 * 1024

// LLMGenerator implements Generator with a generative model. Pacing between
// model calls is the client's concern; a GeminiClient shared with the
// extractor keeps the minimum interval across both stages.
type LLMGenerator struct {
	client   llm.Client
	maxBytes int
	logger   *zap.Logger
}

// NewLLMGenerator returns a generator prompting client.
func NewLLMGenerator(client llm.Client, maxInvoiceBytes int, logger *zap.Logger) *LLMGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxInvoiceBytes <= 0 {
		maxInvoiceBytes = DefaultMaxInvoiceBytes
	}
	return &LLMGenerator{client: client, maxBytes: maxInvoiceBytes, logger: logger}
}

// Generate asks the model for the report. The reply is returned trimmed;
// callers substitute FailedReport on error.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) (report string, err error) {
	ctx, span := tracer.Start(ctx, "LLMGenerator.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("category", req.Context.Category),
		attribute.Int("passages", len(req.Passages)),
		attribute.String("model", g.client.Model()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if len(req.Passages) == 0 {
		return "", ErrNoPassages
	}

	start := time.Now()
	reply, err := g.client.Complete(ctx, llm.Request{
		System: reportPrompt,
		Prompt: g.prompt(req),
	})
	if err != nil {
		return "", fmt.Errorf("insight: model call: %w", err)
	}
	report = strings.TrimSpace(stripFence(reply))

	g.logger.Debug("report generated",
		zap.String("model", g.client.Model()),
		zap.Int("report_chars", utf8.RuneCountInString(report)),
		zap.Duration("duration", time.Since(start)),
	)
	span.SetStatus(codes.Ok, "success")
	return report, nil
}

func (g *LLMGenerator) prompt(req Request) string {
	invoice := req.Invoice
	omitted := false
	if len(invoice) > g.maxBytes {
		cut := g.maxBytes
		for cut > 0 && !utf8.RuneStart(invoice[cut]) {
			cut--
		}
		invoice = invoice[:cut]
		omitted = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Categoria fiscal: %s\n", req.Context.Category)
	if len(req.Context.LongTerms) > 0 {
		fmt.Fprintf(&b, "Consultas: %s\n", strings.Join(req.Context.LongTerms, "; "))
	}
	b.WriteString("\nConteúdo da NF-e:\n---\n")
	b.Write(invoice)
	if omitted {
		b.WriteString("\n... [Conteúdo Omitido]")
	}
	b.WriteString("\n---\n\nTrechos de lei encontrados:\n\n")
	b.WriteString(FormatPassages(req.Passages))
	return b.String()
}

// stripFence removes a markdown code fence wrapping the whole reply.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		return t[nl+1:]
	}
	return s
}

var _ Generator = (*LLMGenerator)(nil)
