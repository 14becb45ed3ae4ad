package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/llm"
	"go.uber.org/zap"
)

// extractionPrompt is the system instruction for invoice classification.
const extractionPrompt = `Você é um especialista em tributação brasileira. Analise o conteúdo de uma Nota Fiscal Eletrônica (XML ou texto) e responda SOMENTE com um objeto JSON, sem texto adicional:

{
  "category": "categoria fiscal principal: ICMS, ICMS-ST, ISS, IPI, PIS ou COFINS",
  "short_terms": ["termos concisos de busca, de uma a três palavras, com o nome do produto e a operação"],
  "long_terms": ["frases curtas e descritivas para busca de similaridade, ex: 'Legislação sobre ICMS-ST de produtos alimentícios'"]
}

Escolha termos que reduzam a quantidade de leis retornadas e direcionem a busca para possíveis divergências fiscais.`

// LLMExtractor implements Extractor with a generative model.
type LLMExtractor struct {
	client   llm.Client
	maxBytes int
	logger   *zap.Logger
}

// NewLLMExtractor returns an extractor prompting client.
func NewLLMExtractor(client llm.Client, cfg Config, logger *zap.Logger) (*LLMExtractor, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := cfg.MaxInvoiceBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxInvoiceBytes
	}
	return &LLMExtractor{client: client, maxBytes: maxBytes, logger: logger}, nil
}

// Extract sends the invoice to the model and parses its reply.
func (e *LLMExtractor) Extract(ctx context.Context, invoice []byte) (fiscal.Context, error) {
	if strings.TrimSpace(string(invoice)) == "" {
		return fiscal.Context{}, ErrEmptyInvoice
	}

	content, truncated := truncate(invoice, e.maxBytes)
	prompt := "Conteúdo da NF-e:\n---\n" + content
	if truncated {
		prompt += "\n... [Conteúdo Omitido]"
	}
	prompt += "\n---"

	reply, err := e.client.Complete(ctx, llm.Request{
		System: extractionPrompt,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		return fiscal.Context{}, fmt.Errorf("extraction: model call: %w", err)
	}

	fc, err := parseReply(reply)
	if err != nil {
		e.logger.Warn("unusable extraction reply",
			zap.String("model", e.client.Model()),
			zap.Int("reply_chars", len(reply)),
			zap.Error(err),
		)
		return fiscal.Context{}, err
	}

	e.logger.Debug("model extraction",
		zap.String("model", e.client.Model()),
		zap.String("category", fc.Category),
		zap.Int("short_terms", len(fc.ShortTerms)),
		zap.Int("long_terms", len(fc.LongTerms)),
		zap.Bool("truncated", truncated),
	)
	return fc, nil
}

// reply accepts the requested keys and the older termo_curto and
// termo_completo pair. Each term field may be a string or a list.
type reply struct {
	Category      string    `json:"category"`
	ShortTerms    termsList `json:"short_terms"`
	LongTerms     termsList `json:"long_terms"`
	TermoCurto    termsList `json:"termo_curto"`
	TermoCompleto termsList `json:"termo_completo"`
}

type termsList []string

func (t *termsList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*t = termsList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = many
	return nil
}

// parseReply decodes the JSON object between the first '{' and the last
// '}' of a model reply, which tolerates code fences and surrounding prose.
func parseReply(text string) (fiscal.Context, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fiscal.Context{}, fmt.Errorf("%w: no JSON object", ErrMalformedReply)
	}

	var r reply
	if err := json.Unmarshal([]byte(text[start:end+1]), &r); err != nil {
		return fiscal.Context{}, fmt.Errorf("%w: %w", ErrMalformedReply, err)
	}

	short := r.ShortTerms
	if len(short) == 0 {
		short = r.TermoCurto
	}
	long := r.LongTerms
	if len(long) == 0 {
		long = r.TermoCompleto
	}

	fc := fiscal.Context{
		Category:   fiscal.NormalizeCategory(r.Category),
		ShortTerms: short,
		LongTerms:  long,
	}.Normalize()
	if fc.Category == "" {
		return fiscal.Context{}, ErrNoCategory
	}
	return fc, nil
}

// truncate cuts b to at most max bytes on a rune boundary.
func truncate(b []byte, max int) (string, bool) {
	if len(b) <= max {
		return string(b), false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]), true
}

var _ Extractor = (*LLMExtractor)(nil)
