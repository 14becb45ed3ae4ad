package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/legisrag/internal/corpus"
	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/llm"
	"github.com/fyrsmithlabs/legisrag/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPassages() []retrieval.Passage {
	return []retrieval.Passage{
		{
			Segment:  corpus.NewSegment("ricms-art-313#0", "Art. 313. Fica atribuída ao estabelecimento industrial a responsabilidade pela retenção do imposto.", "https://legislacao.sefaz.example/ricms/art313", []string{"ICMS-ST"}),
			Distance: 0.02,
			Rank:     1,
		},
		{
			Segment:  corpus.NewSegment("lc-87#4", "Lei Kandir.", "", []string{"general"}),
			Distance: 1.4512,
			Rank:     2,
		},
	}
}

func TestFormatPassages(t *testing.T) {
	got := FormatPassages(testPassages())

	want := "--- DOCUMENTO RANK 1 ---\n" +
		"URL/Fonte: https://legislacao.sefaz.example/ricms/art313\n" +
		"Distância (Similaridade): 0.0200\n" +
		"Conteúdo:\nArt. 313. Fica atribuída ao estabelecimento industrial a responsabilidade pela retenção do imposto.\n\n" +
		"--- DOCUMENTO RANK 2 ---\n" +
		"URL/Fonte: N/A\n" +
		"Distância (Similaridade): 1.4512\n" +
		"Conteúdo:\nLei Kandir.\n\n"
	assert.Equal(t, want, got)
	assert.Empty(t, FormatPassages(nil))
}

func TestFailedReport(t *testing.T) {
	report := FailedReport()
	assert.Equal(t, "# Erro de Análise\nAnálise final não pôde ser concluída.", report)
	assert.True(t, IsFailedReport(report))
	assert.False(t, IsFailedReport("# Análise"))
}

func TestDegradedReport(t *testing.T) {
	fc := fiscal.Context{Category: "ISS", ShortTerms: []string{"ISS", "manutenção"}}
	report := DegradedReport(fc, "nenhum trecho de legislação para a categoria ISS")

	assert.True(t, strings.HasPrefix(report, "# Análise Fiscal sem Base Legal"))
	assert.Contains(t, report, "- **Categoria fiscal:** ISS")
	assert.Contains(t, report, "- **Termos de busca:** ISS, manutenção")
	assert.Contains(t, report, "- **Motivo:** nenhum trecho de legislação para a categoria ISS")
	assert.NotContains(t, report, "Consultas")
	assert.False(t, IsFailedReport(report))
}

func TestLLMGenerator_Generate(t *testing.T) {
	var got llm.Request
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (string, error) {
		got = req
		return "```markdown\n# Análise\n\nTexto.\n```", nil
	})
	gen := NewLLMGenerator(client, 0, nil)

	report, err := gen.Generate(context.Background(), Request{
		Invoice:  []byte("<NFe>biscoito</NFe>"),
		Context:  fiscal.Context{Category: "ICMS-ST", LongTerms: []string{"ICMS-ST de alimentos"}},
		Passages: testPassages(),
	})
	require.NoError(t, err)
	assert.Equal(t, "# Análise\n\nTexto.", report)

	assert.Equal(t, reportPrompt, got.System)
	assert.False(t, got.JSON)
	assert.Contains(t, got.Prompt, "Categoria fiscal: ICMS-ST")
	assert.Contains(t, got.Prompt, "Consultas: ICMS-ST de alimentos")
	assert.Contains(t, got.Prompt, "<NFe>biscoito</NFe>")
	assert.Contains(t, got.Prompt, "--- DOCUMENTO RANK 2 ---")
}

func TestLLMGenerator_TruncatesInvoice(t *testing.T) {
	var prompt string
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (string, error) {
		prompt = req.Prompt
		return "# ok", nil
	})
	gen := NewLLMGenerator(client, 4, nil)

	_, err := gen.Generate(context.Background(), Request{Invoice: []byte("abcdefgh"), Passages: testPassages()})
	require.NoError(t, err)
	assert.Contains(t, prompt, "---\nabcd\n... [Conteúdo Omitido]\n---")
}

func TestLLMGenerator_Errors(t *testing.T) {
	boom := errors.New("quota")
	gen := NewLLMGenerator(llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		return "", boom
	}), 0, nil)

	_, err := gen.Generate(context.Background(), Request{Passages: testPassages()})
	assert.ErrorIs(t, err, boom)

	_, err = gen.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoPassages)
}

func TestStripFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "# plain", want: "# plain"},
		{in: "```md\n# x\n```", want: "# x\n"},
		{in: "```", want: "```"},
		{in: "```inline```", want: "```inline```"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripFence(tt.in), tt.in)
	}
}

func TestExtractiveGenerator(t *testing.T) {
	report, err := ExtractiveGenerator{}.Generate(context.Background(), Request{
		Context:  fiscal.Context{Category: "ICMS-ST", ShortTerms: []string{"ICMS-ST"}},
		Passages: testPassages(),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(report, "# Análise Fiscal: ICMS-ST\n"))
	assert.Contains(t, report, "1. https://legislacao.sefaz.example/ricms/art313 (distância 0.0200)")
	assert.Contains(t, report, "> Art. 313.")
	assert.Contains(t, report, "## Oportunidade de Economia/Benefício")

	_, err = ExtractiveGenerator{}.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoPassages)
}
