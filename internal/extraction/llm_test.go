package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/legisrag/internal/fiscal"
	"github.com/fyrsmithlabs/legisrag/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	reply string
	err   error
	calls int
	last  llm.Request
}

func (s *stubClient) Complete(_ context.Context, req llm.Request) (string, error) {
	s.calls++
	s.last = req
	return s.reply, s.err
}

func (s *stubClient) Model() string { return "stub" }

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    fiscal.Context
		wantErr error
	}{
		{
			name:  "plain object",
			reply: `{"category":"ICMS-ST","short_terms":["ICMS-ST","biscoito"],"long_terms":["Legislação sobre ICMS-ST de produtos alimentícios"]}`,
			want: fiscal.Context{
				Category:   fiscal.CategoryICMSST,
				ShortTerms: []string{"ICMS-ST", "biscoito"},
				LongTerms:  []string{"Legislação sobre ICMS-ST de produtos alimentícios"},
			},
		},
		{
			name:  "fenced with prose and string terms",
			reply: "Claro:\n```json\n{\"category\": \"icms st\", \"short_terms\": \"combustível\", \"long_terms\": \"ICMS monofásico sobre diesel\"}\n```",
			want: fiscal.Context{
				Category:   fiscal.CategoryICMSST,
				ShortTerms: []string{"combustível"},
				LongTerms:  []string{"ICMS monofásico sobre diesel"},
			},
		},
		{
			name:  "legacy term keys",
			reply: `{"category":"ISS","termo_curto":"manutenção","termo_completo":"ISS sobre serviços de manutenção"}`,
			want: fiscal.Context{
				Category:   fiscal.CategoryISS,
				ShortTerms: []string{"manutenção"},
				LongTerms:  []string{"ISS sobre serviços de manutenção"},
			},
		},
		{
			name:    "no object",
			reply:   "não sei",
			wantErr: ErrMalformedReply,
		},
		{
			name:    "invalid JSON",
			reply:   `{"category": ICMS}`,
			wantErr: ErrMalformedReply,
		},
		{
			name:    "missing category",
			reply:   `{"short_terms":["x"]}`,
			wantErr: ErrNoCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReply(tt.reply)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMExtractor_Extract(t *testing.T) {
	client := &stubClient{reply: `{"category":"IPI","short_terms":["IPI"],"long_terms":["IPI sobre ferramentas"]}`}
	extractor, err := NewLLMExtractor(client, DefaultConfig(), nil)
	require.NoError(t, err)

	fc, err := extractor.Extract(context.Background(), []byte(nfeIPI))
	require.NoError(t, err)
	assert.Equal(t, fiscal.CategoryIPI, fc.Category)

	assert.Equal(t, 1, client.calls)
	assert.True(t, client.last.JSON)
	assert.Equal(t, extractionPrompt, client.last.System)
	assert.Contains(t, client.last.Prompt, "Furadeira de impacto")
	assert.NotContains(t, client.last.Prompt, "[Conteúdo Omitido]")
}

func TestLLMExtractor_TruncatesLargeInvoices(t *testing.T) {
	client := &stubClient{reply: `{"category":"ICMS","short_terms":["ICMS"]}`}
	cfg := DefaultConfig()
	cfg.MaxInvoiceBytes = 10
	extractor, err := NewLLMExtractor(client, cfg, nil)
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background(), []byte(strings.Repeat("é", 20)))
	require.NoError(t, err)
	assert.Contains(t, client.last.Prompt, strings.Repeat("é", 5)+"\n... [Conteúdo Omitido]")
}

func TestLLMExtractor_Errors(t *testing.T) {
	t.Run("model failure", func(t *testing.T) {
		boom := errors.New("boom")
		extractor, err := NewLLMExtractor(&stubClient{err: boom}, DefaultConfig(), nil)
		require.NoError(t, err)
		_, err = extractor.Extract(context.Background(), []byte(nfeICMS))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty invoice skips the model", func(t *testing.T) {
		client := &stubClient{}
		extractor, err := NewLLMExtractor(client, DefaultConfig(), nil)
		require.NoError(t, err)
		_, err = extractor.Extract(context.Background(), nil)
		assert.ErrorIs(t, err, ErrEmptyInvoice)
		assert.Zero(t, client.calls)
	})

	t.Run("nil client", func(t *testing.T) {
		_, err := NewLLMExtractor(nil, DefaultConfig(), nil)
		assert.ErrorIs(t, err, ErrNoClient)
	})
}

func TestTruncate(t *testing.T) {
	s, cut := truncate([]byte("abc"), 5)
	assert.Equal(t, "abc", s)
	assert.False(t, cut)

	// "é" is two bytes; a cut in the middle of a rune backs off.
	s, cut = truncate([]byte("aéb"), 2)
	assert.Equal(t, "a", s)
	assert.True(t, cut)
}
