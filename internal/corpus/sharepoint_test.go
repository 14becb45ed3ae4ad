package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sharePointResponse = `)]}',
[
  {"SchemaVersion": "15.0.0.0", "ErrorInfo": null},
  135,
  {
    "ElapsedTime": 41,
    "PrimaryQueryResult": {
      "RelevantResults": {
        "ResultRows": [
          {
            "Path": "https://legislacao.fazenda.sp.gov.br/Paginas/Decreto-45490.aspx",
            "PublishingPageContentOWSHTML": "<div><p>Artigo 1&ordm; - O imposto incide sobre</p><p>opera&ccedil;&otilde;es relativas.</p><script>var x = 1;</script></div>"
          },
          {
            "Path": "https://legislacao.fazenda.sp.gov.br/Paginas/sem-conteudo.aspx",
            "PublishingPageContentOWSHTML": null
          },
          {
            "Path": "https://legislacao.fazenda.sp.gov.br/Paginas/Decreto-45490.aspx",
            "PublishingPageContentOWSHTML": "<p>duplicate</p>"
          }
        ]
      }
    },
    "SecondaryQueryResults": [
      {"RelevantResults": {"ResultRows": [
        {"Path": "https://legislacao.fazenda.sp.gov.br/Paginas/RC-1234.aspx", "PublishingPageContentOWSHTML": "<h2>Resposta</h2>Consulta sobre ICMS-ST"}
      ]}}
    ]
  }
]`

func TestParseSharePoint(t *testing.T) {
	pages, err := ParseSharePoint([]byte(sharePointResponse))
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, "https://legislacao.fazenda.sp.gov.br/Paginas/Decreto-45490.aspx", pages[0].Path)
	assert.Equal(t, "Artigo 1º - O imposto incide sobre\noperações relativas.", pages[0].Content)

	assert.Equal(t, "https://legislacao.fazenda.sp.gov.br/Paginas/RC-1234.aspx", pages[1].Path)
	assert.Equal(t, "Resposta\nConsulta sobre ICMS-ST", pages[1].Content)
}

func TestParseSharePoint_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no array", `{"ok": true}`},
		{"invalid json", `[{"ResultRows": [}]`},
		{"no rows", `[{"ResultRows": []}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSharePoint([]byte(tt.body))
			assert.Error(t, err)
		})
	}

	_, err := ParseSharePoint([]byte(`[{"ResultRows": [{"Path": "x"}]}]`))
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "texto simples", "texto simples"},
		{"entities", "Art. 2&ordm; &amp; &sect; 1&ordm;", "Art. 2º & § 1º"},
		{"blocks", "<p>um</p><p>dois</p><br/>três", "um\ndois\ntrês"},
		{"style stripped", "<style>p{color:red}</style><p>visível</p>", "visível"},
		{"whitespace", "<div>  muitos \n\t espaços </div>", "muitos espaços"},
		{"source line breaks", "<p>Art. 1º O imposto\n   <b>incide</b>\nsobre a circulação</p><p>Art. 2º</p>", "Art. 1º O imposto incide sobre a circulação\nArt. 2º"},
		{"inline tags keep words apart", "<p>base de<i> cálculo</i></p>", "base de cálculo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}
