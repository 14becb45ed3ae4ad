package extraction

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultSegments maps product segments, as named in the ICMS-ST
// legislation, to keywords found in product descriptions. Keywords are
// matched accent-insensitively against whole words or word prefixes.
var DefaultSegments = map[string][]string{
	"autopeças":                {"autopeca", "pneu", "amortecedor", "pastilha de freio", "filtro de oleo", "vela de ignicao"},
	"bebidas alcoólicas":       {"cerveja", "chope", "vinho", "vodka", "whisky", "cachaca", "aguardente"},
	"bebidas não alcoólicas":   {"refrigerante", "agua mineral", "suco", "energetico", "isotonico"},
	"cigarros":                 {"cigarro", "tabaco", "fumo"},
	"cimentos":                 {"cimento"},
	"combustíveis":             {"gasolina", "diesel", "etanol", "combustivel", "querosene", "glp"},
	"energia elétrica":         {"energia eletrica"},
	"materiais de construção":  {"tijolo", "telha", "argamassa", "tinta", "verniz", "piso ceramico", "azulejo"},
	"medicamentos":             {"medicamento", "comprimido", "capsula", "xarope", "farmaco", "vacina"},
	"produtos alimentícios":    {"arroz", "feijao", "biscoito", "bolacha", "chocolate", "cafe", "acucar", "massa", "leite", "carne", "frango"},
	"produtos de perfumaria":   {"perfume", "shampoo", "xampu", "desodorante", "sabonete", "creme dental"},
	"produtos eletrônicos":     {"notebook", "celular", "smartphone", "televisor", "monitor", "computador"},
	"ferramentas":              {"furadeira", "serra", "chave de fenda", "alicate", "martelo"},
	"rações para animais":      {"racao", "pet food"},
	"sorvetes":                 {"sorvete", "picole"},
	"materiais de limpeza":     {"detergente", "desinfetante", "agua sanitaria", "sabao"},
	"lâmpadas e reatores":      {"lampada", "reator"},
	"veículos automotores":     {"automovel", "motocicleta", "caminhao"},
	"papelaria":                {"caderno", "caneta", "lapis", "papel sulfite"},
	"artigos de uso doméstico": {"panela", "talher", "garrafa termica"},
}

// SegmentMatcher detects product segments in product descriptions.
type SegmentMatcher struct {
	segments map[string][]string
}

// NewSegmentMatcher returns a matcher over segments, or DefaultSegments
// when segments is empty.
func NewSegmentMatcher(segments map[string][]string) *SegmentMatcher {
	if len(segments) == 0 {
		segments = DefaultSegments
	}
	folded := make(map[string][]string, len(segments))
	for seg, keywords := range segments {
		for _, k := range keywords {
			if k = fold(k); k != "" {
				folded[seg] = append(folded[seg], k)
			}
		}
	}
	return &SegmentMatcher{segments: folded}
}

// Match returns the segments any of the descriptions belongs to, most
// frequent first and then by name.
func (m *SegmentMatcher) Match(descriptions []string) []string {
	counts := make(map[string]int)
	for _, d := range descriptions {
		text := " " + strings.Join(strings.FieldsFunc(fold(d), notWordRune), " ") + " "
		for seg, keywords := range m.segments {
			for _, k := range keywords {
				if strings.Contains(text, " "+k) {
					counts[seg]++
					break
				}
			}
		}
	}

	out := make([]string, 0, len(counts))
	for seg := range counts {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// fold lowercases s and strips diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
