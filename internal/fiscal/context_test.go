package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Normalize(t *testing.T) {
	c := Context{
		Category:   "  ICMS ",
		ShortTerms: []string{"", " ICMS ", "ICMS", "  "},
		LongTerms:  []string{"substituição   tributária icms", "crédito"},
	}

	got := c.Normalize()

	assert.Equal(t, "ICMS", got.Category)
	assert.Equal(t, []string{"ICMS"}, got.ShortTerms)
	assert.Equal(t, []string{"substituição tributária icms", "crédito"}, got.LongTerms)
}

func TestContext_HasTerms(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want bool
	}{
		{"no terms", Context{Category: "ICMS"}, false},
		{"blank terms", Context{ShortTerms: []string{" "}, LongTerms: []string{""}}, false},
		{"short only", Context{ShortTerms: []string{"ICMS"}}, true},
		{"long only", Context{LongTerms: []string{"alíquota interestadual"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.HasTerms())
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"icms", CategoryICMS},
		{"ICMS ST", CategoryICMSST},
		{"icms_st", CategoryICMSST},
		{"ISSQN", CategoryISS},
		{"pis/pasep", CategoryPIS},
		{"Cofins", CategoryCOFINS},
		{"Geral", CategoryGeneral},
		{" IRPJ ", "IRPJ"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.in))
		})
	}
}
