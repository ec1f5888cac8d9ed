package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/ecolaudo/internal/models"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "baço", 4},
		{"baço", "baco", 1},
		{"hiperecoica", "hiperecóica", 1},
		{"kitten", "sitting", 3},
		{"rim", "rim", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q -> %q", tt.a, tt.b)
		assert.Equal(t, tt.want, levenshtein(tt.b, tt.a), "%q -> %q", tt.b, tt.a)
	}
}

func TestCorrect(t *testing.T) {
	dict := map[string]int{"contornos": 9, "contorno": 1, "regulares": 4, "irregulares": 2, "baço": 3}

	c := correct("Contornos regulares", dict, 2, 5)
	assert.False(t, c.HasCorrections())
	assert.Equal(t, "contornos regulares", c.Corrected)

	c = correct("contornso irregulres", dict, 2, 5)
	require.True(t, c.HasCorrections())
	assert.Equal(t, "contornos irregulares", c.Corrected)
	assert.Equal(t, []string{"contornso", "irregulres"}, c.Misspelled)
	assert.Equal(t, "contornos", c.Suggestions["contornso"][0].Term)

	c = correct("xyzzy", dict, 2, 5)
	assert.False(t, c.HasCorrections())
	assert.Equal(t, "xyzzy", c.Corrected)

	s := suggest("contornoz", dict, 2, 1)
	require.Len(t, s, 1)
	assert.Equal(t, Suggestion{Term: "contornos", Distance: 1, Frequency: 9}, s[0])
}

func TestCatalog_Suggest(t *testing.T) {
	cat, store := newTestCatalog(t)
	ctx := context.Background()
	for _, tpl := range []*models.TemplateText{
		{Organ: "Baço", Category: models.CategoryNormal, Title: "Normal", Text: "parênquima homogêneo"},
		{Organ: "Baço", Category: models.CategoryFinding, Title: "Alterado", Text: "parênquima heterogêneo"},
	} {
		require.NoError(t, store.CreateTemplate(ctx, tpl))
		cat.Indexed(ctx, tpl)
	}

	c, err := cat.Suggest(ctx, "parenquima homogeneo normal")
	require.NoError(t, err)
	assert.Equal(t, "parênquima homogêneo normal", c.Corrected)
	assert.Equal(t, []string{"parenquima", "homogeneo"}, c.Misspelled)
	assert.Equal(t, 2, c.Suggestions["parenquima"][0].Frequency)

	hits, err := cat.Search(ctx, c.Corrected, SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Normal", hits[0].Title.String())
}
