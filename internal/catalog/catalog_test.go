package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/storage"
)

func newTestCatalog(t *testing.T) (*Catalog, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	idx, err := NewTemplateIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return New(store, idx), store
}

func titles(ts []*models.TemplateText) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title.String()
	}
	return out
}

func TestDefaultTemplates(t *testing.T) {
	ts := DefaultTemplates()
	require.Len(t, ts, 14*3+7+8)
	for _, tpl := range ts {
		assert.NoError(t, tpl.Validate(), tpl.Organ)
	}

	assert.Equal(t, "Estômago", ts[0].Organ)
	assert.Equal(t, 0, ts[0].Order)
	assert.Equal(t, models.CategoryNormal, ts[0].Category)
	assert.Equal(t, "Linfonodos", ts[41].Organ)
	assert.Equal(t, 132, ts[41].Order)

	echo := ts[42]
	assert.Equal(t, "Valva Mitral", echo.Organ)
	assert.Equal(t, 140, echo.Order)
	assert.Equal(t, "Avaliação de Valva Mitral dentro dos padrões de normalidade.", echo.Text.String())

	ecg := ts[49]
	assert.Equal(t, "Ritmo e Frequência", ecg.Organ)
	assert.Equal(t, 210, ecg.Order)
	assert.Equal(t, "Ritmo e Frequência: Dentro dos limites da normalidade.", ecg.Text.String())
	assert.Equal(t, 280, ts[len(ts)-1].Order)
}

func TestDefaultReferenceValues(t *testing.T) {
	refs := DefaultReferenceValues()
	require.Len(t, refs, 12)
	for _, r := range refs {
		assert.NoError(t, r.Validate())
		assert.Equal(t, models.SpeciesDog, r.Species)
	}
	assert.Equal(t, &models.ReferenceValue{
		Organ: "Baço", MeasurementType: "espessura", Species: "dog", Size: "large",
		MinValue: 1.5, MaxValue: 2.5, Unit: "cm",
	}, refs[11])
}

func TestSeed_OnlyOnce(t *testing.T) {
	c, store := newTestCatalog(t)
	ctx := context.Background()

	res, err := c.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Seeded: true, Templates: 57, ReferenceValues: 12}, res)

	res, err = c.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, res.Seeded)

	all, err := store.ListTemplates(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 57)
	refs, err := store.ListReferenceValues(ctx, models.ReferenceFilter{})
	require.NoError(t, err)
	assert.Len(t, refs, 12)
}

func TestSearch(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	_, err := c.Seed(ctx)
	require.NoError(t, err)

	got, err := c.Search(ctx, "ecogenicidade", SearchOptions{Organ: "Fígado"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alteração de ecogenicidade", got[0].Title.String(), "title matches rank first")
	for _, tpl := range got {
		assert.Equal(t, "Fígado", tpl.Organ)
	}

	got, err = c.Search(ctx, "", SearchOptions{Organ: "Baço", Category: models.CategoryFinding})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alteração de ecogenicidade", "Aumento de dimensões"}, titles(got))

	got, err = c.Search(ctx, "", SearchOptions{Organ: "Onda P"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Onda P: Dentro dos limites da normalidade.", got[0].Text.String())

	got, err = c.Search(ctx, "hiperecoicas", SearchOptions{Organ: "Baço"})
	require.NoError(t, err)
	assert.Empty(t, got, "accents are significant without fuzzy matching")

	got, err = c.Search(ctx, "hiperecoicas", SearchOptions{Organ: "Baço", Fuzzy: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alteração de ecogenicidade", got[0].Title.String())

	got, err = c.Search(ctx, "normal", SearchOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestEnsureIndex_RebuildsFromStore(t *testing.T) {
	c, store := newTestCatalog(t)
	ctx := context.Background()

	tpl := &models.TemplateText{Organ: "Fígado", Category: models.CategoryFinding, Title: "Nódulo", Text: "presença de nódulo hipoecogênico"}
	require.NoError(t, store.CreateTemplate(ctx, tpl))

	got, err := c.Search(ctx, "nódulo", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, got, "not indexed yet")

	require.NoError(t, c.EnsureIndex(ctx))
	got, err = c.Search(ctx, "nódulo", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tpl.ID, got[0].ID)

	// a non-empty index is left alone
	require.NoError(t, store.CreateTemplate(ctx, &models.TemplateText{Organ: "Baço", Category: models.CategoryNormal, Text: "nódulo"}))
	require.NoError(t, c.EnsureIndex(ctx))
	got, err = c.Search(ctx, "nódulo", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, c.Reindex(ctx))
	got, err = c.Search(ctx, "nódulo", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearch_SkipsStaleEntries(t *testing.T) {
	c, store := newTestCatalog(t)
	ctx := context.Background()

	tpl := &models.TemplateText{Organ: "Baço", Category: models.CategoryNormal, Text: "baço homogêneo"}
	require.NoError(t, store.CreateTemplate(ctx, tpl))
	c.Indexed(ctx, tpl)
	require.NoError(t, store.DeleteTemplate(ctx, tpl.ID))

	got, err := c.Search(ctx, "homogêneo", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)

	c.Unindexed(ctx, tpl.ID)
	n, err := c.index.DocCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportTemplates(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	_, err := c.Seed(ctx)
	require.NoError(t, err)

	paragraphs := []string{
		"Fígado com bordos arredondados e parênquima levemente hiperecogênico.",
		"Vasos hepáticos sem alterações.",
	}
	got, err := c.ImportTemplates(ctx, paragraphs, "Fígado", models.CategoryFinding)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Fígado com bordos arredondados e...", got[0].Title.String())
	assert.Equal(t, "Vasos hepáticos sem alterações.", got[1].Title.String())
	assert.Equal(t, 13, got[0].Order, "after Fígado's default orders 10..12")
	assert.Equal(t, 14, got[1].Order)
	assert.NotEmpty(t, got[0].ID)

	found, err := c.Search(ctx, "arredondados", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, got[0].ID, found[0].ID)

	_, err = c.ImportTemplates(ctx, nil, "Fígado", models.CategoryFinding)
	assert.Error(t, err)
	_, err = c.ImportTemplates(ctx, paragraphs, "Fígado", "bogus")
	assert.Error(t, err)
}

func TestCatalogEvaluate(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()
	_, err := c.Seed(ctx)
	require.NoError(t, err)

	exam := &models.Exam{OrgansData: []models.OrganData{{OrganName: "Fígado"}}}
	exam.OrgansData[0].Measurements.Set("espessura", models.Measurement{Value: 6, Unit: "cm"})

	evals, err := c.Evaluate(ctx, exam, &models.Patient{Species: "dog", Size: "medium"})
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.True(t, evals[0].IsAbnormal)

	evals, err = c.Evaluate(ctx, exam, &models.Patient{Species: "cat", Size: "medium"})
	require.NoError(t, err)
	assert.Empty(t, evals, "no feline ranges by default")
}
