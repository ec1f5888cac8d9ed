package catalog

import (
	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/pkg/utils"
)

// importTitleWords is the number of leading words an imported phrase is titled with.
const importTitleWords = 5

// TemplatesFromParagraphs turns each paragraph into a template of organ and category,
// ordered from startOrder in steps of one.
func TemplatesFromParagraphs(paragraphs []string, organ, category string, startOrder int) []*models.TemplateText {
	out := make([]*models.TemplateText, 0, len(paragraphs))
	for i, p := range paragraphs {
		out = append(out, &models.TemplateText{
			Organ:    organ,
			Category: category,
			Title:    models.LocalizedText(utils.TruncateWords(p, importTitleWords)),
			Text:     models.LocalizedText(p),
			Order:    startOrder + i,
		})
	}
	return out
}
