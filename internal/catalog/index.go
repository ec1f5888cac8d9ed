package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/ecolaudo/internal/models"
)

const (
	defaultSearchLimit = 20
	defaultTitleBoost  = 2.0
	defaultFuzziness   = 1
)

// SearchOptions narrows and tunes a template search. The zero value searches every organ
// and category without typo tolerance.
type SearchOptions struct {
	Organ    string
	Category string
	Limit    int
	// Fuzzy matches terms within Fuzziness edits (1 when unset).
	Fuzzy     bool
	Fuzziness int
}

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// indexedTemplate is the document stored in the index for a template.
type indexedTemplate struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	Organ    string `json:"organ"`
	Category string `json:"category"`
}

// TemplateIndex is a full-text index over template titles and texts.
type TemplateIndex struct {
	index bleve.Index
}

func templateMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// Standard analyzer: lower-case and tokenize without stemming, so a clinical term matches as typed.
	text.Analyzer = standard.Name
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("text", text)
	keyword := bleve.NewKeywordFieldMapping()
	doc.AddFieldMappingsAt("organ", keyword)
	doc.AddFieldMappingsAt("category", keyword)

	im.AddDocumentMapping("template", doc)
	im.DefaultType = "template"
	im.DefaultMapping = doc
	return im
}

// NewTemplateIndex opens the index at path, creating it when missing.
// An empty path keeps the index in memory.
// If the mapping changes, remove the index directory; the catalog rebuilds it from the store.
func NewTemplateIndex(path string) (*TemplateIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(templateMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory template index: %w", err)
		}
		return &TemplateIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open template index: %w", err)
		}
		return &TemplateIndex{index: index}, nil
	}
	index, err := bleve.New(path, templateMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create template index: %w", err)
	}
	return &TemplateIndex{index: index}, nil
}

func toIndexed(t *models.TemplateText) indexedTemplate {
	return indexedTemplate{Title: t.Title.String(), Text: t.Text.String(), Organ: t.Organ, Category: t.Category}
}

// Index adds or replaces a template.
func (x *TemplateIndex) Index(ctx context.Context, t *models.TemplateText) error {
	return x.index.Index(t.ID, toIndexed(t))
}

// IndexAll adds or replaces templates in one batch.
func (x *TemplateIndex) IndexAll(ctx context.Context, ts []*models.TemplateText) error {
	batch := x.index.NewBatch()
	for _, t := range ts {
		if err := batch.Index(t.ID, toIndexed(t)); err != nil {
			return fmt.Errorf("batch template %s: %w", t.ID, err)
		}
	}
	return x.index.Batch(batch)
}

// Delete removes a template.
func (x *TemplateIndex) Delete(ctx context.Context, id string) error {
	return x.index.Delete(id)
}

// Reset removes every template from the index.
func (x *TemplateIndex) Reset(ctx context.Context) error {
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	for {
		req.Size = 500
		res, err := x.index.Search(req)
		if err != nil {
			return fmt.Errorf("list indexed templates: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := x.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := x.index.Batch(batch); err != nil {
			return err
		}
	}
}

// Search runs query over titles and texts, titles weighted higher. An empty query lists
// every template passing the organ and category filters.
func (x *TemplateIndex) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var must []blevequery.Query
	if q := strings.TrimSpace(query); q != "" {
		must = append(must, textQuery(q, opts))
	}
	if opts.Organ != "" {
		must = append(must, fieldTerm("organ", opts.Organ))
	}
	if opts.Category != "" {
		must = append(must, fieldTerm("category", opts.Category))
	}

	var q blevequery.Query
	switch len(must) {
	case 0:
		q = bleve.NewMatchAllQuery()
	case 1:
		q = must[0]
	default:
		q = bleve.NewConjunctionQuery(must...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("template search failed: %w", err)
	}
	out := make([]Hit, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = Hit{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// textQuery matches any query term in the title or the text; a title match scores
// defaultTitleBoost times a text match.
func textQuery(query string, opts SearchOptions) blevequery.Query {
	fuzziness := 0
	if opts.Fuzzy {
		fuzziness = opts.Fuzziness
		if fuzziness <= 0 {
			fuzziness = defaultFuzziness
		}
	}
	title := bleve.NewMatchQuery(query)
	title.SetField("title")
	title.SetFuzziness(fuzziness)
	title.SetBoost(defaultTitleBoost)

	text := bleve.NewMatchQuery(query)
	text.SetField("text")
	text.SetFuzziness(fuzziness)

	return bleve.NewDisjunctionQuery(title, text)
}

func fieldTerm(field, value string) blevequery.Query {
	q := bleve.NewTermQuery(value)
	q.SetField(field)
	return q
}

// Terms returns every indexed title and text term with its document frequency.
func (x *TemplateIndex) Terms() (map[string]int, error) {
	terms := make(map[string]int)
	for _, field := range []string{"title", "text"} {
		dict, err := x.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("open %s dictionary: %w", field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil {
				_ = dict.Close()
				return nil, fmt.Errorf("read %s dictionary: %w", field, err)
			}
			if entry == nil {
				break
			}
			if n := int(entry.Count); n > terms[entry.Term] {
				terms[entry.Term] = n
			}
		}
		_ = dict.Close()
	}
	return terms, nil
}

// DocCount returns the number of indexed templates.
func (x *TemplateIndex) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the index.
func (x *TemplateIndex) Close() error {
	return x.index.Close()
}
