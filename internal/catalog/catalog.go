// Package catalog manages the phrase templates and reference ranges clinicians compose reports from.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/storage"
)

// Store is the part of the record store the catalog works on.
type Store interface {
	GetTemplate(ctx context.Context, id string) (*models.TemplateText, error)
	ListTemplates(ctx context.Context, organ string) ([]*models.TemplateText, error)
	BatchCreateTemplates(ctx context.Context, ts []*models.TemplateText) error
	ListReferenceValues(ctx context.Context, f models.ReferenceFilter) ([]*models.ReferenceValue, error)
	BatchCreateReferenceValues(ctx context.Context, rs []*models.ReferenceValue) error
}

// SeedResult reports what Seed inserted.
type SeedResult struct {
	Seeded          bool `json:"seeded"`
	Templates       int  `json:"templates"`
	ReferenceValues int  `json:"reference_values"`
}

// Catalog keeps the template index in step with the store.
type Catalog struct {
	store  Store
	index  *TemplateIndex
	logger *zap.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Catalog over store and index.
func New(store Store, index *TemplateIndex, opts ...Option) *Catalog {
	c := &Catalog{store: store, index: index, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureIndex rebuilds the template index from the store when the index is empty.
func (c *Catalog) EnsureIndex(ctx context.Context) error {
	n, err := c.index.DocCount()
	if err != nil {
		return fmt.Errorf("count indexed templates: %w", err)
	}
	if n > 0 {
		return nil
	}
	return c.Reindex(ctx)
}

// Reindex replaces the index content with every template in the store.
func (c *Catalog) Reindex(ctx context.Context) error {
	ts, err := c.store.ListTemplates(ctx, "")
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	if err := c.index.Reset(ctx); err != nil {
		return err
	}
	if err := c.index.IndexAll(ctx, ts); err != nil {
		return fmt.Errorf("index templates: %w", err)
	}
	c.logger.Info("template index rebuilt", zap.Int("templates", len(ts)))
	return nil
}

// Indexed adds or refreshes t in the index after it was saved.
func (c *Catalog) Indexed(ctx context.Context, t *models.TemplateText) {
	if err := c.index.Index(ctx, t); err != nil {
		c.logger.Warn("failed to index template", zap.String("template_id", t.ID), zap.Error(err))
	}
}

// Unindexed drops a deleted template from the index.
func (c *Catalog) Unindexed(ctx context.Context, id string) {
	if err := c.index.Delete(ctx, id); err != nil {
		c.logger.Warn("failed to unindex template", zap.String("template_id", id), zap.Error(err))
	}
}

// Search returns the stored templates matching query, best first. Index entries whose
// template no longer exists are skipped.
func (c *Catalog) Search(ctx context.Context, query string, opts SearchOptions) ([]*models.TemplateText, error) {
	hits, err := c.index.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*models.TemplateText, 0, len(hits))
	for _, h := range hits {
		t, err := c.store.GetTemplate(ctx, h.ID)
		if errors.Is(err, storage.ErrNotFound) {
			c.logger.Debug("stale template in index", zap.String("template_id", h.ID))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Seed inserts the default templates and reference ranges unless any template exists.
func (c *Catalog) Seed(ctx context.Context) (SeedResult, error) {
	existing, err := c.store.ListTemplates(ctx, "")
	if err != nil {
		return SeedResult{}, fmt.Errorf("list templates: %w", err)
	}
	if len(existing) > 0 {
		return SeedResult{}, nil
	}

	ts := DefaultTemplates()
	if err := c.store.BatchCreateTemplates(ctx, ts); err != nil {
		return SeedResult{}, fmt.Errorf("seed templates: %w", err)
	}
	refs := DefaultReferenceValues()
	if err := c.store.BatchCreateReferenceValues(ctx, refs); err != nil {
		return SeedResult{}, fmt.Errorf("seed reference values: %w", err)
	}
	if err := c.index.IndexAll(ctx, ts); err != nil {
		c.logger.Warn("failed to index default templates", zap.Error(err))
	}
	c.logger.Info("defaults initialized", zap.Int("templates", len(ts)), zap.Int("reference_values", len(refs)))
	return SeedResult{Seeded: true, Templates: len(ts), ReferenceValues: len(refs)}, nil
}

// ImportTemplates stores each paragraph as a template of organ and category, ordered after
// the organ's existing templates.
func (c *Catalog) ImportTemplates(ctx context.Context, paragraphs []string, organ, category string) ([]*models.TemplateText, error) {
	if len(paragraphs) == 0 {
		return nil, errors.New("no paragraphs to import")
	}
	existing, err := c.store.ListTemplates(ctx, organ)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	start := 0
	for _, t := range existing {
		if t.Order >= start {
			start = t.Order + 1
		}
	}
	ts := TemplatesFromParagraphs(paragraphs, organ, category, start)
	for _, t := range ts {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if err := c.store.BatchCreateTemplates(ctx, ts); err != nil {
		return nil, fmt.Errorf("store templates: %w", err)
	}
	if err := c.index.IndexAll(ctx, ts); err != nil {
		c.logger.Warn("failed to index imported templates", zap.Error(err))
	}
	return ts, nil
}

// Evaluate loads the reference ranges of the patient's species and size and flags the
// exam's out-of-range measurements. The exam is modified in place; the caller saves it.
func (c *Catalog) Evaluate(ctx context.Context, exam *models.Exam, patient *models.Patient) ([]Evaluation, error) {
	refs, err := c.store.ListReferenceValues(ctx, models.ReferenceFilter{Species: patient.Species, Size: patient.Size})
	if err != nil {
		return nil, fmt.Errorf("list reference values: %w", err)
	}
	return Evaluate(exam, patient, refs), nil
}

// IndexedCount returns the number of templates in the search index.
func (c *Catalog) IndexedCount() (uint64, error) {
	return c.index.DocCount()
}
