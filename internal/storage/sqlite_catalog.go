package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/hyperjump/ecolaudo/internal/models"
)

const (
	templateColumns  = `id, organ, category, title, text, bold, italic, sort_order`
	referenceColumns = `id, organ, measurement_type, species, size, min_value, max_value, unit`
)

func scanTemplate(row rowScanner) (*models.TemplateText, error) {
	var (
		t           models.TemplateText
		title, text string
	)
	if err := row.Scan(&t.ID, &t.Organ, &t.Category, &title, &text, &t.Formatting.Bold, &t.Formatting.Italic, &t.Order); err != nil {
		return nil, err
	}
	t.Title = models.LocalizedText(title)
	t.Text = models.LocalizedText(text)
	return &t, nil
}

func insertTemplate(ctx context.Context, ex execer, t *models.TemplateText) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Organ, t.Category, string(t.Title), string(t.Text), t.Formatting.Bold, t.Formatting.Italic, t.Order,
	)
	return err
}

// CreateTemplate inserts a template text.
func (s *SQLiteStorage) CreateTemplate(ctx context.Context, t *models.TemplateText) error {
	return insertTemplate(ctx, s.db, t)
}

// GetTemplate returns a template by ID.
func (s *SQLiteStorage) GetTemplate(ctx context.Context, id string) (*models.TemplateText, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("template", id)
	}
	return t, err
}

// UpdateTemplate replaces the fields of an existing template.
func (s *SQLiteStorage) UpdateTemplate(ctx context.Context, t *models.TemplateText) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE templates SET organ = ?, category = ?, title = ?, text = ?, bold = ?, italic = ?, sort_order = ?
		 WHERE id = ?`,
		t.Organ, t.Category, string(t.Title), string(t.Text), t.Formatting.Bold, t.Formatting.Italic, t.Order, t.ID,
	)
	if err != nil {
		return err
	}
	return affected(result, "template", t.ID)
}

// DeleteTemplate removes a template by ID.
func (s *SQLiteStorage) DeleteTemplate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result, "template", id)
}

// ListTemplates returns templates ordered by their order field, optionally for one organ.
func (s *SQLiteStorage) ListTemplates(ctx context.Context, organ string) ([]*models.TemplateText, error) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	var args []any
	if organ != "" {
		query += ` WHERE organ = ?`
		args = append(args, organ)
	}
	query += ` ORDER BY sort_order, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*models.TemplateText
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// BatchCreateTemplates inserts multiple templates in a transaction.
func (s *SQLiteStorage) BatchCreateTemplates(ctx context.Context, ts []*models.TemplateText) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, t := range ts {
		if err := insertTemplate(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanReferenceValue(row rowScanner) (*models.ReferenceValue, error) {
	var r models.ReferenceValue
	if err := row.Scan(&r.ID, &r.Organ, &r.MeasurementType, &r.Species, &r.Size, &r.MinValue, &r.MaxValue, &r.Unit); err != nil {
		return nil, err
	}
	return &r, nil
}

func insertReferenceValue(ctx context.Context, ex execer, r *models.ReferenceValue) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO reference_values (`+referenceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Organ, r.MeasurementType, r.Species, r.Size, r.MinValue, r.MaxValue, r.Unit,
	)
	return err
}

// CreateReferenceValue inserts a reference range.
func (s *SQLiteStorage) CreateReferenceValue(ctx context.Context, r *models.ReferenceValue) error {
	return insertReferenceValue(ctx, s.db, r)
}

// UpdateReferenceValue replaces the fields of an existing reference range.
func (s *SQLiteStorage) UpdateReferenceValue(ctx context.Context, r *models.ReferenceValue) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reference_values SET organ = ?, measurement_type = ?, species = ?, size = ?,
		 min_value = ?, max_value = ?, unit = ? WHERE id = ?`,
		r.Organ, r.MeasurementType, r.Species, r.Size, r.MinValue, r.MaxValue, r.Unit, r.ID,
	)
	if err != nil {
		return err
	}
	return affected(result, "reference value", r.ID)
}

// DeleteReferenceValue removes a reference range by ID.
func (s *SQLiteStorage) DeleteReferenceValue(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reference_values WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result, "reference value", id)
}

// ListReferenceValues returns the reference ranges matching f.
func (s *SQLiteStorage) ListReferenceValues(ctx context.Context, f models.ReferenceFilter) ([]*models.ReferenceValue, error) {
	var (
		where []string
		args  []any
	)
	if f.Organ != "" {
		where = append(where, "organ = ?")
		args = append(args, f.Organ)
	}
	if f.Species != "" {
		where = append(where, "species = ?")
		args = append(args, f.Species)
	}
	if f.Size != "" {
		where = append(where, "size = ?")
		args = append(args, f.Size)
	}
	query := `SELECT ` + referenceColumns + ` FROM reference_values`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY organ, measurement_type, species, size, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []*models.ReferenceValue
	for rows.Next() {
		r, err := scanReferenceValue(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// BatchCreateReferenceValues inserts multiple reference ranges in a transaction.
func (s *SQLiteStorage) BatchCreateReferenceValues(ctx context.Context, rs []*models.ReferenceValue) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, r := range rs {
		if err := insertReferenceValue(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}
