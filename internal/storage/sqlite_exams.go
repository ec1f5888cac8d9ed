package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/ecolaudo/internal/models"
)

const examColumns = `id, patient_id, exam_date, exam_weight, organs_data, final_report, created_at`

func scanExam(row rowScanner) (*models.Exam, error) {
	var (
		e         models.Exam
		weight    sql.NullFloat64
		organsRaw string
	)
	if err := row.Scan(&e.ID, &e.PatientID, &e.ExamDate, &weight, &organsRaw, &e.FinalReport, &e.CreatedAt); err != nil {
		return nil, err
	}
	if weight.Valid {
		w := weight.Float64
		e.ExamWeight = &w
	}
	if organsRaw != "" {
		if err := json.Unmarshal([]byte(organsRaw), &e.OrgansData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal organs_data of exam %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func marshalOrgans(organs []models.OrganData) (string, error) {
	if organs == nil {
		organs = []models.OrganData{}
	}
	b, err := json.Marshal(organs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal organs_data: %w", err)
	}
	return string(b), nil
}

func nullableWeight(w *float64) any {
	if w == nil {
		return nil
	}
	return *w
}

func insertExam(ctx context.Context, ex execer, e *models.Exam) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.ExamDate.IsZero() {
		e.ExamDate = now
	}
	organs, err := marshalOrgans(e.OrgansData)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx,
		`INSERT INTO exams (`+examColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PatientID, e.ExamDate, nullableWeight(e.ExamWeight), organs, e.FinalReport, e.CreatedAt,
	); err != nil {
		return err
	}
	for i := range e.Images {
		if err := insertImage(ctx, ex, e.ID, i, &e.Images[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertImage(ctx context.Context, ex execer, examID string, position int, img *models.ExamImage) error {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO exam_images (id, exam_id, position, filename, organ, path) VALUES (?, ?, ?, ?, ?, ?)`,
		img.ID, examID, position, img.Filename, img.Organ, img.Path,
	)
	return err
}

// CreateExam inserts an exam and its images.
func (s *SQLiteStorage) CreateExam(ctx context.Context, e *models.Exam) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertExam(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

// GetExam returns an exam by ID with its images in upload order.
func (s *SQLiteStorage) GetExam(ctx context.Context, id string) (*models.Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("exam", id)
	}
	if err != nil {
		return nil, err
	}
	if e.Images, err = s.examImages(ctx, id); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStorage) examImages(ctx context.Context, examID string) ([]models.ExamImage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, organ, path FROM exam_images WHERE exam_id = ? ORDER BY position`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []models.ExamImage{}
	for rows.Next() {
		var (
			img   models.ExamImage
			organ sql.NullString
		)
		if err := rows.Scan(&img.ID, &img.Filename, &organ, &img.Path); err != nil {
			return nil, err
		}
		if organ.Valid {
			o := organ.String
			img.Organ = &o
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// UpdateExam writes the exam's weight, organs and final report. Images are managed separately.
func (s *SQLiteStorage) UpdateExam(ctx context.Context, e *models.Exam) error {
	organs, err := marshalOrgans(e.OrgansData)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE exams SET exam_weight = ?, organs_data = ?, final_report = ? WHERE id = ?`,
		nullableWeight(e.ExamWeight), organs, e.FinalReport, e.ID,
	)
	if err != nil {
		return err
	}
	return affected(result, "exam", e.ID)
}

// DeleteExam removes an exam; its image records go with it.
func (s *SQLiteStorage) DeleteExam(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result, "exam", id)
}

// ListExams returns exams, optionally filtered by patient, newest first.
func (s *SQLiteStorage) ListExams(ctx context.Context, patientID string) ([]*models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams`
	var args []any
	if patientID != "" {
		query += ` WHERE patient_id = ?`
		args = append(args, patientID)
	}
	query += ` ORDER BY exam_date DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var exams []*models.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		exams = append(exams, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, e := range exams {
		if e.Images, err = s.examImages(ctx, e.ID); err != nil {
			return nil, err
		}
	}
	return exams, nil
}

// AddExamImage appends an image to an exam.
func (s *SQLiteStorage) AddExamImage(ctx context.Context, examID string, img *models.ExamImage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM exam_images WHERE exam_id = ?`, examID,
	).Scan(&next)
	if err != nil {
		return err
	}
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams WHERE id = ?`, examID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return notFound("exam", examID)
	}
	if err := insertImage(ctx, tx, examID, next, img); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveExamImage deletes an image record of an exam and returns it.
func (s *SQLiteStorage) RemoveExamImage(ctx context.Context, examID, imageID string) (*models.ExamImage, error) {
	img, err := s.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM exam_images WHERE id = ? AND exam_id = ?`, imageID, examID)
	if err != nil {
		return nil, err
	}
	if err := affected(result, "image", imageID); err != nil {
		return nil, err
	}
	return img, nil
}

// GetImage returns an image record by ID.
func (s *SQLiteStorage) GetImage(ctx context.Context, imageID string) (*models.ExamImage, error) {
	var (
		img   models.ExamImage
		organ sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, organ, path FROM exam_images WHERE id = ?`, imageID,
	).Scan(&img.ID, &img.Filename, &organ, &img.Path)
	if err == sql.ErrNoRows {
		return nil, notFound("image", imageID)
	}
	if err != nil {
		return nil, err
	}
	if organ.Valid {
		o := organ.String
		img.Organ = &o
	}
	return &img, nil
}
