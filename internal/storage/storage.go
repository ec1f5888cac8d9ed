// Package storage defines the persistence interface for patients, exams, catalog entries and settings.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/ecolaudo/internal/models"
)

// ErrNotFound is returned (wrapped with the record kind and id) when a record does not exist.
var ErrNotFound = errors.New("not found")

// Counts holds the number of records per collection.
type Counts struct {
	Patients        int64 `json:"patients"`
	Exams           int64 `json:"exams"`
	Templates       int64 `json:"templates"`
	ReferenceValues int64 `json:"reference_values"`
}

// Storage defines record persistence operations.
type Storage interface {
	// Patient operations
	CreatePatient(ctx context.Context, p *models.Patient) error
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	UpdatePatient(ctx context.Context, p *models.Patient) error
	DeletePatient(ctx context.Context, id string) error
	ListPatients(ctx context.Context) ([]*models.Patient, error)

	// Exam operations; images are owned by their exam
	CreateExam(ctx context.Context, e *models.Exam) error
	GetExam(ctx context.Context, id string) (*models.Exam, error)
	UpdateExam(ctx context.Context, e *models.Exam) error
	DeleteExam(ctx context.Context, id string) error
	ListExams(ctx context.Context, patientID string) ([]*models.Exam, error)
	AddExamImage(ctx context.Context, examID string, img *models.ExamImage) error
	RemoveExamImage(ctx context.Context, examID, imageID string) (*models.ExamImage, error)
	GetImage(ctx context.Context, imageID string) (*models.ExamImage, error)

	// Catalog operations
	CreateTemplate(ctx context.Context, t *models.TemplateText) error
	GetTemplate(ctx context.Context, id string) (*models.TemplateText, error)
	UpdateTemplate(ctx context.Context, t *models.TemplateText) error
	DeleteTemplate(ctx context.Context, id string) error
	ListTemplates(ctx context.Context, organ string) ([]*models.TemplateText, error)
	BatchCreateTemplates(ctx context.Context, ts []*models.TemplateText) error

	CreateReferenceValue(ctx context.Context, r *models.ReferenceValue) error
	UpdateReferenceValue(ctx context.Context, r *models.ReferenceValue) error
	DeleteReferenceValue(ctx context.Context, id string) error
	ListReferenceValues(ctx context.Context, f models.ReferenceFilter) ([]*models.ReferenceValue, error)
	BatchCreateReferenceValues(ctx context.Context, rs []*models.ReferenceValue) error

	// Settings singleton; GetSettings returns defaults when none are saved
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error

	// Bulk
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	ReplaceAll(ctx context.Context, snap *models.Snapshot) error
	Counts(ctx context.Context) (Counts, error)

	Close() error
}
