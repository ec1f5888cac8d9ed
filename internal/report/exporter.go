package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/ecolaudo/internal/fileid"
	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/storage"
)

// Export failures for a missing record. Both also match storage.ErrNotFound.
var (
	ErrExamNotFound    = errors.New("exam not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// notFound tags err with kind when the store reported a missing record.
func notFound(err, kind error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return err
}

// Store is the read side of the record store needed for an export.
type Store interface {
	GetExam(ctx context.Context, id string) (*models.Exam, error)
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	GetSettings(ctx context.Context) (*models.Settings, error)
}

// FileWriter replaces a whole file.
type FileWriter interface {
	WriteFile(path string, data []byte) error
}

// Artifact is a written report.
type Artifact struct {
	ExamID            string `json:"exam_id"`
	Path              string `json:"path"`
	SuggestedFilename string `json:"suggested_filename"`
	Size              int    `json:"size"`
	Checksum          string `json:"checksum"`
	Data              []byte `json:"-"`
}

// Exporter loads an exam, assembles its report and writes it under the reports directory.
type Exporter struct {
	store      Store
	assembler  *Assembler
	files      FileWriter
	reportsDir string
	workers    int
	logger     *zap.Logger
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithExportLogger sets the exporter's logger.
func WithExportLogger(l *zap.Logger) ExporterOption {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWorkers bounds how many exports ExportMany runs at once.
func WithWorkers(n int) ExporterOption {
	return func(e *Exporter) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewExporter returns an Exporter writing into reportsDir.
func NewExporter(store Store, assembler *Assembler, files FileWriter, reportsDir string, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		store:      store,
		assembler:  assembler,
		files:      files,
		reportsDir: reportsDir,
		workers:    1,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export writes the report of examID to <reportsDir>/laudo_<examID>.docx, replacing any
// previous export. It fails with ErrExamNotFound or ErrPatientNotFound (both wrapping
// storage.ErrNotFound) when a record does not exist, and then writes nothing.
func (e *Exporter) Export(ctx context.Context, examID string) (*Artifact, error) {
	exam, err := e.store.GetExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", notFound(err, ErrExamNotFound))
	}

	var (
		patient  *models.Patient
		settings *models.Settings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := e.store.GetPatient(gctx, exam.PatientID)
		if err != nil {
			return fmt.Errorf("load patient: %w", notFound(err, ErrPatientNotFound))
		}
		patient = p
		return nil
	})
	g.Go(func() error {
		s, err := e.store.GetSettings(gctx)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		settings = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc, err := e.assembler.Assemble(exam, patient, settings)
	if err != nil {
		return nil, err
	}
	data, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize report: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := fileid.ReportPath(e.reportsDir, exam.ID)
	if err := e.files.WriteFile(path, data); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	e.logger.Info("report exported",
		zap.String("exam_id", exam.ID),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return &Artifact{
		ExamID:            exam.ID,
		Path:              path,
		SuggestedFilename: fileid.SuggestedFilename(patient.Name, exam.ExamDate),
		Size:              len(data),
		Checksum:          fileid.ContentHash(data),
		Data:              data,
	}, nil
}

// ExportMany exports each exam independently, at most the configured number at once.
// Results keep the order of examIDs; the first failure cancels the remaining exports.
func (e *Exporter) ExportMany(ctx context.Context, examIDs []string) ([]*Artifact, error) {
	out := make([]*Artifact, len(examIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, id := range examIDs {
		i, id := i, id
		g.Go(func() error {
			a, err := e.Export(gctx, id)
			if err != nil {
				return fmt.Errorf("export %s: %w", id, err)
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
