package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ecolaudo/internal/models"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		species TEXT NOT NULL,
		breed TEXT NOT NULL DEFAULT '',
		weight REAL NOT NULL DEFAULT 0,
		size TEXT NOT NULL,
		sex TEXT NOT NULL DEFAULT '',
		is_neutered INTEGER NOT NULL DEFAULT 0,
		owner_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_patients_created_at ON patients(created_at);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		exam_date TIMESTAMP NOT NULL,
		exam_weight REAL,
		organs_data TEXT NOT NULL DEFAULT '[]',
		final_report TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_exams_patient_id ON exams(patient_id);

	CREATE TABLE IF NOT EXISTS exam_images (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		filename TEXT NOT NULL,
		organ TEXT,
		path TEXT NOT NULL,
		FOREIGN KEY (exam_id) REFERENCES exams(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_exam_images_exam ON exam_images(exam_id, position);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		organ TEXT NOT NULL,
		category TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		bold INTEGER NOT NULL DEFAULT 0,
		italic INTEGER NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_templates_organ ON templates(organ, sort_order);

	CREATE TABLE IF NOT EXISTS reference_values (
		id TEXT PRIMARY KEY,
		organ TEXT NOT NULL,
		measurement_type TEXT NOT NULL,
		species TEXT NOT NULL,
		size TEXT NOT NULL,
		min_value REAL NOT NULL,
		max_value REAL NOT NULL,
		unit TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reference_values_key ON reference_values(organ, species, size);

	CREATE TABLE IF NOT EXISTS settings (
		id TEXT PRIMARY KEY,
		letterhead_path TEXT NOT NULL DEFAULT '',
		clinic_name TEXT NOT NULL DEFAULT '',
		clinic_address TEXT NOT NULL DEFAULT '',
		veterinarian_name TEXT NOT NULL DEFAULT '',
		crmv TEXT NOT NULL DEFAULT ''
	);
	`
	_, err := db.Exec(schema)
	return err
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// affected maps a zero-row write to ErrNotFound.
func affected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// GetSettings returns the settings singleton, or defaults when none are saved.
func (s *SQLiteStorage) GetSettings(ctx context.Context) (*models.Settings, error) {
	st := models.DefaultSettings()
	err := s.db.QueryRowContext(ctx,
		`SELECT letterhead_path, clinic_name, clinic_address, veterinarian_name, crmv
		 FROM settings WHERE id = ?`, models.SettingsID,
	).Scan(&st.LetterheadPath, &st.ClinicName, &st.ClinicAddress, &st.VeterinarianName, &st.CRMV)
	if err == sql.ErrNoRows {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// SaveSettings upserts the settings singleton.
func (s *SQLiteStorage) SaveSettings(ctx context.Context, st *models.Settings) error {
	return saveSettings(ctx, s.db, st)
}

func saveSettings(ctx context.Context, ex execer, st *models.Settings) error {
	st.ID = models.SettingsID
	_, err := ex.ExecContext(ctx,
		`INSERT INTO settings (id, letterhead_path, clinic_name, clinic_address, veterinarian_name, crmv)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   letterhead_path = excluded.letterhead_path,
		   clinic_name = excluded.clinic_name,
		   clinic_address = excluded.clinic_address,
		   veterinarian_name = excluded.veterinarian_name,
		   crmv = excluded.crmv`,
		st.ID, st.LetterheadPath, st.ClinicName, st.ClinicAddress, st.VeterinarianName, st.CRMV,
	)
	return err
}

// Snapshot returns a copy of every collection.
func (s *SQLiteStorage) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{Version: SnapshotVersion, ExportedAt: time.Now().UTC().Format(time.RFC3339)}

	patients, err := s.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	exams, err := s.ListExams(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	templates, err := s.ListTemplates(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	refs, err := s.ListReferenceValues(ctx, models.ReferenceFilter{})
	if err != nil {
		return nil, fmt.Errorf("list reference values: %w", err)
	}
	if snap.Settings, err = s.GetSettings(ctx); err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	for _, p := range patients {
		snap.Patients = append(snap.Patients, *p)
	}
	for _, e := range exams {
		snap.Exams = append(snap.Exams, *e)
	}
	for _, t := range templates {
		snap.Templates = append(snap.Templates, *t)
	}
	for _, r := range refs {
		snap.ReferenceValues = append(snap.ReferenceValues, *r)
	}
	return snap, nil
}

// ReplaceAll deletes every record and inserts the snapshot's records in one transaction.
func (s *SQLiteStorage) ReplaceAll(ctx context.Context, snap *models.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"exam_images", "exams", "patients", "templates", "reference_values", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for i := range snap.Patients {
		if err := insertPatient(ctx, tx, &snap.Patients[i]); err != nil {
			return fmt.Errorf("restore patient %s: %w", snap.Patients[i].ID, err)
		}
	}
	for i := range snap.Exams {
		if err := insertExam(ctx, tx, &snap.Exams[i]); err != nil {
			return fmt.Errorf("restore exam %s: %w", snap.Exams[i].ID, err)
		}
	}
	for i := range snap.Templates {
		if err := insertTemplate(ctx, tx, &snap.Templates[i]); err != nil {
			return fmt.Errorf("restore template %s: %w", snap.Templates[i].ID, err)
		}
	}
	for i := range snap.ReferenceValues {
		if err := insertReferenceValue(ctx, tx, &snap.ReferenceValues[i]); err != nil {
			return fmt.Errorf("restore reference value %s: %w", snap.ReferenceValues[i].ID, err)
		}
	}
	if snap.Settings != nil {
		if err := saveSettings(ctx, tx, snap.Settings); err != nil {
			return fmt.Errorf("restore settings: %w", err)
		}
	}
	return tx.Commit()
}

// Counts returns the number of records per collection.
func (s *SQLiteStorage) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int64
	}{
		{"patients", &c.Patients},
		{"exams", &c.Exams},
		{"templates", &c.Templates},
		{"reference_values", &c.ReferenceValues},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", q.table, err)
		}
	}
	return c, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
