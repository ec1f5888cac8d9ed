package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/ecolaudo/internal/models"
)

const patientColumns = `id, name, species, breed, weight, size, sex, is_neutered, owner_name, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*models.Patient, error) {
	var p models.Patient
	err := row.Scan(&p.ID, &p.Name, &p.Species, &p.Breed, &p.Weight, &p.Size, &p.Sex, &p.IsNeutered, &p.OwnerName, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func insertPatient(ctx context.Context, ex execer, p *models.Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO patients (`+patientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Species, p.Breed, p.Weight, p.Size, p.Sex, p.IsNeutered, p.OwnerName, p.CreatedAt,
	)
	return err
}

// CreatePatient inserts a patient, assigning an id and creation time when unset.
func (s *SQLiteStorage) CreatePatient(ctx context.Context, p *models.Patient) error {
	return insertPatient(ctx, s.db, p)
}

// GetPatient returns a patient by ID.
func (s *SQLiteStorage) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	p, err := scanPatient(s.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, notFound("patient", id)
	}
	return p, err
}

// UpdatePatient replaces the fields of an existing patient.
func (s *SQLiteStorage) UpdatePatient(ctx context.Context, p *models.Patient) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE patients SET name = ?, species = ?, breed = ?, weight = ?, size = ?, sex = ?,
		 is_neutered = ?, owner_name = ? WHERE id = ?`,
		p.Name, p.Species, p.Breed, p.Weight, p.Size, p.Sex, p.IsNeutered, p.OwnerName, p.ID,
	)
	if err != nil {
		return err
	}
	return affected(result, "patient", p.ID)
}

// DeletePatient removes a patient by ID. Exams referencing it are left in place.
func (s *SQLiteStorage) DeletePatient(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result, "patient", id)
}

// ListPatients returns all patients, newest first.
func (s *SQLiteStorage) ListPatients(ctx context.Context) ([]*models.Patient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}
