// Package backup exports and restores every record as a single, optionally encrypted, JSON file.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/models"
)

// ErrInvalid is returned when a backup file cannot be parsed or holds invalid records.
var ErrInvalid = errors.New("backup: invalid backup")

// Store is the bulk side of the record store.
type Store interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	ReplaceAll(ctx context.Context, snap *models.Snapshot) error
}

// Service creates and restores backups.
type Service struct {
	store  Store
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a backup Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export returns a snapshot of every record. With a passphrase the snapshot is encrypted
// into an envelope; without one it is plain indented JSON.
func (s *Service) Export(ctx context.Context, passphrase string) ([]byte, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if passphrase == "" {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}
		s.logger.Info("backup exported", zap.Bool("encrypted", false), zap.Int("exams", len(snap.Exams)))
		return data, nil
	}
	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	data, err := Encrypt(plain, passphrase)
	if err != nil {
		return nil, err
	}
	s.logger.Info("backup exported", zap.Bool("encrypted", true), zap.Int("exams", len(snap.Exams)))
	return data, nil
}

// Import replaces every record with the backup in data. Encrypted backups need the
// passphrase they were exported with. Nothing is changed when decoding fails.
func (s *Service) Import(ctx context.Context, data []byte, passphrase string) (*models.Snapshot, error) {
	snap, err := Decode(data, passphrase)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceAll(ctx, snap); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	s.logger.Info("backup restored",
		zap.Int("patients", len(snap.Patients)),
		zap.Int("exams", len(snap.Exams)),
		zap.Int("templates", len(snap.Templates)),
		zap.Int("reference_values", len(snap.ReferenceValues)),
	)
	return snap, nil
}

// Decode parses a backup file, decrypting it when it is an envelope.
func Decode(data []byte, passphrase string) (*models.Snapshot, error) {
	plain := data
	if IsEncrypted(data) {
		var err error
		if plain, err = Decrypt(data, passphrase); err != nil {
			return nil, err
		}
	}
	var snap models.Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, fmt.Errorf("%w: parse snapshot: %v", ErrInvalid, err)
	}
	for i := range snap.Patients {
		if err := snap.Patients[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: patient %s: %v", ErrInvalid, snap.Patients[i].ID, err)
		}
	}
	for i := range snap.Templates {
		if err := snap.Templates[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: template %s: %v", ErrInvalid, snap.Templates[i].ID, err)
		}
	}
	for i := range snap.ReferenceValues {
		if err := snap.ReferenceValues[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: reference value %s: %v", ErrInvalid, snap.ReferenceValues[i].ID, err)
		}
	}
	return &snap, nil
}
