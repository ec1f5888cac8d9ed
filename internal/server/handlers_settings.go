package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/backup"
	"github.com/hyperjump/ecolaudo/internal/fileid"
	"github.com/hyperjump/ecolaudo/internal/models"
)

const passphraseHeader = "X-Backup-Passphrase"

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Store.GetSettings(r.Context())
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if !s.decodeJSON(w, r, &settings) {
		return
	}
	settings.ID = models.SettingsID
	previous, err := s.Store.GetSettings(r.Context())
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	if err := s.Store.SaveSettings(r.Context(), &settings); err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	if s.Cache != nil && previous.LetterheadPath != settings.LetterheadPath {
		s.Cache.Invalidate(previous.LetterheadPath)
		s.Cache.Invalidate(settings.LetterheadPath)
	}
	s.respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUploadLetterhead(w http.ResponseWriter, r *http.Request) {
	data, original, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	if strings.ToLower(filepath.Ext(original)) != ".docx" {
		s.respondError(w, http.StatusBadRequest, "letterhead must be a .docx file")
		return
	}
	name := fileid.NewLetterheadName(original)
	path := filepath.Join(s.config.Storage.LetterheadsDir, name)
	if err := s.Files.WriteFile(path, data); err != nil {
		s.logger.Error("failed to store letterhead", zap.String("path", path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store letterhead")
		return
	}
	if s.Cache != nil {
		s.Cache.Invalidate(path)
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": path, "filename": name})
}

func (s *Server) handleInitializeDefaults(w http.ResponseWriter, r *http.Request) {
	res, err := s.Catalog.Seed(r.Context())
	if err != nil {
		s.logger.Error("initialize defaults failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.Seeded {
		s.respondMessage(w, "Defaults already initialized")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Default data initialized successfully",
		"templates":        res.Templates,
		"reference_values": res.ReferenceValues,
	})
}

func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	passphrase := r.Header.Get(passphraseHeader)
	data, err := s.Backup.Export(r.Context(), passphrase)
	if err != nil {
		s.logger.Error("backup export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	name := fmt.Sprintf("ecolaudo_backup_%s.json", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	data, _, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	passphrase := r.Header.Get(passphraseHeader)
	if passphrase == "" {
		passphrase = r.FormValue("passphrase")
	}
	snap, err := s.Backup.Import(r.Context(), data, passphrase)
	switch {
	case errors.Is(err, backup.ErrPassphraseRequired), errors.Is(err, backup.ErrDecrypt):
		s.respondError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, backup.ErrInvalid):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("backup restore failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.Catalog.Reindex(r.Context()); err != nil {
		s.logger.Warn("reindex after restore failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":          "Backup restored successfully",
		"patients":         len(snap.Patients),
		"exams":            len(snap.Exams),
		"templates":        len(snap.Templates),
		"reference_values": len(snap.ReferenceValues),
	})
}
