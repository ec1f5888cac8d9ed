package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Store.Counts(r.Context())
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"patients":         counts.Patients,
		"exams":            counts.Exams,
		"templates":        counts.Templates,
		"reference_values": counts.ReferenceValues,
	}
	if s.Catalog != nil {
		if n, err := s.Catalog.IndexedCount(); err == nil {
			resp["indexed_templates"] = n
		}
	}
	if s.Cache != nil {
		resp["cached_files"] = s.Cache.Len()
	}

	st := s.config.Storage
	configInfo := map[string]interface{}{
		"database_path":    st.DatabasePath,
		"bleve_index_path": st.BleveIndexPath,
		"images_dir":       st.ImagesDir,
		"reports_dir":      st.ReportsDir,
		"letterheads_dir":  st.LetterheadsDir,
		"report_title":     s.config.Report.Title,
	}
	if s.Watch != nil {
		configInfo["watched_directories"] = s.Watch.Directories()
	}
	if usage, err := s.Files.Usage(append([]string{st.DatabasePath, st.BleveIndexPath}, st.UploadDirs()...)...); err == nil {
		resp["disk_usage_bytes"] = usage
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

// decodeJSON decodes the request body into v, answering 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondStoreError maps storage errors: missing records are 404, anything else 500.
func (s *Server) respondStoreError(w http.ResponseWriter, err error, notFoundMessage string) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	s.logger.Error("storage failure", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondMessage(w http.ResponseWriter, message string) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
