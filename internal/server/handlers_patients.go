package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/models"
)

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.Store.ListPatients(r.Context())
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	if patients == nil {
		patients = []*models.Patient{}
	}
	s.respondJSON(w, http.StatusOK, patients)
}

func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var p models.Patient
	if !s.decodeJSON(w, r, &p) {
		return
	}
	p.ID = ""
	if err := p.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.CreatePatient(r.Context(), &p); err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	s.logger.Debug("patient created", zap.String("patient_id", p.ID))
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.GetPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "Patient not found")
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var p models.Patient
	if !s.decodeJSON(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := p.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.UpdatePatient(r.Context(), &p); err != nil {
		s.respondStoreError(w, err, "Patient not found")
		return
	}
	updated, err := s.Store.GetPatient(r.Context(), p.ID)
	if err != nil {
		s.respondStoreError(w, err, "Patient not found")
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DeletePatient(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, err, "Patient not found")
		return
	}
	s.respondMessage(w, "Patient deleted successfully")
}
