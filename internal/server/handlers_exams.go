package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/fileid"
	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/report"
	"github.com/hyperjump/ecolaudo/internal/storage"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func (s *Server) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := s.Store.ListExams(r.Context(), r.URL.Query().Get("patient_id"))
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	if exams == nil {
		exams = []*models.Exam{}
	}
	s.respondJSON(w, http.StatusOK, exams)
}

func (s *Server) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var in models.ExamInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	if in.PatientID == "" {
		s.respondError(w, http.StatusBadRequest, "patient_id is required")
		return
	}
	if _, err := s.Store.GetPatient(r.Context(), in.PatientID); err != nil {
		s.respondStoreError(w, err, "Patient not found")
		return
	}
	exam := &models.Exam{PatientID: in.PatientID, ExamWeight: in.ExamWeight, OrgansData: []models.OrganData{}}
	if in.ExamDate != nil {
		exam.ExamDate = *in.ExamDate
	}
	if err := s.Store.CreateExam(r.Context(), exam); err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	if exam.Images == nil {
		exam.Images = []models.ExamImage{}
	}
	s.logger.Debug("exam created", zap.String("exam_id", exam.ID), zap.String("patient_id", exam.PatientID))
	s.respondJSON(w, http.StatusOK, exam)
}

func (s *Server) handleGetExam(w http.ResponseWriter, r *http.Request) {
	exam, err := s.Store.GetExam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	s.respondJSON(w, http.StatusOK, exam)
}

func (s *Server) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	var upd models.ExamUpdate
	if !s.decodeJSON(w, r, &upd) {
		return
	}
	exam, err := s.Store.GetExam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	upd.Apply(exam)
	if err := exam.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.UpdateExam(r.Context(), exam); err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	s.respondJSON(w, http.StatusOK, exam)
}

func (s *Server) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exam, err := s.Store.GetExam(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	if err := s.Store.DeleteExam(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	for _, img := range exam.Images {
		s.removeUpload(img.Path)
	}
	s.removeUpload(fileid.ReportPath(s.config.Storage.ReportsDir, id))
	s.respondMessage(w, "Exam deleted successfully")
}

// readUpload returns the bytes and client file name of the multipart "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	limit := s.config.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return nil, "", false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return nil, "", false
	}
	return data, header.Filename, true
}

// removeUpload deletes a stored file and drops it from the cache; failures are logged.
func (s *Server) removeUpload(path string) {
	if err := s.Files.Remove(path); err != nil {
		s.logger.Warn("failed to remove file", zap.String("path", path), zap.Error(err))
	}
	if s.Cache != nil {
		s.Cache.Invalidate(path)
	}
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "id")
	if _, err := s.Store.GetExam(r.Context(), examID); err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	data, original, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	id, name := fileid.NewImageName(original)
	img := &models.ExamImage{ID: id, Filename: name, Path: filepath.Join(s.config.Storage.ImagesDir, name)}
	organ := r.URL.Query().Get("organ")
	if organ == "" {
		organ = r.FormValue("organ")
	}
	if organ != "" {
		img.Organ = &organ
	}

	if err := s.Files.WriteFile(img.Path, data); err != nil {
		s.logger.Error("failed to store image", zap.String("path", img.Path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store image")
		return
	}
	if err := s.Store.AddExamImage(r.Context(), examID, img); err != nil {
		s.removeUpload(img.Path)
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	s.logger.Debug("image uploaded", zap.String("exam_id", examID), zap.String("image_id", img.ID), zap.Int("bytes", len(data)))
	s.respondJSON(w, http.StatusOK, img)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	img, err := s.Store.GetImage(r.Context(), chi.URLParam(r, "imageID"))
	if err != nil {
		s.respondStoreError(w, err, "Image not found")
		return
	}
	data, err := s.Files.ReadFile(img.Path)
	if err != nil {
		s.respondStoreError(w, err, "Image file not found")
		return
	}
	http.ServeContent(w, r, img.Filename, time.Time{}, bytes.NewReader(data))
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	examID, imageID := chi.URLParam(r, "id"), chi.URLParam(r, "imageID")
	if _, err := s.Store.GetExam(r.Context(), examID); err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	img, err := s.Store.RemoveExamImage(r.Context(), examID, imageID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// already gone
	case err != nil:
		s.respondStoreError(w, err, "")
		return
	default:
		s.removeUpload(img.Path)
	}
	s.respondMessage(w, "Image deleted successfully")
}

func (s *Server) handleEvaluateExam(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	exam, err := s.Store.GetExam(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	patient, err := s.Store.GetPatient(ctx, exam.PatientID)
	if err != nil {
		s.respondStoreError(w, err, "Patient not found")
		return
	}
	evals, err := s.Catalog.Evaluate(ctx, exam, patient)
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	if err := s.Store.UpdateExam(ctx, exam); err != nil {
		s.respondStoreError(w, err, "Exam not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"exam": exam, "evaluations": evals})
}

func (s *Server) handleExportExam(w http.ResponseWriter, r *http.Request) {
	art, err := s.Exporter.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, report.ErrPatientNotFound):
			s.respondError(w, http.StatusNotFound, "Patient not found")
			return
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "Exam not found")
			return
		}
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h := w.Header()
	h.Set("Content-Type", docxContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.SuggestedFilename}))
	h.Set("Content-Length", fmt.Sprint(art.Size))
	h.Set("ETag", `"`+art.Checksum+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}
