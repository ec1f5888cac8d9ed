package server

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/catalog"
	"github.com/hyperjump/ecolaudo/internal/extract"
	"github.com/hyperjump/ecolaudo/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Store.ListTemplates(r.Context(), r.URL.Query().Get("organ"))
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	if ts == nil {
		ts = []*models.TemplateText{}
	}
	s.respondJSON(w, http.StatusOK, ts)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.TemplateText
	if !s.decodeJSON(w, r, &t) {
		return
	}
	t.ID = ""
	if err := t.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.CreateTemplate(r.Context(), &t); err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	s.Catalog.Indexed(r.Context(), &t)
	s.respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var t models.TemplateText
	if !s.decodeJSON(w, r, &t) {
		return
	}
	t.ID = chi.URLParam(r, "id")
	if err := t.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.UpdateTemplate(r.Context(), &t); err != nil {
		s.respondStoreError(w, err, "Template not found")
		return
	}
	s.Catalog.Indexed(r.Context(), &t)
	s.respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.DeleteTemplate(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "Template not found")
		return
	}
	s.Catalog.Unindexed(r.Context(), id)
	s.respondMessage(w, "Template deleted successfully")
}

func (s *Server) handleSearchTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := catalog.SearchOptions{
		Organ:    q.Get("organ"),
		Category: q.Get("category"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = n
	}
	if v := q.Get("fuzzy"); v != "" {
		fuzzy, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "fuzzy must be a boolean")
			return
		}
		opts.Fuzzy = fuzzy
	}

	ts, err := s.Catalog.Search(r.Context(), q.Get("q"), opts)
	if err != nil {
		s.logger.Error("template search failed", zap.String("query", q.Get("q")), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ts == nil {
		ts = []*models.TemplateText{}
	}
	s.respondJSON(w, http.StatusOK, ts)
}

func (s *Server) handleSuggestTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	c, err := s.Catalog.Suggest(r.Context(), q)
	if err != nil {
		s.logger.Error("template suggest failed", zap.String("query", q), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleImportTemplates(w http.ResponseWriter, r *http.Request) {
	data, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !extract.Supported(ext) {
		s.respondError(w, http.StatusBadRequest, "unsupported file type "+ext)
		return
	}
	organ, category := r.FormValue("organ"), r.FormValue("category")
	if category == "" {
		category = models.CategoryNormal
	}
	paragraphs, err := s.Extractor.Paragraphs(data, ext)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ts, err := s.Catalog.ImportTemplates(r.Context(), paragraphs, organ, category)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("templates imported", zap.String("file", name), zap.String("organ", organ), zap.Int("count", len(ts)))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"imported": len(ts), "templates": ts})
}

func referenceFilter(r *http.Request) models.ReferenceFilter {
	q := r.URL.Query()
	return models.ReferenceFilter{Organ: q.Get("organ"), Species: q.Get("species"), Size: q.Get("size")}
}

func (s *Server) handleListReferenceValues(w http.ResponseWriter, r *http.Request) {
	refs, err := s.Store.ListReferenceValues(r.Context(), referenceFilter(r))
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	if refs == nil {
		refs = []*models.ReferenceValue{}
	}
	s.respondJSON(w, http.StatusOK, refs)
}

func (s *Server) handleCreateReferenceValue(w http.ResponseWriter, r *http.Request) {
	var ref models.ReferenceValue
	if !s.decodeJSON(w, r, &ref) {
		return
	}
	ref.ID = ""
	if err := ref.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.CreateReferenceValue(r.Context(), &ref); err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, ref)
}

func (s *Server) handleUpdateReferenceValue(w http.ResponseWriter, r *http.Request) {
	var ref models.ReferenceValue
	if !s.decodeJSON(w, r, &ref) {
		return
	}
	ref.ID = chi.URLParam(r, "id")
	if err := ref.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.UpdateReferenceValue(r.Context(), &ref); err != nil {
		s.respondStoreError(w, err, "Reference value not found")
		return
	}
	s.respondJSON(w, http.StatusOK, ref)
}

func (s *Server) handleDeleteReferenceValue(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DeleteReferenceValue(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondStoreError(w, err, "Reference value not found")
		return
	}
	s.respondMessage(w, "Reference value deleted successfully")
}

func (s *Server) handleExportReferenceValues(w http.ResponseWriter, r *http.Request) {
	refs, err := s.Store.ListReferenceValues(r.Context(), referenceFilter(r))
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	var buf bytes.Buffer
	if err := catalog.WriteReferenceValues(&buf, refs); err != nil {
		s.logger.Error("reference spreadsheet failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="valores_referencia.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImportReferenceValues(w http.ResponseWriter, r *http.Request) {
	data, _, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	refs, err := catalog.ReadReferenceValues(bytes.NewReader(data))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Store.BatchCreateReferenceValues(r.Context(), refs); err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	s.logger.Info("reference values imported", zap.Int("count", len(refs)))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"imported": len(refs)})
}
