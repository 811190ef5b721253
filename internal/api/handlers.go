package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sitebrain/sitebrain/internal/log"
	"github.com/sitebrain/sitebrain/internal/pipeline"
)

const maxQueryBodyBytes = 64 << 10

type queryRequest struct {
	Question     string `json:"question"`
	CustomerData string `json:"customer_data,omitempty"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

type uploadResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// queryHandler serves POST /api/v1/query.
type queryHandler struct {
	service *pipeline.Service
	logger  log.Logger
}

func (h *queryHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	body := http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required", h.logger)
		return
	}

	answer, err := h.service.Ask(r.Context(), pipeline.Question{
		Text:         req.Question,
		CustomerData: req.CustomerData,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
	}, h.logger)
}

func (h *queryHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error(), h.logger)
	case errors.Is(err, pipeline.ErrRetrieval):
		writeError(w, http.StatusBadGateway, "retrieval_failed", err.Error(), h.logger)
	case errors.Is(err, pipeline.ErrGeneration):
		writeError(w, http.StatusBadGateway, "generation_failed", err.Error(), h.logger)
	default:
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "query failed", h.logger)
	}
}

// documentHandler serves the /api/v1/documents routes.
type documentHandler struct {
	service       *pipeline.Service
	maxUploadSize int64
	logger        log.Logger
}

func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "multipart form with a file field required", h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "file field is required", h.logger)
		return
	}
	defer func() { _ = file.Close() }()

	if err := h.service.SaveUpload(r.Context(), header.Filename, file); err != nil {
		switch {
		case errors.Is(err, pipeline.ErrNotInitialized):
			writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error(), h.logger)
		case errors.Is(err, pipeline.ErrIngestion):
			writeError(w, http.StatusBadGateway, "ingest_failed", err.Error(), h.logger)
		default:
			writeError(w, http.StatusBadRequest, "upload_rejected", err.Error(), h.logger)
		}
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Name:   header.Filename,
		Status: "indexed",
	}, h.logger)
}

func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.ListDocuments(r.Context())
	if err != nil {
		h.logger.Error("listing documents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "listing documents failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs}, h.logger)
}

func (h *documentHandler) remove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing_name", "document name is required", h.logger)
		return
	}

	err := h.service.DeleteDocument(r.Context(), name)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, pipeline.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), h.logger)
	default:
		h.logger.Error("deleting document", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "deleting document failed", h.logger)
	}
}

// statusHandler serves GET /health and GET /api/v1/stats.
type statusHandler struct {
	service *pipeline.Service
	logger  log.Logger
}

func (h *statusHandler) health(w http.ResponseWriter, r *http.Request) {
	health := h.service.CheckHealth(r.Context())

	status := http.StatusOK
	if !health.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health, h.logger)
}

func (h *statusHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.logger.Error("collecting stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "collecting stats failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, stats, h.logger)
}
