package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/question-service/internal/adapter/api/middleware"
	"github.com/user/question-service/internal/adapter/metrics"
	"github.com/user/question-service/internal/domain"
	"github.com/user/question-service/internal/usecase"
)

// QuestionHandler handles HTTP requests for question CRUD.
type QuestionHandler struct {
	service *usecase.QuestionService
	logger  *slog.Logger
	metrics *metrics.APIMetrics
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(service *usecase.QuestionService, logger *slog.Logger, m *metrics.APIMetrics) *QuestionHandler {
	return &QuestionHandler{
		service: service,
		logger:  logger,
		metrics: m,
	}
}

// Create handles POST /questions.
func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in usecase.QuestionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	q, err := h.service.Create(r.Context(), middleware.UserID(r.Context()), in)
	if err != nil {
		h.countMutation("create", err)
		h.writeError(w, err)
		return
	}
	h.countMutation("create", nil)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/questions/"+q.ID)
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(q); err != nil {
		h.logger.Error("failed to encode question response", "error", err)
	}
}

// Get handles GET /questions/{id}.
func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(q); err != nil {
		h.logger.Error("failed to encode question response", "error", err)
	}
}

// Update handles PUT /questions/{id}.
func (h *QuestionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in usecase.QuestionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	_, err := h.service.Update(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		h.countMutation("update", err)
		h.writeError(w, err)
		return
	}
	h.countMutation("update", nil)

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /questions/{id}.
func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.countMutation("delete", err)
		h.writeError(w, err)
		return
	}
	h.countMutation("delete", nil)

	w.WriteHeader(http.StatusNoContent)
}

func (h *QuestionHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTags):
		http.Error(w, "Invalid tags", http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, "Conflict", http.StatusConflict)
	case errors.Is(err, domain.ErrCatalogUnavailable):
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("unhandled service error", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *QuestionHandler) countMutation(op string, err error) {
	if h.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidTags), errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound):
		status = "rejected"
	default:
		status = "error"
	}
	h.metrics.MutationsTotal.WithLabelValues(op, status).Inc()
}
