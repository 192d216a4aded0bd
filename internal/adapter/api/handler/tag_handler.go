package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/question-service/internal/domain"
)

// TagHandler serves read access to the tag usage counters.
type TagHandler struct {
	usage  domain.TagUsageStore
	logger *slog.Logger
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(usage domain.TagUsageStore, logger *slog.Logger) *TagHandler {
	return &TagHandler{usage: usage, logger: logger}
}

type tagUsageResponse struct {
	Tag        string `json:"tag"`
	UsageCount int64  `json:"usage_count"`
}

// Usage handles GET /tags/{slug}/usage. Unknown slugs report zero usage;
// the counters are a projection, not the catalog.
func (h *TagHandler) Usage(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	count, err := h.usage.Get(r.Context(), slug)
	if err != nil {
		h.logger.Error("failed to read tag usage", "error", err, "tag", slug)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tagUsageResponse{Tag: slug, UsageCount: count}); err != nil {
		h.logger.Error("failed to encode tag usage response", "error", err)
	}
}
