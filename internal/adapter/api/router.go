package api

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/user/question-service/internal/adapter/api/handler"
	"github.com/user/question-service/internal/adapter/api/middleware"
	"github.com/user/question-service/internal/adapter/metrics"
	"github.com/user/question-service/internal/domain"
	"github.com/user/question-service/internal/pkg/config"
	"github.com/user/question-service/internal/usecase"
)

// NewRouter creates and configures the main HTTP router for the question API.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	questionService *usecase.QuestionService,
	tagUsage domain.TagUsageStore,
	m *metrics.APIMetrics,
) http.Handler {
	mux := http.NewServeMux()

	questionHandler := handler.NewQuestionHandler(questionService, logger, m)
	tagHandler := handler.NewTagHandler(tagUsage, logger)

	// Middleware
	identity := middleware.Identity(logger)
	limit := middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst), m)

	// Mutations require a caller identity; reads do not.
	mux.Handle("POST /questions", limit(identity(http.HandlerFunc(questionHandler.Create))))
	mux.Handle("PUT /questions/{id}", limit(identity(http.HandlerFunc(questionHandler.Update))))
	mux.Handle("DELETE /questions/{id}", limit(identity(http.HandlerFunc(questionHandler.Delete))))
	mux.Handle("GET /questions/{id}", limit(http.HandlerFunc(questionHandler.Get)))
	mux.Handle("GET /tags/{slug}/usage", limit(http.HandlerFunc(tagHandler.Usage)))

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
