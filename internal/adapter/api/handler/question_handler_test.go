package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/question-service/internal/adapter/api/middleware"
	"github.com/user/question-service/internal/adapter/sanitize"
	"github.com/user/question-service/internal/domain"
	"github.com/user/question-service/internal/domain/mocks"
	"github.com/user/question-service/internal/usecase"
)

func newTestHandler(t *testing.T, repo *mocks.MockQuestionRepository, catalog *mocks.MockTagCatalog) *QuestionHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sanitizer := sanitize.NewSanitizer([]string{"script"}, logger)
	service := usecase.NewQuestionService(repo, catalog, sanitizer, logger)
	return NewQuestionHandler(service, logger, nil)
}

func TestQuestionHandler_Create(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           string
		validSlugs     map[string]bool
		catalogErr     error
		expectedStatus int
	}{
		{
			name:           "Valid Question",
			userID:         "user-1",
			body:           `{"title": "How do goroutines work?", "content": "...", "tags": ["go"]}`,
			validSlugs:     map[string]bool{"go": true},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Missing Identity",
			userID:         "",
			body:           `{"title": "t", "content": "c", "tags": []}`,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Bad JSON",
			userID:         "user-1",
			body:           `{"title": "broken`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Empty Title",
			userID:         "user-1",
			body:           `{"title": "", "content": "c", "tags": []}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown Tag",
			userID:         "user-1",
			body:           `{"title": "t", "content": "c", "tags": ["no-such-tag"]}`,
			validSlugs:     map[string]bool{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Catalog Unavailable",
			userID:         "user-1",
			body:           `{"title": "t", "content": "c", "tags": ["go"]}`,
			catalogErr:     domain.ErrCatalogUnavailable,
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockQuestionRepository()
			catalog := &mocks.MockTagCatalog{ValidSlugs: tt.validSlugs, Err: tt.catalogErr}
			h := newTestHandler(t, repo, catalog)

			req := httptest.NewRequest(http.MethodPost, "/questions", bytes.NewBufferString(tt.body))
			if tt.userID != "" {
				req.Header.Set(middleware.UserIDHeader, tt.userID)
			}
			rr := httptest.NewRecorder()

			middleware.Identity(logger)(http.HandlerFunc(h.Create)).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("got status %d, want %d (body: %s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedStatus == http.StatusCreated {
				var q domain.Question
				if err := json.Unmarshal(rr.Body.Bytes(), &q); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if q.ID == "" {
					t.Error("expected a generated question ID")
				}
				if loc := rr.Header().Get("Location"); loc != "/questions/"+q.ID {
					t.Errorf("got Location %q, want %q", loc, "/questions/"+q.ID)
				}
				if len(repo.OutboxEvents) != 1 {
					t.Errorf("expected 1 staged event, got %d", len(repo.OutboxEvents))
				}
			}
		})
	}
}

func TestQuestionHandler_Get(t *testing.T) {
	repo := mocks.NewMockQuestionRepository()
	repo.Questions["q1"] = domain.Question{ID: "q1", Title: "t", AskerID: "user-1", Seq: 1}
	h := newTestHandler(t, repo, &mocks.MockTagCatalog{})

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/questions/q1", nil)
		req.SetPathValue("id", "q1")
		rr := httptest.NewRecorder()

		h.Get(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("got status %d, want %d", rr.Code, http.StatusOK)
		}
		if len(repo.ViewCountBumps) != 1 {
			t.Errorf("expected 1 view count bump, got %d", len(repo.ViewCountBumps))
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/questions/missing", nil)
		req.SetPathValue("id", "missing")
		rr := httptest.NewRecorder()

		h.Get(rr, req)

		if rr.Code != http.StatusNotFound {
			t.Errorf("got status %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

func TestQuestionHandler_Update(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		questionID     string
		body           string
		expectedStatus int
	}{
		{
			name:           "Owner Updates",
			userID:         "user-1",
			questionID:     "q1",
			body:           `{"title": "edited", "content": "c", "tags": ["go"]}`,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "Non-Owner Forbidden",
			userID:         "user-2",
			questionID:     "q1",
			body:           `{"title": "edited", "content": "c", "tags": ["go"]}`,
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Not Found",
			userID:         "user-1",
			questionID:     "missing",
			body:           `{"title": "edited", "content": "c", "tags": ["go"]}`,
			expectedStatus: http.StatusNotFound,
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockQuestionRepository()
			repo.Questions["q1"] = domain.Question{ID: "q1", Title: "t", AskerID: "user-1", TagSlugs: []string{"go"}, Seq: 1}
			catalog := &mocks.MockTagCatalog{ValidSlugs: map[string]bool{"go": true}}
			h := newTestHandler(t, repo, catalog)

			req := httptest.NewRequest(http.MethodPut, "/questions/"+tt.questionID, bytes.NewBufferString(tt.body))
			req.Header.Set(middleware.UserIDHeader, tt.userID)
			req.SetPathValue("id", tt.questionID)
			rr := httptest.NewRecorder()

			middleware.Identity(logger)(http.HandlerFunc(h.Update)).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("got status %d, want %d (body: %s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
		})
	}

	t.Run("Concurrent Edit Conflict", func(t *testing.T) {
		repo := mocks.NewMockQuestionRepository()
		repo.Questions["q1"] = domain.Question{ID: "q1", Title: "t", AskerID: "user-1", Seq: 1}
		repo.UpdateErr = domain.ErrConflict
		h := newTestHandler(t, repo, &mocks.MockTagCatalog{ValidSlugs: map[string]bool{}})

		req := httptest.NewRequest(http.MethodPut, "/questions/q1", bytes.NewBufferString(`{"title": "edited", "content": "c"}`))
		req.Header.Set(middleware.UserIDHeader, "user-1")
		req.SetPathValue("id", "q1")
		rr := httptest.NewRecorder()

		middleware.Identity(logger)(http.HandlerFunc(h.Update)).ServeHTTP(rr, req)

		if rr.Code != http.StatusConflict {
			t.Errorf("got status %d, want %d", rr.Code, http.StatusConflict)
		}
	})
}

func TestQuestionHandler_Delete(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Owner Deletes", func(t *testing.T) {
		repo := mocks.NewMockQuestionRepository()
		repo.Questions["q1"] = domain.Question{ID: "q1", AskerID: "user-1", TagSlugs: []string{"go"}, Seq: 1}
		h := newTestHandler(t, repo, &mocks.MockTagCatalog{})

		req := httptest.NewRequest(http.MethodDelete, "/questions/q1", nil)
		req.Header.Set(middleware.UserIDHeader, "user-1")
		req.SetPathValue("id", "q1")
		rr := httptest.NewRecorder()

		middleware.Identity(logger)(http.HandlerFunc(h.Delete)).ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("got status %d, want %d", rr.Code, http.StatusNoContent)
		}
		if _, ok := repo.Questions["q1"]; ok {
			t.Error("expected question to be removed")
		}
		if len(repo.OutboxEvents) != 1 {
			t.Fatalf("expected 1 staged event, got %d", len(repo.OutboxEvents))
		}
		if repo.OutboxEvents[0].Kind != domain.EventQuestionDeleted {
			t.Errorf("got event kind %q, want %q", repo.OutboxEvents[0].Kind, domain.EventQuestionDeleted)
		}
	})

	t.Run("Non-Owner Forbidden", func(t *testing.T) {
		repo := mocks.NewMockQuestionRepository()
		repo.Questions["q1"] = domain.Question{ID: "q1", AskerID: "user-1", Seq: 1}
		h := newTestHandler(t, repo, &mocks.MockTagCatalog{})

		req := httptest.NewRequest(http.MethodDelete, "/questions/q1", nil)
		req.Header.Set(middleware.UserIDHeader, "user-2")
		req.SetPathValue("id", "q1")
		rr := httptest.NewRecorder()

		middleware.Identity(logger)(http.HandlerFunc(h.Delete)).ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("got status %d, want %d", rr.Code, http.StatusForbidden)
		}
	})
}

func TestTagHandler_Usage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := mocks.NewMockProjectionStore()
	store.Counters["go"] = 42
	h := NewTagHandler(store, logger)

	t.Run("Known Tag", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tags/go/usage", nil)
		req.SetPathValue("slug", "go")
		rr := httptest.NewRecorder()

		h.Usage(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
		}
		var resp struct {
			Tag        string `json:"tag"`
			UsageCount int64  `json:"usage_count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Tag != "go" || resp.UsageCount != 42 {
			t.Errorf("got %+v, want tag go with count 42", resp)
		}
	})

	t.Run("Unseen Tag Reports Zero", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tags/zig/usage", nil)
		req.SetPathValue("slug", "zig")
		rr := httptest.NewRecorder()

		h.Usage(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("got status %d, want %d", rr.Code, http.StatusOK)
		}
		if !bytes.Contains(rr.Body.Bytes(), []byte(`"usage_count":0`)) {
			t.Errorf("expected zero usage count, got %s", rr.Body.String())
		}
	})
}
