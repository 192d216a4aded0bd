package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/user/question-service/internal/adapter/sanitize"
	"github.com/user/question-service/internal/domain"
)

// QuestionInput carries the caller-supplied fields of a create or update
// request.
type QuestionInput struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// QuestionService handles the business logic for question mutations. Tag
// validation happens before the write; the outbox event is staged inside
// the same transaction as the mutation, so the broadcast channel only ever
// sees committed transitions.
type QuestionService struct {
	questions domain.QuestionRepository
	catalog   domain.TagCatalog
	sanitizer *sanitize.Sanitizer
	logger    *slog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions domain.QuestionRepository, catalog domain.TagCatalog, sanitizer *sanitize.Sanitizer, logger *slog.Logger) *QuestionService {
	return &QuestionService{
		questions: questions,
		catalog:   catalog,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// Create validates, sanitizes and persists a new question, staging its
// Created event transactionally.
func (s *QuestionService) Create(ctx context.Context, askerID string, in QuestionInput) (domain.Question, error) {
	tags, err := s.validateInput(ctx, in)
	if err != nil {
		return domain.Question{}, err
	}

	q := domain.Question{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Content:   s.sanitizer.Sanitize(in.Content),
		AskerID:   askerID,
		TagSlugs:  tags,
		Seq:       1,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.questions.Create(ctx, q, domain.NewCreatedEvent(q)); err != nil {
		s.logger.Error("failed to create question", "error", err, "question_id", q.ID)
		return domain.Question{}, err
	}
	return q, nil
}

// Get returns a question and bumps its view counter. The bump is a
// field-level atomic update; a failed bump does not fail the read.
func (s *QuestionService) Get(ctx context.Context, id string) (domain.Question, error) {
	q, err := s.questions.Get(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}

	if err := s.questions.IncrementViewCount(ctx, id); err != nil {
		s.logger.Warn("failed to increment view count", "error", err, "question_id", id)
	}
	return q, nil
}

// Update applies an asker-initiated edit. The event carries the symmetric
// difference between the stored tag set and the incoming one, computed
// here at emission time.
func (s *QuestionService) Update(ctx context.Context, askerID, id string, in QuestionInput) (domain.Question, error) {
	q, err := s.questions.Get(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if q.AskerID != askerID {
		return domain.Question{}, domain.ErrForbidden
	}

	tags, err := s.validateInput(ctx, in)
	if err != nil {
		return domain.Question{}, err
	}

	added, removed := domain.DiffTagSets(q.TagSlugs, tags)

	expectedSeq := q.Seq
	now := time.Now().UTC()
	q.Title = in.Title
	q.Content = s.sanitizer.Sanitize(in.Content)
	q.TagSlugs = tags
	q.UpdatedAt = &now
	q.Seq++

	event := domain.NewUpdatedEvent(q, added, removed)
	if err := s.questions.Update(ctx, q, expectedSeq, event); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Question{}, err
		}
		s.logger.Error("failed to update question", "error", err, "question_id", id)
		return domain.Question{}, err
	}
	return q, nil
}

// Delete removes an asker's question, staging a Deleted event that carries
// the full tag set as removals.
func (s *QuestionService) Delete(ctx context.Context, askerID, id string) error {
	q, err := s.questions.Get(ctx, id)
	if err != nil {
		return err
	}
	if q.AskerID != askerID {
		return domain.ErrForbidden
	}

	expectedSeq := q.Seq
	q.Seq++
	event := domain.NewDeletedEvent(q)

	if err := s.questions.Delete(ctx, id, expectedSeq, event); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return err
		}
		s.logger.Error("failed to delete question", "error", err, "question_id", id)
		return err
	}
	return nil
}

// validateInput normalizes the tag set and checks the request against the
// catalog. Catalog unavailability propagates as-is and is never reported
// as invalid tags.
func (s *QuestionService) validateInput(ctx context.Context, in QuestionInput) ([]string, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title must not be empty", domain.ErrInvalidInput)
	}

	tags := domain.NormalizeTagSlugs(in.Tags)
	valid, err := s.catalog.AreTagsValid(ctx, tags)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, domain.ErrInvalidTags
	}
	return tags, nil
}
