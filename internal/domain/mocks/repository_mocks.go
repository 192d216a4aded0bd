package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/question-service/internal/domain"
)

var errTransientStore = errors.New("store temporarily unavailable")

// MockQuestionRepository is an in-memory implementation of
// domain.QuestionRepository for testing.
type MockQuestionRepository struct {
	mu             sync.Mutex
	Questions      map[string]domain.Question
	OutboxEvents   []domain.QuestionEvent
	ViewCountBumps []string
	CreateErr      error
	GetErr         error
	UpdateErr      error
	DeleteErr      error
	IncrementErr   error
}

func NewMockQuestionRepository() *MockQuestionRepository {
	return &MockQuestionRepository{Questions: make(map[string]domain.Question)}
}

func (m *MockQuestionRepository) Create(ctx context.Context, q domain.Question, event domain.QuestionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Questions[q.ID] = q
	m.OutboxEvents = append(m.OutboxEvents, event)
	return nil
}

func (m *MockQuestionRepository) Get(ctx context.Context, id string) (domain.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domain.Question{}, m.GetErr
	}
	q, ok := m.Questions[id]
	if !ok {
		return domain.Question{}, domain.ErrNotFound
	}
	return q, nil
}

func (m *MockQuestionRepository) Update(ctx context.Context, q domain.Question, expectedSeq int64, event domain.QuestionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	stored, ok := m.Questions[q.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Seq != expectedSeq {
		return domain.ErrConflict
	}
	m.Questions[q.ID] = q
	m.OutboxEvents = append(m.OutboxEvents, event)
	return nil
}

func (m *MockQuestionRepository) Delete(ctx context.Context, id string, expectedSeq int64, event domain.QuestionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	stored, ok := m.Questions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Seq != expectedSeq {
		return domain.ErrConflict
	}
	delete(m.Questions, id)
	m.OutboxEvents = append(m.OutboxEvents, event)
	return nil
}

func (m *MockQuestionRepository) IncrementViewCount(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IncrementErr != nil {
		return m.IncrementErr
	}
	q, ok := m.Questions[id]
	if !ok {
		return domain.ErrNotFound
	}
	q.ViewCount++
	m.Questions[id] = q
	m.ViewCountBumps = append(m.ViewCountBumps, id)
	return nil
}

// MockTagCatalog is a mock implementation of domain.TagCatalog.
type MockTagCatalog struct {
	mu         sync.Mutex
	ValidSlugs map[string]bool
	Err        error
	Calls      [][]string
}

func (m *MockTagCatalog) AreTagsValid(ctx context.Context, slugs []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, slugs)
	if m.Err != nil {
		return false, m.Err
	}
	for _, slug := range slugs {
		if !m.ValidSlugs[slug] {
			return false, nil
		}
	}
	return true, nil
}

// MockEventStream is a mock implementation of domain.EventStream.
type MockEventStream struct {
	mu              sync.Mutex
	Published       []domain.QuestionEvent
	ReadBatchResult []domain.StreamMessage
	AckedMessageIDs []string
	DeadLettered    []domain.StreamMessage
	PublishErr      error
	ReadErr         error
	AckErr          error
	DeadLetterErr   error
}

func (m *MockEventStream) Publish(ctx context.Context, event domain.QuestionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, event)
	return nil
}

func (m *MockEventStream) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.StreamMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if count >= len(m.ReadBatchResult) {
		batch := m.ReadBatchResult
		m.ReadBatchResult = nil
		return batch, nil
	}
	batch := m.ReadBatchResult[:count]
	m.ReadBatchResult = m.ReadBatchResult[count:]
	return batch, nil
}

func (m *MockEventStream) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.AckedMessageIDs = append(m.AckedMessageIDs, messageIDs...)
	return nil
}

func (m *MockEventStream) DeadLetter(ctx context.Context, messageID string, payload []byte, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeadLetterErr != nil {
		return m.DeadLetterErr
	}
	m.DeadLettered = append(m.DeadLettered, domain.StreamMessage{ID: messageID, Payload: payload})
	return nil
}

// MockProjectionStore is an in-memory implementation of
// domain.ProjectionStore, domain.TagUsageStore and domain.IdempotencyLedger
// with the same clamp-at-zero and conditional-mark semantics as the Redis
// adapter.
type MockProjectionStore struct {
	mu       sync.Mutex
	Counters map[string]int64
	Applied  map[string]bool
	ApplyErr error
	Failures int // number of ApplyEvent calls to fail before succeeding
}

func NewMockProjectionStore() *MockProjectionStore {
	return &MockProjectionStore{
		Counters: make(map[string]int64),
		Applied:  make(map[string]bool),
	}
}

func (m *MockProjectionStore) ApplyEvent(ctx context.Context, eventID string, deltas map[string]int64) (domain.ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Failures > 0 {
		m.Failures--
		return domain.ApplyResult{}, errTransientStore
	}
	if m.ApplyErr != nil {
		return domain.ApplyResult{}, m.ApplyErr
	}
	if m.Applied[eventID] {
		return domain.ApplyResult{Applied: false}, nil
	}
	var result domain.ApplyResult
	result.Applied = true
	for slug, delta := range deltas {
		next := m.Counters[slug] + delta
		if next < 0 {
			next = 0
			result.Clamped = append(result.Clamped, slug)
		}
		m.Counters[slug] = next
	}
	m.Applied[eventID] = true
	return result, nil
}

func (m *MockProjectionStore) ApplyDelta(ctx context.Context, slug string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.Counters[slug] + delta
	if next < 0 {
		next = 0
	}
	m.Counters[slug] = next
	return next, nil
}

func (m *MockProjectionStore) Get(ctx context.Context, slug string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[slug], nil
}

func (m *MockProjectionStore) TryMarkApplied(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Applied[eventID] {
		return false, nil
	}
	m.Applied[eventID] = true
	return true, nil
}

// MockOutboxRepository is a mock implementation of domain.OutboxRepository.
type MockOutboxRepository struct {
	mu           sync.Mutex
	Rows         []domain.OutboxEvent
	PublishedIDs []int64
	FetchErr     error
	MarkErr      error
}

func (m *MockOutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	published := make(map[int64]bool, len(m.PublishedIDs))
	for _, id := range m.PublishedIDs {
		published[id] = true
	}
	var out []domain.OutboxEvent
	for _, row := range m.Rows {
		if published[row.ID] {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, ids ...int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.PublishedIDs = append(m.PublishedIDs, ids...)
	return nil
}

// MockStreamAdminRepository is a mock implementation of
// domain.StreamAdminRepository.
type MockStreamAdminRepository struct {
	mu          sync.Mutex
	Summary     *domain.PendingSummary
	Claimable   []domain.StreamMessage
	TrimmedTo   int64
	SummaryErr  error
	ClaimErr    error
	TrimErr     error
	ClaimedOnce bool
}

func (m *MockStreamAdminRepository) PendingSummary(ctx context.Context, group string) (*domain.PendingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SummaryErr != nil {
		return nil, m.SummaryErr
	}
	if m.Summary == nil {
		return &domain.PendingSummary{}, nil
	}
	return m.Summary, nil
}

func (m *MockStreamAdminRepository) ClaimStale(ctx context.Context, group, consumer string, minIdle time.Duration, count int64) ([]domain.StreamMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	if m.ClaimedOnce {
		return nil, nil
	}
	m.ClaimedOnce = true
	return m.Claimable, nil
}

func (m *MockStreamAdminRepository) Trim(ctx context.Context, maxLen int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TrimErr != nil {
		return 0, m.TrimErr
	}
	m.TrimmedTo = maxLen
	return 0, nil
}
