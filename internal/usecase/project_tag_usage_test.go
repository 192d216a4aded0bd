package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/user/question-service/internal/domain"
	"github.com/user/question-service/internal/domain/mocks"
)

func mustMarshal(t *testing.T, event domain.QuestionEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return payload
}

func message(t *testing.T, id string, event domain.QuestionEvent) domain.StreamMessage {
	t.Helper()
	return domain.StreamMessage{ID: id, Payload: mustMarshal(t, event)}
}

func newTestProjector(stream *mocks.MockEventStream, store *mocks.MockProjectionStore, admin domain.StreamAdminRepository) *ProjectTagUsageUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProjectTagUsageUseCase(stream, store, admin, logger, nil, "group", "consumer", 100)
}

func TestProjectTagUsage_CreateThenUpdate(t *testing.T) {
	created := domain.QuestionEvent{
		EventID: "q1:1", Kind: domain.EventQuestionCreated, QuestionID: "q1",
		Seq: 1, AddedTags: []string{"go", "rust"},
	}
	updated := domain.QuestionEvent{
		EventID: "q1:2", Kind: domain.EventQuestionUpdated, QuestionID: "q1",
		Seq: 2, AddedTags: []string{"systems"}, RemovedTags: []string{"go"},
	}

	stream := &mocks.MockEventStream{ReadBatchResult: []domain.StreamMessage{
		message(t, "m1", created),
		message(t, "m2", updated),
	}}
	store := mocks.NewMockProjectionStore()
	uc := newTestProjector(stream, store, nil)

	applied, err := uc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if applied != 2 {
		t.Errorf("expected 2 applied events, got %d", applied)
	}

	want := map[string]int64{"go": 0, "rust": 1, "systems": 1}
	for slug, count := range want {
		if store.Counters[slug] != count {
			t.Errorf("counter %s = %d, want %d", slug, store.Counters[slug], count)
		}
	}
	if len(stream.AckedMessageIDs) != 2 {
		t.Errorf("expected 2 acks, got %v", stream.AckedMessageIDs)
	}
}

func TestProjectTagUsage_DuplicateDeliveryIsNoOp(t *testing.T) {
	created := domain.QuestionEvent{
		EventID: "q2:1", Kind: domain.EventQuestionCreated, QuestionID: "q2",
		Seq: 1, AddedTags: []string{"caching"},
	}

	// The broker redelivers the same event: same event ID, two messages.
	stream := &mocks.MockEventStream{ReadBatchResult: []domain.StreamMessage{
		message(t, "m1", created),
		message(t, "m2", created),
	}}
	store := mocks.NewMockProjectionStore()
	uc := newTestProjector(stream, store, nil)

	applied, err := uc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 applied event, got %d", applied)
	}
	if store.Counters["caching"] != 1 {
		t.Errorf("counter caching = %d, want 1", store.Counters["caching"])
	}
	// Both deliveries are acknowledged; the duplicate is just discarded.
	if len(stream.AckedMessageIDs) != 2 {
		t.Errorf("expected 2 acks, got %v", stream.AckedMessageIDs)
	}
}

func TestProjectTagUsage_UnderflowClampsToZero(t *testing.T) {
	// Removal of a tag whose counter is already zero, e.g. after a manual
	// correction. Must not go negative and must not halt the batch.
	updated := domain.QuestionEvent{
		EventID: "q3:2", Kind: domain.EventQuestionUpdated, QuestionID: "q3",
		Seq: 2, RemovedTags: []string{"go"},
	}
	following := domain.QuestionEvent{
		EventID: "q4:1", Kind: domain.EventQuestionCreated, QuestionID: "q4",
		Seq: 1, AddedTags: []string{"go"},
	}

	stream := &mocks.MockEventStream{ReadBatchResult: []domain.StreamMessage{
		message(t, "m1", updated),
		message(t, "m2", following),
	}}
	store := mocks.NewMockProjectionStore()
	uc := newTestProjector(stream, store, nil)

	applied, err := uc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if applied != 2 {
		t.Errorf("expected both events applied, got %d", applied)
	}
	if store.Counters["go"] != 1 {
		t.Errorf("counter go = %d, want 1 (clamp then increment)", store.Counters["go"])
	}
}

func TestProjectTagUsage_MalformedEventDeadLettered(t *testing.T) {
	valid := domain.QuestionEvent{
		EventID: "q5:1", Kind: domain.EventQuestionCreated, QuestionID: "q5",
		Seq: 1, AddedTags: []string{"go"},
	}

	stream := &mocks.MockEventStream{ReadBatchResult: []domain.StreamMessage{
		{ID: "m1", Payload: []byte(`{"event_id": "broken`)},
		{ID: "m2", Payload: mustMarshal(t, domain.QuestionEvent{EventID: "q9:1", Kind: "Renamed", QuestionID: "q9"})},
		message(t, "m3", valid),
	}}
	store := mocks.NewMockProjectionStore()
	uc := newTestProjector(stream, store, nil)

	applied, err := uc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 applied event, got %d", applied)
	}
	if len(stream.DeadLettered) != 2 {
		t.Errorf("expected 2 dead-lettered messages, got %d", len(stream.DeadLettered))
	}
	// Poison messages are acknowledged so they stop being redelivered.
	if len(stream.AckedMessageIDs) != 3 {
		t.Errorf("expected 3 acks, got %v", stream.AckedMessageIDs)
	}
	if store.Counters["go"] != 1 {
		t.Errorf("counter go = %d, want 1", store.Counters["go"])
	}
}

func TestProjectTagUsage_StoreFailureLeavesEventPending(t *testing.T) {
	event := domain.QuestionEvent{
		EventID: "q6:1", Kind: domain.EventQuestionCreated, QuestionID: "q6",
		Seq: 1, AddedTags: []string{"go"},
	}

	stream := &mocks.MockEventStream{ReadBatchResult: []domain.StreamMessage{message(t, "m1", event)}}
	store := mocks.NewMockProjectionStore()
	store.ApplyErr = errors.New("counter store unavailable")
	uc := newTestProjector(stream, store, nil)

	applied, err := uc.ProcessBatch(context.Background())
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	if applied != 0 {
		t.Errorf("expected 0 applied events, got %d", applied)
	}
	if len(stream.AckedMessageIDs) != 0 {
		t.Errorf("failed event must not be acknowledged, got acks %v", stream.AckedMessageIDs)
	}

	// Redelivery after the store recovers applies the event exactly once.
	store.ApplyErr = nil
	stream.ReadBatchResult = []domain.StreamMessage{message(t, "m1", event)}
	applied, err = uc.ProcessBatch(context.Background())
	if err != nil {
		t.Fatalf("expected no error on retry, got %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 applied event on retry, got %d", applied)
	}
	if store.Counters["go"] != 1 {
		t.Errorf("counter go = %d, want 1", store.Counters["go"])
	}
}

func TestProjectTagUsage_ConvergesUnderRedeliveryAndReordering(t *testing.T) {
	// Q1 {go, rust} -> {rust, systems}; Q2 {caching}; Q3 {go} then deleted.
	// Final live tag sets: Q1 {rust, systems}, Q2 {caching}.
	events := []domain.QuestionEvent{
		{EventID: "q1:1", Kind: domain.EventQuestionCreated, QuestionID: "q1", Seq: 1, AddedTags: []string{"go", "rust"}},
		{EventID: "q1:2", Kind: domain.EventQuestionUpdated, QuestionID: "q1", Seq: 2, AddedTags: []string{"systems"}, RemovedTags: []string{"go"}},
		{EventID: "q2:1", Kind: domain.EventQuestionCreated, QuestionID: "q2", Seq: 1, AddedTags: []string{"caching"}},
		{EventID: "q3:1", Kind: domain.EventQuestionCreated, QuestionID: "q3", Seq: 1, AddedTags: []string{"go"}},
		{EventID: "q3:2", Kind: domain.EventQuestionDeleted, QuestionID: "q3", Seq: 2, RemovedTags: []string{"go"}},
	}
	want := map[string]int64{"go": 0, "rust": 1, "systems": 1, "caching": 1}

	// Deterministic delivery orders with duplicates mixed in. Order across
	// questions is scrambled; order within a question is preserved, which
	// is what the relay guarantees by publishing in commit order.
	orders := [][]int{
		{0, 1, 2, 3, 4},
		{3, 2, 0, 4, 1},
		{0, 0, 3, 1, 1, 4, 2},
		{2, 3, 4, 4, 0, 1, 0},
	}

	for i, order := range orders {
		var messages []domain.StreamMessage
		for j, idx := range order {
			messages = append(messages, domain.StreamMessage{
				ID:      events[idx].EventID + "-delivery-" + string(rune('a'+j)),
				Payload: mustMarshal(t, events[idx]),
			})
		}

		stream := &mocks.MockEventStream{ReadBatchResult: messages}
		store := mocks.NewMockProjectionStore()
		uc := newTestProjector(stream, store, nil)

		for {
			applied, err := uc.ProcessBatch(context.Background())
			if err != nil {
				t.Fatalf("order %d: unexpected error: %v", i, err)
			}
			if applied == 0 && len(stream.ReadBatchResult) == 0 {
				break
			}
		}

		for slug, count := range want {
			if store.Counters[slug] != count {
				t.Errorf("order %d: counter %s = %d, want %d", i, slug, store.Counters[slug], count)
			}
		}
	}
}

func TestProjectTagUsage_ReclaimStale(t *testing.T) {
	event := domain.QuestionEvent{
		EventID: "q7:1", Kind: domain.EventQuestionCreated, QuestionID: "q7",
		Seq: 1, AddedTags: []string{"go"},
	}

	stream := &mocks.MockEventStream{}
	store := mocks.NewMockProjectionStore()
	admin := &mocks.MockStreamAdminRepository{Claimable: []domain.StreamMessage{message(t, "m1", event)}}
	uc := newTestProjector(stream, store, admin)

	applied, err := uc.ReclaimStale(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if applied != 1 {
		t.Errorf("expected 1 applied event, got %d", applied)
	}
	if store.Counters["go"] != 1 {
		t.Errorf("counter go = %d, want 1", store.Counters["go"])
	}
	if len(stream.AckedMessageIDs) != 1 {
		t.Errorf("expected reclaimed message to be acked, got %v", stream.AckedMessageIDs)
	}
}
