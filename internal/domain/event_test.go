package domain

import (
	"errors"
	"testing"
	"time"
)

func TestEventID(t *testing.T) {
	if got := EventID("q1", 3); got != "q1:3" {
		t.Errorf("EventID = %q, want %q", got, "q1:3")
	}
	// Deterministic: re-deriving for the same mutation yields the same ID.
	if EventID("q1", 3) != EventID("q1", 3) {
		t.Error("expected identical IDs for identical (question, seq)")
	}
}

func TestNewCreatedEvent(t *testing.T) {
	q := Question{
		ID:        "q1",
		TagSlugs:  []string{"go", "rust"},
		Seq:       1,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	event := NewCreatedEvent(q)

	if event.EventID != "q1:1" {
		t.Errorf("unexpected event ID: %s", event.EventID)
	}
	if event.Kind != EventQuestionCreated {
		t.Errorf("unexpected kind: %s", event.Kind)
	}
	if len(event.AddedTags) != 2 || len(event.RemovedTags) != 0 {
		t.Errorf("expected all tags as additions, got added=%v removed=%v", event.AddedTags, event.RemovedTags)
	}
	if !event.OccurredAt.Equal(q.CreatedAt) {
		t.Errorf("expected OccurredAt to match CreatedAt")
	}
}

func TestNewDeletedEvent(t *testing.T) {
	q := Question{ID: "q1", TagSlugs: []string{"go", "caching"}, Seq: 4}
	event := NewDeletedEvent(q)

	if event.Kind != EventQuestionDeleted {
		t.Errorf("unexpected kind: %s", event.Kind)
	}
	if len(event.AddedTags) != 0 {
		t.Errorf("deleted event must not add tags, got %v", event.AddedTags)
	}
	if len(event.RemovedTags) != 2 {
		t.Errorf("expected full tag set as removals, got %v", event.RemovedTags)
	}
}

func TestQuestionEvent_TagDeltas(t *testing.T) {
	event := QuestionEvent{
		AddedTags:   []string{"systems", "go"},
		RemovedTags: []string{"go", "rust"},
	}
	deltas := event.TagDeltas()

	if len(deltas) != 2 {
		t.Fatalf("expected 2 net deltas, got %v", deltas)
	}
	if deltas["systems"] != 1 {
		t.Errorf("systems delta = %d, want 1", deltas["systems"])
	}
	if deltas["rust"] != -1 {
		t.Errorf("rust delta = %d, want -1", deltas["rust"])
	}
	if _, ok := deltas["go"]; ok {
		t.Error("slug on both sides must net to zero and be dropped")
	}
}

func TestQuestionEvent_Validate(t *testing.T) {
	valid := QuestionEvent{EventID: "q1:1", Kind: EventQuestionCreated, QuestionID: "q1"}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid event, got %v", err)
	}

	tests := []struct {
		name  string
		event QuestionEvent
	}{
		{"Missing Event ID", QuestionEvent{Kind: EventQuestionCreated, QuestionID: "q1"}},
		{"Missing Question ID", QuestionEvent{EventID: "q1:1", Kind: EventQuestionUpdated}},
		{"Unknown Kind", QuestionEvent{EventID: "q1:1", Kind: "Renamed", QuestionID: "q1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}
