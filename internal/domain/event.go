package domain

import (
	"fmt"
	"time"
)

// EventKind identifies the question state transition an event describes.
type EventKind string

const (
	EventQuestionCreated EventKind = "Created"
	EventQuestionUpdated EventKind = "Updated"
	EventQuestionDeleted EventKind = "Deleted"
)

// QuestionEvent is an immutable fact describing a committed question
// mutation. AddedTags and RemovedTags carry the symmetric difference
// computed at emission time; consumers apply them as-is and never
// recompute deltas from current question state.
type QuestionEvent struct {
	EventID     string    `json:"event_id"`
	Kind        EventKind `json:"kind"`
	QuestionID  string    `json:"question_id"`
	Seq         int64     `json:"seq"`
	AddedTags   []string  `json:"added_tags,omitempty"`
	RemovedTags []string  `json:"removed_tags,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`

	// StreamMessageID is the broadcast-channel delivery ID, set by the
	// consumer on read. Not part of the event payload.
	StreamMessageID string `json:"-"`
}

// EventID derives the deterministic event identifier for a mutation.
// Re-emission of the same committed mutation yields the same ID, which is
// what makes redelivery detectable downstream.
func EventID(questionID string, seq int64) string {
	return fmt.Sprintf("%s:%d", questionID, seq)
}

// NewCreatedEvent builds the event for a newly created question. Every tag
// in the initial set is an addition.
func NewCreatedEvent(q Question) QuestionEvent {
	return QuestionEvent{
		EventID:    EventID(q.ID, q.Seq),
		Kind:       EventQuestionCreated,
		QuestionID: q.ID,
		Seq:        q.Seq,
		AddedTags:  q.TagSlugs,
		OccurredAt: q.CreatedAt,
	}
}

// NewUpdatedEvent builds the event for an updated question carrying the
// symmetric tag difference of the transition.
func NewUpdatedEvent(q Question, added, removed []string) QuestionEvent {
	occurredAt := time.Now().UTC()
	if q.UpdatedAt != nil {
		occurredAt = *q.UpdatedAt
	}
	return QuestionEvent{
		EventID:     EventID(q.ID, q.Seq),
		Kind:        EventQuestionUpdated,
		QuestionID:  q.ID,
		Seq:         q.Seq,
		AddedTags:   added,
		RemovedTags: removed,
		OccurredAt:  occurredAt,
	}
}

// NewDeletedEvent builds the event for a deleted question. The full tag set
// is carried as removals so usage counters only count live questions.
func NewDeletedEvent(q Question) QuestionEvent {
	return QuestionEvent{
		EventID:     EventID(q.ID, q.Seq),
		Kind:        EventQuestionDeleted,
		QuestionID:  q.ID,
		Seq:         q.Seq,
		RemovedTags: q.TagSlugs,
		OccurredAt:  time.Now().UTC(),
	}
}

// Validate reports whether the event is well-formed enough to apply.
func (e QuestionEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: missing event_id", ErrMalformedEvent)
	}
	if e.QuestionID == "" {
		return fmt.Errorf("%w: missing question_id", ErrMalformedEvent)
	}
	switch e.Kind {
	case EventQuestionCreated, EventQuestionUpdated, EventQuestionDeleted:
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, e.Kind)
	}
}

// TagDeltas folds the event's added and removed slugs into per-slug usage
// deltas. A slug appearing on both sides nets to zero.
func (e QuestionEvent) TagDeltas() map[string]int64 {
	deltas := make(map[string]int64, len(e.AddedTags)+len(e.RemovedTags))
	for _, slug := range e.AddedTags {
		deltas[slug]++
	}
	for _, slug := range e.RemovedTags {
		deltas[slug]--
	}
	for slug, delta := range deltas {
		if delta == 0 {
			delete(deltas, slug)
		}
	}
	return deltas
}

// OutboxEvent is a QuestionEvent staged in the question store, written in
// the same transaction as the mutation it describes and relayed to the
// broadcast channel asynchronously.
type OutboxEvent struct {
	ID          int64
	EventID     string
	QuestionID  string
	Kind        EventKind
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}
