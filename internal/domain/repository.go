package domain

import (
	"context"
	"time"
)

// QuestionRepository is the durable store for question records. Create,
// Update and Delete persist the question mutation and its outbox event in
// a single transaction, so the broadcast channel only ever sees committed
// state transitions.
type QuestionRepository interface {
	// Create persists a new question together with its Created event.
	Create(ctx context.Context, q Question, event QuestionEvent) error

	// Get returns the question by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (Question, error)

	// Update writes the new question state if the stored sequence still
	// equals expectedSeq; otherwise it returns ErrConflict.
	Update(ctx context.Context, q Question, expectedSeq int64, event QuestionEvent) error

	// Delete removes the question if the stored sequence still equals
	// expectedSeq; otherwise it returns ErrConflict.
	Delete(ctx context.Context, id string, expectedSeq int64, event QuestionEvent) error

	// IncrementViewCount bumps the view counter as a single atomic
	// field-level update, never a read-modify-write pair.
	IncrementViewCount(ctx context.Context, id string) error
}

// TagCatalog validates candidate tag slugs against the reference catalog.
type TagCatalog interface {
	// AreTagsValid returns true iff every slug exists in the catalog.
	// A non-nil error means the catalog could not be checked; callers must
	// not treat that as "invalid tags".
	AreTagsValid(ctx context.Context, slugs []string) (bool, error)
}

// StreamMessage is a raw delivery from the broadcast channel. The payload
// is left unparsed so consumers can dead-letter events that do not decode.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventStream is the durable broadcast channel with at-least-once delivery.
type EventStream interface {
	// Publish appends the event to the stream.
	Publish(ctx context.Context, event QuestionEvent) error

	// ReadBatch reads up to count pending messages for the given consumer
	// group member. An empty result is not an error.
	ReadBatch(ctx context.Context, group, consumer string, count int) ([]StreamMessage, error)

	// Acknowledge marks deliveries as processed. Unacknowledged messages
	// are redelivered by the channel.
	Acknowledge(ctx context.Context, group string, messageIDs ...string) error

	// DeadLetter routes a poison message to the dead-letter stream.
	DeadLetter(ctx context.Context, messageID string, payload []byte, reason string) error
}

// TagUsageStore holds the per-slug usage counters.
type TagUsageStore interface {
	// ApplyDelta atomically adjusts a counter, clamping at zero, and
	// returns the new value.
	ApplyDelta(ctx context.Context, slug string, delta int64) (int64, error)

	// Get returns the current counter value for a slug (zero if unset).
	Get(ctx context.Context, slug string) (int64, error)
}

// IdempotencyLedger records which event IDs have been applied.
type IdempotencyLedger interface {
	// TryMarkApplied conditionally records the event ID, returning true if
	// it was newly marked and false if it was already present.
	TryMarkApplied(ctx context.Context, eventID string) (bool, error)
}

// ApplyResult reports the outcome of applying an event's tag deltas.
type ApplyResult struct {
	// Applied is false when the event ID was already in the ledger and the
	// delivery was discarded as a duplicate.
	Applied bool

	// Clamped lists slugs whose decrement would have driven the counter
	// below zero. The counter stays at zero and the inconsistency is
	// flagged for reconciliation.
	Clamped []string
}

// ProjectionStore applies an event's tag deltas and records the event ID
// in the idempotency ledger as one atomic operation, so concurrent
// deliveries of the same event cannot both pass the duplicate check and a
// crash cannot land between the counter mutation and the ledger write.
type ProjectionStore interface {
	ApplyEvent(ctx context.Context, eventID string, deltas map[string]int64) (ApplyResult, error)
}

// OutboxRepository reads and settles staged events in the question store.
type OutboxRepository interface {
	// FetchUnpublished returns up to limit staged events in commit order.
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error)

	// MarkPublished records that the rows reached the broadcast channel.
	MarkPublished(ctx context.Context, ids ...int64) error
}

// PendingSummary describes unacknowledged deliveries for a consumer group.
type PendingSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id,omitempty"`
	LastMessageID  string           `json:"last_message_id,omitempty"`
	ConsumerTotals map[string]int64 `json:"consumer_totals,omitempty"`
}

// StreamAdminRepository exposes the operator-facing stream controls the
// projector needs: inspecting pending deliveries, reclaiming messages
// stuck on dead consumers, and bounding stream growth.
type StreamAdminRepository interface {
	PendingSummary(ctx context.Context, group string) (*PendingSummary, error)
	ClaimStale(ctx context.Context, group, consumer string, minIdle time.Duration, count int64) ([]StreamMessage, error)
	Trim(ctx context.Context, maxLen int64) (int64, error)
}
