package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/user/question-service/internal/domain"
)

// OutboxRepository implements domain.OutboxRepository on PostgreSQL.
// Rows are returned in insertion order, which is commit order per
// question, so the relay preserves per-question event ordering.
type OutboxRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL outbox repository.
func NewOutboxRepository(db *sql.DB, logger *slog.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger.With("component", "outbox_repository"),
	}
}

// FetchUnpublished returns up to limit staged events that have not reached
// the broadcast channel. Concurrent relays may fetch the same rows; a
// re-publish is harmless because consumers dedupe by event ID.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, question_id, kind, payload, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		var event domain.OutboxEvent
		var kind string
		if err := rows.Scan(&event.ID, &event.EventID, &event.QuestionID, &kind, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		event.Kind = domain.EventKind(kind)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return events, nil
}

// MarkPublished records that the rows reached the broadcast channel.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET published_at = NOW() WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to mark outbox rows published: %w", err)
	}
	return nil
}
