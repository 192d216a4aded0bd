package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/user/question-service/internal/domain"
)

// QuestionRepository implements domain.QuestionRepository on PostgreSQL.
// Every mutation writes its outbox event in the same transaction, so an
// event row exists iff the mutation committed.
type QuestionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewQuestionRepository creates a new PostgreSQL question repository.
func NewQuestionRepository(db *sql.DB, logger *slog.Logger) *QuestionRepository {
	return &QuestionRepository{
		db:     db,
		logger: logger.With("component", "question_repository"),
	}
}

// Create persists a new question and stages its Created event.
func (r *QuestionRepository) Create(ctx context.Context, q domain.Question, event domain.QuestionEvent) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback is a no-op if Commit() is called

	_, err = txn.ExecContext(ctx, `
		INSERT INTO questions (id, title, content, asker_id, tag_slugs, view_count, answer_count, seq, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7)`,
		q.ID, q.Title, q.Content, q.AskerID, pq.Array(q.TagSlugs), q.Seq, q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}

	if err := insertOutboxEvent(ctx, txn, event); err != nil {
		return err
	}

	return txn.Commit()
}

// Get returns the question by ID.
func (r *QuestionRepository) Get(ctx context.Context, id string) (domain.Question, error) {
	var q domain.Question
	var updatedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, content, asker_id, tag_slugs, view_count, answer_count, seq, created_at, updated_at
		FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.Title, &q.Content, &q.AskerID, pq.Array(&q.TagSlugs),
		&q.ViewCount, &q.AnswerCount, &q.Seq, &q.CreatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("failed to query question: %w", err)
	}
	if updatedAt.Valid {
		q.UpdatedAt = &updatedAt.Time
	}
	return q, nil
}

// Update writes the new question state guarded by the expected sequence
// and stages the Updated event in the same transaction.
func (r *QuestionRepository) Update(ctx context.Context, q domain.Question, expectedSeq int64, event domain.QuestionEvent) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback()

	result, err := txn.ExecContext(ctx, `
		UPDATE questions
		SET title = $2, content = $3, tag_slugs = $4, updated_at = $5, seq = $6
		WHERE id = $1 AND seq = $7`,
		q.ID, q.Title, q.Content, pq.Array(q.TagSlugs), q.UpdatedAt, q.Seq, expectedSeq,
	)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	if err := r.checkMutated(ctx, txn, result, q.ID); err != nil {
		return err
	}

	if err := insertOutboxEvent(ctx, txn, event); err != nil {
		return err
	}

	return txn.Commit()
}

// Delete removes the question guarded by the expected sequence and stages
// the Deleted event in the same transaction.
func (r *QuestionRepository) Delete(ctx context.Context, id string, expectedSeq int64, event domain.QuestionEvent) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback()

	result, err := txn.ExecContext(ctx, `DELETE FROM questions WHERE id = $1 AND seq = $2`, id, expectedSeq)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	if err := r.checkMutated(ctx, txn, result, id); err != nil {
		return err
	}

	if err := insertOutboxEvent(ctx, txn, event); err != nil {
		return err
	}

	return txn.Commit()
}

// IncrementViewCount bumps the view counter in a single UPDATE. No
// read-modify-write, so concurrent readers cannot lose counts.
func (r *QuestionRepository) IncrementViewCount(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE questions SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// checkMutated distinguishes "row gone" from "row changed underneath us"
// when a guarded write matched nothing.
func (r *QuestionRepository) checkMutated(ctx context.Context, txn *sql.Tx, result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := txn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM questions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check question existence: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// insertOutboxEvent stages an event row inside the mutation's transaction.
// The event ID is the primary key: re-emitting the same committed mutation
// is a constraint violation, surfaced as a conflict.
func insertOutboxEvent(ctx context.Context, txn *sql.Tx, event domain.QuestionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox event: %w", err)
	}

	_, err = txn.ExecContext(ctx, `
		INSERT INTO outbox_events (event_id, question_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		event.EventID, event.QuestionID, string(event.Kind), payload,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: event %s already staged", domain.ErrConflict, event.EventID)
		}
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}
