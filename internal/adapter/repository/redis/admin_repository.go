package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/question-service/internal/domain"
)

// AdminRepository implements domain.StreamAdminRepository for the question
// events stream.
type AdminRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewAdminRepository creates a new Redis stream admin repository.
func NewAdminRepository(client *redis.Client, logger *slog.Logger) *AdminRepository {
	return &AdminRepository{
		client: client,
		logger: logger.With("component", "stream_admin"),
	}
}

// PendingSummary returns a summary of unacknowledged deliveries for the
// consumer group.
func (r *AdminRepository) PendingSummary(ctx context.Context, group string) (*domain.PendingSummary, error) {
	pending, err := r.client.XPending(ctx, eventStreamKey, group).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending summary for group %s: %w", group, err)
	}

	return &domain.PendingSummary{
		Total:          pending.Count,
		FirstMessageID: pending.Lower,
		LastMessageID:  pending.Higher,
		ConsumerTotals: pending.Consumers,
	}, nil
}

// ClaimStale transfers ownership of messages that have been pending longer
// than minIdle to the given consumer and returns them for processing.
// This is how deliveries stranded on a dead consumer re-enter the flow.
func (r *AdminRepository) ClaimStale(ctx context.Context, group, consumer string, minIdle time.Duration, count int64) ([]domain.StreamMessage, error) {
	args := &redis.XAutoClaimArgs{
		Stream:   eventStreamKey,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}

	messages, _, err := r.client.XAutoClaim(ctx, args).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim stale messages: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	r.logger.Info("claimed stale messages", "count", len(messages), "consumer", consumer)
	return toStreamMessages(messages, r.logger), nil
}

// Trim bounds the stream to approximately maxLen entries and returns the
// number of evicted messages.
func (r *AdminRepository) Trim(ctx context.Context, maxLen int64) (int64, error) {
	trimmed, err := r.client.XTrimMaxLenApprox(ctx, eventStreamKey, maxLen, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to trim event stream: %w", err)
	}
	return trimmed, nil
}
