package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/question-service/internal/adapter/metrics"
	"github.com/user/question-service/internal/domain"
)

const (
	defaultRelayBatchSize = 256
	defaultRetryCount     = 3
	defaultRetryBackoff   = 1 * time.Second
)

// RelayOutboxUseCase moves committed outbox rows to the broadcast channel
// and marks them published. A crash after publish but before mark-published
// re-publishes the row on the next pass; consumers dedupe by event ID, so
// the relay only has to guarantee at-least-once.
type RelayOutboxUseCase struct {
	outbox       domain.OutboxRepository
	stream       domain.EventStream
	logger       *slog.Logger
	metrics      *metrics.RelayMetrics
	limiter      *rate.Limiter
	batchSize    int
	retryCount   int
	retryBackoff time.Duration
}

// NewRelayOutboxUseCase creates a new outbox relay. The limiter and
// metrics may be nil.
func NewRelayOutboxUseCase(outbox domain.OutboxRepository, stream domain.EventStream, logger *slog.Logger, m *metrics.RelayMetrics, limiter *rate.Limiter, batchSize, retryCount int, retryBackoff time.Duration) *RelayOutboxUseCase {
	if batchSize <= 0 {
		batchSize = defaultRelayBatchSize
	}
	if retryCount <= 0 {
		retryCount = defaultRetryCount
	}
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}
	return &RelayOutboxUseCase{
		outbox:       outbox,
		stream:       stream,
		logger:       logger,
		metrics:      m,
		limiter:      limiter,
		batchSize:    batchSize,
		retryCount:   retryCount,
		retryBackoff: retryBackoff,
	}
}

// RelayBatch publishes one batch of unpublished outbox rows. It returns
// the number of rows that reached the stream. Rows whose publish exhausted
// retries stay unpublished; that is the operator-visible signal that the
// channel is down, not a silent drop.
func (uc *RelayOutboxUseCase) RelayBatch(ctx context.Context) (int, error) {
	rows, err := uc.outbox.FetchUnpublished(ctx, uc.batchSize)
	if err != nil {
		uc.logger.Error("failed to fetch outbox rows", "error", err)
		return 0, err
	}
	if uc.metrics != nil {
		uc.metrics.BacklogGauge.Set(float64(len(rows)))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var publishedIDs []int64
	var lastErr error
	for _, row := range rows {
		if uc.limiter != nil {
			if err := uc.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		var event domain.QuestionEvent
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			// A row that cannot decode would block the relay forever.
			// Surface it on the dead-letter stream and settle the row.
			uc.logger.Error("undecodable outbox row, dead-lettering", "error", err, "outbox_id", row.ID, "event_id", row.EventID)
			if uc.metrics != nil {
				uc.metrics.PoisonRows.Inc()
			}
			if dlqErr := uc.stream.DeadLetter(ctx, fmt.Sprintf("outbox:%d", row.ID), row.Payload, "undecodable outbox payload"); dlqErr != nil {
				lastErr = dlqErr
				continue
			}
			publishedIDs = append(publishedIDs, row.ID)
			continue
		}

		if err := uc.publishWithRetry(ctx, event); err != nil {
			uc.logger.Error("failed to publish outbox event after retries", "error", err, "event_id", event.EventID)
			if uc.metrics != nil {
				uc.metrics.PublishFailures.Inc()
			}
			// Stop the batch here: publishing later rows past a failed one
			// would reorder a question's events on the stream.
			lastErr = err
			break
		}

		publishedIDs = append(publishedIDs, row.ID)
		if uc.metrics != nil {
			uc.metrics.PublishedTotal.Inc()
		}
	}

	if len(publishedIDs) > 0 {
		if err := uc.outbox.MarkPublished(ctx, publishedIDs...); err != nil {
			// The events reached the stream but the rows stay unpublished.
			// The next pass re-publishes them; consumers discard the
			// duplicates by event ID.
			uc.logger.Error("failed to mark outbox rows published", "error", err, "count", len(publishedIDs))
			return len(publishedIDs), err
		}
	}

	return len(publishedIDs), lastErr
}

func (uc *RelayOutboxUseCase) publishWithRetry(ctx context.Context, event domain.QuestionEvent) error {
	var lastErr error
	for i := 0; i < uc.retryCount; i++ {
		err := uc.stream.Publish(ctx, event)
		if err == nil {
			return nil
		}
		lastErr = err
		uc.logger.Warn("failed to publish event, retrying...", "attempt", i+1, "error", err, "event_id", event.EventID)
		select {
		case <-time.After(uc.retryBackoff):
			// continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
