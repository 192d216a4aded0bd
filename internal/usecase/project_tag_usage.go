package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/user/question-service/internal/adapter/metrics"
	"github.com/user/question-service/internal/domain"
)

const defaultProjectorBatchSize = 128

// ProjectTagUsageUseCase maintains tag usage counters as an eventually
// consistent projection of question tag sets. It is correct under
// at-least-once, out-of-order and duplicate delivery:
//
//   - deltas come from the event, never from current question state;
//   - the projection store applies deltas and marks the event ID applied
//     in one atomic operation, so a duplicate delivery is a no-op and a
//     crash mid-apply leaves the event unacknowledged for redelivery;
//   - decrements clamp at zero and flag the inconsistency instead of
//     failing the batch.
type ProjectTagUsageUseCase struct {
	stream    domain.EventStream
	store     domain.ProjectionStore
	admin     domain.StreamAdminRepository
	logger    *slog.Logger
	metrics   *metrics.ProjectorMetrics
	group     string
	consumer  string
	batchSize int
}

// NewProjectTagUsageUseCase creates a new projector. The admin repository
// and metrics may be nil.
func NewProjectTagUsageUseCase(stream domain.EventStream, store domain.ProjectionStore, admin domain.StreamAdminRepository, logger *slog.Logger, m *metrics.ProjectorMetrics, group, consumer string, batchSize int) *ProjectTagUsageUseCase {
	if batchSize <= 0 {
		batchSize = defaultProjectorBatchSize
	}
	return &ProjectTagUsageUseCase{
		stream:    stream,
		store:     store,
		admin:     admin,
		logger:    logger,
		metrics:   m,
		group:     group,
		consumer:  consumer,
		batchSize: batchSize,
	}
}

// ProcessBatch reads one batch from the stream and applies it. It returns
// the number of events newly applied to the counters. Messages whose apply
// failed are left unacknowledged; the channel's redelivery is the retry
// mechanism, there is no separate retry queue.
func (uc *ProjectTagUsageUseCase) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := uc.stream.ReadBatch(ctx, uc.group, uc.consumer, uc.batchSize)
	if err != nil {
		uc.logger.Error("failed to read event batch", "error", err)
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	return uc.processMessages(ctx, messages)
}

// ReclaimStale takes over deliveries stuck pending on dead consumers and
// runs them through the same apply path.
func (uc *ProjectTagUsageUseCase) ReclaimStale(ctx context.Context, minIdle time.Duration) (int, error) {
	if uc.admin == nil {
		return 0, nil
	}

	messages, err := uc.admin.ClaimStale(ctx, uc.group, uc.consumer, minIdle, int64(uc.batchSize))
	if err != nil {
		uc.logger.Error("failed to claim stale messages", "error", err)
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	return uc.processMessages(ctx, messages)
}

func (uc *ProjectTagUsageUseCase) processMessages(ctx context.Context, messages []domain.StreamMessage) (int, error) {
	var acks []string
	var applied int
	var lastErr error

	for _, msg := range messages {
		outcome, ackable, err := uc.handleMessage(ctx, msg)
		if err != nil {
			// Transient store failure: no ack, redelivery retries it.
			lastErr = err
			uc.countOutcome("error")
			continue
		}
		if ackable {
			acks = append(acks, msg.ID)
		}
		if outcome == outcomeApplied {
			applied++
		}
		uc.countOutcome(outcome)
	}

	if len(acks) > 0 {
		if err := uc.stream.Acknowledge(ctx, uc.group, acks...); err != nil {
			// Applied but unacknowledged: the deliveries come back and the
			// ledger discards them, so this is safe to retry.
			uc.logger.Error("failed to acknowledge messages", "error", err, "count", len(acks))
			return applied, err
		}
	}

	return applied, lastErr
}

const (
	outcomeApplied    = "applied"
	outcomeDuplicate  = "duplicate"
	outcomeDeadLetter = "dead_letter"
)

// handleMessage runs one delivery through the apply algorithm. It returns
// the outcome, whether the delivery may be acknowledged, and a transient
// error when the event should be redelivered instead.
func (uc *ProjectTagUsageUseCase) handleMessage(ctx context.Context, msg domain.StreamMessage) (string, bool, error) {
	var event domain.QuestionEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return uc.deadLetter(ctx, msg, "payload does not decode")
	}
	if err := event.Validate(); err != nil {
		return uc.deadLetter(ctx, msg, err.Error())
	}

	deltas := event.TagDeltas()
	result, err := uc.store.ApplyEvent(ctx, event.EventID, deltas)
	if err != nil {
		uc.logger.Error("failed to apply event", "error", err, "event_id", event.EventID)
		return "", false, err
	}

	if !result.Applied {
		uc.logger.Debug("discarded duplicate delivery", "event_id", event.EventID, "message_id", msg.ID)
		return outcomeDuplicate, true, nil
	}

	for _, slug := range result.Clamped {
		// Counter would have gone negative; it is clamped at zero and the
		// slug is flagged for reconciliation. Processing continues.
		uc.logger.Warn("tag usage underflow clamped",
			"tag", slug, "event_id", event.EventID, "question_id", event.QuestionID)
		if uc.metrics != nil {
			uc.metrics.UnderflowClamps.Inc()
		}
	}
	if uc.metrics != nil {
		uc.metrics.DeltasApplied.Add(float64(len(deltas)))
	}

	return outcomeApplied, true, nil
}

// deadLetter routes a poison message and reports whether it may be acked.
// If the dead-letter write itself fails the message stays pending so it is
// not lost.
func (uc *ProjectTagUsageUseCase) deadLetter(ctx context.Context, msg domain.StreamMessage, reason string) (string, bool, error) {
	uc.logger.Warn("dead-lettering malformed event", "message_id", msg.ID, "reason", reason)
	if err := uc.stream.DeadLetter(ctx, msg.ID, msg.Payload, reason); err != nil {
		return "", false, err
	}
	return outcomeDeadLetter, true, nil
}

func (uc *ProjectTagUsageUseCase) countOutcome(outcome string) {
	if uc.metrics != nil {
		uc.metrics.EventsTotal.WithLabelValues(outcome).Inc()
	}
}
