package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/question-service/internal/domain"
)

const (
	eventStreamKey = "question_events"
	readBlock      = 2 * time.Second
)

// EventStream implements domain.EventStream using Redis Streams. Delivery
// is at-least-once: messages stay in the consumer group's pending entries
// list until acknowledged and are redelivered via claim on consumer death.
type EventStream struct {
	client       *redis.Client
	logger       *slog.Logger
	dlqStreamKey string
}

// NewEventStream creates a Redis-backed EventStream and ensures the
// consumer group exists.
func NewEventStream(client *redis.Client, logger *slog.Logger, group, dlqStreamKey string) (*EventStream, error) {
	s := &EventStream{
		client:       client,
		logger:       logger.With("component", "event_stream"),
		dlqStreamKey: dlqStreamKey,
	}

	err := client.XGroupCreateMkStream(context.Background(), eventStreamKey, group, "0").Err()
	if err != nil && !isBusyGroupError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return s, nil
}

// Publish appends the event to the stream.
func (s *EventStream) Publish(ctx context.Context, event domain.QuestionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal question event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: eventStreamKey,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to XADD to event stream: %w", err)
	}
	return nil
}

// ReadBatch reads up to count new messages for the consumer. Payloads are
// returned raw; decoding and dead-lettering are the consumer's concern.
func (s *EventStream) ReadBatch(ctx context.Context, group, consumer string, count int) ([]domain.StreamMessage, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{eventStreamKey, ">"},
		Count:    int64(count),
		Block:    readBlock,
	}

	streams, err := s.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from event stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return toStreamMessages(streams[0].Messages, s.logger), nil
}

// Acknowledge marks deliveries as processed in the consumer group.
func (s *EventStream) Acknowledge(ctx context.Context, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, eventStreamKey, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("failed to XACK messages: %w", err)
	}
	return nil
}

// DeadLetter routes a poison message to the dead-letter stream.
func (s *EventStream) DeadLetter(ctx context.Context, messageID string, payload []byte, reason string) error {
	args := &redis.XAddArgs{
		Stream: s.dlqStreamKey,
		Values: map[string]interface{}{
			"payload":         payload,
			"original_stream": eventStreamKey,
			"original_msg_id": messageID,
			"reason":          reason,
			"failed_at":       time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to dead-letter message %s: %w", messageID, err)
	}
	s.logger.Warn("moved message to dead-letter stream", "message_id", messageID, "reason", reason)
	return nil
}

func toStreamMessages(messages []redis.XMessage, logger *slog.Logger) []domain.StreamMessage {
	out := make([]domain.StreamMessage, 0, len(messages))
	for _, msg := range messages {
		payload, ok := msg.Values["payload"].(string)
		if !ok {
			// Still surfaced to the consumer so it can be dead-lettered
			// rather than redelivered forever.
			logger.Warn("message missing payload field", "message_id", msg.ID)
			out = append(out, domain.StreamMessage{ID: msg.ID})
			continue
		}
		out = append(out, domain.StreamMessage{ID: msg.ID, Payload: []byte(payload)})
	}
	return out
}

func isBusyGroupError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
