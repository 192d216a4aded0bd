package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/question-service/internal/domain"
)

const (
	counterKeyPrefix = "tag_usage:count:"
	ledgerKeyPrefix  = "tag_usage:applied:"
)

// applyEventScript performs the duplicate check, the clamped counter
// deltas, and the ledger mark as one server-side operation. Redis runs
// scripts atomically, so two concurrent deliveries of the same event
// cannot both pass the check, and no crash can separate the counter
// mutation from the ledger write.
//
// KEYS[1]     ledger key for the event ID
// KEYS[2..n]  counter keys
// ARGV[1]     ledger retention in seconds
// ARGV[2]     applied-at timestamp stored as the ledger value
// ARGV[2+i]   delta for KEYS[1+i]
//
// Returns {0} for a duplicate, or {1, {clamped counter keys...}}.
var applyEventScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return {0}
end
local clamped = {}
for i = 2, #KEYS do
  local delta = tonumber(ARGV[i + 1])
  local updated = tonumber(redis.call("GET", KEYS[i]) or "0") + delta
  if updated < 0 then
    updated = 0
    clamped[#clamped + 1] = KEYS[i]
  end
  redis.call("SET", KEYS[i], updated)
end
redis.call("SET", KEYS[1], ARGV[2], "EX", tonumber(ARGV[1]))
return {1, clamped}
`)

// applyDeltaScript adjusts a single counter with a zero floor.
var applyDeltaScript = redis.NewScript(`
local updated = tonumber(redis.call("GET", KEYS[1]) or "0") + tonumber(ARGV[1])
if updated < 0 then
  updated = 0
end
redis.call("SET", KEYS[1], updated)
return updated
`)

// TagUsageStore implements domain.ProjectionStore, domain.TagUsageStore
// and domain.IdempotencyLedger on Redis. Counters and ledger live in the
// same keyspace so an event's deltas and its dedup mark commit together.
type TagUsageStore struct {
	client          *redis.Client
	logger          *slog.Logger
	ledgerRetention time.Duration
}

// NewTagUsageStore creates a Redis-backed tag usage store. Ledger entries
// expire after ledgerRetention; the broadcast channel must not redeliver
// older messages than that.
func NewTagUsageStore(client *redis.Client, logger *slog.Logger, ledgerRetention time.Duration) *TagUsageStore {
	return &TagUsageStore{
		client:          client,
		logger:          logger.With("component", "tag_usage_store"),
		ledgerRetention: ledgerRetention,
	}
}

// ApplyEvent applies the event's tag deltas and records the event ID in
// the ledger atomically. A duplicate event ID is a no-op.
func (s *TagUsageStore) ApplyEvent(ctx context.Context, eventID string, deltas map[string]int64) (domain.ApplyResult, error) {
	keys := make([]string, 0, len(deltas)+1)
	keys = append(keys, ledgerKeyPrefix+eventID)

	slugs := make([]string, 0, len(deltas))
	for slug := range deltas {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	argv := make([]interface{}, 0, len(deltas)+2)
	argv = append(argv, int64(s.ledgerRetention.Seconds()), time.Now().UTC().Format(time.RFC3339))
	for _, slug := range slugs {
		keys = append(keys, counterKeyPrefix+slug)
		argv = append(argv, deltas[slug])
	}

	raw, err := applyEventScript.Run(ctx, s.client, keys, argv...).Result()
	if err != nil {
		return domain.ApplyResult{}, fmt.Errorf("failed to apply event %s: %w", eventID, err)
	}

	return parseApplyResult(raw)
}

// ApplyDelta atomically adjusts a single counter, clamping at zero, and
// returns the new value.
func (s *TagUsageStore) ApplyDelta(ctx context.Context, slug string, delta int64) (int64, error) {
	value, err := applyDeltaScript.Run(ctx, s.client, []string{counterKeyPrefix + slug}, delta).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to apply delta for tag %s: %w", slug, err)
	}
	return value, nil
}

// Get returns the current usage counter for a slug, zero if unset.
func (s *TagUsageStore) Get(ctx context.Context, slug string) (int64, error) {
	value, err := s.client.Get(ctx, counterKeyPrefix+slug).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage for tag %s: %w", slug, err)
	}
	return strconv.ParseInt(value, 10, 64)
}

// TryMarkApplied conditionally records an event ID in the ledger.
func (s *TagUsageStore) TryMarkApplied(ctx context.Context, eventID string) (bool, error) {
	marked, err := s.client.SetNX(ctx, ledgerKeyPrefix+eventID, time.Now().UTC().Format(time.RFC3339), s.ledgerRetention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s applied: %w", eventID, err)
	}
	return marked, nil
}

func parseApplyResult(raw interface{}) (domain.ApplyResult, error) {
	reply, ok := raw.([]interface{})
	if !ok || len(reply) == 0 {
		return domain.ApplyResult{}, fmt.Errorf("unexpected script reply %T", raw)
	}

	applied, ok := reply[0].(int64)
	if !ok {
		return domain.ApplyResult{}, fmt.Errorf("unexpected script status %T", reply[0])
	}
	if applied == 0 {
		return domain.ApplyResult{Applied: false}, nil
	}

	result := domain.ApplyResult{Applied: true}
	if len(reply) > 1 {
		clampedKeys, ok := reply[1].([]interface{})
		if !ok {
			return domain.ApplyResult{}, fmt.Errorf("unexpected clamped list %T", reply[1])
		}
		for _, key := range clampedKeys {
			keyStr, ok := key.(string)
			if !ok {
				continue
			}
			result.Clamped = append(result.Clamped, strings.TrimPrefix(keyStr, counterKeyPrefix))
		}
	}
	return result, nil
}
