package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// RedisEventStore is an EventStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>run:<id>:events  => LIST of gob-encoded events in append order
//	<prefix>run:<id>:keys    => SET of event keys already appended
//	<prefix>idx:runs         => SET of all run IDs
type RedisEventStore struct {
	client *redis.Client
	prefix string
}

var _ EventStore = (*RedisEventStore)(nil)

// appendScript pushes an event only if its key is new to the run, so
// concurrent appends of the same event store it once.
var appendScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
	redis.call('RPUSH', KEYS[2], ARGV[2])
	redis.call('SADD', KEYS[3], ARGV[3])
	return 1
end
return 0
`)

// NewRedisEventStore creates a RedisEventStore.
// prefix is optional but recommended (e.g. "fluxotrace:").
func NewRedisEventStore(client *redis.Client, prefix string) *RedisEventStore {
	if prefix == "" {
		prefix = "fluxotrace:"
	}
	return &RedisEventStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisEventStore) keyEvents(runID string) string {
	return s.prefix + "run:" + runID + ":events"
}

func (s *RedisEventStore) keyEventKeys(runID string) string {
	return s.prefix + "run:" + runID + ":keys"
}

func (s *RedisEventStore) keyRuns() string {
	return s.prefix + "idx:runs"
}

func (s *RedisEventStore) AppendEvents(ctx context.Context, runID string, events ...api.RawEvent) error {
	keys := []string{s.keyEventKeys(runID), s.keyEvents(runID), s.keyRuns()}
	for _, ev := range events {
		data, err := EncodeEvent(ev)
		if err != nil {
			return err
		}
		if err := appendScript.Run(ctx, s.client, keys, eventKey(ev), data, runID).Err(); err != nil {
			return fmt.Errorf("append event %s to run %s: %w", ev.ID, runID, err)
		}
	}
	return nil
}

func (s *RedisEventStore) ListEvents(ctx context.Context, runID string) ([]api.RawEvent, error) {
	items, err := s.client.LRange(ctx, s.keyEvents(runID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrRunNotFound
	}

	out := make([]api.RawEvent, 0, len(items))
	for _, item := range items {
		ev, err := DecodeEvent([]byte(item))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisEventStore) ListRuns(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.keyRuns()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}
