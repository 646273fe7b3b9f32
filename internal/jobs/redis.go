package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "avpt:jobs:"
	DefaultTTL    = 24 * time.Hour
)

// RedisTracker keeps in-flight entries in Redis so several processes sharing
// one drop box cannot pick up the same ARK twice. Keys expire after ttl so a
// crashed process does not pin an ARK forever.
type RedisTracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client, prefix string, ttl time.Duration) *RedisTracker {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{client: client, prefix: prefix, ttl: ttl}
}

var _ Tracker = (*RedisTracker)(nil)

func (t *RedisTracker) key(ark string) string {
	return fmt.Sprintf("%s%s", t.prefix, ark)
}

func (t *RedisTracker) Add(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode job entry: %w", err)
	}

	ok, err := t.client.SetNX(ctx, t.key(entry.Item.ARK), data, t.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to track %s: %w", entry.Item.ARK, err)
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

// removeScript deletes KEYS[1] only when its entry's run_id is ARGV[1].
// Returns 1 on delete, 0 when the key is gone and -1 when another run owns it.
var removeScript = redis.NewScript(`
local data = redis.call("GET", KEYS[1])
if not data then
	return 0
end
if cjson.decode(data)["run_id"] ~= ARGV[1] then
	return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

func (t *RedisTracker) Remove(ctx context.Context, ark, runID string) error {
	n, err := removeScript.Run(ctx, t.client, []string{t.key(ark)}, runID).Int()
	if err != nil {
		return fmt.Errorf("failed to untrack %s: %w", ark, err)
	}
	switch n {
	case 0:
		return ErrNotFound
	case -1:
		return ErrNotOwner
	}
	return nil
}

func (t *RedisTracker) Get(ctx context.Context, ark string) (Entry, error) {
	data, err := t.client.Get(ctx, t.key(ark)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read %s: %w", ark, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to decode job entry %s: %w", ark, err)
	}
	return e, nil
}

func (t *RedisTracker) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	iter := t.client.Scan(ctx, 0, t.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := t.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", iter.Val(), err)
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode job entry %s: %w", iter.Val(), err)
		}
		entries = append(entries, e)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan jobs: %w", err)
	}

	sortEntries(entries)
	return entries, nil
}

// Reset drops every entry under the tracker's prefix. serve calls it when
// started with --reset-jobs, to clear entries left by a process that died.
func (t *RedisTracker) Reset(ctx context.Context) (int, error) {
	var removed int

	iter := t.client.Scan(ctx, 0, t.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := t.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", iter.Val(), err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan jobs: %w", err)
	}
	return removed, nil
}
