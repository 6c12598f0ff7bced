// Package store implements the Order-Book Store (C2): a Redis-backed
// key/value layer with per-key TTL, the pub/sub channel consumed by C7, and
// the bounded history streams used for opportunities and paper fills. It is
// the sole shared state in the pipeline; every write is single-writer per
// key and reads never block on another task.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matthijsko/arbitrage-bot/internal/book"
)

// Store wraps a go-redis client with the key conventions of spec §9.
type Store struct {
	rdb *redis.Client
}

// New connects to REDIS_URL-style connection string (redis://host:port/db).
func New(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	return &Store{rdb: redis.NewClient(opt)}, nil
}

// NewWithClient wraps an already-constructed client, letting tests inject a
// miniredis-backed client without going through a URL.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// obKey builds the canonical order-book key: ob:{exchange}:{symbol}.
func obKey(exchange, symbol string) string {
	return fmt.Sprintf("ob:%s:%s", exchange, symbol)
}

// Put overwrites the current snapshot for (exchange, symbol) with the given
// TTL, per spec §4.2 put().
func (s *Store) Put(ctx context.Context, snap book.Snapshot, ttl time.Duration) error {
	data, err := book.Encode(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	return s.rdb.Set(ctx, obKey(snap.Exchange, snap.Symbol), data, ttl).Err()
}

// Get returns the snapshot for (exchange, symbol), or ok=false if absent or
// stale relative to staleMs. Re-asserts level ordering defensively after
// decoding, per spec §4.2.
func (s *Store) Get(ctx context.Context, exchange, symbol string, staleMs int64) (book.Snapshot, bool, error) {
	raw, err := s.rdb.Get(ctx, obKey(exchange, symbol)).Bytes()
	if err == redis.Nil {
		return book.Snapshot{}, false, nil
	}
	if err != nil {
		return book.Snapshot{}, false, fmt.Errorf("store: get %s/%s: %w", exchange, symbol, err)
	}
	snap, err := book.Decode(raw)
	if err != nil {
		return book.Snapshot{}, false, fmt.Errorf("store: decode %s/%s: %w", exchange, symbol, err)
	}
	snap.Asks, snap.Bids = book.Sanitize(snap.Asks, snap.Bids, len(snap.Asks)+len(snap.Bids))
	wallMs := time.Now().UnixMilli()
	if wallMs-snap.TsMs > staleMs {
		return book.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// GetRaw is a diagnostic-only accessor; not used by the core scan/strategy
// flow (spec §4.2).
func (s *Store) GetRaw(ctx context.Context, key string) (string, error) {
	return s.rdb.Get(ctx, key).Result()
}

// Keys is a diagnostic-only accessor for the configured pattern.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.rdb.Keys(ctx, pattern).Result()
}

// SetNXExpire is the atomic "set-if-absent with expiry" primitive the
// dedup stage (C8) relies on: exactly one caller within the cooldown window
// observes created=true for a given key.
func (s *Store) SetNXExpire(ctx context.Context, key string, ttl time.Duration) (created bool, err error) {
	ok, err := s.rdb.SetNX(ctx, key, byte(1), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("store: setnx %s: %w", key, err)
	}
	return ok, nil
}

// Publish broadcasts payload on the given pub/sub channel (spec §4.2,
// consumed by C7).
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe subscribes to `channel` and returns the go-redis PubSub; its
// Channel() delivers the published messages. ctx only covers the initial
// SUBSCRIBE: callers must Close the returned PubSub to release it.
func (s *Store) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, channel)
}

// Subscription adapts a *redis.PubSub to the single-method shape the paper
// executor (internal/paper.Subscription) consumes, so that package never
// needs to import go-redis directly.
type Subscription struct {
	ps *redis.PubSub
	ch <-chan *redis.Message
}

// NewSubscription subscribes to channel and returns a ready-to-use
// Subscription. Close it (or cancel ctx) when done.
func (s *Store) NewSubscription(ctx context.Context, channel string) *Subscription {
	ps := s.rdb.Subscribe(ctx, channel)
	return &Subscription{ps: ps, ch: ps.Channel()}
}

// Next blocks until the next message arrives, ctx is canceled, or the
// subscription's channel closes.
func (sub *Subscription) Next(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-sub.ch:
		if !ok {
			return nil, fmt.Errorf("store: subscription channel closed")
		}
		return []byte(msg.Payload), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (sub *Subscription) Close() error { return sub.ps.Close() }

// AppendStream appends a single entry to a bounded history stream,
// approximately trimmed to maxLen (spec §9 "both trimmed approximately").
func (s *Store) AppendStream(ctx context.Context, stream string, payload []byte, maxLen int64) error {
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{"data": payload},
	}).Err()
}

// ReadStreamRange is a diagnostic accessor over a bounded stream's range,
// not used by the core flow.
func (s *Store) ReadStreamRange(ctx context.Context, stream, start, stop string, count int64) ([]redis.XMessage, error) {
	return s.rdb.XRangeN(ctx, stream, start, stop, count).Result()
}
