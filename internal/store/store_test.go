package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/matthijsko/arbitrage-bot/internal/book"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(rdb), mr
}

func sampleSnapshot(tsMs int64) book.Snapshot {
	return book.Snapshot{
		Exchange: "kraken",
		Symbol:   "BTC/EUR",
		TsMs:     tsMs,
		Asks:     []book.Level{{Price: 50000, SizeBase: 1}, {Price: 50010, SizeBase: 2}},
		Bids:     []book.Level{{Price: 49990, SizeBase: 1}, {Price: 49980, SizeBase: 2}},
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	snap := sampleSnapshot(time.Now().UnixMilli())

	if err := s.Put(ctx, snap, 10*time.Second); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, "kraken", "BTC/EUR", 5000)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Exchange != snap.Exchange || got.Symbol != snap.Symbol {
		t.Fatalf("Get mismatch: %+v", got)
	}
	if len(got.Asks) != 2 || got.Asks[0].Price != 50000 {
		t.Fatalf("Get asks mismatch: %+v", got.Asks)
	}
}

func TestGet_AbsentKey(t *testing.T) {
	s, _ := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "kraken", "ETH/EUR", 5000)
	if err != nil || ok {
		t.Fatalf("expected absent key miss, got ok=%v err=%v", ok, err)
	}
}

func TestGet_StaleSnapshotTreatedAsAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	old := sampleSnapshot(time.Now().Add(-10 * time.Second).UnixMilli())
	if err := s.Put(ctx, old, time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, ok, err := s.Get(ctx, "kraken", "BTC/EUR", 5000)
	if err != nil || ok {
		t.Fatalf("expected stale snapshot to read as absent, got ok=%v err=%v", ok, err)
	}
}

func TestSetNXExpire_ExactlyOneWinner(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	key := "paper:dedup:deadbeef"

	first, err := s.SetNXExpire(ctx, key, 4*time.Second)
	if err != nil || !first {
		t.Fatalf("first SetNXExpire should win: ok=%v err=%v", first, err)
	}
	second, err := s.SetNXExpire(ctx, key, 4*time.Second)
	if err != nil || second {
		t.Fatalf("second SetNXExpire should lose while cooldown active: ok=%v err=%v", second, err)
	}

	mr.FastForward(5 * time.Second)
	third, err := s.SetNXExpire(ctx, key, 4*time.Second)
	if err != nil || !third {
		t.Fatalf("SetNXExpire should succeed again after TTL expiry: ok=%v err=%v", third, err)
	}
}

func TestPublish_DeliversToSubscriber(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := s.Subscribe(ctx, "opps")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	msgCh := sub.Channel()
	if err := s.Publish(ctx, "opps", []byte(`{"ts":1}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case msg := <-msgCh:
		if msg.Payload != `{"ts":1}` {
			t.Fatalf("unexpected payload: %s", msg.Payload)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for published message")
	}
}

func TestAppendStream_CreatesStream(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := s.AppendStream(ctx, "opps_stream", []byte("entry"), 5); err != nil {
			t.Fatalf("AppendStream #%d: %v", i, err)
		}
	}
	msgs, err := s.ReadStreamRange(ctx, "opps_stream", "-", "+", 100)
	if err != nil {
		t.Fatalf("ReadStreamRange: %v", err)
	}
	// Approximate MAXLEN trimming gives no exact length to check, so this
	// only checks that the stream exists and holds entries.
	if len(msgs) == 0 {
		t.Fatal("expected at least one stream entry")
	}
}
