package streamer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matthijsko/arbitrage-bot/internal/adapter"
	"github.com/matthijsko/arbitrage-bot/internal/book"
)

// fakePollingAdapter implements adapter.Adapter but not adapter.Watcher, so
// Task.Run always falls to the polling branch.
type fakePollingAdapter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakePollingAdapter) Name() string { return "fake" }
func (f *fakePollingAdapter) FetchOrderBook(context.Context, string, int) ([]book.Level, []book.Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return []book.Level{{Price: 100, SizeBase: 1}}, []book.Level{{Price: 99, SizeBase: 1}}, nil
}
func (f *fakePollingAdapter) FetchTicker(context.Context, string) (adapter.Ticker, error) {
	return adapter.Ticker{}, nil
}
func (f *fakePollingAdapter) LoadMarkets(context.Context) (map[string]adapter.MarketMeta, error) {
	return map[string]adapter.MarketMeta{"BTC/EUR": {Base: "BTC", Quote: "EUR", Active: true}}, nil
}
func (f *fakePollingAdapter) ListSymbols(context.Context, string) ([]string, error) { return nil, nil }
func (f *fakePollingAdapter) ResolveSymbol(_ context.Context, canonical string) (string, error) {
	return canonical, nil
}
func (f *fakePollingAdapter) Ping(context.Context) adapter.PingResult {
	return adapter.PingResult{OK: true}
}

func (f *fakePollingAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSink struct {
	mu    sync.Mutex
	puts  []book.Snapshot
}

func (f *fakeSink) Put(_ context.Context, snap book.Snapshot, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, snap)
	return nil
}

func (f *fakeSink) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func TestTask_PollsWhenNoWatcher(t *testing.T) {
	a := &fakePollingAdapter{}
	sink := &fakeSink{}
	task := &Task{Exchange: "fake", Symbol: "BTC/EUR", Depth: 10, RestPollSec: 0.02, Adapter: a, Sink: sink}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	task.Run(ctx)

	if a.callCount() == 0 {
		t.Fatal("expected at least one poll call")
	}
	if sink.putCount() == 0 {
		t.Fatal("expected at least one snapshot written to the store")
	}
	if task.mode != Polling {
		t.Fatalf("expected Polling mode, got %v", task.mode)
	}
}

func TestTask_WritesSanitizedSnapshot(t *testing.T) {
	a := &fakePollingAdapter{}
	sink := &fakeSink{}
	task := &Task{Exchange: "fake", Symbol: "BTC/EUR", Depth: 10, RestPollSec: 0.01, Adapter: a, Sink: sink}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	task.Run(ctx)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.puts) == 0 {
		t.Fatal("expected snapshots")
	}
	snap := sink.puts[0]
	if snap.Exchange != "fake" || snap.Symbol != "BTC/EUR" {
		t.Fatalf("unexpected snapshot identity: %+v", snap)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 100 {
		t.Fatalf("unexpected asks: %+v", snap.Asks)
	}
}
