// Package streamer implements the Streamer (C3): one logical task per
// (exchange, canonical symbol) that prefers a push subscription and falls
// back to periodic REST polling, writing every update into the shared
// order-book store. Modes: Starting -> Streaming|Polling (spec §4.3). The
// Stopped value is declared but Run never sets it: after Run returns, the
// task's mode still holds the last active mode.
package streamer

import (
	"context"
	"log"
	"time"

	"github.com/matthijsko/arbitrage-bot/internal/adapter"
	"github.com/matthijsko/arbitrage-bot/internal/book"
	"github.com/matthijsko/arbitrage-bot/internal/metrics"
)

// Mode names the Streamer's current operating state.
type Mode int

const (
	Starting Mode = iota
	Streaming
	Polling
	Stopped
)

// Sink is the store capability the streamer writes through.
type Sink interface {
	Put(ctx context.Context, snap book.Snapshot, ttl time.Duration) error
}

const snapshotTTL = 10 * time.Second

// Task drives one (exchange, symbol) streaming task.
type Task struct {
	Exchange     string
	Symbol       string
	Depth        int
	RestPollSec  float64
	Adapter      adapter.Adapter
	Sink         Sink

	mode Mode
}

// Run executes the task's lifecycle until ctx is canceled: it tries
// WatchOrderBook if the adapter supports it, otherwise it polls forever at
// RestPollSec, doubling the sleep on error (spec §4.3 step 2).
func (t *Task) Run(ctx context.Context) {
	t.mode = Starting

	// Resolve the venue symbol once at startup; a later SymbolNotFound
	// triggers a fresh resolution via the adapter's own cache invalidation.
	if _, err := t.Adapter.ResolveSymbol(ctx, t.Symbol); err != nil {
		log.Printf("[streamer] %s/%s: initial resolve failed: %v", t.Exchange, t.Symbol, err)
	}

	if watcher, ok := t.Adapter.(adapter.Watcher); ok {
		if t.runStreaming(ctx, watcher) {
			return
		}
	}
	t.runPolling(ctx)
}

// runStreaming attempts the push-subscription path. It returns true if ctx
// was canceled while streaming (task should exit), false if it should fall
// back to polling.
func (t *Task) runStreaming(ctx context.Context, watcher adapter.Watcher) bool {
	t.mode = Streaming
	metrics.SetStreamerStreaming(t.Exchange, t.Symbol)

	updates := make(chan adapter.BookUpdate, 16)
	err := watcher.WatchOrderBook(ctx, t.Symbol, t.Depth, updates)
	if err != nil {
		log.Printf("[streamer] %s/%s: watch unavailable: %v", t.Exchange, t.Symbol, err)
		return false
	}
	for {
		select {
		case <-ctx.Done():
			return true
		case upd, ok := <-updates:
			if !ok {
				log.Printf("[streamer] %s/%s: watch channel closed, falling back to polling", t.Exchange, t.Symbol)
				return false
			}
			t.writeUpdate(ctx, upd.Asks, upd.Bids, upd.TsMs)
		}
	}
}

// runPolling repeatedly calls FetchOrderBook every RestPollSec, sleeping
// 2*RestPollSec after an error (spec §4.3 step 2).
func (t *Task) runPolling(ctx context.Context) {
	t.mode = Polling
	metrics.SetStreamerPolling(t.Exchange, t.Symbol)

	interval := time.Duration(t.RestPollSec * float64(time.Second))
	for {
		if ctx.Err() != nil {
			return
		}
		asks, bids, err := t.Adapter.FetchOrderBook(ctx, t.Symbol, t.Depth)
		sleep := interval
		if err != nil {
			log.Printf("[streamer] %s/%s: poll error: %v", t.Exchange, t.Symbol, err)
			metrics.AdapterErrors.WithLabelValues(t.Exchange, "fetch_order_book").Inc()
			if _, isNotFound := err.(*adapter.SymbolNotFoundError); isNotFound {
				if _, rerr := t.Adapter.ResolveSymbol(ctx, t.Symbol); rerr != nil {
					log.Printf("[streamer] %s/%s: re-resolve failed: %v", t.Exchange, t.Symbol, rerr)
				}
			}
			sleep = 2 * interval
		} else {
			t.writeUpdate(ctx, asks, bids, time.Now().UnixMilli())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

func (t *Task) writeUpdate(ctx context.Context, asks, bids []book.Level, tsMs int64) {
	cleanAsks, cleanBids := book.Sanitize(asks, bids, t.Depth)
	snap := book.Snapshot{Exchange: t.Exchange, Symbol: t.Symbol, TsMs: tsMs, Asks: cleanAsks, Bids: cleanBids}
	if err := snap.Validate(); err != nil {
		log.Printf("[streamer] %s/%s: invalid snapshot dropped: %v", t.Exchange, t.Symbol, err)
		return
	}
	if err := t.Sink.Put(ctx, snap, snapshotTTL); err != nil {
		log.Printf("[streamer] %s/%s: store put failed: %v", t.Exchange, t.Symbol, err)
		return
	}
	metrics.BooksWritten.WithLabelValues(t.Exchange, t.Symbol).Inc()
}
