// Package paper implements the Paper Executor (C8): subscribes to the
// Publisher's channel, gates each item by profitability thresholds,
// de-duplicates via an atomic set-if-absent fingerprint, and records
// slippage-adjusted simulated fills to a bounded trade stream.
package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/matthijsko/arbitrage-bot/internal/metrics"
	"github.com/matthijsko/arbitrage-bot/internal/publish"
)

// Fill is the Paper Fill record of spec §3.
type Fill struct {
	ID              string  `json:"id"`
	TsMs            int64   `json:"ts_ms"`
	Symbol          string  `json:"symbol"`
	BuyExchange     string  `json:"buy"`
	SellExchange    string  `json:"sell"`
	QtyBase         float64 `json:"qty_base"`
	BestAsk         float64 `json:"best_ask"`
	BestBid         float64 `json:"best_bid"`
	EffAsk          float64 `json:"eff_ask"`
	EffBid          float64 `json:"eff_bid"`
	FeeBuyRate      float64 `json:"fee_buy_rate"`
	FeeSellRate     float64 `json:"fee_sell_rate"`
	SlippageBps     float64 `json:"slippage_bps"`
	SpentQuote      float64 `json:"spent_quote"`
	ReceivedQuote   float64 `json:"received_quote"`
	NetProfitQuote  float64 `json:"net_profit_quote"`
	ROI             float64 `json:"roi"`
	GrossSpreadBps  float64 `json:"gross_spread_bps"`
}

// Store is the subset of internal/store the paper executor needs: the
// dedup primitive, the subscription source, and the bounded stream.
type Store interface {
	SetNXExpire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	AppendStream(ctx context.Context, stream string, payload []byte, maxLen int64) error
}

// Subscription abstracts the pub/sub channel so tests can feed messages
// without a real Redis connection.
type Subscription interface {
	Next(ctx context.Context) ([]byte, error)
}

// Params mirrors the PAPER_* environment knobs of spec §6/§9.
type Params struct {
	MinNetQuote     *float64
	MinROIPct       *float64
	SlippageBps     float64
	DedupCooldownMs int64
	AllowNoProfit   bool
	Stream          string
}

const paperStreamMaxLen = 5000

// Executor drives the subscribe-filter-dedup-record loop.
type Executor struct {
	store  Store
	params Params
}

func New(store Store, params Params) *Executor {
	return &Executor{store: store, params: params}
}

// Run subscribes and processes messages until ctx is canceled. On
// subscription error it retries after a 1-second backoff (spec §4.8).
func (e *Executor) Run(ctx context.Context, sub Subscription) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[paper] subscription error: %v", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		e.HandleMessage(ctx, payload)
	}
}

// HandleMessage decodes one published batch and processes every item.
func (e *Executor) HandleMessage(ctx context.Context, payload []byte) {
	var batch publish.Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		log.Printf("[paper] decode batch: %v", err)
		return
	}
	for _, item := range batch.Items {
		if err := e.processItem(ctx, item); err != nil {
			log.Printf("[paper] process item %s %s->%s: %v", item.Symbol, item.BuyExchange, item.SellExchange, err)
		}
	}
}

func (e *Executor) processItem(ctx context.Context, item publish.Item) error {
	qty := item.QtyBaseSold
	if qty <= 0 {
		qty = item.QtyBaseBought
	}
	if qty <= 0 {
		metrics.PaperFills.WithLabelValues("below_threshold").Inc()
		return nil
	}

	if !e.params.AllowNoProfit {
		if !item.OK {
			metrics.PaperFills.WithLabelValues("below_threshold").Inc()
			return nil
		}
		if e.params.MinNetQuote != nil && item.NetProfit < *e.params.MinNetQuote {
			metrics.PaperFills.WithLabelValues("below_threshold").Inc()
			return nil
		}
		if e.params.MinROIPct != nil && item.ROI*100 < *e.params.MinROIPct {
			metrics.PaperFills.WithLabelValues("below_threshold").Inc()
			return nil
		}
	}

	fp := fingerprint(item, qty)
	created, err := e.store.SetNXExpire(ctx, dedupKey(fp), time.Duration(e.params.DedupCooldownMs)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if !created {
		metrics.PaperFills.WithLabelValues("deduped").Inc()
		return nil
	}

	fill := e.buildFill(item, qty)
	payload, err := json.Marshal(fill)
	if err != nil {
		return fmt.Errorf("marshal fill: %w", err)
	}
	if err := e.store.AppendStream(ctx, e.params.Stream, payload, paperStreamMaxLen); err != nil {
		return fmt.Errorf("append stream: %w", err)
	}
	metrics.PaperFills.WithLabelValues("filled").Inc()
	return nil
}

// buildFill applies PAPER_SLIPPAGE_BPS symmetrically per spec §4.8 step 5.
func (e *Executor) buildFill(item publish.Item, qty float64) Fill {
	s := e.params.SlippageBps / 10000.0
	effAsk := item.BestAsk * (1 + s)
	effBid := item.BestBid * (1 - s)
	spent := qty * effAsk * (1 + item.FeeBuy)
	received := qty * effBid * (1 - item.FeeSell)
	net := received - spent
	roi := 0.0
	if spent != 0 {
		roi = net / spent
	}
	grossSpreadBps := 0.0
	if item.BestAsk != 0 {
		grossSpreadBps = (item.BestBid - item.BestAsk) / item.BestAsk * 10000
	}
	return Fill{
		ID: uuid.New().String(), TsMs: time.Now().UnixMilli(),
		Symbol: item.Symbol, BuyExchange: item.BuyExchange, SellExchange: item.SellExchange,
		QtyBase: qty, BestAsk: item.BestAsk, BestBid: item.BestBid,
		EffAsk: effAsk, EffBid: effBid,
		FeeBuyRate: item.FeeBuy, FeeSellRate: item.FeeSell, SlippageBps: e.params.SlippageBps,
		SpentQuote: spent, ReceivedQuote: received, NetProfitQuote: net, ROI: roi,
		GrossSpreadBps: grossSpreadBps,
	}
}

// fingerprint hashes (symbol, buy, sell, round(best_ask,2), round(best_bid,2),
// round(qty,8)) per spec §4.8 step 4, using xxhash for a compact, fast digest.
func fingerprint(item publish.Item, qty float64) uint64 {
	s := fmt.Sprintf("%s|%s|%s|%.2f|%.2f|%.8f",
		item.Symbol, item.BuyExchange, item.SellExchange,
		round(item.BestAsk, 2), round(item.BestBid, 2), round(qty, 8))
	return xxhash.Sum64String(s)
}

func dedupKey(fp uint64) string {
	return fmt.Sprintf("paper:dedup:%016x", fp)
}

func round(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}
