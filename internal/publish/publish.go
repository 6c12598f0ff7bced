// Package publish implements the Publisher (C7): broadcasts a list of
// opportunities on the pub/sub channel and appends them to a bounded
// history stream. It never emits an empty batch (spec invariant I6).
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matthijsko/arbitrage-bot/internal/metrics"
	"github.com/matthijsko/arbitrage-bot/internal/scanner"
)

// Item is the wire form of a Pair Opportunity (spec §3), flattened for
// JSON transport to subscribers that don't share Go types.
type Item struct {
	Symbol       string  `json:"symbol"`
	BuyExchange  string  `json:"buy"`
	SellExchange string  `json:"sell"`
	BestAsk      float64 `json:"best_ask"`
	BestBid      float64 `json:"best_bid"`
	GrossSpread  float64 `json:"gross_spread"`
	FeeBuy       float64 `json:"fee_buy"`
	FeeSell      float64 `json:"fee_sell"`
	OK           bool    `json:"ok"`

	QtyBaseBought float64 `json:"qty_base_bought"`
	QtyBaseSold   float64 `json:"qty_base_sold"`
	SpentQuote    float64 `json:"spent_quote"`
	ReceivedQuote float64 `json:"received_quote"`
	BuyFeeQuote   float64 `json:"buy_fee_quote"`
	SellFeeQuote  float64 `json:"sell_fee_quote"`
	NetProfit     float64 `json:"net_profit_quote"`
	ROI           float64 `json:"roi"`
}

// FromOpportunity flattens a scanner.Opportunity into its wire item.
func FromOpportunity(o scanner.Opportunity) Item {
	return Item{
		Symbol: o.Symbol, BuyExchange: o.BuyExchange, SellExchange: o.SellExchange,
		BestAsk: o.BestAsk, BestBid: o.BestBid, GrossSpread: o.GrossSpread,
		FeeBuy: o.FeeBuy, FeeSell: o.FeeSell, OK: o.OK,
		QtyBaseBought: o.Depth.QtyBaseBought, QtyBaseSold: o.Depth.QtyBaseSold,
		SpentQuote: o.Depth.SpentQuote, ReceivedQuote: o.Depth.ReceivedQuote,
		BuyFeeQuote: o.Depth.BuyFeeQuote, SellFeeQuote: o.Depth.SellFeeQuote,
		NetProfit: o.Depth.NetProfitQuote, ROI: o.Depth.ROI,
	}
}

// Batch is the Opportunity batch wire form: {"ts":int_ms,"items":[...]}.
type Batch struct {
	TsMs  int64  `json:"ts"`
	Items []Item `json:"items"`
}

// Sink is the store capability the publisher needs.
type Sink interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	AppendStream(ctx context.Context, stream string, payload []byte, maxLen int64) error
}

const historyStreamMaxLen = 1000

// Publisher broadcasts opportunity batches and logs them to history.
type Publisher struct {
	sink    Sink
	channel string
	stream  string
}

func New(sink Sink, channel, stream string) *Publisher {
	return &Publisher{sink: sink, channel: channel, stream: stream}
}

// Publish serializes items as a batch and fans it out. A nil/empty items
// slice is a programmer error upstream (spec I6 "never emit an empty
// batch") — Publish refuses rather than silently no-op, so the bug surfaces.
func (p *Publisher) Publish(ctx context.Context, items []Item, topN int) error {
	if len(items) == 0 {
		return fmt.Errorf("publish: refusing to publish an empty batch")
	}
	if topN > 0 && len(items) > topN {
		items = items[:topN]
	}
	batch := Batch{TsMs: time.Now().UnixMilli(), Items: items}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("publish: marshal batch: %w", err)
	}
	if err := p.sink.Publish(ctx, p.channel, payload); err != nil {
		return fmt.Errorf("publish: publish channel: %w", err)
	}
	if err := p.sink.AppendStream(ctx, p.stream, payload, historyStreamMaxLen); err != nil {
		return fmt.Errorf("publish: append stream: %w", err)
	}
	metrics.PublishBatches.Inc()
	return nil
}
