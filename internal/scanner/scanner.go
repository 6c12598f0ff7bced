// Package scanner implements the Pair Scanner (C5): for a symbol and a set
// of venues, it evaluates every ordered pair of distinct exchanges through
// the depth simulator and ranks the results.
package scanner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/matthijsko/arbitrage-bot/internal/adapter"
	"github.com/matthijsko/arbitrage-bot/internal/book"
	"github.com/matthijsko/arbitrage-bot/internal/metrics"
	"github.com/matthijsko/arbitrage-bot/internal/sim"
)

// BookReader is the store capability the scanner needs: a cached-snapshot
// lookup keyed by (exchange, symbol), separated from internal/store so
// this package can be tested with a fake.
type BookReader interface {
	Get(ctx context.Context, exchange, symbol string, staleMs int64) (book.Snapshot, bool, error)
}

// Opportunity is the Pair Opportunity record of spec §3.
type Opportunity struct {
	TsMs        int64
	Symbol      string
	BuyExchange string
	SellExchange string
	BestAsk     float64
	BestBid     float64
	GrossSpread float64
	FeeBuy      float64
	FeeSell     float64
	Depth       sim.Result
	OK          bool
	Reason      string
	Error       string
	ErrorType   string
}

// NetOrNegInf returns Depth.NetProfitQuote, or -Inf for a failed/invalid
// record, matching §4.5's sort-key rule for missing/invalid entries.
func (o Opportunity) NetOrNegInf() float64 {
	if !o.OK {
		return math.Inf(-1)
	}
	return o.Depth.NetProfitQuote
}

// Params configures one symbol scan, mirroring the budget/withdraw-fee
// knobs the Strategy Loop driver owns (spec §4.6).
type Params struct {
	BudgetQuote     float64
	WithdrawFeeBase float64
	StaleMs         int64
	Depth           int
}

// Scanner evaluates ordered exchange pairs for a symbol.
type Scanner struct {
	store    BookReader
	adapters map[string]adapter.Adapter
}

func New(store BookReader, adapters map[string]adapter.Adapter) *Scanner {
	return &Scanner{store: store, adapters: adapters}
}

// Scan evaluates every ordered pair (buyEx, sellEx) with buyEx != sellEx
// from exchanges, for the given symbol, and returns N·(N-1) records sorted
// by net profit descending (spec I5).
func (s *Scanner) Scan(ctx context.Context, symbol string, exchanges []string, p Params) []Opportunity {
	var out []Opportunity
	nowMs := time.Now().UnixMilli()
	for _, buyEx := range exchanges {
		for _, sellEx := range exchanges {
			if buyEx == sellEx {
				continue
			}
			metrics.ScanPairsEvaluated.Inc()
			out = append(out, s.evalPair(ctx, symbol, buyEx, sellEx, p, nowMs))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NetOrNegInf() > out[j].NetOrNegInf()
	})
	return out
}

func (s *Scanner) evalPair(ctx context.Context, symbol, buyEx, sellEx string, p Params, nowMs int64) Opportunity {
	base := Opportunity{TsMs: nowMs, Symbol: symbol, BuyExchange: buyEx, SellExchange: sellEx}

	buyBook, err := s.readBook(ctx, buyEx, symbol, p.StaleMs, p.Depth)
	if err != nil {
		return withError(base, err)
	}
	sellBook, err := s.readBook(ctx, sellEx, symbol, p.StaleMs, p.Depth)
	if err != nil {
		return withError(base, err)
	}
	if len(buyBook.Asks) == 0 || len(sellBook.Bids) == 0 {
		base.Reason = "empty_orderbook"
		base.OK = false
		return base
	}

	buyAdapter, ok := s.adapters[buyEx]
	if !ok {
		return withError(base, fmt.Errorf("scanner: no adapter registered for %q", buyEx))
	}
	sellAdapter, ok := s.adapters[sellEx]
	if !ok {
		return withError(base, fmt.Errorf("scanner: no adapter registered for %q", sellEx))
	}
	buyMarkets, err := buyAdapter.LoadMarkets(ctx)
	if err != nil {
		return withError(base, err)
	}
	sellMarkets, err := sellAdapter.LoadMarkets(ctx)
	if err != nil {
		return withError(base, err)
	}
	buyVenueSym, err := buyAdapter.ResolveSymbol(ctx, symbol)
	if err != nil {
		return withError(base, err)
	}
	sellVenueSym, err := sellAdapter.ResolveSymbol(ctx, symbol)
	if err != nil {
		return withError(base, err)
	}
	buyMeta := buyMarkets[buyVenueSym]
	sellMeta := sellMarkets[sellVenueSym]

	feeBuy := buyMeta.TakerFeeOrDefault()
	feeSell := sellMeta.TakerFeeOrDefault()

	simParams := sim.Params{
		FeeBuy:          feeBuy,
		FeeSell:         feeSell,
		WithdrawFeeBase: p.WithdrawFeeBase,
		MaxQuoteBuy:     sim.Ptr(p.BudgetQuote),
		BaseStep:        firstNonNil(buyMeta.BaseStep, sellMeta.BaseStep),
		MinBase:         firstNonNil(buyMeta.MinBase, sellMeta.MinBase),
		MinNotionalBuy:  firstNonNil(buyMeta.MinNotional, sellMeta.MinNotional),
		MinNotionalSell: firstNonNil(sellMeta.MinNotional, buyMeta.MinNotional),
	}

	simAsks := toSimLevels(buyBook.Asks)
	simBids := toSimLevels(sellBook.Bids)
	result := sim.Simulate(simAsks, simBids, simParams)

	bestAsk := buyBook.BestAsk()
	bestBid := sellBook.BestBid()

	base.BestAsk = bestAsk
	base.BestBid = bestBid
	base.GrossSpread = (bestBid - bestAsk) / bestAsk
	base.FeeBuy = feeBuy
	base.FeeSell = feeSell
	base.Depth = result
	base.OK = result.OK
	return base
}

func (s *Scanner) readBook(ctx context.Context, exchange, symbol string, staleMs int64, depth int) (book.Snapshot, error) {
	snap, ok, err := s.store.Get(ctx, exchange, symbol, staleMs)
	if err != nil {
		return book.Snapshot{}, err
	}
	if ok {
		return snap, nil
	}
	a, ok := s.adapters[exchange]
	if !ok {
		return book.Snapshot{}, fmt.Errorf("scanner: no adapter registered for %q", exchange)
	}
	asks, bids, err := a.FetchOrderBook(ctx, symbol, depth)
	if err != nil {
		metrics.AdapterErrors.WithLabelValues(exchange, "fetch_order_book").Inc()
		return book.Snapshot{}, err
	}
	return book.Snapshot{Exchange: exchange, Symbol: symbol, TsMs: time.Now().UnixMilli(), Asks: asks, Bids: bids}, nil
}

func withError(o Opportunity, err error) Opportunity {
	o.OK = false
	o.Error = err.Error()
	o.ErrorType = errorType(err)
	return o
}

func errorType(err error) string {
	if _, ok := err.(*adapter.SymbolNotFoundError); ok {
		return "symbol_not_found"
	}
	return "adapter_error"
}

func firstNonNil(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func toSimLevels(levels []book.Level) []sim.Level {
	out := make([]sim.Level, len(levels))
	for i, l := range levels {
		out[i] = sim.Level{Price: l.Price, Size: l.SizeBase}
	}
	return out
}
