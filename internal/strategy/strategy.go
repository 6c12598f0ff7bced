// Package strategy implements the Strategy Loop (C6): a periodic driver
// that scans every configured symbol, filters by profitability thresholds,
// and hands the flattened batch to the Publisher — falling back to a
// debug snapshot when the market yields nothing to keep downstream
// observers live (spec §4.6).
package strategy

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/matthijsko/arbitrage-bot/internal/metrics"
	"github.com/matthijsko/arbitrage-bot/internal/publish"
	"github.com/matthijsko/arbitrage-bot/internal/scanner"
)

// Params mirrors the Strategy Loop's one-time configuration (spec §4.6).
type Params struct {
	Symbols              []string
	Exchanges            []string
	BudgetQuote          float64
	WithdrawFeeBase      float64
	MinNetQuote          float64
	MinROIPct            float64
	IntervalMs           int
	TopN                 int
	StaleMs              int64
	Depth                int
	FallbackWhenEmpty    bool
}

// Block is the per-symbol Scan Block of spec §3.
type Block struct {
	Symbol       string
	Top          []scanner.Opportunity
	Best         *scanner.Opportunity
	DebugTop     []scanner.Opportunity
	DebugBestAny *scanner.Opportunity
}

// Loop owns the periodic scan->filter->publish cycle.
type Loop struct {
	scan      *scanner.Scanner
	publisher *publish.Publisher
	params    Params
}

func New(scan *scanner.Scanner, publisher *publish.Publisher, params Params) *Loop {
	return &Loop{scan: scan, publisher: publisher, params: params}
}

// Tick runs exactly one scan/filter/publish cycle over every configured
// symbol and returns the per-symbol blocks it produced, for callers (and
// tests) that want to inspect what happened this tick.
func (l *Loop) Tick(ctx context.Context) []Block {
	blocks := make([]Block, 0, len(l.params.Symbols))
	var flattened []scanner.Opportunity

	for _, symbol := range l.params.Symbols {
		pairs := l.scan.Scan(ctx, symbol, l.params.Exchanges, scanner.Params{
			BudgetQuote:     l.params.BudgetQuote,
			WithdrawFeeBase: l.params.WithdrawFeeBase,
			StaleMs:         l.params.StaleMs,
			Depth:           l.params.Depth,
		})
		block := buildBlock(symbol, pairs, l.params.TopN, l.params.MinNetQuote, l.params.MinROIPct)
		blocks = append(blocks, block)
		metrics.OpportunitiesFound.Add(float64(len(block.Top)))
		flattened = append(flattened, block.Top...)
	}

	if len(flattened) == 0 && l.params.FallbackWhenEmpty {
		flattened = fallbackBatch(blocks)
	}

	if len(flattened) == 0 {
		return blocks
	}
	items := make([]publish.Item, 0, len(flattened))
	for _, o := range flattened {
		items = append(items, publish.FromOpportunity(o))
	}
	if err := l.publisher.Publish(ctx, items, l.params.TopN); err != nil {
		log.Printf("[strategy] publish failed: %v", err)
	}
	return blocks
}

// Run drives Tick on a fixed-interval ticker until ctx is canceled.
// Exceptions within a tick are caught and logged; the loop never
// terminates on its own (spec §4.6).
func (l *Loop) Run(ctx context.Context) {
	interval := time.Duration(l.params.IntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.runTickSafely(ctx)
		}
	}
}

func (l *Loop) runTickSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[strategy] tick panic recovered: %v", r)
		}
	}()
	l.Tick(ctx)
}

func buildBlock(symbol string, pairs []scanner.Opportunity, topN int, minNet, minROIPct float64) Block {
	block := Block{Symbol: symbol}

	debugN := topN
	if debugN > len(pairs) {
		debugN = len(pairs)
	}
	block.DebugTop = append([]scanner.Opportunity(nil), pairs[:debugN]...)

	// debug_best_any is the first recorded pair result, evaluated or not —
	// every entry returned by Scan has already been evaluated, so this is
	// simply the head of the (net-profit-sorted) list.
	if len(pairs) > 0 {
		p := pairs[0]
		block.DebugBestAny = &p
	}

	var filtered []scanner.Opportunity
	for _, o := range pairs {
		if !o.OK {
			continue
		}
		if o.Depth.NetProfitQuote < minNet {
			continue
		}
		if o.Depth.ROI*100 < minROIPct {
			continue
		}
		filtered = append(filtered, o)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Depth.NetProfitQuote > filtered[j].Depth.NetProfitQuote
	})
	if len(filtered) > topN {
		filtered = filtered[:topN]
	}
	block.Top = filtered
	if len(filtered) > 0 {
		best := filtered[0]
		block.Best = &best
	}
	return block
}

// fallbackBatch substitutes each symbol's debug_best_any (or debug_top[0])
// when the filtered batch is empty, per spec §4.6 step 5.
func fallbackBatch(blocks []Block) []scanner.Opportunity {
	var out []scanner.Opportunity
	for _, b := range blocks {
		if b.DebugBestAny != nil {
			out = append(out, *b.DebugBestAny)
		} else if len(b.DebugTop) > 0 {
			out = append(out, b.DebugTop[0])
		}
	}
	return out
}
