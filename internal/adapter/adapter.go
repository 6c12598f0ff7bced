// Package adapter implements the Exchange Adapter capability (spec §4.1,
// §6, component C1): uniform read-only access to one venue's order book,
// ticker, and market metadata, plus canonical<->venue symbol resolution.
//
// Adapters are synchronous; the pipeline isolates their blocking HTTP calls
// onto goroutines (spec §5 "Blocking calls of a synchronous adapter must be
// isolated to a worker pool").
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matthijsko/arbitrage-bot/internal/book"
)

// Error kinds from the §7 taxonomy that originate at the adapter boundary.
var (
	ErrAdapter      = errors.New("adapter: request failed")
	ErrSymbolNotFound = errors.New("adapter: symbol not found")
)

// AdapterError wraps a network/parse failure at the venue boundary.
type AdapterError struct {
	Exchange string
	Op       string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter[%s].%s: %v", e.Exchange, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error { return ErrAdapter }

// SymbolNotFoundError reports that no canonical<->venue mapping resolved.
type SymbolNotFoundError struct {
	Exchange string
	Symbol   string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("adapter[%s]: symbol %q not found", e.Exchange, e.Symbol)
}

func (e *SymbolNotFoundError) Unwrap() error { return ErrSymbolNotFound }

// MarketMeta is the Market Metadata record of §3. Only TakerFee is
// required; the venue default of 0.001 is applied by callers when absent.
type MarketMeta struct {
	TakerFee        float64
	MakerFee        *float64
	BaseStep        *float64
	PriceStep       *float64
	MinBase         *float64
	MaxBase         *float64
	MinNotional     *float64
	MaxNotional     *float64
	WithdrawFeeBase *float64
	Base            string
	Quote           string
	Active          bool
}

// DefaultTakerFee is applied when a venue reports no taker fee at all.
const DefaultTakerFee = 0.001

// PingResult is the best-effort liveness probe of §4.1.
type PingResult struct {
	OK         bool
	ServerTime *int64
	LocalMs    *int64
}

// Adapter is the uniform capability set the core pipeline consumes (§6).
type Adapter interface {
	// Name returns the canonical venue identifier, e.g. "kraken".
	Name() string

	// FetchOrderBook returns at most limit levels per side, sanitized and
	// ordered per §3.
	FetchOrderBook(ctx context.Context, symbol string, limit int) (asks, bids []book.Level, err error)

	// FetchTicker returns an opaque last-price snapshot. Used only by
	// external routes; the core pipeline never calls it.
	FetchTicker(ctx context.Context, symbol string) (Ticker, error)

	// LoadMarkets returns the venue's market metadata keyed by venue
	// symbol. Implementations memoize this with a coarse TTL (§9).
	LoadMarkets(ctx context.Context) (map[string]MarketMeta, error)

	// ListSymbols enumerates active canonical symbols, optionally filtered
	// by quote asset (empty string means no filter).
	ListSymbols(ctx context.Context, quote string) ([]string, error)

	// ResolveSymbol maps a canonical BASE/QUOTE symbol to this venue's
	// local symbol, using the synonym table on a cache miss.
	ResolveSymbol(ctx context.Context, canonical string) (string, error)

	// Ping is a best-effort liveness probe.
	Ping(ctx context.Context) PingResult
}

// Watcher is the optional push-subscription capability (§4.1
// watch_order_book, §4.3 step 1). Adapters that can't stream simply don't
// implement it; the Streamer falls back to polling.
type Watcher interface {
	WatchOrderBook(ctx context.Context, symbol string, limit int, out chan<- BookUpdate) error
}

// BookUpdate is one push update delivered by a Watcher.
type BookUpdate struct {
	Asks, Bids []book.Level
	TsMs       int64
}

// Ticker is an opaque last-price snapshot (§4.1 fetch_ticker). Its shape is
// venue-specific beyond the last trade price, which is all the core needs.
type Ticker struct {
	Symbol string
	Last   float64
}

// synonymClasses groups base-asset spellings that refer to the same asset
// across venues (§3, §9 "treat the base-synonym set as config data, not
// code"). The initial table contains only {BTC, XBT}; extend this map, not
// the resolution logic, to add venues with other spellings.
var synonymClasses = [][]string{
	{"BTC", "XBT"},
}

// baseCandidates returns every spelling a canonical base asset may appear
// as on a venue, including itself.
func baseCandidates(base string) map[string]struct{} {
	b := strings.ToUpper(strings.TrimSpace(base))
	out := map[string]struct{}{b: {}}
	for _, class := range synonymClasses {
		for _, member := range class {
			if member == b {
				for _, m := range class {
					out[m] = struct{}{}
				}
				return out
			}
		}
	}
	return out
}

// splitCanonical splits "BASE/QUOTE" into its parts.
func splitCanonical(canonical string) (base, quote string, ok bool) {
	parts := strings.SplitN(canonical, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.ToUpper(strings.TrimSpace(parts[0])), strings.ToUpper(strings.TrimSpace(parts[1])), true
}

// resolveFromMarkets implements the direct-hit-then-synonym-search policy
// of §4.1 resolve_symbol, shared by every concrete adapter.
func resolveFromMarkets(exchange, canonical string, direct func(string) (string, bool), markets map[string]MarketMeta) (string, error) {
	if venueSym, ok := direct(canonical); ok {
		return venueSym, nil
	}
	base, quote, ok := splitCanonical(canonical)
	if !ok {
		return "", &SymbolNotFoundError{Exchange: exchange, Symbol: canonical}
	}
	candidates := baseCandidates(base)
	for venueSym, m := range markets {
		if !m.Active {
			continue
		}
		if strings.ToUpper(m.Quote) != quote {
			continue
		}
		if _, ok := candidates[strings.ToUpper(m.Base)]; ok {
			return venueSym, nil
		}
	}
	return "", &SymbolNotFoundError{Exchange: exchange, Symbol: canonical}
}

// TakerFeeOrDefault returns m.TakerFee, falling back to DefaultTakerFee when
// the venue reported none (a zero value is ambiguous with "no fee", so
// adapters that truly have a 0 fee should set it explicitly via a pointer
// in a future revision; today taker fee is always populated by adapters).
func (m MarketMeta) TakerFeeOrDefault() float64 {
	if m.TakerFee > 0 {
		return m.TakerFee
	}
	return DefaultTakerFee
}
