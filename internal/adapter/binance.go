// FILE: binance.go
// Exchange Adapter for Binance Spot. Read-only: depth, 24hr ticker and
// exchangeInfo, all unauthenticated public endpoints. No API key is needed
// since the pipeline never places orders (spec §1 Non-goals).
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matthijsko/arbitrage-bot/internal/book"
)

// BinanceAdapter talks to the public api.binance.com REST surface.
type BinanceAdapter struct {
	baseURL string
	hc      *http.Client
	cache   *marketsCache
}

func NewBinanceAdapter(baseURL string) *BinanceAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.binance.com"
	}
	return &BinanceAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second},
		cache:   newMarketsCache(),
	}
}

func (bb *BinanceAdapter) Name() string { return "binance" }

func (bb *BinanceAdapter) FetchOrderBook(ctx context.Context, symbol string, limit int) ([]book.Level, []book.Level, error) {
	venueSym, err := bb.ResolveSymbol(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	q := url.Values{"symbol": {venueSym}, "limit": {strconv.Itoa(clampBinanceDepth(limit))}}
	var payload struct {
		Bids [][2]any `json:"bids"`
		Asks [][2]any `json:"asks"`
	}
	if err := bb.get(ctx, "/api/v3/depth", q, &payload); err != nil {
		return nil, nil, &AdapterError{Exchange: bb.Name(), Op: "fetch_order_book", Err: err}
	}
	asks, bids := sanitizeRawLevels(payload.Asks), sanitizeRawLevels(payload.Bids)
	asks, bids = book.Sanitize(asks, bids, limit)
	return asks, bids, nil
}

// clampBinanceDepth snaps to one of Binance's accepted depth limits.
func clampBinanceDepth(limit int) int {
	for _, allowed := range []int{5, 10, 20, 50, 100, 500, 1000, 5000} {
		if limit <= allowed {
			return allowed
		}
	}
	return 5000
}

func (bb *BinanceAdapter) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	venueSym, err := bb.ResolveSymbol(ctx, symbol)
	if err != nil {
		return Ticker{}, err
	}
	var payload struct {
		Price string `json:"price"`
	}
	if err := bb.get(ctx, "/api/v3/ticker/price", url.Values{"symbol": {venueSym}}, &payload); err != nil {
		return Ticker{}, &AdapterError{Exchange: bb.Name(), Op: "fetch_ticker", Err: err}
	}
	last, _ := strconv.ParseFloat(payload.Price, 64)
	return Ticker{Symbol: symbol, Last: last}, nil
}

func (bb *BinanceAdapter) LoadMarkets(ctx context.Context) (map[string]MarketMeta, error) {
	if data, ok := bb.cache.get(); ok {
		return data, nil
	}
	var payload struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
			Status     string `json:"status"`
			Filters    []struct {
				FilterType  string `json:"filterType"`
				StepSize    string `json:"stepSize"`
				TickSize    string `json:"tickSize"`
				MinNotional string `json:"minNotional"`
				MinQty      string `json:"minQty"`
				MaxQty      string `json:"maxQty"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := bb.get(ctx, "/api/v3/exchangeInfo", nil, &payload); err != nil {
		return nil, &AdapterError{Exchange: bb.Name(), Op: "load_markets", Err: err}
	}
	out := make(map[string]MarketMeta, len(payload.Symbols))
	for _, s := range payload.Symbols {
		m := MarketMeta{
			TakerFee: DefaultTakerFee,
			Base:     strings.ToUpper(s.BaseAsset),
			Quote:    strings.ToUpper(s.QuoteAsset),
			Active:   s.Status == "TRADING",
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				if v, ok := parsePositiveFloat(f.StepSize); ok {
					m.BaseStep = &v
				}
				if v, ok := parsePositiveFloat(f.MinQty); ok {
					m.MinBase = &v
				}
				if v, ok := parsePositiveFloat(f.MaxQty); ok {
					m.MaxBase = &v
				}
			case "PRICE_FILTER":
				if v, ok := parsePositiveFloat(f.TickSize); ok {
					m.PriceStep = &v
				}
			case "MIN_NOTIONAL", "NOTIONAL":
				if v, ok := parsePositiveFloat(f.MinNotional); ok {
					m.MinNotional = &v
				}
			}
		}
		out[s.Symbol] = m
	}
	bb.cache.set(out)
	return out, nil
}

func (bb *BinanceAdapter) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	markets, err := bb.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}
	quote = strings.ToUpper(quote)
	var out []string
	for _, m := range markets {
		if !m.Active || (quote != "" && m.Quote != quote) {
			continue
		}
		out = append(out, fmt.Sprintf("%s/%s", m.Base, m.Quote))
	}
	return out, nil
}

func (bb *BinanceAdapter) ResolveSymbol(ctx context.Context, canonical string) (string, error) {
	markets, err := bb.LoadMarkets(ctx)
	if err != nil {
		return "", err
	}
	venueSym, err := resolveFromMarkets(bb.Name(), canonical, func(c string) (string, bool) {
		candidate := strings.ReplaceAll(c, "/", "")
		if _, ok := markets[candidate]; ok {
			return candidate, true
		}
		return "", false
	}, markets)
	if err != nil {
		bb.cache.invalidate()
		return "", err
	}
	return venueSym, nil
}

func (bb *BinanceAdapter) Ping(ctx context.Context) PingResult {
	localMs := time.Now().UnixMilli()
	var payload struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := bb.get(ctx, "/api/v3/time", nil, &payload); err != nil {
		return PingResult{OK: false, LocalMs: &localMs}
	}
	return PingResult{OK: true, ServerTime: &payload.ServerTime, LocalMs: &localMs}
}

func (bb *BinanceAdapter) get(ctx context.Context, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	u := bb.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := bb.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	bs, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("binance GET %s: %d: %s", path, res.StatusCode, string(bs))
	}
	return json.Unmarshal(bs, out)
}
