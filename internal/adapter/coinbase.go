// FILE: coinbase.go
// Exchange Adapter for Coinbase Advanced Trade spot. Uses only the public
// market-data surface (products, product book, ticker) — no API key is
// needed for the read-only operations this pipeline performs.
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

// CoinbaseAdapter talks to api.coinbase.com's public brokerage endpoints.
type CoinbaseAdapter struct {
	apiBase string
	hc      *http.Client
	cache   *marketsCache
}

// NewCoinbaseAdapter builds a Coinbase adapter. apiBase defaults to the
// production REST host when empty.
func NewCoinbaseAdapter(apiBase string) *CoinbaseAdapter {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.coinbase.com"
	}
	return &CoinbaseAdapter{
		apiBase: strings.TrimRight(apiBase, "/"),
		hc:      &http.Client{Timeout: 15 * time.Second},
		cache:   newMarketsCache(),
	}
}

func (cb *CoinbaseAdapter) Name() string { return "coinbase" }

func (cb *CoinbaseAdapter) FetchOrderBook(ctx context.Context, symbol string, limit int) ([]book.Level, []book.Level, error) {
	venueSym, err := cb.ResolveSymbol(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	u := fmt.Sprintf("%s/api/v3/brokerage/market/product_book?product_id=%s&limit=%d",
		cb.apiBase, url.QueryEscape(venueSym), limit)

	var payload struct {
		Pricebook struct {
			Bids [][2]any `json:"bids"`
			Asks [][2]any `json:"asks"`
		} `json:"pricebook"`
	}
	if err := cb.getJSON(ctx, u, &payload); err != nil {
		return nil, nil, &AdapterError{Exchange: cb.Name(), Op: "fetch_order_book", Err: err}
	}
	asks, bids := sanitizeRawLevels(payload.Pricebook.Asks), sanitizeRawLevels(payload.Pricebook.Bids)
	asks, bids = book.Sanitize(asks, bids, limit)
	return asks, bids, nil
}

func (cb *CoinbaseAdapter) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	venueSym, err := cb.ResolveSymbol(ctx, symbol)
	if err != nil {
		return Ticker{}, err
	}
	u := fmt.Sprintf("%s/api/v3/brokerage/market/products/%s/ticker", cb.apiBase, url.PathEscape(venueSym))
	var payload struct {
		Trades []struct {
			Price string `json:"price"`
		} `json:"trades"`
	}
	if err := cb.getJSON(ctx, u, &payload); err != nil {
		return Ticker{}, &AdapterError{Exchange: cb.Name(), Op: "fetch_ticker", Err: err}
	}
	if len(payload.Trades) == 0 {
		return Ticker{}, &AdapterError{Exchange: cb.Name(), Op: "fetch_ticker", Err: fmt.Errorf("no trades in ticker payload")}
	}
	last, _ := strconv.ParseFloat(payload.Trades[0].Price, 64)
	return Ticker{Symbol: symbol, Last: last}, nil
}

func (cb *CoinbaseAdapter) LoadMarkets(ctx context.Context) (map[string]MarketMeta, error) {
	if data, ok := cb.cache.get(); ok {
		return data, nil
	}
	u := cb.apiBase + "/api/v3/brokerage/market/products"
	var payload struct {
		Products []struct {
			ProductID           string `json:"product_id"`
			BaseCurrencyID      string `json:"base_currency_id"`
			QuoteCurrencyID     string `json:"quote_currency_id"`
			BaseIncrement       string `json:"base_increment"`
			QuoteIncrement      string `json:"quote_increment"`
			BaseMinSize         string `json:"base_min_size"`
			BaseMaxSize         string `json:"base_max_size"`
			QuoteMinSize        string `json:"quote_min_size"`
			QuoteMaxSize        string `json:"quote_max_size"`
			TradingDisabled     bool   `json:"trading_disabled"`
		} `json:"products"`
	}
	if err := cb.getJSON(ctx, u, &payload); err != nil {
		return nil, &AdapterError{Exchange: cb.Name(), Op: "load_markets", Err: err}
	}
	out := make(map[string]MarketMeta, len(payload.Products))
	for _, p := range payload.Products {
		m := MarketMeta{
			TakerFee: DefaultTakerFee,
			Base:     strings.ToUpper(p.BaseCurrencyID),
			Quote:    strings.ToUpper(p.QuoteCurrencyID),
			Active:   !p.TradingDisabled,
		}
		if v, ok := parsePositiveFloat(p.BaseIncrement); ok {
			m.BaseStep = &v
		}
		if v, ok := parsePositiveFloat(p.QuoteIncrement); ok {
			m.PriceStep = &v
		}
		if v, ok := parsePositiveFloat(p.BaseMinSize); ok {
			m.MinBase = &v
		}
		if v, ok := parsePositiveFloat(p.BaseMaxSize); ok {
			m.MaxBase = &v
		}
		if v, ok := parsePositiveFloat(p.QuoteMinSize); ok {
			m.MinNotional = &v
		}
		if v, ok := parsePositiveFloat(p.QuoteMaxSize); ok {
			m.MaxNotional = &v
		}
		out[p.ProductID] = m
	}
	cb.cache.set(out)
	return out, nil
}

func (cb *CoinbaseAdapter) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	markets, err := cb.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}
	quote = strings.ToUpper(quote)
	var out []string
	for venueSym, m := range markets {
		if !m.Active {
			continue
		}
		if quote != "" && m.Quote != quote {
			continue
		}
		out = append(out, fmt.Sprintf("%s/%s", m.Base, m.Quote))
		_ = venueSym
	}
	return out, nil
}

func (cb *CoinbaseAdapter) ResolveSymbol(ctx context.Context, canonical string) (string, error) {
	markets, err := cb.LoadMarkets(ctx)
	if err != nil {
		return "", err
	}
	venueSym, err := resolveFromMarkets(cb.Name(), canonical, func(c string) (string, bool) {
		candidate := strings.ReplaceAll(c, "/", "-")
		if _, ok := markets[candidate]; ok {
			return candidate, true
		}
		return "", false
	}, markets)
	if err != nil {
		cb.cache.invalidate()
		return "", err
	}
	return venueSym, nil
}

func (cb *CoinbaseAdapter) Ping(ctx context.Context) PingResult {
	u := cb.apiBase + "/api/v3/brokerage/time"
	var payload struct {
		EpochSeconds string `json:"epochSeconds"`
	}
	localMs := time.Now().UnixMilli()
	if err := cb.getJSON(ctx, u, &payload); err != nil {
		return PingResult{OK: false, LocalMs: &localMs}
	}
	serverSec, err := strconv.ParseInt(payload.EpochSeconds, 10, 64)
	if err != nil {
		return PingResult{OK: true, LocalMs: &localMs}
	}
	serverMs := serverSec * 1000
	return PingResult{OK: true, ServerTime: &serverMs, LocalMs: &localMs}
}

func (cb *CoinbaseAdapter) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "arbitrage-bot/coinbase-adapter")
	res, err := cb.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("coinbase %s: %d: %s", u, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func parsePositiveFloat(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
