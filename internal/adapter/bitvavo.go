// FILE: bitvavo.go
// Exchange Adapter for Bitvavo. Read-only public REST: order book, ticker
// price, and the markets/assets metadata used to build MarketMeta.
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

// BitvavoAdapter talks to api.bitvavo.com's public REST surface.
type BitvavoAdapter struct {
	baseURL string
	hc      *http.Client
	cache   *marketsCache
}

func NewBitvavoAdapter(baseURL string) *BitvavoAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.bitvavo.com/v2"
	}
	return &BitvavoAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 15 * time.Second},
		cache:   newMarketsCache(),
	}
}

func (bv *BitvavoAdapter) Name() string { return "bitvavo" }

func (bv *BitvavoAdapter) FetchOrderBook(ctx context.Context, symbol string, limit int) ([]book.Level, []book.Level, error) {
	venueSym, err := bv.ResolveSymbol(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	u := fmt.Sprintf("%s/%s/book?depth=%d", bv.baseURL, url.PathEscape(venueSym), limit)
	var payload struct {
		Bids [][2]any `json:"bids"`
		Asks [][2]any `json:"asks"`
	}
	if err := bv.getJSON(ctx, u, &payload); err != nil {
		return nil, nil, &AdapterError{Exchange: bv.Name(), Op: "fetch_order_book", Err: err}
	}
	asks, bids := sanitizeRawLevels(payload.Asks), sanitizeRawLevels(payload.Bids)
	asks, bids = book.Sanitize(asks, bids, limit)
	return asks, bids, nil
}

func (bv *BitvavoAdapter) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	venueSym, err := bv.ResolveSymbol(ctx, symbol)
	if err != nil {
		return Ticker{}, err
	}
	u := fmt.Sprintf("%s/ticker/price?market=%s", bv.baseURL, url.QueryEscape(venueSym))
	var payload struct {
		Price string `json:"price"`
	}
	if err := bv.getJSON(ctx, u, &payload); err != nil {
		return Ticker{}, &AdapterError{Exchange: bv.Name(), Op: "fetch_ticker", Err: err}
	}
	last, _ := strconv.ParseFloat(payload.Price, 64)
	return Ticker{Symbol: symbol, Last: last}, nil
}

func (bv *BitvavoAdapter) LoadMarkets(ctx context.Context) (map[string]MarketMeta, error) {
	if data, ok := bv.cache.get(); ok {
		return data, nil
	}
	var rows []struct {
		Market                  string `json:"market"`
		Status                  string `json:"status"`
		Base                    string `json:"base"`
		Quote                   string `json:"quote"`
		PricePrecision          int    `json:"pricePrecision"`
		MinOrderInBaseAsset     string `json:"minOrderInBaseAsset"`
		MaxOrderInBaseAsset     string `json:"maxOrderInBaseAsset"`
		MinOrderInQuoteAsset    string `json:"minOrderInQuoteAsset"`
		MaxOrderInQuoteAsset    string `json:"maxOrderInQuoteAsset"`
	}
	if err := bv.getJSON(ctx, bv.baseURL+"/markets", &rows); err != nil {
		return nil, &AdapterError{Exchange: bv.Name(), Op: "load_markets", Err: err}
	}
	out := make(map[string]MarketMeta, len(rows))
	for _, r := range rows {
		m := MarketMeta{
			TakerFee: 0.0025, // Bitvavo's published default taker tier
			Base:     strings.ToUpper(r.Base),
			Quote:    strings.ToUpper(r.Quote),
			Active:   r.Status == "trading",
		}
		if v, ok := parsePositiveFloat(r.MinOrderInBaseAsset); ok {
			m.MinBase = &v
		}
		if v, ok := parsePositiveFloat(r.MaxOrderInBaseAsset); ok {
			m.MaxBase = &v
		}
		if v, ok := parsePositiveFloat(r.MinOrderInQuoteAsset); ok {
			m.MinNotional = &v
		}
		if v, ok := parsePositiveFloat(r.MaxOrderInQuoteAsset); ok {
			m.MaxNotional = &v
		}
		out[r.Market] = m
	}
	bv.cache.set(out)
	return out, nil
}

func (bv *BitvavoAdapter) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	markets, err := bv.LoadMarkets(ctx)
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

func (bv *BitvavoAdapter) ResolveSymbol(ctx context.Context, canonical string) (string, error) {
	markets, err := bv.LoadMarkets(ctx)
	if err != nil {
		return "", err
	}
	venueSym, err := resolveFromMarkets(bv.Name(), canonical, func(c string) (string, bool) {
		if _, ok := markets[c]; ok {
			return c, true
		}
		return "", false
	}, markets)
	if err != nil {
		bv.cache.invalidate()
		return "", err
	}
	return venueSym, nil
}

func (bv *BitvavoAdapter) Ping(ctx context.Context) PingResult {
	localMs := time.Now().UnixMilli()
	var payload struct {
		Time int64 `json:"time"`
	}
	if err := bv.getJSON(ctx, bv.baseURL+"/time", &payload); err != nil {
		return PingResult{OK: false, LocalMs: &localMs}
	}
	return PingResult{OK: true, ServerTime: &payload.Time, LocalMs: &localMs}
}

func (bv *BitvavoAdapter) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "arbitrage-bot/bitvavo-adapter")
	res, err := bv.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bitvavo %s: %d: %s", u, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}
