// FILE: kraken.go
// Exchange Adapter for Kraken Spot. Public REST only: Depth, Ticker and
// AssetPairs, matching the read-only surface the pipeline needs.
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

// KrakenAdapter talks to api.kraken.com's public REST surface.
type KrakenAdapter struct {
	baseURL string
	hc      *http.Client
	cache   *marketsCache
}

func NewKrakenAdapter(baseURL string) *KrakenAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.kraken.com"
	}
	return &KrakenAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 15 * time.Second},
		cache:   newMarketsCache(),
	}
}

func (kr *KrakenAdapter) Name() string { return "kraken" }

// krakenEnvelope wraps every Kraken public response: {"error": [...], "result": {...}}.
type krakenEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (kr *KrakenAdapter) FetchOrderBook(ctx context.Context, symbol string, limit int) ([]book.Level, []book.Level, error) {
	venueSym, err := kr.ResolveSymbol(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	q := url.Values{"pair": {venueSym}, "count": {strconv.Itoa(limit)}}
	var result map[string]struct {
		Asks [][3]any `json:"asks"`
		Bids [][3]any `json:"bids"`
	}
	if err := kr.get(ctx, "/0/public/Depth", q, &result); err != nil {
		return nil, nil, &AdapterError{Exchange: kr.Name(), Op: "fetch_order_book", Err: err}
	}
	book3, ok := result[venueSym]
	if !ok {
		for _, v := range result {
			book3 = v
			break
		}
	}
	asks, bids := sanitizeRawLevels3(book3.Asks), sanitizeRawLevels3(book3.Bids)
	asks, bids = book.Sanitize(asks, bids, limit)
	return asks, bids, nil
}

func (kr *KrakenAdapter) FetchTicker(ctx context.Context, symbol string) (Ticker, error) {
	venueSym, err := kr.ResolveSymbol(ctx, symbol)
	if err != nil {
		return Ticker{}, err
	}
	var result map[string]struct {
		C [2]string `json:"c"`
	}
	if err := kr.get(ctx, "/0/public/Ticker", url.Values{"pair": {venueSym}}, &result); err != nil {
		return Ticker{}, &AdapterError{Exchange: kr.Name(), Op: "fetch_ticker", Err: err}
	}
	row, ok := result[venueSym]
	if !ok {
		for _, v := range result {
			row = v
			break
		}
	}
	last, _ := strconv.ParseFloat(row.C[0], 64)
	return Ticker{Symbol: symbol, Last: last}, nil
}

func (kr *KrakenAdapter) LoadMarkets(ctx context.Context) (map[string]MarketMeta, error) {
	if data, ok := kr.cache.get(); ok {
		return data, nil
	}
	var result map[string]struct {
		Altname       string   `json:"altname"`
		Base          string   `json:"base"`
		Quote         string   `json:"quote"`
		LotDecimals   int      `json:"lot_decimals"`
		OrderMin      string   `json:"ordermin"`
		CostMin       string   `json:"costmin"`
		Status        string   `json:"status"`
		Fees          [][2]any `json:"fees"`
	}
	if err := kr.get(ctx, "/0/public/AssetPairs", nil, &result); err != nil {
		return nil, &AdapterError{Exchange: kr.Name(), Op: "load_markets", Err: err}
	}
	out := make(map[string]MarketMeta, len(result))
	for pairKey, p := range result {
		takerFee := DefaultTakerFee
		if len(p.Fees) > 0 {
			if f, ok := toFloat(p.Fees[0][1]); ok {
				takerFee = f / 100.0
			}
		}
		m := MarketMeta{
			TakerFee: takerFee,
			Base:     strings.ToUpper(normalizeKrakenAsset(p.Base)),
			Quote:    strings.ToUpper(normalizeKrakenAsset(p.Quote)),
			Active:   p.Status == "online",
		}
		if p.LotDecimals > 0 {
			step := 1.0
			for i := 0; i < p.LotDecimals; i++ {
				step /= 10
			}
			m.BaseStep = &step
		}
		if v, ok := parsePositiveFloat(p.OrderMin); ok {
			m.MinBase = &v
		}
		if v, ok := parsePositiveFloat(p.CostMin); ok {
			m.MinNotional = &v
		}
		out[pairKey] = m
		if p.Altname != "" && p.Altname != pairKey {
			out[p.Altname] = m
		}
	}
	kr.cache.set(out)
	return out, nil
}

// normalizeKrakenAsset strips Kraken's legacy X/Z asset-code prefixes
// (XXBT, ZUSD, ...) down to the conventional ticker.
func normalizeKrakenAsset(code string) string {
	if len(code) == 4 && (code[0] == 'X' || code[0] == 'Z') {
		return code[1:]
	}
	return code
}

func (kr *KrakenAdapter) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	markets, err := kr.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}
	quote = strings.ToUpper(quote)
	seen := make(map[string]struct{})
	var out []string
	for _, m := range markets {
		if !m.Active || (quote != "" && m.Quote != quote) {
			continue
		}
		sym := fmt.Sprintf("%s/%s", m.Base, m.Quote)
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out, nil
}

func (kr *KrakenAdapter) ResolveSymbol(ctx context.Context, canonical string) (string, error) {
	markets, err := kr.LoadMarkets(ctx)
	if err != nil {
		return "", err
	}
	venueSym, err := resolveFromMarkets(kr.Name(), canonical, func(c string) (string, bool) {
		candidate := strings.ReplaceAll(c, "/", "")
		if _, ok := markets[candidate]; ok {
			return candidate, true
		}
		return "", false
	}, markets)
	if err != nil {
		kr.cache.invalidate()
		return "", err
	}
	return venueSym, nil
}

func (kr *KrakenAdapter) Ping(ctx context.Context) PingResult {
	localMs := time.Now().UnixMilli()
	var result struct {
		UnixTime int64 `json:"unixtime"`
	}
	if err := kr.get(ctx, "/0/public/Time", nil, &result); err != nil {
		return PingResult{OK: false, LocalMs: &localMs}
	}
	serverMs := result.UnixTime * 1000
	return PingResult{OK: true, ServerTime: &serverMs, LocalMs: &localMs}
}

func (kr *KrakenAdapter) get(ctx context.Context, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	u := kr.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	res, err := kr.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	bs, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("kraken GET %s: %d: %s", path, res.StatusCode, string(bs))
	}
	var env krakenEnvelope
	if err := json.Unmarshal(bs, &env); err != nil {
		return err
	}
	if len(env.Error) > 0 {
		return fmt.Errorf("kraken GET %s: %s", path, strings.Join(env.Error, "; "))
	}
	return json.Unmarshal(env.Result, out)
}

// sanitizeRawLevels3 handles Kraken's [price, volume, timestamp] triples,
// reusing toFloat but ignoring the trailing timestamp column.
func sanitizeRawLevels3(rows [][3]any) []book.Level {
	out := make([]book.Level, 0, len(rows))
	for _, row := range rows {
		price, ok := toFloat(row[0])
		if !ok {
			continue
		}
		size, ok := toFloat(row[1])
		if !ok {
			continue
		}
		if price > 0 && size > 0 {
			out = append(out, book.Level{Price: price, SizeBase: size})
		}
	}
	return out
}
