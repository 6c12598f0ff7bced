// Package config centralizes the environment-variable knobs of spec §6 the
// way env.go/config.go do in the single-venue predecessor: small typed
// getters plus one struct that's populated once at process start.
package config

import (
	"os"
	"strconv"
	"strings"
)

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// getEnvFloatPtr returns nil when the variable is unset, distinguishing
// "not configured" from "configured as zero" for optional thresholds like
// PAPER_MIN_NET_QUOTE.
func getEnvFloatPtr(key string) *float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Config holds every runtime knob named in spec §6, grouped by the
// component that consumes it.
type Config struct {
	RedisURL string

	OrderbookStaleMs int
	OrderbookDepth   int
	RestPollSec      float64

	StreamExchanges []string
	StreamSymbols   []string

	StratBudgetQuote     float64
	StratWithdrawFeeBase float64
	StratMinNetQuote     float64
	StratMinROIPct       float64
	StratIntervalMs      int
	StratTopN            int

	PublishChannel          string
	PublishStream           string
	PublishFallbackWhenEmpty bool

	PaperStream          string
	PaperMinNetQuote     *float64
	PaperMinROIPct       *float64
	PaperSlippageBps     float64
	PaperDedupCooldownMs int64

	AllowNoProfit bool
}

// Load reads the process environment (already hydrated by whatever process
// bootstrap called os.Setenv / a .env loader) and returns a Config with the
// spec-documented defaults applied for anything missing.
func Load() Config {
	return Config{
		RedisURL: getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),

		OrderbookStaleMs: getEnvInt("ORDERBOOK_STALE_MS", 5000),
		OrderbookDepth:   getEnvInt("ORDERBOOK_DEPTH", 50),
		RestPollSec:      getEnvFloat("REST_POLL_SEC", 2.0),

		StreamExchanges: getEnvList("STREAM_EXCHANGES", []string{"bitvavo", "coinbase", "kraken"}),
		StreamSymbols:   getEnvList("STREAM_SYMBOLS", []string{"BTC/EUR", "ETH/EUR"}),

		StratBudgetQuote:     getEnvFloat("STRAT_BUDGET_QUOTE", 250),
		StratWithdrawFeeBase: getEnvFloat("STRAT_WITHDRAW_FEE_BASE", 0),
		StratMinNetQuote:     getEnvFloat("STRAT_MIN_NET_QUOTE", 0),
		StratMinROIPct:       getEnvFloat("STRAT_MIN_ROI_PCT", 0),
		StratIntervalMs:      getEnvInt("STRAT_INTERVAL_MS", 1500),
		StratTopN:            getEnvInt("STRAT_TOPN", 5),

		PublishChannel:           getEnv("PUBLISH_CHANNEL", "opps"),
		PublishStream:            getEnv("PUBLISH_STREAM", "opps_stream"),
		PublishFallbackWhenEmpty: getEnvBool("PUBLISH_FALLBACK_WHEN_EMPTY", true),

		PaperStream:          getEnv("PAPER_STREAM", "paper_trades"),
		PaperMinNetQuote:     getEnvFloatPtr("PAPER_MIN_NET_QUOTE"),
		PaperMinROIPct:       getEnvFloatPtr("PAPER_MIN_ROI_PCT"),
		PaperSlippageBps:     getEnvFloat("PAPER_SLIPPAGE_BPS", 2),
		PaperDedupCooldownMs: int64(getEnvInt("PAPER_DEDUP_COOLDOWN_MS", 4000)),

		AllowNoProfit: getEnvBool("ALLOW_NO_PROFIT", true),
	}
}
