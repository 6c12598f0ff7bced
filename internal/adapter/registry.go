package adapter

import "fmt"

// Supported lists the venue names the pipeline can build an Adapter for,
// mirroring the original's SUPPORTED exchange dict and the teacher's
// main.go broker-selection switch.
var Supported = []string{"coinbase", "binance", "kraken", "bitvavo"}

// Config carries the per-venue base-URL overrides used in tests and in
// sandbox/staging deployments; empty fields fall back to each adapter's
// production default.
type Config struct {
	CoinbaseBaseURL string
	BinanceBaseURL  string
	KrakenBaseURL   string
	BitvavoBaseURL  string
}

// New builds the Adapter for a supported venue name. Unknown names return
// an error rather than panicking, since venue lists are driven by runtime
// configuration (spec §6 EXCHANGES).
func New(name string, cfg Config) (Adapter, error) {
	switch name {
	case "coinbase":
		return NewCoinbaseAdapter(cfg.CoinbaseBaseURL), nil
	case "binance":
		return NewBinanceAdapter(cfg.BinanceBaseURL), nil
	case "kraken":
		return NewKrakenAdapter(cfg.KrakenBaseURL), nil
	case "bitvavo":
		return NewBitvavoAdapter(cfg.BitvavoBaseURL), nil
	default:
		return nil, fmt.Errorf("adapter: unsupported exchange %q", name)
	}
}

// NewAll builds adapters for every name in names, stopping at the first
// unsupported venue.
func NewAll(names []string, cfg Config) (map[string]Adapter, error) {
	out := make(map[string]Adapter, len(names))
	for _, name := range names {
		a, err := New(name, cfg)
		if err != nil {
			return nil, err
		}
		out[name] = a
	}
	return out, nil
}

// IsSupported reports whether name is one of Supported.
func IsSupported(name string) bool {
	for _, s := range Supported {
		if s == name {
			return true
		}
	}
	return false
}
