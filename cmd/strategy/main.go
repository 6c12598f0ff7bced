// FILE: main.go
// Package main – Standalone Strategy Loop process: scans every configured
// symbol on a fixed interval and publishes qualifying opportunities.
// Reads order-book snapshots from the shared store and writes only the
// opportunity channel and history stream; runs independently of the
// streaming fleet and the paper executor.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matthijsko/arbitrage-bot/internal/adapter"
	"github.com/matthijsko/arbitrage-bot/internal/config"
	"github.com/matthijsko/arbitrage-bot/internal/publish"
	"github.com/matthijsko/arbitrage-bot/internal/scanner"
	"github.com/matthijsko/arbitrage-bot/internal/store"
	"github.com/matthijsko/arbitrage-bot/internal/strategy"
)

func main() {
	var port int
	flag.IntVar(&port, "port", 8092, "HTTP port for /healthz and /metrics")
	flag.Parse()

	cfg := config.Load()
	st, err := store.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	adapters, err := adapter.NewAll(cfg.StreamExchanges, adapter.Config{})
	if err != nil {
		log.Fatalf("adapter: %v", err)
	}

	sc := scanner.New(st, adapters)
	pub := publish.New(st, cfg.PublishChannel, cfg.PublishStream)
	loop := strategy.New(sc, pub, strategy.Params{
		Symbols: cfg.StreamSymbols, Exchanges: cfg.StreamExchanges,
		BudgetQuote: cfg.StratBudgetQuote, WithdrawFeeBase: cfg.StratWithdrawFeeBase,
		MinNetQuote: cfg.StratMinNetQuote, MinROIPct: cfg.StratMinROIPct,
		IntervalMs: cfg.StratIntervalMs, TopN: cfg.StratTopN,
		StaleMs: int64(cfg.OrderbookStaleMs), Depth: cfg.OrderbookDepth,
		FallbackWhenEmpty: cfg.PublishFallbackWhenEmpty,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go loop.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("[strategy] serving on :%d", port)
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}()

	<-ctx.Done()
	log.Println("[strategy] shutdown signal received")
}
