// FILE: main.go
// Package main – Program entrypoint for the combined arbitrage pipeline.
//
// Boot sequence:
//   1) config.Load()                     – read environment knobs
//   2) connect to the shared store (Redis)
//   3) build one Adapter per configured exchange
//   4) launch one Streamer task per (exchange, symbol)
//   5) launch the Strategy Loop and Paper Executor
//   6) start the Prometheus /metrics server
//
// Flags:
//   -port <n>   HTTP port for /healthz and /metrics (default 8090)
//
// Example:
//   go run ./cmd/arbed -port 8090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matthijsko/arbitrage-bot/internal/adapter"
	"github.com/matthijsko/arbitrage-bot/internal/config"
	"github.com/matthijsko/arbitrage-bot/internal/paper"
	"github.com/matthijsko/arbitrage-bot/internal/publish"
	"github.com/matthijsko/arbitrage-bot/internal/scanner"
	"github.com/matthijsko/arbitrage-bot/internal/store"
	"github.com/matthijsko/arbitrage-bot/internal/strategy"
	"github.com/matthijsko/arbitrage-bot/internal/streamer"
)

func main() {
	var port int
	flag.IntVar(&port, "port", 8090, "HTTP port for /healthz and /metrics")
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	startStreamers(ctx, &wg, cfg, st, adapters)
	startStrategyLoop(ctx, &wg, cfg, st, adapters)
	startPaperExecutor(ctx, &wg, cfg, st)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		log.Printf("[arbed] serving :%d/healthz and :%d/metrics", port, port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[arbed] shutdown signal received")
	wg.Wait()

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

func startStreamers(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, st *store.Store, adapters map[string]adapter.Adapter) {
	for exchange, a := range adapters {
		for _, symbol := range cfg.StreamSymbols {
			task := &streamer.Task{
				Exchange: exchange, Symbol: symbol, Depth: cfg.OrderbookDepth,
				RestPollSec: cfg.RestPollSec, Adapter: a, Sink: st,
			}
			wg.Add(1)
			go func(t *streamer.Task) {
				defer wg.Done()
				t.Run(ctx)
			}(task)
		}
	}
}

func startStrategyLoop(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, st *store.Store, adapters map[string]adapter.Adapter) {
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
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()
}

func startPaperExecutor(ctx context.Context, wg *sync.WaitGroup, cfg config.Config, st *store.Store) {
	ex := paper.New(st, paper.Params{
		MinNetQuote: cfg.PaperMinNetQuote, MinROIPct: cfg.PaperMinROIPct,
		SlippageBps: cfg.PaperSlippageBps, DedupCooldownMs: cfg.PaperDedupCooldownMs,
		AllowNoProfit: cfg.AllowNoProfit, Stream: cfg.PaperStream,
	})
	sub := st.NewSubscription(ctx, cfg.PublishChannel)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ex.Run(ctx, sub)
	}()
}
