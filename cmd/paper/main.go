// FILE: main.go
// Package main – Standalone Paper Executor process: subscribes to the
// opportunity channel, applies thresholds and dedup, and appends
// slippage-adjusted simulated fills to the bounded trade stream.
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

	"github.com/matthijsko/arbitrage-bot/internal/config"
	"github.com/matthijsko/arbitrage-bot/internal/paper"
	"github.com/matthijsko/arbitrage-bot/internal/store"
)

func main() {
	var port int
	flag.IntVar(&port, "port", 8093, "HTTP port for /healthz and /metrics")
	flag.Parse()

	cfg := config.Load()
	st, err := store.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	ex := paper.New(st, paper.Params{
		MinNetQuote: cfg.PaperMinNetQuote, MinROIPct: cfg.PaperMinROIPct,
		SlippageBps: cfg.PaperSlippageBps, DedupCooldownMs: cfg.PaperDedupCooldownMs,
		AllowNoProfit: cfg.AllowNoProfit, Stream: cfg.PaperStream,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	sub := st.NewSubscription(ctx, cfg.PublishChannel)
	go ex.Run(ctx, sub)

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
		log.Printf("[paper] serving on :%d", port)
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}()

	<-ctx.Done()
	log.Println("[paper] shutdown signal received")
}
