// FILE: main.go
// Package main – Standalone Streamer process: runs one task per
// (exchange, symbol) and writes snapshots into the shared store. Split out
// from cmd/arbed so the streaming fleet can scale independently of the
// strategy/paper processes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matthijsko/arbitrage-bot/internal/adapter"
	"github.com/matthijsko/arbitrage-bot/internal/config"
	"github.com/matthijsko/arbitrage-bot/internal/store"
	"github.com/matthijsko/arbitrage-bot/internal/streamer"
)

func main() {
	var port int
	flag.IntVar(&port, "port", 8091, "HTTP port for /healthz and /metrics")
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
		log.Printf("[streamer] serving on :%d", port)
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
	}()

	<-ctx.Done()
	log.Println("[streamer] shutdown signal received")
	wg.Wait()
}
