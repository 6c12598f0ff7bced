// Package metrics exposes Prometheus metrics for the arbitrage pipeline.
//
// Series:
//   - arb_books_written_total{exchange,symbol}      – snapshots written to the store
//   - arb_streamer_mode{exchange,symbol}             – 1 while streaming, 0 while polling
//   - arb_scan_pairs_evaluated_total                 – pair evaluations performed by the scanner
//   - arb_opportunities_found_total                  – opportunities surviving threshold filtering
//   - arb_publish_batches_total                       – opportunity batches published
//   - arb_paper_fills_total{result}                  – paper fills by result (filled|deduped|below_threshold)
//   - arb_adapter_errors_total{exchange,op}           – adapter-boundary errors by operation
//
// Registered in init() and served at /metrics by each cmd/ entrypoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BooksWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_books_written_total",
			Help: "Order-book snapshots written to the shared store",
		},
		[]string{"exchange", "symbol"},
	)

	StreamerMode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arb_streamer_mode",
			Help: "Active streamer mode per task (1=streaming, 0=polling)",
		},
		[]string{"exchange", "symbol"},
	)

	ScanPairsEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_scan_pairs_evaluated_total",
			Help: "Ordered exchange pairs evaluated by the scanner",
		},
	)

	OpportunitiesFound = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_opportunities_found_total",
			Help: "Opportunities surviving threshold filtering",
		},
	)

	PublishBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arb_publish_batches_total",
			Help: "Opportunity batches published to the channel and history stream",
		},
	)

	PaperFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_paper_fills_total",
			Help: "Paper fills by result",
		},
		[]string{"result"}, // filled|deduped|below_threshold
	)

	AdapterErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arb_adapter_errors_total",
			Help: "Adapter-boundary errors by exchange and operation",
		},
		[]string{"exchange", "op"},
	)
)

func init() {
	prometheus.MustRegister(BooksWritten, StreamerMode)
	prometheus.MustRegister(ScanPairsEvaluated, OpportunitiesFound, PublishBatches)
	prometheus.MustRegister(PaperFills, AdapterErrors)
}

func SetStreamerStreaming(exchange, symbol string) {
	StreamerMode.WithLabelValues(exchange, symbol).Set(1)
}

func SetStreamerPolling(exchange, symbol string) {
	StreamerMode.WithLabelValues(exchange, symbol).Set(0)
}
