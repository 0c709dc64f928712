package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RoundsStarted counts mining rounds started.
	RoundsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miner_rounds_started_total",
		Help: "Number of mining rounds started.",
	})

	// RoundsSkipped counts poll ticks skipped because a round was in flight.
	RoundsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miner_rounds_skipped_total",
		Help: "Number of poll ticks skipped because a previous round was still running.",
	})

	// BlocksMined counts blocks mined and confirmed by the ledger.
	BlocksMined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miner_blocks_mined_total",
		Help: "Number of blocks mined and accepted by the ledger service.",
	})

	// HashesComputed counts nonce trials across all workers.
	HashesComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miner_hashes_computed_total",
		Help: "Number of hash trials performed by search workers.",
	})

	// FetchFailures counts failed pending-transaction fetches.
	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miner_fetch_failures_total",
		Help: "Number of pending-transaction fetches that failed and were recovered as empty.",
	})

	// BlockSubmissions counts submission attempts by outcome.
	BlockSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "miner_block_submissions_total",
		Help: "Block submission outcomes.",
	}, []string{"outcome"})

	// SubmissionRetries counts individual retry attempts.
	SubmissionRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "miner_submission_retries_total",
		Help: "Number of block submission retry attempts.",
	})

	// Difficulty is the configured difficulty for this run.
	Difficulty = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miner_difficulty",
		Help: "Configured difficulty (leading hex zeros).",
	})

	// LocalHashrate is the estimated hash rate in hashes per second.
	LocalHashrate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miner_local_hashrate",
		Help: "Estimated local hash rate (H/s).",
	})

	// HistorySize is the number of mined rounds in the history store.
	HistorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miner_history_size",
		Help: "Number of mined blocks recorded in the history store.",
	})

	// UptimeSeconds is the process uptime.
	UptimeSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "miner_uptime_seconds",
		Help: "Process uptime in seconds.",
	})
)

// Handler returns the HTTP handler serving Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
