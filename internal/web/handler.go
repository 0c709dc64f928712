package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/tepan024/minerkagecoin/internal/metrics"
)

// StatusData holds all status metrics for the JSON API and dashboard.
type StatusData struct {
	MinerAddress    string      `json:"miner_address"`
	Difficulty      int         `json:"difficulty"`
	Workers         int         `json:"workers"`
	RoundsCompleted int64       `json:"rounds_completed"`
	RoundsSkipped   int64       `json:"rounds_skipped"`
	BlocksMined     int         `json:"blocks_mined"`
	LocalHashrate   float64     `json:"local_hashrate"`
	LastBlockHash   string      `json:"last_block_hash"`
	LastBlockTime   int64       `json:"last_block_time"`
	Uptime          int64       `json:"uptime_secs"`
	RecentBlocks    []BlockInfo `json:"recent_blocks"`
}

// BlockInfo describes a single mined block for the dashboard.
type BlockInfo struct {
	Hash       string `json:"hash"`
	Nonce      int64  `json:"nonce"`
	TxCount    int    `json:"tx_count"`
	Timestamp  int64  `json:"timestamp"`
	DurationMs int64  `json:"duration_ms"`
	RewardOnly bool   `json:"reward_only"`
}

// statusCache holds a cached JSON response so frequent polling doesn't
// re-collect status on every request.
type statusCache struct {
	mu      sync.Mutex
	data    []byte
	expires time.Time
}

const statusCacheTTL = 2 * time.Second

func (c *statusCache) get(dataFunc func() *StatusData) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.expires) {
		return c.data
	}
	buf, _ := json.Marshal(dataFunc())
	c.data = buf
	c.expires = time.Now().Add(statusCacheTTL)
	return c.data
}

// NewHandler creates an HTTP handler serving the dashboard, the JSON status
// API, and Prometheus metrics.
func NewHandler(dataFunc func() *StatusData) http.Handler {
	mux := http.NewServeMux()
	cache := &statusCache{}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Security-Policy",
			"default-src 'none'; script-src 'unsafe-inline'; style-src 'unsafe-inline'; connect-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Write([]byte(dashboardHTML))
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Write(cache.get(dataFunc))
	})

	mux.Handle("/metrics", metrics.Handler())

	return mux
}
