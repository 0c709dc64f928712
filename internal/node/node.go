package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tepan024/minerkagecoin/internal/block"
	"github.com/tepan024/minerkagecoin/internal/config"
	"github.com/tepan024/minerkagecoin/internal/history"
	"github.com/tepan024/minerkagecoin/internal/ledger"
	"github.com/tepan024/minerkagecoin/internal/metrics"
	"github.com/tepan024/minerkagecoin/internal/miner"
	"github.com/tepan024/minerkagecoin/internal/submit"
	"github.com/tepan024/minerkagecoin/internal/web"

	"go.uber.org/zap"
)

const statusLogInterval = 30 * time.Second

// ledgerClient is the ledger service surface the node depends on.
type ledgerClient interface {
	PendingTransactions(ctx context.Context) ([]block.Transaction, error)
	SubmitBlock(ctx context.Context, sub *ledger.SubmitRequest) (string, error)
}

// Node is the top-level orchestrator for the mining worker: it owns the
// round loop that fetches pending transactions, mines, and submits.
type Node struct {
	config *config.Config
	logger *zap.Logger

	minerAddress string

	ledger      ledgerClient
	coordinator *miner.Coordinator
	controller  *submit.Controller
	store       *history.Store

	roundsCompleted atomic.Int64
	roundsSkipped   atomic.Int64

	// Last block mined by this worker
	lastBlockMu   sync.RWMutex
	lastBlockHash string
	lastBlockTime time.Time

	// Hashrate sampling (delta of the coordinator's trial counter)
	hrMu       sync.Mutex
	lastHashes int64
	lastSample time.Time
	hashrate   float64

	startTime time.Time
	httpSrv   *http.Server
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewNode creates a new mining worker node.
func NewNode(cfg *config.Config, minerAddress string, logger *zap.Logger) *Node {
	return &Node{
		config:       cfg,
		logger:       logger,
		minerAddress: minerAddress,
	}
}

// Start initializes all subsystems and launches the round loop.
func (n *Node) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.startTime = time.Now()
	n.lastSample = n.startTime

	client := ledger.NewClient(n.config.LedgerURL(), n.logger)
	n.ledger = client

	// Reachability probe. Fetch failures are recovered per-round, so an
	// unreachable ledger at startup is only worth a warning.
	probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
	if _, err := client.PendingTransactions(probeCtx); err != nil {
		n.logger.Warn("ledger service not reachable yet", zap.Error(err), zap.String("url", n.config.LedgerURL()))
	} else {
		n.logger.Info("connected to ledger service", zap.String("url", n.config.LedgerURL()))
	}
	probeCancel()

	if err := os.MkdirAll(n.config.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := history.Open(filepath.Join(n.config.DataDir, "history.db"), n.logger)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	n.store = store
	n.loadLastBlock()

	n.coordinator = miner.NewCoordinator(n.minerAddress, n.config.Difficulty, n.config.ParallelWorkers, n.logger)
	n.controller = submit.NewController(client, n.minerAddress, n.config.MaxRetries, n.config.RetryDelay, n.logger)

	metrics.Difficulty.Set(float64(n.config.Difficulty))
	metrics.HistorySize.Set(float64(n.store.Count()))

	if n.config.StatusPort > 0 {
		n.httpSrv = &http.Server{
			Addr:    fmt.Sprintf("0.0.0.0:%d", n.config.StatusPort),
			Handler: web.NewHandler(n.statusData),
		}
		go func() {
			if err := n.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.logger.Error("status server failed", zap.Error(err))
			}
		}()
	}

	n.done = make(chan struct{})
	go n.run(ctx)

	n.logger.Info("mining worker started",
		zap.String("miner_address", n.minerAddress),
		zap.Int("difficulty", n.config.Difficulty),
		zap.Int("workers", n.config.ParallelWorkers),
		zap.Duration("poll_interval", n.config.PollInterval),
	)

	return nil
}

// Stop cancels the current round, waits for the loop to finish, and closes
// all subsystems.
func (n *Node) Stop() {
	n.logger.Info("shutting down mining worker...")

	if n.cancel != nil {
		n.cancel()
	}
	if n.done != nil {
		<-n.done
	}
	if n.httpSrv != nil {
		n.httpSrv.Close()
	}
	if n.store != nil {
		n.store.Close()
	}

	n.logger.Info("mining worker stopped")
}

// run is the scheduling loop. Rounds are strictly serialized: a round runs
// to completion (including submission retries) on this goroutine before the
// next tick is read. A tick that fired while a round was in flight is
// dropped and counted as skipped instead of starting a concurrent round.
func (n *Node) run(ctx context.Context) {
	defer close(n.done)

	pollTicker := time.NewTicker(n.config.PollInterval)
	defer pollTicker.Stop()

	statusTicker := time.NewTicker(statusLogInterval)
	defer statusTicker.Stop()

	// First round immediately; subsequent rounds on poll ticks.
	n.runRound(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case <-pollTicker.C:
			n.runRound(ctx)
			select {
			case <-pollTicker.C:
				n.roundsSkipped.Add(1)
				metrics.RoundsSkipped.Inc()
				n.logger.Debug("poll tick skipped, previous round was still running")
			default:
			}

		case <-statusTicker.C:
			n.logStatus()
		}
	}
}

// runRound executes one full fetch → mine → submit round.
func (n *Node) runRound(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	metrics.RoundsStarted.Inc()
	start := time.Now()

	txs, err := n.ledger.PendingTransactions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Never fatal: an unreachable or malformed response means we mine
		// an empty set, which yields a reward-only block.
		metrics.FetchFailures.Inc()
		n.logger.Warn("pending transaction fetch failed, mining empty set", zap.Error(err))
		txs = nil
	}

	mb, err := n.coordinator.Mine(ctx, txs)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		n.logger.Error("mining round failed", zap.Error(err))
		return
	}

	confirmed, err := n.controller.Submit(ctx, mb)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		n.logger.Error("round abandoned: block could not be submitted",
			zap.String("hash", mb.Hash),
			zap.Error(err),
		)
		return
	}

	metrics.BlocksMined.Inc()
	n.roundsCompleted.Add(1)
	n.recordBlock(mb, confirmed, time.Since(start))
}

// recordBlock persists a mined round and updates the last-block tracking.
func (n *Node) recordBlock(mb *block.MinedBlock, confirmedHash string, elapsed time.Duration) {
	rewardOnly := len(mb.Transactions) == 1 && mb.Transactions[0].IsReward()

	n.lastBlockMu.Lock()
	n.lastBlockHash = mb.Hash
	n.lastBlockTime = time.Now()
	n.lastBlockMu.Unlock()

	rec := &history.Record{
		Hash:          mb.Hash,
		ConfirmedHash: confirmedHash,
		Nonce:         mb.Nonce,
		TxCount:       len(mb.Transactions),
		Difficulty:    n.config.Difficulty,
		MinedAt:       time.Now().Unix(),
		DurationMs:    elapsed.Milliseconds(),
		RewardOnly:    rewardOnly,
	}
	if err := n.store.Add(rec); err != nil {
		n.logger.Warn("failed to persist mined round", zap.Error(err))
	}
	metrics.HistorySize.Set(float64(n.store.Count()))

	n.logger.Info("BLOCK MINED",
		zap.String("hash", mb.Hash),
		zap.String("confirmed_hash", confirmedHash),
		zap.Int64("nonce", mb.Nonce),
		zap.Int("transactions", len(mb.Transactions)),
		zap.Bool("reward_only", rewardOnly),
		zap.Duration("elapsed", elapsed),
	)
}

// loadLastBlock restores last-block tracking from the history store.
func (n *Node) loadLastBlock() {
	last, ok := n.store.Last()
	if !ok {
		return
	}
	n.lastBlockHash = last.Hash
	n.lastBlockTime = time.Unix(last.MinedAt, 0)
	n.logger.Info("loaded last mined block from history",
		zap.String("hash", last.Hash),
		zap.Time("time", n.lastBlockTime),
	)
}

// sampleHashrate computes H/s from the coordinator's trial counter delta
// since the previous sample.
func (n *Node) sampleHashrate() float64 {
	n.hrMu.Lock()
	defer n.hrMu.Unlock()

	now := time.Now()
	cur := n.coordinator.Hashes()
	elapsed := now.Sub(n.lastSample).Seconds()
	if elapsed > 0 {
		n.hashrate = float64(cur-n.lastHashes) / elapsed
	}
	n.lastHashes = cur
	n.lastSample = now
	return n.hashrate
}

func (n *Node) currentHashrate() float64 {
	n.hrMu.Lock()
	defer n.hrMu.Unlock()
	return n.hashrate
}

// logStatus emits the periodic status line and refreshes gauges.
func (n *Node) logStatus() {
	hr := n.sampleHashrate()

	n.logger.Info("status",
		zap.Int64("rounds", n.roundsCompleted.Load()),
		zap.Int64("skipped", n.roundsSkipped.Load()),
		zap.Int("blocks", n.store.Count()),
		zap.Float64("hashrate", hr),
		zap.Int("difficulty", n.config.Difficulty),
	)

	metrics.LocalHashrate.Set(hr)
	metrics.UptimeSeconds.Set(time.Since(n.startTime).Seconds())
}

// statusData collects all metrics for the status API and dashboard.
func (n *Node) statusData() *web.StatusData {
	n.lastBlockMu.RLock()
	lastHash := n.lastBlockHash
	lastTime := n.lastBlockTime
	n.lastBlockMu.RUnlock()

	var lastUnix int64
	if !lastTime.IsZero() {
		lastUnix = lastTime.Unix()
	}

	var recent []web.BlockInfo
	for _, rec := range n.store.Recent(10) {
		recent = append(recent, web.BlockInfo{
			Hash:       rec.Hash,
			Nonce:      rec.Nonce,
			TxCount:    rec.TxCount,
			Timestamp:  rec.MinedAt,
			DurationMs: rec.DurationMs,
			RewardOnly: rec.RewardOnly,
		})
	}

	return &web.StatusData{
		MinerAddress:    n.minerAddress,
		Difficulty:      n.config.Difficulty,
		Workers:         n.config.ParallelWorkers,
		RoundsCompleted: n.roundsCompleted.Load(),
		RoundsSkipped:   n.roundsSkipped.Load(),
		BlocksMined:     n.store.Count(),
		LocalHashrate:   n.currentHashrate(),
		LastBlockHash:   lastHash,
		LastBlockTime:   lastUnix,
		Uptime:          int64(time.Since(n.startTime).Seconds()),
		RecentBlocks:    recent,
	}
}
