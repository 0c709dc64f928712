package miner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tepan024/minerkagecoin/internal/block"
	"github.com/tepan024/minerkagecoin/internal/metrics"

	"go.uber.org/zap"
)

// ErrMiningFailed signals that a search round ended with no accepted result.
// Under an unbounded search this only happens when the round is cancelled
// before any worker wins.
var ErrMiningFailed = errors.New("no worker produced a valid result")

// TargetPrefix returns the hash prefix a digest must carry at the given
// difficulty: one '0' hex character per difficulty unit.
func TargetPrefix(difficulty int) string {
	return strings.Repeat("0", difficulty)
}

// Coordinator partitions the nonce space across parallel search workers and
// races them for the first valid result.
type Coordinator struct {
	minerAddress string
	difficulty   int
	workers      int
	logger       *zap.Logger

	hashes atomic.Int64
}

// NewCoordinator creates a coordinator mining for minerAddress at the given
// difficulty with the given worker count.
func NewCoordinator(minerAddress string, difficulty, workers int, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		minerAddress: minerAddress,
		difficulty:   difficulty,
		workers:      workers,
		logger:       logger,
	}
}

// Hashes returns the total number of hash trials performed so far.
func (c *Coordinator) Hashes() int64 {
	return c.hashes.Load()
}

// Mine assembles a header for txs and races the configured number of search
// workers over disjoint starting nonce ranges. The first valid result wins;
// the remaining workers are cancelled and joined before Mine returns, so no
// search outlives the call. Exactly one result is accepted per round even
// if several workers find valid nonces before cancellation propagates.
func (c *Coordinator) Mine(ctx context.Context, txs []block.Transaction) (*block.MinedBlock, error) {
	header := block.Assemble(c.minerAddress, txs, c.difficulty)
	target := TargetPrefix(c.difficulty)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	before := c.hashes.Load()

	winnerCh := make(chan searchResult, 1)
	var won atomic.Bool
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			res, ok := search(ctx, header.Bytes(), target, startNonce(id), &c.hashes)
			if !ok {
				return
			}
			// First writer wins; losers discard their results.
			if won.CompareAndSwap(false, true) {
				winnerCh <- res
				c.logger.Debug("worker found candidate",
					zap.Int("worker", id),
					zap.Int64("nonce", res.nonce),
				)
			}
			cancel()
		}(i)
	}
	wg.Wait()

	metrics.HashesComputed.Add(float64(c.hashes.Load() - before))

	select {
	case res := <-winnerCh:
		// Re-validate before accepting: the winning nonce must re-hash to
		// the same digest and that digest must meet the target.
		digest, ok := Verify(header.Bytes(), res.nonce, target)
		if !ok || digest != res.hash {
			c.logger.Error("discarding result that failed re-validation",
				zap.Int64("nonce", res.nonce),
				zap.String("hash", res.hash),
			)
			return nil, ErrMiningFailed
		}
		c.logger.Info("valid nonce found",
			zap.Int64("nonce", res.nonce),
			zap.String("hash", res.hash),
			zap.Int("transactions", len(header.Transactions)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return &block.MinedBlock{
			Transactions: header.Transactions,
			Nonce:        res.nonce,
			Hash:         res.hash,
		}, nil
	default:
		return nil, ErrMiningFailed
	}
}
