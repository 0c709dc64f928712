package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tepan024/minerkagecoin/internal/block"
	"github.com/tepan024/minerkagecoin/internal/ledger"
	"github.com/tepan024/minerkagecoin/internal/metrics"

	"go.uber.org/zap"
)

// Submitter posts a mined block to the ledger service.
type Submitter interface {
	SubmitBlock(ctx context.Context, sub *ledger.SubmitRequest) (string, error)
}

// Controller handles block submission with bounded retries. The retry delay
// is fixed — not exponential, not jittered.
type Controller struct {
	submitter    Submitter
	minerAddress string
	maxRetries   int
	retryDelay   time.Duration
	logger       *zap.Logger
}

// NewController creates a submission controller. maxRetries counts retry
// attempts after the first submission; retryDelay separates consecutive
// attempts.
func NewController(submitter Submitter, minerAddress string, maxRetries int, retryDelay time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		submitter:    submitter,
		minerAddress: minerAddress,
		maxRetries:   maxRetries,
		retryDelay:   retryDelay,
		logger:       logger,
	}
}

// Submit posts mb to the ledger and returns the service-confirmed block
// hash. On failure it retries up to maxRetries times, each attempt preceded
// by the fixed retry delay and carrying the full submission payload. An
// explicit rejection by the ledger is terminal immediately; exhausting all
// retries is terminal with the last error attached. Terminal failures
// abandon the block — there is no re-mining.
func (c *Controller) Submit(ctx context.Context, mb *block.MinedBlock) (string, error) {
	sub := &ledger.SubmitRequest{
		MinerAddress: c.minerAddress,
		Transactions: mb.Transactions,
		Nonce:        mb.Nonce,
		Hash:         mb.Hash,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.SubmissionRetries.Inc()
			timer := time.NewTimer(c.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		blockHash, err := c.submitter.SubmitBlock(ctx, sub)
		if err == nil {
			metrics.BlockSubmissions.WithLabelValues("success").Inc()
			c.logger.Info("block submitted",
				zap.String("block_hash", blockHash),
				zap.Int("attempt", attempt+1),
			)
			return blockHash, nil
		}

		// Don't retry if the ledger explicitly rejected the block.
		var rejected *ledger.BlockRejectedError
		if errors.As(err, &rejected) {
			metrics.BlockSubmissions.WithLabelValues("rejected").Inc()
			c.logger.Error("block rejected by ledger (not retrying)", zap.Error(err))
			return "", fmt.Errorf("block rejected: %w", err)
		}

		lastErr = err
		if attempt < c.maxRetries {
			c.logger.Warn("block submission failed, retrying",
				zap.Error(err),
				zap.Int("attempt", attempt+1),
				zap.Duration("retry_in", c.retryDelay),
			)
		}
	}

	metrics.BlockSubmissions.WithLabelValues("failed").Inc()
	c.logger.Error("block submission failed after all retries",
		zap.Int("retries", c.maxRetries),
		zap.Error(lastErr),
	)
	return "", fmt.Errorf("submission failed after %d retries: %w", c.maxRetries, lastErr)
}
