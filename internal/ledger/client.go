package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tepan024/minerkagecoin/internal/block"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	pendingPath = "/transactions"
	minePath    = "/mine"

	requestTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response body is surfaced.
	maxErrorBody = 4 * 1024
)

// BlockRejectedError is returned when the ledger service explicitly rejects
// a submitted block, as opposed to a transport or server failure.
type BlockRejectedError struct {
	Status int
	Reason string
}

func (e *BlockRejectedError) Error() string {
	return fmt.Sprintf("ledger rejected block (status %d): %s", e.Status, e.Reason)
}

// SubmitRequest is the block submission payload.
type SubmitRequest struct {
	MinerAddress string              `json:"minerAddress"`
	Transactions []block.Transaction `json:"transactions"`
	Nonce        int64               `json:"nonce"`
	Hash         string              `json:"hash"`
}

// Client talks to the ledger service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a ledger client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(10, 20),
		logger:  logger,
	}
}

// PendingTransactions fetches the transactions waiting to be mined. A
// response without the expected field decodes as an empty set; transport
// and decoding errors are returned to the caller, which treats them as
// "zero pending transactions".
func (c *Client) PendingTransactions(ctx context.Context) ([]block.Transaction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pendingPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pending transactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch pending transactions: ledger returned status %d", resp.StatusCode)
	}

	var body struct {
		PendingTransactions []block.Transaction `json:"pendingTransactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode pending transactions: %w", err)
	}

	return body.PendingTransactions, nil
}

// SubmitBlock posts a mined block to the ledger service and returns the
// service-confirmed block hash. An explicit rejection surfaces as a
// *BlockRejectedError; anything else is a transport or server failure.
func (c *Client) SubmitBlock(ctx context.Context, sub *SubmitRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+minePath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit block: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := readErrorBody(resp.Body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", &BlockRejectedError{Status: resp.StatusCode, Reason: reason}
		}
		return "", fmt.Errorf("submit block: ledger returned status %d: %s", resp.StatusCode, reason)
	}

	var body struct {
		BlockHash string `json:"blockHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode submission response: %w", err)
	}
	if body.BlockHash == "" {
		return "", fmt.Errorf("submit block: response missing blockHash")
	}

	c.logger.Debug("block accepted by ledger", zap.String("block_hash", body.BlockHash))
	return body.BlockHash, nil
}

func readErrorBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
