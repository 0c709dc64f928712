package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tepan024/minerkagecoin/internal/block"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, zap.NewNop())
}

func TestPendingTransactions(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions" {
			t.Errorf("path = %s, want /transactions", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"pendingTransactions": []map[string]any{
				{"from": "alice", "to": "bob"},
			},
		})
	}))

	txs, err := c.PendingTransactions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	if txs[0]["from"] != "alice" {
		t.Errorf("from = %v, want alice", txs[0]["from"])
	}
}

func TestPendingTransactionsMissingField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"unrelated": true})
	}))

	txs, err := c.PendingTransactions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("got %d transactions, want 0", len(txs))
	}
}

func TestPendingTransactionsMalformed(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))

	if _, err := c.PendingTransactions(context.Background()); err == nil {
		t.Error("expected error for malformed response")
	}
}

func TestPendingTransactionsServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, err := c.PendingTransactions(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestSubmitBlock(t *testing.T) {
	var received SubmitRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mine" {
			t.Errorf("path = %s, want /mine", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"blockHash": received.Hash})
	}))

	sub := &SubmitRequest{
		MinerAddress: "abc123",
		Transactions: []block.Transaction{block.RewardTransaction("abc123")},
		Nonce:        42,
		Hash:         "0deadbeef",
	}

	hash, err := c.SubmitBlock(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "0deadbeef" {
		t.Errorf("blockHash = %q, want 0deadbeef", hash)
	}
	if received.MinerAddress != "abc123" || received.Nonce != 42 {
		t.Errorf("payload not delivered intact: %+v", received)
	}
	if len(received.Transactions) != 1 {
		t.Errorf("payload transactions = %d, want 1", len(received.Transactions))
	}
}

func TestSubmitBlockRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("invalid proof"))
	}))

	_, err := c.SubmitBlock(context.Background(), &SubmitRequest{MinerAddress: "m"})
	var rejected *BlockRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want *BlockRejectedError", err)
	}
	if rejected.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rejected.Status)
	}
	if rejected.Reason != "invalid proof" {
		t.Errorf("reason = %q, want %q", rejected.Reason, "invalid proof")
	}
}

func TestSubmitBlockServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.SubmitBlock(context.Background(), &SubmitRequest{MinerAddress: "m"})
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	var rejected *BlockRejectedError
	if errors.As(err, &rejected) {
		t.Error("server error should not map to BlockRejectedError")
	}
}

func TestSubmitBlockMissingHash(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))

	if _, err := c.SubmitBlock(context.Background(), &SubmitRequest{MinerAddress: "m"}); err == nil {
		t.Error("expected error for response without blockHash")
	}
}
