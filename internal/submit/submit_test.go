package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tepan024/minerkagecoin/internal/block"
	"github.com/tepan024/minerkagecoin/internal/ledger"

	"go.uber.org/zap"
)

// fakeSubmitter scripts submission outcomes and records each attempt.
type fakeSubmitter struct {
	results  []error // per-attempt errors, nil = success
	attempts []time.Time
	payloads []*ledger.SubmitRequest
}

func (f *fakeSubmitter) SubmitBlock(ctx context.Context, sub *ledger.SubmitRequest) (string, error) {
	f.attempts = append(f.attempts, time.Now())
	f.payloads = append(f.payloads, sub)
	i := len(f.attempts) - 1
	if i < len(f.results) && f.results[i] != nil {
		return "", f.results[i]
	}
	return sub.Hash, nil
}

func testBlock() *block.MinedBlock {
	return &block.MinedBlock{
		Transactions: []block.Transaction{block.RewardTransaction("abc123")},
		Nonce:        7,
		Hash:         "0feedface",
	}
}

func TestSubmitFirstAttemptSucceeds(t *testing.T) {
	fake := &fakeSubmitter{}
	c := NewController(fake, "abc123", 3, 10*time.Millisecond, zap.NewNop())

	hash, err := c.Submit(context.Background(), testBlock())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "0feedface" {
		t.Errorf("blockHash = %q, want 0feedface", hash)
	}
	if len(fake.attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(fake.attempts))
	}
}

func TestSubmitRetriesThenSucceeds(t *testing.T) {
	transient := fmt.Errorf("connection refused")
	fake := &fakeSubmitter{results: []error{transient, transient, nil}}
	c := NewController(fake, "abc123", 3, 10*time.Millisecond, zap.NewNop())

	hash, err := c.Submit(context.Background(), testBlock())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "0feedface" {
		t.Errorf("blockHash = %q, want 0feedface", hash)
	}
	if len(fake.attempts) != 3 {
		t.Errorf("attempts = %d, want 3", len(fake.attempts))
	}
}

func TestSubmitRetryBound(t *testing.T) {
	const maxRetries = 3
	delay := 20 * time.Millisecond

	transient := fmt.Errorf("connection refused")
	fake := &fakeSubmitter{results: []error{transient, transient, transient, transient, transient}}
	c := NewController(fake, "abc123", maxRetries, delay, zap.NewNop())

	_, err := c.Submit(context.Background(), testBlock())
	if err == nil {
		t.Fatal("expected terminal failure")
	}
	if !strings.Contains(err.Error(), "after 3 retries") {
		t.Errorf("err = %v, want terminal failure mentioning retry count", err)
	}

	// One primary attempt plus exactly maxRetries retries, no more.
	if len(fake.attempts) != 1+maxRetries {
		t.Fatalf("attempts = %d, want %d", len(fake.attempts), 1+maxRetries)
	}

	// Consecutive attempts separated by at least the fixed delay.
	for i := 1; i < len(fake.attempts); i++ {
		gap := fake.attempts[i].Sub(fake.attempts[i-1])
		if gap < delay {
			t.Errorf("gap between attempts %d and %d = %v, want >= %v", i-1, i, gap, delay)
		}
	}
}

func TestSubmitRetriesCarryFullPayload(t *testing.T) {
	transient := fmt.Errorf("timeout")
	fake := &fakeSubmitter{results: []error{transient, nil}}
	c := NewController(fake, "abc123", 3, time.Millisecond, zap.NewNop())

	if _, err := c.Submit(context.Background(), testBlock()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.payloads) != 2 {
		t.Fatalf("payloads = %d, want 2", len(fake.payloads))
	}
	retry := fake.payloads[1]
	if retry.MinerAddress != "abc123" || retry.Nonce != 7 || retry.Hash != "0feedface" {
		t.Errorf("retry payload incomplete: %+v", retry)
	}
	if len(retry.Transactions) != 1 {
		t.Errorf("retry payload lost transactions: %d", len(retry.Transactions))
	}
}

func TestSubmitRejectionNotRetried(t *testing.T) {
	fake := &fakeSubmitter{results: []error{
		&ledger.BlockRejectedError{Status: 422, Reason: "invalid proof"},
	}}
	c := NewController(fake, "abc123", 3, time.Millisecond, zap.NewNop())

	_, err := c.Submit(context.Background(), testBlock())
	var rejected *ledger.BlockRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want wrapped *BlockRejectedError", err)
	}
	if len(fake.attempts) != 1 {
		t.Errorf("attempts = %d, want 1 (rejections are terminal)", len(fake.attempts))
	}
}

func TestSubmitCancelledDuringBackoff(t *testing.T) {
	transient := fmt.Errorf("connection refused")
	fake := &fakeSubmitter{results: []error{transient, transient, transient, transient}}
	c := NewController(fake, "abc123", 3, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx, testBlock())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return after cancellation")
	}

	if len(fake.attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(fake.attempts))
	}
}
