package miner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"sync/atomic"
)

// nonceStride is the fixed offset separating each worker's starting nonce,
// keeping early search ranges disjoint across workers.
const nonceStride = 1_000_000

// cancelCheckMask batches cancellation checks: the context is polled every
// 4096 trials so the hot loop stays tight.
const cancelCheckMask = 1<<12 - 1

// searchResult is a candidate winner from a single worker.
type searchResult struct {
	nonce int64
	hash  string
}

// startNonce returns the starting nonce for worker i.
func startNonce(i int) int64 {
	return int64(i) * nonceStride
}

// trialHasher owns the per-worker buffers for the hash loop. Not safe for
// concurrent use; each worker gets its own.
type trialHasher struct {
	h      hash.Hash
	numBuf [20]byte
	sumBuf [sha256.Size]byte
	hexBuf [sha256.Size * 2]byte
}

func newTrialHasher() *trialHasher {
	return &trialHasher{h: sha256.New()}
}

// digest hashes headerBytes followed by the decimal form of nonce and
// returns the hex-encoded digest.
func (t *trialHasher) digest(headerBytes []byte, nonce int64) string {
	t.h.Reset()
	t.h.Write(headerBytes)
	t.h.Write(strconv.AppendInt(t.numBuf[:0], nonce, 10))
	sum := t.h.Sum(t.sumBuf[:0])
	hex.Encode(t.hexBuf[:], sum)
	return string(t.hexBuf[:])
}

// search performs sequential hash trials starting at start until a digest
// matches targetPrefix or ctx is cancelled. The worker keeps all state
// local; trials are tallied into counter so the coordinator can estimate
// hash rate. There is no upper nonce bound — the caller is responsible for
// cancelling losers once a winner is selected.
func search(ctx context.Context, headerBytes []byte, targetPrefix string, start int64, counter *atomic.Int64) (searchResult, bool) {
	th := newTrialHasher()

	nonce := start
	var trials int64
	for {
		if trials&cancelCheckMask == 0 && trials > 0 {
			counter.Add(cancelCheckMask + 1)
			select {
			case <-ctx.Done():
				return searchResult{}, false
			default:
			}
		}

		digest := th.digest(headerBytes, nonce)
		if strings.HasPrefix(digest, targetPrefix) {
			counter.Add(trials&cancelCheckMask + 1)
			return searchResult{nonce: nonce, hash: digest}, true
		}

		nonce++
		trials++
	}
}

// Verify recomputes the digest for nonce over headerBytes and reports
// whether it satisfies targetPrefix.
func Verify(headerBytes []byte, nonce int64, targetPrefix string) (string, bool) {
	d := newTrialHasher().digest(headerBytes, nonce)
	return d, strings.HasPrefix(d, targetPrefix)
}
