package history

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	bucketRounds = []byte("rounds")
	bucketMeta   = []byte("meta")
	keyLastHash  = []byte("last_hash")
)

// Record is one successfully mined and submitted block.
type Record struct {
	Hash          string `cbor:"1,keyasint"`
	ConfirmedHash string `cbor:"2,keyasint"`
	Nonce         int64  `cbor:"3,keyasint"`
	TxCount       int    `cbor:"4,keyasint"`
	Difficulty    int    `cbor:"5,keyasint"`
	MinedAt       int64  `cbor:"6,keyasint"` // unix seconds
	DurationMs    int64  `cbor:"7,keyasint"`
	RewardOnly    bool   `cbor:"8,keyasint"`
}

// Store is a write-through persistent record of mined rounds backed by
// bbolt. All reads come from memory; writes go to both memory and disk.
// Records are keyed by a monotonically increasing sequence number so the
// in-memory slice preserves mining order across restarts.
type Store struct {
	mu      sync.RWMutex
	db      *bbolt.DB
	records []*Record
	nextSeq uint64
	logger  *zap.Logger
}

// Open opens (or creates) a bbolt database at path and loads all existing
// round records into memory.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRounds); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
	}

	// Bolt iterates keys in byte order; big-endian sequence keys come back
	// oldest-first.
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRounds)
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := cbor.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode round %x: %w", k, err)
			}
			s.records = append(s.records, &rec)
			seq := binary.BigEndian.Uint64(k)
			if seq >= s.nextSeq {
				s.nextSeq = seq + 1
			}
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load rounds: %w", err)
	}

	logger.Info("mining history loaded from disk", zap.Int("rounds", len(s.records)))

	return s, nil
}

// Add persists a mined-round record.
func (s *Store) Add(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var key [8]byte
	binary.BigEndian.PutUint64(key[:], s.nextSeq)

	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode round: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketRounds).Put(key[:], data); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyLastHash, []byte(rec.Hash))
	})
	if err != nil {
		return fmt.Errorf("persist round: %w", err)
	}

	s.records = append(s.records, rec)
	s.nextSeq++
	return nil
}

// Last returns the most recent record.
func (s *Store) Last() (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, false
	}
	return s.records[len(s.records)-1], true
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(n int) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]*Record, n)
	for i := 0; i < n; i++ {
		out[i] = s.records[len(s.records)-1-i]
	}
	return out
}

// Count returns the number of recorded rounds.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Close() error {
	return s.db.Close()
}
