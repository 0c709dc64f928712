package block

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Transaction is an opaque ledger record. The worker imposes no schema on
// real transactions beyond JSON-serializability; only the reward entry has
// a fixed shape.
type Transaction map[string]any

// Reward transaction field names. These are part of the wire contract with
// the ledger service.
const (
	rewardTargetField = "Target"
	rewardFlagField   = "BlockReward"
	rewardAmountField = "Amount"
)

// RewardAmount is the fixed payout credited to the miner when a block
// carries no real transactions.
const RewardAmount = 50

// RewardTransaction builds the synthetic payout entry crediting minerAddress.
func RewardTransaction(minerAddress string) Transaction {
	return Transaction{
		rewardTargetField: minerAddress,
		rewardFlagField:   true,
		rewardAmountField: RewardAmount,
	}
}

// IsReward reports whether t is a reward transaction.
func (t Transaction) IsReward() bool {
	v, ok := t[rewardFlagField].(bool)
	return ok && v
}

// RewardTarget returns the payout address of a reward transaction, or ""
// if t is not one.
func (t Transaction) RewardTarget() string {
	if !t.IsReward() {
		return ""
	}
	addr, _ := t[rewardTargetField].(string)
	return addr
}

// Header is the deterministic serialized form of miner address, transaction
// list, and difficulty. Immutable once assembled.
type Header struct {
	MinerAddress string
	Transactions []Transaction
	Difficulty   int

	raw []byte
}

// Assemble builds the canonical block header. If txs is empty, exactly one
// reward transaction crediting minerAddress is injected into the block's
// transaction list before serialization; a non-empty list is used as given.
//
// Field order is fixed: miner address, transaction list, difficulty, joined
// with '|'. Transactions serialize as JSON, whose object keys Go emits in
// sorted order, so identical logical content always yields identical bytes.
// Nothing time- or randomness-dependent enters the header.
func Assemble(minerAddress string, txs []Transaction, difficulty int) Header {
	var list []Transaction
	if len(txs) == 0 {
		list = []Transaction{RewardTransaction(minerAddress)}
	} else {
		list = make([]Transaction, len(txs))
		copy(list, txs)
	}

	// Values decoded from JSON (and the reward entry) always marshal.
	txJSON, _ := json.Marshal(list)

	var buf bytes.Buffer
	buf.Grow(len(minerAddress) + len(txJSON) + 8)
	buf.WriteString(minerAddress)
	buf.WriteByte('|')
	buf.Write(txJSON)
	buf.WriteByte('|')
	buf.WriteString(strconv.Itoa(difficulty))

	return Header{
		MinerAddress: minerAddress,
		Transactions: list,
		Difficulty:   difficulty,
		raw:          buf.Bytes(),
	}
}

// Bytes returns the serialized header, the input to the nonce search.
func (h Header) Bytes() []byte {
	return h.raw
}

// MinedBlock is the payload handed to submission: the block's transaction
// list plus the winning nonce and its digest. Created once per successful
// search and consumed exactly once.
type MinedBlock struct {
	Transactions []Transaction
	Nonce        int64
	Hash         string
}
