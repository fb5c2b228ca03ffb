package block

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dharohar/core/digest"
)

// Block is a sealed batch of transactions linked to its predecessor.
type Block struct {
	Index          int           `json:"index"`        // Position in the chain (genesis = 0)
	CreatedAt      time.Time     `json:"timestamp"`    // Mining completion time
	Transactions   []Transaction `json:"transactions"` // Insertion order preserved
	Digest         string        `json:"hash"`         // Satisfies the difficulty target once mined
	PreviousDigest string        `json:"previousHash"` // Digest of block Index-1
	Nonce          uint64        `json:"nonce"`        // Proof-of-work counter
}

// GenesisTime is the fixed timestamp of block 0.
var GenesisTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// GenesisDigest is the fixed digest of block 0; it is never recomputed.
var GenesisDigest = strings.Repeat("0", 64)

// Genesis returns a fresh copy of the fixed first block.
func Genesis() Block {
	return Block{
		Index:          0,
		CreatedAt:      GenesisTime,
		Transactions:   []Transaction{},
		Digest:         GenesisDigest,
		PreviousDigest: "",
		Nonce:          0,
	}
}

// PreimageHead is the nonce-independent prefix of the digest preimage:
// index + timestamp + transactions JSON + previous digest.
func (b *Block) PreimageHead() ([]byte, error) {
	txs := b.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	data, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("marshal transactions of block %d: %w", b.Index, err)
	}
	buf := strconv.AppendInt(nil, int64(b.Index), 10)
	buf = b.CreatedAt.UTC().AppendFormat(buf, TimeLayout)
	buf = append(buf, data...)
	buf = append(buf, b.PreviousDigest...)
	return buf, nil
}

// ComputeDigest recomputes the block digest using the stored nonce.
func (b *Block) ComputeDigest(d digest.Digester) (string, error) {
	head, err := b.PreimageHead()
	if err != nil {
		return "", err
	}
	return d.Digest(strconv.AppendUint(head, b.Nonce, 10)), nil
}

// Clone returns a copy whose transaction slice can be modified independently.
func (b Block) Clone() Block {
	out := b
	out.Transactions = make([]Transaction, len(b.Transactions))
	copy(out.Transactions, b.Transactions)
	return out
}

// Serialize encodes Block into JSON
func (b *Block) Serialize() ([]byte, error) {
	return json.Marshal(b)
}

// Deserialize decodes JSON into Block
func Deserialize(data []byte) (*Block, error) {
	var b Block
	err := json.Unmarshal(data, &b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
