package ledger

import (
	"bytes"
	"encoding/json"
	"strings"

	"dharohar/core/block"
)

const (
	DefaultRecentLimit = 10
	NetworkStatus      = "connected"
	ConsensusAlgorithm = "Proof of Work (Simplified)"
)

// Stats summarises the ledger for dashboards.
type Stats struct {
	TotalBlocks         int    `json:"totalBlocks"`
	TotalTransactions   int    `json:"totalTransactions"`
	PendingTransactions int    `json:"pendingTransactions"`
	LastBlockTime       string `json:"lastBlockTime"`
	NetworkStatus       string `json:"networkStatus"`
	ConsensusAlgorithm  string `json:"consensusAlgorithm"`
	Difficulty          int    `json:"difficulty"`
}

// Stats counts blocks and transactions. TotalTransactions includes pending.
func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	mined := 0
	for _, b := range l.chain {
		mined += len(b.Transactions)
	}
	pending := l.pending.Len()
	last := "N/A"
	if len(l.chain) > 1 {
		last = l.chain[len(l.chain)-1].CreatedAt.UTC().Format(block.TimeLayout)
	}
	return Stats{
		TotalBlocks:         len(l.chain),
		TotalTransactions:   mined + pending,
		PendingTransactions: pending,
		LastBlockTime:       last,
		NetworkStatus:       NetworkStatus,
		ConsensusAlgorithm:  ConsensusAlgorithm,
		Difficulty:          l.miner.Difficulty(),
	}
}

// RecentTransactions returns up to limit transactions, newest first: pending
// ones before mined ones. A non-positive limit means DefaultRecentLimit.
func (l *Ledger) RecentTransactions(limit int) []block.Transaction {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]block.Transaction, 0, limit)
	pending := l.pending.GetAllTxs()
	for i := len(pending) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, pending[i])
	}
	for bi := len(l.chain) - 1; bi >= 0 && len(out) < limit; bi-- {
		txs := l.chain[bi].Transactions
		for ti := len(txs) - 1; ti >= 0 && len(out) < limit; ti-- {
			out = append(out, txs[ti])
		}
	}
	return out
}

// TransactionsByType returns every transaction of kind, mined ones in chain
// order followed by pending ones.
func (l *Ledger) TransactionsByType(kind block.Kind) []block.Transaction {
	return l.filter(func(tx *block.Transaction) bool { return tx.Kind == kind })
}

// SearchTransactions matches query case-insensitively against the JSON
// encoding of each payload. An empty query matches nothing.
func (l *Ledger) SearchTransactions(query string) []block.Transaction {
	if query == "" {
		return []block.Transaction{}
	}
	needle := []byte(strings.ToLower(query))
	return l.filter(func(tx *block.Transaction) bool {
		data, err := json.Marshal(tx.Payload)
		if err != nil {
			return false
		}
		return bytes.Contains(bytes.ToLower(data), needle)
	})
}

func (l *Ledger) filter(keep func(tx *block.Transaction) bool) []block.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []block.Transaction{}
	for _, b := range l.chain {
		for i := range b.Transactions {
			if keep(&b.Transactions[i]) {
				out = append(out, b.Transactions[i])
			}
		}
	}
	for _, tx := range l.pending.GetAllTxs() {
		if keep(&tx) {
			out = append(out, tx)
		}
	}
	return out
}
