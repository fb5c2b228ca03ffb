package mempool

import (
	"sync"

	"dharohar/core/block"
)

// Mempool holds sealed transactions waiting to be mined, in arrival order.
// It is unbounded: the ledger never drops a pending transaction.
type Mempool struct {
	mu    sync.Mutex
	txs   map[string]block.Transaction // TxID -> Transaction
	order []string                     // FIFO order for block inclusion
}

// NewMempool creates an empty mempool
func NewMempool() *Mempool {
	return &Mempool{
		txs:   make(map[string]block.Transaction),
		order: make([]string, 0),
	}
}

// AddTx appends a transaction (returns false if the id is already pending)
func (mp *Mempool) AddTx(tx block.Transaction) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if _, exists := mp.txs[tx.ID]; exists {
		return false // duplicate
	}
	mp.txs[tx.ID] = tx
	mp.order = append(mp.order, tx.ID)
	return true
}

// GetTx returns a pending transaction by id (and bool for existence)
func (mp *Mempool) GetTx(txID string) (block.Transaction, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	tx, ok := mp.txs[txID]
	return tx, ok
}

// GetAllTxs returns all pending transactions in arrival order
func (mp *Mempool) GetAllTxs() []block.Transaction {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	txs := make([]block.Transaction, 0, len(mp.order))
	for _, id := range mp.order {
		txs = append(txs, mp.txs[id])
	}
	return txs
}

// Len returns the number of pending transactions.
func (mp *Mempool) Len() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.order)
}

// RemoveTxs drops the given ids, keeping the order of whatever remains.
// Unknown ids are ignored. Returns how many were removed.
func (mp *Mempool) RemoveTxs(ids []string) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := mp.txs[id]; ok {
			drop[id] = struct{}{}
			delete(mp.txs, id)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	newOrder := make([]string, 0, len(mp.order)-len(drop))
	for _, id := range mp.order {
		if _, gone := drop[id]; !gone {
			newOrder = append(newOrder, id)
		}
	}
	mp.order = newOrder
	return len(drop)
}
