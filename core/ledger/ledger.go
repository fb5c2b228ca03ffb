// Package ledger owns the append-only chain of mined blocks and the queue of
// pending transactions. A process holds exactly one Ledger, constructed with
// New and handed to whoever needs it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dharohar/core/audit"
	"dharohar/core/block"
	"dharohar/core/digest"
	"dharohar/core/mempool"
	"dharohar/core/miner"
	"dharohar/types/ids"
)

// SnapshotStore persists the chain. Implementations must accept the whole
// chain on every save; the ledger never saves pending transactions.
type SnapshotStore interface {
	SaveChain(chain []block.Block) error
	LoadChain() ([]block.Block, error)
}

// BlockListener is notified after a block has been appended.
type BlockListener func(b block.Block)

// Ledger is the single writer of the chain.
type Ledger struct {
	// mu guards chain and the pending/tip pairing used by CreateTransaction.
	mu    sync.RWMutex
	chain []block.Block

	// miningMu serialises Mine and Restore so the tip cannot move during a search.
	miningMu sync.Mutex

	pending     *mempool.Mempool
	miner       *miner.Miner
	digester    digest.Digester
	store       SnapshotStore
	listeners   []BlockListener
	logger      *log.Logger
	auditLogger audit.AuditLogger
	now         func() time.Time
	newID       func() string
	lastStamp   time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithDigester(d digest.Digester) Option {
	return func(l *Ledger) {
		if d != nil {
			l.digester = d
		}
	}
}

func WithDifficulty(difficulty int) Option {
	return func(l *Ledger) { l.miner = miner.New(difficulty, nil) }
}

func WithStore(s SnapshotStore) Option {
	return func(l *Ledger) { l.store = s }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithAuditLogger(a audit.AuditLogger) Option {
	return func(l *Ledger) {
		if a != nil {
			l.auditLogger = a
		}
	}
}

// WithClock overrides time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides transaction id generation.
func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

func WithBlockListener(fn BlockListener) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.listeners = append(l.listeners, fn)
		}
	}
}

// New creates a Genesis-only ledger. Call Restore to load a persisted chain.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		chain:    []block.Block{block.Genesis()},
		pending:  mempool.NewMempool(),
		digester: digest.Default,
		logger:   log.Default(),
		now:      time.Now,
		newID:    ids.NewTxID,
	}
	difficulty := miner.DefaultDifficulty
	for _, opt := range opts {
		opt(l)
	}
	if l.miner != nil {
		difficulty = l.miner.Difficulty()
	}
	l.miner = miner.New(difficulty, l.digester)
	if l.auditLogger == nil {
		l.auditLogger = audit.NewLogAuditLogger(l.logger)
	}
	return l
}

// Difficulty returns the proof-of-work difficulty in hex characters.
func (l *Ledger) Difficulty() int { return l.miner.Difficulty() }

// Digester returns the digest strategy sealing this chain.
func (l *Ledger) Digester() digest.Digester { return l.digester }

// Restore loads the chain from the configured store. A missing snapshot or a
// snapshot with fewer than two blocks keeps the fresh Genesis-only chain.
// Returns true when a snapshot replaced the in-memory chain.
func (l *Ledger) Restore() (bool, error) {
	if l.store == nil {
		return false, nil
	}
	chain, err := l.store.LoadChain()
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			l.logger.Printf("[LEDGER] No snapshot found, starting from genesis")
			return false, nil
		}
		return false, fmt.Errorf("load chain snapshot: %w", err)
	}
	return l.RestoreSnapshot(chain), nil
}

var (
	// ErrNoSnapshot is returned by stores that have never been written.
	ErrNoSnapshot = errors.New("no chain snapshot")

	ErrUnknownKind         = block.ErrUnknownKind
	ErrPayloadKindMismatch = block.ErrPayloadKindMismatch
)

// RestoreSnapshot replaces the chain with snapshot when it holds at least two
// blocks. Pending transactions are kept.
func (l *Ledger) RestoreSnapshot(snapshot []block.Block) bool {
	l.miningMu.Lock()
	defer l.miningMu.Unlock()

	if len(snapshot) < 2 {
		l.logger.Printf("[LEDGER] Snapshot has %d block(s); keeping genesis-only chain", len(snapshot))
		return false
	}
	restored := make([]block.Block, len(snapshot))
	for i, b := range snapshot {
		restored[i] = b.Clone()
	}
	l.mu.Lock()
	l.chain = restored
	l.mu.Unlock()

	l.logger.Printf("[LEDGER] Restored chain with %d blocks (tip %s)", len(restored), restored[len(restored)-1].Digest)
	if !l.VerifyChain() {
		l.logger.Printf("[LEDGER][WARN] Restored chain failed integrity verification")
	}
	return true
}

// stamp returns a creation time that never goes backwards within the process.
func (l *Ledger) stamp() time.Time {
	t := block.NormalizeTime(l.now())
	if t.Before(l.lastStamp) {
		t = l.lastStamp
	}
	l.lastStamp = t
	return t
}

// CreateTransaction seals a new transaction against the current tip and
// appends it to the pending queue.
func (l *Ledger) CreateTransaction(kind block.Kind, payload block.Payload, hospitalID, userID string) (block.Transaction, error) {
	if !kind.Valid() {
		return block.Transaction{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if payload == nil || payload.Kind() != kind {
		return block.Transaction{}, fmt.Errorf("%w: want %s", ErrPayloadKindMismatch, kind)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	tip := l.chain[len(l.chain)-1]
	tx, err := block.NewTransaction(l.newID(), payload, l.stamp(), tip.Digest, hospitalID, userID, l.digester)
	if err != nil {
		return block.Transaction{}, err
	}
	if !l.pending.AddTx(tx) {
		return block.Transaction{}, fmt.Errorf("transaction id %s already pending", tx.ID)
	}
	l.logger.Printf("[LEDGER] Queued %s transaction %s (%d pending)", tx.Kind, tx.ID, l.pending.Len())
	return tx, nil
}

// Mine seals every currently pending transaction into a new block. It returns
// (nil, nil) when there is nothing to mine. Transactions created while the
// search runs stay pending for the next block. If ctx is cancelled or its
// deadline passes the pending queue is left exactly as it was.
func (l *Ledger) Mine(ctx context.Context) (*block.Block, error) {
	l.miningMu.Lock()
	defer l.miningMu.Unlock()

	l.mu.RLock()
	batch := l.pending.GetAllTxs()
	tip := l.chain[len(l.chain)-1]
	index := len(l.chain)
	l.mu.RUnlock()

	if len(batch) == 0 {
		return nil, nil
	}

	candidate := block.Block{
		Index:          index,
		Transactions:   batch,
		PreviousDigest: tip.Digest,
	}
	candidate.CreatedAt = l.blockTime()
	res, err := l.miner.Mine(ctx, candidate)
	if err != nil {
		l.logger.Printf("[MINER] %v; %d transaction(s) remain pending", err, len(batch))
		return nil, err
	}
	mined := res.Block

	minedIDs := make([]string, len(batch))
	for i, tx := range batch {
		minedIDs[i] = tx.ID
	}
	var snapshot []block.Block
	l.mu.Lock()
	l.chain = append(l.chain, mined)
	l.pending.RemoveTxs(minedIDs)
	if l.store != nil {
		snapshot = l.chainCopyLocked()
	}
	l.mu.Unlock()

	l.logger.Printf("[MINER] Mined block #%d hash=%s nonce=%d txs=%d attempts=%d elapsed=%s",
		mined.Index, mined.Digest, mined.Nonce, len(mined.Transactions), res.Attempts, res.Elapsed)

	l.persist(snapshot)
	out := mined.Clone()
	for _, fn := range l.listeners {
		fn(mined.Clone())
	}
	return &out, nil
}

// blockTime is the mining timestamp; never before the tip's.
func (l *Ledger) blockTime() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stamp()
}

// persist saves the snapshot; failures are logged and audited but never
// undo the in-memory append.
func (l *Ledger) persist(snapshot []block.Block) {
	if l.store == nil {
		return
	}
	tip := snapshot[len(snapshot)-1]
	if err := l.store.SaveChain(snapshot); err != nil {
		l.logger.Printf("[LEDGER][ERROR] Failed to persist chain at block #%d: %v", tip.Index, err)
		l.auditLogger.LogEvent(audit.AuditEvent{
			EventType: "snapshot_persist",
			EntityID:  tip.Digest,
			Result:    audit.ResultFailure,
			Reason:    err.Error(),
			Metadata:  map[string]string{"height": fmt.Sprint(len(snapshot))},
		})
	}
}

// Flush writes the current chain to the store.
func (l *Ledger) Flush() error {
	if l.store == nil {
		return nil
	}
	return l.store.SaveChain(l.Chain())
}

// VerifyChain recomputes every block digest from its stored fields and nonce
// and checks every link to the previous block. Genesis is not recomputed.
func (l *Ledger) VerifyChain() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ok := true
	for i := 1; i < len(l.chain); i++ {
		cur, prev := &l.chain[i], &l.chain[i-1]
		reason := ""
		if sum, err := cur.ComputeDigest(l.digester); err != nil {
			reason = err.Error()
		} else if sum != cur.Digest {
			reason = fmt.Sprintf("digest mismatch: stored %s, computed %s", cur.Digest, sum)
		} else if cur.PreviousDigest != prev.Digest {
			reason = fmt.Sprintf("broken link: previous %s, block %d digest %s", cur.PreviousDigest, i-1, prev.Digest)
		}
		if reason != "" {
			ok = false
			l.auditLogger.LogEvent(audit.AuditEvent{
				EventType: "chain_verification",
				EntityID:  cur.Digest,
				Result:    audit.ResultFailure,
				Reason:    reason,
				Metadata:  map[string]string{"index": fmt.Sprint(i)},
			})
		}
	}
	return ok
}

// Chain returns a copy of the full chain for audit purposes.
func (l *Ledger) Chain() []block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chainCopyLocked()
}

func (l *Ledger) chainCopyLocked() []block.Block {
	out := make([]block.Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = b.Clone()
	}
	return out
}

// Tip returns the most recent block.
func (l *Ledger) Tip() block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].Clone()
}

// Height returns the number of blocks including genesis.
func (l *Ledger) Height() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// Pending returns the un-mined transactions in arrival order.
func (l *Ledger) Pending() []block.Transaction {
	return l.pending.GetAllTxs()
}

// Close flushes the chain to the store.
func (l *Ledger) Close() error {
	l.miningMu.Lock()
	defer l.miningMu.Unlock()
	if err := l.Flush(); err != nil {
		return fmt.Errorf("flush chain on close: %w", err)
	}
	return nil
}
