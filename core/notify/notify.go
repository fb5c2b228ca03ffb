// Package notify announces mined blocks to the outside world.
package notify

import (
	"context"
	"log"
	"time"

	"dharohar/core/block"
)

const EventBlockMined = "block_mined"

// BlockEvent is the notification emitted for every appended block. It carries
// identifiers only; consumers fetch payloads from the node.
type BlockEvent struct {
	Type           string             `json:"type"`
	Index          int                `json:"index"`
	Digest         string             `json:"hash"`
	PreviousDigest string             `json:"previousHash"`
	Nonce          uint64             `json:"nonce"`
	MinedAt        time.Time          `json:"timestamp"`
	TxIDs          []string           `json:"transactionIds"`
	KindCounts     map[block.Kind]int `json:"kindCounts"`
}

// NewBlockEvent summarises b.
func NewBlockEvent(b block.Block) BlockEvent {
	ev := BlockEvent{
		Type:           EventBlockMined,
		Index:          b.Index,
		Digest:         b.Digest,
		PreviousDigest: b.PreviousDigest,
		Nonce:          b.Nonce,
		MinedAt:        b.CreatedAt,
		TxIDs:          make([]string, len(b.Transactions)),
		KindCounts:     make(map[block.Kind]int),
	}
	for i, tx := range b.Transactions {
		ev.TxIDs[i] = tx.ID
		ev.KindCounts[tx.Kind]++
	}
	return ev
}

// Publisher delivers block events.
type Publisher interface {
	Publish(ctx context.Context, ev BlockEvent) error
	Close() error
}

// LogPublisher writes block events to a logger.
type LogPublisher struct {
	logger *log.Logger
}

func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev BlockEvent) error {
	p.logger.Printf("[NOTIFY] Block #%d | Hash: %s | Txs: %d | Kinds: %v", ev.Index, ev.Digest, len(ev.TxIDs), ev.KindCounts)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Fanout publishes to every publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev BlockEvent) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Listener adapts a Publisher to a ledger block listener. Delivery failures
// are logged; they never affect the chain.
func Listener(p Publisher, logger *log.Logger, timeout time.Duration) func(block.Block) {
	if logger == nil {
		logger = log.Default()
	}
	return func(b block.Block) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := p.Publish(ctx, NewBlockEvent(b)); err != nil {
			logger.Printf("[NOTIFY][ERROR] Failed to publish block #%d (%s): %v", b.Index, b.Digest, err)
		}
	}
}
