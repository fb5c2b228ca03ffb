// Package scheduler drives periodic mining of the ledger's pending queue.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"dharohar/core/block"
	"dharohar/core/miner"
)

// DefaultInterval matches the node's default DHAROHAR_MINE_INTERVAL_MS.
const DefaultInterval = 2 * time.Second

// Miner is the part of *ledger.Ledger the scheduler drives.
type Miner interface {
	Mine(ctx context.Context) (*block.Block, error)
}

// MiningScheduler mines pending transactions on a fixed interval and
// whenever Trigger is called.
type MiningScheduler struct {
	miner        Miner
	interval     time.Duration
	roundTimeout time.Duration
	logger       *log.Logger
	onError      func(error)
	kick         chan struct{}
}

type Option func(*MiningScheduler)

func WithLogger(logger *log.Logger) Option {
	return func(s *MiningScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRoundTimeout bounds each mining round; 0 disables the bound.
func WithRoundTimeout(d time.Duration) Option {
	return func(s *MiningScheduler) { s.roundTimeout = d }
}

// WithErrorHandler is called with every failed round except cancellation.
func WithErrorHandler(fn func(error)) Option {
	return func(s *MiningScheduler) { s.onError = fn }
}

func New(m Miner, interval time.Duration, opts ...Option) *MiningScheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &MiningScheduler{
		miner:        m,
		interval:     interval,
		roundTimeout: miner.DefaultRoundTimeout,
		logger:       log.Default(),
		kick:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MiningScheduler) Interval() time.Duration { return s.interval }

// Trigger asks Run for a round without waiting for the next tick. It never
// blocks; triggers that arrive while one is queued are merged.
func (s *MiningScheduler) Trigger() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// MineOnce runs a single round. It returns the mined block, or nil when there
// was nothing pending. A round that outlives the round timeout is abandoned
// with the pending queue intact and retried on the next tick.
func (s *MiningScheduler) MineOnce(ctx context.Context) (*block.Block, error) {
	start := time.Now()
	roundCtx := ctx
	if s.roundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, s.roundTimeout)
		defer cancel()
	}
	b, err := s.miner.Mine(roundCtx)
	if err != nil {
		switch {
		case ctx.Err() != nil, errors.Is(err, context.Canceled):
		case errors.Is(err, context.DeadlineExceeded):
			s.logger.Printf("[SCHED][WARN] Mining round timed out after %s; pending transactions retry next round", s.roundTimeout)
		default:
			s.logger.Printf("[SCHED][ERROR] Mining round failed: %v", err)
			if s.onError != nil {
				s.onError(err)
			}
		}
		return nil, err
	}
	if b != nil {
		s.logger.Printf("[SCHED] Mined block #%d with %d tx(s) in %s (nonce %d, hash %s)",
			b.Index, len(b.Transactions), time.Since(start).Round(time.Millisecond), b.Nonce, b.Digest)
	}
	return b, nil
}

// Run blocks until ctx is cancelled, mining once per tick or trigger. A
// failed round is logged and the next round retries with whatever is pending
// then.
func (s *MiningScheduler) Run(ctx context.Context) error {
	s.logger.Printf("[SCHED] Mining every %s (round timeout %s)", s.interval, s.roundTimeout)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Println("[SCHED] Stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-s.kick:
		}
		_, _ = s.MineOnce(ctx)
	}
}
