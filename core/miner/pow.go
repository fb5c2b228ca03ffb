// Package miner implements the proof-of-work search that seals a block.
package miner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dharohar/core/block"
	"dharohar/core/digest"
)

// DefaultRoundTimeout bounds one mining round when the caller sets no
// deadline of its own.
const DefaultRoundTimeout = 10 * time.Second

// DefaultDifficulty is the number of leading "0" hex characters a block
// digest must carry.
const DefaultDifficulty = 2

// MaxDifficulty bounds the target so the rolling digest (8 hex chars) can
// still satisfy it.
const MaxDifficulty = 6

// checkEvery is how many nonces are tried between context checks.
const checkEvery = 1024

// Miner searches nonces for blocks under a fixed difficulty.
type Miner struct {
	difficulty int
	target     string
	digester   digest.Digester
}

// New returns a miner; difficulty is clamped to [0, MaxDifficulty].
func New(difficulty int, d digest.Digester) *Miner {
	if difficulty < 0 {
		difficulty = 0
	}
	if difficulty > MaxDifficulty {
		difficulty = MaxDifficulty
	}
	if d == nil {
		d = digest.Default
	}
	return &Miner{
		difficulty: difficulty,
		target:     strings.Repeat("0", difficulty),
		digester:   d,
	}
}

func (m *Miner) Difficulty() int { return m.difficulty }

func (m *Miner) Digester() digest.Digester { return m.digester }

// Satisfies reports whether sum meets the difficulty target.
func (m *Miner) Satisfies(sum string) bool {
	return strings.HasPrefix(sum, m.target)
}

// Result describes a finished search. Attempts counts the nonces from 0
// through the winner, whether hashed or ruled out by a solver.
type Result struct {
	Block    block.Block
	Attempts uint64
	Elapsed  time.Duration
}

// Mine searches nonces from 0 upward until the candidate's digest meets the
// target. The candidate is not modified; the sealed copy is returned. A
// cancelled or expired context aborts the search with ctx.Err().
func (m *Miner) Mine(ctx context.Context, candidate block.Block) (Result, error) {
	start := time.Now()
	b := candidate.Clone()
	head, err := b.PreimageHead()
	if err != nil {
		return Result{}, err
	}
	sumOf := m.suffixDigest(head)
	buf := make([]byte, 0, 20)

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("mining block %d aborted before the first attempt: %w", b.Index, err)
	}
	if solver, ok := m.digester.(digest.NonceSolver); ok {
		nonce, solved, err := solver.SolveNonce(ctx, head, m.difficulty)
		if err != nil {
			return Result{}, fmt.Errorf("mining block %d aborted: %w", b.Index, err)
		}
		if solved {
			if sum := sumOf(strconv.AppendUint(buf[:0], nonce, 10)); m.Satisfies(sum) {
				b.Nonce = nonce
				b.Digest = sum
				return Result{Block: b, Attempts: nonce + 1, Elapsed: time.Since(start)}, nil
			}
		}
	}

	for nonce := uint64(0); ; nonce++ {
		if nonce%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("mining block %d aborted after %d attempts: %w", b.Index, nonce, err)
			}
		}
		sum := sumOf(strconv.AppendUint(buf[:0], nonce, 10))
		if m.Satisfies(sum) {
			b.Nonce = nonce
			b.Digest = sum
			return Result{Block: b, Attempts: nonce + 1, Elapsed: time.Since(start)}, nil
		}
	}
}

// suffixDigest returns the digest of head+nonce as a function of the nonce
// text. Digesters that can resume from a prefix skip rehashing head.
func (m *Miner) suffixDigest(head []byte) func(nonce []byte) string {
	if p, ok := m.digester.(digest.Prefixed); ok {
		return p.WithPrefix(head)
	}
	buf := make([]byte, len(head), len(head)+20)
	copy(buf, head)
	return func(nonce []byte) string {
		return m.digester.Digest(append(buf[:len(head)], nonce...))
	}
}
