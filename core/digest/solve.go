package digest

import (
	"context"
)

// NonceSolver is implemented by digests that can find the smallest decimal
// nonce n for which Digest(prefix + n) starts with zeros "0" characters,
// without hashing every smaller nonce. ok is false when the digest cannot
// shortcut the search for this prefix.
type NonceSolver interface {
	SolveNonce(ctx context.Context, prefix []byte, zeros int) (nonce uint64, ok bool, err error)
}

// maxNonceDigits keeps nonces within uint64.
const maxNonceDigits = 19

// SolveNonce exploits that the rolling state after prefix+n is linear in the
// digits of n: h = base + sum(c_i * 31^(k-1-i)). Choosing digits left to
// right, the unchosen ones can only move h inside a known interval, so whole
// ranges of nonces that cannot reach the target are skipped. Digit lengths
// and digits are visited in increasing order, so the first hit is the
// smallest qualifying nonce, the same one a linear search from 0 finds.
func (Rolling) SolveNonce(ctx context.Context, prefix []byte, zeros int) (uint64, bool, error) {
	if zeros <= 0 {
		return 0, true, nil
	}
	if zeros > 7 || !endsOnRune(prefix) {
		return 0, false, nil
	}
	s := &rollingSolver{
		ctx:   ctx,
		limit: uint64(1) << (4 * uint(8-zeros)), // |h| below 16^(8-zeros)
	}
	h := uint32(roll(0, prefix))
	for k := 1; k <= maxNonceDigits; k++ {
		base := h * pow31(k)
		nonce, found, err := s.search(base, k, 0, 0, 0)
		if err != nil {
			return 0, false, err
		}
		if found {
			return nonce, true, nil
		}
	}
	return 0, false, nil
}

type rollingSolver struct {
	ctx   context.Context
	limit uint64
	nodes uint64
}

// search extends the digits chosen so far (acc is their rolling value, num
// the nonce they spell) at position pos of a k-digit nonce.
func (s *rollingSolver) search(base uint32, k, pos int, acc uint32, num uint64) (uint64, bool, error) {
	s.nodes++
	if s.nodes%4096 == 0 {
		if err := s.ctx.Err(); err != nil {
			return 0, false, err
		}
	}
	rest := k - pos
	if rest == 0 {
		return num, s.hit(base + acc), nil
	}
	first := 0
	if pos == 0 && k > 1 {
		first = 1
	}
	for d := first; d <= 9; d++ {
		a := acc*31 + uint32('0'+d)
		lo := base + a*pow31(rest-1) + '0'*uint32(spread(rest-1))
		if !s.reachable(lo, 9*spread(rest-1)) {
			continue
		}
		nonce, found, err := s.search(base, k, pos+1, a, num*10+uint64(d))
		if err != nil || found {
			return nonce, found, err
		}
	}
	return 0, false, nil
}

// hit reports whether the int32 reading of h has magnitude below limit.
func (s *rollingSolver) hit(h uint32) bool {
	v := int64(int32(h))
	if v < 0 {
		v = -v
	}
	return uint64(v) < s.limit
}

// reachable reports whether the arc [lo, lo+width] on the 2^32 ring meets
// the target arc (-limit, limit).
func (s *rollingSolver) reachable(lo uint32, width uint64) bool {
	if width >= 1<<32 {
		return true
	}
	start := uint32(1 - s.limit) // wraps to 2^32 - limit + 1
	span := 2*s.limit - 2
	return uint64(start-lo) <= width || uint64(lo-start) <= span
}

// pow31 is 31^n modulo 2^32.
func pow31(n int) uint32 {
	p := uint32(1)
	for i := 0; i < n; i++ {
		p *= 31
	}
	return p
}

// spread is sum(31^i) for i < n, saturating once it exceeds 2^32.
func spread(n int) uint64 {
	var sum, p uint64 = 0, 1
	for i := 0; i < n; i++ {
		sum += p
		if sum >= 1<<32 {
			return 1 << 33
		}
		p *= 31
	}
	return sum
}
