// Package digest provides the content digests used to seal transactions and
// blocks. The ledger only depends on the Digester interface.
//
// Deployment note: Rolling is a 32-bit rolling hash kept for parity with the
// reference ledger. It makes casual edits visible but offers no preimage or
// collision resistance; use SHA256 where the chain must be tamper-proof.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Digester maps serialized content to a lowercase hex string.
type Digester interface {
	Digest(data []byte) string
	Name() string
}

// Rolling is the weak demo digest: h = h*31 + c over UTF-16 code units with
// 32-bit wraparound, rendered as |h| in hex padded to 8 characters. A byte
// that is not part of valid UTF-8 is hashed as the lone low surrogate
// 0xDC00+b, so distinct byte strings never map to the same unit sequence.
type Rolling struct{}

func (Rolling) Name() string { return "rolling" }

func (Rolling) Digest(data []byte) string {
	return rollingHex(roll(0, data))
}

// WithPrefix returns a function digesting prefix+suffix that resumes from the
// state left after prefix instead of rescanning it.
func (r Rolling) WithPrefix(prefix []byte) func(suffix []byte) string {
	if !endsOnRune(prefix) {
		head := append([]byte(nil), prefix...)
		return func(suffix []byte) string {
			return r.Digest(append(head[:len(head):len(head)], suffix...))
		}
	}
	h := roll(0, prefix)
	return func(suffix []byte) string {
		return rollingHex(roll(h, suffix))
	}
}

func roll(h int32, data []byte) int32 {
	for len(data) > 0 {
		c, size := utf8.DecodeRune(data)
		if c == utf8.RuneError && size == 1 {
			c = 0xDC00 | rune(data[0])
		}
		data = data[size:]
		if c >= 0x10000 {
			hi, lo := utf16.EncodeRune(c)
			h = (h << 5) - h + int32(hi)
			h = (h << 5) - h + int32(lo)
			continue
		}
		h = (h << 5) - h + int32(c)
	}
	return h
}

func rollingHex(h int32) string {
	v := int64(h)
	if v < 0 {
		v = -v
	}
	s := strconv.FormatInt(v, 16)
	if len(s) < 8 {
		s = strings.Repeat("0", 8-len(s)) + s
	}
	return s
}

// endsOnRune reports whether data does not end inside a multi-byte sequence
// that a following byte could still complete.
func endsOnRune(data []byte) bool {
	i := len(data) - 1
	for i > 0 && len(data)-i < utf8.UTFMax && !utf8.RuneStart(data[i]) {
		i--
	}
	if i < 0 {
		return true
	}
	return utf8.FullRune(data[i:])
}

// Prefixed is implemented by digests that can hash many inputs sharing a long
// prefix without rescanning it. The miner uses it for the nonce search.
type Prefixed interface {
	WithPrefix(prefix []byte) func(suffix []byte) string
}

// SHA256 is the cryptographic replacement for Rolling.
type SHA256 struct{}

func (SHA256) Name() string { return "sha256" }

func (SHA256) Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Default is the digest used when no other strategy is configured.
var Default Digester = Rolling{}

// ByName resolves a configured digest name.
func ByName(name string) (Digester, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rolling":
		return Rolling{}, nil
	case "sha256":
		return SHA256{}, nil
	default:
		return nil, fmt.Errorf("unknown digest %q", name)
	}
}
