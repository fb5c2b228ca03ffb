// Package storage keeps chain snapshots in LevelDB.
//
// Layout:
//
//	block:<n>       -> block JSON at height n (AES-GCM sealed when a Cipher is set)
//	height:<n>      -> digest of the block at height n
//	digest:<digest> -> height of the block with that digest, decimal
//	chain_height    -> number of stored blocks, decimal
//
// Digests are short and may repeat across heights, so bodies are keyed by
// height and the digest index only resolves to the highest height saved with
// that digest.
package storage

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"dharohar/core/block"
	"dharohar/core/ledger"
)

// ErrNoSnapshot is returned by LoadChain on a store that was never written.
var ErrNoSnapshot = ledger.ErrNoSnapshot

var chainHeightKey = []byte("chain_height")

func blockKey(n int) []byte          { return []byte(fmt.Sprintf("block:%d", n)) }
func heightKey(n int) []byte         { return []byte(fmt.Sprintf("height:%d", n)) }
func digestKey(digest string) []byte { return []byte("digest:" + digest) }

// LevelStore is a ledger.SnapshotStore backed by LevelDB.
type LevelStore struct {
	db     *leveldb.DB
	cipher *Cipher
	logger *log.Logger
}

var _ ledger.SnapshotStore = (*LevelStore)(nil)

// Option configures a LevelStore.
type Option func(*LevelStore)

// WithCipher encrypts block values at rest.
func WithCipher(c *Cipher) Option {
	return func(s *LevelStore) { s.cipher = c }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *LevelStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens (or creates) the LevelDB database at path.
func Open(path string, opts ...Option) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	s := &LevelStore{db: db, logger: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying LevelDB instance
func (s *LevelStore) DB() *leveldb.DB {
	return s.db
}

func (s *LevelStore) seal(data []byte) ([]byte, error) {
	if s.cipher == nil {
		return data, nil
	}
	return s.cipher.Encrypt(data)
}

func (s *LevelStore) open(data []byte) ([]byte, error) {
	if s.cipher == nil {
		return data, nil
	}
	return s.cipher.Decrypt(data)
}

// ChainHeight returns the number of stored blocks, or ErrNoSnapshot.
func (s *LevelStore) ChainHeight() (int, error) {
	raw, err := s.db.Get(chainHeightKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, ErrNoSnapshot
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt chain height %q: %w", raw, err)
	}
	return n, nil
}

// SaveChain writes the chain in one batch. Heights whose digest is already
// stored are skipped; heights beyond the new chain are removed.
func (s *LevelStore) SaveChain(chain []block.Block) error {
	start := time.Now()
	prevHeight, err := s.ChainHeight()
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return err
	}

	// highest height holding each digest in the new chain
	latest := make(map[string]int, len(chain))
	for i := range chain {
		latest[chain[i].Digest] = i
	}

	batch := new(leveldb.Batch)
	written := 0
	for i := range chain {
		b := &chain[i]
		if existing, err := s.db.Get(heightKey(i), nil); err == nil && string(existing) == b.Digest {
			continue
		} else if err == nil {
			reindex(batch, string(existing), latest)
		}
		data, err := b.Serialize()
		if err != nil {
			return fmt.Errorf("serialize block %d: %w", b.Index, err)
		}
		enc, err := s.seal(data)
		if err != nil {
			return fmt.Errorf("encrypt block %d: %w", b.Index, err)
		}
		batch.Put(blockKey(i), enc)
		batch.Put(heightKey(i), []byte(b.Digest))
		reindex(batch, b.Digest, latest)
		written++
	}
	for i := len(chain); i < prevHeight; i++ {
		if existing, err := s.db.Get(heightKey(i), nil); err == nil {
			reindex(batch, string(existing), latest)
		}
		batch.Delete(blockKey(i))
		batch.Delete(heightKey(i))
	}
	batch.Put(chainHeightKey, []byte(strconv.Itoa(len(chain))))

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write chain batch: %w", err)
	}
	s.logger.Printf("[STORE] Saved chain height=%d (wrote %d block(s) in %s)", len(chain), written, time.Since(start))
	return nil
}

// reindex points digest at its highest height in the new chain, or drops it
// when no block keeps that digest.
func reindex(batch *leveldb.Batch, digest string, latest map[string]int) {
	if h, ok := latest[digest]; ok {
		batch.Put(digestKey(digest), []byte(strconv.Itoa(h)))
		return
	}
	batch.Delete(digestKey(digest))
}

// LoadChain reads every stored block in height order.
func (s *LevelStore) LoadChain() ([]block.Block, error) {
	height, err := s.ChainHeight()
	if err != nil {
		return nil, err
	}
	chain := make([]block.Block, 0, height)
	for i := 0; i < height; i++ {
		b, err := s.GetBlockByHeight(i)
		if err != nil {
			return nil, err
		}
		chain = append(chain, b)
	}
	return chain, nil
}

// GetBlock returns the block indexed under digest.
func (s *LevelStore) GetBlock(digest string) (block.Block, error) {
	raw, err := s.db.Get(digestKey(digest), nil)
	if err != nil {
		return block.Block{}, fmt.Errorf("block %s: %w", digest, err)
	}
	height, err := strconv.Atoi(string(raw))
	if err != nil {
		return block.Block{}, fmt.Errorf("corrupt digest index for %s: %w", digest, err)
	}
	return s.GetBlockByHeight(height)
}

// GetBlockByHeight reads the block body stored at height.
func (s *LevelStore) GetBlockByHeight(height int) (block.Block, error) {
	enc, err := s.db.Get(blockKey(height), nil)
	if err != nil {
		return block.Block{}, fmt.Errorf("no block at height %d: %w", height, err)
	}
	data, err := s.open(enc)
	if err != nil {
		return block.Block{}, fmt.Errorf("decrypt block %d: %w", height, err)
	}
	b, err := block.Deserialize(data)
	if err != nil {
		return block.Block{}, fmt.Errorf("decode block %d: %w", height, err)
	}
	return *b, nil
}
