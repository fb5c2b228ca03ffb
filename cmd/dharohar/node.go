package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"dharohar/config"
	"dharohar/core/digest"
	"dharohar/core/ledger"
	"dharohar/core/storage"
)

// openStore opens the LevelDB snapshot store, encrypted when a DEK is set.
func openStore(cfg *config.Config, logger *log.Logger) (*storage.LevelStore, error) {
	cipher, err := storage.CipherFromBase64(cfg.Ledger.DEK)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Node.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	store, err := storage.Open(cfg.Node.DBPath, storage.WithCipher(cipher), storage.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if cipher != nil {
		logger.Printf("[STORE] Snapshot encryption enabled")
	}
	return store, nil
}

// openLedger builds a ledger on store and restores its snapshot.
func openLedger(cfg *config.Config, store ledger.SnapshotStore, logger *log.Logger, extra ...ledger.Option) (*ledger.Ledger, error) {
	d, err := digest.ByName(cfg.Ledger.Digest)
	if err != nil {
		return nil, err
	}
	opts := []ledger.Option{
		ledger.WithDigester(d),
		ledger.WithDifficulty(cfg.Ledger.Difficulty),
		ledger.WithStore(store),
		ledger.WithLogger(logger),
	}
	l := ledger.New(append(opts, extra...)...)
	if _, err := l.Restore(); err != nil {
		return nil, err
	}
	return l, nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }
