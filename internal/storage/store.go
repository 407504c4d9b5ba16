// Package storage persists listening history blobs behind a small key-value interface.
package storage

import (
	"context"
	"errors"
	"fmt"

	"listentier/internal/providers"
	"listentier/internal/structures"
)

const (
	KeyPlayRecords    = "play_records"
	KeyStreamingStats = "streaming_stats"
	KeySyncCursor     = "sync_cursor"
)

var ErrNotFound = errors.New("key not found")

// BlobStore is a minimal key-value store. Get returns ErrNotFound for an absent key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type CompressorInterface interface {
	Compress(val []byte) ([]byte, error)
	Decompress(val []byte) ([]byte, error)
	Close()
}

// NewBlobStore opens the backend selected by persistence.backend.
func NewBlobStore(conf *structures.Config, compressor CompressorInterface, logger providers.Logger) (BlobStore, func(), error) {
	var (
		store BlobStore
		err   error
	)
	switch conf.Persistence.Backend {
	case "file":
		store, err = NewFileStore(conf.Persistence.Path, compressor)
	case "badger":
		store, err = NewBadgerStore(conf.Persistence.Path)
	case "sqlite":
		store, err = NewSQLiteStore(conf.Persistence.Path)
	case "memory", "":
		store = NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unknown persistence backend %q", conf.Persistence.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", conf.Persistence.Backend, err)
	}

	logger.Infof(providers.TypeApp, "Persistence backend: %s (%s)", conf.Persistence.Backend, conf.Persistence.Path)
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Errorf(providers.TypeApp, "Error while closing store: %s", err)
		}
		// only the file store owns the compressor
		if _, ok := store.(*FileStore); !ok {
			compressor.Close()
		}
	}
	return store, cleanup, nil
}
