package storage

import (
	"context"
	"path/filepath"
	"testing"

	"listentier/internal/providers"
	"listentier/internal/structures"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Errorf(providers.TypeEnum, string, ...interface{}) {}
func (nopLogger) Warnf(providers.TypeEnum, string, ...interface{})  {}
func (nopLogger) Debugf(providers.TypeEnum, string, ...interface{}) {}
func (nopLogger) Infof(providers.TypeEnum, string, ...interface{})  {}
func (nopLogger) Fatalf(providers.TypeEnum, string, ...interface{}) {}
func (nopLogger) Close()                                            {}

func newZstd(t *testing.T) CompressorInterface {
	t.Helper()
	c, err := NewZstdCompressor()
	require.NoError(t, err)
	return c
}

func backends(t *testing.T) map[string]BlobStore {
	t.Helper()
	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "blobs"), newZstd(t))
	require.NoError(t, err)
	badgerStore, err := NewBadgerStore("")
	require.NoError(t, err)
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	stores := map[string]BlobStore{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"badger": badgerStore,
		"sqlite": sqliteStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestBlobStore_Contract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, KeyPlayRecords, []byte(`[1,2,3]`)))
			got, err := store.Get(ctx, KeyPlayRecords)
			require.NoError(t, err)
			assert.Equal(t, []byte(`[1,2,3]`), got)

			require.NoError(t, store.Set(ctx, KeyPlayRecords, []byte(`[4]`)))
			got, err = store.Get(ctx, KeyPlayRecords)
			require.NoError(t, err)
			assert.Equal(t, []byte(`[4]`), got)

			require.NoError(t, store.Delete(ctx, KeyPlayRecords))
			_, err = store.Get(ctx, KeyPlayRecords)
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, store.Delete(ctx, KeyPlayRecords), "deleting an absent key is not an error")
		})
	}
}

func TestBlobStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	blob := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", blob))
	blob[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryStore().Set(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewBlobStore_SelectsBackend(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]struct {
		path string
		want any
	}{
		"memory": {"", &MemoryStore{}},
		"file":   {filepath.Join(dir, "files"), &FileStore{}},
		"badger": {filepath.Join(dir, "badger"), &BadgerStore{}},
		"sqlite": {filepath.Join(dir, "db.sqlite"), &SQLiteStore{}},
	}
	for backend, tc := range cases {
		t.Run(backend, func(t *testing.T) {
			conf := &structures.Config{Persistence: structures.Persistence{Backend: backend, Path: tc.path}}

			store, cleanup, err := NewBlobStore(conf, newZstd(t), nopLogger{})
			require.NoError(t, err)
			defer cleanup()
			assert.IsType(t, tc.want, store)
		})
	}
}

func TestNewBlobStore_UnknownBackend(t *testing.T) {
	conf := &structures.Config{Persistence: structures.Persistence{Backend: "redis"}}

	_, _, err := NewBlobStore(conf, newZstd(t), nopLogger{})
	assert.Error(t, err)
}
