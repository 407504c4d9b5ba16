package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompressor struct {
	compressErr   error
	decompressErr error
}

func (s stubCompressor) Compress(val []byte) ([]byte, error) {
	if s.compressErr != nil {
		return nil, s.compressErr
	}
	return append([]byte(nil), val...), nil
}

func (s stubCompressor) Decompress(val []byte) ([]byte, error) {
	if s.decompressErr != nil {
		return nil, s.decompressErr
	}
	return append([]byte(nil), val...), nil
}

func (stubCompressor) Close() {}

func TestFileStore_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, newZstd(t))
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), KeyStreamingStats, []byte(`{"totalPlays":1}`)))

	_, err = os.Stat(filepath.Join(dir, KeyStreamingStats+fileExt))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, KeyStreamingStats+fileExt+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_StoresCompressed(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, newZstd(t))
	require.NoError(t, err)
	payload := []byte(`[`)
	for i := 0; i < 200; i++ {
		payload = append(payload, []byte(`{"artistName":"Artist","trackName":"Track"},`)...)
	}

	require.NoError(t, store.Set(context.Background(), KeyPlayRecords, payload))

	raw, err := os.ReadFile(filepath.Join(dir, KeyPlayRecords+fileExt))
	require.NoError(t, err)
	assert.Less(t, len(raw), len(payload))
}

func TestFileStore_CompressErrorKeepsPreviousBlob(t *testing.T) {
	dir := t.TempDir()
	ok, err := NewFileStore(dir, stubCompressor{})
	require.NoError(t, err)
	require.NoError(t, ok.Set(context.Background(), "k", []byte("old")))

	failing, err := NewFileStore(dir, stubCompressor{compressErr: errors.New("boom")})
	require.NoError(t, err)
	assert.Error(t, failing.Set(context.Background(), "k", []byte("new")))

	got, err := ok.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), got)
}

func TestFileStore_DecompressError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k"+fileExt), []byte("garbage"), 0o644))
	store, err := NewFileStore(dir, stubCompressor{decompressErr: errors.New("corrupt")})
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "k")
	assert.EqualError(t, err, "corrupt")
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), stubCompressor{})
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		assert.Error(t, store.Set(context.Background(), key, []byte("x")), key)
	}
}

func TestNewFileStore_EmptyDir(t *testing.T) {
	_, err := NewFileStore("", stubCompressor{})
	assert.Error(t, err)
}
