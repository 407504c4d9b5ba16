package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fileExt = ".zst"

// FileStore keeps one compressed file per key. Writes go to a temp file that is synced and renamed
// over the target, so a crash never leaves a torn blob.
type FileStore struct {
	dir        string
	compressor CompressorInterface
}

func NewFileStore(dir string, compressor CompressorInterface) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, compressor: compressor}, nil
}

func (f *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(f.dir, key+fileExt), nil
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fileName, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f.compressor.Decompress(data)
}

func (f *FileStore) Set(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fileName, err := f.path(key)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(blob)
	if err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fileName, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileStore) Close() error {
	f.compressor.Close()
	return nil
}
