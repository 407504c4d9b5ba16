package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"listentier/internal/models"
	"listentier/internal/providers"
	"listentier/internal/storage"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// HasLog reports whether a message at level was logged with a format containing substr.
func (m *MockLogger) HasLog(level, substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.Logs {
		if l.Level == level && strings.Contains(l.Format, substr) {
			return true
		}
	}
	return false
}

// MockCache implements providers.CacheProviderInterface. BeforeSet, when set, runs ahead of every
// generation-checked write without holding the lock.
type MockCache struct {
	mu        sync.Mutex
	Data      map[string][]byte
	Cleared   int
	BeforeSet func(key string)
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(m.Cleared)
}

func (m *MockCache) SetIfGeneration(key string, value []byte, generation uint64) bool {
	if m.BeforeSet != nil {
		m.BeforeSet(key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != uint64(m.Cleared) {
		return false
	}
	m.Data[key] = value
	return true
}

func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data = make(map[string][]byte)
	m.Cleared++
}

// MockMetrics implements providers.MetricsProviderInterface and keeps the last values.
type MockMetrics struct {
	mu           sync.Mutex
	Records      int
	Added        int
	Duplicates   int
	Skipped      int
	SyncResults  []string
	PersistCalls int
	CacheHits    int
	CacheMisses  int
}

func (m *MockMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}
func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PersistCalls++
}
func (m *MockMetrics) SetRecordsTotal(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = count
}
func (m *MockMetrics) AddIngested(_ string, added, duplicates, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Added += added
	m.Duplicates += duplicates
	m.Skipped += skipped
}
func (m *MockMetrics) IncSyncResult(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SyncResults = append(m.SyncResults, result)
}

// MockCompressor implements storage.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}

var ErrInjected = errors.New("injected failure")

// FlakyStore wraps a storage.BlobStore and fails writes while FailWrites is set.
type FlakyStore struct {
	storage.BlobStore
	mu         sync.Mutex
	FailWrites bool
	FailReads  bool
	Writes     int
}

func NewFlakyStore() *FlakyStore {
	return &FlakyStore{BlobStore: storage.NewMemoryStore()}
}

func (f *FlakyStore) SetFailWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailWrites = fail
}

func (f *FlakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	fail := f.FailReads
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.BlobStore.Get(ctx, key)
}

func (f *FlakyStore) Set(ctx context.Context, key string, blob []byte) error {
	f.mu.Lock()
	fail := f.FailWrites
	f.Writes++
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.BlobStore.Set(ctx, key, blob)
}

// MockPlaySource serves queued pages in order and records the cursors it was asked for.
type MockPlaySource struct {
	mu      sync.Mutex
	Pages   []*models.SyncPage
	Errs    []error
	Cursors []int64
}

func (m *MockPlaySource) RecentlyPlayed(ctx context.Context, after int64) (*models.SyncPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.Cursors = append(m.Cursors, after)
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(m.Pages) == 0 {
		return &models.SyncPage{Body: []byte(`{"items":[]}`)}, nil
	}
	page := m.Pages[0]
	m.Pages = m.Pages[1:]
	return page, nil
}

// MockMintSink records submitted requests.
type MockMintSink struct {
	mu       sync.Mutex
	Requests []models.MintRequest
	TxID     string
	Err      error
}

func (m *MockMintSink) SubmitMint(_ context.Context, req models.MintRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.TxID, nil
}
