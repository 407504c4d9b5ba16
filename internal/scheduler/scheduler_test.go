package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listentier/internal/models"
	"listentier/internal/normalizer"
	"listentier/internal/services"
	"listentier/internal/storage"
	"listentier/internal/structures"
	"listentier/internal/testutil"
	"listentier/internal/tier"
)

const doc = `[{"ts":"2024-07-01T18:00:00Z","ms_played":200000,"master_metadata_track_name":"One","master_metadata_album_artist_name":"A"}]`

type fixture struct {
	conf    *structures.Config
	store   *testutil.FlakyStore
	source  *testutil.MockPlaySource
	logger  *testutil.MockLogger
	service services.HistoryServiceInterface
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := &structures.Config{
		Aggregation: structures.AggregationConfig{MinPlayMs: 5000},
		Tier:        structures.DefaultTierConfig(),
	}
	calc, err := tier.NewCalculator(conf.Tier)
	require.NoError(t, err)
	f := &fixture{
		conf:   conf,
		store:  testutil.NewFlakyStore(),
		source: &testutil.MockPlaySource{},
		logger: &testutil.MockLogger{},
	}
	f.service = services.NewHistoryService(conf, storage.NewHistoryRepository(f.store), normalizer.New(), calc,
		f.source, &testutil.MockMintSink{}, testutil.NewMockCache(), &testutil.MockMetrics{}, f.logger)
	return f
}

func TestScheduler_Restore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	records := []models.PlayRecord{models.NewPlayRecord("A", "One", "", time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC), 200_000, models.SourceImport)}
	require.NoError(t, storage.NewHistoryRepository(f.store).Save(ctx, records, nil))

	s := NewScheduler(f.conf, f.logger, f.service)
	require.NoError(t, s.Restore())

	assert.Equal(t, 1, f.service.RecordCount())
}

func TestScheduler_Restore_StorageError(t *testing.T) {
	f := newFixture(t)
	f.store.FailReads = true

	s := NewScheduler(f.conf, f.logger, f.service)

	assert.True(t, models.IsCode(s.Restore(), models.CodeStorage))
}

func TestScheduler_Persist_FlushesPending(t *testing.T) {
	f := newFixture(t)
	f.store.SetFailWrites(true)
	_, err := f.service.Import(context.Background(), [][]byte{[]byte(doc)})
	require.Error(t, err)
	require.True(t, f.service.HasPending())

	s := NewScheduler(f.conf, f.logger, f.service)
	assert.Error(t, s.Persist())
	assert.True(t, f.service.HasPending())

	f.store.SetFailWrites(false)
	require.NoError(t, s.Persist())
	assert.False(t, f.service.HasPending())
}

func TestScheduler_Persist_NothingPending(t *testing.T) {
	f := newFixture(t)

	s := NewScheduler(f.conf, f.logger, f.service)

	require.NoError(t, s.Persist())
	assert.Zero(t, f.store.Writes)
}

func TestScheduler_StopNilCron(t *testing.T) {
	f := newFixture(t)

	s := NewScheduler(f.conf, f.logger, f.service)
	// Should not panic with nil cron
	s.Stop()
}

func TestScheduler_ScheduledSync(t *testing.T) {
	f := newFixture(t)
	f.conf.Sync = structures.SyncConfig{Enabled: true, Interval: time.Second}
	f.source.Pages = []*models.SyncPage{{
		Body:  []byte(`{"items":[{"played_at":"2024-07-01T18:00:00Z","track":{"name":"One","duration_ms":200000,"artists":[{"name":"A"}]}}]}`),
		Count: 1,
	}}

	s := NewScheduler(f.conf, f.logger, f.service)
	s.Init()
	defer s.Stop()

	assert.Eventually(t, func() bool { return f.service.RecordCount() == 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_NoSyncWhenDisabled(t *testing.T) {
	f := newFixture(t)
	f.conf.Sync = structures.SyncConfig{Enabled: false, Interval: time.Second}

	s := NewScheduler(f.conf, f.logger, f.service)
	s.Init()
	time.Sleep(1500 * time.Millisecond)
	s.Stop()

	assert.Zero(t, f.service.RecordCount())
}

func TestScheduler_RetriesPendingPersist(t *testing.T) {
	f := newFixture(t)
	f.conf.Persistence.RetryInterval = time.Second
	f.store.SetFailWrites(true)
	_, err := f.service.Import(context.Background(), [][]byte{[]byte(doc)})
	require.Error(t, err)
	f.store.SetFailWrites(false)

	s := NewScheduler(f.conf, f.logger, f.service)
	s.Init()
	defer s.Stop()

	assert.Eventually(t, func() bool { return !f.service.HasPending() }, 3*time.Second, 50*time.Millisecond)
	assert.True(t, f.logger.HasLog("info", "Pending history persisted"))
}
