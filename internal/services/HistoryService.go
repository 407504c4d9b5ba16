package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"listentier/internal/aggregate"
	"listentier/internal/models"
	"listentier/internal/normalizer"
	"listentier/internal/providers"
	"listentier/internal/storage"
	"listentier/internal/structures"
	"listentier/internal/tier"
)

const defaultMaxPages = 20

// PlaySource returns one page of plays newer than the cursor (unix milliseconds).
type PlaySource interface {
	RecentlyPlayed(ctx context.Context, after int64) (*models.SyncPage, error)
}

// MintSink forwards a mint request and returns the transaction id.
type MintSink interface {
	SubmitMint(ctx context.Context, req models.MintRequest) (string, error)
}

// TopQuery selects a ranked list. Zero From/To leave the range open, Limit <= 0 returns everything.
type TopQuery struct {
	Metric string
	Limit  int
	From   time.Time
	To     time.Time
}

type HistoryServiceInterface interface {
	Import(ctx context.Context, docs [][]byte) (*models.ImportReport, error)
	Sync(ctx context.Context) (*models.ImportReport, error)
	Stats(ctx context.Context, from, to time.Time) (*models.StreamingStats, error)
	TopArtists(ctx context.Context, q TopQuery) ([]models.ArtistStats, error)
	TopTracks(ctx context.Context, q TopQuery) ([]models.TrackStats, error)
	TierReport(ctx context.Context) (*models.TierReport, error)
	TierFromPopularity(popularity float64) (models.Tier, error)
	Mint(ctx context.Context, address string, genres []string) (*models.MintResult, error)
	Clear(ctx context.Context) error
	Restore(ctx context.Context) error
	RetryPersist(ctx context.Context) error
	HasPending() bool
	RecordCount() int
}

// HistoryService owns the merged play history. Every ingest runs load, merge, aggregate and persist
// under ingestMu, so two ingests never interleave and a reader never sees stats that disagree with
// the records they came from.
type HistoryService struct {
	conf       *structures.Config
	repo       storage.HistoryRepositoryInterface
	normalizer *normalizer.Normalizer
	calc       *tier.Calculator
	source     PlaySource
	sink       MintSink
	cache      providers.CacheProviderInterface
	metrics    providers.MetricsProviderInterface
	logger     providers.Logger
	now        func() time.Time

	ingestMu sync.Mutex

	stateMu     sync.RWMutex
	records     []models.PlayRecord
	stats       *models.StreamingStats
	cursor      storage.SyncCursor
	pending     bool
	cursorDirty bool
}

// NewHistoryService wires the ingest pipeline. source may be nil when sync is not configured.
func NewHistoryService(
	conf *structures.Config,
	repo storage.HistoryRepositoryInterface,
	norm *normalizer.Normalizer,
	calc *tier.Calculator,
	source PlaySource,
	sink MintSink,
	cache providers.CacheProviderInterface,
	metrics providers.MetricsProviderInterface,
	logger providers.Logger,
) HistoryServiceInterface {
	return &HistoryService{
		conf:       conf,
		repo:       repo,
		normalizer: norm,
		calc:       calc,
		source:     source,
		sink:       sink,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		records:    make([]models.PlayRecord, 0),
		stats:      models.EmptyStats(time.Time{}),
	}
}

// Import parses one or more export documents and merges them into the history. A format error in
// any document rejects the whole batch.
func (s *HistoryService) Import(ctx context.Context, docs [][]byte) (*models.ImportReport, error) {
	if len(docs) == 0 {
		return nil, models.NewBadRequestError("no documents to import")
	}
	parsed, err := s.normalizer.NormalizeDocuments(ctx, docs, models.SourceImport)
	if err != nil {
		return nil, err
	}

	report := &models.ImportReport{
		ID:      uuid.NewString(),
		Source:  models.SourceImport,
		Format:  string(parsed.Format),
		Parsed:  len(parsed.Records),
		Skipped: parsed.Skipped,
	}
	err = s.ingest(ctx, parsed.Records, report, nil)
	s.logger.Infof(providers.TypeApp, "Import %s: format=%s parsed=%d skipped=%d added=%d duplicates=%d",
		report.ID, report.Format, report.Parsed, report.Skipped, report.Added, report.Duplicates)
	return report, err
}

// Sync fetches plays newer than the stored cursor and merges them. Fetching happens outside the
// ingest lock; a failed page aborts the run without merging anything.
func (s *HistoryService) Sync(ctx context.Context) (*models.ImportReport, error) {
	if s.source == nil {
		return nil, models.NewBadRequestError("sync is not configured")
	}

	cursor, err := s.currentCursor(ctx)
	if err != nil {
		s.metrics.IncSyncResult(syncResult(err))
		return nil, err
	}

	maxPages := s.conf.Sync.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	report := &models.ImportReport{ID: uuid.NewString(), Source: models.SourceSync, Format: string(normalizer.FormatRecentlyPlayed)}
	incoming := make([]models.PlayRecord, 0)
	next := cursor.After
	after := cursor.After
	for report.Pages < maxPages {
		page, err := s.source.RecentlyPlayed(ctx, after)
		if err != nil {
			s.metrics.IncSyncResult(syncResult(err))
			s.logger.Errorf(providers.TypeSync, "Sync %s failed on page %d: %s", report.ID, report.Pages+1, err)
			return nil, err
		}
		report.Pages++
		if page.Count == 0 {
			break
		}

		res, err := s.normalizer.Normalize(page.Body, models.SourceSync)
		if err != nil {
			s.metrics.IncSyncResult(syncResult(err))
			return nil, err
		}
		report.Parsed += len(res.Records)
		report.Skipped += res.Skipped
		incoming = append(incoming, res.Records...)
		for _, r := range res.Records {
			next = max(next, r.PlayedAt.UnixMilli())
		}

		if page.Next <= after {
			break
		}
		next = max(next, page.Next)
		after = page.Next
	}

	if len(incoming) == 0 && next <= cursor.After {
		report.TotalRecords = s.RecordCount()
		s.metrics.IncSyncResult(syncResult(nil))
		s.logger.Infof(providers.TypeSync, "Sync %s: no new plays after %d", report.ID, cursor.After)
		return report, nil
	}

	var newCursor *storage.SyncCursor
	if next > cursor.After {
		newCursor = &storage.SyncCursor{After: next, UpdatedAt: s.now()}
	}
	err = s.ingest(ctx, incoming, report, newCursor)
	s.metrics.IncSyncResult(syncResult(err))
	s.logger.Infof(providers.TypeSync, "Sync %s: pages=%d parsed=%d skipped=%d added=%d duplicates=%d cursor=%d",
		report.ID, report.Pages, report.Parsed, report.Skipped, report.Added, report.Duplicates, next)
	return report, err
}

// ingest is the critical section. The merged state is published in memory even when the write
// fails, and stays pending until a later persist succeeds.
func (s *HistoryService) ingest(ctx context.Context, incoming []models.PlayRecord, report *models.ImportReport, cursor *storage.SyncCursor) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	existing, err := s.baseRecords(ctx)
	if err != nil {
		return err
	}

	merged := aggregate.MergeWithReport(existing, incoming)
	stats := aggregate.Aggregate(merged.Records, aggregate.Options{MinPlayMs: s.conf.Aggregation.MinPlayMs, Now: s.now()})

	report.Added = merged.Added
	report.Duplicates = merged.Duplicates
	report.TotalRecords = len(merged.Records)

	s.stateMu.Lock()
	s.records = merged.Records
	s.stats = stats
	if cursor != nil {
		s.cursor = *cursor
		s.cursorDirty = true
	}
	s.pending = true
	s.stateMu.Unlock()

	s.cache.Clear()
	s.metrics.AddIngested(string(report.Source), merged.Added, merged.Duplicates, report.Skipped)
	s.metrics.SetRecordsTotal(len(merged.Records))

	return s.persistLocked(ctx)
}

// baseRecords is the stored history, or the in-memory one while a write is still pending.
func (s *HistoryService) baseRecords(ctx context.Context) ([]models.PlayRecord, error) {
	s.stateMu.RLock()
	pending := s.pending
	records := s.records
	s.stateMu.RUnlock()
	if pending {
		return records, nil
	}
	return s.repo.LoadRecords(ctx)
}

func (s *HistoryService) currentCursor(ctx context.Context) (storage.SyncCursor, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	s.stateMu.RLock()
	pending, cursor := s.pending, s.cursor
	s.stateMu.RUnlock()
	if pending {
		return cursor, nil
	}
	return s.repo.LoadCursor(ctx)
}

func (s *HistoryService) persistLocked(ctx context.Context) error {
	s.stateMu.RLock()
	records, stats, cursor, cursorDirty := s.records, s.stats, s.cursor, s.cursorDirty
	s.stateMu.RUnlock()

	start := time.Now()
	err := s.repo.Save(ctx, records, stats)
	if err == nil && cursorDirty {
		err = s.repo.SaveCursor(ctx, cursor)
	}
	s.metrics.ObservePersistenceDuration(time.Since(start))
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting history, keeping %d records pending: %s", len(records), err)
		return err
	}

	s.stateMu.Lock()
	s.pending = false
	s.cursorDirty = false
	s.stateMu.Unlock()
	return nil
}

// RetryPersist writes a pending merge. It is a no-op when the store is up to date.
func (s *HistoryService) RetryPersist(ctx context.Context) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()
	if !s.HasPending() {
		return nil
	}
	s.logger.Infof(providers.TypeApp, "Retrying pending persist")
	return s.persistLocked(ctx)
}

func (s *HistoryService) HasPending() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.pending
}

func (s *HistoryService) RecordCount() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return len(s.records)
}

// Restore loads the stored history and re-aggregates it. The stored snapshot is replaced when it is
// missing or its totals disagree with the records, which happens when a crash lands between the two
// writes or when aggregation settings changed between runs.
func (s *HistoryService) Restore(ctx context.Context) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	records, err := s.repo.LoadRecords(ctx)
	if err != nil {
		return err
	}
	stats, err := s.repo.LoadStats(ctx)
	if err != nil {
		return err
	}
	cursor, err := s.repo.LoadCursor(ctx)
	if err != nil {
		return err
	}

	rebuilt := false
	fresh := aggregate.Aggregate(records, aggregate.Options{MinPlayMs: s.conf.Aggregation.MinPlayMs, Now: s.now()})
	if !sameTotals(stats, fresh) {
		stats = fresh
		rebuilt = true
	}

	s.stateMu.Lock()
	s.records = records
	s.stats = stats
	s.cursor = cursor
	s.pending = false
	s.cursorDirty = false
	s.stateMu.Unlock()

	s.metrics.SetRecordsTotal(len(records))
	s.logger.Infof(providers.TypeApp, "Restored %d play records, %d artists, %.2f hours", len(records), stats.DistinctArtistCount, stats.TotalHours())

	if rebuilt && len(records) > 0 {
		s.logger.Warnf(providers.TypeApp, "Stats snapshot missing or stale, rebuilt from records")
		s.stateMu.Lock()
		s.pending = true
		s.stateMu.Unlock()
		return s.persistLocked(ctx)
	}
	return nil
}

func sameTotals(stored, fresh *models.StreamingStats) bool {
	return stored != nil &&
		stored.TotalPlays == fresh.TotalPlays &&
		stored.TotalMsPlayed == fresh.TotalMsPlayed &&
		stored.DistinctArtistCount == fresh.DistinctArtistCount &&
		stored.DistinctTrackCount == fresh.DistinctTrackCount &&
		stored.ListeningDays == fresh.ListeningDays
}

// Clear drops all records, stats and the sync cursor.
func (s *HistoryService) Clear(ctx context.Context) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	if err := s.repo.Clear(ctx); err != nil {
		return err
	}

	s.stateMu.Lock()
	s.records = make([]models.PlayRecord, 0)
	s.stats = models.EmptyStats(s.now())
	s.cursor = storage.SyncCursor{}
	s.pending = false
	s.cursorDirty = false
	s.stateMu.Unlock()

	s.cache.Clear()
	s.metrics.SetRecordsTotal(0)
	s.logger.Infof(providers.TypeApp, "History cleared")
	return nil
}

// Stats returns the current snapshot, or a snapshot recomputed over [from, to] when either bound is set.
func (s *HistoryService) Stats(_ context.Context, from, to time.Time) (*models.StreamingStats, error) {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, models.NewBadRequestError("from (%s) is after to (%s)", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	s.stateMu.RLock()
	records, stats := s.records, s.stats
	s.stateMu.RUnlock()

	if from.IsZero() && to.IsZero() {
		return stats, nil
	}
	subset := aggregate.FilterByRange(records, from, to)
	return aggregate.Aggregate(subset, aggregate.Options{MinPlayMs: s.conf.Aggregation.MinPlayMs, Now: stats.ImportedAt}), nil
}

func (s *HistoryService) TopArtists(ctx context.Context, q TopQuery) ([]models.ArtistStats, error) {
	metric, err := aggregate.ParseMetric(q.Metric)
	if err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx, q.From, q.To)
	if err != nil {
		return nil, err
	}
	sorted, err := aggregate.SortArtistsByMetric(stats.TopArtists, metric)
	if err != nil {
		return nil, err
	}
	return limit(sorted, q.Limit), nil
}

func (s *HistoryService) TopTracks(ctx context.Context, q TopQuery) ([]models.TrackStats, error) {
	metric, err := aggregate.ParseMetric(q.Metric)
	if err != nil {
		return nil, err
	}
	stats, err := s.Stats(ctx, q.From, q.To)
	if err != nil {
		return nil, err
	}
	sorted, err := aggregate.SortTracksByMetric(stats.TopTracks, metric)
	if err != nil {
		return nil, err
	}
	return limit(sorted, q.Limit), nil
}

func (s *HistoryService) TierReport(ctx context.Context) (*models.TierReport, error) {
	stats, err := s.Stats(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return s.calc.Report(stats)
}

func (s *HistoryService) TierFromPopularity(popularity float64) (models.Tier, error) {
	return s.calc.TierFromPopularity(popularity)
}

// Mint packages the current tier and reward for the wallet address and hands it to the sink.
func (s *HistoryService) Mint(ctx context.Context, address string, genres []string) (*models.MintResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, models.NewBadRequestError("address is required")
	}
	report, err := s.TierReport(ctx)
	if err != nil {
		return nil, err
	}
	if report.Reward <= 0 {
		return nil, models.NewDomainRangeError("nothing to mint: reward is %v", report.Reward)
	}
	if genres == nil {
		genres = []string{}
	}

	req := models.MintRequest{
		ID:      uuid.NewString(),
		Address: address,
		Tier:    report.Tier,
		Reward:  report.Reward,
		Genres:  genres,
	}
	txID, err := s.sink.SubmitMint(ctx, req)
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Mint %s for %s failed: %s", req.ID, address, err)
		return nil, err
	}
	return &models.MintResult{Request: req, TxID: txID}, nil
}

func limit[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

func syncResult(err error) string {
	if err == nil {
		return "ok"
	}
	if code := models.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}
