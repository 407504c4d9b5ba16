package storage

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"

	"listentier/internal/models"
)

// SyncCursor marks the newest provider play already fetched, in unix milliseconds.
type SyncCursor struct {
	After     int64     `json:"after"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type HistoryRepositoryInterface interface {
	LoadRecords(ctx context.Context) ([]models.PlayRecord, error)
	// LoadStats returns nil without error when no snapshot was stored yet.
	LoadStats(ctx context.Context) (*models.StreamingStats, error)
	LoadCursor(ctx context.Context) (SyncCursor, error)
	Save(ctx context.Context, records []models.PlayRecord, stats *models.StreamingStats) error
	SaveCursor(ctx context.Context, cursor SyncCursor) error
	Clear(ctx context.Context) error
}

// HistoryRepository encodes history as JSON blobs. Every failure is reported as a StorageError.
type HistoryRepository struct {
	store BlobStore
}

func NewHistoryRepository(store BlobStore) HistoryRepositoryInterface {
	return &HistoryRepository{store: store}
}

func (r *HistoryRepository) LoadRecords(ctx context.Context) ([]models.PlayRecord, error) {
	records := make([]models.PlayRecord, 0)
	found, err := r.load(ctx, KeyPlayRecords, &records)
	if err != nil || !found {
		return records, err
	}
	return records, nil
}

func (r *HistoryRepository) LoadStats(ctx context.Context) (*models.StreamingStats, error) {
	var stats models.StreamingStats
	found, err := r.load(ctx, KeyStreamingStats, &stats)
	if err != nil || !found {
		return nil, err
	}
	if stats.TopArtists == nil {
		stats.TopArtists = make([]models.ArtistStats, 0)
	}
	if stats.TopTracks == nil {
		stats.TopTracks = make([]models.TrackStats, 0)
	}
	return &stats, nil
}

func (r *HistoryRepository) LoadCursor(ctx context.Context) (SyncCursor, error) {
	var cursor SyncCursor
	_, err := r.load(ctx, KeySyncCursor, &cursor)
	return cursor, err
}

// Save writes records before stats, so a failure between the two leaves stats that a restore
// can rebuild from the records.
func (r *HistoryRepository) Save(ctx context.Context, records []models.PlayRecord, stats *models.StreamingStats) error {
	if records == nil {
		records = make([]models.PlayRecord, 0)
	}
	if err := r.save(ctx, KeyPlayRecords, records); err != nil {
		return err
	}
	return r.save(ctx, KeyStreamingStats, stats)
}

func (r *HistoryRepository) SaveCursor(ctx context.Context, cursor SyncCursor) error {
	return r.save(ctx, KeySyncCursor, cursor)
}

func (r *HistoryRepository) Clear(ctx context.Context) error {
	for _, key := range []string{KeyPlayRecords, KeyStreamingStats, KeySyncCursor} {
		if err := r.store.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			return models.NewStorageError("delete "+key, err)
		}
	}
	return nil
}

func (r *HistoryRepository) load(ctx context.Context, key string, v any) (bool, error) {
	blob, err := r.store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, models.NewStorageError("read "+key, err)
	}
	if len(blob) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(blob, v); err != nil {
		return false, models.NewStorageError("decode "+key, err)
	}
	return true, nil
}

func (r *HistoryRepository) save(ctx context.Context, key string, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return models.NewStorageError("encode "+key, err)
	}
	if err := r.store.Set(ctx, key, blob); err != nil {
		return models.NewStorageError("write "+key, err)
	}
	return nil
}
