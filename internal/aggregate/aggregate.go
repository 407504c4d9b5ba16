// Package aggregate folds play records into listening statistics and merges record sets without
// double counting.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"listentier/internal/models"
)

const secondsPerDay = 24 * 60 * 60

type Options struct {
	// MinPlayMs is the shortest play that contributes to listening time.
	MinPlayMs int64
	// Now stamps ImportedAt. Zero means time.Now().
	Now time.Time
}

type artistAcc struct {
	stats  models.ArtistStats
	tracks map[string]struct{}
}

type trackAcc struct {
	stats   models.TrackStats
	albumAt time.Time
}

// Aggregate computes StreamingStats in a single pass. Totals do not depend on record order; the
// presentation order is totalMs descending with names ascending on ties.
func Aggregate(records []models.PlayRecord, opts Options) *models.StreamingStats {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	stats := models.EmptyStats(now)
	if len(records) == 0 {
		return stats
	}

	artists := make(map[string]*artistAcc)
	tracks := make(map[models.TrackKey]*trackAcc)
	days := roaring.New()

	for _, r := range records {
		counted := int64(0)
		if r.MsPlayed >= opts.MinPlayMs {
			counted = r.MsPlayed
		}
		stats.TotalPlays++
		stats.TotalMsPlayed += counted
		if day := r.PlayedAt.Unix() / secondsPerDay; day >= 0 && day <= math.MaxUint32 {
			days.Add(uint32(day))
		}

		a, ok := artists[r.ArtistName]
		if !ok {
			a = &artistAcc{
				stats: models.ArtistStats{
					ArtistName:    r.ArtistName,
					FirstPlayedAt: r.PlayedAt,
					LastPlayedAt:  r.PlayedAt,
				},
				tracks: make(map[string]struct{}),
			}
			artists[r.ArtistName] = a
		}
		a.stats.TotalMs += counted
		a.stats.PlayCount++
		a.stats.FirstPlayedAt = minTime(a.stats.FirstPlayedAt, r.PlayedAt)
		a.stats.LastPlayedAt = maxTime(a.stats.LastPlayedAt, r.PlayedAt)
		a.tracks[r.TrackName] = struct{}{}

		key := r.TrackKey()
		t, ok := tracks[key]
		if !ok {
			t = &trackAcc{
				stats: models.TrackStats{
					ArtistName:    r.ArtistName,
					TrackName:     r.TrackName,
					FirstPlayedAt: r.PlayedAt,
					LastPlayedAt:  r.PlayedAt,
				},
			}
			tracks[key] = t
		}
		t.stats.TotalMs += counted
		t.stats.PlayCount++
		t.stats.FirstPlayedAt = minTime(t.stats.FirstPlayedAt, r.PlayedAt)
		t.stats.LastPlayedAt = maxTime(t.stats.LastPlayedAt, r.PlayedAt)
		t.observeAlbum(r)
	}

	stats.TopArtists = make([]models.ArtistStats, 0, len(artists))
	for _, a := range artists {
		a.stats.TotalHours = models.HoursFromMs(a.stats.TotalMs)
		a.stats.TrackNames = make([]string, 0, len(a.tracks))
		for name := range a.tracks {
			a.stats.TrackNames = append(a.stats.TrackNames, name)
		}
		sort.Strings(a.stats.TrackNames)
		stats.TopArtists = append(stats.TopArtists, a.stats)
	}
	stats.TopTracks = make([]models.TrackStats, 0, len(tracks))
	for _, t := range tracks {
		stats.TopTracks = append(stats.TopTracks, t.stats)
	}

	sortArtists(stats.TopArtists, MetricTotalMs)
	sortTracks(stats.TopTracks, MetricTotalMs)
	stats.DistinctArtistCount = len(stats.TopArtists)
	stats.DistinctTrackCount = len(stats.TopTracks)
	stats.ListeningDays = int(days.GetCardinality())
	return stats
}

// observeAlbum keeps the album of the earliest play that names one.
func (t *trackAcc) observeAlbum(r models.PlayRecord) {
	if r.AlbumName == "" {
		return
	}
	switch {
	case t.stats.AlbumName == "",
		r.PlayedAt.Before(t.albumAt),
		r.PlayedAt.Equal(t.albumAt) && r.AlbumName < t.stats.AlbumName:
		t.stats.AlbumName = r.AlbumName
		t.albumAt = r.PlayedAt
	}
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
