package aggregate

import (
	"sort"
	"time"

	"listentier/internal/models"
)

type Metric string

const (
	MetricTotalMs      Metric = "totalMs"
	MetricPlayCount    Metric = "playCount"
	MetricLastPlayedAt Metric = "lastPlayedAt"
)

// ParseMetric maps a query value to a Metric. Empty selects totalMs.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "":
		return MetricTotalMs, nil
	case MetricTotalMs, MetricPlayCount, MetricLastPlayedAt:
		return Metric(s), nil
	}
	return "", models.NewDomainRangeError("unknown metric %q", s)
}

// SortArtistsByMetric returns a copy sorted descending by metric, names ascending on ties.
func SortArtistsByMetric(artists []models.ArtistStats, metric Metric) ([]models.ArtistStats, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	out := make([]models.ArtistStats, len(artists))
	copy(out, artists)
	sortArtists(out, metric)
	return out, nil
}

// SortTracksByMetric returns a copy sorted descending by metric; ties order by track name, then artist.
func SortTracksByMetric(tracks []models.TrackStats, metric Metric) ([]models.TrackStats, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	out := make([]models.TrackStats, len(tracks))
	copy(out, tracks)
	sortTracks(out, metric)
	return out, nil
}

// FilterByRange keeps records with from <= PlayedAt <= to. A zero bound is open.
func FilterByRange(records []models.PlayRecord, from, to time.Time) []models.PlayRecord {
	out := make([]models.PlayRecord, 0, len(records))
	for _, r := range records {
		if !from.IsZero() && r.PlayedAt.Before(from) {
			continue
		}
		if !to.IsZero() && r.PlayedAt.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sortArtists(artists []models.ArtistStats, metric Metric) {
	sort.Slice(artists, func(i, j int) bool {
		a, b := artists[i], artists[j]
		if c := compareMetric(metric, a.TotalMs, b.TotalMs, a.PlayCount, b.PlayCount, a.LastPlayedAt, b.LastPlayedAt); c != 0 {
			return c > 0
		}
		return a.ArtistName < b.ArtistName
	})
}

func sortTracks(tracks []models.TrackStats, metric Metric) {
	sort.Slice(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		if c := compareMetric(metric, a.TotalMs, b.TotalMs, a.PlayCount, b.PlayCount, a.LastPlayedAt, b.LastPlayedAt); c != 0 {
			return c > 0
		}
		if a.TrackName != b.TrackName {
			return a.TrackName < b.TrackName
		}
		return a.ArtistName < b.ArtistName
	})
}

func compareMetric(metric Metric, msA, msB, playsA, playsB int64, lastA, lastB time.Time) int {
	switch metric {
	case MetricPlayCount:
		return compareInt(playsA, playsB)
	case MetricLastPlayedAt:
		return lastA.Compare(lastB)
	default:
		return compareInt(msA, msB)
	}
}

func compareInt(a, b int64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	}
	return 0
}
