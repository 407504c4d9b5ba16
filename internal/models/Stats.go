package models

import "time"

const msPerHour = 3.6e6

type ArtistStats struct {
	ArtistName    string    `json:"artistName"`
	TotalMs       int64     `json:"totalMs"`
	TotalHours    float64   `json:"totalHours"`
	PlayCount     int64     `json:"playCount"`
	FirstPlayedAt time.Time `json:"firstPlayedAt"`
	LastPlayedAt  time.Time `json:"lastPlayedAt"`
	TrackNames    []string  `json:"trackNames"`
}

type TrackStats struct {
	ArtistName    string    `json:"artistName"`
	TrackName     string    `json:"trackName"`
	AlbumName     string    `json:"albumName,omitempty"`
	TotalMs       int64     `json:"totalMs"`
	PlayCount     int64     `json:"playCount"`
	FirstPlayedAt time.Time `json:"firstPlayedAt"`
	LastPlayedAt  time.Time `json:"lastPlayedAt"`
}

// StreamingStats is the aggregate snapshot persisted after every merge.
type StreamingStats struct {
	TopArtists          []ArtistStats `json:"topArtists"`
	TopTracks           []TrackStats  `json:"topTracks"`
	TotalMsPlayed       int64         `json:"totalMsPlayed"`
	TotalPlays          int64         `json:"totalPlays"`
	ImportedAt          time.Time     `json:"importedAt"`
	DistinctArtistCount int           `json:"distinctArtistCount"`
	DistinctTrackCount  int           `json:"distinctTrackCount"`
	// ListeningDays counts distinct UTC calendar days with at least one play.
	ListeningDays int `json:"listeningDays"`
}

func HoursFromMs(ms int64) float64 {
	return float64(ms) / msPerHour
}

func (s *StreamingStats) TotalHours() float64 {
	if s == nil {
		return 0
	}
	return HoursFromMs(s.TotalMsPlayed)
}

// EmptyStats is the zero snapshot with non-nil sequences.
func EmptyStats(at time.Time) *StreamingStats {
	return &StreamingStats{
		TopArtists: []ArtistStats{},
		TopTracks:  []TrackStats{},
		ImportedAt: at,
	}
}
