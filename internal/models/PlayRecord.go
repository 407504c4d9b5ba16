package models

import (
	"strings"
	"time"
)

type Source string

const (
	SourceImport Source = "import"
	SourceSync   Source = "sync"
)

// PlayRecord is one listening event.
type PlayRecord struct {
	TrackName  string    `json:"trackName"`
	ArtistName string    `json:"artistName"`
	AlbumName  string    `json:"albumName,omitempty"`
	PlayedAt   time.Time `json:"playedAt"`
	MsPlayed   int64     `json:"msPlayed"`
	Source     Source    `json:"source"`
}

// Identity recognizes the same listening event across import and sync.
type Identity struct {
	Artist   string
	Track    string
	MinuteTS int64
}

// NewPlayRecord builds a record with a UTC timestamp and a non-negative duration.
func NewPlayRecord(artist, track, album string, playedAt time.Time, msPlayed int64, source Source) PlayRecord {
	if msPlayed < 0 {
		msPlayed = 0
	}
	return PlayRecord{
		TrackName:  strings.TrimSpace(track),
		ArtistName: strings.TrimSpace(artist),
		AlbumName:  strings.TrimSpace(album),
		PlayedAt:   playedAt.UTC(),
		MsPlayed:   msPlayed,
		Source:     source,
	}
}

// Identity rounds PlayedAt to the nearest minute.
func (p PlayRecord) Identity() Identity {
	return Identity{
		Artist:   p.ArtistName,
		Track:    p.TrackName,
		MinuteTS: p.PlayedAt.UTC().Round(time.Minute).Unix(),
	}
}

func (p PlayRecord) TrackKey() TrackKey {
	return TrackKey{Artist: p.ArtistName, Track: p.TrackName}
}

type TrackKey struct {
	Artist string
	Track  string
}
