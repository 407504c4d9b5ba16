package normalizer

import (
	"fmt"
	"math"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
	"github.com/xeipuuv/gojsonschema"

	"listentier/internal/models"
)

const accountHistoryLayout = "2006-01-02 15:04"

// schemaAdapter detects its shape with a JSON schema over the discriminating keys only, so entries
// with missing names still route to the right adapter and are skipped there. The names schema
// recognizes entries that lost their timestamp key.
type schemaAdapter struct {
	format Format
	schema *gojsonschema.Schema
	names  *gojsonschema.Schema
}

func compile(format Format, doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("normalizer: invalid %s schema: %v", format, err))
	}
	return schema
}

func mustSchema(format Format, doc, names string) schemaAdapter {
	return schemaAdapter{format: format, schema: compile(format, doc), names: compile(format, names)}
}

func (s schemaAdapter) Format() Format {
	return s.format
}

func (s schemaAdapter) Detect(entry []byte) bool {
	return matches(s.schema, entry)
}

func (s schemaAdapter) DetectNames(entry []byte) bool {
	return matches(s.names, entry)
}

func matches(schema *gojsonschema.Schema, entry []byte) bool {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(entry))
	return err == nil && res.Valid()
}

// extendedHistoryAdapter reads the "Extended streaming history" bulk export.
type extendedHistoryAdapter struct {
	schemaAdapter
}

func newExtendedHistoryAdapter() *extendedHistoryAdapter {
	return &extendedHistoryAdapter{mustSchema(FormatExtendedHistory, `{
		"type": "object",
		"required": ["ts"],
		"properties": {
			"ts": {"type": "string"},
			"ms_played": {"type": ["number", "string", "null"]}
		}
	}`, `{
		"type": "object",
		"anyOf": [
			{"required": ["master_metadata_track_name"]},
			{"required": ["master_metadata_album_artist_name"]}
		]
	}`)}
}

type extendedHistoryEntry struct {
	Ts       string  `json:"ts"`
	MsPlayed any     `json:"ms_played"`
	Track    *string `json:"master_metadata_track_name"`
	Artist   *string `json:"master_metadata_album_artist_name"`
	Album    *string `json:"master_metadata_album_album_name"`
}

func (a *extendedHistoryAdapter) Convert(entry []byte, source models.Source) (models.PlayRecord, error) {
	var e extendedHistoryEntry
	if err := json.Unmarshal(entry, &e); err != nil {
		return models.PlayRecord{}, err
	}
	playedAt, err := time.Parse(time.RFC3339, e.Ts)
	if err != nil {
		return models.PlayRecord{}, err
	}
	return build(deref(e.Artist), deref(e.Track), deref(e.Album), playedAt, looseMillis(e.MsPlayed), source)
}

// accountHistoryAdapter reads the basic account data export (StreamingHistory*.json).
type accountHistoryAdapter struct {
	schemaAdapter
}

func newAccountHistoryAdapter() *accountHistoryAdapter {
	return &accountHistoryAdapter{mustSchema(FormatAccountHistory, `{
		"type": "object",
		"required": ["endTime"],
		"properties": {
			"endTime": {"type": "string"},
			"msPlayed": {"type": ["number", "string", "null"]}
		}
	}`, `{
		"type": "object",
		"required": ["msPlayed"],
		"anyOf": [
			{"required": ["trackName"]},
			{"required": ["artistName"]}
		]
	}`)}
}

type accountHistoryEntry struct {
	EndTime    string `json:"endTime"`
	ArtistName string `json:"artistName"`
	TrackName  string `json:"trackName"`
	MsPlayed   any    `json:"msPlayed"`
}

func (a *accountHistoryAdapter) Convert(entry []byte, source models.Source) (models.PlayRecord, error) {
	var e accountHistoryEntry
	if err := json.Unmarshal(entry, &e); err != nil {
		return models.PlayRecord{}, err
	}
	playedAt, err := time.ParseInLocation(accountHistoryLayout, strings.TrimSpace(e.EndTime), time.UTC)
	if err != nil {
		return models.PlayRecord{}, err
	}
	return build(e.ArtistName, e.TrackName, "", playedAt, looseMillis(e.MsPlayed), source)
}

// recentlyPlayedAdapter reads items of the provider's recently-played API. The API reports the
// track length, not the listened time, so duration_ms stands in for msPlayed.
type recentlyPlayedAdapter struct {
	schemaAdapter
}

func newRecentlyPlayedAdapter() *recentlyPlayedAdapter {
	return &recentlyPlayedAdapter{mustSchema(FormatRecentlyPlayed, `{
		"type": "object",
		"required": ["played_at", "track"],
		"properties": {
			"played_at": {"type": "string"},
			"track": {"type": "object"}
		}
	}`, `{
		"type": "object",
		"required": ["track"],
		"properties": {
			"track": {"type": "object"}
		}
	}`)}
}

type recentlyPlayedEntry struct {
	PlayedAt string `json:"played_at"`
	Track    struct {
		Name       string `json:"name"`
		DurationMs any    `json:"duration_ms"`
		Album      struct {
			Name string `json:"name"`
		} `json:"album"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"track"`
}

func (a *recentlyPlayedAdapter) Convert(entry []byte, source models.Source) (models.PlayRecord, error) {
	var e recentlyPlayedEntry
	if err := json.Unmarshal(entry, &e); err != nil {
		return models.PlayRecord{}, err
	}
	playedAt, err := time.Parse(time.RFC3339, e.PlayedAt)
	if err != nil {
		return models.PlayRecord{}, err
	}
	artist := ""
	if len(e.Track.Artists) > 0 {
		artist = e.Track.Artists[0].Name
	}
	return build(artist, e.Track.Name, e.Track.Album.Name, playedAt, looseMillis(e.Track.DurationMs), source)
}

// simpleAdapter reads the flat shape written by earlier app versions, where the duration is in
// seconds and playedAt is RFC3339 or unix milliseconds.
type simpleAdapter struct {
	schemaAdapter
}

func newSimpleAdapter() *simpleAdapter {
	return &simpleAdapter{mustSchema(FormatSimple, `{
		"type": "object",
		"required": ["playedAt"],
		"properties": {
			"playedAt": {"type": ["string", "number"]},
			"secondsPlayed": {"type": ["number", "string", "null"]}
		}
	}`, `{
		"type": "object",
		"anyOf": [
			{"required": ["trackName"]},
			{"required": ["artistName"]}
		]
	}`)}
}

type simpleEntry struct {
	PlayedAt      any    `json:"playedAt"`
	TrackName     string `json:"trackName"`
	ArtistName    string `json:"artistName"`
	AlbumName     string `json:"albumName"`
	SecondsPlayed any    `json:"secondsPlayed"`
}

func (a *simpleAdapter) Convert(entry []byte, source models.Source) (models.PlayRecord, error) {
	var e simpleEntry
	if err := json.Unmarshal(entry, &e); err != nil {
		return models.PlayRecord{}, err
	}
	playedAt, err := looseTime(e.PlayedAt)
	if err != nil {
		return models.PlayRecord{}, err
	}
	seconds, err := cast.ToFloat64E(e.SecondsPlayed)
	if err != nil || math.IsNaN(seconds) {
		seconds = 0
	}
	return build(e.ArtistName, e.TrackName, e.AlbumName, playedAt, int64(math.Round(seconds*1000)), source)
}

func build(artist, track, album string, playedAt time.Time, ms int64, source models.Source) (models.PlayRecord, error) {
	if strings.TrimSpace(artist) == "" || strings.TrimSpace(track) == "" {
		return models.PlayRecord{}, errMissingField
	}
	if playedAt.IsZero() {
		return models.PlayRecord{}, errMissingField
	}
	return models.NewPlayRecord(artist, track, album, playedAt, ms, source), nil
}

// looseMillis accepts numbers and numeric strings. Unusable values count as zero since the duration
// is not a required field.
func looseMillis(v any) int64 {
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Round(f))
}

func looseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return time.Parse(time.RFC3339, t)
	case nil:
		return time.Time{}, errMissingField
	}
	ms, err := cast.ToInt64E(v)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
