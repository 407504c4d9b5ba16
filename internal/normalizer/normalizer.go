// Package normalizer converts provider-specific listening history JSON into canonical play records.
//
// Every recognized shape is an Adapter. A document is dispatched to the first adapter whose
// detection schema accepts one of its entries, and every entry is then converted by that adapter.
// Entries missing a track name, an artist name or a usable timestamp are skipped and counted.
package normalizer

import (
	"bytes"
	"context"
	"errors"
	"runtime"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"listentier/internal/models"
)

type Format string

const (
	FormatExtendedHistory Format = "extended_history"
	FormatAccountHistory  Format = "account_history"
	FormatRecentlyPlayed  Format = "recently_played"
	FormatSimple          Format = "simple"
	FormatMixed           Format = "mixed"
)

var errMissingField = errors.New("missing required field")

// Adapter handles one provider export schema version.
type Adapter interface {
	Format() Format
	Detect(entry []byte) bool
	Convert(entry []byte, source models.Source) (models.PlayRecord, error)
}

// nameDetector is implemented by adapters that can recognize their entries by name keys alone.
type nameDetector interface {
	DetectNames(entry []byte) bool
}

type Result struct {
	Records []models.PlayRecord
	Format  Format
	Total   int
	Skipped int
}

type Normalizer struct {
	adapters []Adapter
}

// New returns a normalizer with the built-in adapters, most specific first.
func New() *Normalizer {
	return &Normalizer{
		adapters: []Adapter{
			newRecentlyPlayedAdapter(),
			newExtendedHistoryAdapter(),
			newAccountHistoryAdapter(),
			newSimpleAdapter(),
		},
	}
}

// Register adds an adapter for a new schema version ahead of the built-in ones.
func (n *Normalizer) Register(a Adapter) {
	n.adapters = append([]Adapter{a}, n.adapters...)
}

// Normalize accepts a JSON array of entries, a single entry object, or an API page object with an
// "items" array.
func (n *Normalizer) Normalize(raw []byte, source models.Source) (*Result, error) {
	entries, err := splitEntries(raw)
	if err != nil {
		return nil, err
	}

	res := &Result{Records: make([]models.PlayRecord, 0, len(entries)), Total: len(entries)}
	if len(entries) == 0 {
		return res, nil
	}

	adapter := n.detect(entries)
	if adapter == nil {
		return nil, models.NewFormatError("unrecognized format: no entry matches a known listening history schema", nil)
	}
	res.Format = adapter.Format()

	for _, entry := range entries {
		if !isObject(entry) {
			res.Skipped++
			continue
		}
		rec, err := adapter.Convert(entry, source)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// NormalizeDocuments parses several documents concurrently and concatenates them in input order.
// The first format error aborts the batch.
func (n *Normalizer) NormalizeDocuments(ctx context.Context, docs [][]byte, source models.Source) (*Result, error) {
	results := make([]*Result, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := n.Normalize(doc, source)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &Result{Records: make([]models.PlayRecord, 0)}
	for _, res := range results {
		merged.Records = append(merged.Records, res.Records...)
		merged.Total += res.Total
		merged.Skipped += res.Skipped
		switch {
		case res.Format == "":
		case merged.Format == "":
			merged.Format = res.Format
		case merged.Format != res.Format:
			merged.Format = FormatMixed
		}
	}
	return merged, nil
}

// detect prefers a timestamp match. When no entry carries a known timestamp key, the name keys pick
// the adapter, and its conversion then skips the entries.
func (n *Normalizer) detect(entries []json.RawMessage) Adapter {
	for _, entry := range entries {
		if !isObject(entry) {
			continue
		}
		for _, a := range n.adapters {
			if a.Detect(entry) {
				return a
			}
		}
	}
	for _, entry := range entries {
		if !isObject(entry) {
			continue
		}
		for _, a := range n.adapters {
			if nd, ok := a.(nameDetector); ok && nd.DetectNames(entry) {
				return a
			}
		}
	}
	return nil
}

func splitEntries(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, models.NewFormatError("unrecognized format: empty document", nil)
	}
	if !json.Valid(trimmed) {
		return nil, models.NewFormatError("malformed JSON", nil)
	}

	switch trimmed[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, models.NewFormatError("malformed JSON array", err)
		}
		return entries, nil
	case '{':
		var page struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &page); err == nil && page.Items != nil {
			return page.Items, nil
		}
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}
	return nil, models.NewFormatError("unrecognized format: top level must be an array or an object", nil)
}

func isObject(entry []byte) bool {
	trimmed := bytes.TrimSpace(entry)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
