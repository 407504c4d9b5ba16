package models

// ImportReport summarizes one ingest (file import or sync run) for status display.
type ImportReport struct {
	ID           string `json:"id"`
	Source       Source `json:"source"`
	Format       string `json:"format,omitempty"`
	Parsed       int    `json:"parsed"`
	Skipped      int    `json:"skipped"`
	Added        int    `json:"added"`
	Duplicates   int    `json:"duplicates"`
	TotalRecords int    `json:"totalRecords"`
	Pages        int    `json:"pages,omitempty"`
}

// MintRequest is what the mint collaborator packages into a transaction.
type MintRequest struct {
	ID      string   `json:"id"`
	Address string   `json:"address"`
	Tier    Tier     `json:"tier"`
	Reward  float64  `json:"reward"`
	Genres  []string `json:"genres"`
}

type MintResult struct {
	Request MintRequest `json:"request"`
	TxID    string      `json:"txId"`
}

// SyncPage is one page of the provider's recently-played feed. Body is the raw page document so the
// normalizer owns the mapping. Next is the cursor for the following request, 0 when the feed is
// exhausted.
type SyncPage struct {
	Body  []byte
	Count int
	Next  int64
}
