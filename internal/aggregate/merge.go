package aggregate

import "listentier/internal/models"

type MergeResult struct {
	Records []models.PlayRecord
	// Added counts incoming records that introduced a new identity.
	Added int
	// Duplicates counts incoming records dropped because their identity was already present.
	Duplicates int
}

// Merge combines stored and newly ingested records. On an identity collision the existing record
// wins, so a sync re-fetching an already imported window never overwrites or double counts it.
func Merge(existing, incoming []models.PlayRecord) []models.PlayRecord {
	return MergeWithReport(existing, incoming).Records
}

// MergeWithReport is Merge plus ingest counters. The output never holds two records with the same
// identity; repeated identities inside either input collapse to their first occurrence.
func MergeWithReport(existing, incoming []models.PlayRecord) MergeResult {
	seen := make(map[models.Identity]struct{}, len(existing)+len(incoming))
	out := make([]models.PlayRecord, 0, len(existing)+len(incoming))

	for _, r := range existing {
		id := r.Identity()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}

	res := MergeResult{}
	for _, r := range incoming {
		id := r.Identity()
		if _, dup := seen[id]; dup {
			res.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		out = append(out, r)
		res.Added++
	}
	res.Records = out
	return res
}
