package aggregate

import (
	"fmt"
	"math/rand"
	"time"

	"listentier/internal/models"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func rec(artist, track string, at time.Time, ms int64) models.PlayRecord {
	return models.NewPlayRecord(artist, track, "", at, ms, models.SourceImport)
}

// randomRecords draws from small pools so identities collide often.
func randomRecords(rng *rand.Rand, n int, source models.Source) []models.PlayRecord {
	out := make([]models.PlayRecord, 0, n)
	for i := 0; i < n; i++ {
		artist := fmt.Sprintf("artist-%d", rng.Intn(4))
		track := fmt.Sprintf("track-%d", rng.Intn(5))
		at := epoch.Add(time.Duration(rng.Intn(200)) * time.Minute).Add(time.Duration(rng.Intn(20)) * time.Second)
		out = append(out, models.NewPlayRecord(artist, track, "album", at, int64(rng.Intn(300_000)), source))
	}
	return out
}

func identities(records []models.PlayRecord) map[models.Identity]int {
	ids := make(map[models.Identity]int, len(records))
	for _, r := range records {
		ids[r.Identity()]++
	}
	return ids
}
