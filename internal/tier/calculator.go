// Package tier maps listening statistics or an external popularity score to a Tier and a capped
// reward amount.
package tier

import (
	"math"

	"listentier/internal/models"
	"listentier/internal/structures"
)

const (
	minPopularity = 0
	maxPopularity = 100
	maxPrecision  = 9
)

// Calculator is stateless apart from its policy thresholds.
type Calculator struct {
	conf structures.TierConfig
}

// NewCalculator validates the thresholds. Zero-valued configs are rejected, callers start from
// structures.DefaultTierConfig.
func NewCalculator(conf structures.TierConfig) (*Calculator, error) {
	if !finite(conf.VeteranHours, conf.OGHours, conf.VeteranPopularity, conf.OGPopularity,
		conf.HourRate, conf.ArtistRate, conf.MaxReward) {
		return nil, models.NewDomainRangeError("tier thresholds must be finite")
	}
	if conf.VeteranHours <= 0 || conf.OGHours <= conf.VeteranHours {
		return nil, models.NewDomainRangeError("hour thresholds must satisfy 0 < veteran (%v) < og (%v)", conf.VeteranHours, conf.OGHours)
	}
	if conf.VeteranPopularity <= minPopularity || conf.OGPopularity <= conf.VeteranPopularity || conf.OGPopularity > maxPopularity {
		return nil, models.NewDomainRangeError("popularity thresholds must satisfy 0 < veteran (%v) < og (%v) <= 100", conf.VeteranPopularity, conf.OGPopularity)
	}
	if conf.HourRate < 0 || conf.ArtistRate < 0 || conf.MaxReward < 0 {
		return nil, models.NewDomainRangeError("reward rates and cap must be non-negative")
	}
	if conf.RewardPrecision < 0 || conf.RewardPrecision > maxPrecision {
		return nil, models.NewDomainRangeError("reward precision must be within 0..%d, got %d", maxPrecision, conf.RewardPrecision)
	}
	return &Calculator{conf: conf}, nil
}

// NewCalculatorProvider builds the calculator from application config.
func NewCalculatorProvider(conf *structures.Config) (*Calculator, error) {
	return NewCalculator(conf.Tier)
}

func (c *Calculator) Config() structures.TierConfig {
	return c.conf
}

// TierFromPlaytime: hours < veteran -> Entry, < og -> Veteran, otherwise OG.
func (c *Calculator) TierFromPlaytime(hours float64) (models.Tier, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours < 0 {
		return models.TierEntry, models.NewDomainRangeError("hours must be a non-negative number, got %v", hours)
	}
	switch {
	case hours >= c.conf.OGHours:
		return models.TierOG, nil
	case hours >= c.conf.VeteranHours:
		return models.TierVeteran, nil
	}
	return models.TierEntry, nil
}

// TierFromPopularity accepts a provider popularity score in [0, 100].
func (c *Calculator) TierFromPopularity(popularity float64) (models.Tier, error) {
	if math.IsNaN(popularity) || popularity < minPopularity || popularity > maxPopularity {
		return models.TierEntry, models.NewDomainRangeError("popularity must be within [%d, %d], got %v", minPopularity, maxPopularity, popularity)
	}
	switch {
	case popularity >= c.conf.OGPopularity:
		return models.TierOG, nil
	case popularity >= c.conf.VeteranPopularity:
		return models.TierVeteran, nil
	}
	return models.TierEntry, nil
}

func (c *Calculator) TierFromStats(stats *models.StreamingStats) (models.Tier, error) {
	return c.TierFromPlaytime(stats.TotalHours())
}

// RewardFromStats is min(max, hourRate*hours + artistRate*distinctArtists), floored to the
// configured precision. Monotonic in both inputs and never negative.
func (c *Calculator) RewardFromStats(stats *models.StreamingStats) float64 {
	if stats == nil {
		return 0
	}
	hours := math.Max(stats.TotalHours(), 0)
	artists := math.Max(float64(stats.DistinctArtistCount), 0)

	reward := c.conf.HourRate*hours + c.conf.ArtistRate*artists
	if math.IsNaN(reward) || reward < 0 {
		return 0
	}
	reward = math.Min(reward, c.conf.MaxReward)

	scale := math.Pow10(c.conf.RewardPrecision)
	return math.Floor(reward*scale) / scale
}

// Report combines tier, reward and the distance to the next playtime threshold.
func (c *Calculator) Report(stats *models.StreamingStats) (*models.TierReport, error) {
	t, err := c.TierFromStats(stats)
	if err != nil {
		return nil, err
	}
	hours := stats.TotalHours()
	report := &models.TierReport{
		Tier:       t,
		TotalHours: hours,
		Reward:     c.RewardFromStats(stats),
	}
	if stats != nil {
		report.DistinctArtists = stats.DistinctArtistCount
	}

	var next models.Tier
	var threshold float64
	switch t {
	case models.TierEntry:
		next, threshold = models.TierVeteran, c.conf.VeteranHours
	case models.TierVeteran:
		next, threshold = models.TierOG, c.conf.OGHours
	default:
		return report, nil
	}
	report.NextTier = &next
	report.HoursToNextTier = threshold - hours
	return report, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
