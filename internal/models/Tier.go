package models

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Tier is ordered: Entry < Veteran < OG.
type Tier int

const (
	TierEntry Tier = iota
	TierVeteran
	TierOG
)

var tierNames = [...]string{"Entry", "Veteran", "OG"}

func (t Tier) Rank() int {
	return int(t)
}

func (t Tier) String() string {
	if t < TierEntry || t > TierOG {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return TierEntry, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TierReport is the user's current standing.
type TierReport struct {
	Tier            Tier    `json:"tier"`
	TotalHours      float64 `json:"totalHours"`
	DistinctArtists int     `json:"distinctArtists"`
	Reward          float64 `json:"reward"`
	// NextTier is nil at the top tier.
	NextTier        *Tier   `json:"nextTier,omitempty"`
	HoursToNextTier float64 `json:"hoursToNextTier,omitempty"`
}
