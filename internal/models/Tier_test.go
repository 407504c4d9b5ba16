package models

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier_Ordering(t *testing.T) {
	assert.Less(t, TierEntry.Rank(), TierVeteran.Rank())
	assert.Less(t, TierVeteran.Rank(), TierOG.Rank())
}

func TestTier_JSONUsesNames(t *testing.T) {
	out, err := json.Marshal(map[string]Tier{"tier": TierVeteran})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"Veteran"}`, string(out))

	var decoded struct {
		Tier Tier `json:"tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tier":"OG"}`), &decoded))
	assert.Equal(t, TierOG, decoded.Tier)
}

func TestParseTier_Unknown(t *testing.T) {
	_, err := ParseTier("Legend")
	assert.Error(t, err)
}

func TestTier_StringOutOfRange(t *testing.T) {
	assert.Equal(t, "Tier(7)", Tier(7).String())
}
