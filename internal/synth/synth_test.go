package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeterministic(t *testing.T) {
	opts := Options{Patients: 50, Providers: 10, Claims: 300, Seed: 7}
	a := Generate(opts)
	b := Generate(opts)
	require.Equal(t, len(a.Claims), len(b.Claims))
	for i := range a.Claims {
		assert.Equal(t, a.Claims[i].ClaimID, b.Claims[i].ClaimID)
		assert.Equal(t, a.Claims[i].ClaimAmount, b.Claims[i].ClaimAmount)
	}

	c := Generate(Options{Patients: 50, Providers: 10, Claims: 300, Seed: 8})
	differs := false
	for i := range a.Claims {
		if a.Claims[i].ClaimAmount != c.Claims[i].ClaimAmount {
			differs = true
			break
		}
	}
	assert.True(t, differs, "different seeds should give different data")
}

func TestGenerateShape(t *testing.T) {
	ds := Generate(Options{Patients: 80, Providers: 12, Claims: 1000, FraudRate: 0.2, Seed: 1})
	assert.Len(t, ds.Patients, 80)
	assert.Len(t, ds.Providers, 12)
	assert.Len(t, ds.Policies, 80)
	assert.Len(t, ds.Claims, 1000)

	seen := make(map[string]bool)
	fraud := 0
	for _, c := range ds.Claims {
		assert.False(t, seen[c.ClaimID], "duplicate claim id %s", c.ClaimID)
		seen[c.ClaimID] = true
		assert.GreaterOrEqual(t, c.ClaimAmount, 0.0)
		require.NotNil(t, c.IsFraudulent)
		if *c.IsFraudulent {
			fraud++
			require.NotNil(t, c.FraudType)
		}
	}
	// Roughly 20% fraud; allow wide slack for pattern fallbacks.
	assert.Greater(t, fraud, 100)
	assert.Less(t, fraud, 300)
}
