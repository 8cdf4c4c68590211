package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/claimrisk/internal/model"
)

func boolp(b bool) *bool    { return &b }
func strp(s string) *string { return &s }

func day(d int) *time.Time {
	t := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func buildStore(t *testing.T) *Store {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.AddPatient(&model.Patient{ID: "P1"}))
	require.NoError(t, b.AddPatient(&model.Patient{ID: "P2"}))
	require.NoError(t, b.AddProvider(&model.Provider{ID: "D1"}))
	require.NoError(t, b.AddPolicy(&model.Policy{ID: "POL1", PatientID: "P1"}))
	claims := []*model.Claim{
		{ID: "C1", PatientID: "P1", ProviderID: "D1", ClaimAmount: 100, ServiceDate: day(1), IsFraudulent: boolp(false)},
		{ID: "C2", PatientID: "P1", ProviderID: "D1", ClaimAmount: 900, ServiceDate: day(5), IsFraudulent: boolp(true), FraudType: strp("upcoding")},
		{ID: "C3", PatientID: "P2", ProviderID: "D1", ClaimAmount: 50, ServiceDate: day(9)},
		{ID: "C4", PatientID: "P2", ProviderID: "D1", ClaimAmount: 70, ServiceDate: day(12), IsFraudulent: boolp(true), FraudType: strp("phantom_billing")},
	}
	for _, c := range claims {
		require.NoError(t, b.AddClaim(c))
	}
	return b.Build()
}

func TestGetNotFound(t *testing.T) {
	s := buildStore(t)

	_, err := s.GetClaim("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.GetPatient("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.GetProvider("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.GetPolicy("missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	c, err := s.GetClaim("C2")
	require.NoError(t, err)
	assert.Equal(t, 900.0, c.ClaimAmount)
	assert.Equal(t, 1, s.ClaimIndex("C2"))
	assert.Equal(t, -1, s.ClaimIndex("nope"))
}

func TestDuplicateRejected(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddClaim(&model.Claim{ID: "C1"}))
	err := b.AddClaim(&model.Claim{ID: "C1"})
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestIndexes(t *testing.T) {
	s := buildStore(t)
	assert.Len(t, s.ClaimsByPatient("P1"), 2)
	assert.Len(t, s.ClaimsByProvider("D1"), 4)
	assert.Empty(t, s.ClaimsByPatient("P9"))
	assert.Equal(t, []string{"P1", "P2"}, s.PatientIDsWithClaims())
}

func TestScanAndPage(t *testing.T) {
	s := buildStore(t)

	fraud := s.Scan(FraudOnly())
	require.Len(t, fraud, 2)
	assert.Equal(t, "C2", fraud[0].ID)
	assert.Equal(t, "C4", fraud[1].ID)

	assert.Len(t, s.Scan(), 4)
	assert.Len(t, s.Scan(LabeledOnly()), 3)
	assert.Len(t, s.Scan(ByPatient("P2"), FraudOnly()), 1)
	assert.Len(t, s.Scan(ServiceBetween(*day(2), *day(10))), 2)

	tests := []struct {
		limit, offset int
		preds         []Predicate
		want          []string
		total         int
	}{
		{2, 0, nil, []string{"C1", "C2"}, 4},
		{2, 2, nil, []string{"C3", "C4"}, 4},
		{2, 4, nil, nil, 4},
		{0, 1, nil, []string{"C2", "C3", "C4"}, 4},
		{1, 1, []Predicate{FraudOnly()}, []string{"C4"}, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit=%d/offset=%d", tt.limit, tt.offset), func(t *testing.T) {
			p := s.Page(tt.limit, tt.offset, tt.preds...)
			var got []string
			for _, c := range p.Claims {
				got = append(got, c.ID)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.total, p.Total)
		})
	}
}

func TestFraudStatistics(t *testing.T) {
	st := buildStore(t).FraudStatistics()
	assert.Equal(t, 4, st.TotalClaims)
	assert.Equal(t, 2, st.FraudulentClaims)
	assert.Equal(t, 1, st.NormalClaims)
	assert.InDelta(t, 0.5, st.FraudRate, 1e-12)
	assert.Equal(t, map[string]int{"upcoding": 1, "phantom_billing": 1}, st.FraudByType)

	empty := NewBuilder().Build().FraudStatistics()
	assert.Equal(t, 0.0, empty.FraudRate)
}
