package features

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/claimrisk/internal/graph"
	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/parquetread"
	"github.com/gyeh/claimrisk/internal/store"
)

var evalNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func strp(s string) *string   { return &s }
func boolp(b bool) *bool      { return &b }
func f64p(v float64) *float64 { return &v }

func at(s string) *time.Time {
	t, err := time.Parse("2006-01-02T15:04", s)
	if err != nil {
		panic(err)
	}
	return &t
}

// fixture: two patients, two providers, five claims.
func fixture(t *testing.T) *store.Store {
	t.Helper()
	b := store.NewBuilder()
	dob := time.Date(1984, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, b.AddPatient(&model.Patient{ID: "P1", Gender: "M", BirthDate: &dob}))
	require.NoError(t, b.AddPatient(&model.Patient{ID: "P2", Gender: "F"}))
	require.NoError(t, b.AddProvider(&model.Provider{ID: "D1", Specialty: strp("Cardiology")}))
	require.NoError(t, b.AddProvider(&model.Provider{ID: "D2", Specialty: strp("Radiology")}))
	require.NoError(t, b.AddProvider(&model.Provider{ID: "D3"}))
	require.NoError(t, b.AddPolicy(&model.Policy{ID: "POL1", PatientID: "P1", CoverageStart: at("2024-01-01T00:00")}))

	claims := []*model.Claim{
		// Saturday 2024-01-06 at 22:00.
		{ID: "C1", PatientID: "P1", ProviderID: "D1", PolicyID: "POL1", ClaimAmount: 100, ServiceDate: at("2024-01-06T22:00"),
			Type: "outpatient", Status: "Approved", IsFraudulent: boolp(false)},
		{ID: "C2", PatientID: "P1", ProviderID: "D1", ClaimAmount: 300, ServiceDate: at("2024-01-11T10:00"),
			Type: "inpatient", Status: "Denied", AdmissionType: "Elective", LengthOfStay: f64p(4), IsFraudulent: boolp(true)},
		{ID: "C3", PatientID: "P2", ProviderID: "D2", ClaimAmount: 50, ServiceDate: at("2024-02-05T00:00"),
			Type: "outpatient", Status: "Approved"},
		{ID: "C4", PatientID: "P1", ProviderID: "D2", ClaimAmount: 200, ServiceDate: at("2024-01-16T09:00"),
			Type: "emergency", Status: "Approved", AdmissionType: "Emergency", IsFraudulent: boolp(false)},
		// Provider missing from the store.
		{ID: "C5", PatientID: "P2", ProviderID: "GHOST", ClaimAmount: 75, ServiceDate: at("2024-02-06T10:00"),
			Type: "pharmacy", Status: "Pending", IsFraudulent: boolp(true)},
	}
	for _, c := range claims {
		require.NoError(t, b.AddClaim(c))
	}
	return b.Build()
}

func newExtractor(t *testing.T, s *store.Store) *Extractor {
	t.Helper()
	return NewExtractor(s, graph.Build(s, graph.Options{}), Options{Now: evalNow, Workers: 2}, zerolog.Nop())
}

func TestSchemaColumns(t *testing.T) {
	e := newExtractor(t, fixture(t))
	names := e.Schema().Names()

	for _, want := range []string{
		"claim_type_emergency", "claim_type_inpatient", "claim_type_outpatient", "claim_type_pharmacy",
		"status_Approved", "status_Denied", "status_Pending",
		"specialty_Cardiology", "specialty_Radiology",
		"days_since_policy_start", "graph_distance",
	} {
		_, ok := e.Schema().Index(want)
		assert.True(t, ok, "missing column %s", want)
	}
	// One-hot columns are sorted within their group.
	i1, _ := e.Schema().Index("claim_type_emergency")
	i2, _ := e.Schema().Index("claim_type_pharmacy")
	assert.Less(t, i1, i2)
	assert.Equal(t, "claim_amount", names[0])
	assert.Equal(t, "graph_distance", names[len(names)-1])
}

func TestExtractValues(t *testing.T) {
	e := newExtractor(t, fixture(t))
	m, err := e.Extract(context.Background(), []string{"C1"})
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	v := func(name string) float64 { return m.Value(0, name) }

	assert.Equal(t, 100.0, v("claim_amount"))
	assert.InDelta(t, math.Log1p(100), v("claim_amount_log"), 1e-12)
	assert.Equal(t, 1.0, v("claim_type_outpatient"))
	assert.Equal(t, 0.0, v("claim_type_inpatient"))
	assert.Equal(t, 1.0, v("status_Approved"))

	// P1 claims: 100, 300, 200.
	assert.Equal(t, 3.0, v("patient_num_claims"))
	assert.Equal(t, 600.0, v("patient_total_claimed"))
	assert.Equal(t, 200.0, v("patient_avg_claim"))
	assert.Equal(t, 300.0, v("patient_max_claim"))
	assert.Equal(t, 100.0, v("patient_min_claim"))
	assert.InDelta(t, 100.0, v("patient_std_claim"), 1e-9) // sample std
	assert.Equal(t, 2.0, v("patient_num_providers"))
	assert.InDelta(t, 40.0, v("patient_age"), 0.01)
	assert.Equal(t, 1.0, v("patient_is_male"))

	// D1 claims: 100 (legit), 300 (fraud).
	assert.Equal(t, 2.0, v("provider_num_claims"))
	assert.Equal(t, 400.0, v("provider_total_billed"))
	assert.InDelta(t, math.Sqrt(20000), v("provider_std_claim"), 1e-9)
	assert.Equal(t, 1.0, v("provider_num_patients"))
	assert.Equal(t, 0.5, v("provider_fraud_rate"))
	assert.Equal(t, 1.0, v("specialty_Cardiology"))
	assert.Equal(t, 0.0, v("specialty_Radiology"))

	assert.Equal(t, 5.0, v("service_day_of_week")) // Saturday
	assert.Equal(t, 1.0, v("is_weekend"))
	assert.Equal(t, 1.0, v("service_month"))
	assert.Equal(t, 22.0, v("service_hour"))
	assert.Equal(t, 1.0, v("is_night"))
	assert.Equal(t, 0.0, v("days_since_first_claim"))
	// 3 claims over 9 whole days (Jan 6 22:00 to Jan 16 09:00).
	assert.InDelta(t, 3.0/9.0, v("patient_claim_frequency"), 1e-12)
	assert.Equal(t, 5.0, v("days_since_policy_start"))

	assert.Equal(t, 2.0, v("patient_degree"))
	assert.Equal(t, 1.0, v("provider_degree"))
	assert.Equal(t, 1.0, v("graph_distance"))
	assert.Equal(t, 0.0, v("shared_neighbors"))
	assert.Equal(t, 0.0, v("patient_clustering"))
}

func TestExtractFallbacks(t *testing.T) {
	e := newExtractor(t, fixture(t))
	m, err := e.Extract(context.Background(), []string{"C3", "C2"})
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())
	// Store order, not request order.
	assert.Equal(t, "C2", m.Rows[0].ClaimID)
	assert.Equal(t, "C3", m.Rows[1].ClaimID)

	// C2: elective inpatient with a stay, no policy.
	assert.Equal(t, 1.0, m.Value(0, "is_elective"))
	assert.Equal(t, 4.0, m.Value(0, "length_of_stay"))
	assert.Equal(t, 1.0, m.Value(0, "has_length_of_stay"))
	assert.Equal(t, NoPolicy, m.Value(0, "days_since_policy_start"))
	assert.Equal(t, 4.0, m.Value(0, "days_since_first_claim")) // 4.5 days, floored

	// C3: unknown birth date, midnight service time. Patient history counts
	// C5 even though C5 itself is not scoreable.
	assert.Equal(t, DefaultAge, m.Value(1, "patient_age"))
	assert.Equal(t, 0.0, m.Value(1, "patient_is_male"))
	assert.Equal(t, 2.0, m.Value(1, "patient_num_claims"))
	assert.Equal(t, 0.0, m.Value(1, "provider_fraud_rate"))
	assert.Equal(t, 1.0, m.Value(1, "is_night"))
}

func TestExtractSkipsUnknown(t *testing.T) {
	e := newExtractor(t, fixture(t))

	m, err := e.Extract(context.Background(), []string{"C5", "nope"})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())

	all, err := e.Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, all.Len())
	for _, r := range all.Rows {
		assert.Len(t, r.Values, e.Schema().Len())
	}
}

func TestProviderFraudRate(t *testing.T) {
	b := store.NewBuilder()
	require.NoError(t, b.AddPatient(&model.Patient{ID: "P1", Gender: "F"}))
	require.NoError(t, b.AddProvider(&model.Provider{ID: "D0"}))
	require.NoError(t, b.AddProvider(&model.Provider{ID: "D3"}))
	// Ten labeled claims per provider: none fraudulent at D0, three at D3.
	for i := range 10 {
		require.NoError(t, b.AddClaim(&model.Claim{ID: fmt.Sprintf("A%d", i), PatientID: "P1", ProviderID: "D0",
			ClaimAmount: 100, ServiceDate: at("2024-03-04T10:00"), Type: "outpatient", Status: "Approved", IsFraudulent: boolp(false)}))
		require.NoError(t, b.AddClaim(&model.Claim{ID: fmt.Sprintf("B%d", i), PatientID: "P1", ProviderID: "D3",
			ClaimAmount: 100, ServiceDate: at("2024-03-04T10:00"), Type: "outpatient", Status: "Approved", IsFraudulent: boolp(i < 3)}))
	}
	// Unlabeled, so D3's rate is unchanged; its patient is unknown.
	require.NoError(t, b.AddClaim(&model.Claim{ID: "X", PatientID: "NOPE", ProviderID: "D3",
		ClaimAmount: 100, ServiceDate: at("2024-03-04T10:00"), Type: "outpatient", Status: "Approved"}))
	e := newExtractor(t, b.Build())

	m, err := e.Extract(context.Background(), []string{"A0", "B0", "X"})
	require.NoError(t, err)
	require.Equal(t, 2, m.Len(), "claim with unknown patient is excluded")

	tests := []struct {
		row   int
		claim string
		rate  float64
	}{
		{0, "A0", 0},
		{1, "B0", 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.claim, func(t *testing.T) {
			assert.Equal(t, tt.claim, m.Rows[tt.row].ClaimID)
			assert.Equal(t, tt.rate, m.Value(tt.row, "provider_fraud_rate"))
		})
	}
}

func TestSubsetMatchesFullExtraction(t *testing.T) {
	e := newExtractor(t, fixture(t))
	all, err := e.Extract(context.Background(), nil)
	require.NoError(t, err)
	one, err := e.Extract(context.Background(), []string{"C4"})
	require.NoError(t, err)

	assert.Equal(t, all.Schema.Names(), one.Schema.Names())
	assert.Equal(t, all.Rows[3].Values, one.Rows[0].Values)
}

func TestPrepareTraining(t *testing.T) {
	e := newExtractor(t, fixture(t))
	m, labels, err := e.PrepareTraining(context.Background())
	require.NoError(t, err)
	// C3 is unlabeled, C5 has an unknown provider.
	require.Equal(t, 3, m.Len())
	assert.Equal(t, []bool{false, true, false}, labels)
}

func TestExtractCanceled(t *testing.T) {
	e := newExtractor(t, fixture(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Extract(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAlign(t *testing.T) {
	src, err := NewSchema([]string{"a", "b", "c"})
	require.NoError(t, err)
	dst, err := NewSchema([]string{"c", "x", "a"})
	require.NoError(t, err)

	m := &Matrix{Schema: src, Rows: []Row{{ClaimID: "C1", Values: []float64{1, 2, 3}}}}
	got := Align(m, dst)
	assert.Equal(t, dst.Names(), got.Schema.Names())
	assert.Equal(t, []float64{3, 0, 1}, got.Rows[0].Values)

	assert.Same(t, m, Align(m, src))
}

func TestSchemaJSON(t *testing.T) {
	s, err := NewSchema([]string{"a", "b"})
	require.NoError(t, err)
	data, err := s.MarshalJSON()
	require.NoError(t, err)

	var back Schema
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, s.Equal(&back))
	assert.Equal(t, s.Version(), back.Version())

	_, err = NewSchema([]string{"a", "a"})
	assert.Error(t, err)
}

func TestWriteParquet(t *testing.T) {
	e := newExtractor(t, fixture(t))
	m, err := e.Extract(context.Background(), []string{"C1"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "features.parquet")
	require.NoError(t, WriteParquet(path, m))

	r, err := parquetread.Open[Value](path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(e.Schema().Len()), r.NumRows())
}
