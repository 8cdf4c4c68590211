package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/claimrisk/internal/artifact"
	"github.com/gyeh/claimrisk/internal/loader"
	"github.com/gyeh/claimrisk/internal/ml"
	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/risk"
	"github.com/gyeh/claimrisk/internal/store"
	"github.com/gyeh/claimrisk/internal/synth"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ds := synth.Generate(synth.Options{Patients: 60, Providers: 12, Claims: 600, FraudRate: 0.2, Seed: 3})
	s, _ := loader.FromDataset(ds, zerolog.Nop())
	require.Greater(t, s.NumClaims(), 500)
	return s
}

// testOptions pins the evaluation clock so engines built at different
// instants extract identical rows.
func testOptions() Options {
	opts := DefaultOptions()
	opts.Features.Now = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return opts
}

func testEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts, zerolog.Nop())
	require.NoError(t, err)
	e.Rebuild(testStore(t), nil)
	return e
}

func trainRequest() TrainRequest {
	p := ml.DefaultParams()
	p.Estimators = 20
	return TrainRequest{UseResampling: true, TestFraction: 0.2, Seed: 42, Params: &p}
}

func trainedEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e := testEngine(t, opts)
	_, err := e.Train(context.Background(), trainRequest())
	require.NoError(t, err)
	return e
}

func TestNoModel(t *testing.T) {
	e := testEngine(t, testOptions())
	ctx := context.Background()

	_, err := e.Score(ctx, Request{})
	assert.ErrorIs(t, err, artifact.ErrModelUnavailable)
	_, err = e.Explain(risk.Assessment{})
	assert.ErrorIs(t, err, artifact.ErrModelUnavailable)
	_, err = e.ModelPerformance()
	assert.ErrorIs(t, err, artifact.ErrModelUnavailable)
	_, err = e.FeatureImportance(5)
	assert.ErrorIs(t, err, artifact.ErrModelUnavailable)

	st := e.ModelStatus()
	assert.False(t, st.Ready())
	assert.Equal(t, "not_ready", st.State)

	stats, err := e.Statistics()
	require.NoError(t, err)
	assert.Nil(t, stats.ModelInfo)
	assert.Greater(t, stats.TotalClaims, 0)

	err = e.LoadArtifact(ctx)
	assert.ErrorIs(t, err, artifact.ErrModelUnavailable)
}

func TestNoData(t *testing.T) {
	e, err := New(testOptions(), zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.Nil(t, e.Snapshot())
	_, err = e.ExtractFeatures(ctx, Request{})
	assert.ErrorIs(t, err, ErrNoData)
	_, err = e.Train(ctx, trainRequest())
	assert.ErrorIs(t, err, ErrNoData)
	_, err = e.Statistics()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestExtractFeaturesOrderInvariant(t *testing.T) {
	e := testEngine(t, testOptions())
	ctx := context.Background()
	claims := e.Snapshot().Store.Claims()
	a, b := claims[3].ID, claims[10].ID

	both, err := e.ExtractFeatures(ctx, Request{ClaimIDs: []string{b, a, b, "missing"}})
	require.NoError(t, err)
	require.Equal(t, 2, both.Len())
	assert.Equal(t, a, both.Rows[0].ClaimID)

	one, err := e.ExtractFeatures(ctx, Request{ClaimIDs: []string{b}})
	require.NoError(t, err)
	require.Equal(t, 1, one.Len())
	assert.Equal(t, both.Rows[1], one.Rows[0])

	limited, err := e.ExtractFeatures(ctx, Request{Limit: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, limited.Len())
	assert.Equal(t, claims[0].ID, limited.Rows[0].ClaimID)
}

// smallStore has one claim with an unknown patient ahead of three
// scoreable claims.
func smallStore(t *testing.T) *store.Store {
	t.Helper()
	yes, no := true, false
	day := func(d int) *time.Time {
		v := time.Date(2024, 3, d, 10, 0, 0, 0, time.UTC)
		return &v
	}
	b := store.NewBuilder()
	require.NoError(t, b.AddPatient(&model.Patient{ID: "P1", Gender: "F"}))
	require.NoError(t, b.AddPatient(&model.Patient{ID: "P2", Gender: "M"}))
	require.NoError(t, b.AddProvider(&model.Provider{ID: "D1"}))
	require.NoError(t, b.AddProvider(&model.Provider{ID: "D2"}))
	for _, c := range []*model.Claim{
		{ID: "X", PatientID: "NOPE", ProviderID: "D1", ClaimAmount: 10, ServiceDate: day(1), IsFraudulent: &yes},
		{ID: "C1", PatientID: "P1", ProviderID: "D1", ClaimAmount: 100, ServiceDate: day(2), IsFraudulent: &no},
		{ID: "C2", PatientID: "P1", ProviderID: "D2", ClaimAmount: 200, ServiceDate: day(5), IsFraudulent: &yes},
		{ID: "C3", PatientID: "P2", ProviderID: "D2", ClaimAmount: 300, ServiceDate: day(9)},
	} {
		require.NoError(t, b.AddClaim(c))
	}
	return b.Build()
}

func TestLimitCountsScoreableClaims(t *testing.T) {
	e, err := New(testOptions(), zerolog.Nop())
	require.NoError(t, err)
	e.Rebuild(smallStore(t), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{"all", Request{Limit: 2}, []string{"C1", "C2"}},
		{"explicit ids", Request{ClaimIDs: []string{"C3", "X", "C1"}, Limit: 2}, []string{"C1", "C3"}},
		{"only unscoreable", Request{ClaimIDs: []string{"X"}, Limit: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := e.ExtractFeatures(ctx, tt.req)
			require.NoError(t, err)
			var got []string
			for _, r := range m.Rows {
				got = append(got, r.ClaimID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListClaims(t *testing.T) {
	e, err := New(testOptions(), zerolog.Nop())
	require.NoError(t, err)
	_, err = e.ListClaims(ClaimQuery{})
	assert.ErrorIs(t, err, ErrNoData)
	e.Rebuild(smallStore(t), nil)

	ids := func(p store.Page) []string {
		out := make([]string, len(p.Claims))
		for i, c := range p.Claims {
			out[i] = c.ID
		}
		return out
	}
	tests := []struct {
		name  string
		q     ClaimQuery
		want  []string
		total int
	}{
		{"everything", ClaimQuery{}, []string{"X", "C1", "C2", "C3"}, 4},
		{"page", ClaimQuery{Limit: 2, Offset: 1}, []string{"C1", "C2"}, 4},
		{"fraud only", ClaimQuery{FraudOnly: true}, []string{"X", "C2"}, 2},
		{"fraud page", ClaimQuery{FraudOnly: true, Limit: 1, Offset: 1}, []string{"C2"}, 2},
		{"patient", ClaimQuery{PatientID: "P1"}, []string{"C1", "C2"}, 2},
		{"provider", ClaimQuery{ProviderID: "D2", Limit: 1}, []string{"C2"}, 2},
		{"from", ClaimQuery{From: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)}, []string{"C2", "C3"}, 2},
		{"window", ClaimQuery{
			From: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		}, []string{"C1", "C2"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.ListClaims(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(p))
			assert.Equal(t, tt.total, p.Total)
		})
	}
}

func TestStatisticsGraph(t *testing.T) {
	e, err := New(testOptions(), zerolog.Nop())
	require.NoError(t, err)
	e.Rebuild(smallStore(t), nil)

	st, err := e.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalClaims)
	// Claim X still links its unknown patient to D1.
	assert.Equal(t, 5, st.Graph.Nodes)
	assert.Equal(t, 4, st.Graph.Edges)
	assert.Equal(t, 2, st.Graph.FraudEdges)
	assert.False(t, st.Graph.BetweennessSkipped)
}

func TestTrainAndScore(t *testing.T) {
	e := trainedEngine(t, testOptions())
	ctx := context.Background()

	st := e.ModelStatus()
	require.True(t, st.Ready())
	assert.Equal(t, "fraud_detector", st.ModelName)
	assert.False(t, st.Training)
	assert.Equal(t, e.Snapshot().Extractor.Schema().Version(), st.SchemaVersion)

	all, err := e.ExtractFeatures(ctx, Request{})
	require.NoError(t, err)
	got, err := e.Score(ctx, Request{})
	require.NoError(t, err)
	require.Len(t, got, all.Len())

	predicted := 0
	for i, a := range got {
		assert.Equal(t, all.Rows[i].ClaimID, a.ClaimID)
		assert.Equal(t, risk.Classify(a.Probability), a.Level)
		assert.LessOrEqual(t, len(a.Factors), risk.MaxFactors)
		assert.NotEmpty(t, a.PatientID)
		assert.NotNil(t, a.ActualFraud)
		if a.Predicted {
			predicted++
		}
	}
	assert.Greater(t, predicted, 0)

	x, err := e.Explain(got[0])
	require.NoError(t, err)
	assert.NotEmpty(t, x.Summary)

	perf, err := e.ModelPerformance()
	require.NoError(t, err)
	assert.Equal(t, all.Schema.Len(), perf.NumFeatures)
	assert.True(t, perf.UsedResampling)

	imp, err := e.FeatureImportance(5)
	require.NoError(t, err)
	assert.Len(t, imp, 5)

	stats, err := e.Statistics()
	require.NoError(t, err)
	require.NotNil(t, stats.ModelInfo)
	assert.Equal(t, perf.Test.F1, stats.ModelInfo.TestF1)
}

func TestScoreSubsetMatchesFullRun(t *testing.T) {
	opts := testOptions()
	opts.BatchSize = 64
	e := trainedEngine(t, opts)
	ctx := context.Background()

	full, err := e.Score(ctx, Request{})
	require.NoError(t, err)
	byID := make(map[string]risk.Assessment, len(full))
	for _, a := range full {
		byID[a.ClaimID] = a
	}

	// A fresh engine without cache over the same store and model.
	coldOpts := Options{BatchSize: 7}
	coldOpts.Features.Now = opts.Features.Now
	cold, err := New(coldOpts, zerolog.Nop())
	require.NoError(t, err)
	cold.Rebuild(e.Snapshot().Store, nil)
	cold.SetArtifact(e.Artifact())

	ids := []string{full[40].ClaimID, full[2].ClaimID, full[17].ClaimID}
	sub, err := cold.Score(ctx, Request{ClaimIDs: ids})
	require.NoError(t, err)
	require.Len(t, sub, 3)
	assert.Equal(t, full[2].ClaimID, sub[0].ClaimID)
	for _, a := range sub {
		assert.Equal(t, byID[a.ClaimID], a)
	}

	limited, err := cold.Score(ctx, Request{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, full[:10], limited)
}

func TestAssessmentCache(t *testing.T) {
	e := trainedEngine(t, testOptions())
	ctx := context.Background()
	req := Request{Limit: 20}

	first, err := e.Score(ctx, req)
	require.NoError(t, err)
	second, err := e.Score(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	m := e.Metrics()
	assert.Equal(t, 20.0, testutil.ToFloat64(m.cacheAccess.WithLabelValues("hit")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.cacheAccess.WithLabelValues("miss")))

	// A rebuilt snapshot invalidates cached entries.
	e.Rebuild(e.Snapshot().Store, nil)
	_, err = e.Score(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 40.0, testutil.ToFloat64(m.cacheAccess.WithLabelValues("miss")))
}

func TestScoreCanceled(t *testing.T) {
	e := trainedEngine(t, testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Score(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainingInProgress(t *testing.T) {
	e := testEngine(t, testOptions())
	e.train.Lock()
	_, err := e.Train(context.Background(), trainRequest())
	e.train.Unlock()
	assert.ErrorIs(t, err, ErrTrainingInProgress)
	assert.Nil(t, e.Artifact())
}

func TestTrainingFailureKeepsPreviousModel(t *testing.T) {
	e := trainedEngine(t, testOptions())
	before := e.Artifact()

	req := trainRequest()
	req.TestFraction = 1.5
	_, err := e.Train(context.Background(), req)
	assert.True(t, errors.Is(err, ml.ErrTrainingFailure))
	assert.Same(t, before, e.Artifact())
}

func TestRebuildSwapsSnapshot(t *testing.T) {
	e := testEngine(t, testOptions())
	old := e.Snapshot()
	next := e.Rebuild(old.Store, nil)

	assert.NotEqual(t, old.ID, next.ID)
	assert.Same(t, next, e.Snapshot())
	assert.NotNil(t, old.Extractor, "previous snapshot stays usable")
	assert.Equal(t, 2.0, testutil.ToFloat64(e.Metrics().rebuilds))
}

func TestTrainPersistsArtifact(t *testing.T) {
	fs := artifact.FileStore{Dir: t.TempDir()}
	opts := testOptions()
	opts.Artifacts = fs
	e := trainedEngine(t, opts)

	fresh, err := New(opts, zerolog.Nop())
	require.NoError(t, err)
	fresh.Rebuild(e.Snapshot().Store, nil)
	require.NoError(t, fresh.LoadArtifact(context.Background()))
	assert.Equal(t, e.Artifact().ID, fresh.Artifact().ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(fresh.Metrics().modelReady))

	ctx := context.Background()
	want, err := e.Score(ctx, Request{Limit: 25})
	require.NoError(t, err)
	got, err := fresh.Score(ctx, Request{Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
