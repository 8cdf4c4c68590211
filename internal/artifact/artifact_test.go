package artifact

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyeh/claimrisk/internal/features"
	"github.com/gyeh/claimrisk/internal/ml"
	"github.com/gyeh/claimrisk/internal/pgtest"
)

var pgServer *pgtest.Server

func TestMain(m *testing.M) {
	os.Exit(pgtest.Run(m, 15442, &pgServer))
}

func mustSchema(t *testing.T, names ...string) *features.Schema {
	t.Helper()
	s, err := features.NewSchema(names)
	require.NoError(t, err)
	return s
}

// trained returns an artifact over columns amount, noise where large
// amounts are fraudulent, plus the matrix it was trained on.
func trained(t *testing.T) (*Artifact, *features.Matrix) {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	schema := mustSchema(t, "amount", "noise")
	m := &features.Matrix{Schema: schema}
	var y []bool
	for i := 0; i < 60; i++ {
		fraud := i%4 == 0
		amount := rng.Float64() * 100
		if fraud {
			amount += 1000
		}
		m.Rows = append(m.Rows, features.Row{ClaimID: "C" + strconv.Itoa(i), Values: []float64{amount, rng.Float64()}})
		y = append(y, fraud)
	}
	p := ml.DefaultParams()
	p.Estimators = 20
	res, err := ml.Train(context.Background(), m.Values(), y, ml.TrainConfig{
		TestFraction:  0.2,
		Seed:          42,
		UseResampling: true,
		Trainer:       ml.GBMTrainer{Params: p},
	}, zerolog.Nop())
	require.NoError(t, err)

	a, err := New("fraud_detector", schema, res, "abc123")
	require.NoError(t, err)
	return a, m
}

func TestUnavailable(t *testing.T) {
	var a *Artifact
	m := &features.Matrix{Schema: mustSchema(t, "x")}

	assert.False(t, a.Ready())
	assert.True(t, a.TrainedAt().IsZero())
	_, err := a.Align(m)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	_, err = a.PredictProba(m)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	_, err = a.Predict(m)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	_, err = a.FeatureImportance(5)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	_, err = Encode(a)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	_, err = (&Artifact{}).PredictProba(m)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestNewRejectsMismatch(t *testing.T) {
	a, _ := trained(t)
	_, err := New("x", mustSchema(t, "only"), &ml.Result{Scaler: a.Scaler, Classifier: a.Classifier}, "")
	assert.Error(t, err)
}

func TestAlignedPrediction(t *testing.T) {
	a, m := trained(t)

	want, err := a.PredictProba(m)
	require.NoError(t, err)
	pred, err := a.Predict(m)
	require.NoError(t, err)
	for i, row := range m.Rows {
		assert.Equal(t, row.Values[0] > 1000, pred[i], "row %d", i)
	}

	// Reordered columns plus an unknown one.
	shuffled := &features.Matrix{Schema: mustSchema(t, "extra", "noise", "amount")}
	for _, row := range m.Rows {
		shuffled.Rows = append(shuffled.Rows, features.Row{ClaimID: row.ClaimID, Values: []float64{7, row.Values[1], row.Values[0]}})
	}
	aligned, err := a.Align(shuffled)
	require.NoError(t, err)
	assert.Equal(t, []string{"amount", "noise"}, aligned.Schema.Names())

	got, err := a.PredictProba(shuffled)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A missing column is filled with 0.
	partial := &features.Matrix{Schema: mustSchema(t, "amount"), Rows: []features.Row{{ClaimID: "C1", Values: []float64{5}}}}
	aligned, err = a.Align(partial)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 0}, aligned.Rows[0].Values)
}

func TestFeatureImportance(t *testing.T) {
	a, _ := trained(t)

	all, err := a.FeatureImportance(0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "amount", all[0].Feature)
	assert.GreaterOrEqual(t, all[0].Importance, all[1].Importance)

	top, err := a.FeatureImportance(1)
	require.NoError(t, err)
	assert.Equal(t, all[:1], top)
}

func TestEncodeDecode(t *testing.T) {
	a, m := trained(t)

	data, err := Encode(a)
	require.NoError(t, err)
	b, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Name, b.Name)
	assert.Equal(t, a.DataFingerprint, b.DataFingerprint)
	assert.True(t, a.Schema.Equal(b.Schema))
	assert.Equal(t, a.Schema.Version(), b.Schema.Version())
	assert.True(t, a.Report.TrainedAt.Equal(b.Report.TrainedAt))
	assert.Equal(t, a.Report.Test, b.Report.Test)

	pa, err := a.PredictProba(m)
	require.NoError(t, err)
	pb, err := b.PredictProba(m)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	_, err = Decode([]byte("not zstd"))
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	a, m := trained(t)
	dir := filepath.Join(t.TempDir(), "models")
	fs := FileStore{Dir: dir}
	ctx := context.Background()

	_, err := fs.Load(ctx, a.Name)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	require.NoError(t, fs.Save(ctx, a))
	assert.FileExists(t, filepath.Join(dir, "fraud_detector.model"))

	b, err := fs.Load(ctx, a.Name)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	pa, _ := a.PredictProba(m)
	pb, _ := b.PredictProba(m)
	assert.Equal(t, pa, pb)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")

	_, err = fs.Load(ctx, "../escape")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrModelUnavailable)
}

func TestPGStore(t *testing.T) {
	pgtest.Require(t, pgServer)
	a, m := trained(t)
	ps := PGStore{Pool: pgServer.Fresh(t)}
	ctx := context.Background()

	_, err := ps.Load(ctx, a.Name)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	require.NoError(t, ps.Save(ctx, a))
	b, err := ps.Load(ctx, a.Name)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	pa, _ := a.PredictProba(m)
	pb, _ := b.PredictProba(m)
	assert.Equal(t, pa, pb)

	// Saving again under the same name replaces the row.
	next := *a
	next.ID = [16]byte{1}
	require.NoError(t, ps.Save(ctx, &next))
	c, err := ps.Load(ctx, a.Name)
	require.NoError(t, err)
	assert.Equal(t, next.ID, c.ID)
}
