package ml

import (
	"context"
	"fmt"
	"math"
)

// Params configures gradient-boosted tree training.
type Params struct {
	Estimators      int     `json:"estimators"`
	LearningRate    float64 `json:"learning_rate"`
	MaxDepth        int     `json:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf"`
	Subsample       float64 `json:"subsample"`
	Seed            int64   `json:"seed"`
}

// DefaultParams returns the stock ensemble settings.
func DefaultParams() Params {
	return Params{
		Estimators:      200,
		LearningRate:    0.1,
		MaxDepth:        5,
		MinSamplesSplit: 10,
		MinSamplesLeaf:  4,
		Subsample:       0.8,
		Seed:            42,
	}
}

// GBMKind identifies serialized gradient-boosting classifiers.
const GBMKind = "gradient_boosting"

// GBM is a binary gradient-boosted tree classifier trained with log-loss.
type GBM struct {
	Params      Params    `json:"params"`
	NumFeatures int       `json:"num_features"`
	Init        float64   `json:"init"` // log-odds of the positive class
	Trees       []Tree    `json:"trees"`
	Importances []float64 `json:"importances"`
}

// Kind implements Classifier.
func (m *GBM) Kind() string { return GBMKind }

// NumInputs implements Classifier.
func (m *GBM) NumInputs() int { return m.NumFeatures }

// Decision returns the raw additive score (log-odds) for x.
func (m *GBM) Decision(x []float64) float64 {
	f := m.Init
	for i := range m.Trees {
		f += m.Params.LearningRate * m.Trees[i].Predict(x)
	}
	return f
}

// PredictProba implements Classifier.
func (m *GBM) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = sigmoid(m.Decision(x))
	}
	return out
}

// FeatureImportances implements Classifier.
func (m *GBM) FeatureImportances() []float64 {
	return append([]float64(nil), m.Importances...)
}

func sigmoid(f float64) float64 {
	return 1 / (1 + math.Exp(-f))
}

// GBMTrainer fits GBM classifiers.
type GBMTrainer struct {
	Params Params
}

// Fit implements Trainer. Context cancellation is checked between trees.
func (t GBMTrainer) Fit(ctx context.Context, X [][]float64, y []bool) (Classifier, error) {
	p := t.Params
	if p.Estimators <= 0 || p.LearningRate <= 0 || p.MaxDepth <= 0 {
		return nil, fmt.Errorf("%w: invalid parameters %+v", ErrTrainingFailure, p)
	}
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d samples, %d labels", ErrTrainingFailure, len(X), len(y))
	}
	neg, pos := classCounts(y)
	if neg == 0 || pos == 0 {
		return nil, fmt.Errorf("%w: training labels contain a single class", ErrTrainingFailure)
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = 1
	}

	n, d := len(X), len(X[0])
	target := make([]float64, n)
	for i, v := range y {
		if v {
			target[i] = 1
		}
	}

	m := &GBM{
		Params:      p,
		NumFeatures: d,
		Init:        math.Log(float64(pos) / float64(neg)),
		Trees:       make([]Tree, 0, p.Estimators),
	}
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = m.Init
	}

	b := &treeBuilder{
		X:           X,
		resid:       make([]float64, n),
		hess:        make([]float64, n),
		maxDepth:    p.MaxDepth,
		minSplit:    max(p.MinSamplesSplit, 2),
		minLeaf:     max(p.MinSamplesLeaf, 1),
		importances: make([]float64, d),
	}
	total := make([]float64, d)
	rng := newRand(p.Seed)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	bag := int(math.Max(1, math.Floor(p.Subsample*float64(n))))

	for e := 0; e < p.Estimators; e++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range raw {
			prob := sigmoid(raw[i])
			b.resid[i] = target[i] - prob
			b.hess[i] = prob * (1 - prob)
		}

		idx := perm
		if bag < n {
			rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
			idx = append([]int(nil), perm[:bag]...)
		}

		for j := range b.importances {
			b.importances[j] = 0
		}
		tree := b.build(idx)
		m.Trees = append(m.Trees, tree)

		// Each tree contributes its normalized importances equally.
		var sum float64
		for _, v := range b.importances {
			sum += v
		}
		if sum > 0 {
			for j, v := range b.importances {
				total[j] += v / sum
			}
		}

		for i := range raw {
			raw[i] += p.LearningRate * tree.Predict(X[i])
		}
	}

	var sum float64
	for _, v := range total {
		sum += v
	}
	if sum > 0 {
		for j := range total {
			total[j] /= sum
		}
	}
	m.Importances = total
	return m, nil
}
