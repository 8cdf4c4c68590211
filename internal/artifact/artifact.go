// Package artifact bundles a trained model with the feature schema it was
// trained on and persists it.
package artifact

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/claimrisk/internal/features"
	"github.com/gyeh/claimrisk/internal/ml"
)

// ErrModelUnavailable is returned by inference on a nil or untrained
// artifact, and by stores that hold no artifact under the requested name.
var ErrModelUnavailable = errors.New("model unavailable")

// Artifact is an immutable trained model. Callers share it by pointer and
// never modify it after New or Decode.
type Artifact struct {
	ID              uuid.UUID
	Name            string
	Schema          *features.Schema
	Scaler          *ml.Scaler
	Classifier      ml.Classifier
	Report          ml.Report
	DataFingerprint string
}

// New assembles an artifact from a training result. The schema, scaler and
// classifier must agree on the number of features.
func New(name string, schema *features.Schema, res *ml.Result, fingerprint string) (*Artifact, error) {
	if schema == nil || res == nil || res.Scaler == nil || res.Classifier == nil {
		return nil, errors.New("artifact: incomplete training result")
	}
	n := schema.Len()
	if len(res.Scaler.Mean) != n || len(res.Scaler.Scale) != n || res.Classifier.NumInputs() != n {
		return nil, fmt.Errorf("artifact: schema has %d features, scaler %d, classifier %d",
			n, len(res.Scaler.Mean), res.Classifier.NumInputs())
	}
	return &Artifact{
		ID:              uuid.New(),
		Name:            name,
		Schema:          schema,
		Scaler:          res.Scaler,
		Classifier:      res.Classifier,
		Report:          res.Report,
		DataFingerprint: fingerprint,
	}, nil
}

// Ready reports whether a can serve inference.
func (a *Artifact) Ready() bool {
	return a != nil && a.Schema != nil && a.Scaler != nil && a.Classifier != nil
}

// TrainedAt returns the training timestamp, zero for an unready artifact.
func (a *Artifact) TrainedAt() time.Time {
	if !a.Ready() {
		return time.Time{}
	}
	return a.Report.TrainedAt
}

// Align projects m onto the artifact schema. Every other inference method
// goes through it.
func (a *Artifact) Align(m *features.Matrix) (*features.Matrix, error) {
	if !a.Ready() {
		return nil, ErrModelUnavailable
	}
	return features.Align(m, a.Schema), nil
}

// PredictProba returns the fraud probability of each row of m.
func (a *Artifact) PredictProba(m *features.Matrix) ([]float64, error) {
	aligned, err := a.Align(m)
	if err != nil {
		return nil, err
	}
	return a.Classifier.PredictProba(a.Scaler.Transform(aligned.Values())), nil
}

// Predict returns the fraud decision of each row of m.
func (a *Artifact) Predict(m *features.Matrix) ([]bool, error) {
	proba, err := a.PredictProba(m)
	if err != nil {
		return nil, err
	}
	return ml.Predict(proba), nil
}

// Importance is one feature's share of the model's splits.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// FeatureImportance returns the topN most important features in descending
// order, ties broken by name. topN <= 0 returns all of them.
func (a *Artifact) FeatureImportance(topN int) ([]Importance, error) {
	if !a.Ready() {
		return nil, ErrModelUnavailable
	}
	imp := a.Classifier.FeatureImportances()
	out := make([]Importance, 0, len(imp))
	for i, v := range imp {
		out = append(out, Importance{Feature: a.Schema.Name(i), Importance: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature < out[j].Feature
	})
	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	return out, nil
}
