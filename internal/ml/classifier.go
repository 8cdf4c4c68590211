// Package ml implements model training and inference for claim fraud
// scoring: feature standardization, stratified splitting, SMOTE
// oversampling, a gradient-boosted tree classifier and evaluation metrics.
package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTrainingFailure wraps every error caused by unusable training data or
// parameters.
var ErrTrainingFailure = errors.New("training failure")

// Threshold is the probability above which a claim is predicted fraudulent.
const Threshold = 0.5

// Classifier scores standardized feature rows.
type Classifier interface {
	// Kind names the implementation for serialization.
	Kind() string
	// NumInputs is the number of features the classifier was trained on.
	NumInputs() int
	// PredictProba returns the probability of the positive class per row.
	PredictProba(X [][]float64) []float64
	// FeatureImportances returns one non-negative weight per input, summing
	// to 1 unless the model never split.
	FeatureImportances() []float64
}

// Trainer fits a Classifier.
type Trainer interface {
	Fit(ctx context.Context, X [][]float64, y []bool) (Classifier, error)
}

// Predict applies Threshold to probabilities.
func Predict(proba []float64) []bool {
	out := make([]bool, len(proba))
	for i, p := range proba {
		out[i] = p > Threshold
	}
	return out
}

// EncodeClassifier serializes c as JSON.
func EncodeClassifier(c Classifier) (json.RawMessage, error) {
	switch m := c.(type) {
	case *GBM:
		return json.Marshal(m)
	default:
		return nil, fmt.Errorf("encode classifier: unsupported kind %q", c.Kind())
	}
}

// DecodeClassifier reverses EncodeClassifier.
func DecodeClassifier(kind string, data []byte) (Classifier, error) {
	switch kind {
	case GBMKind:
		var m GBM
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("decode classifier: unknown kind %q", kind)
	}
}
