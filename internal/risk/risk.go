// Package risk maps fraud probabilities to risk levels and builds per-claim
// assessments.
package risk

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/claimrisk/internal/features"
	"github.com/gyeh/claimrisk/internal/ml"
	"github.com/gyeh/claimrisk/internal/model"
)

// Level is an ordered risk band.
type Level string

const (
	Minimal  Level = "MINIMAL"
	Low      Level = "LOW"
	Medium   Level = "MEDIUM"
	High     Level = "HIGH"
	Critical Level = "CRITICAL"
)

// Levels lists every level from least to most severe.
var Levels = []Level{Minimal, Low, Medium, High, Critical}

// Classify maps a fraud probability to its risk level. Bounds are inclusive
// on the lower side.
func Classify(p float64) Level {
	switch {
	case p >= 0.8:
		return Critical
	case p >= 0.6:
		return High
	case p >= 0.4:
		return Medium
	case p >= 0.2:
		return Low
	default:
		return Minimal
	}
}

// Confidence is the probability of the predicted class.
func Confidence(p float64) float64 {
	return math.Max(p, 1-p)
}

const (
	// MaxFactors caps the risk factors attached to one assessment.
	MaxFactors = 3
	// MaxRankedFeatures caps how far down the importance ranking factors are
	// drawn from.
	MaxRankedFeatures = 10
	// SignificantValue is the absolute feature value a factor must exceed.
	SignificantValue = 0.1
)

// Factor is a model-important feature with a notable value for one claim.
type Factor struct {
	Feature string  `json:"factor"`
	Value   float64 `json:"value"`
}

// Assessment is the scored outcome for one claim.
type Assessment struct {
	ClaimID     string    `json:"claim_id"`
	ModelID     uuid.UUID `json:"model_id"`
	Predicted   bool      `json:"is_fraud_predicted"`
	Probability float64   `json:"fraud_probability"`
	Level       Level     `json:"risk_level"`
	Confidence  float64   `json:"confidence"`
	Factors     []Factor  `json:"risk_factors"`

	PatientID       string     `json:"patient_id,omitempty"`
	ProviderID      string     `json:"provider_id,omitempty"`
	ClaimAmount     float64    `json:"claim_amount"`
	ServiceDate     *time.Time `json:"service_date,omitempty"`
	ClaimType       string     `json:"claim_type,omitempty"`
	ActualFraud     *bool      `json:"actual_fraud_label,omitempty"`
	ActualFraudType *string    `json:"actual_fraud_type,omitempty"`
}

// Assess builds one assessment per row of m. m holds unscaled feature
// values; proba[i] belongs to m.Rows[i]; ranked lists feature names by
// descending model importance.
func Assess(m *features.Matrix, proba []float64, ranked []string) []Assessment {
	if len(ranked) > MaxRankedFeatures {
		ranked = ranked[:MaxRankedFeatures]
	}
	out := make([]Assessment, len(m.Rows))
	for i, row := range m.Rows {
		p := proba[i]
		out[i] = Assessment{
			ClaimID:     row.ClaimID,
			Predicted:   p > ml.Threshold,
			Probability: p,
			Level:       Classify(p),
			Confidence:  Confidence(p),
			Factors:     factors(m, i, ranked),
		}
	}
	return out
}

func factors(m *features.Matrix, i int, ranked []string) []Factor {
	var out []Factor
	for _, name := range ranked {
		if _, ok := m.Schema.Index(name); !ok {
			continue
		}
		v := m.Value(i, name)
		if math.Abs(v) <= SignificantValue {
			continue
		}
		out = append(out, Factor{Feature: name, Value: v})
		if len(out) == MaxFactors {
			break
		}
	}
	return out
}

// Enrich copies claim details onto a.
func (a *Assessment) Enrich(c *model.Claim) {
	a.PatientID = c.PatientID
	a.ProviderID = c.ProviderID
	a.ClaimAmount = c.ClaimAmount
	a.ServiceDate = c.ServiceDate
	a.ClaimType = c.Type
	a.ActualFraud = c.IsFraudulent
	a.ActualFraudType = c.FraudType
}
