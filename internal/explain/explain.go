// Package explain turns risk assessments into red flags, a summary and a
// recommended action using fixed rules.
package explain

import (
	"fmt"
	"math"

	"github.com/gyeh/claimrisk/internal/risk"
)

// AnomalyValue is the absolute value above which a factor without a rule
// still yields a low-severity flag.
const AnomalyValue = 1.0

// RedFlag is one rule-derived reason behind a fraud score. ID is the
// 1-based position of the originating risk factor.
type RedFlag struct {
	ID          int      `json:"id"`
	Category    string   `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	DataPoints  []string `json:"data_points"`
}

// Explanation is the human-readable account of one assessment.
type Explanation struct {
	Summary             string    `json:"summary"`
	RedFlags            []RedFlag `json:"red_flags"`
	Recommendation      string    `json:"recommendation"`
	ConfidenceNarrative string    `json:"confidence_explanation"`
	TotalRedFlags       int       `json:"total_red_flags"`
	RiskScore           float64   `json:"risk_score"`
}

// Explain derives an explanation from a's risk factors, probability and
// level. It never fails and always returns a summary.
func Explain(a risk.Assessment) Explanation {
	flags := RedFlags(a.Factors)
	return Explanation{
		Summary:             Summary(a.Level, a.Probability, len(flags)),
		RedFlags:            flags,
		Recommendation:      Recommendation(a.Level),
		ConfidenceNarrative: ConfidenceNarrative(a.Probability),
		TotalRedFlags:       len(flags),
		RiskScore:           a.Probability,
	}
}

// RedFlags applies Rules to each factor. Factors without a rule produce a
// LOW "Data Anomaly" flag when their magnitude exceeds AnomalyValue.
func RedFlags(factors []risk.Factor) []RedFlag {
	flags := make([]RedFlag, 0, len(factors))
	for i, f := range factors {
		dataPoint := fmt.Sprintf("%s: %.2f", Describe(f.Feature), f.Value)
		rule, ok := Rules[f.Feature]
		switch {
		case ok && rule.Matches(f.Value):
			flags = append(flags, RedFlag{
				ID:          i + 1,
				Category:    rule.Category,
				Severity:    rule.Severity,
				Description: rule.Message(f.Value),
				DataPoints:  []string{dataPoint},
			})
		case !ok && math.Abs(f.Value) > AnomalyValue:
			flags = append(flags, RedFlag{
				ID:          i + 1,
				Category:    "Data Anomaly",
				Severity:    SeverityLow,
				Description: fmt.Sprintf("Unusual %s detected", Describe(f.Feature)),
				DataPoints:  []string{dataPoint},
			})
		}
	}
	return flags
}

// Summary selects the executive summary for a risk level.
func Summary(level risk.Level, p float64, flags int) string {
	pct := p * 100
	switch level {
	case risk.Critical, risk.High:
		return fmt.Sprintf("This claim shows strong indicators of fraud with a %.1f%% probability. "+
			"%d significant red flags were identified that warrant immediate investigation.", pct, flags)
	case risk.Medium:
		return fmt.Sprintf("This claim exhibits some suspicious patterns with a %.1f%% fraud probability. "+
			"%d potential red flags suggest this claim should be reviewed before payment.", pct, flags)
	case risk.Low:
		return fmt.Sprintf("This claim shows minor anomalies with a %.1f%% fraud probability. "+
			"While %d flags were detected, they may have legitimate explanations.", pct, flags)
	default:
		return fmt.Sprintf("This claim appears normal with a low %.1f%% fraud probability. "+
			"%d red flags were identified and detected patterns fall within acceptable ranges.", pct, flags)
	}
}

// Recommendation selects the recommended action for a risk level.
func Recommendation(level risk.Level) string {
	switch level {
	case risk.Critical:
		return "IMMEDIATE ACTION REQUIRED: Escalate to fraud investigation team. Do not process payment " +
			"until thorough investigation is complete. Consider referring to law enforcement if fraud is confirmed."
	case risk.High:
		return "Hold payment and initiate detailed review. Request additional documentation from provider " +
			"and patient. Conduct interview with provider if needed. Approve only after verification."
	case risk.Medium:
		return "Flag for manual review before processing. Request supporting documentation. " +
			"Compare with similar claims from this provider. Approve with enhanced monitoring."
	case risk.Low:
		return "Process with standard review procedures. Add to provider monitoring queue for pattern analysis. " +
			"No immediate action required."
	default:
		return "Approve for standard processing. No additional review or action required."
	}
}

// ConfidenceNarrative describes the probability using its own bands, which
// deliberately differ from the risk level cut points.
func ConfidenceNarrative(p float64) string {
	switch {
	case p >= 0.9:
		return "Extremely high confidence - Multiple strong fraud indicators align with known fraud patterns."
	case p >= 0.75:
		return "High confidence - Several significant fraud indicators detected across multiple categories."
	case p >= 0.5:
		return "Moderate confidence - Some fraud indicators present, but not conclusive without additional review."
	case p >= 0.25:
		return "Low confidence - Minor anomalies detected, but could be explained by legitimate circumstances."
	default:
		return "Very low confidence - Claim patterns appear normal and consistent with legitimate claims."
	}
}

func valuef(format string) func(float64) string {
	return func(v float64) string { return fmt.Sprintf(format, v) }
}

func percentf(format string) func(float64) string {
	return func(v float64) string { return fmt.Sprintf(format, v*100) }
}

func fixed(msg string) func(float64) string {
	return func(float64) string { return msg }
}
