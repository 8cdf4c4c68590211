// Package pipeline runs batch scoring: score, explain and optionally persist
// the assessments of one run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimrisk/internal/artifact"
	"github.com/gyeh/claimrisk/internal/engine"
	"github.com/gyeh/claimrisk/internal/explain"
	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/risk"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Scored is an assessment with its explanation, when requested.
type Scored struct {
	risk.Assessment
	Explanation *explain.Explanation `json:"explanation,omitempty"`
}

// Sink stores the assessments of a run and returns how many were written.
type Sink interface {
	Persist(ctx context.Context, runID uuid.UUID, rows []Scored) (int64, error)
}

// Options configures a run.
type Options struct {
	Request engine.Request
	// Explain attaches an explanation to every assessment.
	Explain bool
	// Timeout bounds the whole run; 0 means no limit.
	Timeout time.Duration
	// Sink, when set, receives the assessments.
	Sink Sink
}

// Report is the outcome of a run.
type Report struct {
	Summary     model.ScoreSummary `json:"summary"`
	Predictions []Scored           `json:"predictions"`
}

// Run scores the requested claims with the engine's current model, then
// explains and persists them according to opts. A persist failure still
// returns the scored report alongside the error.
func Run(ctx context.Context, eng *engine.Engine, log zerolog.Logger, opts Options) (*Report, error) {
	totalStart := time.Now()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	runID := uuid.New()
	log = log.With().Str("run_id", runID.String()).Logger()

	// Phase 1: Score
	if !eng.Artifact().Ready() {
		return nil, &PipelineError{Phase: "score", Err: artifact.ErrModelUnavailable}
	}
	log.Info().Int("claims_requested", len(opts.Request.ClaimIDs)).Int("limit", opts.Request.Limit).Msg("starting scoring")
	start := time.Now()
	assessments, err := eng.Score(ctx, opts.Request)
	if err != nil {
		return nil, &PipelineError{Phase: "score", Err: err}
	}
	sum := model.ScoreSummary{
		RunID:           runID.String(),
		ClaimsScored:    len(assessments),
		RiskLevelCounts: make(map[string]int),
		DurationScore:   time.Since(start),
	}
	rows := make([]Scored, len(assessments))
	for i, a := range assessments {
		rows[i] = Scored{Assessment: a}
		sum.RiskLevelCounts[string(a.Level)]++
		if a.Predicted {
			sum.FraudPredicted++
		}
	}
	if len(assessments) > 0 {
		sum.ModelID = assessments[0].ModelID.String()
		sum.FlaggedRate = float64(sum.FraudPredicted) / float64(len(assessments))
	}

	// Phase 2: Explain
	if opts.Explain {
		start = time.Now()
		for i := range rows {
			x, err := eng.Explain(rows[i].Assessment)
			if err != nil {
				return nil, &PipelineError{Phase: "explain", Err: err}
			}
			rows[i].Explanation = &x
		}
		sum.DurationExplain = time.Since(start)
	}

	// Phase 3: Persist
	if opts.Sink != nil {
		start = time.Now()
		if err := ctx.Err(); err != nil {
			return nil, &PipelineError{Phase: "persist", Err: err}
		}
		n, err := opts.Sink.Persist(ctx, runID, rows)
		if err != nil {
			sum.DurationTotal = time.Since(totalStart)
			return &Report{Summary: sum, Predictions: rows}, &PipelineError{Phase: "persist", Err: err}
		}
		sum.AssessmentsStored = n
		sum.DurationPersist = time.Since(start)
	}

	sum.DurationTotal = time.Since(totalStart)
	log.Info().
		Int("claims_scored", sum.ClaimsScored).
		Int("fraud_predicted", sum.FraudPredicted).
		Float64("flagged_rate", sum.FlaggedRate).
		Int64("assessments_stored", sum.AssessmentsStored).
		Str("total_duration", sum.DurationTotal.String()).
		Msg("scoring pipeline complete")

	return &Report{Summary: sum, Predictions: rows}, nil
}
