package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimrisk/internal/db"
	"github.com/gyeh/claimrisk/internal/risk"
	embedsql "github.com/gyeh/claimrisk/internal/sql"
)

const copyBuffer = 1024

var assessmentColumns = []string{
	"run_id", "claim_id", "model_id", "fraud_probability", "predicted_fraud",
	"risk_level", "confidence", "risk_factors", "summary", "recommendation", "scored_at",
}

// assessmentRow is one claimrisk.risk_assessments row.
type assessmentRow struct {
	runID          uuid.UUID
	claimID        string
	modelID        uuid.UUID
	probability    float64
	predicted      bool
	level          string
	confidence     float64
	factors        []byte
	summary        *string
	recommendation *string
	scoredAt       time.Time
}

func (r assessmentRow) CopyValues() []any {
	return []any{
		r.runID, r.claimID, r.modelID, r.probability, r.predicted,
		r.level, r.confidence, r.factors, r.summary, r.recommendation, r.scoredAt,
	}
}

func toAssessmentRow(runID uuid.UUID, s *Scored, at time.Time) (assessmentRow, error) {
	factors := s.Factors
	if factors == nil {
		factors = []risk.Factor{}
	}
	raw, err := json.Marshal(factors)
	if err != nil {
		return assessmentRow{}, err
	}
	row := assessmentRow{
		runID:       runID,
		claimID:     s.ClaimID,
		modelID:     s.ModelID,
		probability: s.Probability,
		predicted:   s.Predicted,
		level:       string(s.Level),
		confidence:  s.Confidence,
		factors:     raw,
		scoredAt:    at,
	}
	if s.Explanation != nil {
		row.summary = &s.Explanation.Summary
		row.recommendation = &s.Explanation.Recommendation
	}
	return row, nil
}

// PGSink writes assessments to claimrisk.risk_assessments and records the
// run in claimrisk.scoring_runs.
type PGSink struct {
	Pool *pgxpool.Pool
	Log  zerolog.Logger
}

// Persist registers the run, COPY-loads rows via a channel-backed
// CopyFromSource and marks the run completed, or failed on error.
func (s PGSink) Persist(ctx context.Context, runID uuid.UUID, rows []Scored) (int64, error) {
	start := time.Now()
	var modelID uuid.UUID
	if len(rows) > 0 {
		modelID = rows[0].ModelID
	}
	if _, err := s.Pool.Exec(ctx, embedsql.InsertScoringRun, runID, modelID); err != nil {
		return 0, fmt.Errorf("register scoring run: %w", err)
	}

	at := time.Now().UTC()
	prepared := make([]assessmentRow, len(rows))
	for i := range rows {
		row, err := toAssessmentRow(runID, &rows[i], at)
		if err != nil {
			s.finishFailed(ctx, runID)
			return 0, fmt.Errorf("claim %s: %w", rows[i].ClaimID, err)
		}
		prepared[i] = row
	}

	copyCtx, cancel := context.WithCancel(ctx)
	ch := make(chan assessmentRow, copyBuffer)
	errCh := make(chan error, 1)

	// Producer goroutine: push prepared rows to the channel
	go func() {
		defer close(ch)
		for _, row := range prepared {
			select {
			case ch <- row:
			case <-copyCtx.Done():
				errCh <- copyCtx.Err()
				return
			}
		}
		errCh <- nil
	}()

	// Consumer: COPY from channel into the assessments table
	source := db.NewChannelSource(ch)
	n, err := s.Pool.CopyFrom(ctx,
		pgx.Identifier{"claimrisk", "risk_assessments"},
		assessmentColumns,
		source,
	)
	cancel()
	prodErr := <-errCh
	if err == nil && prodErr != nil && !errors.Is(prodErr, context.Canceled) {
		err = prodErr
	}
	if err != nil {
		// The COPY is a single statement, so a failed run leaves no rows.
		s.finishFailed(ctx, runID)
		return 0, fmt.Errorf("copy assessments: %w", err)
	}

	if _, err := s.Pool.Exec(ctx, embedsql.FinishScoringRun, runID, "completed", n); err != nil {
		return n, fmt.Errorf("finish scoring run: %w", err)
	}
	dur := time.Since(start)
	s.Log.Info().
		Int64("rows", n).
		Str("duration", dur.String()).
		Float64("rows_per_sec", float64(n)/dur.Seconds()).
		Msg("assessments persisted")
	return n, nil
}

func (s PGSink) finishFailed(ctx context.Context, runID uuid.UUID) {
	if _, err := s.Pool.Exec(context.WithoutCancel(ctx), embedsql.FinishScoringRun, runID, "failed", 0); err != nil {
		s.Log.Warn().Err(err).Msg("failed to mark scoring run failed")
	}
}
