package model

import "time"

// TableLoad captures row counts for one table of a dataset load.
type TableLoad struct {
	Table        string
	RowsRead     int64
	RowsLoaded   int64
	RowsRejected int64
}

// LoadSummary captures metrics from loading a dataset into an entity store.
type LoadSummary struct {
	Source      string
	Fingerprint string // SHA-256 over the loaded table files; empty for database sources
	Tables      []TableLoad
	Duration    time.Duration
}

// Rejected returns the total rejected rows across all tables.
func (s *LoadSummary) Rejected() int64 {
	var n int64
	for _, t := range s.Tables {
		n += t.RowsRejected
	}
	return n
}

// ScoreSummary captures metrics from a single scoring run.
type ScoreSummary struct {
	RunID             string         `json:"run_id"`
	ModelID           string         `json:"model_id"`
	ClaimsScored      int            `json:"total_analyzed"`
	FraudPredicted    int            `json:"fraud_detected"`
	FlaggedRate       float64        `json:"flagged_rate"`
	RiskLevelCounts   map[string]int `json:"risk_level_counts"`
	AssessmentsStored int64          `json:"assessments_stored"`
	DurationScore     time.Duration  `json:"-"`
	DurationExplain   time.Duration  `json:"-"`
	DurationPersist   time.Duration  `json:"-"`
	DurationTotal     time.Duration  `json:"-"`
}
