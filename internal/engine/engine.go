// Package engine owns the current entity snapshot and model artifact and
// runs extraction, scoring, explanation and training against them.
//
// Snapshots and artifacts are swapped atomically: readers always see a
// complete store, graph and extractor, and keep scoring with the previous
// artifact while a training run is in flight.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/gyeh/claimrisk/internal/artifact"
	"github.com/gyeh/claimrisk/internal/explain"
	"github.com/gyeh/claimrisk/internal/features"
	"github.com/gyeh/claimrisk/internal/graph"
	"github.com/gyeh/claimrisk/internal/ml"
	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/risk"
	"github.com/gyeh/claimrisk/internal/store"
)

var (
	// ErrTrainingInProgress is returned by Train while another run holds
	// the training lock.
	ErrTrainingInProgress = errors.New("training already in progress")
	// ErrNoData is returned when no entity snapshot has been loaded.
	ErrNoData = errors.New("no claim data loaded")
)

// Options configures an Engine.
type Options struct {
	Graph    graph.Options
	Features features.Options

	// ModelName names artifacts produced by Train.
	ModelName string
	// TopFeatures is how many importance-ranked features risk factors are
	// drawn from.
	TopFeatures int
	// BatchSize is the number of claims extracted and scored per batch.
	BatchSize int
	// CacheSize bounds the assessment cache; 0 disables it.
	CacheSize int
	// Artifacts, when set, receives every newly trained artifact before it
	// is swapped in.
	Artifacts artifact.Store
}

// DefaultOptions returns the stock engine settings.
func DefaultOptions() Options {
	return Options{
		Graph:       graph.Options{BetweennessCeiling: graph.DefaultBetweennessCeiling},
		ModelName:   "fraud_detector",
		TopFeatures: risk.MaxRankedFeatures,
		BatchSize:   1000,
		CacheSize:   10000,
	}
}

// Snapshot is an immutable view of loaded entities and everything derived
// from them.
type Snapshot struct {
	ID        uuid.UUID
	Store     *store.Store
	Graph     *graph.Graph
	Extractor *features.Extractor
	Load      *model.LoadSummary
	BuiltAt   time.Time
}

type cacheKey struct {
	model    uuid.UUID
	snapshot uuid.UUID
	claim    string
}

// Engine is safe for concurrent use.
type Engine struct {
	opts    Options
	log     zerolog.Logger
	metrics *Metrics

	snap     atomic.Pointer[Snapshot]
	model    atomic.Pointer[artifact.Artifact]
	train    sync.Mutex
	training atomic.Bool

	cache *lru.Cache[cacheKey, risk.Assessment]
}

// New creates an engine with no data and no model.
func New(opts Options, log zerolog.Logger) (*Engine, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.TopFeatures <= 0 {
		opts.TopFeatures = risk.MaxRankedFeatures
	}
	if opts.ModelName == "" {
		opts.ModelName = DefaultOptions().ModelName
	}
	e := &Engine{opts: opts, log: log, metrics: newMetrics()}
	if opts.CacheSize > 0 {
		c, err := lru.New[cacheKey, risk.Assessment](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create assessment cache: %w", err)
		}
		e.cache = c
	}
	return e, nil
}

// Metrics returns the engine's collectors.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Rebuild derives a graph and extractor from s and swaps the new snapshot
// in. Concurrent readers keep the snapshot they already hold.
func (e *Engine) Rebuild(s *store.Store, load *model.LoadSummary) *Snapshot {
	start := time.Now()
	g := graph.Build(s, e.opts.Graph)
	gm := g.Metrics()
	snap := &Snapshot{
		ID:        uuid.New(),
		Store:     s,
		Graph:     g,
		Extractor: features.NewExtractor(s, g, e.opts.Features, e.log),
		Load:      load,
		BuiltAt:   time.Now().UTC(),
	}
	e.snap.Store(snap)

	e.metrics.rebuilds.Inc()
	e.metrics.storeClaims.Set(float64(s.NumClaims()))
	e.metrics.graphNodes.Set(float64(gm.Nodes))
	e.log.Info().
		Str("snapshot", snap.ID.String()).
		Int("claims", s.NumClaims()).
		Int("nodes", gm.Nodes).
		Int("edges", gm.Edges).
		Bool("betweenness_skipped", gm.BetweennessSkipped).
		Int("features", snap.Extractor.Schema().Len()).
		Dur("duration", time.Since(start)).
		Msg("snapshot ready")
	return snap
}

// Snapshot returns the current snapshot, or nil before the first Rebuild.
func (e *Engine) Snapshot() *Snapshot { return e.snap.Load() }

func (e *Engine) current() (*Snapshot, error) {
	s := e.snap.Load()
	if s == nil {
		return nil, ErrNoData
	}
	return s, nil
}

// SetArtifact swaps in a (which may be nil to unload).
func (e *Engine) SetArtifact(a *artifact.Artifact) {
	e.model.Store(a)
	if a.Ready() {
		e.metrics.modelReady.Set(1)
	} else {
		e.metrics.modelReady.Set(0)
	}
}

// Artifact returns the current artifact, possibly nil.
func (e *Engine) Artifact() *artifact.Artifact { return e.model.Load() }

// LoadArtifact loads the configured model from the artifact store and swaps
// it in.
func (e *Engine) LoadArtifact(ctx context.Context) error {
	if e.opts.Artifacts == nil {
		return fmt.Errorf("%w: no artifact store configured", artifact.ErrModelUnavailable)
	}
	a, err := e.opts.Artifacts.Load(ctx, e.opts.ModelName)
	if err != nil {
		return err
	}
	e.SetArtifact(a)
	e.log.Info().
		Str("model", a.Name).
		Str("model_id", a.ID.String()).
		Str("schema_version", a.Schema.Version()).
		Time("trained_at", a.Report.TrainedAt).
		Msg("model loaded")
	if snap := e.snap.Load(); snap != nil && !snap.Extractor.Schema().Equal(a.Schema) {
		e.log.Warn().
			Str("data_schema", snap.Extractor.Schema().Version()).
			Str("model_schema", a.Schema.Version()).
			Msg("feature schema differs from model; rows will be aligned")
	}
	return nil
}

// Request selects claims. Nil ClaimIDs means every claim; Limit > 0 keeps
// the first Limit scoreable claims in store order, so claims with an
// unknown patient or provider never count toward it.
type Request struct {
	ClaimIDs []string
	Limit    int
}

// claimIDs resolves req against s: unknown ids and claims that cannot be
// scored are dropped, duplicates collapse and the result follows store order.
func (s *Snapshot) claimIDs(req Request) []string {
	var ids []string
	if req.ClaimIDs == nil {
		claims := s.Store.Claims()
		ids = make([]string, 0, len(claims))
		for _, c := range claims {
			if s.scoreable(c) {
				ids = append(ids, c.ID)
			}
		}
	} else {
		seen := make(map[string]struct{}, len(req.ClaimIDs))
		ids = make([]string, 0, len(req.ClaimIDs))
		for _, id := range req.ClaimIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			c, err := s.Store.GetClaim(id)
			if err != nil || !s.scoreable(c) {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return s.Store.ClaimIndex(ids[i]) < s.Store.ClaimIndex(ids[j]) })
	}
	if req.Limit > 0 && len(ids) > req.Limit {
		ids = ids[:req.Limit]
	}
	return ids
}

// scoreable reports whether the claim's patient and provider are loaded.
func (s *Snapshot) scoreable(c *model.Claim) bool {
	if _, err := s.Store.GetPatient(c.PatientID); err != nil {
		return false
	}
	_, err := s.Store.GetProvider(c.ProviderID)
	return err == nil
}

// ClaimQuery selects a window of raw claims. Empty ID fields and zero times
// do not filter.
type ClaimQuery struct {
	Limit      int
	Offset     int
	FraudOnly  bool
	PatientID  string
	ProviderID string
	From, To   time.Time
}

// ListClaims returns one page of claims matching q, in store order.
func (e *Engine) ListClaims(q ClaimQuery) (store.Page, error) {
	snap, err := e.current()
	if err != nil {
		return store.Page{}, err
	}
	var preds []store.Predicate
	if q.FraudOnly {
		preds = append(preds, store.FraudOnly())
	}
	if q.PatientID != "" {
		preds = append(preds, store.ByPatient(q.PatientID))
	}
	if q.ProviderID != "" {
		preds = append(preds, store.ByProvider(q.ProviderID))
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		to := q.To
		if to.IsZero() {
			to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		}
		preds = append(preds, store.ServiceBetween(q.From, to))
	}
	return snap.Store.Page(q.Limit, q.Offset, preds...), nil
}

// ExtractFeatures returns unscaled feature rows for the requested claims.
func (e *Engine) ExtractFeatures(ctx context.Context, req Request) (*features.Matrix, error) {
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snap.Extractor.Extract(ctx, snap.claimIDs(req))
}

// Score returns one enriched assessment per requested claim that has a
// known patient and provider, in store order. Claims are processed in
// batches; cancellation is checked before each batch.
func (e *Engine) Score(ctx context.Context, req Request) ([]risk.Assessment, error) {
	art := e.model.Load()
	if !art.Ready() {
		return nil, artifact.ErrModelUnavailable
	}
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	top, err := art.FeatureImportance(e.opts.TopFeatures)
	if err != nil {
		return nil, err
	}
	ranked := make([]string, len(top))
	for i, imp := range top {
		ranked[i] = imp.Feature
	}

	ids := snap.claimIDs(req)
	out := make([]risk.Assessment, 0, len(ids))
	for lo := 0; lo < len(ids); lo += e.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+e.opts.BatchSize, len(ids))
		batch, err := e.scoreBatch(ctx, snap, art, ranked, ids[lo:hi])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *Engine) scoreBatch(ctx context.Context, snap *Snapshot, art *artifact.Artifact, ranked, ids []string) ([]risk.Assessment, error) {
	start := time.Now()
	found := make(map[string]risk.Assessment, len(ids))
	miss := make([]string, 0, len(ids))
	for _, id := range ids {
		if a, ok := e.cached(art, snap, id); ok {
			found[id] = a
			continue
		}
		miss = append(miss, id)
	}

	if len(miss) > 0 {
		m, err := snap.Extractor.Extract(ctx, miss)
		if err != nil {
			return nil, err
		}
		aligned, err := art.Align(m)
		if err != nil {
			return nil, err
		}
		proba, err := art.PredictProba(aligned)
		if err != nil {
			return nil, err
		}
		for _, a := range risk.Assess(aligned, proba, ranked) {
			a.ModelID = art.ID
			if c, err := snap.Store.GetClaim(a.ClaimID); err == nil {
				a.Enrich(c)
			}
			found[a.ClaimID] = a
			if e.cache != nil {
				e.cache.Add(cacheKey{art.ID, snap.ID, a.ClaimID}, a)
			}
		}
	}

	out := make([]risk.Assessment, 0, len(found))
	for _, id := range ids {
		if a, ok := found[id]; ok {
			out = append(out, a)
			e.metrics.claimsScored.WithLabelValues(string(a.Level)).Inc()
		}
	}
	e.metrics.batchDuration.Observe(time.Since(start).Seconds())
	return out, nil
}

func (e *Engine) cached(art *artifact.Artifact, snap *Snapshot, id string) (risk.Assessment, bool) {
	if e.cache == nil {
		return risk.Assessment{}, false
	}
	a, ok := e.cache.Get(cacheKey{art.ID, snap.ID, id})
	if ok {
		e.metrics.cacheAccess.WithLabelValues("hit").Inc()
	} else {
		e.metrics.cacheAccess.WithLabelValues("miss").Inc()
	}
	return a, ok
}

// Explain derives the explanation for an assessment. It fails fast when no
// model is loaded.
func (e *Engine) Explain(a risk.Assessment) (explain.Explanation, error) {
	if !e.model.Load().Ready() {
		return explain.Explanation{}, artifact.ErrModelUnavailable
	}
	return explain.Explain(a), nil
}

// TrainRequest overrides training settings. Nil Params uses
// ml.DefaultParams with Seed.
type TrainRequest struct {
	UseResampling bool
	TestFraction  float64
	Seed          int64
	Params        *ml.Params
}

// Train fits a new model on every labeled claim of the current snapshot,
// saves it when an artifact store is configured and swaps it in. Only one
// run may be in flight; a concurrent call returns ErrTrainingInProgress
// without waiting. Scoring continues on the previous artifact meanwhile.
func (e *Engine) Train(ctx context.Context, req TrainRequest) (*artifact.Artifact, error) {
	if !e.train.TryLock() {
		return nil, ErrTrainingInProgress
	}
	defer e.train.Unlock()
	e.training.Store(true)
	defer e.training.Store(false)

	a, err := e.runTraining(ctx, req)
	if err != nil {
		e.metrics.trainingRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	e.metrics.trainingRuns.WithLabelValues("succeeded").Inc()
	e.metrics.trainDuration.Observe(a.Report.Duration)
	return a, nil
}

func (e *Engine) runTraining(ctx context.Context, req TrainRequest) (*artifact.Artifact, error) {
	snap, err := e.current()
	if err != nil {
		return nil, err
	}
	m, labels, err := snap.Extractor.PrepareTraining(ctx)
	if err != nil {
		return nil, err
	}
	e.log.Info().
		Int("samples", m.Len()).
		Int("features", m.Schema.Len()).
		Str("schema_version", m.Schema.Version()).
		Msg("training data prepared")

	params := ml.DefaultParams()
	if req.Params != nil {
		params = *req.Params
	}
	params.Seed = req.Seed
	res, err := ml.Train(ctx, m.Values(), labels, ml.TrainConfig{
		TestFraction:  req.TestFraction,
		Seed:          req.Seed,
		UseResampling: req.UseResampling,
		Trainer:       ml.GBMTrainer{Params: params},
	}, e.log)
	if err != nil {
		return nil, err
	}

	var fingerprint string
	if snap.Load != nil {
		fingerprint = snap.Load.Fingerprint
	}
	a, err := artifact.New(e.opts.ModelName, m.Schema, res, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ml.ErrTrainingFailure, err)
	}
	if e.opts.Artifacts != nil {
		if err := e.opts.Artifacts.Save(ctx, a); err != nil {
			return nil, err
		}
	}
	e.SetArtifact(a)
	if e.cache != nil {
		e.cache.Purge()
	}
	e.log.Info().
		Str("model", a.Name).
		Str("model_id", a.ID.String()).
		Msg("model swapped in")
	return a, nil
}

// Status describes model readiness.
type Status struct {
	State         string    `json:"status"` // "ready" or "not_ready"
	Training      bool      `json:"training"`
	ModelName     string    `json:"model_name,omitempty"`
	ModelID       string    `json:"model_id,omitempty"`
	SchemaVersion string    `json:"schema_version,omitempty"`
	NumFeatures   int       `json:"num_features,omitempty"`
	TrainedAt     time.Time `json:"trained_at,omitzero"`
}

// Ready reports whether the status is "ready".
func (s Status) Ready() bool { return s.State == "ready" }

// ModelStatus reports whether a model is loaded and whether training is
// running.
func (e *Engine) ModelStatus() Status {
	training := e.training.Load()
	a := e.model.Load()
	if !a.Ready() {
		return Status{State: "not_ready", Training: training}
	}
	return Status{
		State:         "ready",
		Training:      training,
		ModelName:     a.Name,
		ModelID:       a.ID.String(),
		SchemaVersion: a.Schema.Version(),
		NumFeatures:   a.Schema.Len(),
		TrainedAt:     a.Report.TrainedAt,
	}
}

// ModelInfo is the headline test performance of the loaded model.
type ModelInfo struct {
	TrainedAt    time.Time `json:"trained_at"`
	TestAccuracy float64   `json:"test_accuracy"`
	TestF1       float64   `json:"test_f1"`
	TestAUCROC   float64   `json:"test_auc_roc"`
}

// GraphInfo describes the patient-provider graph of the snapshot.
type GraphInfo struct {
	Nodes              int  `json:"nodes"`
	Edges              int  `json:"edges"`
	FraudEdges         int  `json:"fraud_edges"`
	BetweennessSkipped bool `json:"betweenness_skipped"`
}

// Statistics is claim fraud statistics plus graph shape and model info
// when loaded.
type Statistics struct {
	model.FraudStatistics
	Graph     GraphInfo  `json:"graph"`
	ModelInfo *ModelInfo `json:"model_info,omitempty"`
}

// Statistics summarizes fraud labels of the current snapshot.
func (e *Engine) Statistics() (Statistics, error) {
	snap, err := e.current()
	if err != nil {
		return Statistics{}, err
	}
	gm := snap.Graph.Metrics()
	st := Statistics{
		FraudStatistics: snap.Store.FraudStatistics(),
		Graph: GraphInfo{
			Nodes:              gm.Nodes,
			Edges:              gm.Edges,
			FraudEdges:         gm.FraudEdges,
			BetweennessSkipped: gm.BetweennessSkipped,
		},
	}
	if a := e.model.Load(); a.Ready() {
		st.ModelInfo = &ModelInfo{
			TrainedAt:    a.Report.TrainedAt,
			TestAccuracy: a.Report.Test.Accuracy,
			TestF1:       a.Report.Test.F1,
			TestAUCROC:   a.Report.Test.AUCROC,
		}
	}
	return st, nil
}

// ModelPerformance returns the training report of the loaded model.
func (e *Engine) ModelPerformance() (ml.Report, error) {
	a := e.model.Load()
	if !a.Ready() {
		return ml.Report{}, artifact.ErrModelUnavailable
	}
	return a.Report, nil
}

// FeatureImportance returns the topN most important features of the loaded
// model.
func (e *Engine) FeatureImportance(topN int) ([]artifact.Importance, error) {
	return e.model.Load().FeatureImportance(topN)
}
