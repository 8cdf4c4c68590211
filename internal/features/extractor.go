// Package features turns claims into fixed-schema numeric feature rows.
//
// An Extractor is bound to one entity store and graph. It precomputes the
// per-patient and per-provider aggregates and the category vocabularies once,
// so the feature schema is fixed for the lifetime of the Extractor and rows
// for any subset of claims line up column for column.
package features

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/claimrisk/internal/graph"
	"github.com/gyeh/claimrisk/internal/model"
	"github.com/gyeh/claimrisk/internal/store"
)

// DefaultAge is used when a patient's birth date is unknown.
const DefaultAge = 45.0

// NoPolicy is days_since_policy_start when the claim has no policy or the
// policy has no coverage start.
const NoPolicy = 999.0

const chunkSize = 256

// Options configures an Extractor.
type Options struct {
	// Now is the evaluation clock for patient ages. Zero means time.Now().
	Now time.Time
	// Workers bounds parallel row computation. Non-positive means GOMAXPROCS.
	Workers int
}

// Extractor computes feature rows for claims of one store snapshot.
type Extractor struct {
	store   *store.Store
	graph   *graph.Graph
	now     time.Time
	workers int
	log     zerolog.Logger

	schema      *Schema
	claimTypes  []string
	statuses    []string
	specialties []string

	patients  map[string]*patientAggregate
	providers map[string]*providerAggregate
}

// NewExtractor precomputes aggregates and the feature schema for s and g.
func NewExtractor(s *store.Store, g *graph.Graph, opts Options, log zerolog.Logger) *Extractor {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	e := &Extractor{
		store:     s,
		graph:     g,
		now:       opts.Now,
		workers:   opts.Workers,
		log:       log,
		patients:  make(map[string]*patientAggregate),
		providers: make(map[string]*providerAggregate),
	}

	start := time.Now()
	var types, statuses, specialties []string
	for _, c := range s.Claims() {
		types = append(types, c.Type)
		statuses = append(statuses, c.Status)
	}
	for _, p := range s.Providers() {
		if p.Specialty != nil {
			specialties = append(specialties, *p.Specialty)
		}
	}
	e.claimTypes = sortedValues(types)
	e.statuses = sortedValues(statuses)
	e.specialties = sortedValues(specialties)

	for _, id := range s.PatientIDsWithClaims() {
		e.patients[id] = buildPatientAggregate(s.ClaimsByPatient(id))
	}
	for _, id := range s.ProviderIDsWithClaims() {
		e.providers[id] = buildProviderAggregate(s.ClaimsByProvider(id))
	}

	// Names are unique by construction: the prefixes keep one-hot columns
	// apart from the fixed ones.
	e.schema, _ = NewSchema(e.columnNames())

	log.Debug().
		Int("features", e.schema.Len()).
		Str("schema_version", e.schema.Version()).
		Dur("duration", time.Since(start)).
		Msg("feature extractor ready")
	return e
}

// Schema returns the feature schema of this extractor.
func (e *Extractor) Schema() *Schema { return e.schema }

func (e *Extractor) columnNames() []string {
	names := []string{"claim_amount", "claim_amount_log"}
	for _, v := range e.claimTypes {
		names = append(names, "claim_type_"+v)
	}
	for _, v := range e.statuses {
		names = append(names, "status_"+v)
	}
	names = append(names,
		"is_emergency", "is_elective", "length_of_stay", "has_length_of_stay",

		"patient_num_claims", "patient_total_claimed", "patient_avg_claim",
		"patient_max_claim", "patient_min_claim", "patient_std_claim",
		"patient_num_providers", "patient_age", "patient_is_male",

		"provider_num_claims", "provider_total_billed", "provider_avg_claim",
		"provider_max_claim", "provider_std_claim", "provider_num_patients",
		"provider_fraud_rate",
	)
	for _, v := range e.specialties {
		names = append(names, "specialty_"+v)
	}
	names = append(names,
		"service_day_of_week", "is_weekend", "service_month", "service_hour", "is_night",
		"days_since_first_claim", "patient_claim_frequency", "days_since_policy_start",

		"patient_degree", "provider_degree", "patient_betweenness", "provider_betweenness",
		"patient_clustering", "provider_clustering", "shared_neighbors", "graph_distance",
	)
	return names
}

// eligible reports whether a claim's patient and provider are both known.
func (e *Extractor) eligible(c *model.Claim) (*model.Patient, *model.Provider, bool) {
	p, err := e.store.GetPatient(c.PatientID)
	if err != nil {
		return nil, nil, false
	}
	d, err := e.store.GetProvider(c.ProviderID)
	if err != nil {
		return nil, nil, false
	}
	return p, d, true
}

// Extract computes rows for the given claim ids; nil means every claim.
// Unknown ids and claims whose patient or provider is missing are skipped.
// Rows are in store order regardless of the order of ids.
func (e *Extractor) Extract(ctx context.Context, ids []string) (*Matrix, error) {
	var claims []*model.Claim
	if ids == nil {
		claims = e.store.Claims()
	} else {
		want := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			want[id] = struct{}{}
		}
		for _, c := range e.store.Claims() {
			if _, ok := want[c.ID]; ok {
				claims = append(claims, c)
			}
		}
	}
	return e.extractClaims(ctx, claims)
}

func (e *Extractor) extractClaims(ctx context.Context, claims []*model.Claim) (*Matrix, error) {
	type job struct {
		claim    *model.Claim
		patient  *model.Patient
		provider *model.Provider
	}
	jobs := make([]job, 0, len(claims))
	skipped := 0
	for _, c := range claims {
		p, d, ok := e.eligible(c)
		if !ok {
			skipped++
			continue
		}
		jobs = append(jobs, job{c, p, d})
	}
	if skipped > 0 {
		e.log.Debug().Int("claims", skipped).Msg("skipped claims with unknown patient or provider")
	}

	rows := make([]Row, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for lo := 0; lo < len(jobs); lo += chunkSize {
		hi := min(lo+chunkSize, len(jobs))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				j := jobs[i]
				rows[i] = Row{ClaimID: j.claim.ID, Values: e.row(j.claim, j.patient, j.provider)}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Matrix{Schema: e.schema, Rows: rows}, nil
}

// PrepareTraining extracts every labeled claim and returns the matrix with
// the matching labels. Unlabeled claims are excluded.
func (e *Extractor) PrepareTraining(ctx context.Context) (*Matrix, []bool, error) {
	claims := e.store.Scan(store.LabeledOnly())
	var eligible []*model.Claim
	for _, c := range claims {
		if _, _, ok := e.eligible(c); ok {
			eligible = append(eligible, c)
		}
	}
	m, err := e.extractClaims(ctx, eligible)
	if err != nil {
		return nil, nil, err
	}
	labels := make([]bool, len(eligible))
	for i, c := range eligible {
		labels[i] = c.Fraudulent()
	}
	return m, labels, nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// row computes the feature values for one claim in schema order.
func (e *Extractor) row(c *model.Claim, p *model.Patient, d *model.Provider) []float64 {
	v := make([]float64, 0, e.schema.Len())

	// Claim.
	v = append(v, c.ClaimAmount, math.Log1p(c.ClaimAmount))
	for _, t := range e.claimTypes {
		v = append(v, b2f(c.Type == t))
	}
	for _, s := range e.statuses {
		v = append(v, b2f(c.Status == s))
	}
	los := 0.0
	if c.LengthOfStay != nil {
		los = *c.LengthOfStay
	}
	v = append(v,
		b2f(c.AdmissionType == "Emergency"),
		b2f(c.AdmissionType == "Elective"),
		los,
		b2f(los > 0),
	)

	// Patient.
	pa := e.patients[c.PatientID]
	age := DefaultAge
	if p.BirthDate != nil {
		age = e.now.Sub(*p.BirthDate).Hours() / 24 / 365.25
	}
	v = append(v,
		float64(pa.amounts.count), pa.amounts.sum, pa.amounts.mean,
		pa.amounts.max, pa.amounts.min, pa.amounts.std,
		float64(pa.numProviders), age, b2f(p.Gender == "M"),
	)

	// Provider.
	da := e.providers[c.ProviderID]
	v = append(v,
		float64(da.amounts.count), da.amounts.sum, da.amounts.mean,
		da.amounts.max, da.amounts.std, float64(da.numPatients), da.fraudRate,
	)
	for _, s := range e.specialties {
		v = append(v, b2f(d.Specialty != nil && *d.Specialty == s))
	}

	// Temporal.
	v = append(v, e.temporal(c, pa)...)

	// Graph.
	pn, dn := graph.Patient(c.PatientID), graph.Provider(c.ProviderID)
	v = append(v,
		float64(e.graph.Degree(pn)), float64(e.graph.Degree(dn)),
		e.graph.Betweenness(pn), e.graph.Betweenness(dn),
		e.graph.ClusteringCoefficient(pn), e.graph.ClusteringCoefficient(dn),
		float64(e.graph.SharedNeighbors(pn, dn)), float64(e.graph.PathDistance(pn, dn)),
	)

	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			v[i] = 0
		}
	}
	return v
}

func (e *Extractor) temporal(c *model.Claim, pa *patientAggregate) []float64 {
	policyDays := NoPolicy
	if c.PolicyID != "" && c.ServiceDate != nil {
		if pol, err := e.store.GetPolicy(c.PolicyID); err == nil && pol.CoverageStart != nil {
			policyDays = float64(daysBetween(*pol.CoverageStart, *c.ServiceDate))
		}
	}

	if c.ServiceDate == nil {
		return []float64{0, 0, 0, 0, 0, 0, pa.frequency, policyDays}
	}
	sd := *c.ServiceDate
	dow := (int(sd.Weekday()) + 6) % 7 // Monday = 0
	hour := sd.Hour()
	sinceFirst := 0.0
	if pa.firstService != nil {
		sinceFirst = float64(daysBetween(*pa.firstService, sd))
	}
	return []float64{
		float64(dow),
		b2f(dow >= 5),
		float64(sd.Month()),
		float64(hour),
		b2f(hour < 6 || hour > 20),
		sinceFirst,
		pa.frequency,
		policyDays,
	}
}
