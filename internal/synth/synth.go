// Package synth generates labeled synthetic claims datasets with injected
// fraud patterns, for fixtures and local experimentation.
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gyeh/claimrisk/internal/loader"
	"github.com/gyeh/claimrisk/internal/model"
)

// Options controls dataset size and shape. Zero values take defaults.
type Options struct {
	Patients  int
	Providers int
	Claims    int
	FraudRate float64 // share of claims generated from a fraud pattern
	Seed      uint64
	Start     time.Time
	End       time.Time
}

func (o *Options) defaults() {
	if o.Patients <= 0 {
		o.Patients = 200
	}
	if o.Providers <= 0 {
		o.Providers = 40
	}
	if o.Claims <= 0 {
		o.Claims = 2000
	}
	if o.FraudRate <= 0 {
		o.FraudRate = 0.1
	}
	if o.Start.IsZero() {
		o.Start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if o.End.IsZero() || !o.End.After(o.Start) {
		o.End = o.Start.AddDate(1, 0, 0)
	}
}

type specialty struct {
	name       string
	avgAmount  float64
	diagnoses  []string
	procedures []string
}

var specialties = []specialty{
	{"Family Medicine", 150, []string{"I10", "E11.9", "M54.5", "Z00.00"}, []string{"99213", "99214", "85025"}},
	{"Cardiology", 450, []string{"I25.10", "I48.91", "I50.9"}, []string{"93000", "93306", "93458"}},
	{"Orthopedics", 600, []string{"M17.11", "S82.001A", "M54.16"}, []string{"27447", "29881", "73721"}},
	{"Internal Medicine", 200, []string{"E78.5", "I10", "J44.9"}, []string{"99214", "99215", "80053"}},
	{"Emergency Medicine", 900, []string{"R07.9", "S06.0X0A", "R10.9"}, []string{"99284", "99285", "71046"}},
	{"Radiology", 350, []string{"R91.8", "M79.3"}, []string{"70553", "74177", "71260"}},
}

var (
	claimTypes     = []string{"inpatient", "outpatient", "pharmacy", "emergency"}
	claimStatuses  = []string{"Approved", "Approved", "Approved", "Pending", "Denied"}
	admissionTypes = []string{"Elective", "Urgent", "Emergency"}
	providerTypes  = []string{"Physician", "Clinic", "Hospital", "Laboratory"}
	policyTypes    = []string{"HMO", "PPO", "EPO", "POS"}
	states         = []string{"NY", "NJ", "CA", "TX", "FL"}
	streets        = []string{"Main St", "Oak Ave", "Pine Rd", "Maple Dr", "Cedar Ln", "Elm St"}
)

// fraudPattern mutates a normal claim into a fraudulent one.
type fraudPattern struct {
	name  string
	apply func(g *generator, c *model.ClaimRow) bool
}

var patterns = []fraudPattern{
	{"upcoding", (*generator).upcoding},
	{"phantom_billing", (*generator).phantomBilling},
	{"double_billing", (*generator).doubleBilling},
	{"kickback_scheme", (*generator).kickback},
	{"identity_theft", (*generator).identityTheft},
	{"excessive_services", (*generator).excessiveServices},
	{"los_inflation", (*generator).losInflation},
}

type generator struct {
	opts      Options
	rng       *rand.Rand
	ds        *loader.Dataset
	provSpec  map[string]specialty
	bad       []int // indexes of providers that carry most fraud
	deceased  []int
	deathDate map[string]time.Time
	policyOf  map[string]int
}

// Generate builds a dataset. The same Options always yield the same dataset.
func Generate(opts Options) *loader.Dataset {
	opts.defaults()
	g := &generator{
		opts:      opts,
		rng:       rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		ds:        &loader.Dataset{},
		provSpec:  make(map[string]specialty),
		deathDate: make(map[string]time.Time),
		policyOf:  make(map[string]int),
	}
	g.patients()
	g.providers()
	g.policies()
	g.claims()
	return g.ds
}

func (g *generator) pick(xs []string) string { return xs[g.rng.IntN(len(xs))] }

func (g *generator) dateBetween(from, to time.Time) time.Time {
	span := int(to.Sub(from).Hours() / 24)
	if span <= 0 {
		return from
	}
	return from.AddDate(0, 0, g.rng.IntN(span))
}

func strp(s string) *string   { return &s }
func f64p(v float64) *float64 { return &v }
func boolp(v bool) *bool      { return &v }
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (g *generator) patients() {
	// A handful of addresses are shared by many patients so that address
	// clustering shows up in the data.
	shared := make([]string, 3)
	for i := range shared {
		shared[i] = fmt.Sprintf("%d %s", 100+g.rng.IntN(900), g.pick(streets))
	}
	for i := 0; i < g.opts.Patients; i++ {
		id := fmt.Sprintf("PAT%06d", i+1)
		dob := g.dateBetween(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))
		addr := fmt.Sprintf("%d %s", 100+g.rng.IntN(9900), g.pick(streets))
		if g.rng.Float64() < 0.05 {
			addr = shared[g.rng.IntN(len(shared))]
		}
		gender := "F"
		if g.rng.IntN(2) == 0 {
			gender = "M"
		}
		row := model.PatientRow{
			PatientID:   id,
			FirstName:   strp(fmt.Sprintf("First%d", i+1)),
			LastName:    strp(fmt.Sprintf("Last%d", i+1)),
			DateOfBirth: strp(dob.Format("2006-01-02")),
			Gender:      strp(gender),
			Address:     strp(addr),
			City:        strp("Springfield"),
			State:       strp(g.pick(states)),
			ZipCode:     strp(fmt.Sprintf("%05d", 10000+g.rng.IntN(89999))),
		}
		if g.rng.Float64() < 0.03 {
			death := g.dateBetween(g.opts.Start.AddDate(-1, 0, 0), g.opts.Start)
			row.IsDeceased = true
			row.DateOfDeath = strp(death.Format("2006-01-02"))
			g.deceased = append(g.deceased, i)
			g.deathDate[id] = death
		}
		g.ds.Patients = append(g.ds.Patients, row)
	}
}

func (g *generator) providers() {
	for i := 0; i < g.opts.Providers; i++ {
		id := fmt.Sprintf("PRV%05d", i+1)
		sp := specialties[g.rng.IntN(len(specialties))]
		g.provSpec[id] = sp
		years := int32(1 + g.rng.IntN(35))
		bad := g.rng.Float64() < 0.1
		row := model.ProviderRow{
			ProviderID:      id,
			ProviderName:    strp(fmt.Sprintf("Provider %d", i+1)),
			ProviderType:    strp(g.pick(providerTypes)),
			Specialty:       strp(sp.name),
			State:           strp(g.pick(states)),
			YearsInPractice: &years,
			IsInNetwork:     g.rng.Float64() < 0.85,
			FraudHistory:    bad,
		}
		if bad {
			g.bad = append(g.bad, i)
		}
		g.ds.Providers = append(g.ds.Providers, row)
	}
	if len(g.bad) == 0 && g.opts.Providers > 0 {
		g.bad = []int{0}
		g.ds.Providers[0].FraudHistory = true
	}
}

func (g *generator) policies() {
	for i, p := range g.ds.Patients {
		start := g.dateBetween(g.opts.Start.AddDate(-2, 0, 0), g.opts.Start)
		g.policyOf[p.PatientID] = i
		g.ds.Policies = append(g.ds.Policies, model.PolicyRow{
			PolicyID:      fmt.Sprintf("POL%07d", i+1),
			PatientID:     p.PatientID,
			PolicyType:    strp(g.pick(policyTypes)),
			CoverageStart: strp(start.Format("2006-01-02")),
			CoverageEnd:   strp(start.AddDate(3, 0, 0).Format("2006-01-02")),
			Status:        strp("Active"),
		})
	}
}

func (g *generator) normalClaim(n int) model.ClaimRow {
	pat := g.ds.Patients[g.rng.IntN(len(g.ds.Patients))]
	prov := g.ds.Providers[g.rng.IntN(len(g.ds.Providers))]
	return g.claimFor(n, pat.PatientID, prov.ProviderID)
}

func (g *generator) claimFor(n int, patientID, providerID string) model.ClaimRow {
	sp := g.provSpec[providerID]
	service := g.dateBetween(g.opts.Start, g.opts.End).Add(time.Duration(8+g.rng.IntN(10)) * time.Hour)
	submitted := service.AddDate(0, 0, 1+g.rng.IntN(30))
	amount := round2(sp.avgAmount * (0.5 + g.rng.Float64()))
	allowed := round2(amount * (0.7 + 0.25*g.rng.Float64()))
	paid := round2(allowed * (0.8 + 0.2*g.rng.Float64()))
	policy := g.ds.Policies[g.policyOf[patientID]].PolicyID
	ct := g.pick(claimTypes)
	row := model.ClaimRow{
		ClaimID:               fmt.Sprintf("CLM%07d", n+1),
		PatientID:             patientID,
		ProviderID:            providerID,
		PolicyID:              strp(policy),
		SubmissionDate:        strp(submitted.Format("2006-01-02")),
		ServiceDate:           strp(service.Format("2006-01-02T15:04:05")),
		DiagnosisCode:         strp(g.pick(sp.diagnoses)),
		ProcedureCode:         strp(g.pick(sp.procedures)),
		ClaimAmount:           amount,
		AllowedAmount:         f64p(allowed),
		PaidAmount:            f64p(paid),
		PatientResponsibility: f64p(round2(amount - paid)),
		ClaimStatus:           strp(g.pick(claimStatuses)),
		ClaimType:             strp(ct),
		IsFraudulent:          boolp(false),
	}
	if ct == "inpatient" {
		row.AdmissionType = strp(g.pick(admissionTypes))
		row.LengthOfStay = f64p(float64(1 + g.rng.IntN(5)))
	} else if ct == "emergency" {
		row.AdmissionType = strp("Emergency")
	}
	return row
}

func (g *generator) badProvider() string {
	return g.ds.Providers[g.bad[g.rng.IntN(len(g.bad))]].ProviderID
}

func (g *generator) upcoding(c *model.ClaimRow) bool {
	c.DiagnosisCode = strp("Z00.00")
	c.ProcedureCode = strp("99285")
	c.ClaimAmount = round2(c.ClaimAmount * (3 + 2*g.rng.Float64()))
	return true
}

func (g *generator) phantomBilling(c *model.ClaimRow) bool {
	if len(g.deceased) == 0 {
		return false
	}
	pat := g.ds.Patients[g.deceased[g.rng.IntN(len(g.deceased))]]
	service := g.deathDate[pat.PatientID].AddDate(0, 0, 10+g.rng.IntN(300))
	c.PatientID = pat.PatientID
	c.PolicyID = strp(g.ds.Policies[g.policyOf[pat.PatientID]].PolicyID)
	c.ServiceDate = strp(service.Format("2006-01-02T15:04:05"))
	return true
}

func (g *generator) doubleBilling(c *model.ClaimRow) bool {
	if len(g.ds.Claims) == 0 {
		return false
	}
	orig := g.ds.Claims[g.rng.IntN(len(g.ds.Claims))]
	id := c.ClaimID
	*c = orig
	c.ClaimID = id
	c.ClaimAmount = round2(orig.ClaimAmount * (0.95 + 0.1*g.rng.Float64()))
	return true
}

func (g *generator) kickback(c *model.ClaimRow) bool {
	c.ClaimAmount = round2(c.ClaimAmount * (1.5 + g.rng.Float64()))
	// Weekend night service.
	d := g.dateBetween(g.opts.Start, g.opts.End)
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, 1)
	}
	c.ServiceDate = strp(d.Add(22 * time.Hour).Format("2006-01-02T15:04:05"))
	return true
}

func (g *generator) identityTheft(c *model.ClaimRow) bool {
	pol := &g.ds.Policies[g.policyOf[c.PatientID]]
	svc, err := time.Parse("2006-01-02T15:04:05", *c.ServiceDate)
	if err != nil {
		return false
	}
	pol.CoverageStart = strp(svc.AddDate(0, 0, -(1 + g.rng.IntN(20))).Format("2006-01-02"))
	c.ClaimAmount = round2(c.ClaimAmount * 2)
	return true
}

func (g *generator) excessiveServices(c *model.ClaimRow) bool {
	c.ClaimAmount = round2(c.ClaimAmount * 1.3)
	return true
}

func (g *generator) losInflation(c *model.ClaimRow) bool {
	c.ClaimType = strp("inpatient")
	c.AdmissionType = strp("Elective")
	c.LengthOfStay = f64p(float64(10 + g.rng.IntN(20)))
	c.ClaimAmount = round2(c.ClaimAmount * 4)
	return true
}

func (g *generator) claims() {
	for n := 0; n < g.opts.Claims; n++ {
		if g.rng.Float64() >= g.opts.FraudRate {
			g.ds.Claims = append(g.ds.Claims, g.normalClaim(n))
			continue
		}
		pat := g.ds.Patients[g.rng.IntN(len(g.ds.Patients))]
		c := g.claimFor(n, pat.PatientID, g.badProvider())
		p := patterns[g.rng.IntN(len(patterns))]
		if !p.apply(g, &c) {
			g.ds.Claims = append(g.ds.Claims, g.normalClaim(n))
			continue
		}
		c.IsFraudulent = boolp(true)
		c.FraudType = strp(p.name)
		g.ds.Claims = append(g.ds.Claims, c)
	}
}
