package features

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gyeh/claimrisk/internal/model"
)

// amountStats summarizes a set of claim amounts.
type amountStats struct {
	count int
	sum   float64
	mean  float64
	max   float64
	min   float64
	std   float64 // sample standard deviation; 0 for fewer than two values
}

func summarize(claims []*model.Claim) amountStats {
	st := amountStats{count: len(claims)}
	if st.count == 0 {
		return st
	}
	amounts := make([]float64, len(claims))
	for i, c := range claims {
		amounts[i] = c.ClaimAmount
	}
	st.sum = floats.Sum(amounts)
	st.max = floats.Max(amounts)
	st.min = floats.Min(amounts)
	if st.count > 1 {
		st.mean, st.std = stat.MeanStdDev(amounts, nil)
	} else {
		st.mean = amounts[0]
	}
	return st
}

// patientAggregate holds full-history statistics for one patient.
type patientAggregate struct {
	amounts      amountStats
	numProviders int
	firstService *time.Time
	frequency    float64
}

// providerAggregate holds full-history statistics for one provider.
type providerAggregate struct {
	amounts     amountStats
	numPatients int
	fraudRate   float64
}

func buildPatientAggregate(claims []*model.Claim) *patientAggregate {
	a := &patientAggregate{amounts: summarize(claims)}
	providers := make(map[string]struct{})
	var first, last *time.Time
	for _, c := range claims {
		providers[c.ProviderID] = struct{}{}
		if c.ServiceDate == nil {
			continue
		}
		if first == nil || c.ServiceDate.Before(*first) {
			first = c.ServiceDate
		}
		if last == nil || c.ServiceDate.After(*last) {
			last = c.ServiceDate
		}
	}
	a.numProviders = len(providers)
	a.firstService = first

	span := 0
	if first != nil {
		span = daysBetween(*first, *last)
	}
	a.frequency = float64(len(claims)) / float64(max(span, 1))
	return a
}

func buildProviderAggregate(claims []*model.Claim) *providerAggregate {
	a := &providerAggregate{amounts: summarize(claims)}
	patients := make(map[string]struct{})
	labeled, fraud := 0, 0
	for _, c := range claims {
		patients[c.PatientID] = struct{}{}
		if c.Labeled() {
			labeled++
			if c.Fraudulent() {
				fraud++
			}
		}
	}
	a.numPatients = len(patients)
	if labeled > 0 {
		a.fraudRate = float64(fraud) / float64(labeled)
	}
	return a
}

// daysBetween returns the whole days from a to b, rounded toward negative
// infinity.
func daysBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Hours() / 24))
}

// sortedValues returns the distinct non-empty values, sorted.
func sortedValues(vals []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range vals {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
