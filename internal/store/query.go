package store

import (
	"time"

	"github.com/gyeh/claimrisk/internal/model"
)

// Predicate filters claims in Scan and Page.
type Predicate func(*model.Claim) bool

// FraudOnly matches claims labeled fraudulent.
func FraudOnly() Predicate {
	return func(c *model.Claim) bool { return c.Fraudulent() }
}

// LabeledOnly matches claims that carry a fraud label.
func LabeledOnly() Predicate {
	return func(c *model.Claim) bool { return c.Labeled() }
}

// ByPatient matches claims filed for the patient.
func ByPatient(id string) Predicate {
	return func(c *model.Claim) bool { return c.PatientID == id }
}

// ByProvider matches claims billed by the provider.
func ByProvider(id string) Predicate {
	return func(c *model.Claim) bool { return c.ProviderID == id }
}

// ServiceBetween matches claims with a service date in [from, to).
// Claims without a service date never match.
func ServiceBetween(from, to time.Time) Predicate {
	return func(c *model.Claim) bool {
		return c.ServiceDate != nil && !c.ServiceDate.Before(from) && c.ServiceDate.Before(to)
	}
}

func matches(c *model.Claim, preds []Predicate) bool {
	for _, p := range preds {
		if !p(c) {
			return false
		}
	}
	return true
}

// Scan returns the claims matching every predicate, in store order.
func (s *Store) Scan(preds ...Predicate) []*model.Claim {
	if len(preds) == 0 {
		out := make([]*model.Claim, len(s.claims))
		copy(out, s.claims)
		return out
	}
	var out []*model.Claim
	for _, c := range s.claims {
		if matches(c, preds) {
			out = append(out, c)
		}
	}
	return out
}

// Page is one window of a filtered claim listing.
type Page struct {
	Claims []*model.Claim
	Total  int // matching claims across all pages
	Limit  int
	Offset int
}

// Page returns up to limit claims matching every predicate, skipping the
// first offset matches. A non-positive limit returns every match after offset.
func (s *Store) Page(limit, offset int, preds ...Predicate) Page {
	if offset < 0 {
		offset = 0
	}
	p := Page{Limit: limit, Offset: offset}
	for _, c := range s.claims {
		if !matches(c, preds) {
			continue
		}
		if p.Total >= offset && (limit <= 0 || len(p.Claims) < limit) {
			p.Claims = append(p.Claims, c)
		}
		p.Total++
	}
	return p
}

// FraudStatistics summarizes fraud labels over all claims. Unlabeled claims
// count toward TotalClaims only.
func (s *Store) FraudStatistics() model.FraudStatistics {
	st := model.FraudStatistics{
		TotalClaims: len(s.claims),
		FraudByType: make(map[string]int),
	}
	for _, c := range s.claims {
		switch {
		case c.Fraudulent():
			st.FraudulentClaims++
			if c.FraudType != nil && *c.FraudType != "" {
				st.FraudByType[*c.FraudType]++
			}
		case c.Labeled():
			st.NormalClaims++
		}
	}
	if st.TotalClaims > 0 {
		st.FraudRate = float64(st.FraudulentClaims) / float64(st.TotalClaims)
	}
	return st
}
