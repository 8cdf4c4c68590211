// Package store holds the in-memory entity tables (patients, providers,
// policies, claims) that feature extraction and scoring read from.
//
// A Store is built once by a Builder and is read-only afterwards, so it can
// be shared across goroutines without locking. Reloading data means building
// a new Store and swapping it in.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gyeh/claimrisk/internal/model"
)

// ErrNotFound is returned by the Get methods when no entity has the id.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by the Builder when an id is added twice.
var ErrDuplicate = errors.New("duplicate id")

// Store is an immutable snapshot of the entity tables.
type Store struct {
	patients  map[string]*model.Patient
	providers map[string]*model.Provider
	policies  map[string]*model.Policy

	patientOrder  []*model.Patient
	providerOrder []*model.Provider

	claims     []*model.Claim
	claimIdx   map[string]int
	byPatient  map[string][]*model.Claim
	byProvider map[string][]*model.Claim
}

// Builder accumulates entities for a new Store. Not safe for concurrent use.
type Builder struct {
	s *Store
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{s: &Store{
		patients:   make(map[string]*model.Patient),
		providers:  make(map[string]*model.Provider),
		policies:   make(map[string]*model.Policy),
		claimIdx:   make(map[string]int),
		byPatient:  make(map[string][]*model.Claim),
		byProvider: make(map[string][]*model.Claim),
	}}
}

// AddPatient adds a patient. Returns ErrDuplicate if the id is already present.
func (b *Builder) AddPatient(p *model.Patient) error {
	if _, ok := b.s.patients[p.ID]; ok {
		return fmt.Errorf("patient %q: %w", p.ID, ErrDuplicate)
	}
	b.s.patients[p.ID] = p
	b.s.patientOrder = append(b.s.patientOrder, p)
	return nil
}

// AddProvider adds a provider. Returns ErrDuplicate if the id is already present.
func (b *Builder) AddProvider(p *model.Provider) error {
	if _, ok := b.s.providers[p.ID]; ok {
		return fmt.Errorf("provider %q: %w", p.ID, ErrDuplicate)
	}
	b.s.providers[p.ID] = p
	b.s.providerOrder = append(b.s.providerOrder, p)
	return nil
}

// AddPolicy adds a policy. Returns ErrDuplicate if the id is already present.
func (b *Builder) AddPolicy(p *model.Policy) error {
	if _, ok := b.s.policies[p.ID]; ok {
		return fmt.Errorf("policy %q: %w", p.ID, ErrDuplicate)
	}
	b.s.policies[p.ID] = p
	return nil
}

// AddClaim appends a claim. Claims keep the order they were added in.
// Returns ErrDuplicate if the id is already present.
func (b *Builder) AddClaim(c *model.Claim) error {
	if _, ok := b.s.claimIdx[c.ID]; ok {
		return fmt.Errorf("claim %q: %w", c.ID, ErrDuplicate)
	}
	b.s.claimIdx[c.ID] = len(b.s.claims)
	b.s.claims = append(b.s.claims, c)
	b.s.byPatient[c.PatientID] = append(b.s.byPatient[c.PatientID], c)
	b.s.byProvider[c.ProviderID] = append(b.s.byProvider[c.ProviderID], c)
	return nil
}

// Build returns the finished Store. The Builder must not be used afterwards.
func (b *Builder) Build() *Store {
	s := b.s
	b.s = nil
	return s
}

// GetPatient returns the patient with the given id or ErrNotFound.
func (s *Store) GetPatient(id string) (*model.Patient, error) {
	if p, ok := s.patients[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("patient %q: %w", id, ErrNotFound)
}

// GetProvider returns the provider with the given id or ErrNotFound.
func (s *Store) GetProvider(id string) (*model.Provider, error) {
	if p, ok := s.providers[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("provider %q: %w", id, ErrNotFound)
}

// GetPolicy returns the policy with the given id or ErrNotFound.
func (s *Store) GetPolicy(id string) (*model.Policy, error) {
	if p, ok := s.policies[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("policy %q: %w", id, ErrNotFound)
}

// GetClaim returns the claim with the given id or ErrNotFound.
func (s *Store) GetClaim(id string) (*model.Claim, error) {
	if i, ok := s.claimIdx[id]; ok {
		return s.claims[i], nil
	}
	return nil, fmt.Errorf("claim %q: %w", id, ErrNotFound)
}

// HasClaim reports whether a claim with the id exists.
func (s *Store) HasClaim(id string) bool {
	_, ok := s.claimIdx[id]
	return ok
}

// ClaimIndex returns the position of the claim in store order, or -1.
func (s *Store) ClaimIndex(id string) int {
	if i, ok := s.claimIdx[id]; ok {
		return i
	}
	return -1
}

// Patients returns all patients in load order. The slice must not be modified.
func (s *Store) Patients() []*model.Patient { return s.patientOrder }

// Providers returns all providers in load order. The slice must not be modified.
func (s *Store) Providers() []*model.Provider { return s.providerOrder }

// Claims returns all claims in store order. The slice must not be modified.
func (s *Store) Claims() []*model.Claim { return s.claims }

// NumClaims returns the number of claims.
func (s *Store) NumClaims() int { return len(s.claims) }

// ClaimsByPatient returns the claims filed for a patient, in store order.
func (s *Store) ClaimsByPatient(patientID string) []*model.Claim { return s.byPatient[patientID] }

// ClaimsByProvider returns the claims billed by a provider, in store order.
func (s *Store) ClaimsByProvider(providerID string) []*model.Claim { return s.byProvider[providerID] }

// PatientIDsWithClaims returns the distinct patient ids referenced by claims, sorted.
func (s *Store) PatientIDsWithClaims() []string { return sortedKeys(s.byPatient) }

// ProviderIDsWithClaims returns the distinct provider ids referenced by claims, sorted.
func (s *Store) ProviderIDsWithClaims() []string { return sortedKeys(s.byProvider) }

func sortedKeys(m map[string][]*model.Claim) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
