package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Memory is a process-local RuleStore and ClaimStore
type Memory struct {
	mu     sync.RWMutex
	rules  map[string][]model.ComplianceRule
	hits   map[string]int
	claims map[string]StoredClaim
	now    func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		rules:  make(map[string][]model.ComplianceRule),
		hits:   make(map[string]int),
		claims: make(map[string]StoredClaim),
		now:    time.Now,
	}
}

func (m *Memory) SaveRule(_ context.Context, rule model.ComplianceRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.rules[rule.ID]
	if rule.Version == 0 {
		rule.Version = len(versions) + 1
	}
	for i, v := range versions {
		if v.Version == rule.Version {
			versions[i] = rule.Clone()
			return nil
		}
	}
	m.rules[rule.ID] = append(versions, rule.Clone())
	return nil
}

func (m *Memory) GetRule(_ context.Context, id string) (model.ComplianceRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.rules[id]
	if len(versions) == 0 {
		return model.ComplianceRule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return versions[len(versions)-1].Clone(), nil
}

func (m *Memory) ListRules(_ context.Context) ([]model.ComplianceRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ComplianceRule, 0, len(m.rules))
	for _, versions := range m.rules {
		out = append(out, versions[len(versions)-1].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) RuleHistory(_ context.Context, id string) ([]model.ComplianceRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.rules[id]
	if len(versions) == 0 {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	out := make([]model.ComplianceRule, len(versions))
	for i, v := range versions {
		out[i] = v.Clone()
	}
	return out, nil
}

func (m *Memory) RecordRuleHit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rules[id]) == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	m.hits[id]++
	return nil
}

func (m *Memory) RuleHits(_ context.Context, id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hits[id], nil
}

func (m *Memory) UpsertClaim(_ context.Context, claim StoredClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ClaimKey(claim.Statement)
	var existing *StoredClaim
	if c, ok := m.claims[key]; ok {
		existing = &c
	}
	m.claims[key] = mergeClaim(existing, claim, m.now())
	return nil
}

func (m *Memory) GetClaim(_ context.Context, key string) (StoredClaim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[key]
	if !ok {
		return StoredClaim{}, fmt.Errorf("claim %q: %w", key, ErrNotFound)
	}
	return c, nil
}

// ListClaims returns claims for domain, or all claims when domain is empty
func (m *Memory) ListClaims(_ context.Context, domain model.Domain) ([]StoredClaim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredClaim
	for _, c := range m.claims {
		if domain == "" || c.Domain == domain {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) ReinforceClaim(_ context.Context, key string, evidence []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[key]
	if !ok {
		return fmt.Errorf("claim %q: %w", key, ErrNotFound)
	}
	c.Reinforcements++
	c.Evidence = appendUnique(c.Evidence, evidence...)
	c.UpdatedAt = m.now()
	m.claims[key] = c
	return nil
}
