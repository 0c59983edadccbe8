// Package store holds the storage ports for compliance rules and curated
// factual claims, with in-memory and SQLite implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// ErrNotFound is returned when a rule or claim does not exist
var ErrNotFound = errors.New("not found")

// RuleStore persists versioned compliance rules. Every saved version is
// kept; Get and List return the latest version of each rule.
type RuleStore interface {
	SaveRule(ctx context.Context, rule model.ComplianceRule) error
	GetRule(ctx context.Context, id string) (model.ComplianceRule, error)
	ListRules(ctx context.Context) ([]model.ComplianceRule, error)
	RuleHistory(ctx context.Context, id string) ([]model.ComplianceRule, error)
	RecordRuleHit(ctx context.Context, id string) error
	RuleHits(ctx context.Context, id string) (int, error)
}

// StoredClaim is a factual statement known to the knowledge base. Curated
// claims are authored by domain experts and are the only ones used as
// evidence; observed claims are recorded from verifications.
type StoredClaim struct {
	Key            string         `json:"key"`
	Statement      string         `json:"statement" yaml:"statement"`
	Domain         model.Domain   `json:"domain" yaml:"domain"`
	IsTrue         bool           `json:"isTrue" yaml:"is_true"`
	Confidence     float64        `json:"confidence" yaml:"confidence"`
	Curated        bool           `json:"curated" yaml:"curated"`
	Sources        []model.Source `json:"sources,omitempty" yaml:"sources"`
	Evidence       []string       `json:"evidence,omitempty" yaml:"evidence"`
	Reinforcements int            `json:"reinforcements"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ClaimStore persists knowledge-base claims keyed by ClaimKey(statement)
type ClaimStore interface {
	UpsertClaim(ctx context.Context, claim StoredClaim) error
	GetClaim(ctx context.Context, key string) (StoredClaim, error)
	ListClaims(ctx context.Context, domain model.Domain) ([]StoredClaim, error)
	ReinforceClaim(ctx context.Context, key string, evidence []string) error
}

// ClaimKey normalizes a statement into its storage key
func ClaimKey(statement string) string {
	s := strings.ToLower(strings.Join(strings.Fields(statement), " "))
	return strings.TrimRight(s, ".!?;: ")
}

// mergeClaim applies an upsert onto an existing record. A curated record is
// never downgraded by an observed one.
func mergeClaim(existing *StoredClaim, incoming StoredClaim, now time.Time) StoredClaim {
	incoming.Key = ClaimKey(incoming.Statement)
	incoming.UpdatedAt = now
	if existing == nil {
		return incoming
	}
	if existing.Curated && !incoming.Curated {
		out := *existing
		out.UpdatedAt = now
		return out
	}
	incoming.Reinforcements = existing.Reinforcements
	incoming.Evidence = appendUnique(existing.Evidence, incoming.Evidence...)
	return incoming
}

func appendUnique(dst []string, items ...string) []string {
	out := slices.Clone(dst)
	for _, it := range items {
		if it != "" && !slices.Contains(out, it) {
			out = append(out, it)
		}
	}
	return out
}

// Open returns the rule and claim stores for the configured driver
func Open(cfg model.StorageConfig) (RuleStore, ClaimStore, func() error, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		m := NewMemory()
		return m, m, func() error { return nil }, nil
	case "sqlite":
		s, err := OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver: %s (supported: memory, sqlite)", cfg.Driver)
	}
}
