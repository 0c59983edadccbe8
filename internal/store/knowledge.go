package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Knowledge adapts the rule and claim stores to the knowledge-base
// collaborator the pipeline calls after each verification.
type Knowledge struct {
	rules  RuleStore
	claims ClaimStore
	logger *slog.Logger
}

// NewKnowledge builds the collaborator. Either store may be nil, in which
// case the matching hooks are no-ops.
func NewKnowledge(rules RuleStore, claims ClaimStore, logger *slog.Logger) *Knowledge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Knowledge{rules: rules, claims: claims, logger: logger}
}

// CreateOrUpdateFactualClaim records a verified claim as an observed fact.
// Curated claims with the same statement are left as authored.
func (k *Knowledge) CreateOrUpdateFactualClaim(ctx context.Context, claim model.VerifiedClaim) error {
	if k.claims == nil || strings.TrimSpace(claim.Statement) == "" {
		return nil
	}
	err := k.claims.UpsertClaim(ctx, StoredClaim{
		Statement:  claim.Statement,
		Domain:     claim.Domain,
		IsTrue:     claim.Status == model.ClaimSupported,
		Confidence: claim.Confidence,
		Sources:    claim.Sources,
		Evidence:   claim.Evidence,
	})
	if err != nil {
		return fmt.Errorf("record claim: %w", err)
	}
	return nil
}

// FindComplianceRuleByIssue resolves the rule behind a compliance issue
func (k *Knowledge) FindComplianceRuleByIssue(ctx context.Context, issue model.Issue) (model.ComplianceRule, error) {
	if k.rules == nil || issue.RuleID == "" {
		return model.ComplianceRule{}, fmt.Errorf("issue %s has no rule: %w", issue.ID, ErrNotFound)
	}
	return k.rules.GetRule(ctx, issue.RuleID)
}

// ReinforceFactualClaim attaches fresh evidence to a stored claim
func (k *Knowledge) ReinforceFactualClaim(ctx context.Context, statement string, evidence []string) error {
	if k.claims == nil {
		return nil
	}
	err := k.claims.ReinforceClaim(ctx, ClaimKey(statement), evidence)
	if errors.Is(err, ErrNotFound) {
		k.logger.Debug("Reinforce skipped, claim not stored", "statement", statement)
		return nil
	}
	return err
}

// ReinforceComplianceRule counts a confirmed hit against the rule
func (k *Knowledge) ReinforceComplianceRule(ctx context.Context, ruleID string) error {
	if k.rules == nil {
		return nil
	}
	return k.rules.RecordRuleHit(ctx, ruleID)
}
