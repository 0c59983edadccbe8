package pipeline

import (
	"context"

	"github.com/ppiankov/veracity/internal/aggregate"
	"github.com/ppiankov/veracity/internal/model"
)

const componentKnowledge = "knowledge_base"

// KnowledgeBase is the learning collaborator notified after each
// verification
type KnowledgeBase interface {
	CreateOrUpdateFactualClaim(ctx context.Context, claim model.VerifiedClaim) error
	FindComplianceRuleByIssue(ctx context.Context, issue model.Issue) (model.ComplianceRule, error)
	ReinforceFactualClaim(ctx context.Context, statement string, evidence []string) error
	ReinforceComplianceRule(ctx context.Context, ruleID string) error
}

// runHooks records claims that took a position and reinforces the rules
// behind compliance issues. Hook errors are logged and counted, never
// returned.
func (v *Verifier) runHooks(ctx context.Context, branches []aggregate.Branch, rec *Recorder) {
	if v.kb == nil {
		return
	}
	rec.Record(model.AuditStarted, componentKnowledge, "hooks", nil)

	var claims, rules, failures int
	fail := func(op string, err error) {
		failures++
		v.logger.Warn("Knowledge base hook failed", "op", op, "error", err)
	}

	for _, b := range branches {
		if b.Err != nil {
			continue
		}
		for _, c := range b.Report.VerifiedClaims {
			if c.Status == model.ClaimUnverified {
				continue
			}
			if err := v.kb.CreateOrUpdateFactualClaim(ctx, c); err != nil {
				fail("create_or_update_factual_claim", err)
				continue
			}
			claims++
			if c.Status == model.ClaimSupported && len(c.Evidence) > 0 {
				if err := v.kb.ReinforceFactualClaim(ctx, c.Statement, c.Evidence); err != nil {
					fail("reinforce_factual_claim", err)
				}
			}
		}
		for _, is := range b.Report.Issues {
			if is.Type != model.IssueComplianceViolation {
				continue
			}
			rule, err := v.kb.FindComplianceRuleByIssue(ctx, is)
			if err != nil {
				v.logger.Debug("No stored rule for issue", "rule", is.RuleID, "error", err)
				continue
			}
			if err := v.kb.ReinforceComplianceRule(ctx, rule.ID); err != nil {
				fail("reinforce_compliance_rule", err)
				continue
			}
			rules++
		}
	}

	rec.Record(model.AuditCompleted, componentKnowledge, "hooks", map[string]any{
		"claims":   claims,
		"rules":    rules,
		"failures": failures,
	})
}
