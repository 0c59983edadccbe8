package aggregate

import (
	"fmt"

	"github.com/ppiankov/veracity/internal/model"
)

type templateKey struct {
	typ model.IssueType
	sev model.Severity
}

var templates = map[templateKey]string{
	{model.IssueFactualError, model.SeverityCritical}: "Correct the factual claims contradicted by authoritative sources before publication",
	{model.IssueFactualError, model.SeverityHigh}:     "Verify the disputed factual claims against primary sources and correct them",
	{model.IssueFactualError, model.SeverityMedium}:   "Review the questioned factual claims and add supporting citations",
	{model.IssueFactualError, model.SeverityLow}:      "Consider adding citations for the flagged claims",

	{model.IssueComplianceViolation, model.SeverityCritical}: "Remove or redact content violating %s before the document is shared",
	{model.IssueComplianceViolation, model.SeverityHigh}:     "Revise passages that conflict with %s and obtain compliance sign-off",
	{model.IssueComplianceViolation, model.SeverityMedium}:   "Review passages flagged under %s with the compliance team",
	{model.IssueComplianceViolation, model.SeverityLow}:      "Check wording flagged under %s",

	{model.IssueLogicalInconsistency, model.SeverityCritical}: "Resolve the contradictory statements before relying on the document",
	{model.IssueLogicalInconsistency, model.SeverityHigh}:     "Resolve the contradictory statements so only one version remains",
	{model.IssueLogicalInconsistency, model.SeverityMedium}:   "Reconcile inconsistent statements and clarify their order and causes",
	{model.IssueLogicalInconsistency, model.SeverityLow}:      "Improve transitions and make references explicit",
}

// Recommendations turns issues into deduplicated, human-readable actions in
// order of first appearance. Compliance templates name the regulation.
func Recommendations(issues []model.Issue, failed []string, confidence float64) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, is := range issues {
		tmpl, ok := templates[templateKey{is.Type, is.Severity}]
		if !ok {
			add(fmt.Sprintf("Review the %s issue: %s", is.Type, is.Description))
			continue
		}
		if is.Type == model.IssueComplianceViolation {
			ref := is.Reference
			if ref == "" {
				ref = "the applicable regulations"
			}
			add(fmt.Sprintf(tmpl, ref))
			continue
		}
		add(tmpl)
	}
	for _, f := range failed {
		add(fmt.Sprintf("Re-run verification: the %s analysis did not complete", f))
	}
	if confidence < 50 {
		add("Request expert review before relying on this document")
	}
	if len(out) == 0 {
		add("No issues found")
	}
	return out
}
