package model

import (
	"slices"
	"time"
)

// ComplianceRule is a regulatory check owned by the rules engine. Rules are
// never deleted; deactivation keeps the audit history intact.
type ComplianceRule struct {
	ID           string    `json:"id" yaml:"id" validate:"required"`
	RuleText     string    `json:"ruleText" yaml:"rule_text" validate:"required"`
	Regulation   string    `json:"regulation" yaml:"regulation" validate:"required"`
	Jurisdiction string    `json:"jurisdiction" yaml:"jurisdiction" validate:"required"`
	Domain       Domain    `json:"domain" yaml:"domain" validate:"required,oneof=legal financial healthcare insurance"`
	Severity     Severity  `json:"severity" yaml:"severity" validate:"required,oneof=low medium high critical"`
	Keywords     []string  `json:"keywords,omitempty" yaml:"keywords"`
	Patterns     []string  `json:"patterns,omitempty" yaml:"patterns"` // Regular expressions
	Remediation  string    `json:"remediation,omitempty" yaml:"remediation"`
	IsActive     bool      `json:"isActive" yaml:"is_active"`
	Version      int       `json:"version" yaml:"-"`
	UpdatedAt    time.Time `json:"updatedAt" yaml:"-"`
}

// Clone returns a copy that shares no slices with r
func (r ComplianceRule) Clone() ComplianceRule {
	out := r
	out.Keywords = slices.Clone(r.Keywords)
	out.Patterns = slices.Clone(r.Patterns)
	return out
}

// RulePatch is a merge-patch for ComplianceRule: nil fields are left untouched
type RulePatch struct {
	RuleText     *string   `json:"ruleText,omitempty" yaml:"rule_text"`
	Regulation   *string   `json:"regulation,omitempty" yaml:"regulation"`
	Jurisdiction *string   `json:"jurisdiction,omitempty" yaml:"jurisdiction"`
	Domain       *Domain   `json:"domain,omitempty" yaml:"domain"`
	Severity     *Severity `json:"severity,omitempty" yaml:"severity"`
	Keywords     *[]string `json:"keywords,omitempty" yaml:"keywords"`
	Patterns     *[]string `json:"patterns,omitempty" yaml:"patterns"`
	Remediation  *string   `json:"remediation,omitempty" yaml:"remediation"`
	IsActive     *bool     `json:"isActive,omitempty" yaml:"is_active"`
}

// Apply returns r with every non-nil field of p merged in
func (p RulePatch) Apply(r ComplianceRule) ComplianceRule {
	out := r.Clone()
	if p.RuleText != nil {
		out.RuleText = *p.RuleText
	}
	if p.Regulation != nil {
		out.Regulation = *p.Regulation
	}
	if p.Jurisdiction != nil {
		out.Jurisdiction = *p.Jurisdiction
	}
	if p.Domain != nil {
		out.Domain = *p.Domain
	}
	if p.Severity != nil {
		out.Severity = *p.Severity
	}
	if p.Keywords != nil {
		out.Keywords = slices.Clone(*p.Keywords)
	}
	if p.Patterns != nil {
		out.Patterns = slices.Clone(*p.Patterns)
	}
	if p.Remediation != nil {
		out.Remediation = *p.Remediation
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	return out
}

// ViolationType records which matcher fired
type ViolationType string

const (
	ViolationKeyword  ViolationType = "keyword_match"
	ViolationPattern  ViolationType = "pattern_match"
	ViolationSemantic ViolationType = "semantic_match"
)

// ComplianceViolation is one rule firing at one location
type ComplianceViolation struct {
	RuleID              string        `json:"ruleId"`
	ViolationType       ViolationType `json:"violationType"`
	Location            TextLocation  `json:"location"`
	Matched             string        `json:"matched"`
	Confidence          float64       `json:"confidence"` // 0-1
	Severity            Severity      `json:"severity"`
	RegulatoryReference string        `json:"regulatoryReference"`
}
