package model

// IssueType is the unifying category every analyzer reports in
type IssueType string

const (
	IssueFactualError         IssueType = "factual_error"
	IssueLogicalInconsistency IssueType = "logical_inconsistency"
	IssueComplianceViolation  IssueType = "compliance_violation"
)

// ModuleSource names the analyzer that produced an issue
type ModuleSource string

const (
	ModuleFactChecker ModuleSource = "fact_checker"
	ModuleCompliance  ModuleSource = "compliance"
	ModuleLogic       ModuleSource = "logic_analyzer"
)

// Issue is one detected problem, regardless of which analyzer found it
type Issue struct {
	ID           string       `json:"id"`
	Type         IssueType    `json:"type"`
	Subtype      string       `json:"subtype,omitempty"` // e.g. direct, temporal, reference_error
	Severity     Severity     `json:"severity"`
	Location     TextLocation `json:"location"`
	Description  string       `json:"description"`
	Evidence     []string     `json:"evidence"`
	SuggestedFix string       `json:"suggestedFix,omitempty"`
	Confidence   float64      `json:"confidence"` // 0-1
	ModuleSource ModuleSource `json:"moduleSource"`
	RuleID       string       `json:"ruleId,omitempty"`    // Compliance issues only
	Reference    string       `json:"reference,omitempty"` // Regulatory reference, compliance issues only
}

// ClampUnit bounds v to [0,1]
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampPercent bounds v to [0,100]
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
