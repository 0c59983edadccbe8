package model

// ContradictionType is the detection rule that produced a contradiction
type ContradictionType string

const (
	ContradictionDirect   ContradictionType = "direct"
	ContradictionImplicit ContradictionType = "implicit"
	ContradictionTemporal ContradictionType = "temporal"
)

// Contradiction pairs two statements that cannot both hold.
// Location1 always precedes Location2 in the document.
type Contradiction struct {
	Type        ContradictionType `json:"type"`
	Statement1  string            `json:"statement1"`
	Statement2  string            `json:"statement2"`
	Location1   TextLocation      `json:"location1"`
	Location2   TextLocation      `json:"location2"`
	Subject     string            `json:"subject,omitempty"`
	Explanation string            `json:"explanation"`
	Confidence  float64           `json:"confidence"` // 0-100
	Severity    Severity          `json:"severity"`
}

// AnalysisReport is what every analyzer branch hands back to the aggregator
type AnalysisReport struct {
	Issues         []Issue         `json:"issues"`
	VerifiedClaims []VerifiedClaim `json:"verifiedClaims,omitempty"` // Fact checker only
}
