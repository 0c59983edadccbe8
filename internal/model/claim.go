package model

// Claim is a factual assertion segmented out of the document text
type Claim struct {
	Text      string       `json:"text"`                // The claim text itself
	Heuristic string       `json:"heuristic,omitempty"` // Which extraction rule matched (e.g., "keyword:according to")
	Sentence  int          `json:"sentence"`            // Sentence index in source (0-based)
	Location  TextLocation `json:"location"`
}

// SourceType classifies where a piece of evidence came from
type SourceType string

const (
	SourceGovernment   SourceType = "government"
	SourceAcademic     SourceType = "academic"
	SourceEncyclopedia SourceType = "encyclopedia"
	SourceNews         SourceType = "news"
	SourceInternal     SourceType = "internal" // Curated knowledge base
	SourceModel        SourceType = "model"    // Language-model judgement
	SourceOther        SourceType = "other"
)

// Source is a single evidence provider reference
type Source struct {
	Name             string     `json:"name"`
	URL              string     `json:"url,omitempty"`
	CredibilityScore float64    `json:"credibilityScore"` // 0-100
	SourceType       SourceType `json:"sourceType"`
}

// SourceResult is what one provider says about one claim
type SourceResult struct {
	Provider       string   `json:"provider"`
	Sources        []Source `json:"sources"`
	Confidence     float64  `json:"confidence"` // 0-100, confidence the claim is true
	IsSupported    bool     `json:"isSupported"`
	Evidence       []string `json:"evidence,omitempty"`
	Contradictions []string `json:"contradictions,omitempty"`
	QueryTimeMs    int64    `json:"queryTimeMs"`
	Error          string   `json:"error,omitempty"` // Set when the query failed or timed out
}

// Contradicts reports whether the provider actively disputes the claim
func (r SourceResult) Contradicts() bool {
	return !r.IsSupported && len(r.Contradictions) > 0
}

// FactualClaim is the transient verification record for one claim
type FactualClaim struct {
	Statement      string   `json:"statement"`
	Sources        []Source `json:"sources"`
	Confidence     float64  `json:"confidence"` // 0-100
	Domain         Domain   `json:"domain"`
	Verified       bool     `json:"verified"`
	Contradictions []string `json:"contradictions,omitempty"`
}

// ClaimStatus summarises how the evidence came down
type ClaimStatus string

const (
	ClaimSupported    ClaimStatus = "supported"
	ClaimContradicted ClaimStatus = "contradicted"
	ClaimUnverified   ClaimStatus = "unverified" // No provider had anything to say
)

// VerifiedClaim is a FactualClaim plus the evidence trail behind its confidence
type VerifiedClaim struct {
	FactualClaim
	Status        ClaimStatus    `json:"status"`
	Evidence      []string       `json:"evidence,omitempty"`
	Location      TextLocation   `json:"location"`
	Supporting    int            `json:"supporting"`    // Results that supported the claim
	Contradicting int            `json:"contradicting"` // Results that disputed the claim
	Results       []SourceResult `json:"results,omitempty"`
}

// Salience is the weight a claim carries in the overall fact-check confidence:
// claims that more providers had an opinion on count more.
func (v VerifiedClaim) Salience() float64 {
	return 1 + float64(v.Supporting+v.Contradicting)
}

// FactCheckingResult is the output of a full fact-check pass over a document
type FactCheckingResult struct {
	Claims            []VerifiedClaim `json:"claims"`
	Issues            []Issue         `json:"issues"`
	OverallConfidence float64         `json:"overallConfidence"` // 0-100
}
