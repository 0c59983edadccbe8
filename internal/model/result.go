package model

import "time"

// Urgency is the caller's priority hint for a verification request
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// VerificationRequest is the pipeline's input boundary
type VerificationRequest struct {
	Content      ParsedContent `json:"content" validate:"required"`
	Domain       Domain        `json:"domain" validate:"required,oneof=legal financial healthcare insurance"`
	Urgency      Urgency       `json:"urgency,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Jurisdiction string        `json:"jurisdiction,omitempty"` // Defaults to the configured jurisdiction
}

// VerificationResult is the single verdict produced per request. It is not
// modified after the aggregator returns it.
type VerificationResult struct {
	VerificationID    string           `json:"verificationId"`
	DocumentID        string           `json:"documentId"`
	Domain            Domain           `json:"domain"`
	OverallConfidence float64          `json:"overallConfidence"` // 0-100
	RiskLevel         RiskLevel        `json:"riskLevel"`
	Issues            []Issue          `json:"issues"`
	Claims            []VerifiedClaim  `json:"claims,omitempty"`
	AuditTrail        []AuditEntry     `json:"auditTrail"`
	ProcessingTime    int64            `json:"processingTime"` // Milliseconds
	ModuleTimings     map[string]int64 `json:"moduleTimings,omitempty"`
	Recommendations   []string         `json:"recommendations"`
	Scoring           ScoreBreakdown   `json:"scoring"`
	Timestamp         time.Time        `json:"timestamp"`
}

// ScoreBreakdown exposes how overallConfidence was computed
type ScoreBreakdown struct {
	Base           float64            `json:"base"`
	IssuePenalty   float64            `json:"issuePenalty"`
	FailurePenalty float64            `json:"failurePenalty"`
	ByType         map[string]float64 `json:"byType,omitempty"`
	FailedBranches []string           `json:"failedBranches,omitempty"`
	Formula        string             `json:"formula"`
}

// AuditAction is the lifecycle stage an audit entry records
type AuditAction string

const (
	AuditStarted   AuditAction = "started"
	AuditCompleted AuditAction = "completed"
	AuditFailed    AuditAction = "failed"
)

// AuditEntry is one append-only record of a pipeline step
type AuditEntry struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Timestamp time.Time      `json:"timestamp"`
	Action    AuditAction    `json:"action"`
	Component string         `json:"component"`
	Step      string         `json:"step,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}
