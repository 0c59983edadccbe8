// Package aggregate merges analyzer reports into a single verification
// result: overall confidence, risk level, recommendations and audit trail.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

// Branch is the outcome of one analyzer run
type Branch struct {
	Module   model.ModuleSource
	Report   model.AnalysisReport
	Duration time.Duration
	Err      error // Set when the branch failed entirely
}

// Input is everything the aggregator needs for one verification
type Input struct {
	VerificationID string
	DocumentID     string
	Domain         model.Domain
	Branches       []Branch
	Audit          []model.AuditEntry
	Started        time.Time
}

// Aggregator scores merged issues
type Aggregator struct {
	cfg model.AggregationConfig
	now func() time.Time
}

// New creates an Aggregator. Zero-valued fields fall back to the defaults.
func New(cfg model.AggregationConfig) *Aggregator {
	def := model.DefaultConfig().Aggregation
	if cfg.Base <= 0 {
		cfg.Base = def.Base
	}
	if cfg.Decay <= 0 || cfg.Decay > 1 {
		cfg.Decay = def.Decay
	}
	if len(cfg.TypeWeights) == 0 {
		cfg.TypeWeights = def.TypeWeights
	}
	if len(cfg.SeverityWeights) == 0 {
		cfg.SeverityWeights = def.SeverityWeights
	}
	if cfg.FailedBranchPenalty < 0 {
		cfg.FailedBranchPenalty = 0
	}
	return &Aggregator{cfg: cfg, now: time.Now}
}

// Aggregate merges the branch reports into a VerificationResult. Failed
// branches contribute no issues and lower the confidence.
func (a *Aggregator) Aggregate(in Input) model.VerificationResult {
	var issues []model.Issue
	var claims []model.VerifiedClaim
	var failed []string
	timings := make(map[string]int64, len(in.Branches))
	for _, b := range in.Branches {
		timings[string(b.Module)] = b.Duration.Milliseconds()
		if b.Err != nil {
			failed = append(failed, string(b.Module))
			continue
		}
		issues = append(issues, b.Report.Issues...)
		claims = append(claims, b.Report.VerifiedClaims...)
	}
	issues = SortIssues(issues)

	confidence, breakdown := a.Score(issues, failed)
	now := a.now()
	started := in.Started
	if started.IsZero() {
		started = now
	}

	return model.VerificationResult{
		VerificationID:    in.VerificationID,
		DocumentID:        in.DocumentID,
		Domain:            in.Domain,
		OverallConfidence: confidence,
		RiskLevel:         RiskLevel(issues),
		Issues:            issues,
		Claims:            claims,
		AuditTrail:        Chronological(in.Audit),
		ProcessingTime:    now.Sub(started).Milliseconds(),
		ModuleTimings:     timings,
		Recommendations:   Recommendations(issues, failed, confidence),
		Scoring:           breakdown,
		Timestamp:         now.UTC(),
	}
}

// Score computes the overall confidence:
//
//	base - sum_i(decay^i * penalty_i) - failedBranchPenalty * failures
//
// with penalties sorted largest first, so each further issue costs less
// than the one before it.
func (a *Aggregator) Score(issues []model.Issue, failed []string) (float64, model.ScoreBreakdown) {
	type weighted struct {
		typ     model.IssueType
		penalty float64
	}
	penalties := make([]weighted, 0, len(issues))
	for _, is := range issues {
		tw, ok := a.cfg.TypeWeights[is.Type]
		if !ok {
			tw = 1
		}
		penalties = append(penalties, weighted{
			typ:     is.Type,
			penalty: tw * a.cfg.SeverityWeights[is.Severity] * model.ClampUnit(is.Confidence),
		})
	}
	sort.SliceStable(penalties, func(i, j int) bool { return penalties[i].penalty > penalties[j].penalty })

	breakdown := model.ScoreBreakdown{
		Base:           a.cfg.Base,
		ByType:         make(map[string]float64),
		FailedBranches: failed,
		Formula: fmt.Sprintf("%.0f - sum(%.2f^i * typeWeight * severityWeight * confidence) - %.0f * failedBranches",
			a.cfg.Base, a.cfg.Decay, a.cfg.FailedBranchPenalty),
	}
	factor := 1.0
	for _, p := range penalties {
		d := factor * p.penalty
		breakdown.IssuePenalty += d
		breakdown.ByType[string(p.typ)] += d
		factor *= a.cfg.Decay
	}
	breakdown.FailurePenalty = a.cfg.FailedBranchPenalty * float64(len(failed))

	conf := a.cfg.Base - breakdown.IssuePenalty - breakdown.FailurePenalty
	return round2(model.ClampPercent(conf)), breakdown
}

// RiskLevel is the highest issue severity; low when there are none
func RiskLevel(issues []model.Issue) model.RiskLevel {
	risk := model.SeverityLow
	for _, is := range issues {
		if is.Severity == model.SeverityCritical {
			return model.SeverityCritical
		}
		risk = model.MaxSeverity(risk, is.Severity)
	}
	return risk
}

// SortIssues orders issues by position, most severe first at equal positions
func SortIssues(issues []model.Issue) []model.Issue {
	out := make([]model.Issue, len(issues))
	copy(out, issues)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location.Start != out[j].Location.Start {
			return out[i].Location.Start < out[j].Location.Start
		}
		return out[i].Severity.Rank() > out[j].Severity.Rank()
	})
	return out
}

// Chronological returns the audit entries ordered by timestamp
func Chronological(entries []model.AuditEntry) []model.AuditEntry {
	out := make([]model.AuditEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
