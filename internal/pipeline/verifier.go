// Package pipeline runs the fact checker, the compliance rules engine and
// the logic analyzer concurrently over one document and aggregates their
// findings into a single verification result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veracity/internal/aggregate"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
)

// ErrInvalidInput is returned for requests rejected before any analysis
var ErrInvalidInput = errors.New("invalid verification request")

const componentPipeline = "pipeline"

// Analyzer is one branch of the pipeline
type Analyzer interface {
	Name() model.ModuleSource
	Analyze(ctx context.Context, req model.VerificationRequest) (model.AnalysisReport, error)
}

// Verifier is the verification pipeline
type Verifier struct {
	analyzers  []Analyzer
	aggregator *aggregate.Aggregator
	kb         KnowledgeBase
	metrics    *metrics.Metrics
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time
}

// Option configures a Verifier
type Option func(*Verifier)

// WithKnowledgeBase enables the post-verification knowledge base hooks
func WithKnowledgeBase(kb KnowledgeBase) Option {
	return func(v *Verifier) { v.kb = kb }
}

func WithMetrics(m *metrics.Metrics) Option { return func(v *Verifier) { v.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(v *Verifier) { v.logger = l } }

// WithClock overrides time.Now for audit timestamps
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New creates a Verifier over the given analyzer branches
func New(agg *aggregate.Aggregator, analyzers []Analyzer, opts ...Option) *Verifier {
	v := &Verifier{
		analyzers:  analyzers,
		aggregator: agg,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.aggregator == nil {
		v.aggregator = aggregate.New(model.DefaultConfig().Aggregation)
	}
	return v
}

// Verify runs every branch on its own copy of the content and aggregates
// the result. A failing branch is recorded in the audit trail and lowers
// the confidence; it never fails the verification. Only invalid requests
// and a cancelled ctx return an error.
func (v *Verifier) Verify(ctx context.Context, req model.VerificationRequest) (*model.VerificationResult, error) {
	if err := v.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.Urgency == "" {
		req.Urgency = model.UrgencyMedium
	}

	id := uuid.NewString()
	started := v.now()
	rec := NewRecorder(id, v.now)
	rec.Record(model.AuditStarted, componentPipeline, "verify", map[string]any{
		"documentId": req.Content.ID,
		"domain":     string(req.Domain),
		"urgency":    string(req.Urgency),
		"textBytes":  len(req.Content.ExtractedText),
	})
	v.logger.Debug("Verification started", "id", id, "document", req.Content.ID, "domain", req.Domain)

	branches := make([]aggregate.Branch, len(v.analyzers))
	var g errgroup.Group
	for i, a := range v.analyzers {
		branchReq := req
		branchReq.Content = req.Content.Clone()
		g.Go(func() error {
			branches[i] = v.runBranch(ctx, a, branchReq, rec)
			if err := branches[i].Err; err != nil {
				return fmt.Errorf("%s branch: %w", a.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		v.logger.Warn("Verification degraded", "id", id, "error", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("verification %s abandoned: %w", id, err)
	}

	v.runHooks(ctx, branches, rec)

	failed := 0
	for _, b := range branches {
		if b.Err != nil {
			failed++
		}
	}
	rec.Record(model.AuditCompleted, componentPipeline, "verify", map[string]any{"failedBranches": failed})
	result := v.aggregator.Aggregate(aggregate.Input{
		VerificationID: id,
		DocumentID:     req.Content.ID,
		Domain:         req.Domain,
		Branches:       branches,
		Audit:          rec.Entries(),
		Started:        started,
	})

	v.observe(&result, branches)
	v.logger.Debug("Verification complete",
		"id", id,
		"confidence", result.OverallConfidence,
		"risk", result.RiskLevel,
		"issues", len(result.Issues))
	return &result, nil
}

// runBranch runs one analyzer, turning errors and panics into a failed
// branch
func (v *Verifier) runBranch(ctx context.Context, a Analyzer, req model.VerificationRequest, rec *Recorder) (b aggregate.Branch) {
	name := string(a.Name())
	b.Module = a.Name()
	start := v.now()
	rec.Record(model.AuditStarted, name, "analyze", nil)

	defer func() {
		if r := recover(); r != nil {
			b.Err = fmt.Errorf("%s panicked: %v", name, r)
			v.logger.Warn("Analyzer panicked", "analyzer", name, "panic", r, "stack", string(debug.Stack()))
		}
		b.Duration = v.now().Sub(start)
		if b.Err != nil {
			b.Report = model.AnalysisReport{}
			rec.Record(model.AuditFailed, name, "analyze", map[string]any{"error": b.Err.Error()})
			return
		}
		rec.Record(model.AuditCompleted, name, "analyze", map[string]any{
			"issues":     len(b.Report.Issues),
			"durationMs": b.Duration.Milliseconds(),
		})
	}()

	report, err := a.Analyze(ctx, req)
	if err != nil {
		v.logger.Warn("Analyzer failed", "analyzer", name, "error", err)
		b.Err = err
		return b
	}
	b.Report = report
	return b
}

func (v *Verifier) observe(res *model.VerificationResult, branches []aggregate.Branch) {
	if v.metrics == nil {
		return
	}
	v.metrics.ObserveVerification(string(res.Domain), string(res.RiskLevel), res.OverallConfidence)
	for _, is := range res.Issues {
		v.metrics.ObserveIssue(string(is.Type), string(is.Severity))
	}
	for _, b := range branches {
		v.metrics.ObserveBranch(string(b.Module), b.Duration)
	}
}
