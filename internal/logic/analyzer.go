// Package logic finds statements that contradict each other and checks the
// document for coherence problems.
package logic

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ppiankov/veracity/internal/model"
)

// Analyzer combines the contradiction detector and the coherence validator
type Analyzer struct {
	lex       *Lexicon
	detector  *ContradictionDetector
	validator *CoherenceValidator
	logger    *slog.Logger
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithLexicon replaces the built-in word lists
func WithLexicon(lex *Lexicon) Option {
	return func(a *Analyzer) { a.lex = lex }
}

// New creates an Analyzer over the built-in lexicon
func New(cfg model.LogicConfig, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(a)
	}
	if a.lex == nil {
		lex, err := LoadLexicon(DefaultLexicon)
		if err != nil {
			return nil, fmt.Errorf("load lexicon: %w", err)
		}
		a.lex = lex
	}
	a.detector = NewContradictionDetector(a.lex, cfg)
	a.validator = NewCoherenceValidator(a.lex, cfg)
	return a, nil
}

// Name identifies the analyzer in issues and audit entries
func (a *Analyzer) Name() model.ModuleSource { return model.ModuleLogic }

// Detector returns the sentence-pair contradiction detector
func (a *Analyzer) Detector() *ContradictionDetector { return a.detector }

// Validator returns the document-level coherence validator
func (a *Analyzer) Validator() *CoherenceValidator { return a.validator }

// Analyze reports contradictions and coherence problems as issues.
// Sentiment findings already covered by a contradiction on the same pair
// of sentences are dropped.
func (a *Analyzer) Analyze(ctx context.Context, req model.VerificationRequest) (model.AnalysisReport, error) {
	report := model.AnalysisReport{Issues: []model.Issue{}}
	text := req.Content.ExtractedText
	stmts := a.lex.parseAll(text)
	if len(stmts) < 2 {
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	contradictions := a.detector.detect(stmts)
	covered := make(map[int]bool, len(contradictions))
	for _, c := range contradictions {
		report.Issues = append(report.Issues, ContradictionIssue(c))
		covered[c.Location2.Start] = true
	}

	for _, is := range a.validator.validate(text, stmts) {
		if is.Subtype == SubtypeSentiment && covered[is.Location.Start] {
			continue
		}
		report.Issues = append(report.Issues, is)
	}

	a.logger.Debug("Logic analysis complete",
		"sentences", len(stmts),
		"contradictions", len(contradictions),
		"issues", len(report.Issues))
	return report, nil
}

// ContradictionIssue converts a contradiction into an issue located at the
// later statement
func ContradictionIssue(c model.Contradiction) model.Issue {
	return model.Issue{
		ID:           uuid.NewString(),
		Type:         model.IssueLogicalInconsistency,
		Subtype:      string(c.Type),
		Severity:     c.Severity,
		Location:     c.Location2,
		Description:  fmt.Sprintf("Contradiction (%s): %s", c.Type, c.Explanation),
		Evidence:     []string{c.Statement1, c.Statement2},
		SuggestedFix: "Resolve which statement is correct and remove or qualify the other",
		Confidence:   model.ClampUnit(c.Confidence / 100),
		ModuleSource: model.ModuleLogic,
	}
}
