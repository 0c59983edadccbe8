// Package compliance matches document text against versioned regulatory
// rule sets scoped by domain and jurisdiction.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
)

// compiledRule is an immutable rule version with its matchers
type compiledRule struct {
	rule     model.ComplianceRule
	keywords []*regexp.Regexp
	patterns []*regexp.Regexp
}

// snapshot is the rule table readers see. It is never mutated after it is
// published; writers build a new one.
type snapshot struct {
	byID  map[string]*compiledRule
	order []string // Registration order
}

// Engine is the compliance rules engine
type Engine struct {
	cfg      model.ComplianceConfig
	current  atomic.Pointer[snapshot]
	writeMu  sync.Mutex
	store    store.RuleStore
	entities *extract.EntityExtractor
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithRuleStore persists every rule version and loads existing rules on start
func WithRuleStore(s store.RuleStore) Option { return func(e *Engine) { e.store = s } }

// WithEntityExtractor attaches entities overlapping a violation to its evidence
func WithEntityExtractor(x *extract.EntityExtractor) Option {
	return func(e *Engine) { e.entities = x }
}

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// New creates an engine. Rules already in the store are loaded first; the
// built-in rule sets are then added for any id the store does not have.
func New(ctx context.Context, cfg model.ComplianceConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.current.Store(&snapshot{byID: map[string]*compiledRule{}})

	if e.store != nil {
		stored, err := e.store.ListRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stored rules: %w", err)
		}
		for _, r := range stored {
			cr, err := compile(r)
			if err != nil {
				e.logger.Warn("Skipping invalid stored rule", "rule", r.ID, "error", err)
				continue
			}
			e.publish(cr)
		}
	}

	if cfg.LoadDefaultRules {
		defaults, err := DefaultRules()
		if err != nil {
			return nil, err
		}
		for _, r := range defaults {
			if _, ok := e.current.Load().byID[r.ID]; ok {
				continue
			}
			if err := e.AddRule(ctx, r); err != nil {
				return nil, fmt.Errorf("default rule %s: %w", r.ID, err)
			}
		}
	}
	return e, nil
}

// Name identifies the analyzer in issues and audit entries
func (e *Engine) Name() model.ModuleSource { return model.ModuleCompliance }

// AddRule validates and registers a new rule at version 1
func (e *Engine) AddRule(ctx context.Context, rule model.ComplianceRule) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if _, ok := e.current.Load().byID[rule.ID]; ok && rule.ID != "" {
		return fmt.Errorf("add rule %s: %w", rule.ID, ErrDuplicateRule)
	}
	rule.Version = 1
	rule.UpdatedAt = e.now().UTC()
	return e.commit(ctx, rule)
}

// UpdateRule merges patch into the rule and registers the result as a new
// version. The previous version stays in effect if the merge is invalid.
func (e *Engine) UpdateRule(ctx context.Context, id string, patch model.RulePatch) (model.ComplianceRule, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	existing, ok := e.current.Load().byID[id]
	if !ok {
		return model.ComplianceRule{}, fmt.Errorf("update rule %s: %w", id, ErrRuleNotFound)
	}
	merged := patch.Apply(existing.rule)
	merged.ID = id
	merged.Version = existing.rule.Version + 1
	merged.UpdatedAt = e.now().UTC()
	if err := e.commit(ctx, merged); err != nil {
		return model.ComplianceRule{}, err
	}
	return merged.Clone(), nil
}

// DeactivateRule marks the rule inactive. Rules are never removed.
func (e *Engine) DeactivateRule(ctx context.Context, id string) error {
	inactive := false
	_, err := e.UpdateRule(ctx, id, model.RulePatch{IsActive: &inactive})
	return err
}

// commit validates, persists and publishes rule. Callers hold writeMu.
func (e *Engine) commit(ctx context.Context, rule model.ComplianceRule) error {
	cr, err := compile(rule)
	if err != nil {
		e.logger.Warn("Rule rejected", "rule", rule.ID, "error", err)
		return err
	}
	if e.store != nil {
		if err := e.store.SaveRule(ctx, cr.rule); err != nil {
			return fmt.Errorf("persist rule %s: %w", rule.ID, err)
		}
	}
	e.publish(cr)
	e.logger.Debug("Rule registered", "rule", rule.ID, "version", rule.Version, "active", rule.IsActive)
	return nil
}

// publish swaps in a snapshot with cr replacing any previous version
func (e *Engine) publish(cr *compiledRule) {
	old := e.current.Load()
	next := &snapshot{
		byID:  make(map[string]*compiledRule, len(old.byID)+1),
		order: old.order,
	}
	for id, r := range old.byID {
		next.byID[id] = r
	}
	if _, ok := old.byID[cr.rule.ID]; !ok {
		next.order = append(append([]string(nil), old.order...), cr.rule.ID)
	}
	next.byID[cr.rule.ID] = cr
	e.current.Store(next)
}

// GetRuleByID returns the current version of a rule
func (e *Engine) GetRuleByID(id string) (model.ComplianceRule, error) {
	cr, ok := e.current.Load().byID[id]
	if !ok {
		return model.ComplianceRule{}, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	return cr.rule.Clone(), nil
}

// GetAllRules returns every rule, active or not, in registration order
func (e *Engine) GetAllRules() []model.ComplianceRule {
	snap := e.current.Load()
	out := make([]model.ComplianceRule, 0, len(snap.order))
	for _, id := range snap.order {
		out = append(out, snap.byID[id].rule.Clone())
	}
	return out
}

// GetApplicableRules returns the active rules of domain whose jurisdiction
// is the requested one or GLOBAL
func (e *Engine) GetApplicableRules(domain model.Domain, jurisdiction string) []model.ComplianceRule {
	applicable := e.applicable(e.current.Load(), domain, jurisdiction)
	out := make([]model.ComplianceRule, len(applicable))
	for i, cr := range applicable {
		out[i] = cr.rule.Clone()
	}
	return out
}

func (e *Engine) applicable(snap *snapshot, domain model.Domain, jurisdiction string) []*compiledRule {
	var out []*compiledRule
	for _, id := range snap.order {
		cr := snap.byID[id]
		r := cr.rule
		if !r.IsActive || r.Domain != domain {
			continue
		}
		if strings.EqualFold(r.Jurisdiction, jurisdiction) || strings.EqualFold(r.Jurisdiction, model.JurisdictionGlobal) {
			out = append(out, cr)
		}
	}
	return out
}

// Evaluate matches text against every applicable rule. Each rule reports
// at most one violation per location; a pattern hit wins over a keyword hit
// at the same span. Violations are ordered by location then rule.
func (e *Engine) Evaluate(text string, domain model.Domain, jurisdiction string) []model.ComplianceViolation {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if jurisdiction == "" {
		jurisdiction = e.cfg.DefaultJurisdiction
	}

	loc := model.NewLocator(text)
	var out []model.ComplianceViolation
	for _, cr := range e.applicable(e.current.Load(), domain, jurisdiction) {
		type span struct{ start, end int }
		found := make(map[span]model.ComplianceViolation)
		var spans []span

		add := func(re *regexp.Regexp, typ model.ViolationType, conf float64) {
			for _, m := range re.FindAllStringIndex(text, -1) {
				s := span{m[0], m[1]}
				prev, seen := found[s]
				if seen && prev.ViolationType == model.ViolationPattern {
					continue
				}
				if !seen {
					spans = append(spans, s)
				}
				found[s] = model.ComplianceViolation{
					RuleID:              cr.rule.ID,
					ViolationType:       typ,
					Location:            loc.Locate(m[0], m[1]),
					Matched:             text[m[0]:m[1]],
					Confidence:          model.ClampUnit(conf),
					Severity:            cr.rule.Severity,
					RegulatoryReference: cr.rule.Regulation,
				}
			}
		}
		for _, re := range cr.keywords {
			add(re, model.ViolationKeyword, e.cfg.KeywordConfidence)
		}
		for _, re := range cr.patterns {
			add(re, model.ViolationPattern, e.cfg.PatternConfidence)
		}
		for _, s := range spans {
			out = append(out, found[s])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location.Start != out[j].Location.Start {
			return out[i].Location.Start < out[j].Location.Start
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

// Analyze evaluates the request content and turns every violation into an
// issue. Multiple rules firing on one passage are all reported.
func (e *Engine) Analyze(_ context.Context, req model.VerificationRequest) (model.AnalysisReport, error) {
	report := model.AnalysisReport{Issues: []model.Issue{}}
	text := req.Content.ExtractedText
	violations := e.Evaluate(text, req.Domain, req.Jurisdiction)
	if len(violations) == 0 {
		return report, nil
	}

	entities := req.Content.Entities
	if len(entities) == 0 && e.entities != nil {
		entities = e.entities.Extract(text)
	}

	snap := e.current.Load()
	for _, v := range violations {
		rule := snap.byID[v.RuleID].rule
		evidence := []string{fmt.Sprintf("Matched %q (%s)", v.Matched, v.ViolationType)}
		for _, ent := range entities {
			if ent.Location.Start < v.Location.End && v.Location.Start < ent.Location.End {
				evidence = append(evidence, fmt.Sprintf("%s entity: %s", ent.Type, ent.Value))
			}
		}
		fix := rule.Remediation
		if fix == "" {
			fix = "Review the passage against " + rule.Regulation
		}
		report.Issues = append(report.Issues, model.Issue{
			ID:           uuid.NewString(),
			Type:         model.IssueComplianceViolation,
			Subtype:      string(v.ViolationType),
			Severity:     v.Severity,
			Location:     v.Location,
			Description:  fmt.Sprintf("%s: %s", rule.Regulation, rule.RuleText),
			Evidence:     evidence,
			SuggestedFix: fix,
			Confidence:   v.Confidence,
			ModuleSource: model.ModuleCompliance,
			RuleID:       rule.ID,
			Reference:    rule.Regulation,
		})
	}
	return report, nil
}

// IsValidation reports whether err came from rule validation
func IsValidation(err error) bool {
	var verr *RuleValidationError
	return errors.As(err, &verr)
}
