package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ppiankov/veracity/internal/aggregate"
	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/compliance"
	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/factcheck"
	"github.com/ppiankov/veracity/internal/logic"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/sources"
	"github.com/ppiankov/veracity/internal/store"
)

// System is a Verifier wired from configuration, plus the parts the CLI
// administers directly
type System struct {
	Verifier  *Verifier
	Rules     *compliance.Engine
	RuleStore store.RuleStore
	Claims    store.ClaimStore
	close     func() error
}

// Close releases the underlying store
func (s *System) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Build opens the configured store and cache, creates the source providers
// and the three analyzers, and returns the assembled pipeline. m may be nil.
func Build(ctx context.Context, cfg model.Config, logger *slog.Logger, m *metrics.Metrics) (*System, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rules, claims, closeStore, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	sys := &System{RuleStore: rules, Claims: claims, close: closeStore}
	fail := func(err error) (*System, error) {
		_ = sys.Close()
		return nil, err
	}

	providers, err := sources.NewProviders(cfg, logger)
	if err != nil {
		return fail(fmt.Errorf("source providers: %w", err))
	}
	if cfg.Sources.KnowledgeBase {
		cred := sources.NewClassifier(cfg.Sources).Credibility(model.SourceInternal)
		providers = append([]sources.Provider{factcheck.NewKnowledgeProvider(claims, cred)}, providers...)
	}

	checker, err := factcheck.New(cfg.FactCheck,
		factcheck.WithProviders(providers...),
		factcheck.WithCache(cache.New(cfg.Cache), cfg.Cache.TTL),
		factcheck.WithMetrics(m),
		factcheck.WithLogger(logger.With("component", "fact_checker")),
	)
	if err != nil {
		return fail(fmt.Errorf("fact checker: %w", err))
	}

	entities, err := extract.NewEntityExtractor()
	if err != nil {
		return fail(fmt.Errorf("entity extractor: %w", err))
	}
	engine, err := compliance.New(ctx, cfg.Compliance,
		compliance.WithRuleStore(rules),
		compliance.WithEntityExtractor(entities),
		compliance.WithLogger(logger.With("component", "compliance")),
	)
	if err != nil {
		return fail(fmt.Errorf("compliance engine: %w", err))
	}

	analyzer, err := logic.New(cfg.Logic, logic.WithLogger(logger.With("component", "logic")))
	if err != nil {
		return fail(fmt.Errorf("logic analyzer: %w", err))
	}

	sys.Rules = engine
	sys.Verifier = New(aggregate.New(cfg.Aggregation),
		[]Analyzer{checker, engine, analyzer},
		WithKnowledgeBase(store.NewKnowledge(rules, claims, logger)),
		WithMetrics(m),
		WithLogger(logger),
	)
	logger.Debug("Pipeline ready", "providers", len(providers), "rules", len(engine.GetAllRules()))
	return sys, nil
}
