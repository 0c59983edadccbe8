// Package factcheck verifies the factual claims of a document against a
// curated knowledge base and pluggable external source providers.
package factcheck

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/extract"
	"github.com/ppiankov/veracity/internal/metrics"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/sources"
)

const availabilityTimeout = 3 * time.Second

// Checker is the fact-checking analyzer
type Checker struct {
	cfg       model.FactCheckConfig
	extractor *extract.ClaimExtractor
	providers []sources.Provider
	cache     cache.Cache
	cacheTTL  time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Checker
type Option func(*Checker)

// WithProviders registers source providers; the checker works with none
func WithProviders(p ...sources.Provider) Option {
	return func(c *Checker) { c.providers = append(c.providers, p...) }
}

// WithCache memoizes provider results per (provider, domain, claim)
func WithCache(cc cache.Cache, ttl time.Duration) Option {
	return func(c *Checker) { c.cache, c.cacheTTL = cc, ttl }
}

func WithMetrics(m *metrics.Metrics) Option { return func(c *Checker) { c.metrics = m } }
func WithLogger(l *slog.Logger) Option      { return func(c *Checker) { c.logger = l } }

// WithExtractor replaces the embedded-table claim extractor
func WithExtractor(e *extract.ClaimExtractor) Option {
	return func(c *Checker) { c.extractor = e }
}

// New creates a Checker
func New(cfg model.FactCheckConfig, opts ...Option) (*Checker, error) {
	c := &Checker{
		cfg:    cfg,
		cache:  cache.Nop{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.extractor == nil {
		e, err := extract.NewClaimExtractor()
		if err != nil {
			return nil, fmt.Errorf("claim extractor: %w", err)
		}
		c.extractor = e
	}
	if c.cfg.MaxConcurrentClaims <= 0 {
		c.cfg.MaxConcurrentClaims = 5
	}
	return c, nil
}

// Name identifies the analyzer in issues and audit entries
func (c *Checker) Name() model.ModuleSource { return model.ModuleFactChecker }

// ExtractClaims returns the checkable claims of content, in document order
func (c *Checker) ExtractClaims(content model.ParsedContent) []model.Claim {
	return c.extractor.Extract(content.ExtractedText)
}

// VerifyClaim checks a single claim against every available provider
func (c *Checker) VerifyClaim(ctx context.Context, claim model.Claim, domain model.Domain) (model.VerifiedClaim, error) {
	providers := c.available(ctx)
	return c.verify(ctx, claim, domain, providers, c.cfg.ProviderTimeout)
}

// CheckFacts extracts and verifies every claim of the request with bounded
// concurrency. Claims come back in document order.
func (c *Checker) CheckFacts(ctx context.Context, req model.VerificationRequest) (model.FactCheckingResult, error) {
	result := model.FactCheckingResult{
		Claims:            []model.VerifiedClaim{},
		Issues:            []model.Issue{},
		OverallConfidence: 100,
	}

	claims := c.ExtractClaims(req.Content)
	if len(claims) == 0 {
		return result, nil
	}
	if c.cfg.MaxClaims > 0 && len(claims) > c.cfg.MaxClaims {
		c.logger.Warn("Claim limit reached, truncating", "claims", len(claims), "limit", c.cfg.MaxClaims)
		claims = claims[:c.cfg.MaxClaims]
	}

	providers := c.available(ctx)
	timeout := urgencyTimeout(c.cfg.ProviderTimeout, req.Urgency)

	verified := make([]model.VerifiedClaim, len(claims))
	errs := make([]error, len(claims))
	sem := semaphore.NewWeighted(int64(c.cfg.MaxConcurrentClaims))
	var wg sync.WaitGroup

	for i, claim := range claims {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			break
		}
		wg.Add(1)
		go func(idx int, cl model.Claim) {
			defer wg.Done()
			defer sem.Release(1)
			verified[idx], errs[idx] = c.verify(ctx, cl, req.Domain, providers, timeout)
		}(i, claim)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return result, err
		}
	}

	threshold := c.cfg.Threshold(req.Domain)
	var weighted, weights float64
	for _, vc := range verified {
		result.Claims = append(result.Claims, vc)
		if tookPosition(vc.Results) {
			weighted += vc.Salience() * vc.Confidence
			weights += vc.Salience()
		}
		if issue, ok := c.issueFor(vc, threshold); ok {
			result.Issues = append(result.Issues, issue)
		}
	}
	if weights > 0 {
		result.OverallConfidence = model.ClampPercent(weighted / weights)
	}
	return result, nil
}

// Analyze runs CheckFacts and reports its issues and verified claims
func (c *Checker) Analyze(ctx context.Context, req model.VerificationRequest) (model.AnalysisReport, error) {
	res, err := c.CheckFacts(ctx, req)
	if err != nil {
		return model.AnalysisReport{}, err
	}
	return model.AnalysisReport{Issues: res.Issues, VerifiedClaims: res.Claims}, nil
}

// available returns the providers that answer IsAvailable within a short
// deadline, probed concurrently
func (c *Checker) available(ctx context.Context) []sources.Provider {
	if len(c.providers) == 0 {
		return nil
	}
	ok := make([]bool, len(c.providers))
	var wg sync.WaitGroup
	for i, p := range c.providers {
		wg.Add(1)
		go func(idx int, p sources.Provider) {
			defer wg.Done()
			actx, cancel := context.WithTimeout(ctx, availabilityTimeout)
			defer cancel()
			ok[idx] = p.IsAvailable(actx)
		}(i, p)
	}
	wg.Wait()

	var out []sources.Provider
	for i, p := range c.providers {
		if ok[i] {
			out = append(out, p)
		} else {
			c.logger.Warn("Source provider unavailable, skipping", "provider", p.Name())
		}
	}
	return out
}

// verify fans the claim out to every provider. Queries run detached from
// ctx under their own timeout; if ctx ends first the claim is abandoned and
// late results are dropped.
func (c *Checker) verify(ctx context.Context, claim model.Claim, domain model.Domain, providers []sources.Provider, timeout time.Duration) (model.VerifiedClaim, error) {
	type answer struct {
		idx    int
		result model.SourceResult
	}

	answers := make(chan answer, len(providers))
	detached := context.WithoutCancel(ctx)
	for i, p := range providers {
		go func(idx int, p sources.Provider) {
			answers <- answer{idx: idx, result: c.query(detached, p, claim.Text, domain, timeout)}
		}(i, p)
	}

	results := make([]model.SourceResult, len(providers))
	for range providers {
		select {
		case a := <-answers:
			results[a.idx] = a.result
		case <-ctx.Done():
			return model.VerifiedClaim{}, fmt.Errorf("verify claim: %w", ctx.Err())
		}
	}

	return c.combine(claim, domain, results), nil
}

// query runs one provider with a timeout and the result cache. Failures
// degrade to an empty result carrying the error text.
func (c *Checker) query(ctx context.Context, p sources.Provider, claim string, domain model.Domain, timeout time.Duration) model.SourceResult {
	key := cache.Key(p.Name(), string(domain), claim)
	var cached model.SourceResult
	if cache.GetJSON(c.cache, key, &cached) {
		return cached
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := safeQuery(ctx, p, claim, domain)
	elapsed := time.Since(start)
	c.metrics.ObserveProvider(p.Name(), elapsed, err != nil)
	if err != nil {
		c.logger.Warn("Source query failed", "provider", p.Name(), "error", err)
		return model.SourceResult{
			Provider:    p.Name(),
			Sources:     []model.Source{},
			QueryTimeMs: elapsed.Milliseconds(),
			Error:       err.Error(),
		}
	}

	out := *res
	out.Provider = p.Name()
	out.Confidence = model.ClampPercent(out.Confidence)
	if err := cache.SetJSON(c.cache, key, out, c.cacheTTL); err != nil {
		c.logger.Debug("Cache write failed", "provider", p.Name(), "error", err)
	}
	return out
}

func safeQuery(ctx context.Context, p sources.Provider, claim string, domain model.Domain) (res *model.SourceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()
	res, err = p.Query(ctx, claim, domain)
	if err == nil && res == nil {
		err = fmt.Errorf("provider returned no result")
	}
	return res, err
}

// combine reduces the provider results into a VerifiedClaim using a
// credibility-weighted mean over the results that took a position
func (c *Checker) combine(claim model.Claim, domain model.Domain, results []model.SourceResult) model.VerifiedClaim {
	vc := model.VerifiedClaim{
		FactualClaim: model.FactualClaim{
			Statement: claim.Text,
			Sources:   []model.Source{},
			Domain:    domain,
		},
		Status:   model.ClaimUnverified,
		Location: claim.Location,
		Results:  results,
	}

	var weighted, weights float64
	for _, r := range results {
		vc.Sources = append(vc.Sources, r.Sources...)
		if !hasPosition(r) {
			continue
		}

		w := c.weight(r.Sources)
		weighted += w * r.Confidence
		weights += w

		switch {
		case r.Contradicts():
			vc.Contradicting++
			vc.Contradictions = append(vc.Contradictions, r.Contradictions...)
		case encyclopediaOnly(r.Sources) && r.Confidence < c.cfg.EncyclopediaSupportThreshold:
			// Too weak to count as support on its own
		default:
			vc.Supporting++
			vc.Evidence = append(vc.Evidence, r.Evidence...)
		}
	}
	if weights == 0 {
		return vc
	}

	vc.Confidence = model.ClampPercent(weighted / weights)
	switch {
	case vc.Supporting > 0 && vc.Confidence >= c.cfg.Threshold(domain):
		vc.Status = model.ClaimSupported
		vc.Verified = true
	case vc.Contradicting > 0:
		vc.Status = model.ClaimContradicted
	}
	return vc
}

// weight is the credibility of the strongest source behind a result.
// Government sources never weigh less than the government baseline.
func (c *Checker) weight(srcs []model.Source) float64 {
	w := 0.0
	for _, s := range srcs {
		cred := s.CredibilityScore
		if s.SourceType == model.SourceGovernment && cred < c.cfg.GovernmentBaseline {
			cred = c.cfg.GovernmentBaseline
		}
		w = max(w, cred)
	}
	if w <= 0 {
		w = 1
	}
	return w
}

func hasPosition(r model.SourceResult) bool {
	return len(r.Sources) > 0 && (r.IsSupported || r.Contradicts())
}

// tookPosition reports whether any provider supported or disputed the claim
func tookPosition(results []model.SourceResult) bool {
	return slices.ContainsFunc(results, hasPosition)
}

func encyclopediaOnly(srcs []model.Source) bool {
	for _, s := range srcs {
		if s.SourceType != model.SourceEncyclopedia {
			return false
		}
	}
	return len(srcs) > 0
}

// issueFor reports a factual_error when the claim's confidence is under
// the domain threshold and at least one source contradicts it
func (c *Checker) issueFor(vc model.VerifiedClaim, threshold float64) (model.Issue, bool) {
	if vc.Contradicting == 0 || vc.Confidence >= threshold {
		return model.Issue{}, false
	}

	severity := model.SeverityMedium
	if vc.Confidence < c.cfg.HighSeverityBelow {
		severity = model.SeverityHigh
	}
	for _, r := range vc.Results {
		if !r.Contradicts() {
			continue
		}
		for _, s := range r.Sources {
			if s.SourceType == model.SourceGovernment && s.CredibilityScore >= c.cfg.CriticalCredibility {
				severity = model.SeverityCritical
			}
		}
	}

	evidence := slices.Clone(vc.Contradictions)
	for _, r := range vc.Results {
		if r.Contradicts() {
			for _, s := range r.Sources {
				evidence = append(evidence, sourceLabel(s))
			}
		}
	}

	return model.Issue{
		ID:           uuid.NewString(),
		Type:         model.IssueFactualError,
		Subtype:      string(vc.Status),
		Severity:     severity,
		Location:     vc.Location,
		Description:  fmt.Sprintf("Claim is contradicted by %d source(s) (confidence %.0f%%): %q", vc.Contradicting, vc.Confidence, vc.Statement),
		Evidence:     evidence,
		SuggestedFix: "Correct the statement or cite an authoritative source that supports it",
		Confidence:   model.ClampUnit((100 - vc.Confidence) / 100),
		ModuleSource: model.ModuleFactChecker,
	}, true
}

func sourceLabel(s model.Source) string {
	if s.URL == "" {
		return fmt.Sprintf("%s [%s, credibility %.0f]", s.Name, s.SourceType, s.CredibilityScore)
	}
	return fmt.Sprintf("%s <%s> [%s, credibility %.0f]", s.Name, s.URL, s.SourceType, s.CredibilityScore)
}

// urgencyTimeout tightens the per-provider timeout for urgent requests
func urgencyTimeout(base time.Duration, u model.Urgency) time.Duration {
	switch model.Urgency(strings.ToLower(string(u))) {
	case model.UrgencyCritical:
		return base / 2
	case model.UrgencyHigh:
		return base * 3 / 4
	default:
		return base
	}
}
