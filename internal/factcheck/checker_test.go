package factcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/store"
)

type fakeProvider struct {
	name     string
	down     bool
	delay    time.Duration
	respond  func(claim string) (*model.SourceResult, error)
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeProvider) Name() string                     { return f.name }
func (f *fakeProvider) IsAvailable(context.Context) bool { return !f.down }

func (f *fakeProvider) Query(ctx context.Context, claim string, _ model.Domain) (*model.SourceResult, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.respond(claim)
}

func contradicting(typ model.SourceType, cred, conf float64) func(string) (*model.SourceResult, error) {
	return func(string) (*model.SourceResult, error) {
		return &model.SourceResult{
			Sources:        []model.Source{{Name: "registry", SourceType: typ, CredibilityScore: cred}},
			Confidence:     conf,
			Contradictions: []string{"the registry states otherwise"},
		}, nil
	}
}

func supporting(typ model.SourceType, cred, conf float64) func(string) (*model.SourceResult, error) {
	return func(string) (*model.SourceResult, error) {
		return &model.SourceResult{
			Sources:     []model.Source{{Name: "reference", SourceType: typ, CredibilityScore: cred}},
			Confidence:  conf,
			IsSupported: true,
			Evidence:    []string{"reference agrees"},
		}, nil
	}
}

func request(text string, domain model.Domain) model.VerificationRequest {
	return model.VerificationRequest{
		Content: model.ParsedContent{ID: "doc-1", ExtractedText: text},
		Domain:  domain,
	}
}

const approvalClaim = "According to the FDA, the drug was approved in 1990."

func newChecker(t *testing.T, opts ...Option) *Checker {
	t.Helper()
	c, err := New(model.DefaultConfig().FactCheck, opts...)
	require.NoError(t, err)
	return c
}

func TestCheckFactsEmptyText(t *testing.T) {
	c := newChecker(t)
	res, err := c.CheckFacts(context.Background(), request("", model.DomainHealthcare))
	require.NoError(t, err)
	assert.Empty(t, res.Claims)
	assert.Empty(t, res.Issues)
	assert.Equal(t, 100.0, res.OverallConfidence)
}

func TestCheckFactsWithoutProviders(t *testing.T) {
	c := newChecker(t)
	res, err := c.CheckFacts(context.Background(), request(approvalClaim, model.DomainHealthcare))
	require.NoError(t, err)
	require.Len(t, res.Claims, 1)
	assert.Equal(t, model.ClaimUnverified, res.Claims[0].Status)
	assert.Empty(t, res.Issues)
	assert.Equal(t, 100.0, res.OverallConfidence)
}

func TestGovernmentContradictionIsCritical(t *testing.T) {
	gov := &fakeProvider{name: "gov", respond: contradicting(model.SourceGovernment, 95, 10)}
	c := newChecker(t, WithProviders(gov))

	res, err := c.CheckFacts(context.Background(), request(approvalClaim, model.DomainHealthcare))
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)

	issue := res.Issues[0]
	assert.Equal(t, model.IssueFactualError, issue.Type)
	assert.Equal(t, model.SeverityCritical, issue.Severity)
	assert.Equal(t, model.ModuleFactChecker, issue.ModuleSource)
	assert.InDelta(t, 0.9, issue.Confidence, 0.001)
	assert.NotEmpty(t, issue.Evidence)
	assert.Equal(t, 0, issue.Location.Start)
	assert.Equal(t, model.ClaimContradicted, res.Claims[0].Status)
}

func TestContradictionSeverityFromConfidence(t *testing.T) {
	tests := []struct {
		name string
		conf float64
		want model.Severity
	}{
		{"very low confidence", 20, model.SeverityHigh},
		{"below threshold", 50, model.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			news := &fakeProvider{name: "news", respond: contradicting(model.SourceNews, 60, tt.conf)}
			c := newChecker(t, WithProviders(news))
			res, err := c.CheckFacts(context.Background(), request(approvalClaim, model.DomainHealthcare))
			require.NoError(t, err)
			require.Len(t, res.Issues, 1)
			assert.Equal(t, tt.want, res.Issues[0].Severity)
		})
	}
}

func TestContradictionAboveThresholdIsNotAnIssue(t *testing.T) {
	strong := &fakeProvider{name: "academic", respond: supporting(model.SourceAcademic, 85, 95)}
	weak := &fakeProvider{name: "news", respond: contradicting(model.SourceNews, 20, 30)}
	c := newChecker(t, WithProviders(strong, weak))

	res, err := c.CheckFacts(context.Background(), request(approvalClaim, model.DomainLegal))
	require.NoError(t, err)
	assert.Empty(t, res.Issues)
	require.Len(t, res.Claims, 1)
	assert.Equal(t, model.ClaimSupported, res.Claims[0].Status)
	assert.Equal(t, 1, res.Claims[0].Contradicting)
	assert.Greater(t, res.Claims[0].Confidence, 70.0)
}

func TestWeakEncyclopediaSupportDoesNotCount(t *testing.T) {
	wiki := &fakeProvider{name: "wikipedia", respond: supporting(model.SourceEncyclopedia, 70, 55)}
	c := newChecker(t, WithProviders(wiki))

	vc, err := c.VerifyClaim(context.Background(), model.Claim{Text: approvalClaim}, model.DomainLegal)
	require.NoError(t, err)
	assert.Equal(t, 0, vc.Supporting)
	assert.Equal(t, model.ClaimUnverified, vc.Status)
	assert.InDelta(t, 55, vc.Confidence, 0.001)
}

func TestGovernmentBaselineWeight(t *testing.T) {
	gov := &fakeProvider{name: "gov", respond: supporting(model.SourceGovernment, 10, 90)}
	other := &fakeProvider{name: "blog", respond: contradicting(model.SourceOther, 40, 10)}
	c := newChecker(t, WithProviders(gov, other))

	vc, err := c.VerifyClaim(context.Background(), model.Claim{Text: approvalClaim}, model.DomainLegal)
	require.NoError(t, err)
	// (80*90 + 40*10) / 120
	assert.InDelta(t, 63.33, vc.Confidence, 0.01)
}

func TestFailingProviderDegrades(t *testing.T) {
	broken := &fakeProvider{name: "broken", respond: func(string) (*model.SourceResult, error) {
		return nil, errors.New("connection refused")
	}}
	good := &fakeProvider{name: "good", respond: supporting(model.SourceAcademic, 85, 90)}
	c := newChecker(t, WithProviders(broken, good))

	vc, err := c.VerifyClaim(context.Background(), model.Claim{Text: approvalClaim}, model.DomainLegal)
	require.NoError(t, err)
	require.Len(t, vc.Results, 2)
	assert.Contains(t, vc.Results[0].Error, "connection refused")
	assert.Equal(t, 0.0, vc.Results[0].Confidence)
	assert.Empty(t, vc.Results[0].Sources)
	assert.Equal(t, model.ClaimSupported, vc.Status)
}

func TestPanickingProviderDegrades(t *testing.T) {
	bad := &fakeProvider{name: "bad", respond: func(string) (*model.SourceResult, error) { panic("boom") }}
	c := newChecker(t, WithProviders(bad))

	vc, err := c.VerifyClaim(context.Background(), model.Claim{Text: approvalClaim}, model.DomainLegal)
	require.NoError(t, err)
	assert.Contains(t, vc.Results[0].Error, "panic")
}

func TestProviderTimeout(t *testing.T) {
	cfg := model.DefaultConfig().FactCheck
	cfg.ProviderTimeout = 30 * time.Millisecond
	slow := &fakeProvider{name: "slow", delay: time.Second, respond: supporting(model.SourceAcademic, 85, 90)}
	fast := &fakeProvider{name: "fast", respond: supporting(model.SourceAcademic, 85, 90)}
	c, err := New(cfg, WithProviders(slow, fast))
	require.NoError(t, err)

	start := time.Now()
	vc, err := c.VerifyClaim(context.Background(), model.Claim{Text: approvalClaim}, model.DomainLegal)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.NotEmpty(t, vc.Results[0].Error)
	assert.Equal(t, 1, vc.Supporting)
}

func TestUnavailableProviderSkipped(t *testing.T) {
	down := &fakeProvider{name: "down", down: true, respond: contradicting(model.SourceGovernment, 95, 5)}
	c := newChecker(t, WithProviders(down))

	vc, err := c.VerifyClaim(context.Background(), model.Claim{Text: approvalClaim}, model.DomainLegal)
	require.NoError(t, err)
	assert.Empty(t, vc.Results)
	assert.Equal(t, int32(0), down.calls.Load())
}

func TestCancelledRequestDiscardsResults(t *testing.T) {
	slow := &fakeProvider{name: "slow", delay: 200 * time.Millisecond, respond: supporting(model.SourceAcademic, 85, 90)}
	c := newChecker(t, WithProviders(slow))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.VerifyClaim(ctx, model.Claim{Text: approvalClaim}, model.DomainLegal)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultCache(t *testing.T) {
	p := &fakeProvider{name: "academic", respond: supporting(model.SourceAcademic, 85, 90)}
	c := newChecker(t, WithProviders(p), WithCache(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute))

	for range 2 {
		_, err := c.CheckFacts(context.Background(), request(approvalClaim, model.DomainLegal))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestBoundedClaimConcurrency(t *testing.T) {
	cfg := model.DefaultConfig().FactCheck
	cfg.MaxConcurrentClaims = 2
	p := &fakeProvider{name: "slowish", delay: 20 * time.Millisecond, respond: supporting(model.SourceAcademic, 85, 90)}
	c, err := New(cfg, WithProviders(p))
	require.NoError(t, err)

	var b strings.Builder
	for i := range 6 {
		fmt.Fprintf(&b, "According to the agency, site %d was inspected twice. ", i)
	}
	res, err := c.CheckFacts(context.Background(), request(b.String(), model.DomainLegal))
	require.NoError(t, err)
	require.Len(t, res.Claims, 6)
	assert.LessOrEqual(t, p.peak.Load(), int32(2))

	for i := 1; i < len(res.Claims); i++ {
		assert.Less(t, res.Claims[i-1].Location.Start, res.Claims[i].Location.Start)
	}
}

func TestOverallConfidenceIsSalienceWeighted(t *testing.T) {
	a := &fakeProvider{name: "a", respond: func(claim string) (*model.SourceResult, error) {
		if strings.Contains(claim, "1990") {
			return supporting(model.SourceAcademic, 80, 90)(claim)
		}
		return supporting(model.SourceAcademic, 80, 60)(claim)
	}}
	b := &fakeProvider{name: "b", respond: func(claim string) (*model.SourceResult, error) {
		if strings.Contains(claim, "1990") {
			return supporting(model.SourceAcademic, 80, 90)(claim)
		}
		return &model.SourceResult{}, nil
	}}
	c := newChecker(t, WithProviders(a, b))

	text := approvalClaim + " According to the registry, the plant employs 300 people."
	res, err := c.CheckFacts(context.Background(), request(text, model.DomainLegal))
	require.NoError(t, err)
	require.Len(t, res.Claims, 2)
	// (3*90 + 2*60) / 5
	assert.InDelta(t, 78, res.OverallConfidence, 0.01)
}

func TestIdempotentIssues(t *testing.T) {
	p := &fakeProvider{name: "gov", respond: contradicting(model.SourceGovernment, 95, 10)}
	c := newChecker(t, WithProviders(p))

	run := func() model.FactCheckingResult {
		res, err := c.CheckFacts(context.Background(), request(approvalClaim, model.DomainHealthcare))
		require.NoError(t, err)
		for i := range res.Issues {
			res.Issues[i].ID = ""
		}
		return res
	}
	first, second := run(), run()
	assert.Equal(t, first.Issues, second.Issues)
	assert.Equal(t, first.OverallConfidence, second.OverallConfidence)
}

func TestUrgencyTimeout(t *testing.T) {
	base := 10 * time.Second
	assert.Equal(t, 5*time.Second, urgencyTimeout(base, model.UrgencyCritical))
	assert.Equal(t, 7500*time.Millisecond, urgencyTimeout(base, model.UrgencyHigh))
	assert.Equal(t, base, urgencyTimeout(base, model.UrgencyLow))
	assert.Equal(t, base, urgencyTimeout(base, ""))
}

func TestKnowledgeProvider(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.UpsertClaim(ctx, store.StoredClaim{
		Statement: "The drug was approved in 1990", Domain: model.DomainHealthcare,
		IsTrue: true, Confidence: 95, Curated: true,
	}))
	require.NoError(t, mem.UpsertClaim(ctx, store.StoredClaim{
		Statement: "The clinic opened in 2001", Domain: model.DomainHealthcare,
		IsTrue: true, Confidence: 95,
	}))
	kb := NewKnowledgeProvider(mem, 90)

	tests := []struct {
		name        string
		claim       string
		supported   bool
		contradicts bool
	}{
		{"exact match", "The drug was approved in 1990.", true, false},
		{"negated", "The drug was not approved in 1990.", false, true},
		{"different year", "The drug was approved in 1995.", false, true},
		{"observed claims ignored", "The clinic opened in 2001.", false, false},
		{"unrelated", "Interest rates were raised in March.", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := kb.Query(ctx, tt.claim, model.DomainHealthcare)
			require.NoError(t, err)
			assert.Equal(t, tt.supported, res.IsSupported)
			assert.Equal(t, tt.contradicts, res.Contradicts())
			if tt.supported || tt.contradicts {
				require.Len(t, res.Sources, 1)
				assert.Equal(t, model.SourceInternal, res.Sources[0].SourceType)
			}
		})
	}
}

func TestKnowledgeProviderFeedsChecker(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.UpsertClaim(ctx, store.StoredClaim{
		Statement: "According to the FDA, the drug was approved in 1990", Domain: model.DomainHealthcare,
		IsTrue: true, Confidence: 95, Curated: true,
	}))
	c := newChecker(t, WithProviders(NewKnowledgeProvider(mem, 90)))

	text := "According to the FDA, the drug was approved in 1975."
	res, err := c.CheckFacts(ctx, request(text, model.DomainHealthcare))
	require.NoError(t, err)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, model.SeverityHigh, res.Issues[0].Severity)
}
