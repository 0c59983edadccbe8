package factcheck

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/sources"
	"github.com/ppiankov/veracity/internal/store"
)

const (
	knowledgeName        = "knowledge_base"
	knowledgeMinOverlap  = 0.6
	knowledgeDefaultConf = 90
)

// KnowledgeProvider answers claims from the curated entries of a ClaimStore.
// Observed claims recorded by earlier verifications are never used as
// evidence.
type KnowledgeProvider struct {
	claims      store.ClaimStore
	credibility float64
}

// NewKnowledgeProvider wraps claims as a source provider whose evidence
// carries the given credibility
func NewKnowledgeProvider(claims store.ClaimStore, credibility float64) *KnowledgeProvider {
	return &KnowledgeProvider{claims: claims, credibility: credibility}
}

func (p *KnowledgeProvider) Name() string { return knowledgeName }

func (p *KnowledgeProvider) IsAvailable(context.Context) bool { return p.claims != nil }

// Query looks for a curated statement matching the claim, exactly or by
// content-word overlap, and compares polarity and numbers
func (p *KnowledgeProvider) Query(ctx context.Context, claim string, domain model.Domain) (*model.SourceResult, error) {
	start := time.Now()
	result := &model.SourceResult{Provider: knowledgeName}
	defer func() { result.QueryTimeMs = time.Since(start).Milliseconds() }()

	candidates, err := p.claims.ListClaims(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	key := store.ClaimKey(claim)
	claimTerms := sources.Terms(claim)

	var best *store.StoredClaim
	bestMatch := 0.0
	for i := range candidates {
		c := &candidates[i]
		if !c.Curated {
			continue
		}
		if c.Key == key {
			best, bestMatch = c, 1
			break
		}
		if m := sources.Overlap(claimTerms, sources.Terms(c.Statement)); m >= knowledgeMinOverlap && m > bestMatch {
			best, bestMatch = c, m
		}
	}
	if best == nil {
		return result, nil
	}

	conf := best.Confidence
	if conf <= 0 {
		conf = knowledgeDefaultConf
	}
	conf *= bestMatch

	agrees := best.IsTrue
	if sources.HasNegation(claim) != sources.HasNegation(best.Statement) {
		agrees = !agrees
	}
	if agrees && sources.NumberConflict(claim, best.Statement) {
		agrees = false
	}

	result.Sources = []model.Source{{
		Name:             "Knowledge base: " + best.Statement,
		CredibilityScore: p.credibility,
		SourceType:       model.SourceInternal,
	}}
	if agrees {
		result.IsSupported = true
		result.Confidence = conf
		result.Evidence = append(result.Evidence, best.Statement)
		result.Evidence = append(result.Evidence, best.Evidence...)
	} else {
		result.Confidence = 100 - conf
		result.Contradictions = []string{fmt.Sprintf("Knowledge base records: %q (true=%t)", best.Statement, best.IsTrue)}
	}
	return result, nil
}
