package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/veracity/internal/model"
)

const (
	wikipediaName       = "wikipedia"
	wikipediaMaxHits    = 3
	wikipediaMaxTerms   = 8
	wikipediaMinOverlap = 0.5
)

// WikipediaProvider checks claims against MediaWiki full-text search snippets
type WikipediaProvider struct {
	baseURL    string
	fetcher    *Fetcher
	classifier *Classifier
	now        func() time.Time
}

// NewWikipediaProvider creates a provider for the MediaWiki site at baseURL
func NewWikipediaProvider(baseURL string, fetcher *Fetcher, classifier *Classifier) *WikipediaProvider {
	return &WikipediaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		fetcher:    fetcher,
		classifier: classifier,
		now:        time.Now,
	}
}

func (p *WikipediaProvider) Name() string { return wikipediaName }

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			PageID  int    `json:"pageid"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

// IsAvailable pings the siteinfo endpoint
func (p *WikipediaProvider) IsAvailable(ctx context.Context) bool {
	var out map[string]any
	err := p.fetcher.GetJSON(ctx, p.baseURL+"/w/api.php?action=query&meta=siteinfo&format=json", &out)
	return err == nil
}

// Query searches for the claim's content words and grades the top snippets.
// A snippet that covers most of the claim supports it unless it disputes the
// claim, negates it, or states different numbers.
func (p *WikipediaProvider) Query(ctx context.Context, claim string, _ model.Domain) (*model.SourceResult, error) {
	start := time.Now()
	result := &model.SourceResult{Provider: wikipediaName}

	terms := Terms(claim)
	if len(terms) == 0 {
		result.QueryTimeMs = time.Since(start).Milliseconds()
		return result, nil
	}
	if len(terms) > wikipediaMaxTerms {
		terms = terms[:wikipediaMaxTerms]
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", strings.Join(terms, " "))
	q.Set("srlimit", fmt.Sprint(wikipediaMaxHits))
	q.Set("format", "json")
	q.Set("utf8", "1")

	var resp wikiSearchResponse
	if err := p.fetcher.GetJSON(ctx, p.baseURL+"/w/api.php?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("wikipedia search: %w", err)
	}

	claimNegated := HasNegation(claim)
	bestSupport, bestContra := 0.0, 0.0
	var bestTitle string

	for _, hit := range resp.Query.Search {
		snippet := StripHTML(hit.Snippet)
		overlap := Overlap(terms, Terms(hit.Title+" "+snippet))
		if overlap < wikipediaMinOverlap {
			continue
		}

		pageURL := p.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(hit.Title, " ", "_"))
		result.Sources = append(result.Sources, p.classifier.Source("Wikipedia: "+hit.Title, pageURL))

		switch {
		case Disputes(snippet) && !claimNegated:
			result.Contradictions = append(result.Contradictions, fmt.Sprintf("%s describes this as disputed: %q", hit.Title, snippet))
			bestContra = max(bestContra, overlap)
		case NegatesTerms(snippet, terms) != claimNegated:
			result.Contradictions = append(result.Contradictions, fmt.Sprintf("%s states the opposite: %q", hit.Title, snippet))
			bestContra = max(bestContra, overlap)
		case NumberConflict(claim, snippet):
			result.Contradictions = append(result.Contradictions, fmt.Sprintf("%s gives different figures: %q", hit.Title, snippet))
			bestContra = max(bestContra, overlap)
		default:
			result.Evidence = append(result.Evidence, fmt.Sprintf("%s: %q", hit.Title, snippet))
			if overlap > bestSupport {
				bestSupport, bestTitle = overlap, hit.Title
			}
		}
	}

	switch {
	case bestSupport > 0 && bestSupport >= bestContra:
		result.IsSupported = true
		result.Confidence = 50 + 40*bestSupport
		// Revision history is advisory; a failed lookup keeps the grade
		if activity, err := p.editActivity(ctx, bestTitle); err == nil && activity.Contested() {
			result.Confidence *= activity.discount()
			result.Evidence = append(result.Evidence, fmt.Sprintf("%s is under active dispute: %d edits and %d reverts in the last 30 days",
				bestTitle, activity.RecentEdits, activity.Reverts))
		}
	case bestContra > 0:
		result.Confidence = 40 - 30*bestContra
	}
	result.Confidence = model.ClampPercent(result.Confidence)
	result.QueryTimeMs = time.Since(start).Milliseconds()
	return result, nil
}
