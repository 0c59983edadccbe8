package sources

import (
	"net"
	"net/url"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Classifier maps evidence URLs to a source type and a credibility score
type Classifier struct {
	credibility map[model.SourceType]float64
	suffixes    []suffixRule
}

type suffixRule struct {
	suffix string
	typ    model.SourceType
}

// NewClassifier builds a classifier from the configured domain lists.
// Government domains are checked first, then academic, encyclopedia, news.
func NewClassifier(cfg model.SourcesConfig) *Classifier {
	c := &Classifier{credibility: make(map[model.SourceType]float64)}
	for typ, score := range model.DefaultConfig().Sources.Credibility {
		c.credibility[typ] = score
	}
	for typ, score := range cfg.Credibility {
		c.credibility[typ] = model.ClampPercent(score)
	}

	add := func(typ model.SourceType, domains []string) {
		for _, d := range domains {
			c.suffixes = append(c.suffixes, suffixRule{suffix: strings.ToLower(d), typ: typ})
		}
	}
	add(model.SourceGovernment, cfg.GovernmentDomains)
	add(model.SourceAcademic, cfg.AcademicDomains)
	add(model.SourceEncyclopedia, cfg.EncyclopediaDomains)
	add(model.SourceNews, cfg.NewsDomains)
	return c
}

// Classify returns the source type for rawURL. Unparseable and unknown
// URLs are SourceOther.
func (c *Classifier) Classify(rawURL string) model.SourceType {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.SourceOther
	}
	host := strings.ToLower(parsed.Host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	for _, rule := range c.suffixes {
		if matchesDomain(host, rule.suffix) {
			return rule.typ
		}
	}
	return model.SourceOther
}

// Credibility returns the configured credibility for a source type
func (c *Classifier) Credibility(typ model.SourceType) float64 {
	if score, ok := c.credibility[typ]; ok {
		return score
	}
	return c.credibility[model.SourceOther]
}

// Source builds a classified Source for a named URL
func (c *Classifier) Source(name, rawURL string) model.Source {
	typ := c.Classify(rawURL)
	return model.Source{
		Name:             name,
		URL:              rawURL,
		CredibilityScore: c.Credibility(typ),
		SourceType:       typ,
	}
}

// matchesDomain reports whether host falls under pattern. Patterns starting
// with a dot are TLD-style suffixes (".gov"); others match the domain itself
// or any subdomain ("wikipedia.org" matches "en.wikipedia.org").
func matchesDomain(host, pattern string) bool {
	if strings.HasPrefix(pattern, ".") {
		return strings.HasSuffix(host, pattern)
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
