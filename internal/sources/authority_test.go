package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/veracity/internal/model"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(model.DefaultConfig().Sources)

	tests := []struct {
		url  string
		want model.SourceType
	}{
		{"https://www.hhs.gov/hipaa/index.html", model.SourceGovernment},
		{"https://www.legislation.gov.uk/ukpga/2018/12", model.SourceGovernment},
		{"https://eur-lex.europa.eu/eli/reg/2016/679/oj", model.SourceGovernment},
		{"https://cs.stanford.edu/paper.pdf", model.SourceAcademic},
		{"https://doi.org/10.1000/182", model.SourceAcademic},
		{"https://en.wikipedia.org/wiki/HIPAA", model.SourceEncyclopedia},
		{"https://www.reuters.com/markets/", model.SourceNews},
		{"https://example.com/blog", model.SourceOther},
		{"http://localhost:8080/x", model.SourceOther},
		{"not a url", model.SourceOther},
		{"https://notwikipedia.org/", model.SourceOther},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.url))
		})
	}
}

func TestClassifier_Credibility(t *testing.T) {
	cfg := model.DefaultConfig().Sources
	cfg.Credibility = map[model.SourceType]float64{model.SourceNews: 150}
	c := NewClassifier(cfg)

	assert.Equal(t, 95.0, c.Credibility(model.SourceGovernment))
	assert.Equal(t, 70.0, c.Credibility(model.SourceEncyclopedia))
	assert.Equal(t, 100.0, c.Credibility(model.SourceNews), "overrides are clamped")
	assert.Equal(t, 40.0, c.Credibility(model.SourceType("unknown")))

	src := c.Source("HHS", "https://www.hhs.gov/")
	assert.Equal(t, model.SourceGovernment, src.SourceType)
	assert.Equal(t, 95.0, src.CredibilityScore)
}
