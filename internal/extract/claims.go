package extract

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/model"
)

type claimPattern struct {
	name string
	re   *regexp.Regexp
}

// ClaimExtractor segments text into checkable factual assertions
type ClaimExtractor struct {
	keywords  []string
	patterns  []claimPattern
	hedges    []string
	minLength int
	maxLength int
}

// NewClaimExtractor creates a claim extractor over the embedded heuristic table
func NewClaimExtractor() (*ClaimExtractor, error) {
	return NewClaimExtractorFromTable(ClaimPatterns)
}

// NewClaimExtractorFromTable creates a claim extractor over a caller-supplied table
func NewClaimExtractorFromTable(table []byte) (*ClaimExtractor, error) {
	var file ClaimPatternFile
	if err := yaml.Unmarshal(table, &file); err != nil {
		return nil, fmt.Errorf("parse claim patterns: %w", err)
	}

	e := &ClaimExtractor{
		minLength: file.MinLength,
		maxLength: file.MaxLength,
	}
	if e.maxLength == 0 {
		e.maxLength = 500
	}
	for _, k := range file.Keywords {
		e.keywords = append(e.keywords, strings.ToLower(k))
	}
	for _, h := range file.Hedges {
		e.hedges = append(e.hedges, strings.ToLower(h))
	}
	for _, p := range file.Patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("claim pattern %q: %w", p.Name, err)
		}
		e.patterns = append(e.patterns, claimPattern{name: p.Name, re: re})
	}
	return e, nil
}

// ExtractSeq returns a lazy, restartable sequence of claims found in text
func (e *ClaimExtractor) ExtractSeq(text string) iter.Seq[model.Claim] {
	return func(yield func(model.Claim) bool) {
		seen := make(map[string]bool)
		for _, sentence := range SplitSentences(text) {
			if len(sentence.Text) < e.minLength || len(sentence.Text) > e.maxLength {
				continue
			}
			if strings.HasSuffix(sentence.Text, "?") {
				continue
			}
			heuristic := e.match(sentence.Text)
			if heuristic == "" {
				continue
			}

			// Only match once per distinct statement
			key := strings.ToLower(sentence.Text)
			if seen[key] {
				continue
			}
			seen[key] = true

			claim := model.Claim{
				Text:      sentence.Text,
				Heuristic: heuristic,
				Sentence:  sentence.Index,
				Location:  sentence.Location,
			}
			if !yield(claim) {
				return
			}
		}
	}
}

// Extract collects ExtractSeq into a slice
func (e *ClaimExtractor) Extract(text string) []model.Claim {
	var claims []model.Claim
	for c := range e.ExtractSeq(text) {
		claims = append(claims, c)
	}
	return claims
}

// match returns the heuristic that selected the sentence, or "" when it is
// not a claim
func (e *ClaimExtractor) match(sentence string) string {
	lower := strings.ToLower(sentence)
	for _, h := range e.hedges {
		if containsWord(lower, h) {
			return ""
		}
	}
	for _, keyword := range e.keywords {
		if strings.Contains(lower, keyword) {
			return "keyword:" + keyword
		}
	}
	for _, p := range e.patterns {
		if p.re.MatchString(sentence) {
			return "pattern:" + p.name
		}
	}
	return ""
}

// containsWord reports whether phrase occurs in s on word boundaries
func containsWord(s, phrase string) bool {
	for i := 0; ; {
		idx := strings.Index(s[i:], phrase)
		if idx < 0 {
			return false
		}
		start := i + idx
		end := start + len(phrase)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
