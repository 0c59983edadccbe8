package extract

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/ppiankov/veracity/internal/model"
)

const contextRadius = 40

// Match is a raw span produced by a Matcher
type Match struct {
	Start int
	End   int
}

// Matcher finds spans of one entity type
type Matcher interface {
	Name() string
	Type() model.EntityType
	Confidence() float64
	Find(text string) []Match
}

type regexMatcher struct {
	name       string
	typ        model.EntityType
	confidence float64
	patterns   []*regexp.Regexp
}

func (m *regexMatcher) Name() string           { return m.name }
func (m *regexMatcher) Type() model.EntityType { return m.typ }
func (m *regexMatcher) Confidence() float64    { return m.confidence }

func (m *regexMatcher) Find(text string) []Match {
	var out []Match
	for _, re := range m.patterns {
		group := re.SubexpIndex("value")
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			start, end := idx[0], idx[1]
			if group > 0 && idx[2*group] >= 0 {
				start, end = idx[2*group], idx[2*group+1]
			}
			out = append(out, Match{Start: start, End: end})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// EntityExtractor pulls typed spans out of text using an ordered set of
// independent matchers
type EntityExtractor struct {
	matchers []Matcher
	logger   *slog.Logger
}

// EntityOption configures an EntityExtractor
type EntityOption func(*EntityExtractor)

// WithMatchers appends custom matchers after the pattern table
func WithMatchers(m ...Matcher) EntityOption {
	return func(e *EntityExtractor) { e.matchers = append(e.matchers, m...) }
}

// WithEntityLogger sets the logger used to report failing matchers
func WithEntityLogger(l *slog.Logger) EntityOption {
	return func(e *EntityExtractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEntityExtractor builds an extractor over the embedded pattern table
func NewEntityExtractor(opts ...EntityOption) (*EntityExtractor, error) {
	return NewEntityExtractorFromTable(EntityPatterns, opts...)
}

// NewEntityExtractorFromTable builds an extractor over a caller-supplied YAML table
func NewEntityExtractorFromTable(table []byte, opts ...EntityOption) (*EntityExtractor, error) {
	matchers, err := LoadEntityPatterns(table)
	if err != nil {
		return nil, err
	}
	e := &EntityExtractor{
		matchers: matchers,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ExtractSeq returns a lazy sequence of entities. Each call to the returned
// sequence re-runs extraction from the start.
func (e *EntityExtractor) ExtractSeq(text string) iter.Seq[model.ExtractedEntity] {
	return func(yield func(model.ExtractedEntity) bool) {
		if text == "" {
			return
		}
		loc := model.NewLocator(text)
		seen := make(map[string]struct{})

		for _, m := range e.matchers {
			matches, err := e.run(m, text)
			if err != nil {
				e.logger.Warn("entity matcher failed", "matcher", m.Name(), "error", err)
				continue
			}
			for _, match := range matches {
				value := text[match.Start:match.End]
				key := fmt.Sprintf("%s\x00%s\x00%d\x00%d", m.Type(), value, match.Start, match.End)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				ent := model.ExtractedEntity{
					Type:       m.Type(),
					Value:      value,
					Confidence: model.ClampUnit(m.Confidence()),
					Location:   loc.Locate(match.Start, match.End),
					Context:    surrounding(text, match.Start, match.End),
				}
				if !yield(ent) {
					return
				}
			}
		}
	}
}

// Extract collects ExtractSeq into a slice
func (e *EntityExtractor) Extract(text string) []model.ExtractedEntity {
	var out []model.ExtractedEntity
	for ent := range e.ExtractSeq(text) {
		out = append(out, ent)
	}
	return out
}

// run isolates a single matcher so a panic cannot take down the others
func (e *EntityExtractor) run(m Matcher, text string) (matches []Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	for _, match := range m.Find(text) {
		if match.Start < 0 || match.End > len(text) || match.End <= match.Start {
			continue
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// surrounding returns up to contextRadius bytes on either side of the span,
// snapped to rune boundaries
func surrounding(text string, start, end int) string {
	from := max(0, start-contextRadius)
	to := min(len(text), end+contextRadius)
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}
