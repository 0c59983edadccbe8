package logic

import (
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/veracity/internal/extract"
)

// statement is a sentence broken into the parts the detectors compare
type statement struct {
	extract.Sentence
	tokens     []string
	subject    []string // Stemmed content words before the anchor
	subjectKey string
	predicate  []string // Raw predicate tokens, negations and qualifiers removed
	predSet    map[string]bool
	negated    bool
	qualifiers []string
	polarity   int // Predicate sentiment, flipped when negated
	content    map[string]bool
}

// tokenize lowercases text into words, expanding contractions and dropping
// possessive suffixes. Hyphens and apostrophes inside a word are kept.
func (l *Lexicon) tokenize(text string) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '-' && r != '’'
	})
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.ReplaceAll(w, "’", "'")
		w = strings.Trim(w, "'-")
		if w == "" {
			continue
		}
		if exp, ok := l.contractions[w]; ok {
			out = append(out, exp...)
			continue
		}
		w = strings.TrimSuffix(w, "'s")
		out = append(out, w)
	}
	return out
}

// stem folds simple plurals so "records" and "record" compare equal
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us"):
		return w[:len(w)-1]
	}
	return w
}

// parse splits s at its anchor: the first copula, auxiliary, or qualifier
// adverb, falling back to the first polar or antonym word. Without an
// anchor the statement has no subject and only takes part in
// document-level checks.
func (l *Lexicon) parse(s extract.Sentence) statement {
	st := statement{
		Sentence: s,
		tokens:   l.tokenize(s.Text),
		predSet:  make(map[string]bool),
		content:  make(map[string]bool),
	}
	for _, t := range st.tokens {
		if l.isContent(t) {
			st.content[stem(t)] = true
		}
	}

	anchor := slices.IndexFunc(st.tokens, func(t string) bool {
		return l.copulas[t] || l.auxiliaries[t] || l.qualAdverbs[t]
	})
	if anchor < 0 {
		anchor = slices.IndexFunc(st.tokens, func(t string) bool {
			return l.antonymWords[t] || l.positive[t] || l.negative[t]
		})
	}
	if anchor <= 0 {
		return st
	}

	idiom := l.nonNegatingSpans(st.tokens)
	for k, t := range st.tokens[:anchor] {
		switch {
		case idiom[k]:
		case l.qualWords[t]:
			st.qualifiers = append(st.qualifiers, t)
		case l.isWord(t):
			st.subject = append(st.subject, stem(t))
		}
	}
	for k, t := range st.tokens[anchor:] {
		if idiom[anchor+k] {
			continue
		}
		if l.qualWords[t] {
			st.qualifiers = append(st.qualifiers, t)
		}
		switch {
		case l.negations[t]:
			st.negated = true
		case l.isContent(t):
			st.predicate = append(st.predicate, t)
			st.predSet[stem(t)] = true
		case l.positive[t] || l.negative[t] || l.antonymWords[t]:
			st.predicate = append(st.predicate, t)
		}
	}

	if len(st.subject) > 0 {
		key := slices.Clone(st.subject)
		sort.Strings(key)
		st.subjectKey = strings.Join(slices.Compact(key), " ")
	}
	st.polarity = l.polarity(st.predicate)
	if st.negated {
		st.polarity = -st.polarity
	}
	return st
}

// nonNegatingSpans marks the token positions covered by phrases such as
// "not only" that read as negations but assert the predicate
func (l *Lexicon) nonNegatingSpans(tokens []string) map[int]bool {
	var covered map[int]bool
	for _, p := range l.nonNegating {
		for i := 0; i+len(p) <= len(tokens); i++ {
			if !slices.Equal(tokens[i:i+len(p)], p) {
				continue
			}
			if covered == nil {
				covered = make(map[int]bool)
			}
			for k := range p {
				covered[i+k] = true
			}
		}
	}
	return covered
}

func (l *Lexicon) parseAll(text string) []statement {
	sentences := extract.SplitSentences(text)
	out := make([]statement, len(sentences))
	for i, s := range sentences {
		out[i] = l.parse(s)
	}
	return out
}

// similar reports whether two token sets name the same thing: equal, one
// containing the other, or sharing at least half of their union
func similar(a, b map[string]bool) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	if shared == 0 {
		return false
	}
	if shared == len(a) || shared == len(b) {
		return true
	}
	union := len(a) + len(b) - shared
	return float64(shared)/float64(union) >= 0.5
}

// event reduces a clause to the content words naming what happened
func (l *Lexicon) event(tokens []string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range tokens {
		if l.isContent(t) && !l.fillers[t] {
			out[stem(t)] = true
		}
	}
	return out
}

// hasPhrase returns the index of the first occurrence of p in tokens, or -1
func hasPhrase(tokens []string, p phrase) int {
	for i := 0; i+len(p) <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+len(p)], p) {
			return i
		}
	}
	return -1
}
