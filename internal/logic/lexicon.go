package logic

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLexicon is the built-in word list table
//
//go:embed lexicon.yaml
var DefaultLexicon []byte

// LexiconFile is the YAML shape of a lexicon
type LexiconFile struct {
	Negations        []string            `yaml:"negations"`
	NonNegating      []string            `yaml:"non_negating"`
	Contractions     map[string][]string `yaml:"contractions"`
	Copulas          []string            `yaml:"copulas"`
	Auxiliaries      []string            `yaml:"auxiliaries"`
	Stopwords        []string            `yaml:"stopwords"`
	QualifierPairs   [][2]string         `yaml:"qualifier_pairs"`
	QualifierAdverbs []string            `yaml:"qualifier_adverbs"`
	AntonymPairs     [][2]string         `yaml:"antonym_pairs"`
	Sentiment        struct {
		Positive []string `yaml:"positive"`
		Negative []string `yaml:"negative"`
	} `yaml:"sentiment"`
	Connectives []string `yaml:"connectives"`
	Pronouns    []string `yaml:"pronouns"`
	Temporal    struct {
		Before []string `yaml:"before"`
		After  []string `yaml:"after"`
	} `yaml:"temporal"`
	Sequence map[string]int `yaml:"sequence"`
	Causal   struct {
		Forward  []string `yaml:"forward"`
		Backward []string `yaml:"backward"`
	} `yaml:"causal"`
	EventFillers []string `yaml:"event_fillers"`
}

type wordSet map[string]bool

func newWordSet(words []string) wordSet {
	s := make(wordSet, len(words))
	for _, w := range words {
		s[strings.ToLower(w)] = true
	}
	return s
}

// pairSet records each unordered pair in both directions
type pairSet map[string]map[string]bool

func newPairSet(pairs [][2]string) pairSet {
	s := make(pairSet)
	add := func(a, b string) {
		if s[a] == nil {
			s[a] = make(map[string]bool)
		}
		s[a][b] = true
	}
	for _, p := range pairs {
		a, b := strings.ToLower(p[0]), strings.ToLower(p[1])
		add(a, b)
		add(b, a)
	}
	return s
}

func (s pairSet) has(a, b string) bool { return s[a][b] }

// phrase is a multi-word marker split into tokens
type phrase []string

func newPhrases(raw []string) []phrase {
	out := make([]phrase, 0, len(raw))
	for _, r := range raw {
		if f := strings.Fields(strings.ToLower(r)); len(f) > 0 {
			out = append(out, f)
		}
	}
	return out
}

// Lexicon is the compiled form of a LexiconFile
type Lexicon struct {
	negations    wordSet
	nonNegating  []phrase
	contractions map[string][]string
	copulas      wordSet
	auxiliaries  wordSet
	stopwords    wordSet
	qualifiers   pairSet
	qualWords    wordSet
	qualAdverbs  wordSet
	antonyms     pairSet
	antonymWords wordSet
	positive     wordSet
	negative     wordSet
	connectives  []phrase
	pronouns     wordSet
	before       []phrase
	after        []phrase
	sequence     map[string]int
	forward      []phrase
	backward     []phrase
	fillers      wordSet
}

// LoadLexicon parses a lexicon table
func LoadLexicon(data []byte) (*Lexicon, error) {
	var f LexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(f.Negations) == 0 || len(f.Copulas) == 0 {
		return nil, fmt.Errorf("lexicon must define negations and copulas")
	}

	l := &Lexicon{
		negations:    newWordSet(f.Negations),
		nonNegating:  newPhrases(f.NonNegating),
		contractions: make(map[string][]string, len(f.Contractions)),
		copulas:      newWordSet(f.Copulas),
		auxiliaries:  newWordSet(f.Auxiliaries),
		stopwords:    newWordSet(f.Stopwords),
		qualifiers:   newPairSet(f.QualifierPairs),
		qualWords:    make(wordSet),
		qualAdverbs:  newWordSet(f.QualifierAdverbs),
		antonyms:     newPairSet(f.AntonymPairs),
		antonymWords: make(wordSet),
		positive:     newWordSet(f.Sentiment.Positive),
		negative:     newWordSet(f.Sentiment.Negative),
		connectives:  newPhrases(f.Connectives),
		pronouns:     newWordSet(f.Pronouns),
		before:       newPhrases(f.Temporal.Before),
		after:        newPhrases(f.Temporal.After),
		sequence:     make(map[string]int, len(f.Sequence)),
		forward:      newPhrases(f.Causal.Forward),
		backward:     newPhrases(f.Causal.Backward),
		fillers:      newWordSet(f.EventFillers),
	}
	for k, v := range f.Contractions {
		l.contractions[strings.ToLower(k)] = v
	}
	for w := range l.qualifiers {
		l.qualWords[w] = true
	}
	for w := range l.antonyms {
		l.antonymWords[w] = true
	}
	for k, v := range f.Sequence {
		l.sequence[strings.ToLower(k)] = v
	}
	return l, nil
}

// isContent reports whether a token carries topical meaning
func (l *Lexicon) isContent(tok string) bool {
	if len(tok) < 2 && !isDigits(tok) {
		return false
	}
	return l.isWord(tok)
}

// isWord is isContent without the length floor, so one-letter names like
// "X" can still be subjects
func (l *Lexicon) isWord(tok string) bool {
	return !l.stopwords[tok] && !l.copulas[tok] && !l.auxiliaries[tok] &&
		!l.negations[tok] && !l.qualWords[tok] && !l.qualAdverbs[tok] && !l.pronouns[tok]
}

// polarity is the sentiment balance of tokens: positive minus negative
func (l *Lexicon) polarity(tokens []string) int {
	p := 0
	for _, t := range tokens {
		switch {
		case l.positive[t]:
			p++
		case l.negative[t]:
			p--
		}
	}
	return p
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
