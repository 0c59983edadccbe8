package logic

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/veracity/internal/model"
)

// Coherence issue subtypes
const (
	SubtypeTopicShift       = "semantic_incoherence"
	SubtypeSentiment        = "sentiment_conflict"
	SubtypeTemporalSequence = "temporal_inconsistency"
	SubtypeCausal           = "causal_inconsistency"
	SubtypeReference        = "reference_error"
)

// CoherenceValidator runs the document-level checks: topic shifts,
// sentiment reversals, sequence order, causal cycles and dangling pronouns
type CoherenceValidator struct {
	lex *Lexicon
	cfg model.LogicConfig
}

// NewCoherenceValidator creates a validator over lex
func NewCoherenceValidator(lex *Lexicon, cfg model.LogicConfig) *CoherenceValidator {
	if cfg.Window <= 0 {
		cfg.Window = 8
	}
	if cfg.ReferenceLookback <= 0 {
		cfg.ReferenceLookback = 2
	}
	if cfg.MinTopicTokens <= 0 {
		cfg.MinTopicTokens = 3
	}
	return &CoherenceValidator{lex: lex, cfg: cfg}
}

// Validate returns the coherence issues of text. Fewer than two sentences
// yield none.
func (v *CoherenceValidator) Validate(text string) []model.Issue {
	return v.validate(text, v.lex.parseAll(text))
}

func (v *CoherenceValidator) validate(text string, stmts []statement) []model.Issue {
	if len(stmts) < 2 {
		return nil
	}
	var out []model.Issue
	out = append(out, v.topicShifts(text, stmts)...)
	out = append(out, v.sentimentConflicts(stmts)...)
	out = append(out, v.sequenceOrder(text, stmts)...)
	out = append(out, v.causalCycles(stmts)...)
	out = append(out, v.danglingReferences(stmts)...)
	return out
}

// topicShifts flags adjacent sentences in the same paragraph that share no
// vocabulary and are not bridged by a connective or a pronoun
func (v *CoherenceValidator) topicShifts(text string, stmts []statement) []model.Issue {
	var out []model.Issue
	for i := 1; i < len(stmts); i++ {
		prev, cur := &stmts[i-1], &stmts[i]
		if newParagraph(text, prev, cur) {
			continue
		}
		if len(prev.content) < v.cfg.MinTopicTokens || len(cur.content) < v.cfg.MinTopicTokens {
			continue
		}
		if overlaps(prev.content, cur.content) || v.bridged(cur) {
			continue
		}
		out = append(out, v.issue(SubtypeTopicShift, model.SeverityLow, cur.Location,
			v.cfg.TopicShiftConfidence,
			"Abrupt topic change with no transition from the previous sentence",
			"Add a transition or move the sentence to the paragraph it belongs to",
			prev.Text, cur.Text))
	}
	return out
}

// bridged reports whether a sentence opens with a connective or refers back
// with a pronoun
func (v *CoherenceValidator) bridged(s *statement) bool {
	head := s.tokens
	if len(head) > 4 {
		head = head[:4]
	}
	for _, p := range v.lex.connectives {
		if hasPhrase(head, p) >= 0 {
			return true
		}
	}
	for _, t := range head {
		if v.lex.pronouns[t] {
			return true
		}
	}
	return false
}

// sentimentConflicts flags opposite sentiment about the same referent within
// the window. Pairs with two parsed subjects are left to the contradiction
// detector: equal subjects are an implicit contradiction there, and
// different subjects ("new system", "old system") never conflict. The
// remaining case is a statement without a parsed subject that mentions the
// other statement's subject.
func (v *CoherenceValidator) sentimentConflicts(stmts []statement) []model.Issue {
	var out []model.Issue
	for j := range stmts {
		b := &stmts[j]
		pb := v.sentiment(b)
		if pb == 0 {
			continue
		}
		for i := max(0, j-v.cfg.Window); i < j; i++ {
			a := &stmts[i]
			if (a.subjectKey == "") == (b.subjectKey == "") {
				continue
			}
			if v.sentiment(a)*pb >= 0 {
				continue
			}
			topic := sharedReferent(a, b, v.lex)
			if topic == "" {
				continue
			}
			out = append(out, v.issue(SubtypeSentiment, model.SeverityMedium, b.Location,
				v.cfg.SentimentConfidence,
				fmt.Sprintf("Contradictory sentiment about %q", topic),
				"Reconcile the assessments or explain what changed between them",
				a.Text, b.Text))
			break
		}
	}
	return out
}

// sentiment is the whole-sentence polarity, flipped when negated
func (v *CoherenceValidator) sentiment(s *statement) int {
	p := v.lex.polarity(s.tokens)
	if s.negated {
		p = -p
	}
	return p
}

// sharedReferent returns a word of the subjectless statement that belongs to
// the other statement's subject and is not itself a sentiment word
func sharedReferent(a, b *statement, lex *Lexicon) string {
	subjected, other := a, b
	if a.subjectKey == "" {
		subjected, other = b, a
	}
	for _, t := range other.tokens {
		st := stem(t)
		if !other.content[st] || !slices.Contains(subjected.subject, st) || lex.positive[t] || lex.negative[t] {
			continue
		}
		return t
	}
	return ""
}

// sequenceOrder flags ordinal markers that go backwards within a paragraph,
// such as "Finally" followed by "First"
func (v *CoherenceValidator) sequenceOrder(text string, stmts []statement) []model.Issue {
	var out []model.Issue
	last, lastIdx := 0, -1
	for i := range stmts {
		s := &stmts[i]
		if i > 0 && newParagraph(text, &stmts[i-1], s) {
			last, lastIdx = 0, -1
		}
		if len(s.tokens) == 0 {
			continue
		}
		rank, ok := v.lex.sequence[s.tokens[0]]
		if !ok {
			continue
		}
		if lastIdx >= 0 && rank < last {
			out = append(out, v.issue(SubtypeTemporalSequence, model.SeverityMedium, s.Location,
				v.cfg.TemporalConfidence,
				fmt.Sprintf("%q appears after a later step in the same sequence", s.tokens[0]),
				"Reorder the steps so the sequence markers read in order",
				stmts[lastIdx].Text, s.Text))
		}
		last, lastIdx = rank, i
	}
	return out
}

// causalLink is "cause leads to effect", found in sentence idx
type causalLink struct {
	cause, effect int
	idx           int
}

// causalCycles builds a graph of causal claims and flags any claim that
// closes a cycle, including a plain reversal of an earlier claim
func (v *CoherenceValidator) causalCycles(stmts []statement) []model.Issue {
	var nodes []map[string]bool
	node := func(ev map[string]bool) int {
		for i, n := range nodes {
			if similar(n, ev) {
				return i
			}
		}
		nodes = append(nodes, ev)
		return len(nodes) - 1
	}

	var out []model.Issue
	var links []causalLink
	for i := range stmts {
		cause, effect, ok := v.causal(&stmts[i])
		if !ok {
			continue
		}
		link := causalLink{cause: node(cause), effect: node(effect), idx: i}
		if link.cause == link.effect {
			continue
		}
		if path := reaches(links, link.effect, link.cause); path != nil {
			evidence := []string{}
			for _, l := range path {
				evidence = append(evidence, stmts[l.idx].Text)
			}
			evidence = append(evidence, stmts[i].Text)
			out = append(out, v.issue(SubtypeCausal, model.SeverityMedium, stmts[i].Location,
				v.cfg.CausalConfidence,
				"Causal claim reverses or closes a loop with an earlier claim",
				"State the direction of cause and effect consistently",
				evidence...))
		}
		links = append(links, link)
	}
	return out
}

// causal splits a statement at its causal marker into cause and effect
func (v *CoherenceValidator) causal(s *statement) (map[string]bool, map[string]bool, bool) {
	try := func(markers []phrase, forward bool) (map[string]bool, map[string]bool, bool) {
		for _, p := range markers {
			idx := hasPhrase(s.tokens, p)
			if idx <= 0 {
				continue
			}
			left, right := v.lex.event(s.tokens[:idx]), v.lex.event(s.tokens[idx+len(p):])
			if len(left) == 0 || len(right) == 0 {
				continue
			}
			if forward {
				return left, right, true
			}
			return right, left, true
		}
		return nil, nil, false
	}
	// Backward markers first: "is caused by" contains "caused"
	if c, e, ok := try(v.lex.backward, false); ok {
		return c, e, true
	}
	return try(v.lex.forward, true)
}

// reaches returns the chain of links leading from one node to another
func reaches(links []causalLink, from, to int) []causalLink {
	seen := make(map[int]bool)
	var walk func(n int) []causalLink
	walk = func(n int) []causalLink {
		if n == to {
			return []causalLink{}
		}
		if seen[n] {
			return nil
		}
		seen[n] = true
		for _, l := range links {
			if l.cause != n {
				continue
			}
			if rest := walk(l.effect); rest != nil {
				return append([]causalLink{l}, rest...)
			}
		}
		return nil
	}
	return walk(from)
}

// danglingReferences flags a pronoun with no candidate antecedent earlier
// in its sentence or in the look-back window
func (v *CoherenceValidator) danglingReferences(stmts []statement) []model.Issue {
	var out []model.Issue
	for i := range stmts {
		s := &stmts[i]
		k := -1
		for idx, t := range s.tokens {
			if v.lex.pronouns[t] {
				k = idx
				break
			}
		}
		if k < 0 || v.hasAntecedent(s.tokens[:k]) {
			continue
		}
		found := false
		for j := max(0, i-v.cfg.ReferenceLookback); j < i; j++ {
			if len(stmts[j].content) > 0 {
				found = true
				break
			}
		}
		if found {
			continue
		}
		out = append(out, v.issue(SubtypeReference, model.SeverityLow, s.Location,
			v.cfg.ReferenceConfidence,
			fmt.Sprintf("Pronoun %q has no identifiable antecedent", s.tokens[k]),
			"Name the entity the pronoun refers to",
			s.Text))
	}
	return out
}

func (v *CoherenceValidator) hasAntecedent(tokens []string) bool {
	for _, t := range tokens {
		if v.lex.isContent(t) {
			return true
		}
	}
	return false
}

func (v *CoherenceValidator) issue(subtype string, sev model.Severity, loc model.TextLocation, conf float64, desc, fix string, evidence ...string) model.Issue {
	if conf <= 0 {
		conf = 1
	}
	return model.Issue{
		ID:           uuid.NewString(),
		Type:         model.IssueLogicalInconsistency,
		Subtype:      subtype,
		Severity:     sev,
		Location:     loc,
		Description:  desc,
		Evidence:     evidence,
		SuggestedFix: fix,
		Confidence:   model.ClampUnit(model.ClampPercent(conf) / 100),
		ModuleSource: model.ModuleLogic,
	}
}

func overlaps(a, b map[string]bool) bool {
	for t := range a {
		if b[t] {
			return true
		}
	}
	return false
}

// newParagraph reports whether a blank line separates two sentences
func newParagraph(text string, prev, cur *statement) bool {
	if prev.Location.End > cur.Location.Start || cur.Location.Start > len(text) {
		return false
	}
	return strings.Count(text[prev.Location.End:cur.Location.Start], "\n") >= 2
}
