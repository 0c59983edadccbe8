package logic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// ContradictionDetector finds pairs of statements that cannot both hold.
// Only statements about the same subject within a sliding window of prior
// sentences are compared.
type ContradictionDetector struct {
	lex *Lexicon
	cfg model.LogicConfig
}

// NewContradictionDetector creates a detector over lex
func NewContradictionDetector(lex *Lexicon, cfg model.LogicConfig) *ContradictionDetector {
	if cfg.Window <= 0 {
		cfg.Window = 8
	}
	return &ContradictionDetector{lex: lex, cfg: cfg}
}

// Detect returns the contradictions in text, ordered by the position of
// the later statement
func (d *ContradictionDetector) Detect(text string) []model.Contradiction {
	return d.detect(d.lex.parseAll(text))
}

// temporalRelation is "first happens before second"
type temporalRelation struct {
	first, second map[string]bool
	ok            bool
}

func (d *ContradictionDetector) detect(stmts []statement) []model.Contradiction {
	var out []model.Contradiction
	relations := make([]temporalRelation, len(stmts))
	for i := range stmts {
		relations[i] = d.temporal(stmts[i])
	}

	bySubject := make(map[string][]int)
	for j := range stmts {
		b := &stmts[j]
		reported := make(map[int]bool)

		if b.subjectKey != "" {
			prior := bySubject[b.subjectKey]
			for _, i := range prior {
				if j-i > d.cfg.Window {
					continue
				}
				if c, ok := d.compare(&stmts[i], b); ok {
					out = append(out, c)
					reported[i] = true
				}
			}
			bySubject[b.subjectKey] = append(trimWindow(prior, j, d.cfg.Window), j)
		}

		if !relations[j].ok {
			continue
		}
		for i := max(0, j-d.cfg.Window); i < j; i++ {
			if reported[i] || !relations[i].ok {
				continue
			}
			if reversed(relations[i], relations[j]) {
				out = append(out, d.contradiction(model.ContradictionTemporal, &stmts[i], b,
					d.cfg.TemporalConfidence, model.SeverityMedium, "",
					"the two statements place the same events in opposite order"))
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location2.Start != out[j].Location2.Start {
			return out[i].Location2.Start < out[j].Location2.Start
		}
		return out[i].Location1.Start < out[j].Location1.Start
	})
	return out
}

// compare applies the subject rules in priority order: direct negation,
// exclusive qualifiers or antonyms, opposite sentiment
func (d *ContradictionDetector) compare(a, b *statement) (model.Contradiction, bool) {
	subject := strings.Join(b.subject, " ")

	if a.negated != b.negated && similar(a.predSet, b.predSet) {
		return d.contradiction(model.ContradictionDirect, a, b,
			d.cfg.DirectConfidence, model.SeverityHigh, subject,
			fmt.Sprintf("%q is asserted and then negated", subject)), true
	}

	if a.negated == b.negated {
		if qa, qb, ok := d.exclusiveQualifiers(a, b); ok && similar(a.predSet, b.predSet) {
			return d.contradiction(model.ContradictionDirect, a, b,
				d.cfg.QualifierConfidence, model.SeverityMedium, subject,
				fmt.Sprintf("%q and %q cannot both apply to %q", qa, qb, subject)), true
		}
		if wa, wb, ok := d.antonyms(a, b); ok {
			return d.contradiction(model.ContradictionDirect, a, b,
				d.cfg.QualifierConfidence, model.SeverityMedium, subject,
				fmt.Sprintf("%q is described as both %q and %q", subject, wa, wb)), true
		}
	}

	if a.polarity*b.polarity < 0 {
		return d.contradiction(model.ContradictionImplicit, a, b,
			d.cfg.ImplicitConfidence, model.SeverityMedium, subject,
			fmt.Sprintf("%q is described with opposite sentiment", subject)), true
	}
	return model.Contradiction{}, false
}

func (d *ContradictionDetector) exclusiveQualifiers(a, b *statement) (string, string, bool) {
	for _, qa := range a.qualifiers {
		for _, qb := range b.qualifiers {
			if d.lex.qualifiers.has(qa, qb) {
				return qa, qb, true
			}
		}
	}
	return "", "", false
}

// antonyms finds an antonym pair across the two predicates whose remaining
// words agree
func (d *ContradictionDetector) antonyms(a, b *statement) (string, string, bool) {
	for _, wa := range a.predicate {
		for _, wb := range b.predicate {
			if !d.lex.antonyms.has(wa, wb) {
				continue
			}
			restA, restB := without(a.predSet, stem(wa)), without(b.predSet, stem(wb))
			if len(restA) == 0 && len(restB) == 0 || similar(restA, restB) {
				return wa, wb, true
			}
		}
	}
	return "", "", false
}

func without(set map[string]bool, drop string) map[string]bool {
	out := make(map[string]bool, len(set))
	for t := range set {
		if t != drop {
			out[t] = true
		}
	}
	return out
}

func (d *ContradictionDetector) contradiction(typ model.ContradictionType, a, b *statement, conf float64, sev model.Severity, subject, why string) model.Contradiction {
	return model.Contradiction{
		Type:        typ,
		Statement1:  a.Text,
		Statement2:  b.Text,
		Location1:   a.Location,
		Location2:   b.Location,
		Subject:     subject,
		Explanation: why,
		Confidence:  model.ClampPercent(conf),
		Severity:    sev,
	}
}

// temporal extracts "X before Y" or "X after Y" from a statement
func (d *ContradictionDetector) temporal(s statement) temporalRelation {
	for _, markers := range []struct {
		phrases  []phrase
		isBefore bool
	}{{d.lex.before, true}, {d.lex.after, false}} {
		for _, p := range markers.phrases {
			idx := hasPhrase(s.tokens, p)
			if idx <= 0 {
				continue
			}
			left := d.lex.event(s.tokens[:idx])
			right := d.lex.event(s.tokens[idx+len(p):])
			if len(left) == 0 || len(right) == 0 {
				continue
			}
			if markers.isBefore {
				return temporalRelation{first: left, second: right, ok: true}
			}
			return temporalRelation{first: right, second: left, ok: true}
		}
	}
	return temporalRelation{}
}

// reversed reports whether two relations order the same pair of events
// oppositely
func reversed(a, b temporalRelation) bool {
	return similar(a.first, b.second) && similar(a.second, b.first) &&
		!(similar(a.first, b.first) && similar(a.second, b.second))
}

// trimWindow drops indexes that fell out of the comparison window
func trimWindow(idx []int, current, window int) []int {
	n := 0
	for n < len(idx) && current-idx[n] > window {
		n++
	}
	return idx[n:]
}
