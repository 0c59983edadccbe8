package sources

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "by": true, "with": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true, "being": true,
	"it": true, "its": true, "this": true, "that": true, "these": true, "those": true,
	"as": true, "has": true, "have": true, "had": true, "which": true, "who": true,
	"according": true, "also": true, "than": true, "into": true, "about": true,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "neither": true, "nor": true,
	"isn't": true, "aren't": true, "wasn't": true, "weren't": true, "doesn't": true,
	"don't": true, "didn't": true, "cannot": true, "can't": true, "won't": true,
}

// disputeMarkers signal that a passage treats a statement as false
var disputeMarkers = []string{
	"misconception", "myth", "false claim", "falsely", "incorrectly", "debunked",
	"contrary to", "disputed", "no evidence", "hoax",
}

var numberPattern = regexp.MustCompile(`\b\d+(?:[.,]\d+)*\b`)

// Terms returns the distinct lowercased content words of s, in order
func Terms(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range words(s) {
		if stopwords[w] || negations[w] || len(w) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Overlap returns the share of claim terms present in passage terms
func Overlap(claim, passage []string) float64 {
	if len(claim) == 0 {
		return 0
	}
	hits := 0
	for _, t := range claim {
		if slices.Contains(passage, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(claim))
}

// HasNegation reports whether s contains a negation word
func HasNegation(s string) bool {
	for _, w := range words(s) {
		if negations[w] {
			return true
		}
	}
	return false
}

// negationReach is how many words a negation may sit from a claim term
// and still be read as negating it
const negationReach = 3

// NegatesTerms reports whether passage has a negation word within
// negationReach words of one of terms. Negations elsewhere in the passage
// say nothing about the claim.
func NegatesTerms(passage string, terms []string) bool {
	ws := words(passage)
	for i, w := range ws {
		if !negations[w] {
			continue
		}
		for _, near := range ws[max(0, i-negationReach):min(len(ws), i+negationReach+1)] {
			if slices.Contains(terms, near) {
				return true
			}
		}
	}
	return false
}

// Disputes reports whether s flags something as false or mistaken
func Disputes(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range disputeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Numbers returns the numeric tokens in s with thousands separators removed
func Numbers(s string) []string {
	var out []string
	for _, n := range numberPattern.FindAllString(s, -1) {
		out = append(out, strings.ReplaceAll(n, ",", ""))
	}
	return out
}

// NumberConflict reports whether the passage states numbers for the claim
// and none of them agree with any number in the claim
func NumberConflict(claim, passage string) bool {
	cn, pn := Numbers(claim), Numbers(passage)
	if len(cn) == 0 || len(pn) == 0 {
		return false
	}
	for _, n := range cn {
		if slices.Contains(pn, n) {
			return false
		}
	}
	return true
}

// StripHTML returns the text content of an HTML fragment
func StripHTML(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" || string(name) == "p" {
				b.WriteByte(' ')
			}
		}
	}
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
