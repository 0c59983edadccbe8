package extract

import (
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Sentence is one segment of the extracted text with its byte span
type Sentence struct {
	Text     string
	Index    int
	Location model.TextLocation
}

// abbreviations that end with a period without ending the sentence
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sr": true, "jr": true,
	"inc": true, "corp": true, "ltd": true, "co": true, "llc": true,
	"e.g": true, "i.e": true, "etc": true, "vs": true, "cf": true, "al": true,
	"a.m": true, "p.m": true, "no": true, "art": true, "sec": true, "st": true, "u.s": true, "u.k": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true, "jul": true,
	"aug": true, "sep": true, "sept": true, "oct": true, "nov": true, "dec": true,
}

// SplitSentences segments text on terminal punctuation and blank lines.
// Offsets are byte offsets into text; surrounding whitespace is trimmed.
func SplitSentences(text string) []Sentence {
	var out []Sentence
	if strings.TrimSpace(text) == "" {
		return out
	}

	loc := model.NewLocator(text)
	start := 0
	emit := func(end int) {
		s, e := trimSpan(text, start, end)
		if e > s {
			out = append(out, Sentence{
				Text:     text[s:e],
				Index:    len(out),
				Location: loc.Locate(s, e),
			})
		}
		start = end
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n' && i+1 < len(text) && text[i+1] == '\n':
			emit(i)
		case c == '.' || c == '!' || c == '?':
			// Absorb runs of terminators and closing quotes/brackets
			j := i + 1
			for j < len(text) && strings.IndexByte(".!?\"')]", text[j]) >= 0 {
				j++
			}
			if j < len(text) && !isSpace(text[j]) {
				i = j - 1
				continue
			}
			if c == '.' && isAbbreviation(text[start:i]) {
				i = j - 1
				continue
			}
			emit(j)
			i = j - 1
		}
	}
	emit(len(text))

	return out
}

// isAbbreviation reports whether the word ending the fragment is a known
// abbreviation or a single-letter initial
func isAbbreviation(fragment string) bool {
	idx := strings.LastIndexAny(fragment, " \t\n(")
	word := fragment[idx+1:]
	if word == "" {
		return false
	}
	if len(word) == 1 && word[0] >= 'A' && word[0] <= 'Z' {
		return true
	}
	return abbreviations[strings.ToLower(word)]
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
