package model

import (
	"slices"
	"sort"
)

// ParsedContent is the document handed to the pipeline by the content-processing
// collaborator. The pipeline treats it as immutable.
type ParsedContent struct {
	ID            string            `json:"id" validate:"required"`
	ExtractedText string            `json:"extractedText"`
	ContentType   string            `json:"contentType,omitempty"`
	Structure     ContentStructure  `json:"structure"`
	Entities      []ExtractedEntity `json:"entities,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ContentStructure holds the structural outline detected during parsing
type ContentStructure struct {
	Sections   []Section `json:"sections,omitempty"`
	Tables     []string  `json:"tables,omitempty"`
	Figures    []string  `json:"figures,omitempty"`
	References []string  `json:"references,omitempty"`
}

// Section is a titled region of the extracted text
type Section struct {
	Title    string       `json:"title"`
	Level    int          `json:"level,omitempty"`
	Location TextLocation `json:"location"`
}

// Clone returns a deep copy so analyzer branches never share backing arrays
func (c ParsedContent) Clone() ParsedContent {
	out := c
	out.Structure = ContentStructure{
		Sections:   slices.Clone(c.Structure.Sections),
		Tables:     slices.Clone(c.Structure.Tables),
		Figures:    slices.Clone(c.Structure.Figures),
		References: slices.Clone(c.Structure.References),
	}
	out.Entities = slices.Clone(c.Entities)
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// EntityType classifies an extracted span
type EntityType string

const (
	EntityPerson        EntityType = "person"
	EntityOrganization  EntityType = "organization"
	EntityDate          EntityType = "date"
	EntityAmount        EntityType = "amount"
	EntityPercentage    EntityType = "percentage"
	EntityEmail         EntityType = "email"
	EntityPhone         EntityType = "phone"
	EntityIdentifier    EntityType = "identifier" // SSNs, account and record numbers
	EntityRegulation    EntityType = "regulation" // HIPAA, 21 CFR 11, Article 9 ...
	EntityMedicalTerm   EntityType = "medical_term"
	EntityLegalTerm     EntityType = "legal_term"
	EntityFinancialTerm EntityType = "financial_term"
)

// ExtractedEntity is a typed span found in the extracted text
type ExtractedEntity struct {
	Type       EntityType   `json:"type"`
	Value      string       `json:"value"`
	Confidence float64      `json:"confidence"` // 0-1, static weight of the matching pattern
	Location   TextLocation `json:"location"`
	Context    string       `json:"context,omitempty"` // Surrounding text
}

// TextLocation is a half-open byte range [Start, End) into ParsedContent.ExtractedText.
// Line and Column are 1-based and zero when unknown.
type TextLocation struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// Valid reports whether the location satisfies end >= start >= 0
func (l TextLocation) Valid() bool {
	return l.Start >= 0 && l.End >= l.Start
}

// Before reports whether l starts before other
func (l TextLocation) Before(other TextLocation) bool {
	if l.Start != other.Start {
		return l.Start < other.Start
	}
	return l.End < other.End
}

// Locator resolves byte offsets to line and column numbers in O(log n)
type Locator struct {
	size       int
	lineStarts []int
}

// NewLocator indexes the line starts of text
func NewLocator(text string) *Locator {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Locator{size: len(text), lineStarts: starts}
}

// Locate builds a TextLocation for [start, end), clamped to the indexed text
func (l *Locator) Locate(start, end int) TextLocation {
	if start < 0 {
		start = 0
	}
	if start > l.size {
		start = l.size
	}
	if end > l.size {
		end = l.size
	}
	if end < start {
		end = start
	}

	line := sort.Search(len(l.lineStarts), func(i int) bool { return l.lineStarts[i] > start })
	col := start - l.lineStarts[line-1] + 1

	return TextLocation{Start: start, End: end, Line: line, Column: col}
}

// Locate builds a TextLocation for [start, end) in text, filling line and column
func Locate(text string, start, end int) TextLocation {
	return NewLocator(text).Locate(start, end)
}
