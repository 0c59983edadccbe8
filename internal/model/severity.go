package model

import (
	"fmt"
	"strings"
)

// Severity is the four-level ordinal scale shared by compliance rules, issues,
// and the document-level risk level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskLevel is the document-level summary of issue severities
type RiskLevel = Severity

// Rank returns the ordinal position of the severity (low=1 .. critical=4).
// Unknown values rank 0 so they never win a maximum.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid reports whether s is one of the four known levels
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// MaxSeverity returns the higher of two severities
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Escalate moves a severity up by n levels, saturating at critical
func (s Severity) Escalate(n int) Severity {
	levels := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	r := s.Rank() - 1 + n
	if r < 0 {
		r = 0
	}
	if r >= len(levels) {
		r = len(levels) - 1
	}
	return levels[r]
}

// ParseSeverity converts a case-insensitive string into a Severity
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity %q (expected low, medium, high, critical)", raw)
	}
	return s, nil
}
