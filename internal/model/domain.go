package model

import (
	"fmt"
	"strings"
)

// Domain is the regulatory vertical a document belongs to
type Domain string

const (
	DomainLegal      Domain = "legal"
	DomainFinancial  Domain = "financial"
	DomainHealthcare Domain = "healthcare"
	DomainInsurance  Domain = "insurance"
)

// Domains lists every supported domain in a stable order
func Domains() []Domain {
	return []Domain{DomainLegal, DomainFinancial, DomainHealthcare, DomainInsurance}
}

// ParseDomain converts a case-insensitive string into a Domain
func ParseDomain(raw string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Domains() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown domain %q (supported: legal, financial, healthcare, insurance)", raw)
}

// JurisdictionGlobal is the wildcard jurisdiction that applies everywhere
const JurisdictionGlobal = "GLOBAL"
