package compliance

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/model"
)

//go:embed rules/*.yaml
var embeddedRules embed.FS

// RuleFile is the on-disk format of a rule set. Rules without a domain
// inherit the file's domain; rules without is_active are active.
type RuleFile struct {
	Domain model.Domain `yaml:"domain"`
	Rules  []ruleSpec   `yaml:"rules"`
}

type ruleSpec struct {
	ID           string         `yaml:"id"`
	RuleText     string         `yaml:"rule_text"`
	Regulation   string         `yaml:"regulation"`
	Jurisdiction string         `yaml:"jurisdiction"`
	Domain       model.Domain   `yaml:"domain"`
	Severity     model.Severity `yaml:"severity"`
	Keywords     []string       `yaml:"keywords"`
	Patterns     []string       `yaml:"patterns"`
	Remediation  string         `yaml:"remediation"`
	IsActive     *bool          `yaml:"is_active"`
}

// ParseRuleFile decodes a YAML rule set. It does not validate the rules;
// the engine does that on registration.
func ParseRuleFile(data []byte) ([]model.ComplianceRule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}

	rules := make([]model.ComplianceRule, 0, len(file.Rules))
	for _, spec := range file.Rules {
		r := model.ComplianceRule{
			ID:           spec.ID,
			RuleText:     spec.RuleText,
			Regulation:   spec.Regulation,
			Jurisdiction: spec.Jurisdiction,
			Domain:       spec.Domain,
			Severity:     spec.Severity,
			Keywords:     spec.Keywords,
			Patterns:     spec.Patterns,
			Remediation:  spec.Remediation,
			IsActive:     spec.IsActive == nil || *spec.IsActive,
		}
		if r.Domain == "" {
			r.Domain = file.Domain
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// DefaultRules returns the built-in rule sets for every domain, ordered by
// file name then position in the file
func DefaultRules() ([]model.ComplianceRule, error) {
	entries, err := fs.ReadDir(embeddedRules, "rules")
	if err != nil {
		return nil, fmt.Errorf("read embedded rules: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []model.ComplianceRule
	for _, e := range entries {
		data, err := embeddedRules.ReadFile(path.Join("rules", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		rules, err := ParseRuleFile(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, rules...)
	}
	return out, nil
}
