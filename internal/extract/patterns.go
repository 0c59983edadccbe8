package extract

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/model"
)

// EntityPatterns is the default entity pattern table, one matcher per entity type.
//
//go:embed patterns/entities.yaml
var EntityPatterns []byte

// ClaimPatterns is the default claim heuristic table.
//
//go:embed patterns/claims.yaml
var ClaimPatterns []byte

// EntityPatternFile is the on-disk shape of an entity pattern table
type EntityPatternFile struct {
	Version  int                 `yaml:"version"`
	Matchers []EntityPatternSpec `yaml:"matchers"`
}

// EntityPatternSpec declares one matcher. Confidence is a fixed weight
// attached to every match the matcher produces.
type EntityPatternSpec struct {
	Name       string           `yaml:"name"`
	Type       model.EntityType `yaml:"type"`
	Confidence float64          `yaml:"confidence"`
	Patterns   []string         `yaml:"patterns"`
}

// ClaimPatternFile is the on-disk shape of the claim heuristic table
type ClaimPatternFile struct {
	Version   int      `yaml:"version"`
	MinLength int      `yaml:"min_length"`
	MaxLength int      `yaml:"max_length"`
	Keywords  []string `yaml:"keywords"`
	Patterns  []struct {
		Name  string `yaml:"name"`
		Regex string `yaml:"regex"`
	} `yaml:"patterns"`
	Hedges []string `yaml:"hedges"`
}

// LoadEntityPatterns parses and compiles an entity pattern table
func LoadEntityPatterns(data []byte) ([]Matcher, error) {
	var file EntityPatternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse entity patterns: %w", err)
	}

	matchers := make([]Matcher, 0, len(file.Matchers))
	for _, spec := range file.Matchers {
		if spec.Type == "" {
			return nil, fmt.Errorf("entity matcher %q: missing type", spec.Name)
		}
		if spec.Confidence < 0 || spec.Confidence > 1 {
			return nil, fmt.Errorf("entity matcher %q: confidence %.2f outside [0,1]", spec.Name, spec.Confidence)
		}
		m := &regexMatcher{name: spec.Name, typ: spec.Type, confidence: spec.Confidence}
		for _, p := range spec.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("entity matcher %q: compile %q: %w", spec.Name, p, err)
			}
			m.patterns = append(m.patterns, re)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}
