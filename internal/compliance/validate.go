package compliance

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/veracity/internal/model"
)

var (
	// ErrRuleNotFound is returned for operations on an unknown rule id
	ErrRuleNotFound = errors.New("rule not found")
	// ErrDuplicateRule is returned when adding a rule whose id is taken
	ErrDuplicateRule = errors.New("rule already exists")
)

// RuleValidationError lists every defect found in a rule
type RuleValidationError struct {
	RuleID   string
	Problems []string
}

func (e *RuleValidationError) Error() string {
	id := e.RuleID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("invalid rule %s: %s", id, strings.Join(e.Problems, "; "))
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRule checks a rule without registering it. All defects are
// reported together in a *RuleValidationError.
func ValidateRule(rule model.ComplianceRule) error {
	_, err := compile(rule)
	return err
}

// compile validates rule and builds its matchers
func compile(rule model.ComplianceRule) (*compiledRule, error) {
	var problems []string

	if err := validate.Struct(rule); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate rule %s: %w", rule.ID, err)
		}
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				problems = append(problems, fmt.Sprintf("%s is required", fe.Field()))
			case "oneof":
				problems = append(problems, fmt.Sprintf("%s %q must be one of: %s", fe.Field(), fe.Value(), fe.Param()))
			default:
				problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
		}
	}

	if len(rule.Keywords) == 0 && len(rule.Patterns) == 0 {
		problems = append(problems, "at least one keyword or pattern is required")
	}

	cr := &compiledRule{rule: rule.Clone()}
	for i, k := range rule.Keywords {
		if strings.TrimSpace(k) == "" {
			problems = append(problems, fmt.Sprintf("keyword %d is empty", i))
			continue
		}
		cr.keywords = append(cr.keywords, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(k)))
	}
	for i, p := range rule.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			problems = append(problems, fmt.Sprintf("pattern %d %q: %v", i, p, err))
			continue
		}
		if re.MatchString("") {
			problems = append(problems, fmt.Sprintf("pattern %d %q matches empty text", i, p))
			continue
		}
		cr.patterns = append(cr.patterns, re)
	}

	if len(problems) > 0 {
		return nil, &RuleValidationError{RuleID: rule.ID, Problems: problems}
	}
	return cr, nil
}
