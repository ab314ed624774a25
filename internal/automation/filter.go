package automation

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Matches applies the automation's filters to the state tree. With no
// filters an automation always matches, whichever the rule.
func (a Automation) Matches(tree any) bool {
	if len(a.Filters) == 0 {
		return true
	}
	if a.FilterRule == RuleAny {
		for _, f := range a.Filters {
			if f.Evaluate(tree) {
				return true
			}
		}
		return false
	}
	for _, f := range a.Filters {
		if !f.Evaluate(tree) {
			return false
		}
	}
	return true
}

// Evaluate tests the filter. A missing value equals only the empty
// string, contains nothing and is never greater or less than anything.
func (f Filter) Evaluate(tree any) bool {
	path, err := ParseFieldPath(f.Field)
	if err != nil {
		return false
	}
	v, found := path.Resolve(tree)
	actual := ""
	if found {
		actual = stringValue(v)
	}

	switch f.Operator {
	case OpEquals:
		return fold(actual) == fold(f.Value)
	case OpNotEquals:
		return fold(actual) != fold(f.Value)
	case OpContains:
		return found && strings.Contains(fold(actual), fold(f.Value))
	case OpNotContains:
		return !found || !strings.Contains(fold(actual), fold(f.Value))
	case OpGreaterThan, OpLessThan:
		if !found {
			return false
		}
		a, okA := number(actual)
		b, okB := number(f.Value)
		if !okA || !okB {
			return false
		}
		if f.Operator == OpGreaterThan {
			return a > b
		}
		return a < b
	}
	return false
}

// fold uses a fresh Caser per call since Casers carry state.
func fold(s string) string {
	return cases.Fold().String(s)
}

func number(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}
