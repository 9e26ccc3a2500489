package alerting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// comparators in priority order: the two-character forms must be probed
// first since ">=" and "<=" textually contain ">" and "<".
var comparators = []string{">=", "<=", ">", "<"}

// Condition is a parsed alert condition such as ">=8.50".
type Condition struct {
	Comparator string
	Threshold  decimal.Decimal
}

// ParseCondition splits a condition string into comparator and threshold.
func ParseCondition(raw string) (Condition, error) {
	for _, cmp := range comparators {
		if !strings.Contains(raw, cmp) {
			continue
		}
		_, after, _ := strings.Cut(raw, cmp)
		threshold, err := decimal.NewFromString(strings.TrimSpace(after))
		if err != nil {
			return Condition{}, fmt.Errorf("parse threshold in %q: %w", raw, err)
		}
		return Condition{Comparator: cmp, Threshold: threshold}, nil
	}
	return Condition{}, fmt.Errorf("no comparator in condition %q", raw)
}

// Matches reports whether price satisfies the condition.
func (c Condition) Matches(price decimal.Decimal) bool {
	switch c.Comparator {
	case ">=":
		return price.GreaterThanOrEqual(c.Threshold)
	case "<=":
		return price.LessThanOrEqual(c.Threshold)
	case ">":
		return price.GreaterThan(c.Threshold)
	case "<":
		return price.LessThan(c.Threshold)
	default:
		return false
	}
}

func (c Condition) String() string {
	return c.Comparator + c.Threshold.String()
}
