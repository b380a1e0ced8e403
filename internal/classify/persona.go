package classify

import (
	"strings"

	"github.com/surveypulse/surveypulse/internal/domain"
)

// EvaluateRules matches a flat attribute record against the configured
// persona rules. A rule matches when every clause holds. The winner is the
// matching rule with the highest score; ties break to the lexicographically
// smallest rule ID, so the result is stable under configuration reordering
// (insertion order is not a contract we rely on). When nothing matches, the
// GENERAL fallback persona is returned - unmatched is expected, not an error.
func EvaluateRules(attributes map[string]any, rules []domain.PersonaRule) domain.PersonaResult {
	var matches []domain.RuleMatch
	var winner *domain.PersonaRule

	for i := range rules {
		rule := &rules[i]
		if !ruleMatches(attributes, rule) {
			continue
		}
		matches = append(matches, domain.RuleMatch{RuleID: rule.ID, Score: rule.Score})

		if winner == nil ||
			rule.Score > winner.Score ||
			(rule.Score == winner.Score && rule.ID < winner.ID) {
			winner = rule
		}
	}

	if winner == nil {
		return domain.PersonaResult{
			PersonaID: domain.GeneralPersonaID,
			Name:      "General",
		}
	}

	return domain.PersonaResult{
		PersonaID:    winner.ID,
		Name:         winner.Label,
		Score:        winner.Score,
		MatchedRules: matches,
	}
}

func ruleMatches(attributes map[string]any, rule *domain.PersonaRule) bool {
	if len(rule.Clauses) == 0 {
		return false
	}
	for _, clause := range rule.Clauses {
		if !clauseHolds(attributes, clause) {
			return false
		}
	}
	return true
}

// clauseHolds evaluates one comparison. Missing attributes and type
// mismatches make the clause false - malformed input must never crash
// classification.
func clauseHolds(attributes map[string]any, clause domain.PredicateClause) bool {
	actual, ok := attributes[clause.Attribute]
	if !ok {
		return false
	}

	switch clause.Operator {
	case domain.OpEq:
		return valuesEqual(actual, clause.Value)
	case domain.OpNeq:
		return !valuesEqual(actual, clause.Value)
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		a, okA := toFloat(actual)
		b, okB := toFloat(clause.Value)
		if !okA || !okB {
			return false
		}
		switch clause.Operator {
		case domain.OpGt:
			return a > b
		case domain.OpGte:
			return a >= b
		case domain.OpLt:
			return a < b
		default:
			return a <= b
		}
	case domain.OpIn:
		return valueIn(actual, clause.Value)
	case domain.OpContains:
		s, okS := actual.(string)
		sub, okSub := clause.Value.(string)
		return okS && okSub && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	default:
		return false
	}
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func valueIn(actual, set any) bool {
	switch values := set.(type) {
	case []any:
		for _, v := range values {
			if valuesEqual(actual, v) {
				return true
			}
		}
	case []string:
		for _, v := range values {
			if valuesEqual(actual, v) {
				return true
			}
		}
	}
	return false
}

// toFloat coerces the numeric types that survive JSON decoding and Go
// literals. Anything else is not a number.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
