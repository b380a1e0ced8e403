package domain

// Operator is a predicate clause comparison.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

// PredicateClause compares one submission attribute against a configured
// value. A clause over a missing or wrong-typed attribute evaluates to false.
type PredicateClause struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value"`
}

// PersonaRule assigns a persona label when every clause holds. Rules are
// configuration data, not code.
type PersonaRule struct {
	ID      string            `json:"id"`
	Label   string            `json:"label"`
	Score   float64           `json:"score"`
	Clauses []PredicateClause `json:"clauses"`
}

// GeneralPersonaID is the fallback persona assigned when no rule matches.
// An unmatched respondent is expected, not exceptional.
const GeneralPersonaID = "GENERAL"

// RuleMatch records one matching rule for audit.
type RuleMatch struct {
	RuleID string
	Score  float64
}

// PersonaResult is the outcome of rule evaluation. MatchedRules carries every
// rule that matched, not just the winner, for explainability.
type PersonaResult struct {
	PersonaID    string
	Name         string
	Score        float64
	MatchedRules []RuleMatch
}
