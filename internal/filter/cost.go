// internal/filter/cost.go
package filter

import "github.com/solatis/mediafilter/internal/types"

/*
 * Cost model for rule evaluation.
 *
 * cost = operator_cost * kind_multiplier (+ set size for IN/NOT_IN)
 *
 * Evaluating cheaper rules first lets Match short-circuit before the
 * expensive list scans for the common "and" filter. Ordering never changes
 * the result, only the work done.
 */

const (
	// Operator base costs
	CostEqual    = 1
	CostOrdering = 2
	CostIn       = 4

	// Field kind multipliers
	MultiplierNumeric = 1
	MultiplierDate    = 2
	MultiplierEnum    = 4
	MultiplierText    = 8
	MultiplierList    = 16
)

// RuleCost computes the evaluation cost of one rule.
func RuleCost(kind FieldKind, op types.Operator, setSize int) int {
	cost := operatorCost(op) * kindMultiplier(kind)
	if op == types.OpIn || op == types.OpNotIn {
		cost += setSize
	}
	return cost
}

func operatorCost(op types.Operator) int {
	switch op {
	case types.OpEqual, types.OpNotEqual:
		return CostEqual
	case types.OpLess, types.OpLessOrEqual, types.OpGreater, types.OpGreaterOrEqual:
		return CostOrdering
	case types.OpIn, types.OpNotIn:
		return CostIn
	default:
		return CostEqual
	}
}

func kindMultiplier(kind FieldKind) int {
	switch kind {
	case KindNumeric:
		return MultiplierNumeric
	case KindDate:
		return MultiplierDate
	case KindEnum:
		return MultiplierEnum
	case KindText:
		return MultiplierText
	default:
		return MultiplierList
	}
}
