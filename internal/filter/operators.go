// internal/filter/operators.go
package filter

import (
	"time"

	"github.com/solatis/mediafilter/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Compare applies an operator to a media attribute and a coerced rule
 * value. Attribute types: float64 (width/height), string (name, scene
 * state), []string (label ids), time.Time (dates).
 *
 * IN/NOT_IN on a list attribute means "any element in the set" / "no
 * element in the set"; on a scalar attribute it is plain membership.
 * Ordering operators apply to numbers and dates only and are false for
 * anything else.
 */

// Compare applies op to attr and target.
func Compare(op types.Operator, attr, target any) bool {
	switch op {
	case types.OpEqual:
		return compareEqual(attr, target)
	case types.OpNotEqual:
		return !compareEqual(attr, target)
	case types.OpLess:
		c, ok := compareOrdered(attr, target)
		return ok && c < 0
	case types.OpLessOrEqual:
		c, ok := compareOrdered(attr, target)
		return ok && c <= 0
	case types.OpGreater:
		c, ok := compareOrdered(attr, target)
		return ok && c > 0
	case types.OpGreaterOrEqual:
		c, ok := compareOrdered(attr, target)
		return ok && c >= 0
	case types.OpIn:
		return compareIn(attr, target)
	case types.OpNotIn:
		return !compareIn(attr, target)
	default:
		return false
	}
}

// compareEqual handles numbers, strings and dates.
func compareEqual(a, b any) bool {
	if c, ok := compareOrdered(a, b); ok {
		return c == 0
	}
	as, ok1 := a.(string)
	bs, ok2 := b.(string)
	return ok1 && ok2 && as == bs
}

// compareOrdered performs three-way comparison of numbers or dates.
// Returns false for incomparable types.
func compareOrdered(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return threeWay(av < bv, av > bv), true
	case time.Time:
		bv, ok := b.(dateValue)
		if !ok {
			return 0, false
		}
		if bv.dayOnly {
			av = startOfDay(av)
		}
		return threeWay(av.Before(bv.t), av.After(bv.t)), true
	default:
		return 0, false
	}
}

func threeWay(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// compareIn tests membership of attr (or any of its elements) in set.
func compareIn(attr, set any) bool {
	members, ok := set.([]string)
	if !ok {
		return false
	}
	switch v := attr.(type) {
	case []string:
		for _, elem := range v {
			if contains(members, elem) {
				return true
			}
		}
		return false
	case string:
		return contains(members, v)
	default:
		return false
	}
}

func contains(set []string, s string) bool {
	for _, m := range set {
		if m == s {
			return true
		}
	}
	return false
}
