// internal/filter/rules.go
package filter

import (
	"github.com/solatis/mediafilter/internal/types"
)

/*
 * Rule validity, uniqueness and filter construction helpers.
 *
 * GetValidRules derives the rule set handed to the query layer from a
 * draft: empty rules are dropped and, among structurally-equal rules, only
 * the last occurrence survives. Surviving rules keep their relative order.
 *
 * Structural equality compares field, operator and value. The id and the
 * unremovable flag do not participate, so a user-added copy of a system
 * rule is a duplicate of it.
 *
 * All helpers treat nil rules as an empty list and never panic on missing
 * optional fields.
 */

// IsEmptyRule reports whether any of field, operator or value is unset.
func IsEmptyRule(rule types.FilterRule) bool {
	return rule.Field == types.FieldUnset ||
		rule.Operator == types.OpUnset ||
		rule.Value.IsEmpty()
}

// SameRule reports whether a and b are structurally equal.
func SameRule(a, b types.FilterRule) bool {
	return a.Field == b.Field && a.Operator == b.Operator && a.Value.Equal(b.Value)
}

// IsDuplicateRule reports whether a rule structurally equal to rules[i]
// appears later in rules.
func IsDuplicateRule(rules []types.FilterRule, i int) bool {
	for j := i + 1; j < len(rules); j++ {
		if SameRule(rules[i], rules[j]) {
			return true
		}
	}
	return false
}

// GetValidRules returns the non-empty, deduplicated rules of a draft.
// The result is never nil.
func GetValidRules(rules []types.FilterRule) []types.FilterRule {
	valid := make([]types.FilterRule, 0, len(rules))
	for i, rule := range rules {
		if IsEmptyRule(rule) || IsDuplicateRule(rules, i) {
			continue
		}
		valid = append(valid, rule)
	}
	return valid
}

// AddOrUpdateFilterRule adds rule (with a fresh id) to options.
//
// Existing rules are kept only when both their field and their operator
// differ from the new rule's; every rule sharing the field or the operator
// is replaced. The condition is always forced to "and".
func AddOrUpdateFilterRule(options types.FilterOptions, rule types.FilterRule, ids types.IDProvider) types.FilterOptions {
	if ids == nil {
		ids = types.DefaultIDProvider
	}
	rule.ID = ids.NewRuleID()

	if options.IsEmpty() || len(options.Rules) == 0 {
		return types.NewFilterOptions(rule)
	}

	rules := make([]types.FilterRule, 0, len(options.Rules)+1)
	for _, r := range options.Rules {
		if r.Field != rule.Field && r.Operator != rule.Operator {
			rules = append(rules, r)
		}
	}
	rules = append(rules, rule)

	return types.NewFilterOptions(rules...)
}

// RemoveRuleByID drops the rule with id from options.
// Collapses to the empty filter {} when no rules remain.
func RemoveRuleByID(options types.FilterOptions, id types.RuleID) types.FilterOptions {
	rules := removeRule(options.Rules, id)
	if len(rules) == 0 {
		return types.FilterOptions{}
	}
	return types.FilterOptions{Condition: options.Condition, Rules: rules}
}

// removeRule returns rules without the rule matching id. Never nil.
func removeRule(rules []types.FilterRule, id types.RuleID) []types.FilterRule {
	out := make([]types.FilterRule, 0, len(rules))
	for _, r := range rules {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// unremovableRules returns the system-injected rules of a draft.
func unremovableRules(rules []types.FilterRule) []types.FilterRule {
	var out []types.FilterRule
	for _, r := range rules {
		if r.IsUnremovable {
			out = append(out, r)
		}
	}
	return out
}
