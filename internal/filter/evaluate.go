// internal/filter/evaluate.go
package filter

import (
	"sort"

	"github.com/solatis/mediafilter/internal/types"
)

/*
 * Filter evaluation against media records.
 *
 * Compile turns FilterOptions into cost-ordered compiled rules once, so a
 * page of media can be matched without re-coercing rule values per item.
 *
 * Semantics:
 *   - {} or a filter without non-empty rules matches everything
 *   - and (or unset): every rule matches
 *   - or: at least one rule matches
 *   - nor: no rule matches
 *   - empty rules are skipped; invalid rules never match
 *   - a missing media attribute never matches
 *
 * Why stable sort: equal-cost rules keep draft order so evaluation traces
 * are reproducible across identical inputs.
 */

// CompiledRule is a rule with its value coerced and its cost computed.
type CompiledRule struct {
	Rule   types.FilterRule
	Kind   FieldKind
	Target any
	Valid  bool
	Cost   int
}

// CompiledFilter is a FilterOptions ready for matching.
type CompiledFilter struct {
	Condition types.Condition
	Rules     []CompiledRule // ordered by ascending cost
}

// Compile prepares options for evaluation.
func Compile(options types.FilterOptions) *CompiledFilter {
	compiled := &CompiledFilter{
		Condition: options.Condition,
		Rules:     make([]CompiledRule, 0, len(options.Rules)),
	}

	for _, rule := range options.Rules {
		if IsEmptyRule(rule) {
			continue
		}
		compiled.Rules = append(compiled.Rules, compileRule(rule))
	}

	sort.SliceStable(compiled.Rules, func(i, j int) bool {
		return compiled.Rules[i].Cost < compiled.Rules[j].Cost
	})

	return compiled
}

// compileRule coerces the rule value. Invalid rules are kept with
// Valid=false so the combination condition still sees them.
func compileRule(rule types.FilterRule) CompiledRule {
	cr := CompiledRule{Rule: rule}

	kind, ok := KindOf(rule.Field)
	if !ok || !IsLegalOperator(rule.Field, rule.Operator) {
		return cr
	}
	cr.Kind = kind

	target, err := coerceRuleValue(kind, rule.Operator, rule.Value)
	if err != nil {
		return cr
	}
	cr.Target = target
	cr.Valid = true

	setSize := 0
	if list, ok := target.([]string); ok {
		setSize = len(list)
	}
	cr.Cost = RuleCost(kind, rule.Operator, setSize)

	return cr
}

// Match reports whether media satisfies the compiled filter.
func (f *CompiledFilter) Match(media *types.Media) bool {
	if len(f.Rules) == 0 {
		return true
	}

	switch f.Condition {
	case types.ConditionOr:
		for i := range f.Rules {
			if f.Rules[i].match(media) {
				return true
			}
		}
		return false
	case types.ConditionNor:
		for i := range f.Rules {
			if f.Rules[i].match(media) {
				return false
			}
		}
		return true
	default:
		for i := range f.Rules {
			if !f.Rules[i].match(media) {
				return false
			}
		}
		return true
	}
}

func (r *CompiledRule) match(media *types.Media) bool {
	if !r.Valid {
		return false
	}
	attr, ok := attribute(media, r.Rule.Field)
	if !ok {
		return false
	}
	return Compare(r.Rule.Operator, attr, r.Target)
}

// Evaluate reports whether media matches options.
func Evaluate(options types.FilterOptions, media *types.Media) bool {
	return Compile(options).Match(media)
}

// FilterMedia returns the items of media matching options, in order.
func FilterMedia(options types.FilterOptions, media []types.Media) []types.Media {
	compiled := Compile(options)
	out := make([]types.Media, 0, len(media))
	for i := range media {
		if compiled.Match(&media[i]) {
			out = append(out, media[i])
		}
	}
	return out
}
