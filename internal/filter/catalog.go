// internal/filter/catalog.go
package filter

import (
	"errors"
	"fmt"

	"github.com/solatis/mediafilter/internal/types"
)

/*
 * Field catalog and advisory rule validation.
 *
 * Each filterable field has a kind (which fixes the value shape and how the
 * media attribute is read) and a set of legal operators. Validation is
 * advisory: it tells the client which rows to mark invalid, it never drops
 * a rule from a draft. Unset parts of a rule are not validated so a row
 * being filled in is incomplete, not invalid.
 */

// FieldKind is the value domain of a field.
type FieldKind int

const (
	KindUnspecified FieldKind = iota
	KindNumeric
	KindText
	KindEnum
	KindList
	KindDate
)

func (k FieldKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindEnum:
		return "enum"
	case KindList:
		return "list"
	case KindDate:
		return "date"
	default:
		return "unspecified"
	}
}

type fieldSpec struct {
	kind      FieldKind
	operators []types.Operator
}

var (
	orderingOps = []types.Operator{
		types.OpEqual, types.OpNotEqual,
		types.OpLess, types.OpLessOrEqual,
		types.OpGreater, types.OpGreaterOrEqual,
	}
	dateOps = []types.Operator{
		types.OpEqual,
		types.OpLess, types.OpLessOrEqual,
		types.OpGreater, types.OpGreaterOrEqual,
	}
)

var catalog = map[types.Field]fieldSpec{
	types.FieldLabelID:                {kind: KindList, operators: []types.Operator{types.OpIn, types.OpNotIn}},
	types.FieldMediaName:              {kind: KindText, operators: []types.Operator{types.OpEqual, types.OpNotEqual}},
	types.FieldMediaWidth:             {kind: KindNumeric, operators: orderingOps},
	types.FieldMediaHeight:            {kind: KindNumeric, operators: orderingOps},
	types.FieldAnnotationSceneState:   {kind: KindEnum, operators: []types.Operator{types.OpEqual, types.OpNotEqual, types.OpIn, types.OpNotIn}},
	types.FieldMediaUploadDate:        {kind: KindDate, operators: dateOps},
	types.FieldAnnotationCreationDate: {kind: KindDate, operators: dateOps},
}

// Fields returns every filterable field in display order.
func Fields() []types.Field {
	return []types.Field{
		types.FieldLabelID,
		types.FieldMediaName,
		types.FieldMediaWidth,
		types.FieldMediaHeight,
		types.FieldAnnotationSceneState,
		types.FieldMediaUploadDate,
		types.FieldAnnotationCreationDate,
	}
}

// KindOf returns the kind of field.
func KindOf(field types.Field) (FieldKind, bool) {
	entry, ok := catalog[field]
	return entry.kind, ok
}

// Operators returns the operators legal for field, nil for unknown fields.
func Operators(field types.Field) []types.Operator {
	entry, ok := catalog[field]
	if !ok {
		return nil
	}
	out := make([]types.Operator, len(entry.operators))
	copy(out, entry.operators)
	return out
}

// IsLegalOperator reports whether op may be used with field.
func IsLegalOperator(field types.Field, op types.Operator) bool {
	for _, legal := range catalog[field].operators {
		if legal == op {
			return true
		}
	}
	return false
}

// ValidateRule checks the set parts of a rule against the catalog.
// Returns ErrUnknownField, ErrInvalidOperator, ErrInvalidValue or
// ErrTooManyInValues, wrapped with the offending rule id.
func ValidateRule(rule types.FilterRule) error {
	if rule.Field == types.FieldUnset {
		return nil
	}
	entry, ok := catalog[rule.Field]
	if !ok {
		return fmt.Errorf("rule %s: %w: %q", rule.ID, types.ErrUnknownField, rule.Field)
	}
	if rule.Operator == types.OpUnset {
		return nil
	}
	if !IsLegalOperator(rule.Field, rule.Operator) {
		return fmt.Errorf("rule %s: %w: %s %s", rule.ID, types.ErrInvalidOperator, rule.Field, rule.Operator)
	}
	if rule.Value.IsEmpty() {
		return nil
	}
	if _, err := coerceRuleValue(entry.kind, rule.Operator, rule.Value); err != nil {
		if errors.Is(err, types.ErrTooManyInValues) {
			return fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		return fmt.Errorf("rule %s: %w: %s", rule.ID, types.ErrInvalidValue, rule.Value)
	}
	return nil
}

// InvalidRules returns the ids of rules failing ValidateRule, in order.
func InvalidRules(rules []types.FilterRule) []types.RuleID {
	var ids []types.RuleID
	for _, r := range rules {
		if ValidateRule(r) != nil {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// ValidateOptions checks a filter supplied by an external actor.
// Incomplete rules are accepted; the condition must be valid when rules exist.
func ValidateOptions(options types.FilterOptions) error {
	if options.IsEmpty() {
		return nil
	}
	if options.Condition != types.ConditionUnset && !options.Condition.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidCondition, options.Condition)
	}
	for _, r := range options.Rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
	}
	return nil
}
