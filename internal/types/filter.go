// internal/types/filter.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

/*
 * Domain types for advanced media filtering.
 *
 * FilterOptions is the externally persisted representation of a filter and
 * also the shape of a store draft. The JSON form is the only externally
 * visible structure and must round-trip exactly:
 *
 *   {}                                      no filter active
 *   {"condition":"and","rules":[...]}       active filter
 *   {"condition":"and","rules":[]}          draft with every rule removed
 *
 * The Go value keeps {} and {rules: []} apart via nil vs non-nil Rules.
 *
 * Value is a tagged union over the three JSON shapes a rule value takes
 * (string, list of strings, number). The unset kind marshals to null.
 */

// Field is the media attribute a rule filters on.
type Field string

const (
	FieldUnset                  Field = ""
	FieldLabelID                Field = "LABEL_ID"
	FieldMediaName              Field = "MEDIA_NAME"
	FieldMediaWidth             Field = "MEDIA_WIDTH"
	FieldMediaHeight            Field = "MEDIA_HEIGHT"
	FieldAnnotationSceneState   Field = "ANNOTATION_SCENE_STATE"
	FieldMediaUploadDate        Field = "MEDIA_UPLOAD_DATE"
	FieldAnnotationCreationDate Field = "ANNOTATION_CREATION_DATE"
)

// Operator is the comparison a rule applies.
type Operator string

const (
	OpUnset          Operator = ""
	OpIn             Operator = "IN"
	OpNotIn          Operator = "NOT_IN"
	OpEqual          Operator = "EQUAL"
	OpNotEqual       Operator = "NOT_EQUAL"
	OpLess           Operator = "LESS"
	OpLessOrEqual    Operator = "LESS_OR_EQUAL"
	OpGreater        Operator = "GREATER"
	OpGreaterOrEqual Operator = "GREATER_OR_EQUAL"
)

// Condition combines the rules of a filter.
type Condition string

const (
	ConditionUnset Condition = ""
	ConditionAnd   Condition = "and"
	ConditionOr    Condition = "or"
	ConditionNor   Condition = "nor"
)

// Valid reports whether c is one of and/or/nor.
func (c Condition) Valid() bool {
	switch c {
	case ConditionAnd, ConditionOr, ConditionNor:
		return true
	default:
		return false
	}
}

// ValueKind discriminates the Value union.
type ValueKind int

const (
	ValueUnset ValueKind = iota
	ValueString
	ValueList
	ValueNumber
)

// Value is a rule value: a string, a list of strings, or a number.
type Value struct {
	Kind ValueKind
	Str  string
	List []string
	Num  float64
}

// StringValue returns a string value.
func StringValue(s string) Value {
	return Value{Kind: ValueString, Str: s}
}

// ListValue returns a string-list value.
func ListValue(items ...string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{Kind: ValueList, List: items}
}

// NumberValue returns a numeric value.
func NumberValue(n float64) Value {
	return Value{Kind: ValueNumber, Num: n}
}

// IsEmpty reports whether the value is unset or the empty string.
// An empty list is a value, not an empty one.
func (v Value) IsEmpty() bool {
	return v.Kind == ValueUnset || (v.Kind == ValueString && v.Str == "")
}

// Equal compares two values structurally. List order is significant.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueString:
		return v.Str == o.Str
	case ValueNumber:
		return v.Num == o.Num
	case ValueList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders the value for logs and error messages.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return fmt.Sprintf("%v", v.Num)
	case ValueList:
		return fmt.Sprintf("%v", v.List)
	default:
		return "<unset>"
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(v.Str)
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
// Accepts null, a string, a number or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		*v = ListValue(items...)
	case 't', 'f', '{':
		return ErrUnsupportedValue
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		*v = NumberValue(n)
	}
	return nil
}

// FilterRule is a single field/operator/value triple.
type FilterRule struct {
	ID            RuleID   `json:"id"`
	Field         Field    `json:"field"`
	Operator      Operator `json:"operator"`
	Value         Value    `json:"value"`
	IsUnremovable bool     `json:"isUnremovable,omitempty"`
}

// FilterOptions is a committed filter or a store draft.
// The zero value is the empty filter {}.
type FilterOptions struct {
	Condition Condition
	Rules     []FilterRule
}

// NewFilterOptions returns an "and" filter over rules.
func NewFilterOptions(rules ...FilterRule) FilterOptions {
	if rules == nil {
		rules = []FilterRule{}
	}
	return FilterOptions{Condition: ConditionAnd, Rules: rules}
}

// IsEmpty reports whether o is the empty filter {}.
func (o FilterOptions) IsEmpty() bool {
	return o.Condition == ConditionUnset && o.Rules == nil
}

// Clone returns a copy whose rule slice can be modified independently.
// Nil rules stay nil so {} survives cloning.
func (o FilterOptions) Clone() FilterOptions {
	out := FilterOptions{Condition: o.Condition}
	if o.Rules != nil {
		out.Rules = make([]FilterRule, len(o.Rules))
		copy(out.Rules, o.Rules)
	}
	return out
}

// FindRule returns the first rule on field, if any.
func (o FilterOptions) FindRule(field Field) (FilterRule, bool) {
	for _, r := range o.Rules {
		if r.Field == field {
			return r, true
		}
	}
	return FilterRule{}, false
}

type filterOptionsJSON struct {
	Condition Condition    `json:"condition,omitempty"`
	Rules     []FilterRule `json:"rules"`
}

// MarshalJSON implements json.Marshaler.
// The empty filter marshals to {}; any other value always carries "rules".
func (o FilterOptions) MarshalJSON() ([]byte, error) {
	if o.IsEmpty() {
		return []byte("{}"), nil
	}
	aux := filterOptionsJSON{Condition: o.Condition, Rules: o.Rules}
	if aux.Rules == nil {
		aux.Rules = []FilterRule{}
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements json.Unmarshaler.
// An absent or null "rules" key leaves Rules nil.
func (o *FilterOptions) UnmarshalJSON(data []byte) error {
	var aux filterOptionsJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	o.Condition = aux.Condition
	o.Rules = aux.Rules
	return nil
}
