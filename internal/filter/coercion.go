// internal/filter/coercion.go
package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/solatis/mediafilter/internal/types"
)

/*
 * Type coercion for rule values and media attributes.
 *
 * Rule values arrive as the JSON union (string, list, number). Coercion
 * turns them into the comparison domain of the field kind:
 *
 *   - NUMERIC: lenient - numbers, or numeric strings (trimmed) to float64
 *   - TEXT:    strict - string only, bounded by MaxMediaNameLength
 *   - ENUM:    strict - known scene states; list for IN/NOT_IN
 *   - LIST:    strict - list of strings, bounded by MaxInOperatorValues
 *   - DATE:    RFC3339 timestamp or YYYY-MM-DD calendar day
 *
 * Calendar-day dates compare at day granularity (UTC), so EQUAL 2024-03-01
 * matches any time on that day.
 */

// dateValue is a coerced DATE rule value.
type dateValue struct {
	t       time.Time
	dayOnly bool
}

const dayLayout = "2006-01-02"

// coerceRuleValue converts a rule value to the comparison domain of kind.
// Returns ErrCoercionFailed or ErrTooManyInValues.
func coerceRuleValue(kind FieldKind, op types.Operator, v types.Value) (any, error) {
	switch kind {
	case KindNumeric:
		return coerceNumeric(v)
	case KindText:
		return coerceText(v)
	case KindEnum:
		if op == types.OpIn || op == types.OpNotIn {
			return coerceEnumList(v)
		}
		return coerceEnum(v)
	case KindList:
		return coerceList(v)
	case KindDate:
		return coerceDate(v)
	default:
		return nil, types.ErrCoercionFailed
	}
}

// coerceNumeric accepts numbers and numeric strings.
// Whitespace-only strings are not valid numbers.
func coerceNumeric(v types.Value) (any, error) {
	switch v.Kind {
	case types.ValueNumber:
		return v.Num, nil
	case types.ValueString:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return nil, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, types.ErrCoercionFailed
		}
		return f, nil
	default:
		return nil, types.ErrCoercionFailed
	}
}

func coerceText(v types.Value) (any, error) {
	if v.Kind != types.ValueString || len(v.Str) > types.MaxMediaNameLength {
		return nil, types.ErrCoercionFailed
	}
	return v.Str, nil
}

func coerceEnum(v types.Value) (any, error) {
	if v.Kind != types.ValueString || !isSceneState(v.Str) {
		return nil, types.ErrCoercionFailed
	}
	return v.Str, nil
}

func coerceEnumList(v types.Value) (any, error) {
	items, err := coerceList(v)
	if err != nil {
		return nil, err
	}
	for _, s := range items.([]string) {
		if !isSceneState(s) {
			return nil, types.ErrCoercionFailed
		}
	}
	return items, nil
}

func coerceList(v types.Value) (any, error) {
	if v.Kind != types.ValueList {
		return nil, types.ErrCoercionFailed
	}
	if len(v.List) > types.MaxInOperatorValues {
		return nil, types.ErrTooManyInValues
	}
	return v.List, nil
}

// coerceDate parses RFC3339 timestamps and YYYY-MM-DD calendar days.
func coerceDate(v types.Value) (any, error) {
	if v.Kind != types.ValueString {
		return nil, types.ErrCoercionFailed
	}
	s := strings.TrimSpace(v.Str)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return dateValue{t: t.UTC()}, nil
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return dateValue{t: t.UTC(), dayOnly: true}, nil
	}
	return nil, types.ErrCoercionFailed
}

func isSceneState(s string) bool {
	for _, state := range types.SceneStates {
		if string(state) == s {
			return true
		}
	}
	return false
}

// attribute reads the value a field refers to from a media record.
// Returns false when the media has no such attribute (an unannotated item
// has no annotation creation date).
func attribute(media *types.Media, field types.Field) (any, bool) {
	switch field {
	case types.FieldLabelID:
		return media.LabelIDs, true
	case types.FieldMediaName:
		return media.Name, true
	case types.FieldMediaWidth:
		return float64(media.Width), true
	case types.FieldMediaHeight:
		return float64(media.Height), true
	case types.FieldAnnotationSceneState:
		return string(media.SceneState), true
	case types.FieldMediaUploadDate:
		if media.UploadedAt.IsZero() {
			return nil, false
		}
		return media.UploadedAt.UTC(), true
	case types.FieldAnnotationCreationDate:
		if media.AnnotatedAt == nil {
			return nil, false
		}
		return media.AnnotatedAt.UTC(), true
	default:
		return nil, false
	}
}
