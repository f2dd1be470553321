// internal/filter/reducer.go
package filter

import (
	"github.com/solatis/mediafilter/internal/types"
)

/*
 * Draft reducer.
 *
 * Reduce is the only way a draft changes. It is a pure function of the
 * current draft and one action; ids for new rules come from the injected
 * provider so the reducer stays deterministic under test.
 *
 * Actions:
 *   - ADD: append a blank rule (fresh id) unless MaxRules is reached
 *   - UPDATE: replace the rule with the action id, order preserved
 *   - REMOVE: drop the rule with the action id (no collapse to {})
 *   - UPDATE_ALL: replace the draft wholesale
 *   - REMOVE_ALL: keep unremovable rules, collapse to {} if none remain
 *
 * Unknown actions return a copy of the draft. REMOVE and REMOVE_ALL differ
 * on purpose: removing the last rule row leaves {condition, rules: []} so
 * the panel keeps its condition, while clearing the filter returns {}.
 */

// ActionType enumerates reducer actions.
type ActionType int

const (
	ActionUnspecified ActionType = iota
	ActionAdd
	ActionUpdate
	ActionRemove
	ActionUpdateAll
	ActionRemoveAll
)

var actionNames = map[ActionType]string{
	ActionAdd:       "ADD",
	ActionUpdate:    "UPDATE",
	ActionRemove:    "REMOVE",
	ActionUpdateAll: "UPDATE_ALL",
	ActionRemoveAll: "REMOVE_ALL",
}

// String returns the wire name of the action type.
func (t ActionType) String() string {
	if name, ok := actionNames[t]; ok {
		return name
	}
	return "UNSPECIFIED"
}

// ParseActionType converts a wire name to ActionType.
func ParseActionType(s string) (ActionType, error) {
	for t, name := range actionNames {
		if name == s {
			return t, nil
		}
	}
	return ActionUnspecified, types.ErrUnknownAction
}

// Action is one reducer input. Only the fields relevant to Type are read.
type Action struct {
	Type    ActionType
	ID      types.RuleID        // UPDATE, REMOVE
	Rule    types.FilterRule    // UPDATE
	Options types.FilterOptions // UPDATE_ALL
}

// Add returns an ADD action.
func Add() Action { return Action{Type: ActionAdd} }

// Update returns an UPDATE action for rule id.
func Update(id types.RuleID, rule types.FilterRule) Action {
	return Action{Type: ActionUpdate, ID: id, Rule: rule}
}

// Remove returns a REMOVE action for rule id.
func Remove(id types.RuleID) Action { return Action{Type: ActionRemove, ID: id} }

// UpdateAll returns an UPDATE_ALL action.
func UpdateAll(options types.FilterOptions) Action {
	return Action{Type: ActionUpdateAll, Options: options}
}

// RemoveAll returns a REMOVE_ALL action.
func RemoveAll() Action { return Action{Type: ActionRemoveAll} }

// Reduce applies action to state and returns the new draft.
// state is never modified.
func Reduce(state types.FilterOptions, action Action, ids types.IDProvider) types.FilterOptions {
	switch action.Type {
	case ActionAdd:
		if len(state.Rules) >= types.MaxRules {
			return state
		}
		if ids == nil {
			ids = types.DefaultIDProvider
		}
		next := state.Clone()
		next.Rules = append(next.Rules, types.FilterRule{
			ID:    ids.NewRuleID(),
			Value: types.StringValue(""),
		})
		return next

	case ActionUpdate:
		if len(state.Rules) == 0 {
			return state
		}
		next := state.Clone()
		for i, r := range next.Rules {
			if r.ID == action.ID {
				rule := action.Rule
				rule.ID = action.ID
				next.Rules[i] = rule
			}
		}
		return next

	case ActionRemove:
		if len(state.Rules) == 0 {
			return state
		}
		return types.FilterOptions{
			Condition: state.Condition,
			Rules:     removeRule(state.Rules, action.ID),
		}

	case ActionUpdateAll:
		return action.Options.Clone()

	case ActionRemoveAll:
		kept := unremovableRules(state.Rules)
		if len(kept) == 0 {
			return types.FilterOptions{}
		}
		return types.FilterOptions{Condition: state.Condition, Rules: kept}

	default:
		return state.Clone()
	}
}
