package types

import "errors"

// Sentinel errors for mediafilter operations.
var (
	// ErrUnknownField indicates a rule names a field outside the catalog.
	ErrUnknownField = errors.New("unknown filter field")

	// ErrInvalidOperator indicates an unknown operator or one illegal for the field.
	ErrInvalidOperator = errors.New("invalid operator for field")

	// ErrInvalidValue indicates a rule value of the wrong shape for its field.
	ErrInvalidValue = errors.New("invalid value for field")

	// ErrTooManyInValues indicates an IN/NOT_IN list exceeds MaxInOperatorValues.
	ErrTooManyInValues = errors.New("IN operator has too many values")

	// ErrInvalidCondition indicates a condition other than and/or/nor.
	ErrInvalidCondition = errors.New("invalid filter condition")

	// ErrUnsupportedValue indicates a JSON value that is not a string, number or string list.
	ErrUnsupportedValue = errors.New("rule value must be a string, number or list of strings")

	// ErrCoercionFailed indicates a value could not be coerced to the field kind.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrUnknownSession indicates no live draft exists for a session id.
	ErrUnknownSession = errors.New("unknown filter session")

	// ErrTooManySessions indicates the engine reached its session limit.
	ErrTooManySessions = errors.New("too many open filter sessions")

	// ErrInvalidRequest indicates a request missing a required field.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownAction indicates an action type outside the five reducer actions.
	ErrUnknownAction = errors.New("unknown filter action")
)
