// Package types provides domain models shared across mediafilter components.
//
// Zero-dependency design: filter.go, media.go and errors.go use only
// encoding/json so the filter model can be embedded in clients without
// pulling in the service stack. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
package types

// TenantID identifies the tenant owning datasets, media and filters.
// Resolved from the API key during authentication.
type TenantID string

// DatasetID identifies a dataset within a tenant.
// A dataset owns exactly one committed FilterOptions.
type DatasetID string

// SessionID identifies one live filter draft (one open filter panel).
type SessionID string

// Resource limits enforced by the filter engine.
const (
	// MaxRules caps the number of rules a draft may hold.
	// ADD beyond this is a silent no-op.
	MaxRules = 20

	// MaxInOperatorValues limits IN/NOT_IN list size.
	// 64 values covers label sets of realistic projects without quadratic matching cost.
	MaxInOperatorValues = 64

	// MaxMediaNameLength bounds name rule values and stored media names.
	MaxMediaNameLength = 255

	// MaxMediaPageSize caps the number of media items returned by one query.
	MaxMediaPageSize = 1000
)
