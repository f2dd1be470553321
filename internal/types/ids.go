package types

import (
	"time"

	"github.com/google/uuid"
)

// RuleID identifies a filter rule.
// String alias keeps JSON serialization as a plain string.
type RuleID string

// MediaID identifies a media item (image or video).
type MediaID string

// IDProvider generates rule identifiers.
// Injected into the reducer so tests can use deterministic ids.
type IDProvider interface {
	NewRuleID() RuleID
}

// IDProviderFunc adapts a function to IDProvider.
type IDProviderFunc func() RuleID

// NewRuleID implements IDProvider.
func (f IDProviderFunc) NewRuleID() RuleID {
	return f()
}

// DefaultIDProvider issues UUIDv7 rule ids.
var DefaultIDProvider IDProvider = IDProviderFunc(NewRuleID)

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewMediaID generates a UUIDv7 media identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
func NewMediaID() MediaID {
	return MediaID(uuid.Must(uuid.NewV7()).String())
}

// ParseMediaID validates and converts a string to MediaID.
func ParseMediaID(s string) (MediaID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return MediaID(s), nil
}

// MediaIDTime extracts the timestamp embedded in a UUIDv7 media ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func MediaIDTime(id MediaID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
