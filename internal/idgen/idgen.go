// Package idgen provides short, URL-safe session ids backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/solatis/mediafilter/internal/types"
)

// SessionPrefix is prepended to every generated session id.
const SessionPrefix = "fs-"

// InstancePrefix is prepended to every generated server instance id.
const InstancePrefix = "mf-"

// Alphabet is the character set of the random part of an id.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters (excluding the prefix).
const Length = 12

// NewSessionID returns a new filter session id.
func NewSessionID() (types.SessionID, error) {
	id, err := WithPrefix(SessionPrefix)
	if err != nil {
		return "", err
	}
	return types.SessionID(id), nil
}

// NewInstanceID returns a new id for a running server instance.
func NewInstanceID() (string, error) {
	return WithPrefix(InstancePrefix)
}

// WithPrefix returns a new unique id with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
