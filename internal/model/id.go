package model

import "github.com/oklog/ulid/v2"

// NewID returns a new entity identifier.
func NewID() string {
	return ulid.Make().String()
}

// IsValidID reports whether s has the shape of an entity identifier.
func IsValidID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
