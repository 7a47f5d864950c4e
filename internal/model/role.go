// Package model defines domain entities for the application.
package model

import "errors"

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrInvalidRole is returned when a string does not name a known role.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole converts s into a Role. Anything outside the enumeration fails.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleAdmin:
		return r, nil
	default:
		return "", ErrInvalidRole
	}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}
