package domain

import (
	"fmt"
	"strings"
	"time"
)

// UserRole determines which ticket mutations a user may perform.
type UserRole string

const (
	UserRoleAssociate UserRole = "ASSOCIATE"
	UserRoleManager   UserRole = "MANAGER"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleAssociate || r == UserRoleManager
}

// ParseUserRole accepts any casing and returns the canonical role.
func ParseUserRole(raw string) (UserRole, error) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("invalid role: %s", raw)
	}
	return role, nil
}

// User is an actor that creates, reviews or approves tickets.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
