// Package identity builds per-call contexts from transport credentials
// and owns the auth procedures.
package identity

import "time"

// User represents an account in the identity store.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
