// Package auth implements credential checks, login/logout pages and the
// session-to-identity resolver consumed by the authorization gate.
package auth

import "time"

// User represents an authenticatable account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
