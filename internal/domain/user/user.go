// Package user defines the account aggregate.
package user

import (
	"fmt"
	"regexp"
	"time"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// User is an account aggregate (immutable value object).
// The password hash never leaves this package except through PasswordHash.
type User struct {
	id           string
	username     string
	passwordHash string
	createdAt    int64
}

func validateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username is required")
	}
	if len(name) < 3 {
		return fmt.Errorf("username too short (min 3)")
	}
	if len(name) > 64 {
		return fmt.Errorf("username too long (max 64)")
	}
	if !usernameRegex.MatchString(name) {
		return fmt.Errorf("username must be alphanumeric with dots, underscores and hyphens")
	}
	return nil
}

// New validates and creates a User. The password hash must already be computed.
func New(id, username, passwordHash string) (User, error) {
	if id == "" {
		return User{}, fmt.Errorf("user id is required")
	}
	if err := validateUsername(username); err != nil {
		return User{}, err
	}
	if passwordHash == "" {
		return User{}, fmt.Errorf("password hash is required")
	}

	return User{
		id:           id,
		username:     username,
		passwordHash: passwordHash,
		createdAt:    time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a User without validation (storage hydration).
func Reconstruct(id, username, passwordHash string, createdAt int64) User {
	return User{
		id:           id,
		username:     username,
		passwordHash: passwordHash,
		createdAt:    createdAt,
	}
}

// ID returns the user identifier.
func (u User) ID() string { return u.id }

// Username returns the login name.
func (u User) Username() string { return u.username }

// PasswordHash returns the stored bcrypt hash.
func (u User) PasswordHash() string { return u.passwordHash }

// CreatedAt returns the creation timestamp (unix millis).
func (u User) CreatedAt() int64 { return u.createdAt }
