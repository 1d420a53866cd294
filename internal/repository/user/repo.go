// Package user persists accounts in the key-value store.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lodgeit-ai/ragchat/internal/db"
	"github.com/lodgeit-ai/ragchat/internal/domain"
	domuser "github.com/lodgeit-ai/ragchat/internal/domain/user"
)

// store is the consumer interface for accounts (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte) error
}

// Repo implements usecase/auth.UserRepository.
type Repo struct {
	store  store
	prefix string
}

// New creates a user repository. Keys look like "<prefix>user:<username>".
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Create stores a new account. Uniqueness is enforced by SET NX on the
// username key, so concurrent registrations cannot both succeed.
func (r *Repo) Create(ctx context.Context, u domuser.User) error {
	data, err := userToJSON(u)
	if err != nil {
		return err
	}

	if err := r.store.SetNX(ctx, r.key(u.Username()), data); err != nil {
		if errors.Is(err, db.ErrKeyExists) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("setnx user %s: %w", u.Username(), err)
	}
	return nil
}

// GetByUsername retrieves an account by login name.
func (r *Repo) GetByUsername(ctx context.Context, username string) (domuser.User, error) {
	data, err := r.store.Get(ctx, r.key(username))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domuser.User{}, domain.ErrUserNotFound
		}
		return domuser.User{}, fmt.Errorf("get user %s: %w", username, err)
	}
	return userFromJSON(data)
}

func (r *Repo) key(username string) string {
	return fmt.Sprintf("%suser:%s", r.prefix, strings.ToLower(username))
}
