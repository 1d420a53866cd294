package auth

import (
	"context"

	domuser "github.com/lodgeit-ai/ragchat/internal/domain/user"
)

// UserRepository defines the storage contract for accounts.
type UserRepository interface {
	Create(ctx context.Context, u domuser.User) error
	GetByUsername(ctx context.Context, username string) (domuser.User, error)
}

// Identity is the authenticated principal extracted from a token.
type Identity struct {
	UserID   string
	Username string
}
