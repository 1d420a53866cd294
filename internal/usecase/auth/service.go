// Package auth implements account registration and JWT-based sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	domuser "github.com/lodgeit-ai/ragchat/internal/domain/user"
)

const minPasswordLen = 8

// Service handles registration, login and token verification.
type Service struct {
	repo     UserRepository
	secret   []byte
	tokenTTL time.Duration
}

// New creates an auth service. The secret signs HS256 tokens.
func New(repo UserRepository, secret string, tokenTTL time.Duration) *Service {
	return &Service{repo: repo, secret: []byte(secret), tokenTTL: tokenTTL}
}

// Register creates a new account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, username, password string) (domuser.User, error) {
	username = strings.TrimSpace(username)
	if len(password) < minPasswordLen {
		return domuser.User{}, fmt.Errorf("%w: password must be at least %d characters",
			domain.ErrInvalidRequest, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domuser.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := domuser.New(uuid.NewString(), username, string(hash))
	if err != nil {
		return domuser.User{}, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return domuser.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login verifies credentials and issues a signed token.
// Unknown usernames and wrong passwords both map to ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash()), []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      u.ID(),
		"username": u.Username(),
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// VerifyToken parses and validates a token, returning the embedded identity.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, domain.ErrUnauthorized
	}

	sub, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	if sub == "" {
		return Identity{}, domain.ErrUnauthorized
	}
	return Identity{UserID: sub, Username: username}, nil
}
