package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed chat query.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized signals a missing or invalid session token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserExists signals a duplicate registration.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound signals a missing user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials signals a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrChatNotFound signals a missing or foreign chat session.
	ErrChatNotFound = errors.New("chat not found")

	// ErrRetrievalFailed signals that document retrieval failed after retry.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrGenerationFailed signals that answer generation failed after retry.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrCatalogInconsistency signals a label without a catalog entry.
	// This is a programming error and must fail fast at startup.
	ErrCatalogInconsistency = errors.New("index catalog inconsistency")

	// ErrUpstreamUnavailable signals an unreachable upstream service.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamTimeout signals an upstream call exceeding its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamBadResponse signals a malformed or rejected upstream response.
	ErrUpstreamBadResponse = errors.New("upstream bad response")
)

// IsTransient reports whether an upstream error is worth a single retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUpstreamTimeout)
}
