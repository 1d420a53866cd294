package chi

import (
	"context"
	"net/http"
	"strings"

	authuc "github.com/lodgeit-ai/ragchat/internal/usecase/auth"
)

type identityKey struct{}

// exemptPaths are routes that bypass authentication.
var exemptPaths = map[string]struct{}{
	"/health":               {},
	"/metrics":              {},
	"/api/v1/auth/register": {},
	"/api/v1/auth/login":    {},
}

// TokenVerifier validates a bearer token and returns the caller's identity.
type TokenVerifier interface {
	VerifyToken(token string) (authuc.Identity, error)
}

// JWTAuthMiddleware returns a middleware that validates Bearer tokens and
// places the caller's identity in the request context.
func JWTAuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized,
					"authorization header must use Bearer scheme")
				return
			}

			identity, err := verifier.VerifyToken(auth[len(bearerPrefix):])
			if err != nil {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (authuc.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(authuc.Identity)
	return id, ok
}
