package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mcaverela/todo-backend/internal/api"
)

// AuthType is a route's declared authentication requirement.
type AuthType int

const (
	// AuthTypeBearer requires a valid bearer token. This is the default.
	AuthTypeBearer AuthType = iota
	// AuthTypeAnonymous allows the request through with no identity attached.
	AuthTypeAnonymous
)

// contextKey is the unexported type for context values set by this package.
type contextKey string

const authUserKey contextKey = "authUser"

// ContextWithAuthUser attaches a verified identity to ctx.
func ContextWithAuthUser(ctx context.Context, user *AuthUserData) context.Context {
	return context.WithValue(ctx, authUserKey, user)
}

// GetAuthUserFromContext returns the identity attached by the Authenticate
// middleware, if any.
func GetAuthUserFromContext(ctx context.Context) (*AuthUserData, bool) {
	user, ok := ctx.Value(authUserKey).(*AuthUserData)
	return user, ok
}

// Authenticate is middleware enforcing the declared auth requirements of a
// route group. Strategies are tried in order and the first success wins; when
// every strategy fails the request is denied with the error from the last
// attempted strategy. With no strategies declared, bearer auth is required.
//
// The deny path never reveals whether a token was missing, malformed,
// expired, or mis-scoped: one error kind, one message, one status code.
func Authenticate(logger *slog.Logger, tokens TokenService, authTypes ...AuthType) func(next http.Handler) http.Handler {
	if len(authTypes) == 0 {
		authTypes = []AuthType{AuthTypeBearer}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.With(slog.String("middleware", "Authenticate"))

			var lastErr error
			for _, authType := range authTypes {
				switch authType {
				case AuthTypeAnonymous:
					next.ServeHTTP(w, r)
					return
				case AuthTypeBearer:
					identity, err := bearerIdentity(r, tokens)
					if err != nil {
						lastErr = err
						continue
					}
					ctx := ContextWithAuthUser(r.Context(), identity)
					l.DebugContext(ctx, "Authentication successful",
						slog.Int64("userID", identity.Sub))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				default:
					lastErr = fmt.Errorf("unknown auth type %d: %w", authType, api.ErrUnauthenticated)
				}
			}

			l.WarnContext(r.Context(), "Request denied", slog.Any("error", lastErr))
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		})
	}
}

// bearerIdentity extracts and verifies the bearer token from r. Every failure
// wraps api.ErrUnauthenticated so callers cannot tell the sub-checks apart.
func bearerIdentity(r *http.Request, tokens TokenService) (*AuthUserData, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("missing authorization header: %w", api.ErrUnauthenticated)
	}

	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
		return nil, fmt.Errorf("malformed authorization header: %w", api.ErrUnauthenticated)
	}

	identity, err := tokens.Verify(r.Context(), headerParts[1])
	if err != nil {
		if !errors.Is(err, api.ErrUnauthenticated) {
			err = fmt.Errorf("token verification: %w: %w", err, api.ErrUnauthenticated)
		}
		return nil, err
	}
	return identity, nil
}
