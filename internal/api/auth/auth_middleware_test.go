package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcaverela/todo-backend/internal/api"
)

// MockTokenService is a mock implementation of the TokenService interface
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(ctx context.Context, userID int64, email string) (string, error) {
	args := m.Called(ctx, userID, email)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Verify(ctx context.Context, tokenString string) (*AuthUserData, error) {
	args := m.Called(ctx, tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AuthUserData), args.Error(1)
}

func TestAuthenticate(t *testing.T) {
	logger := slog.Default()

	// echoIdentity reports whether an identity reached the next handler.
	echoIdentity := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := GetAuthUserFromContext(r.Context()); ok {
			fmt.Fprintf(w, "user:%d", identity.Sub)
			return
		}
		fmt.Fprint(w, "anonymous")
	})

	t.Run("BearerSuccess", func(t *testing.T) {
		tokens := new(MockTokenService)
		tokens.On("Verify", mock.Anything, "good-token").
			Return(&AuthUserData{Sub: 42, Email: "alice@example.com"}, nil).Once()

		handler := Authenticate(logger, tokens)(echoIdentity)

		req := httptest.NewRequest(http.MethodGet, "/todos", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user:42", rec.Body.String())
		tokens.AssertExpectations(t)
	})

	t.Run("DefaultsToBearer", func(t *testing.T) {
		tokens := new(MockTokenService)

		handler := Authenticate(logger, tokens)(echoIdentity)

		req := httptest.NewRequest(http.MethodGet, "/todos", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("AnonymousPassesWithoutIdentity", func(t *testing.T) {
		tokens := new(MockTokenService)

		handler := Authenticate(logger, tokens, AuthTypeAnonymous)(echoIdentity)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
		tokens.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})

	t.Run("AnonymousIgnoresPresentedToken", func(t *testing.T) {
		tokens := new(MockTokenService)

		handler := Authenticate(logger, tokens, AuthTypeAnonymous)(echoIdentity)

		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set("Authorization", "Bearer whatever")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})

	t.Run("UniformRejection", func(t *testing.T) {
		// Missing header, malformed header, and a bad token all produce the
		// exact same response.
		tokens := new(MockTokenService)
		tokens.On("Verify", mock.Anything, "bad-token").
			Return(nil, fmt.Errorf("invalid token: %w", api.ErrUnauthenticated)).Once()

		handler := Authenticate(logger, tokens)(echoIdentity)

		cases := map[string]string{
			"MissingHeader":   "",
			"MalformedHeader": "Basic dXNlcjpwYXNz",
			"BadToken":        "Bearer bad-token",
		}
		var bodies []string
		for name, header := range cases {
			t.Run(name, func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "/todos", nil)
				if header != "" {
					req.Header.Set("Authorization", header)
				}
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)

				assert.Equal(t, http.StatusUnauthorized, rec.Code)
				bodies = append(bodies, rec.Body.String())
			})
		}
		require.Len(t, bodies, 3)
		assert.Equal(t, bodies[0], bodies[1])
		assert.Equal(t, bodies[1], bodies[2])
	})

	t.Run("FirstStrategyWins", func(t *testing.T) {
		tokens := new(MockTokenService)

		handler := Authenticate(logger, tokens, AuthTypeAnonymous, AuthTypeBearer)(echoIdentity)

		req := httptest.NewRequest(http.MethodGet, "/todos", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymous", rec.Body.String())
	})
}

func TestGetAuthUserFromContext(t *testing.T) {
	_, ok := GetAuthUserFromContext(context.Background())
	assert.False(t, ok)
}
