package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mcaverela/todo-backend/config"
	"github.com/mcaverela/todo-backend/internal/api"
)

var _ TokenService = (*JWTTokenService)(nil)

// TokenService issues and verifies signed, time-bound bearer tokens.
type TokenService interface {
	// Issue signs a token carrying the subject id and email, with audience,
	// issuer and expiry taken from configuration.
	Issue(ctx context.Context, userID int64, email string) (string, error)

	// Verify parses and validates a token. Any failure (malformed token, bad
	// signature, expired, wrong audience, wrong issuer) surfaces uniformly as
	// api.ErrUnauthenticated; the concrete cause goes to internal logs only.
	Verify(ctx context.Context, tokenString string) (*AuthUserData, error)
}

type JWTTokenService struct {
	logger *slog.Logger
	cfg    config.JWTConfig
}

func NewJWTTokenService(cfg config.JWTConfig, logger *slog.Logger) *JWTTokenService {
	return &JWTTokenService{
		logger: logger,
		cfg:    cfg,
	}
}

// Issue implements TokenService.
func (s *JWTTokenService) Issue(ctx context.Context, userID int64, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to sign access token", slog.Any("error", err))
		return "", fmt.Errorf("failed to generate token: %w", api.ErrInternal)
	}
	return signed, nil
}

// Verify implements TokenService.
func (s *JWTTokenService) Verify(ctx context.Context, tokenString string) (*AuthUserData, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.SecretKey), nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		// The reason (malformed, bad signature, expired, wrong aud/iss) is
		// logged for operators but never exposed to the caller.
		s.logger.WarnContext(ctx, "Token verification failed", slog.Any("error", err))
		return nil, fmt.Errorf("invalid token: %w", api.ErrUnauthenticated)
	}

	sub, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		s.logger.WarnContext(ctx, "Token subject is not numeric", slog.String("sub", claims.Subject))
		return nil, fmt.Errorf("invalid token: %w", api.ErrUnauthenticated)
	}

	return &AuthUserData{Sub: sub, Email: claims.Email}, nil
}
