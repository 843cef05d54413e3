package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcaverela/todo-backend/internal/api"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for user persistence.
type UserRepo interface {
	// GetUserByEmail returns the user with the given email.
	// Returns api.ErrNotFound when no such user exists.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// CreateUser persists a new user with the given password hash. Email
	// uniqueness is NOT re-checked here; a unique-constraint violation from
	// the store (a race past the caller's pre-check) surfaces as
	// api.ErrInternal, never as a silent duplicate.
	CreateUser(ctx context.Context, name, email, hashedPassword string) (*User, error)
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool api.DB
}

func NewPostgresUserRepo(pgpool api.DB, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	var user User
	err := r.pgpool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at
         FROM users WHERE email = $1`,
		email).Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "User not found")
			return nil, fmt.Errorf("user with email not found: %w", api.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching user by email: %w", err)
	}

	span.SetStatus(codes.Ok, "User found")
	return &user, nil
}

func (r *PostgresUserRepo) CreateUser(ctx context.Context, name, email, hashedPassword string) (*User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "CreateUser"))

	user := User{
		Name:     name,
		Email:    email,
		Password: hashedPassword,
	}
	err := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (name, email, password_hash)
         VALUES ($1, $2, $3)
         RETURNING id, created_at, updated_at`,
		name, email, hashedPassword).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A registration raced past the uniqueness pre-check. The
			// constraint held; report it as an internal fault, matching the
			// documented contract of the uniqueness check living upstream.
			l.ErrorContext(ctx, "Unique constraint violation on user insert",
				slog.String("constraint", pgErr.ConstraintName))
			return nil, fmt.Errorf("user insert violated unique constraint: %w", api.ErrInternal)
		}

		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		return nil, fmt.Errorf("failed to insert user: %w", api.ErrInternal)
	}

	l.InfoContext(ctx, "User created", slog.Int64("userID", user.ID))
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	span.SetStatus(codes.Ok, "User created")
	return &user, nil
}
