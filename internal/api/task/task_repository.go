package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcaverela/todo-backend/app/observability/metrics"
	"github.com/mcaverela/todo-backend/internal/api"
	"github.com/mcaverela/todo-backend/internal/api/auth"
)

// TaskRepo persists tasks and resolves task owners.
type TaskRepo interface {
	// GetUserByID fetches a user row by primary key. Returns api.ErrNotFound
	// when no such user exists.
	GetUserByID(ctx context.Context, userID int64) (*auth.User, error)
	// CreateTask inserts the task and fills its generated fields.
	CreateTask(ctx context.Context, t *Task) error
	// GetTaskByIDForUser fetches a task only when it belongs to ownerID.
	// Returns api.ErrNotFound otherwise, including when the task exists but
	// belongs to someone else.
	GetTaskByIDForUser(ctx context.Context, taskID, ownerID int64) (*Task, error)
	// ListTasks returns one page of the owner's tasks plus the total count
	// across all pages.
	ListTasks(ctx context.Context, ownerID int64, q PaginationQuery) ([]Task, int64, error)
	// UpdateTask overwrites the supplied fields of an existing task, scoped
	// to the owner. Returns api.ErrNotFound when no row matched.
	UpdateTask(ctx context.Context, taskID, ownerID int64, req UpdateTaskRequest) error
	// DeleteTask removes a task by primary key. A delete that matches no
	// rows is not an error; the row may already be gone.
	DeleteTask(ctx context.Context, taskID int64) error
}

var _ TaskRepo = (*PostgresTaskRepo)(nil)

type PostgresTaskRepo struct {
	logger *slog.Logger
	pgpool api.DB
}

func NewPostgresTaskRepo(pgpool api.DB, logger *slog.Logger) *PostgresTaskRepo {
	return &PostgresTaskRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresTaskRepo) GetUserByID(ctx context.Context, userID int64) (*auth.User, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	var user auth.User
	err := r.pgpool.QueryRow(ctx, `
        SELECT id, name, email, password_hash, created_at, updated_at
        FROM users
        WHERE id = $1`, userID).
		Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "user not found")
			return nil, fmt.Errorf("user %d: %w", userID, api.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "database error")
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}

func (r *PostgresTaskRepo) CreateTask(ctx context.Context, t *Task) error {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "CreateTask", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("user.id", t.UserID),
	))
	defer span.End()

	err := r.pgpool.QueryRow(ctx, `
        INSERT INTO todos (title, description, user_id)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`,
		t.Title, t.Description, t.UserID).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to create task: %w", err)
	}

	span.SetAttributes(attribute.Int64("task.id", t.ID))
	return nil
}

func (r *PostgresTaskRepo) GetTaskByIDForUser(ctx context.Context, taskID, ownerID int64) (*Task, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "GetTaskByIDForUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("task.id", taskID),
		attribute.Int64("user.id", ownerID),
	))
	defer span.End()

	var t Task
	err := r.pgpool.QueryRow(ctx, `
        SELECT id, title, description, user_id, created_at, updated_at
        FROM todos
        WHERE id = $1 AND user_id = $2`, taskID, ownerID).
		Scan(&t.ID, &t.Title, &t.Description, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "task not found")
			return nil, fmt.Errorf("task %d: %w", taskID, api.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "database error")
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, fmt.Errorf("failed to fetch task: %w", err)
	}

	return &t, nil
}

func (r *PostgresTaskRepo) ListTasks(ctx context.Context, ownerID int64, q PaginationQuery) ([]Task, int64, error) {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "ListTasks", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("user.id", ownerID),
		attribute.Int("page", q.Page),
		attribute.Int("limit", q.Limit),
	))
	defer span.End()

	var total int64
	err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM todos WHERE user_id = $1`, ownerID).Scan(&total)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	orderBy := "created_at DESC"
	if q.SortBy != "" {
		// sortBy is validated against sortColumns at parse time, so the
		// column name is safe to interpolate.
		orderBy = fmt.Sprintf("%s %s, created_at DESC", sortColumns[q.SortBy], q.Order)
	}
	offset := (q.Page - 1) * q.Limit

	rows, err := r.pgpool.Query(ctx, fmt.Sprintf(`
        SELECT id, title, description, user_id, created_at, updated_at
        FROM todos
        WHERE user_id = $1
        ORDER BY %s
        LIMIT $2 OFFSET $3`, orderBy), ownerID, q.Limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0, q.Limit)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			span.RecordError(err)
			return nil, 0, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed reading task rows: %w", err)
	}

	return tasks, total, nil
}

func (r *PostgresTaskRepo) UpdateTask(ctx context.Context, taskID, ownerID int64, req UpdateTaskRequest) error {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "UpdateTask", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("task.id", taskID),
		attribute.Int64("user.id", ownerID),
	))
	defer span.End()

	setClauses := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)
	argID := 1

	addClause := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
	}

	if req.Title != nil {
		addClause("title", *req.Title)
	}
	if req.Description != nil {
		addClause("description", *req.Description)
	}
	if len(setClauses) == 0 {
		span.SetStatus(codes.Ok, "no fields to update")
		return nil
	}
	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE todos SET %s WHERE id = $%d AND user_id = $%d`,
		strings.Join(setClauses, ", "), argID, argID+1)
	args = append(args, taskID, ownerID)

	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "task not found")
		return fmt.Errorf("task %d: %w", taskID, api.ErrNotFound)
	}

	return nil
}

func (r *PostgresTaskRepo) DeleteTask(ctx context.Context, taskID int64) error {
	ctx, span := otel.Tracer("TaskRepo").Start(ctx, "DeleteTask", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.Int64("task.id", taskID),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM todos WHERE id = $1`, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		metrics.Get().DbQueryErrorsTotal.Add(ctx, 1)
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// The row can vanish between the caller's ownership check and this
		// delete. The end state is the same either way, so a miss here is
		// not an error.
		r.logger.WarnContext(ctx, "Delete matched no rows", slog.Int64("taskID", taskID))
	}

	return nil
}
