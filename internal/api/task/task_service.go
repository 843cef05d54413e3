package task

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mcaverela/todo-backend/app/observability/metrics"
	"github.com/mcaverela/todo-backend/internal/api/auth"
	"github.com/mcaverela/todo-backend/internal/api/search"
)

// Service exposes the owner-scoped task operations. Every method takes the
// already-resolved owner so a task can never cross tenant boundaries.
type Service interface {
	// ResolveOwner turns an authenticated user id into the current user
	// record, or nil when the account no longer exists.
	ResolveOwner(ctx context.Context, userID int64) *auth.User
	CreateTask(ctx context.Context, owner *auth.User, req CreateTaskRequest) (*Task, error)
	PaginateTasks(ctx context.Context, owner *auth.User, q PaginationQuery) (*TaskPage, error)
	UpdateTask(ctx context.Context, owner *auth.User, taskID int64, req UpdateTaskRequest) (*Task, error)
	DeleteTask(ctx context.Context, owner *auth.User, taskID int64) error
	SearchTasks(ctx context.Context, owner *auth.User, query string, limit int64) ([]search.TaskDocument, error)
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	logger    *slog.Logger
	repo      TaskRepo
	search    search.Service
	userCache *gocache.Cache
}

func NewServiceImpl(repo TaskRepo, searchSvc search.Service, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		repo:      repo,
		search:    searchSvc,
		userCache: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// ResolveOwner caches hits briefly so a burst of requests from the same
// session does not hammer the users table. Lookup failures of any kind
// resolve to nil; the caller decides how to reject the request.
func (s *ServiceImpl) ResolveOwner(ctx context.Context, userID int64) *auth.User {
	key := strconv.FormatInt(userID, 10)
	if cached, found := s.userCache.Get(key); found {
		return cached.(*auth.User)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "Owner lookup failed", slog.Int64("userID", userID), slog.Any("error", err))
		return nil
	}

	s.userCache.Set(key, user, gocache.DefaultExpiration)
	return user
}

func (s *ServiceImpl) CreateTask(ctx context.Context, owner *auth.User, req CreateTaskRequest) (*Task, error) {
	l := s.logger.With(slog.String("method", "CreateTask"), slog.Int64("userID", owner.ID))

	t := &Task{
		Title:       req.Title,
		Description: req.Description,
		UserID:      owner.ID,
	}
	if err := s.repo.CreateTask(ctx, t); err != nil {
		l.ErrorContext(ctx, "Failed to create task", slog.Any("error", err))
		return nil, err
	}
	metrics.Get().TaskOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "create")))

	s.indexTask(ctx, t)
	l.DebugContext(ctx, "Task created", slog.Int64("taskID", t.ID))
	return t, nil
}

func (s *ServiceImpl) PaginateTasks(ctx context.Context, owner *auth.User, q PaginationQuery) (*TaskPage, error) {
	items, total, err := s.repo.ListTasks(ctx, owner.ID, q)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list tasks", slog.Int64("userID", owner.ID), slog.Any("error", err))
		return nil, err
	}
	metrics.Get().TaskOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "list")))

	totalPages := int(math.Ceil(float64(total) / float64(q.Limit)))
	return &TaskPage{
		Items:       items,
		Page:        q.Page,
		Limit:       q.Limit,
		TotalCount:  total,
		TotalPages:  totalPages,
		HasNext:     q.Page < totalPages,
		HasPrevious: q.Page > 1,
	}, nil
}

func (s *ServiceImpl) UpdateTask(ctx context.Context, owner *auth.User, taskID int64, req UpdateTaskRequest) (*Task, error) {
	l := s.logger.With(slog.String("method", "UpdateTask"), slog.Int64("taskID", taskID), slog.Int64("userID", owner.ID))

	if err := s.repo.UpdateTask(ctx, taskID, owner.ID, req); err != nil {
		l.WarnContext(ctx, "Failed to update task", slog.Any("error", err))
		return nil, err
	}
	metrics.Get().TaskOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "update")))

	updated, err := s.repo.GetTaskByIDForUser(ctx, taskID, owner.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to reload updated task", slog.Any("error", err))
		return nil, fmt.Errorf("failed to reload task after update: %w", err)
	}

	s.indexTask(ctx, updated)
	return updated, nil
}

func (s *ServiceImpl) DeleteTask(ctx context.Context, owner *auth.User, taskID int64) error {
	l := s.logger.With(slog.String("method", "DeleteTask"), slog.Int64("taskID", taskID), slog.Int64("userID", owner.ID))

	// The ownership check happens before the delete so a foreign task id
	// reads as not found rather than silently removing someone else's row.
	if _, err := s.repo.GetTaskByIDForUser(ctx, taskID, owner.ID); err != nil {
		l.WarnContext(ctx, "Task not deletable", slog.Any("error", err))
		return err
	}
	if err := s.repo.DeleteTask(ctx, taskID); err != nil {
		l.ErrorContext(ctx, "Failed to delete task", slog.Any("error", err))
		return err
	}
	metrics.Get().TaskOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "delete")))

	if err := s.search.RemoveTask(ctx, taskID); err != nil {
		metrics.Get().SearchIndexErrorsTotal.Add(ctx, 1)
		l.WarnContext(ctx, "Failed to remove task from search index", slog.Any("error", err))
	}
	return nil
}

func (s *ServiceImpl) SearchTasks(ctx context.Context, owner *auth.User, query string, limit int64) ([]search.TaskDocument, error) {
	docs, err := s.search.Search(ctx, owner.ID, query, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "Search failed", slog.Int64("userID", owner.ID), slog.Any("error", err))
		return nil, err
	}
	metrics.Get().TaskOperationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "search")))
	return docs, nil
}

// indexTask pushes the task into the search index. Indexing is best effort;
// a failure is logged and counted but never fails the write that caused it.
func (s *ServiceImpl) indexTask(ctx context.Context, t *Task) {
	doc := search.TaskDocument{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		UserID:      t.UserID,
	}
	if err := s.search.IndexTask(ctx, doc); err != nil {
		metrics.Get().SearchIndexErrorsTotal.Add(ctx, 1)
		s.logger.WarnContext(ctx, "Failed to index task", slog.Int64("taskID", t.ID), slog.Any("error", err))
	}
}
