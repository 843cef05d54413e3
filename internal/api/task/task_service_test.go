package task

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mcaverela/todo-backend/app/observability/metrics"
	"github.com/mcaverela/todo-backend/internal/api"
	"github.com/mcaverela/todo-backend/internal/api/auth"
	"github.com/mcaverela/todo-backend/internal/api/search"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

// MockTaskRepo is a mock implementation of the TaskRepo interface
type MockTaskRepo struct {
	mock.Mock
}

func (m *MockTaskRepo) GetUserByID(ctx context.Context, userID int64) (*auth.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.User), args.Error(1)
}

func (m *MockTaskRepo) CreateTask(ctx context.Context, t *Task) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTaskRepo) GetTaskByIDForUser(ctx context.Context, taskID, ownerID int64) (*Task, error) {
	args := m.Called(ctx, taskID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Task), args.Error(1)
}

func (m *MockTaskRepo) ListTasks(ctx context.Context, ownerID int64, q PaginationQuery) ([]Task, int64, error) {
	args := m.Called(ctx, ownerID, q)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]Task), args.Get(1).(int64), args.Error(2)
}

func (m *MockTaskRepo) UpdateTask(ctx context.Context, taskID, ownerID int64, req UpdateTaskRequest) error {
	args := m.Called(ctx, taskID, ownerID, req)
	return args.Error(0)
}

func (m *MockTaskRepo) DeleteTask(ctx context.Context, taskID int64) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

// MockSearchService is a mock implementation of the search.Service interface
type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) EnsureIndex(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSearchService) IndexTask(ctx context.Context, doc search.TaskDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockSearchService) RemoveTask(ctx context.Context, taskID int64) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockSearchService) Search(ctx context.Context, userID int64, query string, limit int64) ([]search.TaskDocument, error) {
	args := m.Called(ctx, userID, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]search.TaskDocument), args.Error(1)
}

var testOwner = &auth.User{ID: 42, Name: "Alice", Email: "alice@example.com"}

func TestResolveOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		repo.On("GetUserByID", ctx, int64(42)).Return(testOwner, nil).Once()

		user := service.ResolveOwner(ctx, 42)
		require.NotNil(t, user)
		assert.Equal(t, int64(42), user.ID)
	})

	t.Run("CachesHit", func(t *testing.T) {
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		repo.On("GetUserByID", ctx, int64(42)).Return(testOwner, nil).Once()

		first := service.ResolveOwner(ctx, 42)
		second := service.ResolveOwner(ctx, 42)
		assert.Same(t, first, second)
		repo.AssertNumberOfCalls(t, "GetUserByID", 1)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		repo.On("GetUserByID", ctx, int64(99)).Return(nil, api.ErrNotFound).Once()

		assert.Nil(t, service.ResolveOwner(ctx, 99))
	})

	t.Run("LookupFault", func(t *testing.T) {
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		repo.On("GetUserByID", ctx, int64(42)).Return(nil, errors.New("connection reset")).Once()

		assert.Nil(t, service.ResolveOwner(ctx, 42))
	})
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		repo.On("CreateTask", ctx, mock.AnythingOfType("*task.Task")).
			Run(func(args mock.Arguments) { args.Get(1).(*Task).ID = 7 }).
			Return(nil).Once()
		searchSvc.On("IndexTask", ctx, search.TaskDocument{
			ID: 7, Title: "Buy milk", Description: "2 liters", UserID: 42,
		}).Return(nil).Once()

		created, err := service.CreateTask(ctx, testOwner, CreateTaskRequest{Title: "Buy milk", Description: "2 liters"})

		require.NoError(t, err)
		assert.Equal(t, int64(7), created.ID)
		assert.Equal(t, int64(42), created.UserID)
		searchSvc.AssertExpectations(t)
	})

	t.Run("IndexFailureDoesNotFailCreate", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		repo.On("CreateTask", ctx, mock.AnythingOfType("*task.Task")).Return(nil).Once()
		searchSvc.On("IndexTask", ctx, mock.AnythingOfType("search.TaskDocument")).
			Return(errors.New("meilisearch down")).Once()

		_, err := service.CreateTask(ctx, testOwner, CreateTaskRequest{Title: "a", Description: "b"})
		assert.NoError(t, err)
	})

	t.Run("RepoFailure", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		repo.On("CreateTask", ctx, mock.AnythingOfType("*task.Task")).Return(assert.AnError).Once()

		_, err := service.CreateTask(ctx, testOwner, CreateTaskRequest{Title: "a", Description: "b"})
		assert.Error(t, err)
		searchSvc.AssertNotCalled(t, "IndexTask", mock.Anything, mock.Anything)
	})
}

func TestPaginateTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("MiddlePage", func(t *testing.T) {
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		q := PaginationQuery{Page: 2, Limit: 10, Order: "DESC"}
		repo.On("ListTasks", ctx, int64(42), q).Return(make([]Task, 10), int64(25), nil).Once()

		page, err := service.PaginateTasks(ctx, testOwner, q)

		require.NoError(t, err)
		assert.Equal(t, int64(25), page.TotalCount)
		assert.Equal(t, 3, page.TotalPages)
		assert.True(t, page.HasNext)
		assert.True(t, page.HasPrevious)
	})

	t.Run("FirstPage", func(t *testing.T) {
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		q := PaginationQuery{Page: 1, Limit: 10, Order: "DESC"}
		repo.On("ListTasks", ctx, int64(42), q).Return(make([]Task, 10), int64(25), nil).Once()

		page, err := service.PaginateTasks(ctx, testOwner, q)

		require.NoError(t, err)
		assert.True(t, page.HasNext)
		assert.False(t, page.HasPrevious)
	})

	t.Run("LastPage", func(t *testing.T) {
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		q := PaginationQuery{Page: 3, Limit: 10, Order: "DESC"}
		repo.On("ListTasks", ctx, int64(42), q).Return(make([]Task, 5), int64(25), nil).Once()

		page, err := service.PaginateTasks(ctx, testOwner, q)

		require.NoError(t, err)
		assert.Equal(t, 3, page.TotalPages)
		assert.False(t, page.HasNext)
		assert.True(t, page.HasPrevious)
	})

	t.Run("Empty", func(t *testing.T) {
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		q := PaginationQuery{Page: 1, Limit: 10, Order: "DESC"}
		repo.On("ListTasks", ctx, int64(42), q).Return([]Task{}, int64(0), nil).Once()

		page, err := service.PaginateTasks(ctx, testOwner, q)

		require.NoError(t, err)
		assert.Equal(t, 0, page.TotalPages)
		assert.False(t, page.HasNext)
		assert.False(t, page.HasPrevious)
		assert.NotNil(t, page.Items)
	})
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	title := "New title"

	t.Run("Success", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		req := UpdateTaskRequest{Title: &title}
		updated := &Task{ID: 7, Title: title, Description: "kept", UserID: 42}

		repo.On("UpdateTask", ctx, int64(7), int64(42), req).Return(nil).Once()
		repo.On("GetTaskByIDForUser", ctx, int64(7), int64(42)).Return(updated, nil).Once()
		searchSvc.On("IndexTask", ctx, search.TaskDocument{
			ID: 7, Title: title, Description: "kept", UserID: 42,
		}).Return(nil).Once()

		got, err := service.UpdateTask(ctx, testOwner, 7, req)

		require.NoError(t, err)
		assert.Equal(t, "kept", got.Description)
		searchSvc.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		req := UpdateTaskRequest{Title: &title}
		repo.On("UpdateTask", ctx, int64(99), int64(42), req).
			Return(api.ErrNotFound).Once()

		_, err := service.UpdateTask(ctx, testOwner, 99, req)

		assert.ErrorIs(t, err, api.ErrNotFound)
		searchSvc.AssertNotCalled(t, "IndexTask", mock.Anything, mock.Anything)
	})
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		repo.On("GetTaskByIDForUser", ctx, int64(7), int64(42)).
			Return(&Task{ID: 7, UserID: 42}, nil).Once()
		repo.On("DeleteTask", ctx, int64(7)).Return(nil).Once()
		searchSvc.On("RemoveTask", ctx, int64(7)).Return(nil).Once()

		assert.NoError(t, service.DeleteTask(ctx, testOwner, 7))
		repo.AssertExpectations(t)
	})

	t.Run("ForeignTaskNotFound", func(t *testing.T) {
		// A task owned by someone else reads as not found and is never
		// deleted.
		repo := new(MockTaskRepo)
		service := NewServiceImpl(repo, new(MockSearchService), slog.Default())

		repo.On("GetTaskByIDForUser", ctx, int64(7), int64(42)).
			Return(nil, api.ErrNotFound).Once()

		err := service.DeleteTask(ctx, testOwner, 7)

		assert.ErrorIs(t, err, api.ErrNotFound)
		repo.AssertNotCalled(t, "DeleteTask", mock.Anything, mock.Anything)
	})

	t.Run("RowGoneBetweenCheckAndDelete", func(t *testing.T) {
		// The row can disappear after the ownership check but before the
		// delete executes. The caller still gets a clean success.
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		t.Cleanup(mockPool.Close)

		repo := NewPostgresTaskRepo(mockPool, slog.Default())
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		now := time.Now()
		mockPool.ExpectQuery("SELECT id, title, description, user_id").
			WithArgs(int64(7), int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "title", "description", "user_id", "created_at", "updated_at"}).
				AddRow(int64(7), "Buy milk", "2 liters", int64(42), now, now))
		mockPool.ExpectExec("DELETE FROM todos").
			WithArgs(int64(7)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		searchSvc.On("RemoveTask", ctx, int64(7)).Return(nil).Once()

		assert.NoError(t, service.DeleteTask(ctx, testOwner, 7))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("RemoveIndexFailureIgnored", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		repo.On("GetTaskByIDForUser", ctx, int64(7), int64(42)).
			Return(&Task{ID: 7, UserID: 42}, nil).Once()
		repo.On("DeleteTask", ctx, int64(7)).Return(nil).Once()
		searchSvc.On("RemoveTask", ctx, int64(7)).Return(errors.New("meilisearch down")).Once()

		assert.NoError(t, service.DeleteTask(ctx, testOwner, 7))
	})
}

func TestSearchTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("ScopedToOwner", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		docs := []search.TaskDocument{{ID: 7, Title: "Buy milk", UserID: 42}}
		searchSvc.On("Search", ctx, int64(42), "milk", int64(5)).Return(docs, nil).Once()

		got, err := service.SearchTasks(ctx, testOwner, "milk", 5)

		require.NoError(t, err)
		assert.Equal(t, docs, got)
	})

	t.Run("EngineFailure", func(t *testing.T) {
		repo := new(MockTaskRepo)
		searchSvc := new(MockSearchService)
		service := NewServiceImpl(repo, searchSvc, slog.Default())

		searchSvc.On("Search", ctx, int64(42), "milk", int64(0)).
			Return(nil, assert.AnError).Once()

		_, err := service.SearchTasks(ctx, testOwner, "milk", 0)
		assert.Error(t, err)
	})
}
