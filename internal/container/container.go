package container

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/mcaverela/todo-backend/app/db"
	"github.com/mcaverela/todo-backend/config"
	"github.com/mcaverela/todo-backend/internal/api/auth"
	"github.com/mcaverela/todo-backend/internal/api/search"
	"github.com/mcaverela/todo-backend/internal/api/task"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *slog.Logger
	Pool          *pgxpool.Pool
	TokenService  auth.TokenService
	SearchService search.Service
	AuthHandler   *auth.HandlerImpl
	TaskHandler   *task.HandlerImpl
}

// NewContainer initializes and returns a new dependency container.
// The database config is built once by the caller, which also uses it
// to run migrations.
func NewContainer(cfg *config.Config, dbConfig *database.DatabaseConfig, logger *slog.Logger) (*Container, error) {
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokenService := auth.NewJWTTokenService(cfg.JWT, logger)
	searchService := search.NewMeiliService(cfg.Search, logger)

	authRepo := auth.NewPostgresUserRepo(pool, logger)
	authService := auth.NewAuthService(authRepo, hasher, tokenService, logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	taskRepo := task.NewPostgresTaskRepo(pool, logger)
	taskService := task.NewServiceImpl(taskRepo, searchService, logger)
	taskHandler := task.NewHandlerImpl(taskService, logger)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Pool:          pool,
		TokenService:  tokenService,
		SearchService: searchService,
		AuthHandler:   authHandler,
		TaskHandler:   taskHandler,
	}, nil
}

// Close releases pooled resources.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
