package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mcaverela/todo-backend/internal/api/auth"
	"github.com/mcaverela/todo-backend/internal/api/task"
)

// Config contains the handlers and middleware needed for the router setup.
type Config struct {
	AuthHandler      auth.Handler
	TaskHandler      task.Handler
	PublicMiddleware func(http.Handler) http.Handler
	BearerMiddleware func(http.Handler) http.Handler
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (logger, requestID, recoverer) are expected to be
// applied before mounting this router in main.go.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes accept anonymous callers; the guard still runs so the
		// route-level policy lives in one place.
		r.Group(func(r chi.Router) {
			r.Use(cfg.PublicMiddleware)
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		})

		// Everything below requires a verified bearer token.
		r.Group(func(r chi.Router) {
			r.Use(cfg.BearerMiddleware)

			r.Route("/todos", func(r chi.Router) {
				r.Post("/", cfg.TaskHandler.CreateTodo)
				r.Get("/", cfg.TaskHandler.GetAllTodos)
				r.Get("/search", cfg.TaskHandler.SearchTodos)
				r.Put("/{id}", cfg.TaskHandler.UpdateTodo)
				r.Delete("/{id}", cfg.TaskHandler.DeleteTodo)
			})
		})
	})

	return r
}
