package task

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/mcaverela/todo-backend/internal/api"
	"github.com/mcaverela/todo-backend/internal/api/auth"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	CreateTodo(w http.ResponseWriter, r *http.Request)
	GetAllTodos(w http.ResponseWriter, r *http.Request)
	UpdateTodo(w http.ResponseWriter, r *http.Request)
	DeleteTodo(w http.ResponseWriter, r *http.Request)
	SearchTodos(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

// owner resolves the request's authenticated user to a live account. Writes
// the rejection response itself and returns nil when the caller should stop.
// Tokens for deleted accounts land here, hence 404 rather than 401.
func (h *HandlerImpl) owner(w http.ResponseWriter, r *http.Request) *auth.User {
	authData, ok := auth.GetAuthUserFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return nil
	}
	user := h.service.ResolveOwner(r.Context(), authData.Sub)
	if user == nil {
		api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		return nil
	}
	return user
}

func (h *HandlerImpl) CreateTodo(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "CreateTodo")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateTodo"))

	user := h.owner(w, r)
	if user == nil {
		span.SetStatus(codes.Error, "Owner not resolved")
		return
	}

	var req CreateTaskRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		span.SetStatus(codes.Error, "Validation failed")
		api.WriteJSONResponse(w, r, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "validation failed",
			"fields":  fieldErrs,
		})
		return
	}

	created, err := h.service.CreateTask(ctx, user, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create todo")
		return
	}

	span.SetStatus(codes.Ok, "Todo created")
	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

func (h *HandlerImpl) GetAllTodos(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "GetAllTodos")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetAllTodos"))

	user := h.owner(w, r)
	if user == nil {
		span.SetStatus(codes.Error, "Owner not resolved")
		return
	}

	q, fieldErrs := ParsePaginationQuery(r.URL.Query())
	if len(fieldErrs) > 0 {
		span.SetStatus(codes.Error, "Invalid query")
		api.WriteJSONResponse(w, r, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "validation failed",
			"fields":  fieldErrs,
		})
		return
	}

	page, err := h.service.PaginateTasks(ctx, user, q)
	if err != nil {
		l.ErrorContext(ctx, "Failed to paginate todos", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list todos")
		return
	}

	span.SetStatus(codes.Ok, "Todos listed")
	api.WriteJSONResponse(w, r, http.StatusOK, page)
}

func (h *HandlerImpl) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "UpdateTodo")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateTodo"))

	user := h.owner(w, r)
	if user == nil {
		span.SetStatus(codes.Error, "Owner not resolved")
		return
	}

	taskID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid id")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid todo id")
		return
	}

	var req UpdateTaskRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		span.SetStatus(codes.Error, "Validation failed")
		api.WriteJSONResponse(w, r, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "validation failed",
			"fields":  fieldErrs,
		})
		return
	}

	updated, err := h.service.UpdateTask(ctx, user, taskID, req)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, api.ErrNotFound) {
			span.SetStatus(codes.Error, "Todo not found")
			api.ErrorResponse(w, r, http.StatusNotFound, "Todo not found")
			return
		}
		span.SetStatus(codes.Error, "Update failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update todo")
		return
	}

	span.SetStatus(codes.Ok, "Todo updated")
	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}

func (h *HandlerImpl) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	_, span := otel.Tracer("TaskHandler").Start(r.Context(), "DeleteTodo")
	defer span.End()

	user := h.owner(w, r)
	if user == nil {
		span.SetStatus(codes.Error, "Owner not resolved")
		return
	}

	taskID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		span.SetStatus(codes.Error, "Invalid id")
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid todo id")
		return
	}

	if err := h.service.DeleteTask(r.Context(), user, taskID); err != nil {
		span.RecordError(err)
		if errors.Is(err, api.ErrNotFound) {
			span.SetStatus(codes.Error, "Todo not found")
			api.ErrorResponse(w, r, http.StatusNotFound, "Todo not found")
			return
		}
		span.SetStatus(codes.Error, "Delete failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete todo")
		return
	}

	span.SetStatus(codes.Ok, "Todo deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *HandlerImpl) SearchTodos(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("TaskHandler").Start(r.Context(), "SearchTodos")
	defer span.End()
	l := h.logger.With(slog.String("handler", "SearchTodos"))

	authData, ok := auth.GetAuthUserFromContext(r.Context())
	if !ok {
		span.SetStatus(codes.Error, "No identity")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	user := h.service.ResolveOwner(ctx, authData.Sub)
	if user == nil {
		span.SetStatus(codes.Error, "Owner not resolved")
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	query := r.URL.Query().Get("search")
	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			span.SetStatus(codes.Error, "Invalid limit")
			api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	docs, err := h.service.SearchTasks(ctx, user, query, limit)
	if err != nil {
		l.ErrorContext(ctx, "Search failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Search failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Search failed")
		return
	}

	span.SetStatus(codes.Ok, "Search completed")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"items": docs})
}
