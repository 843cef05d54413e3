package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/mcaverela/todo-backend/internal/api"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service AuthService
}

func NewHandlerImpl(service AuthService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if fieldErrs := req.Validate(); len(fieldErrs) > 0 {
		l.WarnContext(ctx, "Register request failed validation", slog.Int("field_errors", len(fieldErrs)))
		span.SetStatus(codes.Error, "Validation failed")
		api.WriteJSONResponse(w, r, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "validation failed",
			"fields":  fieldErrs,
		})
		return
	}

	token, err := h.service.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, api.ErrConflict) {
			span.SetStatus(codes.Error, "Email in use")
			api.ErrorResponse(w, r, http.StatusConflict, "Email already in use")
			return
		}
		l.ErrorContext(ctx, "Registration failed", slog.Any("error", err))
		span.SetStatus(codes.Error, "Registration failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Registration failed")
		return
	}

	span.SetStatus(codes.Ok, "User registered")
	api.WriteJSONResponse(w, r, http.StatusCreated, TokenResponse{Token: token})
}

func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login")
	defer span.End()
	l := h.logger.With(slog.String("handler", "Login"))

	var req LoginRequest
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

	token, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, api.ErrUnauthenticated) {
			// Unknown email and wrong password share this exact response.
			span.SetStatus(codes.Error, "Invalid credentials")
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		l.ErrorContext(ctx, "Login failed", slog.Any("error", err))
		span.SetStatus(codes.Error, "Login failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Login failed")
		return
	}

	span.SetStatus(codes.Ok, "Logged in")
	api.WriteJSONResponse(w, r, http.StatusOK, TokenResponse{Token: token})
}
