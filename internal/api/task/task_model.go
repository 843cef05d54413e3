package task

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Task is a unit of work owned by exactly one user. The owner reference is
// set at creation and immutable afterwards.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateTaskRequest represents the create-todo request body.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTaskRequest is a partial update: nil fields keep their stored value.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validate returns the list of field errors, empty when the request is valid.
func (r CreateTaskRequest) Validate() []FieldError {
	var errs []FieldError
	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, FieldError{Field: "title", Message: "title must not be empty"})
	}
	if strings.TrimSpace(r.Description) == "" {
		errs = append(errs, FieldError{Field: "description", Message: "description must not be empty"})
	}
	return errs
}

// Validate returns the list of field errors, empty when the request is valid.
// Absent fields are fine; supplied fields must not be blank.
func (r UpdateTaskRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		errs = append(errs, FieldError{Field: "title", Message: "title must not be empty"})
	}
	if r.Description != nil && strings.TrimSpace(*r.Description) == "" {
		errs = append(errs, FieldError{Field: "description", Message: "description must not be empty"})
	}
	return errs
}

const (
	defaultPage  = 1
	defaultLimit = 10
)

// sortColumns whitelists the sortBy values accepted from the query string.
var sortColumns = map[string]string{
	"title":       "title",
	"description": "description",
	"created_at":  "created_at",
	"updated_at":  "updated_at",
}

// PaginationQuery carries the 1-based pagination parameters plus an optional
// sort. Creation time descending is always the final tie-break.
type PaginationQuery struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
}

// ParsePaginationQuery reads page/limit/sortBy/order from the query string,
// applying defaults and rejecting non-positive or unknown values.
func ParsePaginationQuery(values url.Values) (PaginationQuery, []FieldError) {
	q := PaginationQuery{Page: defaultPage, Limit: defaultLimit, Order: "DESC"}
	var errs []FieldError

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			errs = append(errs, FieldError{Field: "page", Message: "page must be a positive integer"})
		} else {
			q.Page = page
		}
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			errs = append(errs, FieldError{Field: "limit", Message: "limit must be a positive integer"})
		} else {
			q.Limit = limit
		}
	}
	if raw := values.Get("sortBy"); raw != "" {
		if _, ok := sortColumns[raw]; !ok {
			errs = append(errs, FieldError{Field: "sortBy", Message: "unsupported sort field"})
		} else {
			q.SortBy = raw
		}
	}
	if raw := values.Get("order"); raw != "" {
		order := strings.ToUpper(raw)
		if order != "ASC" && order != "DESC" {
			errs = append(errs, FieldError{Field: "order", Message: "order must be ASC or DESC"})
		} else {
			q.Order = order
		}
	}

	return q, errs
}

// TaskPage is the pagination envelope returned by the list endpoint.
type TaskPage struct {
	Items       []Task `json:"items"`
	Page        int    `json:"page"`
	Limit       int    `json:"limit"`
	TotalCount  int64  `json:"totalCount"`
	TotalPages  int    `json:"totalPages"`
	HasNext     bool   `json:"hasNext"`
	HasPrevious bool   `json:"hasPrevious"`
}
