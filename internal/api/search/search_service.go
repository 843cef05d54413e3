package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/meilisearch/meilisearch-go"

	"github.com/mcaverela/todo-backend/config"
)

var _ Service = (*MeiliService)(nil)

// TaskDocument is the shape stored in the search index. It carries the owner
// id as a filterable attribute so queries stay scoped to one user.
type TaskDocument struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UserID      int64  `json:"user_id"`
}

// Service is the external search index collaborator. Indexing is a
// best-effort side effect of task writes; callers log failures and move on.
type Service interface {
	// EnsureIndex creates the todos index if it does not exist and marks
	// user_id filterable.
	EnsureIndex(ctx context.Context) error

	// IndexTask adds or replaces a document.
	IndexTask(ctx context.Context, doc TaskDocument) error

	// RemoveTask deletes the document for a task id.
	RemoveTask(ctx context.Context, taskID int64) error

	// Search runs a free-text query over the given user's documents.
	Search(ctx context.Context, userID int64, query string, limit int64) ([]TaskDocument, error)
}

type MeiliService struct {
	logger *slog.Logger
	client meilisearch.ServiceManager
	index  string
}

func NewMeiliService(cfg config.SearchConfig, logger *slog.Logger) *MeiliService {
	client := meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))
	index := cfg.Index
	if index == "" {
		index = "todos"
	}
	return &MeiliService{
		logger: logger,
		client: client,
		index:  index,
	}
}

// EnsureIndex implements Service.
func (s *MeiliService) EnsureIndex(ctx context.Context) error {
	l := s.logger.With(slog.String("method", "EnsureIndex"))

	_, err := s.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	if err != nil && !isIndexExists(err) {
		return fmt.Errorf("failed to create search index: %w", err)
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributesWithContext(ctx, &[]string{"user_id"})
	if err != nil {
		return fmt.Errorf("failed to update filterable attributes: %w", err)
	}

	l.InfoContext(ctx, "Search index ready", slog.String("index", s.index))
	return nil
}

// IndexTask implements Service.
func (s *MeiliService) IndexTask(ctx context.Context, doc TaskDocument) error {
	_, err := s.client.Index(s.index).AddDocumentsWithContext(ctx, []TaskDocument{doc})
	if err != nil {
		return fmt.Errorf("failed to index task %d: %w", doc.ID, err)
	}
	return nil
}

// RemoveTask implements Service.
func (s *MeiliService) RemoveTask(ctx context.Context, taskID int64) error {
	_, err := s.client.Index(s.index).DeleteDocumentWithContext(ctx, strconv.FormatInt(taskID, 10))
	if err != nil {
		return fmt.Errorf("failed to remove task %d from index: %w", taskID, err)
	}
	return nil
}

// Search implements Service.
func (s *MeiliService) Search(ctx context.Context, userID int64, query string, limit int64) ([]TaskDocument, error) {
	if limit <= 0 {
		limit = 10
	}

	resp, err := s.client.Index(s.index).SearchWithContext(ctx, query, &meilisearch.SearchRequest{
		Limit:  limit,
		Filter: fmt.Sprintf("user_id = %d", userID),
	})
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	// Hits come back as generic JSON; round-trip them into TaskDocument.
	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode search hits: %w", err)
	}
	var docs []TaskDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode search hits: %w", err)
	}
	return docs, nil
}

// isIndexExists reports whether err is Meilisearch's index_already_exists.
func isIndexExists(err error) bool {
	var meiliErr *meilisearch.Error
	if errors.As(err, &meiliErr) {
		return meiliErr.MeilisearchApiError.Code == "index_already_exists"
	}
	return false
}
