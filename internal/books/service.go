package books

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/shelfmark/shelfmark/internal/audit"
	"github.com/shelfmark/shelfmark/internal/platform/httpx"
	"github.com/shelfmark/shelfmark/internal/shared"
)

// Catalog defines the persistence operations the service needs.
type Catalog interface {
	Count(ctx context.Context, p ListParams) (int, error)
	List(ctx context.Context, p ListParams) ([]Book, error)
	Insert(ctx context.Context, input NewBook) (*Book, error)
	FindByID(ctx context.Context, id int64) (*Book, error)
	Update(ctx context.Context, id int64, input UpdateBook) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// Service coordinates catalog reads through the cache and forwards audit
// events for writes.
type Service struct {
	logger *slog.Logger
	repo   Catalog
	cache  *Cache
	sink   audit.Sink
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo Catalog, cache *Cache, sink audit.Sink) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{logger: logger, repo: repo, cache: cache, sink: sink}
}

// GetPage returns one catalog page, read through the cache. A hit skips the
// store entirely; a miss runs the filtered count plus the sorted page fetch
// and stores the serialized result under the parameter-tuple key.
func (s *Service) GetPage(ctx context.Context, params ListParams) (*PageResult, error) {
	p := params.Normalize()

	var result PageResult
	err := s.cache.FetchJSON(ctx, p.CacheKey(), &result, func(ctx context.Context) (interface{}, error) {
		total, err := s.repo.Count(ctx, p)
		if err != nil {
			return nil, err
		}
		page, err := s.repo.List(ctx, p)
		if err != nil {
			return nil, err
		}
		if page == nil {
			page = []Book{}
		}
		pagination := shared.NewPagination(p.Page, p.Limit, total)
		return &PageResult{
			CurrentPage: pagination.Page,
			TotalPages:  pagination.TotalPages,
			Page:        page,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Create stores a new book and emits an audit event.
func (s *Service) Create(ctx context.Context, actor Actor, input NewBook) (*Book, error) {
	book, err := s.repo.Insert(ctx, input)
	if err != nil {
		return nil, err
	}
	s.writeAudit(ctx, actor, book.ID, "create", nil)
	return book, nil
}

// CreateMultiple stores a batch of books. Audit events for the created rows
// are fired concurrently and individually best-effort.
func (s *Service) CreateMultiple(ctx context.Context, actor Actor, inputs []NewBook) ([]Book, error) {
	created := make([]Book, 0, len(inputs))
	for _, input := range inputs {
		book, err := s.repo.Insert(ctx, input)
		if err != nil {
			return nil, err
		}
		created = append(created, *book)
	}

	var g errgroup.Group
	for _, book := range created {
		book := book
		g.Go(func() error {
			s.writeAudit(ctx, actor, book.ID, "create", nil)
			return nil
		})
	}
	_ = g.Wait()

	return created, nil
}

// Update applies field changes and returns the stored row.
func (s *Service) Update(ctx context.Context, actor Actor, id int64, input UpdateBook) (*Book, error) {
	changed, err := s.repo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}
	if changed {
		s.writeAudit(ctx, actor, id, "update", map[string]any{"input": input})
	}
	return s.repo.FindByID(ctx, id)
}

// Delete removes a book. A deletion reason is mandatory and is carried into
// the audit event.
func (s *Service) Delete(ctx context.Context, actor Actor, id int64, reason string) (bool, error) {
	if reason == "" {
		return false, fmt.Errorf("%w: you must provide a reason for deletion", httpx.ErrValidation)
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.writeAudit(ctx, actor, id, "delete", map[string]any{"reason": reason})
	}
	return deleted, nil
}

// writeAudit forwards one event to the sink. Failures are logged, never
// surfaced.
func (s *Service) writeAudit(ctx context.Context, actor Actor, bookID int64, event string, data map[string]any) {
	payload := map[string]any{
		"user_id": actor.UserID,
		"role_id": actor.RoleID,
		"book_id": bookID,
		"event":   event,
	}
	if data != nil {
		payload["data"] = data
	}
	if err := s.sink.Write(ctx, audit.StreamBooks, payload); err != nil {
		s.logger.Warn("audit book event", slog.String("event", event), slog.Int64("book_id", bookID), slog.Any("error", err))
	}
}
