package audit

import (
	"context"
	"log/slog"

	"github.com/daison12006013/docms/internal/shared"
)

// Logger records activity rows. A failed write is logged and swallowed so
// auditing never breaks the operation being audited.
type Logger struct {
	repo Repository
	log  *slog.Logger
}

// NewLogger constructs a Logger.
func NewLogger(repo Repository, log *slog.Logger) *Logger {
	return &Logger{repo: repo, log: log}
}

// Record writes one entry.
func (l *Logger) Record(ctx context.Context, actorID *int64, action, entity string, entityID *int64, detail string) {
	if l == nil || l.repo == nil {
		return
	}
	err := l.repo.Insert(ctx, Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Detail:   detail,
	})
	if err != nil && l.log != nil {
		l.log.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// Service reads the activity timeline.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

const maxPageSize = 50

// Timeline returns a filtered page of entries with pagination metadata.
func (s *Service) Timeline(ctx context.Context, f Filters) ([]Entry, shared.Pagination, error) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = shared.DefaultPerPage
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	p := shared.NewPagination(f.Page, pageSize, 0)
	entries, total, err := s.repo.List(ctx, f, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(p.Page, p.PerPage, total), nil
}
