package scanner

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveSessionOptions struct {
	ID             *int
	IncludeEntries bool
}

type ListSessionsOptions struct {
	Limit    *int
	Offset   *int
	RootPath *string
	Statuses []string

	includeTotal bool
}

type UpdateSessionOptions struct {
	Columns []string
}

// SessionService persists scan sessions and their audit entries.
type SessionService struct {
	db *bun.DB
}

func NewSessionService(db *bun.DB) *SessionService {
	return &SessionService{db}
}

func (svc *SessionService) CreateSession(ctx context.Context, session *models.ScanSession) error {
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	if session.Status == "" {
		session.Status = models.ScanStatusRunning
	}

	_, err := svc.db.
		NewInsert().
		Model(session).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *SessionService) UpdateSession(ctx context.Context, session *models.ScanSession, opts UpdateSessionOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	res, err := svc.db.
		NewUpdate().
		Model(session).
		Column(opts.Columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("Scan session")
	}

	return nil
}

// CreateEntries appends audit entries. Entries are never updated afterwards.
func (svc *SessionService) CreateEntries(ctx context.Context, entries []*models.ScanEntry) error {
	if len(entries) == 0 {
		return nil
	}

	_, err := svc.db.
		NewInsert().
		Model(&entries).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *SessionService) RetrieveSession(ctx context.Context, opts RetrieveSessionOptions) (*models.ScanSession, error) {
	session := &models.ScanSession{}

	q := svc.db.
		NewSelect().
		Model(session)

	if opts.IncludeEntries {
		q = q.Relation("Entries", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Order("se.id ASC")
		})
	}
	if opts.ID != nil {
		q = q.Where("ss.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Scan session")
		}
		return nil, errors.WithStack(err)
	}

	return session, nil
}

func (svc *SessionService) ListSessions(ctx context.Context, opts ListSessionsOptions) ([]*models.ScanSession, error) {
	s, _, err := svc.listSessionsWithTotal(ctx, opts)
	return s, errors.WithStack(err)
}

func (svc *SessionService) ListSessionsWithTotal(ctx context.Context, opts ListSessionsOptions) ([]*models.ScanSession, int, error) {
	opts.includeTotal = true
	return svc.listSessionsWithTotal(ctx, opts)
}

func (svc *SessionService) listSessionsWithTotal(ctx context.Context, opts ListSessionsOptions) ([]*models.ScanSession, int, error) {
	sessions := []*models.ScanSession{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&sessions).
		Order("ss.id DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.RootPath != nil {
		q = q.Where("ss.root_path = ?", *opts.RootPath)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("ss.status IN (?)", bun.In(opts.Statuses))
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return sessions, total, nil
}
