package repo

import (
	"context"
	"fmt"
	"time"

	"productreel/internal/domain"
	"productreel/internal/infra"
	"productreel/internal/sqlinline"
)

// DomainRepositoryPG implements domain.DomainRepository.
type DomainRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewDomainRepository creates a domain repository backed by PostgreSQL.
func NewDomainRepository(sql infra.SQLExecutor) *DomainRepositoryPG {
	return &DomainRepositoryPG{sql: sql}
}

func (r *DomainRepositoryPG) Create(ctx context.Context, url string) (*domain.Domain, error) {
	d, err := scanDomain(r.sql.QueryRow(ctx, sqlinline.QInsertDomain, url))
	if err != nil {
		return nil, fmt.Errorf("insert domain: %w", err)
	}
	return d, nil
}

func (r *DomainRepositoryPG) GetByID(ctx context.Context, id int64) (*domain.Domain, error) {
	d, err := scanDomain(r.sql.QueryRow(ctx, sqlinline.QSelectDomainByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *DomainRepositoryPG) List(ctx context.Context) ([]domain.Domain, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListDomains)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDomain)
}

func (r *DomainRepositoryPG) ListStuck(ctx context.Context, olderThan time.Time) ([]domain.Domain, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStuckDomains, olderThan.UTC())
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDomain)
}

// TransitionStatus distinguishes a missing domain from a stale from-status by
// re-reading the row when the conditional update matched nothing.
func (r *DomainRepositoryPG) TransitionStatus(ctx context.Context, id int64, from, to domain.DomainStatus) (*domain.Domain, error) {
	d, err := scanDomain(r.sql.QueryRow(ctx, sqlinline.QTransitionDomainStatus, id, string(from), string(to)))
	if err == nil {
		return d, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: domain %d is %s, expected %s", domain.ErrConflict, id, current.Status, from)
}

func (r *DomainRepositoryPG) ResetToPending(ctx context.Context, id int64, from domain.DomainStatus, seen time.Time) (*domain.Domain, error) {
	d, err := scanDomain(r.sql.QueryRow(ctx, sqlinline.QResetDomainPending, id, string(from), seen))
	if err == nil {
		return d, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: domain %d changed since it was read (now %s)", domain.ErrConflict, id, current.Status)
}

func (r *DomainRepositoryPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteDomain, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.DomainRepository = (*DomainRepositoryPG)(nil)
