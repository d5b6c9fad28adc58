// Package memstore is an in-process entity store. Each method holds one mutex
// for its whole read-check-write, which gives the same single-row atomicity as
// the conditional UPDATE statements of the PostgreSQL repositories.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"productreel/internal/domain"
)

// Store holds domains and products in memory.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	nextDom  int64
	nextProd int64
	domains  map[int64]domain.Domain
	products map[int64]domain.Product
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:      func() time.Time { return time.Now().UTC() },
		domains:  make(map[int64]domain.Domain),
		products: make(map[int64]domain.Product),
	}
}

// Domains exposes the store as a domain.DomainRepository.
func (s *Store) Domains() *DomainRepository { return &DomainRepository{s: s} }

// Products exposes the store as a domain.ProductRepository.
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

type DomainRepository struct{ s *Store }

func (r *DomainRepository) Create(ctx context.Context, url string) (*domain.Domain, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDom++
	now := s.now()
	d := domain.Domain{ID: s.nextDom, URL: url, Status: domain.DomainStatusPending, CreatedAt: now, UpdatedAt: now}
	s.domains[d.ID] = d
	return &d, nil
}

func (r *DomainRepository) GetByID(ctx context.Context, id int64) (*domain.Domain, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (r *DomainRepository) List(ctx context.Context) ([]domain.Domain, error) {
	return r.filter(func(domain.Domain) bool { return true }, func(a, b domain.Domain) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

func (r *DomainRepository) ListStuck(ctx context.Context, olderThan time.Time) ([]domain.Domain, error) {
	return r.filter(func(d domain.Domain) bool {
		return !d.Status.Terminal() && d.UpdatedAt.Before(olderThan)
	}, func(a, b domain.Domain) bool {
		if a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.ID < b.ID
		}
		return a.UpdatedAt.Before(b.UpdatedAt)
	}), nil
}

func (r *DomainRepository) filter(keep func(domain.Domain) bool, less func(a, b domain.Domain) bool) []domain.Domain {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Domain, 0, len(s.domains))
	for _, d := range s.domains {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *DomainRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.DomainStatus) (*domain.Domain, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if d.Status != from {
		return nil, fmt.Errorf("%w: domain %d is %s, expected %s", domain.ErrConflict, id, d.Status, from)
	}
	d.Status = to
	d.UpdatedAt = s.now()
	s.domains[id] = d
	return &d, nil
}

func (r *DomainRepository) ResetToPending(ctx context.Context, id int64, from domain.DomainStatus, seen time.Time) (*domain.Domain, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if d.Status != from || !d.UpdatedAt.Equal(seen) {
		return nil, fmt.Errorf("%w: domain %d changed since it was read (now %s)", domain.ErrConflict, id, d.Status)
	}
	d.Status = domain.DomainStatusPending
	d.UpdatedAt = s.now()
	s.domains[id] = d
	return &d, nil
}

func (r *DomainRepository) Delete(ctx context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.domains, id)
	for pid, p := range s.products {
		if p.DomainID == id {
			delete(s.products, pid)
		}
	}
	return nil
}

type ProductRepository struct{ s *Store }

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(p), nil
}

func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	return r.filter(func(domain.Product) bool { return true }), nil
}

func (r *ProductRepository) ListByDomain(ctx context.Context, domainID int64) ([]domain.Product, error) {
	return r.filter(func(p domain.Product) bool { return p.DomainID == domainID }), nil
}

func (r *ProductRepository) filter(keep func(domain.Product) bool) []domain.Product {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0)
	for _, p := range s.products {
		if keep(p) {
			out = append(out, *clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *ProductRepository) InsertMany(ctx context.Context, domainID int64, products []domain.NewProduct) ([]domain.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[domainID]; !ok {
		return nil, fmt.Errorf("insert products: domain %d: %w", domainID, domain.ErrNotFound)
	}
	now := s.now()
	out := make([]domain.Product, 0, len(products))
	for _, np := range products {
		s.nextProd++
		p := domain.Product{
			ID:            s.nextProd,
			DomainID:      domainID,
			Title:         np.Title,
			Description:   np.Description,
			URL:           np.URL,
			Images:        slices.Clone(np.Images),
			VideoStatus:   domain.VideoStatusUnavailable,
			PublishStatus: domain.PublishStatusNotPublished,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		s.products[p.ID] = p
		out = append(out, *clone(p))
	}
	return out, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (r *ProductRepository) DeleteByDomain(ctx context.Context, domainID int64) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, p := range s.products {
		if p.DomainID == domainID {
			delete(s.products, id)
			n++
		}
	}
	return n, nil
}

func (r *ProductRepository) ClaimVideo(ctx context.Context, id int64) (*domain.Product, error) {
	return r.mutate(id, func(p *domain.Product) error {
		if err := p.VideoClaimError(); err != nil {
			return err
		}
		p.VideoStatus = domain.VideoStatusProcessing
		p.VideoTaskID = nil
		return nil
	})
}

func (r *ProductRepository) UpdateVideo(ctx context.Context, id int64, update domain.VideoUpdate) (*domain.Product, error) {
	return r.mutate(id, func(p *domain.Product) error {
		if update.Status != nil {
			p.VideoStatus = *update.Status
		}
		if update.URL != nil {
			p.VideoURL = domain.Ptr(*update.URL)
		}
		if update.TaskID != nil {
			p.VideoTaskID = domain.Ptr(*update.TaskID)
		}
		return nil
	})
}

func (r *ProductRepository) ApplyVideoResult(ctx context.Context, id int64, taskID string, status domain.VideoStatus, url *string) (*domain.Product, error) {
	return r.mutate(id, func(p *domain.Product) error {
		if p.VideoStatus != domain.VideoStatusProcessing || domain.Deref(p.VideoTaskID) != taskID {
			return fmt.Errorf("%w: product %d is no longer processing task %s", domain.ErrConflict, id, taskID)
		}
		p.VideoStatus = status
		if url != nil {
			p.VideoURL = domain.Ptr(*url)
		}
		return nil
	})
}

func (r *ProductRepository) ClaimPublish(ctx context.Context, id int64) (*domain.Product, error) {
	return r.mutate(id, func(p *domain.Product) error {
		if err := p.PublishClaimError(); err != nil {
			return err
		}
		p.PublishStatus = domain.PublishStatusPublishing
		return nil
	})
}

func (r *ProductRepository) UpdatePublish(ctx context.Context, id int64, update domain.PublishUpdate) (*domain.Product, error) {
	return r.mutate(id, func(p *domain.Product) error {
		if update.Status != nil {
			p.PublishStatus = *update.Status
		}
		if update.ID != nil {
			p.PublishID = domain.Ptr(*update.ID)
		}
		if update.URL != nil {
			p.PublishURL = domain.Ptr(*update.URL)
		}
		return nil
	})
}

// mutate applies fn to a copy of the product and stores it only when fn
// succeeds.
func (r *ProductRepository) mutate(id int64, fn func(*domain.Product) error) (*domain.Product, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := clone(current)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	s.products[id] = *next
	return clone(*next), nil
}

func clone(p domain.Product) *domain.Product {
	out := p
	out.Images = slices.Clone(p.Images)
	if out.Images == nil {
		out.Images = []string{}
	}
	return &out
}

var (
	_ domain.DomainRepository  = (*DomainRepository)(nil)
	_ domain.ProductRepository = (*ProductRepository)(nil)
)
