package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"productreel/internal/domain"
	"productreel/internal/infra"
	"productreel/internal/sqlinline"
)

// ProductRepositoryPG implements domain.ProductRepository. Guards run inside
// single conditional UPDATE statements; a statement returning no row is
// classified by re-reading the product.
type ProductRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewProductRepository creates a product repository backed by PostgreSQL.
func NewProductRepository(sql infra.SQLExecutor) *ProductRepositoryPG {
	return &ProductRepositoryPG{sql: sql}
}

func (r *ProductRepositoryPG) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.one(ctx, sqlinline.QSelectProductByID, id)
}

func (r *ProductRepositoryPG) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListProducts)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProduct)
}

func (r *ProductRepositoryPG) ListByDomain(ctx context.Context, domainID int64) ([]domain.Product, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListProductsByDomain, domainID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanProduct)
}

type productRecord struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Images      []string `json:"images"`
}

func (r *ProductRepositoryPG) InsertMany(ctx context.Context, domainID int64, products []domain.NewProduct) ([]domain.Product, error) {
	if len(products) == 0 {
		return []domain.Product{}, nil
	}
	records := make([]productRecord, 0, len(products))
	for _, p := range products {
		records = append(records, productRecord(p))
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	rows, err := r.sql.Query(ctx, sqlinline.QInsertProducts, domainID, string(payload))
	if err != nil {
		return nil, fmt.Errorf("insert products: %w", err)
	}
	inserted, err := collect(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("insert products: %w", err)
	}
	return inserted, nil
}

func (r *ProductRepositoryPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteProduct, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProductRepositoryPG) DeleteByDomain(ctx context.Context, domainID int64) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteProductsByDomain, domainID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *ProductRepositoryPG) ClaimVideo(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.sql.QueryRow(ctx, sqlinline.QClaimProductVideo, id))
	if err == nil {
		return p, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	return nil, r.rejection(ctx, id, (*domain.Product).VideoClaimError)
}

func (r *ProductRepositoryPG) UpdateVideo(ctx context.Context, id int64, update domain.VideoUpdate) (*domain.Product, error) {
	return r.one(ctx, sqlinline.QUpdateProductVideo, id, nullable(update.Status), update.URL, update.TaskID)
}

func (r *ProductRepositoryPG) ApplyVideoResult(ctx context.Context, id int64, taskID string, status domain.VideoStatus, url *string) (*domain.Product, error) {
	p, err := scanProduct(r.sql.QueryRow(ctx, sqlinline.QApplyProductVideoResult, id, taskID, string(status), url))
	if err == nil {
		return p, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: product %d is no longer processing task %s", domain.ErrConflict, id, taskID)
}

func (r *ProductRepositoryPG) ClaimPublish(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.sql.QueryRow(ctx, sqlinline.QClaimProductPublish, id))
	if err == nil {
		return p, nil
	}
	if !infra.IsNoRows(err) {
		return nil, err
	}
	return nil, r.rejection(ctx, id, (*domain.Product).PublishClaimError)
}

func (r *ProductRepositoryPG) UpdatePublish(ctx context.Context, id int64, update domain.PublishUpdate) (*domain.Product, error) {
	return r.one(ctx, sqlinline.QUpdateProductPublish, id, nullable(update.Status), update.ID, update.URL)
}

func (r *ProductRepositoryPG) one(ctx context.Context, query string, args ...any) (*domain.Product, error) {
	p, err := scanProduct(r.sql.QueryRow(ctx, query, args...))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// rejection explains a claim that matched no row. The guard may have been
// satisfied again by the time of the re-read; that race still reports a
// conflict.
func (r *ProductRepositoryPG) rejection(ctx context.Context, id int64, guard func(*domain.Product) error) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := guard(current); err != nil {
		return err
	}
	return fmt.Errorf("%w: product %d changed concurrently: %w", domain.ErrConflict, id, errNoClaim)
}

var errNoClaim = errors.New("claim rejected")

var _ domain.ProductRepository = (*ProductRepositoryPG)(nil)
