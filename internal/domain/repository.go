package domain

import (
	"context"
	"time"
)

// DomainRepository persists Domain records.
type DomainRepository interface {
	Create(ctx context.Context, url string) (*Domain, error)
	GetByID(ctx context.Context, id int64) (*Domain, error)
	List(ctx context.Context) ([]Domain, error)
	// ListStuck returns unfinished domains whose status last changed before
	// olderThan, oldest first.
	ListStuck(ctx context.Context, olderThan time.Time) ([]Domain, error)
	// TransitionStatus moves the domain from one status to another atomically.
	// It returns ErrConflict when the stored status is not from.
	TransitionStatus(ctx context.Context, id int64, from, to DomainStatus) (*Domain, error)
	// ResetToPending moves the domain back to pending only if it is still in
	// status from with the given updated_at. ErrConflict otherwise.
	ResetToPending(ctx context.Context, id int64, from DomainStatus, seen time.Time) (*Domain, error)
	// Delete removes the domain and cascades to its products.
	Delete(ctx context.Context, id int64) error
}

// ProductRepository persists Product records. Every method operates on a
// single row atomically except InsertMany, which is all-or-nothing.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	ListByDomain(ctx context.Context, domainID int64) ([]Product, error)
	InsertMany(ctx context.Context, domainID int64, products []NewProduct) ([]Product, error)
	Delete(ctx context.Context, id int64) error
	DeleteByDomain(ctx context.Context, domainID int64) (int64, error)

	// ClaimVideo sets the video status to processing unless a generation is
	// already running, the product has no image, or a publish is running or
	// done. It returns ErrConflict when the guard rejects the claim.
	ClaimVideo(ctx context.Context, id int64) (*Product, error)
	UpdateVideo(ctx context.Context, id int64, update VideoUpdate) (*Product, error)
	// ApplyVideoResult stores a reconciled status and URL only while the
	// product is still processing the given task. ErrConflict otherwise.
	ApplyVideoResult(ctx context.Context, id int64, taskID string, status VideoStatus, url *string) (*Product, error)

	// ClaimPublish sets the publish status to publishing when the video is
	// finished and no publish is running or completed. ErrPreconditionFailed
	// or ErrConflict report why the claim was rejected.
	ClaimPublish(ctx context.Context, id int64) (*Product, error)
	UpdatePublish(ctx context.Context, id int64, update PublishUpdate) (*Product, error)
}
