// Package publishjob runs the per-product publish state machine.
package publishjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"productreel/internal/domain"
	"productreel/internal/events"
	"productreel/internal/metrics"
	"productreel/internal/providers/publish"
)

const (
	providerLabel        = "publish"
	genericPublishFailed = "Failed to publish video"
	missingVideoID       = "publish response did not include a video id"
)

// Options wires a Controller. Notifier and Metrics are optional.
type Options struct {
	Products domain.ProductRepository
	Provider publish.Provider
	Notifier events.Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Controller publishes finished videos and reports cached publish state.
type Controller struct {
	products domain.ProductRepository
	provider publish.Provider
	notifier events.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func New(opts Options) *Controller {
	c := &Controller{
		products: opts.Products,
		provider: opts.Provider,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if c.notifier == nil {
		c.notifier = events.Noop{}
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop()
	}
	return c
}

// StartPublish claims the product for publishing and uploads its video. The
// call blocks until the platform accepted or rejected the upload.
func (c *Controller) StartPublish(ctx context.Context, productID int64) (*domain.Product, error) {
	log := c.logger.With().Int64("product_id", productID).Logger()

	product, err := c.products.ClaimPublish(ctx, productID)
	if err != nil {
		c.metrics.PublishOutcomes.WithLabelValues("rejected").Inc()
		return nil, err
	}
	c.notify(product)

	jobCtx := context.WithoutCancel(ctx)
	video, err := c.upload(jobCtx, product)
	if err == nil && video.ID == "" {
		err = domain.NewProviderError(providerLabel, missingVideoID, nil)
	}
	if err != nil {
		c.metrics.PublishOutcomes.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("publishjob: publish failed")
		return nil, c.fail(jobCtx, log, productID, err)
	}

	watchURL := c.provider.WatchURL(video.ID)
	published, err := c.products.UpdatePublish(jobCtx, productID, domain.PublishUpdate{
		Status: domain.Ptr(domain.PublishStatusPublished),
		ID:     domain.Ptr(video.ID),
		URL:    domain.Ptr(watchURL),
	})
	if err != nil {
		log.Error().Err(err).Str("publish_id", video.ID).Msg("publishjob: persist published state failed")
		return nil, fmt.Errorf("persist publish result: %w", err)
	}
	c.metrics.PublishOutcomes.WithLabelValues("published").Inc()
	c.notify(published)
	log.Info().Str("publish_id", video.ID).Str("publish_url", watchURL).Str("status", video.Status).Msg("publishjob: video published")
	return published, nil
}

// upload authenticates for this call only and submits the video.
func (c *Controller) upload(ctx context.Context, product *domain.Product) (*publish.PublishedVideo, error) {
	start := time.Now()
	token, err := c.provider.Authenticate(ctx)
	c.metrics.ObserveProvider(providerLabel, "authenticate", start, err)
	if err != nil {
		return nil, err
	}
	start = time.Now()
	video, err := c.provider.PublishVideo(ctx, token, publish.Request{
		VideoURL:     domain.Deref(product.VideoURL),
		Title:        product.Title,
		Description:  product.Description,
		ThumbnailURL: product.FirstImage(),
	})
	c.metrics.ObserveProvider(providerLabel, "publish_video", start, err)
	return video, err
}

func (c *Controller) fail(ctx context.Context, log zerolog.Logger, productID int64, cause error) error {
	if !errors.Is(cause, domain.ErrProviderFailure) {
		cause = domain.NewProviderError(providerLabel, genericPublishFailed, cause)
	}
	failed, err := c.products.UpdatePublish(ctx, productID, domain.PublishUpdate{Status: domain.Ptr(domain.PublishStatusError)})
	if err != nil {
		log.Error().Err(err).Msg("publishjob: persist error status failed")
		return errors.Join(cause, fmt.Errorf("%w: persist error status: %w", domain.ErrInternal, err))
	}
	c.notify(failed)
	return cause
}

// GetStatus returns the cached publish fields without contacting the platform.
func (c *Controller) GetStatus(ctx context.Context, productID int64) (*domain.Product, error) {
	return c.products.GetByID(ctx, productID)
}

func (c *Controller) notify(p *domain.Product) {
	c.notifier.Notify(context.Background(), events.Event{
		Entity:   events.EntityProduct,
		ID:       p.ID,
		DomainID: p.DomainID,
		Field:    events.FieldPublishStatus,
		Status:   string(p.PublishStatus),
		At:       p.UpdatedAt,
	})
}
