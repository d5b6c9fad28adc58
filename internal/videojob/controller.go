// Package videojob runs the per-product video generation state machine.
package videojob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"productreel/internal/domain"
	"productreel/internal/events"
	"productreel/internal/metrics"
	"productreel/internal/providers/video"
)

// Prompt is the motion instruction sent with every product image.
const Prompt = "The subject should remain realistic and detailed — keep all text, logos, and labels perfectly clear and unchanged. " +
	"Use creative but realistic motion, such as: A subtle parallax effect, as if the camera gently moves around the product (without showing unseen sides). " +
	"Soft dynamic lighting, like a slow light sweep across the surface to highlight gloss and texture. " +
	"Shallow depth of field, with a slight focus shift from top to bottom or front to back. " +
	"Avoid any rotation or label distortion. Keep the camera motion cinematic, not static zoom."

const (
	providerLabel          = "video"
	genericSubmitFailure   = "Failed to generate video"
	genericRefreshFailure  = "could not refresh video status"
	outcomeAccepted        = "accepted"
	outcomeRejected        = "rejected"
	outcomeProviderFailure = "provider_failure"
)

// Options wires a Controller. Notifier and Metrics are optional.
type Options struct {
	Products domain.ProductRepository
	Provider video.Provider
	Notifier events.Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Controller starts generation jobs and reconciles their status on demand.
type Controller struct {
	products domain.ProductRepository
	provider video.Provider
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

// StartResult reports an accepted generation job.
type StartResult struct {
	Product    *domain.Product
	TaskID     string
	TaskStatus video.TaskStatus
}

// StatusResult is the reconciled view of a product's video. Stale is set when
// the provider could not be polled and Product is the cached row.
type StatusResult struct {
	Product      *domain.Product
	Stale        bool
	RefreshError string
}

// StartGeneration claims the product for generation and submits its first
// image. The claim is a single conditional write, so concurrent callers
// produce exactly one submission.
func (c *Controller) StartGeneration(ctx context.Context, productID int64) (*StartResult, error) {
	log := c.logger.With().Int64("product_id", productID).Logger()

	product, err := c.products.ClaimVideo(ctx, productID)
	if err != nil {
		c.metrics.VideoStarts.WithLabelValues(outcomeRejected).Inc()
		return nil, err
	}
	c.notify(product)

	// Once submitted the job runs to completion even if the caller goes away.
	jobCtx := context.WithoutCancel(ctx)
	start := time.Now()
	task, err := c.provider.Submit(jobCtx, video.SubmitRequest{ImageURL: product.FirstImage(), Prompt: Prompt})
	c.metrics.ObserveProvider(providerLabel, "submit", start, err)
	if err != nil {
		c.metrics.VideoStarts.WithLabelValues(outcomeProviderFailure).Inc()
		log.Error().Err(err).Msg("videojob: submit failed")
		return nil, c.failStart(jobCtx, log, productID, err)
	}

	updated, err := c.products.UpdateVideo(jobCtx, productID, domain.VideoUpdate{TaskID: domain.Ptr(task.ID)})
	if err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("videojob: persist task id failed")
		return nil, fmt.Errorf("persist task id: %w", err)
	}
	c.metrics.VideoStarts.WithLabelValues(outcomeAccepted).Inc()
	log.Info().Str("task_id", task.ID).Str("status", string(task.Status)).Msg("videojob: generation started")
	return &StartResult{Product: updated, TaskID: task.ID, TaskStatus: task.Status}, nil
}

func (c *Controller) failStart(ctx context.Context, log zerolog.Logger, productID int64, cause error) error {
	if !errors.Is(cause, domain.ErrProviderFailure) {
		cause = domain.NewProviderError(providerLabel, genericSubmitFailure, cause)
	}
	failed, err := c.products.UpdateVideo(ctx, productID, domain.VideoUpdate{Status: domain.Ptr(domain.VideoStatusError)})
	if err != nil {
		log.Error().Err(err).Msg("videojob: persist error status failed")
		return errors.Join(cause, fmt.Errorf("%w: persist error status: %w", domain.ErrInternal, err))
	}
	c.notify(failed)
	return cause
}

// ReconcileStatus pulls the provider status of an in-flight job into the
// product row. Terminal and task-less products are returned as cached.
func (c *Controller) ReconcileStatus(ctx context.Context, productID int64) (*StatusResult, error) {
	product, err := c.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	taskID := domain.Deref(product.VideoTaskID)
	if taskID == "" || product.VideoStatus.Terminal() {
		c.metrics.VideoReconciles.WithLabelValues("cached").Inc()
		return &StatusResult{Product: product}, nil
	}

	log := c.logger.With().Int64("product_id", productID).Str("task_id", taskID).Logger()
	start := time.Now()
	task, err := c.provider.Poll(ctx, taskID)
	c.metrics.ObserveProvider(providerLabel, "poll", start, err)
	if err != nil {
		c.metrics.VideoReconciles.WithLabelValues("refresh_failed").Inc()
		log.Warn().Err(err).Msg("videojob: poll failed")
		return &StatusResult{Product: product, Stale: true, RefreshError: domain.ProviderMessage(err, genericRefreshFailure)}, nil
	}

	next, ok := mapTaskStatus(task.Status)
	if !ok {
		c.metrics.VideoReconciles.WithLabelValues("unknown_status").Inc()
		log.Warn().Str("status", string(task.Status)).Msg("videojob: unknown provider status")
		return &StatusResult{Product: product}, nil
	}
	var url *string
	if next == domain.VideoStatusFinish && task.VideoURL != "" {
		url = domain.Ptr(task.VideoURL)
	}
	if next == product.VideoStatus && (url == nil || *url == domain.Deref(product.VideoURL)) {
		c.metrics.VideoReconciles.WithLabelValues("unchanged").Inc()
		return &StatusResult{Product: product}, nil
	}

	updated, err := c.products.ApplyVideoResult(ctx, productID, taskID, next, url)
	if errors.Is(err, domain.ErrConflict) {
		// A newer generation or another reconcile won; report what is stored.
		current, getErr := c.products.GetByID(ctx, productID)
		if getErr != nil {
			return nil, getErr
		}
		c.metrics.VideoReconciles.WithLabelValues("superseded").Inc()
		return &StatusResult{Product: current}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persist video status: %w", err)
	}
	c.metrics.VideoReconciles.WithLabelValues(string(next)).Inc()
	c.notify(updated)
	log.Info().Str("status", string(next)).Str("video_url", domain.Deref(updated.VideoURL)).Msg("videojob: status reconciled")
	return &StatusResult{Product: updated}, nil
}

// ListByDomain returns the products of a domain with their cached video fields.
func (c *Controller) ListByDomain(ctx context.Context, domainID int64) ([]domain.Product, error) {
	return c.products.ListByDomain(ctx, domainID)
}

func mapTaskStatus(s video.TaskStatus) (domain.VideoStatus, bool) {
	switch s {
	case video.TaskSubmitted, video.TaskProcessing:
		return domain.VideoStatusProcessing, true
	case video.TaskSucceed:
		return domain.VideoStatusFinish, true
	case video.TaskFailed:
		return domain.VideoStatusError, true
	}
	return "", false
}

func (c *Controller) notify(p *domain.Product) {
	c.notifier.Notify(context.Background(), events.Event{
		Entity:   events.EntityProduct,
		ID:       p.ID,
		DomainID: p.DomainID,
		Field:    events.FieldVideoStatus,
		Status:   string(p.VideoStatus),
		At:       p.UpdatedAt,
	})
}
