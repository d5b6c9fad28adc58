// Package pipeline drives a submitted domain through scrape, normalize and
// bulk insert of its products.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"productreel/internal/domain"
	"productreel/internal/events"
	"productreel/internal/metrics"
	"productreel/internal/providers/scrape"
	"productreel/internal/storage"
)

// Options wires a Pipeline. Archive, Notifier and Metrics are optional.
type Options struct {
	Domains  domain.DomainRepository
	Products domain.ProductRepository
	Scraper  scrape.Scraper
	Archive  storage.Archive
	Notifier events.Notifier
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

// Pipeline owns the domain status machine.
type Pipeline struct {
	domains  domain.DomainRepository
	products domain.ProductRepository
	scraper  scrape.Scraper
	archive  storage.Archive
	notifier events.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

func New(opts Options) *Pipeline {
	p := &Pipeline{
		domains:  opts.Domains,
		products: opts.Products,
		scraper:  opts.Scraper,
		archive:  opts.Archive,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if p.archive == nil {
		p.archive = storage.Discard{}
	}
	if p.notifier == nil {
		p.notifier = events.Noop{}
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop()
	}
	return p
}

// Submit persists a pending domain and starts its pipeline in the background.
// It returns as soon as the domain row exists.
func (p *Pipeline) Submit(ctx context.Context, rawURL string) (*domain.Domain, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	d, err := p.domains.Create(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("create domain: %w", err)
	}
	p.notify(*d)
	p.logger.Info().Int64("domain_id", d.ID).Str("url", d.URL).Msg("pipeline: domain submitted")

	p.wg.Add(1)
	go func(d domain.Domain) {
		defer p.wg.Done()
		_ = p.Run(context.Background(), &d)
	}(*d)
	return d, nil
}

// Wait blocks until every background run has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Run executes the pipeline for a pending domain in the calling goroutine and
// returns the final status. A panic is recovered and recorded as error.
func (p *Pipeline) Run(ctx context.Context, d *domain.Domain) (final domain.DomainStatus) {
	log := p.logger.With().Int64("domain_id", d.ID).Logger()
	current := d.Status

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("status", string(current)).Msg("pipeline: recovered panic")
			final = p.fail(ctx, log, d.ID, current)
		}
		p.metrics.PipelineRuns.WithLabelValues(string(final)).Inc()
	}()

	if !p.transition(ctx, log, d.ID, &current, domain.DomainStatusProcessing) {
		return current
	}

	start := time.Now()
	result, err := p.scraper.ScrapeProducts(ctx, d.URL)
	p.metrics.ObserveProvider("scrape", "scrape_products", start, err)
	if err != nil {
		log.Error().Err(err).Msg("pipeline: scrape failed")
		return p.fail(ctx, log, d.ID, current)
	}
	p.archiveRaw(ctx, log, d.ID, result)

	if !p.transition(ctx, log, d.ID, &current, domain.DomainStatusGenerating) {
		return current
	}

	products := scrape.Normalize(result.Products)
	log.Info().Int("raw", len(result.Products)).Int("valid", len(products)).Msg("pipeline: products normalized")
	if len(products) > 0 {
		inserted, err := p.products.InsertMany(ctx, d.ID, products)
		if err != nil {
			log.Error().Err(err).Msg("pipeline: insert products failed")
			return p.fail(ctx, log, d.ID, current)
		}
		p.metrics.ProductsScraped.Add(float64(len(inserted)))
	}

	p.transition(ctx, log, d.ID, &current, domain.DomainStatusComplete)
	return current
}

// Resubmit resets an errored domain, or an unfinished one whose status has not
// changed for at least staleAfter, to pending. Products are dropped only after
// the reset succeeds, then the pipeline runs again in the calling goroutine.
func (p *Pipeline) Resubmit(ctx context.Context, id int64, staleAfter time.Duration) (domain.DomainStatus, error) {
	d, err := p.domains.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	switch {
	case d.Status == domain.DomainStatusComplete:
		return d.Status, fmt.Errorf("%w: domain %d is %s", domain.ErrConflict, id, d.Status)
	case d.Status != domain.DomainStatusError:
		if idle := p.now().Sub(d.UpdatedAt); idle < staleAfter {
			return d.Status, fmt.Errorf("%w: domain %d is %s and changed %s ago", domain.ErrConflict, id, d.Status, idle.Round(time.Second))
		}
	}

	reset, err := p.domains.ResetToPending(ctx, id, d.Status, d.UpdatedAt)
	if err != nil {
		return d.Status, err
	}
	removed, err := p.products.DeleteByDomain(ctx, id)
	if err != nil {
		return reset.Status, fmt.Errorf("delete products: %w", err)
	}
	p.notify(*reset)
	p.logger.Info().Int64("domain_id", id).Int64("products_removed", removed).Str("from", string(d.Status)).Msg("pipeline: domain resubmitted")
	return p.Run(ctx, reset), nil
}

func (p *Pipeline) transition(ctx context.Context, log zerolog.Logger, id int64, current *domain.DomainStatus, next domain.DomainStatus) bool {
	if !current.CanTransitionTo(next) {
		log.Error().Str("from", string(*current)).Str("to", string(next)).Msg("pipeline: illegal transition")
		return false
	}
	d, err := p.domains.TransitionStatus(ctx, id, *current, next)
	if err != nil {
		log.Error().Err(err).Str("from", string(*current)).Str("to", string(next)).Msg("pipeline: transition failed")
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			return false
		}
		*current = p.fail(ctx, log, id, *current)
		return false
	}
	*current = d.Status
	p.notify(*d)
	log.Info().Str("status", string(d.Status)).Msg("pipeline: status changed")
	return true
}

// fail moves an in-flight domain to error. It returns the status left in place.
func (p *Pipeline) fail(ctx context.Context, log zerolog.Logger, id int64, current domain.DomainStatus) domain.DomainStatus {
	if !current.CanTransitionTo(domain.DomainStatusError) {
		return current
	}
	d, err := p.domains.TransitionStatus(ctx, id, current, domain.DomainStatusError)
	if err != nil {
		log.Error().Err(err).Str("from", string(current)).Msg("pipeline: could not persist error status")
		return current
	}
	p.notify(*d)
	log.Warn().Str("status", string(d.Status)).Msg("pipeline: domain failed")
	return d.Status
}

func (p *Pipeline) archiveRaw(ctx context.Context, log zerolog.Logger, id int64, result *scrape.Result) {
	if len(result.Raw) == 0 {
		return
	}
	key, err := p.archive.Write(ctx, storage.ScrapeKey(id, p.now()), result.Raw)
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: archive raw scrape failed")
		return
	}
	log.Debug().Str("key", key).Str("request_id", result.RequestID).Msg("pipeline: raw scrape archived")
}

func (p *Pipeline) notify(d domain.Domain) {
	p.notifier.Notify(context.Background(), events.Event{
		Entity:   events.EntityDomain,
		ID:       d.ID,
		DomainID: d.ID,
		Field:    events.FieldStatus,
		Status:   string(d.Status),
		At:       d.UpdatedAt,
	})
}

// ValidateURL accepts absolute http(s) URLs and returns them trimmed.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", domain.ErrInvalidInput)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: url must be an absolute http(s) url", domain.ErrInvalidInput)
	}
	return raw, nil
}
