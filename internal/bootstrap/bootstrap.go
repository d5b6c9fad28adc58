// Package bootstrap assembles the service graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"productreel/internal/adapter/memstore"
	"productreel/internal/adapter/repo"
	"productreel/internal/domain"
	"productreel/internal/events"
	"productreel/internal/infra"
	"productreel/internal/infra/credentials"
	"productreel/internal/metrics"
	"productreel/internal/pipeline"
	"productreel/internal/providers/publish"
	"productreel/internal/providers/scrape"
	"productreel/internal/providers/video"
	"productreel/internal/publishjob"
	"productreel/internal/storage"
	"productreel/internal/videojob"
)

// Services is the wired application. Close releases pools and clients.
type Services struct {
	Domains  domain.DomainRepository
	Products domain.ProductRepository
	Pipeline *pipeline.Pipeline
	Videos   *videojob.Controller
	Publish  *publishjob.Controller
	Metrics  *metrics.Metrics

	closers []func()
}

// New connects the configured store and builds every collaborator. Missing
// provider credentials do not fail startup: the affected operations report a
// provider error instead.
func New(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Services, error) {
	s := &Services{}

	if err := s.openStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.Metrics = metrics.New(reg)

	archive, err := s.openArchive(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	notifier := s.openNotifier(ctx, cfg, logger)
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	s.Pipeline = pipeline.New(pipeline.Options{
		Domains:  s.Domains,
		Products: s.Products,
		Scraper:  newScraper(cfg, httpClient, logger),
		Archive:  archive,
		Notifier: notifier,
		Metrics:  s.Metrics,
		Logger:   infra.WithComponent(logger, "pipeline"),
	})
	s.Videos = videojob.New(videojob.Options{
		Products: s.Products,
		Provider: newVideoProvider(cfg, httpClient, logger),
		Notifier: notifier,
		Metrics:  s.Metrics,
		Logger:   infra.WithComponent(logger, "videojob"),
	})
	s.Publish = publishjob.New(publishjob.Options{
		Products: s.Products,
		Provider: newPublisher(cfg, httpClient, logger),
		Notifier: notifier,
		Metrics:  s.Metrics,
		Logger:   infra.WithComponent(logger, "publishjob"),
	})
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Services) openStore(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) error {
	switch cfg.StoreDriver {
	case infra.StoreDriverMemory:
		store := memstore.New()
		s.Domains, s.Products = store.Domains(), store.Products()
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return nil
	case infra.StoreDriverPostgres, "":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pool.Close)
		runner := infra.NewSQLRunner(pool, infra.WithComponent(logger, "sql"))
		if err := credentials.NewStore(runner).FillConfig(ctx, cfg); err != nil {
			logger.Warn().Err(err).Msg("stored provider credentials unavailable")
		}
		s.Domains = repo.NewDomainRepository(runner)
		s.Products = repo.NewProductRepository(runner)
		return nil
	default:
		return fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func (s *Services) openArchive(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (storage.Archive, error) {
	switch cfg.ArchiveDriver {
	case infra.ArchiveDriverFile:
		fs, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		logger.Info().Str("path", cfg.StoragePath).Msg("archiving raw scrapes to filesystem")
		return fs, nil
	case infra.ArchiveDriverMinio:
		ms, err := storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		logger.Info().Str("endpoint", cfg.MinioEndpoint).Str("bucket", cfg.MinioBucket).Msg("archiving raw scrapes to minio")
		return ms, nil
	default:
		return storage.Discard{}, nil
	}
}

func (s *Services) openNotifier(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) events.Notifier {
	if cfg.RedisAddr == "" {
		return events.Noop{}
	}
	client, err := events.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("status events disabled")
		return events.Noop{}
	}
	s.closers = append(s.closers, func() { _ = client.Close() })
	notifier, err := events.NewRedisNotifier(client, cfg.EventsChannel, infra.WithComponent(logger, "events"))
	if err != nil {
		logger.Warn().Err(err).Msg("status events disabled")
		return events.Noop{}
	}
	return notifier
}

func newScraper(cfg *infra.Config, httpClient *http.Client, logger zerolog.Logger) scrape.Scraper {
	l := infra.WithComponent(logger, "scrapegraph")
	client, err := scrape.NewScrapeGraphClient(scrape.ScrapeGraphOptions{
		APIKey:     cfg.ScrapeGraphAPIKey,
		BaseURL:    cfg.ScrapeGraphBaseURL,
		Scrolls:    cfg.ScrapeGraphScrolls,
		HTTPClient: httpClient,
		Logger:     &l,
	})
	if err == nil {
		return client
	}
	if errors.Is(err, scrape.ErrMissingAPIKey) {
		logger.Warn().Msg("SCRAPEGRAPH_API_KEY not set; falling back to the HTML scraper")
	} else {
		logger.Warn().Err(err).Msg("scrapegraph client unavailable; falling back to the HTML scraper")
	}
	hl := infra.WithComponent(logger, "htmlscraper")
	return scrape.NewHTMLScraper(httpClient, cfg.ProviderTimeout, &hl)
}

func newVideoProvider(cfg *infra.Config, httpClient *http.Client, logger zerolog.Logger) video.Provider {
	l := infra.WithComponent(logger, "kling")
	client, err := video.NewKlingClient(video.Options{
		AccessKey:  cfg.KlingAccessKey,
		SecretKey:  cfg.KlingSecretKey,
		BaseURL:    cfg.KlingBaseURL,
		Model:      cfg.KlingModel,
		Mode:       cfg.KlingMode,
		Duration:   cfg.KlingDuration,
		HTTPClient: httpClient,
		Logger:     &l,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("video generation disabled")
		return video.NewDisabled("video generation is not configured")
	}
	return client
}

func newPublisher(cfg *infra.Config, httpClient *http.Client, logger zerolog.Logger) publish.Provider {
	l := infra.WithComponent(logger, "dailymotion")
	client, err := publish.NewDailymotionClient(publish.Options{
		ClientID:     cfg.DailymotionClientID,
		ClientSecret: cfg.DailymotionClientSecret,
		UserID:       cfg.DailymotionUserID,
		BaseURL:      cfg.DailymotionBaseURL,
		HTTPClient:   httpClient,
		Logger:       &l,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("publishing disabled")
		return publish.NewDisabled("publishing is not configured")
	}
	return client
}
