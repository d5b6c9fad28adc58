package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"productreel/internal/bootstrap"
	"productreel/internal/http/handlers"
	httpapi "productreel/internal/http/httpapi"
	"productreel/internal/infra"
)

// pipelineDrainTimeout bounds how long shutdown waits for background scrapes.
const pipelineDrainTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	services, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer services.Close()

	app := &handlers.App{
		Domains:  services.Domains,
		Products: services.Products,
		Pipeline: services.Pipeline,
		Videos:   services.Videos,
		Publish:  services.Publish,
		Metrics:  services.Metrics,
		Logger:   infra.WithComponent(logger, "http"),
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          infra.WithComponent(logger, "access"),
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("store", cfg.StoreDriver).Msg("API listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	drained := make(chan struct{})
	go func() {
		services.Pipeline.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(pipelineDrainTimeout):
		logger.Warn().Msg("background pipelines still running at shutdown")
	}
	logger.Info().Msg("server stopped")
}
