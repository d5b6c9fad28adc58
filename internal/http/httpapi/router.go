package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"productreel/internal/http/handlers"
	"productreel/internal/middleware"
)

// Options tunes the router middleware.
type Options struct {
	CORSOrigins     []string
	RateLimitPerMin int
	Logger          zerolog.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/metrics", app.ServeMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Route("/domains", func(r chi.Router) {
			r.Get("/", app.ListDomains)
			r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.CreateDomain)
			r.Get("/{id}", app.GetDomain)
			r.Get("/{id}/with-products", app.GetDomainWithProducts)
			r.Delete("/{id}", app.DeleteDomain)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", app.ListProducts)
			r.Get("/{id}", app.GetProduct)
			r.Delete("/{id}", app.DeleteProduct)
			r.Delete("/domain/{domainId}", app.DeleteProductsByDomain)
		})

		r.Route("/video", func(r chi.Router) {
			r.Post("/generate/{productId}", app.GenerateVideo)
			r.Get("/status/{productId}", app.VideoStatus)
			r.Get("/domain/{domainId}", app.DomainVideos)
		})

		r.Route("/publish", func(r chi.Router) {
			r.Post("/{productId}", app.PublishVideo)
			r.Get("/status/{productId}", app.PublishStatus)
		})
	})

	return r
}
