package infra

import (
	"context"
	"net"
	"net/http"
)

// HTTPServer owns the API listener. Provider calls run inside requests, so the
// write timeout is the budget for a synchronous generate or publish.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer applies the timeouts and header limits from cfg to handler.
// A header timeout longer than the read timeout is capped to it.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	headerTimeout := cfg.HTTPReadHeaderTimeout
	if cfg.HTTPReadTimeout > 0 && (headerTimeout <= 0 || headerTimeout > cfg.HTTPReadTimeout) {
		headerTimeout = cfg.HTTPReadTimeout
	}
	return &HTTPServer{server: &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: headerTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		MaxHeaderBytes:    cfg.HTTPMaxHeaderBytes,
	}}
}

// Addr is the listen address, e.g. ":8080".
func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

// Start blocks serving on Addr until Shutdown.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Serve is Start on an existing listener.
func (s *HTTPServer) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
