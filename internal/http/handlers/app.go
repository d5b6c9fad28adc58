package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"productreel/internal/domain"
	"productreel/internal/metrics"
	"productreel/internal/pipeline"
	"productreel/internal/publishjob"
	"productreel/internal/videojob"
)

// App holds the collaborators shared by every handler.
type App struct {
	Domains  domain.DomainRepository
	Products domain.ProductRepository
	Pipeline *pipeline.Pipeline
	Videos   *videojob.Controller
	Publish  *publishjob.Controller
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail maps a domain error to its HTTP status. Unexpected errors are logged
// and reported without detail.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrPreconditionFailed):
		a.error(w, http.StatusBadRequest, "precondition_failed", err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrInternal):
		a.logError(r, err)
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, http.StatusBadGateway, "provider_failure", domain.ProviderMessage(err, "provider request failed"))
	default:
		a.logError(r, err)
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) logError(r *http.Request, err error) {
	a.Logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
}

// pathID parses a positive integer route parameter, writing a 400 when it is
// malformed.
func (a *App) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid "+name)
		return 0, false
	}
	return id, true
}
