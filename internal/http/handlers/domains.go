package handlers

import (
	"encoding/json"
	"net/http"

	"productreel/internal/domain"
)

type createDomainRequest struct {
	URL string `json:"url"`
}

type domainWithProducts struct {
	domain.Domain
	Products     []domain.Product `json:"products"`
	ProductCount int              `json:"productCount"`
}

func (a *App) ListDomains(w http.ResponseWriter, r *http.Request) {
	items, err := a.Domains.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newList(items))
}

// CreateDomain stores the domain and starts scraping in the background. The
// response carries the pending row.
func (a *App) CreateDomain(w http.ResponseWriter, r *http.Request) {
	var req createDomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	d, err := a.Pipeline.Submit(r.Context(), req.URL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, d)
}

func (a *App) GetDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "id")
	if !ok {
		return
	}
	d, err := a.Domains.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, d)
}

func (a *App) GetDomainWithProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "id")
	if !ok {
		return
	}
	d, err := a.Domains.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	products, err := a.Products.ListByDomain(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	a.json(w, http.StatusOK, domainWithProducts{Domain: *d, Products: products, ProductCount: len(products)})
}

// DeleteDomain removes the domain together with its products.
func (a *App) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.Domains.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
