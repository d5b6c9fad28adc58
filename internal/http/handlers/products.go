package handlers

import (
	"net/http"
	"strconv"

	"productreel/internal/domain"
)

// ListProducts returns every product, or the products of one domain when
// domain_id is given.
func (a *App) ListProducts(w http.ResponseWriter, r *http.Request) {
	var (
		items []domain.Product
		err   error
	)
	if raw := r.URL.Query().Get("domain_id"); raw != "" {
		domainID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || domainID <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid domain_id")
			return
		}
		items, err = a.Products.ListByDomain(r.Context(), domainID)
	} else {
		items, err = a.Products.List(r.Context())
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newList(items))
}

func (a *App) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := a.Products.GetByID(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

func (a *App) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := a.Products.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (a *App) DeleteProductsByDomain(w http.ResponseWriter, r *http.Request) {
	domainID, ok := a.pathID(w, r, "domainId")
	if !ok {
		return
	}
	n, err := a.Products.DeleteByDomain(r.Context(), domainID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"domainId": domainID, "deleted": n})
}
