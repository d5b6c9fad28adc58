package handlers

import (
	"net/http"

	"productreel/internal/domain"
)

type videoStartResponse struct {
	ProductID  int64              `json:"productId"`
	TaskID     string             `json:"taskId"`
	TaskStatus string             `json:"taskStatus"`
	Status     domain.VideoStatus `json:"videoStatus"`
	Message    string             `json:"message"`
}

type videoStatusResponse struct {
	ProductID    int64              `json:"productId"`
	Title        string             `json:"title,omitempty"`
	Status       domain.VideoStatus `json:"videoStatus"`
	VideoURL     *string            `json:"videoUrl"`
	TaskID       *string            `json:"taskId"`
	Stale        bool               `json:"stale,omitempty"`
	RefreshError string             `json:"refreshError,omitempty"`
}

func videoView(p *domain.Product) videoStatusResponse {
	return videoStatusResponse{
		ProductID: p.ID,
		Status:    p.VideoStatus,
		VideoURL:  p.VideoURL,
		TaskID:    p.VideoTaskID,
	}
}

// GenerateVideo submits the product's first image for generation. The video
// itself is collected later through VideoStatus.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "productId")
	if !ok {
		return
	}
	res, err := a.Videos.StartGeneration(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, videoStartResponse{
		ProductID:  res.Product.ID,
		TaskID:     res.TaskID,
		TaskStatus: string(res.TaskStatus),
		Status:     res.Product.VideoStatus,
		Message:    "Video generation started successfully",
	})
}

func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "productId")
	if !ok {
		return
	}
	res, err := a.Videos.ReconcileStatus(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	view := videoView(res.Product)
	view.Stale = res.Stale
	view.RefreshError = res.RefreshError
	a.json(w, http.StatusOK, view)
}

// DomainVideos lists the cached video state of every product in a domain.
func (a *App) DomainVideos(w http.ResponseWriter, r *http.Request) {
	domainID, ok := a.pathID(w, r, "domainId")
	if !ok {
		return
	}
	if _, err := a.Domains.GetByID(r.Context(), domainID); err != nil {
		a.fail(w, r, err)
		return
	}
	products, err := a.Videos.ListByDomain(r.Context(), domainID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]videoStatusResponse, 0, len(products))
	for i := range products {
		view := videoView(&products[i])
		view.Title = products[i].Title
		items = append(items, view)
	}
	a.json(w, http.StatusOK, newList(items))
}
