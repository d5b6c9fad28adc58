package handlers

import (
	"net/http"

	"productreel/internal/domain"
)

type publishResponse struct {
	ProductID  int64                `json:"productId"`
	Status     domain.PublishStatus `json:"publishStatus"`
	PublishID  *string              `json:"publishId"`
	PublishURL *string              `json:"publishUrl"`
	VideoURL   *string              `json:"videoUrl"`
}

func publishView(p *domain.Product) publishResponse {
	return publishResponse{
		ProductID:  p.ID,
		Status:     p.PublishStatus,
		PublishID:  p.PublishID,
		PublishURL: p.PublishURL,
		VideoURL:   p.VideoURL,
	}
}

// PublishVideo uploads the finished video and returns once the platform has
// answered.
func (a *App) PublishVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "productId")
	if !ok {
		return
	}
	p, err := a.Publish.StartPublish(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, publishView(p))
}

func (a *App) PublishStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r, "productId")
	if !ok {
		return
	}
	p, err := a.Publish.GetStatus(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, publishView(p))
}
