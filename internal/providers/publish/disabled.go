package publish

import (
	"context"

	"productreel/internal/domain"
)

// Disabled stands in for an unconfigured platform; every upload fails with
// Reason.
type Disabled struct {
	Reason string
}

func NewDisabled(reason string) *Disabled {
	return &Disabled{Reason: reason}
}

func (d *Disabled) Authenticate(context.Context) (string, error) {
	return "", domain.NewProviderError("dailymotion", d.Reason, nil)
}

func (d *Disabled) PublishVideo(context.Context, string, Request) (*PublishedVideo, error) {
	return nil, domain.NewProviderError("dailymotion", d.Reason, nil)
}

func (d *Disabled) WatchURL(id string) string {
	return watchURLPrefix + id
}

var _ Provider = (*Disabled)(nil)
