package publish

import "context"

// Request carries the metadata of one video upload.
type Request struct {
	VideoURL     string
	Title        string
	Description  string
	ThumbnailURL string
}

// PublishedVideo is the platform view of an uploaded video.
type PublishedVideo struct {
	ID                 string
	Status             string
	Title              string
	PrivateID          string
	PublishingProgress int
}

// Provider authenticates against and uploads videos to a public platform.
type Provider interface {
	Authenticate(ctx context.Context) (string, error)
	PublishVideo(ctx context.Context, token string, req Request) (*PublishedVideo, error)
	WatchURL(id string) string
}
