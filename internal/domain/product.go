package domain

import (
	"fmt"
	"time"
)

// VideoStatus enumerates the per-product video generation lifecycle.
type VideoStatus string

const (
	VideoStatusUnavailable VideoStatus = "unavailable"
	VideoStatusProcessing  VideoStatus = "processing"
	VideoStatusFinish      VideoStatus = "finish"
	VideoStatusError       VideoStatus = "error"
)

// ParseVideoStatus rejects values outside the closed set.
func ParseVideoStatus(s string) (VideoStatus, error) {
	switch st := VideoStatus(s); st {
	case VideoStatusUnavailable, VideoStatusProcessing, VideoStatusFinish, VideoStatusError:
		return st, nil
	}
	return "", fmt.Errorf("%w: video status %q", ErrInvalidStatus, s)
}

// Terminal reports whether reconciliation has nothing left to pull.
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusFinish || s == VideoStatusError
}

// PublishStatus enumerates the per-product publish lifecycle.
type PublishStatus string

const (
	PublishStatusNotPublished PublishStatus = "not_published"
	PublishStatusPublishing   PublishStatus = "publishing"
	PublishStatusPublished    PublishStatus = "published"
	PublishStatusError        PublishStatus = "error"
)

// ParsePublishStatus rejects values outside the closed set.
func ParsePublishStatus(s string) (PublishStatus, error) {
	switch st := PublishStatus(s); st {
	case PublishStatusNotPublished, PublishStatusPublishing, PublishStatusPublished, PublishStatusError:
		return st, nil
	}
	return "", fmt.Errorf("%w: publish status %q", ErrInvalidStatus, s)
}

// Product is one scraped item with independent video and publish lifecycles.
type Product struct {
	ID            int64         `json:"id"`
	DomainID      int64         `json:"domainId"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	URL           string        `json:"url"`
	Images        []string      `json:"images"`
	VideoStatus   VideoStatus   `json:"videoStatus"`
	VideoURL      *string       `json:"videoUrl"`
	VideoTaskID   *string       `json:"videoTaskId"`
	PublishStatus PublishStatus `json:"publishStatus"`
	PublishID     *string       `json:"publishId"`
	PublishURL    *string       `json:"publishUrl"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// NewProduct carries the normalized fields of a scraped product before insert.
type NewProduct struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Images      []string `json:"images"`
}

// FirstImage returns the primary image, or "" when the product has none.
func (p *Product) FirstImage() string {
	if p == nil || len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// VideoReady reports whether the product has a finished video to publish.
func (p *Product) VideoReady() bool {
	return p.VideoStatus == VideoStatusFinish && Deref(p.VideoURL) != ""
}

// AlreadyPublished reports whether a completed publish exists for the product.
func (p *Product) AlreadyPublished() bool {
	return p.PublishStatus == PublishStatusPublished && Deref(p.PublishID) != ""
}

// PublishLocked reports whether the publish lifecycle forbids replacing the
// current video: a publish is running or has completed.
func (p *Product) PublishLocked() bool {
	return p.PublishStatus == PublishStatusPublishing || p.PublishStatus == PublishStatusPublished
}

// VideoUpdate is a partial update of the video fields. Nil fields are kept.
type VideoUpdate struct {
	Status *VideoStatus
	URL    *string
	TaskID *string
}

// PublishUpdate is a partial update of the publish fields. Nil fields are kept.
type PublishUpdate struct {
	Status *PublishStatus
	ID     *string
	URL    *string
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// VideoClaimError explains why a new generation cannot start, or returns nil.
func (p *Product) VideoClaimError() error {
	switch {
	case len(p.Images) == 0:
		return fmt.Errorf("%w: product has no image", ErrPreconditionFailed)
	case p.VideoStatus == VideoStatusProcessing:
		return fmt.Errorf("%w: video generation already in progress", ErrConflict)
	case p.PublishLocked():
		return fmt.Errorf("%w: video is %s", ErrConflict, p.PublishStatus)
	}
	return nil
}

// PublishClaimError explains why a publish cannot start, or returns nil.
func (p *Product) PublishClaimError() error {
	switch {
	case !p.VideoReady():
		return fmt.Errorf("%w: generate video first", ErrPreconditionFailed)
	case p.PublishStatus == PublishStatusPublishing:
		return fmt.Errorf("%w: publish already in progress", ErrConflict)
	case p.AlreadyPublished():
		return fmt.Errorf("%w: video already published", ErrConflict)
	}
	return nil
}
