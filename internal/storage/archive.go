package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrObjectNotFound is returned by Read for keys that were never written.
var ErrObjectNotFound = errors.New("storage: object not found")

// Archive stores opaque payloads by key.
type Archive interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// ScrapeKey names the archived raw payload of one scrape of a domain.
func ScrapeKey(domainID int64, at time.Time) string {
	return fmt.Sprintf("scrapes/domain-%d/%s.json", domainID, at.UTC().Format("20060102T150405.000000000Z"))
}

// Discard drops every payload. It stands in when archiving is disabled.
type Discard struct{}

func (Discard) Write(_ context.Context, key string, _ []byte) (string, error) {
	return sanitizeKey(key)
}

var (
	_ Archive = (*FileStore)(nil)
	_ Archive = (*MinioStore)(nil)
	_ Archive = Discard{}
)
