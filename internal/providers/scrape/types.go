package scrape

import (
	"context"
	"encoding/json"
)

// RawProduct is one loosely-structured record as returned by a scraper.
type RawProduct map[string]any

// Result is the outcome of scraping one URL. Raw holds the provider payload
// verbatim for archiving.
type Result struct {
	Products  []RawProduct
	RequestID string
	Status    string
	Raw       json.RawMessage
}

// Scraper turns a URL into raw product records. Implementations make a single
// attempt per call.
type Scraper interface {
	ScrapeProducts(ctx context.Context, url string) (*Result, error)
}
