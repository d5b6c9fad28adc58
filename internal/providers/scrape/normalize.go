package scrape

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"productreel/internal/domain"
)

// Normalize keeps the records that carry a title, a URL and at least one
// image, accepting both plain and product_-prefixed field names. An empty
// description falls back to the title. Input order is preserved.
func Normalize(raw []RawProduct) []domain.NewProduct {
	out := make([]domain.NewProduct, 0, len(raw))
	for _, rec := range raw {
		title := cleanText(rec.text("title", "product_title"))
		url := strings.TrimSpace(rec.text("url", "product_url"))
		images := rec.images("image", "product_image")
		if title == "" || url == "" || len(images) == 0 {
			continue
		}
		description := cleanText(rec.text("description", "product_description"))
		if description == "" {
			description = title
		}
		out = append(out, domain.NewProduct{
			Title:       title,
			Description: description,
			URL:         url,
			Images:      images,
		})
	}
	return out
}

// text returns the first key holding a non-empty string.
func (r RawProduct) text(keys ...string) string {
	for _, k := range keys {
		if s, ok := r[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// images returns the first key holding a non-empty array of URLs. A bare
// string is not an image list.
func (r RawProduct) images(keys ...string) []string {
	for _, k := range keys {
		list, ok := r[k].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		var urls []string
		for _, item := range list {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					urls = append(urls, s)
				}
			}
		}
		if len(urls) > 0 {
			return urls
		}
	}
	return nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
