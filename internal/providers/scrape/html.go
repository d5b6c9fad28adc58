package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"productreel/internal/domain"
	"productreel/internal/infra"
)

const htmlProvider = "html"

const maxPageBytes = 5 << 20

// HTMLScraper extracts products from a page's schema.org JSON-LD and, when
// none is present, from its OpenGraph tags. It needs no API key.
type HTMLScraper struct {
	client    *http.Client
	logger    zerolog.Logger
	userAgent string
}

// NewHTMLScraper builds a scraper using client, or a client with timeout when nil.
func NewHTMLScraper(client *http.Client, timeout time.Duration, logger *infra.Logger) *HTMLScraper {
	if client == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	s := &HTMLScraper{
		client:    client,
		logger:    zerolog.Nop(),
		userAgent: "Mozilla/5.0 (compatible; productreel/1.0)",
	}
	if logger != nil {
		s.logger = *logger
	}
	return s
}

func (s *HTMLScraper) ScrapeProducts(ctx context.Context, pageURL string) (*Result, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil, domain.NewProviderError(htmlProvider, "invalid url", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("html: build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.NewProviderError(htmlProvider, "", fmt.Errorf("fetch page: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewProviderError(htmlProvider, fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}
	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, domain.NewProviderError(htmlProvider, "", fmt.Errorf("read page: %w", err))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, domain.NewProviderError(htmlProvider, "", fmt.Errorf("parse html: %w", err))
	}

	products := extractJSONLD(doc, base)
	source := "json-ld"
	if len(products) == 0 {
		if p := extractOpenGraph(doc, base); p != nil {
			products = append(products, p)
			source = "opengraph"
		}
	}

	raw, err := json.Marshal(map[string]any{"url": pageURL, "source": source, "products": products})
	if err != nil {
		return nil, fmt.Errorf("html: encode raw result: %w", err)
	}
	s.logger.Info().
		Str("provider", htmlProvider).
		Str("url", pageURL).
		Str("source", source).
		Int("products", len(products)).
		Msg("html: scrape completed")
	return &Result{Products: products, Status: "completed", Raw: raw}, nil
}

func extractJSONLD(doc *goquery.Document, base *url.URL) []RawProduct {
	var out []RawProduct
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var node any
		if err := json.Unmarshal([]byte(sel.Text()), &node); err != nil {
			return
		}
		out = append(out, collectProducts(node, base)...)
	})
	return out
}

func collectProducts(node any, base *url.URL) []RawProduct {
	switch v := node.(type) {
	case []any:
		var out []RawProduct
		for _, item := range v {
			out = append(out, collectProducts(item, base)...)
		}
		return out
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			return collectProducts(graph, base)
		}
		switch {
		case hasType(v, "Product"):
			return []RawProduct{ldProduct(v, base)}
		case hasType(v, "ItemList"):
			return collectProducts(v["itemListElement"], base)
		case hasType(v, "ListItem"):
			if item, ok := v["item"]; ok {
				return collectProducts(item, base)
			}
		}
	}
	return nil
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func ldProduct(node map[string]any, base *url.URL) RawProduct {
	var images []any
	for _, img := range ldStrings(node["image"]) {
		images = append(images, resolve(base, img))
	}
	link, _ := node["url"].(string)
	if link == "" {
		if offers, ok := node["offers"].(map[string]any); ok {
			link, _ = offers["url"].(string)
		}
	}
	name, _ := node["name"].(string)
	desc, _ := node["description"].(string)
	return RawProduct{
		"title":       name,
		"description": desc,
		"url":         resolve(base, link),
		"image":       images,
	}
}

// ldStrings flattens the string, array and ImageObject forms of a JSON-LD value.
func ldStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, ldStrings(item)...)
		}
		return out
	case map[string]any:
		if u, ok := t["url"].(string); ok {
			return []string{u}
		}
		if u, ok := t["contentUrl"].(string); ok {
			return []string{u}
		}
	}
	return nil
}

func extractOpenGraph(doc *goquery.Document, base *url.URL) RawProduct {
	meta := func(prop string) string {
		content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, prop)).First().Attr("content")
		return strings.TrimSpace(content)
	}
	var images []any
	doc.Find(`meta[property="og:image"]`).Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok && strings.TrimSpace(content) != "" {
			images = append(images, resolve(base, strings.TrimSpace(content)))
		}
	})
	title := meta("og:title")
	if title == "" || len(images) == 0 {
		return nil
	}
	link := meta("og:url")
	if link == "" {
		link = base.String()
	}
	return RawProduct{
		"title":       title,
		"description": meta("og:description"),
		"url":         resolve(base, link),
		"image":       images,
	}
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

var _ Scraper = (*HTMLScraper)(nil)
