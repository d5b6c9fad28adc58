package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"productreel/internal/domain"
	"productreel/internal/infra"
)

const scrapeGraphProvider = "scrapegraph"

// UserPrompt is the extraction instruction sent with every scrape.
const UserPrompt = "Extract Product Image, Description, and Title, and product URL, to get the product image, you need to go to product detail, and take the HD image. If there's more than one image, put that as an array."

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("scrapegraph: api key is required")

// ScrapeGraphOptions configures the ScrapeGraph smartscraper client.
type ScrapeGraphOptions struct {
	APIKey         string
	BaseURL        string
	Scrolls        int
	PollInterval   time.Duration
	MaxWait        time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// ScrapeGraphClient calls the ScrapeGraph smartscraper API.
type ScrapeGraphClient struct {
	apiKey       string
	baseURL      string
	scrolls      int
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
	logger       zerolog.Logger
}

type smartScraperRequest struct {
	WebsiteURL      string `json:"website_url"`
	UserPrompt      string `json:"user_prompt"`
	NumberOfScrolls int    `json:"number_of_scrolls,omitempty"`
}

type smartScraperResponse struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
	Products  []RawProduct    `json:"products"`
	Error     string          `json:"error"`
	Detail    string          `json:"detail"`
}

// NewScrapeGraphClient constructs a client with defaults for every unset option.
func NewScrapeGraphClient(opts ScrapeGraphOptions) (*ScrapeGraphClient, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &ScrapeGraphClient{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		scrolls:      opts.Scrolls,
		pollInterval: opts.PollInterval,
		maxWait:      opts.MaxWait,
		httpClient:   opts.HTTPClient,
		logger:       zerolog.Nop(),
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.scrapegraphai.com/v1"
	}
	if c.scrolls < 0 {
		c.scrolls = 0
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 3 * time.Second
	}
	if c.maxWait <= 0 {
		c.maxWait = 5 * time.Minute
	}
	if c.httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	return c, nil
}

// ScrapeProducts runs one smartscraper request and, when the API queues it,
// polls until it completes, fails or MaxWait elapses.
func (c *ScrapeGraphClient) ScrapeProducts(ctx context.Context, websiteURL string) (*Result, error) {
	body, err := json.Marshal(smartScraperRequest{
		WebsiteURL:      websiteURL,
		UserPrompt:      UserPrompt,
		NumberOfScrolls: c.scrolls,
	})
	if err != nil {
		return nil, fmt.Errorf("scrapegraph: encode request: %w", err)
	}
	resp, raw, err := c.call(ctx, http.MethodPost, c.baseURL+"/smartscraper", body)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.maxWait)
	for pending(resp.Status) {
		if resp.RequestID == "" {
			return nil, domain.NewProviderError(scrapeGraphProvider, "queued request without id", nil)
		}
		if time.Now().After(deadline) {
			return nil, domain.NewProviderError(scrapeGraphProvider, "timed out waiting for scrape result", nil)
		}
		select {
		case <-ctx.Done():
			return nil, domain.NewProviderError(scrapeGraphProvider, "", ctx.Err())
		case <-time.After(c.pollInterval):
		}
		c.logger.Debug().Str("provider", scrapeGraphProvider).Str("request_id", resp.RequestID).Str("status", resp.Status).Msg("scrapegraph: polling")
		resp, raw, err = c.call(ctx, http.MethodGet, c.baseURL+"/smartscraper/"+url.PathEscape(resp.RequestID), nil)
		if err != nil {
			return nil, err
		}
	}

	if strings.EqualFold(resp.Status, "failed") || resp.Error != "" {
		return nil, domain.NewProviderError(scrapeGraphProvider, firstNonEmpty(resp.Error, "scrape failed"), nil)
	}

	products, err := extractProducts(resp)
	if err != nil {
		return nil, domain.NewProviderError(scrapeGraphProvider, "", err)
	}
	c.logger.Info().
		Str("provider", scrapeGraphProvider).
		Str("request_id", resp.RequestID).
		Str("status", resp.Status).
		Int("products", len(products)).
		Msg("scrapegraph: scrape completed")
	return &Result{Products: products, RequestID: resp.RequestID, Status: resp.Status, Raw: raw}, nil
}

func (c *ScrapeGraphClient) call(ctx context.Context, method, endpoint string, body []byte) (*smartScraperResponse, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("scrapegraph: build request: %w", err)
	}
	httpReq.Header.Set("SGAI-APIKEY", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, domain.NewProviderError(scrapeGraphProvider, "", fmt.Errorf("http request: %w", err))
	}
	defer httpResp.Body.Close()
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, nil, domain.NewProviderError(scrapeGraphProvider, "", fmt.Errorf("read response: %w", err))
	}

	var decoded smartScraperResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if httpResp.StatusCode >= 300 {
		msg := ""
		if decodeErr == nil {
			msg = firstNonEmpty(decoded.Error, decoded.Detail)
		}
		return nil, nil, domain.NewProviderError(scrapeGraphProvider, msg, fmt.Errorf("status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if decodeErr != nil {
		return nil, nil, domain.NewProviderError(scrapeGraphProvider, "", fmt.Errorf("decode response: %w", decodeErr))
	}
	return &decoded, raw, nil
}

// extractProducts reads products from the top level or from result.products.
// A result that is itself an array is taken as the product list.
func extractProducts(resp *smartScraperResponse) ([]RawProduct, error) {
	if len(resp.Products) > 0 {
		return resp.Products, nil
	}
	trimmed := bytes.TrimSpace(resp.Result)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []RawProduct{}, nil
	}
	if trimmed[0] == '[' {
		var list []RawProduct
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode result list: %w", err)
		}
		return list, nil
	}
	var wrapped struct {
		Products []RawProduct `json:"products"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if wrapped.Products == nil {
		return []RawProduct{}, nil
	}
	return wrapped.Products, nil
}

func pending(status string) bool {
	switch strings.ToLower(status) {
	case "queued", "pending", "processing", "running":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var _ Scraper = (*ScrapeGraphClient)(nil)
