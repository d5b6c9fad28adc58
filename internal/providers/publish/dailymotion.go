package publish

import (
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

const providerName = "dailymotion"

// ErrMissingCredentials indicates that the client was configured without partner credentials.
var ErrMissingCredentials = errors.New("dailymotion: client id, client secret and user id are required")

// Upload defaults applied to every video.
const (
	defaultChannel  = "creation"
	defaultLanguage = "en"
	responseFields  = "status,id,title,publishing_progress,created_time,private_id"
	watchURLPrefix  = "https://www.dailymotion.com/video/"
)

// Options configures the Dailymotion partner client.
type Options struct {
	ClientID       string
	ClientSecret   string
	UserID         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// DailymotionClient uploads remote video URLs through the Dailymotion partner API.
type DailymotionClient struct {
	clientID     string
	clientSecret string
	userID       string
	baseURL      string
	httpClient   *http.Client
	logger       zerolog.Logger
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorMessage     string `json:"error_message"`
}

type videoResponse struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	Title              string `json:"title"`
	PrivateID          string `json:"private_id"`
	PublishingProgress int    `json:"publishing_progress"`
	Error              *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
	ErrorMessage string `json:"error_message"`
	Reason       string `json:"reason"`
}

// NewDailymotionClient constructs a client with defaults for every unset option.
func NewDailymotionClient(opts Options) (*DailymotionClient, error) {
	c := &DailymotionClient{
		clientID:     strings.TrimSpace(opts.ClientID),
		clientSecret: strings.TrimSpace(opts.ClientSecret),
		userID:       strings.TrimSpace(opts.UserID),
		baseURL:      strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		httpClient:   opts.HTTPClient,
		logger:       zerolog.Nop(),
	}
	if c.clientID == "" || c.clientSecret == "" || c.userID == "" {
		return nil, ErrMissingCredentials
	}
	if c.baseURL == "" {
		c.baseURL = "https://partner.api.dailymotion.com"
	}
	if c.httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	return c, nil
}

// Authenticate requests a client-credentials access token. Tokens are not cached.
func (c *DailymotionClient) Authenticate(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {"manage_videos"},
	}
	raw, status, err := c.postForm(ctx, c.baseURL+"/oauth/v1/token", "", form)
	if err != nil {
		return "", err
	}
	var decoded tokenResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", domain.NewProviderError(providerName, "", fmt.Errorf("decode token response (status %d): %w", status, err))
	}
	if decoded.Error != "" || decoded.ErrorMessage != "" {
		msg := firstNonEmpty(decoded.ErrorMessage, decoded.ErrorDescription, decoded.Error)
		return "", domain.NewProviderError(providerName, "authentication failed: "+msg, nil)
	}
	if status >= 300 || decoded.AccessToken == "" {
		return "", domain.NewProviderError(providerName, "authentication failed: no access token", fmt.Errorf("status %d", status))
	}
	return decoded.AccessToken, nil
}

// PublishVideo asks the platform to ingest req.VideoURL as a new private video.
func (c *DailymotionClient) PublishVideo(ctx context.Context, token string, req Request) (*PublishedVideo, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("dailymotion: access token is required")
	}
	if strings.TrimSpace(req.VideoURL) == "" {
		return nil, errors.New("dailymotion: video url is required")
	}
	form := url.Values{
		"title":               {req.Title},
		"description":         {req.Description},
		"url":                 {req.VideoURL},
		"channel":             {defaultChannel},
		"language":            {defaultLanguage},
		"is_created_for_kids": {"false"},
		"private":             {"true"},
		"published":           {"true"},
		"fields":              {responseFields},
	}
	if req.ThumbnailURL != "" {
		form.Set("thumbnail_url", req.ThumbnailURL)
	}
	endpoint := c.baseURL + "/rest/user/" + url.PathEscape(c.userID) + "/videos"
	raw, status, err := c.postForm(ctx, endpoint, token, form)
	if err != nil {
		return nil, err
	}
	var decoded videoResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.NewProviderError(providerName, "", fmt.Errorf("decode publish response (status %d): %w", status, err))
	}
	if msg := decoded.failure(); msg != "" || status >= 300 {
		return nil, domain.NewProviderError(providerName, msg, fmt.Errorf("status %d", status))
	}
	c.logger.Info().
		Str("provider", providerName).
		Str("video_id", decoded.ID).
		Str("status", decoded.Status).
		Msg("dailymotion: video submitted")
	return &PublishedVideo{
		ID:                 decoded.ID,
		Status:             decoded.Status,
		Title:              decoded.Title,
		PrivateID:          decoded.PrivateID,
		PublishingProgress: decoded.PublishingProgress,
	}, nil
}

// WatchURL returns the public page of a published video.
func (c *DailymotionClient) WatchURL(id string) string {
	return watchURLPrefix + id
}

func (c *DailymotionClient) postForm(ctx context.Context, endpoint, token string, form url.Values) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("dailymotion: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, domain.NewProviderError(providerName, "", fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, domain.NewProviderError(providerName, "", fmt.Errorf("read response: %w", err))
	}
	return raw, resp.StatusCode, nil
}

func (r videoResponse) failure() string {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	return firstNonEmpty(r.ErrorMessage, r.Reason)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var _ Provider = (*DailymotionClient)(nil)
