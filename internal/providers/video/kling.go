package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"productreel/internal/domain"
	"productreel/internal/infra"
)

const providerName = "kling"

// ErrMissingCredentials indicates that the client was configured without an access/secret key pair.
var ErrMissingCredentials = errors.New("kling: access key and secret key are required")

const (
	tokenTTL       = 30 * time.Minute
	tokenClockSkew = 5 * time.Second
	maxImageBytes  = 10 << 20
)

// Options configures the Kling image2video client.
type Options struct {
	AccessKey      string
	SecretKey      string
	BaseURL        string
	Model          string
	Mode           string
	Duration       string
	CFGScale       float64
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	Now            func() time.Time
}

// KlingClient talks to the Kling AI image2video API.
type KlingClient struct {
	accessKey  string
	secretKey  string
	baseURL    string
	model      string
	mode       string
	duration   string
	cfgScale   float64
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

type submitPayload struct {
	ModelName string  `json:"model_name"`
	Mode      string  `json:"mode"`
	Duration  string  `json:"duration"`
	Image     string  `json:"image"`
	Prompt    string  `json:"prompt"`
	CFGScale  float64 `json:"cfg_scale"`
}

type taskEnvelope struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		TaskID        string `json:"task_id"`
		TaskStatus    string `json:"task_status"`
		TaskStatusMsg string `json:"task_status_msg"`
		TaskResult    struct {
			Videos []struct {
				ID       string `json:"id"`
				URL      string `json:"url"`
				Duration string `json:"duration"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

// NewKlingClient constructs a client with defaults for every unset option.
func NewKlingClient(opts Options) (*KlingClient, error) {
	accessKey := strings.TrimSpace(opts.AccessKey)
	secretKey := strings.TrimSpace(opts.SecretKey)
	if accessKey == "" || secretKey == "" {
		return nil, ErrMissingCredentials
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api-singapore.klingai.com/v1"
	}
	c := &KlingClient{
		accessKey:  accessKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		model:      orDefault(opts.Model, "kling-v2-5-turbo"),
		mode:       orDefault(opts.Mode, "pro"),
		duration:   orDefault(opts.Duration, "10"),
		cfgScale:   opts.CFGScale,
		httpClient: httpClient,
		logger:     zerolog.Nop(),
		now:        opts.Now,
	}
	if c.cfgScale <= 0 {
		c.cfgScale = 0.5
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Submit uploads the first product image inline and starts a generation task.
func (c *KlingClient) Submit(ctx context.Context, req SubmitRequest) (*Task, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("kling: prompt is required")
	}
	image, err := c.downloadBase64(ctx, req.ImageURL)
	if err != nil {
		return nil, domain.NewProviderError(providerName, "could not fetch product image", err)
	}
	body, err := json.Marshal(submitPayload{
		ModelName: c.model,
		Mode:      c.mode,
		Duration:  c.duration,
		Image:     image,
		Prompt:    prompt,
		CFGScale:  c.cfgScale,
	})
	if err != nil {
		return nil, fmt.Errorf("kling: encode request: %w", err)
	}

	env, err := c.do(ctx, http.MethodPost, c.baseURL+"/videos/image2video", body)
	if err != nil {
		return nil, err
	}
	if env.Data.TaskID == "" {
		return nil, domain.NewProviderError(providerName, orDefault(env.Message, "no task id returned"), nil)
	}
	c.logger.Info().
		Str("provider", providerName).
		Str("task_id", env.Data.TaskID).
		Str("status", env.Data.TaskStatus).
		Msg("kling: task submitted")
	return toTask(env), nil
}

// Poll fetches the current state of a task.
func (c *KlingClient) Poll(ctx context.Context, taskID string) (*Task, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, errors.New("kling: task id is required")
	}
	env, err := c.do(ctx, http.MethodGet, c.baseURL+"/videos/image2video/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}
	task := toTask(env)
	if task.ID == "" {
		task.ID = taskID
	}
	c.logger.Debug().
		Str("provider", providerName).
		Str("task_id", task.ID).
		Str("status", string(task.Status)).
		Msg("kling: task polled")
	return task, nil
}

// Token signs the short-lived HS256 bearer token the API expects.
func (c *KlingClient) Token() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iss": c.accessKey,
		"exp": now.Add(tokenTTL).Unix(),
		"nbf": now.Add(-tokenClockSkew).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
	if err != nil {
		return "", fmt.Errorf("kling: sign token: %w", err)
	}
	return signed, nil
}

func (c *KlingClient) do(ctx context.Context, method, endpoint string, body []byte) (*taskEnvelope, error) {
	token, err := c.Token()
	if err != nil {
		return nil, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("kling: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewProviderError(providerName, "", fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewProviderError(providerName, "", fmt.Errorf("read response: %w", err))
	}

	var env taskEnvelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= 300 {
		if decodeErr == nil && env.Message != "" {
			return nil, domain.NewProviderError(providerName, env.Message, fmt.Errorf("status %d code %d", resp.StatusCode, env.Code))
		}
		return nil, domain.NewProviderError(providerName, "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if decodeErr != nil {
		return nil, domain.NewProviderError(providerName, "", fmt.Errorf("decode response: %w", decodeErr))
	}
	if env.Code != 0 {
		return nil, domain.NewProviderError(providerName, env.Message, fmt.Errorf("code %d", env.Code))
	}
	return &env, nil
}

func (c *KlingClient) downloadBase64(ctx context.Context, imageURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid image url: %q", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("empty image")
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func toTask(env *taskEnvelope) *Task {
	task := &Task{
		ID:      env.Data.TaskID,
		Status:  TaskStatus(strings.ToLower(strings.TrimSpace(env.Data.TaskStatus))),
		Message: env.Data.TaskStatusMsg,
	}
	if task.Message == "" {
		task.Message = env.Message
	}
	for _, v := range env.Data.TaskResult.Videos {
		if u := strings.TrimSpace(v.URL); u != "" {
			task.VideoURL = u
			break
		}
	}
	return task
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

var _ Provider = (*KlingClient)(nil)
