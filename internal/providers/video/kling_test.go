package video

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"productreel/internal/domain"
)

type klingServer struct {
	*httptest.Server
	submitted submitPayload
	auth      string
	respond   func(w http.ResponseWriter, r *http.Request)
}

func newKlingServer(t *testing.T) *klingServer {
	t.Helper()
	ks := &klingServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/images/mug.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	})
	mux.HandleFunc("/v1/videos/image2video", func(w http.ResponseWriter, r *http.Request) {
		ks.auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &ks.submitted)
		ks.respond(w, r)
	})
	mux.HandleFunc("/v1/videos/image2video/", func(w http.ResponseWriter, r *http.Request) {
		ks.auth = r.Header.Get("Authorization")
		ks.respond(w, r)
	})
	ks.Server = httptest.NewServer(mux)
	t.Cleanup(ks.Close)
	return ks
}

func newTestClient(t *testing.T, baseURL string, now time.Time) *KlingClient {
	t.Helper()
	client, err := NewKlingClient(Options{
		AccessKey: "ak-test",
		SecretKey: "sk-test",
		BaseURL:   baseURL + "/v1/",
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewKlingClient error: %v", err)
	}
	return client
}

func TestNewKlingClientRequiresCredentials(t *testing.T) {
	if _, err := NewKlingClient(Options{AccessKey: "ak"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestSubmitSendsInlineImageAndSignedToken(t *testing.T) {
	ks := newKlingServer(t)
	ks.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":0,"message":"SUCCEED","data":{"task_id":"task-1","task_status":"submitted"}}`)
	}
	now := time.Now()
	client := newTestClient(t, ks.URL, now)

	task, err := client.Submit(context.Background(), SubmitRequest{ImageURL: ks.URL + "/images/mug.jpg", Prompt: "slow light sweep"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if task.ID != "task-1" || task.Status != TaskSubmitted {
		t.Fatalf("unexpected task %+v", task)
	}

	if ks.submitted.ModelName != "kling-v2-5-turbo" || ks.submitted.Mode != "pro" || ks.submitted.Duration != "10" {
		t.Fatalf("unexpected defaults %+v", ks.submitted)
	}
	if ks.submitted.CFGScale != 0.5 {
		t.Fatalf("cfg_scale = %v, want 0.5", ks.submitted.CFGScale)
	}
	if ks.submitted.Image != base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff}) {
		t.Fatalf("unexpected image payload %q", ks.submitted.Image)
	}

	raw := strings.TrimPrefix(ks.auth, "Bearer ")
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return []byte("sk-test"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	if iss, _ := claims.GetIssuer(); iss != "ak-test" {
		t.Fatalf("iss = %q, want ak-test", iss)
	}
	exp, _ := claims.GetExpirationTime()
	if exp.Unix() != now.Add(30*time.Minute).Unix() {
		t.Fatalf("exp = %v, want now+30m", exp)
	}
}

func TestSubmitRejectsNonZeroCode(t *testing.T) {
	ks := newKlingServer(t)
	ks.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":1102,"message":"Account balance not enough","data":{}}`)
	}
	client := newTestClient(t, ks.URL, time.Now())

	_, err := client.Submit(context.Background(), SubmitRequest{ImageURL: ks.URL + "/images/mug.jpg", Prompt: "p"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if msg := domain.ProviderMessage(err, ""); msg != "Account balance not enough" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestSubmitRejectsMissingTaskID(t *testing.T) {
	ks := newKlingServer(t)
	ks.respond = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":0,"message":"SUCCEED","data":{}}`)
	}
	client := newTestClient(t, ks.URL, time.Now())

	_, err := client.Submit(context.Background(), SubmitRequest{ImageURL: ks.URL + "/images/mug.jpg", Prompt: "p"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
}

func TestSubmitFailsWhenImageUnavailable(t *testing.T) {
	ks := newKlingServer(t)
	ks.respond = func(w http.ResponseWriter, r *http.Request) {
		t.Error("task must not be submitted without an image")
	}
	client := newTestClient(t, ks.URL, time.Now())

	_, err := client.Submit(context.Background(), SubmitRequest{ImageURL: ks.URL + "/images/missing.jpg", Prompt: "p"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
}

func TestPollReturnsVideoURL(t *testing.T) {
	ks := newKlingServer(t)
	var path string
	ks.respond = func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = io.WriteString(w, `{"code":0,"data":{"task_id":"task-1","task_status":"succeed","task_result":{"videos":[{"id":"v1","url":"https://cdn.example/v1.mp4","duration":"10"}]}}}`)
	}
	client := newTestClient(t, ks.URL, time.Now())

	task, err := client.Poll(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if path != "/v1/videos/image2video/task-1" {
		t.Fatalf("unexpected path %q", path)
	}
	if task.Status != TaskSucceed || task.VideoURL != "https://cdn.example/v1.mp4" {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestPollSurfacesHTTPErrors(t *testing.T) {
	ks := newKlingServer(t)
	ks.respond = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"code":1302,"message":"rate limited"}`)
	}
	client := newTestClient(t, ks.URL, time.Now())

	_, err := client.Poll(context.Background(), "task-1")
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if msg := domain.ProviderMessage(err, ""); msg != "rate limited" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestDisabledProviderFails(t *testing.T) {
	d := NewDisabled("KLING_ACCESS_KEY and KLING_SECRET_KEY are not configured")
	_, err := d.Submit(context.Background(), SubmitRequest{ImageURL: "https://img.example/a.jpg"})
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
	if got := domain.ProviderMessage(err, ""); got != d.Reason {
		t.Fatalf("message = %q, want %q", got, d.Reason)
	}
}
