package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"productreel/internal/domain"
)

func newScrapeGraphTestClient(t *testing.T, handler http.Handler) *ScrapeGraphClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewScrapeGraphClient(ScrapeGraphOptions{
		APIKey:       "sgai-test",
		BaseURL:      srv.URL,
		Scrolls:      2,
		PollInterval: time.Millisecond,
		MaxWait:      time.Second,
	})
	if err != nil {
		t.Fatalf("NewScrapeGraphClient error: %v", err)
	}
	return client
}

func TestScrapeProductsSendsPromptAndKey(t *testing.T) {
	var got smartScraperRequest
	client := newScrapeGraphTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("SGAI-APIKEY") != "sgai-test" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, `{"request_id":"req-1","status":"completed","result":{"products":[{"title":"Mug","url":"https://shop.example/mug","image":["https://img.example/mug.jpg"]}]}}`)
	}))

	res, err := client.ScrapeProducts(context.Background(), "https://shop.example")
	if err != nil {
		t.Fatalf("ScrapeProducts error: %v", err)
	}
	if got.WebsiteURL != "https://shop.example" || got.UserPrompt != UserPrompt || got.NumberOfScrolls != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if res.RequestID != "req-1" || len(res.Products) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Raw) == 0 {
		t.Fatal("expected raw payload to be kept")
	}
}

func TestScrapeProductsPollsQueuedRequests(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/smartscraper", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"request_id":"req-2","status":"queued"}`)
	})
	mux.HandleFunc("/smartscraper/req-2", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 2 {
			_, _ = io.WriteString(w, `{"request_id":"req-2","status":"processing"}`)
			return
		}
		_, _ = io.WriteString(w, `{"request_id":"req-2","status":"completed","products":[{"product_title":"Cap","product_url":"https://shop.example/cap","product_image":["https://img.example/cap.jpg"]}]}`)
	})
	client := newScrapeGraphTestClient(t, mux)

	res, err := client.ScrapeProducts(context.Background(), "https://shop.example")
	if err != nil {
		t.Fatalf("ScrapeProducts error: %v", err)
	}
	if polls.Load() != 2 {
		t.Fatalf("expected 2 polls, got %d", polls.Load())
	}
	if len(res.Products) != 1 || res.Products[0]["product_title"] != "Cap" {
		t.Fatalf("unexpected products %#v", res.Products)
	}
}

func TestScrapeProductsFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusUnauthorized, `{"detail":"invalid api key"}`},
		{"failed status", http.StatusOK, `{"request_id":"r","status":"failed","error":"site unreachable"}`},
		{"bad json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newScrapeGraphTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			_, err := client.ScrapeProducts(context.Background(), "https://shop.example")
			if !errors.Is(err, domain.ErrProviderFailure) {
				t.Fatalf("expected provider failure, got %v", err)
			}
		})
	}
}

func TestExtractProductsShapes(t *testing.T) {
	tests := []struct {
		name string
		resp smartScraperResponse
		want int
	}{
		{"empty", smartScraperResponse{}, 0},
		{"null result", smartScraperResponse{Result: json.RawMessage("null")}, 0},
		{"array result", smartScraperResponse{Result: json.RawMessage(`[{"title":"a"},{"title":"b"}]`)}, 2},
		{"object without products", smartScraperResponse{Result: json.RawMessage(`{"items":[]}`)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractProducts(&tt.resp)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d products, want %d", len(got), tt.want)
			}
		})
	}
}
