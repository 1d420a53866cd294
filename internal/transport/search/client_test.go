package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lodgeit-ai/ragchat/internal/domain"
	"github.com/lodgeit-ai/ragchat/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterUpstreamMetrics()
	os.Exit(m.Run())
}

func resultDoc(title string, score float64) map[string]any {
	return map[string]any{
		"@search.score": score,
		"title":         title,
		"hierarchy":     "Help > " + title,
		"content":       "content of " + title,
		"url":           "https://help.example.com/" + title,
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(&Config{
		Endpoint:   baseURL,
		APIKey:     "test-key",
		APIVersion: "2023-11-01",
		Timeout:    2 * time.Second,
		Logger:     zap.NewNop(),
	})
}

func TestSearch_RequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/indexes/lodgeit-help-guides/docs/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2023-11-01" {
			t.Errorf("unexpected api-version: %s", r.URL.Query().Get("api-version"))
		}
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("unexpected api-key header: %s", r.Header.Get("api-key"))
		}

		var req struct {
			Search    string `json:"search"`
			Filter    string `json:"filter"`
			Top       int    `json:"top"`
			QueryType string `json:"queryType"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Search != "how to lodge" {
			t.Errorf("search = %q", req.Search)
		}
		if req.Top != 4 {
			t.Errorf("top = %d, expected 4", req.Top)
		}
		if req.QueryType != "semantic" {
			t.Errorf("queryType = %q", req.QueryType)
		}
		if req.Filter != "" {
			t.Errorf("unexpected filter: %q", req.Filter)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{resultDoc("Lodgment", 0.9)},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	docs, err := c.Search(context.Background(), "lodgeit-help-guides", "how to lodge", nil, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs: got %d, want 1", len(docs))
	}
	if docs[0].Title() != "Lodgment" || docs[0].Score() != 0.9 {
		t.Errorf("doc = %s / %f", docs[0].Title(), docs[0].Score())
	}
}

func TestSearch_ResultsSortedByScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				resultDoc("low", 0.2),
				resultDoc("high", 0.95),
				resultDoc("mid", 0.5),
			},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	docs, err := c.Search(context.Background(), "idx", "q", nil, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if docs[0].Title() != "high" || docs[1].Title() != "mid" || docs[2].Title() != "low" {
		t.Errorf("order: %s, %s, %s", docs[0].Title(), docs[1].Title(), docs[2].Title())
	}
}

func TestSearch_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{}})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	docs, err := c.Search(context.Background(), "idx", "obscure", nil, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if docs == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(docs) != 0 {
		t.Errorf("docs: got %d, want 0", len(docs))
	}
}

func TestSearch_RetriesOnceOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{resultDoc("doc", 0.5)},
		})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	docs, err := c.Search(context.Background(), "idx", "q", nil, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("docs: got %d, want 1", len(docs))
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, expected 2", attempts)
	}
}

func TestSearch_BadRequestNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Search(context.Background(), "idx", "q", nil, 4)
	if !errors.Is(err, domain.ErrUpstreamBadResponse) {
		t.Fatalf("expected ErrUpstreamBadResponse, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, expected 1", attempts)
	}
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name    string
		filters []string
		want    string
	}{
		{"empty", nil, ""},
		{
			"single",
			[]string{"Forms"},
			"hierarchy ge 'Forms' and hierarchy le 'Formsaddition'",
		},
		{
			"multiple",
			[]string{"Forms", "Billing"},
			"hierarchy ge 'Forms' and hierarchy le 'Formsaddition'" +
				" or hierarchy ge 'Billing' and hierarchy le 'Billingaddition'",
		},
		{
			"quote escaped",
			[]string{"O'Brien"},
			"hierarchy ge 'O''Brien' and hierarchy le 'O''Brienaddition'",
		},
		{"blank entries skipped", []string{" ", ""}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := buildFilter(tc.filters); got != tc.want {
				t.Errorf("buildFilter(%v):\ngot:  %q\nwant: %q", tc.filters, got, tc.want)
			}
		})
	}
}

func TestSearch_FilterForwarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filter string `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Filter != "hierarchy ge 'Forms' and hierarchy le 'Formsaddition'" {
			t.Errorf("filter = %q", req.Filter)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{}})
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.Search(context.Background(), "idx", "q", []string{"Forms"}, 4); err != nil {
		t.Fatalf("Search: %v", err)
	}
}
