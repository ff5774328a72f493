package memstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calebmorse/mnemon/pkg/models"
)

func TestHTTPStore_Search(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "database migration" {
			t.Errorf("query = %q, want %q", req.Query, "database migration")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"content_hash": "abc123", "content": "ran the migration twice", "similarity": 0.8, "tags": []string{"database"}},
				{"content_hash": "def456", "content": "low relevance", "similarity": 0.1},
			},
		})
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL, WithAPIKey("sekret"))
	results, err := store.Search(context.Background(), models.SearchQuery{
		QueryText:           "database migration",
		SimilarityThreshold: 0.3,
		ResultLimit:         5,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotAuth != "Bearer sekret" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1 (below-threshold result dropped)", len(results))
	}
	if results[0].ContentHash != "abc123" {
		t.Errorf("ContentHash = %q, want abc123", results[0].ContentHash)
	}
}

func TestHTTPStore_Store(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/memories" {
			t.Errorf("path = %q, want /api/memories", r.URL.Path)
		}
		var req StoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(storeResponse{ContentHash: ContentHash(req.Content)})
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL)
	hash, err := store.Store(context.Background(), StoreRequest{Content: "remember this"})
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if hash != ContentHash("remember this") {
		t.Errorf("hash = %q, want content hash", hash)
	}
}

func TestHTTPStore_StoreServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL)
	if _, err := store.Store(context.Background(), StoreRequest{Content: "x"}); err == nil {
		t.Error("Store() succeeded against a 500 response, want error")
	}
}

func TestHTTPStore_Health(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		want       HealthStatus
		wantErr    bool
	}{
		{"healthy", http.StatusOK, `{"status":"healthy"}`, HealthHealthy, false},
		{"degraded", http.StatusOK, `{"status":"degraded"}`, HealthDegraded, false},
		{"unknown status string", http.StatusOK, `{"status":"fine"}`, HealthDegraded, false},
		{"service error", http.StatusServiceUnavailable, ``, HealthUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewHTTPStore(srv.URL).Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Health() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Health() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPStore_HealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the port refuses connections

	status, err := NewHTTPStore(srv.URL).Health(context.Background())
	if err == nil {
		t.Fatal("Health() against closed server succeeded, want error")
	}
	if status != HealthUnavailable {
		t.Errorf("Health() = %q, want %q", status, HealthUnavailable)
	}
}
