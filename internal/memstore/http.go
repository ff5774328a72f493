package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/calebmorse/mnemon/pkg/models"
)

// HTTPStore talks to a remote memory service over JSON. The service is
// expected to expose POST /api/search, POST /api/memories and
// GET /api/health.
type HTTPStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Store = (*HTTPStore)(nil)

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithAPIKey sets a bearer token sent on every request.
func WithAPIKey(key string) HTTPOption {
	return func(s *HTTPStore) { s.apiKey = key }
}

// WithHTTPClient overrides the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// NewHTTPStore creates a client for the memory service at baseURL.
func NewHTTPStore(baseURL string, opts ...HTTPOption) *HTTPStore {
	s := &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type searchRequest struct {
	Query     string   `json:"query"`
	Tags      []string `json:"tags,omitempty"`
	Threshold float64  `json:"similarity_threshold"`
	Limit     int      `json:"limit"`
}

type searchResponse struct {
	Results []struct {
		ContentHash string            `json:"content_hash"`
		Content     string            `json:"content"`
		Tags        []string          `json:"tags"`
		MemoryType  string            `json:"memory_type"`
		CreatedAt   time.Time         `json:"created_at"`
		Metadata    map[string]string `json:"metadata"`
		Similarity  float64           `json:"similarity"`
	} `json:"results"`
}

type storeResponse struct {
	ContentHash string `json:"content_hash"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Search queries the remote service.
func (s *HTTPStore) Search(ctx context.Context, query models.SearchQuery) ([]models.CandidateMemory, error) {
	req := searchRequest{
		Query:     query.QueryText,
		Tags:      query.TagFilters,
		Threshold: query.SimilarityThreshold,
		Limit:     query.ResultLimit,
	}

	var resp searchResponse
	if err := s.post(ctx, "/api/search", req, &resp); err != nil {
		return nil, fmt.Errorf("remote search: %w", err)
	}

	candidates := make([]models.CandidateMemory, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Similarity < query.SimilarityThreshold {
			continue
		}
		candidates = append(candidates, models.CandidateMemory{
			ContentHash: r.ContentHash,
			Content:     r.Content,
			Tags:        r.Tags,
			MemoryType:  r.MemoryType,
			CreatedAt:   r.CreatedAt,
			Metadata:    r.Metadata,
			Similarity:  r.Similarity,
		})
	}
	return candidates, nil
}

// Store writes a memory to the remote service and returns the hash the
// service assigned.
func (s *HTTPStore) Store(ctx context.Context, req StoreRequest) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("store memory: empty content")
	}

	var resp storeResponse
	if err := s.post(ctx, "/api/memories", req, &resp); err != nil {
		return "", fmt.Errorf("remote store: %w", err)
	}
	if resp.ContentHash == "" {
		return "", fmt.Errorf("remote store: response missing content hash")
	}
	return resp.ContentHash, nil
}

// Health maps the remote health endpoint onto HealthStatus. Transport
// failures report the store as unavailable rather than erroring a cycle
// with an opaque network message.
func (s *HTTPStore) Health(ctx context.Context) (HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/health", nil)
	if err != nil {
		return HealthUnavailable, fmt.Errorf("health request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return HealthUnavailable, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return HealthUnavailable, fmt.Errorf("%w: health returned %s", ErrUnavailable, resp.Status)
	}

	var hr healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return HealthUnavailable, fmt.Errorf("decode health response: %w", err)
	}

	switch HealthStatus(hr.Status) {
	case HealthHealthy, HealthDegraded, HealthUnavailable:
		return HealthStatus(hr.Status), nil
	default:
		// Unknown status strings still mean the service answered.
		return HealthDegraded, nil
	}
}

func (s *HTTPStore) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %s: %s", path, resp.Status, strings.TrimSpace(string(snippet)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (s *HTTPStore) setHeaders(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}
