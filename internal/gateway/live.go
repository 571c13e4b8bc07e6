package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"
)

// Source is the operation set served by both the live and the mock path.
// Implementations must return identical shapes for identical inputs; the
// Gateway depends on that to keep the two paths indistinguishable.
type Source interface {
	Health(ctx context.Context) error
	RegisterDataset(ctx context.Context, name string) (*Dataset, error)
	UploadDataset(ctx context.Context, datasetID, filename string, r io.Reader) error
	ListDatasets(ctx context.Context) ([]Dataset, error)
	TriggerIngest(ctx context.Context, datasetID string) (*Job, error)
	ListJobs(ctx context.Context) ([]Job, error)
	ExecuteQueries(ctx context.Context, datasetID string, queries []NamedQuery) ([]Table, error)
	Catalog(ctx context.Context, datasetID string) (*Catalog, error)
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// LiveSource talks JSON over HTTP to the configured backend.
type LiveSource struct {
	mu         sync.RWMutex
	baseURL    string
	httpClient *http.Client
}

// NewLiveSource creates a live source for the given base address.
func NewLiveSource(baseURL string, timeout time.Duration) *LiveSource {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &LiveSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL repoints the source; subsequent calls use the new address.
func (l *LiveSource) SetBaseURL(baseURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseURL = baseURL
}

// BaseURL returns the currently configured backend address.
func (l *LiveSource) BaseURL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseURL
}

// doJSON sends a JSON-bodied request and decodes a JSON response into
// result. A non-2xx status is an error.
func (l *LiveSource) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.BaseURL()+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend error: %s - %s", resp.Status, string(data))
	}
	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (l *LiveSource) Health(ctx context.Context) error {
	return l.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

type registerRequest struct {
	Name string `json:"name"`
}

func (l *LiveSource) RegisterDataset(ctx context.Context, name string) (*Dataset, error) {
	var out Dataset
	if err := l.doJSON(ctx, http.MethodPost, "/datasets/register", registerRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDataset streams the file as multipart form data; this is the one
// non-JSON request on the surface.
func (l *LiveSource) UploadDataset(ctx context.Context, datasetID, filename string, r io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("dataset_id", datasetID); err != nil {
		return fmt.Errorf("write field: %w", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.BaseURL()+"/datasets/upload", &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend error: %s - %s", resp.Status, string(body))
	}
	return nil
}

type datasetsResponse struct {
	Datasets []Dataset `json:"datasets"`
}

func (l *LiveSource) ListDatasets(ctx context.Context) ([]Dataset, error) {
	var out datasetsResponse
	if err := l.doJSON(ctx, http.MethodGet, "/datasets", nil, &out); err != nil {
		return nil, err
	}
	return out.Datasets, nil
}

func (l *LiveSource) TriggerIngest(ctx context.Context, datasetID string) (*Job, error) {
	var out Job
	if err := l.doJSON(ctx, http.MethodPost, "/datasets/"+datasetID+"/ingest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type jobsResponse struct {
	Jobs []Job `json:"jobs"`
}

func (l *LiveSource) ListJobs(ctx context.Context) ([]Job, error) {
	var out jobsResponse
	if err := l.doJSON(ctx, http.MethodGet, "/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

type executeRequest struct {
	DatasetID string       `json:"dataset_id"`
	Queries   []NamedQuery `json:"queries"`
}

type executeResponse struct {
	Results []Table `json:"results"`
}

func (l *LiveSource) ExecuteQueries(ctx context.Context, datasetID string, queries []NamedQuery) ([]Table, error) {
	var out executeResponse
	req := executeRequest{DatasetID: datasetID, Queries: queries}
	if err := l.doJSON(ctx, http.MethodPost, "/queries/execute", req, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []Table{}
	}
	return out.Results, nil
}

func (l *LiveSource) Catalog(ctx context.Context, datasetID string) (*Catalog, error) {
	var out Catalog
	if err := l.doJSON(ctx, http.MethodGet, "/datasets/"+datasetID+"/catalog", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (l *LiveSource) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := l.doJSON(ctx, http.MethodPost, "/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
