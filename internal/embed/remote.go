package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	cqerrors "github.com/cqlabs/cqs/internal/errors"
)

// Default values for RemoteConfig, tuned for a local Ollama-compatible
// embedding endpoint rather than a hosted API over a slow network.
const (
	DefaultRemoteHost    = "http://localhost:11434"
	DefaultRemoteModel   = "nomic-embed-text"
	DefaultRemoteTimeout = 30 * time.Second

	// queryPrefix and documentPrefix are prepended to text before sending it
	// to the model, matching the asymmetric query/document convention used
	// by nomic-embed-text and similar models.
	queryPrefix    = "search_query: "
	documentPrefix = "search_document: "
)

// RemoteConfig configures RemoteEmbedder.
type RemoteConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
}

// DefaultRemoteConfig returns sensible defaults for a local embedding
// endpoint.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Host:    DefaultRemoteHost,
		Model:   DefaultRemoteModel,
		Timeout: DefaultRemoteTimeout,
	}
}

// RemoteEmbedder calls out to an external embedding model runtime over
// HTTP. It is the narrow-interface implementation the core is meant to
// depend on: the model itself, its download/lifecycle management, and its
// hardware acceleration are all somebody else's problem.
type RemoteEmbedder struct {
	client  *http.Client
	host    string
	model   string
	breaker *cqerrors.CircuitBreaker
	retry   cqerrors.RetryConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*RemoteEmbedder)(nil)

// NewRemoteEmbedder creates a remote embedder talking to cfg.Host.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultRemoteHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}

	return &RemoteEmbedder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        8,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     10 * time.Second,
			},
		},
		host:  strings.TrimRight(cfg.Host, "/"),
		model: cfg.Model,
		breaker: cqerrors.NewCircuitBreaker("embed-remote",
			cqerrors.WithMaxFailures(5),
			cqerrors.WithResetTimeout(30*time.Second)),
		retry: cqerrors.DefaultRetryConfig(),
	}
}

type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates an embedding for a single query string.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple document texts.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = documentPrefix + t
	}
	return e.embed(ctx, prefixed)
}

func (e *RemoteEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	var vecs [][]float32
	err := e.breaker.Execute(func() error {
		return cqerrors.Retry(ctx, e.retry, func() error {
			v, err := e.doRequest(ctx, texts)
			if err != nil {
				return err
			}
			vecs = v
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("remote embed: %w", err)
	}

	for i := range vecs {
		vecs[i] = normalizeVector(vecs[i])
	}
	return vecs, nil
}

func (e *RemoteEmbedder) doRequest(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Embeddings))
	}
	return out.Embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *RemoteEmbedder) Dimensions() int {
	return Dimensions
}

// ModelName returns the configured model identifier.
func (e *RemoteEmbedder) ModelName() string {
	return e.model
}

// Close releases the underlying HTTP client's idle connections.
func (e *RemoteEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
