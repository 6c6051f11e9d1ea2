// Package ollama is a thin client for the Ollama HTTP API: health polling,
// model listing, streaming pulls, and one-shot or streaming text generation.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:11434"

	// statusTimeout keeps health polls fast; a hung server counts as down.
	statusTimeout = 2 * time.Second
)

// Model describes an installed model as reported by /api/tags.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// GenerateRequest is one text completion call.
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	Temperature float64
}

// PullProgress is one chunk of streamed download progress.
type PullProgress struct {
	Status    string `json:"status"`
	Completed int64  `json:"completed,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	// mu guards the cached connectivity flag and model list; the client is
	// the single writer of both.
	mu        sync.Mutex
	connected bool
	models    []Model
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			// Generation calls can legitimately take minutes on local models.
			Timeout: 5 * time.Minute,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CheckStatus reports whether the backend is reachable. It is cheap enough
// for periodic polling; on a down-to-up transition the cached model list is
// refreshed opportunistically from the same response.
func (c *Client) CheckStatus(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	models, err := c.fetchModels(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	wasConnected := c.connected
	c.connected = err == nil

	if err != nil {
		return false
	}

	if !wasConnected {
		c.logger.Info("Generation server is reachable", "models", len(models))
	}

	c.models = models

	return true
}

// Connected returns the last known connectivity state.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// CachedModels returns the model list from the last successful poll.
func (c *Client) CachedModels() []Model {
	c.mu.Lock()
	defer c.mu.Unlock()

	models := make([]Model, len(c.models))
	copy(models, c.models)

	return models
}

// ListModels fetches the installed models from the backend.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	models, err := c.fetchModels(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.connected = true
	c.models = models
	c.mu.Unlock()

	return models, nil
}

func (c *Client) fetchModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerNotRunning, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ServerError{Code: resp.StatusCode}
	}

	var payload struct {
		Models []Model `json:"models"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return payload.Models, nil
}

type generateBody struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate issues one non-streaming completion call and returns the text.
func (c *Client) Generate(ctx context.Context, genReq GenerateRequest) (string, error) {
	resp, err := c.postGenerate(ctx, genReq, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chunk generateChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return "", &DecodeError{Err: err}
	}

	if !chunk.Done {
		return "", fmt.Errorf("%w: non-streaming response not marked done", ErrInvalidResponse)
	}

	return chunk.Response, nil
}

// GenerateStream issues a streaming completion call, invoking onChunk for
// every piece of text, and returns the concatenated result once the backend
// signals completion.
func (c *Client) GenerateStream(ctx context.Context, genReq GenerateRequest, onChunk func(string)) (string, error) {
	resp, err := c.postGenerate(ctx, genReq, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", &DecodeError{Err: err}
		}

		if chunk.Response != "" {
			full.WriteString(chunk.Response)

			if onChunk != nil {
				onChunk(chunk.Response)
			}
		}

		if chunk.Done {
			return full.String(), nil
		}
	}

	if err := scanner.Err(); err != nil {
		return "", &NetworkError{Err: err}
	}

	return "", fmt.Errorf("%w: stream ended without done marker", ErrInvalidResponse)
}

func (c *Client) postGenerate(ctx context.Context, genReq GenerateRequest, stream bool) (*http.Response, error) {
	body, err := json.Marshal(generateBody{
		Model:       genReq.Model,
		Prompt:      genReq.Prompt,
		System:      genReq.System,
		Temperature: genReq.Temperature,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerNotRunning, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		resp.Body.Close()

		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, genReq.Model)
	default:
		resp.Body.Close()

		return nil, &ServerError{Code: resp.StatusCode}
	}
}

// Pull downloads a model, streaming progress to onProgress.
func (c *Client) Pull(ctx context.Context, name string, onProgress func(PullProgress)) error {
	body, err := json.Marshal(map[string]any{"name": name, "stream": true})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServerNotRunning, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ServerError{Code: resp.StatusCode}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var progress PullProgress
		if err := json.Unmarshal(line, &progress); err != nil {
			return &DecodeError{Err: err}
		}

		if onProgress != nil {
			onProgress(progress)
		}
	}

	if err := scanner.Err(); err != nil {
		return &NetworkError{Err: err}
	}

	return nil
}
