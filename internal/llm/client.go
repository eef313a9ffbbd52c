package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aidev-cli/aidev/internal/cache"
	"github.com/aidev-cli/aidev/internal/perf"
)

const defaultBaseURL = "http://localhost:11434"

// Client talks to an Ollama-compatible server and consults the response
// cache before going over the wire. The cache and tracker are optional.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   *cache.ResponseCache
	perf    *perf.Tracker
	log     *slog.Logger
}

// Options configures a Client.
type Options struct {
	// APIURL is the server base URL. A trailing /api/generate path from
	// older configs is tolerated and stripped.
	APIURL string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Timeout bounds each HTTP request. Zero means 120 seconds.
	Timeout time.Duration
	// Cache, when non-nil, is consulted before and populated after each
	// generation.
	Cache *cache.ResponseCache
	// Perf, when non-nil, records request timings and cache counters.
	Perf   *perf.Tracker
	Logger *slog.Logger
}

// New creates a Client. It never fails: a misconfigured URL surfaces as a
// request error on first use.
func New(opts Options) *Client {
	baseURL := opts.APIURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/api/generate")
	baseURL = strings.TrimSuffix(baseURL, "/api")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: timeout},
		cache:   opts.Cache,
		perf:    opts.Perf,
		log:     logger,
	}
}

// GenerateResponse is the result of one generation, cached or live.
type GenerateResponse struct {
	Text    string
	Model   string
	Cached  bool
	Elapsed time.Duration
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate returns the model's completion for prompt. A cache hit returns
// immediately without any network traffic; a live response is stored back
// into the cache before returning.
func (c *Client) Generate(ctx context.Context, model, prompt string, temperature float64) (GenerateResponse, error) {
	start := time.Now()

	if c.cache != nil {
		if text, ok := c.cache.Get(model, prompt); ok {
			c.perf.Inc("cache.hits")
			c.log.Debug("llm: serving from cache", "model", model)
			return GenerateResponse{Text: text, Model: model, Cached: true, Elapsed: time.Since(start)}, nil
		}
		c.perf.Inc("cache.misses")
	}

	timer := c.perf.Start("llm.generate")
	text, err := c.generate(ctx, model, prompt, temperature)
	timer.Stop()
	if err != nil {
		return GenerateResponse{}, err
	}

	if c.cache != nil {
		c.cache.Store(model, prompt, text, map[string]string{
			"temperature": strconv.FormatFloat(temperature, 'f', -1, 64),
		})
	}
	c.perf.Inc("llm.requests")
	return GenerateResponse{Text: text, Model: model, Elapsed: time.Since(start)}, nil
}

func (c *Client) generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:       model,
		Prompt:      prompt,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var text string
	err = retryWithBackoff(ctx, 3, func() error {
		respBody, err := c.post(ctx, "/api/generate", payload)
		if err != nil {
			return err
		}
		var result generateResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		if result.Response == "" {
			return fmt.Errorf("empty response from model %s", model)
		}
		text = result.Response
		return nil
	})
	return text, err
}

// Stream generates a completion and delivers it incrementally through fn.
// A cache hit is replayed through fn in chunks so callers see a uniform
// streaming interface. The full response is cached once the stream ends.
// fn returning an error aborts the stream; nothing partial is cached.
func (c *Client) Stream(ctx context.Context, model, prompt string, temperature float64, fn func(chunk string) error) (GenerateResponse, error) {
	start := time.Now()

	if c.cache != nil {
		if text, ok := c.cache.Get(model, prompt); ok {
			c.perf.Inc("cache.hits")
			if err := replayChunks(text, fn); err != nil {
				return GenerateResponse{}, err
			}
			return GenerateResponse{Text: text, Model: model, Cached: true, Elapsed: time.Since(start)}, nil
		}
		c.perf.Inc("cache.misses")
	}

	payload, err := json.Marshal(generateRequest{
		Model:       model,
		Prompt:      prompt,
		Stream:      true,
		Temperature: temperature,
	})
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	timer := c.perf.Start("llm.stream")
	defer timer.Stop()

	resp, err := c.client.Do(req)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return GenerateResponse{}, statusError(resp.StatusCode, body)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk generateResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return GenerateResponse{}, fmt.Errorf("parsing stream chunk: %w", err)
		}
		if chunk.Response != "" {
			full.WriteString(chunk.Response)
			if err := fn(chunk.Response); err != nil {
				return GenerateResponse{}, err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return GenerateResponse{}, fmt.Errorf("reading stream: %w", err)
	}

	text := full.String()
	if text == "" {
		return GenerateResponse{}, fmt.Errorf("empty response from model %s", model)
	}
	if c.cache != nil {
		c.cache.Store(model, prompt, text, map[string]string{
			"temperature": strconv.FormatFloat(temperature, 'f', -1, 64),
		})
	}
	c.perf.Inc("llm.requests")
	return GenerateResponse{Text: text, Model: model, Elapsed: time.Since(start)}, nil
}

// streamReplayChunks is how many pieces a cached response is split into
// when replayed through a streaming callback.
const streamReplayChunks = 10

func replayChunks(text string, fn func(chunk string) error) error {
	size := (len(text) + streamReplayChunks - 1) / streamReplayChunks
	if size == 0 {
		size = 1
	}
	for i := 0; i < len(text); i += size {
		end := i + size
		if end > len(text) {
			end = len(text)
		}
		if err := fn(text[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// ModelInfo describes one model the server has available.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListModels returns the models available on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	body, err := c.get(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}
	var result struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return result.Models, nil
}

// Version reports the server version, doubling as a reachability check.
func (c *Client) Version(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/api/version")
	if err != nil {
		return "", err
	}
	var result struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	return result.Version, nil
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

func statusError(code int, body []byte) error {
	switch {
	case code == 429:
		return &rateLimitError{}
	case code == 401 || code == 403:
		return &authError{message: string(body)}
	case code >= 500:
		return &serverError{statusCode: code, body: string(body)}
	default:
		return fmt.Errorf("API error (status %d): %s", code, string(body))
	}
}
