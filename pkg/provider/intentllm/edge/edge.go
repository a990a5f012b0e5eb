// Package edge provides an intentllm.Provider backed by a local llama.cpp
// server's /completion endpoint.
//
// llama.cpp exposes a plain JSON API rather than the OpenAI chat protocol,
// so this backend speaks it directly: prompt in, content out. Greedy
// decoding and prompt caching keep small on-device models fast enough for
// the parsing path.
package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carelink-ai/vigil/pkg/provider/intentllm"
)

// completionRequest is the llama.cpp /completion request body.
type completionRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature float64  `json:"temperature"`
	NPredict    int      `json:"n_predict"`
	Stop        []string `json:"stop"`
	CachePrompt bool     `json:"cache_prompt"`
}

// completionResponse is the subset of the llama.cpp response we consume.
type completionResponse struct {
	Content string `json:"content"`
}

// Provider implements intentllm.Provider against a llama.cpp server.
type Provider struct {
	url    string
	client *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Default 3s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New constructs an edge Provider for the llama.cpp server at baseURL, e.g.
// "http://127.0.0.1:8081".
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("edge: baseURL must not be empty")
	}
	p := &Provider{
		url:    strings.TrimRight(baseURL, "/") + "/completion",
		client: &http.Client{Timeout: 3 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

var _ intentllm.Provider = (*Provider)(nil)

// Name implements intentllm.Provider.
func (p *Provider) Name() string { return "edge" }

// Complete implements intentllm.Provider.
func (p *Provider) Complete(ctx context.Context, req intentllm.Request) (string, error) {
	body, err := json.Marshal(completionRequest{
		Prompt:      req.SystemPrompt + "\n\n" + req.UserPrompt + "\n",
		Temperature: 0.0,
		NPredict:    256,
		Stop:        []string{"```", "\n\n", "</s>"},
		CachePrompt: true,
	})
	if err != nil {
		return "", fmt.Errorf("edge: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("edge: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("edge: completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("edge: completion status %d: %s", resp.StatusCode, snippet)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("edge: decode response: %w", err)
	}
	return out.Content, nil
}
