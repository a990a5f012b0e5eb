// Package cloud provides an intentllm.Provider backed by an
// OpenAI-compatible chat-completions endpoint such as vLLM or OpenAI.
package cloud

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/carelink-ai/vigil/pkg/provider/intentllm"
)

// Intent parsing wants near-deterministic short outputs.
const (
	temperature = 0.2
	maxTokens   = 256
)

// Provider implements intentllm.Provider using the OpenAI chat API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Point it at a vLLM
// server's /v1 prefix for on-premise deployments.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a cloud Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("cloud: model must not be empty")
	}

	cfg := &config{timeout: 1500 * time.Millisecond}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

var _ intentllm.Provider = (*Provider)(nil)

// Name implements intentllm.Provider.
func (p *Provider) Name() string { return "cloud" }

// Complete implements intentllm.Provider.
func (p *Provider) Complete(ctx context.Context, req intentllm.Request) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(req.SystemPrompt),
			oai.UserMessage(req.UserPrompt),
		},
		Temperature:         oai.Float(temperature),
		MaxCompletionTokens: oai.Int(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("cloud: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("cloud: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
