// Package mock provides a scripted intentllm.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/carelink-ai/vigil/pkg/provider/intentllm"
)

// Provider returns scripted responses in order and records every request it
// receives. Safe for concurrent use.
type Provider struct {
	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Responses are returned one per Complete call. When exhausted, the
	// last entry repeats.
	Responses []string

	// Err, when set, is returned by every Complete call instead of a
	// response.
	Err error

	mu       sync.Mutex
	calls    int
	requests []intentllm.Request
}

var _ intentllm.Provider = (*Provider)(nil)

// Name implements intentllm.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Complete implements intentllm.Provider.
func (p *Provider) Complete(ctx context.Context, req intentllm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	p.calls++

	if p.Err != nil {
		return "", p.Err
	}
	if len(p.Responses) == 0 {
		return "", nil
	}
	idx := p.calls - 1
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	return p.Responses[idx], nil
}

// Calls returns how many Complete calls the provider has served.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Requests returns a copy of the recorded requests.
func (p *Provider) Requests() []intentllm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]intentllm.Request(nil), p.requests...)
}
