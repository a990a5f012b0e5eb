package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultTimeout bounds one adapter call end to end.
const defaultTimeout = 5 * time.Second

// HTTPClient talks JSON-over-POST to the downstream action services. The
// zero value is not usable; construct it with [NewHTTPClient].
type HTTPClient struct {
	smartHomeURL string
	sipURL       string
	socialURL    string
	client       *http.Client
}

// HTTPOption is a functional option for HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.client.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.client = hc }
}

// NewHTTPClient builds a client for the three adapter endpoints. An empty
// URL disables that adapter; calls to it fail with a descriptive error.
func NewHTTPClient(smartHomeURL, sipURL, socialURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		smartHomeURL: smartHomeURL,
		sipURL:       sipURL,
		socialURL:    socialURL,
		client:       &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var (
	_ SmartHome = (*HTTPClient)(nil)
	_ SIPCaller = (*HTTPClient)(nil)
	_ Social    = (*HTTPClient)(nil)
)

// Execute implements SmartHome.
func (c *HTTPClient) Execute(ctx context.Context, cmd SmartHomeCommand) (SmartHomeResult, error) {
	var res SmartHomeResult
	if c.smartHomeURL == "" {
		return res, fmt.Errorf("adapters: smart-home adapter not configured")
	}
	err := c.post(ctx, c.smartHomeURL, cmd, &res)
	return res, err
}

// Call implements SIPCaller.
func (c *HTTPClient) Call(ctx context.Context, req CallRequest) (CallResult, error) {
	var res CallResult
	if c.sipURL == "" {
		return res, fmt.Errorf("adapters: sip adapter not configured")
	}
	err := c.post(ctx, c.sipURL, req, &res)
	return res, err
}

// Chat implements Social.
func (c *HTTPClient) Chat(ctx context.Context, req SocialRequest) (SocialResult, error) {
	var res SocialResult
	if c.socialURL == "" {
		return res, fmt.Errorf("adapters: social adapter not configured")
	}
	err := c.post(ctx, c.socialURL, req, &res)
	return res, err
}

func (c *HTTPClient) post(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("adapters: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("adapters: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("adapters: call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("adapters: %s returned status %d: %s", url, resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("adapters: decode response from %s: %w", url, err)
	}
	return nil
}
