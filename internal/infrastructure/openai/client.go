package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mactrac-proxy/internal/config"
)

// maxErrorText bounds the upstream body excerpt carried by StatusError.
const maxErrorText = 2000

// ErrNetwork wraps transport failures reaching the upstream API.
var ErrNetwork = errors.New("upstream network error")

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Status int
	Text   string // truncated response body
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Response is a successful upstream reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Client posts chat-completion payloads to a single upstream endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client whose dial phase is bounded by cfg.UpstreamConnectTimeout
// and whole exchange by cfg.UpstreamTimeout.
func NewClient(cfg *config.Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   cfg.UpstreamConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = cfg.UpstreamConnectTimeout

	return &Client{
		url:        cfg.OpenAIURL,
		apiKey:     cfg.OpenAIAPIKey,
		httpClient: &http.Client{Timeout: cfg.UpstreamTimeout, Transport: transport},
	}
}

// Complete sends payload once. It never retries.
func (c *Client) Complete(ctx context.Context, payload []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, Text: truncate(string(body), maxErrorText)}
	}
	return &Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
