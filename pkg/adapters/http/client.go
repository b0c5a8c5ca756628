package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/mnb/internal/logging"
	"github.com/aretw0/mnb/pkg/domain"
	"github.com/aretw0/mnb/pkg/kernel"
)

// ExecutePath is appended to the remote execution server address.
const ExecutePath = "/execute"

// maxResponseSize caps the body read from a remote execution server.
const maxResponseSize = 10 << 20

// ErrEmptyAddress is returned when a Client is built without a server address.
var ErrEmptyAddress = errors.New("remote execution server address is empty")

// Client implements ports.ExecutionHandler against a remote execution server.
// The request is POSTed as JSON to {address}/execute.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithClientLogger configures the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a client for the server at address, e.g. "http://localhost:8080".
func NewClient(address string, opts ...ClientOption) (*Client, error) {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if address == "" {
		return nil, ErrEmptyAddress
	}
	c := &Client{
		endpoint: address + ExecutePath,
		http:     http.DefaultClient,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Execute implements ports.ExecutionHandler.
func (c *Client) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug("Posting execution request", "endpoint", c.endpoint, "size", len(body))
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("remote execution failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read remote response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote execution server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	return kernel.DecodeResponse(data)
}
