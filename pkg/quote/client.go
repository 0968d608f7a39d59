package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
)

const (
	DefaultBaseURL   = "https://trading-api.gateway.uniswap.org/v1"
	DefaultRateLimit = 10
)

// Client talks to the Trading API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests per second; zero or less disables limiting
func WithRateLimit(rps int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = ratelimit.NewUnlimited()
			return
		}
		c.limiter = ratelimit.New(rps)
	}
}

// NewClient creates a Trading API client
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    ratelimit.New(DefaultRateLimit),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "trading-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote fetches a quote
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	var resp QuoteResponse
	if err := c.post(ctx, "/quote", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckApproval returns the approval transaction needed before trading amount of token
func (c *Client) CheckApproval(ctx context.Context, req ApprovalRequest) (*ApprovalResponse, error) {
	var resp ApprovalResponse
	if err := c.post(ctx, "/check_approval", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Swap builds the classic swap transaction for a quote
func (c *Client) Swap(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	var resp SwapResponse
	if err := c.post(ctx, "/swap", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type rawResponse struct {
	status int
	body   []byte
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	c.limiter.Take()

	// Only transport errors and 5xx responses count against the breaker
	result, err := c.breaker.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode >= 500 {
			return nil, DecodeAPIError(resp.StatusCode, body)
		}
		return &rawResponse{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("trading api unavailable: %w", err)
		}
		return fmt.Errorf("%s request failed: %w", path, err)
	}

	raw := result.(*rawResponse)
	if raw.status < 200 || raw.status >= 300 {
		return DecodeAPIError(raw.status, raw.body)
	}
	if out == nil || len(raw.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw.body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// DecodeAPIError builds an APIError from an error response body
func DecodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = http.StatusText(status)
		if apiErr.Detail == "" {
			apiErr.Detail = strings.TrimSpace(string(body))
		}
	}
	apiErr.StatusCode = status
	return apiErr
}
