package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"wallet-swap/pkg/quote"
	"wallet-swap/pkg/types"
)

// ServiceStatus is the order service's view of an order
type ServiceStatus string

const (
	ServiceOpen              ServiceStatus = "open"
	ServiceFilled            ServiceStatus = "filled"
	ServiceExpired           ServiceStatus = "expired"
	ServiceCancelled         ServiceStatus = "cancelled"
	ServiceError             ServiceStatus = "error"
	ServiceInsufficientFunds ServiceStatus = "insufficient-funds"
	ServiceUnverified        ServiceStatus = "unverified"
)

// State is one entry of GET /orders
type State struct {
	OrderHash string        `json:"orderId"`
	Status    ServiceStatus `json:"orderStatus"`
	TxHash    string        `json:"txHash,omitempty"`
}

type ordersResponse struct {
	Orders []State `json:"orders"`
}

// Client talks to the order intake endpoint
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates an order service client
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = quote.DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "order-service",
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

// Submit posts a signed order. Any non-2xx response is a failure.
func (c *Client) Submit(ctx context.Context, req types.OrderRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/order", payload)
	return err
}

// Orders looks up the given order hashes
func (c *Client) Orders(ctx context.Context, hashes []string) ([]State, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	query := url.Values{"orderIds": {strings.Join(hashes, ",")}}
	body, err := c.do(ctx, http.MethodGet, "/orders?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode orders response: %w", err)
	}
	return resp.Orders, nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		httpReq.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode >= 500 {
			return nil, quote.DecodeAPIError(resp.StatusCode, respBody)
		}
		return &response{status: resp.StatusCode, body: respBody}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("order service unavailable: %w", err)
		}
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	raw := result.(*response)
	if raw.status < 200 || raw.status >= 300 {
		return nil, quote.DecodeAPIError(raw.status, raw.body)
	}
	return raw.body, nil
}
