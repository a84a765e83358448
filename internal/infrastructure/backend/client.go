package backend

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

	appcheckout "github.com/Zhima-Mochi/minishop-checkout/internal/application/checkout"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	pathCreatePaymentIntent = "/create-payment-intent"
	pathCreateOrder         = "/create-order"
	maxErrorBody            = 512

	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

// Client talks to the storefront order backend over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

var _ appcheckout.OrderBackend = (*Client)(nil)

type options struct {
	failures      uint32
	cooldown      time.Duration
	onStateChange func(from, to gobreaker.State)
}

type Option func(*options)

// WithBreaker opens the circuit after failures consecutive failed calls. While open,
// calls fail at once with ErrBackendUnavailable; one trial call is let through after cooldown.
func WithBreaker(failures uint32, cooldown time.Duration) Option {
	return func(o *options) {
		o.failures = failures
		o.cooldown = cooldown
	}
}

// OnBreakerStateChange registers fn to observe circuit transitions.
func OnBreakerStateChange(fn func(from, to gobreaker.State)) Option {
	return func(o *options) { o.onStateChange = fn }
}

// New builds a client for baseURL. The timeout bounds each call; the orchestrator
// enforces none of its own.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	o := options{failures: defaultBreakerFailures, cooldown: defaultBreakerCooldown}
	for _, opt := range opts {
		opt(&o)
	}

	settings := gobreaker.Settings{
		Name:        "order-backend",
		MaxRequests: 1,
		Timeout:     o.cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= o.failures
		},
		// an abandoned checkout says nothing about the backend
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if o.onStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) { o.onStateChange(from, to) }
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

type intentMetadata struct {
	ProductName string `json:"productName,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	Method      string `json:"method"`
	SessionID   string `json:"sessionId"`
}

type createPaymentIntentRequest struct {
	Amount   int64          `json:"amount"`
	Currency string         `json:"currency"`
	Metadata intentMetadata `json:"metadata"`
}

type createPaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req appcheckout.IntentRequest) (string, error) {
	body := createPaymentIntentRequest{
		Amount:   req.Amount.MinorUnits,
		Currency: string(req.Amount.Currency),
		Metadata: intentMetadata{
			Method:    string(domain.KindCard),
			SessionID: req.SessionID,
		},
	}
	if req.Product != nil {
		body.Metadata.ProductName = req.Product.Name
		body.Metadata.ProductID = req.Product.ID
	}

	var resp createPaymentIntentResponse
	if err := c.postJSON(ctx, pathCreatePaymentIntent, body, &resp); err != nil {
		return "", err
	}
	if resp.ClientSecret == "" {
		return "", fmt.Errorf("%w: %s returned no client secret", appcheckout.ErrBackendUnavailable, pathCreatePaymentIntent)
	}
	return resp.ClientSecret, nil
}

type createOrderRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	UPIID       string `json:"upiId,omitempty"`
	ProductName string `json:"productName,omitempty"`
	ProductID   string `json:"productId,omitempty"`
	SessionID   string `json:"sessionId"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
}

func (c *Client) CreateOrder(ctx context.Context, req appcheckout.OrderRequest) (string, error) {
	body := createOrderRequest{
		Amount:    req.Amount.MinorUnits,
		Currency:  string(req.Amount.Currency),
		Method:    string(req.Method),
		UPIID:     req.UPIPayerID,
		SessionID: req.SessionID,
	}
	if req.Product != nil {
		body.ProductName = req.Product.Name
		body.ProductID = req.Product.ID
	}

	var resp createOrderResponse
	if err := c.postJSON(ctx, pathCreateOrder, body, &resp); err != nil {
		return "", err
	}
	return resp.OrderID, nil
}

// postJSON sends body through the circuit breaker and decodes a 2xx reply into out.
// Any other status, transport failure or open circuit is reported as ErrBackendUnavailable.
// An empty or non-JSON 2xx body is accepted.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("backend: encode %s: %w", path, err)
	}
	_, err = c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.do(ctx, path, payload, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %w", appcheckout.ErrBackendUnavailable, path, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("backend: build %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", appcheckout.ErrBackendUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%w: %s: status %d: %s", appcheckout.ErrBackendUnavailable, path, resp.StatusCode, text)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", appcheckout.ErrBackendUnavailable, path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil && path == pathCreatePaymentIntent {
		return fmt.Errorf("%w: %s: decode: %w", appcheckout.ErrBackendUnavailable, path, err)
	}
	return nil
}
