package ordermanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/energyforreal/attral-orders/pkg/errors"
)

// Client calls the external order-manager endpoint, the primary write path
// for captured payments. Its internal logic is owned by the storefront
// backend; this client only depends on the HTTP contract.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an order-manager HTTP client with a bounded timeout
func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        strings.TrimSuffix(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// CreateOrderRequest is the canonical order payload sent to the order manager
type CreateOrderRequest struct {
	RazorpayOrderID   string                   `json:"razorpayOrderId"`
	RazorpayPaymentID string                   `json:"razorpayPaymentId"`
	Signature         string                   `json:"signature,omitempty"`
	Customer          map[string]interface{}   `json:"customer"`
	Product           map[string]interface{}   `json:"product"`
	Pricing           map[string]interface{}   `json:"pricing"`
	Shipping          map[string]interface{}   `json:"shipping"`
	Payment           map[string]interface{}   `json:"payment"`
	Coupons           []map[string]interface{} `json:"coupons"`
	Source            string                   `json:"source"`
}

// CreateOrderResponse is the order manager's reply
type CreateOrderResponse struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"orderNumber"`
	Error       string `json:"error,omitempty"`
}

// CreateOrder posts the canonical order to the order manager. A transport
// error, timeout, non-2xx status, or success=false reply is returned as
// *errors.ErrUpstream so the caller can fall back to a direct write.
func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	if c.url == "" {
		return nil, &errors.ErrUpstream{Endpoint: "order-manager", Message: "not configured"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Order manager request failed", zap.Error(err), zap.String("razorpay_order_id", req.RazorpayOrderID))
		return nil, &errors.ErrUpstream{Endpoint: "order-manager", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.ErrUpstream{Endpoint: "order-manager", Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.ErrUpstream{Endpoint: "order-manager", Status: resp.StatusCode, Message: string(respBody)}
	}

	var out CreateOrderResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &errors.ErrUpstream{Endpoint: "order-manager", Status: resp.StatusCode, Message: "invalid response: " + err.Error()}
	}
	if !out.Success {
		return nil, &errors.ErrUpstream{Endpoint: "order-manager", Status: resp.StatusCode, Message: out.Error}
	}

	return &out, nil
}
