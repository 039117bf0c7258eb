// Package backend is the POS terminal's client for the chain's central
// HTTP API (orders, payments, menu).
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kiwari-pos/terminal/internal/catalog"
	"github.com/kiwari-pos/terminal/internal/enum"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Breaker BreakerSettings
}

// Client talks to the backend API. Each endpoint group has its own
// circuit breaker so a failing payment provider does not block menu reads.
type Client struct {
	http     *resty.Client
	orders   *gobreaker.CircuitBreaker
	payments *gobreaker.CircuitBreaker
	menu     *gobreaker.CircuitBreaker
}

// New creates a Client. Retries are left to the checkout orchestrator.
func New(opts Options) *Client {
	hc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		hc.SetAuthToken(opts.APIKey)
	}

	return &Client{
		http:     hc,
		orders:   newBreaker("orders", opts.Breaker),
		payments: newBreaker("payments", opts.Breaker),
		menu:     newBreaker("menu", opts.Breaker),
	}
}

// call runs req through cb. Transport errors and 5xx responses count as
// breaker failures; 4xx responses are returned as-is for the caller to map.
func call(cb *gobreaker.CircuitBreaker, do func() (*resty.Response, error)) (*resty.Response, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		resp, err := do()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, fmt.Errorf("server error: status %d", resp.StatusCode())
		}
		return resp, nil
	})
	resp, _ := out.(*resty.Response)
	return resp, err
}

// errorMessage extracts the backend's error text, falling back to the raw body.
func errorMessage(resp *resty.Response) string {
	if resp == nil {
		return ""
	}
	if e, ok := resp.Error().(*apiError); ok && e.text() != "" {
		return e.text()
	}
	if body := strings.TrimSpace(resp.String()); body != "" {
		return body
	}
	return http.StatusText(resp.StatusCode())
}

// CreateOrder submits a new order. Any failure is an *OrderCreationError.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	resp, err := call(c.orders, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&Order{}).
			SetError(&apiError{}).
			Post("/api/orders")
	})

	switch {
	case resp != nil && resp.IsError():
		return nil, &OrderCreationError{StatusCode: resp.StatusCode(), Message: errorMessage(resp), Err: err}
	case err != nil:
		return nil, &OrderCreationError{Message: describeBreakerError("orders", err), Err: err}
	}

	order, ok := resp.Result().(*Order)
	if !ok || order.ID == 0 {
		// The backend accepted the request, so an order may exist that this
		// terminal cannot reference. Keep the raw body for reconciliation.
		log.WithFields(log.Fields{
			"status":    resp.StatusCode(),
			"branch_id": req.BranchID,
			"body":      resp.String(),
		}).Error("order response without id; order may exist on backend")
		return nil, &OrderCreationError{StatusCode: resp.StatusCode(), Message: "response did not contain an order id"}
	}

	log.WithFields(log.Fields{
		"order_id":  order.ID,
		"branch_id": req.BranchID,
		"items":     len(req.Items),
	}).Info("order created")
	return order, nil
}

// ProcessPayment submits a payment for an existing order. A 2xx response
// reporting status FAILED is also an error.
func (c *Client) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*Payment, error) {
	resp, err := call(c.payments, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&Payment{}).
			SetError(&apiError{}).
			Post("/api/payments")
	})

	switch {
	case resp != nil && resp.IsError():
		return nil, &PaymentProcessingError{OrderID: req.OrderID, StatusCode: resp.StatusCode(), Message: errorMessage(resp), Err: err}
	case err != nil:
		return nil, &PaymentProcessingError{OrderID: req.OrderID, Message: describeBreakerError("payments", err), Err: err}
	}

	payment, ok := resp.Result().(*Payment)
	if !ok || payment.ID == 0 {
		return nil, &PaymentProcessingError{OrderID: req.OrderID, StatusCode: resp.StatusCode(), Message: "response did not contain a payment id"}
	}
	if payment.Status == enum.PaymentStatusFailed {
		return nil, &PaymentProcessingError{OrderID: req.OrderID, StatusCode: resp.StatusCode(), Message: "payment declined"}
	}

	log.WithFields(log.Fields{
		"order_id":   req.OrderID,
		"payment_id": payment.ID,
		"status":     payment.Status,
	}).Info("payment processed")
	return payment, nil
}

// ListMenuItems fetches the menu of a branch; branchID 0 fetches the
// chain-wide menu.
func (c *Client) ListMenuItems(ctx context.Context, branchID int64) ([]catalog.MenuItem, error) {
	var items []catalog.MenuItem
	resp, err := call(c.menu, func() (*resty.Response, error) {
		r := c.http.R().
			SetContext(ctx).
			SetResult(&items).
			SetError(&apiError{})
		if branchID != 0 {
			r.SetQueryParam("branchId", strconv.FormatInt(branchID, 10))
		}
		return r.Get("/api/menu-items")
	})

	switch {
	case resp != nil && resp.IsError():
		return nil, fmt.Errorf("%w: status %d: %s", ErrMenuUnavailable, resp.StatusCode(), errorMessage(resp))
	case err != nil:
		return nil, fmt.Errorf("%w: %s", ErrMenuUnavailable, describeBreakerError("menu", err))
	}
	return items, nil
}
