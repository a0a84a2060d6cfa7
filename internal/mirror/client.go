package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
)

// ErrNoRemote is returned by every call when no sync server is configured.
var ErrNoRemote = errors.New("sync server not configured")

// StatusError is a non-2xx answer from the sync server.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sync server returned %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Reason returns the server's {"error": ...} label, or the raw body when it has none.
func (e *StatusError) Reason() string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err == nil && body.Error != "" {
		return body.Error
	}
	return e.Body
}

type idempotencyKeyCtx struct{}

// WithIdempotencyKey makes pushes made with ctx carry key, so retries of the
// same push are applied once.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

func idempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

// Client talks to the sync server.
type Client struct {
	baseURL     string
	adminPIN    string
	adminHeader string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a sync client. An empty baseURL yields a client whose
// calls all fail with ErrNoRemote.
func NewClient(baseURL, adminPIN string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		adminPIN:    adminPIN,
		adminHeader: "x-admin-pin",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// SetAdminHeader changes the header carrying the admin PIN.
func (c *Client) SetAdminHeader(name string) {
	if name != "" {
		c.adminHeader = name
	}
}

// Configured reports whether a sync server is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	if c.baseURL == "" {
		return ErrNoRemote
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return errors.Wrap(err, "parse url")
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminPIN != "" {
		req.Header.Set(c.adminHeader, c.adminPIN)
	}
	if key := idempotencyKeyFrom(ctx); key != "" && method != http.MethodGet {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Sync request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

// FetchProducts pulls the catalog.
func (c *Client) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, nil, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// PushProducts replaces the remote catalog. Needs the admin PIN.
func (c *Client) PushProducts(ctx context.Context, products []domain.Product) error {
	return c.do(ctx, http.MethodPost, "/products", nil, products, nil)
}

// PushOrder creates an order remotely and returns the id the server kept.
func (c *Client) PushOrder(ctx context.Context, order domain.Order) (string, error) {
	var resp struct {
		OK bool   `json:"ok"`
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", nil, order, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

type chatPush struct {
	UserID string         `json:"userId"`
	Msg    domain.Message `json:"msg"`
	Name   string         `json:"name,omitempty"`
	Phone  string         `json:"phone,omitempty"`
}

// PushChat appends one message to a remote thread.
func (c *Client) PushChat(ctx context.Context, userID string, msg domain.Message, name, phone string) error {
	return c.do(ctx, http.MethodPost, "/chat", nil, chatPush{UserID: userID, Msg: msg, Name: name, Phone: phone}, nil)
}

// FetchOrders pulls all orders, newest first. Needs the admin PIN.
func (c *Client) FetchOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, nil, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// FetchThread pulls one thread. Needs the admin PIN.
func (c *Client) FetchThread(ctx context.Context, userID string) (*domain.Thread, error) {
	var thread domain.Thread
	if err := c.do(ctx, http.MethodGet, "/chat", url.Values{"userId": {userID}}, nil, &thread); err != nil {
		return nil, err
	}
	if thread.Messages == nil {
		thread.Messages = []domain.Message{}
	}
	return &thread, nil
}

// FetchThreads pulls the thread summaries. Needs the admin PIN.
func (c *Client) FetchThreads(ctx context.Context) ([]domain.ThreadSummary, error) {
	var summaries []domain.ThreadSummary
	if err := c.do(ctx, http.MethodGet, "/chat", nil, nil, &summaries); err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []domain.ThreadSummary{}
	}
	return summaries, nil
}

// SetOrderStatus changes an order's progress label. Needs the admin PIN.
func (c *Client) SetOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	body := map[string]domain.OrderStatus{"status": status}
	return c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/status", nil, body, nil)
}
