package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
)

const webhookTimeout = 10 * time.Second

type orderWebhook struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewOrderWebhook posts order events (new orders and status changes) to url.
// Other event types are ignored.
func NewOrderWebhook(url string, logger *zap.Logger) *orderWebhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderWebhook{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

func (w *orderWebhook) Publish(ctx context.Context, event domain.Event) error {
	if w.url == "" {
		return nil
	}
	if event.Type != domain.EventOrderCreated && event.Type != domain.EventOrderStatusChanged {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		w.logger.Warn("Webhook: failed to marshal order event", zap.Error(err))
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("Webhook: failed to create request", zap.String("url", w.url), zap.Error(err))
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(event.Type))
	req.Header.Set("X-Event-Id", event.ID)

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("Webhook: order notification request failed", zap.String("url", w.url), zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Warn("Webhook: order notification returned non-2xx",
			zap.String("url", w.url), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	w.logger.Info("Webhook: order notification sent",
		zap.String("order_id", event.OrderID), zap.String("type", string(event.Type)))
	return nil
}
