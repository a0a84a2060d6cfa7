package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lii16com/arkilino/internal/domain"
)

func TestOrderWebhook_PostsOrderEventsOnly(t *testing.T) {
	var mu sync.Mutex
	var got []domain.Event
	var headers []http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e domain.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		mu.Lock()
		got = append(got, e)
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewOrderWebhook(srv.URL, nil)
	ctx := context.Background()
	created := domain.NewOrderCreated(domain.Order{ID: "57600123", Status: domain.OrderStatusReceived})

	require.NoError(t, hook.Publish(ctx, created))
	require.NoError(t, hook.Publish(ctx, domain.NewOrderStatusChanged("57600123", domain.OrderStatusDelivered)))
	require.NoError(t, hook.Publish(ctx, domain.NewChatMessage("u1", domain.Message{Text: "hi"}, "", "")))
	require.NoError(t, hook.Publish(ctx, domain.NewProductsReplaced(nil)))

	require.Len(t, got, 2)
	assert.Equal(t, domain.EventOrderCreated, got[0].Type)
	assert.Equal(t, "57600123", got[0].OrderID)
	assert.Equal(t, string(domain.EventOrderCreated), headers[0].Get("X-Event-Type"))
	assert.Equal(t, created.ID, headers[0].Get("X-Event-Id"))
	assert.Equal(t, domain.EventOrderStatusChanged, got[1].Type)
}

func TestOrderWebhook_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewOrderWebhook(srv.URL, nil).Publish(context.Background(), domain.NewOrderCreated(domain.Order{ID: "1"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	assert.NoError(t, NewOrderWebhook("", nil).Publish(context.Background(), domain.NewOrderCreated(domain.Order{ID: "1"})))
}

func TestFanoutPublisher_ContinuesPastFailures(t *testing.T) {
	first := errors.New("broker down")
	var calls []string
	record := func(name string, err error) Publisher {
		return PublisherFunc(func(context.Context, domain.Event) error {
			calls = append(calls, name)
			return err
		})
	}

	fan := NewFanoutPublisher(nil, record("kafka", first), nil, record("webhook", errors.New("later")), record("ok", nil))
	err := fan.Publish(context.Background(), domain.NewProductsReplaced(nil))

	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"kafka", "webhook", "ok"}, calls)
	assert.NoError(t, NewFanoutPublisher(nil).Publish(context.Background(), domain.NewProductsReplaced(nil)))
	assert.NoError(t, NopPublisher.Publish(context.Background(), domain.Event{}))
}
