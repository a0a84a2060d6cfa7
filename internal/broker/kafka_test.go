package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lii16com/arkilino/internal/domain"
)

func TestKafkaPublisher_PublishSendsJSONEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event domain.Event
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Type != domain.EventOrderCreated || event.OrderID != "12345678" {
			return errors.New("unexpected event")
		}
		return nil
	})

	p := NewKafkaPublisherWithProducer(producer, "storefront-events", nil)
	event := domain.NewOrderCreated(domain.Order{ID: "12345678", Status: domain.OrderStatusReceived})

	require.NoError(t, p.Publish(context.Background(), event))
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_PublishReturnsProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer, "storefront-events", nil)
	err := p.Publish(context.Background(), domain.NewProductsReplaced(nil))

	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}
