package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/lii16com/arkilino/internal/domain"
)

// Publisher forwards committed mutations to something outside the process.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event domain.Event) error

func (f PublisherFunc) Publish(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

type fanoutPublisher struct {
	publishers []Publisher
	logger     *zap.Logger
}

// NewFanoutPublisher sends every event to each publisher in turn. A failing
// publisher is logged and does not stop the others; the first error is returned.
func NewFanoutPublisher(logger *zap.Logger, publishers ...Publisher) Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	var active []Publisher
	for _, p := range publishers {
		if p != nil {
			active = append(active, p)
		}
	}
	return &fanoutPublisher{publishers: active, logger: logger}
}

func (f *fanoutPublisher) Publish(ctx context.Context, event domain.Event) error {
	var first error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.Warn("Failed to publish event",
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// NopPublisher drops every event.
var NopPublisher Publisher = PublisherFunc(func(context.Context, domain.Event) error { return nil })
