package application

import (
	"context"
	"fmt"

	"sectionhub-shopify-layer/internal/domain"

	"github.com/rs/zerolog"
)

// WebhookHandler processes one or more webhook topics
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes verified webhook events to their handlers
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler adds a handler. Handlers are tried in registration order.
func (d *WebhookDispatcher) RegisterHandler(handler WebhookHandler) {
	d.handlers = append(d.handlers, handler)
}

// Dispatch hands the event to the first handler that accepts its topic.
// Unverified events are refused and unknown topics are acknowledged.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) error {
	if !event.Verified {
		return fmt.Errorf("%w: unverified webhook", domain.ErrAuthenticationFailure)
	}

	for _, handler := range d.handlers {
		if !handler.CanHandle(event.Topic) {
			continue
		}
		if err := handler.Handle(ctx, event); err != nil {
			d.logger.Error().
				Err(err).
				Str("topic", event.Topic).
				Str("shop", event.Shop).
				Msg("Webhook handler failed")
			return err
		}
		return nil
	}

	d.logger.Debug().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Msg("No handler registered for webhook topic")
	return nil
}
