package shopify

import (
	"context"

	"sectionhub-shopify-layer/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// WebhookRegistrar subscribes a shop to the topics the core consumes
type WebhookRegistrar struct {
	client  *Client
	address string
}

// NewWebhookRegistrar creates a registrar delivering to address
func NewWebhookRegistrar(client *Client, address string) *WebhookRegistrar {
	return &WebhookRegistrar{client: client, address: address}
}

var _ ports.WebhookRegistrar = (*WebhookRegistrar)(nil)

// Register creates the missing subscriptions. Topics already pointing at our
// address are skipped so reinstalls do not fail.
func (r *WebhookRegistrar) Register(ctx context.Context, shop, accessToken string, topics []string) error {
	client, err := r.client.shopClient(shop, accessToken, false)
	if err != nil {
		return err
	}

	existing, err := client.Webhook.List(ctx, nil)
	if err != nil {
		return classify("list webhooks", err)
	}
	registered := make(map[string]bool, len(existing))
	for _, webhook := range existing {
		if webhook.Address == r.address {
			registered[webhook.Topic] = true
		}
	}

	for _, topic := range topics {
		if registered[topic] {
			continue
		}
		_, err := client.Webhook.Create(ctx, goshopify.Webhook{
			Topic:   topic,
			Address: r.address,
			Format:  "json",
		})
		if err != nil {
			return classify("create webhook "+topic, err)
		}
		r.client.logger.Info().
			Str("shop", shop).
			Str("topic", topic).
			Msg("Webhook subscription created")
	}
	return nil
}
