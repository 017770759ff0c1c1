package domain

import "time"

// Webhook topics handled by the dispatcher
const (
	TopicAppUninstalled         = "app/uninstalled"
	TopicAppSubscriptionsUpdate = "app_subscriptions/update"
)

// WebhookEvent represents a verified platform webhook delivery
type WebhookEvent struct {
	Topic      string    `json:"topic"`
	Shop       string    `json:"shop"`
	Payload    []byte    `json:"payload"`
	Verified   bool      `json:"verified"`
	ReceivedAt time.Time `json:"received_at"`
}
