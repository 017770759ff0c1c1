package webhook_handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
)

// SubscriptionReconciler applies platform subscription states to the ledger
type SubscriptionReconciler interface {
	ApplySubscriptionStatus(ctx context.Context, externalID string, status ports.PlatformChargeStatus) error
}

// SubscriptionUpdateHandler handles app_subscriptions/update webhook events
type SubscriptionUpdateHandler struct {
	logger     zerolog.Logger
	reconciler SubscriptionReconciler
}

// NewSubscriptionUpdateHandler creates a new subscription update handler
func NewSubscriptionUpdateHandler(logger zerolog.Logger, reconciler SubscriptionReconciler) *SubscriptionUpdateHandler {
	return &SubscriptionUpdateHandler{logger: logger, reconciler: reconciler}
}

type subscriptionPayload struct {
	AppSubscription struct {
		AdminGraphqlAPIID string `json:"admin_graphql_api_id"`
		Name              string `json:"name"`
		Status            string `json:"status"`
	} `json:"app_subscription"`
}

// CanHandle returns true if this handler can process the given topic
func (h *SubscriptionUpdateHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppSubscriptionsUpdate
}

// Handle reconciles the reported subscription status. Gaps are already in the
// ledger, so they are acknowledged rather than redelivered.
func (h *SubscriptionUpdateHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload subscriptionPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse subscription webhook payload: %w", err)
	}

	gid := payload.AppSubscription.AdminGraphqlAPIID
	if gid == "" {
		return fmt.Errorf("subscription webhook without admin_graphql_api_id")
	}
	externalID := gid[strings.LastIndex(gid, "/")+1:]
	status := ports.PlatformChargeStatus(strings.ToUpper(payload.AppSubscription.Status))

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("externalId", externalID).
		Str("status", string(status)).
		Msg("Processing subscription update")

	err := h.reconciler.ApplySubscriptionStatus(ctx, externalID, status)
	if errors.Is(err, domain.ErrReconciliationGap) {
		return nil
	}
	return err
}
