package api

import (
	"io"
	"net/http"
	"time"

	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/metrics"
)

// webhook verifies the body signature before anything is parsed
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body", Code: "bad_request"})
		return
	}

	if err := h.svc.Verifier.Verify(payload, r.Header.Get("X-Shopify-Hmac-Sha256")); err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("webhook").Inc()
		h.logger.Warn().
			Err(err).
			Str("event", "security").
			Str("topic", r.Header.Get("X-Shopify-Topic")).
			Msg("Webhook signature verification failed")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature", Code: "authentication_failed"})
		return
	}

	topic := r.Header.Get("X-Shopify-Topic")
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-Shopify-Topic header", Code: "bad_request"})
		return
	}

	event := &domain.WebhookEvent{
		Topic:      topic,
		Shop:       r.Header.Get("X-Shopify-Shop-Domain"),
		Payload:    payload,
		Verified:   true,
		ReceivedAt: time.Now(),
	}
	if err := h.svc.Webhooks.Dispatch(r.Context(), event); err != nil {
		// a 5xx makes the platform redeliver
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to process webhook", Code: "internal"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
