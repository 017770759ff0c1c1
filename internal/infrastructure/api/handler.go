package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"sectionhub-shopify-layer/internal/application"
	"sectionhub-shopify-layer/internal/domain"
	"sectionhub-shopify-layer/internal/infrastructure/security"
	shopifyinfra "sectionhub-shopify-layer/internal/infrastructure/shopify"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// InstallFlow is the OAuth install handshake
type InstallFlow interface {
	BeginInstall(ctx context.Context, rawShop string, state string) (string, error)
	CompleteInstall(ctx context.Context, in application.CallbackInput) (*domain.Shop, error)
}

// BillingFlow creates charges and reports merchant billing
type BillingFlow interface {
	PurchaseSection(ctx context.Context, shopDomain string, sectionID string) (string, error)
	SubscribePlan(ctx context.Context, shopDomain string, planID string) (string, error)
	ListPlans(ctx context.Context) ([]*domain.Plan, error)
	Summary(ctx context.Context, shopDomain string) (*application.BillingSummary, error)
}

// ChargeResolver settles a charge the merchant just returned from checkout for
type ChargeResolver interface {
	ConfirmCharge(ctx context.Context, externalID string) error
}

// SectionInstaller manages sections in merchants' themes
type SectionInstaller interface {
	Install(ctx context.Context, shopDomain string, sectionID string) (*domain.Installation, error)
	Uninstall(ctx context.Context, shopDomain string, sectionID string) error
	ListInstalled(ctx context.Context, shopDomain string) ([]*domain.Section, error)
}

// WebhookDispatcher routes verified webhook events
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, event *domain.WebhookEvent) error
}

// Services are the application entry points the HTTP surface calls
type Services struct {
	OAuth      InstallFlow
	State      *security.StateManager
	Billing    BillingFlow
	Reconciler ChargeResolver
	Sections   SectionInstaller
	Webhooks   WebhookDispatcher
	Verifier   *shopifyinfra.WebhookVerifier
}

// Handler serves the merchant-facing routes
type Handler struct {
	svc    Services
	appURL string
	logger zerolog.Logger
}

// NewHandler creates the HTTP handler. appURL is the embedded app origin merchants are sent back to.
func NewHandler(svc Services, appURL string, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, appURL: appURL, logger: logger}
}

// Routes mounts every merchant-facing route on r
func (h *Handler) Routes(r chi.Router) {
	r.Get("/auth", h.beginInstall)
	r.Get("/auth/callback", h.completeInstall)
	r.Get("/billing/callback", h.billingCallback)
	r.Post("/webhooks/shopify", h.webhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/billing/purchase", h.purchase)
		r.Post("/billing/subscribe", h.subscribe)
		r.Get("/billing/plans", h.plans)
		r.Get("/merchant/billing", h.merchantBilling)
		r.Post("/sections/install", h.installSection)
		r.Delete("/sections/uninstall", h.uninstallSection)
		r.Get("/sections/installed", h.installedSections)
	})
}

type errorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	Hint         string `json:"hint,omitempty"`
	SectionID    string `json:"sectionId,omitempty"`
	SectionPrice string `json:"sectionPrice,omitempty"`
}

// writeError maps the error taxonomy onto status codes. Internal detail is
// logged and never echoed to the merchant.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if pr, ok := domain.IsPaymentRequired(err); ok {
		writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:        "payment required",
			Code:         "payment_required",
			SectionID:    pr.SectionID,
			SectionPrice: pr.Price.StringFixed(2),
		})
		return
	}
	if br, ok := domain.IsBillingRejected(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: br.Message, Code: "billing_rejected"})
		return
	}

	switch {
	case errors.Is(err, domain.ErrAuthenticationFailure):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Code: "authentication_failed"})
	case errors.Is(err, domain.ErrInvalidShopDomain):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid shop domain", Code: "invalid_shop"})
	case errors.Is(err, domain.ErrShopNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "shop not found", Code: "shop_not_found", Hint: "reauthenticate"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"})
	case errors.Is(err, domain.ErrNothingToPurchase):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "section is free", Code: "nothing_to_purchase"})
	case errors.Is(err, domain.ErrChargeInFlight):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "charge already in progress", Code: "charge_in_flight"})
	case errors.Is(err, domain.ErrTransientUpstream):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "platform unavailable, try again", Code: "upstream_unavailable"})
	default:
		h.logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "bad_request"})
		return false
	}
	return true
}
