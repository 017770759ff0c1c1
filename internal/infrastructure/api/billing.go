package api

import (
	"errors"
	"net/http"
	"net/url"

	"sectionhub-shopify-layer/internal/domain"
)

type purchaseRequest struct {
	ShopDomain string `json:"shopDomain"`
	SectionID  string `json:"sectionId"`
}

type subscribeRequest struct {
	ShopDomain string `json:"shopDomain"`
	PlanID     string `json:"planId"`
}

type confirmationResponse struct {
	ConfirmationURL string `json:"confirmationUrl"`
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	confirmationURL, err := h.svc.Billing.PurchaseSection(r.Context(), req.ShopDomain, req.SectionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse{ConfirmationURL: confirmationURL})
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	confirmationURL, err := h.svc.Billing.SubscribePlan(r.Context(), req.ShopDomain, req.PlanID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmationResponse{ConfirmationURL: confirmationURL})
}

func (h *Handler) plans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.Billing.ListPlans(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if plans == nil {
		plans = []*domain.Plan{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

func (h *Handler) merchantBilling(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Billing.Summary(r.Context(), r.URL.Query().Get("shop"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// billingCallback is where the platform returns the merchant after checkout.
// The charge_id is unsigned; only the platform's status can activate the charge.
// Ledger gaps are operator business; the merchant sees success.
func (h *Handler) billingCallback(w http.ResponseWriter, r *http.Request) {
	chargeID := r.URL.Query().Get("charge_id")
	if chargeID == "" {
		h.redirectApp(w, r, "error", "missing_charge_id")
		return
	}

	err := h.svc.Reconciler.ConfirmCharge(r.Context(), chargeID)
	if err != nil && !errors.Is(err, domain.ErrReconciliationGap) {
		h.logger.Error().Err(err).Str("chargeId", chargeID).Msg("Billing callback failed")
		h.redirectApp(w, r, "error", "billing_failed")
		return
	}
	h.redirectApp(w, r, "billing", "success")
}

func (h *Handler) redirectApp(w http.ResponseWriter, r *http.Request, key, value string) {
	q := url.Values{}
	q.Set(key, value)
	if shop := r.URL.Query().Get("shop"); domain.ValidShopDomain(shop) {
		q.Set("shop", domain.CanonicalDomain(shop))
	}
	http.Redirect(w, r, h.appURL+"/?"+q.Encode(), http.StatusFound)
}
