package api

import (
	"errors"
	"net/http"
	"net/url"

	"sectionhub-shopify-layer/internal/application"
	"sectionhub-shopify-layer/internal/domain"
	shopifyinfra "sectionhub-shopify-layer/internal/infrastructure/shopify"
)

// beginInstall issues a fresh state cookie and sends the merchant to the platform
func (h *Handler) beginInstall(w http.ResponseWriter, r *http.Request) {
	shop := r.URL.Query().Get("shop")

	state, err := h.svc.State.Issue()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	authURL, err := h.svc.OAuth.BeginInstall(r.Context(), shop, state)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.svc.State.SetCookie(w, state)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// completeInstall runs the callback checks. The state cookie is single use and
// is cleared whatever the outcome. The merchant arrives here by browser redirect,
// so a failed exchange sends them back to the app rather than to a JSON error.
func (h *Handler) completeInstall(w http.ResponseWriter, r *http.Request) {
	in := application.CallbackInput{
		Query:       shopifyinfra.FlattenQuery(r.URL.Query()),
		StoredState: h.svc.State.StoredState(r),
	}
	h.svc.State.ClearCookie(w)

	shop, err := h.svc.OAuth.CompleteInstall(r.Context(), in)
	if errors.Is(err, domain.ErrExchangeFailed) {
		h.logger.Warn().Err(err).Str("shop", in.Query["shop"]).Msg("OAuth code exchange failed")
		http.Redirect(w, r, h.appURL+"/?error=oauth_failed", http.StatusFound)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.Redirect(w, r, h.appURL+"/?shop="+url.QueryEscape(shop.Domain), http.StatusFound)
}
