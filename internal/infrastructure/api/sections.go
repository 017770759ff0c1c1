package api

import (
	"net/http"
)

type installRequest struct {
	ShopDomain string `json:"shopDomain"`
	SectionID  string `json:"sectionId"`
}

func (h *Handler) installSection(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	installation, err := h.svc.Sections.Install(r.Context(), req.ShopDomain, req.SectionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"installation": installation,
	})
}

func (h *Handler) uninstallSection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.svc.Sections.Uninstall(r.Context(), q.Get("shop"), q.Get("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) installedSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.svc.Sections.ListInstalled(r.Context(), r.URL.Query().Get("shop"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sections": sections})
}
