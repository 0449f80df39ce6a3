package admin

import (
	"net/http"

	"quoteflow/internal/catalog"
	"quoteflow/internal/handlers/common"
	"quoteflow/internal/models"
	"quoteflow/internal/response"
)

func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.ListSites(r.Context(), common.Principal(r))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []models.Site{}
	}
	response.JSONMeta(w, items, len(items))
}

func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var in catalog.SiteInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	site, err := h.Catalog.CreateSite(r.Context(), common.Principal(r), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Status(w, http.StatusCreated, site)
}

// DeactivateSite soft-deletes a site; its RFQs and numbers are kept.
func (h *Handler) DeactivateSite(w http.ResponseWriter, r *http.Request) {
	site, err := h.Catalog.DeactivateSite(r.Context(), common.Principal(r), common.Var(r, "id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, site)
}
