package procurement

import (
	"net/http"

	"quoteflow/internal/catalog"
	"quoteflow/internal/handlers/common"
	"quoteflow/internal/models"
	"quoteflow/internal/response"
)

// ListSuppliers returns active suppliers, or all with ?includeInactive=true.
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.ListSuppliers(r.Context(), common.Principal(r), common.Bool(r, "includeInactive"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []models.Supplier{}
	}
	response.JSONMeta(w, items, len(items))
}

// GetSupplier returns a single supplier.
func (h *Handler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := h.Catalog.GetSupplier(r.Context(), common.Principal(r), common.Var(r, "id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, sup)
}

// CreateSupplier creates a new supplier.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var in catalog.SupplierInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	sup, err := h.Catalog.CreateSupplier(r.Context(), common.Principal(r), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Status(w, http.StatusCreated, sup)
}

// UpdateSupplier patches a supplier.
func (h *Handler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var patch catalog.SupplierPatch
	if err := response.DecodeBody(r, &patch); err != nil {
		response.Error(w, r, err)
		return
	}
	sup, err := h.Catalog.UpdateSupplier(r.Context(), common.Principal(r), common.Var(r, "id"), patch)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, sup)
}

// DeleteSupplier deactivates a supplier.
func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id := common.Var(r, "id")
	if err := h.Catalog.DeleteSupplier(r.Context(), common.Principal(r), id); err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, map[string]string{"deactivated": id})
}

// ListERPItems returns ERP reference items matching ?search=.
func (h *Handler) ListERPItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.ListERPItems(r.Context(), common.Principal(r), r.URL.Query().Get("search"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []models.ERPItem{}
	}
	response.JSONMeta(w, items, len(items))
}

// CreateERPItem adds an ERP reference item.
func (h *Handler) CreateERPItem(w http.ResponseWriter, r *http.Request) {
	var in catalog.ERPItemInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Error(w, r, err)
		return
	}
	it, err := h.Catalog.CreateERPItem(r.Context(), common.Principal(r), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Status(w, http.StatusCreated, it)
}
