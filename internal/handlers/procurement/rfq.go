package procurement

import (
	"net/http"

	"github.com/shopspring/decimal"

	"quoteflow/internal/handlers/common"
	"quoteflow/internal/models"
	"quoteflow/internal/response"
	"quoteflow/internal/rfq"
)

type createRFQRequest struct {
	Title         string              `json:"title" validate:"max=500"`
	Description   string              `json:"description"`
	CommodityType string              `json:"commodityType" validate:"required"`
	Currency      string              `json:"currency" validate:"max=10"`
	SiteID        string              `json:"siteId" validate:"required"`
	Items         []models.ItemFields `json:"items"`
	Draft         bool                `json:"draft"`
	// Accepted for compatibility and ignored; the value is always recomputed.
	TotalValue *decimal.Decimal `json:"totalValue"`
}

type updateRFQRequest struct {
	Title       *string             `json:"title" validate:"omitempty,max=500"`
	Description *string             `json:"description"`
	Currency    *string             `json:"currency" validate:"omitempty,max=10"`
	Items       []models.ItemFields `json:"items"`
}

type commodityTypeRequest struct {
	CommodityType string `json:"commodityType" validate:"required"`
}

// ListRFQs returns the RFQs visible to the caller, filtered by query.
func (h *Handler) ListRFQs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.RFQs.List(r.Context(), common.Principal(r), models.RFQFilter{
		Status:        models.RFQStatus(q.Get("status")),
		CommodityType: models.CommodityType(q.Get("commodityType")),
		SiteID:        q.Get("siteId"),
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if items == nil {
		items = []models.RFQ{}
	}
	response.JSONMeta(w, items, len(items))
}

// CreateRFQ creates an RFQ, submitting it unless the body asks for a draft.
func (h *Handler) CreateRFQ(w http.ResponseWriter, r *http.Request) {
	var req createRFQRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	created, err := h.RFQs.Create(r.Context(), common.Principal(r), rfq.CreateRequest{
		Title:         req.Title,
		Description:   req.Description,
		Currency:      req.Currency,
		CommodityType: models.CommodityType(req.CommodityType),
		SiteID:        req.SiteID,
		Items:         req.Items,
		Draft:         req.Draft,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Status(w, http.StatusCreated, created)
}

// GetRFQ returns a single RFQ.
func (h *Handler) GetRFQ(w http.ResponseWriter, r *http.Request) {
	out, err := h.RFQs.Get(r.Context(), common.Principal(r), common.Var(r, "id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, out)
}

// UpdateRFQ edits a draft RFQ.
func (h *Handler) UpdateRFQ(w http.ResponseWriter, r *http.Request) {
	var req updateRFQRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	out, err := h.RFQs.UpdateDraft(r.Context(), common.Principal(r), common.Var(r, "id"), rfq.UpdateRequest{
		Title:       req.Title,
		Description: req.Description,
		Currency:    req.Currency,
		Items:       req.Items,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, out)
}

// DeleteRFQ removes an RFQ that has no final decision.
func (h *Handler) DeleteRFQ(w http.ResponseWriter, r *http.Request) {
	id := common.Var(r, "id")
	if err := h.RFQs.Delete(r.Context(), common.Principal(r), id); err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, map[string]string{"deleted": id})
}

// SubmitRFQ submits a draft, assigning its number.
func (h *Handler) SubmitRFQ(w http.ResponseWriter, r *http.Request) {
	out, err := h.RFQs.Submit(r.Context(), common.Principal(r), common.Var(r, "id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, out)
}

// SetCommodityType switches a draft to another commodity type.
func (h *Handler) SetCommodityType(w http.ResponseWriter, r *http.Request) {
	var req commodityTypeRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	out, err := h.RFQs.SetCommodityType(r.Context(), common.Principal(r), common.Var(r, "id"), models.CommodityType(req.CommodityType))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, out)
}
