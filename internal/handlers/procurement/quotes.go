package procurement

import (
	"net/http"

	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
	"quoteflow/internal/handlers/common"
	"quoteflow/internal/models"
	"quoteflow/internal/response"
)

type addQuoteRequest struct {
	SupplierID *string `json:"supplierId"`
}

type supplierRequest struct {
	SupplierID string `json:"supplierId" validate:"required"`
}

type rateRequest struct {
	Rate *decimal.Decimal `json:"rate"`
}

type footerRequest struct {
	Value string `json:"value" validate:"max=10000"`
}

type attachmentRequest struct {
	Ref string `json:"ref" validate:"max=1000"`
}

// quoteResult is the body of a quote mutation: the quote position and the
// RFQ after the change.
type quoteResult struct {
	Index   int         `json:"index"`
	QuoteID string      `json:"quoteId,omitempty"`
	RFQ     *models.RFQ `json:"rfq"`
}

// quoteCall resolves the {id} and {index} variables for a quote route.
func quoteCall(w http.ResponseWriter, r *http.Request, fn func(id string, index int) (*models.RFQ, error)) {
	index, err := common.IndexVar(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	out, err := fn(common.Var(r, "id"), index)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, quoteResult{Index: index, RFQ: out})
}

// AddQuote appends a quote, optionally bound to a supplier.
func (h *Handler) AddQuote(w http.ResponseWriter, r *http.Request) {
	var req addQuoteRequest
	if r.ContentLength != 0 {
		if err := common.Decode(r, &req); err != nil {
			response.Error(w, r, err)
			return
		}
	}
	ref, out, err := h.RFQs.AddQuote(r.Context(), common.Principal(r), common.Var(r, "id"), req.SupplierID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Status(w, http.StatusCreated, quoteResult{Index: ref.Index, QuoteID: ref.QuoteID, RFQ: out})
}

// RemoveQuote deletes the quote at {index}.
func (h *Handler) RemoveQuote(w http.ResponseWriter, r *http.Request) {
	quoteCall(w, r, func(id string, index int) (*models.RFQ, error) {
		return h.RFQs.RemoveQuote(r.Context(), common.Principal(r), id, index)
	})
}

// AssignSupplier binds the quote at {index} to a supplier.
func (h *Handler) AssignSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	quoteCall(w, r, func(id string, index int) (*models.RFQ, error) {
		return h.RFQs.AssignSupplier(r.Context(), common.Principal(r), id, index, req.SupplierID)
	})
}

// SetItemRate records the rate quoted for {itemId}.
func (h *Handler) SetItemRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	if req.Rate == nil {
		response.Error(w, r, apperr.Validation("rate", "is required"))
		return
	}
	quoteCall(w, r, func(id string, index int) (*models.RFQ, error) {
		return h.RFQs.SetItemRate(r.Context(), common.Principal(r), id, index, common.Var(r, "itemId"), *req.Rate)
	})
}

// ClearItemRate removes the rate quoted for {itemId}.
func (h *Handler) ClearItemRate(w http.ResponseWriter, r *http.Request) {
	quoteCall(w, r, func(id string, index int) (*models.RFQ, error) {
		return h.RFQs.ClearItemRate(r.Context(), common.Principal(r), id, index, common.Var(r, "itemId"))
	})
}

// SetFooterField sets one commercial term of the quote.
func (h *Handler) SetFooterField(w http.ResponseWriter, r *http.Request) {
	var req footerRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	quoteCall(w, r, func(id string, index int) (*models.RFQ, error) {
		return h.RFQs.SetFooterField(r.Context(), common.Principal(r), id, index, common.Var(r, "field"), req.Value)
	})
}

// SetAttachment stores the attachment reference of the quote.
func (h *Handler) SetAttachment(w http.ResponseWriter, r *http.Request) {
	var req attachmentRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	quoteCall(w, r, func(id string, index int) (*models.RFQ, error) {
		return h.RFQs.SetAttachment(r.Context(), common.Principal(r), id, index, req.Ref)
	})
}
