package procurement

import (
	"bytes"
	"fmt"
	"net/http"

	"quoteflow/internal/export"
	"quoteflow/internal/handlers/common"
	"quoteflow/internal/models"
	"quoteflow/internal/response"
	"quoteflow/internal/rfq"
)

type decisionRequest struct {
	Items  []rfq.ItemDecisionPatch `json:"items" validate:"dive"`
	Status *string                 `json:"status"`
	Reason string                  `json:"reason"`
}

type approveRequest struct {
	Comments string `json:"comments"`
}

// BeginReview opens the final decision of an RFQ.
func (h *Handler) BeginReview(w http.ResponseWriter, r *http.Request) {
	out, err := h.RFQs.BeginReview(r.Context(), common.Principal(r), common.Var(r, "id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, out)
}

// UpdateDecision applies item decisions and, for a terminal status, finalizes.
func (h *Handler) UpdateDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	u := rfq.DecisionUpdate{Items: req.Items, Reason: req.Reason}
	if req.Status != nil {
		st := models.DecisionStatus(*req.Status)
		u.Outcome = &st
	}
	out, err := h.RFQs.UpdateDecision(r.Context(), common.Principal(r), common.Var(r, "id"), u)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, out)
}

// Approve finalizes an RFQ as approved in one step.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := common.Decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	out, err := h.RFQs.Approve(r.Context(), common.Principal(r), common.Var(r, "id"), req.Comments)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, out)
}

// Comparison returns the quote comparison of an RFQ.
func (h *Handler) Comparison(w http.ResponseWriter, r *http.Request) {
	_, cmp, err := h.RFQs.Compare(r.Context(), common.Principal(r), common.Var(r, "id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, cmp)
}

// ExportComparison streams the comparison as an xlsx workbook.
func (h *Handler) ExportComparison(w http.ResponseWriter, r *http.Request) {
	ex, err := h.RFQs.PrepareExport(r.Context(), common.Principal(r), common.Var(r, "id"))
	if err != nil {
		response.Error(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteComparison(&buf, ex.RFQ, ex.Comparison, ex.SupplierNames); err != nil {
		response.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(ex.RFQ)))
	w.Write(buf.Bytes())
}
