package admin

import (
	"net/http"
	"strconv"

	"quoteflow/internal/audit"
	"quoteflow/internal/auth"
	"quoteflow/internal/handlers/common"
	"quoteflow/internal/models"
	"quoteflow/internal/response"
	"quoteflow/internal/store"
)

// ListAudit returns recent audit entries, filtered by ?module=, ?recordId=
// and ?limit=.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if err := h.Gate.Authorize(common.Principal(r), auth.ActionViewAudit, nil); err != nil {
		response.Error(w, r, err)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := audit.List(r.Context(), h.Store, store.AuditFilter{
		Module:   q.Get("module"),
		RecordID: q.Get("recordId"),
		Limit:    limit,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	response.JSONMeta(w, entries, len(entries))
}
