package rfq

import (
	"context"
	"errors"

	"quoteflow/internal/apperr"
	"quoteflow/internal/audit"
	"quoteflow/internal/auth"
	"quoteflow/internal/comparison"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
)

// Export is everything needed to render an RFQ's comparison outside the API.
type Export struct {
	RFQ           *models.RFQ
	Comparison    comparison.Comparison
	SupplierNames map[string]string
}

// PrepareExport loads the comparison of an RFQ p may view, resolves the
// supplier names of its quotes and records the export in the audit trail.
func (s *Service) PrepareExport(ctx context.Context, p *models.Principal, id string) (*Export, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	out := &Export{SupplierNames: map[string]string{}}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRFQ(ctx, id)
		if err != nil {
			return err
		}
		if err := s.gate.Authorize(p, auth.ActionView, r); err != nil {
			return err
		}
		for _, q := range r.Quotes {
			if q.SupplierID == nil {
				continue
			}
			sup, err := tx.GetSupplier(ctx, *q.SupplierID)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out.SupplierNames[sup.ID] = sup.Name
		}
		out.RFQ = r
		out.Comparison = comparison.Build(r)
		return audit.Log(ctx, tx, p, audit.ActionExport, audit.ModuleRFQ, r.ID, "exported comparison")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
