package rfq

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
	"quoteflow/internal/audit"
	"quoteflow/internal/auth"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
	"quoteflow/internal/validation"
)

// MinReasonLength is the shortest accepted finalization reason, after trimming.
const MinReasonLength = 10

// ItemDecisionPatch updates one item's decision. Nil fields are left as they are.
type ItemDecisionPatch struct {
	ItemID          string           `json:"itemId" validate:"required"`
	SupplierName    *string          `json:"supplierName"`
	FinalTotalPrice *decimal.Decimal `json:"finalTotalPrice"`
}

// DecisionUpdate applies item patches and, when Outcome is approved or
// rejected, finalizes in the same unit of work.
type DecisionUpdate struct {
	Items   []ItemDecisionPatch
	Outcome *models.DecisionStatus
	Reason  string
}

func reviewMutation(auditAction, event string) mutation {
	return mutation{
		action:      auth.ActionFinalize,
		module:      audit.ModuleDecision,
		auditAction: auditAction,
		event:       event,
	}
}

// BeginReview opens the decision for a submitted RFQ with one empty entry per
// item. Calling it again returns the existing decision unchanged, even once
// it is final.
func (s *Service) BeginReview(ctx context.Context, p *models.Principal, id string) (*models.RFQ, error) {
	m := reviewMutation(audit.ActionReview, "review_started")
	m.allowFinal = true
	return s.mutate(ctx, p, id, m, func(_ store.Tx, r *models.RFQ) (string, error) {
		if r.FinalDecision != nil {
			return "", nil
		}
		if err := s.begin(r); err != nil {
			return "", err
		}
		return "review started", nil
	})
}

func (s *Service) begin(r *models.RFQ) error {
	if r.Status == models.RFQDraft {
		return apperr.Validation("status", "draft rfqs cannot be reviewed")
	}
	items := make([]models.DecisionItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = models.DecisionItem{ItemID: it.ID}
	}
	r.FinalDecision = &models.Decision{
		Status:    models.DecisionInProgress,
		Items:     items,
		StartedAt: s.now(),
	}
	return nil
}

// SetItemDecision records the chosen vendor and/or final price for one item.
func (s *Service) SetItemDecision(ctx context.Context, p *models.Principal, id string, patch ItemDecisionPatch) (*models.RFQ, error) {
	return s.mutate(ctx, p, id, reviewMutation(audit.ActionUpdate, "decision_updated"), func(_ store.Tx, r *models.RFQ) (string, error) {
		if err := applyPatch(r, patch); err != nil {
			return "", err
		}
		return "decision updated for item " + patch.ItemID, nil
	})
}

func applyPatch(r *models.RFQ, patch ItemDecisionPatch) error {
	d := r.FinalDecision
	if d == nil {
		return apperr.Validation("finalDecision", "review has not been started")
	}
	if d.IsFinal() {
		return apperr.DecisionFinalized(r.ID)
	}
	if r.ItemIndex(patch.ItemID) < 0 {
		return apperr.NotFound("item", patch.ItemID)
	}
	if patch.FinalTotalPrice != nil && patch.FinalTotalPrice.IsNegative() {
		return apperr.Validation("finalTotalPrice", "must be non-negative")
	}
	if patch.SupplierName != nil {
		ve := &validation.ValidationErrors{}
		validation.ValidateMaxLength(ve, "supplierName", *patch.SupplierName, 500)
		if err := ve.Err(); err != nil {
			return err
		}
	}

	i := d.ItemIndex(patch.ItemID)
	if i < 0 {
		d.Items = append(d.Items, models.DecisionItem{ItemID: patch.ItemID})
		i = len(d.Items) - 1
	}
	if patch.SupplierName != nil {
		name := *patch.SupplierName
		d.Items[i].SupplierName = &name
	}
	if patch.FinalTotalPrice != nil {
		price := *patch.FinalTotalPrice
		d.Items[i].FinalTotalPrice = &price
	}
	return nil
}

// Finalize closes the review with outcome. The decision and the RFQ status
// are written together; afterwards both are read-only.
func (s *Service) Finalize(ctx context.Context, p *models.Principal, id string, outcome models.DecisionStatus, reason string) (*models.RFQ, error) {
	return s.mutate(ctx, p, id, reviewMutation(outcomeAction(outcome), "finalized"), func(_ store.Tx, r *models.RFQ) (string, error) {
		return s.finalize(r, p, outcome, reason)
	})
}

// UpdateDecision applies item patches and an optional outcome as one change.
// A failure in any part leaves the decision untouched.
func (s *Service) UpdateDecision(ctx context.Context, p *models.Principal, id string, u DecisionUpdate) (*models.RFQ, error) {
	final := u.Outcome != nil && *u.Outcome != models.DecisionInProgress
	m := reviewMutation(audit.ActionUpdate, "decision_updated")
	if final {
		m = reviewMutation(outcomeAction(*u.Outcome), "finalized")
	}
	return s.mutate(ctx, p, id, m, func(_ store.Tx, r *models.RFQ) (string, error) {
		if u.Outcome != nil {
			ve := &validation.ValidationErrors{}
			validation.ValidateEnum(ve, "status", string(*u.Outcome), validation.ValidDecisionStatuses)
			if err := ve.Err(); err != nil {
				return "", err
			}
		}
		for _, patch := range u.Items {
			if err := applyPatch(r, patch); err != nil {
				return "", err
			}
		}
		if final {
			return s.finalize(r, p, *u.Outcome, u.Reason)
		}
		if len(u.Items) == 0 {
			return "", nil
		}
		return fmt.Sprintf("decision updated for %d items", len(u.Items)), nil
	})
}

// Approve begins the review when needed and finalizes it as approved, with
// comments as the reason.
func (s *Service) Approve(ctx context.Context, p *models.Principal, id, comments string) (*models.RFQ, error) {
	return s.mutate(ctx, p, id, reviewMutation(audit.ActionApprove, "finalized"), func(_ store.Tx, r *models.RFQ) (string, error) {
		if r.FinalDecision == nil {
			if err := s.begin(r); err != nil {
				return "", err
			}
		}
		return s.finalize(r, p, models.DecisionApproved, comments)
	})
}

func (s *Service) finalize(r *models.RFQ, p *models.Principal, outcome models.DecisionStatus, reason string) (string, error) {
	d := r.FinalDecision
	if d == nil {
		return "", apperr.Validation("finalDecision", "review has not been started")
	}
	if d.IsFinal() {
		return "", apperr.DecisionFinalized(r.ID)
	}
	if outcome != models.DecisionApproved && outcome != models.DecisionRejected {
		return "", apperr.Validation("status", "must be approved or rejected")
	}
	reason = strings.TrimSpace(reason)
	ve := &validation.ValidationErrors{}
	validation.ValidateMinLength(ve, "reason", reason, MinReasonLength)
	validation.ValidateMaxLength(ve, "reason", reason, validation.MaxStringLength)
	if err := ve.Err(); err != nil {
		return "", err
	}

	now := s.now()
	d.Status = outcome
	d.Reason = reason
	d.DecidedBy = p.Username
	d.FinalizedAt = &now
	if outcome == models.DecisionApproved {
		r.Status = models.RFQApproved
	} else {
		r.Status = models.RFQRejected
	}
	s.log.Info().Str("rfq", r.ID).Str("number", r.Number).Str("outcome", string(outcome)).Str("by", p.Username).Msg("rfq finalized")
	return fmt.Sprintf("rfq %s %s: %s", r.Number, outcome, reason), nil
}

func outcomeAction(outcome models.DecisionStatus) string {
	if outcome == models.DecisionRejected {
		return audit.ActionReject
	}
	return audit.ActionApprove
}
