// Package rfq implements the RFQ aggregate operations and the approver
// decision workflow on top of the store.
package rfq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
	"quoteflow/internal/audit"
	"quoteflow/internal/auth"
	"quoteflow/internal/comparison"
	"quoteflow/internal/models"
	"quoteflow/internal/numbering"
	"quoteflow/internal/store"
	"quoteflow/internal/validation"
)

// Notifier is told about committed changes. ownerID scopes who may see the
// event.
type Notifier interface {
	BroadcastOwnedChange(resourceType, action string, id any, ownerID string)
}

type nopNotifier struct{}

func (nopNotifier) BroadcastOwnedChange(string, string, any, string) {}

type Service struct {
	store   store.Store
	numbers *numbering.Generator
	gate    *auth.Gate
	notify  Notifier
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(s store.Store, numbers *numbering.Generator, gate *auth.Gate, notify Notifier, log zerolog.Logger) *Service {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &Service{
		store:   s,
		numbers: numbers,
		gate:    gate,
		notify:  notify,
		log:     log.With().Str("component", "rfq").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest is the input of Create. Unless Draft is set the RFQ is
// submitted immediately.
type CreateRequest struct {
	Title         string
	Description   string
	Currency      string
	CommodityType models.CommodityType
	SiteID        string
	Items         []models.ItemFields
	Draft         bool
}

func (s *Service) Create(ctx context.Context, p *models.Principal, req CreateRequest) (*models.RFQ, error) {
	if err := s.gate.Authorize(p, auth.ActionCreate, nil); err != nil {
		return nil, err
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "commodityType", string(req.CommodityType))
	validation.ValidateEnum(ve, "commodityType", string(req.CommodityType), validation.ValidCommodityTypes)
	validation.RequireField(ve, "siteId", req.SiteID)
	validation.ValidateMaxLength(ve, "title", req.Title, 500)
	validation.ValidateMaxLength(ve, "description", req.Description, validation.MaxStringLength)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	items, err := buildItems(req.CommodityType, req.Items, !req.Draft)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &models.RFQ{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		Currency:      req.Currency,
		CommodityType: req.CommodityType,
		SiteID:        req.SiteID,
		Status:        models.RFQDraft,
		Items:         items,
		Quotes:        []models.Quote{},
		OwnerID:       p.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	site, err := s.activeSite(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}
	r.SiteCode = site.Code

	if req.Draft {
		err := s.store.InTx(ctx, func(tx store.Tx) error {
			if _, err := requireActiveSite(ctx, tx, site.ID); err != nil {
				return err
			}
			if err := tx.InsertRFQ(ctx, r); err != nil {
				return err
			}
			return audit.Log(ctx, tx, p, audit.ActionCreate, audit.ModuleRFQ, r.ID, "created draft rfq")
		})
		if err != nil {
			return nil, fmt.Errorf("create rfq: %w", err)
		}
		s.notify.BroadcastOwnedChange("rfq", "created", r.ID, r.OwnerID)
		return r, nil
	}

	var created *models.RFQ
	_, err = s.numbers.Allocate(ctx, site.ID, site.Code, func(ctx context.Context, tx store.Tx, number string) error {
		if _, err := requireActiveSite(ctx, tx, site.ID); err != nil {
			return err
		}
		out := r.Clone()
		s.stampSubmission(out, number)
		if err := tx.InsertRFQ(ctx, out); err != nil {
			return err
		}
		created = out
		return audit.Log(ctx, tx, p, audit.ActionCreate, audit.ModuleRFQ, out.ID, "created and submitted rfq "+number)
	})
	if err != nil {
		return nil, fmt.Errorf("create rfq: %w", err)
	}
	s.log.Info().Str("rfq", created.ID).Str("number", created.Number).Str("owner", p.Username).Msg("rfq submitted")
	s.notify.BroadcastOwnedChange("rfq", "created", created.ID, created.OwnerID)
	return created, nil
}

func (s *Service) stampSubmission(r *models.RFQ, number string) {
	now := s.now()
	r.Number = number
	r.Status = models.RFQPending
	r.SubmittedAt = &now
	r.UpdatedAt = now
	r.TotalValue = comparison.EstimatedValue(r)
}

func (s *Service) activeSite(ctx context.Context, siteID string) (*models.Site, error) {
	var site *models.Site
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		site, err = requireActiveSite(ctx, tx, siteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

// requireActiveSite reads the site inside tx. Called again after the
// allocator has locked the site row, so a deactivation that commits in
// between is seen.
func requireActiveSite(ctx context.Context, tx store.Tx, siteID string) (*models.Site, error) {
	site, err := tx.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !site.Active {
		return nil, apperr.Validation("siteId", "site "+site.Code+" is deactivated")
	}
	return site, nil
}

// Submit moves a draft to pending and stamps its number.
func (s *Service) Submit(ctx context.Context, p *models.Principal, id string) (*models.RFQ, error) {
	r, err := s.load(ctx, p, id, auth.ActionEdit)
	if err != nil {
		return nil, err
	}
	if err := checkSubmittable(r); err != nil {
		return nil, err
	}
	site, err := s.activeSite(ctx, r.SiteID)
	if err != nil {
		return nil, err
	}

	var out *models.RFQ
	_, err = s.numbers.Allocate(ctx, site.ID, site.Code, func(ctx context.Context, tx store.Tx, number string) error {
		if _, err := requireActiveSite(ctx, tx, site.ID); err != nil {
			return err
		}
		cur, err := tx.GetRFQ(ctx, id)
		if err != nil {
			return err
		}
		if err := checkSubmittable(cur); err != nil {
			return err
		}
		s.stampSubmission(cur, number)
		if err := tx.SaveRFQ(ctx, cur); err != nil {
			return err
		}
		out = cur
		return audit.Log(ctx, tx, p, audit.ActionSubmit, audit.ModuleRFQ, cur.ID, "submitted rfq "+number)
	})
	if err != nil {
		return nil, fmt.Errorf("submit rfq %s: %w", id, err)
	}
	s.log.Info().Str("rfq", out.ID).Str("number", out.Number).Msg("rfq submitted")
	s.notify.BroadcastOwnedChange("rfq", "submitted", out.ID, out.OwnerID)
	return out, nil
}

func checkSubmittable(r *models.RFQ) error {
	if r.IsFinalized() {
		return apperr.DecisionFinalized(r.ID)
	}
	if r.Status != models.RFQDraft {
		return apperr.Validation("status", "only draft rfqs can be submitted")
	}
	if len(r.Items) == 0 {
		return apperr.Validation("items", "at least one item is required")
	}
	return nil
}

// UpdateRequest edits a draft. Nil fields are left unchanged. Replacing the
// items clears every quoted rate.
type UpdateRequest struct {
	Title       *string
	Description *string
	Currency    *string
	Items       []models.ItemFields
}

func (s *Service) UpdateDraft(ctx context.Context, p *models.Principal, id string, req UpdateRequest) (*models.RFQ, error) {
	return s.edit(ctx, p, id, func(_ store.Tx, r *models.RFQ) (string, error) {
		if r.Status != models.RFQDraft {
			return "", apperr.Validation("status", "only draft rfqs can be edited")
		}
		if req.Title != nil {
			r.Title = *req.Title
		}
		if req.Description != nil {
			r.Description = *req.Description
		}
		if req.Currency != nil {
			r.Currency = *req.Currency
		}
		if req.Items != nil {
			items, err := buildItems(r.CommodityType, req.Items, false)
			if err != nil {
				return "", err
			}
			r.Items = items
			clearRates(r)
		}
		return "updated draft rfq", nil
	})
}

// SetCommodityType changes a draft's commodity type, discarding its items.
func (s *Service) SetCommodityType(ctx context.Context, p *models.Principal, id string, ct models.CommodityType) (*models.RFQ, error) {
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "commodityType", string(ct))
	validation.ValidateEnum(ve, "commodityType", string(ct), validation.ValidCommodityTypes)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	return s.edit(ctx, p, id, func(_ store.Tx, r *models.RFQ) (string, error) {
		if r.Status != models.RFQDraft {
			return "", apperr.Validation("commodityType", "cannot change commodity type after submission")
		}
		if r.CommodityType == ct {
			return "", nil
		}
		r.CommodityType = ct
		r.Items = []models.Item{}
		clearRates(r)
		return "changed commodity type to " + string(ct), nil
	})
}

func clearRates(r *models.RFQ) {
	for i := range r.Quotes {
		r.Quotes[i].Rates = map[string]decimal.Decimal{}
	}
}

// Delete removes a draft together with its quotes.
func (s *Service) Delete(ctx context.Context, p *models.Principal, id string) error {
	if p == nil {
		return apperr.Unauthenticated()
	}
	var owner string
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRFQ(ctx, id)
		if err != nil {
			return err
		}
		if err := s.gate.Authorize(p, auth.ActionDelete, r); err != nil {
			return err
		}
		owner = r.OwnerID
		if r.IsFinalized() {
			return apperr.DecisionFinalized(r.ID)
		}
		if r.Status != models.RFQDraft {
			return apperr.Validation("status", "only draft rfqs can be deleted")
		}
		if err := tx.DeleteRFQ(ctx, id); err != nil {
			return err
		}
		return audit.Log(ctx, tx, p, audit.ActionDelete, audit.ModuleRFQ, id, "deleted draft rfq")
	})
	if err != nil {
		return err
	}
	s.notify.BroadcastOwnedChange("rfq", "deleted", id, owner)
	return nil
}

func (s *Service) Get(ctx context.Context, p *models.Principal, id string) (*models.RFQ, error) {
	return s.load(ctx, p, id, auth.ActionView)
}

// List returns the RFQs p may see. Principals without the view-all grant
// only see their own.
func (s *Service) List(ctx context.Context, p *models.Principal, f models.RFQFilter) ([]models.RFQ, error) {
	if err := s.gate.Authorize(p, auth.ActionCreate, nil); err != nil {
		return nil, err
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "status", string(f.Status), validation.ValidRFQStatuses)
	validation.ValidateEnum(ve, "commodityType", string(f.CommodityType), validation.ValidCommodityTypes)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	if !s.gate.HasGrant(p.Role, auth.ActionViewAll) {
		f.OwnerID = p.UserID
	}
	var out []models.RFQ
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListRFQs(ctx, f)
		return err
	})
	return out, err
}

// Compare returns the quote comparison for an RFQ p may view.
func (s *Service) Compare(ctx context.Context, p *models.Principal, id string) (*models.RFQ, comparison.Comparison, error) {
	r, err := s.load(ctx, p, id, auth.ActionView)
	if err != nil {
		return nil, comparison.Comparison{}, err
	}
	return r, comparison.Build(r), nil
}

func (s *Service) load(ctx context.Context, p *models.Principal, id string, action auth.Action) (*models.RFQ, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	var r *models.RFQ
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		r, err = tx.GetRFQ(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, action, r); err != nil {
		return nil, err
	}
	return r, nil
}

// mutation describes how a change to one RFQ is authorized and recorded.
type mutation struct {
	action      auth.Action
	module      string
	auditAction string
	event       string
	// allowFinal lets fn run against a finalized RFQ.
	allowFinal bool
}

// mutate loads, authorizes, changes and saves one RFQ in a single unit of
// work. Finalized RFQs are read-only unless m.allowFinal is set. An empty
// summary from fn means nothing changed: the RFQ is returned unsaved and no
// audit entry or event is produced.
func (s *Service) mutate(ctx context.Context, p *models.Principal, id string, m mutation, fn func(tx store.Tx, r *models.RFQ) (string, error)) (*models.RFQ, error) {
	if p == nil {
		return nil, apperr.Unauthenticated()
	}
	var (
		out     *models.RFQ
		changed bool
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		changed = false
		r, err := tx.GetRFQ(ctx, id)
		if err != nil {
			return err
		}
		if err := s.gate.Authorize(p, m.action, r); err != nil {
			return err
		}
		if !m.allowFinal && r.IsFinalized() {
			return apperr.DecisionFinalized(r.ID)
		}
		summary, err := fn(tx, r)
		if err != nil {
			return err
		}
		out = r
		if summary == "" {
			return nil
		}
		changed = true
		r.UpdatedAt = s.now()
		if err := tx.SaveRFQ(ctx, r); err != nil {
			return err
		}
		return audit.Log(ctx, tx, p, m.auditAction, m.module, r.ID, summary)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify.BroadcastOwnedChange("rfq", m.event, out.ID, out.OwnerID)
	}
	return out, nil
}

// edit is mutate for plain owner edits of an RFQ.
func (s *Service) edit(ctx context.Context, p *models.Principal, id string, fn func(tx store.Tx, r *models.RFQ) (string, error)) (*models.RFQ, error) {
	return s.mutate(ctx, p, id, mutation{
		action:      auth.ActionEdit,
		module:      audit.ModuleRFQ,
		auditAction: audit.ActionUpdate,
		event:       "updated",
	}, fn)
}
