// Package catalog manages the reference data RFQs point at: sites,
// suppliers and ERP items.
package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
	"quoteflow/internal/audit"
	"quoteflow/internal/auth"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
	"quoteflow/internal/validation"
)

// Notifier is told about committed changes.
type Notifier interface {
	BroadcastChange(resourceType, action string, id any)
}

type Service struct {
	store  store.Store
	gate   *auth.Gate
	notify Notifier
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(s store.Store, gate *auth.Gate, notify Notifier, log zerolog.Logger) *Service {
	return &Service{
		store:  s,
		gate:   gate,
		notify: notify,
		log:    log.With().Str("component", "catalog").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// write runs fn as one audited unit of work and broadcasts on success.
func (s *Service) write(ctx context.Context, p *models.Principal, action auth.Action, auditAction, module, event string, fn func(tx store.Tx) (recordID, summary string, err error)) error {
	if err := s.gate.Authorize(p, action, nil); err != nil {
		return err
	}
	var recordID string
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		id, summary, err := fn(tx)
		if err != nil {
			return err
		}
		recordID = id
		return audit.Log(ctx, tx, p, auditAction, module, id, summary)
	})
	if err != nil {
		return err
	}
	if s.notify != nil {
		s.notify.BroadcastChange(module, event, recordID)
	}
	return nil
}

func (s *Service) read(ctx context.Context, p *models.Principal, fn func(tx store.Tx) error) error {
	if err := s.gate.Authorize(p, auth.ActionCreate, nil); err != nil {
		return err
	}
	return s.store.InTx(ctx, fn)
}

// Sites

type SiteInput struct {
	Code string `json:"code" validate:"required,max=20"`
	Name string `json:"name" validate:"required,max=255"`
}

func (s *Service) ListSites(ctx context.Context, p *models.Principal) ([]models.Site, error) {
	var out []models.Site
	err := s.read(ctx, p, func(tx store.Tx) error {
		var err error
		out, err = tx.ListSites(ctx)
		return err
	})
	return out, err
}

func (s *Service) CreateSite(ctx context.Context, p *models.Principal, in SiteInput) (*models.Site, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateSiteCode(ve, "code", in.Code)
	if err := ve.Err(); err != nil {
		return nil, err
	}

	site := &models.Site{
		ID:        uuid.NewString(),
		Code:      in.Code,
		Name:      in.Name,
		Active:    true,
		CreatedAt: s.now(),
	}
	err := s.write(ctx, p, auth.ActionManageSites, audit.ActionCreate, audit.ModuleSite, "created", func(tx store.Tx) (string, string, error) {
		if err := tx.CreateSite(ctx, site); err != nil {
			return "", "", err
		}
		return site.ID, "created site " + site.Code, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("site", site.Code).Msg("site created")
	return site, nil
}

// DeactivateSite stops new RFQs from being raised for a site. Existing RFQs
// and their numbers are kept.
func (s *Service) DeactivateSite(ctx context.Context, p *models.Principal, id string) (*models.Site, error) {
	var site *models.Site
	err := s.write(ctx, p, auth.ActionManageSites, audit.ActionDelete, audit.ModuleSite, "deactivated", func(tx store.Tx) (string, string, error) {
		var err error
		site, err = tx.GetSite(ctx, id)
		if err != nil {
			return "", "", err
		}
		site.Active = false
		if err := tx.UpdateSite(ctx, site); err != nil {
			return "", "", err
		}
		return site.ID, "deactivated site " + site.Code, nil
	})
	if err != nil {
		return nil, err
	}
	return site, nil
}

// Suppliers

type SupplierInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	ContactEmail string `json:"contactEmail" validate:"omitempty,email,max=255"`
}

// SupplierPatch updates a supplier. Nil fields are left unchanged.
type SupplierPatch struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=255"`
	ContactEmail *string `json:"contactEmail" validate:"omitempty,max=255"`
	Active       *bool   `json:"active"`
}

func (s *Service) ListSuppliers(ctx context.Context, p *models.Principal, includeInactive bool) ([]models.Supplier, error) {
	var out []models.Supplier
	err := s.read(ctx, p, func(tx store.Tx) error {
		var err error
		out, err = tx.ListSuppliers(ctx, includeInactive)
		return err
	})
	return out, err
}

func (s *Service) GetSupplier(ctx context.Context, p *models.Principal, id string) (*models.Supplier, error) {
	var out *models.Supplier
	err := s.read(ctx, p, func(tx store.Tx) error {
		var err error
		out, err = tx.GetSupplier(ctx, id)
		return err
	})
	return out, err
}

func (s *Service) CreateSupplier(ctx context.Context, p *models.Principal, in SupplierInput) (*models.Supplier, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	now := s.now()
	sup := &models.Supplier{
		ID:           uuid.NewString(),
		Name:         in.Name,
		ContactEmail: in.ContactEmail,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.write(ctx, p, auth.ActionManageSuppliers, audit.ActionCreate, audit.ModuleSupplier, "created", func(tx store.Tx) (string, string, error) {
		if err := tx.CreateSupplier(ctx, sup); err != nil {
			return "", "", err
		}
		return sup.ID, "created supplier " + sup.Name, nil
	})
	if err != nil {
		return nil, err
	}
	return sup, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, p *models.Principal, id string, patch SupplierPatch) (*models.Supplier, error) {
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}
	if patch.ContactEmail != nil {
		ve := &validation.ValidationErrors{}
		validation.ValidateEmail(ve, "contactEmail", *patch.ContactEmail)
		if err := ve.Err(); err != nil {
			return nil, err
		}
	}
	var sup *models.Supplier
	err := s.write(ctx, p, auth.ActionManageSuppliers, audit.ActionUpdate, audit.ModuleSupplier, "updated", func(tx store.Tx) (string, string, error) {
		var err error
		sup, err = tx.GetSupplier(ctx, id)
		if err != nil {
			return "", "", err
		}
		if patch.Name != nil {
			sup.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.ContactEmail != nil {
			sup.ContactEmail = strings.TrimSpace(*patch.ContactEmail)
		}
		if patch.Active != nil {
			sup.Active = *patch.Active
		}
		sup.UpdatedAt = s.now()
		if err := tx.UpdateSupplier(ctx, sup); err != nil {
			return "", "", err
		}
		return sup.ID, "updated supplier " + sup.Name, nil
	})
	if err != nil {
		return nil, err
	}
	return sup, nil
}

// DeleteSupplier deactivates a supplier. Quotes that already reference it
// keep the reference.
func (s *Service) DeleteSupplier(ctx context.Context, p *models.Principal, id string) error {
	return s.write(ctx, p, auth.ActionManageSuppliers, audit.ActionDelete, audit.ModuleSupplier, "deleted", func(tx store.Tx) (string, string, error) {
		sup, err := tx.GetSupplier(ctx, id)
		if err != nil {
			return "", "", err
		}
		if !sup.Active {
			return "", "", apperr.Validation("id", "supplier is already inactive")
		}
		sup.Active = false
		sup.UpdatedAt = s.now()
		if err := tx.UpdateSupplier(ctx, sup); err != nil {
			return "", "", err
		}
		return sup.ID, "deactivated supplier " + sup.Name, nil
	})
}

// ERP items

type ERPItemInput struct {
	ItemCode        string          `json:"itemCode" validate:"required,max=100"`
	Description     string          `json:"description" validate:"required,max=1000"`
	UnitOfMeasure   string          `json:"unitOfMeasure" validate:"max=50"`
	LastBuyingPrice decimal.Decimal `json:"lastBuyingPrice"`
	LastVendor      string          `json:"lastVendor" validate:"max=255"`
}

func (s *Service) ListERPItems(ctx context.Context, p *models.Principal, search string) ([]models.ERPItem, error) {
	var out []models.ERPItem
	err := s.read(ctx, p, func(tx store.Tx) error {
		var err error
		out, err = tx.ListERPItems(ctx, strings.TrimSpace(search))
		return err
	})
	return out, err
}

func (s *Service) CreateERPItem(ctx context.Context, p *models.Principal, in ERPItemInput) (*models.ERPItem, error) {
	in.ItemCode = strings.TrimSpace(in.ItemCode)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateNonNegative(ve, "lastBuyingPrice", in.LastBuyingPrice)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	it := &models.ERPItem{
		ID:              uuid.NewString(),
		ItemCode:        in.ItemCode,
		Description:     in.Description,
		UnitOfMeasure:   in.UnitOfMeasure,
		LastBuyingPrice: in.LastBuyingPrice,
		LastVendor:      in.LastVendor,
		CreatedAt:       s.now(),
	}
	err := s.write(ctx, p, auth.ActionManageSuppliers, audit.ActionCreate, audit.ModuleERPItem, "created", func(tx store.Tx) (string, string, error) {
		if err := tx.CreateERPItem(ctx, it); err != nil {
			return "", "", err
		}
		return it.ID, "created erp item " + it.ItemCode, nil
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}
