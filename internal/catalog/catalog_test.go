package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
	"quoteflow/internal/audit"
	"quoteflow/internal/auth"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
)

var (
	admin  = &models.Principal{UserID: "u1", Username: "ada", Role: models.RoleAdmin}
	pricer = &models.Principal{UserID: "u2", Username: "pat", Role: models.RolePricingTeam}
	user   = &models.Principal{UserID: "u3", Username: "uma", Role: models.RoleUser}
)

func newService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s := store.NewMemory()
	return NewService(s, auth.NewGate(), nil, zerolog.Nop()), s
}

func TestSites(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	site, err := svc.CreateSite(ctx, admin, SiteInput{Code: " a001 ", Name: "Pune Plant"})
	if err != nil {
		t.Fatal(err)
	}
	if site.Code != "A001" || !site.Active {
		t.Errorf("Expected active site A001, got %+v", site)
	}

	if _, err := svc.CreateSite(ctx, admin, SiteInput{Code: "A001", Name: "Again"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected duplicate code to fail validation, got %v", err)
	}
	if _, err := svc.CreateSite(ctx, admin, SiteInput{Code: "X1", Name: "Bad"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected malformed code to fail validation, got %v", err)
	}
	if _, err := svc.CreateSite(ctx, pricer, SiteInput{Code: "A002", Name: "Chennai"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Expected pricing team to be forbidden from managing sites, got %v", err)
	}
	if _, err := svc.CreateSite(ctx, nil, SiteInput{Code: "A002", Name: "Chennai"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("Expected unauthenticated, got %v", err)
	}

	sites, err := svc.ListSites(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 1 {
		t.Fatalf("Expected 1 site, got %d", len(sites))
	}

	off, err := svc.DeactivateSite(ctx, admin, site.ID)
	if err != nil {
		t.Fatal(err)
	}
	if off.Active {
		t.Error("Expected site to be deactivated")
	}
	if _, err := svc.DeactivateSite(ctx, admin, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}

	entries, _ := audit.List(ctx, s, store.AuditFilter{Module: audit.ModuleSite})
	if len(entries) != 2 {
		t.Errorf("Expected 2 site audit entries, got %d", len(entries))
	}
}

func TestSuppliers(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateSupplier(ctx, pricer, SupplierInput{Name: "ACME", ContactEmail: "not-an-email"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected bad email to fail validation, got %v", err)
	}
	if _, err := svc.CreateSupplier(ctx, user, SupplierInput{Name: "ACME"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Expected plain user to be forbidden, got %v", err)
	}

	sup, err := svc.CreateSupplier(ctx, pricer, SupplierInput{Name: " ACME ", ContactEmail: "sales@acme.example"})
	if err != nil {
		t.Fatal(err)
	}
	if sup.Name != "ACME" {
		t.Errorf("Expected trimmed name, got %q", sup.Name)
	}

	name := "ACME Industrial"
	updated, err := svc.UpdateSupplier(ctx, pricer, sup.ID, SupplierPatch{Name: &name})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != name || updated.ContactEmail != "sales@acme.example" {
		t.Errorf("Expected partial update, got %+v", updated)
	}

	if err := svc.DeleteSupplier(ctx, pricer, sup.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteSupplier(ctx, pricer, sup.ID); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected second delete to fail validation, got %v", err)
	}

	active, _ := svc.ListSuppliers(ctx, user, false)
	all, _ := svc.ListSuppliers(ctx, user, true)
	if len(active) != 0 || len(all) != 1 {
		t.Errorf("Expected soft delete, got %d active and %d total", len(active), len(all))
	}

	got, err := svc.GetSupplier(ctx, user, sup.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Active {
		t.Error("Expected deleted supplier to be inactive")
	}
}

func TestERPItems(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateERPItem(ctx, admin, ERPItemInput{
		ItemCode:        "B-10",
		Description:     "Hex bolt M10",
		UnitOfMeasure:   "pcs",
		LastBuyingPrice: decimal.RequireFromString("4.80"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateERPItem(ctx, admin, ERPItemInput{ItemCode: "N-1", Description: "Nut", LastBuyingPrice: decimal.NewFromInt(-1)}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected negative price to fail validation, got %v", err)
	}
	if _, err := svc.CreateERPItem(ctx, admin, ERPItemInput{Description: "No code"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Expected missing item code to fail validation, got %v", err)
	}

	items, err := svc.ListERPItems(ctx, user, "bolt")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ItemCode != "B-10" {
		t.Errorf("Expected search to find B-10, got %+v", items)
	}
	if none, _ := svc.ListERPItems(ctx, user, "washer"); len(none) != 0 {
		t.Errorf("Expected no matches, got %d", len(none))
	}
}
