package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"quoteflow/internal/apperr"
	"quoteflow/internal/auth"
	"quoteflow/internal/store"
)

const sample = `
sites:
  - {code: A001, name: Pune Plant}
  - {code: a002, name: Chennai Plant}
suppliers:
  - {name: ACME, contactEmail: sales@acme.example}
  - {name: Beta Metals}
users:
  - {username: admin, password: "Quote-Flow-2026", role: admin}
  - {username: pricing, password: "Quote-Flow-2026", role: pricing_team}
erpItems:
  - itemCode: B-10
    description: Hex bolt M10
    unitOfMeasure: pcs
    lastBuyingPrice: 4.80
    lastVendor: ACME
`

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Apply(ctx, s, f, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{Sites: 2, Suppliers: 2, Users: 2, ERPItems: 1}) {
		t.Errorf("Unexpected first apply result %+v", res)
	}

	res, err = Apply(ctx, s, f, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{}) {
		t.Errorf("Expected second apply to create nothing, got %+v", res)
	}

	err = s.InTx(ctx, func(tx store.Tx) error {
		site, err := tx.GetSiteByCode(ctx, "A002")
		if err != nil {
			return err
		}
		if site.Name != "Chennai Plant" {
			t.Errorf("Expected upper-cased code lookup, got %+v", site)
		}
		u, err := tx.GetUserByUsername(ctx, "pricing")
		if err != nil {
			return err
		}
		if !auth.CheckPassword(u.PasswordHash, "Quote-Flow-2026") {
			t.Error("Expected seeded password to be hashed and checkable")
		}
		items, err := tx.ListERPItems(ctx, "B-10")
		if err != nil {
			return err
		}
		if len(items) != 1 || items[0].LastBuyingPrice.String() != "4.8" {
			t.Errorf("Unexpected erp items %+v", items)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestApplyRejectsBadData(t *testing.T) {
	ctx := context.Background()
	tests := map[string]string{
		"weak password": "users:\n  - {username: u, password: short, role: user}\n",
		"unknown role":  "users:\n  - {username: u, password: Quote-Flow-2026, role: owner}\n",
		"bad site code": "sites:\n  - {code: XYZ, name: Nowhere}\n",
		"bad price":     "erpItems:\n  - {itemCode: N-1, lastBuyingPrice: cheap}\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := Parse([]byte(doc))
			if err != nil {
				t.Fatal(err)
			}
			s := store.NewMemory()
			if _, err := Apply(ctx, s, f, zerolog.Nop()); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}

	if _, err := Parse([]byte("sitez: []\n")); err == nil {
		t.Error("Expected unknown key to be rejected")
	}
}
