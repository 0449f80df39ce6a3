package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQL(DialectSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newMem(t *testing.T) Store {
	return NewMemory()
}

var backends = map[string]func(t *testing.T) Store{
	"memory": newMem,
	"sqlite": newSQLite,
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedSite(t *testing.T, s Store, id, code string) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx Tx) error {
		return tx.CreateSite(context.Background(), &models.Site{ID: id, Code: code, Name: code, Active: true, CreatedAt: now})
	})
	if err != nil {
		t.Fatalf("seed site: %v", err)
	}
}

func sampleRFQ(t *testing.T, id, number string) *models.RFQ {
	t.Helper()
	item, err := models.NewItem(id+"-i1", models.CommodityProvidedData, models.ItemFields{
		ItemCode:         "B-10",
		Description:      "Bolt",
		RequiredQuantity: decimal.NewFromInt(10),
		LastBuyingPrice:  decimal.RequireFromString("4.75"),
	})
	if err != nil {
		t.Fatal(err)
	}
	supplier := "sup-1"
	price := decimal.RequireFromString("48.00")
	name := "ACME"
	return &models.RFQ{
		ID:            id,
		Number:        number,
		Title:         "Fasteners",
		Currency:      "INR",
		CommodityType: models.CommodityProvidedData,
		SiteID:        "site-1",
		SiteCode:      "A001",
		Status:        models.RFQPending,
		Items:         []models.Item{item},
		Quotes: []models.Quote{{
			ID:         id + "-q1",
			SupplierID: &supplier,
			Rates:      map[string]decimal.Decimal{id + "-i1": decimal.RequireFromString("5.00")},
			Footer:     models.Footer{Warranty: "12 months"},
		}},
		TotalValue: decimal.NewFromInt(50),
		FinalDecision: &models.Decision{
			Status:    models.DecisionInProgress,
			Items:     []models.DecisionItem{{ItemID: id + "-i1", SupplierName: &name, FinalTotalPrice: &price}},
			StartedAt: now,
		},
		OwnerID:   "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRFQRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedSite(t, s, "site-1", "A001")
		in := sampleRFQ(t, "r1", "GP-A001-001")

		if err := s.InTx(ctx, func(tx Tx) error { return tx.InsertRFQ(ctx, in) }); err != nil {
			t.Fatalf("insert: %v", err)
		}

		var got *models.RFQ
		err := s.InTx(ctx, func(tx Tx) error {
			var err error
			got, err = tx.GetRFQ(ctx, "r1")
			return err
		})
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Number != "GP-A001-001" || got.Status != models.RFQPending {
			t.Errorf("Expected pending GP-A001-001, got %s %s", got.Number, got.Status)
		}
		if len(got.Items) != 1 || got.Items[0].Material == nil || got.Items[0].Material.Description != "Bolt" {
			t.Fatalf("Expected material item Bolt, got %+v", got.Items)
		}
		if !got.Items[0].Multiplier().Equal(decimal.NewFromInt(10)) {
			t.Errorf("Expected quantity 10, got %s", got.Items[0].Multiplier())
		}
		if len(got.Quotes) != 1 || *got.Quotes[0].SupplierID != "sup-1" {
			t.Fatalf("Expected one quote from sup-1, got %+v", got.Quotes)
		}
		if rate := got.Quotes[0].Rates["r1-i1"]; !rate.Equal(decimal.NewFromInt(5)) {
			t.Errorf("Expected rate 5, got %s", rate)
		}
		if got.Quotes[0].Footer.Warranty != "12 months" {
			t.Errorf("Expected footer warranty, got %+v", got.Quotes[0].Footer)
		}
		d := got.FinalDecision
		if d == nil || d.Status != models.DecisionInProgress || len(d.Items) != 1 {
			t.Fatalf("Expected in-progress decision with one item, got %+v", d)
		}
		if *d.Items[0].SupplierName != "ACME" || !d.Items[0].FinalTotalPrice.Equal(decimal.NewFromInt(48)) {
			t.Errorf("Unexpected decision item %+v", d.Items[0])
		}
		if !got.CreatedAt.Equal(now) {
			t.Errorf("Expected created_at %v, got %v", now, got.CreatedAt)
		}
	})
}

func TestSaveRFQReplacesChildren(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedSite(t, s, "site-1", "A001")
		r := sampleRFQ(t, "r1", "GP-A001-001")
		if err := s.InTx(ctx, func(tx Tx) error { return tx.InsertRFQ(ctx, r) }); err != nil {
			t.Fatal(err)
		}

		r.Quotes = nil
		r.FinalDecision = nil
		r.Status = models.RFQRejected
		if err := s.InTx(ctx, func(tx Tx) error { return tx.SaveRFQ(ctx, r) }); err != nil {
			t.Fatalf("save: %v", err)
		}
		var got *models.RFQ
		s.InTx(ctx, func(tx Tx) error {
			got, _ = tx.GetRFQ(ctx, "r1")
			return nil
		})
		if len(got.Quotes) != 0 || got.FinalDecision != nil || got.Status != models.RFQRejected {
			t.Errorf("Expected children cleared and status rejected, got %+v", got)
		}
	})
}

func TestDuplicateNumberIsAllocationConflict(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedSite(t, s, "site-1", "A001")
		if err := s.InTx(ctx, func(tx Tx) error { return tx.InsertRFQ(ctx, sampleRFQ(t, "r1", "GP-A001-001")) }); err != nil {
			t.Fatal(err)
		}
		err := s.InTx(ctx, func(tx Tx) error { return tx.InsertRFQ(ctx, sampleRFQ(t, "r2", "GP-A001-001")) })
		if !errors.Is(err, apperr.ErrAllocationConflict) {
			t.Fatalf("Expected AllocationConflict, got %v", err)
		}
	})
}

func TestFailedUnitOfWorkCommitsNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedSite(t, s, "site-1", "A001")
		boom := errors.New("boom")
		err := s.InTx(ctx, func(tx Tx) error {
			if err := tx.InsertRFQ(ctx, sampleRFQ(t, "r1", "GP-A001-001")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}
		err = s.InTx(ctx, func(tx Tx) error {
			_, err := tx.GetRFQ(ctx, "r1")
			return err
		})
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected rolled-back rfq to be missing, got %v", err)
		}
	})
}

func TestListRFQsFilters(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedSite(t, s, "site-1", "A001")
		a := sampleRFQ(t, "r1", "GP-A001-001")
		b := sampleRFQ(t, "r2", "")
		b.Status = models.RFQDraft
		b.OwnerID = "user-2"
		b.CreatedAt = now.Add(time.Hour)
		err := s.InTx(ctx, func(tx Tx) error {
			if err := tx.InsertRFQ(ctx, a); err != nil {
				return err
			}
			return tx.InsertRFQ(ctx, b)
		})
		if err != nil {
			t.Fatal(err)
		}

		var all, pending, mine []models.RFQ
		s.InTx(ctx, func(tx Tx) error {
			all, _ = tx.ListRFQs(ctx, models.RFQFilter{})
			pending, _ = tx.ListRFQs(ctx, models.RFQFilter{Status: models.RFQPending})
			mine, _ = tx.ListRFQs(ctx, models.RFQFilter{OwnerID: "user-2"})
			return nil
		})
		if len(all) != 2 || all[0].ID != "r2" {
			t.Errorf("Expected 2 rfqs newest first, got %d", len(all))
		}
		if len(pending) != 1 || pending[0].ID != "r1" {
			t.Errorf("Expected only r1 pending, got %+v", pending)
		}
		if len(mine) != 1 || mine[0].ID != "r2" {
			t.Errorf("Expected only r2 for user-2, got %+v", mine)
		}
	})
}

func TestRFQNumbersByPrefix(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedSite(t, s, "site-1", "A001")
		err := s.InTx(ctx, func(tx Tx) error {
			for i, n := range []string{"GP-A001-001", "GP-A0011-001", "GP-A001-002", ""} {
				r := sampleRFQ(t, string(rune('a'+i)), n)
				if err := tx.InsertRFQ(ctx, r); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		var nums []string
		s.InTx(ctx, func(tx Tx) error {
			nums, err = tx.RFQNumbers(ctx, "GP-A001-")
			return err
		})
		if len(nums) != 2 || nums[0] != "GP-A001-001" || nums[1] != "GP-A001-002" {
			t.Errorf("Expected the two A001 numbers, got %v", nums)
		}
	})
}

func TestReferenceData(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seedSite(t, s, "site-1", "A001")
		err := s.InTx(ctx, func(tx Tx) error {
			if err := tx.CreateSite(ctx, &models.Site{ID: "dup", Code: "A001", CreatedAt: now}); !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Expected duplicate site code to fail validation, got %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}

		err = s.InTx(ctx, func(tx Tx) error {
			if err := tx.CreateSupplier(ctx, &models.Supplier{ID: "s1", Name: "ACME", Active: true, CreatedAt: now, UpdatedAt: now}); err != nil {
				return err
			}
			if err := tx.CreateSupplier(ctx, &models.Supplier{ID: "s2", Name: "Bolts Ltd", Active: false, CreatedAt: now, UpdatedAt: now}); err != nil {
				return err
			}
			return tx.CreateERPItem(ctx, &models.ERPItem{ID: "e1", ItemCode: "B-10", Description: "Hex bolt", LastBuyingPrice: decimal.RequireFromString("4.75"), CreatedAt: now})
		})
		if err != nil {
			t.Fatalf("seed reference data: %v", err)
		}

		s.InTx(ctx, func(tx Tx) error {
			active, _ := tx.ListSuppliers(ctx, false)
			if len(active) != 1 || active[0].ID != "s1" {
				t.Errorf("Expected only active supplier s1, got %+v", active)
			}
			all, _ := tx.ListSuppliers(ctx, true)
			if len(all) != 2 {
				t.Errorf("Expected 2 suppliers, got %d", len(all))
			}
			items, _ := tx.ListERPItems(ctx, "HEX")
			if len(items) != 1 || !items[0].LastBuyingPrice.Equal(decimal.RequireFromString("4.75")) {
				t.Errorf("Expected case-insensitive erp item match, got %+v", items)
			}
			if _, err := tx.GetSupplier(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
				t.Errorf("Expected NotFound, got %v", err)
			}
			return nil
		})
	})
}

func TestAuditPurge(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.InTx(ctx, func(tx Tx) error {
			for i, at := range []time.Time{now.Add(-48 * time.Hour), now} {
				e := &models.AuditEntry{Username: "admin", Action: "CREATE", Module: "rfq", RecordID: string(rune('a' + i)), CreatedAt: at}
				if err := tx.AppendAudit(ctx, e); err != nil {
					return err
				}
				if e.ID == 0 {
					t.Errorf("Expected audit id to be assigned")
				}
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		var purged int64
		s.InTx(ctx, func(tx Tx) error {
			purged, err = tx.PurgeAudit(ctx, now.Add(-24*time.Hour))
			return err
		})
		if purged != 1 {
			t.Errorf("Expected 1 purged entry, got %d", purged)
		}
		s.InTx(ctx, func(tx Tx) error {
			left, _ := tx.ListAudit(ctx, AuditFilter{Module: "rfq"})
			if len(left) != 1 || left[0].RecordID != "b" {
				t.Errorf("Expected the recent entry to remain, got %+v", left)
			}
			return nil
		})
	})
}
