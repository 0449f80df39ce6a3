package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
)

func setup(t *testing.T, codes ...string) (*store.Memory, *Generator) {
	t.Helper()
	s := store.NewMemory()
	err := s.InTx(context.Background(), func(tx store.Tx) error {
		for _, c := range codes {
			if err := tx.CreateSite(context.Background(), &models.Site{ID: "site-" + c, Code: c, Active: true}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return s, New(s, zerolog.Nop(), WithRetry(5, time.Millisecond))
}

var seq int

// insertRFQ commits a bare RFQ carrying number.
func insertRFQ(siteCode string) CommitFunc {
	return func(ctx context.Context, tx store.Tx, number string) error {
		seq++
		return tx.InsertRFQ(ctx, &models.RFQ{
			ID:            fmt.Sprintf("rfq-%d", seq),
			Number:        number,
			SiteID:        "site-" + siteCode,
			SiteCode:      siteCode,
			CommodityType: models.CommodityProvidedData,
			Status:        models.RFQPending,
		})
	}
}

func TestFormatAndParse(t *testing.T) {
	if got := Format("A001", 7); got != "GP-A001-007" {
		t.Errorf("Expected GP-A001-007, got %s", got)
	}
	if got := Format("A001", 1234); got != "GP-A001-1234" {
		t.Errorf("Expected GP-A001-1234, got %s", got)
	}
	tests := []struct {
		number string
		seq    int
		ok     bool
	}{
		{"GP-A001-007", 7, true},
		{"GP-A001-1000", 1000, true},
		{"GP-A001-07", 0, false},
		{"GP-A001-0x7", 0, false},
		{"GP-A002-007", 0, false},
		{"GP-A001-000", 0, false},
		{"GP-A001-+12", 0, false},
	}
	for _, tt := range tests {
		got, ok := Parse("A001", tt.number)
		if got != tt.seq || ok != tt.ok {
			t.Errorf("Parse(%q): expected (%d, %v), got (%d, %v)", tt.number, tt.seq, tt.ok, got, ok)
		}
	}
}

func TestSequentialInterleavedSites(t *testing.T) {
	_, g := setup(t, "A001", "A002")
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		a, err := g.Allocate(ctx, "site-A001", "A001", insertRFQ("A001"))
		if err != nil {
			t.Fatalf("allocate A001: %v", err)
		}
		if want := Format("A001", i); a != want {
			t.Errorf("Expected %s, got %s", want, a)
		}
		if i%3 == 0 {
			b, err := g.Allocate(ctx, "site-A002", "A002", insertRFQ("A002"))
			if err != nil {
				t.Fatalf("allocate A002: %v", err)
			}
			if want := Format("A002", i/3); b != want {
				t.Errorf("Expected %s, got %s", want, b)
			}
		}
	}
}

func TestConcurrentAllocationsAreDistinct(t *testing.T) {
	_, g := setup(t, "A001", "A002")
	ctx := context.Background()

	var mu sync.Mutex
	var commitMu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		code := "A001"
		if i%2 == 1 {
			code = "A002"
		}
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			n, err := g.Allocate(ctx, "site-"+code, code, func(ctx context.Context, tx store.Tx, number string) error {
				commitMu.Lock()
				defer commitMu.Unlock()
				return insertRFQ(code)(ctx, tx, number)
			})
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[n] {
				t.Errorf("Duplicate number %s", n)
			}
			seen[n] = true
		}(code)
	}
	wg.Wait()

	for i := 1; i <= 20; i++ {
		for _, code := range []string{"A001", "A002"} {
			if !seen[Format(code, i)] {
				t.Errorf("Expected %s to be allocated", Format(code, i))
			}
		}
	}
}

func TestMalformedNumbersAreSkipped(t *testing.T) {
	s, g := setup(t, "A001")
	ctx := context.Background()
	err := s.InTx(ctx, func(tx store.Tx) error {
		for i, n := range []string{"GP-A001-004", "GP-A001-garbage", "GP-A001-9x"} {
			if err := tx.InsertRFQ(ctx, &models.RFQ{ID: fmt.Sprintf("old-%d", i), Number: n, SiteID: "site-A001", SiteCode: "A001"}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := g.Allocate(ctx, "site-A001", "A001", insertRFQ("A001"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "GP-A001-005" {
		t.Errorf("Expected GP-A001-005, got %s", got)
	}
}

func TestConflictIsRetried(t *testing.T) {
	_, g := setup(t, "A001")
	calls := 0
	got, err := g.Allocate(context.Background(), "site-A001", "A001", func(ctx context.Context, tx store.Tx, number string) error {
		calls++
		if calls == 1 {
			return apperr.AllocationConflict("taken")
		}
		return insertRFQ("A001")(ctx, tx, number)
	})
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if calls != 2 || got != "GP-A001-001" {
		t.Errorf("Expected second attempt to commit GP-A001-001, got %s after %d calls", got, calls)
	}
}

func TestConflictRetriesAreBounded(t *testing.T) {
	_, g := setup(t, "A001")
	calls := 0
	_, err := g.Allocate(context.Background(), "site-A001", "A001", func(context.Context, store.Tx, string) error {
		calls++
		return apperr.AllocationConflict("taken")
	})
	if !errors.Is(err, apperr.ErrAllocationConflict) {
		t.Fatalf("Expected AllocationConflict, got %v", err)
	}
	if calls != 6 {
		t.Errorf("Expected 1 attempt plus 5 retries, got %d", calls)
	}
}

func TestOtherErrorsAreNotRetried(t *testing.T) {
	_, g := setup(t, "A001")
	calls := 0
	_, err := g.Allocate(context.Background(), "site-A001", "A001", func(context.Context, store.Tx, string) error {
		calls++
		return apperr.Validation("items", "at least one item is required")
	})
	if !errors.Is(err, apperr.ErrValidation) || calls != 1 {
		t.Errorf("Expected one validation failure, got %v after %d calls", err, calls)
	}
}

func TestUnknownSite(t *testing.T) {
	_, g := setup(t)
	_, err := g.Allocate(context.Background(), "nope", "A009", insertRFQ("A009"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
}
