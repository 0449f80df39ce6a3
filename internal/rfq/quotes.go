package rfq

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
	"quoteflow/internal/store"
	"quoteflow/internal/validation"
)

// QuoteRef identifies a quote by position and id.
type QuoteRef struct {
	Index   int    `json:"index"`
	QuoteID string `json:"quoteId"`
}

// AddQuote appends an empty quote, optionally bound to a supplier.
func (s *Service) AddQuote(ctx context.Context, p *models.Principal, id string, supplierID *string) (QuoteRef, *models.RFQ, error) {
	var ref QuoteRef
	r, err := s.edit(ctx, p, id, func(tx store.Tx, r *models.RFQ) (string, error) {
		if len(r.Quotes) >= models.MaxQuotes {
			return "", apperr.CapacityExceeded("rfq %s already has %d quotes", r.ID, models.MaxQuotes)
		}
		if supplierID != nil {
			if err := checkSupplier(ctx, tx, r, *supplierID, -1); err != nil {
				return "", err
			}
		}
		q := models.Quote{
			ID:    uuid.NewString(),
			Rates: map[string]decimal.Decimal{},
		}
		if supplierID != nil {
			sid := *supplierID
			q.SupplierID = &sid
		}
		r.Quotes = append(r.Quotes, q)
		ref = QuoteRef{Index: len(r.Quotes) - 1, QuoteID: q.ID}
		return fmt.Sprintf("added quote %d", ref.Index), nil
	})
	if err != nil {
		return QuoteRef{}, nil, err
	}
	return ref, r, nil
}

// checkSupplier verifies the supplier exists, is active and does not already
// quote on r at a position other than skip.
func checkSupplier(ctx context.Context, tx store.Tx, r *models.RFQ, supplierID string, skip int) error {
	sup, err := tx.GetSupplier(ctx, supplierID)
	if err != nil {
		return err
	}
	if !sup.Active {
		return apperr.Validation("supplierId", "supplier "+sup.Name+" is inactive")
	}
	if i := r.QuoteIndexForSupplier(supplierID); i >= 0 && i != skip {
		return apperr.Validation("supplierId", "supplier "+sup.Name+" already quoted on this rfq")
	}
	return nil
}

// RemoveQuote deletes the quote at index; later quotes shift down. Decision
// entries are left as they are.
func (s *Service) RemoveQuote(ctx context.Context, p *models.Principal, id string, index int) (*models.RFQ, error) {
	return s.edit(ctx, p, id, func(_ store.Tx, r *models.RFQ) (string, error) {
		if err := checkQuoteIndex(r, index); err != nil {
			return "", err
		}
		r.Quotes = append(r.Quotes[:index], r.Quotes[index+1:]...)
		return fmt.Sprintf("removed quote %d", index), nil
	})
}

// AssignSupplier binds the quote at index to a supplier.
func (s *Service) AssignSupplier(ctx context.Context, p *models.Principal, id string, index int, supplierID string) (*models.RFQ, error) {
	if strings.TrimSpace(supplierID) == "" {
		return nil, apperr.Validation("supplierId", "is required")
	}
	return s.edit(ctx, p, id, func(tx store.Tx, r *models.RFQ) (string, error) {
		if err := checkQuoteIndex(r, index); err != nil {
			return "", err
		}
		if err := checkSupplier(ctx, tx, r, supplierID, index); err != nil {
			return "", err
		}
		sid := supplierID
		r.Quotes[index].SupplierID = &sid
		return fmt.Sprintf("assigned supplier %s to quote %d", supplierID, index), nil
	})
}

// SetItemRate records the unit rate a quote offers for one item.
func (s *Service) SetItemRate(ctx context.Context, p *models.Principal, id string, index int, itemID string, rate decimal.Decimal) (*models.RFQ, error) {
	if rate.IsNegative() {
		return nil, apperr.Validation("rate", "must be non-negative")
	}
	return s.edit(ctx, p, id, func(_ store.Tx, r *models.RFQ) (string, error) {
		if err := checkQuoteIndex(r, index); err != nil {
			return "", err
		}
		if r.ItemIndex(itemID) < 0 {
			return "", apperr.NotFound("item", itemID)
		}
		q := &r.Quotes[index]
		if q.Rates == nil {
			q.Rates = map[string]decimal.Decimal{}
		}
		q.Rates[itemID] = rate
		return fmt.Sprintf("quote %d rate for item %s set to %s", index, itemID, rate.String()), nil
	})
}

// ClearItemRate removes a quoted rate. Clearing a rate that was never set
// succeeds.
func (s *Service) ClearItemRate(ctx context.Context, p *models.Principal, id string, index int, itemID string) (*models.RFQ, error) {
	return s.edit(ctx, p, id, func(_ store.Tx, r *models.RFQ) (string, error) {
		if err := checkQuoteIndex(r, index); err != nil {
			return "", err
		}
		if r.ItemIndex(itemID) < 0 {
			return "", apperr.NotFound("item", itemID)
		}
		delete(r.Quotes[index].Rates, itemID)
		return fmt.Sprintf("quote %d rate for item %s cleared", index, itemID), nil
	})
}

// SetFooterField sets one commercial term on a quote. Values are free-form.
func (s *Service) SetFooterField(ctx context.Context, p *models.Principal, id string, index int, field, value string) (*models.RFQ, error) {
	if !isFooterField(field) {
		return nil, apperr.Validation("field", fmt.Sprintf("must be one of: %s", strings.Join(models.FooterFields, ", ")))
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateMaxLength(ve, field, value, validation.MaxStringLength)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	return s.edit(ctx, p, id, func(_ store.Tx, r *models.RFQ) (string, error) {
		if err := checkQuoteIndex(r, index); err != nil {
			return "", err
		}
		r.Quotes[index].Footer.Set(field, value)
		return fmt.Sprintf("quote %d footer %s updated", index, field), nil
	})
}

func isFooterField(field string) bool {
	for _, f := range models.FooterFields {
		if f == field {
			return true
		}
	}
	return false
}

// SetAttachment stores an opaque attachment reference on a quote. An empty
// ref removes it.
func (s *Service) SetAttachment(ctx context.Context, p *models.Principal, id string, index int, ref string) (*models.RFQ, error) {
	ve := &validation.ValidationErrors{}
	validation.ValidateMaxLength(ve, "ref", ref, 1000)
	if err := ve.Err(); err != nil {
		return nil, err
	}
	return s.edit(ctx, p, id, func(_ store.Tx, r *models.RFQ) (string, error) {
		if err := checkQuoteIndex(r, index); err != nil {
			return "", err
		}
		r.Quotes[index].Attachment = ref
		return fmt.Sprintf("quote %d attachment updated", index), nil
	})
}

func checkQuoteIndex(r *models.RFQ, index int) error {
	if index < 0 || index >= len(r.Quotes) {
		return apperr.NotFound("quote", strconv.Itoa(index))
	}
	return nil
}
