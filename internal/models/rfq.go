package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RFQStatus string

const (
	RFQDraft    RFQStatus = "draft"
	RFQPending  RFQStatus = "pending"
	RFQApproved RFQStatus = "approved"
	RFQRejected RFQStatus = "rejected"
)

// MaxQuotes is the supplier comparison ceiling per RFQ.
const MaxQuotes = 5

type RFQ struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Currency      string          `json:"currency"`
	CommodityType CommodityType   `json:"commodityType"`
	SiteID        string          `json:"siteId"`
	SiteCode      string          `json:"siteCode"`
	Status        RFQStatus       `json:"status"`
	Items         []Item          `json:"items"`
	Quotes        []Quote         `json:"quotes"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	FinalDecision *Decision       `json:"finalDecision"`
	OwnerID       string          `json:"ownerId"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	SubmittedAt   *time.Time      `json:"submittedAt"`
}

// IsFinalized reports whether the RFQ reached approved or rejected.
func (r *RFQ) IsFinalized() bool {
	if r.Status == RFQApproved || r.Status == RFQRejected {
		return true
	}
	return r.FinalDecision != nil && r.FinalDecision.IsFinal()
}

func (r *RFQ) ItemIndex(itemID string) int {
	for i := range r.Items {
		if r.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// QuoteIndexForSupplier returns the position of the quote from supplierID, or -1.
func (r *RFQ) QuoteIndexForSupplier(supplierID string) int {
	for i, q := range r.Quotes {
		if q.SupplierID != nil && *q.SupplierID == supplierID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of r.
func (r *RFQ) Clone() *RFQ {
	if r == nil {
		return nil
	}
	c := *r
	c.Items = make([]Item, len(r.Items))
	for i, it := range r.Items {
		c.Items[i] = it.clone()
	}
	c.Quotes = make([]Quote, len(r.Quotes))
	for i, q := range r.Quotes {
		c.Quotes[i] = q.Clone()
	}
	if r.FinalDecision != nil {
		c.FinalDecision = r.FinalDecision.Clone()
	}
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		c.SubmittedAt = &t
	}
	return &c
}

func (it Item) clone() Item {
	c := it
	if it.Material != nil {
		m := *it.Material
		c.Material = &m
	}
	if it.Service != nil {
		s := *it.Service
		c.Service = &s
	}
	if it.Transport != nil {
		t := *it.Transport
		c.Transport = &t
	}
	return c
}

// Footer holds the commercial terms shared by every item of a quote.
type Footer struct {
	TransportationFreight string `json:"transportationFreight"`
	PackingCharges        string `json:"packingCharges"`
	DeliveryLeadTime      string `json:"deliveryLeadTime"`
	Warranty              string `json:"warranty"`
	Currency              string `json:"currency"`
	Remarks               string `json:"remarks"`
}

// FooterFields lists the recognised footer field names.
var FooterFields = []string{
	"transportationFreight",
	"packingCharges",
	"deliveryLeadTime",
	"warranty",
	"currency",
	"remarks",
}

// Set assigns value to the named field and reports whether the name is recognised.
func (f *Footer) Set(field, value string) bool {
	switch field {
	case "transportationFreight":
		f.TransportationFreight = value
	case "packingCharges":
		f.PackingCharges = value
	case "deliveryLeadTime":
		f.DeliveryLeadTime = value
	case "warranty":
		f.Warranty = value
	case "currency":
		f.Currency = value
	case "remarks":
		f.Remarks = value
	default:
		return false
	}
	return true
}

// Quote is one supplier's submission. Rates is sparse, keyed by item id.
type Quote struct {
	ID         string                     `json:"id"`
	SupplierID *string                    `json:"supplierId"`
	Rates      map[string]decimal.Decimal `json:"rates"`
	Attachment string                     `json:"attachment"`
	Footer     Footer                     `json:"footer"`
}

func (q Quote) Clone() Quote {
	c := q
	if q.SupplierID != nil {
		s := *q.SupplierID
		c.SupplierID = &s
	}
	c.Rates = make(map[string]decimal.Decimal, len(q.Rates))
	for k, v := range q.Rates {
		c.Rates[k] = v
	}
	return c
}

// Rate returns the quoted unit rate for itemID.
func (q Quote) Rate(itemID string) (decimal.Decimal, bool) {
	r, ok := q.Rates[itemID]
	return r, ok
}

type DecisionStatus string

const (
	DecisionInProgress DecisionStatus = "in_progress"
	DecisionApproved   DecisionStatus = "approved"
	DecisionRejected   DecisionStatus = "rejected"
)

type DecisionItem struct {
	ItemID          string           `json:"itemId"`
	SupplierName    *string          `json:"supplierName"`
	FinalTotalPrice *decimal.Decimal `json:"finalTotalPrice"`
}

// Decision is the approver's per-item adjudication of an RFQ.
type Decision struct {
	Status      DecisionStatus `json:"status"`
	Items       []DecisionItem `json:"items"`
	Reason      string         `json:"reason"`
	DecidedBy   string         `json:"decidedBy"`
	StartedAt   time.Time      `json:"startedAt"`
	FinalizedAt *time.Time     `json:"finalizedAt"`
}

func (d *Decision) IsFinal() bool {
	return d.Status == DecisionApproved || d.Status == DecisionRejected
}

func (d *Decision) ItemIndex(itemID string) int {
	for i := range d.Items {
		if d.Items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

func (d *Decision) Clone() *Decision {
	c := *d
	c.Items = make([]DecisionItem, len(d.Items))
	for i, it := range d.Items {
		ci := DecisionItem{ItemID: it.ItemID}
		if it.SupplierName != nil {
			s := *it.SupplierName
			ci.SupplierName = &s
		}
		if it.FinalTotalPrice != nil {
			p := *it.FinalTotalPrice
			ci.FinalTotalPrice = &p
		}
		c.Items[i] = ci
	}
	if d.FinalizedAt != nil {
		t := *d.FinalizedAt
		c.FinalizedAt = &t
	}
	return &c
}

// RFQFilter narrows RFQ listings. Empty fields match everything.
type RFQFilter struct {
	Status        RFQStatus
	CommodityType CommodityType
	SiteID        string
	OwnerID       string
}
