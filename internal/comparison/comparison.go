// Package comparison derives monetary totals from an RFQ snapshot. Every
// function is pure: results depend only on the RFQ passed in.
package comparison

import (
	"github.com/shopspring/decimal"

	"quoteflow/internal/models"
)

// ItemAmount is the quoted rate times the item's quantity (or frequency for
// transport). A missing rate counts as zero.
func ItemAmount(item models.Item, quote models.Quote) decimal.Decimal {
	rate, ok := quote.Rate(item.ID)
	if !ok {
		return decimal.Zero
	}
	return rate.Mul(item.Multiplier())
}

// QuoteTotal sums ItemAmount over every item of the RFQ.
func QuoteTotal(rfq *models.RFQ, quote models.Quote) decimal.Decimal {
	total := decimal.Zero
	for _, item := range rfq.Items {
		total = total.Add(ItemAmount(item, quote))
	}
	return total
}

// QuoteTotals returns the total of each quote, in quote order.
func QuoteTotals(rfq *models.RFQ) []decimal.Decimal {
	totals := make([]decimal.Decimal, len(rfq.Quotes))
	for i, q := range rfq.Quotes {
		totals[i] = QuoteTotal(rfq, q)
	}
	return totals
}

// Summary aggregates quote totals. With no quotes every value is zero,
// Count is 0 and LowestIndex is -1.
type Summary struct {
	Count        int             `json:"count"`
	Lowest       decimal.Decimal `json:"lowest"`
	Highest      decimal.Decimal `json:"highest"`
	Average      decimal.Decimal `json:"average"`
	LowestIndex  int             `json:"lowestIndex"`
	HighestIndex int             `json:"highestIndex"`
}

// Summarize computes lowest, highest and average quote totals. Ties resolve
// to the earliest quote. Average is rounded to two decimal places.
func Summarize(rfq *models.RFQ) Summary {
	totals := QuoteTotals(rfq)
	s := Summary{
		Count:        len(totals),
		Lowest:       decimal.Zero,
		Highest:      decimal.Zero,
		Average:      decimal.Zero,
		LowestIndex:  -1,
		HighestIndex: -1,
	}
	if len(totals) == 0 {
		return s
	}
	sum := decimal.Zero
	for i, t := range totals {
		sum = sum.Add(t)
		if s.LowestIndex == -1 || t.LessThan(s.Lowest) {
			s.Lowest, s.LowestIndex = t, i
		}
		if s.HighestIndex == -1 || t.GreaterThan(s.Highest) {
			s.Highest, s.HighestIndex = t, i
		}
	}
	s.Average = sum.Div(decimal.NewFromInt(int64(len(totals)))).Round(2)
	return s
}

// ItemBest is the cheapest quoted rate for one item.
type ItemBest struct {
	ItemID     string           `json:"itemId"`
	QuoteIndex int              `json:"quoteIndex"`
	SupplierID *string          `json:"supplierId"`
	Rate       *decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal  `json:"amount"`
}

// BestPerItem finds the lowest rate quoted for each item. Quotes without a
// rate for the item are ignored; an item nobody quoted has QuoteIndex -1.
func BestPerItem(rfq *models.RFQ) []ItemBest {
	out := make([]ItemBest, len(rfq.Items))
	for i, item := range rfq.Items {
		best := ItemBest{ItemID: item.ID, QuoteIndex: -1, Amount: decimal.Zero}
		for qi, q := range rfq.Quotes {
			rate, ok := q.Rate(item.ID)
			if !ok {
				continue
			}
			if best.Rate == nil || rate.LessThan(*best.Rate) {
				r := rate
				best.Rate = &r
				best.QuoteIndex = qi
				best.SupplierID = q.SupplierID
				best.Amount = rate.Mul(item.Multiplier())
			}
		}
		out[i] = best
	}
	return out
}

// DecisionTotal sums the final prices entered so far. Items without a final
// price contribute nothing.
func DecisionTotal(rfq *models.RFQ) decimal.Decimal {
	total := decimal.Zero
	if rfq.FinalDecision == nil {
		return total
	}
	for _, it := range rfq.FinalDecision.Items {
		if it.FinalTotalPrice != nil {
			total = total.Add(*it.FinalTotalPrice)
		}
	}
	return total
}

// EstimatedValue prices the RFQ at its last buying prices. Transport items
// carry no buying price and contribute nothing.
func EstimatedValue(rfq *models.RFQ) decimal.Decimal {
	total := decimal.Zero
	for _, item := range rfq.Items {
		total = total.Add(item.Fields().LastBuyingPrice.Mul(item.Multiplier()))
	}
	return total
}

// Row is one item line of the comparison matrix.
type Row struct {
	ItemID      string            `json:"itemId"`
	Description string            `json:"description"`
	Multiplier  decimal.Decimal   `json:"multiplier"`
	Amounts     []decimal.Decimal `json:"amounts"`
}

// Comparison bundles everything a reviewer needs to compare quotes.
type Comparison struct {
	RFQID          string            `json:"rfqId"`
	CommodityType  string            `json:"commodityType"`
	Rows           []Row             `json:"rows"`
	QuoteTotals    []decimal.Decimal `json:"quoteTotals"`
	Summary        Summary           `json:"summary"`
	BestPerItem    []ItemBest        `json:"bestPerItem"`
	DecisionTotal  decimal.Decimal   `json:"decisionTotal"`
	EstimatedValue decimal.Decimal   `json:"estimatedValue"`
}

// Build computes the full comparison for rfq.
func Build(rfq *models.RFQ) Comparison {
	rows := make([]Row, len(rfq.Items))
	for i, item := range rfq.Items {
		amounts := make([]decimal.Decimal, len(rfq.Quotes))
		for qi, q := range rfq.Quotes {
			amounts[qi] = ItemAmount(item, q)
		}
		rows[i] = Row{
			ItemID:      item.ID,
			Description: item.Description(),
			Multiplier:  item.Multiplier(),
			Amounts:     amounts,
		}
	}
	return Comparison{
		RFQID:          rfq.ID,
		CommodityType:  string(rfq.CommodityType),
		Rows:           rows,
		QuoteTotals:    QuoteTotals(rfq),
		Summary:        Summarize(rfq),
		BestPerItem:    BestPerItem(rfq),
		DecisionTotal:  DecisionTotal(rfq),
		EstimatedValue: EstimatedValue(rfq),
	}
}
