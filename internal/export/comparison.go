// Package export renders RFQ comparisons as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"quoteflow/internal/comparison"
	"quoteflow/internal/models"
)

const (
	ComparisonSheet = "Comparison"
	DecisionSheet   = "Decision"
	ContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Filename is the attachment name for an RFQ's comparison workbook.
func Filename(r *models.RFQ) string {
	name := r.Number
	if name == "" {
		name = r.ID
	}
	return fmt.Sprintf("comparison-%s.xlsx", name)
}

// QuoteLabel names a quote column: the supplier's name when known, else its position.
func QuoteLabel(q models.Quote, index int, supplierNames map[string]string) string {
	if q.SupplierID != nil {
		if name, ok := supplierNames[*q.SupplierID]; ok && name != "" {
			return name
		}
	}
	return fmt.Sprintf("Quote %d", index+1)
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (sw *sheetWriter) set(col, row int, value any) {
	if sw.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		sw.err = err
		return
	}
	if d, ok := value.(decimal.Decimal); ok {
		value = d.InexactFloat64()
	}
	sw.err = sw.f.SetCellValue(sw.sheet, cell, value)
}

func (sw *sheetWriter) style(fromCol, fromRow, toCol, toRow, style int) {
	if sw.err != nil {
		return
	}
	from, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		sw.err = err
		return
	}
	to, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		sw.err = err
		return
	}
	sw.err = sw.f.SetCellStyle(sw.sheet, from, to, style)
}

// Workbook builds the comparison workbook for r. The first sheet holds the
// item by quote matrix with totals; a second sheet lists the decision when
// one exists.
func Workbook(r *models.RFQ, cmp comparison.Comparison, supplierNames map[string]string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ComparisonSheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	numFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		f.Close()
		return nil, err
	}

	sw := &sheetWriter{f: f, sheet: ComparisonSheet}
	sw.set(1, 1, "RFQ")
	sw.set(2, 1, r.Number)
	sw.set(1, 2, "Title")
	sw.set(2, 2, r.Title)
	sw.set(1, 3, "Commodity")
	sw.set(2, 3, string(r.CommodityType))
	sw.set(1, 4, "Currency")
	sw.set(2, 4, r.Currency)

	const headerRow = 6
	headers := []string{"Item", "Qty / Frequency"}
	for i, q := range r.Quotes {
		headers = append(headers, QuoteLabel(q, i, supplierNames))
	}
	headers = append(headers, "Best Rate", "Best Quote")
	for i, h := range headers {
		sw.set(i+1, headerRow, h)
	}
	sw.style(1, headerRow, len(headers), headerRow, headerStyle)

	row := headerRow + 1
	for i, line := range cmp.Rows {
		sw.set(1, row, line.Description)
		sw.set(2, row, line.Multiplier)
		for qi, amount := range line.Amounts {
			sw.set(3+qi, row, amount)
		}
		best := cmp.BestPerItem[i]
		col := 3 + len(r.Quotes)
		if best.Rate != nil {
			sw.set(col, row, *best.Rate)
			sw.set(col+1, row, QuoteLabel(r.Quotes[best.QuoteIndex], best.QuoteIndex, supplierNames))
		}
		row++
	}

	sw.set(1, row, "Total")
	for qi, total := range cmp.QuoteTotals {
		sw.set(3+qi, row, total)
	}
	sw.style(1, row, len(headers), row, headerStyle)
	if len(r.Quotes) > 0 {
		sw.style(3, headerRow+1, 2+len(r.Quotes), row, moneyStyle)
	}

	row += 2
	summary := []struct {
		label string
		value decimal.Decimal
	}{
		{"Lowest", cmp.Summary.Lowest},
		{"Highest", cmp.Summary.Highest},
		{"Average", cmp.Summary.Average},
		{"Estimated Value", cmp.EstimatedValue},
		{"Decision Total", cmp.DecisionTotal},
	}
	for _, s := range summary {
		sw.set(1, row, s.label)
		sw.set(3, row, s.value)
		sw.style(3, row, 3, row, moneyStyle)
		row++
	}
	if sw.err == nil {
		sw.err = f.SetColWidth(ComparisonSheet, "A", "A", 40)
	}
	if sw.err == nil && len(headers) > 1 {
		last, _ := excelize.ColumnNumberToName(len(headers))
		sw.err = f.SetColWidth(ComparisonSheet, "B", last, 15)
	}

	if sw.err == nil && r.FinalDecision != nil {
		sw.err = writeDecision(f, r, headerStyle, moneyStyle)
	}
	if sw.err != nil {
		f.Close()
		return nil, fmt.Errorf("build comparison workbook: %w", sw.err)
	}
	return f, nil
}

func writeDecision(f *excelize.File, r *models.RFQ, headerStyle, moneyStyle int) error {
	if _, err := f.NewSheet(DecisionSheet); err != nil {
		return err
	}
	d := r.FinalDecision
	sw := &sheetWriter{f: f, sheet: DecisionSheet}
	sw.set(1, 1, "Status")
	sw.set(2, 1, string(d.Status))
	sw.set(1, 2, "Decided By")
	sw.set(2, 2, d.DecidedBy)
	sw.set(1, 3, "Reason")
	sw.set(2, 3, d.Reason)

	for i, h := range []string{"Item", "Supplier", "Final Total Price"} {
		sw.set(i+1, 5, h)
	}
	sw.style(1, 5, 3, 5, headerStyle)
	row := 6
	for _, it := range d.Items {
		desc := it.ItemID
		if i := r.ItemIndex(it.ItemID); i >= 0 {
			desc = r.Items[i].Description()
		}
		sw.set(1, row, desc)
		if it.SupplierName != nil {
			sw.set(2, row, *it.SupplierName)
		}
		if it.FinalTotalPrice != nil {
			sw.set(3, row, *it.FinalTotalPrice)
			sw.style(3, row, 3, row, moneyStyle)
		}
		row++
	}
	return sw.err
}

// WriteComparison builds the workbook and writes it to w.
func WriteComparison(w io.Writer, r *models.RFQ, cmp comparison.Comparison, supplierNames map[string]string) error {
	f, err := Workbook(r, cmp, supplierNames)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}
