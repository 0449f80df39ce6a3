package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
)

var rfqColumns = []string{
	"id", "number", "title", "description", "currency", "commodity_type", "site_id", "site_code",
	"status", "total_value", "owner_id", "created_at", "updated_at", "submitted_at",
}

func numberValue(r *models.RFQ) sql.NullString {
	if r.Number == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: r.Number, Valid: true}
}

func (t *sqlTx) InsertRFQ(ctx context.Context, r *models.RFQ) error {
	_, err := t.exec(ctx, t.sb.Insert("rfqs").Columns(rfqColumns...).Values(
		r.ID, numberValue(r), r.Title, r.Description, r.Currency, string(r.CommodityType), r.SiteID, r.SiteCode,
		string(r.Status), r.TotalValue, r.OwnerID, fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt), fmtTimePtr(r.SubmittedAt),
	))
	if isUniqueViolation(err) {
		return apperr.AllocationConflict("rfq number %s already assigned", r.Number)
	}
	if err != nil {
		return wrapErr(err, "rfq", r.ID)
	}
	return t.writeChildren(ctx, r)
}

func (t *sqlTx) SaveRFQ(ctx context.Context, r *models.RFQ) error {
	res, err := t.exec(ctx, t.sb.Update("rfqs").
		Set("number", numberValue(r)).
		Set("title", r.Title).
		Set("description", r.Description).
		Set("currency", r.Currency).
		Set("commodity_type", string(r.CommodityType)).
		Set("site_id", r.SiteID).
		Set("site_code", r.SiteCode).
		Set("status", string(r.Status)).
		Set("total_value", r.TotalValue).
		Set("updated_at", fmtTime(r.UpdatedAt)).
		Set("submitted_at", fmtTimePtr(r.SubmittedAt)).
		Where(sq.Eq{"id": r.ID}))
	if isUniqueViolation(err) {
		return apperr.AllocationConflict("rfq number %s already assigned", r.Number)
	}
	if err != nil {
		return wrapErr(err, "rfq", r.ID)
	}
	if err := requireRow(res, "rfq", r.ID); err != nil {
		return err
	}
	if err := t.deleteChildren(ctx, r.ID); err != nil {
		return err
	}
	return t.writeChildren(ctx, r)
}

func (t *sqlTx) deleteChildren(ctx context.Context, rfqID string) error {
	stmts := []sq.Sqlizer{
		t.sb.Delete("rfq_decision_items").Where(sq.Eq{"rfq_id": rfqID}),
		t.sb.Delete("rfq_decisions").Where(sq.Eq{"rfq_id": rfqID}),
		t.sb.Delete("rfq_quote_rates").Where("quote_id IN (SELECT id FROM rfq_quotes WHERE rfq_id = ?)", rfqID),
		t.sb.Delete("rfq_quotes").Where(sq.Eq{"rfq_id": rfqID}),
		t.sb.Delete("rfq_items").Where(sq.Eq{"rfq_id": rfqID}),
	}
	for _, s := range stmts {
		if _, err := t.exec(ctx, s); err != nil {
			return fmt.Errorf("clear rfq %s: %w", rfqID, err)
		}
	}
	return nil
}

func (t *sqlTx) writeChildren(ctx context.Context, r *models.RFQ) error {
	for i, it := range r.Items {
		f := it.Fields()
		_, err := t.exec(ctx, t.sb.Insert("rfq_items").Columns(
			"id", "rfq_id", "position", "kind", "item_code", "description", "specifications", "unit_of_measure",
			"required_quantity", "last_buying_price", "last_vendor", "project_name", "from_location", "to_location",
			"vehicle_size", "load_desc", "dimensions", "frequency",
		).Values(
			it.ID, r.ID, i, string(it.Kind), f.ItemCode, f.Description, f.Specifications, f.UnitOfMeasure,
			f.RequiredQuantity, f.LastBuyingPrice, f.LastVendor, f.ProjectName, f.FromLocation, f.ToLocation,
			f.VehicleSize, f.Load, f.Dimensions, f.Frequency,
		))
		if err != nil {
			return fmt.Errorf("insert rfq item %s: %w", it.ID, err)
		}
	}

	for i, q := range r.Quotes {
		_, err := t.exec(ctx, t.sb.Insert("rfq_quotes").Columns(
			"id", "rfq_id", "position", "supplier_id", "attachment", "transportation_freight",
			"packing_charges", "delivery_lead_time", "warranty", "currency", "remarks",
		).Values(
			q.ID, r.ID, i, ns(q.SupplierID), q.Attachment, q.Footer.TransportationFreight,
			q.Footer.PackingCharges, q.Footer.DeliveryLeadTime, q.Footer.Warranty, q.Footer.Currency, q.Footer.Remarks,
		))
		if err != nil {
			return fmt.Errorf("insert rfq quote %s: %w", q.ID, err)
		}
		for itemID, rate := range q.Rates {
			_, err := t.exec(ctx, t.sb.Insert("rfq_quote_rates").
				Columns("quote_id", "item_id", "rate").
				Values(q.ID, itemID, rate))
			if err != nil {
				return fmt.Errorf("insert rate %s/%s: %w", q.ID, itemID, err)
			}
		}
	}

	d := r.FinalDecision
	if d == nil {
		return nil
	}
	_, err := t.exec(ctx, t.sb.Insert("rfq_decisions").
		Columns("rfq_id", "status", "reason", "decided_by", "started_at", "finalized_at").
		Values(r.ID, string(d.Status), d.Reason, d.DecidedBy, fmtTime(d.StartedAt), fmtTimePtr(d.FinalizedAt)))
	if err != nil {
		return fmt.Errorf("insert decision %s: %w", r.ID, err)
	}
	for i, di := range d.Items {
		var price decimal.NullDecimal
		if di.FinalTotalPrice != nil {
			price = decimal.NewNullDecimal(*di.FinalTotalPrice)
		}
		_, err := t.exec(ctx, t.sb.Insert("rfq_decision_items").
			Columns("rfq_id", "position", "item_id", "supplier_name", "final_total_price").
			Values(r.ID, i, di.ItemID, ns(di.SupplierName), price))
		if err != nil {
			return fmt.Errorf("insert decision item %s: %w", di.ItemID, err)
		}
	}
	return nil
}

func (t *sqlTx) GetRFQ(ctx context.Context, id string) (*models.RFQ, error) {
	var r models.RFQ
	var number, submitted sql.NullString
	var commodity, status, created, updated string
	err := t.queryRow(ctx, t.sb.Select(rfqColumns...).From("rfqs").Where(sq.Eq{"id": id}),
		&r.ID, &number, &r.Title, &r.Description, &r.Currency, &commodity, &r.SiteID, &r.SiteCode,
		&status, &r.TotalValue, &r.OwnerID, &created, &updated, &submitted)
	if err != nil {
		return nil, wrapErr(err, "rfq", id)
	}
	r.Number = number.String
	r.CommodityType = models.CommodityType(commodity)
	r.Status = models.RFQStatus(status)
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	r.SubmittedAt = parseTimePtr(submitted)

	if r.Items, err = t.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if r.Quotes, err = t.loadQuotes(ctx, id); err != nil {
		return nil, err
	}
	if r.FinalDecision, err = t.loadDecision(ctx, id); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *sqlTx) loadItems(ctx context.Context, rfqID string) ([]models.Item, error) {
	rows, err := t.query(ctx, t.sb.Select(
		"id", "kind", "item_code", "description", "specifications", "unit_of_measure", "required_quantity",
		"last_buying_price", "last_vendor", "project_name", "from_location", "to_location", "vehicle_size",
		"load_desc", "dimensions", "frequency",
	).From("rfq_items").Where(sq.Eq{"rfq_id": rfqID}).OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("load items %s: %w", rfqID, err)
	}
	defer rows.Close()
	items := []models.Item{}
	for rows.Next() {
		var id, kind string
		var f models.ItemFields
		if err := rows.Scan(&id, &kind, &f.ItemCode, &f.Description, &f.Specifications, &f.UnitOfMeasure,
			&f.RequiredQuantity, &f.LastBuyingPrice, &f.LastVendor, &f.ProjectName, &f.FromLocation,
			&f.ToLocation, &f.VehicleSize, &f.Load, &f.Dimensions, &f.Frequency); err != nil {
			return nil, err
		}
		it, err := models.NewItem(id, models.CommodityType(kind), f)
		if err != nil {
			return nil, fmt.Errorf("rfq %s item %s: %w", rfqID, id, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (t *sqlTx) loadQuotes(ctx context.Context, rfqID string) ([]models.Quote, error) {
	rows, err := t.query(ctx, t.sb.Select(
		"id", "supplier_id", "attachment", "transportation_freight", "packing_charges",
		"delivery_lead_time", "warranty", "currency", "remarks",
	).From("rfq_quotes").Where(sq.Eq{"rfq_id": rfqID}).OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("load quotes %s: %w", rfqID, err)
	}
	quotes := []models.Quote{}
	index := map[string]int{}
	for rows.Next() {
		var q models.Quote
		var supplier sql.NullString
		if err := rows.Scan(&q.ID, &supplier, &q.Attachment, &q.Footer.TransportationFreight, &q.Footer.PackingCharges,
			&q.Footer.DeliveryLeadTime, &q.Footer.Warranty, &q.Footer.Currency, &q.Footer.Remarks); err != nil {
			rows.Close()
			return nil, err
		}
		q.SupplierID = sp(supplier)
		q.Rates = map[string]decimal.Decimal{}
		index[q.ID] = len(quotes)
		quotes = append(quotes, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return quotes, nil
	}

	rateRows, err := t.query(ctx, t.sb.Select("r.quote_id", "r.item_id", "r.rate").
		From("rfq_quote_rates r").
		Join("rfq_quotes q ON q.id = r.quote_id").
		Where(sq.Eq{"q.rfq_id": rfqID}))
	if err != nil {
		return nil, fmt.Errorf("load rates %s: %w", rfqID, err)
	}
	defer rateRows.Close()
	for rateRows.Next() {
		var quoteID, itemID string
		var rate decimal.Decimal
		if err := rateRows.Scan(&quoteID, &itemID, &rate); err != nil {
			return nil, err
		}
		if i, ok := index[quoteID]; ok {
			quotes[i].Rates[itemID] = rate
		}
	}
	return quotes, rateRows.Err()
}

func (t *sqlTx) loadDecision(ctx context.Context, rfqID string) (*models.Decision, error) {
	var d models.Decision
	var status, started string
	var finalized sql.NullString
	err := t.queryRow(ctx, t.sb.Select("status", "reason", "decided_by", "started_at", "finalized_at").
		From("rfq_decisions").Where(sq.Eq{"rfq_id": rfqID}),
		&status, &d.Reason, &d.DecidedBy, &started, &finalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load decision %s: %w", rfqID, err)
	}
	d.Status = models.DecisionStatus(status)
	d.StartedAt = parseTime(started)
	d.FinalizedAt = parseTimePtr(finalized)

	rows, err := t.query(ctx, t.sb.Select("item_id", "supplier_name", "final_total_price").
		From("rfq_decision_items").Where(sq.Eq{"rfq_id": rfqID}).OrderBy("position"))
	if err != nil {
		return nil, fmt.Errorf("load decision items %s: %w", rfqID, err)
	}
	defer rows.Close()
	d.Items = []models.DecisionItem{}
	for rows.Next() {
		var di models.DecisionItem
		var supplier sql.NullString
		var price decimal.NullDecimal
		if err := rows.Scan(&di.ItemID, &supplier, &price); err != nil {
			return nil, err
		}
		di.SupplierName = sp(supplier)
		if price.Valid {
			p := price.Decimal
			di.FinalTotalPrice = &p
		}
		d.Items = append(d.Items, di)
	}
	return &d, rows.Err()
}

func (t *sqlTx) ListRFQs(ctx context.Context, f models.RFQFilter) ([]models.RFQ, error) {
	b := t.sb.Select("id").From("rfqs").OrderBy("created_at DESC", "id DESC")
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.CommodityType != "" {
		b = b.Where(sq.Eq{"commodity_type": string(f.CommodityType)})
	}
	if f.SiteID != "" {
		b = b.Where(sq.Eq{"site_id": f.SiteID})
	}
	if f.OwnerID != "" {
		b = b.Where(sq.Eq{"owner_id": f.OwnerID})
	}
	rows, err := t.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list rfqs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.RFQ, 0, len(ids))
	for _, id := range ids {
		r, err := t.GetRFQ(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (t *sqlTx) DeleteRFQ(ctx context.Context, id string) error {
	if err := t.deleteChildren(ctx, id); err != nil {
		return err
	}
	res, err := t.exec(ctx, t.sb.Delete("rfqs").Where(sq.Eq{"id": id}))
	if err != nil {
		return wrapErr(err, "rfq", id)
	}
	return requireRow(res, "rfq", id)
}

func (t *sqlTx) RFQNumbers(ctx context.Context, prefix string) ([]string, error) {
	rows, err := t.query(ctx, t.sb.Select("number").From("rfqs").
		Where(sq.Like{"number": prefix + "%"}).OrderBy("number"))
	if err != nil {
		return nil, fmt.Errorf("rfq numbers %s: %w", prefix, err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
