package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type CommodityType string

const (
	CommodityProvidedData CommodityType = "provided_data"
	CommodityService      CommodityType = "service"
	CommodityTransport    CommodityType = "transport"
)

// MaterialItem is a line item for provided_data RFQs.
type MaterialItem struct {
	ItemCode         string          `json:"itemCode"`
	Description      string          `json:"description"`
	Specifications   string          `json:"specifications"`
	UnitOfMeasure    string          `json:"unitOfMeasure"`
	RequiredQuantity decimal.Decimal `json:"requiredQuantity"`
	LastBuyingPrice  decimal.Decimal `json:"lastBuyingPrice"`
	LastVendor       string          `json:"lastVendor"`
}

// ServiceItem is a material item tied to a project.
type ServiceItem struct {
	MaterialItem
	ProjectName string `json:"projectName"`
}

// TransportItem replaces quantities with a route and a trip frequency.
type TransportItem struct {
	Description  string          `json:"description"`
	FromLocation string          `json:"fromLocation"`
	ToLocation   string          `json:"toLocation"`
	VehicleSize  string          `json:"vehicleSize"`
	Load         string          `json:"load"`
	Dimensions   string          `json:"dimensions"`
	Frequency    decimal.Decimal `json:"frequency"`
}

// Item is one RFQ line. Exactly one payload is set and it matches Kind.
type Item struct {
	ID        string
	Kind      CommodityType
	Material  *MaterialItem
	Service   *ServiceItem
	Transport *TransportItem
}

// ItemFields is the flat union of every item payload field. It is the shape
// items take on the wire and in storage rows.
type ItemFields struct {
	ItemCode         string          `json:"itemCode"`
	Description      string          `json:"description"`
	Specifications   string          `json:"specifications"`
	UnitOfMeasure    string          `json:"unitOfMeasure"`
	RequiredQuantity decimal.Decimal `json:"requiredQuantity"`
	LastBuyingPrice  decimal.Decimal `json:"lastBuyingPrice"`
	LastVendor       string          `json:"lastVendor"`
	ProjectName      string          `json:"projectName"`
	FromLocation     string          `json:"fromLocation"`
	ToLocation       string          `json:"toLocation"`
	VehicleSize      string          `json:"vehicleSize"`
	Load             string          `json:"load"`
	Dimensions       string          `json:"dimensions"`
	Frequency        decimal.Decimal `json:"frequency"`
}

// NewItem builds the payload for kind from the flat field set.
func NewItem(id string, kind CommodityType, f ItemFields) (Item, error) {
	it := Item{ID: id, Kind: kind}
	material := MaterialItem{
		ItemCode:         f.ItemCode,
		Description:      f.Description,
		Specifications:   f.Specifications,
		UnitOfMeasure:    f.UnitOfMeasure,
		RequiredQuantity: f.RequiredQuantity,
		LastBuyingPrice:  f.LastBuyingPrice,
		LastVendor:       f.LastVendor,
	}
	switch kind {
	case CommodityProvidedData:
		it.Material = &material
	case CommodityService:
		it.Service = &ServiceItem{MaterialItem: material, ProjectName: f.ProjectName}
	case CommodityTransport:
		it.Transport = &TransportItem{
			Description:  f.Description,
			FromLocation: f.FromLocation,
			ToLocation:   f.ToLocation,
			VehicleSize:  f.VehicleSize,
			Load:         f.Load,
			Dimensions:   f.Dimensions,
			Frequency:    f.Frequency,
		}
	default:
		return Item{}, fmt.Errorf("unknown commodity type %q", kind)
	}
	return it, nil
}

// Fields flattens the payload back into ItemFields.
func (it Item) Fields() ItemFields {
	var f ItemFields
	switch {
	case it.Material != nil:
		f = materialFields(*it.Material)
	case it.Service != nil:
		f = materialFields(it.Service.MaterialItem)
		f.ProjectName = it.Service.ProjectName
	case it.Transport != nil:
		t := it.Transport
		f = ItemFields{
			Description:  t.Description,
			FromLocation: t.FromLocation,
			ToLocation:   t.ToLocation,
			VehicleSize:  t.VehicleSize,
			Load:         t.Load,
			Dimensions:   t.Dimensions,
			Frequency:    t.Frequency,
		}
	}
	return f
}

func materialFields(m MaterialItem) ItemFields {
	return ItemFields{
		ItemCode:         m.ItemCode,
		Description:      m.Description,
		Specifications:   m.Specifications,
		UnitOfMeasure:    m.UnitOfMeasure,
		RequiredQuantity: m.RequiredQuantity,
		LastBuyingPrice:  m.LastBuyingPrice,
		LastVendor:       m.LastVendor,
	}
}

func (it Item) Description() string {
	return it.Fields().Description
}

// Multiplier is the factor a unit rate is multiplied by: the required
// quantity for material and service items, the frequency for transport.
func (it Item) Multiplier() decimal.Decimal {
	switch {
	case it.Material != nil:
		return it.Material.RequiredQuantity
	case it.Service != nil:
		return it.Service.RequiredQuantity
	case it.Transport != nil:
		return it.Transport.Frequency
	}
	return decimal.Zero
}

func (it Item) payload() any {
	switch {
	case it.Material != nil:
		return it.Material
	case it.Service != nil:
		return it.Service
	case it.Transport != nil:
		return it.Transport
	}
	return struct{}{}
}

// MarshalJSON writes the id and kind next to the payload's own fields.
func (it Item) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(it.payload())
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["id"], _ = json.Marshal(it.ID)
	m["kind"], _ = json.Marshal(it.Kind)
	return json.Marshal(m)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var head struct {
		ID   string        `json:"id"`
		Kind CommodityType `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	var f ItemFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	built, err := NewItem(head.ID, head.Kind, f)
	if err != nil {
		return err
	}
	*it = built
	return nil
}
