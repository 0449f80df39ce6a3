package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewItemDispatchesOnKind(t *testing.T) {
	f := ItemFields{
		Description:      "Bolt",
		RequiredQuantity: decimal.NewFromInt(10),
		ProjectName:      "Plant 2",
		Frequency:        decimal.NewFromInt(4),
	}

	mat, err := NewItem("i1", CommodityProvidedData, f)
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	if mat.Material == nil || mat.Service != nil || mat.Transport != nil {
		t.Fatalf("Expected material payload only, got %+v", mat)
	}
	if !mat.Multiplier().Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected multiplier 10, got %s", mat.Multiplier())
	}

	svc, _ := NewItem("i2", CommodityService, f)
	if svc.Service == nil || svc.Service.ProjectName != "Plant 2" {
		t.Errorf("Expected service payload with project, got %+v", svc.Service)
	}

	tr, _ := NewItem("i3", CommodityTransport, f)
	if tr.Transport == nil {
		t.Fatal("Expected transport payload")
	}
	if !tr.Multiplier().Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected transport multiplier to be frequency 4, got %s", tr.Multiplier())
	}

	if _, err := NewItem("x", CommodityType("bogus"), f); err == nil {
		t.Error("Expected error for unknown commodity type")
	}
}

func TestItemJSONKeepsKind(t *testing.T) {
	in, _ := NewItem("i1", CommodityTransport, ItemFields{Description: "Haul", FromLocation: "A", ToLocation: "B", Frequency: decimal.NewFromInt(3)})
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != CommodityTransport || out.Transport == nil || out.Transport.ToLocation != "B" {
		t.Errorf("Expected transport item to survive encoding, got %+v", out)
	}
}

func TestFooterSetRejectsUnknownField(t *testing.T) {
	var f Footer
	if !f.Set("warranty", "12 months") || f.Warranty != "12 months" {
		t.Errorf("Expected warranty to be set")
	}
	if f.Set("discount", "5%") {
		t.Errorf("Expected unknown field to be rejected")
	}
}

func TestCloneIsDeep(t *testing.T) {
	item, _ := NewItem("i1", CommodityProvidedData, ItemFields{Description: "Bolt", RequiredQuantity: decimal.NewFromInt(1)})
	supplier := "s1"
	r := &RFQ{
		Items:         []Item{item},
		Quotes:        []Quote{{ID: "q1", SupplierID: &supplier, Rates: map[string]decimal.Decimal{"i1": decimal.NewFromInt(5)}}},
		FinalDecision: &Decision{Status: DecisionInProgress, Items: []DecisionItem{{ItemID: "i1"}}},
	}
	c := r.Clone()
	c.Items[0].Material.Description = "Nut"
	c.Quotes[0].Rates["i1"] = decimal.NewFromInt(9)
	name := "ACME"
	c.FinalDecision.Items[0].SupplierName = &name

	if r.Items[0].Material.Description != "Bolt" {
		t.Errorf("Item payload shared with clone")
	}
	if !r.Quotes[0].Rates["i1"].Equal(decimal.NewFromInt(5)) {
		t.Errorf("Rates shared with clone")
	}
	if r.FinalDecision.Items[0].SupplierName != nil {
		t.Errorf("Decision items shared with clone")
	}
}
