package rfq

import (
	"fmt"

	"github.com/google/uuid"

	"quoteflow/internal/apperr"
	"quoteflow/internal/models"
	"quoteflow/internal/validation"
)

// buildItems validates raw item fields against the commodity type's schema
// and assigns fresh item ids.
func buildItems(ct models.CommodityType, in []models.ItemFields, requireOne bool) ([]models.Item, error) {
	if requireOne && len(in) == 0 {
		return nil, apperr.Validation("items", "at least one item is required")
	}
	if len(in) > validation.MaxItemsPerRFQ {
		return nil, apperr.Validation("items", fmt.Sprintf("at most %d items are allowed", validation.MaxItemsPerRFQ))
	}

	ve := &validation.ValidationErrors{}
	items := make([]models.Item, 0, len(in))
	for i, f := range in {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		validation.RequireField(ve, field("description"), f.Description)
		switch ct {
		case models.CommodityTransport:
			validation.RequireField(ve, field("fromLocation"), f.FromLocation)
			validation.RequireField(ve, field("toLocation"), f.ToLocation)
			validation.ValidatePositive(ve, field("frequency"), f.Frequency)
		default:
			validation.ValidatePositive(ve, field("requiredQuantity"), f.RequiredQuantity)
			validation.ValidateNonNegative(ve, field("lastBuyingPrice"), f.LastBuyingPrice)
			if ct == models.CommodityService {
				validation.RequireField(ve, field("projectName"), f.ProjectName)
			}
		}
		it, err := models.NewItem(uuid.NewString(), ct, f)
		if err != nil {
			return nil, apperr.Validation("commodityType", err.Error())
		}
		items = append(items, it)
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
