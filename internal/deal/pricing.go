package deal

import (
	"strings"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

var invalidDealTypeMessage = func() string {
	names := make([]string, len(model.DealTypes))
	for i, t := range model.DealTypes {
		names[i] = string(t)
	}
	return "Invalid deal_type. Must be one of: " + strings.Join(names, ", ")
}()

// pricing は価格モードに応じた価格関連カラムの値。
type pricing struct {
	price      float64
	flatPrice  *float64
	percentage *float64
}

// resolvePricing は価格モードの不変条件を満たす価格関連カラムの値を決める。
// flat は flat_price = price、percentage は 0 < percentage_discount <= 100、
// event は価格をすべてクリアする。
func resolvePricing(dealType model.DealType, price float64, percentage *float64) (pricing, error) {
	switch dealType {
	case model.DealTypeFlat:
		if price < 0 {
			return pricing{}, model.NewValidationError("Invalid price for flat deal.")
		}
		if percentage != nil {
			return pricing{}, model.NewValidationError("percentage_discount is only allowed for percentage deals.")
		}
		p := price
		return pricing{price: price, flatPrice: &p}, nil

	case model.DealTypePercentage:
		if percentage == nil {
			return pricing{}, model.NewValidationError("percentage_discount is required for percentage deals.")
		}
		if *percentage <= 0 || *percentage > 100 {
			return pricing{}, model.NewValidationError("Invalid percentage_discount. Must be between 0 and 100.")
		}
		if price < 0 {
			return pricing{}, model.NewValidationError("Invalid price.")
		}
		pct := *percentage
		return pricing{price: price, percentage: &pct}, nil

	case model.DealTypeEvent:
		if percentage != nil {
			return pricing{}, model.NewValidationError("percentage_discount is only allowed for percentage deals.")
		}
		return pricing{price: 0}, nil

	default:
		return pricing{}, model.NewValidationError(invalidDealTypeMessage)
	}
}
