package models

// PriceInfo is a store price converted to the display currency.
// Initial and Final are major units (9.19), not minor units (919).
type PriceInfo struct {
	Currency         string  `json:"currency"`
	Initial          float64 `json:"initial"`
	Final            float64 `json:"final"`
	DiscountPercent  int     `json:"discountPercent"`
	FormattedFinal   string  `json:"formattedFinal"`
	FormattedInitial string  `json:"formattedInitial"`
}

// IsDiscounted returns true when the final price is below the initial price
func (p *PriceInfo) IsDiscounted() bool {
	return p != nil && p.DiscountPercent > 0 && p.Final < p.Initial
}
