package models

// PricingRule belongs to a bookable service and is read-only to the booking engine.
type PricingRule struct {
	BasePrice            Money   `yaml:"base_price" json:"base_price"`
	DiscountPrice        *Money  `yaml:"discount_price" json:"discount_price,omitempty"`
	WeekendSurchargeRate float64 `yaml:"weekend_surcharge_rate" json:"weekend_surcharge_rate"`
	PeakSeasonMultiplier float64 `yaml:"peak_season_multiplier" json:"peak_season_multiplier"`
	MaxGuests            int     `yaml:"max_guests" json:"max_guests"`
}

// UnitPrice is the nightly unit: the discount price when present, otherwise the base price.
func (r PricingRule) UnitPrice() Money {
	if r.DiscountPrice != nil {
		return *r.DiscountPrice
	}
	return r.BasePrice
}

type Service struct {
	ID       string      `yaml:"id" json:"id"`
	Name     string      `yaml:"name" json:"name"`
	Location string      `yaml:"location" json:"location,omitempty"`
	Currency string      `yaml:"currency" json:"currency"`
	Pricing  PricingRule `yaml:"pricing" json:"pricing"`
	IsActive bool        `yaml:"is_active" json:"is_active"`
}
