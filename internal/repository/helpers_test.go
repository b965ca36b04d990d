package repository

import (
	"time"

	"travelbook/internal/booking"
	"travelbook/internal/models"
)

func testSession(id string) *booking.Session {
	service := &models.Service{
		ID:       "villa-1",
		Name:     "Sea View Villa",
		Currency: "VND",
		Pricing:  models.PricingRule{BasePrice: 1_000_000, WeekendSurchargeRate: 0.3, PeakSeasonMultiplier: 1.5, MaxGuests: 4},
	}
	identity := &models.Identity{ID: "u-1", Email: "u@example.com", Phone: "+84900000001", Role: models.RoleTraveller}
	return booking.New(id, service, identity, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
}
