package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/metrics"
	"travelbook/internal/models"
	"travelbook/internal/pricing"

	"github.com/rs/zerolog"
)

// CatalogService serves the bookable services loaded from services.yaml.
type CatalogService struct {
	logger   *zerolog.Logger
	services []models.Service
	byID     map[string]models.Service
	mu       sync.RWMutex
}

func NewCatalogService(services []models.Service, logger *zerolog.Logger) (*CatalogService, error) {
	s := &CatalogService{logger: logger}
	if err := s.Replace(services); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace swaps the whole catalog after validating it.
func (s *CatalogService) Replace(services []models.Service) error {
	normalized := make([]models.Service, len(services))
	for i, svc := range services {
		if svc.Pricing.PeakSeasonMultiplier == 0 {
			svc.Pricing.PeakSeasonMultiplier = models.DefaultPeakMultiplier
		}
		svc.Currency = strings.ToUpper(svc.Currency)
		normalized[i] = svc
	}
	if err := ValidateServices(normalized); err != nil {
		return err
	}

	byID := make(map[string]models.Service, len(normalized))
	for _, svc := range normalized {
		byID[svc.ID] = svc
		if d := svc.Pricing.DiscountPrice; d != nil && *d >= svc.Pricing.BasePrice {
			s.logger.Warn().Str("service_id", svc.ID).Msg("Discount price is not below base price")
		}
	}
	sort.SliceStable(normalized, func(i, j int) bool { return normalized[i].Name < normalized[j].Name })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.services = normalized
	s.byID = byID
	s.logger.Info().Int("services", len(normalized)).Msg("Catalog loaded")
	return nil
}

// ListServices returns the active services ordered by name.
func (s *CatalogService) ListServices(ctx context.Context) ([]*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Service, 0, len(s.services))
	for i := range s.services {
		if s.services[i].IsActive {
			svc := s.services[i]
			out = append(out, &svc)
		}
	}
	return out, nil
}

// GetService returns any known service, active or not.
func (s *CatalogService) GetService(ctx context.Context, id string) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrServiceNotFound
	}
	return &svc, nil
}

// Quote prices a stay at an active service.
func (s *CatalogService) Quote(ctx context.Context, id string, checkIn, checkOut time.Time) (*models.Service, pricing.Breakdown, error) {
	svc, err := s.GetService(ctx, id)
	if err != nil {
		return nil, pricing.Breakdown{}, err
	}
	if !svc.IsActive {
		return nil, pricing.Breakdown{}, domain.ErrServiceInactive
	}

	b := pricing.Calculate(svc.Pricing, checkIn, checkOut)
	metrics.IncQuote(svc.ID, b.PeakSeason)
	return svc, b, nil
}

// ValidateServices checks catalog entries for data-entry errors. A discount
// at or above the base price is accepted.
func ValidateServices(services []models.Service) error {
	seen := make(map[string]bool, len(services))
	for _, svc := range services {
		if svc.ID == "" {
			return fmt.Errorf("service %q has empty id", svc.Name)
		}
		if seen[svc.ID] {
			return fmt.Errorf("duplicate service id: %s", svc.ID)
		}
		seen[svc.ID] = true

		p := svc.Pricing
		switch {
		case svc.Currency == "":
			return fmt.Errorf("service %s: currency is required", svc.ID)
		case p.BasePrice <= 0:
			return fmt.Errorf("service %s: base_price must be positive", svc.ID)
		case p.DiscountPrice != nil && *p.DiscountPrice < 0:
			return fmt.Errorf("service %s: discount_price must not be negative", svc.ID)
		case math.IsNaN(p.WeekendSurchargeRate) || p.WeekendSurchargeRate < 0 || p.WeekendSurchargeRate > 1:
			return fmt.Errorf("service %s: weekend_surcharge_rate must be within 0..1", svc.ID)
		case math.IsNaN(p.PeakSeasonMultiplier) || p.PeakSeasonMultiplier < 1:
			return fmt.Errorf("service %s: peak_season_multiplier must be at least 1", svc.ID)
		case p.MaxGuests < 1:
			return fmt.Errorf("service %s: max_guests must be at least 1", svc.ID)
		}
	}
	return nil
}
