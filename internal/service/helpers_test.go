package service

import (
	"context"
	"io"
	"time"

	"travelbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func money(v int64) *models.Money {
	m := models.Money(v)
	return &m
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func villa() models.Service {
	return models.Service{
		ID:       "villa-1",
		Name:     "Sea View Villa",
		Location: "Da Nang",
		Currency: "VND",
		Pricing: models.PricingRule{
			BasePrice:            1_000_000,
			WeekendSurchargeRate: 0.2,
			PeakSeasonMultiplier: 1.5,
			MaxGuests:            4,
		},
		IsActive: true,
	}
}

func hostel() models.Service {
	return models.Service{
		ID:       "hostel-1",
		Name:     "Backpacker Hostel",
		Currency: "vnd",
		Pricing: models.PricingRule{
			BasePrice:     300_000,
			DiscountPrice: money(250_000),
			MaxGuests:     2,
		},
		IsActive: true,
	}
}

// fakeEvents records published events.
type fakeEvents struct {
	types    []string
	payloads []interface{}
}

func (f *fakeEvents) PublishJSON(eventType string, payload interface{}) error {
	f.types = append(f.types, eventType)
	f.payloads = append(f.payloads, payload)
	return nil
}

type mockIdentityStore struct {
	mock.Mock
}

func (m *mockIdentityStore) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *mockIdentityStore) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *mockIdentityStore) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *mockIdentityStore) ListPendingProviders(ctx context.Context) ([]*models.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Identity), args.Error(1)
}

func (m *mockIdentityStore) MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdentityStore) ApplyDecision(ctx context.Context, target *models.Identity, decision *models.ApprovalDecision) error {
	return m.Called(ctx, target, decision).Error(0)
}

func (m *mockIdentityStore) ListDecisions(ctx context.Context, since time.Time) ([]*models.ApprovalDecision, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ApprovalDecision), args.Error(1)
}

func admin() *models.Identity {
	return &models.Identity{ID: "admin-1", Email: "admin@travelbook.vn", Role: models.RoleAdmin}
}

func pendingProvider() *models.Identity {
	return &models.Identity{
		ID:    "prov-1",
		Email: "host@example.com",
		Role:  models.RoleProvider,
		ProviderProfile: &models.ProviderProfile{
			ApprovalStatus: models.ApprovalPending,
			SubmittedAt:    date("2025-01-01"),
		},
	}
}
