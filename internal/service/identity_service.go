package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"travelbook/internal/approval"
	"travelbook/internal/config"
	"travelbook/internal/domain"
	"travelbook/internal/events"
	"travelbook/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegisterInput is the self-registration form. Admins cannot register themselves.
type RegisterInput struct {
	Email    string      `json:"email" validate:"required,email,max=254"`
	FullName string      `json:"full_name" validate:"required,max=120"`
	Phone    string      `json:"phone" validate:"omitempty,e164"`
	Role     models.Role `json:"role" validate:"required,oneof=traveller provider"`
}

type IdentityService struct {
	store    domain.IdentityStore
	eventBus domain.EventPublisher
	validate *validator.Validate
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewIdentityService(store domain.IdentityStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *IdentityService {
	return &IdentityService{
		store:    store,
		eventBus: eventBus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// GetIdentity re-reads the identity from the store on every call.
func (s *IdentityService) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	identity, err := s.store.GetIdentity(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("identity_id", id).Msg("identity fetch failed")
		return nil, domain.Wrap(domain.ErrIdentityFetch, err)
	}
	return identity, nil
}

func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*models.Identity, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := s.validate.Struct(in); err != nil {
		return nil, domain.Invalid(domain.ErrInvalidInput.Reason, describeValidation(err))
	}

	existing, err := s.store.GetIdentityByEmail(ctx, in.Email)
	if err != nil {
		return nil, domain.Wrap(domain.ErrIdentityFetch, err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	now := s.now().UTC()
	identity := &models.Identity{
		ID:        uuid.NewString(),
		Email:     in.Email,
		Phone:     in.Phone,
		FullName:  in.FullName,
		Role:      in.Role,
		CreatedAt: now,
	}
	if in.Role == models.RoleProvider {
		identity.ProviderProfile = approval.NewProviderProfile(now)
	}

	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info().Str("identity_id", identity.ID).Str("role", string(identity.Role)).Msg("identity registered")
	if identity.Role == models.RoleProvider {
		s.publish(events.EventProviderRegistered, events.ProviderEventPayload{
			ProviderID:     identity.ID,
			Email:          identity.Email,
			FullName:       identity.FullName,
			ApprovalStatus: identity.ProviderProfile.ApprovalStatus,
			At:             now,
		})
	}
	return identity, nil
}

// VerifyEmail marks the email of id as verified. Calling it again is a no-op.
func (s *IdentityService) VerifyEmail(ctx context.Context, id string) (*models.Identity, error) {
	now := s.now().UTC()
	changed, err := s.store.MarkEmailVerified(ctx, id, now)
	if err != nil {
		return nil, domain.Wrap(domain.ErrIdentityFetch, err)
	}

	identity, err := s.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, domain.ErrIdentityNotFound
	}

	if changed {
		s.publish(events.EventEmailVerified, events.IdentityEventPayload{
			IdentityID: identity.ID,
			Email:      identity.Email,
			At:         now,
		})
	}
	return identity, nil
}

// SeedAdmins creates the configured administrators that do not exist yet.
func (s *IdentityService) SeedAdmins(ctx context.Context, admins []config.AdminSeed) error {
	for _, a := range admins {
		existing, err := s.store.GetIdentity(ctx, a.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Role != models.RoleAdmin {
				s.logger.Warn().Str("identity_id", a.ID).Msg("configured admin id belongs to a non-admin identity")
			}
			continue
		}

		err = s.store.CreateIdentity(ctx, &models.Identity{
			ID:            a.ID,
			Email:         strings.ToLower(a.Email),
			FullName:      a.FullName,
			Phone:         a.Phone,
			Role:          models.RoleAdmin,
			EmailVerified: true,
			CreatedAt:     s.now().UTC(),
		})
		if err != nil {
			return err
		}
		s.logger.Info().Str("identity_id", a.ID).Msg("admin seeded")
	}
	return nil
}

func (s *IdentityService) publish(eventType string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

// describeValidation flattens validator errors into "field: tag" pairs.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+": "+fe.Tag())
	}
	return errors.New(strings.Join(parts, ", "))
}
