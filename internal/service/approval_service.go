package service

import (
	"context"
	"errors"
	"time"

	"travelbook/internal/access"
	"travelbook/internal/approval"
	"travelbook/internal/domain"
	"travelbook/internal/events"
	"travelbook/internal/metrics"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
)

// ApprovalService runs admin decisions on provider profiles against the identity store.
type ApprovalService struct {
	store    domain.IdentityStore
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewApprovalService(store domain.IdentityStore, eventBus domain.EventPublisher, logger *zerolog.Logger) *ApprovalService {
	return &ApprovalService{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// Decide approves or rejects a pending provider. When two admins race, the
// store lets exactly one decision through and the other gets ErrAlreadyDecided.
func (s *ApprovalService) Decide(
	ctx context.Context,
	actor *models.Identity,
	providerID string,
	action models.ApprovalAction,
	reason string,
) (*models.Identity, *models.ApprovalDecision, error) {
	if !isAdmin(actor) {
		metrics.IncDecision(string(action), "forbidden")
		return nil, nil, domain.ErrAdminRequired
	}

	current, err := s.store.GetIdentity(ctx, providerID)
	if err != nil {
		return nil, nil, domain.Wrap(domain.ErrIdentityFetch, err)
	}

	// Работаем с копией: при отказе состояние в хранилище не меняется
	target := current.Clone()
	decision, err := approval.Decide(actor, target, action, reason, s.now())
	if err != nil {
		metrics.IncDecision(string(action), domain.ReasonOf(err))
		return nil, nil, err
	}

	if err := s.store.ApplyDecision(ctx, target, decision); err != nil {
		metrics.IncDecision(string(action), outcomeOf(err))
		if errors.Is(err, domain.ErrAlreadyDecided) {
			s.logger.Info().Str("provider_id", providerID).Str("actor", actor.ID).Msg("decision lost the race")
		}
		return nil, nil, err
	}

	metrics.IncDecision(string(action), "success")
	s.logger.Info().
		Str("provider_id", providerID).
		Str("action", string(action)).
		Str("decided_by", actor.ID).
		Msg("provider decision recorded")

	if s.eventBus != nil {
		err := s.eventBus.PublishJSON(events.EventProviderDecided, events.ProviderEventPayload{
			ProviderID:     target.ID,
			Email:          target.Email,
			FullName:       target.FullName,
			ApprovalStatus: target.ProviderProfile.ApprovalStatus,
			Action:         string(decision.Action),
			Reason:         decision.Reason,
			DecidedBy:      decision.DecidedBy,
			DecisionID:     decision.ID,
			At:             decision.DecidedAt,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("publish provider_decided error")
		}
	}

	return target, decision, nil
}

func (s *ApprovalService) ListPending(ctx context.Context, actor *models.Identity) ([]*models.Identity, error) {
	if !isAdmin(actor) {
		return nil, domain.ErrAdminRequired
	}
	return s.store.ListPendingProviders(ctx)
}

// ListDecisions returns decisions taken at or after since.
func (s *ApprovalService) ListDecisions(ctx context.Context, actor *models.Identity, since time.Time) ([]*models.ApprovalDecision, error) {
	if !isAdmin(actor) {
		return nil, domain.ErrAdminRequired
	}
	return s.store.ListDecisions(ctx, since)
}

func isAdmin(identity *models.Identity) bool {
	return identity != nil && access.Resolve(identity).Has(access.Admin)
}

func outcomeOf(err error) string {
	if reason := domain.ReasonOf(err); reason != "" {
		return reason
	}
	return "error"
}
