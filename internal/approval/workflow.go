// Package approval moves provider profiles from pending to a terminal status.
package approval

import (
	"strings"
	"time"

	"travelbook/internal/access"
	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/google/uuid"
)

// NewProviderProfile is the profile every provider starts with.
func NewProviderProfile(now time.Time) *models.ProviderProfile {
	return &models.ProviderProfile{
		ApprovalStatus: models.ApprovalPending,
		SubmittedAt:    now.UTC(),
	}
}

// Decide applies action to target on behalf of actor. target is modified in
// place, so callers pass a copy of anything they share. Nothing is touched
// when an error is returned.
func Decide(
	actor, target *models.Identity,
	action models.ApprovalAction,
	reason string,
	now time.Time,
) (*models.ApprovalDecision, error) {
	if actor == nil || !access.Resolve(actor).Has(access.Admin) {
		return nil, domain.ErrAdminRequired
	}

	status, ok := action.Status()
	if !ok {
		return nil, domain.ErrInvalidAction
	}

	if target == nil {
		return nil, domain.ErrIdentityNotFound
	}
	if target.Role != models.RoleProvider || target.ProviderProfile == nil {
		return nil, domain.ErrNotAProvider
	}
	if target.ProviderProfile.ApprovalStatus != models.ApprovalPending {
		return nil, domain.ErrAlreadyDecided
	}

	decidedAt := now.UTC()
	reason = strings.TrimSpace(reason)

	profile := target.ProviderProfile
	profile.ApprovalStatus = status
	profile.DecidedAt = &decidedAt
	if action == models.ActionReject {
		profile.RejectionReason = reason
	}
	target.UpdatedAt = decidedAt

	return &models.ApprovalDecision{
		ID:         uuid.NewString(),
		ProviderID: target.ID,
		Action:     action,
		Reason:     reason,
		DecidedBy:  actor.ID,
		DecidedAt:  decidedAt,
	}, nil
}
