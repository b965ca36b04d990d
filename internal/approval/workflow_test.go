package approval

import (
	"testing"
	"time"

	"travelbook/internal/access"
	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func admin() *models.Identity {
	return &models.Identity{ID: "admin-1", Role: models.RoleAdmin}
}

func pendingProvider() *models.Identity {
	return &models.Identity{
		ID:              "prov-1",
		Role:            models.RoleProvider,
		ProviderProfile: NewProviderProfile(now.Add(-time.Hour)),
	}
}

func TestDecide(t *testing.T) {
	t.Run("Approve", func(t *testing.T) {
		target := pendingProvider()
		decision, err := Decide(admin(), target, models.ActionApprove, "looks fine", now)
		require.NoError(t, err)

		assert.Equal(t, models.ApprovalApproved, target.ProviderProfile.ApprovalStatus)
		require.NotNil(t, target.ProviderProfile.DecidedAt)
		assert.Equal(t, now, *target.ProviderProfile.DecidedAt)
		assert.Empty(t, target.ProviderProfile.RejectionReason)

		assert.NotEmpty(t, decision.ID)
		assert.Equal(t, "prov-1", decision.ProviderID)
		assert.Equal(t, "admin-1", decision.DecidedBy)
		assert.Equal(t, models.ActionApprove, decision.Action)
	})

	t.Run("RejectStoresReason", func(t *testing.T) {
		target := pendingProvider()
		_, err := Decide(admin(), target, models.ActionReject, "  missing license ", now)
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalRejected, target.ProviderProfile.ApprovalStatus)
		assert.Equal(t, "missing license", target.ProviderProfile.RejectionReason)
	})

	t.Run("SecondDecisionConflicts", func(t *testing.T) {
		target := pendingProvider()
		_, err := Decide(admin(), target, models.ActionApprove, "", now)
		require.NoError(t, err)

		_, err = Decide(admin(), target, models.ActionReject, "changed mind", now.Add(time.Minute))
		assert.ErrorIs(t, err, domain.ErrAlreadyDecided)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
		assert.Equal(t, models.ApprovalApproved, target.ProviderProfile.ApprovalStatus)
		assert.Equal(t, now, *target.ProviderProfile.DecidedAt)
		assert.Empty(t, target.ProviderProfile.RejectionReason)
	})

	t.Run("NonAdminRefusedFirst", func(t *testing.T) {
		actors := []*models.Identity{
			nil,
			{ID: "t", Role: models.RoleTraveller},
			pendingProvider(),
		}
		for _, actor := range actors {
			target := pendingProvider()
			before := target.Clone()
			_, err := Decide(actor, target, "bogus", "", now)
			assert.ErrorIs(t, err, domain.ErrAdminRequired)
			assert.Equal(t, before, target)
		}
	})

	t.Run("InvalidAction", func(t *testing.T) {
		target := pendingProvider()
		_, err := Decide(admin(), target, "suspend", "", now)
		assert.ErrorIs(t, err, domain.ErrInvalidAction)
		assert.Equal(t, models.ApprovalPending, target.ProviderProfile.ApprovalStatus)
	})

	t.Run("MissingTarget", func(t *testing.T) {
		_, err := Decide(admin(), nil, models.ActionApprove, "", now)
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	})

	t.Run("NotAProvider", func(t *testing.T) {
		_, err := Decide(admin(), &models.Identity{ID: "t", Role: models.RoleTraveller}, models.ActionApprove, "", now)
		assert.ErrorIs(t, err, domain.ErrNotAProvider)
	})
}

func TestDecisionVisibleToResolver(t *testing.T) {
	target := pendingProvider()
	assert.Equal(t, []access.Capability{access.Traveller, access.PendingProvider}, access.Resolve(target).List())

	_, err := Decide(admin(), target, models.ActionApprove, "", now)
	require.NoError(t, err)
	assert.Equal(t, []access.Capability{access.Traveller, access.ActiveProvider}, access.Resolve(target).List())
}
