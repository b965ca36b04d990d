package access

import (
	"encoding/json"
	"testing"
	"time"

	"travelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityWith(role models.Role, status models.ApprovalStatus) *models.Identity {
	return &models.Identity{
		ID:   "id-1",
		Role: role,
		ProviderProfile: &models.ProviderProfile{
			ApprovalStatus: status,
			SubmittedAt:    time.Now(),
		},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		identity *models.Identity
		want     []Capability
	}{
		{"Anonymous", nil, []Capability{Guest}},
		{"Traveller", &models.Identity{Role: models.RoleTraveller}, []Capability{Traveller}},
		{"Admin", &models.Identity{Role: models.RoleAdmin}, []Capability{Admin}},
		{"ProviderWithoutProfile", &models.Identity{Role: models.RoleProvider}, []Capability{Traveller}},
		{"UnknownRole", &models.Identity{Role: "superuser"}, []Capability{Guest}},

		{"ProviderPending", identityWith(models.RoleProvider, models.ApprovalPending), []Capability{Traveller, PendingProvider}},
		{"ProviderApproved", identityWith(models.RoleProvider, models.ApprovalApproved), []Capability{Traveller, ActiveProvider}},
		{"ProviderRejected", identityWith(models.RoleProvider, models.ApprovalRejected), []Capability{Traveller}},
		{"TravellerWithPendingProfile", identityWith(models.RoleTraveller, models.ApprovalPending), []Capability{Traveller}},
		{"TravellerWithApprovedProfile", identityWith(models.RoleTraveller, models.ApprovalApproved), []Capability{Traveller}},
		{"TravellerWithRejectedProfile", identityWith(models.RoleTraveller, models.ApprovalRejected), []Capability{Traveller}},
		{"AdminWithPendingProfile", identityWith(models.RoleAdmin, models.ApprovalPending), []Capability{Admin}},
		{"AdminWithApprovedProfile", identityWith(models.RoleAdmin, models.ApprovalApproved), []Capability{Admin}},
		{"AdminWithRejectedProfile", identityWith(models.RoleAdmin, models.ApprovalRejected), []Capability{Admin}},
		{"ProviderUnknownStatus", identityWith(models.RoleProvider, "suspended"), []Capability{Traveller}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.identity)
			assert.Equal(t, tt.want, got.List())
			assert.Greater(t, got.Len(), 0)
		})
	}
}

func TestResolveIgnoresEmailVerification(t *testing.T) {
	verified := identityWith(models.RoleProvider, models.ApprovalApproved)
	verified.EmailVerified = true
	unverified := verified.Clone()
	unverified.EmailVerified = false

	assert.Equal(t, Resolve(verified).List(), Resolve(unverified).List())
}

func TestResolveDoesNotMutate(t *testing.T) {
	id := identityWith(models.RoleProvider, models.ApprovalPending)
	before := id.Clone()
	Resolve(id)
	assert.Equal(t, before, id)
}

func TestSetJSON(t *testing.T) {
	raw, err := json.Marshal(Resolve(identityWith(models.RoleProvider, models.ApprovalApproved)))
	require.NoError(t, err)
	assert.JSONEq(t, `["Traveller","ActiveProvider"]`, string(raw))
}
