// Package access maps an identity onto the capability tiers it holds. It is
// the only place in the module that looks at roles and approval statuses.
package access

import (
	"encoding/json"
	"sort"

	"travelbook/internal/models"
)

type Capability string

const (
	Guest           Capability = "Guest"
	Traveller       Capability = "Traveller"
	PendingProvider Capability = "PendingProvider"
	ActiveProvider  Capability = "ActiveProvider"
	Admin           Capability = "Admin"
)

var tierOrder = map[Capability]int{
	Guest:           0,
	Traveller:       1,
	PendingProvider: 2,
	ActiveProvider:  3,
	Admin:           4,
}

// Set is an immutable capability set.
type Set struct {
	caps map[Capability]struct{}
}

func newSet(caps ...Capability) Set {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return Set{caps: m}
}

func (s Set) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// List returns the capabilities ordered from lowest to highest tier.
func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return tierOrder[out[i]] < tierOrder[out[j]] })
	return out
}

func (s Set) Len() int {
	return len(s.caps)
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// Resolve returns the capabilities of identity. A nil identity is a guest.
// The result is never empty.
func Resolve(identity *models.Identity) Set {
	if identity == nil {
		return newSet(Guest)
	}

	switch identity.Role {
	case models.RoleAdmin:
		return newSet(Admin)
	case models.RoleProvider:
		if identity.ProviderProfile == nil {
			return newSet(Traveller)
		}
		switch identity.ProviderProfile.ApprovalStatus {
		case models.ApprovalApproved:
			return newSet(Traveller, ActiveProvider)
		case models.ApprovalPending:
			return newSet(Traveller, PendingProvider)
		default:
			// rejected providers keep a plain traveller account
			return newSet(Traveller)
		}
	case models.RoleTraveller:
		return newSet(Traveller)
	default:
		return newSet(Guest)
	}
}
