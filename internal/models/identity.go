package models

import "time"

type Role string

const (
	RoleTraveller Role = "traveller"
	RoleProvider  Role = "provider"
	RoleAdmin     Role = "admin"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsDecided reports whether the status is terminal for the approval workflow.
func (s ApprovalStatus) IsDecided() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// Identity is the authenticated actor. ProviderProfile is set only for providers.
type Identity struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	Phone           string           `json:"phone,omitempty"`
	FullName        string           `json:"full_name,omitempty"`
	Role            Role             `json:"role"`
	EmailVerified   bool             `json:"email_verified"`
	ProviderProfile *ProviderProfile `json:"provider_profile,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type ProviderProfile struct {
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	SubmittedAt     time.Time      `json:"submitted_at"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty"`
}

// Clone returns a deep copy so callers can hold a snapshot that later
// writes will not reach.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	if i.ProviderProfile != nil {
		p := *i.ProviderProfile
		if i.ProviderProfile.DecidedAt != nil {
			at := *i.ProviderProfile.DecidedAt
			p.DecidedAt = &at
		}
		c.ProviderProfile = &p
	}
	return &c
}
