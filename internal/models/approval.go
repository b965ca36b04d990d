package models

import "time"

type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

// Status maps the action onto the approval status it produces.
func (a ApprovalAction) Status() (ApprovalStatus, bool) {
	switch a {
	case ActionApprove:
		return ApprovalApproved, true
	case ActionReject:
		return ApprovalRejected, true
	default:
		return "", false
	}
}

// ApprovalDecision is written once per terminal transition and never changed.
type ApprovalDecision struct {
	ID         string         `json:"id"`
	ProviderID string         `json:"provider_id"`
	Action     ApprovalAction `json:"action"`
	Reason     string         `json:"reason,omitempty"`
	DecidedBy  string         `json:"decided_by"`
	DecidedAt  time.Time      `json:"decided_at"`
}
