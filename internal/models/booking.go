package models

import "time"

type PaymentMethod string

const (
	PaymentWalletTransfer PaymentMethod = "wallet_transfer"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
)

// IsValid reports whether the method is one the payment collaborator accepts.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentWalletTransfer || m == PaymentBankTransfer
}

type Contact struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

type Stay struct {
	CheckIn  *time.Time `json:"check_in,omitempty"`
	CheckOut *time.Time `json:"check_out,omitempty"`
	Guests   int        `json:"guests"`
}

// HasDates reports whether both ends of the stay are set.
func (s Stay) HasDates() bool {
	return s.CheckIn != nil && s.CheckOut != nil
}

// BookingRequest is the immutable payload handed to the payment collaborator.
type BookingRequest struct {
	SessionID       string        `json:"session_id"`
	ServiceID       string        `json:"service_id"`
	ServiceName     string        `json:"service_name"`
	IdentityID      string        `json:"identity_id"`
	Contact         Contact       `json:"contact"`
	CheckIn         time.Time     `json:"check_in"`
	CheckOut        time.Time     `json:"check_out"`
	Guests          int           `json:"guests"`
	SpecialRequests string        `json:"special_requests,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	QuotedTotal     Money         `json:"quoted_total"`
	Currency        string        `json:"currency"`
	CreatedAt       time.Time     `json:"created_at"`
}

// PaymentOutcome is returned by the payment collaborator and not interpreted by the engine.
type PaymentOutcome struct {
	Reference    string `json:"reference"`
	Status       string `json:"status"`
	Instructions string `json:"instructions,omitempty"`
}

// PaymentOrder is the record the transfer gateway keeps for a submitted booking request.
type PaymentOrder struct {
	Reference  string        `json:"reference"`
	SessionID  string        `json:"session_id"`
	ServiceID  string        `json:"service_id"`
	IdentityID string        `json:"identity_id"`
	Method     PaymentMethod `json:"method"`
	Amount     Money         `json:"amount"`
	Currency   string        `json:"currency"`
	Status     string        `json:"status"`
	Payload    string        `json:"payload"`
	CreatedAt  time.Time     `json:"created_at"`
}
