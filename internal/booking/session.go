// Package booking holds the booking session state machine. A session collects
// contact and stay details, keeps its quote current and hands an immutable
// request to the payment collaborator.
package booking

import (
	"strings"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"
	"travelbook/internal/pricing"
)

type Phase string

const (
	PhaseCollectingInfo  Phase = "collecting_info"
	PhaseAwaitingPayment Phase = "awaiting_payment"
)

// Session is one booking attempt. It is owned by the flow that created it and
// discarded on completion, cancellation or navigation away.
type Session struct {
	ID              string               `json:"id"`
	ServiceID       string               `json:"service_id"`
	ServiceName     string               `json:"service_name"`
	Currency        string               `json:"currency"`
	Rule            models.PricingRule   `json:"rule"`
	Phase           Phase                `json:"phase"`
	Identity        *models.Identity     `json:"identity,omitempty"`
	Contact         models.Contact       `json:"contact"`
	Stay            models.Stay          `json:"stay"`
	SpecialRequests string               `json:"special_requests,omitempty"`
	PaymentMethod   models.PaymentMethod `json:"payment_method,omitempty"`
	QuotedTotal     models.Money         `json:"quoted_total"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// StayUpdate carries the fields to change; nil fields are left as they are.
type StayUpdate struct {
	CheckIn  *time.Time
	CheckOut *time.Time
	Guests   *int
}

// ContactUpdate carries the contact fields to change; nil fields are left as they are.
type ContactUpdate struct {
	FullName *string
	Phone    *string
	Email    *string
}

// New opens a session for service. identity may be nil for an anonymous visitor.
func New(id string, service *models.Service, identity *models.Identity, now time.Time) *Session {
	s := &Session{
		ID:          id,
		ServiceID:   service.ID,
		ServiceName: service.Name,
		Currency:    service.Currency,
		Rule:        service.Pricing,
		Phase:       PhaseCollectingInfo,
		Stay:        models.Stay{Guests: 1},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.AttachIdentity(identity)
	return s
}

// AttachIdentity replaces the identity snapshot wholesale. Contact fields are
// seeded from the identity only when the session had no identity before, so
// a field the user cleared stays cleared.
func (s *Session) AttachIdentity(identity *models.Identity) {
	claimed := s.Identity == nil
	s.Identity = identity.Clone()
	if identity == nil || !claimed {
		return
	}
	if s.Contact.FullName == "" {
		s.Contact.FullName = identity.FullName
	}
	if s.Contact.Phone == "" {
		s.Contact.Phone = identity.Phone
	}
	if s.Contact.Email == "" {
		s.Contact.Email = identity.Email
	}
}

// UsableBy reports whether identityID may drive this session. Anonymous
// sessions may be picked up by anyone; attached ones only by their owner.
func (s *Session) UsableBy(identityID string) bool {
	if s.Identity == nil {
		return true
	}
	return s.Identity.ID == identityID
}

// UpdateStay applies the update and recomputes the quote before returning.
func (s *Session) UpdateStay(u StayUpdate, now time.Time) error {
	if s.Phase != PhaseCollectingInfo {
		return domain.ErrSessionLocked
	}
	if u.Guests != nil {
		if *u.Guests < 1 || (s.Rule.MaxGuests > 0 && *u.Guests > s.Rule.MaxGuests) {
			return domain.ErrGuestsOutOfRange
		}
		s.Stay.Guests = *u.Guests
	}
	if u.CheckIn != nil {
		d := dateOf(*u.CheckIn)
		s.Stay.CheckIn = &d
	}
	if u.CheckOut != nil {
		d := dateOf(*u.CheckOut)
		s.Stay.CheckOut = &d
	}

	s.requote()
	s.UpdatedAt = now
	return nil
}

func (s *Session) UpdateContact(u ContactUpdate, now time.Time) error {
	if s.Phase != PhaseCollectingInfo {
		return domain.ErrSessionLocked
	}
	if u.FullName != nil {
		s.Contact.FullName = strings.TrimSpace(*u.FullName)
	}
	if u.Phone != nil {
		s.Contact.Phone = strings.TrimSpace(*u.Phone)
	}
	if u.Email != nil {
		s.Contact.Email = strings.TrimSpace(*u.Email)
	}
	s.UpdatedAt = now
	return nil
}

func (s *Session) SetSpecialRequests(text string, now time.Time) error {
	if s.Phase != PhaseCollectingInfo {
		return domain.ErrSessionLocked
	}
	s.SpecialRequests = strings.TrimSpace(text)
	s.UpdatedAt = now
	return nil
}

// SubmitInfo moves the session to AwaitingPayment. Only the first failing
// precondition is reported: identity, then phone, then dates.
func (s *Session) SubmitInfo(now time.Time) error {
	if s.Phase != PhaseCollectingInfo {
		return domain.ErrSessionLocked
	}
	if s.Identity == nil {
		return domain.ErrMissingIdentity
	}
	if s.Contact.Phone == "" {
		return domain.ErrMissingPhone
	}
	if !s.Stay.HasDates() {
		return domain.ErrMissingDates
	}
	s.Phase = PhaseAwaitingPayment
	s.UpdatedAt = now
	return nil
}

// GoBack returns to CollectingInfo. Collected fields are kept.
func (s *Session) GoBack(now time.Time) {
	s.Phase = PhaseCollectingInfo
	s.UpdatedAt = now
}

// SelectPaymentMethod records the method picked on the payment step.
func (s *Session) SelectPaymentMethod(method models.PaymentMethod, now time.Time) error {
	if s.Phase != PhaseAwaitingPayment {
		return domain.ErrNotAwaitingPayment
	}
	if !method.IsValid() {
		return domain.ErrInvalidPaymentMethod
	}
	s.PaymentMethod = method
	s.UpdatedAt = now
	return nil
}

// ConfirmPayment assembles the booking request for the payment collaborator.
// An empty method falls back to the one already selected. The session itself
// is not changed.
func (s *Session) ConfirmPayment(method models.PaymentMethod, now time.Time) (models.BookingRequest, error) {
	if s.Phase != PhaseAwaitingPayment {
		return models.BookingRequest{}, domain.ErrNotAwaitingPayment
	}
	if method == "" {
		method = s.PaymentMethod
	}
	if method == "" {
		return models.BookingRequest{}, domain.ErrMissingPaymentMethod
	}
	if !method.IsValid() {
		return models.BookingRequest{}, domain.ErrInvalidPaymentMethod
	}
	// identity may have been swapped after submit
	if s.Identity == nil {
		return models.BookingRequest{}, domain.ErrMissingIdentity
	}
	if !s.Stay.HasDates() {
		return models.BookingRequest{}, domain.ErrMissingDates
	}

	return models.BookingRequest{
		SessionID:       s.ID,
		ServiceID:       s.ServiceID,
		ServiceName:     s.ServiceName,
		IdentityID:      s.Identity.ID,
		Contact:         s.Contact,
		CheckIn:         *s.Stay.CheckIn,
		CheckOut:        *s.Stay.CheckOut,
		Guests:          s.Stay.Guests,
		SpecialRequests: s.SpecialRequests,
		PaymentMethod:   method,
		QuotedTotal:     s.QuotedTotal,
		Currency:        s.Currency,
		CreatedAt:       now,
	}, nil
}

// DisplayTotal is the quoted total once both dates are known, otherwise the
// one-night unit price.
func (s *Session) DisplayTotal() models.Money {
	if s.Stay.HasDates() {
		return s.QuotedTotal
	}
	return s.Rule.UnitPrice()
}

// Breakdown explains the current quote. ok is false until both dates are set.
func (s *Session) Breakdown() (pricing.Breakdown, bool) {
	if !s.Stay.HasDates() {
		return pricing.Breakdown{}, false
	}
	return pricing.Calculate(s.Rule, *s.Stay.CheckIn, *s.Stay.CheckOut), true
}

func (s *Session) requote() {
	if !s.Stay.HasDates() {
		s.QuotedTotal = 0
		return
	}
	s.QuotedTotal = pricing.Quote(s.Rule, *s.Stay.CheckIn, *s.Stay.CheckOut)
}

// dateOf drops the clock part; stays are calendar dates.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Identity = s.Identity.Clone()
	if s.Stay.CheckIn != nil {
		in := *s.Stay.CheckIn
		c.Stay.CheckIn = &in
	}
	if s.Stay.CheckOut != nil {
		out := *s.Stay.CheckOut
		c.Stay.CheckOut = &out
	}
	if s.Rule.DiscountPrice != nil {
		d := *s.Rule.DiscountPrice
		c.Rule.DiscountPrice = &d
	}
	return &c
}
