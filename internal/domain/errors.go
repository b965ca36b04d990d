package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an expected, non-fatal outcome of an engine operation.
type Kind string

const (
	KindValidation    Kind = "validation_refusal"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization_failure"
	KindUpstream      Kind = "upstream_failure"
	KindNotFound      Kind = "not_found"
	KindRateLimited   Kind = "rate_limited"
)

// Error carries a kind and a stable reason code. Two errors match under
// errors.Is when both kind and reason are equal.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Reason == e.Reason
}

func newError(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	ErrMissingIdentity      = newError(KindValidation, "missing_identity")
	ErrMissingPhone         = newError(KindValidation, "missing_phone")
	ErrMissingDates         = newError(KindValidation, "missing_dates")
	ErrMissingPaymentMethod = newError(KindValidation, "missing_payment_method")
	ErrInvalidPaymentMethod = newError(KindValidation, "invalid_payment_method")
	ErrGuestsOutOfRange     = newError(KindValidation, "guests_out_of_range")
	ErrInvalidAction        = newError(KindValidation, "invalid_action")
	ErrInvalidInput         = newError(KindValidation, "invalid_input")

	ErrSessionLocked      = newError(KindConflict, "session_locked")
	ErrNotAwaitingPayment = newError(KindConflict, "not_awaiting_payment")
	ErrAlreadyDecided     = newError(KindConflict, "already_decided")
	ErrNotAProvider       = newError(KindConflict, "not_a_provider")
	ErrEmailTaken         = newError(KindConflict, "email_taken")
	ErrServiceInactive    = newError(KindConflict, "service_inactive")

	ErrAdminRequired        = newError(KindAuthorization, "admin_required")
	ErrSessionOwnerMismatch = newError(KindAuthorization, "session_owner_mismatch")
	ErrUnknownIdentity      = newError(KindAuthorization, "unknown_identity")
	ErrRouteForbidden       = newError(KindAuthorization, "route_forbidden")

	ErrPaymentUnavailable = newError(KindUpstream, "payment_unavailable")
	ErrIdentityFetch      = newError(KindUpstream, "identity_fetch_failed")

	ErrSessionNotFound  = newError(KindNotFound, "session_not_found")
	ErrServiceNotFound  = newError(KindNotFound, "service_not_found")
	ErrIdentityNotFound = newError(KindNotFound, "identity_not_found")

	ErrTooManySessions = newError(KindRateLimited, "too_many_sessions")
)

// Wrap attaches a cause to one of the sentinel errors while keeping it matchable.
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, Reason: sentinel.Reason, Err: cause}
}

// Invalid builds a validation refusal with a custom reason.
func Invalid(reason string, cause error) error {
	return &Error{Kind: KindValidation, Reason: reason, Err: cause}
}

// KindOf returns the kind of err, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ReasonOf returns the reason code of err, or "" for errors outside the taxonomy.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
