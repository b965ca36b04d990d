package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"travelbook/internal/booking"
	"travelbook/internal/config"
	"travelbook/internal/domain"
	"travelbook/internal/events"
	"travelbook/internal/metrics"
	"travelbook/internal/models"
	"travelbook/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService drives booking sessions on behalf of the current caller.
// identityID is empty for anonymous visitors.
type BookingService struct {
	sessions   repository.SessionRepository
	catalog    domain.ServiceCatalog
	identities domain.IdentityProvider
	payments   domain.PaymentGateway
	eventBus   domain.EventPublisher
	cfg        config.BookingConfig
	logger     *zerolog.Logger
	now        func() time.Time
	locks      *keyedMutex
}

func NewBookingService(
	sessions repository.SessionRepository,
	catalog domain.ServiceCatalog,
	identities domain.IdentityProvider,
	payments domain.PaymentGateway,
	eventBus domain.EventPublisher,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		sessions:   sessions,
		catalog:    catalog,
		identities: identities,
		payments:   payments,
		eventBus:   eventBus,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		locks:      newKeyedMutex(),
	}
}

// Open starts a new session for serviceID. clientKey identifies the caller
// for rate limiting; an empty key is not limited.
func (s *BookingService) Open(ctx context.Context, identityID, serviceID, clientKey string) (*booking.Session, error) {
	if clientKey != "" && s.cfg.SessionsPerWindow > 0 {
		allowed, err := s.sessions.CheckRateLimit(ctx, "open_session:"+clientKey, s.cfg.SessionsPerWindow, s.cfg.SessionWindow())
		if err != nil {
			s.logger.Warn().Err(err).Msg("session rate limit check failed")
		} else if !allowed {
			metrics.IncSessionTransition("open", domain.ErrTooManySessions.Reason)
			return nil, domain.ErrTooManySessions
		}
	}

	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, domain.ErrServiceInactive
	}

	identity, err := s.resolveIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}

	session := booking.New(uuid.NewString(), svc, identity, s.now().UTC())
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	metrics.IncSessionTransition("open", "success")
	s.logger.Debug().Str("session_id", session.ID).Str("service_id", svc.ID).Msg("session opened")
	return session, nil
}

// Get returns the session as stored.
func (s *BookingService) Get(ctx context.Context, identityID, sessionID string) (*booking.Session, error) {
	session, err := s.load(ctx, identityID, sessionID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *BookingService) UpdateStay(ctx context.Context, identityID, sessionID string, u booking.StayUpdate) (*booking.Session, error) {
	return s.mutate(ctx, identityID, sessionID, "update_stay", func(session *booking.Session, now time.Time) error {
		return session.UpdateStay(u, now)
	})
}

// UpdateContact changes contact fields and, when requests is not nil, the special requests.
func (s *BookingService) UpdateContact(
	ctx context.Context,
	identityID, sessionID string,
	u booking.ContactUpdate,
	requests *string,
) (*booking.Session, error) {
	return s.mutate(ctx, identityID, sessionID, "update_contact", func(session *booking.Session, now time.Time) error {
		if err := session.UpdateContact(u, now); err != nil {
			return err
		}
		if requests != nil {
			return session.SetSpecialRequests(*requests, now)
		}
		return nil
	})
}

func (s *BookingService) Submit(ctx context.Context, identityID, sessionID string) (*booking.Session, error) {
	return s.mutate(ctx, identityID, sessionID, "submit", func(session *booking.Session, now time.Time) error {
		return session.SubmitInfo(now)
	})
}

func (s *BookingService) GoBack(ctx context.Context, identityID, sessionID string) (*booking.Session, error) {
	return s.mutate(ctx, identityID, sessionID, "back", func(session *booking.Session, now time.Time) error {
		session.GoBack(now)
		return nil
	})
}

func (s *BookingService) SelectPaymentMethod(
	ctx context.Context,
	identityID, sessionID string,
	method models.PaymentMethod,
) (*booking.Session, error) {
	return s.mutate(ctx, identityID, sessionID, "select_payment", func(session *booking.Session, now time.Time) error {
		return session.SelectPaymentMethod(method, now)
	})
}

// ConfirmPayment hands the booking request to the payment collaborator. On
// success the session is discarded. When the collaborator fails the session
// stays as it was so the caller can retry.
func (s *BookingService) ConfirmPayment(
	ctx context.Context,
	identityID, sessionID string,
	method models.PaymentMethod,
) (*models.BookingRequest, models.PaymentOutcome, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.prepare(ctx, identityID, sessionID)
	if err != nil {
		return nil, models.PaymentOutcome{}, err
	}

	req, err := session.ConfirmPayment(method, s.now().UTC())
	if err != nil {
		metrics.IncSessionTransition("confirm_payment", outcomeOf(err))
		return nil, models.PaymentOutcome{}, err
	}

	outcome, err := s.payments.Submit(ctx, req)
	if err != nil {
		metrics.IncPayment(string(req.PaymentMethod), "error")
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("payment collaborator failed")
		return nil, models.PaymentOutcome{}, domain.Wrap(domain.ErrPaymentUnavailable, err)
	}
	metrics.IncPayment(string(req.PaymentMethod), "success")
	metrics.IncSessionTransition("confirm_payment", "success")

	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to discard completed session")
	}

	s.logger.Info().
		Str("session_id", sessionID).
		Str("identity_id", req.IdentityID).
		Str("reference", outcome.Reference).
		Int64("total", int64(req.QuotedTotal)).
		Msg("booking request submitted")

	if s.eventBus != nil {
		err := s.eventBus.PublishJSON(events.EventBookingRequested, events.BookingRequestedPayload{
			Request:   req,
			Reference: outcome.Reference,
			Status:    outcome.Status,
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("publish booking_requested error")
		}
	}

	return &req, outcome, nil
}

// Discard drops the session. Discarding a missing session is not an error.
func (s *BookingService) Discard(ctx context.Context, identityID, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	_, err := s.load(ctx, identityID, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	metrics.IncSessionTransition("discard", "success")
	return s.sessions.DeleteSession(ctx, sessionID)
}

// mutate applies fn to a copy of the stored session and saves the copy only
// when fn succeeds.
func (s *BookingService) mutate(
	ctx context.Context,
	identityID, sessionID, op string,
	fn func(session *booking.Session, now time.Time) error,
) (*booking.Session, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.prepare(ctx, identityID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := fn(session, s.now().UTC()); err != nil {
		metrics.IncSessionTransition(op, outcomeOf(err))
		return nil, err
	}
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, err
	}

	metrics.IncSessionTransition(op, "success")
	return session, nil
}

// prepare loads a working copy of the session with the caller's current identity attached.
func (s *BookingService) prepare(ctx context.Context, identityID, sessionID string) (*booking.Session, error) {
	stored, err := s.load(ctx, identityID, sessionID)
	if err != nil {
		return nil, err
	}
	identity, err := s.resolveIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}

	session := stored.Clone()
	if identity != nil {
		session.AttachIdentity(identity)
	}
	return session, nil
}

func (s *BookingService) load(ctx context.Context, identityID, sessionID string) (*booking.Session, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if !session.UsableBy(identityID) {
		return nil, domain.ErrSessionOwnerMismatch
	}
	return session, nil
}

// resolveIdentity returns nil for an anonymous caller.
func (s *BookingService) resolveIdentity(ctx context.Context, identityID string) (*models.Identity, error) {
	if identityID == "" {
		return nil, nil
	}
	identity, err := s.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, domain.Wrap(domain.ErrIdentityFetch, err)
	}
	if identity == nil {
		return nil, domain.ErrUnknownIdentity
	}
	return identity, nil
}

// keyedMutex serializes operations on the same session id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
