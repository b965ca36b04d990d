package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"travelbook/internal/access"
	"travelbook/internal/booking"
	"travelbook/internal/domain"
	"travelbook/internal/export"
	"travelbook/internal/models"
	"travelbook/internal/pricing"
	"travelbook/internal/service"
)

const (
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultExportDays = 30
	maxBodyBytes      = 1 << 20
)

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, domain.Invalid("invalid_"+field, err)
	}
	return t, nil
}

func callerID(r *http.Request) string {
	if identity := identityFrom(r.Context()); identity != nil {
		return identity.ID
	}
	return ""
}

// Каталог

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.svc.Catalog.ListServices(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.svc.Catalog.GetService(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	checkIn, err := parseDate("check_in", q.Get("check_in"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	checkOut, err := parseDate("check_out", q.Get("check_out"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	svc, b, err := s.svc.Catalog.Quote(r.Context(), r.PathValue("id"), checkIn, checkOut)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service_id":    svc.ID,
		"currency":      svc.Currency,
		"breakdown":     b,
		"total":         b.Total,
		"total_display": b.Total.Format(svc.Currency),
	})
}

// Identities

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !decodeBody(w, r, &in) {
		return
	}
	identity, err := s.svc.Identities.Register(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, identity)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if identity == nil {
		writeDomainError(w, domain.ErrMissingIdentity)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (s *HTTPServer) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"identity_id":  callerID(r),
		"capabilities": access.Resolve(identityFrom(r.Context())),
	})
}

func (s *HTTPServer) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	id := callerID(r)
	if id == "" {
		writeDomainError(w, domain.ErrMissingIdentity)
		return
	}
	identity, err := s.svc.Identities.VerifyEmail(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (s *HTTPServer) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	if identity == nil {
		writeDomainError(w, domain.ErrMissingIdentity)
		return
	}
	if identity.ProviderProfile == nil {
		writeDomainError(w, domain.ErrNotAProvider)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity_id":  identity.ID,
		"profile":      identity.ProviderProfile,
		"capabilities": access.Resolve(identity),
	})
}

// Sessions

type sessionView struct {
	*booking.Session
	DisplayTotal     models.Money       `json:"display_total"`
	DisplayTotalText string             `json:"display_total_text"`
	Breakdown        *pricing.Breakdown `json:"breakdown,omitempty"`
}

func viewOf(session *booking.Session) sessionView {
	v := sessionView{
		Session:          session,
		DisplayTotal:     session.DisplayTotal(),
		DisplayTotalText: session.DisplayTotal().Format(session.Currency),
	}
	if b, ok := session.Breakdown(); ok {
		v.Breakdown = &b
	}
	return v
}

func (s *HTTPServer) writeSession(w http.ResponseWriter, code int, session *booking.Session, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, code, viewOf(session))
}

func (s *HTTPServer) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ServiceID string `json:"service_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	clientKey := clientKeyHTTP(r, s.auth.keys.keyHeader())
	session, err := s.svc.Bookings.Open(r.Context(), callerID(r), strings.TrimSpace(body.ServiceID), clientKey)
	s.writeSession(w, http.StatusCreated, session, err)
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.Bookings.Get(r.Context(), callerID(r), r.PathValue("id"))
	s.writeSession(w, http.StatusOK, session, err)
}

func (s *HTTPServer) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Bookings.Discard(r.Context(), callerID(r), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleUpdateStay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CheckIn  *string `json:"check_in"`
		CheckOut *string `json:"check_out"`
		Guests   *int    `json:"guests"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	u := booking.StayUpdate{Guests: body.Guests}
	if body.CheckIn != nil {
		t, err := parseDate("check_in", *body.CheckIn)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		u.CheckIn = &t
	}
	if body.CheckOut != nil {
		t, err := parseDate("check_out", *body.CheckOut)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		u.CheckOut = &t
	}

	session, err := s.svc.Bookings.UpdateStay(r.Context(), callerID(r), r.PathValue("id"), u)
	s.writeSession(w, http.StatusOK, session, err)
}

func (s *HTTPServer) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName        *string `json:"full_name"`
		Phone           *string `json:"phone"`
		Email           *string `json:"email"`
		SpecialRequests *string `json:"special_requests"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	u := booking.ContactUpdate{FullName: body.FullName, Phone: body.Phone, Email: body.Email}
	session, err := s.svc.Bookings.UpdateContact(r.Context(), callerID(r), r.PathValue("id"), u, body.SpecialRequests)
	s.writeSession(w, http.StatusOK, session, err)
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.Bookings.Submit(r.Context(), callerID(r), r.PathValue("id"))
	s.writeSession(w, http.StatusOK, session, err)
}

func (s *HTTPServer) handleBack(w http.ResponseWriter, r *http.Request) {
	session, err := s.svc.Bookings.GoBack(r.Context(), callerID(r), r.PathValue("id"))
	s.writeSession(w, http.StatusOK, session, err)
}

type paymentBody struct {
	Method models.PaymentMethod `json:"method"`
}

func (s *HTTPServer) handleSelectPayment(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if !decodeBody(w, r, &body) {
		return
	}
	session, err := s.svc.Bookings.SelectPaymentMethod(r.Context(), callerID(r), r.PathValue("id"), body.Method)
	s.writeSession(w, http.StatusOK, session, err)
}

func (s *HTTPServer) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var body paymentBody
	if !decodeBody(w, r, &body) {
		return
	}
	req, outcome, err := s.svc.Bookings.ConfirmPayment(r.Context(), callerID(r), r.PathValue("id"), body.Method)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"request": req,
		"payment": outcome,
	})
}

// Admin

func (s *HTTPServer) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.svc.Approvals.ListPending(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": pending})
}

func (s *HTTPServer) handleDecide(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action models.ApprovalAction `json:"action"`
		Reason string                `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	identity, decision, err := s.svc.Approvals.Decide(r.Context(), identityFrom(r.Context()), r.PathValue("id"), body.Action, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": identity,
		"decision": decision,
	})
}

// parseSince reads ?since=YYYY-MM-DD, defaulting to the last 30 days.
func (s *HTTPServer) parseSince(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("since"))
	if raw == "" {
		return s.now().UTC().AddDate(0, 0, -defaultExportDays), nil
	}
	return parseDate("since", raw)
}

func (s *HTTPServer) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	since, err := s.parseSince(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	decisions, err := s.svc.Approvals.ListDecisions(r.Context(), identityFrom(r.Context()), since)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}

func (s *HTTPServer) handleExportDecisions(w http.ResponseWriter, r *http.Request) {
	since, err := s.parseSince(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	decisions, err := s.svc.Approvals.ListDecisions(r.Context(), identityFrom(r.Context()), since)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := s.now().UTC()
	if s.svc.ExportDir != "" {
		path, err := export.SaveDecisions(s.svc.ExportDir, decisions, since, now)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to archive decisions export")
		} else {
			s.log.Info().Str("path", path).Int("rows", len(decisions)).Msg("decisions export archived")
		}
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(since, now)+`"`)
	if err := export.WriteDecisions(w, decisions, since); err != nil {
		s.log.Error().Err(err).Msg("failed to stream decisions export")
	}
}

func (s *HTTPServer) handlePaymentOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Payments.Order(r.Context(), r.PathValue("reference"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if order == nil {
		writeError(w, http.StatusNotFound, "payment order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":        order,
		"instructions": s.svc.Payments.Instructions(order),
	})
}
