package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"travelbook/internal/access"
	"travelbook/internal/config"
	"travelbook/internal/models"
	"travelbook/internal/payment"
	"travelbook/internal/service"

	"github.com/rs/zerolog"
)

const healthPath = "/healthz"

type identityReader interface {
	GetIdentity(ctx context.Context, id string) (*models.Identity, error)
}

// Services are the collaborators behind the HTTP handlers.
type Services struct {
	Catalog    *service.CatalogService
	Identities *service.IdentityService
	Approvals  *service.ApprovalService
	Bookings   *service.BookingService
	Payments   *payment.TransferGateway
	// ExportDir keeps a copy of every generated report; empty disables it.
	ExportDir string
}

// HTTPServer exposes the booking API over JSON.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	auth   *HTTPAuth
	log    zerolog.Logger
	now    func() time.Time
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) (*HTTPServer, error) {
	guard, err := access.NewGuard(access.DefaultRules)
	if err != nil {
		return nil, err
	}

	srv := &HTTPServer{
		cfg:  cfg,
		svc:  svc,
		auth: NewHTTPAuth(cfg),
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	var handler http.Handler = mux
	handler = guardMiddleware(guard, handler)
	handler = identityMiddleware(cfg.IdentityHeader, svc.Identities, handler)
	handler = srv.auth.Wrap(handler)
	handler = loggingMiddleware(mux, srv.log, handler)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv, nil
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+healthPath, s.handleHealth)

	mux.HandleFunc("GET /api/v1/services", s.handleListServices)
	mux.HandleFunc("GET /api/v1/services/{id}", s.handleGetService)
	mux.HandleFunc("GET /api/v1/services/{id}/quote", s.handleQuote)

	mux.HandleFunc("POST /api/v1/identities", s.handleRegister)
	mux.HandleFunc("GET /api/v1/me", s.handleMe)
	mux.HandleFunc("GET /api/v1/me/capabilities", s.handleCapabilities)
	mux.HandleFunc("POST /api/v1/me/verify-email", s.handleVerifyEmail)
	mux.HandleFunc("GET /api/v1/me/provider", s.handleProviderStatus)
	mux.HandleFunc("GET /api/v1/provider/profile", s.handleProviderStatus)

	mux.HandleFunc("POST /api/v1/sessions", s.handleOpenSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleDiscardSession)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}/stay", s.handleUpdateStay)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}/contact", s.handleUpdateContact)
	mux.HandleFunc("POST /api/v1/sessions/{id}/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/v1/sessions/{id}/back", s.handleBack)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/payment-method", s.handleSelectPayment)
	mux.HandleFunc("POST /api/v1/sessions/{id}/payment", s.handleConfirmPayment)

	mux.HandleFunc("GET /api/v1/admin/providers/pending", s.handleListPending)
	mux.HandleFunc("POST /api/v1/admin/providers/{id}/decision", s.handleDecide)
	mux.HandleFunc("GET /api/v1/admin/decisions", s.handleListDecisions)
	mux.HandleFunc("GET /api/v1/admin/decisions/export", s.handleExportDecisions)
	mux.HandleFunc("GET /api/v1/admin/payment-orders/{reference}", s.handlePaymentOrder)
}

// Handler returns the full middleware chain, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
