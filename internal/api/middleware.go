package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"travelbook/internal/access"
	"travelbook/internal/config"
	"travelbook/internal/domain"
	"travelbook/internal/metrics"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
)

const identityHeaderDefault = "X-Identity-ID"

type ctxKey int

const identityKey ctxKey = iota

// identityFrom returns the identity resolved for the request, nil for guests.
func identityFrom(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey).(*models.Identity)
	return identity
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *apiKeys
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		keys:    newAPIKeys(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || !a.cfg.HTTP.Enabled || r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			apiKey := strings.TrimSpace(r.Header.Get(a.keys.keyHeader()))
			extra := strings.TrimSpace(r.Header.Get(a.keys.extraHeader()))
			if err := a.keys.check(apiKey, extra, requiredPermissionHTTP(r)); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if !a.limiter.Allow(clientKeyHTTP(r, a.keys.keyHeader())) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/admin"):
		return permAdmin
	case strings.HasPrefix(path, "/api/v1/sessions"):
		return permBook
	case strings.HasPrefix(path, "/api/v1/services"):
		return permReadQuotes
	case path == "/api/v1/me/capabilities":
		return permReadCapabilities
	}
	return ""
}

// clientKeyHTTP identifies the caller by API key, falling back to the remote host.
func clientKeyHTTP(r *http.Request, keyHeader string) string {
	if apiKey := strings.TrimSpace(r.Header.Get(keyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

// identityMiddleware resolves the identity header into a fresh identity snapshot.
func identityMiddleware(header string, identities identityReader, next http.Handler) http.Handler {
	if header == "" {
		header = identityHeaderDefault
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(header))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := identities.GetIdentity(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if identity == nil {
			writeDomainError(w, domain.ErrUnknownIdentity)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

// guardMiddleware refuses /api/ routes the caller's capabilities do not reach.
func guardMiddleware(guard *access.Guard, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		caps := access.Resolve(identityFrom(r.Context()))
		if !guard.Allow(caps, r.URL.Path, r.Method) {
			writeDomainError(w, domain.ErrRouteForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(mux *http.ServeMux, logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.ObserveHTTP(route, strconv.Itoa(recorder.status), dur)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
