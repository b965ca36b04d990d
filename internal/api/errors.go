package api

import (
	"encoding/json"
	"net/http"

	"travelbook/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func httpStatus(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindUpstream:
		return http.StatusBadGateway
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindValidation:
		return codes.InvalidArgument
	case domain.KindConflict:
		return codes.FailedPrecondition
	case domain.KindAuthorization:
		return codes.PermissionDenied
	case domain.KindUpstream:
		return codes.Unavailable
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindRateLimited:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

// grpcError converts a domain error into a status error, keeping the reason as message.
func grpcError(err error) error {
	kind := domain.KindOf(err)
	if kind == "" {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(grpcCode(kind), domain.ReasonOf(err))
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError is used for transport-level failures outside the domain taxonomy.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	if kind == "" {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	writeJSON(w, httpStatus(kind), map[string]string{
		"error":  string(kind),
		"reason": domain.ReasonOf(err),
	})
}
