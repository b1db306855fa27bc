package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"nemt-trip-service/internal/api/dto"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/platform/obs"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

const (
	TenantHeader = "X-Tenant-ID"
	maxBodyBytes = 1 << 20
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obs.LogError(obs.FromContext(r.Context()), "encode failed", err,
			slog.String("method", r.Method), slog.String("path", r.URL.Path))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, dto.ErrorResponse{Error: msg})
}

// decodeJSON reads exactly one JSON object into dst. It writes the 400 itself
// and reports false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body: "+err.Error())
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

// tenant returns the caller's tenant, answering 400 when the header is missing.
func tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(TenantHeader))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, TenantHeader+" header is required")
		return "", false
	}
	return id, true
}

func tripID(r *http.Request) string {
	return httprouter.ParamsFromContext(r.Context()).ByName("id")
}

func incidentID(r *http.Request) string {
	return httprouter.ParamsFromContext(r.Context()).ByName("incident")
}

func statusFor(err error) int {
	var (
		constraint *domain.ConstraintViolation
		capacity   *domain.CapacityViolation
		transition *domain.InvalidTransition
		duplicate  *domain.DuplicateReconciliation
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &constraint), errors.As(err, &capacity),
		errors.Is(err, domain.ErrNoCandidate), errors.Is(err, domain.ErrNotNetZero):
		return http.StatusUnprocessableEntity
	case errors.As(err, &transition), errors.As(err, &duplicate),
		errors.Is(err, domain.ErrVersionConflict), errors.Is(err, domain.ErrLockHeld),
		errors.Is(err, domain.ErrNotInProgress), errors.Is(err, domain.ErrTripNotFinished):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps a service error to a status code. Unexpected errors
// are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		obs.LogError(obs.FromContext(r.Context()), "request failed", err,
			slog.String("method", r.Method), slog.String("path", r.URL.Path))
		writeError(w, r, status, "internal server error")
		return
	}

	res := dto.ErrorResponse{Error: err.Error()}
	var cv *domain.ConstraintViolation
	if errors.As(err, &cv) {
		res.Failures = cv.Failures
	}
	writeJSON(w, r, status, res)
}
