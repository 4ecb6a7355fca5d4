package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/logging"
	"github.com/Amund211/pitwall/internal/reporting"
)

var errInvalidParameter = errors.New("invalid parameter")

// The client went away. Not a standard code, but the one proxies log for it.
const statusClientClosedRequest = 499

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

// statusForError maps an error from the app layer to a status code and a cause
// safe to show to the client.
//
// Order matters: provider errors wrap the more specific not found and
// unavailable errors.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidParameter):
		return http.StatusBadRequest, "invalid parameter"
	case errors.Is(err, domain.ErrCacheKeyInvalid):
		return http.StatusBadRequest, "invalid session"
	case errors.Is(err, domain.ErrInvalidChannel):
		return http.StatusBadRequest, "invalid channel"
	case errors.Is(err, domain.ErrLapNotFound):
		return http.StatusNotFound, "lap not found"
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		return http.StatusServiceUnavailable, "temporarily unavailable"
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timed out"
	case errors.Is(err, domain.ErrProviderFetchFailed), errors.Is(err, domain.ErrNormalizationFailed):
		return http.StatusBadGateway, "failed to load session"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request cancelled"
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode, cause := statusForError(err)

	logger := logging.FromContext(ctx)
	switch {
	case statusCode == http.StatusInternalServerError:
		// Not one of ours, so nobody has reported it yet
		reporting.Report(ctx, fmt.Errorf("unexpected error in handler: %w", err))
		logger.ErrorContext(ctx, "Unexpected error", "error", err.Error())
	case statusCode >= 500:
		logger.WarnContext(ctx, "Request failed", "status", statusCode, "error", err.Error())
	default:
		logger.InfoContext(ctx, "Rejected request", "status", statusCode, "error", err.Error())
	}

	writeJSON(ctx, w, statusCode, errorResponse{Success: false, Cause: cause})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"success":false,"cause":"rate limit exceeded"}`))
}
