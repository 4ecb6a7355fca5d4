package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Amund211/pitwall/internal/app"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/logging"
	"github.com/Amund211/pitwall/internal/reporting"
)

const maxCompareBodyBytes = 16 * 1024

type lapRefRequest struct {
	Season  int    `json:"season"`
	Event   string `json:"event"`
	Session string `json:"session"`
	Driver  string `json:"driver"`
	Lap     *int   `json:"lap"`
}

func (r lapRefRequest) toLapRef() (domain.LapRef, error) {
	key, err := domain.NewSessionKey(r.Season, r.Event, r.Session)
	if err != nil {
		return domain.LapRef{}, err
	}
	driver := strings.TrimSpace(r.Driver)
	if driver == "" {
		return domain.LapRef{}, fmt.Errorf("%w: missing driver", errInvalidParameter)
	}
	if r.Lap == nil {
		return domain.LapRef{}, fmt.Errorf("%w: missing lap", errInvalidParameter)
	}
	return domain.LapRef{Key: key, Driver: driver, LapNumber: *r.Lap}, nil
}

type compareRequest struct {
	A        *lapRefRequest `json:"a"`
	B        *lapRefRequest `json:"b"`
	Channels []string       `json:"channels"`
}

type comparisonEnvelope struct {
	Success    bool               `json:"success"`
	Comparison comparisonResponse `json:"comparison"`
}

func MakeCompareTelemetryHandler(
	compareTelemetry app.CompareTelemetry,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	requestTimeout time.Duration,
) http.HandlerFunc {
	middleware := buildSessionMiddleware("compare_telemetry", allowedOrigins, rootLogger, sentryMiddleware, requestTimeout)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		request := compareRequest{}
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCompareBodyBytes))
		if err := decoder.Decode(&request); err != nil {
			writeError(ctx, w, fmt.Errorf("%w: failed to parse request body: %w", errInvalidParameter, err))
			return
		}
		if request.A == nil || request.B == nil {
			writeError(ctx, w, fmt.Errorf("%w: both a and b are required", errInvalidParameter))
			return
		}

		a, errA := request.A.toLapRef()
		b, errB := request.B.toLapRef()
		if err := errors.Join(errA, errB); err != nil {
			writeError(ctx, w, err)
			return
		}

		channels, err := parseChannelsParam(request.Channels)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		ctx = logging.AddMetaToContext(ctx,
			slog.String("lapA", fmt.Sprintf("%s/%s/%d", a.Key.String(), a.Driver, a.LapNumber)),
			slog.String("lapB", fmt.Sprintf("%s/%s/%d", b.Key.String(), b.Driver, b.LapNumber)),
		)
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"sessionA": a.Key.String(),
			"sessionB": b.Key.String(),
		})

		comparison, err := compareTelemetry(ctx, a, b, channels)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, comparisonEnvelope{
			Success:    true,
			Comparison: comparisonToResponse(comparison),
		})
	}

	return middleware(handler)
}
