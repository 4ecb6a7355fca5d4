package ports

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/pitwall/internal/app"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/logging"
	"github.com/Amund211/pitwall/internal/ratelimiting"
	"github.com/Amund211/pitwall/internal/reporting"
)

func buildSessionMiddleware(
	portName string,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	requestTimeout time.Duration,
) func(http.HandlerFunc) http.HandlerFunc {
	// The limiters live as long as the handler, i.e. the process
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(4),
		ratelimiting.BurstSize(240),
	)
	// NOTE: Rate limiting based on user controlled value
	userIDLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(2),
		ratelimiting.BurstSize(120),
	)

	return ComposeMiddlewares(
		buildMetricsMiddleware(portName),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware(portName),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(
			ratelimiting.NewRequestBasedRateLimiter(ipLimiter, ratelimiting.IPKeyFunc),
			writeRateLimited,
		),
		NewRateLimitMiddleware(
			ratelimiting.NewRequestBasedRateLimiter(userIDLimiter, ratelimiting.UserIDKeyFunc),
			writeRateLimited,
		),
		NewTimeoutMiddleware(requestTimeout),
	)
}

func sessionKeyFromPath(r *http.Request) (domain.SessionKey, error) {
	rawSeason := r.PathValue("season")
	season, err := strconv.Atoi(rawSeason)
	if err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: season '%.10s' is not a number", domain.ErrCacheKeyInvalid, rawSeason)
	}
	return domain.NewSessionKey(season, r.PathValue("event"), r.PathValue("session"))
}

func addSessionMetaToContext(ctx context.Context, key domain.SessionKey) context.Context {
	ctx = logging.AddSessionToContext(ctx, key)
	return reporting.AddExtrasToContext(ctx, map[string]string{"session": key.String()})
}

// parseListParam reads a repeatable, comma separated query parameter
func parseListParam(values []string) []string {
	var parsed []string
	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				parsed = append(parsed, part)
			}
		}
	}
	return parsed
}

// parseChannelsParam defaults to every channel when none are requested
func parseChannelsParam(names []string) (domain.ChannelSet, error) {
	if len(names) == 0 {
		return domain.AllChannels(), nil
	}
	return domain.ParseChannelSet(names)
}

type sessionOverviewEnvelope struct {
	Success bool                    `json:"success"`
	Session sessionOverviewResponse `json:"session"`
}

func MakeGetSessionOverviewHandler(
	getSessionOverview app.GetSessionOverview,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	requestTimeout time.Duration,
) http.HandlerFunc {
	middleware := buildSessionMiddleware("session_overview", allowedOrigins, rootLogger, sentryMiddleware, requestTimeout)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, err := sessionKeyFromPath(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		ctx = addSessionMetaToContext(ctx, key)

		overview, err := getSessionOverview(ctx, key)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, sessionOverviewEnvelope{
			Success: true,
			Session: overviewToResponse(overview),
		})
	}

	return middleware(handler)
}

type lapsEnvelope struct {
	Success bool          `json:"success"`
	Laps    []lapResponse `json:"laps"`
}

func MakeGetLapTableHandler(
	getLapTable app.GetLapTable,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	requestTimeout time.Duration,
) http.HandlerFunc {
	middleware := buildSessionMiddleware("lap_table", allowedOrigins, rootLogger, sentryMiddleware, requestTimeout)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, err := sessionKeyFromPath(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		ctx = addSessionMetaToContext(ctx, key)

		drivers := parseListParam(r.URL.Query()["driver"])

		laps, err := getLapTable(ctx, key, drivers)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, lapsEnvelope{
			Success: true,
			Laps:    lapsToResponse(laps),
		})
	}

	return middleware(handler)
}

func MakeGetFastestLapsHandler(
	getFastestLaps app.GetFastestLaps,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	requestTimeout time.Duration,
) http.HandlerFunc {
	middleware := buildSessionMiddleware("fastest_laps", allowedOrigins, rootLogger, sentryMiddleware, requestTimeout)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, err := sessionKeyFromPath(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		ctx = addSessionMetaToContext(ctx, key)

		laps, err := getFastestLaps(ctx, key)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, lapsEnvelope{
			Success: true,
			Laps:    lapsToResponse(laps),
		})
	}

	return middleware(handler)
}

type telemetryEnvelope struct {
	Success   bool              `json:"success"`
	Telemetry telemetryResponse `json:"telemetry"`
}

func MakeGetTelemetryHandler(
	getTelemetry app.GetTelemetry,
	allowedOrigins *DomainSuffixes,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
	requestTimeout time.Duration,
) http.HandlerFunc {
	middleware := buildSessionMiddleware("telemetry", allowedOrigins, rootLogger, sentryMiddleware, requestTimeout)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		key, err := sessionKeyFromPath(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		ctx = addSessionMetaToContext(ctx, key)

		query := r.URL.Query()
		driver := strings.TrimSpace(query.Get("driver"))
		if driver == "" {
			writeError(ctx, w, fmt.Errorf("%w: missing driver", errInvalidParameter))
			return
		}
		rawLap := query.Get("lap")
		lapNumber, err := strconv.Atoi(rawLap)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: lap '%.10s' is not a number", errInvalidParameter, rawLap))
			return
		}
		channels, err := parseChannelsParam(parseListParam(query["channels"]))
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("driver", driver), slog.Int("lap", lapNumber))

		telemetry, err := getTelemetry(ctx, key, driver, lapNumber, channels)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		writeJSON(ctx, w, http.StatusOK, telemetryEnvelope{
			Success:   true,
			Telemetry: telemetryToResponse(telemetry),
		})
	}

	return middleware(handler)
}
