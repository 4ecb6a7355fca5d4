package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/pitwall/internal/adapters/cache"
	"github.com/Amund211/pitwall/internal/adapters/sessionprovider"
	"github.com/Amund211/pitwall/internal/adapters/sessionstore"
	"github.com/Amund211/pitwall/internal/app"
	"github.com/Amund211/pitwall/internal/config"
	"github.com/Amund211/pitwall/internal/logging"
	"github.com/Amund211/pitwall/internal/normalizer"
	"github.com/Amund211/pitwall/internal/ports"
	"github.com/Amund211/pitwall/internal/reporting"
	"github.com/Amund211/pitwall/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	_ "golang.org/x/crypto/x509roots/fallback"
)

const PROD_DOMAIN_SUFFIX = "pitwall.dev"
const STAGING_DOMAIN_SUFFIX = "pitwall-web.pages.dev"

const shutdownTimeout = 15 * time.Second

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(
		logging.NewTraceCorrelationLogHandler(slog.NewJSONHandler(os.Stdout, nil)),
	).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if config.OTelEnabled() {
		sampleRatio := 1.0
		if config.IsProduction() {
			sampleRatio = 0.1
		}
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, "pitwall", sampleRatio)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	provider, err := sessionprovider.NewSessionProviderOrMock(config, httpClient)
	if err != nil {
		fail("Failed to initialize session provider", "error", err.Error())
	}
	logger.Info("Initialized session provider")

	store, err := sessionstore.NewSessionStoreFromConfig(ctx, config, logger.With("component", "sessionstore"))
	if err != nil {
		fail("Failed to initialize session store", "error", err.Error())
	}

	loadSession := app.BuildLoadSession(store, provider, normalizer.NewNormalizer(config.TelemetryDownsample()))

	sessionCache, err := cache.NewSessionCache(
		loadSession,
		cache.Options{
			MaxAge:        config.CacheMaxAge(),
			BudgetBytes:   config.CacheBudgetBytes(),
			EvictInterval: config.CacheEvictInterval(),
			LoadTimeout:   config.LoadTimeout(),
		},
		time.Now,
	)
	if err != nil {
		fail("Failed to initialize session cache", "error", err.Error())
	}
	go sessionCache.Start()
	defer sessionCache.Stop()
	logger.Info("Initialized session cache")

	allowedOrigins, err := ports.NewDomainSuffixes(PROD_DOMAIN_SUFFIX, STAGING_DOMAIN_SUFFIX)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	getSessionOverview := app.BuildGetSessionOverview(sessionCache)
	getLapTable := app.BuildGetLapTable(sessionCache)
	getFastestLaps := app.BuildGetFastestLaps(sessionCache)
	getTelemetry := app.BuildGetTelemetry(sessionCache)
	compareTelemetry := app.BuildCompareTelemetry(sessionCache)

	requestTimeout := config.RequestTimeout()
	mux := http.NewServeMux()

	mux.HandleFunc(
		"OPTIONS /v1/sessions/{season}/{event}/{session}",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/sessions/{season}/{event}/{session}",
		ports.MakeGetSessionOverviewHandler(
			getSessionOverview,
			allowedOrigins,
			logger.With("port", "sessionoverview"),
			sentryMiddleware,
			requestTimeout,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/sessions/{season}/{event}/{session}/laps",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/sessions/{season}/{event}/{session}/laps",
		ports.MakeGetLapTableHandler(
			getLapTable,
			allowedOrigins,
			logger.With("port", "laptable"),
			sentryMiddleware,
			requestTimeout,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/sessions/{season}/{event}/{session}/fastest-laps",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/sessions/{season}/{event}/{session}/fastest-laps",
		ports.MakeGetFastestLapsHandler(
			getFastestLaps,
			allowedOrigins,
			logger.With("port", "fastestlaps"),
			sentryMiddleware,
			requestTimeout,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/sessions/{season}/{event}/{session}/telemetry",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"GET /v1/sessions/{season}/{event}/{session}/telemetry",
		ports.MakeGetTelemetryHandler(
			getTelemetry,
			allowedOrigins,
			logger.With("port", "telemetry"),
			sentryMiddleware,
			requestTimeout,
		),
	)

	mux.HandleFunc(
		"OPTIONS /v1/telemetry/compare",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /v1/telemetry/compare",
		ports.MakeCompareTelemetryHandler(
			compareTelemetry,
			allowedOrigins,
			logger.With("port", "comparetelemetry"),
			sentryMiddleware,
			requestTimeout,
		),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           otelhttp.NewHandler(mux, "pitwall"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.Info("Init complete", "port", config.Port())

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			fail("Server error", "error", err.Error())
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server", "error", err.Error())
		}
	}
	logger.Info("Server shutdown")
}
