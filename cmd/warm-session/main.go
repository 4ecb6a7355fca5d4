// warm-session fetches one session from the provider, normalizes it and writes
// it to the configured session store, so the service can serve it without
// going to the provider.
//
// Usage: warm-session -season 2023 -event "Saudi Arabian" -session Qualifying
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/pitwall/internal/adapters/sessionprovider"
	"github.com/Amund211/pitwall/internal/adapters/sessionstore"
	"github.com/Amund211/pitwall/internal/config"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/logging"
	"github.com/Amund211/pitwall/internal/normalizer"
	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	season := flag.Int("season", 0, "championship season, e.g. 2023")
	event := flag.String("event", "", "event name, e.g. \"Saudi Arabian\"")
	session := flag.String("session", "", "Practice, Qualifying, Sprint or Race")
	timeout := flag.Duration("timeout", 5*time.Minute, "upper bound on fetching and storing the session")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	key, err := domain.NewSessionKey(*season, *event, *session)
	if err != nil {
		flag.Usage()
		fail("Invalid session", "error", err.Error())
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	if conf.StoreBackend() == config.StoreBackendNone {
		fail("No session store configured, set STORE_BACKEND")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = logging.AddToContext(ctx, logger.With("session", key.String()))

	if err := warmSession(ctx, conf, key, logger); err != nil {
		fail("Failed to warm session", "session", key.String(), "error", err.Error())
	}
}

func warmSession(ctx context.Context, conf config.Config, key domain.SessionKey, logger *slog.Logger) error {
	provider, err := sessionprovider.NewSessionProviderOrMock(conf, &http.Client{Timeout: time.Minute})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	store, err := sessionstore.NewSessionStoreFromConfig(ctx, conf, logger)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}

	start := time.Now()
	raw, err := provider.Fetch(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProviderFetchFailed, err)
	}
	logger.InfoContext(ctx, "Fetched session", "duration", time.Since(start).String())

	entry, err := normalizer.NewNormalizer(conf.TelemetryDownsample())(key, raw)
	if err != nil {
		return err
	}

	if err := store.Put(ctx, entry); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	logger.InfoContext(ctx, "Stored session",
		"drivers", len(entry.Metadata.Drivers),
		"laps", len(entry.LapTable),
		"telemetryLaps", len(entry.Telemetry),
		"sizeBytes", entry.SizeBytes,
	)
	return nil
}
