package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/pitwall/internal/adapters/cache"
	"github.com/Amund211/pitwall/internal/adapters/sessionprovider"
	"github.com/Amund211/pitwall/internal/adapters/sessionstore"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/logging"
	"github.com/Amund211/pitwall/internal/normalizer"
	"github.com/Amund211/pitwall/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const persistTimeout = 5 * time.Second

// BuildLoadSession returns the loader the session cache calls on a miss.
//
// Previously normalized sessions are read from the store. Everything else is
// fetched from the provider, normalized, and written to the store in the
// background.
func BuildLoadSession(
	store sessionstore.SessionStore,
	provider sessionprovider.SessionProvider,
	normalize normalizer.Normalizer,
) cache.Loader {
	tracer := otel.Tracer("pitwall/app/loadsession")

	return func(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error) {
		ctx, span := tracer.Start(ctx, "LoadSession", trace.WithAttributes(
			attribute.String("session", key.String()),
		))
		defer span.End()

		logger := logging.FromContext(ctx).With("session", key.String())

		entry, err := store.Get(ctx, key)
		if err == nil {
			span.SetAttributes(attribute.String("source", "store"))
			logger.InfoContext(ctx, "Loaded session from store", "sizeBytes", entry.SizeBytes)
			return entry, nil
		}
		if !errors.Is(err, domain.ErrStoreMiss) {
			// NOTE: SessionStore implementations handle their own error reporting
			logger.WarnContext(ctx, "Failed to get session from store", "error", err.Error())
		}

		span.SetAttributes(attribute.String("source", "provider"))

		raw, err := provider.Fetch(ctx, key)
		if err != nil {
			// NOTE: SessionProvider implementations handle their own error reporting
			return nil, fmt.Errorf("%w: %w", domain.ErrProviderFetchFailed, err)
		}

		entry, err = normalize(key, raw)
		if err != nil {
			reporting.Report(ctx, err, map[string]string{
				"session": key.String(),
			})
			return nil, err
		}

		logger.InfoContext(ctx, "Normalized session", "sizeBytes", entry.SizeBytes, "laps", len(entry.LapTable), "series", len(entry.Telemetry))

		go persistSession(ctx, store, entry)

		return entry, nil
	}
}

func persistSession(ctx context.Context, store sessionstore.SessionStore, entry *domain.SessionEntry) {
	// Storing is best effort and must not hold up the waiters
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	err := store.Put(ctx, entry)
	if err != nil {
		// NOTE: SessionStore implementations handle their own error reporting
		logging.FromContext(ctx).ErrorContext(ctx, "Failed to store session", "session", entry.Key.String(), "error", err.Error())
	}
}
