package app

import (
	"context"
	"fmt"

	"github.com/Amund211/pitwall/internal/domain"
	"golang.org/x/sync/errgroup"
)

func lookupSeries(entry *domain.SessionEntry, driver string, lapNumber int) (domain.TelemetrySeries, error) {
	if !entry.HasTelemetry(driver, lapNumber) {
		return domain.TelemetrySeries{}, fmt.Errorf("%w: no telemetry for %s lap %d in %s", domain.ErrLapNotFound, driver, lapNumber, entry.Key.String())
	}
	series, ok := entry.Telemetry[domain.LapID{Driver: driver, LapNumber: lapNumber}]
	if !ok {
		return domain.TelemetrySeries{}, fmt.Errorf("%w: no telemetry for %s lap %d in %s", domain.ErrLapNotFound, driver, lapNumber, entry.Key.String())
	}
	return series, nil
}

// GetTelemetry returns the requested channels of one lap.
//
// Returns domain.ErrLapNotFound if the session has no telemetry for the lap.
type GetTelemetry func(ctx context.Context, key domain.SessionKey, driver string, lapNumber int, channels domain.ChannelSet) (domain.ProjectedTelemetry, error)

func BuildGetTelemetry(sessions sessionCache) GetTelemetry {
	return func(ctx context.Context, key domain.SessionKey, driver string, lapNumber int, channels domain.ChannelSet) (domain.ProjectedTelemetry, error) {
		if err := channels.Validate(); err != nil {
			return domain.ProjectedTelemetry{}, err
		}

		entry, err := sessions.GetOrLoad(ctx, key)
		if err != nil {
			return domain.ProjectedTelemetry{}, fmt.Errorf("failed to get session: %w", err)
		}

		series, err := lookupSeries(entry, driver, lapNumber)
		if err != nil {
			return domain.ProjectedTelemetry{}, err
		}

		return domain.ProjectTelemetry(series, channels), nil
	}
}

// CompareTelemetry aligns two laps, possibly from different sessions, on a shared distance grid
type CompareTelemetry func(ctx context.Context, a, b domain.LapRef, channels domain.ChannelSet) (domain.TelemetryComparison, error)

func BuildCompareTelemetry(sessions sessionCache) CompareTelemetry {
	return func(ctx context.Context, a, b domain.LapRef, channels domain.ChannelSet) (domain.TelemetryComparison, error) {
		if err := channels.Validate(); err != nil {
			return domain.TelemetryComparison{}, err
		}

		var seriesA, seriesB domain.TelemetrySeries

		g, gctx := errgroup.WithContext(ctx)
		load := func(ref domain.LapRef, target *domain.TelemetrySeries) func() error {
			return func() error {
				entry, err := sessions.GetOrLoad(gctx, ref.Key)
				if err != nil {
					return fmt.Errorf("failed to get session: %w", err)
				}

				series, err := lookupSeries(entry, ref.Driver, ref.LapNumber)
				if err != nil {
					return err
				}

				*target = series
				return nil
			}
		}
		g.Go(load(a, &seriesA))
		g.Go(load(b, &seriesB))

		if err := g.Wait(); err != nil {
			return domain.TelemetryComparison{}, err
		}

		return domain.CompareTelemetry(seriesA, seriesB, channels), nil
	}
}
