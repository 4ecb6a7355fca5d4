package app

import (
	"context"
	"fmt"

	"github.com/Amund211/pitwall/internal/domain"
)

type sessionCache interface {
	GetOrLoad(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error)
}

// GetLapTable returns a copy of the lap table, restricted to the given drivers if any.
//
// Records are ordered by the metadata driver order, then lap number, regardless
// of the order of the filter.
type GetLapTable func(ctx context.Context, key domain.SessionKey, drivers []string) ([]domain.LapRecord, error)

func BuildGetLapTable(sessions sessionCache) GetLapTable {
	return func(ctx context.Context, key domain.SessionKey, drivers []string) ([]domain.LapRecord, error) {
		entry, err := sessions.GetOrLoad(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}

		var include map[string]bool
		if len(drivers) > 0 {
			include = make(map[string]bool, len(drivers))
			for _, driver := range drivers {
				include[driver] = true
			}
		}

		records := make([]domain.LapRecord, 0, len(entry.LapTable))
		for _, record := range entry.LapTable {
			if include != nil && !include[record.Driver] {
				continue
			}
			records = append(records, copyLapRecord(record))
		}

		return records, nil
	}
}

// GetFastestLaps returns the fastest timed lap of every driver in metadata order.
//
// Drivers without a timed lap are left out. Ties go to the earlier lap.
type GetFastestLaps func(ctx context.Context, key domain.SessionKey) ([]domain.LapRecord, error)

func BuildGetFastestLaps(sessions sessionCache) GetFastestLaps {
	return func(ctx context.Context, key domain.SessionKey) ([]domain.LapRecord, error) {
		entry, err := sessions.GetOrLoad(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}

		fastest := make(map[string]domain.LapRecord, len(entry.Metadata.Drivers))
		for _, record := range entry.LapTable {
			if record.LapTime == nil {
				continue
			}
			current, ok := fastest[record.Driver]
			if !ok || *record.LapTime < *current.LapTime {
				fastest[record.Driver] = record
			}
		}

		records := make([]domain.LapRecord, 0, len(fastest))
		for _, driver := range entry.Metadata.Drivers {
			record, ok := fastest[driver.ID]
			if !ok {
				continue
			}
			records = append(records, copyLapRecord(record))
		}

		return records, nil
	}
}

// GetSessionOverview summarizes which drivers and laps have data
type GetSessionOverview func(ctx context.Context, key domain.SessionKey) (domain.SessionOverview, error)

func BuildGetSessionOverview(sessions sessionCache) GetSessionOverview {
	return func(ctx context.Context, key domain.SessionKey) (domain.SessionOverview, error) {
		entry, err := sessions.GetOrLoad(ctx, key)
		if err != nil {
			return domain.SessionOverview{}, fmt.Errorf("failed to get session: %w", err)
		}

		lapCounts := make(map[string]int, len(entry.Metadata.Drivers))
		for _, record := range entry.LapTable {
			lapCounts[record.Driver] = max(lapCounts[record.Driver], record.LapNumber)
		}

		overview := domain.SessionOverview{
			Key:         entry.Key,
			EventName:   entry.Metadata.EventName,
			Date:        entry.Metadata.Date,
			HasLapTable: len(entry.LapTable) > 0,
			Drivers:     make([]domain.DriverOverview, 0, len(entry.Metadata.Drivers)),
		}

		for _, driver := range entry.Metadata.Drivers {
			telemetryLaps := []int{}
			if laps, ok := entry.AvailableLaps[driver.ID]; ok {
				for _, lap := range laps.ToArray() {
					telemetryLaps = append(telemetryLaps, int(lap))
				}
			}

			overview.Drivers = append(overview.Drivers, domain.DriverOverview{
				Driver:        driver,
				TelemetryLaps: telemetryLaps,
				LapCount:      lapCounts[driver.ID],
			})
		}

		return overview, nil
	}
}

func clonePtr[T any](value *T) *T {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

// copyLapRecord detaches the record from the cached entry
func copyLapRecord(record domain.LapRecord) domain.LapRecord {
	record.LapTime = clonePtr(record.LapTime)
	for i := range record.Sectors {
		record.Sectors[i] = clonePtr(record.Sectors[i])
	}
	record.SessionTime = clonePtr(record.SessionTime)
	record.Position = clonePtr(record.Position)
	record.GapToLeader = clonePtr(record.GapToLeader)
	record.GapToWinner = clonePtr(record.GapToWinner)
	record.Stint = clonePtr(record.Stint)
	record.TyreAge = clonePtr(record.TyreAge)
	return record
}
