package sessionstore

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/Amund211/pitwall/internal/domain"
	"github.com/RoaringBitmap/roaring/v2"
)

// Bumped whenever the stored layout changes. Older blobs are treated as misses.
const storedVersion = 1

type storedEntry struct {
	Version     int               `json:"version"`
	Season      int               `json:"season"`
	Event       string            `json:"event"`
	SessionType string            `json:"sessionType"`
	EventName   string            `json:"eventName"`
	Date        time.Time         `json:"date"`
	Drivers     []storedDriver    `json:"drivers"`
	LapTable    []storedLap       `json:"laps"`
	Telemetry   []storedSeries    `json:"telemetry"`
	Available   map[string][]byte `json:"availableLaps"`
	SizeBytes   int64             `json:"sizeBytes"`
}

type storedDriver struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
	Team   string `json:"team,omitempty"`
}

// Durations are stored in nanoseconds
type storedLap struct {
	Driver      string            `json:"driver"`
	LapNumber   int               `json:"lap"`
	LapTime     *time.Duration    `json:"lapTime"`
	Sectors     [3]*time.Duration `json:"sectors"`
	SessionTime *time.Duration    `json:"sessionTime"`
	Position    *int              `json:"position"`
	GapToLeader *time.Duration    `json:"gapToLeader"`
	GapToWinner *time.Duration    `json:"gapToWinner"`
	PitStop     bool              `json:"pitStop"`
	Stint       *int              `json:"stint"`
	Compound    string            `json:"compound"`
	TyreAge     *int              `json:"tyreAge"`
	Yellow      bool              `json:"yellow,omitempty"`
	Red         bool              `json:"red,omitempty"`
	SafetyCar   bool              `json:"sc,omitempty"`
	VSC         bool              `json:"vsc,omitempty"`
}

type storedSeries struct {
	Driver    string         `json:"driver"`
	LapNumber int            `json:"lap"`
	Samples   []storedSample `json:"samples"`
}

type storedSample struct {
	Time     time.Duration `json:"t"`
	Distance float64       `json:"d"`
	Speed    float64       `json:"s"`
	Throttle float64       `json:"th"`
	Brake    float64       `json:"b"`
	Gear     int           `json:"g"`
	X        float64       `json:"x"`
	Y        float64       `json:"y"`
}

func toStored(entry *domain.SessionEntry) (storedEntry, error) {
	stored := storedEntry{
		Version:     storedVersion,
		Season:      entry.Key.Season,
		Event:       entry.Key.Event,
		SessionType: string(entry.Key.SessionType),
		EventName:   entry.Metadata.EventName,
		Date:        entry.Metadata.Date,
		Drivers:     make([]storedDriver, 0, len(entry.Metadata.Drivers)),
		LapTable:    make([]storedLap, 0, len(entry.LapTable)),
		Telemetry:   make([]storedSeries, 0, len(entry.Telemetry)),
		Available:   make(map[string][]byte, len(entry.AvailableLaps)),
		SizeBytes:   entry.SizeBytes,
	}

	for _, driver := range entry.Metadata.Drivers {
		stored.Drivers = append(stored.Drivers, storedDriver(driver))
	}

	for _, record := range entry.LapTable {
		stored.LapTable = append(stored.LapTable, storedLap{
			Driver:      record.Driver,
			LapNumber:   record.LapNumber,
			LapTime:     record.LapTime,
			Sectors:     record.Sectors,
			SessionTime: record.SessionTime,
			Position:    record.Position,
			GapToLeader: record.GapToLeader,
			GapToWinner: record.GapToWinner,
			PitStop:     record.PitStop,
			Stint:       record.Stint,
			Compound:    string(record.Compound),
			TyreAge:     record.TyreAge,
			Yellow:      record.TrackStatus.Yellow,
			Red:         record.TrackStatus.Red,
			SafetyCar:   record.TrackStatus.SafetyCar,
			VSC:         record.TrackStatus.VirtualSafetyCar,
		})
	}

	for _, series := range entry.Telemetry {
		samples := make([]storedSample, 0, len(series.Samples))
		for _, sample := range series.Samples {
			samples = append(samples, storedSample(sample))
		}
		stored.Telemetry = append(stored.Telemetry, storedSeries{
			Driver:    series.Driver,
			LapNumber: series.LapNumber,
			Samples:   samples,
		})
	}
	// Map iteration order is random
	slices.SortFunc(stored.Telemetry, func(a, b storedSeries) int {
		if c := cmp.Compare(a.Driver, b.Driver); c != 0 {
			return c
		}
		return cmp.Compare(a.LapNumber, b.LapNumber)
	})

	for driver, laps := range entry.AvailableLaps {
		data, err := laps.MarshalBinary()
		if err != nil {
			return storedEntry{}, fmt.Errorf("failed to serialize available laps for %s: %w", driver, err)
		}
		stored.Available[driver] = data
	}

	return stored, nil
}

func fromStored(stored storedEntry) (*domain.SessionEntry, error) {
	if stored.Version != storedVersion {
		return nil, fmt.Errorf("unsupported stored version %d", stored.Version)
	}

	key, err := domain.NewSessionKey(stored.Season, stored.Event, stored.SessionType)
	if err != nil {
		return nil, fmt.Errorf("invalid stored key: %w", err)
	}

	entry := &domain.SessionEntry{
		Key: key,
		Metadata: domain.SessionMetadata{
			EventName: stored.EventName,
			Date:      stored.Date,
			Drivers:   make([]domain.Driver, 0, len(stored.Drivers)),
		},
		LapTable:      make([]domain.LapRecord, 0, len(stored.LapTable)),
		Telemetry:     make(map[domain.LapID]domain.TelemetrySeries, len(stored.Telemetry)),
		AvailableLaps: make(map[string]*roaring.Bitmap, len(stored.Available)),
		SizeBytes:     stored.SizeBytes,
	}

	for _, driver := range stored.Drivers {
		entry.Metadata.Drivers = append(entry.Metadata.Drivers, domain.Driver(driver))
	}

	for _, lap := range stored.LapTable {
		entry.LapTable = append(entry.LapTable, domain.LapRecord{
			Driver:      lap.Driver,
			LapNumber:   lap.LapNumber,
			LapTime:     lap.LapTime,
			Sectors:     lap.Sectors,
			SessionTime: lap.SessionTime,
			Position:    lap.Position,
			GapToLeader: lap.GapToLeader,
			GapToWinner: lap.GapToWinner,
			PitStop:     lap.PitStop,
			Stint:       lap.Stint,
			Compound:    domain.Compound(lap.Compound),
			TyreAge:     lap.TyreAge,
			TrackStatus: domain.TrackStatus{
				Yellow:           lap.Yellow,
				Red:              lap.Red,
				SafetyCar:        lap.SafetyCar,
				VirtualSafetyCar: lap.VSC,
			},
		})
	}

	for _, series := range stored.Telemetry {
		samples := make([]domain.TelemetrySample, 0, len(series.Samples))
		for _, sample := range series.Samples {
			samples = append(samples, domain.TelemetrySample(sample))
		}
		entry.Telemetry[domain.LapID{Driver: series.Driver, LapNumber: series.LapNumber}] = domain.TelemetrySeries{
			Driver:    series.Driver,
			LapNumber: series.LapNumber,
			Samples:   samples,
		}
	}

	for driver, data := range stored.Available {
		laps := roaring.New()
		if err := laps.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("failed to deserialize available laps for %s: %w", driver, err)
		}
		entry.AvailableLaps[driver] = laps
	}

	for id := range entry.Telemetry {
		if !entry.HasTelemetry(id.Driver, id.LapNumber) {
			return nil, fmt.Errorf("stored telemetry for %s lap %d is not indexed", id.Driver, id.LapNumber)
		}
	}

	return entry, nil
}
