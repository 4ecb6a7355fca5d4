package normalizer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Amund211/pitwall/internal/adapters/sessionprovider"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/RoaringBitmap/roaring/v2"
)

// Meters added to keep distance non-decreasing when upstream has no usable value
const DistanceEpsilon = 1e-3

// Normalizer turns one raw provider session into a SessionEntry.
//
// It is deterministic and has no side effects.
type Normalizer func(key domain.SessionKey, raw *sessionprovider.RawSession) (*domain.SessionEntry, error)

// NewNormalizer returns a Normalizer that keeps every downsample-th telemetry
// sample of each lap, plus the final sample. Values below 1 keep every sample.
func NewNormalizer(downsample int) Normalizer {
	if downsample < 1 {
		downsample = 1
	}
	return func(key domain.SessionKey, raw *sessionprovider.RawSession) (*domain.SessionEntry, error) {
		entry, err := normalize(key, raw, downsample)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrNormalizationFailed, key.String(), err)
		}
		return entry, nil
	}
}

func Normalize(key domain.SessionKey, raw *sessionprovider.RawSession) (*domain.SessionEntry, error) {
	return NewNormalizer(1)(key, raw)
}

func normalize(key domain.SessionKey, raw *sessionprovider.RawSession, downsample int) (*domain.SessionEntry, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("missing session data")
	}
	if err := checkIdentity(key, raw); err != nil {
		return nil, err
	}

	drivers, positions := buildDrivers(raw)
	if len(drivers) == 0 {
		return nil, fmt.Errorf("session has no drivers")
	}

	driverIndex := make(map[string]int, len(drivers))
	for i, driver := range drivers {
		driverIndex[driver.ID] = i
	}

	lapTable := []domain.LapRecord{}
	if key.SessionType.HasLapTable() {
		lapTable = buildLapTable(raw.Laps, driverIndex, winnerOf(drivers, positions))
	}

	telemetry, availableLaps := buildTelemetry(raw.Telemetry, downsample)

	entry := &domain.SessionEntry{
		Key: key,
		Metadata: domain.SessionMetadata{
			EventName: strings.TrimSpace(raw.EventName),
			Date:      raw.Date.UTC(),
			Drivers:   drivers,
		},
		LapTable:      lapTable,
		Telemetry:     telemetry,
		AvailableLaps: availableLaps,
	}
	if entry.Metadata.EventName == "" {
		entry.Metadata.EventName = key.Event
	}
	entry.SizeBytes = sizeOf(entry)

	return entry, nil
}

// checkIdentity rejects sessions that declare a different identity than requested.
// Fields the provider left empty are not checked.
func checkIdentity(key domain.SessionKey, raw *sessionprovider.RawSession) error {
	if raw.Season != 0 && raw.Season != key.Season {
		return fmt.Errorf("provider returned season %d", raw.Season)
	}
	if event := strings.TrimSpace(raw.Event); event != "" && !strings.EqualFold(event, key.Event) {
		return fmt.Errorf("provider returned event '%s'", raw.Event)
	}
	if raw.SessionType != "" {
		sessionType, err := domain.ParseSessionType(raw.SessionType)
		if err != nil || sessionType != key.SessionType {
			return fmt.Errorf("provider returned session type '%s'", raw.SessionType)
		}
	}
	return nil
}

// buildDrivers orders the drivers by final classification. Unclassified drivers
// follow in provider order, then drivers only seen in other data sorted by ID.
func buildDrivers(raw *sessionprovider.RawSession) ([]domain.Driver, map[string]int) {
	positions := make(map[string]int, len(raw.Results))
	for _, result := range raw.Results {
		position, ok := intFrom(result.Position)
		if !ok || position < 1 {
			continue
		}
		if _, seen := positions[result.Driver]; !seen {
			positions[result.Driver] = position
		}
	}

	listed := make([]domain.Driver, 0, len(raw.Drivers))
	seen := make(map[string]bool, len(raw.Drivers))
	for _, rawDriver := range raw.Drivers {
		id := strings.TrimSpace(rawDriver.Abbreviation)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		listed = append(listed, domain.Driver{
			ID:     id,
			Number: strings.TrimSpace(rawDriver.Number),
			Name:   strings.TrimSpace(rawDriver.FullName),
			Team:   strings.TrimSpace(rawDriver.TeamName),
		})
	}

	slices.SortStableFunc(listed, func(a, b domain.Driver) int {
		positionA, classifiedA := positions[a.ID]
		positionB, classifiedB := positions[b.ID]
		switch {
		case classifiedA && classifiedB:
			return cmp.Compare(positionA, positionB)
		case classifiedA:
			return -1
		case classifiedB:
			return 1
		}
		return 0
	})

	var extra []string
	addExtra := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		extra = append(extra, id)
	}
	for _, result := range raw.Results {
		addExtra(result.Driver)
	}
	for _, lap := range raw.Laps {
		addExtra(lap.Driver)
	}
	for _, lapTelemetry := range raw.Telemetry {
		addExtra(lapTelemetry.Driver)
	}
	slices.Sort(extra)

	drivers := listed
	for _, id := range extra {
		drivers = append(drivers, domain.Driver{ID: id})
	}

	return drivers, positions
}

func winnerOf(drivers []domain.Driver, positions map[string]int) string {
	for _, driver := range drivers {
		if positions[driver.ID] == 1 {
			return driver.ID
		}
	}
	return ""
}

func buildLapTable(rawLaps []sessionprovider.RawLap, driverIndex map[string]int, winner string) []domain.LapRecord {
	records := make([]domain.LapRecord, 0, len(rawLaps))
	seen := make(map[domain.LapID]bool, len(rawLaps))

	for _, rawLap := range rawLaps {
		driver := strings.TrimSpace(rawLap.Driver)
		if driver == "" {
			continue
		}
		lapNumber, ok := intFrom(rawLap.LapNumber)
		if !ok || lapNumber < 1 {
			// Missing lap number or formation lap
			continue
		}
		id := domain.LapID{Driver: driver, LapNumber: lapNumber}
		if seen[id] {
			continue
		}
		seen[id] = true

		records = append(records, lapRecordFrom(driver, lapNumber, rawLap))
	}

	slices.SortStableFunc(records, func(a, b domain.LapRecord) int {
		if c := cmp.Compare(driverIndex[a.Driver], driverIndex[b.Driver]); c != 0 {
			return c
		}
		return cmp.Compare(a.LapNumber, b.LapNumber)
	})

	leaderTimes := make(map[int]time.Duration)
	winnerTimes := make(map[int]time.Duration)
	for _, record := range records {
		if record.SessionTime == nil {
			continue
		}
		if leader, ok := leaderTimes[record.LapNumber]; !ok || *record.SessionTime < leader {
			leaderTimes[record.LapNumber] = *record.SessionTime
		}
		if winner != "" && record.Driver == winner {
			winnerTimes[record.LapNumber] = *record.SessionTime
		}
	}

	for i := range records {
		record := &records[i]
		if record.SessionTime == nil {
			continue
		}
		if leader, ok := leaderTimes[record.LapNumber]; ok {
			gap := *record.SessionTime - leader
			record.GapToLeader = &gap
		}
		if winnerTime, ok := winnerTimes[record.LapNumber]; ok {
			gap := *record.SessionTime - winnerTime
			record.GapToWinner = &gap
		}
	}

	return records
}

func lapRecordFrom(driver string, lapNumber int, rawLap sessionprovider.RawLap) domain.LapRecord {
	record := domain.LapRecord{
		Driver:    driver,
		LapNumber: lapNumber,
		LapTime:   durationFrom(rawLap.LapTime),
		Sectors: [3]*time.Duration{
			durationFrom(rawLap.Sector1Time),
			durationFrom(rawLap.Sector2Time),
			durationFrom(rawLap.Sector3Time),
		},
		SessionTime: durationFrom(rawLap.Time),
		PitStop:     finite(rawLap.PitInTime),
		Compound:    compoundFrom(rawLap.Compound),
		TrackStatus: trackStatusFrom(rawLap.TrackStatus),
	}

	if position, ok := intFrom(rawLap.Position); ok && position >= 1 {
		record.Position = &position
	}
	if stint, ok := intFrom(rawLap.Stint); ok && stint >= 0 {
		record.Stint = &stint
	}
	if tyreAge, ok := intFrom(rawLap.TyreLife); ok && tyreAge >= 0 {
		record.TyreAge = &tyreAge
	}

	return record
}

func compoundFrom(raw *string) domain.Compound {
	if raw == nil {
		return domain.CompoundUnknown
	}
	compound := domain.Compound(strings.ToUpper(strings.TrimSpace(*raw)))
	switch compound {
	case domain.CompoundSoft,
		domain.CompoundMedium,
		domain.CompoundHard,
		domain.CompoundIntermediate,
		domain.CompoundWet:
		return compound
	}
	return domain.CompoundUnknown
}

// trackStatusFrom parses the concatenated status digits reported for a lap
func trackStatusFrom(raw string) domain.TrackStatus {
	return domain.TrackStatus{
		Yellow:           strings.ContainsRune(raw, '2'),
		SafetyCar:        strings.ContainsRune(raw, '4'),
		Red:              strings.ContainsRune(raw, '5'),
		VirtualSafetyCar: strings.ContainsRune(raw, '6'),
	}
}

func buildTelemetry(rawTelemetry []sessionprovider.RawLapTelemetry, downsample int) (map[domain.LapID]domain.TelemetrySeries, map[string]*roaring.Bitmap) {
	telemetry := make(map[domain.LapID]domain.TelemetrySeries, len(rawTelemetry))
	availableLaps := make(map[string]*roaring.Bitmap)

	for _, lapTelemetry := range rawTelemetry {
		driver := strings.TrimSpace(lapTelemetry.Driver)
		if driver == "" || lapTelemetry.LapNumber < 1 {
			continue
		}
		id := domain.LapID{Driver: driver, LapNumber: lapTelemetry.LapNumber}
		if _, ok := telemetry[id]; ok {
			continue
		}

		samples := normalizeSamples(lapTelemetry.Samples, downsample)
		if len(samples) == 0 {
			continue
		}

		telemetry[id] = domain.TelemetrySeries{
			Driver:    driver,
			LapNumber: lapTelemetry.LapNumber,
			Samples:   samples,
		}

		laps, ok := availableLaps[driver]
		if !ok {
			laps = roaring.New()
			availableLaps[driver] = laps
		}
		laps.Add(uint32(lapTelemetry.LapNumber))
	}

	for _, laps := range availableLaps {
		laps.RunOptimize()
	}

	return telemetry, availableLaps
}

type timedSample struct {
	time time.Duration
	raw  sessionprovider.RawSample
}

func normalizeSamples(rawSamples []sessionprovider.RawSample, downsample int) []domain.TelemetrySample {
	timed := make([]timedSample, 0, len(rawSamples))
	for _, raw := range rawSamples {
		if !finite(raw.Time) {
			continue
		}
		timed = append(timed, timedSample{
			time: time.Duration(*raw.Time * float64(time.Second)),
			raw:  raw,
		})
	}

	slices.SortStableFunc(timed, func(a, b timedSample) int {
		return cmp.Compare(a.time, b.time)
	})
	timed = slices.CompactFunc(timed, func(a, b timedSample) bool {
		return a.time == b.time
	})

	samples := make([]domain.TelemetrySample, 0, len(timed))
	var previous domain.TelemetrySample
	for i, ts := range timed {
		raw := ts.raw
		sample := domain.TelemetrySample{
			Time:     ts.time,
			Speed:    valueOr(raw.Speed, previous.Speed),
			Throttle: clampPercent(valueOr(raw.Throttle, previous.Throttle)),
			X:        valueOr(raw.X, previous.X),
			Y:        valueOr(raw.Y, previous.Y),
			Brake:    previous.Brake,
			Gear:     previous.Gear,
		}

		if raw.Brake != nil && finiteValue(float64(*raw.Brake)) {
			sample.Brake = clampPercent(float64(*raw.Brake))
		}
		if finite(raw.Gear) {
			sample.Gear = max(int(math.Round(*raw.Gear)), 0)
		}

		if i == 0 {
			sample.Distance = max(valueOr(raw.Distance, 0), 0)
		} else {
			sample.Distance = nextDistance(previous, ts.time, raw)
		}

		samples = append(samples, sample)
		previous = sample
	}

	return downsampleSamples(samples, downsample)
}

// nextDistance keeps the distance column non-decreasing
func nextDistance(previous domain.TelemetrySample, t time.Duration, raw sessionprovider.RawSample) float64 {
	if finite(raw.Distance) {
		if *raw.Distance >= previous.Distance {
			return *raw.Distance
		}
		return previous.Distance + DistanceEpsilon
	}

	if finite(raw.Speed) && *raw.Speed > 0 {
		metersPerSecond := *raw.Speed / 3.6
		travelled := metersPerSecond * (t - previous.Time).Seconds()
		if travelled > 0 {
			return previous.Distance + travelled
		}
	}

	return previous.Distance + DistanceEpsilon
}

func downsampleSamples(samples []domain.TelemetrySample, k int) []domain.TelemetrySample {
	if k <= 1 || len(samples) <= 1 {
		return samples
	}

	kept := make([]domain.TelemetrySample, 0, len(samples)/k+2)
	for i, sample := range samples {
		if i%k == 0 || i == len(samples)-1 {
			kept = append(kept, sample)
		}
	}
	return kept
}

func finiteValue(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

func finite(value *float64) bool {
	return value != nil && finiteValue(*value)
}

func valueOr(value *float64, fallback float64) float64 {
	if !finite(value) {
		return fallback
	}
	return *value
}

func clampPercent(value float64) float64 {
	return min(max(value, 0), 100)
}

// intFrom accepts whole numbers only
func intFrom(value *float64) (int, bool) {
	if !finite(value) || *value != math.Trunc(*value) {
		return 0, false
	}
	return int(*value), true
}

func durationFrom(seconds *float64) *time.Duration {
	if !finite(seconds) || *seconds < 0 {
		return nil
	}
	duration := time.Duration(*seconds * float64(time.Second))
	return &duration
}
