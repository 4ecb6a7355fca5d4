package domaintest

import (
	"time"

	"github.com/Amund211/pitwall/internal/domain"
	"github.com/RoaringBitmap/roaring/v2"
)

func Duration(seconds float64) *time.Duration {
	d := time.Duration(seconds * float64(time.Second))
	return &d
}

func Int(i int) *int {
	return &i
}

type seriesBuilder struct {
	series domain.TelemetrySeries
}

// WithSample appends a sample at the given time and distance.
// The other channels are derived from the speed.
func (sb *seriesBuilder) WithSample(seconds, distance, speed float64) *seriesBuilder {
	sb.series.Samples = append(sb.series.Samples, domain.TelemetrySample{
		Time:     time.Duration(seconds * float64(time.Second)),
		Distance: distance,
		Speed:    speed,
		Throttle: min(speed/3, 100),
		Brake:    0,
		Gear:     min(int(speed/40)+1, 8),
		X:        distance,
		Y:        -distance,
	})
	return sb
}

func (sb *seriesBuilder) WithRawSample(sample domain.TelemetrySample) *seriesBuilder {
	sb.series.Samples = append(sb.series.Samples, sample)
	return sb
}

func (sb *seriesBuilder) Build() domain.TelemetrySeries {
	series := sb.series
	series.Samples = append([]domain.TelemetrySample(nil), sb.series.Samples...)
	return series
}

func NewSeriesBuilder(driver string, lapNumber int) *seriesBuilder {
	return &seriesBuilder{
		series: domain.TelemetrySeries{
			Driver:    driver,
			LapNumber: lapNumber,
		},
	}
}

type lapBuilder struct {
	lap domain.LapRecord
}

func (lb *lapBuilder) WithLapTime(seconds float64) *lapBuilder {
	lb.lap.LapTime = Duration(seconds)
	return lb
}

func (lb *lapBuilder) WithoutLapTime() *lapBuilder {
	lb.lap.LapTime = nil
	return lb
}

func (lb *lapBuilder) WithPosition(position int) *lapBuilder {
	lb.lap.Position = Int(position)
	return lb
}

func (lb *lapBuilder) WithCompound(compound domain.Compound, stint int) *lapBuilder {
	lb.lap.Compound = compound
	lb.lap.Stint = Int(stint)
	return lb
}

func (lb *lapBuilder) WithPitStop() *lapBuilder {
	lb.lap.PitStop = true
	return lb
}

func (lb *lapBuilder) Build() domain.LapRecord {
	return lb.lap
}

func NewLapBuilder(driver string, lapNumber int) *lapBuilder {
	return &lapBuilder{
		lap: domain.LapRecord{
			Driver:    driver,
			LapNumber: lapNumber,
			LapTime:   Duration(90),
			Compound:  domain.CompoundMedium,
		},
	}
}

type entryBuilder struct {
	entry *domain.SessionEntry
}

func (eb *entryBuilder) WithDriver(driver domain.Driver) *entryBuilder {
	eb.entry.Metadata.Drivers = append(eb.entry.Metadata.Drivers, driver)
	return eb
}

func (eb *entryBuilder) WithLaps(laps ...domain.LapRecord) *entryBuilder {
	eb.entry.LapTable = append(eb.entry.LapTable, laps...)
	return eb
}

func (eb *entryBuilder) WithSeries(series ...domain.TelemetrySeries) *entryBuilder {
	for _, s := range series {
		eb.entry.Telemetry[domain.LapID{Driver: s.Driver, LapNumber: s.LapNumber}] = s

		laps, ok := eb.entry.AvailableLaps[s.Driver]
		if !ok {
			laps = roaring.New()
			eb.entry.AvailableLaps[s.Driver] = laps
		}
		laps.Add(uint32(s.LapNumber))
	}
	return eb
}

func (eb *entryBuilder) WithSizeBytes(sizeBytes int64) *entryBuilder {
	eb.entry.SizeBytes = sizeBytes
	return eb
}

func (eb *entryBuilder) BuildPtr() *domain.SessionEntry {
	return eb.entry
}

func NewEntryBuilder(key domain.SessionKey) *entryBuilder {
	return &entryBuilder{
		entry: &domain.SessionEntry{
			Key: key,
			Metadata: domain.SessionMetadata{
				EventName: key.Event + " Grand Prix",
				Date:      time.Date(key.Season, time.March, 19, 5, 0, 0, 0, time.UTC),
			},
			LapTable:      []domain.LapRecord{},
			Telemetry:     make(map[domain.LapID]domain.TelemetrySeries),
			AvailableLaps: make(map[string]*roaring.Bitmap),
			SizeBytes:     1,
		},
	}
}

func NewSessionKey(season int, event string, sessionType domain.SessionType) domain.SessionKey {
	key, err := domain.NewSessionKey(season, event, string(sessionType))
	if err != nil {
		panic(err)
	}
	return key
}
