package normalizer_test

import (
	"context"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/Amund211/pitwall/internal/adapters/sessionprovider"
	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/domaintest"
	"github.com/Amund211/pitwall/internal/normalizer"
	"github.com/stretchr/testify/require"
)

func f(value float64) *float64 {
	return &value
}

func brake(value sessionprovider.BrakeValue) *sessionprovider.BrakeValue {
	return &value
}

func compound(value string) *string {
	return &value
}

var raceKey = domaintest.NewSessionKey(2023, "Australian", domain.SessionTypeRace)

func newRawSession(key domain.SessionKey) *sessionprovider.RawSession {
	return &sessionprovider.RawSession{
		Season:      key.Season,
		Event:       key.Event,
		EventName:   key.Event + " Grand Prix",
		SessionType: string(key.SessionType),
		Date:        time.Date(key.Season, time.April, 2, 5, 0, 0, 0, time.UTC),
		Drivers: []sessionprovider.RawDriver{
			{Abbreviation: "VER", Number: "1", FullName: "Max Verstappen", TeamName: "Red Bull Racing"},
			{Abbreviation: "HAM", Number: "44", FullName: "Lewis Hamilton", TeamName: "Mercedes"},
		},
		Results: []sessionprovider.RawResult{
			{Driver: "VER", Position: f(1)},
			{Driver: "HAM", Position: f(2)},
		},
	}
}

func TestNormalizeFailures(t *testing.T) {
	t.Parallel()

	t.Run("nil session", func(t *testing.T) {
		t.Parallel()

		_, err := normalizer.Normalize(raceKey, nil)
		require.ErrorIs(t, err, domain.ErrNormalizationFailed)
	})

	t.Run("invalid key", func(t *testing.T) {
		t.Parallel()

		_, err := normalizer.Normalize(domain.SessionKey{}, newRawSession(raceKey))
		require.ErrorIs(t, err, domain.ErrNormalizationFailed)
	})

	t.Run("mismatched identity", func(t *testing.T) {
		t.Parallel()

		cases := map[string]func(raw *sessionprovider.RawSession){
			"season":       func(raw *sessionprovider.RawSession) { raw.Season = 2022 },
			"event":        func(raw *sessionprovider.RawSession) { raw.Event = "Bahrain" },
			"session type": func(raw *sessionprovider.RawSession) { raw.SessionType = "Qualifying" },
			"unknown type": func(raw *sessionprovider.RawSession) { raw.SessionType = "Warmup" },
		}

		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				raw := newRawSession(raceKey)
				mutate(raw)

				_, err := normalizer.Normalize(raceKey, raw)
				require.ErrorIs(t, err, domain.ErrNormalizationFailed)
			})
		}
	})

	t.Run("undeclared identity is accepted", func(t *testing.T) {
		t.Parallel()

		raw := newRawSession(raceKey)
		raw.Season = 0
		raw.Event = ""
		raw.SessionType = ""
		raw.EventName = ""

		entry, err := normalizer.Normalize(raceKey, raw)
		require.NoError(t, err)
		require.Equal(t, "Australian", entry.Metadata.EventName)
	})

	t.Run("no drivers", func(t *testing.T) {
		t.Parallel()

		raw := newRawSession(raceKey)
		raw.Drivers = nil
		raw.Results = nil

		_, err := normalizer.Normalize(raceKey, raw)
		require.ErrorIs(t, err, domain.ErrNormalizationFailed)
	})
}

func TestNormalizeDrivers(t *testing.T) {
	t.Parallel()

	raw := newRawSession(raceKey)
	raw.Drivers = []sessionprovider.RawDriver{
		{Abbreviation: "LEC", FullName: "Charles Leclerc", TeamName: "Ferrari"},
		{Abbreviation: "VER", FullName: "Max Verstappen", TeamName: "Red Bull Racing"},
		{Abbreviation: "SAI", FullName: "Carlos Sainz", TeamName: "Ferrari"},
		{Abbreviation: "HAM", FullName: "Lewis Hamilton", TeamName: "Mercedes"},
		{Abbreviation: "VER", FullName: "Duplicate"},
		{Abbreviation: " "},
	}
	raw.Results = []sessionprovider.RawResult{
		{Driver: "HAM", Position: f(2)},
		{Driver: "VER", Position: f(1)},
		{Driver: "LEC", Position: nil},
		{Driver: "SAI", Position: f(math.NaN())},
	}
	raw.Laps = []sessionprovider.RawLap{
		{Driver: "ALO", LapNumber: f(1)},
	}
	raw.Telemetry = []sessionprovider.RawLapTelemetry{
		{Driver: "ZHO", LapNumber: 1},
		{Driver: "BOT", LapNumber: 1},
	}

	entry, err := normalizer.Normalize(raceKey, raw)
	require.NoError(t, err)

	ids := make([]string, 0, len(entry.Metadata.Drivers))
	for _, driver := range entry.Metadata.Drivers {
		ids = append(ids, driver.ID)
	}
	require.Equal(t, []string{"VER", "HAM", "LEC", "SAI", "ALO", "BOT", "ZHO"}, ids)
	require.Equal(t, "Max Verstappen", entry.Metadata.Drivers[0].Name)
	require.Equal(t, domain.Driver{ID: "ALO"}, entry.Metadata.Drivers[4])
}

func TestNormalizeLapTable(t *testing.T) {
	t.Parallel()

	raw := newRawSession(raceKey)
	raw.Laps = []sessionprovider.RawLap{
		{Driver: "HAM", LapNumber: f(2), LapTime: f(91), Time: f(192), Position: f(2), Compound: compound("hard"), Stint: f(2), TyreLife: f(1), TrackStatus: "1"},
		{Driver: "VER", LapNumber: f(1), LapTime: f(100), Sector1Time: f(30), Sector2Time: f(40), Sector3Time: f(30), Time: f(100), Position: f(2), Compound: compound("MEDIUM"), Stint: f(1), TyreLife: f(1), TrackStatus: "12"},
		{Driver: "VER", LapNumber: f(0), LapTime: f(200), Time: f(0)},
		{Driver: "VER", LapNumber: nil, LapTime: f(300)},
		{Driver: "HAM", LapNumber: f(1), LapTime: f(99), Time: f(99), Position: f(1), Compound: compound("MEDIUM"), Stint: f(1), PitInTime: f(98), TrackStatus: "4"},
		{Driver: "VER", LapNumber: f(2), LapTime: f(90), Time: f(190), Position: f(1), Compound: compound("C3"), TrackStatus: "56"},
		{Driver: "VER", LapNumber: f(1), LapTime: f(500), Time: f(500)},
		{Driver: "VER", LapNumber: f(3), LapTime: f(math.Inf(1)), Time: nil},
	}

	entry, err := normalizer.Normalize(raceKey, raw)
	require.NoError(t, err)

	type lapID struct {
		driver string
		lap    int
	}
	order := make([]lapID, 0, len(entry.LapTable))
	for _, record := range entry.LapTable {
		order = append(order, lapID{record.Driver, record.LapNumber})
	}
	require.Equal(t, []lapID{{"VER", 1}, {"VER", 2}, {"VER", 3}, {"HAM", 1}, {"HAM", 2}}, order)

	verLap1 := entry.LapTable[0]
	require.Equal(t, domaintest.Duration(100), verLap1.LapTime)
	require.Equal(t, [3]*time.Duration{domaintest.Duration(30), domaintest.Duration(40), domaintest.Duration(30)}, verLap1.Sectors)
	require.Equal(t, domaintest.Int(2), verLap1.Position)
	require.Equal(t, domaintest.Duration(1), verLap1.GapToLeader)
	require.Equal(t, domaintest.Duration(0), verLap1.GapToWinner)
	require.Equal(t, domain.CompoundMedium, verLap1.Compound)
	require.Equal(t, domaintest.Int(1), verLap1.Stint)
	require.Equal(t, domaintest.Int(1), verLap1.TyreAge)
	require.Equal(t, domain.TrackStatus{Yellow: true}, verLap1.TrackStatus)
	require.False(t, verLap1.PitStop)

	verLap2 := entry.LapTable[1]
	require.Equal(t, domaintest.Duration(0), verLap2.GapToLeader)
	require.Equal(t, domain.CompoundUnknown, verLap2.Compound)
	require.Nil(t, verLap2.Stint)
	require.Nil(t, verLap2.TyreAge)
	require.Nil(t, verLap2.Sectors[0])
	require.Equal(t, domain.TrackStatus{Red: true, VirtualSafetyCar: true}, verLap2.TrackStatus)

	verLap3 := entry.LapTable[2]
	require.Nil(t, verLap3.LapTime)
	require.Nil(t, verLap3.SessionTime)
	require.Nil(t, verLap3.GapToLeader)
	require.Nil(t, verLap3.GapToWinner)
	require.Nil(t, verLap3.Position)
	require.True(t, verLap3.TrackStatus.Nominal())

	hamLap1 := entry.LapTable[3]
	require.Equal(t, domaintest.Duration(0), hamLap1.GapToLeader)
	require.Equal(t, domaintest.Duration(-1), hamLap1.GapToWinner)
	require.True(t, hamLap1.PitStop)
	require.Equal(t, domain.TrackStatus{SafetyCar: true}, hamLap1.TrackStatus)

	hamLap2 := entry.LapTable[4]
	require.Equal(t, domaintest.Duration(2), hamLap2.GapToLeader)
	require.Equal(t, domaintest.Duration(2), hamLap2.GapToWinner)
	require.Equal(t, domain.CompoundHard, hamLap2.Compound)

	t.Run("no lap table for practice", func(t *testing.T) {
		t.Parallel()

		practiceKey := domaintest.NewSessionKey(2023, "Australian", domain.SessionTypePractice)
		practice := newRawSession(practiceKey)
		practice.Laps = raw.Laps
		practice.Telemetry = []sessionprovider.RawLapTelemetry{
			{Driver: "VER", LapNumber: 4, Samples: []sessionprovider.RawSample{{Time: f(0), Distance: f(0), Speed: f(100)}}},
		}

		entry, err := normalizer.Normalize(practiceKey, practice)
		require.NoError(t, err)
		require.Empty(t, entry.LapTable)
		require.True(t, entry.HasTelemetry("VER", 4))
	})

	t.Run("no winner without classification", func(t *testing.T) {
		t.Parallel()

		unclassified := newRawSession(raceKey)
		unclassified.Results = nil
		unclassified.Laps = raw.Laps

		entry, err := normalizer.Normalize(raceKey, unclassified)
		require.NoError(t, err)
		for _, record := range entry.LapTable {
			require.Nil(t, record.GapToWinner)
		}
	})
}

func TestNormalizeTelemetry(t *testing.T) {
	t.Parallel()

	raw := newRawSession(raceKey)
	raw.Telemetry = []sessionprovider.RawLapTelemetry{
		{
			Driver:    "VER",
			LapNumber: 3,
			Samples: []sessionprovider.RawSample{
				{Time: f(0.5), Distance: nil, Speed: f(72), Brake: brake(100), Gear: f(-1)},
				{Time: f(0), Distance: f(-3), Speed: f(36), Throttle: f(120), Gear: f(2), X: f(1), Y: f(1)},
				{Time: f(math.NaN()), Distance: f(1000), Speed: f(300)},
				{Time: nil, Distance: f(1000), Speed: f(300)},
				{Time: f(0.5), Distance: f(999), Speed: f(300)},
				{Time: f(1), Distance: f(5), Speed: f(100), Throttle: f(-5), Brake: brake(30)},
				{Time: f(1.5)},
				{Time: f(2), Distance: f(50), Speed: f(0)},
			},
		},
		{Driver: "VER", LapNumber: 3, Samples: []sessionprovider.RawSample{{Time: f(0), Distance: f(0)}}},
		{Driver: "VER", LapNumber: 0, Samples: []sessionprovider.RawSample{{Time: f(0), Distance: f(0)}}},
		{Driver: "HAM", LapNumber: 1, Samples: []sessionprovider.RawSample{{Time: nil}}},
	}

	entry, err := normalizer.Normalize(raceKey, raw)
	require.NoError(t, err)

	require.Len(t, entry.Telemetry, 1)
	require.True(t, entry.HasTelemetry("VER", 3))
	require.False(t, entry.HasTelemetry("VER", 0))
	require.False(t, entry.HasTelemetry("HAM", 1))

	series := entry.Telemetry[domain.LapID{Driver: "VER", LapNumber: 3}]
	require.Equal(t, "VER", series.Driver)
	require.Equal(t, 3, series.LapNumber)
	samples := series.Samples
	require.Len(t, samples, 5)

	times := make([]time.Duration, 0, len(samples))
	for _, sample := range samples {
		times = append(times, sample.Time)
	}
	require.Equal(t, []time.Duration{0, 500 * time.Millisecond, time.Second, 1500 * time.Millisecond, 2 * time.Second}, times)

	distances := make([]float64, 0, len(samples))
	for _, sample := range samples {
		distances = append(distances, sample.Distance)
	}
	require.InDeltaSlice(t, []float64{0, 10, 10.001, 10.002, 50}, distances, 1e-9)

	require.Equal(t, domain.TelemetrySample{Time: 0, Distance: 0, Speed: 36, Throttle: 100, Brake: 0, Gear: 2, X: 1, Y: 1}, samples[0])

	require.Equal(t, 72.0, samples[1].Speed)
	require.Equal(t, 100.0, samples[1].Throttle)
	require.Equal(t, 100.0, samples[1].Brake)
	require.Equal(t, 0, samples[1].Gear)
	require.Equal(t, 1.0, samples[1].X)

	require.Equal(t, 100.0, samples[2].Speed)
	require.Equal(t, 0.0, samples[2].Throttle)
	require.Equal(t, 30.0, samples[2].Brake)

	// Everything carried forward
	require.Equal(t, 100.0, samples[3].Speed)
	require.Equal(t, 0.0, samples[3].Throttle)
	require.Equal(t, 30.0, samples[3].Brake)
	require.Equal(t, 0, samples[3].Gear)
	require.Equal(t, 1.0, samples[3].Y)

	require.Equal(t, 0.0, samples[4].Speed)
}

func TestNormalizeDownsample(t *testing.T) {
	t.Parallel()

	raw := newRawSession(raceKey)
	samples := make([]sessionprovider.RawSample, 0, 10)
	for i := range 10 {
		samples = append(samples, sessionprovider.RawSample{Time: f(float64(i)), Distance: f(float64(i * 10)), Speed: f(100)})
	}
	raw.Telemetry = []sessionprovider.RawLapTelemetry{{Driver: "VER", LapNumber: 1, Samples: samples}}

	cases := []struct {
		downsample int
		expected   []time.Duration
	}{
		{downsample: 0, expected: []time.Duration{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{downsample: 1, expected: []time.Duration{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{downsample: 3, expected: []time.Duration{0, 3, 6, 9}},
		{downsample: 4, expected: []time.Duration{0, 4, 8, 9}},
		{downsample: 20, expected: []time.Duration{0, 9}},
	}

	for _, c := range cases {
		t.Run(strconv.Itoa(c.downsample), func(t *testing.T) {
			t.Parallel()

			entry, err := normalizer.NewNormalizer(c.downsample)(raceKey, raw)
			require.NoError(t, err)

			series := entry.Telemetry[domain.LapID{Driver: "VER", LapNumber: 1}]
			times := make([]time.Duration, 0, len(series.Samples))
			for _, sample := range series.Samples {
				times = append(times, sample.Time/time.Second)
			}
			require.Equal(t, c.expected, times)
		})
	}
}

func TestNormalizeMockedSession(t *testing.T) {
	t.Parallel()

	provider := sessionprovider.NewMockedProvider()

	for _, sessionType := range []domain.SessionType{domain.SessionTypePractice, domain.SessionTypeQualifying, domain.SessionTypeSprint, domain.SessionTypeRace} {
		t.Run(string(sessionType), func(t *testing.T) {
			t.Parallel()

			key := domaintest.NewSessionKey(2023, "Australian", sessionType)
			raw, err := provider.Fetch(context.Background(), key)
			require.NoError(t, err)

			first, err := normalizer.Normalize(key, raw)
			require.NoError(t, err)
			second, err := normalizer.Normalize(key, raw)
			require.NoError(t, err)

			require.Equal(t, first, second)
			require.Equal(t, key, first.Key)
			require.Equal(t, sessionType.HasLapTable(), len(first.LapTable) > 0)
			require.Positive(t, first.SizeBytes)

			for id, series := range first.Telemetry {
				require.Equal(t, id.Driver, series.Driver)
				require.Equal(t, id.LapNumber, series.LapNumber)
				require.True(t, first.HasTelemetry(id.Driver, id.LapNumber))

				for i := 1; i < len(series.Samples); i++ {
					require.Greater(t, series.Samples[i].Time, series.Samples[i-1].Time)
					require.GreaterOrEqual(t, series.Samples[i].Distance, series.Samples[i-1].Distance)
				}
			}
		})
	}

	t.Run("downsampling shrinks the entry", func(t *testing.T) {
		t.Parallel()

		raw, err := provider.Fetch(context.Background(), raceKey)
		require.NoError(t, err)

		full, err := normalizer.NewNormalizer(1)(raceKey, raw)
		require.NoError(t, err)
		reduced, err := normalizer.NewNormalizer(4)(raceKey, raw)
		require.NoError(t, err)

		require.Less(t, reduced.SizeBytes, full.SizeBytes)
	})
}
