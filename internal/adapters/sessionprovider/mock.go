package sessionprovider

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"time"

	"github.com/Amund211/pitwall/internal/config"
	"github.com/Amund211/pitwall/internal/domain"
)

const (
	mockTrackLength    = 5000.0
	mockSampleInterval = 0.25
)

type mockDriver struct {
	driver RawDriver
	// Seconds added to every lap
	pace float64
	// Last lap completed, 0 if the driver finishes
	retiresAfter int
	// Final classification, nil if not classified
	position *float64
}

func float64Ptr(p float64) *float64 {
	return &p
}

var mockDrivers = []mockDriver{
	{
		driver:   RawDriver{Abbreviation: "VER", Number: "1", FullName: "Max Verstappen", TeamName: "Red Bull Racing"},
		pace:     0,
		position: float64Ptr(1),
	},
	{
		driver:   RawDriver{Abbreviation: "HAM", Number: "44", FullName: "Lewis Hamilton", TeamName: "Mercedes"},
		pace:     0.35,
		position: float64Ptr(2),
	},
	{
		driver:   RawDriver{Abbreviation: "PER", Number: "11", FullName: "Sergio Perez", TeamName: "Red Bull Racing"},
		pace:     0.5,
		position: float64Ptr(3),
	},
	{
		driver:       RawDriver{Abbreviation: "LEC", Number: "16", FullName: "Charles Leclerc", TeamName: "Ferrari"},
		pace:         0.2,
		retiresAfter: 3,
	},
}

// mockedProvider generates deterministic synthetic sessions for local development
type mockedProvider struct{}

func NewMockedProvider() *mockedProvider {
	return &mockedProvider{}
}

func mockLapCount(sessionType domain.SessionType) int {
	switch sessionType {
	case domain.SessionTypeRace:
		return 6
	case domain.SessionTypeSprint:
		return 4
	case domain.SessionTypeQualifying:
		return 3
	}
	return 5
}

func (p *mockedProvider) Fetch(ctx context.Context, key domain.SessionKey) (*RawSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hasher := fnv.New32a()
	hasher.Write([]byte(key.String()))
	// Small per-session offset so different sessions are distinguishable
	sessionOffset := float64(hasher.Sum32()%1000) / 1000

	raw := &RawSession{
		Season:      key.Season,
		Event:       key.Event,
		EventName:   key.Event + " Grand Prix",
		SessionType: string(key.SessionType),
		Date:        time.Date(key.Season, time.March, 19, 5, 0, 0, 0, time.UTC),
	}

	lapCount := mockLapCount(key.SessionType)

	for _, md := range mockDrivers {
		raw.Drivers = append(raw.Drivers, md.driver)
		raw.Results = append(raw.Results, RawResult{Driver: md.driver.Abbreviation, Position: md.position})

		sessionTime := 0.0
		for lap := 1; lap <= lapCount; lap++ {
			if md.retiresAfter != 0 && lap > md.retiresAfter {
				break
			}

			lapTime := 80 + sessionOffset + md.pace + 0.05*float64(lap)
			sessionTime += lapTime

			sectors := []float64{lapTime * 0.3, lapTime * 0.4}
			sectors = append(sectors, lapTime-sectors[0]-sectors[1])

			lapNumber := float64(lap)
			stint := 1.0
			compound := string(domain.CompoundMedium)
			tyreLife := float64(lap)
			var pitInTime *float64
			if lap > lapCount/2 {
				stint = 2
				compound = string(domain.CompoundHard)
				tyreLife = float64(lap - lapCount/2)
			}
			if lap == lapCount/2 {
				pitIn := sessionTime
				pitInTime = &pitIn
			}

			trackStatus := "1"
			if lap == 2 {
				trackStatus = "12"
			}

			raw.Laps = append(raw.Laps, RawLap{
				Driver:      md.driver.Abbreviation,
				LapNumber:   &lapNumber,
				LapTime:     float64Ptr(lapTime),
				Sector1Time: float64Ptr(sectors[0]),
				Sector2Time: float64Ptr(sectors[1]),
				Sector3Time: float64Ptr(sectors[2]),
				Time:        float64Ptr(sessionTime),
				PitInTime:   pitInTime,
				Stint:       &stint,
				Compound:    &compound,
				TyreLife:    &tyreLife,
				TrackStatus: trackStatus,
			})

			raw.Telemetry = append(raw.Telemetry, RawLapTelemetry{
				Driver:    md.driver.Abbreviation,
				LapNumber: lap,
				Samples:   mockSamples(lapTime),
			})
		}
	}

	assignMockPositions(raw.Laps)

	return raw, nil
}

// assignMockPositions ranks the drivers on each lap by session time
func assignMockPositions(laps []RawLap) {
	for i := range laps {
		position := 1.0
		for j := range laps {
			if i == j || *laps[i].LapNumber != *laps[j].LapNumber {
				continue
			}
			if *laps[j].Time < *laps[i].Time {
				position++
			}
		}
		laps[i].Position = float64Ptr(position)
	}
}

func mockSamples(lapTime float64) []RawSample {
	radius := mockTrackLength / (2 * math.Pi)
	count := int(lapTime/mockSampleInterval) + 1

	samples := make([]RawSample, 0, count)
	for i := range count {
		t := math.Min(float64(i)*mockSampleInterval, lapTime)
		progress := t / lapTime
		angle := 2 * math.Pi * progress

		phase := math.Sin(3 * angle)
		speed := 220 + 90*phase
		throttle := 100.0
		brake := BrakeValue(0)
		if math.Cos(3*angle) < -0.5 {
			throttle = 0
			brake = 100
		}
		gear := math.Min(math.Floor(speed/40)+1, 8)

		distance := progress * mockTrackLength
		x := radius * math.Cos(angle)
		y := radius * math.Sin(angle)

		samples = append(samples, RawSample{
			Time:     float64Ptr(t),
			Distance: float64Ptr(distance),
			Speed:    float64Ptr(speed),
			Throttle: float64Ptr(throttle),
			Brake:    &brake,
			Gear:     float64Ptr(gear),
			X:        float64Ptr(x),
			Y:        float64Ptr(y),
		})
	}
	return samples
}

func NewSessionProviderOrMock(config config.Config, httpClient *http.Client) (SessionProvider, error) {
	if config.ProviderURL() != "" {
		provider, err := NewHTTPProvider(httpClient, config.ProviderURL(), config.ProviderAPIKey(), DefaultRetryPolicy())
		if err != nil {
			return nil, fmt.Errorf("failed to create http provider: %w", err)
		}
		return provider, nil
	}
	if config.IsDevelopment() {
		return NewMockedProvider(), nil
	}
	return nil, fmt.Errorf("missing provider url in non-development environment")
}
