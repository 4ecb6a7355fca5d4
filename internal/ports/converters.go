package ports

import (
	"time"

	"github.com/Amund211/pitwall/internal/domain"
)

// Durations are serialized as seconds. Values the provider did not supply are null.

type sessionKeyResponse struct {
	Season  int    `json:"season"`
	Event   string `json:"event"`
	Session string `json:"session"`
}

func sessionKeyToResponse(key domain.SessionKey) sessionKeyResponse {
	return sessionKeyResponse{
		Season:  key.Season,
		Event:   key.Event,
		Session: string(key.SessionType),
	}
}

type driverOverviewResponse struct {
	ID            string `json:"id"`
	Number        string `json:"number"`
	Name          string `json:"name"`
	Team          string `json:"team"`
	LapCount      int    `json:"lapCount"`
	TelemetryLaps []int  `json:"telemetryLaps"`
}

type sessionOverviewResponse struct {
	sessionKeyResponse
	EventName   string                   `json:"eventName"`
	Date        *time.Time               `json:"date"`
	HasLapTable bool                     `json:"hasLapTable"`
	Drivers     []driverOverviewResponse `json:"drivers"`
}

func overviewToResponse(overview domain.SessionOverview) sessionOverviewResponse {
	drivers := make([]driverOverviewResponse, 0, len(overview.Drivers))
	for _, driver := range overview.Drivers {
		telemetryLaps := driver.TelemetryLaps
		if telemetryLaps == nil {
			telemetryLaps = []int{}
		}
		drivers = append(drivers, driverOverviewResponse{
			ID:            driver.Driver.ID,
			Number:        driver.Driver.Number,
			Name:          driver.Driver.Name,
			Team:          driver.Driver.Team,
			LapCount:      driver.LapCount,
			TelemetryLaps: telemetryLaps,
		})
	}

	var date *time.Time
	if !overview.Date.IsZero() {
		date = &overview.Date
	}

	return sessionOverviewResponse{
		sessionKeyResponse: sessionKeyToResponse(overview.Key),
		EventName:          overview.EventName,
		Date:               date,
		HasLapTable:        overview.HasLapTable,
		Drivers:            drivers,
	}
}

type trackStatusResponse struct {
	Yellow           bool `json:"yellow"`
	Red              bool `json:"red"`
	SafetyCar        bool `json:"safetyCar"`
	VirtualSafetyCar bool `json:"virtualSafetyCar"`
}

type lapResponse struct {
	Driver      string      `json:"driver"`
	LapNumber   int         `json:"lap"`
	LapTime     *float64    `json:"lapTime"`
	Sectors     [3]*float64 `json:"sectors"`
	SessionTime *float64    `json:"sessionTime"`
	Position    *int        `json:"position"`
	GapToLeader *float64    `json:"gapToLeader"`
	GapToWinner *float64    `json:"gapToWinner"`
	PitStop     bool        `json:"pitStop"`
	Stint       *int        `json:"stint"`
	Compound    string      `json:"compound"`
	TyreAge     *int        `json:"tyreAge"`

	TrackStatus trackStatusResponse `json:"trackStatus"`
}

func secondsOrNil(duration *time.Duration) *float64 {
	if duration == nil {
		return nil
	}
	seconds := duration.Seconds()
	return &seconds
}

func lapToResponse(lap domain.LapRecord) lapResponse {
	var sectors [3]*float64
	for i, sector := range lap.Sectors {
		sectors[i] = secondsOrNil(sector)
	}

	return lapResponse{
		Driver:      lap.Driver,
		LapNumber:   lap.LapNumber,
		LapTime:     secondsOrNil(lap.LapTime),
		Sectors:     sectors,
		SessionTime: secondsOrNil(lap.SessionTime),
		Position:    lap.Position,
		GapToLeader: secondsOrNil(lap.GapToLeader),
		GapToWinner: secondsOrNil(lap.GapToWinner),
		PitStop:     lap.PitStop,
		Stint:       lap.Stint,
		Compound:    string(lap.Compound),
		TyreAge:     lap.TyreAge,
		TrackStatus: trackStatusResponse{
			Yellow:           lap.TrackStatus.Yellow,
			Red:              lap.TrackStatus.Red,
			SafetyCar:        lap.TrackStatus.SafetyCar,
			VirtualSafetyCar: lap.TrackStatus.VirtualSafetyCar,
		},
	}
}

func lapsToResponse(laps []domain.LapRecord) []lapResponse {
	converted := make([]lapResponse, 0, len(laps))
	for _, lap := range laps {
		converted = append(converted, lapToResponse(lap))
	}
	return converted
}

type telemetryResponse struct {
	Driver    string               `json:"driver"`
	LapNumber int                  `json:"lap"`
	Time      []float64            `json:"time"`
	Distance  []float64            `json:"distance"`
	Channels  map[string][]float64 `json:"channels"`
}

func telemetryToResponse(projected domain.ProjectedTelemetry) telemetryResponse {
	channels := make(map[string][]float64, len(projected.Channels))
	for channel, values := range projected.Channels {
		channels[string(channel)] = values
	}

	return telemetryResponse{
		Driver:    projected.Driver,
		LapNumber: projected.LapNumber,
		Time:      projected.Time,
		Distance:  projected.Distance,
		Channels:  channels,
	}
}

type channelComparisonResponse struct {
	A     []*float64 `json:"a"`
	B     []*float64 `json:"b"`
	Delta []*float64 `json:"delta"`
}

type comparisonResponse struct {
	Distance []float64                            `json:"distance"`
	Time     channelComparisonResponse            `json:"time"`
	Channels map[string]channelComparisonResponse `json:"channels"`
}

func alignedToResponse(aligned domain.AlignedValues) []*float64 {
	values := make([]*float64, len(aligned.Values))
	for i, value := range aligned.Values {
		if aligned.Present[i] {
			values[i] = &value
		}
	}
	return values
}

func channelComparisonToResponse(comparison domain.ChannelComparison) channelComparisonResponse {
	return channelComparisonResponse{
		A:     alignedToResponse(comparison.A),
		B:     alignedToResponse(comparison.B),
		Delta: alignedToResponse(comparison.Delta),
	}
}

func comparisonToResponse(comparison domain.TelemetryComparison) comparisonResponse {
	channels := make(map[string]channelComparisonResponse, len(comparison.Channels))
	for channel, channelComparison := range comparison.Channels {
		channels[string(channel)] = channelComparisonToResponse(channelComparison)
	}

	return comparisonResponse{
		Distance: comparison.Distance,
		Time:     channelComparisonToResponse(comparison.Time),
		Channels: channels,
	}
}
