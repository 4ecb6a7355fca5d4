package sessionprovider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RawSession is the session export as returned by the upstream provider.
//
// Numeric fields are nullable and may be floats even where integers are
// expected, as the export does not distinguish missing values from numbers.
type RawSession struct {
	Season      int       `json:"season"`
	Event       string    `json:"event"`
	EventName   string    `json:"eventName"`
	SessionType string    `json:"sessionType"`
	Date        time.Time `json:"date"`

	Drivers   []RawDriver       `json:"drivers"`
	Results   []RawResult       `json:"results"`
	Laps      []RawLap          `json:"laps"`
	Telemetry []RawLapTelemetry `json:"telemetry"`
}

type RawDriver struct {
	Abbreviation string `json:"abbreviation"`
	Number       string `json:"number"`
	FullName     string `json:"fullName"`
	TeamName     string `json:"teamName"`
}

type RawResult struct {
	Driver   string   `json:"driver"`
	Position *float64 `json:"position"`
}

// RawLap has times in seconds. Time is the session time at the end of the lap.
type RawLap struct {
	Driver      string   `json:"driver"`
	LapNumber   *float64 `json:"lapNumber"`
	LapTime     *float64 `json:"lapTime"`
	Sector1Time *float64 `json:"sector1Time"`
	Sector2Time *float64 `json:"sector2Time"`
	Sector3Time *float64 `json:"sector3Time"`
	Time        *float64 `json:"time"`
	Position    *float64 `json:"position"`
	PitInTime   *float64 `json:"pitInTime"`
	Stint       *float64 `json:"stint"`
	Compound    *string  `json:"compound"`
	TyreLife    *float64 `json:"tyreLife"`
	// Concatenated status digits, e.g. "124"
	TrackStatus string `json:"trackStatus"`
}

type RawLapTelemetry struct {
	Driver    string      `json:"driver"`
	LapNumber int         `json:"lapNumber"`
	Samples   []RawSample `json:"samples"`
}

// RawSample has Time in seconds since the start of the lap and Distance in meters since the start of the lap
type RawSample struct {
	Time     *float64    `json:"time"`
	Distance *float64    `json:"distance"`
	Speed    *float64    `json:"speed"`
	Throttle *float64    `json:"throttle"`
	Brake    *BrakeValue `json:"brake"`
	Gear     *float64    `json:"nGear"`
	X        *float64    `json:"x"`
	Y        *float64    `json:"y"`
}

// BrakeValue is the brake application in percent.
// The provider reports either a boolean (on/off) or a percentage.
type BrakeValue float64

func (b *BrakeValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "true":
		*b = 100
		return nil
	case "false":
		*b = 0
		return nil
	}

	var percent float64
	if err := json.Unmarshal(trimmed, &percent); err != nil {
		return fmt.Errorf("brake value is neither boolean nor number: %w", err)
	}
	*b = BrakeValue(percent)
	return nil
}
