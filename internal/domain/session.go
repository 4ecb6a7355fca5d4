package domain

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

type Driver struct {
	// Three letter abbreviation, e.g. "VER"
	ID     string
	Number string
	Name   string
	Team   string
}

type SessionMetadata struct {
	EventName string
	Date      time.Time
	// Ordered by final classification, unclassified drivers last
	Drivers []Driver
}

type Compound string

const (
	CompoundSoft         Compound = "SOFT"
	CompoundMedium       Compound = "MEDIUM"
	CompoundHard         Compound = "HARD"
	CompoundIntermediate Compound = "INTERMEDIATE"
	CompoundWet          Compound = "WET"
	CompoundUnknown      Compound = "UNKNOWN"
)

type TrackStatus struct {
	Yellow           bool
	Red              bool
	SafetyCar        bool
	VirtualSafetyCar bool
}

func (s TrackStatus) Nominal() bool {
	return !s.Yellow && !s.Red && !s.SafetyCar && !s.VirtualSafetyCar
}

// LapRecord holds the lap-level data for one driver's lap.
//
// Measured values are nil when the provider did not supply them, e.g. the lap
// time of the lap a driver retired on.
type LapRecord struct {
	Driver    string
	LapNumber int

	LapTime *time.Duration
	Sectors [3]*time.Duration
	// Session time at which the lap was completed
	SessionTime *time.Duration

	Position    *int
	GapToLeader *time.Duration
	GapToWinner *time.Duration

	PitStop  bool
	Stint    *int
	Compound Compound
	TyreAge  *int

	TrackStatus TrackStatus
}

type TelemetrySample struct {
	// Offset from the start of the lap
	Time     time.Duration
	Distance float64
	Speed    float64
	Throttle float64
	Brake    float64
	Gear     int
	X        float64
	Y        float64
}

type LapID struct {
	Driver    string
	LapNumber int
}

type TelemetrySeries struct {
	Driver    string
	LapNumber int
	// Strictly increasing Time, non-decreasing Distance
	Samples []TelemetrySample
}

// SessionEntry is the normalized data for one session.
//
// Entries are shared between all readers of the cache and must never be mutated
// after they have been published.
type SessionEntry struct {
	Key      SessionKey
	Metadata SessionMetadata

	// Ordered by driver (metadata order) then lap number.
	// Empty for session types without lap data.
	LapTable []LapRecord

	Telemetry map[LapID]TelemetrySeries

	// Lap numbers with telemetry, per driver
	AvailableLaps map[string]*roaring.Bitmap

	SizeBytes int64
}

func (e *SessionEntry) HasDriver(driverID string) bool {
	for _, driver := range e.Metadata.Drivers {
		if driver.ID == driverID {
			return true
		}
	}
	return false
}

func (e *SessionEntry) HasTelemetry(driverID string, lapNumber int) bool {
	if lapNumber < 0 {
		return false
	}
	laps, ok := e.AvailableLaps[driverID]
	if !ok {
		return false
	}
	return laps.Contains(uint32(lapNumber))
}
