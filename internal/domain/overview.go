package domain

import "time"

// DriverOverview lists what data is available for one driver in a session
type DriverOverview struct {
	Driver Driver
	// Ascending lap numbers with telemetry
	TelemetryLaps []int
	// Laps completed according to the lap table
	LapCount int
}

type SessionOverview struct {
	Key         SessionKey
	EventName   string
	Date        time.Time
	HasLapTable bool
	// Metadata driver order
	Drivers []DriverOverview
}
