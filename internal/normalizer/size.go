package normalizer

import (
	"time"
	"unsafe"

	"github.com/Amund211/pitwall/internal/domain"
)

var (
	lapRecordSize = int64(unsafe.Sizeof(domain.LapRecord{}))
	sampleSize    = int64(unsafe.Sizeof(domain.TelemetrySample{}))
	seriesSize    = int64(unsafe.Sizeof(domain.TelemetrySeries{}))
	lapIDSize     = int64(unsafe.Sizeof(domain.LapID{}))
	driverSize    = int64(unsafe.Sizeof(domain.Driver{}))
	entrySize     = int64(unsafe.Sizeof(domain.SessionEntry{}))
	durationSize  = int64(unsafe.Sizeof(time.Duration(0)))
	intSize       = int64(unsafe.Sizeof(int(0)))
)

// sizeOf approximates the memory held by the entry's backing arrays.
// Map overhead is not included.
func sizeOf(entry *domain.SessionEntry) int64 {
	size := entrySize + int64(len(entry.Metadata.EventName))

	for _, driver := range entry.Metadata.Drivers {
		size += driverSize + int64(len(driver.ID)+len(driver.Number)+len(driver.Name)+len(driver.Team))
	}

	for _, record := range entry.LapTable {
		size += lapRecordSize
		for _, duration := range []*time.Duration{record.LapTime, record.SessionTime, record.GapToLeader, record.GapToWinner, record.Sectors[0], record.Sectors[1], record.Sectors[2]} {
			if duration != nil {
				size += durationSize
			}
		}
		for _, value := range []*int{record.Position, record.Stint, record.TyreAge} {
			if value != nil {
				size += intSize
			}
		}
	}

	for id, series := range entry.Telemetry {
		size += lapIDSize + int64(len(id.Driver)) + seriesSize + int64(len(series.Samples))*sampleSize
	}

	for driver, laps := range entry.AvailableLaps {
		size += int64(len(driver)) + int64(laps.GetSizeInBytes())
	}

	return size
}
