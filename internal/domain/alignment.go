package domain

import (
	"slices"
	"sort"
)

// LapRef identifies one driver's lap in one session
type LapRef struct {
	Key       SessionKey
	Driver    string
	LapNumber int
}

// AlignedValues holds values on a distance grid. Present[i] is false where the
// value is undefined, i.e. outside the distance range of the source series.
type AlignedValues struct {
	Values  []float64
	Present []bool
}

type ChannelComparison struct {
	A AlignedValues
	B AlignedValues
	// B - A, present where both A and B are present
	Delta AlignedValues
}

type TelemetryComparison struct {
	Distance []float64
	// Elapsed lap time in seconds at each grid distance
	Time     ChannelComparison
	Channels map[Channel]ChannelComparison
}

// CompareTelemetry resamples both series onto the union of their distance samples.
//
// For a grid distance d the value of a series is taken from the first sample
// with distance >= d if its distance equals d, and otherwise linearly
// interpolated between that sample and the one before it. Distances outside the
// range of the series are absent.
func CompareTelemetry(a, b TelemetrySeries, channels ChannelSet) TelemetryComparison {
	projectedA := ProjectTelemetry(a, channels)
	projectedB := ProjectTelemetry(b, channels)

	grid := distanceGrid(projectedA.Distance, projectedB.Distance)

	comparison := TelemetryComparison{
		Distance: grid,
		Time:     compareColumns(grid, projectedA.Distance, projectedA.Time, projectedB.Distance, projectedB.Time),
		Channels: make(map[Channel]ChannelComparison, len(channels)),
	}

	for _, channel := range channels {
		comparison.Channels[channel] = compareColumns(
			grid,
			projectedA.Distance, projectedA.Channels[channel],
			projectedB.Distance, projectedB.Channels[channel],
		)
	}

	return comparison
}

func distanceGrid(a, b []float64) []float64 {
	grid := make([]float64, 0, len(a)+len(b))
	grid = append(grid, a...)
	grid = append(grid, b...)
	sort.Float64s(grid)
	return slices.Compact(grid)
}

func compareColumns(grid, distanceA, valuesA, distanceB, valuesB []float64) ChannelComparison {
	alignedA := alignColumn(grid, distanceA, valuesA)
	alignedB := alignColumn(grid, distanceB, valuesB)

	delta := AlignedValues{
		Values:  make([]float64, len(grid)),
		Present: make([]bool, len(grid)),
	}
	for i := range grid {
		if alignedA.Present[i] && alignedB.Present[i] {
			delta.Values[i] = alignedB.Values[i] - alignedA.Values[i]
			delta.Present[i] = true
		}
	}

	return ChannelComparison{
		A:     alignedA,
		B:     alignedB,
		Delta: delta,
	}
}

func alignColumn(grid, distances, values []float64) AlignedValues {
	aligned := AlignedValues{
		Values:  make([]float64, len(grid)),
		Present: make([]bool, len(grid)),
	}
	for i, d := range grid {
		aligned.Values[i], aligned.Present[i] = InterpolateAt(distances, values, d)
	}
	return aligned
}

// InterpolateAt returns the value of the column at distance d.
//
// distances must be non-decreasing. Returns false if d is outside the range of distances.
func InterpolateAt(distances, values []float64, d float64) (float64, bool) {
	upper := sort.SearchFloat64s(distances, d)
	if upper == len(distances) {
		return 0, false
	}
	if distances[upper] == d {
		return values[upper], true
	}
	if upper == 0 {
		return 0, false
	}

	lower := upper - 1
	fraction := (d - distances[lower]) / (distances[upper] - distances[lower])
	return values[lower] + (values[upper]-values[lower])*fraction, true
}
