package domain

import (
	"fmt"
	"slices"
	"strings"
)

type Channel string

const (
	ChannelSpeed    Channel = "speed"
	ChannelThrottle Channel = "throttle"
	ChannelBrake    Channel = "brake"
	ChannelGear     Channel = "gear"
	ChannelX        Channel = "x"
	ChannelY        Channel = "y"
)

// Canonical channel order
var allChannels = []Channel{
	ChannelSpeed,
	ChannelThrottle,
	ChannelBrake,
	ChannelGear,
	ChannelX,
	ChannelY,
}

// ChannelSet is a deduplicated set of channels in canonical order
type ChannelSet []Channel

func AllChannels() ChannelSet {
	return slices.Clone(allChannels)
}

// ParseChannelSet parses channel names case-insensitively.
//
// "position" expands to x and y.
func ParseChannelSet(names []string) (ChannelSet, error) {
	requested := make(map[Channel]bool, len(names))
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "position" {
			requested[ChannelX] = true
			requested[ChannelY] = true
			continue
		}
		channel := Channel(normalized)
		if !slices.Contains(allChannels, channel) {
			return nil, fmt.Errorf("%w: '%s'", ErrInvalidChannel, name)
		}
		requested[channel] = true
	}

	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: no channels requested", ErrInvalidChannel)
	}

	set := make(ChannelSet, 0, len(requested))
	for _, channel := range allChannels {
		if requested[channel] {
			set = append(set, channel)
		}
	}
	return set, nil
}

// Validate rejects empty sets and channels unknown to ParseChannelSet
func (s ChannelSet) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no channels requested", ErrInvalidChannel)
	}
	for _, channel := range s {
		if !slices.Contains(allChannels, channel) {
			return fmt.Errorf("%w: '%s'", ErrInvalidChannel, channel)
		}
	}
	return nil
}

func (c Channel) valueOf(sample TelemetrySample) float64 {
	switch c {
	case ChannelSpeed:
		return sample.Speed
	case ChannelThrottle:
		return sample.Throttle
	case ChannelBrake:
		return sample.Brake
	case ChannelGear:
		return float64(sample.Gear)
	case ChannelX:
		return sample.X
	case ChannelY:
		return sample.Y
	}
	panic(fmt.Sprintf("unknown channel %s", c))
}

// ProjectedTelemetry is a column oriented copy of the requested channels of a series
type ProjectedTelemetry struct {
	Driver    string
	LapNumber int
	// Seconds since the start of the lap
	Time     []float64
	Distance []float64
	Channels map[Channel][]float64
}

func ProjectTelemetry(series TelemetrySeries, channels ChannelSet) ProjectedTelemetry {
	count := len(series.Samples)
	projected := ProjectedTelemetry{
		Driver:    series.Driver,
		LapNumber: series.LapNumber,
		Time:      make([]float64, count),
		Distance:  make([]float64, count),
		Channels:  make(map[Channel][]float64, len(channels)),
	}

	for i, sample := range series.Samples {
		projected.Time[i] = sample.Time.Seconds()
		projected.Distance[i] = sample.Distance
	}

	for _, channel := range channels {
		values := make([]float64, count)
		for i, sample := range series.Samples {
			values[i] = channel.valueOf(sample)
		}
		projected.Channels[channel] = values
	}

	return projected
}
