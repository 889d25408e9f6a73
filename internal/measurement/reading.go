// Package measurement holds the readings produced by the simulator and the
// calendar types used to bucket them into local days.
package measurement

import "time"

// Reading is one persisted sample. Timestamp is unique across the store.
type Reading struct {
	Timestamp   time.Time
	Temperature Span
	Humidity    Span
}

// Span is a current value with the min/max observed over the sample period.
type Span struct {
	Current float64
	Min     float64
	Max     float64
}

// Flat returns a span where min and max mirror the current value.
func Flat(v float64) Span {
	return Span{Current: v, Min: v, Max: v}
}

// NewReading builds a reading with no intra-period variation.
// humidity is a fraction in [0, 1].
func NewReading(ts time.Time, temperature, humidity float64) Reading {
	return Reading{
		Timestamp:   ts,
		Temperature: Flat(temperature),
		Humidity:    Flat(humidity),
	}
}

// Limits are the acceptable ranges for a reading.
type Limits struct {
	TemperatureLow  float64
	TemperatureHigh float64
	// HumidityPct is the upper humidity bound in percent; readings at or above it violate.
	HumidityPct float64
}

// DefaultLimits returns the limits used by the monitoring dashboard.
func DefaultLimits() Limits {
	return Limits{
		TemperatureLow:  17.0,
		TemperatureHigh: 19.5,
		HumidityPct:     62.0,
	}
}

// Violation describes why a reading falls outside the limits.
type Violation struct {
	Temperature bool
	Humidity    bool
}

// Any reports whether any limit was violated.
func (v Violation) Any() bool {
	return v.Temperature || v.Humidity
}

// Check classifies a reading against the limits.
func (l Limits) Check(r Reading) Violation {
	t := r.Temperature.Current
	return Violation{
		Temperature: t < l.TemperatureLow || t > l.TemperatureHigh,
		Humidity:    r.Humidity.Current >= l.HumidityPct/100,
	}
}
