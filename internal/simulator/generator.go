// Package simulator generates synthetic environmental readings on a daily
// cadence and keeps the reading store inside a rolling retention window.
package simulator

import (
	"math"
	"math/rand/v2"
	"sync"

	"codeberg.org/mutker/envsim/internal/errors"
)

// Distribution is a normal distribution clamped to [Min, Max].
type Distribution struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

func (d Distribution) validate() error {
	if d.StdDev < 0 || d.Min > d.Max {
		return errors.New().WithData(errors.ErrInvalidRange, d)
	}
	return nil
}

// Params configures the generator. Humidity is expressed in percent.
type Params struct {
	Temperature Distribution
	Humidity    Distribution
}

func DefaultParams() Params {
	return Params{
		Temperature: Distribution{Mean: 18.4, StdDev: 0.4, Min: 17.0, Max: 19.5},
		Humidity:    Distribution{Mean: 59.0, StdDev: 2.0, Min: 56.0, Max: 65.0},
	}
}

func (p Params) Validate() error {
	if err := p.Temperature.validate(); err != nil {
		return err
	}
	return p.Humidity.validate()
}

// Generator draws bounded random readings. It is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	params Params
}

// NewGenerator returns a generator drawing from rng.
func NewGenerator(params Params, rng *rand.Rand) (*Generator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New().WithMessage(errors.ErrInvalidArgument, "nil random source")
	}

	return &Generator{rng: rng, params: params}, nil
}

// NewSource returns a seeded random source. Identical seeds yield identical
// sequences.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate returns a temperature in °C and a humidity fraction in [0, 1].
func (g *Generator) Generate() (temperature, humidity float64) {
	g.mu.Lock()
	t := g.draw(g.params.Temperature)
	h := g.draw(g.params.Humidity)
	g.mu.Unlock()

	temperature = clamp(round(t, 2), g.params.Temperature.Min, g.params.Temperature.Max)
	humidity = clamp(round(h/100, 4), g.params.Humidity.Min/100, g.params.Humidity.Max/100)

	return temperature, humidity
}

func (g *Generator) draw(d Distribution) float64 {
	return clamp(d.Mean+g.rng.NormFloat64()*d.StdDev, d.Min, d.Max)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
