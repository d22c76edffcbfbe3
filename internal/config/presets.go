package config

import (
	"math"
	"sort"
)

var Presets = map[string]*Config{
	"classic": DefaultConfig(),
	"circular": {
		Name:      "circular",
		G:         1,
		Epsilon:   DefaultEpsilon,
		Span:      SpanConfig{T0: 0, T1: 4 * math.Pi},
		Tolerance: ToleranceConfig{RelTol: 1e-8, AbsTol: 1e-10},
		MinStep:   DefaultMinStep,
		MaxSteps:  DefaultMaxSteps,
		Samples:   DefaultSamples,
		Bodies: []BodyConfig{
			{Mass: 1, Position: [3]float64{-0.5, 0, 0}, Velocity: [3]float64{0, -math.Sqrt2 / 2, 0}},
			{Mass: 1, Position: [3]float64{0.5, 0, 0}, Velocity: [3]float64{0, math.Sqrt2 / 2, 0}},
		},
	},
	// coincident bodies: fails on the first derivative
	"collision": {
		Name:      "collision",
		G:         1,
		Epsilon:   DefaultEpsilon,
		Span:      SpanConfig{T0: 0, T1: DefaultT1},
		Tolerance: ToleranceConfig{RelTol: DefaultRelTol, AbsTol: DefaultAbsTol},
		MinStep:   DefaultMinStep,
		MaxSteps:  DefaultMaxSteps,
		Samples:   DefaultSamples,
		Bodies: []BodyConfig{
			{Mass: 2, Position: [3]float64{1, 1, 1}},
			{Mass: 1, Position: [3]float64{1, 1, 1}, Velocity: [3]float64{1, 1, 0}},
		},
	},
	"tight": {
		Name:      "tight",
		G:         1,
		Epsilon:   DefaultEpsilon,
		Span:      SpanConfig{T0: 0, T1: DefaultT1},
		Tolerance: ToleranceConfig{RelTol: 1e-15, AbsTol: 1e-15},
		MinStep:   1e-14,
		MaxSteps:  20_000,
		Samples:   DefaultSamples,
		Bodies:    DefaultConfig().Bodies,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
