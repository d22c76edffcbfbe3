package config

import (
	"fmt"
	"os"
	"time"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"github.com/san-kum/gravsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultG        = 1.0
	DefaultEpsilon  = 1e-9
	DefaultT1       = 10.0
	DefaultRelTol   = 1e-3
	DefaultAbsTol   = 1e-6
	DefaultMinStep  = 1e-12
	DefaultMaxSteps = 1_000_000
	DefaultSamples  = 2001
)

// Config is a scenario file: the bodies, the span and the solver settings.
type Config struct {
	Name      string          `yaml:"name"`
	G         float64         `yaml:"g"`
	Epsilon   float64         `yaml:"epsilon"`
	Span      SpanConfig      `yaml:"span"`
	Tolerance ToleranceConfig `yaml:"tolerance"`
	MinStep   float64         `yaml:"min_step"`
	MaxStep   float64         `yaml:"max_step,omitempty"`
	MaxSteps  int             `yaml:"max_steps"`
	Samples   int             `yaml:"samples"`
	Timeout   time.Duration   `yaml:"timeout,omitempty"`
	Bodies    []BodyConfig    `yaml:"bodies"`
}

type SpanConfig struct {
	T0 float64 `yaml:"t0"`
	T1 float64 `yaml:"t1"`
}

type ToleranceConfig struct {
	RelTol float64 `yaml:"rtol"`
	AbsTol float64 `yaml:"atol"`
}

type BodyConfig struct {
	Mass     float64    `yaml:"mass"`
	Position [3]float64 `yaml:"position,flow"`
	Velocity [3]float64 `yaml:"velocity,flow"`
}

// DefaultConfig is the classic scenario: m=2 at rest at the origin, m=1 at
// (1,1,1) moving with (1,1,0), integrated over [0, 10].
func DefaultConfig() *Config {
	return &Config{
		Name:      "classic",
		G:         DefaultG,
		Epsilon:   DefaultEpsilon,
		Span:      SpanConfig{T0: 0, T1: DefaultT1},
		Tolerance: ToleranceConfig{RelTol: DefaultRelTol, AbsTol: DefaultAbsTol},
		MinStep:   DefaultMinStep,
		MaxSteps:  DefaultMaxSteps,
		Samples:   DefaultSamples,
		Bodies: []BodyConfig{
			{Mass: 2},
			{Mass: 1, Position: [3]float64{1, 1, 1}, Velocity: [3]float64{1, 1, 0}},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Bodies = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Bodies) == 0 {
		cfg.Bodies = DefaultConfig().Bodies
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy, so presets can be handed out and modified.
func (c *Config) Clone() *Config {
	out := *c
	out.Bodies = append([]BodyConfig(nil), c.Bodies...)
	return &out
}

func (c *Config) Masses() []float64 {
	masses := make([]float64, len(c.Bodies))
	for i, b := range c.Bodies {
		masses[i] = b.Mass
	}
	return masses
}

// Sim converts the scenario into the driver's run configuration.
func (c *Config) Sim() sim.Config {
	return sim.Config{
		Masses:   c.Masses(),
		G:        c.G,
		Epsilon:  c.Epsilon,
		T0:       c.Span.T0,
		T1:       c.Span.T1,
		RelTol:   c.Tolerance.RelTol,
		AbsTol:   c.Tolerance.AbsTol,
		MinStep:  c.MinStep,
		MaxStep:  c.MaxStep,
		MaxSteps: c.MaxSteps,
		Samples:  c.Samples,
		Timeout:  c.Timeout,
	}
}

func (c *Config) PhysicsBodies() []physics.Body {
	bodies := make([]physics.Body, len(c.Bodies))
	for i, b := range c.Bodies {
		bodies[i] = physics.Body{
			Mass:     b.Mass,
			Position: r3.Vec{X: b.Position[0], Y: b.Position[1], Z: b.Position[2]},
			Velocity: r3.Vec{X: b.Velocity[0], Y: b.Velocity[1], Z: b.Velocity[2]},
		}
	}
	return bodies
}

// InitialState packs the bodies into the simulator's state layout.
func (c *Config) InitialState() dynamo.State {
	return physics.Pack(c.PhysicsBodies())
}

// Validate checks the scenario the same way a run would, without running it.
func (c *Config) Validate() error {
	if err := c.Sim().Validate(); err != nil {
		return err
	}
	if !c.InitialState().IsValid() {
		return fmt.Errorf("%w: initial state is not finite", dynamo.ErrInvalidConfig)
	}
	return nil
}
