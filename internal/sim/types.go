package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/integrators"
)

// Metric observes every accepted node of a run.
type Metric interface {
	Name() string
	Observe(t float64, x dynamo.State)
	Value() float64
	Reset()
}

// Config is the immutable description of one integration run.
type Config struct {
	Masses  []float64
	G       float64
	Epsilon float64

	T0, T1 float64

	RelTol      float64
	AbsTol      float64
	MinStep     float64
	MaxStep     float64
	InitialStep float64
	MaxSteps    int

	Samples int
	Timeout time.Duration
}

// DefaultConfig reproduces the classic scenario span and solver settings:
// two bodies (m=2, m=1), G=1, t in [0, 10], rtol=1e-3, atol=1e-6.
func DefaultConfig() Config {
	return Config{
		Masses:   []float64{2, 1},
		G:        1,
		Epsilon:  1e-9,
		T0:       0,
		T1:       10,
		RelTol:   1e-3,
		AbsTol:   1e-6,
		MinStep:  1e-12,
		MaxSteps: 1_000_000,
		Samples:  2001,
	}
}

func (c Config) Validate() error {
	if len(c.Masses) == 0 {
		return fmt.Errorf("%w: no bodies", dynamo.ErrInvalidConfig)
	}
	for i, m := range c.Masses {
		if !(m > 0) || math.IsInf(m, 0) {
			return fmt.Errorf("%w: mass %d must be positive, got %g", dynamo.ErrInvalidConfig, i, m)
		}
	}
	switch {
	case !(c.G > 0) || math.IsInf(c.G, 0):
		return fmt.Errorf("%w: G must be positive, got %g", dynamo.ErrInvalidConfig, c.G)
	case !(c.Epsilon >= 0):
		return fmt.Errorf("%w: epsilon must be non-negative, got %g", dynamo.ErrInvalidConfig, c.Epsilon)
	case math.IsInf(c.T0, 0) || math.IsInf(c.T1, 0) || !(c.T1 > c.T0):
		return fmt.Errorf("%w: span requires t0 < t1, got [%g, %g]", dynamo.ErrInvalidConfig, c.T0, c.T1)
	case !(c.RelTol > 0):
		return fmt.Errorf("%w: rtol must be positive, got %g", dynamo.ErrInvalidConfig, c.RelTol)
	case !(c.AbsTol > 0):
		return fmt.Errorf("%w: atol must be positive, got %g", dynamo.ErrInvalidConfig, c.AbsTol)
	case !(c.MinStep >= 0) || !(c.MaxStep >= 0) || !(c.InitialStep >= 0):
		return fmt.Errorf("%w: step bounds must be non-negative", dynamo.ErrInvalidConfig)
	case c.MaxStep > 0 && c.MinStep > c.MaxStep:
		return fmt.Errorf("%w: min step %g exceeds max step %g", dynamo.ErrInvalidConfig, c.MinStep, c.MaxStep)
	case c.MaxSteps <= 0:
		return fmt.Errorf("%w: max steps must be positive, got %d", dynamo.ErrInvalidConfig, c.MaxSteps)
	case c.Samples < 2:
		return fmt.Errorf("%w: need at least 2 output samples, got %d", dynamo.ErrInvalidConfig, c.Samples)
	case c.Timeout < 0:
		return fmt.Errorf("%w: negative timeout %v", dynamo.ErrInvalidConfig, c.Timeout)
	}
	return nil
}

func (c Config) options() integrators.Options {
	opts := integrators.DefaultOptions()
	opts.RelTol = c.RelTol
	opts.AbsTol = c.AbsTol
	opts.MinStep = c.MinStep
	opts.MaxStep = c.MaxStep
	opts.InitialStep = c.InitialStep
	return opts
}
