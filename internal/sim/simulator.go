package sim

import (
	"context"
	"fmt"

	kitlog "github.com/go-kit/kit/log"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/integrators"
	"github.com/san-kum/gravsim/internal/metrics"
	"github.com/san-kum/gravsim/internal/physics"
)

type Simulator struct {
	dyn     dynamo.System
	metrics []Metric
	logger  kitlog.Logger
}

func New(dyn dynamo.System) *Simulator {
	return &Simulator{
		dyn:     dyn,
		metrics: make([]Metric, 0),
		logger:  kitlog.NewNopLogger(),
	}
}

// ForConfig builds the gravity field described by cfg and registers the
// default conservation metrics.
func ForConfig(cfg Config) (*Simulator, error) {
	field, err := physics.NewGravity(cfg.Masses, cfg.G, cfg.Epsilon)
	if err != nil {
		return nil, err
	}
	s := New(field)
	s.AddMetric(metrics.NewEnergyDrift(field))
	s.AddMetric(metrics.NewMomentumDrift(field))
	s.AddMetric(metrics.NewAngularMomentumDrift(field))
	s.AddMetric(metrics.NewMinSeparation(field))
	return s, nil
}

// Integrate is ForConfig followed by Run.
func Integrate(ctx context.Context, cfg Config, x0 dynamo.State) (*Trajectory, error) {
	s, err := ForConfig(cfg)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, x0, cfg)
}

func (s *Simulator) AddMetric(m Metric) { s.metrics = append(s.metrics, m) }

func (s *Simulator) SetLogger(l kitlog.Logger) {
	if l == nil {
		l = kitlog.NewNopLogger()
	}
	s.logger = l
}

// Run integrates from (cfg.T0, x0) to cfg.T1. An invalid configuration is
// rejected with a nil trajectory. Any failure after that returns the
// trajectory accepted so far together with a *dynamo.SimulationError.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg Config) (*Trajectory, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	traj := newTrajectory(cfg.T0, cfg.T1, x0)
	s.observe(cfg.T0, x0)
	s.logger.Log("level", "info", "subsys", "driver", "status", "start",
		"t0", cfg.T0, "t1", cfg.T1, "rtol", cfg.RelTol, "atol", cfg.AbsTol, "dim", len(x0))

	stepper, err := integrators.NewDormandPrince(s.dyn, cfg.T0, cfg.T1, x0, cfg.options())
	if err != nil {
		return s.fail(traj, integrators.Stats{}, cfg.T0, x0, err)
	}

	for stepper.Status() != integrators.Done {
		if err := ctx.Err(); err != nil {
			return s.fail(traj, stepper.Stats(), stepper.Time(), stepper.State(),
				fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, err))
		}
		if traj.Steps() >= cfg.MaxSteps {
			return s.fail(traj, stepper.Stats(), stepper.Time(), stepper.State(),
				fmt.Errorf("%w: %d steps before t=%g", dynamo.ErrMaxSteps, cfg.MaxSteps, cfg.T1))
		}

		seg, err := stepper.Step()
		if err != nil {
			return s.fail(traj, stepper.Stats(), stepper.Time(), stepper.State(), err)
		}
		traj.append(seg)
		s.observe(seg.T1, seg.Y1)
	}

	stats := stepper.Stats()
	traj.seal(stats, s.collect(), nil)
	s.logger.Log("level", "info", "subsys", "driver", "status", "finished",
		"accepted", stats.Accepted, "rejected", stats.Rejected, "evaluations", stats.Evaluations)
	return traj, nil
}

func (s *Simulator) validate(x0 dynamo.State, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if want := 6 * len(cfg.Masses); s.dyn.StateDim() != want {
		return fmt.Errorf("%w: system has dimension %d, %d bodies need %d", dynamo.ErrInvalidConfig, s.dyn.StateDim(), len(cfg.Masses), want)
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("%w: initial state has %d components, want %d", dynamo.ErrInvalidConfig, len(x0), s.dyn.StateDim())
	}
	if !x0.IsValid() {
		return fmt.Errorf("%w: initial state is not finite", dynamo.ErrInvalidConfig)
	}
	return nil
}

func (s *Simulator) fail(traj *Trajectory, stats integrators.Stats, t float64, x dynamo.State, cause error) (*Trajectory, error) {
	err := &dynamo.SimulationError{
		Step:    traj.Steps(),
		Time:    t,
		State:   x.Clone(),
		Wrapped: cause,
	}
	traj.seal(stats, s.collect(), err)
	s.logger.Log("level", "error", "subsys", "driver", "status", "aborted",
		"step", err.Step, "t", t, "accepted", stats.Accepted, "rejected", stats.Rejected, "err", cause)
	return traj, err
}

func (s *Simulator) observe(t float64, x dynamo.State) {
	for _, m := range s.metrics {
		m.Observe(t, x)
	}
}

func (s *Simulator) collect() map[string]float64 {
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}
