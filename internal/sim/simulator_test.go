package sim

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	kitlog "github.com/go-kit/kit/log"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

func classicState() dynamo.State {
	return physics.Pack([]physics.Body{
		{Mass: 2},
		{Mass: 1, Position: r3.Vec{X: 1, Y: 1, Z: 1}, Velocity: r3.Vec{X: 1, Y: 1}},
	})
}

func runClassic(t *testing.T, cfg Config) (*Trajectory, error) {
	t.Helper()
	return Integrate(context.Background(), cfg, classicState())
}

func TestSimulatorRun(t *testing.T) {
	cfg := DefaultConfig()
	traj, err := runClassic(t, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !traj.Complete() {
		t.Fatal("expected complete trajectory")
	}
	if traj.End() != cfg.T1 {
		t.Errorf("expected end %v, got %v", cfg.T1, traj.End())
	}
	if traj.Len() != traj.Steps()+1 {
		t.Errorf("expected %d nodes, got %d", traj.Steps()+1, traj.Len())
	}
	if traj.Time(0) != cfg.T0 {
		t.Errorf("expected first node at %v, got %v", cfg.T0, traj.Time(0))
	}

	times := traj.Times()
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			t.Fatalf("node times not increasing at %d: %v <= %v", i, times[i], times[i-1])
		}
	}
	for i := 0; i < traj.Len(); i++ {
		if !traj.State(i).IsValid() {
			t.Fatalf("node %d is not finite", i)
		}
	}

	stats := traj.Stats()
	if stats.Accepted != traj.Steps() {
		t.Errorf("expected %d accepted, got %d", traj.Steps(), stats.Accepted)
	}
	if stats.Evaluations < 6*stats.Accepted {
		t.Errorf("too few evaluations: %d for %d steps", stats.Evaluations, stats.Accepted)
	}

	m := traj.Metrics()
	for _, name := range []string{"energy_drift", "momentum_drift", "angular_momentum_drift", "min_separation"} {
		if _, ok := m[name]; !ok {
			t.Errorf("missing metric %q", name)
		}
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no bodies", func(c *Config) { c.Masses = nil }},
		{"zero mass", func(c *Config) { c.Masses = []float64{2, 0} }},
		{"negative G", func(c *Config) { c.G = -1 }},
		{"empty span", func(c *Config) { c.T1 = c.T0 }},
		{"reversed span", func(c *Config) { c.T0, c.T1 = 10, 0 }},
		{"zero rtol", func(c *Config) { c.RelTol = 0 }},
		{"negative atol", func(c *Config) { c.AbsTol = -1e-6 }},
		{"NaN rtol", func(c *Config) { c.RelTol = math.NaN() }},
		{"min above max", func(c *Config) { c.MinStep, c.MaxStep = 1, 0.1 }},
		{"zero max steps", func(c *Config) { c.MaxSteps = 0 }},
		{"one sample", func(c *Config) { c.Samples = 1 }},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			traj, err := New(mustGravity(t)).Run(context.Background(), classicState(), cfg)
			if !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if traj != nil {
				t.Error("expected no trajectory for invalid config")
			}
		})
	}
}

func mustGravity(t *testing.T) *physics.Gravity {
	t.Helper()
	g, err := physics.NewGravity([]float64{2, 1}, 1, 1e-9)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSimulatorBadInitialState(t *testing.T) {
	s := New(mustGravity(t))
	cfg := DefaultConfig()

	if _, err := s.Run(context.Background(), dynamo.State{1, 2, 3}, cfg); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("short state: expected ErrInvalidConfig, got %v", err)
	}

	x0 := classicState()
	x0[4] = math.NaN()
	if _, err := s.Run(context.Background(), x0, cfg); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("NaN state: expected ErrInvalidConfig, got %v", err)
	}
}

func TestSimulatorSingularity(t *testing.T) {
	x0 := physics.Pack([]physics.Body{
		{Mass: 2, Position: r3.Vec{X: 1, Y: 1, Z: 1}},
		{Mass: 1, Position: r3.Vec{X: 1, Y: 1, Z: 1}, Velocity: r3.Vec{X: 1}},
	})

	traj, err := Integrate(context.Background(), DefaultConfig(), x0)
	if !errors.Is(err, dynamo.ErrSingularity) {
		t.Fatalf("expected ErrSingularity, got %v", err)
	}

	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected *SimulationError, got %T", err)
	}
	if simErr.Step != 0 || simErr.Time != 0 {
		t.Errorf("expected failure at step 0, t=0; got step %d, t=%v", simErr.Step, simErr.Time)
	}

	if traj == nil {
		t.Fatal("expected partial trajectory")
	}
	if traj.Steps() != 0 || traj.Complete() {
		t.Errorf("expected empty incomplete trajectory, got %d steps", traj.Steps())
	}
	if !errors.Is(traj.Err(), dynamo.ErrSingularity) {
		t.Errorf("trajectory should carry the failure, got %v", traj.Err())
	}
	if !traj.State(0).IsValid() {
		t.Error("initial node should be finite")
	}
}

func TestSimulatorStepTooSmall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelTol = 1e-12
	cfg.AbsTol = 1e-12
	cfg.MinStep = 0.5
	cfg.InitialStep = 0.5

	traj, err := runClassic(t, cfg)
	if !errors.Is(err, dynamo.ErrStepTooSmall) {
		t.Fatalf("expected ErrStepTooSmall, got %v", err)
	}
	if traj.Steps() != 0 {
		t.Errorf("expected no accepted steps, got %d", traj.Steps())
	}
	if traj.Stats().Rejected == 0 {
		t.Error("expected rejected attempts")
	}
}

func TestSimulatorTightTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RelTol = 1e-15
	cfg.AbsTol = 1e-15
	cfg.MaxSteps = 2000

	traj, err := runClassic(t, cfg)
	if err != nil && !errors.Is(err, dynamo.ErrStepTooSmall) && !errors.Is(err, dynamo.ErrMaxSteps) {
		t.Fatalf("unexpected error: %v", err)
	}
	if err != nil && traj.End() >= cfg.T1 {
		t.Errorf("failed run should stop before %v, reached %v", cfg.T1, traj.End())
	}
	for i := 0; i < traj.Len(); i++ {
		if !traj.State(i).IsValid() {
			t.Fatalf("node %d is not finite", i)
		}
	}
}

func TestSimulatorMaxSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = 3

	traj, err := runClassic(t, cfg)
	if !errors.Is(err, dynamo.ErrMaxSteps) {
		t.Fatalf("expected ErrMaxSteps, got %v", err)
	}
	if traj.Steps() != 3 {
		t.Errorf("expected 3 steps, got %d", traj.Steps())
	}
}

func TestSimulatorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	traj, err := Integrate(ctx, DefaultConfig(), classicState())
	if !errors.Is(err, dynamo.ErrContextCanceled) {
		t.Errorf("expected ErrContextCanceled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if traj == nil || traj.Steps() != 0 {
		t.Error("expected empty partial trajectory")
	}
}

func TestSimulatorLogging(t *testing.T) {
	var buf bytes.Buffer
	s, err := ForConfig(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s.SetLogger(kitlog.NewLogfmtLogger(&buf))

	if _, err := s.Run(context.Background(), classicState(), DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"status=start", "status=finished", "subsys=driver"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}

	s.SetLogger(nil)
	if _, err := s.Run(context.Background(), classicState(), DefaultConfig()); err != nil {
		t.Fatal(err)
	}
}

func TestSimulatorRerunResetsMetrics(t *testing.T) {
	s, err := ForConfig(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.Run(context.Background(), classicState(), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Run(context.Background(), classicState(), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	a, b := first.Metrics(), second.Metrics()
	for name, v := range a {
		if b[name] != v {
			t.Errorf("%s: first run %v, second run %v", name, v, b[name])
		}
	}
}
