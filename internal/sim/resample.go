package sim

import (
	"fmt"
	"iter"
	"math"

	"github.com/san-kum/gravsim/internal/dynamo"
)

// Samples is a fixed grid of query times over a finished trajectory.
// States are interpolated on demand; nothing is integrated again.
type Samples struct {
	traj  *Trajectory
	times []float64
}

// Resample validates the query times against the integrated span.
// Times must be strictly increasing.
func Resample(traj *Trajectory, times []float64) (*Samples, error) {
	if traj == nil {
		return nil, fmt.Errorf("%w: nil trajectory", dynamo.ErrInvalidConfig)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: empty sample request", dynamo.ErrInvalidConfig)
	}
	for i, t := range times {
		if math.IsNaN(t) {
			return nil, fmt.Errorf("%w: sample %d is NaN", dynamo.ErrInvalidConfig, i)
		}
		if i > 0 && !(t > times[i-1]) {
			return nil, fmt.Errorf("%w: sample times not strictly increasing at %d (%g after %g)", dynamo.ErrInvalidConfig, i, t, times[i-1])
		}
	}
	start, end := traj.t0, traj.End()
	if first, last := times[0], times[len(times)-1]; first < start || last > end {
		return nil, fmt.Errorf("%w: samples [%g, %g] outside [%g, %g]", dynamo.ErrOutOfRange, first, last, start, end)
	}

	s := &Samples{traj: traj, times: make([]float64, len(times))}
	copy(s.times, times)
	return s, nil
}

// Uniform samples n evenly spaced times over the span the trajectory
// actually covers, both ends included.
func Uniform(traj *Trajectory, n int) (*Samples, error) {
	if traj == nil {
		return nil, fmt.Errorf("%w: nil trajectory", dynamo.ErrInvalidConfig)
	}
	if traj.Steps() == 0 {
		return nil, fmt.Errorf("%w: trajectory has no accepted steps", dynamo.ErrOutOfRange)
	}
	times, err := Linspace(traj.t0, traj.End(), n)
	if err != nil {
		return nil, err
	}
	return Resample(traj, times)
}

// Linspace returns n evenly spaced values from t0 to t1 inclusive.
func Linspace(t0, t1 float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", dynamo.ErrInvalidConfig, n)
	}
	if !(t1 > t0) {
		return nil, fmt.Errorf("%w: empty interval [%g, %g]", dynamo.ErrInvalidConfig, t0, t1)
	}
	step := (t1 - t0) / float64(n-1)
	times := make([]float64, n)
	for i := range times {
		times[i] = t0 + float64(i)*step
	}
	times[n-1] = t1
	return times, nil
}

func (s *Samples) SampleCount() int { return len(s.times) }

func (s *Samples) TimeAt(i int) float64 { return s.times[i] }

func (s *Samples) StateAt(i int) dynamo.State {
	t := s.times[i]
	out := make(dynamo.State, len(s.traj.states[0]))
	s.traj.evalFrom(s.traj.locate(t), t, out)
	return out
}

// All walks the samples in order. Each call starts over, and each yielded
// state is a fresh slice the caller may keep.
func (s *Samples) All() iter.Seq2[float64, dynamo.State] {
	return func(yield func(float64, dynamo.State) bool) {
		tr := s.traj
		k := 0
		for _, t := range s.times {
			for k+1 < len(tr.times) && tr.times[k+1] <= t {
				k++
			}
			out := make(dynamo.State, len(tr.states[0]))
			tr.evalFrom(k, t, out)
			if !yield(t, out) {
				return
			}
		}
	}
}

var _ dynamo.Frames = (*Samples)(nil)
