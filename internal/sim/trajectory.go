package sim

import (
	"fmt"
	"maps"
	"sort"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/integrators"
)

// Trajectory is the record of one run: the accepted nodes, one dense-output
// segment per accepted step, and what the run measured. It is extended only
// by the Simulator that owns it and is read-only once Run returns.
type Trajectory struct {
	t0, t1   float64
	times    []float64
	states   []dynamo.State
	segments []integrators.Segment

	stats   integrators.Stats
	metrics map[string]float64
	err     error
	sealed  bool
}

func newTrajectory(t0, t1 float64, x0 dynamo.State) *Trajectory {
	return &Trajectory{
		t0:     t0,
		t1:     t1,
		times:  []float64{t0},
		states: []dynamo.State{x0.Clone()},
	}
}

func (tr *Trajectory) append(seg integrators.Segment) {
	if tr.sealed {
		panic("sim: append to a finished trajectory")
	}
	tr.segments = append(tr.segments, seg)
	tr.times = append(tr.times, seg.T1)
	tr.states = append(tr.states, seg.Y1)
}

func (tr *Trajectory) seal(stats integrators.Stats, metrics map[string]float64, err error) {
	tr.stats = stats
	tr.metrics = metrics
	tr.err = err
	tr.sealed = true
}

// Len is the number of nodes, the initial state included.
func (tr *Trajectory) Len() int { return len(tr.times) }

// Steps is the number of accepted steps.
func (tr *Trajectory) Steps() int { return len(tr.segments) }

func (tr *Trajectory) Time(i int) float64 { return tr.times[i] }

func (tr *Trajectory) State(i int) dynamo.State { return tr.states[i].Clone() }

func (tr *Trajectory) Times() []float64 {
	out := make([]float64, len(tr.times))
	copy(out, tr.times)
	return out
}

// Span is the requested integration interval.
func (tr *Trajectory) Span() (float64, float64) { return tr.t0, tr.t1 }

// End is the last time actually reached.
func (tr *Trajectory) End() float64 { return tr.times[len(tr.times)-1] }

func (tr *Trajectory) Complete() bool { return tr.err == nil && tr.End() == tr.t1 }

func (tr *Trajectory) Stats() integrators.Stats { return tr.stats }

func (tr *Trajectory) Metrics() map[string]float64 { return maps.Clone(tr.metrics) }

// Err is the reason a run stopped early, nil for a complete run.
func (tr *Trajectory) Err() error { return tr.err }

// Eval writes the dense-output state at t into out.
func (tr *Trajectory) Eval(t float64, out dynamo.State) error {
	if !(t >= tr.t0 && t <= tr.End()) {
		return fmt.Errorf("%w: t=%g not in [%g, %g]", dynamo.ErrOutOfRange, t, tr.t0, tr.End())
	}
	if len(out) != len(tr.states[0]) {
		return fmt.Errorf("%w: output has %d components, want %d", dynamo.ErrDimensionMismatch, len(out), len(tr.states[0]))
	}
	tr.evalFrom(tr.locate(t), t, out)
	return nil
}

// locate returns the node index k with times[k] <= t < times[k+1], or the
// last node when t is the end time.
func (tr *Trajectory) locate(t float64) int {
	k := sort.SearchFloat64s(tr.times, t)
	if k < len(tr.times) && tr.times[k] == t {
		return k
	}
	return k - 1
}

func (tr *Trajectory) evalFrom(k int, t float64, out dynamo.State) {
	if tr.times[k] == t {
		copy(out, tr.states[k])
		return
	}
	tr.segments[k].Eval(t, out)
}
