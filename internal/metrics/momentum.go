package metrics

import (
	"math"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

// vectorDrift tracks max |v(t) - v(t0)|, relative to |v(t0)| when that is
// non-zero.
type vectorDrift struct {
	name     string
	measure  func(dynamo.State) r3.Vec
	initial  r3.Vec
	maxDrift float64
	samples  int
}

func (v *vectorDrift) Name() string { return v.name }

func (v *vectorDrift) Observe(t float64, x dynamo.State) {
	current := v.measure(x)
	if v.samples == 0 {
		v.initial = current
	}
	v.samples++

	drift := r3.Norm(r3.Sub(current, v.initial))
	if n := r3.Norm(v.initial); n > 0 {
		drift /= n
	}
	v.maxDrift = math.Max(v.maxDrift, drift)
}

func (v *vectorDrift) Value() float64 { return v.maxDrift }

func (v *vectorDrift) Reset() {
	v.initial = r3.Vec{}
	v.maxDrift = 0
	v.samples = 0
}

type MomentumDrift struct{ vectorDrift }

func NewMomentumDrift(g *physics.Gravity) *MomentumDrift {
	return &MomentumDrift{vectorDrift{name: "momentum_drift", measure: g.Momentum}}
}

type AngularMomentumDrift struct{ vectorDrift }

func NewAngularMomentumDrift(g *physics.Gravity) *AngularMomentumDrift {
	return &AngularMomentumDrift{vectorDrift{name: "angular_momentum_drift", measure: g.AngularMomentum}}
}
