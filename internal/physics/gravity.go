package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/gravsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Gravity is the Newtonian N-body vector field over a packed state.
type Gravity struct {
	Masses  []float64
	G       float64
	Epsilon float64
}

// NewGravity validates the physical parameters and returns the field.
// The masses slice is copied.
func NewGravity(masses []float64, g, epsilon float64) (*Gravity, error) {
	if len(masses) == 0 {
		return nil, fmt.Errorf("%w: no bodies", dynamo.ErrInvalidConfig)
	}
	for i, m := range masses {
		if !(m > 0) || math.IsInf(m, 0) {
			return nil, fmt.Errorf("%w: mass %d must be positive and finite, got %g", dynamo.ErrInvalidConfig, i, m)
		}
	}
	if !(g > 0) || math.IsInf(g, 0) {
		return nil, fmt.Errorf("%w: gravitational constant must be positive, got %g", dynamo.ErrInvalidConfig, g)
	}
	if !(epsilon >= 0) {
		return nil, fmt.Errorf("%w: epsilon must be non-negative, got %g", dynamo.ErrInvalidConfig, epsilon)
	}
	m := make([]float64, len(masses))
	copy(m, masses)
	return &Gravity{Masses: m, G: g, Epsilon: epsilon}, nil
}

func (g *Gravity) NumBodies() int { return len(g.Masses) }
func (g *Gravity) StateDim() int  { return 6 * len(g.Masses) }

// Derive writes the time derivative of x into dx. The field is
// time-invariant; t is only used for error reporting.
func (g *Gravity) Derive(x dynamo.State, t float64, dx dynamo.State) error {
	dim := g.StateDim()
	if len(x) != dim || len(dx) != dim {
		return fmt.Errorf("%w: want %d, got x=%d dx=%d", dynamo.ErrDimensionMismatch, dim, len(x), len(dx))
	}
	half := dim / 2
	copy(dx[:half], x[half:])
	for k := half; k < dim; k++ {
		dx[k] = 0
	}

	n := len(g.Masses)
	for i := 0; i < n; i++ {
		ri := Position(x, i)
		for j := i + 1; j < n; j++ {
			d := r3.Sub(Position(x, j), ri)
			r := r3.Norm(d)
			if !(r > g.Epsilon) || math.IsInf(r, 0) {
				return fmt.Errorf("%w: bodies %d and %d at separation %g (t=%g)", dynamo.ErrSingularity, i, j, r, t)
			}
			k := g.G / (r * r * r)
			addVec(dx, half+3*i, r3.Scale(g.Masses[j]*k, d))
			addVec(dx, half+3*j, r3.Scale(-g.Masses[i]*k, d))
		}
	}
	return nil
}

// Energy is the total kinetic plus potential energy.
func (g *Gravity) Energy(x dynamo.State) float64 {
	n := len(g.Masses)
	ke, pe := 0.0, 0.0
	for i := 0; i < n; i++ {
		ke += 0.5 * g.Masses[i] * r3.Norm2(Velocity(x, i))
		for j := i + 1; j < n; j++ {
			pe -= g.G * g.Masses[i] * g.Masses[j] / g.Separation(x, i, j)
		}
	}
	return ke + pe
}

func (g *Gravity) Momentum(x dynamo.State) r3.Vec {
	var p r3.Vec
	for i, m := range g.Masses {
		p = r3.Add(p, r3.Scale(m, Velocity(x, i)))
	}
	return p
}

// AngularMomentum is taken about the origin.
func (g *Gravity) AngularMomentum(x dynamo.State) r3.Vec {
	var l r3.Vec
	for i, m := range g.Masses {
		l = r3.Add(l, r3.Scale(m, r3.Cross(Position(x, i), Velocity(x, i))))
	}
	return l
}

func (g *Gravity) CenterOfMass(x dynamo.State) r3.Vec {
	var c r3.Vec
	total := 0.0
	for i, m := range g.Masses {
		c = r3.Add(c, r3.Scale(m, Position(x, i)))
		total += m
	}
	return r3.Scale(1/total, c)
}

func (g *Gravity) Separation(x dynamo.State, i, j int) float64 {
	return r3.Norm(r3.Sub(Position(x, j), Position(x, i)))
}
