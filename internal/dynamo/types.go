package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// State is a packed state vector. Its length is fixed by the System that
// produced it and never changes during a run.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Norm(s, 2)
}

func (s State) Add(other State) State {
	result := s.Clone()
	floats.Add(result, other)
	return result
}

func (s State) Sub(other State) State {
	result := s.Clone()
	floats.Sub(result, other)
	return result
}

func (s State) Scale(factor float64) State {
	result := s.Clone()
	floats.Scale(factor, result)
	return result
}

// System is an autonomous or time-dependent ODE right-hand side.
// Derive writes dX/dt into dx, which must have length StateDim().
type System interface {
	Derive(x State, t float64, dx State) error
	StateDim() int
}

// Hamiltonian is implemented by systems with a conserved energy.
type Hamiltonian interface {
	Energy(x State) float64
}

// Frames is the read interface handed to consumers of a sampled run.
type Frames interface {
	SampleCount() int
	TimeAt(i int) float64
	StateAt(i int) State
}
