package integrators

import (
	"github.com/san-kum/gravsim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// RK4 is the classic fixed-step fourth-order method. It has no error
// control and serves as a reference solution for the adaptive stepper.
type RK4 struct {
	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

// Step writes the state at t+h into out. out may alias x.
func (r *RK4) Step(sys dynamo.System, t float64, x dynamo.State, h float64, out dynamo.State) error {
	n := len(x)
	r.ensureScratch(n)

	if err := sys.Derive(x, t, r.k1); err != nil {
		return err
	}

	floats.AddScaledTo(r.scratch, x, h/2, r.k1)
	if err := sys.Derive(r.scratch, t+h/2, r.k2); err != nil {
		return err
	}

	floats.AddScaledTo(r.scratch, x, h/2, r.k2)
	if err := sys.Derive(r.scratch, t+h/2, r.k3); err != nil {
		return err
	}

	floats.AddScaledTo(r.scratch, x, h, r.k3)
	if err := sys.Derive(r.scratch, t+h, r.k4); err != nil {
		return err
	}

	h6 := h / 6
	for i := 0; i < n; i++ {
		out[i] = x[i] + h6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return nil
}

// Integrate takes fixed steps of at most h from (t0, x0) to t1 and returns
// the final state.
func (r *RK4) Integrate(sys dynamo.System, t0, t1 float64, x0 dynamo.State, h float64) (dynamo.State, error) {
	x := x0.Clone()
	for t := t0; t < t1; {
		step := min(h, t1-t)
		if err := r.Step(sys, t, x, step, x); err != nil {
			return x, err
		}
		t += step
	}
	return x, nil
}
