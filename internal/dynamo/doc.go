// Package dynamo provides core simulation primitives for dynamical systems.
//
// The package defines the fundamental interfaces and types shared by the
// vector fields, the integrators and the driver:
//
//   - [State]: packed state vector
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Hamiltonian]: systems with a conserved energy
//   - [Frames]: read-only view over a sampled run
//
// Errors returned anywhere in the module wrap one of the sentinels in
// errors.go, so callers can match them with [errors.Is]. Failures that happen
// mid-run are reported as a [SimulationError] carrying the step index, the
// time and the last good state.
//
// # Example
//
//	field, _ := physics.NewGravity([]float64{2, 1}, 1, 1e-9)
//	traj, err := sim.New(field).Run(ctx, x0, cfg)
//	if errors.Is(err, dynamo.ErrSingularity) {
//	    // traj holds everything accepted before the close encounter
//	}
package dynamo
