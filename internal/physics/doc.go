// Package physics provides the gravitational vector field for simulation.
//
// [Gravity] implements [dynamo.System] for N point masses in three
// dimensions. States are packed by [Pack]: every body's position first,
// then every body's velocity, each as x, y, z.
//
// Gravity also implements [dynamo.Hamiltonian] and exposes the other
// conserved quantities of an isolated system (momentum, angular momentum,
// centre of mass), which the metrics and tests use to check integration
// quality:
//
//	g, _ := physics.NewGravity([]float64{2, 1}, 1, 1e-9)
//	e0 := g.Energy(x0)
//
// Close encounters are not softened. When two bodies come within
// [Gravity.Epsilon] of each other, Derive fails with [dynamo.ErrSingularity]
// instead of returning an unbounded acceleration.
package physics
