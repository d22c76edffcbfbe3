package physics

import (
	"fmt"

	"github.com/san-kum/gravsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Body is a point mass with its position and velocity.
type Body struct {
	Mass     float64
	Position r3.Vec
	Velocity r3.Vec
}

// Pack lays bodies out as [r_0 .. r_{n-1}, v_0 .. v_{n-1}], x/y/z per body.
func Pack(bodies []Body) dynamo.State {
	n := len(bodies)
	x := make(dynamo.State, 6*n)
	for i, b := range bodies {
		setVec(x, 3*i, b.Position)
		setVec(x, 3*(n+i), b.Velocity)
	}
	return x
}

// Unpack is the inverse of Pack; masses are taken from the argument.
func Unpack(x dynamo.State, masses []float64) []Body {
	bodies := make([]Body, len(masses))
	for i, m := range masses {
		bodies[i] = Body{
			Mass:     m,
			Position: Position(x, i),
			Velocity: Velocity(x, i),
		}
	}
	return bodies
}

// Position returns body i's position from a packed state.
func Position(x dynamo.State, i int) r3.Vec {
	return vecAt(x, 3*i)
}

// Velocity returns body i's velocity from a packed state.
func Velocity(x dynamo.State, i int) r3.Vec {
	return vecAt(x, len(x)/2+3*i)
}

// Labels returns column names matching the packed layout: r0x, r0y, ..., v1z.
func Labels(n int) []string {
	labels := make([]string, 0, 6*n)
	for _, block := range []string{"r", "v"} {
		for i := 0; i < n; i++ {
			for _, axis := range []string{"x", "y", "z"} {
				labels = append(labels, fmt.Sprintf("%s%d%s", block, i, axis))
			}
		}
	}
	return labels
}

func vecAt(x dynamo.State, off int) r3.Vec {
	return r3.Vec{X: x[off], Y: x[off+1], Z: x[off+2]}
}

func setVec(x dynamo.State, off int, v r3.Vec) {
	x[off] = v.X
	x[off+1] = v.Y
	x[off+2] = v.Z
}

func addVec(x dynamo.State, off int, v r3.Vec) {
	x[off] += v.X
	x[off+1] += v.Y
	x[off+2] += v.Z
}
