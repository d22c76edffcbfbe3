package metrics

import (
	"math"

	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
)

// MinSeparation records the closest approach between any two bodies.
type MinSeparation struct {
	name    string
	g       *physics.Gravity
	closest float64
	samples int
}

func NewMinSeparation(g *physics.Gravity) *MinSeparation {
	return &MinSeparation{
		name:    "min_separation",
		g:       g,
		closest: math.Inf(1),
	}
}

func (s *MinSeparation) Name() string {
	return s.name
}

func (s *MinSeparation) Observe(t float64, x dynamo.State) {
	s.samples++
	n := s.g.NumBodies()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s.closest = math.Min(s.closest, s.g.Separation(x, i, j))
		}
	}
}

func (s *MinSeparation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return s.closest
}

func (s *MinSeparation) Reset() {
	s.closest = math.Inf(1)
	s.samples = 0
}
