package integrators

import "github.com/san-kum/gravsim/internal/dynamo"

// Continuous extension of order 4 for the Dormand-Prince pair
// (Hairer, Norsett & Wanner, dopri5 contd5).
var (
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

// Segment is one accepted step together with the coefficients needed to
// evaluate the solution anywhere inside [T0, T1] without re-integrating.
type Segment struct {
	T0, T1 float64
	H      float64
	Y0, Y1 dynamo.State

	ydiff, bspl, r3, r4 []float64
}

func newSegment(t0, t1, h float64, y0, y1 dynamo.State, k *[7]dynamo.State) Segment {
	n := len(y0)
	buf := make([]float64, 4*n)
	s := Segment{
		T0:    t0,
		T1:    t1,
		H:     h,
		Y0:    y0.Clone(),
		Y1:    y1.Clone(),
		ydiff: buf[:n:n],
		bspl:  buf[n : 2*n : 2*n],
		r3:    buf[2*n : 3*n : 3*n],
		r4:    buf[3*n:],
	}
	for i := 0; i < n; i++ {
		s.ydiff[i] = y1[i] - y0[i]
		s.bspl[i] = h*k[0][i] - s.ydiff[i]
		s.r3[i] = s.ydiff[i] - h*k[6][i] - s.bspl[i]
		s.r4[i] = h * (d1*k[0][i] + d3*k[2][i] + d4*k[3][i] + d5*k[4][i] + d6*k[5][i] + d7*k[6][i])
	}
	return s
}

func (s Segment) Contains(t float64) bool {
	return t >= s.T0 && t <= s.T1
}

// Eval writes the interpolated state at t into out. Times outside the
// segment are clamped to its endpoints, which are returned exactly.
func (s Segment) Eval(t float64, out dynamo.State) {
	if t <= s.T0 {
		copy(out, s.Y0)
		return
	}
	if t >= s.T1 {
		copy(out, s.Y1)
		return
	}
	theta := (t - s.T0) / s.H
	theta1 := 1 - theta
	for i := range out {
		out[i] = s.Y0[i] + theta*(s.ydiff[i]+theta1*(s.bspl[i]+theta*(s.r3[i]+theta1*s.r4[i])))
	}
}
