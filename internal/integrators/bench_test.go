package integrators

import (
	"testing"

	"github.com/san-kum/gravsim/internal/dynamo"
)

type benchNBody struct{}

func (b *benchNBody) StateDim() int { return 12 }
func (b *benchNBody) Derive(x dynamo.State, t float64, dx dynamo.State) error {
	copy(dx[:6], x[6:])
	for i := 6; i < 12; i++ {
		dx[i] = -x[i-6] * 0.1
	}
	return nil
}

func BenchmarkRK45(b *testing.B) {
	dyn := &harmonicOscillator{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d, err := NewDormandPrince(dyn, 0, 10, dynamo.State{1.0, 0.0}, DefaultOptions())
		if err != nil {
			b.Fatal(err)
		}
		for d.Status() != Done {
			if _, err := d.Step(); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkRK45_Step12(b *testing.B) {
	x := make(dynamo.State, 12)
	for i := range x {
		x[i] = float64(i) * 0.1
	}
	opts := DefaultOptions()
	opts.InitialStep = 1e-3
	opts.MaxStep = 1e-3
	d, err := NewDormandPrince(&benchNBody{}, 0, 1e9, x, opts)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
