package integrators

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/gravsim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	// fifth minus embedded fourth order weights
	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// order of the propagated solution; the controller exponent is -1/order.
const order = 5

// ErrDone is returned by Step once the end time has been reached.
var ErrDone = errors.New("integrators: end time already reached")

// Status is the state of the stepper's accept/reject machine.
type Status int

const (
	Proposing Status = iota
	Accepted
	Rejected
	Underflow
	Failed
	Done
)

func (s Status) String() string {
	switch s {
	case Proposing:
		return "proposing"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Underflow:
		return "underflow"
	case Failed:
		return "failed"
	case Done:
		return "done"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Options controls error tolerance and step-size adaptation. Zero values of
// Safety, MinFactor and MaxFactor are replaced by the defaults.
type Options struct {
	RelTol      float64
	AbsTol      float64
	MinStep     float64
	MaxStep     float64 // 0 means the whole span
	InitialStep float64 // 0 means estimate
	Safety      float64
	MinFactor   float64
	MaxFactor   float64
}

func DefaultOptions() Options {
	return Options{
		RelTol:    1e-3,
		AbsTol:    1e-6,
		Safety:    0.9,
		MinFactor: 0.2,
		MaxFactor: 5.0,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Safety == 0 {
		o.Safety = def.Safety
	}
	if o.MinFactor == 0 {
		o.MinFactor = def.MinFactor
	}
	if o.MaxFactor == 0 {
		o.MaxFactor = def.MaxFactor
	}
	return o
}

func (o Options) validate() error {
	switch {
	case !(o.RelTol > 0):
		return fmt.Errorf("%w: relative tolerance must be positive, got %g", dynamo.ErrInvalidConfig, o.RelTol)
	case !(o.AbsTol > 0):
		return fmt.Errorf("%w: absolute tolerance must be positive, got %g", dynamo.ErrInvalidConfig, o.AbsTol)
	case !(o.MinStep >= 0), !(o.MaxStep >= 0), !(o.InitialStep >= 0):
		return fmt.Errorf("%w: step bounds must be non-negative", dynamo.ErrInvalidConfig)
	case o.MaxStep > 0 && o.MinStep > o.MaxStep:
		return fmt.Errorf("%w: min step %g exceeds max step %g", dynamo.ErrInvalidConfig, o.MinStep, o.MaxStep)
	case !(o.Safety > 0 && o.Safety <= 1):
		return fmt.Errorf("%w: safety factor must be in (0, 1], got %g", dynamo.ErrInvalidConfig, o.Safety)
	case !(o.MinFactor > 0 && o.MinFactor < 1):
		return fmt.Errorf("%w: min factor must be in (0, 1), got %g", dynamo.ErrInvalidConfig, o.MinFactor)
	case !(o.MaxFactor > 1):
		return fmt.Errorf("%w: max factor must exceed 1, got %g", dynamo.ErrInvalidConfig, o.MaxFactor)
	}
	return nil
}

// Stats counts the work done by a stepper.
type Stats struct {
	Accepted    int
	Rejected    int
	Evaluations int
}

// DormandPrince is an adaptive RK5(4) stepper bound to one system and one
// integration span. It owns its state; callers observe it through accessors
// and the Segments returned by Step.
type DormandPrince struct {
	sys  dynamo.System
	opts Options

	t, tEnd float64
	h       float64
	y       dynamo.State
	k       [7]dynamo.State
	stage   dynamo.State
	y5      dynamo.State

	status       Status
	rejectedLast bool
	err          error
	stats        Stats
}

// NewDormandPrince prepares a stepper at (t0, y0) heading to t1. The first
// derivative is evaluated here, so a singular initial state fails
// immediately.
func NewDormandPrince(sys dynamo.System, t0, t1 float64, y0 dynamo.State, opts Options) (*DormandPrince, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if !(t1 > t0) {
		return nil, fmt.Errorf("%w: end time %g must exceed start time %g", dynamo.ErrInvalidConfig, t1, t0)
	}
	n := sys.StateDim()
	if len(y0) != n {
		return nil, fmt.Errorf("%w: initial state has %d components, system wants %d", dynamo.ErrDimensionMismatch, len(y0), n)
	}
	if !y0.IsValid() {
		return nil, fmt.Errorf("%w: initial state is not finite", dynamo.ErrInvalidConfig)
	}

	d := &DormandPrince{
		sys:   sys,
		opts:  opts,
		t:     t0,
		tEnd:  t1,
		y:     y0.Clone(),
		stage: make(dynamo.State, n),
		y5:    make(dynamo.State, n),
	}
	for i := range d.k {
		d.k[i] = make(dynamo.State, n)
	}

	if err := d.eval(t0, d.y, d.k[0]); err != nil {
		return nil, err
	}

	h := opts.InitialStep
	if h == 0 {
		h = d.initialStep()
	}
	d.h = math.Min(h, d.maxStep())
	return d, nil
}

func (d *DormandPrince) Time() float64       { return d.t }
func (d *DormandPrince) State() dynamo.State { return d.y.Clone() }
func (d *DormandPrince) StepSize() float64   { return d.h }
func (d *DormandPrince) Status() Status      { return d.status }
func (d *DormandPrince) Stats() Stats        { return d.stats }

// Step advances by one accepted step, retrying with smaller steps as long
// as the error estimate exceeds the tolerance. It returns the dense-output
// segment covering the accepted interval.
func (d *DormandPrince) Step() (Segment, error) {
	switch d.status {
	case Done:
		return Segment{}, ErrDone
	case Underflow, Failed:
		return Segment{}, d.err
	}

	for {
		d.status = Proposing
		h := d.h
		last := false
		if d.t+h >= d.tEnd {
			h = d.tEnd - d.t
			last = true
		}

		if err := d.stages(h); err != nil {
			d.status = Failed
			d.err = err
			return Segment{}, err
		}

		errNorm := d.errorNorm(h)
		if errNorm <= 1 && d.y5.IsValid() {
			return d.accept(h, errNorm, last), nil
		}

		d.stats.Rejected++
		d.status = Rejected
		d.rejectedLast = true

		factor := d.opts.MinFactor
		if !math.IsNaN(errNorm) && !math.IsInf(errNorm, 0) {
			factor = math.Max(d.opts.MinFactor, d.opts.Safety*math.Pow(errNorm, -1.0/order))
		}
		hNew := h * factor
		if hNew < d.opts.MinStep || d.t+hNew == d.t {
			d.status = Underflow
			d.err = fmt.Errorf("%w: step %g (min %g) at t=%g, error norm %g", dynamo.ErrStepTooSmall, hNew, d.opts.MinStep, d.t, errNorm)
			return Segment{}, d.err
		}
		d.h = hNew
	}
}

func (d *DormandPrince) accept(h, errNorm float64, last bool) Segment {
	t0 := d.t
	if last {
		d.t = d.tEnd
	} else {
		d.t = t0 + h
	}
	seg := newSegment(t0, d.t, h, d.y, d.y5, &d.k)

	copy(d.y, d.y5)
	// first same as last: k7 at the new point is the next step's k1
	d.k[0], d.k[6] = d.k[6], d.k[0]

	factor := d.opts.MaxFactor
	if errNorm > 0 {
		factor = math.Min(d.opts.MaxFactor, math.Max(d.opts.MinFactor, d.opts.Safety*math.Pow(errNorm, -1.0/order)))
	}
	if d.rejectedLast {
		factor = math.Min(factor, 1)
	}
	d.rejectedLast = false
	d.h = math.Min(h*factor, d.maxStep())

	d.stats.Accepted++
	d.status = Accepted
	if last {
		d.status = Done
	}
	return seg
}

// stages fills k[1..6] and y5 for a trial step of size h from (t, y).
func (d *DormandPrince) stages(h float64) error {
	t, y, k, s := d.t, d.y, &d.k, d.stage

	floats.AddScaledTo(s, y, h*b21, k[0])
	if err := d.eval(t+a2*h, s, k[1]); err != nil {
		return err
	}

	floats.AddScaledTo(s, y, h*b31, k[0])
	floats.AddScaled(s, h*b32, k[1])
	if err := d.eval(t+a3*h, s, k[2]); err != nil {
		return err
	}

	floats.AddScaledTo(s, y, h*b41, k[0])
	floats.AddScaled(s, h*b42, k[1])
	floats.AddScaled(s, h*b43, k[2])
	if err := d.eval(t+a4*h, s, k[3]); err != nil {
		return err
	}

	floats.AddScaledTo(s, y, h*b51, k[0])
	floats.AddScaled(s, h*b52, k[1])
	floats.AddScaled(s, h*b53, k[2])
	floats.AddScaled(s, h*b54, k[3])
	if err := d.eval(t+a5*h, s, k[4]); err != nil {
		return err
	}

	floats.AddScaledTo(s, y, h*b61, k[0])
	floats.AddScaled(s, h*b62, k[1])
	floats.AddScaled(s, h*b63, k[2])
	floats.AddScaled(s, h*b64, k[3])
	floats.AddScaled(s, h*b65, k[4])
	if err := d.eval(t+h, s, k[5]); err != nil {
		return err
	}

	floats.AddScaledTo(d.y5, y, h*c1, k[0])
	floats.AddScaled(d.y5, h*c3, k[2])
	floats.AddScaled(d.y5, h*c4, k[3])
	floats.AddScaled(d.y5, h*c5, k[4])
	floats.AddScaled(d.y5, h*c6, k[5])
	return d.eval(t+h, d.y5, k[6])
}

// errorNorm is the RMS of |y5 - y4| scaled by atol + rtol*max(|y|, |y5|).
func (d *DormandPrince) errorNorm(h float64) float64 {
	k := &d.k
	sum := 0.0
	for i := range d.y {
		e := h * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
		sc := d.opts.AbsTol + d.opts.RelTol*math.Max(math.Abs(d.y[i]), math.Abs(d.y5[i]))
		sum += (e / sc) * (e / sc)
	}
	return math.Sqrt(sum / float64(len(d.y)))
}

// initialStep follows Hairer, Norsett & Wanner, Solving ODEs I, II.4.
func (d *DormandPrince) initialStep() float64 {
	y, f0 := d.y, d.k[0]
	n := float64(len(y))

	dny, dnf := 0.0, 0.0
	for i := range y {
		sc := d.opts.AbsTol + d.opts.RelTol*math.Abs(y[i])
		dny += (y[i] / sc) * (y[i] / sc)
		dnf += (f0[i] / sc) * (f0[i] / sc)
	}
	dny, dnf = math.Sqrt(dny/n), math.Sqrt(dnf/n)

	h0 := 1e-6
	if dny > 1e-5 && dnf > 1e-5 {
		h0 = 0.01 * dny / dnf
	}
	h0 = math.Min(h0, d.maxStep())

	floats.AddScaledTo(d.stage, y, h0, f0)
	f1 := d.k[1]
	// the first trial stage evaluates this point again and reports the error
	if err := d.eval(d.t+h0, d.stage, f1); err != nil {
		return h0
	}

	der2 := 0.0
	for i := range y {
		sc := d.opts.AbsTol + d.opts.RelTol*math.Abs(y[i])
		v := (f1[i] - f0[i]) / sc
		der2 += v * v
	}
	der2 = math.Sqrt(der2/n) / h0

	var h1 float64
	if m := math.Max(der2, dnf); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 1.0/order)
	}
	return math.Min(100*h0, h1)
}

func (d *DormandPrince) maxStep() float64 {
	span := d.tEnd - d.t
	if d.opts.MaxStep > 0 && d.opts.MaxStep < span {
		return d.opts.MaxStep
	}
	return span
}

func (d *DormandPrince) eval(t float64, x, dx dynamo.State) error {
	d.stats.Evaluations++
	return d.sys.Derive(x, t, dx)
}
