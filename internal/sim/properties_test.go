package sim_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/physics"
	"github.com/san-kum/gravsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r3"
)

var classicBodies = []physics.Body{
	{Mass: 2},
	{Mass: 1, Position: r3.Vec{X: 1, Y: 1, Z: 1}, Velocity: r3.Vec{X: 1, Y: 1}},
}

func masses(bodies []physics.Body) []float64 {
	m := make([]float64, len(bodies))
	for i, b := range bodies {
		m[i] = b.Mass
	}
	return m
}

func integrate(bodies []physics.Body, rtol, atol float64) *sim.Trajectory {
	cfg := sim.DefaultConfig()
	cfg.Masses = masses(bodies)
	cfg.RelTol = rtol
	cfg.AbsTol = atol
	traj, err := sim.Integrate(context.Background(), cfg, physics.Pack(bodies))
	Expect(err).NotTo(HaveOccurred())
	Expect(traj.Complete()).To(BeTrue())
	return traj
}

var _ = Describe("Two-body integration", func() {
	var field *physics.Gravity

	BeforeEach(func() {
		var err error
		field, err = physics.NewGravity(masses(classicBodies), 1, 1e-9)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("with the classic scenario at default settings", func() {
		It("reaches t=10 without a singularity", func() {
			traj := integrate(classicBodies, 1e-3, 1e-6)
			Expect(traj.End()).To(Equal(10.0))
			Expect(traj.Err()).To(BeNil())
			Expect(traj.Metrics()).To(HaveKeyWithValue("min_separation", BeNumerically(">", 0)))
		})

		It("yields 2001 samples from 0 to 10", func() {
			traj := integrate(classicBodies, 1e-3, 1e-6)
			samples, err := sim.Uniform(traj, 2001)
			Expect(err).NotTo(HaveOccurred())

			last := -1.0
			for t, x := range samples.All() {
				Expect(t).To(BeNumerically(">", last))
				Expect(x.IsValid()).To(BeTrue())
				last = t
			}
			Expect(last).To(Equal(10.0))
		})
	})

	DescribeTable("energy is conserved to within the tolerance",
		func(rtol, atol, bound float64) {
			traj := integrate(classicBodies, rtol, atol)
			samples, err := sim.Uniform(traj, 201)
			Expect(err).NotTo(HaveOccurred())

			e0 := field.Energy(physics.Pack(classicBodies))
			for _, x := range samples.All() {
				Expect(field.Energy(x)).To(BeNumerically("~", e0, bound*-e0))
			}
		},
		Entry("rtol 1e-6", 1e-6, 1e-9, 1e-3),
		Entry("rtol 1e-9", 1e-9, 1e-12, 1e-6),
	)

	It("conserves angular momentum at tight tolerance", func() {
		traj := integrate(classicBodies, 1e-9, 1e-12)
		l0 := field.AngularMomentum(physics.Pack(classicBodies))

		for i := 0; i < traj.Len(); i++ {
			l := field.AngularMomentum(traj.State(i))
			Expect(r3.Norm(r3.Sub(l, l0))).To(BeNumerically("<", 1e-6*r3.Norm(l0)))
		}
	})

	It("moves the center of mass in a straight line", func() {
		traj := integrate(classicBodies, 1e-6, 1e-9)
		x0 := physics.Pack(classicBodies)
		c0 := field.CenterOfMass(x0)
		v := r3.Scale(1/3.0, field.Momentum(x0))

		samples, err := sim.Uniform(traj, 101)
		Expect(err).NotTo(HaveOccurred())
		for t, x := range samples.All() {
			want := r3.Add(c0, r3.Scale(t, v))
			Expect(r3.Norm(r3.Sub(field.CenterOfMass(x), want))).To(BeNumerically("<", 1e-9))
		}
	})

	It("does not depend on the order of the bodies", func() {
		swapped := []physics.Body{classicBodies[1], classicBodies[0]}

		a := integrate(classicBodies, 1e-10, 1e-12)
		b := integrate(swapped, 1e-10, 1e-12)

		xa := make(dynamo.State, 12)
		xb := make(dynamo.State, 12)
		for _, t := range []float64{2.5, 5, 10} {
			Expect(a.Eval(t, xa)).To(Succeed())
			Expect(b.Eval(t, xb)).To(Succeed())
			for i := 0; i < 2; i++ {
				dr := r3.Sub(physics.Position(xa, i), physics.Position(xb, 1-i))
				dv := r3.Sub(physics.Velocity(xa, i), physics.Velocity(xb, 1-i))
				Expect(r3.Norm(dr)).To(BeNumerically("<", 1e-6))
				Expect(r3.Norm(dv)).To(BeNumerically("<", 1e-6))
			}
		}
	})

	It("interpolates between accepted nodes as accurately as a tight run", func() {
		traj := integrate(classicBodies, 1e-6, 1e-9)
		ref := integrate(classicBodies, 1e-12, 1e-14)

		samples, err := sim.Uniform(traj, 2001)
		Expect(err).NotTo(HaveOccurred())
		want, err := sim.Uniform(ref, 2001)
		Expect(err).NotTo(HaveOccurred())
		Expect(samples.SampleCount()).To(Equal(want.SampleCount()))

		for i := 0; i < samples.SampleCount(); i++ {
			Expect(samples.TimeAt(i)).To(Equal(want.TimeAt(i)))
			diff := samples.StateAt(i).Sub(want.StateAt(i))
			Expect(diff.Norm()).To(BeNumerically("<", 1e-4), "t=%g", samples.TimeAt(i))
		}
	})
})
