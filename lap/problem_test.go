// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"math"
	"testing"

	"github.com/jtodevs/racing-line/trk"
	"github.com/jtodevs/racing-line/veh"
	_ "github.com/jtodevs/racing-line/veh/kart"
)

func kartParams() *veh.Params {
	p := veh.NewParams()
	p.DeclareConstant("chassis/mass", "mass", 150.0)
	p.DeclareConstant("chassis/izz", "izz", 60.0)
	p.DeclareConstant("chassis/wheelbase_front", "wheelbase_front", 0.6)
	p.DeclareConstant("chassis/wheelbase_rear", "wheelbase_rear", 0.6)
	p.DeclareConstant("chassis/track_width", "track_width", 1.1)
	p.DeclareConstant("chassis/com_height", "com_height", 0.2)
	p.DeclareConstant("wheel/radius", "wheel_radius", 0.139)
	p.DeclareConstant("tyres/front/cx", "tire_front_cx", 8000.0)
	p.DeclareConstant("tyres/front/cy", "tire_front_cy", 25000.0)
	p.DeclareConstant("tyres/front/mux", "tire_front_mux", 1.3)
	p.DeclareConstant("tyres/front/muy", "tire_front_muy", 1.3)
	p.DeclareConstant("tyres/rear/cx", "tire_rear_cx", 8000.0)
	p.DeclareConstant("tyres/rear/cy", "tire_rear_cy", 25000.0)
	p.DeclareConstant("tyres/rear/mux", "tire_rear_mux", 1.3)
	p.DeclareConstant("tyres/rear/muy", "tire_rear_muy", 1.3)
	return p
}

func straightClosedTrack(t *testing.T, length float64, n int) *trk.Surface {
	s := make([]float64, n)
	x := make([]float64, n)
	y := make([]float64, n)
	theta := make([]float64, n)
	kappa := make([]float64, n)
	nL := make([]float64, n)
	nR := make([]float64, n)
	for i := 0; i < n; i++ {
		s[i] = float64(i) * length / float64(n)
		x[i] = s[i]
		nL[i], nR[i] = 3, 3
	}
	surf, err := trk.NewSurface(s, x, y, theta, kappa, nL, nR, true, length)
	if err != nil {
		t.Fatal(err)
	}
	return surf
}

// trivialSeed builds a constant cruising state: straight track (kappa=0),
// centered (n=0, alpha=0), zero controls, zero lateral/yaw dynamics. On a
// straight track this is an exact steady state (see TestEqualityZero...).
func trivialSeed(n, nu int) Seed {
	seed := Seed{Q: make([][]float64, n), QA: make([][]float64, n), U: make([][]float64, n)}
	for i := 0; i < n; i++ {
		seed.Q[i] = []float64{0, 0, 20, 0, 0} // IN, IALPHA, IU, IV, IOMEGA
		seed.QA[i] = []float64{}
		seed.U[i] = make([]float64, nu)
	}
	return seed
}

func newTestProblem(t *testing.T, n int, closed bool, specs []ControlSpec) *Problem {
	p := kartParams()
	m, err := veh.NewDual(veh.KindKart, p)
	if err != nil {
		t.Fatal(err)
	}
	track := straightClosedTrack(t, 400, 40)
	opt := Options{NPoints: n, Closed: closed}
	seed := trivialSeed(n, m.NU())
	prob, err := NewProblem(m, track, opt, specs, seed)
	if err != nil {
		t.Fatal(err)
	}
	return prob
}

func defaultSpecs() []ControlSpec {
	return []ControlSpec{
		{Mode: FullMesh},
		{Mode: FullMesh, Dissipation: 0.01},
	}
}

func TestLayoutSizeMatchesProblem(t *testing.T) {
	n := 6
	prob := newTestProblem(t, n, true, defaultSpecs())
	// stateBlockSize = 5 (stateFree) + 0 (kart has no algebraic state)
	want := n*5 + n + n // state block + two FullMesh controls
	if prob.NVars() != want {
		t.Fatalf("NVars()=%d, want %d", prob.NVars(), want)
	}
}

func TestInitialGuessRoundTripsThroughLayout(t *testing.T) {
	n := 5
	specs := []ControlSpec{{Mode: DontOptimize}, {Mode: FullMesh}}
	prob := newTestProblem(t, n, true, specs)
	x0 := prob.InitialGuess()
	for i := 0; i < n; i++ {
		if got := x0[prob.lay.stateIdx(i, 2)]; got != 20 {
			t.Fatalf("node %d: IU seed = %v, want 20", i, got)
		}
		idx := prob.lay.controlIdx(i, 1, prob.s)
		if idx < 0 {
			t.Fatalf("node %d: FullMesh control should have a decision index", i)
		}
		if x0[idx] != 0 {
			t.Fatalf("node %d: control seed = %v, want 0", i, x0[idx])
		}
		// DontOptimize control occupies no slot.
		if prob.lay.controlIdx(i, 0, prob.s) != -1 {
			t.Fatalf("node %d: DontOptimize control should have index -1", i)
		}
	}
}

func TestBoundsMatchModel(t *testing.T) {
	n := 4
	prob := newTestProblem(t, n, true, defaultSpecs())
	lo, hi := prob.Bounds()
	stateLo, stateHi := prob.model.StateBounds()
	for i := 0; i < n; i++ {
		for k, si := range stateFree {
			idx := prob.lay.stateIdx(i, k)
			if lo[idx] != stateLo[si] || hi[idx] != stateHi[si] {
				t.Fatalf("node %d field %d: bounds mismatch", i, si)
			}
		}
	}
}

// TestEqualityZeroForTrivialCruise checks that a constant cruising state on
// a straight track (the steady-state case hand-derived in DESIGN.md: zero
// net force at zero slip keeps every dq/ds term, and hence every
// trapezoidal residual, exactly zero) satisfies every equality row.
func TestEqualityZeroForTrivialCruise(t *testing.T) {
	n := 8
	specs := []ControlSpec{{Mode: DontOptimize}, {Mode: DontOptimize}}
	prob := newTestProblem(t, n, true, specs)
	x0 := prob.InitialGuess()

	eq := prob.EqualityConstraints()
	result := make([]float64, prob.EqualityDim())
	eq(result, x0, nil)

	for i, v := range result {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("equality row %d = %v, want ~0", i, v)
		}
	}
}

func TestEqualityDimMatchesResultLength(t *testing.T) {
	for _, closed := range []bool{true, false} {
		n := 7
		specs := defaultSpecs()
		prob := newTestProblem(t, n, closed, specs)
		x0 := prob.InitialGuess()
		eq := prob.EqualityConstraints()
		result := make([]float64, prob.EqualityDim())
		eq(result, x0, nil) // must not panic on index out of range
	}
}

func TestInequalityWithinBoundsForTrivialCruise(t *testing.T) {
	n := 6
	specs := []ControlSpec{{Mode: DontOptimize}, {Mode: DontOptimize}}
	prob := newTestProblem(t, n, true, specs)
	x0 := prob.InitialGuess()

	ineq := prob.InequalityConstraints()
	result := make([]float64, prob.InequalityDim())
	ineq(result, x0, nil)
	for i, v := range result {
		if v > 1e-6 {
			t.Fatalf("inequality row %d = %v, expected <= 0 at zero slip", i, v)
		}
	}
}

// TestObjectiveGradientMatchesCentralDifference cross-checks the ad.Dual
// objective gradient against a central difference, the finite-difference
// consistency law described in SPEC_FULL.md.
func TestObjectiveGradientMatchesCentralDifference(t *testing.T) {
	n := 5
	specs := []ControlSpec{{Mode: FullMesh, Dissipation: 0.02}, {Mode: FullMesh, Dissipation: 0.02}}
	prob := newTestProblem(t, n, true, specs)
	x0 := prob.InitialGuess()

	obj := prob.Objective()
	grad := make([]float64, prob.NVars())
	f0 := obj(x0, grad)

	h := 1e-5
	// spot-check a handful of coordinates rather than the whole vector.
	coords := []int{0, 2, prob.lay.stateIdx(2, 2), prob.lay.controlIdx(3, 0, prob.s)}
	for _, j := range coords {
		if j < 0 {
			continue
		}
		xp := append([]float64(nil), x0...)
		xm := append([]float64(nil), x0...)
		xp[j] += h
		xm[j] -= h
		fp := obj(xp, nil)
		fm := obj(xm, nil)
		fd := (fp - fm) / (2 * h)
		if math.Abs(fd-grad[j]) > 1e-3*math.Max(1, math.Abs(fd)) {
			t.Fatalf("coord %d: analytic grad=%v finite-diff=%v (f0=%v)", j, grad[j], fd, f0)
		}
	}
}

func TestNewProblemRejectsWrongSpecCount(t *testing.T) {
	p := kartParams()
	m, err := veh.NewDual(veh.KindKart, p)
	if err != nil {
		t.Fatal(err)
	}
	track := straightClosedTrack(t, 400, 40)
	opt := Options{NPoints: 4, Closed: true}
	seed := trivialSeed(4, m.NU())
	_, err = NewProblem(m, track, opt, []ControlSpec{{Mode: FullMesh}}, seed)
	if err == nil {
		t.Fatal("expected error for mismatched spec count")
	}
}
