// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"math"
	"testing"

	"github.com/jtodevs/racing-line/veh"
)

// fakeLinearSolve stands in for a real NLOPT solve: it returns a Trajectory
// whose laptime and IU state are a known linear function of the "mass"
// parameter (laptime = 2*mass), so ComputeSensitivities' finite-difference
// machinery can be checked against a hand-derived exact answer without
// running NLOPT (see DESIGN.md for why the real Solve path isn't exercised
// here, consistent with trk/preprocess.go having no solve-level test).
func fakeLinearSolve(p *Problem) (*Trajectory, error) {
	mass := 0.0
	if prm := p.model.Params().Find("mass"); prm != nil {
		mass = prm.V
	}
	n := p.opt.NPoints
	traj := &Trajectory{S: append([]float64(nil), p.s...), Laptime: 2 * mass}
	traj.Q = make([][]float64, n)
	traj.QA = make([][]float64, n)
	traj.U = make([][]float64, n)
	for i := 0; i < n; i++ {
		q := make([]float64, veh.NBASE)
		q[veh.IU] = mass
		traj.Q[i] = q
		traj.QA[i] = []float64{}
		traj.U[i] = make([]float64, p.nu)
	}
	return traj, nil
}

func TestComputeSensitivitiesMatchesKnownLinearDerivative(t *testing.T) {
	n := 4
	specs := []ControlSpec{{Mode: DontOptimize}, {Mode: DontOptimize}}
	params := kartParams()
	m, err := veh.NewDual(veh.KindKart, params)
	if err != nil {
		t.Fatal(err)
	}
	track := straightClosedTrack(t, 400, 40)
	opt := Options{NPoints: n, Closed: true}
	seed := trivialSeed(n, m.NU())
	prob, err := NewProblem(m, track, opt, specs, seed)
	if err != nil {
		t.Fatal(err)
	}
	base, err := fakeLinearSolve(prob)
	if err != nil {
		t.Fatal(err)
	}

	results, err := ComputeSensitivities(fakeLinearSolve, veh.KindKart, params, track, opt, specs, base, 1e-4)
	if err != nil {
		t.Fatal(err)
	}

	var foundMass bool
	for _, r := range results {
		want := 0.0
		if r.Alias == "mass" {
			want = 2.0
			foundMass = true
		}
		if math.Abs(r.DLaptimeDP-want) > 1e-6 {
			t.Fatalf("alias %q: DLaptimeDP=%v, want %v", r.Alias, r.DLaptimeDP, want)
		}
		for i, row := range r.DQdP {
			wantIU := 0.0
			if r.Alias == "mass" {
				wantIU = 1.0
			}
			if math.Abs(row[2]-wantIU) > 1e-6 { // stateFree index 2 == IU
				t.Fatalf("alias %q node %d: dIU/dp=%v, want %v", r.Alias, i, row[2], wantIU)
			}
		}
	}
	if !foundMass {
		t.Fatal("expected \"mass\" among the declared parameter aliases")
	}

	// params must be restored to their original values after perturbation.
	if params.Find("mass").V != 150.0 {
		t.Fatalf("mass was not restored, got %v", params.Find("mass").V)
	}
}
