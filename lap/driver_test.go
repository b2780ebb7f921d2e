// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"math"
	"testing"

	"github.com/jtodevs/racing-line/veh"
)

// TestRecoverTrajectoryMatchesAnalyticLaptime checks the quadrature-based
// time recovery against the closed-form answer for the trivial constant-
// speed cruise (dt/ds = 1/u everywhere on a straight track, so laptime =
// track length / u exactly, no NLOPT solve needed to exercise this path).
func TestRecoverTrajectoryMatchesAnalyticLaptime(t *testing.T) {
	n := 20
	speed := 20.0
	length := 400.0
	specs := []ControlSpec{{Mode: DontOptimize}, {Mode: DontOptimize}}

	p := kartParams()
	m, err := veh.NewDual(veh.KindKart, p)
	if err != nil {
		t.Fatal(err)
	}
	track := straightClosedTrack(t, length, 40)
	opt := Options{NPoints: n, Closed: true}
	seed := Seed{Q: make([][]float64, n), QA: make([][]float64, n), U: make([][]float64, n)}
	for i := 0; i < n; i++ {
		seed.Q[i] = []float64{0, 0, speed, 0, 0}
		seed.QA[i] = []float64{}
		seed.U[i] = []float64{0, 0}
	}

	prob, err := NewProblem(m, track, opt, specs, seed)
	if err != nil {
		t.Fatal(err)
	}
	d := NewDriver(prob)
	x0 := prob.InitialGuess()
	traj, err := d.recoverTrajectory(x0)
	if err != nil {
		t.Fatal(err)
	}

	wantLaptime := length / speed
	if math.Abs(traj.Laptime-wantLaptime) > 1e-6 {
		t.Fatalf("Laptime=%v, want %v", traj.Laptime, wantLaptime)
	}
	if traj.Q[0][veh.ITIME] != 0 {
		t.Fatalf("Q[0][ITIME]=%v, want 0", traj.Q[0][veh.ITIME])
	}
	for i := 1; i < n; i++ {
		if traj.Q[i][veh.ITIME] <= traj.Q[i-1][veh.ITIME] {
			t.Fatalf("elapsed time must increase monotonically, node %d: %v <= %v", i, traj.Q[i][veh.ITIME], traj.Q[i-1][veh.ITIME])
		}
	}
	if len(traj.X) != n || len(traj.Y) != n {
		t.Fatalf("X/Y should have length %d", n)
	}
}
