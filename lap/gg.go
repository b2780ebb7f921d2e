// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lap

import (
	"github.com/jtodevs/racing-line/ad"
	"github.com/jtodevs/racing-line/steady"
	"github.com/jtodevs/racing-line/veh"
)

// GGPoint is one sample of the gg-diagram: at a fixed speed and lateral
// acceleration, the maximum and minimum achievable longitudinal
// acceleration (spec §4.C "produce the gg-diagram by sweeping a_y and
// solving for max/min a_x at fixed v at n_points samples").
type GGPoint struct {
	Ay       float64
	AxMax    float64
	AxMin    float64
	HasAxMax bool
	HasAxMin bool
}

// AyAt returns the i-th of n lateral-acceleration samples swept linearly
// over [-ayBound, ayBound], the same grid GGDiagram sweeps internally.
// Exposed so a caller distributing the sweep across workers (see
// SPEC_FULL.md §3 item 1, main.go's MPI batch mode) can compute each
// sample's Ay independent of which samples it has been assigned.
func AyAt(ayBound float64, n, i int) float64 {
	if n < 2 {
		n = 2
	}
	return -ayBound + 2*ayBound*float64(i)/float64(n-1)
}

// GGSample computes one gg-diagram point at the given lateral acceleration,
// searching outward from ax=0 in both directions for the largest-magnitude
// feasible longitudinal acceleration (steady.Solve diverges beyond the
// vehicle's grip limit, which is exactly the gg-diagram's boundary). It
// returns the point plus an updated control guess for warm-starting the
// next sample, letting GGDiagram and a distributed caller (main.go's MPI
// batch mode) share the same per-sample work.
func GGSample(m veh.Dynamics[ad.Dual], speed, ay, axBound float64, guess []float64, opt steady.Options) (GGPoint, []float64) {
	axMax, uMax, okMax := searchBoundary(m, speed, ay, axBound, guess, opt)
	axMin, uMin, okMin := searchBoundary(m, speed, ay, -axBound, guess, opt)
	next := guess
	if okMax {
		next = uMax
	} else if okMin {
		next = uMin
	}
	return GGPoint{Ay: ay, AxMax: axMax, HasAxMax: okMax, AxMin: axMin, HasAxMin: okMin}, next
}

// GGDiagram sweeps lateral acceleration over n samples in [-ayBound,
// ayBound] at the given speed, warm-starting each sample's boundary search
// from the previous sample's converged controls (spec §4.C).
func GGDiagram(m veh.Dynamics[ad.Dual], speed, ayBound, axBound float64, n int, controlGuess []float64, opt steady.Options) []GGPoint {
	if n < 2 {
		n = 2
	}
	out := make([]GGPoint, 0, n)
	u := append([]float64(nil), controlGuess...)
	for i := 0; i < n; i++ {
		pt, next := GGSample(m, speed, AyAt(ayBound, n, i), axBound, u, opt)
		u = next
		out = append(out, pt)
	}
	return out
}

// searchBoundary walks ax from 0 toward target (a signed bound), keeping
// the last converged point, then bisects between the last success and
// first failure for a tighter estimate of the feasibility boundary.
func searchBoundary(m veh.Dynamics[ad.Dual], speed, ay, target float64, guess []float64, opt steady.Options) (ax float64, controls []float64, ok bool) {
	const coarseSteps = 8
	const bisectIters = 12

	controls = append([]float64(nil), guess...)
	var lastOkAx float64
	var lastOkControls []float64
	failAx := target
	haveFail := false

	for i := 1; i <= coarseSteps; i++ {
		tryAx := target * float64(i) / float64(coarseSteps)
		pt, err := steady.Solve(m, steady.Target{Speed: speed, Ax: tryAx, Ay: ay}, controls, opt)
		if err != nil {
			failAx = tryAx
			haveFail = true
			break
		}
		lastOkAx = tryAx
		lastOkControls = pt.Controls
		controls = pt.Controls
	}
	if lastOkControls == nil {
		return 0, guess, false
	}
	if !haveFail {
		return lastOkAx, lastOkControls, true
	}

	lo, hi := lastOkAx, failAx
	loControls := lastOkControls
	for i := 0; i < bisectIters; i++ {
		mid := 0.5 * (lo + hi)
		pt, err := steady.Solve(m, steady.Target{Speed: speed, Ax: mid, Ay: ay}, loControls, opt)
		if err != nil {
			hi = mid
			continue
		}
		lo = mid
		loControls = pt.Controls
	}
	return lo, loControls, true
}
