// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package trk

import (
	"math"
	"testing"

	"github.com/jtodevs/racing-line/errs"
)

func TestPreprocessRejectsOpenRefinedMode(t *testing.T) {
	left := []LonLat{{Lon: 0, Lat: 0}, {Lon: 0.01, Lat: 0}}
	right := []LonLat{{Lon: 0, Lat: 0.001}, {Lon: 0.01, Lat: 0.001}}
	mesh := Mesh{SDistribution: []float64{0, 100}, DsDistribution: []float64{2, 2}}
	_, err := Preprocess(left, right, false, false, mesh, Options{})
	if err == nil {
		t.Fatal("expected error for open-track refined mode")
	}
	if !errs.Is(err, errs.InputValidation) {
		t.Fatalf("expected InputValidation, got %v", err)
	}
}

func TestPreprocessRejectsTooFewEquallySpacedNodes(t *testing.T) {
	left := []LonLat{{Lon: 0, Lat: 0}, {Lon: 0.01, Lat: 0}}
	right := []LonLat{{Lon: 0, Lat: 0.001}, {Lon: 0.01, Lat: 0.001}}
	_, err := Preprocess(left, right, false, true, Mesh{NEl: 2}, Options{})
	if !errs.Is(err, errs.InputValidation) {
		t.Fatalf("expected InputValidation for NEl<4, got %v", err)
	}
}

func TestPreprocessRejectsMismatchedRefinedLengths(t *testing.T) {
	left := []LonLat{{Lon: 0, Lat: 0}, {Lon: 0.01, Lat: 0}}
	right := []LonLat{{Lon: 0, Lat: 0.001}, {Lon: 0.01, Lat: 0.001}}
	mesh := Mesh{SDistribution: []float64{0, 100, 200}, DsDistribution: []float64{2, 2}}
	_, err := Preprocess(left, right, false, true, mesh, Options{})
	if !errs.Is(err, errs.InputValidation) {
		t.Fatalf("expected InputValidation for mismatched lengths, got %v", err)
	}
}

func TestNodeTargetsEquallySpacedIsUniform(t *testing.T) {
	targets, dsGuess, n := nodeTargets(Mesh{NEl: 10}, 1000)
	if n != 10 {
		t.Fatalf("n = %d, want 10", n)
	}
	if dsGuess != nil {
		t.Fatalf("equally-spaced mode should not produce a ds guess, got %v", dsGuess)
	}
	for i, frac := range targets {
		want := float64(i) / 10
		if math.Abs(frac-want) > 1e-12 {
			t.Fatalf("targets[%d] = %v, want %v", i, frac, want)
		}
	}
}

// TestNodeTargetsRefinedDensifiesWhereDsIsSmall checks spec §4.D scenario
// 6's element-count law: total node count equals the trapezoidal-integrated
// sum of 1/ds over the supplied distribution, and that targets are denser
// (closer spaced in the fractional-position output) where ds is small.
func TestNodeTargetsRefinedDensifiesWhereDsIsSmall(t *testing.T) {
	// first segment: ds 10 -> 10 over length 100 -> 100*(1/10+1/10)/2 = 10
	// second segment: ds 10 -> 2 over length 20 -> 20*(1/10+1/2)/2 = 6
	s := []float64{0, 100, 120}
	ds := []float64{10, 10, 2}
	targets, dsGuess, n := nodeTargets(Mesh{SDistribution: s, DsDistribution: ds}, 10000)
	wantN := int(math.Round(100.0*(1.0/10+1.0/10)/2 + 20.0*(1.0/10+1.0/2)/2))
	if n != wantN {
		t.Fatalf("n = %d, want %d", n, wantN)
	}
	if len(dsGuess) != n {
		t.Fatalf("dsGuess length = %d, want %d", len(dsGuess), n)
	}
	// average spacing between consecutive targets in the dense second
	// segment (fraction > 100/120) must be smaller than in the coarse
	// first segment, since nodes concentrate where ds is small.
	var coarseGaps, fineGaps []float64
	for i := 1; i < n; i++ {
		gap := targets[i] - targets[i-1]
		if targets[i] < 100.0/120.0 {
			coarseGaps = append(coarseGaps, gap)
		} else {
			fineGaps = append(fineGaps, gap)
		}
	}
	if len(coarseGaps) == 0 || len(fineGaps) == 0 {
		t.Fatalf("expected samples in both segments, got %d coarse %d fine", len(coarseGaps), len(fineGaps))
	}
	avg := func(xs []float64) float64 {
		var s float64
		for _, x := range xs {
			s += x
		}
		return s / float64(len(xs))
	}
	if avg(fineGaps) >= avg(coarseGaps) {
		t.Fatalf("expected denser (smaller) gaps in the fine-ds segment: fine avg %.5f, coarse avg %.5f", avg(fineGaps), avg(coarseGaps))
	}
}

func TestDsAtEquallySpacedDividesGlobalLength(t *testing.T) {
	const n, elems = 5, 5
	x := make([]float64, n*nVarsPerNode+1)
	x[n*nVarsPerNode] = 100.0
	for i := 0; i < elems; i++ {
		got := dsAt(x, i, n, elems, false)
		want := 100.0 / float64(elems)
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("dsAt(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestDsAtRefinedReadsPerElementVariable(t *testing.T) {
	const n, elems = 4, 4
	x := make([]float64, n*nVarsPerNode+elems)
	for i := 0; i < elems; i++ {
		x[n*nVarsPerNode+i] = float64(i + 1)
	}
	for i := 0; i < elems; i++ {
		got := dsAt(x, i, n, elems, true)
		want := float64(i + 1)
		if got != want {
			t.Fatalf("dsAt(%d) = %v, want %v", i, got, want)
		}
	}
}

// TestAveragedCenterlineRespectsMaxDist checks that when no right-boundary
// sample lies within maxDist of the left sample (its paired right sample is
// displaced far away and its neighbours are about 5.1 away, beyond
// maxDist=2), the fallback search pairs it with the nearest remaining sample
// rather than the displaced one (spec §4.D stage 3 "within
// maximum_distance_find").
func TestAveragedCenterlineRespectsMaxDist(t *testing.T) {
	nl := 40
	lx := make([]float64, nl)
	ly := make([]float64, nl)
	rx := make([]float64, nl)
	ry := make([]float64, nl)
	for i := 0; i < nl; i++ {
		lx[i] = float64(i)
		ly[i] = 0
		rx[i] = float64(i)
		ry[i] = 5
	}
	// displace the right-boundary sample paired with left index 5 far
	// outside a tight maxDist.
	rx[5], ry[5] = 500, 500

	targets := []float64{5.0 / float64(nl)}
	cx, cy, _ := averagedCenterline(lx, ly, rx, ry, targets, 2.0)
	// with rx[5]/ry[5] displaced, the nearest right sample within any
	// reasonable distance is a neighboring index at y=5, so the midpoint
	// should still land near y=2.5, not be pulled toward (500,500).
	if cy[0] > 10 {
		t.Fatalf("centerline point pulled toward an out-of-window sample: cx=%v cy=%v", cx[0], cy[0])
	}
}

func TestAspectRatioConstraintSignsPenalizeBothDirections(t *testing.T) {
	const n, elems = 2, 2
	x := make([]float64, n*nVarsPerNode+1)
	x[n*nVarsPerNode] = 20.0 // length -> ds = 10 per element
	x[varIdx(0, 4)], x[varIdx(0, 5)] = 2, 2 // width = 4 at element 0: ds/width = 2.5
	x[varIdx(1, 4)], x[varIdx(1, 5)] = 50, 50 // width = 100 at element 1: width/ds = 10

	fn := buildAspectRatioConstraints(n, elems, false, 3.0)
	result := make([]float64, aspectRatioDim(elems))
	fn(result, x, nil)

	// element 0: ds=10, width=4, maxRatio=3 -> ds - 3*width = 10-12 = -2 (ok); width - 3*ds = 4-30 <0 (ok)
	if result[0] >= 0 {
		t.Fatalf("element 0 ds-vs-width row should be feasible (<=0), got %v", result[0])
	}
	if result[1] >= 0 {
		t.Fatalf("element 0 width-vs-ds row should be feasible (<=0), got %v", result[1])
	}
	// element 1: ds=10, width=100, maxRatio=3 -> width - 3*ds = 100-30 = 70 > 0 (violated)
	if result[3] <= 0 {
		t.Fatalf("element 1 width-vs-ds row should be violated (>0) for an overly wide/short element, got %v", result[3])
	}
}
